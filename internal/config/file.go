package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// File is the YAML configuration file layout.
type File struct {
	ProtocolMap struct {
		File string `yaml:"file"`
		IANA *bool  `yaml:"iana"`
	} `yaml:"protocol_map"`

	Report struct {
		File   string `yaml:"file"`
		Upload string `yaml:"upload"`
	} `yaml:"report"`

	FlowLog struct {
		SkipInvalidPorts *bool `yaml:"skip_invalid_ports"`
	} `yaml:"flowlog"`

	Metrics struct {
		Textfile       string `yaml:"textfile"`
		PushgatewayURL string `yaml:"pushgateway_url"`
		Job            string `yaml:"job"`
	} `yaml:"metrics"`

	S3 struct {
		Endpoint string `yaml:"endpoint"`
		Region   string `yaml:"region"`
		Insecure *bool  `yaml:"insecure"`
	} `yaml:"s3"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// LoadFile reads the configuration from a YAML file.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}

	return &f, nil
}

// apply copies file values into cfg for every flag not in set.
func (f *File) apply(cfg *Config, set map[string]bool) {
	str := func(flag string, dst *string, v string) {
		if !set[flag] && v != "" {
			*dst = v
		}
	}
	boolean := func(flag string, dst *bool, v *bool) {
		if !set[flag] && v != nil {
			*dst = *v
		}
	}

	str("protocol-map.file", &cfg.ProtocolMapPath, f.ProtocolMap.File)
	boolean("protocol-map.iana", &cfg.ProtocolMapIANA, f.ProtocolMap.IANA)

	str("report.file", &cfg.ReportPath, f.Report.File)
	str("report.upload", &cfg.ReportUpload, f.Report.Upload)

	boolean("flowlog.skip-invalid-ports", &cfg.SkipInvalidPorts, f.FlowLog.SkipInvalidPorts)

	str("metrics.textfile", &cfg.MetricsTextfile, f.Metrics.Textfile)
	str("metrics.pushgateway-url", &cfg.MetricsPushgateway, f.Metrics.PushgatewayURL)
	str("metrics.job", &cfg.MetricsJob, f.Metrics.Job)

	str("s3.endpoint", &cfg.S3Endpoint, f.S3.Endpoint)
	str("s3.region", &cfg.S3Region, f.S3.Region)
	boolean("s3.insecure", &cfg.S3Insecure, f.S3.Insecure)

	str("log.level", &cfg.LogLevel, f.Log.Level)
	str("log.format", &cfg.LogFormat, f.Log.Format)
}
