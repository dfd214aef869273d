package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
)

// ErrUsage is returned when the positional arguments are wrong. Usage has
// already been printed.
var ErrUsage = errors.New("usage error")

// DefaultReportFile is where the report is written unless --report.file is set.
const DefaultReportFile = "output.txt"

// Config holds runtime configuration for one run.
type Config struct {
	FlowLogPath   string
	TagLookupPath string

	// ProtocolMapPath is empty for the bundled protocol map.
	ProtocolMapPath string
	ProtocolMapIANA bool

	ReportPath   string
	ReportUpload string

	SkipInvalidPorts bool

	MetricsTextfile    string
	MetricsPushgateway string
	MetricsJob         string

	S3Endpoint string
	S3Region   string
	S3Insecure bool

	LogLevel  string
	LogFormat string

	ConfigFile string

	ShowHelp    bool
	ShowVersion bool
}

// ParseFlags parses command line arguments (without the program name).
// Usage and every returned error have already been printed to out.
//
// Values from --config.file apply to every flag not given explicitly on the
// command line.
func ParseFlags(args []string, out io.Writer) (Config, error) {
	var cfg Config

	fs := flag.NewFlagSet("flowlog-tagger", flag.ContinueOnError)
	fs.SetOutput(out)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: flowlog-tagger [flags] <flowlog_file> <lookup_file>\n\nFlags:\n")
		fs.PrintDefaults()
	}

	fs.StringVar(&cfg.ConfigFile, "config.file", "", "Path to a YAML configuration file.")

	fs.StringVar(&cfg.ProtocolMapPath, "protocol-map.file", "", "Protocol number to name map (JSON, or YAML for .yaml/.yml). Empty uses the bundled map.")
	fs.BoolVar(&cfg.ProtocolMapIANA, "protocol-map.iana", false, "Fill protocol numbers missing from the map with IANA protocol names.")

	fs.StringVar(&cfg.ReportPath, "report.file", DefaultReportFile, "Path of the generated report.")
	fs.StringVar(&cfg.ReportUpload, "report.upload", "", "Also upload the report to this s3://bucket/key location.")

	fs.BoolVar(&cfg.SkipInvalidPorts, "flowlog.skip-invalid-ports", false, "Skip lines whose destination port is not a number instead of failing the run.")

	fs.StringVar(&cfg.MetricsTextfile, "metrics.textfile", "", "Write run metrics to this file for node_exporter's textfile collector.")
	fs.StringVar(&cfg.MetricsPushgateway, "metrics.pushgateway-url", "", "Push run metrics to this Pushgateway.")
	fs.StringVar(&cfg.MetricsJob, "metrics.job", "flowlog_tagger", "Job label used when pushing metrics.")

	fs.StringVar(&cfg.S3Endpoint, "s3.endpoint", "", "Object storage endpoint (host:port) for s3:// locations. Defaults to $FLOWLOG_S3_ENDPOINT.")
	fs.StringVar(&cfg.S3Region, "s3.region", "", "Object storage region.")
	fs.BoolVar(&cfg.S3Insecure, "s3.insecure", false, "Use plain HTTP for object storage.")

	fs.StringVar(&cfg.LogLevel, "log.level", "info", "Only log messages with the given severity or above. One of: [debug, info, warn, error]")
	fs.StringVar(&cfg.LogFormat, "log.format", "logfmt", "Output format of log messages. One of: [logfmt, json]")

	fs.BoolVar(&cfg.ShowHelp, "h", false, "Show help and exit.")
	fs.BoolVar(&cfg.ShowHelp, "help", false, "Show help and exit.")

	fs.BoolVar(&cfg.ShowVersion, "v", false, "Show application version and exit.")
	fs.BoolVar(&cfg.ShowVersion, "version", false, "Show application version and exit.")

	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	if cfg.ShowHelp {
		fs.Usage()
		return cfg, nil
	}
	if cfg.ShowVersion {
		return cfg, nil
	}

	if fs.NArg() != 2 {
		fs.Usage()
		return cfg, ErrUsage
	}
	cfg.FlowLogPath = fs.Arg(0)
	cfg.TagLookupPath = fs.Arg(1)

	if cfg.ConfigFile != "" {
		fc, err := LoadFile(cfg.ConfigFile)
		if err != nil {
			fmt.Fprintln(out, err)
			return cfg, err
		}
		set := map[string]bool{}
		fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
		fc.apply(&cfg, set)
	}

	return cfg, nil
}
