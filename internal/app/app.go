package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"flowlog-tagger/internal/collector"
	"flowlog-tagger/internal/config"
	"flowlog-tagger/internal/flowlog"
	"flowlog-tagger/internal/logging"
	"flowlog-tagger/internal/lookup"
	"flowlog-tagger/internal/report"
	"flowlog-tagger/internal/source"
)

// Run wires the application together, performs one run and returns the
// process exit code: 0 on success, 1 on any fatal error.
func Run(cfg config.Config, version string) int {
	return run(cfg, version, os.Stderr)
}

func run(cfg config.Config, version string, logOut io.Writer) int {
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logging.Info
	}
	format, err := logging.ParseFormat(cfg.LogFormat)
	if err != nil {
		format = logging.Logfmt
	}
	log := logging.New(logOut, level, format)

	if cfg.ShowHelp {
		// Usage was printed while parsing flags.
		return 0
	}
	if cfg.ShowVersion {
		log.Info("version", "version", version)
		return 0
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s3cfg := source.S3ConfigFromEnv()
	if cfg.S3Endpoint != "" {
		s3cfg.Endpoint = cfg.S3Endpoint
	}
	s3cfg.Region = cfg.S3Region
	s3cfg.Insecure = cfg.S3Insecure

	p := &pipeline{
		cfg:   cfg,
		log:   log,
		store: source.NewStore(s3cfg),
	}
	if err := p.run(ctx); err != nil {
		log.Error("run failed", "err", err)
		return 1
	}
	return 0
}

type pipeline struct {
	cfg   config.Config
	log   *logging.Logger
	store *source.Store
}

func (p *pipeline) run(ctx context.Context) error {
	tags, err := p.loadTags(ctx)
	if err != nil {
		return err
	}
	p.log.Info("loaded tag mappings", "count", len(tags), "file", p.cfg.TagLookupPath)

	protocols, err := p.loadProtocols(ctx)
	if err != nil {
		return err
	}
	p.log.Debug("loaded protocol map", "count", len(protocols))

	parser := &flowlog.Parser{
		Protocols:        protocols,
		Tags:             tags,
		Log:              p.log,
		SkipInvalidPorts: p.cfg.SkipInvalidPorts,
	}
	var res *flowlog.Result
	err = p.withSource(ctx, p.cfg.FlowLogPath, func(r io.Reader) error {
		var err error
		res, err = parser.Parse(r)
		return err
	})
	if err != nil {
		return fmt.Errorf("parse flow log %s: %w", p.cfg.FlowLogPath, err)
	}
	p.log.Info("parsed flow log", "file", p.cfg.FlowLogPath, "counted", res.Counted, "skipped", res.Skipped)

	if err := report.WriteFile(p.cfg.ReportPath, res); err != nil {
		return err
	}
	p.log.Info("generated report", "file", p.cfg.ReportPath, "tags", res.Tags.Len(), "combinations", res.Combinations.Len())

	if p.cfg.ReportUpload != "" {
		if err := p.store.Upload(ctx, p.cfg.ReportUpload, p.cfg.ReportPath); err != nil {
			return fmt.Errorf("upload report: %w", err)
		}
		p.log.Info("uploaded report", "location", p.cfg.ReportUpload)
	}

	p.exportMetrics(ctx, res, len(tags), len(protocols))
	return nil
}

func (p *pipeline) loadTags(ctx context.Context) (lookup.TagLookup, error) {
	var tags lookup.TagLookup
	err := p.withSource(ctx, p.cfg.TagLookupPath, func(r io.Reader) error {
		var err error
		tags, err = lookup.LoadTags(r)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("load tag lookup %s: %w", p.cfg.TagLookupPath, err)
	}
	return tags, nil
}

func (p *pipeline) loadProtocols(ctx context.Context) (lookup.ProtocolMap, error) {
	var (
		protocols lookup.ProtocolMap
		name      = lookup.BundledProtocolsName
		err       error
	)
	if p.cfg.ProtocolMapPath == "" {
		protocols, err = lookup.DefaultProtocols()
	} else {
		name = p.cfg.ProtocolMapPath
		err = p.withSource(ctx, name, func(r io.Reader) error {
			var err error
			protocols, err = lookup.LoadProtocols(r, name)
			return err
		})
	}
	if err != nil {
		return nil, fmt.Errorf("load protocol map %s: %w", name, err)
	}

	if p.cfg.ProtocolMapIANA {
		protocols.Merge(lookup.IANAProtocols())
	}
	return protocols, nil
}

// withSource opens loc, hands it to fn and always releases it.
func (p *pipeline) withSource(ctx context.Context, loc string, fn func(io.Reader) error) error {
	rc, err := p.store.Open(ctx, loc)
	if err != nil {
		return err
	}
	defer rc.Close()

	return fn(rc)
}

// exportMetrics publishes run metrics. Failures here are warnings only.
func (p *pipeline) exportMetrics(ctx context.Context, res *flowlog.Result, tags, protocols int) {
	if p.cfg.MetricsTextfile == "" && p.cfg.MetricsPushgateway == "" {
		return
	}

	reg := prometheus.NewRegistry()
	c := collector.New()
	c.MustRegister(reg)
	c.SetLookupSizes(tags, protocols)
	c.Apply(res, time.Now())

	if p.cfg.MetricsTextfile != "" {
		if err := collector.WriteTextfile(p.cfg.MetricsTextfile, reg); err != nil {
			p.log.Warn("failed to write metrics textfile", "file", p.cfg.MetricsTextfile, "err", err)
		}
	}
	if p.cfg.MetricsPushgateway != "" {
		if err := collector.Push(ctx, p.cfg.MetricsPushgateway, p.cfg.MetricsJob, reg); err != nil {
			p.log.Warn("failed to push metrics", "url", p.cfg.MetricsPushgateway, "err", err)
		}
	}
}
