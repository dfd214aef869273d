package collector

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"flowlog-tagger/internal/flowlog"
	"flowlog-tagger/internal/ports"
)

// ReportCollector holds the metrics describing one flow log run.
//
// The run is a batch job, so metrics are exported once at the end: written
// to a node_exporter textfile and/or pushed to a Pushgateway.
//
// Label sets:
//
//	flowlog_tag_lines:         tag
//	flowlog_combination_lines: dport, protocol, l7protocol
type ReportCollector struct {
	lines            *prometheus.CounterVec
	tagLines         *prometheus.GaugeVec
	combinationLines *prometheus.GaugeVec

	tagLookupEntries   prometheus.Gauge
	protocolMapEntries prometheus.Gauge
	lastSuccess        prometheus.Gauge
}

func New() *ReportCollector {
	c := &ReportCollector{}

	c.lines = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "flowlog_lines_total",
		Help: "Flow log lines read, by result (counted or skipped).",
	}, []string{"result"})
	c.tagLines = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "flowlog_tag_lines",
		Help: "Number of flow log lines attributed to each tag in the last run.",
	}, []string{"tag"})
	c.combinationLines = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "flowlog_combination_lines",
		Help: "Number of flow log lines per destination port and protocol in the last run.",
	}, []string{"dport", "protocol", "l7protocol"})

	c.tagLookupEntries = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "flowlog_tag_lookup_entries",
		Help: "Number of (port, protocol) entries in the tag lookup table.",
	})
	c.protocolMapEntries = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "flowlog_protocol_map_entries",
		Help: "Number of protocol numbers in the protocol map.",
	})
	c.lastSuccess = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "flowlog_last_success_timestamp_seconds",
		Help: "Unix time the last successful run completed.",
	})

	return c
}

// MustRegister registers all metrics into the provided registry.
func (c *ReportCollector) MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(
		c.lines,
		c.tagLines,
		c.combinationLines,
		c.tagLookupEntries,
		c.protocolMapEntries,
		c.lastSuccess,
	)
}

// SetLookupSizes records the size of the loaded reference tables.
func (c *ReportCollector) SetLookupSizes(tags, protocols int) {
	c.tagLookupEntries.Set(float64(tags))
	c.protocolMapEntries.Set(float64(protocols))
}

// Apply replaces the per-tag and per-combination values with res and marks
// the run successful at now.
func (c *ReportCollector) Apply(res *flowlog.Result, now time.Time) {
	c.tagLines.Reset()
	c.combinationLines.Reset()

	res.Tags.Each(func(tag string, n int) {
		c.tagLines.WithLabelValues(tag).Set(float64(n))
	})
	res.Combinations.Each(func(k flowlog.Combination, n int) {
		c.combinationLines.WithLabelValues(
			strconv.Itoa(int(k.Port)),
			k.Protocol,
			ports.L7ProtocolFromDPort(k.Port),
		).Set(float64(n))
	})

	c.lines.WithLabelValues("counted").Add(float64(res.Counted))
	c.lines.WithLabelValues("skipped").Add(float64(res.Skipped))
	c.lastSuccess.Set(float64(now.Unix()))
}

// WriteTextfile writes everything g gathers to path in the text exposition
// format understood by node_exporter's textfile collector.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

// Push replaces the metrics of job on the Pushgateway at url.
func Push(ctx context.Context, url, job string, g prometheus.Gatherer) error {
	if err := push.New(url, job).Gatherer(g).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics to %s: %w", url, err)
	}
	return nil
}
