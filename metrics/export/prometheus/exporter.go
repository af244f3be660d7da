package prometheus

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"strings"

	gdprAuth "github.com/MrEthical07/gdprAuth"
	"github.com/MrEthical07/gdprAuth/metrics/export/internaldefs"
)

const contentType = "text/plain; version=0.0.4; charset=utf-8"

type metricsSource interface {
	MetricsSnapshot() gdprAuth.MetricsSnapshot
	AuditDropped() uint64
}

// PrometheusExporter writes engine metrics in the Prometheus text format.
type PrometheusExporter struct {
	source metricsSource
}

// NewPrometheusExporter returns an exporter reading from engine.
func NewPrometheusExporter(engine *gdprAuth.Engine) *PrometheusExporter {
	return &PrometheusExporter{source: engine}
}

// NewPrometheusExporterFromSource returns an exporter reading from source.
func NewPrometheusExporterFromSource(source metricsSource) *PrometheusExporter {
	return &PrometheusExporter{source: source}
}

// Handler streams the current snapshot. A disabled engine yields an empty body.
func (p *PrometheusExporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", contentType)
		_, _ = p.WriteTo(w)
	})
}

// Render returns the snapshot as a string.
func (p *PrometheusExporter) Render() string {
	var b strings.Builder
	_, _ = p.WriteTo(&b)
	return b.String()
}

// WriteTo writes one scrape to w.
func (p *PrometheusExporter) WriteTo(w io.Writer) (int64, error) {
	if p == nil || p.source == nil {
		return 0, nil
	}

	snap := p.source.MetricsSnapshot()
	dropped := p.source.AuditDropped()
	if len(snap.Counters) == 0 && len(snap.Histograms) == 0 && dropped == 0 {
		return 0, nil
	}

	cw := &countingWriter{w: bufio.NewWriter(w)}
	for _, f := range internaldefs.CounterFamilies {
		header(cw, f.Name, f.Help, "counter")
		for _, s := range f.Series {
			if s.Outcome == "" {
				fmt.Fprintf(cw, "%s %d\n", f.Name, snap.Counters[s.ID])
				continue
			}
			fmt.Fprintf(cw, "%s{%s=%q} %d\n", f.Name, internaldefs.OutcomeKey, s.Outcome, snap.Counters[s.ID])
		}
	}

	for _, h := range internaldefs.HistogramDefs {
		cumulative := internaldefs.CumulativeBuckets(snap.Histograms[h.ID])
		header(cw, h.Name, h.Help, "histogram")
		for i, le := range internaldefs.HistogramBounds {
			fmt.Fprintf(cw, "%s_bucket{le=%q} %d\n", h.Name, le, cumulative[i])
		}
		// only bucket counts are tracked, so no _sum series
		fmt.Fprintf(cw, "%s_count %d\n", h.Name, cumulative[len(cumulative)-1])
	}

	header(cw, internaldefs.AuditDroppedName, "Audit events dropped by a full dispatcher queue.", "counter")
	fmt.Fprintf(cw, "%s %d\n", internaldefs.AuditDroppedName, dropped)

	if err := cw.w.Flush(); err != nil && cw.err == nil {
		cw.err = err
	}
	return cw.n, cw.err
}

func header(w io.Writer, name, help, kind string) {
	help = strings.NewReplacer(`\`, `\\`, "\n", `\n`).Replace(help)
	fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n", name, help, name, kind)
}

// countingWriter keeps the first error so callers can ignore Fprintf results.
type countingWriter struct {
	w   *bufio.Writer
	n   int64
	err error
}

func (c *countingWriter) Write(p []byte) (int, error) {
	if c.err != nil {
		return 0, c.err
	}
	n, err := c.w.Write(p)
	c.n += int64(n)
	c.err = err
	return n, err
}
