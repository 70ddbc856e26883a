package prometheus

import (
	"net/http"
	"strings"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/expfmt"

	goAuthClient "github.com/MrEthical07/goAuthClient"
)

// MetricsSource is implemented by *goAuthClient.Provider.
type MetricsSource interface {
	MetricsSnapshot() goAuthClient.MetricsSnapshot
	EventsDropped() uint64
}

// PrometheusExporter serves goAuthClient metrics from a private registry
// holding a [Collector].
type PrometheusExporter struct {
	source   MetricsSource
	registry *promclient.Registry
}

// NewPrometheusExporter creates an exporter that reads from provider.
func NewPrometheusExporter(provider *goAuthClient.Provider) *PrometheusExporter {
	return NewPrometheusExporterFromSource(provider)
}

// NewPrometheusExporterFromSource creates an exporter from a custom source.
func NewPrometheusExporterFromSource(source MetricsSource) *PrometheusExporter {
	registry := promclient.NewRegistry()
	registry.MustRegister(NewCollector(source))
	return &PrometheusExporter{source: source, registry: registry}
}

// Registry returns the exporter's registry so callers can add their own
// collectors next to the provider's.
func (p *PrometheusExporter) Registry() *promclient.Registry {
	return p.registry
}

// Handler returns an http.Handler that serves Prometheus metrics.
func (p *PrometheusExporter) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// Render writes the current metrics in Prometheus text exposition format.
// It returns "" while metrics are disabled and nothing was dropped.
func (p *PrometheusExporter) Render() string {
	if p == nil || p.source == nil {
		return ""
	}

	snapshot := p.source.MetricsSnapshot()
	if len(snapshot.Counters) == 0 && len(snapshot.Histograms) == 0 && p.source.EventsDropped() == 0 {
		return ""
	}

	families, err := p.registry.Gather()
	if err != nil {
		return ""
	}

	var b strings.Builder
	b.Grow(4096)
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(&b, mf); err != nil {
			return ""
		}
	}
	return b.String()
}
