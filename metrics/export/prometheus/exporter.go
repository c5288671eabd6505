package prometheus

import (
	"net/http"

	goClerk "github.com/MrEthical07/goClerk"
	"github.com/MrEthical07/goClerk/metrics/export/internaldefs"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metricsSource interface {
	MetricsSnapshot() goClerk.MetricsSnapshot
	AuditDropped() uint64
}

type counterDesc struct {
	id   goClerk.MetricID
	desc *prom.Desc
}

// PrometheusExporter is a prom.Collector over an engine's metrics snapshot.
type PrometheusExporter struct {
	source     metricsSource
	counters   []counterDesc
	histograms []counterDesc
	dropped    *prom.Desc
	registry   *prom.Registry
}

var _ prom.Collector = (*PrometheusExporter)(nil)

// NewPrometheusExporter creates a Prometheus exporter that reads from the given [goClerk.Engine].
func NewPrometheusExporter(engine *goClerk.Engine) *PrometheusExporter {
	return NewPrometheusExporterFromSource(engine)
}

// NewPrometheusExporterFromSource creates a Prometheus exporter from any
// value with MetricsSnapshot and AuditDropped methods.
func NewPrometheusExporterFromSource(source metricsSource) *PrometheusExporter {
	p := &PrometheusExporter{
		source:     source,
		counters:   make([]counterDesc, 0, len(internaldefs.CounterDefs)),
		histograms: make([]counterDesc, 0, len(internaldefs.HistogramDefs)),
		dropped: prom.NewDesc(internaldefs.AuditDroppedName,
			"Dropped audit events due to dispatcher backpressure.", nil, nil),
	}
	for _, def := range internaldefs.CounterDefs {
		p.counters = append(p.counters, counterDesc{id: def.ID, desc: prom.NewDesc(def.Name, def.Help, nil, nil)})
	}
	for _, def := range internaldefs.HistogramDefs {
		p.histograms = append(p.histograms, counterDesc{id: def.ID, desc: prom.NewDesc(def.Name, def.Help, nil, nil)})
	}

	p.registry = prom.NewRegistry()
	p.registry.MustRegister(p)
	return p
}

// Describe implements prom.Collector.
func (p *PrometheusExporter) Describe(ch chan<- *prom.Desc) {
	for _, c := range p.counters {
		ch <- c.desc
	}
	for _, h := range p.histograms {
		ch <- h.desc
	}
	ch <- p.dropped
}

// Collect implements prom.Collector. Nothing is emitted while metrics are
// disabled on the engine.
func (p *PrometheusExporter) Collect(ch chan<- prom.Metric) {
	if p.source == nil {
		return
	}
	snapshot := p.source.MetricsSnapshot()
	dropped := p.source.AuditDropped()
	if len(snapshot.Counters) == 0 && len(snapshot.Histograms) == 0 && dropped == 0 {
		return
	}

	for _, c := range p.counters {
		ch <- prom.MustNewConstMetric(c.desc, prom.CounterValue, float64(snapshot.Counters[c.id]))
	}

	for _, h := range p.histograms {
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snapshot.Histograms[h.id]))
		buckets := make(map[float64]uint64, len(internaldefs.HistogramBounds))
		for i, le := range internaldefs.HistogramBounds {
			buckets[le] = cumulative[i]
		}
		count := cumulative[len(cumulative)-1]
		sum := snapshot.HistogramSums[h.id].Seconds()
		ch <- prom.MustNewConstHistogram(h.desc, count, sum, buckets)
	}

	ch <- prom.MustNewConstMetric(p.dropped, prom.CounterValue, float64(dropped))
}

// Handler serves the exporter's private registry in the Prometheus exposition
// format.
func (p *PrometheusExporter) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// Register adds the exporter to reg, for callers that already run a
// registry.
func (p *PrometheusExporter) Register(reg prom.Registerer) error {
	return reg.Register(p)
}
