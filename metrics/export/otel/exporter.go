package otel

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	goClerk "github.com/MrEthical07/goClerk"
	"github.com/MrEthical07/goClerk/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

// bucketKey is the attribute carrying a bucket's upper bound, as in the
// Prometheus text format.
const bucketKey = "le"

type metricsSource interface {
	MetricsSnapshot() goClerk.MetricsSnapshot
	AuditDropped() uint64
}

type counterInstrument struct {
	id  goClerk.MetricID
	obs metric.Int64ObservableCounter
}

// latencyInstruments mirror one SDK histogram. Buckets are reported
// cumulatively on a single gauge, one data point per le attribute.
type latencyInstruments struct {
	id      goClerk.MetricID
	buckets metric.Int64ObservableGauge
	count   metric.Int64ObservableCounter
	sum     metric.Float64ObservableCounter
}

// OTelExporter reports an engine's metrics through observable instruments.
// It holds no state of its own; every collection reads a fresh snapshot.
type OTelExporter struct {
	source       metricsSource
	registration metric.Registration

	counters     []counterInstrument
	latencies    []latencyInstruments
	auditDropped metric.Int64ObservableCounter
	bucketAttrs  [internaldefs.HistogramBucketCount]metric.ObserveOption
}

// NewOTelExporter registers observable instruments on meter that read the
// engine's metrics snapshot at collection time.
func NewOTelExporter(meter metric.Meter, engine *goClerk.Engine) (*OTelExporter, error) {
	return NewOTelExporterFromSource(meter, engine)
}

// NewOTelExporterFromSource is NewOTelExporter over any snapshot source.
func NewOTelExporterFromSource(meter metric.Meter, source metricsSource) (*OTelExporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &OTelExporter{source: source}
	for i := range e.bucketAttrs {
		e.bucketAttrs[i] = metric.WithAttributeSet(attribute.NewSet(attribute.String(bucketKey, bucketLabel(i))))
	}

	var observables []metric.Observable
	var err error
	if observables, err = e.registerCounters(meter, observables); err != nil {
		return nil, err
	}
	if observables, err = e.registerLatencies(meter, observables); err != nil {
		return nil, err
	}

	e.auditDropped, err = meter.Int64ObservableCounter(
		internaldefs.AuditDroppedName,
		metric.WithDescription("Dropped audit events due to dispatcher backpressure."),
	)
	if err != nil {
		return nil, fmt.Errorf("create audit dropped counter: %w", err)
	}
	observables = append(observables, e.auditDropped)

	e.registration, err = meter.RegisterCallback(e.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	return e, nil
}

func (e *OTelExporter) registerCounters(meter metric.Meter, observables []metric.Observable) ([]metric.Observable, error) {
	for _, def := range internaldefs.CounterDefs {
		obs, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("create observable counter %s: %w", def.Name, err)
		}
		e.counters = append(e.counters, counterInstrument{id: def.ID, obs: obs})
		observables = append(observables, obs)
	}
	return observables, nil
}

func (e *OTelExporter) registerLatencies(meter metric.Meter, observables []metric.Observable) ([]metric.Observable, error) {
	for _, def := range internaldefs.HistogramDefs {
		l := latencyInstruments{id: def.ID}
		var err error
		l.buckets, err = meter.Int64ObservableGauge(def.Name+"_bucket",
			metric.WithDescription(def.Help+" Cumulative count per upper bound."))
		if err != nil {
			return nil, fmt.Errorf("create bucket gauge for %s: %w", def.Name, err)
		}
		l.count, err = meter.Int64ObservableCounter(def.Name+"_count",
			metric.WithDescription(def.Help+" Sample count."))
		if err != nil {
			return nil, fmt.Errorf("create count for %s: %w", def.Name, err)
		}
		l.sum, err = meter.Float64ObservableCounter(def.Name+"_sum",
			metric.WithDescription(def.Help+" Total seconds."), metric.WithUnit("s"))
		if err != nil {
			return nil, fmt.Errorf("create sum for %s: %w", def.Name, err)
		}
		e.latencies = append(e.latencies, l)
		observables = append(observables, l.buckets, l.count, l.sum)
	}
	return observables, nil
}

func (e *OTelExporter) observe(_ context.Context, o metric.Observer) error {
	snap := e.source.MetricsSnapshot()
	for _, c := range e.counters {
		o.ObserveInt64(c.obs, int64(snap.Counters[c.id]))
	}
	for _, l := range e.latencies {
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snap.Histograms[l.id]))
		for i, n := range cumulative {
			o.ObserveInt64(l.buckets, int64(n), e.bucketAttrs[i])
		}
		o.ObserveInt64(l.count, int64(cumulative[len(cumulative)-1]))
		o.ObserveFloat64(l.sum, snap.HistogramSums[l.id].Seconds())
	}
	o.ObserveInt64(e.auditDropped, int64(e.source.AuditDropped()))
	return nil
}

// Close unregisters the collection callback.
func (e *OTelExporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}

// bucketLabel renders the upper bound of bucket i: 0.05, 1, +Inf.
func bucketLabel(i int) string {
	if i >= len(internaldefs.HistogramBounds) {
		return "+Inf"
	}
	return strconv.FormatFloat(internaldefs.HistogramBounds[i], 'f', -1, 64)
}
