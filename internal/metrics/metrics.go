package metrics

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one counter or histogram slot.
type MetricID uint16

const (
	MetricClientLoad MetricID = iota
	MetricSignUpCreate
	MetricSignUpPrepare
	MetricSignUpAttempt
	MetricSignUpUpdate
	MetricSignUpComplete
	MetricSignUpFailure
	MetricSignInCreate
	MetricSignInPrepare
	MetricSignInAttempt
	MetricSignInComplete
	MetricSignInFailure
	MetricSignOut
	MetricSessionRemove
	MetricSessionTokenFetch
	MetricSessionTokenCacheHit
	MetricSessionTokenFailure
	MetricEnvironmentFetch
	MetricEnvironmentCacheHit
	MetricPreconditionFailed
	MetricRequest
	MetricRequestFailure
	MetricRequestTimeout
	MetricCircuitOpen
	MetricDeviceTokenRotated
	MetricKeychainReadFailure
	MetricKeychainWriteFailure
	MetricRequestLatency
	MetricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type histogram struct {
	buckets  [histBucketCount]uint64
	sumNanos uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Config toggles collection.
type Config struct {
	Enabled       bool
	EnableLatency bool
}

// Metrics is safe for concurrent use. A nil *Metrics is a no-op.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [MetricIDCount]paddedCounter
	histograms    [MetricIDCount]histogram
}

// Snapshot is a point-in-time copy. Histograms hold non-cumulative bucket
// counts; HistogramSums the total observed duration per histogram.
type Snapshot struct {
	Counters      map[MetricID]uint64
	Histograms    map[MetricID][]uint64
	HistogramSums map[MetricID]time.Duration
}

func New(cfg Config) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatency,
	}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= MetricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d in the histogram for id. Only MetricRequestLatency has a
// histogram.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id != MetricRequestLatency {
		return
	}
	if d < 0 {
		d = 0
	}
	atomic.AddUint64(&m.histograms[id].buckets[bucketIndex(d)], 1)
	atomic.AddUint64(&m.histograms[id].sumNanos, uint64(d))
}

func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= MetricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

func (m *Metrics) Snapshot() Snapshot {
	if m == nil || !m.enabled {
		return Snapshot{
			Counters:      map[MetricID]uint64{},
			Histograms:    map[MetricID][]uint64{},
			HistogramSums: map[MetricID]time.Duration{},
		}
	}

	s := Snapshot{
		Counters:      make(map[MetricID]uint64, int(MetricIDCount)),
		Histograms:    make(map[MetricID][]uint64, 1),
		HistogramSums: make(map[MetricID]time.Duration, 1),
	}

	for id := MetricID(0); id < MetricIDCount; id++ {
		if id == MetricRequestLatency {
			continue
		}
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		h := &m.histograms[MetricRequestLatency]
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&h.buckets[i])
		}
		s.Histograms[MetricRequestLatency] = buckets
		s.HistogramSums[MetricRequestLatency] = time.Duration(atomic.LoadUint64(&h.sumNanos))
	}

	return s
}

// Bucket upper bounds follow a client round trip: tens of milliseconds on a
// good link, seconds on a bad one.
func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 50:
		return 0
	case ms <= 100:
		return 1
	case ms <= 250:
		return 2
	case ms <= 500:
		return 3
	case ms <= 1000:
		return 4
	case ms <= 2500:
		return 5
	case ms <= 5000:
		return 6
	default:
		return 7
	}
}
