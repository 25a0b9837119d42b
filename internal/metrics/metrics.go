package metrics

import (
	"sync/atomic"
	"time"
)

// ID identifies a counter or histogram slot.
type ID uint16

const (
	// LoginSuccess counts logins that produced an authenticated session.
	LoginSuccess ID = iota
	// LoginFailure counts rejected or failed login calls.
	LoginFailure
	// Logout counts logout operations (local clear always happens).
	Logout
	// LogoutRemoteFailure counts logouts whose network call failed.
	LogoutRemoteFailure
	// RefreshSuccess counts refresh calls that renewed the session.
	RefreshSuccess
	// RefreshFailure counts refresh calls that ended the session.
	RefreshFailure
	// RefreshStarted counts shared refresh operations started by the pipeline.
	RefreshStarted
	// RefreshWaiter counts requests that waited on a shared refresh.
	RefreshWaiter
	// RetryAfterRefresh counts requests replayed after a successful refresh.
	RetryAfterRefresh
	// RetryUnauthorized counts replayed requests that were rejected again.
	RetryUnauthorized
	// AuthErrorPropagated counts original 401 responses surfaced after a failed refresh.
	AuthErrorPropagated
	// SessionCleared counts transitions into the unauthenticated state.
	SessionCleared
	// RefreshLatency is the refresh duration histogram.
	RefreshLatency
	idCount
)

// Count is the number of defined metric IDs.
const Count = int(idCount)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type histogram struct {
	buckets [histBucketCount]uint64
	sumNS   uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Config toggles collection.
type Config struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// Metrics stores counters and histograms. A nil *Metrics is valid and records nothing.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [idCount]paddedCounter
	histograms    [idCount]histogram
}

// Snapshot is a point-in-time copy of all metric values.
type Snapshot struct {
	Counters   map[ID]uint64
	Histograms map[ID][]uint64
	// Sums holds the total observed duration per histogram, in seconds.
	Sums map[ID]float64
}

func New(cfg Config) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

func (m *Metrics) Inc(id ID) {
	if m == nil || !m.enabled || id >= idCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d into the histogram for id. Only RefreshLatency carries a histogram.
func (m *Metrics) Observe(id ID, d time.Duration) {
	if m == nil || !m.enableLatency || id != RefreshLatency {
		return
	}
	if d < 0 {
		d = 0
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
	atomic.AddUint64(&m.histograms[id].sumNS, uint64(d))
}

func (m *Metrics) Value(id ID) uint64 {
	if m == nil || id >= idCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

func (m *Metrics) Snapshot() Snapshot {
	if m == nil || !m.enabled {
		return Snapshot{
			Counters:   map[ID]uint64{},
			Histograms: map[ID][]uint64{},
			Sums:       map[ID]float64{},
		}
	}

	s := Snapshot{
		Counters:   make(map[ID]uint64, int(idCount)),
		Histograms: make(map[ID][]uint64, 1),
		Sums:       make(map[ID]float64, 1),
	}

	for id := ID(0); id < idCount; id++ {
		if id == RefreshLatency {
			continue
		}
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[RefreshLatency].buckets[i])
		}
		s.Histograms[RefreshLatency] = buckets
		s.Sums[RefreshLatency] = time.Duration(atomic.LoadUint64(&m.histograms[RefreshLatency].sumNS)).Seconds()
	}

	return s
}

func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 5:
		return 0
	case ms <= 10:
		return 1
	case ms <= 25:
		return 2
	case ms <= 50:
		return 3
	case ms <= 100:
		return 4
	case ms <= 250:
		return 5
	case ms <= 500:
		return 6
	default:
		return 7
	}
}
