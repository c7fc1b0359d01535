package tgrl

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/prometheus/client_golang/prometheus"
)

// TickEvent enumerates the diagnostic events the limiter reports through
// Stats. It mirrors RocksDB's Statistics tick-counter enum, trimmed to the
// one event spec.md names explicitly.
type TickEvent int

const (
	// NumberRateLimiterDrains fires each time a request becomes the
	// elected "waiter" for the next refill (spec.md §4.3 step 5b).
	NumberRateLimiterDrains TickEvent = iota
)

// Stats is the narrow interface the limiter reports diagnostics through.
// Implementations must be safe for concurrent use from any requesting
// goroutine, and RecordTick must not block — it is called while the
// limiter's request mutex is held.
type Stats interface {
	RecordTick(event TickEvent)
}

// NoopStats discards every tick. It is the default when no Stats is
// configured.
type NoopStats struct{}

// RecordTick implements Stats.
func (NoopStats) RecordTick(TickEvent) {}

// PrometheusStats reports limiter diagnostics as Prometheus counters. It
// is the production Stats implementation; call Collectors to register it
// with a prometheus.Registry.
type PrometheusStats struct {
	drains prometheus.Counter
}

// NewPrometheusStats constructs a PrometheusStats. namespace/subsystem
// follow the usual client_golang convention of scoping metric names to
// the owning component, e.g. namespace="storage", subsystem="rate_limiter".
func NewPrometheusStats(namespace, subsystem string) *PrometheusStats {
	return &PrometheusStats{
		drains: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "drains_total",
			Help:      "Number of times a request became the elected waiter for the next token-bucket refill.",
		}),
	}
}

// RecordTick implements Stats.
func (p *PrometheusStats) RecordTick(event TickEvent) {
	switch event {
	case NumberRateLimiterDrains:
		p.drains.Inc()
	}
}

// Collectors returns the prometheus.Collectors backing p, for registration
// with a prometheus.Registry via registry.MustRegister(stats.Collectors()...).
func (p *PrometheusStats) Collectors() []prometheus.Collector {
	return []prometheus.Collector{p.drains}
}

// LatencyStats wraps another Stats and additionally records, into an HDR
// histogram, the wall-clock latency of requests that had to wait for a
// refill at all (requests satisfied on the fast path are not recorded,
// since their latency is definitionally near zero and would just dilute
// the histogram). This is purely diagnostic — spec.md §9 notes latency
// tracking is not part of the contract.
type LatencyStats struct {
	inner Stats

	mu   sync.Mutex
	hist *hdrhistogram.Histogram
}

// NewLatencyStats wraps inner, recording wait latencies from 1
// microsecond to 10 seconds with 3 significant figures of precision.
func NewLatencyStats(inner Stats) *LatencyStats {
	if inner == nil {
		inner = NoopStats{}
	}
	return &LatencyStats{
		inner: inner,
		hist:  hdrhistogram.New(1, 10*1e6, 3),
	}
}

// RecordTick implements Stats by delegating to the wrapped Stats.
func (l *LatencyStats) RecordTick(event TickEvent) {
	l.inner.RecordTick(event)
}

// RecordWaitLatency records d, the time a request spent blocked waiting
// for a grant. It is not part of the Stats interface, since most Stats
// implementations have no use for it; instead, both limiters type-assert
// the request's Stats against waitLatencyRecorder after every request that
// had to queue and call this automatically when it's implemented.
func (l *LatencyStats) RecordWaitLatency(d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_ = l.hist.RecordValue(d.Microseconds())
}

// waitLatencyRecorder is the optional extension a Stats can implement to
// receive the wait latency recorded after every request that had to
// queue. LatencyStats
// implements it; NoopStats and PrometheusStats don't need to.
type waitLatencyRecorder interface {
	RecordWaitLatency(d time.Duration)
}

// ValueAtQuantile returns the wait-latency value (in microseconds) at the
// given percentile (e.g. 50, 99, 99.9).
func (l *LatencyStats) ValueAtQuantile(q float64) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.hist.ValueAtQuantile(q)
}
