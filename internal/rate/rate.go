// Package rate provides a continuous token bucket, as distinct from the
// discrete-period bucket spec.md's multi-tenant refill engine implements
// directly. It backs the legacy single-queue variant (see singlequeue.go),
// which predates the multi-tenant per-period design and refills smoothly
// with elapsed wall-clock time instead of resetting at fixed boundaries.
package rate

import (
	"sync"
	"time"

	"github.com/cockroachdb/tokenbucket"
)

// Limiter is a thread-safe continuous byte-bucket: it holds up to burst
// bytes, refilled at rate bytes/sec as time elapses, never exceeding burst.
type Limiter struct {
	mu struct {
		sync.Mutex
		tb    tokenbucket.TokenBucket
		rate  float64
		burst float64
	}
}

// NewLimiter returns a Limiter starting full, allowing up to burst bytes
// immediately and refilling at rate bytes/sec thereafter.
func NewLimiter(rate, burst float64) *Limiter {
	l := &Limiter{}
	l.mu.tb.Init(tokenbucket.TokensPerSecond(rate), tokenbucket.Tokens(burst))
	l.mu.rate = rate
	l.mu.burst = burst
	return l
}

// NewLimiterWithCustomTime is like NewLimiter but lets tests substitute the
// time source.
func NewLimiterWithCustomTime(rate, burst float64, now func() time.Time) *Limiter {
	l := &Limiter{}
	l.mu.tb.InitWithNowFn(tokenbucket.TokensPerSecond(rate), tokenbucket.Tokens(burst), now)
	l.mu.rate = rate
	l.mu.burst = burst
	return l
}

// TryFulfill attempts to draw n bytes from the bucket without blocking. It
// returns true and debits the bucket on success; otherwise it returns
// false and the duration the caller should wait before the request would
// succeed, without debiting anything.
func (l *Limiter) TryFulfill(n float64) (ok bool, wait time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.mu.tb.TryToFulfill(tokenbucket.Tokens(n))
}

// WaitEstimate reports how long a caller would have to wait for n bytes
// to become available, without debiting the bucket. TryToFulfill only
// debits when it succeeds, so a successful probe here is immediately
// reversed with Adjust, leaving the bucket's token count unchanged either
// way.
func (l *Limiter) WaitEstimate(n float64) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	ok, wait := l.mu.tb.TryToFulfill(tokenbucket.Tokens(n))
	if ok {
		l.mu.tb.Adjust(tokenbucket.Tokens(n))
		return 0
	}
	return wait
}

// Burst returns the bucket's capacity.
func (l *Limiter) Burst() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.mu.burst
}

// SetRate updates the refill rate, leaving burst as previously configured.
// Already-accumulated tokens are preserved, capped at the burst.
func (l *Limiter) SetRate(rate float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.mu.tb.UpdateConfig(tokenbucket.TokensPerSecond(rate), tokenbucket.Tokens(l.mu.burst))
	l.mu.rate = rate
}

// SetRateAndBurst updates both the rate and the burst cap together, the
// way callers for whom burst is defined as "tracks the current rate"
// (rather than an independently configured ceiling) need; SetRate alone
// would leave burst pinned at whatever it was constructed with.
func (l *Limiter) SetRateAndBurst(rate, burst float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.mu.tb.UpdateConfig(tokenbucket.TokensPerSecond(rate), tokenbucket.Tokens(burst))
	l.mu.rate = rate
	l.mu.burst = burst
}
