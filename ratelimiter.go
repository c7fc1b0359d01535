// Package tgrl implements a multi-tenant, byte-granular I/O rate limiter:
// a token bucket per tenant, refilled on a fixed period, with strict
// priority dispatch within each tenant. It is a Go port of RocksDB's
// MultiTenantRateLimiter, generalized so the blocking coordination
// protocol — which thread waits for the next refill and which one
// performs it — is expressed with goroutines and sync.Cond instead of
// native threads and a condition-variable library.
package tgrl

// RateLimiter is the polymorphic public surface both concrete limiters in
// this package implement: the per-tenant MultiTenantRateLimiter, and the
// legacy single-queue variant that predates per-tenant buckets. Callers
// that don't need multi-tenancy can depend on this interface and swap
// implementations without code changes.
type RateLimiter interface {
	// Request blocks the calling goroutine until bytes have been
	// admitted, are charged against the appropriate tenant/bucket, or the
	// limiter is closed. stats, if non-nil, overrides the limiter's
	// configured Stats for this one call (matching the original's
	// per-call Statistics* parameter); pass nil to use the configured
	// one.
	Request(bytes int64, pri Priority, stats Stats, op OpType)

	// RequestToken is a convenience wrapper around Request: it clamps
	// bytes to the single-burst limit, rounds down to a multiple of
	// alignment (never below alignment itself) when alignment > 0, and
	// returns the byte count actually charged. Passing pri ==
	// PriorityTotal or an op the limiter's Mode doesn't throttle is a
	// silent no-op that returns bytes unchanged.
	RequestToken(bytes int64, alignment int64, pri Priority, op OpType) int64

	// SetBytesPerSecond atomically updates the refill rate; it takes
	// effect at the next refill.
	SetBytesPerSecond(n int64)

	// SetSingleBurstBytes overrides the single-request burst cap. n must
	// be >= 0; 0 means "use the refill-bytes-per-period value".
	SetSingleBurstBytes(n int64) error

	// GetSingleBurstBytes returns the effective burst cap: the raw
	// override if one is set, else the current refill-bytes-per-period.
	GetSingleBurstBytes() int64

	// GetTotalBytesThrough returns the cumulative bytes granted at pri.
	GetTotalBytesThrough(pri Priority) int64

	// GetTotalRequests returns the cumulative request count at pri.
	GetTotalRequests(pri Priority) int64

	// Mode returns the limiter's configured Mode.
	Mode() Mode

	// Close begins shutdown: every currently blocked Request call is
	// woken and returns (granted or not), no further refills occur, and
	// Close itself blocks until every blocked caller has acknowledged.
	Close()
}
