package tgrl

import (
	"github.com/cockroachdb/errors"
	"github.com/devbali/tgrl/internal/base"
	"github.com/devbali/tgrl/internal/clock"
)

// Options configures a MultiTenantRateLimiter or SingleQueueRateLimiter.
// Mirrors pebble's Options: a plain struct with a documented default for
// every field, filled in by EnsureDefaults, then checked by Validate.
type Options struct {
	// RateBytesPerSec is the aggregate per-tenant refill rate target.
	// Required; EnsureDefaults does not fill this in.
	RateBytesPerSec int64

	// RefillPeriodUs is the length of a refill period, in microseconds.
	// Default: 100000 (100ms).
	RefillPeriodUs int64

	// Fairness is the anti-starvation randomness used by the legacy
	// priority order (priority.go); it has no effect on
	// MultiTenantRateLimiter's refill path. Clamped to [1, 100].
	// Default: 10.
	Fairness int

	// Mode selects which operation types are throttled. Default:
	// ModeWritesOnly.
	Mode Mode

	// AutoTuned, if true, halves RateBytesPerSec before use.
	AutoTuned bool

	// SingleBurstBytes overrides the single-request burst cap. 0 (the
	// default) means "use refill-bytes-per-period".
	SingleBurstBytes int64

	// ReadRateBytesPerSec, if > 0, causes New to also construct an inner
	// ModeWritesOnly limiter at this rate and forward OpRead requests to
	// it (spec.md §4.2). Default: 0 (no inner limiter; OpRead requests
	// against a ModeWritesOnly limiter are then a silent no-op).
	ReadRateBytesPerSec int64

	// Clock provides wall-clock microseconds for absolute wait
	// deadlines. Default: clock.SystemClock{}.
	Clock clock.Clock

	// MonotonicClock provides the non-decreasing clock next-refill
	// scheduling is computed from. Default: clock.SystemClock{}.
	MonotonicClock clock.MonotonicClock

	// TenantSource identifies the calling goroutine's tenant. Default: a
	// source that always returns TenantUnset, which — per spec.md §3 —
	// is remapped to TenantFlushDefault; i.e. by default all traffic is
	// attributed to a single tenant, same as a caller who never wires up
	// tenant identification at all.
	TenantSource TenantSource

	// Stats receives diagnostic tick events. Default: NoopStats{}.
	Stats Stats

	// Logger receives the non-contractual diagnostics spec.md §9 notes
	// (periodic per-client call counts). Default: base.DefaultLogger{}.
	Logger base.Logger
}

// EnsureDefaults returns a copy of o with every unset field filled in.
func (o Options) EnsureDefaults() Options {
	if o.RefillPeriodUs <= 0 {
		o.RefillPeriodUs = 100_000
	}
	if o.Fairness <= 0 {
		o.Fairness = 10
	}
	if o.Fairness > 100 {
		o.Fairness = 100
	}
	if o.Clock == nil {
		o.Clock = clock.SystemClock{}
	}
	if o.MonotonicClock == nil {
		o.MonotonicClock = clock.SystemClock{}
	}
	if o.TenantSource == nil {
		o.TenantSource = FixedTenantSource(TenantUnset)
	}
	if o.Stats == nil {
		o.Stats = NoopStats{}
	}
	if o.Logger == nil {
		o.Logger = base.DefaultLogger{}
	}
	return o
}

// Validate reports an error if o's required fields are missing or
// malformed.
func (o Options) Validate() error {
	if o.RateBytesPerSec <= 0 {
		return errors.Newf("tgrl: RateBytesPerSec must be > 0, got %d", o.RateBytesPerSec)
	}
	if o.RefillPeriodUs <= 0 {
		return errors.Newf("tgrl: RefillPeriodUs must be > 0, got %d", o.RefillPeriodUs)
	}
	if o.SingleBurstBytes < 0 {
		return errors.Newf("tgrl: SingleBurstBytes must be >= 0, got %d", o.SingleBurstBytes)
	}
	if o.ReadRateBytesPerSec < 0 {
		return errors.Newf("tgrl: ReadRateBytesPerSec must be >= 0, got %d", o.ReadRateBytesPerSec)
	}
	switch o.Mode {
	case ModeReadsOnly, ModeWritesOnly, ModeAll:
	default:
		return errors.Newf("tgrl: unrecognized Mode %d", o.Mode)
	}
	return nil
}
