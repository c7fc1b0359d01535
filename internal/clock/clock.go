// Package clock provides the time collaborators the rate limiter needs but
// does not own: a wall clock for absolute deadlines, a monotonic clock for
// scheduling refills, and a way to perform a timed wait on a sync.Cond
// (which, unlike RocksDB's port::CondVar, has no native deadline support).
package clock

import (
	"sync"
	"time"
)

// Clock returns wall-clock microseconds. Absolute deadlines passed to
// CondTimedWaiter.TimedWait are in the same time base as NowMicros.
type Clock interface {
	// NowMicros returns the current time in microseconds since the Unix
	// epoch.
	NowMicros() int64
}

// MonotonicClock returns a strictly non-decreasing microsecond timestamp,
// used for scheduling the next refill. It is kept distinct from Clock
// because a wall clock can jump backwards (NTP correction) while the
// refill schedule must not.
type MonotonicClock interface {
	// NowMonotonicMicros returns a non-decreasing timestamp in microseconds.
	NowMonotonicMicros() int64
}

// SystemClock implements Clock and MonotonicClock over the standard
// library's time package. time.Now() on every supported platform is
// backed by a monotonic reading in addition to wall time, so a single
// implementation can satisfy both interfaces.
type SystemClock struct{}

// NowMicros implements Clock.
func (SystemClock) NowMicros() int64 {
	return time.Now().UnixMicro()
}

// NowMonotonicMicros implements MonotonicClock.
func (SystemClock) NowMonotonicMicros() int64 {
	// time.Since is defined in terms of the monotonic reading embedded in
	// time.Time values, so diffing against a fixed epoch is immune to wall
	// clock adjustments.
	return time.Since(monotonicEpoch).Microseconds()
}

var monotonicEpoch = time.Now()

// CondTimedWaiter performs a bounded wait on a sync.Cond that is bound to
// the caller's mutex. The mutex must be held when TimedWait is called and
// will be held again on return, exactly like sync.Cond.Wait.
//
// sync.Cond has no deadline-aware Wait, so this races a timer goroutine
// against the cond: the timer acquires the same mutex and signals the cond
// when the deadline elapses. If the cond is signaled for another reason
// first, the timer is stopped before it fires.
type CondTimedWaiter struct {
	clock Clock
}

// NewCondTimedWaiter constructs a CondTimedWaiter using clock to measure
// deadlines.
func NewCondTimedWaiter(clock Clock) CondTimedWaiter {
	return CondTimedWaiter{clock: clock}
}

// TimedWait blocks on cv until either cv is signaled/broadcast or
// deadlineMicros (in the same time base as the Clock passed to
// NewCondTimedWaiter) elapses, whichever comes first — exactly one
// sync.Cond.Wait call, like a single call to a real OS-level timed
// condvar wait. mu is the mutex cv is bound to; it must be held on entry
// and is held again on return. The caller is responsible for re-checking
// whatever condition it was waiting on, same as with a plain cv.Wait.
func (w CondTimedWaiter) TimedWait(cv *sync.Cond, mu sync.Locker, deadlineMicros int64) {
	nowMicros := w.clock.NowMicros()
	if deadlineMicros <= nowMicros {
		return
	}
	d := time.Duration(deadlineMicros-nowMicros) * time.Microsecond

	timer := time.AfterFunc(d, func() {
		mu.Lock()
		defer mu.Unlock()
		cv.Broadcast()
	})
	defer timer.Stop()
	cv.Wait()
}
