package tgrl

import (
	"sync"

	"github.com/devbali/tgrl/internal/clock"
)

// manualClock is a Clock and MonotonicClock that only advances when the
// test tells it to, so refill timing in tests is deterministic instead of
// racing real wall-clock sleeps.
type manualClock struct {
	mu     sync.Mutex
	nowUs  int64
	monoUs int64
}

var _ clock.Clock = (*manualClock)(nil)
var _ clock.MonotonicClock = (*manualClock)(nil)

func newManualClock() *manualClock {
	return &manualClock{nowUs: 1, monoUs: 1}
}

func (c *manualClock) NowMicros() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nowUs
}

func (c *manualClock) NowMonotonicMicros() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.monoUs
}

func (c *manualClock) Advance(us int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nowUs += us
	c.monoUs += us
}
