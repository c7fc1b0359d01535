package tgrl

import (
	"testing"

	"github.com/kr/pretty"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T, rate int64, clk *manualClock, tenant TenantID) *MultiTenantRateLimiter {
	t.Helper()
	l, err := New(Options{
		RateBytesPerSec: rate,
		RefillPeriodUs:  1000,
		Mode:            ModeAll,
		Clock:           clk,
		MonotonicClock:  clk,
		TenantSource:    FixedTenantSource(tenant),
	})
	require.NoError(t, err)
	return l
}

func TestRequestGrantedWithinBurst(t *testing.T) {
	clk := newManualClock()
	l := newTestLimiter(t, 1_000_000, clk, 0)
	defer l.Close()

	l.Request(500, PriorityUser, nil, OpWrite)
	require.EqualValues(t, 500, l.GetTotalBytesThrough(PriorityUser))
	require.EqualValues(t, 1, l.GetTotalRequests(PriorityUser))
}

func TestRequestAcrossTwoPeriodsIsDeterministic(t *testing.T) {
	clk := newManualClock()
	l := newTestLimiter(t, 1000, clk, 0) // refillBytesPerPeriod = 1000*1000us/1e6 = 1
	defer l.Close()

	l.Request(1, PriorityUser, nil, OpWrite)
	require.EqualValues(t, 1, l.GetTotalBytesThrough(PriorityUser))

	// The bucket is drained for this period. Advancing the monotonic clock
	// past nextRefillUs makes the next Request's pre-wait check see the
	// period has already elapsed, so it refills and grants synchronously —
	// this exercises a second period deterministically without ever
	// reaching CondTimedWaiter's real-timer wait path.
	clk.Advance(2000)
	l.Request(1, PriorityUser, nil, OpWrite)
	require.EqualValues(t, 2, l.GetTotalBytesThrough(PriorityUser))
	require.EqualValues(t, 2, l.GetTotalRequests(PriorityUser))
}

func TestDefaultBurstTracksRefillBytesPerPeriod(t *testing.T) {
	clk := newManualClock()
	l := newTestLimiter(t, 1000, clk, 0)
	defer l.Close()

	// refillBytesPerPeriod = 1000 * 1000us / 1e6 = 1.
	require.EqualValues(t, 1, l.refillBytesPerPeriod.Load())
	require.EqualValues(t, 1, l.GetSingleBurstBytes())
}

func TestModeGatesRequestToken(t *testing.T) {
	clk := newManualClock()
	l, err := New(Options{
		RateBytesPerSec: 1,
		RefillPeriodUs:  1000,
		Mode:            ModeWritesOnly,
		Clock:           clk,
		MonotonicClock:  clk,
		TenantSource:    FixedTenantSource(0),
	})
	require.NoError(t, err)
	defer l.Close()

	// Reads are not throttled under ModeWritesOnly, so RequestToken is a
	// pass-through: the full byte count is returned without blocking.
	got := l.RequestToken(10<<20, 0, PriorityUser, OpRead)
	require.EqualValues(t, 10<<20, got)
}

func TestReadWithNoInnerLimiterIsChargedLocally(t *testing.T) {
	clk := newManualClock()
	l := newTestLimiter(t, 1000, clk, 0)
	defer l.Close()

	// ModeAll limiter with no inner read limiter configured: OpRead is
	// throttled by this limiter itself. Forwarding to an inner limiter
	// only happens when one was built via Options.ReadRateBytesPerSec,
	// not implied by Mode alone.
	l.Request(1, PriorityUser, nil, OpRead)
	require.EqualValues(t, 1, l.GetTotalRequests(PriorityUser))
}

func TestComposedReadLimiterForwards(t *testing.T) {
	clk := newManualClock()
	l, err := New(Options{
		RateBytesPerSec:     1000,
		RefillPeriodUs:      1000,
		Mode:                ModeWritesOnly,
		ReadRateBytesPerSec: 500,
		Clock:               clk,
		MonotonicClock:      clk,
		TenantSource:        FixedTenantSource(0),
	})
	require.NoError(t, err)
	defer l.Close()
	require.NotNil(t, l.innerRead)

	l.Request(1, PriorityUser, nil, OpRead)
	require.EqualValues(t, 1, l.innerRead.GetTotalRequests(PriorityUser))
	require.EqualValues(t, 0, l.GetTotalRequests(PriorityUser))
}

func TestSetSingleBurstBytesRejectsNegative(t *testing.T) {
	clk := newManualClock()
	l := newTestLimiter(t, 1000, clk, 0)
	defer l.Close()

	require.Error(t, l.SetSingleBurstBytes(-1))
	require.NoError(t, l.SetSingleBurstBytes(5000))
	require.EqualValues(t, 5000, l.GetSingleBurstBytes())
}

func TestCloseDrainsPendingRequests(t *testing.T) {
	clk := newManualClock()
	// RateBytesPerSec=1 with a 1ms period rounds refillBytesPerPeriod down
	// to 0, so this request can never be satisfied by a refill; the only
	// way it ever returns is via Close's drain. SingleBurstBytes is
	// overridden so the request itself is still within the allowed single
	// burst despite the bucket sizing to 0.
	l, err := New(Options{
		RateBytesPerSec:  1,
		RefillPeriodUs:   1000,
		SingleBurstBytes: 2000,
		Mode:             ModeAll,
		Clock:            clk,
		MonotonicClock:   clk,
		TenantSource:     FixedTenantSource(0),
	})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		l.Request(1500, PriorityLow, nil, OpWrite)
		close(done)
	}()

	l.Close()
	<-done
}

func TestResolveTenant(t *testing.T) {
	id, ok := resolveTenant(TenantInvalid)
	require.False(t, ok)

	id, ok = resolveTenant(TenantUnset)
	require.True(t, ok)
	require.Equal(t, TenantFlushDefault, id)

	id, ok = resolveTenant(TenantID(3))
	require.True(t, ok)
	require.Equal(t, TenantID(3), id)
}

// perPriorityCounters snapshots GetTotalRequests/GetTotalBytesThrough for
// every priority, so a whole run's worth of counters can be compared in
// one pretty.Diff instead of one require.Equal per priority per field.
type perPriorityCounters struct {
	Requests     [PriorityTotal]int64
	BytesThrough [PriorityTotal]int64
}

func snapshotCounters(l *MultiTenantRateLimiter) perPriorityCounters {
	var c perPriorityCounters
	for pri := PriorityLow; pri < PriorityTotal; pri++ {
		c.Requests[pri] = l.GetTotalRequests(pri)
		c.BytesThrough[pri] = l.GetTotalBytesThrough(pri)
	}
	return c
}

func TestCountersMatchExpectedSnapshot(t *testing.T) {
	clk := newManualClock()
	// Rate high enough that both requests below are granted in full on
	// the first refill, so the run finishes without needing to wait out
	// any additional periods.
	l := newTestLimiter(t, 10_000_000, clk, 0)
	defer l.Close()

	l.Request(300, PriorityLow, nil, OpWrite)
	l.Request(200, PriorityHigh, nil, OpWrite)

	got := snapshotCounters(l)
	want := perPriorityCounters{
		Requests:     [PriorityTotal]int64{PriorityLow: 1, PriorityHigh: 1},
		BytesThrough: [PriorityTotal]int64{PriorityLow: 300, PriorityHigh: 200},
	}
	if diff := pretty.Diff(got, want); diff != nil {
		t.Fatalf("counters diverged from expected snapshot: %v", diff)
	}
}
