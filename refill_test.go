package tgrl

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// enqueueLocked is a test-only helper that pushes a request directly onto
// l's queue matrix, bypassing the public Request entry point so refill
// behavior can be exercised without spinning up goroutines.
func enqueueLocked(l *MultiTenantRateLimiter, tenant TenantID, pri Priority, n int64) *request {
	req := newRequest(n, &l.mu.Mutex)
	l.mu.queue[tenant][pri].pushBack(req)
	return req
}

func TestRefillStrictPriorityWithinTenant(t *testing.T) {
	clk := newManualClock()
	l := newTestLimiter(t, 100, clk, 0) // refillBytesPerPeriod = 100*1000/1e6 = 0

	l.mu.Lock()
	l.refillBytesPerPeriod.Store(10)
	low := enqueueLocked(l, 0, PriorityLow, 10)
	high := enqueueLocked(l, 0, PriorityHigh, 10)
	l.refillAndGrantLocked()
	l.mu.Unlock()

	// Only 10 bytes available this period: PriorityHigh must drain fully
	// before PriorityLow gets anything at all.
	//
	// low is left behind in the queue (the grant was only partial), so
	// Close's drain-count accounting — which expects every queued request
	// to be backed by a live goroutine that will decrement it — is not
	// exercised here; that path is covered by TestCloseDrainsPendingRequests.
	require.EqualValues(t, 0, high.requestBytes)
	require.EqualValues(t, 10, low.requestBytes)
}

func TestRefillPartialGrant(t *testing.T) {
	clk := newManualClock()
	l := newTestLimiter(t, 100, clk, 0)

	l.mu.Lock()
	l.refillBytesPerPeriod.Store(10)
	req := enqueueLocked(l, 0, PriorityUser, 25)
	l.refillAndGrantLocked()
	l.mu.Unlock()

	require.EqualValues(t, 15, req.requestBytes)
	require.EqualValues(t, 0, l.mu.available[0])
}

func TestRefillNoCarryOverAcrossPeriods(t *testing.T) {
	clk := newManualClock()
	l := newTestLimiter(t, 100, clk, 0)

	l.mu.Lock()
	l.refillBytesPerPeriod.Store(10)
	l.refillAndGrantLocked()
	require.EqualValues(t, 10, l.mu.available[0])
	// No requests consumed anything this period; the next refill must
	// reset to refillBytesPerPeriod, not 10+10.
	l.refillAndGrantLocked()
	require.EqualValues(t, 10, l.mu.available[0])
	l.mu.Unlock()
	defer l.Close()
}

func TestRefillTenantsAreIndependent(t *testing.T) {
	clk := newManualClock()
	l := newTestLimiter(t, 100, clk, 0)

	l.mu.Lock()
	l.refillBytesPerPeriod.Store(10)
	reqT0 := enqueueLocked(l, 0, PriorityUser, 10)
	reqT1 := enqueueLocked(l, 1, PriorityUser, 10)
	l.refillAndGrantLocked()
	l.mu.Unlock()
	defer l.Close()

	// Tenant 0's request exhausts only tenant 0's bucket; tenant 1 still
	// gets its own full allowance.
	require.EqualValues(t, 0, reqT0.requestBytes)
	require.EqualValues(t, 0, reqT1.requestBytes)
}

func TestCalculateRefillBytesPerPeriodClampsOnOverflow(t *testing.T) {
	got := calculateRefillBytesPerPeriod(1<<62, 1<<62)
	require.Greater(t, got, int64(0))
	require.LessOrEqual(t, got, int64(1<<63-1)/1_000_000)
}

func TestCalculateRefillBytesPerPeriodZeroRate(t *testing.T) {
	require.EqualValues(t, 0, calculateRefillBytesPerPeriod(0, 1000))
}
