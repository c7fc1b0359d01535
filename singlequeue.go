package tgrl

import (
	"bytes"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/devbali/tgrl/internal/base"
	"github.com/devbali/tgrl/internal/clock"
	"github.com/devbali/tgrl/internal/invariants"
	"github.com/devbali/tgrl/internal/rate"
	"github.com/olekukonko/tablewriter"
)

// SingleQueueRateLimiter is the legacy variant that predates per-tenant
// buckets: one continuous token bucket shared by every caller, with
// fairness-randomized priority draining (generatePriorityIterationOrder)
// rather than the multi-tenant path's strict per-tenant priority order.
// See spec.md §9 and DESIGN.md for why it's retained alongside
// MultiTenantRateLimiter rather than replaced by it.
type SingleQueueRateLimiter struct {
	mode                Mode
	clock               clock.Clock
	timedWaiter         clock.CondTimedWaiter
	stats               Stats
	logger              base.Logger
	singleBurstBytesRaw atomic.Int64

	bucket *rate.Limiter

	// totalCalls and callsPerPriority back the same non-contractual
	// periodic diagnostic dump MultiTenantRateLimiter does (spec.md §9),
	// scoped to priority rather than tenant since the single-queue variant
	// has no tenant dimension.
	totalCalls       atomic.Int64
	callsPerPriority [PriorityTotal]atomic.Int64

	mu struct {
		sync.Mutex

		queue [PriorityTotal]fifo

		waitUntilDrainPending bool
		stop                  bool
		requestsToWait        int32
		exitCv                *sync.Cond

		fairness int
		rng      *rand.Rand

		totalRequests     [PriorityTotal]int64
		totalBytesThrough [PriorityTotal]int64
	}
}

// NewSingleQueueRateLimiter constructs a SingleQueueRateLimiter from opts.
// ReadRateBytesPerSec and AutoTuned, which only make sense for the
// per-tenant path, are ignored.
func NewSingleQueueRateLimiter(opts Options) (*SingleQueueRateLimiter, error) {
	opts = opts.EnsureDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	l := &SingleQueueRateLimiter{
		mode:        opts.Mode,
		clock:       opts.Clock,
		timedWaiter: clock.NewCondTimedWaiter(opts.Clock),
		stats:       opts.Stats,
		logger:      opts.Logger,
		bucket:      rate.NewLimiter(float64(opts.RateBytesPerSec), float64(opts.RateBytesPerSec)),
	}
	l.singleBurstBytesRaw.Store(opts.SingleBurstBytes)
	l.mu.fairness = opts.Fairness
	seed := uint64(opts.Clock.NowMicros())
	l.mu.rng = rand.New(rand.NewPCG(seed, seed^0x2545f4914f6cdd1d))
	l.mu.exitCv = sync.NewCond(&l.mu.Mutex)
	return l, nil
}

// Mode implements RateLimiter.
func (l *SingleQueueRateLimiter) Mode() Mode {
	return l.mode
}

// SetBytesPerSecond implements RateLimiter. The bucket's burst is set to
// the new rate (one second's worth of bytes), so the default burst tracks
// rate changes the way MultiTenantRateLimiter's default burst tracks its
// rate-derived refillBytesPerPeriod, unless SetSingleBurstBytes has
// overridden it.
func (l *SingleQueueRateLimiter) SetBytesPerSecond(n int64) {
	invariants.Assert(n > 0, "tgrl: SetBytesPerSecond requires n > 0, got %d", n)
	l.bucket.SetRateAndBurst(float64(n), float64(n))
}

// SetSingleBurstBytes implements RateLimiter.
func (l *SingleQueueRateLimiter) SetSingleBurstBytes(n int64) error {
	if n < 0 {
		return errors.Newf("tgrl: single_burst_bytes must be >= 0, got %d", n)
	}
	l.singleBurstBytesRaw.Store(n)
	return nil
}

// GetSingleBurstBytes implements RateLimiter.
func (l *SingleQueueRateLimiter) GetSingleBurstBytes() int64 {
	if raw := l.singleBurstBytesRaw.Load(); raw > 0 {
		return raw
	}
	return int64(l.bucket.Burst())
}

// GetTotalBytesThrough implements RateLimiter.
func (l *SingleQueueRateLimiter) GetTotalBytesThrough(pri Priority) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.mu.totalBytesThrough[pri]
}

// GetTotalRequests implements RateLimiter.
func (l *SingleQueueRateLimiter) GetTotalRequests(pri Priority) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.mu.totalRequests[pri]
}

// RequestToken implements RateLimiter.
func (l *SingleQueueRateLimiter) RequestToken(bytes int64, alignment int64, pri Priority, op OpType) int64 {
	if pri >= PriorityTotal || !l.mode.IsRateLimited(op) {
		return bytes
	}
	if burst := l.GetSingleBurstBytes(); bytes > burst {
		bytes = burst
	}
	bytes = truncateToAlignment(bytes, alignment)
	l.Request(bytes, pri, nil, op)
	return bytes
}

// Request implements RateLimiter.
func (l *SingleQueueRateLimiter) Request(bytes int64, pri Priority, stats Stats, op OpType) {
	invariants.Assert(bytes >= 0, "tgrl: request bytes must be >= 0, got %d", bytes)
	invariants.Assert(bytes <= l.GetSingleBurstBytes(), "tgrl: request bytes %d exceeds single burst %d", bytes, l.GetSingleBurstBytes())
	if bytes < 0 {
		bytes = 0
	}
	if stats == nil {
		stats = l.stats
	}

	l.callsPerPriority[pri].Add(1)
	if l.totalCalls.Add(1) >= callsLogInterval {
		l.totalCalls.Store(0)
		counts := make([]int64, PriorityTotal)
		for p := PriorityLow; p < PriorityTotal; p++ {
			counts[p] = l.callsPerPriority[p].Load()
		}
		l.logger.Infof("tgrl: single-queue calls per priority: %v", counts)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.mu.stop {
		return
	}
	l.mu.totalRequests[pri]++

	if l.allQueuesEmptyLocked() {
		if ok, _ := l.bucket.TryFulfill(float64(bytes)); ok {
			l.mu.totalBytesThrough[pri] += bytes
			return
		}
	}

	req := newRequest(bytes, &l.mu.Mutex)
	l.mu.queue[pri].pushBack(req)

	waitStartUs := l.clock.NowMicros()
	for !l.mu.stop && req.requestBytes > 0 {
		if l.mu.waitUntilDrainPending {
			req.cv.Wait()
		} else {
			wait := l.bucket.WaitEstimate(float64(req.requestBytes))
			if wait <= 0 {
				wait = time.Millisecond
			}
			deadline := l.clock.NowMicros() + wait.Microseconds()
			stats.RecordTick(NumberRateLimiterDrains)
			l.mu.waitUntilDrainPending = true
			l.timedWaiter.TimedWait(req.cv, &l.mu.Mutex, deadline)
			l.mu.waitUntilDrainPending = false
			l.drainLocked()
		}
		if req.requestBytes == 0 {
			l.signalFrontmostPendingLocked()
		}
	}
	if recorder, ok := stats.(waitLatencyRecorder); ok {
		recorder.RecordWaitLatency(time.Duration(l.clock.NowMicros()-waitStartUs) * time.Microsecond)
	}

	if l.mu.stop {
		l.mu.requestsToWait--
		l.mu.exitCv.Signal()
	}
}

// DebugString renders the current per-priority queue depths as an ASCII
// table, for operator diagnostics.
func (l *SingleQueueRateLimiter) DebugString() string {
	l.mu.Lock()
	defer l.mu.Unlock()

	var buf bytes.Buffer
	tbl := tablewriter.NewWriter(&buf)
	tbl.SetHeader([]string{"priority", "queued"})
	for p := PriorityLow; p < PriorityTotal; p++ {
		tbl.Append([]string{p.String(), fmt.Sprintf("%d", l.mu.queue[p].len())})
	}
	tbl.Render()
	return buf.String()
}

func (l *SingleQueueRateLimiter) allQueuesEmptyLocked() bool {
	for p := PriorityLow; p < PriorityTotal; p++ {
		if !l.mu.queue[p].empty() {
			return false
		}
	}
	return true
}

// drainLocked grants as many queued requests as the bucket currently
// allows, visiting priorities in generatePriorityIterationOrder's
// fairness-randomized order rather than strict priority (spec.md §4.5).
func (l *SingleQueueRateLimiter) drainLocked() {
	order := generatePriorityIterationOrder(l.mu.fairness, l.mu.rng)
	for _, pri := range order {
		q := &l.mu.queue[pri]
		for !q.empty() {
			next := q.front()
			ok, _ := l.bucket.TryFulfill(float64(next.requestBytes))
			if !ok {
				break
			}
			l.mu.totalBytesThrough[pri] += next.bytes
			next.requestBytes = 0
			q.popFront()
			next.cv.Signal()
		}
	}
}

func (l *SingleQueueRateLimiter) signalFrontmostPendingLocked() {
	for p := PriorityTotal - 1; p >= PriorityLow; p-- {
		q := &l.mu.queue[p]
		if !q.empty() {
			q.front().cv.Signal()
			return
		}
	}
}

// Close implements RateLimiter.
func (l *SingleQueueRateLimiter) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.mu.stop = true
	var pending int32
	for p := PriorityLow; p < PriorityTotal; p++ {
		pending += int32(l.mu.queue[p].len())
	}
	l.mu.requestsToWait = pending

	for p := PriorityTotal - 1; p >= PriorityLow; p-- {
		l.mu.queue[p].signalAll()
	}

	for l.mu.requestsToWait > 0 {
		l.mu.exitCv.Wait()
	}
}
