package tgrl

// refillAndGrantLocked implements spec.md §4.4. Callers must hold l.mu.
func (l *MultiTenantRateLimiter) refillAndGrantLocked() {
	l.mu.nextRefillUs = l.monoClock.NowMonotonicMicros() + l.refillPeriodUs

	refillBytesPerPeriod := l.refillBytesPerPeriod.Load()
	for t := 0; t < NumTenants; t++ {
		// No carry-over: unused tokens from the previous period are
		// discarded, trading utilization for bounded latency (spec.md §9).
		l.mu.available[t] = refillBytesPerPeriod
	}

	var order [NumTenants]int
	for i := range order {
		order[i] = i
	}
	l.mu.rng.Shuffle(NumTenants, func(i, j int) {
		order[i], order[j] = order[j], order[i]
	})

	for _, tenant := range order {
		for p := PriorityTotal - 1; p >= PriorityLow; p-- {
			q := &l.mu.queue[tenant][p]
			for !q.empty() {
				next := q.front()
				if l.mu.available[tenant] < next.requestBytes {
					// Partial grant: reduce the outstanding demand by
					// whatever is left, exhaust the bucket, and move on
					// to the next priority for this tenant — this
					// priority's queue stays blocked until the next
					// refill.
					next.requestBytes -= l.mu.available[tenant]
					l.mu.available[tenant] = 0
					break
				}
				l.mu.available[tenant] -= next.requestBytes
				next.requestBytes = 0
				l.mu.totalBytesThrough[p] += next.bytes
				q.popFront()
				next.cv.Signal()
			}
		}
	}
}
