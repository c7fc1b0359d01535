package tgrl

import "sync"

// request is the per-pending-caller state described in spec.md §3. It is
// stack-allocated by the calling goroutine (an ordinary Go local
// variable, the closest analog to the original's caller-stack Req) and
// lives from enqueue until it is granted or the limiter shuts down. The
// queue that holds it never outlives it, because the owning goroutine is
// blocked on cv the entire time it's reachable from a queue.
type request struct {
	// bytes is the originally requested byte count. It never changes; it
	// is what gets added to the per-priority byte-through counters on
	// grant, not requestBytes (which may have been partially granted
	// already).
	bytes int64
	// requestBytes is the mutable outstanding demand. The invariant
	// requestBytes == 0 <=> this request is in zero queues holds at every
	// point the request mutex is not held.
	requestBytes int64
	cv           *sync.Cond
}

// newRequest constructs a request for n bytes, with its condition
// variable bound to mu (the limiter's single request mutex).
func newRequest(n int64, mu sync.Locker) *request {
	return &request{bytes: n, requestBytes: n, cv: sync.NewCond(mu)}
}

// fifo is a tiny FIFO queue of pending requests. A slice suffices here:
// per-(tenant, priority) queue depths are expected to stay small (bounded
// by how many goroutines are concurrently blocked on one bucket), popping
// just reslices past the front, and it avoids pulling in container/list
// for a one-file data structure.
type fifo struct {
	items []*request
}

func (q *fifo) pushBack(r *request) {
	q.items = append(q.items, r)
}

func (q *fifo) front() *request {
	if len(q.items) == 0 {
		return nil
	}
	return q.items[0]
}

func (q *fifo) popFront() {
	if len(q.items) == 0 {
		return
	}
	// Clear the dropped slot so the request isn't kept alive by the
	// backing array longer than necessary.
	q.items[0] = nil
	q.items = q.items[1:]
}

func (q *fifo) empty() bool {
	return len(q.items) == 0
}

func (q *fifo) len() int {
	return len(q.items)
}

// signalAll wakes every request's condition variable, used during
// shutdown draining (spec.md §4.6).
func (q *fifo) signalAll() {
	for _, r := range q.items {
		r.cv.Signal()
	}
}

// queueMatrix is the (tenant, priority) -> FIFO mapping of spec.md §3's
// "Queue matrix" component.
type queueMatrix [NumTenants][PriorityTotal]fifo

// signalFrontmostPending scans tenants in index order and, within each
// tenant, priorities from highest real priority down to PriorityLow,
// waking the first non-empty queue's front request and then stopping.
// This is the "at least one awake coordinator" handoff spec.md §4.3 step
// 5d requires after every grant.
func (qm *queueMatrix) signalFrontmostPending() {
	for t := 0; t < NumTenants; t++ {
		for p := PriorityTotal - 1; p >= PriorityLow; p-- {
			q := &qm[t][p]
			if !q.empty() {
				q.front().cv.Signal()
				return
			}
		}
	}
}
