package engine

import (
	"sort"
	"sync"
	"time"

	"go-synesthesia/debug"
)

// DefaultTolerance is the quantization tolerance: a request arriving closer
// than this to the next tick is pushed to the following one.
const DefaultTolerance = 50 * time.Millisecond

type pendingRequest struct {
	req NoteRequest
	seq uint64 // arrival order, breaks priority ties FIFO
}

// Quantizer converts asynchronous note requests into grid-aligned buckets.
// At most one bucket exists per future tick; flushing is idempotent.
type Quantizer struct {
	clock     *Clock
	tolerance time.Duration

	mu        sync.Mutex
	buckets   map[int64][]pendingRequest
	seq       uint64
	lateDrops uint64
}

func NewQuantizer(clock *Clock, tolerance time.Duration) *Quantizer {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return &Quantizer{
		clock:     clock,
		tolerance: tolerance,
		buckets:   make(map[int64][]pendingRequest),
	}
}

// Submit binds a request to a grid tick. The target is the earliest strictly
// future tick; if that tick is closer than the tolerance the request is too
// imminent to schedule reliably and binds to the one after. A tick that has
// already fired is never a candidate. Before the clock starts this is a
// no-op.
func (q *Quantizer) Submit(req NoteRequest) {
	if !q.clock.Running() {
		return
	}
	now := req.At
	if now.IsZero() {
		now = time.Now()
		req.At = now
	}

	target := q.clock.TickAfter(now)
	if q.clock.TimeOf(target).Sub(now) < q.tolerance {
		target++
	}
	if cur := q.clock.CurrentTick(); target <= cur {
		target = cur + 1
	}

	q.mu.Lock()
	q.seq++
	q.buckets[target] = append(q.buckets[target], pendingRequest{req: req, seq: q.seq})
	q.mu.Unlock()
}

// Flush drains every bucket at or before the given tick and returns the
// requests ordered by descending priority, ties broken by arrival order.
// Requests that aged past one grid interval (plus tolerance) by the tick's
// scheduled time are dropped - backpressure against sensor bursts and
// clock catch-up skips. Flushing with no pending buckets is a no-op.
func (q *Quantizer) Flush(tick GridTick) []NoteRequest {
	q.mu.Lock()
	var batch []pendingRequest
	for idx, bucket := range q.buckets {
		if idx <= tick.Index {
			batch = append(batch, bucket...)
			delete(q.buckets, idx)
		}
	}
	q.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	maxAge := q.clock.Interval() + q.tolerance
	kept := batch[:0]
	for _, p := range batch {
		if !p.req.At.IsZero() && tick.At.Sub(p.req.At) > maxAge {
			q.mu.Lock()
			q.lateDrops++
			q.mu.Unlock()
			debug.Log("quant", "late drop layer=%s age=%s", p.req.Layer, tick.At.Sub(p.req.At))
			continue
		}
		kept = append(kept, p)
	}

	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].req.Priority != kept[j].req.Priority {
			return kept[i].req.Priority > kept[j].req.Priority
		}
		return kept[i].seq < kept[j].seq
	})

	out := make([]NoteRequest, len(kept))
	for i, p := range kept {
		out[i] = p.req
	}
	return out
}

// CancelLayer removes all pending requests belonging to a layer.
func (q *Quantizer) CancelLayer(layer string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for idx, bucket := range q.buckets {
		kept := bucket[:0]
		for _, p := range bucket {
			if p.req.Layer != layer {
				kept = append(kept, p)
			}
		}
		if len(kept) == 0 {
			delete(q.buckets, idx)
		} else {
			q.buckets[idx] = kept
		}
	}
}

// CancelAll discards every pending request.
func (q *Quantizer) CancelAll() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.buckets = make(map[int64][]pendingRequest)
}

// Pending returns the number of unflushed requests.
func (q *Quantizer) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for _, b := range q.buckets {
		n += len(b)
	}
	return n
}

// LateDrops returns the number of requests dropped past their deadline.
func (q *Quantizer) LateDrops() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.lateDrops
}
