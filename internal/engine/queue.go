package engine

import "sync"

// Policy picks the next resumption unit from the ready set. The protocol
// guarantees only eventual, exactly-once execution; fairness and ordering
// among ready units is deliberately a pluggable decision. ready is in
// enqueue order and never empty.
type Policy interface {
	Next(ready []*ResumptionUnit) int
}

// FIFOPolicy runs units in global enqueue order. The default.
type FIFOPolicy struct{}

// Next implements Policy.
func (FIFOPolicy) Next([]*ResumptionUnit) int { return 0 }

// LIFOPolicy runs the most recently enqueued unit first. Useful in tests
// that must show ordering is policy, not protocol.
type LIFOPolicy struct{}

// Next implements Policy.
func (LIFOPolicy) Next(ready []*ResumptionUnit) int { return len(ready) - 1 }

// unitQueue holds the ready resumption units across all contexts.
//
// The queue is unbounded: a cascade of handoffs may enqueue arbitrarily
// many units without blocking. Thread-safety covers external cancellation
// walking the queue while the single-threaded run loop dequeues.
type unitQueue struct {
	mu    sync.Mutex
	units []*ResumptionUnit
}

func newUnitQueue() *unitQueue {
	return &unitQueue{units: make([]*ResumptionUnit, 0, 16)}
}

// Enqueue appends a unit to the ready set.
func (q *unitQueue) Enqueue(u *ResumptionUnit) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.units = append(q.units, u)
}

// Dequeue removes and returns the unit chosen by the policy, or nil when
// the queue is empty.
func (q *unitQueue) Dequeue(p Policy) *ResumptionUnit {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.units) == 0 {
		return nil
	}

	i := p.Next(q.units)
	if i < 0 || i >= len(q.units) {
		i = 0
	}
	u := q.units[i]

	// Nil out the vacated slot so the backing array does not retain the
	// unit (and its task) until reallocation.
	copy(q.units[i:], q.units[i+1:])
	q.units[len(q.units)-1] = nil
	q.units = q.units[:len(q.units)-1]

	return u
}

// Len returns the number of ready units.
func (q *unitQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.units)
}
