package engine

import "sync/atomic"

// Clock is a monotonic logical clock stamping every trace event.
//
// All events carry a strictly increasing seq number from this clock, so
// ordering is deterministic and replay reproduces it exactly. Wall-clock
// time never participates in ordering.
//
// Thread-safety: safe for concurrent use, though the engine's
// single-writer run loop is normally the only caller of Next.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock starting at a specific sequence number, for
// callers that need stamps relative to a known position. Replay is not
// one of them: it re-executes the run from scratch with a fresh clock.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number and advances the clock.
// Each call returns a unique, increasing value.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the clock position without advancing it.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
