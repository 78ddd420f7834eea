package trace

import "sync/atomic"

// Stamper hands out strictly increasing sequence numbers.
type Stamper interface {
	Next() int64
}

// Clock is a monotonic logical clock. All events of a relay share one.
//
// Ordering never uses wall time, so two runs of the same relay produce the
// same seq values.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock whose first Next returns 1.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock resuming after start.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last issued sequence number.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
