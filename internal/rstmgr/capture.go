package rstmgr

import (
	"errors"
	"sync"
)

// ErrConsumed is returned when a Capture is consumed a second time.
var ErrConsumed = errors.New("reset info already consumed this boot")

// Capture is single-use access to the reset-info register for one boot.
type Capture struct {
	mu       sync.Mutex
	reg      Register
	consumed bool
}

// Acquire wraps reg for one boot lifetime.
func Acquire(reg Register) *Capture {
	return &Capture{reg: reg}
}

// Consume reads the register and clears every bit it observed.
func (c *Capture) Consume() (ResetInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.consumed {
		return 0, ErrConsumed
	}
	c.consumed = true

	raw := c.reg.Read()
	if raw != 0 {
		c.reg.Clear(raw)
	}
	return raw, nil
}

// Cause consumes the register and classifies the snapshot.
func (c *Capture) Cause() (ResetCause, error) {
	raw, err := c.Consume()
	if err != nil {
		return ResetCause{}, err
	}
	return Classify(raw), nil
}

// Consumed reports whether Consume has already run.
func (c *Capture) Consumed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.consumed
}
