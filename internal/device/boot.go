package device

import (
	"context"
	"fmt"

	"github.com/roach88/escalate/internal/console"
	"github.com/roach88/escalate/internal/rstmgr"
	"github.com/roach88/escalate/internal/sequencer"
	"github.com/roach88/escalate/internal/trace"
)

// BootFunc is the firmware test body run in each lifetime.
type BootFunc func(ctx context.Context, b *sequencer.Boot) bool

// Result is how a lifetime ended.
type Result string

const (
	ResultPass  Result = "pass"
	ResultFail  Result = "fail"
	ResultReset Result = "reset"
	ResultHung  Result = "hung"
)

// BootRecord describes one finished lifetime.
type BootRecord struct {
	Index int

	// ResetInfo is what the register held when the lifetime started.
	ResetInfo rstmgr.ResetInfo

	Result Result

	// Console holds every UART line of this lifetime.
	Console []console.Line

	// Panic is set when the test body panicked.
	Panic string
}

// Terminal reports whether the lifetime produced a framework verdict.
func (r BootRecord) Terminal() bool {
	return r.Result == ResultPass || r.Result == ResultFail
}

// Boot runs fn as one lifetime and waits for it to end.
//
// The peripheral handles passed to fn are created fresh and belong to this
// lifetime only.
func (c *Chip) Boot(ctx context.Context, fn BootFunc) BootRecord {
	c.mu.Lock()
	c.boots++
	c.bootIdx = c.boots
	c.resetting = false
	c.hung = false
	rec := BootRecord{Index: c.bootIdx, ResetInfo: c.resetInfo}
	c.mu.Unlock()

	con := console.New(c.consoleW, func(l console.Line) {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.emitLocked(trace.KindConsole, l.Level.String(), l.Text)
	})
	b := sequencer.NewBoot(rstmgr.Acquire(c.ResetRegister()), c, c, con)

	var returned, pass bool
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer func() {
			if r := recover(); r != nil {
				rec.Panic = fmt.Sprint(r)
			}
		}()
		pass = fn(ctx, b)
		returned = true
	}()
	<-done

	rec.Console = con.Lines()

	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.resetting:
		rec.Result = ResultReset
	case c.hung && ctx.Err() != nil:
		rec.Result = ResultHung
	case returned && pass:
		rec.Result = ResultPass
	default:
		rec.Result = ResultFail
	}
	return rec
}
