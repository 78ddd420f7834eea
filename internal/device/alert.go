package device

import (
	"context"
	"fmt"
	"runtime"

	"github.com/roach88/escalate/internal/rstmgr"
	"github.com/roach88/escalate/internal/sequencer"
	"github.com/roach88/escalate/internal/trace"
)

// alertHandler is the slice of the alert handler the test uses: one class
// that both CPU software-error alerts feed, with three escalation phases.
type alertHandler struct {
	configured bool
	escalating bool
	nmiPending bool
	forced     sequencer.AlertID
}

// ConfigureEscalation enables the CPU alerts on a class whose escalation
// phases are NMI, life-cycle escalation and chip reset.
func (c *Chip) ConfigureEscalation() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.alerts.configured = true
	return nil
}

// EnableNMI lets the CPU take NMIs from src.
func (c *Chip) EnableNMI(src sequencer.NMISource) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !knownNMISources[src] {
		return fmt.Errorf("%w: %q", ErrUnknownNMISource, src)
	}
	c.nmi[src] = true
	return nil
}

// ForceAlert raises id. On a configured class this starts escalation.
func (c *Chip) ForceAlert(id sequencer.AlertID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !knownAlerts[id] {
		return fmt.Errorf("%w: %q", ErrUnknownAlert, id)
	}
	c.emitLocked(trace.KindHW, "", fmt.Sprintf("%s %s", trace.HWAlertForced, id))
	if !c.alerts.configured {
		return nil
	}
	c.alerts.escalating = true
	c.alerts.forced = id
	if c.nmi[sequencer.NMISourceAlert] && !c.faults.SkipNMI {
		c.alerts.nmiPending = true
	}
	return nil
}

// WaitForInterrupt suspends the CPU.
//
// With escalation in progress the remaining phases run here. On a healthy
// chip the final phase resets the device and this call never returns. With
// nothing pending it blocks until ctx is done.
func (c *Chip) WaitForInterrupt(ctx context.Context) error {
	c.mu.Lock()
	if c.alerts.escalating {
		interrupted := false
		if c.alerts.nmiPending {
			c.alerts.nmiPending = false
			interrupted = true
			c.emitLocked(trace.KindHW, "", trace.HWNMIServiced)
		}
		c.emitLocked(trace.KindHW, "", trace.HWLCEscalated)

		if !c.faults.SuppressReset {
			c.resetLocked(rstmgr.InfoEscalation)
			c.mu.Unlock()
			runtime.Goexit()
		}
		c.alerts.escalating = false
		if interrupted {
			c.mu.Unlock()
			return nil
		}
	}
	c.hung = true
	c.mu.Unlock()

	<-ctx.Done()
	return ctx.Err()
}

// NMIEnabled reports whether src is enabled.
func (c *Chip) NMIEnabled(src sequencer.NMISource) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nmi[src]
}
