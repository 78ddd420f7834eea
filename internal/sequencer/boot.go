package sequencer

import (
	"context"

	"github.com/roach88/escalate/internal/rstmgr"
)

// NMISource selects which NMI input the CPU accepts.
type NMISource string

// AlertID names an alert that software can force.
type AlertID string

const (
	// NMISourceAlert is the alert handler's escalation NMI.
	NMISourceAlert NMISource = "alert"
	// NMISourceWdog is the always-on watchdog bark.
	NMISourceWdog NMISource = "wdog"

	// AlertRecovSwErr is the CPU's recoverable software-error alert.
	AlertRecovSwErr AlertID = "recov_sw_err"
	// AlertFatalSwErr is the CPU's fatal software-error alert.
	AlertFatalSwErr AlertID = "fatal_sw_err"
)

// EscalationTrigger drives the alert pipeline. Every call is synchronous and
// takes effect before it returns.
type EscalationTrigger interface {
	ConfigureEscalation() error
	AdvanceKeyManager() error
	EnableNMI(src NMISource) error
	ForceAlert(id AlertID) error
}

// InterruptWaiter suspends the CPU until an interrupt arrives.
//
// On a healthy chip the escalation resets the device during the wait, so the
// call never returns. A nil return means the CPU resumed.
type InterruptWaiter interface {
	WaitForInterrupt(ctx context.Context) error
}

// SyncChannel is the harness-facing console.
type SyncChannel interface {
	Info(msg string)
	Errorf(format string, args ...any)
}

// Boot bundles the peripheral handles of one boot lifetime.
type Boot struct {
	Resets  *rstmgr.Capture
	Trigger EscalationTrigger
	Waiter  InterruptWaiter
	Console SyncChannel
}

// NewBoot assembles the handles for a single lifetime.
func NewBoot(resets *rstmgr.Capture, trigger EscalationTrigger, waiter InterruptWaiter, console SyncChannel) *Boot {
	return &Boot{
		Resets:  resets,
		Trigger: trigger,
		Waiter:  waiter,
		Console: console,
	}
}
