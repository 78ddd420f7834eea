// Package rstmgr decodes the reset manager's reset-info register.
//
// The reset-info register is the only state that survives a chip reset, so it
// is the sole channel between one boot lifetime and the next. Its bits are
// latched by hardware and stay set until software clears them.
//
// # Consumption
//
// Each boot consumes the register exactly once through a Capture:
//
//	capture := rstmgr.Acquire(reg)
//	cause, err := capture.Cause()
//
// Consume reads and clears under a single lock, so nothing else in the boot can
// observe the same bits twice. A second Consume on the same Capture returns
// ErrConsumed.
//
// # Classification
//
// Classify is a pure decode. The power-on bit dominates: a boot that sees both
// the power-on and escalation bits is the first boot after power loss.
package rstmgr
