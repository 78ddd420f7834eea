package rstmgr

import (
	"fmt"
	"strings"
)

// ResetInfo is the raw reset-info bitfield.
type ResetInfo uint32

// Reset-info bit layout. Bit positions are fixed by hardware.
const (
	InfoPor          ResetInfo = 1 << 0
	InfoLowPowerExit ResetInfo = 1 << 1
	InfoSw           ResetInfo = 1 << 2
	InfoEscalation   ResetInfo = 1 << 3

	// InfoHwReqShift is the first bit of the per-peripheral hardware reset
	// request field.
	InfoHwReqShift = 4
)

// Recognized returns the subset of bits the classifier acts on.
func (r ResetInfo) Recognized() ResetInfo {
	return r & (InfoPor | InfoEscalation)
}

// Has reports whether all bits in mask are set.
func (r ResetInfo) Has(mask ResetInfo) bool {
	return mask != 0 && r&mask == mask
}

// String renders set bits by name, e.g. "por|escalation".
func (r ResetInfo) String() string {
	if r == 0 {
		return "none"
	}
	var names []string
	named := []struct {
		bit  ResetInfo
		name string
	}{
		{InfoPor, "por"},
		{InfoLowPowerExit, "low_power_exit"},
		{InfoSw, "sw"},
		{InfoEscalation, "escalation"},
	}
	rest := r
	for _, n := range named {
		if r&n.bit != 0 {
			names = append(names, n.name)
			rest &^= n.bit
		}
	}
	if rest != 0 {
		names = append(names, fmt.Sprintf("hw_req(%#x)", uint32(rest>>InfoHwReqShift)))
	}
	return strings.Join(names, "|")
}

// Register is the reset-info register as seen by software.
// Read returns the latched bits; Clear clears the given bits.
type Register interface {
	Read() ResetInfo
	Clear(bits ResetInfo)
}
