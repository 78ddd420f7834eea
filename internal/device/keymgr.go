package device

import (
	"errors"
	"fmt"

	"github.com/roach88/escalate/internal/trace"
)

// ErrKeymgrState is returned when the key manager cannot advance from its
// current state.
var ErrKeymgrState = errors.New("keymgr: invalid state for advance")

// ErrKeymgrFault is returned when the KeymgrFault fault is injected.
var ErrKeymgrFault = errors.New("keymgr: otp contents not ready")

// KeymgrState is the key manager's working state.
type KeymgrState int

const (
	KeymgrReset KeymgrState = iota
	KeymgrInit
)

func (s KeymgrState) String() string {
	switch s {
	case KeymgrReset:
		return "reset"
	case KeymgrInit:
		return "init"
	default:
		return fmt.Sprintf("keymgr(%d)", int(s))
	}
}

// AdvanceKeyManager moves the key manager from Reset to Init.
func (c *Chip) AdvanceKeyManager() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.faults.KeymgrFault {
		return ErrKeymgrFault
	}
	if c.keymgr != KeymgrReset {
		return fmt.Errorf("%w: %s", ErrKeymgrState, c.keymgr)
	}
	c.keymgr = KeymgrInit
	c.emitLocked(trace.KindHW, "", trace.HWKeymgrInit)
	return nil
}

// KeymgrState returns the current key manager state.
func (c *Chip) KeymgrState() KeymgrState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.keymgr
}
