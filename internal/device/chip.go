package device

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/roach88/escalate/internal/rstmgr"
	"github.com/roach88/escalate/internal/sequencer"
	"github.com/roach88/escalate/internal/trace"
)

var (
	// ErrUnknownAlert is returned when forcing an alert the chip doesn't have.
	ErrUnknownAlert = errors.New("unknown alert")

	// ErrUnknownNMISource is returned when enabling a nonexistent NMI input.
	ErrUnknownNMISource = errors.New("unknown nmi source")
)

// Faults injects hardware misbehavior.
type Faults struct {
	// SuppressReset stops escalation before the chip reset phase.
	SuppressReset bool `yaml:"suppress_reset" json:"suppress_reset"`

	// SkipNMI drops the phase 0 interrupt.
	SkipNMI bool `yaml:"skip_nmi" json:"skip_nmi"`

	// KeymgrFault makes key manager advancement fail.
	KeymgrFault bool `yaml:"keymgr_fault" json:"keymgr_fault"`

	// InitialResetInfo replaces the power-on value latched by PowerOn.
	// Nil means a normal power-on reset; zero latches no cause at all.
	InitialResetInfo *uint32 `yaml:"initial_reset_info,omitempty" json:"initial_reset_info,omitempty"`
}

var knownAlerts = map[sequencer.AlertID]bool{
	sequencer.AlertRecovSwErr: true,
	sequencer.AlertFatalSwErr: true,
}

var knownNMISources = map[sequencer.NMISource]bool{
	sequencer.NMISourceAlert: true,
	sequencer.NMISourceWdog:  true,
}

// Chip is a simulated device. It is safe for use from the boot goroutine and
// the harness concurrently.
type Chip struct {
	mu sync.Mutex

	// Retained across resets.
	resetInfo rstmgr.ResetInfo
	boots     int

	// Volatile; cleared by every reset.
	keymgr KeymgrState
	alerts alertHandler
	nmi    map[sequencer.NMISource]bool

	// Current lifetime bookkeeping.
	bootIdx   int
	resetting bool
	hung      bool

	faults    Faults
	clock     trace.Stamper
	consoleW  io.Writer
	observers []func(trace.Event)
}

// Option configures a Chip.
type Option func(*Chip)

// WithFaults injects hardware faults.
func WithFaults(f Faults) Option {
	return func(c *Chip) {
		c.faults = f
	}
}

// WithClock shares a sequence clock with the caller.
func WithClock(clock trace.Stamper) Option {
	return func(c *Chip) {
		c.clock = clock
	}
}

// WithConsole mirrors the UART to w.
func WithConsole(w io.Writer) Option {
	return func(c *Chip) {
		c.consoleW = w
	}
}

// WithObserver receives every console line and hardware event.
func WithObserver(fn func(trace.Event)) Option {
	return func(c *Chip) {
		c.observers = append(c.observers, fn)
	}
}

// NewChip creates an unpowered chip.
func NewChip(opts ...Option) *Chip {
	c := &Chip{
		clock: trace.NewClock(),
		nmi:   make(map[sequencer.NMISource]bool),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PowerOn applies power: all state is lost and the power-on cause latched.
func (c *Chip) PowerOn() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.clearVolatileLocked()
	c.resetInfo = rstmgr.InfoPor
	if c.faults.InitialResetInfo != nil {
		c.resetInfo = rstmgr.ResetInfo(*c.faults.InitialResetInfo)
	}
	c.emitLocked(trace.KindHW, "", fmt.Sprintf("%s reset_info=%s", trace.HWPowerOn, c.resetInfo))
}

// ResetInfo returns the latched reset info without consuming it.
func (c *Chip) ResetInfo() rstmgr.ResetInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resetInfo
}

// Boots returns how many lifetimes have started.
func (c *Chip) Boots() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.boots
}

// Faults returns the injected faults.
func (c *Chip) Faults() Faults {
	return c.faults
}

// ResetRegister exposes the reset-info register to firmware.
func (c *Chip) ResetRegister() rstmgr.Register {
	return resetRegister{c: c}
}

type resetRegister struct {
	c *Chip
}

func (r resetRegister) Read() rstmgr.ResetInfo {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	return r.c.resetInfo
}

func (r resetRegister) Clear(bits rstmgr.ResetInfo) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	r.c.resetInfo &^= bits
}

// resetLocked performs a chip reset with the given cause. The caller must
// end the current lifetime afterwards.
func (c *Chip) resetLocked(cause rstmgr.ResetInfo) {
	c.clearVolatileLocked()
	c.resetInfo |= cause
	c.resetting = true
	c.emitLocked(trace.KindHW, "", fmt.Sprintf("%s reset_info=%s", trace.HWChipReset, c.resetInfo))
}

func (c *Chip) clearVolatileLocked() {
	c.keymgr = KeymgrReset
	c.alerts = alertHandler{}
	c.nmi = make(map[sequencer.NMISource]bool)
}

func (c *Chip) emitLocked(kind trace.Kind, level, text string) {
	if len(c.observers) == 0 {
		return
	}
	e := trace.Event{
		Seq:   c.clock.Next(),
		Boot:  c.bootIdx,
		Kind:  kind,
		Level: level,
		Text:  text,
	}
	for _, obs := range c.observers {
		obs(e)
	}
}
