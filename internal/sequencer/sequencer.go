package sequencer

import (
	"context"
	"io"
	"log/slog"

	"github.com/roach88/escalate/internal/console"
	"github.com/roach88/escalate/internal/rstmgr"
)

// Config selects what the test body does.
type Config struct {
	// VerificationEnabled runs the escalation sequence. When false a
	// placeholder logs a greeting and passes.
	VerificationEnabled bool

	AlertSource NMISource
	Alert       AlertID
}

// DefaultConfig returns the full sequence against the recoverable
// software-error alert.
func DefaultConfig() Config {
	return Config{
		VerificationEnabled: true,
		AlertSource:         NMISourceAlert,
		Alert:               AlertRecovSwErr,
	}
}

// Sequencer is the per-boot test body. It holds no state across boots.
type Sequencer struct {
	cfg    Config
	logger *slog.Logger
}

// Option configures a Sequencer.
type Option func(*Sequencer)

// WithLogger sets the diagnostic logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Sequencer) {
		s.logger = l
	}
}

// New creates a sequencer. Empty alert fields fall back to DefaultConfig.
func New(cfg Config, opts ...Option) *Sequencer {
	def := DefaultConfig()
	if cfg.AlertSource == "" {
		cfg.AlertSource = def.AlertSource
	}
	if cfg.Alert == "" {
		cfg.Alert = def.Alert
	}
	s := &Sequencer{
		cfg:    cfg,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Config returns the effective configuration.
func (s *Sequencer) Config() Config {
	return s.cfg
}

// Run executes one boot and returns the pass/fail outcome for the framework.
// On a healthy power-on boot Run does not return at all.
func (s *Sequencer) Run(ctx context.Context, b *Boot) bool {
	if err := s.Execute(ctx, b); err != nil {
		s.logger.Warn("boot failed", "error", err)
		return false
	}
	return true
}

// Execute is Run with the failure reason. A nil error is a pass.
func (s *Sequencer) Execute(ctx context.Context, b *Boot) error {
	if !s.cfg.VerificationEnabled {
		b.Console.Info(console.MarkerHello)
		return nil
	}

	cause, err := b.Resets.Cause()
	if err != nil {
		return s.checkFailed(b, "read reset info", err)
	}
	s.logger.Debug("reset cause classified",
		"cause", cause.Kind.String(),
		"raw", uint32(cause.Raw),
	)

	switch cause.Kind {
	case rstmgr.CausePowerOn:
		return s.escalate(ctx, b)
	case rstmgr.CauseEscalation:
		// DV sync marker.
		b.Console.Info(console.MarkerEscalationReset)
		return nil
	default:
		b.Console.Errorf(console.FormatUnexpectedReset, uint32(cause.Raw))
		return NewUnclassifiedError(cause.Raw)
	}
}

// escalate is the power-on path. Its only successful ending is a chip reset
// inside WaitForInterrupt.
func (s *Sequencer) escalate(ctx context.Context, b *Boot) error {
	if err := b.Trigger.ConfigureEscalation(); err != nil {
		return s.checkFailed(b, "configure escalation", err)
	}
	if err := b.Trigger.AdvanceKeyManager(); err != nil {
		return s.checkFailed(b, "advance keymgr", err)
	}

	// DV sync marker.
	b.Console.Info(console.MarkerKeymgrInit)

	if err := b.Trigger.EnableNMI(s.cfg.AlertSource); err != nil {
		return s.checkFailed(b, "enable nmi", err)
	}
	if err := b.Trigger.ForceAlert(s.cfg.Alert); err != nil {
		return s.checkFailed(b, "force alert", err)
	}

	s.logger.Debug("alert forced, waiting for interrupt",
		"source", string(s.cfg.AlertSource),
		"alert", string(s.cfg.Alert),
	)
	if err := b.Waiter.WaitForInterrupt(ctx); err != nil {
		return NewAbortedError(err)
	}

	b.Console.Errorf(console.MarkerShouldHaveReset)
	return NewUnexpectedResumeError()
}

func (s *Sequencer) checkFailed(b *Boot, op string, err error) error {
	b.Console.Errorf("CHECK-fail: %s: %v", op, err)
	return NewCheckFailedError(op, err)
}
