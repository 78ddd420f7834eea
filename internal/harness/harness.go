package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/escalate/internal/device"
	"github.com/roach88/escalate/internal/metrics"
	"github.com/roach88/escalate/internal/rstmgr"
	"github.com/roach88/escalate/internal/sequencer"
	"github.com/roach88/escalate/internal/store"
	"github.com/roach88/escalate/internal/trace"
)

// Relay defaults.
const (
	DefaultMaxBoots    = 4
	DefaultBootTimeout = 5 * time.Second
)

// IDGenerator produces relay IDs.
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable relay IDs.
type UUIDv7Generator struct{}

// Generate returns a new UUIDv7 string.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Harness holds the collaborators of a relay run.
type Harness struct {
	logger  *slog.Logger
	store   *store.Store
	metrics *metrics.Recorder
	ids     IDGenerator
	clock   trace.Stamper
	uart    io.Writer
}

// Option configures a run.
type Option func(*Harness)

// WithLogger sets the diagnostic logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) { h.logger = l }
}

// WithStore persists every relay.
func WithStore(st *store.Store) Option {
	return func(h *Harness) { h.store = st }
}

// WithMetrics counts boots and verdicts.
func WithMetrics(m *metrics.Recorder) Option {
	return func(h *Harness) { h.metrics = m }
}

// WithIDGenerator overrides relay ID generation (UUIDv7 by default).
func WithIDGenerator(g IDGenerator) Option {
	return func(h *Harness) { h.ids = g }
}

// WithClock overrides the trace clock.
func WithClock(c trace.Stamper) Option {
	return func(h *Harness) { h.clock = c }
}

// WithConsole mirrors the device UART to w.
func WithConsole(w io.Writer) Option {
	return func(h *Harness) { h.uart = w }
}

func newHarness(opts ...Option) *Harness {
	h := &Harness{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		ids:    UUIDv7Generator{},
		clock:  trace.NewClock(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RelaySpec describes one relay independent of any scenario file.
type RelaySpec struct {
	Name        string
	Sequencer   sequencer.Config
	Faults      device.Faults
	MaxBoots    int
	BootTimeout time.Duration
}

func (s RelaySpec) withDefaults() RelaySpec {
	if s.Name == "" {
		s.Name = "relay"
	}
	if s.MaxBoots <= 0 {
		s.MaxBoots = DefaultMaxBoots
	}
	if s.BootTimeout <= 0 {
		s.BootTimeout = DefaultBootTimeout
	}
	return s
}

// Relay powers on a fresh chip and boots it until a lifetime produces a
// verdict. Each reset hands over to the next boot; the reset-info register
// is the only thing carried across.
func Relay(ctx context.Context, spec RelaySpec, opts ...Option) (*Result, error) {
	h := newHarness(opts...)
	return h.relay(ctx, spec.withDefaults())
}

func (h *Harness) relay(ctx context.Context, spec RelaySpec) (*Result, error) {
	result := NewResult()
	result.RelayID = h.ids.Generate()

	var mu sync.Mutex
	record := func(e trace.Event) {
		mu.Lock()
		defer mu.Unlock()
		result.Trace = append(result.Trace, e)
	}

	chip := device.NewChip(
		device.WithFaults(spec.Faults),
		device.WithClock(h.clock),
		device.WithConsole(h.uart),
		device.WithObserver(record),
	)
	body := sequencer.New(spec.Sequencer, sequencer.WithLogger(h.logger)).Run

	h.logger.Info("relay starting",
		"relay_id", result.RelayID,
		"name", spec.Name,
		"max_boots", spec.MaxBoots,
	)
	chip.PowerOn()

	var last device.BootRecord
	for n := 0; n < spec.MaxBoots; n++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("relay %s cancelled: %w", result.RelayID, err)
		}

		raw := chip.ResetInfo()
		idx := chip.Boots() + 1
		record(trace.Event{
			Seq:  h.clock.Next(),
			Boot: idx,
			Kind: trace.KindBoot,
			Text: "reset_info=" + raw.String(),
		})

		bootCtx, cancel := context.WithTimeout(ctx, spec.BootTimeout)
		last = chip.Boot(bootCtx, body)
		cancel()

		record(trace.Event{
			Seq:  h.clock.Next(),
			Boot: last.Index,
			Kind: trace.KindOutcome,
			Text: string(last.Result),
		})

		cause := rstmgr.Classify(last.ResetInfo).Kind.String()
		result.Boots = append(result.Boots, BootSummary{
			Index:     last.Index,
			ResetInfo: uint32(last.ResetInfo),
			Cause:     cause,
			Result:    string(last.Result),
			Panic:     last.Panic,
		})
		if h.metrics != nil {
			h.metrics.ObserveBoot(cause, string(last.Result))
		}
		h.logger.Info("boot finished",
			"relay_id", result.RelayID,
			"boot", last.Index,
			"cause", cause,
			"result", last.Result,
		)

		if last.Result != device.ResultReset {
			break
		}
	}

	switch last.Result {
	case device.ResultPass:
		result.Verdict = VerdictPass
	case device.ResultReset:
		result.Verdict = VerdictFail
		result.Failures = append(result.Failures,
			fmt.Sprintf("no verdict after %d boots", spec.MaxBoots))
	case device.ResultHung:
		result.Verdict = VerdictFail
		result.Failures = append(result.Failures,
			fmt.Sprintf("boot %d hung for %s without resetting", last.Index, spec.BootTimeout))
	default:
		result.Verdict = VerdictFail
		if last.Panic != "" {
			result.Failures = append(result.Failures,
				fmt.Sprintf("boot %d panicked: %s", last.Index, last.Panic))
		} else {
			result.Failures = append(result.Failures,
				fmt.Sprintf("boot %d returned failure", last.Index))
		}
	}
	result.Pass = result.Verdict == VerdictPass

	sort.SliceStable(result.Trace, func(i, j int) bool {
		return result.Trace[i].Seq < result.Trace[j].Seq
	})
	digest, err := trace.Digest(result.Trace)
	if err != nil {
		return nil, fmt.Errorf("relay %s: %w", result.RelayID, err)
	}
	result.Digest = digest

	if h.metrics != nil {
		h.metrics.ObserveRelay(result.Verdict)
	}
	if h.store != nil {
		if err := h.store.WriteRelay(ctx, toStoreRelay(spec.Name, result)); err != nil {
			return nil, fmt.Errorf("persist relay: %w", err)
		}
	}

	h.logger.Info("relay finished",
		"relay_id", result.RelayID,
		"verdict", result.Verdict,
		"boots", len(result.Boots),
	)
	return result, nil
}

func toStoreRelay(name string, r *Result) store.Relay {
	boots := make([]store.Boot, len(r.Boots))
	for i, b := range r.Boots {
		boots[i] = store.Boot{
			Index:     b.Index,
			ResetInfo: b.ResetInfo,
			Cause:     b.Cause,
			Result:    b.Result,
		}
	}
	return store.Relay{
		ID:       r.RelayID,
		Scenario: name,
		Verdict:  r.Verdict,
		Digest:   r.Digest,
		Boots:    boots,
		Events:   r.Trace,
	}
}

// Run executes a scenario: the relay, then its expectations and assertions.
func Run(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	result, err := Relay(ctx, scenario.RelaySpec(), opts...)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}

	// Scenario pass is conformance, not firmware verdict.
	result.Pass = true
	for _, msg := range checkExpect(result, scenario.Expect) {
		result.AddError(msg)
	}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

func checkExpect(result *Result, expect Expect) []string {
	var errs []string

	wantPass := true
	if expect.Pass != nil {
		wantPass = *expect.Pass
	}
	gotPass := result.Verdict == VerdictPass
	if gotPass != wantPass {
		msg := fmt.Sprintf("verdict: expected %s, got %s", verdictName(wantPass), result.Verdict)
		for _, f := range result.Failures {
			msg += "; " + f
		}
		errs = append(errs, msg)
	}

	if expect.Boots == nil {
		return errs
	}
	if len(expect.Boots) != len(result.Boots) {
		errs = append(errs, fmt.Sprintf("boots: expected %d lifetimes, got %d", len(expect.Boots), len(result.Boots)))
	}
	for i, want := range expect.Boots {
		if i >= len(result.Boots) {
			break
		}
		got := result.Boots[i]
		if want.Cause != "" && want.Cause != got.Cause {
			errs = append(errs, fmt.Sprintf("boot %d: expected cause %s, got %s", got.Index, want.Cause, got.Cause))
		}
		if want.Result != "" && want.Result != got.Result {
			errs = append(errs, fmt.Sprintf("boot %d: expected result %s, got %s", got.Index, want.Result, got.Result))
		}
	}
	return errs
}

func verdictName(pass bool) string {
	if pass {
		return VerdictPass
	}
	return VerdictFail
}
