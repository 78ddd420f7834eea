package harness

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/escalate/internal/device"
	"github.com/roach88/escalate/internal/metrics"
	"github.com/roach88/escalate/internal/sequencer"
	"github.com/roach88/escalate/internal/store"
	"github.com/roach88/escalate/internal/testutil"
	"github.com/roach88/escalate/internal/trace"
)

func deterministic(id string) []Option {
	return []Option{
		WithClock(testutil.NewDeterministicClock()),
		WithIDGenerator(testutil.NewFixedIDGenerator(id)),
	}
}

func TestRelay_EscalationPasses(t *testing.T) {
	result, err := Relay(context.Background(), RelaySpec{
		Name:      "nominal",
		Sequencer: sequencer.DefaultConfig(),
	}, deterministic("relay-nominal")...)
	require.NoError(t, err)

	assert.Equal(t, "relay-nominal", result.RelayID)
	assert.Equal(t, VerdictPass, result.Verdict)
	assert.True(t, result.Pass)
	assert.Empty(t, result.Failures)

	require.Len(t, result.Boots, 2)
	assert.Equal(t, BootSummary{Index: 1, ResetInfo: 1, Cause: "por", Result: "reset"}, result.Boots[0])
	assert.Equal(t, BootSummary{Index: 2, ResetInfo: 8, Cause: "escalation", Result: "pass"}, result.Boots[1])

	for i := 1; i < len(result.Trace); i++ {
		assert.Less(t, result.Trace[i-1].Seq, result.Trace[i].Seq, "trace must be in seq order")
	}
	assert.NotEmpty(t, result.Digest)
}

func TestRelay_ConsolePhaseMarkers(t *testing.T) {
	result, err := Relay(context.Background(), RelaySpec{Sequencer: sequencer.DefaultConfig()}, deterministic("")...)
	require.NoError(t, err)

	console := result.Console()
	require.Len(t, console, 2)
	assert.Equal(t, 1, console[0].Boot)
	assert.Equal(t, "Keymgr entered Init State", console[0].Text)
	assert.Equal(t, 2, console[1].Boot)
	assert.Equal(t, "Reset due to alert escalation", console[1].Text)
}

func TestRelay_DeterministicDigest(t *testing.T) {
	spec := RelaySpec{Sequencer: sequencer.DefaultConfig()}

	first, err := Relay(context.Background(), spec, deterministic("a")...)
	require.NoError(t, err)
	second, err := Relay(context.Background(), spec, deterministic("b")...)
	require.NoError(t, err)

	assert.Equal(t, first.Digest, second.Digest)
	assert.Equal(t, trace.Render(first.Trace), trace.Render(second.Trace))
}

func TestRelay_SuppressedResetFails(t *testing.T) {
	result, err := Relay(context.Background(), RelaySpec{
		Sequencer: sequencer.DefaultConfig(),
		Faults:    device.Faults{SuppressReset: true},
	}, deterministic("")...)
	require.NoError(t, err)

	assert.Equal(t, VerdictFail, result.Verdict)
	assert.False(t, result.Pass)
	require.Len(t, result.Boots, 1)
	assert.Equal(t, "fail", result.Boots[0].Result)
	require.Len(t, result.Failures, 1)
	assert.Contains(t, result.Failures[0], "boot 1 returned failure")
}

func TestRelay_HungBootTimesOut(t *testing.T) {
	result, err := Relay(context.Background(), RelaySpec{
		Sequencer:   sequencer.DefaultConfig(),
		Faults:      device.Faults{SuppressReset: true, SkipNMI: true},
		BootTimeout: 20 * time.Millisecond,
	}, deterministic("")...)
	require.NoError(t, err)

	assert.Equal(t, VerdictFail, result.Verdict)
	require.Len(t, result.Boots, 1)
	assert.Equal(t, "hung", result.Boots[0].Result)
	require.Len(t, result.Failures, 1)
	assert.Contains(t, result.Failures[0], "hung")
}

func TestRelay_BootBudgetExhausted(t *testing.T) {
	result, err := Relay(context.Background(), RelaySpec{
		Sequencer: sequencer.DefaultConfig(),
		MaxBoots:  1,
	}, deterministic("")...)
	require.NoError(t, err)

	assert.Equal(t, VerdictFail, result.Verdict)
	require.Len(t, result.Boots, 1)
	assert.Equal(t, "reset", result.Boots[0].Result)
	assert.Equal(t, []string{"no verdict after 1 boots"}, result.Failures)
}

func TestRelay_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Relay(ctx, RelaySpec{Sequencer: sequencer.DefaultConfig()}, deterministic("")...)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRelay_KeymgrFaultIsCheckFailure(t *testing.T) {
	result, err := Relay(context.Background(), RelaySpec{
		Sequencer: sequencer.DefaultConfig(),
		Faults:    device.Faults{KeymgrFault: true},
	}, deterministic("")...)
	require.NoError(t, err)

	assert.Equal(t, VerdictFail, result.Verdict)
	console := result.Console()
	require.Len(t, console, 1)
	assert.Equal(t, "E", console[0].Level)
	assert.Equal(t, "CHECK-fail: advance keymgr: keymgr: otp contents not ready", console[0].Text)
}

func TestRelay_ConsoleMirror(t *testing.T) {
	var uart bytes.Buffer
	_, err := Relay(context.Background(), RelaySpec{Sequencer: sequencer.DefaultConfig()},
		append(deterministic(""), WithConsole(&uart))...)
	require.NoError(t, err)

	assert.Equal(t, "I Keymgr entered Init State\nI Reset due to alert escalation\n", uart.String())
}

func TestRelay_PersistsAndCounts(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "relays.db"))
	require.NoError(t, err)
	defer st.Close()
	rec := metrics.NewRecorder()

	result, err := Relay(context.Background(), RelaySpec{
		Name:      "persisted",
		Sequencer: sequencer.DefaultConfig(),
	}, append(deterministic("relay-persisted"), WithStore(st), WithMetrics(rec))...)
	require.NoError(t, err)

	got, err := st.ReadRelay(context.Background(), "relay-persisted")
	require.NoError(t, err)
	assert.Equal(t, "persisted", got.Scenario)
	assert.Equal(t, VerdictPass, got.Verdict)
	assert.Equal(t, result.Digest, got.Digest)
	assert.Equal(t, result.Trace, got.Events)
	require.Len(t, got.Boots, 2)
	assert.Equal(t, "escalation", got.Boots[1].Cause)

	var buf bytes.Buffer
	require.NoError(t, rec.WriteText(&buf))
	assert.Contains(t, buf.String(), `escalate_relays_total{verdict="pass"} 1`)
	assert.Contains(t, buf.String(), `escalate_boots_total{cause="por"} 1`)
	assert.Contains(t, buf.String(), `escalate_boot_results_total{result="reset"} 1`)
}

func TestRelay_DuplicateIDNotPersisted(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "relays.db"))
	require.NoError(t, err)
	defer st.Close()

	spec := RelaySpec{Sequencer: sequencer.DefaultConfig()}
	_, err = Relay(context.Background(), spec, append(deterministic("dup"), WithStore(st))...)
	require.NoError(t, err)

	_, err = Relay(context.Background(), spec, append(deterministic("dup"), WithStore(st))...)
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrDuplicateRelay)
}

func TestUUIDv7Generator(t *testing.T) {
	g := UUIDv7Generator{}
	a, b := g.Generate(), g.Generate()
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
}

func TestRun_ScenarioConformance(t *testing.T) {
	tests := []struct {
		file    string
		verdict string
	}{
		{"escalation_relay.yaml", VerdictPass},
		{"suppressed_reset.yaml", VerdictFail},
		{"verification_disabled.yaml", VerdictPass},
		{"missing_nmi_hangs.yaml", VerdictFail},
	}

	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", tt.file))
			require.NoError(t, err)

			result, err := Run(context.Background(), scenario, deterministic("")...)
			require.NoError(t, err)

			assert.Equal(t, tt.verdict, result.Verdict)
			assert.True(t, result.Pass, "scenario errors: %v", result.Errors)
			assert.Empty(t, result.Errors)
		})
	}
}

func TestRun_ExpectationMismatch(t *testing.T) {
	pass := true
	scenario := &Scenario{
		Name:        "wrong_expectation",
		Description: "expects a pass from a suppressed reset",
		Faults:      device.Faults{SuppressReset: true},
		Expect: Expect{
			Pass:  &pass,
			Boots: []BootExpect{{Cause: "por", Result: "reset"}, {Cause: "escalation"}},
		},
	}

	result, err := Run(context.Background(), scenario, deterministic("")...)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 3)
	assert.Contains(t, result.Errors[0], "verdict: expected pass, got fail")
	assert.Equal(t, "boots: expected 2 lifetimes, got 1", result.Errors[1])
	assert.Equal(t, "boot 1: expected result reset, got fail", result.Errors[2])
}
