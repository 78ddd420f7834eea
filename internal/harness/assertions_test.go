package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/escalate/internal/trace"
)

func sampleResult() *Result {
	r := NewResult()
	r.Trace = []trace.Event{
		{Seq: 1, Boot: 0, Kind: trace.KindHW, Text: "power_on reset_info=por"},
		{Seq: 2, Boot: 1, Kind: trace.KindBoot, Text: "reset_info=por"},
		{Seq: 3, Boot: 1, Kind: trace.KindHW, Text: "keymgr_init"},
		{Seq: 4, Boot: 1, Kind: trace.KindConsole, Level: "I", Text: "Keymgr entered Init State"},
		{Seq: 5, Boot: 1, Kind: trace.KindHW, Text: "alert_forced recov_sw_err"},
		{Seq: 6, Boot: 1, Kind: trace.KindHW, Text: "lc_escalated"},
		{Seq: 7, Boot: 1, Kind: trace.KindHW, Text: "chip_reset reset_info=escalation"},
		{Seq: 8, Boot: 1, Kind: trace.KindOutcome, Text: "reset"},
		{Seq: 9, Boot: 2, Kind: trace.KindBoot, Text: "reset_info=escalation"},
		{Seq: 10, Boot: 2, Kind: trace.KindConsole, Level: "I", Text: "Reset due to alert escalation"},
		{Seq: 11, Boot: 2, Kind: trace.KindOutcome, Text: "pass"},
	}
	return r
}

func intPtr(n int) *int { return &n }

func TestEvaluateAssertions_Passing(t *testing.T) {
	assertions := []Assertion{
		{Type: AssertConsoleContains, Marker: "Keymgr entered Init State"},
		{Type: AssertConsoleContains, Marker: "Reset due to alert escalation", Boot: 2},
		{Type: AssertConsoleAbsent, Marker: "Should have reset before this line"},
		{Type: AssertConsoleAbsent, Marker: "Keymgr entered"},
		{Type: AssertConsoleOrder, Markers: []string{"Keymgr entered Init State", "Reset due to alert escalation"}},
		{Type: AssertConsoleCount, Marker: "Keymgr entered Init State", Count: intPtr(1)},
		{Type: AssertConsoleCount, Marker: "Keymgr entered Init State", Count: intPtr(0), Boot: 2},
		{Type: AssertHWEvent, Event: "alert_forced"},
		{Type: AssertHWEvent, Event: "chip_reset", Boot: 1},
		{Type: AssertHWEvent, Event: "power_on"},
		{Type: AssertHWEvent, Event: "lc_escalated", Count: intPtr(1)},
		{Type: AssertHWEvent, Event: "nmi_serviced", Count: intPtr(0)},
	}

	assert.Empty(t, EvaluateAssertions(sampleResult(), assertions))
}

func TestEvaluateAssertions_Failing(t *testing.T) {
	tests := []struct {
		name      string
		assertion Assertion
		want      string
	}{
		{
			name:      "contains missing",
			assertion: Assertion{Type: AssertConsoleContains, Marker: "Hello"},
			want:      `Expected: console line "Hello"`,
		},
		{
			name:      "contains wrong boot",
			assertion: Assertion{Type: AssertConsoleContains, Marker: "Keymgr entered Init State", Boot: 2},
			want:      `"Keymgr entered Init State" in boot 2`,
		},
		{
			name:      "absent present",
			assertion: Assertion{Type: AssertConsoleAbsent, Marker: "Reset due to alert escalation"},
			want:      "Actual: 1 occurrences",
		},
		{
			name:      "order reversed",
			assertion: Assertion{Type: AssertConsoleOrder, Markers: []string{"Reset due to alert escalation", "Keymgr entered Init State"}},
			want:      `"Keymgr entered Init State" missing or out of order`,
		},
		{
			name:      "count mismatch",
			assertion: Assertion{Type: AssertConsoleCount, Marker: "Keymgr entered Init State", Count: intPtr(2)},
			want:      "Actual: 1 occurrences",
		},
		{
			name:      "contains is whole-line",
			assertion: Assertion{Type: AssertConsoleContains, Marker: "Keymgr entered"},
			want:      "Actual: not found",
		},
		{
			name:      "hw event missing",
			assertion: Assertion{Type: AssertHWEvent, Event: "nmi_serviced"},
			want:      "Expected: hardware event nmi_serviced",
		},
		{
			name:      "hw event count mismatch",
			assertion: Assertion{Type: AssertHWEvent, Event: "chip_reset", Count: intPtr(2)},
			want:      "Expected: 2 occurrences of hardware event chip_reset",
		},
		{
			name:      "hw event name is not a prefix match",
			assertion: Assertion{Type: AssertHWEvent, Event: "alert"},
			want:      "Actual: not recorded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			failures := EvaluateAssertions(sampleResult(), []Assertion{tt.assertion})
			require.Len(t, failures, 1)
			assert.Contains(t, failures[0], "assertion 0 ("+tt.assertion.Type+")")
			assert.Contains(t, failures[0], tt.want)
		})
	}
}

func TestEvaluateAssertions_MarkersMatchWholeLines(t *testing.T) {
	r := NewResult()
	r.Trace = []trace.Event{
		{Seq: 1, Boot: 1, Kind: trace.KindBoot, Text: "reset_info=hw_req(0x2)"},
		{Seq: 2, Boot: 1, Kind: trace.KindConsole, Level: "E", Text: "Unexpected reset info 42"},
		{Seq: 3, Boot: 1, Kind: trace.KindOutcome, Text: "fail"},
	}

	failures := EvaluateAssertions(r, []Assertion{
		{Type: AssertConsoleContains, Marker: "Unexpected reset info 4"},
		{Type: AssertConsoleCount, Marker: "Unexpected reset info 4", Count: intPtr(1)},
		{Type: AssertConsoleOrder, Markers: []string{"Unexpected reset info 4"}},
	})
	assert.Len(t, failures, 3)

	assert.Empty(t, EvaluateAssertions(r, []Assertion{
		{Type: AssertConsoleContains, Marker: "Unexpected reset info 42"},
		{Type: AssertConsoleAbsent, Marker: "Unexpected reset info 4"},
	}))
}

func TestAssertionError_IncludesTranscript(t *testing.T) {
	err := &AssertionError{
		Type:     AssertHWEvent,
		Expected: "hardware event nmi_serviced",
		Actual:   "not recorded",
		Trace:    sampleResult().Trace[:2],
	}

	want := "Assertion failed: hw_event\n" +
		"  Expected: hardware event nmi_serviced\n" +
		"  Actual: not recorded\n" +
		"\nFull trace:\n" +
		"    hw power_on reset_info=por\n" +
		"  boot 1 reset_info=por\n"
	assert.Equal(t, want, err.Error())
}
