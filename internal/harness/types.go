package harness

import "github.com/roach88/escalate/internal/trace"

// Relay verdicts.
const (
	VerdictPass = "pass"
	VerdictFail = "fail"
)

// BootSummary is the harness view of one lifetime.
type BootSummary struct {
	Index     int    `json:"index"`
	ResetInfo uint32 `json:"reset_info"`
	Cause     string `json:"cause"`
	Result    string `json:"result"`
	Panic     string `json:"panic,omitempty"`
}

// Result is the outcome of a relay, and of a scenario when run through Run.
type Result struct {
	RelayID string `json:"relay_id"`

	// Verdict is the firmware's final answer: pass only if the last
	// lifetime returned true.
	Verdict string `json:"verdict"`

	// Pass is overall success. For a bare relay it equals Verdict == pass;
	// for a scenario it means every expectation and assertion held.
	Pass bool `json:"pass"`

	Boots []BootSummary `json:"boots"`

	// Trace holds every event in seq order.
	Trace []trace.Event `json:"trace"`

	// Failures explain a fail verdict (hung boot, boot budget exhausted).
	Failures []string `json:"failures,omitempty"`

	// Errors are scenario expectation and assertion failures.
	Errors []string `json:"errors,omitempty"`

	Digest string `json:"digest"`
}

// NewResult creates an empty passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Boots:  []BootSummary{},
		Trace:  []trace.Event{},
		Errors: []string{},
	}
}

// AddError records a scenario failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Console returns the console events of the relay, in order.
func (r *Result) Console() []trace.Event {
	return trace.Filter(r.Trace, trace.KindConsole)
}
