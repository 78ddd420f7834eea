package trace

// Kind classifies an event.
type Kind string

const (
	KindBoot    Kind = "boot"
	KindConsole Kind = "console"
	KindHW      Kind = "hw"
	KindOutcome Kind = "outcome"
)

// Hardware event names. These are observed only by the harness.
const (
	HWPowerOn     = "power_on"
	HWKeymgrInit  = "keymgr_init"
	HWAlertForced = "alert_forced"
	HWNMIServiced = "nmi_serviced"
	HWLCEscalated = "lc_escalated"
	HWChipReset   = "chip_reset"
)

// Event is one entry in a relay trace.
type Event struct {
	Seq   int64  `json:"seq"`
	Boot  int    `json:"boot"`
	Kind  Kind   `json:"kind"`
	Level string `json:"level,omitempty"`
	Text  string `json:"text"`
}

// Filter returns the events of the given kind, in order.
func Filter(events []Event, kind Kind) []Event {
	var out []Event
	for _, e := range events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// ForBoot returns the events of one boot lifetime, in order.
func ForBoot(events []Event, boot int) []Event {
	var out []Event
	for _, e := range events {
		if e.Boot == boot {
			out = append(out, e)
		}
	}
	return out
}
