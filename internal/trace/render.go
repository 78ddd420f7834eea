package trace

import (
	"fmt"
	"strings"
)

// Render produces the text transcript of a relay.
//
//	boot 1 reset_info=por
//	  I Keymgr entered Init State
//	  hw nmi_serviced
//	  outcome reset
func Render(events []Event) string {
	var b strings.Builder
	for _, e := range events {
		switch e.Kind {
		case KindBoot:
			fmt.Fprintf(&b, "boot %d %s\n", e.Boot, e.Text)
		case KindConsole:
			fmt.Fprintf(&b, "  %s %s\n", e.Level, e.Text)
		case KindHW:
			fmt.Fprintf(&b, "  hw %s\n", e.Text)
		case KindOutcome:
			fmt.Fprintf(&b, "  outcome %s\n", e.Text)
		default:
			fmt.Fprintf(&b, "  %s %s\n", e.Kind, e.Text)
		}
	}
	return b.String()
}
