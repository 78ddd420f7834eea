// Package harness is the verification side of the escalation relay.
//
// The firmware test body (package sequencer) only ever sees one boot
// lifetime. The harness sees all of them: it powers on a simulated chip,
// boots it, watches the console and hardware events, and boots again after
// every chip reset until a lifetime returns a verdict, hangs, or the boot
// budget runs out.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: escalation_relay
//	description: "Alert escalation resets the chip and the next boot passes"
//	config:
//	  verification_enabled: true
//	faults:
//	  suppress_reset: false
//	max_boots: 4
//	boot_timeout_ms: 2000
//	expect:
//	  pass: true
//	  boots:
//	    - { cause: por, result: reset }
//	    - { cause: escalation, result: pass }
//	assertions:
//	  - type: console_order
//	    markers: ["Keymgr entered Init State", "Reset due to alert escalation"]
//	  - type: hw_event
//	    event: lc_escalated
//	    count: 1
//
// # Assertion Types
//
//   - console_contains: some console line is exactly marker
//   - console_absent: no console line is exactly marker
//   - console_order: markers appear in order (other lines may intervene)
//   - console_count: marker appears exactly count times
//   - hw_event: hardware event appears (exactly count times, if given)
//
// Console markers are compared against the whole line text, without the
// level prefix: "Unexpected reset info 4" does not match
// "Unexpected reset info 42".
//
// Any assertion may set boot (1 or more) to restrict it to one lifetime.
//
// # Life-cycle escalation
//
// The middle escalation phase is never reported by firmware. It shows up only
// as the lc_escalated hardware event, so hw_event is the only way to check it.
//
// # Deterministic Testing
//
// With testutil.DeterministicClock and a fixed ID generator every run of a
// scenario yields an identical trace, which RunWithGolden compares against
// testdata/golden.
package harness
