package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/escalate/internal/trace"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string        // Assertion type for categorization
	Expected string        // Human-readable expected outcome
	Actual   string        // Human-readable actual outcome
	Trace    []trace.Event // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, line := range strings.Split(strings.TrimRight(trace.Render(e.Trace), "\n"), "\n") {
			fmt.Fprintf(&buf, "  %s\n", line)
		}
	}

	return buf.String()
}

// EvaluateAssertions checks every assertion against the relay trace and
// returns one message per failure.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var failures []string
	for i, a := range assertions {
		if err := evaluate(result.Trace, a); err != nil {
			failures = append(failures, fmt.Sprintf("assertion %d (%s): %v", i, a.Type, err))
		}
	}
	return failures
}

func evaluate(events []trace.Event, a Assertion) error {
	scoped := events
	if a.Boot > 0 {
		scoped = trace.ForBoot(events, a.Boot)
	}

	switch a.Type {
	case AssertConsoleContains:
		return assertConsoleContains(scoped, a, events)
	case AssertConsoleAbsent:
		return assertConsoleAbsent(scoped, a, events)
	case AssertConsoleOrder:
		return assertConsoleOrder(scoped, a, events)
	case AssertConsoleCount:
		return assertConsoleCount(scoped, a, events)
	case AssertHWEvent:
		return assertHWEvent(scoped, a, events)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

func scopeDesc(a Assertion) string {
	if a.Boot > 0 {
		return fmt.Sprintf(" in boot %d", a.Boot)
	}
	return ""
}

// assertConsoleContains checks that some console line equals the marker.
func assertConsoleContains(scoped []trace.Event, a Assertion, full []trace.Event) error {
	if countConsole(scoped, a.Marker) > 0 {
		return nil
	}
	return &AssertionError{
		Type:     AssertConsoleContains,
		Expected: fmt.Sprintf("console line %q%s", a.Marker, scopeDesc(a)),
		Actual:   "not found",
		Trace:    full,
	}
}

// assertConsoleAbsent checks that no console line equals the marker.
func assertConsoleAbsent(scoped []trace.Event, a Assertion, full []trace.Event) error {
	n := countConsole(scoped, a.Marker)
	if n == 0 {
		return nil
	}
	return &AssertionError{
		Type:     AssertConsoleAbsent,
		Expected: fmt.Sprintf("no console line %q%s", a.Marker, scopeDesc(a)),
		Actual:   fmt.Sprintf("%d occurrences", n),
		Trace:    full,
	}
}

// assertConsoleOrder checks that markers appear in the given order.
// Lines don't need to be consecutive.
func assertConsoleOrder(scoped []trace.Event, a Assertion, full []trace.Event) error {
	lines := trace.Filter(scoped, trace.KindConsole)
	pos := 0
	for _, marker := range a.Markers {
		found := false
		for pos < len(lines) {
			line := lines[pos]
			pos++
			if line.Text == marker {
				found = true
				break
			}
		}
		if !found {
			return &AssertionError{
				Type:     AssertConsoleOrder,
				Expected: fmt.Sprintf("console lines in order: %q%s", a.Markers, scopeDesc(a)),
				Actual:   fmt.Sprintf("%q missing or out of order", marker),
				Trace:    full,
			}
		}
	}
	return nil
}

// assertConsoleCount checks that the marker appears exactly Count times.
func assertConsoleCount(scoped []trace.Event, a Assertion, full []trace.Event) error {
	want := 0
	if a.Count != nil {
		want = *a.Count
	}
	n := countConsole(scoped, a.Marker)
	if n == want {
		return nil
	}
	return &AssertionError{
		Type:     AssertConsoleCount,
		Expected: fmt.Sprintf("%d occurrences of %q%s", want, a.Marker, scopeDesc(a)),
		Actual:   fmt.Sprintf("%d occurrences", n),
		Trace:    full,
	}
}

// assertHWEvent checks that the named hardware event was recorded, exactly
// Count times when Count is set.
func assertHWEvent(scoped []trace.Event, a Assertion, full []trace.Event) error {
	n := 0
	for _, e := range trace.Filter(scoped, trace.KindHW) {
		if hwName(e.Text) == a.Event {
			n++
		}
	}
	if a.Count == nil && n > 0 {
		return nil
	}
	if a.Count != nil && n == *a.Count {
		return nil
	}

	expected := fmt.Sprintf("hardware event %s%s", a.Event, scopeDesc(a))
	actual := "not recorded"
	if a.Count != nil {
		expected = fmt.Sprintf("%d occurrences of hardware event %s%s", *a.Count, a.Event, scopeDesc(a))
		actual = fmt.Sprintf("%d occurrences", n)
	}
	return &AssertionError{
		Type:     AssertHWEvent,
		Expected: expected,
		Actual:   actual,
		Trace:    full,
	}
}

// countConsole counts console lines whose text is exactly marker.
func countConsole(events []trace.Event, marker string) int {
	n := 0
	for _, e := range trace.Filter(events, trace.KindConsole) {
		if e.Text == marker {
			n++
		}
	}
	return n
}

// hwName is the event name without its arguments.
func hwName(text string) string {
	name, _, _ := strings.Cut(text, " ")
	return name
}
