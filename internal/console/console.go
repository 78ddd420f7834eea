// Package console is the device UART as seen by the verification harness.
//
// Every line written here is part of the synchronization protocol with the
// harness, which pattern-matches on exact text and ordering. The marker
// constants below are append-only: never edit or remove one.
package console

import (
	"fmt"
	"io"
	"sync"
)

// Harness sync markers.
const (
	MarkerKeymgrInit      = "Keymgr entered Init State"
	MarkerEscalationReset = "Reset due to alert escalation"
	MarkerShouldHaveReset = "Should have reset before this line"
	MarkerHello           = "Hello"

	// FormatUnexpectedReset takes the raw reset info as a decimal integer.
	FormatUnexpectedReset = "Unexpected reset info %d"
)

// Level is the single-letter severity prefix of a console line.
type Level byte

const (
	LevelInfo  Level = 'I'
	LevelError Level = 'E'
)

func (l Level) String() string {
	return string(l)
}

// Line is one emitted console line.
type Line struct {
	Level Level
	Text  string
}

// Observer is called synchronously for every line, in emission order.
type Observer func(Line)

// Console writes lines unbuffered and in call order.
type Console struct {
	mu        sync.Mutex
	w         io.Writer
	lines     []Line
	observers []Observer
}

// New creates a console writing to w. A nil w discards output.
func New(w io.Writer, observers ...Observer) *Console {
	if w == nil {
		w = io.Discard
	}
	return &Console{w: w, observers: observers}
}

// Info emits msg verbatim at info level.
func (c *Console) Info(msg string) {
	c.emit(LevelInfo, msg)
}

// Infof formats and emits at info level.
func (c *Console) Infof(format string, args ...any) {
	c.emit(LevelInfo, fmt.Sprintf(format, args...))
}

// Errorf formats and emits at error level.
func (c *Console) Errorf(format string, args ...any) {
	c.emit(LevelError, fmt.Sprintf(format, args...))
}

// Lines returns a copy of everything emitted so far.
func (c *Console) Lines() []Line {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Line, len(c.lines))
	copy(out, c.lines)
	return out
}

func (c *Console) emit(level Level, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	line := Line{Level: level, Text: text}
	c.lines = append(c.lines, line)
	// Fire-and-forget: a broken transport must not change control flow.
	_, _ = fmt.Fprintf(c.w, "%s %s\n", level, text)
	for _, obs := range c.observers {
		obs(line)
	}
}
