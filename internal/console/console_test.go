package console

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsole_WritesExactLines(t *testing.T) {
	var buf bytes.Buffer
	c := New(&buf)

	c.Info(MarkerKeymgrInit)
	c.Errorf(FormatUnexpectedReset, 0)
	c.Infof("boot %d", 2)

	assert.Equal(t,
		"I Keymgr entered Init State\nE Unexpected reset info 0\nI boot 2\n",
		buf.String())
}

func TestConsole_LinesInOrder(t *testing.T) {
	c := New(nil)
	c.Info("a")
	c.Errorf("b")
	c.Info("c")

	lines := c.Lines()
	require.Len(t, lines, 3)
	assert.Equal(t, Line{Level: LevelInfo, Text: "a"}, lines[0])
	assert.Equal(t, Line{Level: LevelError, Text: "b"}, lines[1])
	assert.Equal(t, Line{Level: LevelInfo, Text: "c"}, lines[2])

	// Lines returns a copy.
	lines[0].Text = "mutated"
	assert.Equal(t, "a", c.Lines()[0].Text)
}

func TestConsole_ObserversSeeEveryLine(t *testing.T) {
	var seen []string
	c := New(nil, func(l Line) { seen = append(seen, l.Level.String()+":"+l.Text) })

	c.Info(MarkerEscalationReset)
	c.Errorf(MarkerShouldHaveReset)

	assert.Equal(t, []string{
		"I:Reset due to alert escalation",
		"E:Should have reset before this line",
	}, seen)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("uart gone") }

func TestConsole_WriteErrorsIgnored(t *testing.T) {
	c := New(failingWriter{})
	assert.NotPanics(t, func() { c.Info(MarkerHello) })
	assert.Len(t, c.Lines(), 1)
}

func TestMarkers_Literal(t *testing.T) {
	// These strings are matched by the harness byte for byte.
	assert.Equal(t, "Keymgr entered Init State", MarkerKeymgrInit)
	assert.Equal(t, "Reset due to alert escalation", MarkerEscalationReset)
	assert.Equal(t, "Unexpected reset info %d", FormatUnexpectedReset)
}
