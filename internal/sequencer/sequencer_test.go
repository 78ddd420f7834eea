package sequencer

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/escalate/internal/console"
	"github.com/roach88/escalate/internal/rstmgr"
)

// recorder captures every peripheral call and console line in one ordered log.
type recorder struct {
	mu    sync.Mutex
	calls []string

	reg      rstmgr.ResetInfo
	failOp   string
	onWait   func() error
	waitSeen bool
}

func (r *recorder) record(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, s)
}

func (r *recorder) log() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.calls))
	copy(out, r.calls)
	return out
}

func (r *recorder) Read() rstmgr.ResetInfo    { return r.reg }
func (r *recorder) Clear(b rstmgr.ResetInfo) { r.reg &^= b }

func (r *recorder) op(name string) error {
	r.record(name)
	if r.failOp == name {
		return fmt.Errorf("%s refused", name)
	}
	return nil
}

func (r *recorder) ConfigureEscalation() error    { return r.op("configure") }
func (r *recorder) AdvanceKeyManager() error      { return r.op("keymgr") }
func (r *recorder) EnableNMI(src NMISource) error { return r.op("nmi:" + string(src)) }
func (r *recorder) ForceAlert(id AlertID) error   { return r.op("force:" + string(id)) }

func (r *recorder) WaitForInterrupt(ctx context.Context) error {
	r.record("wfi")
	r.waitSeen = true
	if r.onWait != nil {
		return r.onWait()
	}
	return nil
}

func (r *recorder) Info(msg string) { r.record("I " + msg) }
func (r *recorder) Errorf(format string, args ...any) {
	r.record("E " + fmt.Sprintf(format, args...))
}

func newBoot(r *recorder) *Boot {
	return NewBoot(rstmgr.Acquire(r), r, r, r)
}

// lifetime runs the sequencer the way the chip does: on its own goroutine, so
// a reset (runtime.Goexit) ends it without a return value.
func lifetime(seq *Sequencer, b *Boot) (returned bool, pass bool) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		pass = seq.Run(context.Background(), b)
		returned = true
	}()
	<-done
	return returned, pass
}

func TestRun_PowerOnSuspendsWithoutReturning(t *testing.T) {
	// Scenario A: the chip resets inside the wait.
	r := &recorder{reg: rstmgr.InfoPor, onWait: func() error {
		runtime.Goexit()
		return nil
	}}

	returned, _ := lifetime(New(DefaultConfig()), newBoot(r))

	assert.False(t, returned, "power-on boot must not return normally")
	assert.Equal(t, []string{
		"configure",
		"keymgr",
		"I Keymgr entered Init State",
		"nmi:alert",
		"force:recov_sw_err",
		"wfi",
	}, r.log())
}

func TestRun_PowerOnDominatesOtherBits(t *testing.T) {
	for _, raw := range []rstmgr.ResetInfo{
		rstmgr.InfoPor,
		rstmgr.InfoPor | rstmgr.InfoEscalation,
		rstmgr.InfoPor | rstmgr.InfoSw | rstmgr.InfoLowPowerExit,
	} {
		t.Run(raw.String(), func(t *testing.T) {
			r := &recorder{reg: raw, onWait: func() error {
				runtime.Goexit()
				return nil
			}}
			returned, _ := lifetime(New(DefaultConfig()), newBoot(r))
			assert.False(t, returned)

			count := 0
			for _, c := range r.log() {
				if c == "I "+console.MarkerKeymgrInit {
					count++
				}
			}
			assert.Equal(t, 1, count)
			assert.Zero(t, r.reg, "reset info must be cleared before branching")
		})
	}
}

func TestRun_EscalationBootPasses(t *testing.T) {
	// Scenario B.
	r := &recorder{reg: rstmgr.InfoEscalation}
	seq := New(DefaultConfig())

	returned, pass := lifetime(seq, newBoot(r))

	assert.True(t, returned)
	assert.True(t, pass)
	assert.Equal(t, []string{"I Reset due to alert escalation"}, r.log())
	assert.False(t, r.waitSeen)
}

func TestRun_UnknownCauseFails(t *testing.T) {
	// Scenario C.
	r := &recorder{reg: 0}
	pass := New(DefaultConfig()).Run(context.Background(), newBoot(r))

	assert.False(t, pass)
	assert.Equal(t, []string{"E Unexpected reset info 0"}, r.log())
}

func TestExecute_UnknownCauseCarriesRaw(t *testing.T) {
	for _, raw := range []rstmgr.ResetInfo{rstmgr.InfoSw, rstmgr.InfoLowPowerExit, 5 << rstmgr.InfoHwReqShift} {
		r := &recorder{reg: raw}
		err := New(DefaultConfig()).Execute(context.Background(), newBoot(r))

		require.Error(t, err)
		assert.True(t, IsUnclassified(err))
		var se *Error
		require.True(t, errors.As(err, &se))
		assert.Equal(t, raw, se.Raw)
		assert.Equal(t, []string{fmt.Sprintf("E Unexpected reset info %d", uint32(raw))}, r.log())
	}
}

func TestRun_ResumeAfterSuspendFails(t *testing.T) {
	// Scenario D: the wait returns because the chip never reset.
	r := &recorder{reg: rstmgr.InfoPor}
	seq := New(DefaultConfig())

	err := seq.Execute(context.Background(), newBoot(r))
	require.Error(t, err)
	assert.True(t, IsUnexpectedResume(err))

	log := r.log()
	assert.Equal(t, "wfi", log[len(log)-2])
	assert.Equal(t, "E Should have reset before this line", log[len(log)-1])

	r2 := &recorder{reg: rstmgr.InfoPor}
	returned, pass := lifetime(seq, newBoot(r2))
	assert.True(t, returned)
	assert.False(t, pass)
}

func TestExecute_WaitCancelled(t *testing.T) {
	r := &recorder{reg: rstmgr.InfoPor, onWait: func() error { return context.DeadlineExceeded }}

	err := New(DefaultConfig()).Execute(context.Background(), newBoot(r))

	require.Error(t, err)
	assert.True(t, IsAborted(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	for _, line := range r.log() {
		assert.NotEqual(t, "E "+console.MarkerShouldHaveReset, line)
	}
}

func TestExecute_CheckFailuresStopSequence(t *testing.T) {
	tests := []struct {
		failOp  string
		wantLen int // calls made before stopping, plus the CHECK-fail line
	}{
		{"configure", 2},
		{"keymgr", 3},
		{"nmi:alert", 5},
		{"force:recov_sw_err", 6},
	}
	for _, tt := range tests {
		t.Run(tt.failOp, func(t *testing.T) {
			r := &recorder{reg: rstmgr.InfoPor, failOp: tt.failOp}
			err := New(DefaultConfig()).Execute(context.Background(), newBoot(r))

			require.Error(t, err)
			assert.True(t, IsCheckFailed(err))
			log := r.log()
			assert.Len(t, log, tt.wantLen)
			assert.True(t, strings.HasPrefix(log[len(log)-1], "E CHECK-fail: "), log[len(log)-1])
			assert.False(t, r.waitSeen)
		})
	}
}

func TestExecute_CaptureAlreadyConsumed(t *testing.T) {
	r := &recorder{reg: rstmgr.InfoEscalation}
	b := newBoot(r)
	_, err := b.Resets.Consume()
	require.NoError(t, err)

	err = New(DefaultConfig()).Execute(context.Background(), b)
	assert.True(t, IsCheckFailed(err))
	assert.ErrorIs(t, err, rstmgr.ErrConsumed)
}

func TestRun_VerificationDisabled(t *testing.T) {
	r := &recorder{reg: rstmgr.InfoPor}
	cfg := DefaultConfig()
	cfg.VerificationEnabled = false

	pass := New(cfg).Run(context.Background(), newBoot(r))

	assert.True(t, pass)
	assert.Equal(t, []string{"I Hello"}, r.log())
	assert.Equal(t, rstmgr.InfoPor, r.reg, "placeholder must leave reset info untouched")
}

func TestNew_FillsAlertDefaults(t *testing.T) {
	seq := New(Config{VerificationEnabled: true})
	assert.Equal(t, NMISourceAlert, seq.Config().AlertSource)
	assert.Equal(t, AlertRecovSwErr, seq.Config().Alert)

	custom := New(Config{VerificationEnabled: true, Alert: AlertFatalSwErr})
	assert.Equal(t, AlertFatalSwErr, custom.Config().Alert)
}
