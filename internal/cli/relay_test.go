package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const nominalTranscript = `  hw power_on reset_info=por
boot 1 reset_info=por
  hw keymgr_init
  I Keymgr entered Init State
  hw alert_forced recov_sw_err
  hw nmi_serviced
  hw lc_escalated
  hw chip_reset reset_info=escalation
  outcome reset
boot 2 reset_info=escalation
  I Reset due to alert escalation
  outcome pass
`

func TestRelay_Passes(t *testing.T) {
	out, err := execute(t, "relay")
	require.NoError(t, err)

	assert.Contains(t, out, nominalTranscript)
	assert.Contains(t, out, "Verdict: pass (2 boots)")
	assert.Contains(t, out, "Digest:  ")
}

func TestRelay_SuppressedResetFails(t *testing.T) {
	out, err := execute(t, "relay", "--suppress-reset")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	assert.Contains(t, out, "  E Should have reset before this line\n")
	assert.Contains(t, out, "Verdict: fail (1 boots)")
	assert.Contains(t, out, "boot 1 returned failure")
}

func TestRelay_MaxBootsFlagOverridesConfig(t *testing.T) {
	out, err := execute(t, "relay", "--max-boots", "1")
	require.Error(t, err)

	assert.Contains(t, out, "no verdict after 1 boots")
}

func TestRelay_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "escalate.yaml")
	require.NoError(t, os.WriteFile(path, []byte("verification_enabled: false\nmax_boots: 2\n"), 0o644))

	out, err := execute(t, "relay", "--config", path)
	require.NoError(t, err)

	assert.Contains(t, out, "  I Hello\n")
	assert.Contains(t, out, "Verdict: pass (1 boots)")
}

func TestRelay_InvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "escalate.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_boots: 0\n"), 0o644))

	_, err := execute(t, "relay", "--config", path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "max_boots must be at least 1")
}

func TestRelay_Metrics(t *testing.T) {
	out, err := execute(t, "relay", "--metrics")
	require.NoError(t, err)

	assert.Contains(t, out, `escalate_boots_total{cause="por"} 1`)
	assert.Contains(t, out, `escalate_boots_total{cause="escalation"} 1`)
	assert.Contains(t, out, `escalate_relays_total{verdict="pass"} 1`)
}

func TestRelay_JSON(t *testing.T) {
	out, err := execute(t, "relay", "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status  string `json:"status"`
		RelayID string `json:"relay_id"`
		Data    struct {
			RelayID string `json:"relay_id"`
			Verdict string `json:"verdict"`
			Boots   []struct {
				Cause  string `json:"cause"`
				Result string `json:"result"`
			} `json:"boots"`
			Digest string `json:"digest"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, resp.RelayID, resp.Data.RelayID)
	assert.Equal(t, "pass", resp.Data.Verdict)
	require.Len(t, resp.Data.Boots, 2)
	assert.Equal(t, "escalation", resp.Data.Boots[1].Cause)
	assert.Len(t, resp.Data.Digest, 64)
}

func TestRelay_PersistsToDatabase(t *testing.T) {
	db := filepath.Join(t.TempDir(), "relays.db")

	_, err := execute(t, "relay", "--db", db, "--name", "nightly")
	require.NoError(t, err)
	_, err = execute(t, "relay", "--db", db, "--name", "nightly", "--suppress-reset")
	require.Error(t, err)

	out, err := execute(t, "trace", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "nightly")
	assert.Contains(t, out, "pass")
	assert.Contains(t, out, "fail")
}
