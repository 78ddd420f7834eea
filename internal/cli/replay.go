package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/escalate/internal/harness"
	"github.com/roach88/escalate/internal/store"
	"github.com/roach88/escalate/internal/trace"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	Scenario string // optional - re-run this scenario and compare
}

// ReplayResult holds the replay result for one relay.
type ReplayResult struct {
	RelayID        string `json:"relay_id"`
	StoredDigest   string `json:"stored_digest"`
	ComputedDigest string `json:"computed_digest"`
	Intact         bool   `json:"intact"`
	ReplayDigest   string `json:"replay_digest,omitempty"`
	Deterministic  *bool  `json:"deterministic,omitempty"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay [relay-id]",
		Short: "Verify a stored relay and its determinism",
		Long: `Verify a stored relay.

Recomputes the trace digest from the stored events and compares it with
the digest recorded when the relay ran. With --scenario, the scenario is
run again and its digest must match too: relays are deterministic, so the
same scenario always yields the same trace.

The relay ID defaults to the latest stored relay.

Exit codes:
  0 - Digests match
  1 - Digest mismatch (stored trace altered, or relay not deterministic)
  2 - Command error (database not found, etc.)

Examples:
  escalate replay --db ./relays.db
  escalate replay --db ./relays.db 01936c1e-... --scenario ./scenarios/escalation_relay.yaml`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id := "latest"
			if len(args) == 1 {
				id = args[0]
			}
			return runReplay(opts, id, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Scenario, "scenario", "", "re-run this scenario and compare digests")

	return cmd
}

func runReplay(opts *ReplayOptions, id string, cmd *cobra.Command) error {
	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	relay, err := readRelay(cmd, st, id)
	if err != nil {
		return err
	}

	computed, err := trace.Digest(relay.Events)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to compute digest", err)
	}
	result := ReplayResult{
		RelayID:        relay.ID,
		StoredDigest:   relay.Digest,
		ComputedDigest: computed,
		Intact:         computed == relay.Digest,
	}
	ok := result.Intact

	if opts.Scenario != "" {
		scenario, err := harness.LoadScenario(opts.Scenario)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load scenario", err)
		}
		rerun, err := harness.Run(commandContext(cmd), scenario)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to re-run scenario", err)
		}
		deterministic := rerun.Digest == relay.Digest
		result.ReplayDigest = rerun.Digest
		result.Deterministic = &deterministic
		ok = ok && deterministic
	}

	if opts.Format == "json" {
		resp := okResponse(result)
		if !ok {
			resp = failResponse(result, "E_DIGEST_MISMATCH", "digest mismatch")
		}
		resp.RelayID = relay.ID
		if err := writeJSON(cmd.OutOrStdout(), resp); err != nil {
			return err
		}
	} else {
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "Relay: %s\n", relay.ID)
		fmt.Fprintf(w, "%s stored digest %s\n", mark(result.Intact), relay.Digest)
		if result.Deterministic != nil {
			fmt.Fprintf(w, "%s replay digest %s\n", mark(*result.Deterministic), result.ReplayDigest)
		}
	}

	if !ok {
		return NewExitError(ExitFailure, "digest mismatch")
	}
	return nil
}

func mark(ok bool) string {
	if ok {
		return "✓"
	}
	return "✗"
}
