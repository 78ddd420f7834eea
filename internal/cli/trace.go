package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/roach88/escalate/internal/store"
	"github.com/roach88/escalate/internal/trace"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
}

// TraceOutput is the JSON payload for a single relay. Events are canonical
// JSON, byte-identical to what the digest covers.
type TraceOutput struct {
	ID       string          `json:"id"`
	Scenario string          `json:"scenario"`
	Verdict  string          `json:"verdict"`
	Digest   string          `json:"digest"`
	Boots    []store.Boot    `json:"boots"`
	Events   json.RawMessage `json:"events"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace [relay-id]",
		Short: "Show stored relays",
		Long: `Show relays recorded with relay --db.

Without an ID, lists every stored relay. With an ID (or "latest"), prints
the relay's boots and its full transcript.

Examples:
  escalate trace --db ./relays.db
  escalate trace --db ./relays.db latest
  escalate trace --db ./relays.db 01936c1e-... --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id := ""
			if len(args) == 1 {
				id = args[0]
			}
			return runTrace(opts, id, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runTrace(opts *TraceOptions, id string, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	formatter := newFormatter(opts.RootOptions, cmd)

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	if id == "" {
		relays, err := st.ListRelays(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list relays", err)
		}
		if opts.Format == "json" {
			return formatter.Success(relays)
		}
		writeRelayList(formatter.Writer, relays)
		return nil
	}

	relay, err := readRelay(cmd, st, id)
	if err != nil {
		if errors.Is(err, store.ErrRelayNotFound) {
			_ = formatter.Error("E_NOT_FOUND", fmt.Sprintf("relay not found: %s", id), nil)
		}
		return err
	}

	if opts.Format == "json" {
		events, err := trace.MarshalCanonical(relay.Events)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to encode trace", err)
		}
		resp := okResponse(TraceOutput{
			ID:       relay.ID,
			Scenario: relay.Scenario,
			Verdict:  relay.Verdict,
			Digest:   relay.Digest,
			Boots:    relay.Boots,
			Events:   events,
		})
		resp.RelayID = relay.ID
		return writeJSON(formatter.Writer, resp)
	}

	writeRelayDetail(formatter.Writer, relay)
	return nil
}

// readRelay resolves id ("latest" included) and loads the relay.
func readRelay(cmd *cobra.Command, st *store.Store, id string) (*store.Relay, error) {
	ctx := commandContext(cmd)
	if id == "latest" {
		latest, err := st.LatestRelayID(ctx)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "no relays stored", err)
		}
		id = latest
	}

	relay, err := st.ReadRelay(ctx, id)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to read relay", err)
	}
	return relay, nil
}

func writeRelayList(w io.Writer, relays []store.RelaySummary) {
	if len(relays) == 0 {
		fmt.Fprintln(w, "No relays stored.")
		return
	}

	table := tablewriter.NewWriter(w)
	table.Header("Relay", "Scenario", "Verdict", "Boots", "Digest")
	for _, r := range relays {
		table.Append([]string{r.ID, r.Scenario, r.Verdict, strconv.Itoa(r.BootCount), shortDigest(r.Digest)})
	}
	table.Render()
}

func writeRelayDetail(w io.Writer, relay *store.Relay) {
	fmt.Fprintf(w, "Relay:    %s\n", relay.ID)
	fmt.Fprintf(w, "Scenario: %s\n", relay.Scenario)
	fmt.Fprintf(w, "Verdict:  %s\n", relay.Verdict)
	fmt.Fprintf(w, "Digest:   %s\n\n", relay.Digest)

	table := tablewriter.NewWriter(w)
	table.Header("Boot", "Reset Info", "Cause", "Result")
	for _, b := range relay.Boots {
		table.Append([]string{strconv.Itoa(b.Index), strconv.FormatUint(uint64(b.ResetInfo), 10), b.Cause, b.Result})
	}
	table.Render()

	fmt.Fprintln(w)
	fmt.Fprint(w, trace.Render(relay.Events))
}

// shortDigest trims a digest for table display.
func shortDigest(d string) string {
	if len(d) > 12 {
		return d[:12]
	}
	return d
}
