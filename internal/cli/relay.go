package cli

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/roach88/escalate/internal/device"
	"github.com/roach88/escalate/internal/harness"
	"github.com/roach88/escalate/internal/metrics"
	"github.com/roach88/escalate/internal/store"
	"github.com/roach88/escalate/internal/trace"
)

// RelayOptions holds flags for the relay command.
type RelayOptions struct {
	*RootOptions
	Database      string
	Metrics       bool
	MaxBoots      int
	Name          string
	SuppressReset bool
	SkipNMI       bool
	KeymgrFault   bool

	// IDGenerator allows overriding the relay ID generator (for testing).
	// If nil, defaults to harness.UUIDv7Generator.
	IDGenerator harness.IDGenerator
}

// RelayOutput is the JSON payload of the relay command.
type RelayOutput struct {
	*harness.Result
	Metrics string `json:"metrics,omitempty"`
}

// NewRelayCommand creates the relay command.
func NewRelayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RelayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Run the full multi-boot relay from power-on",
		Long: `Power on a simulated chip and boot it until the test reaches a verdict.

Every chip reset hands over to the next boot. The transcript shows each
boot with its console lines and the hardware events the firmware never
sees, such as life-cycle escalation.

Exit codes:
  0 - The relay passed
  1 - The relay failed (boot failed, hung, or ran out of boots)
  2 - Command error (invalid config, database error, etc.)

Examples:
  escalate relay
  escalate relay --db ./relays.db
  escalate relay --suppress-reset --metrics
  escalate relay --config ./escalate.yaml --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRelay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "persist the relay to this SQLite database")
	cmd.Flags().BoolVar(&opts.Metrics, "metrics", false, "print relay metrics in Prometheus text format")
	cmd.Flags().IntVar(&opts.MaxBoots, "max-boots", 0, "boot budget (default from config)")
	cmd.Flags().StringVar(&opts.Name, "name", "relay", "name recorded with the relay")
	cmd.Flags().BoolVar(&opts.SuppressReset, "suppress-reset", false, "fault: the final escalation phase never resets the chip")
	cmd.Flags().BoolVar(&opts.SkipNMI, "skip-nmi", false, "fault: the escalation NMI is never delivered")
	cmd.Flags().BoolVar(&opts.KeymgrFault, "keymgr-fault", false, "fault: the key manager refuses to advance")

	return cmd
}

func runRelay(opts *RelayOptions, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts.RootOptions, func(v *viper.Viper) {
		if cmd.Flags().Changed("db") {
			v.Set("db", opts.Database)
		}
		if cmd.Flags().Changed("max-boots") {
			v.Set("max_boots", opts.MaxBoots)
		}
	})
	if err != nil {
		return err
	}
	logger := newLogger(cmd, cfg)

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	harnessOpts := []harness.Option{harness.WithLogger(logger)}
	if opts.IDGenerator != nil {
		harnessOpts = append(harnessOpts, harness.WithIDGenerator(opts.IDGenerator))
	}

	if cfg.DB != "" {
		st, err := store.Open(cfg.DB)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing database", "error", closeErr)
			}
		}()
		harnessOpts = append(harnessOpts, harness.WithStore(st))
	}

	var rec *metrics.Recorder
	if opts.Metrics {
		rec = metrics.NewRecorder()
		harnessOpts = append(harnessOpts, harness.WithMetrics(rec))
	}

	spec := harness.RelaySpec{
		Name:      opts.Name,
		Sequencer: cfg.Sequencer(),
		Faults: device.Faults{
			SuppressReset: opts.SuppressReset,
			SkipNMI:       opts.SkipNMI,
			KeymgrFault:   opts.KeymgrFault,
		},
		MaxBoots:    cfg.MaxBoots,
		BootTimeout: cfg.BootTimeout,
	}

	result, err := harness.Relay(ctx, spec, harnessOpts...)
	if err != nil {
		if ctx.Err() != nil {
			return WrapExitError(ExitCommandError, "relay interrupted", err)
		}
		return WrapExitError(ExitCommandError, "relay error", err)
	}

	var exposition string
	if rec != nil {
		var buf bytes.Buffer
		if err := rec.WriteText(&buf); err != nil {
			return WrapExitError(ExitCommandError, "failed to write metrics", err)
		}
		exposition = buf.String()
	}

	if opts.Format == "json" {
		out := RelayOutput{Result: result, Metrics: exposition}
		resp := okResponse(out)
		if !result.Pass {
			resp = failResponse(out, "E_RELAY_FAILED", "relay failed")
		}
		resp.RelayID = result.RelayID
		if err := writeJSON(cmd.OutOrStdout(), resp); err != nil {
			return err
		}
	} else {
		writeRelayText(cmd.OutOrStdout(), result)
		if exposition != "" {
			fmt.Fprintln(cmd.OutOrStdout())
			fmt.Fprint(cmd.OutOrStdout(), exposition)
		}
	}

	if !result.Pass {
		return NewExitError(ExitFailure, "relay failed")
	}
	return nil
}

// writeRelayText prints the transcript followed by a summary.
func writeRelayText(w io.Writer, result *harness.Result) {
	fmt.Fprint(w, trace.Render(result.Trace))
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Relay:   %s\n", result.RelayID)
	fmt.Fprintf(w, "Verdict: %s (%d boots)\n", result.Verdict, len(result.Boots))
	for _, f := range result.Failures {
		fmt.Fprintf(w, "  %s\n", f)
	}
	fmt.Fprintf(w, "Digest:  %s\n", result.Digest)
}

