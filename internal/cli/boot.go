package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/roach88/escalate/internal/device"
	"github.com/roach88/escalate/internal/rstmgr"
	"github.com/roach88/escalate/internal/sequencer"
)

// BootOptions holds flags for the boot command.
type BootOptions struct {
	*RootOptions
	ResetInfo     uint32
	NoVerify      bool
	SuppressReset bool
	SkipNMI       bool
	KeymgrFault   bool
	Timeout       time.Duration
}

// BootOutput is the JSON payload of the boot command.
type BootOutput struct {
	ResetInfo     uint32   `json:"reset_info"`
	Cause         string   `json:"cause"`
	Result        string   `json:"result"`
	NextResetInfo uint32   `json:"next_reset_info"`
	Console       []string `json:"console"`
	Panic         string   `json:"panic,omitempty"`
}

// NewBootCommand creates the boot command.
func NewBootCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BootOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "boot",
		Short: "Run a single boot lifetime",
		Long: `Run one boot of the escalation test on a fresh simulated chip.

The boot observes the given raw reset info (power-on by default) and
prints its console. A power-on boot is expected to end in a chip reset;
an escalation boot is expected to pass.

Exit codes:
  0 - The boot passed or was reset by escalation
  1 - The boot failed or hung
  2 - Command error (invalid config, etc.)

Examples:
  escalate boot
  escalate boot --reset-info 8
  escalate boot --suppress-reset
  escalate boot --reset-info 4 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBoot(opts, cmd)
		},
	}

	cmd.Flags().Uint32Var(&opts.ResetInfo, "reset-info", uint32(rstmgr.InfoPor), "raw reset info the boot observes (default power-on)")
	cmd.Flags().BoolVar(&opts.NoVerify, "no-verify", false, "build without verification (prints the placeholder)")
	cmd.Flags().BoolVar(&opts.SuppressReset, "suppress-reset", false, "fault: the final escalation phase never resets the chip")
	cmd.Flags().BoolVar(&opts.SkipNMI, "skip-nmi", false, "fault: the escalation NMI is never delivered")
	cmd.Flags().BoolVar(&opts.KeymgrFault, "keymgr-fault", false, "fault: the key manager refuses to advance")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 0, "boot timeout (default from config)")

	return cmd
}

func runBoot(opts *BootOptions, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts.RootOptions, func(v *viper.Viper) {
		if opts.NoVerify {
			v.Set("verification_enabled", false)
		}
		if cmd.Flags().Changed("timeout") {
			v.Set("boot_timeout", opts.Timeout)
		}
	})
	if err != nil {
		return err
	}
	logger := newLogger(cmd, cfg)

	var uart io.Writer
	if opts.Format != "json" {
		uart = cmd.OutOrStdout()
	}
	faults := device.Faults{
		SuppressReset: opts.SuppressReset,
		SkipNMI:       opts.SkipNMI,
		KeymgrFault:   opts.KeymgrFault,
	}
	if cmd.Flags().Changed("reset-info") {
		faults.InitialResetInfo = &opts.ResetInfo
	}
	chip := device.NewChip(device.WithFaults(faults), device.WithConsole(uart))
	chip.PowerOn()

	seq := sequencer.New(cfg.Sequencer(), sequencer.WithLogger(logger))

	ctx, cancel := context.WithTimeout(commandContext(cmd), cfg.BootTimeout)
	defer cancel()
	logger.Debug("booting", "reset_info", chip.ResetInfo().String(), "timeout", cfg.BootTimeout)
	rec := chip.Boot(ctx, seq.Run)

	out := BootOutput{
		ResetInfo:     uint32(rec.ResetInfo),
		Cause:         rstmgr.Classify(rec.ResetInfo).Kind.String(),
		Result:        string(rec.Result),
		NextResetInfo: uint32(chip.ResetInfo()),
		Console:       make([]string, 0, len(rec.Console)),
		Panic:         rec.Panic,
	}
	for _, l := range rec.Console {
		out.Console = append(out.Console, fmt.Sprintf("%s %s", l.Level, l.Text))
	}

	ok := rec.Result == device.ResultPass || rec.Result == device.ResultReset
	if opts.Format == "json" {
		resp := okResponse(out)
		if !ok {
			resp = failResponse(out, "E_BOOT_"+strings.ToUpper(string(rec.Result)), "boot "+string(rec.Result))
		}
		if err := writeJSON(cmd.OutOrStdout(), resp); err != nil {
			return err
		}
	} else {
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "\nBoot: cause=%s result=%s\n", out.Cause, out.Result)
		if rec.Result == device.ResultReset {
			fmt.Fprintf(w, "Next reset info: %s\n", chip.ResetInfo())
		}
		if rec.Panic != "" {
			fmt.Fprintf(w, "Panic: %s\n", rec.Panic)
		}
	}

	if !ok {
		return NewExitError(ExitFailure, fmt.Sprintf("boot %s", rec.Result))
	}
	return nil
}

// commandContext returns the command's context, or Background when the
// command runs outside Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
