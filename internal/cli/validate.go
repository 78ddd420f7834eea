package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/escalate/internal/harness"
)

// FileValidation is the validation outcome of one scenario file.
type FileValidation struct {
	File   string                `json:"file"`
	Valid  bool                  `json:"valid"`
	Errors []harness.SchemaError `json:"errors,omitempty"`
}

// ValidationResult holds validation results for every file.
type ValidationResult struct {
	Valid bool             `json:"valid"`
	Files []FileValidation `json:"files"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <scenario>...",
		Short: "Validate scenario files without running them",
		Long: `Validate scenario files against the scenario schema.

Checks structure, enumerations and ranges with the CUE #Scenario
definition, then the cross-field rules the harness enforces on load.
Every violation is reported, not only the first.

Exit codes:
  0 - All files valid
  1 - One or more files invalid
  2 - Command error (unreadable file, etc.)`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, files []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	result := ValidationResult{Valid: true, Files: make([]FileValidation, 0, len(files))}
	invalid := 0
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			_ = formatter.Error("E_READ", fmt.Sprintf("failed to read %s", file), err.Error())
			return WrapExitError(ExitCommandError, "failed to read scenario", err)
		}
		formatter.VerboseLog("validating %s", file)

		fv := FileValidation{File: file, Valid: true}
		fv.Errors = harness.ValidateSchema(data)
		if len(fv.Errors) == 0 {
			if _, err := harness.ParseScenario(data); err != nil {
				fv.Errors = append(fv.Errors, harness.SchemaError{Message: err.Error()})
			}
		}
		if len(fv.Errors) > 0 {
			fv.Valid = false
			result.Valid = false
			invalid++
		}
		result.Files = append(result.Files, fv)
	}

	if opts.Format == "json" {
		resp := okResponse(result)
		if !result.Valid {
			resp = failResponse(result, "E_SCHEMA", fmt.Sprintf("%d file(s) invalid", invalid))
		}
		if err := writeJSON(formatter.Writer, resp); err != nil {
			return err
		}
	} else {
		w := formatter.Writer
		for _, fv := range result.Files {
			if fv.Valid {
				fmt.Fprintf(w, "✓ %s\n", fv.File)
				continue
			}
			fmt.Fprintf(w, "✗ %s\n", fv.File)
			for _, e := range fv.Errors {
				fmt.Fprintf(w, "  %s\n", e.Error())
			}
		}
	}

	if !result.Valid {
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed: %d file(s) invalid", invalid))
	}
	return nil
}
