package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Units  int               `json:"units,omitempty"`
	Pools  int               `json:"pools,omitempty"`
	Errors []ValidationIssue `json:"errors,omitempty"`
}

// ValidationIssue is one configuration problem.
type ValidationIssue struct {
	Code    string `json:"code"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <config-dir>",
		Short: "Validate a configuration without running it",
		Long: `Load and compile a CUE configuration without running any unit.

Checks the calendar, pools, disturbance tables, conditions, spin-up and
process settings, and every pool reference between them.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runValidate(opts *RootOptions, dir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	cfg, loadErr := LoadConfig(dir)
	if loadErr != nil {
		if loadErr.IsCommandError() {
			_ = formatter.Error(loadErr.Code, loadErr.Message, nil)
			return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", loadErr.Code, loadErr.Message))
		}
		return outputValidationError(formatter, loadErr)
	}

	formatter.VerboseLog("Compiled %s: %d pool(s), %d unit(s)", dir, len(cfg.Pools), len(cfg.Units))

	if formatter.IsJSON() {
		return formatter.Success(ValidationResult{Valid: true, Units: len(cfg.Units), Pools: len(cfg.Pools)})
	}
	fmt.Fprintf(formatter.Writer, "✓ Configuration valid (%d pools, %d units)\n", len(cfg.Pools), len(cfg.Units))
	return nil
}

func outputValidationError(formatter *OutputFormatter, loadErr *LoadError) error {
	issue := ValidationIssue{
		Code:    loadErr.Code,
		Field:   loadErr.Field,
		Message: loadErr.Message,
		Line:    loadErr.Line(),
	}
	exitErr := NewExitError(ExitFailure, fmt.Sprintf("validation failed: %s", loadErr.Message))

	if formatter.IsJSON() {
		if err := formatter.Failure(issue.Code, issue.Message, ValidationResult{Errors: []ValidationIssue{issue}}); err != nil {
			return err
		}
		return exitErr
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	if issue.Line > 0 {
		fmt.Fprintf(formatter.Writer, "line %d\n", issue.Line)
	}
	if issue.Field != "" {
		fmt.Fprintf(formatter.Writer, "  %s [%s]: %s\n", issue.Code, issue.Field, issue.Message)
	} else {
		fmt.Fprintf(formatter.Writer, "  %s: %s\n", issue.Code, issue.Message)
	}
	return exitErr
}
