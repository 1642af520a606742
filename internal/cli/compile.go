package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/carbonspin/internal/catalog"
	"github.com/roach88/carbonspin/internal/compiler"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// CompilationSummary describes a compiled configuration.
type CompilationSummary struct {
	StartYear        int      `json:"start_year"`
	EndYear          int      `json:"end_year"`
	RampStartYear    int      `json:"ramp_start_year,omitempty"`
	Pools            []string `json:"pools"`
	Matrices         int      `json:"matrices"`
	DisturbanceTypes []string `json:"disturbance_types"`
	Conditions       int      `json:"conditions"`
	InlineEvents     int      `json:"inline_events"`
	Layers           []string `json:"layers,omitempty"`
	SlowPools        []string `json:"slow_pools"`
	Units            []string `json:"units"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <config-dir>",
		Short: "Compile a configuration and summarise it",
		Long: `Compile a CUE configuration and print a summary of what it declares:
the calendar, pools, disturbance types in priority order and units.

With --output the summary is written to a file as JSON.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")
	return cmd
}

func runCompile(opts *CompileOptions, dir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	cfg, loadErr := LoadConfig(dir)
	if loadErr != nil {
		_ = formatter.Error(loadErr.Code, loadErr.Message, nil)
		code := ExitFailure
		if loadErr.IsCommandError() {
			code = ExitCommandError
		}
		return NewExitError(code, loadErr.Error())
	}

	summary, err := Summarize(cfg)
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitFailure, "summarize configuration", err)
	}

	if opts.Output != "" {
		data, err := json.MarshalIndent(summary, "", "  ")
		if err != nil {
			return WrapExitError(ExitFailure, "encode summary", err)
		}
		if err := os.WriteFile(opts.Output, append(data, '\n'), 0o644); err != nil {
			_ = formatter.Error(ErrCodeWriteFailed, err.Error(), nil)
			return WrapExitError(ExitCommandError, "write summary", err)
		}
		formatter.VerboseLog("Wrote %s", opts.Output)
	}

	if formatter.IsJSON() {
		return formatter.Success(summary)
	}
	w := formatter.Writer
	fmt.Fprintf(w, "✓ Compiled %s\n", dir)
	fmt.Fprintf(w, "  calendar:    %d-%d\n", summary.StartYear, summary.EndYear)
	if summary.RampStartYear > 0 {
		fmt.Fprintf(w, "  ramp start:  %d\n", summary.RampStartYear)
	}
	fmt.Fprintf(w, "  pools:       %s\n", strings.Join(summary.Pools, ", "))
	fmt.Fprintf(w, "  matrices:    %d\n", summary.Matrices)
	fmt.Fprintf(w, "  priority:    %s\n", strings.Join(summary.DisturbanceTypes, ", "))
	fmt.Fprintf(w, "  units:       %s\n", strings.Join(summary.Units, ", "))
	return nil
}

// Summarize describes a compiled configuration.
func Summarize(cfg *compiler.Config) (*CompilationSummary, error) {
	cat, err := catalog.New(cfg.Tables)
	if err != nil {
		return nil, err
	}
	s := &CompilationSummary{
		StartYear:        cfg.Simulation.StartYear,
		EndYear:          cfg.Simulation.EndYear,
		RampStartYear:    cfg.Simulation.RampStartYear,
		Matrices:         len(cfg.Tables.Matrices),
		DisturbanceTypes: cat.PriorityOrder(),
		Conditions:       len(cfg.Listener.Conditions),
		InlineEvents:     len(cfg.Listener.Inline),
		Layers:           cfg.Listener.Layers,
		SlowPools:        cfg.Spinup.SlowPools,
		Pools:            make([]string, 0, len(cfg.Pools)),
		Units:            make([]string, 0, len(cfg.Units)),
	}
	for _, p := range cfg.Pools {
		s.Pools = append(s.Pools, p.Name)
	}
	for _, u := range cfg.Units {
		s.Units = append(s.Units, u.Name)
	}
	return s, nil
}
