package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/carbonspin/internal/compiler"
	"github.com/roach88/carbonspin/internal/ir"
	"github.com/roach88/carbonspin/internal/runner"
	"github.com/roach88/carbonspin/internal/spinup"
	"github.com/roach88/carbonspin/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	DBPath string   // optional SQLite store for the spin-up cache and event log
	Units  []string // units to run, in order; all when empty
}

// RunSummary is the JSON payload of a run.
type RunSummary struct {
	Units  []*runner.UnitResult `json:"units"`
	Failed []string             `json:"failed,omitempty"`
	Cached int                  `json:"cached_snapshots"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <config-dir>",
		Short: "Spin up and simulate every unit of a configuration",
		Long: `Spin up each unit to equilibrium, then simulate it from the start year
to the end year.

With --db, spun-up pools are cached in a SQLite database and reused
across runs, and every fired disturbance is logged for the trace command.

Units that fail with configuration or data quality errors are reported
and skipped; the command exits with status 1 if any unit failed.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DBPath, "db", "", "SQLite database for the spin-up cache and disturbance log")
	cmd.Flags().StringSliceVar(&opts.Units, "unit", nil, "run only the named unit (repeatable)")
	return cmd
}

func runRun(opts *RunOptions, dir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	logger := newLogger(opts.RootOptions, formatter.GetErrWriter())

	cfg, loadErr := LoadConfig(dir)
	if loadErr != nil {
		_ = formatter.Error(loadErr.Code, loadErr.Message, nil)
		code := ExitFailure
		if loadErr.IsCommandError() {
			code = ExitCommandError
		}
		return NewExitError(code, loadErr.Error())
	}

	if len(opts.Units) > 0 {
		units, err := pickUnits(cfg, opts.Units)
		if err != nil {
			_ = formatter.Error(ErrCodeUnits, err.Error(), nil)
			return WrapExitError(ExitCommandError, "select units", err)
		}
		cfg.Units = units
	}

	runnerOpts := []runner.Option{runner.WithLogger(logger)}
	var st *store.Store
	if opts.DBPath != "" {
		var err error
		st, err = store.Open(opts.DBPath)
		if err != nil {
			_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("failed to open database: %v", err), nil)
			return WrapExitError(ExitCommandError, "open database", err)
		}
		defer st.Close()
		runnerOpts = append(runnerOpts,
			runner.WithCache(spinup.NewCache(st, logger)),
			runner.WithEventLog(st),
		)
		formatter.VerboseLog("Using database %s", opts.DBPath)
	}

	r, err := runner.New(cfg, runnerOpts...)
	if err != nil {
		_ = formatter.Error(ErrCodeTables, err.Error(), nil)
		return WrapExitError(ExitFailure, "build runner", err)
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	results, runErr := r.RunAll(ctx)
	summary := RunSummary{Units: results, Cached: r.Cache().Len()}
	if runErr != nil {
		summary.Failed = unitErrors(runErr)
	}

	if formatter.IsJSON() {
		if runErr != nil {
			if err := formatter.Failure(ErrCodeGeneric, runErr.Error(), summary); err != nil {
				return err
			}
		} else if err := formatter.Success(summary); err != nil {
			return err
		}
	} else {
		printRunSummary(formatter, summary)
	}

	if runErr != nil {
		return WrapExitError(ExitFailure, fmt.Sprintf("%d unit(s) failed", len(summary.Failed)), runErr)
	}
	return nil
}

func printRunSummary(formatter *OutputFormatter, summary RunSummary) {
	w := formatter.Writer
	for _, u := range summary.Units {
		cached := ""
		if u.Spinup.Cached {
			cached = ", cached"
		}
		fmt.Fprintf(w, "✓ %s (%s%s): %d event(s)\n", u.Unit, u.Spinup.Variant, cached, len(u.Events))
		fmt.Fprintf(w, "  run id:      %s\n", u.RunID)
		if !u.Spinup.Cached && u.Spinup.Variant == ir.VariantForest {
			fmt.Fprintf(w, "  spin-up:     %d rotation(s), stable=%t, stand age %d\n",
				u.Spinup.Rotations, u.Spinup.Stable, u.Spinup.StandAge)
		}
		for _, p := range u.Pools {
			fmt.Fprintf(w, "  %-12s %g\n", p.Name+":", p.Value)
		}
		for _, l := range u.ErrorLayers {
			fmt.Fprintf(w, "  ! layer %s could not be read\n", l)
		}
	}
	for _, f := range summary.Failed {
		fmt.Fprintf(w, "✗ %s\n", f)
	}
	fmt.Fprintf(w, "\nRun Summary: %d succeeded, %d failed\n", len(summary.Units), len(summary.Failed))
}

// unitErrors flattens the joined unit errors returned by RunAll.
func unitErrors(err error) []string {
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		var out []string
		for _, e := range joined.Unwrap() {
			out = append(out, e.Error())
		}
		return out
	}
	return []string{err.Error()}
}

// pickUnits returns the named units in the given order.
func pickUnits(cfg *compiler.Config, names []string) ([]compiler.Unit, error) {
	out := make([]compiler.Unit, 0, len(names))
	for _, n := range names {
		u, ok := cfg.Unit(n)
		if !ok {
			return nil, fmt.Errorf("unit %q not found in configuration", n)
		}
		out = append(out, u)
	}
	return out, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
