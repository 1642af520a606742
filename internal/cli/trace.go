package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/carbonspin/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	DBPath string
	RunID  string
	Phase  string
}

// TraceEntry is one fired disturbance in trace output.
type TraceEntry struct {
	Seq            int64  `json:"seq"`
	Unit           string `json:"unit"`
	SpatialUnit    int    `json:"spatial_unit"`
	Phase          string `json:"phase"`
	Year           int    `json:"year"`
	Disturbance    string `json:"disturbance"`
	TypeCode       int    `json:"type_code"`
	Transition     int    `json:"transition"`
	SpecialSurface bool   `json:"special_surface,omitempty"`
}

// TraceRun lists a run in the log.
type TraceRun struct {
	RunID  string `json:"run_id"`
	Unit   string `json:"unit"`
	Events int    `json:"events"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show the disturbances fired during a run",
		Long: `Read the disturbance log written by "run --db".

Without --run, lists the runs in the database. With --run, prints every
disturbance the run fired in firing order, optionally limited to one
phase (spinup or simulation).`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DBPath, "db", "", "SQLite database written by run --db (required)")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run id to trace")
	cmd.Flags().StringVar(&opts.Phase, "phase", "", "only show this phase (spinup|simulation)")
	_ = cmd.MarkFlagRequired("db")
	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	switch opts.Phase {
	case "", store.PhaseSpinup, store.PhaseSimulation:
	default:
		msg := fmt.Sprintf("invalid phase %q: must be %s or %s", opts.Phase, store.PhaseSpinup, store.PhaseSimulation)
		_ = formatter.Error(ErrCodeGeneric, msg, nil)
		return NewExitError(ExitCommandError, msg)
	}

	// Opening a missing path would create an empty database.
	if _, err := os.Stat(opts.DBPath); err != nil {
		msg := fmt.Sprintf("database not found: %s", opts.DBPath)
		_ = formatter.Error(ErrCodeNotFound, msg, nil)
		return NewExitError(ExitCommandError, msg)
	}
	st, err := store.Open(opts.DBPath)
	if err != nil {
		_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("failed to open database: %v", err), nil)
		return WrapExitError(ExitCommandError, "open database", err)
	}
	defer st.Close()

	ctx := commandContext(cmd)

	if opts.RunID == "" {
		runs, err := st.ListRuns(ctx)
		if err != nil {
			_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
			return WrapExitError(ExitFailure, "list runs", err)
		}
		out := make([]TraceRun, 0, len(runs))
		for _, r := range runs {
			out = append(out, TraceRun{RunID: r.RunID, Unit: r.Unit, Events: r.Events})
		}
		if formatter.IsJSON() {
			return formatter.Success(out)
		}
		if len(out) == 0 {
			fmt.Fprintln(formatter.Writer, "No runs recorded")
			return nil
		}
		for _, r := range out {
			fmt.Fprintf(formatter.Writer, "%s  %-16s %d event(s)\n", r.RunID, r.Unit, r.Events)
		}
		return nil
	}

	recs, err := st.ReadDisturbances(ctx, opts.RunID)
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitFailure, "read trace", err)
	}
	if len(recs) == 0 {
		msg := fmt.Sprintf("no disturbances recorded for run %s", opts.RunID)
		_ = formatter.Error(ErrCodeNotFound, msg, nil)
		return NewExitError(ExitFailure, msg)
	}

	entries := make([]TraceEntry, 0, len(recs))
	for _, r := range recs {
		if opts.Phase != "" && r.Phase != opts.Phase {
			continue
		}
		entries = append(entries, TraceEntry{
			Seq:            r.Seq,
			Unit:           r.Unit,
			SpatialUnit:    r.SpatialUnit,
			Phase:          r.Phase,
			Year:           r.Year,
			Disturbance:    r.Disturbance,
			TypeCode:       r.TypeCode,
			Transition:     r.Transition,
			SpecialSurface: r.SpecialSurface,
		})
	}

	if formatter.IsJSON() {
		return formatter.Success(entries)
	}
	fmt.Fprintf(formatter.Writer, "Run %s (%s)\n", opts.RunID, recs[0].Unit)
	for _, e := range entries {
		line := fmt.Sprintf("  #%-3d %-10s %d  %s (type %d)", e.Seq, e.Phase, e.Year, e.Disturbance, e.TypeCode)
		if e.Transition >= 0 {
			line += fmt.Sprintf(" -> transition %d", e.Transition)
		}
		if e.SpecialSurface {
			line += " [special surface]"
		}
		fmt.Fprintln(formatter.Writer, line)
	}
	return nil
}
