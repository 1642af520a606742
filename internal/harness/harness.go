package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/carbonspin/internal/compiler"
	"github.com/roach88/carbonspin/internal/engine"
	"github.com/roach88/carbonspin/internal/runner"
	"github.com/roach88/carbonspin/internal/spinup"
	"github.com/roach88/carbonspin/internal/store"
)

const defaultRunID = "scenario"

// Option configures a scenario run.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger routes module logs to l. Runs are silent by default.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Run executes a scenario and evaluates its assertions.
//
// Each run gets a fresh in-memory store, used both as the spin-up snapshot
// store and the event log the trace is read back from. A returned error
// means the scenario could not run; failed assertions are reported in the
// Result.
func Run(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	o := options{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&o)
	}

	cfg, err := compiler.LoadDir(scenario.Config)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	units, err := selectUnits(cfg, scenario.Units)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	prefix := scenario.RunID
	if prefix == "" {
		prefix = defaultRunID
	}
	ids := make([]string, len(units))
	for i, u := range units {
		ids[i] = prefix + "-" + u.Name
	}

	r, err := runner.New(cfg,
		runner.WithLogger(o.logger),
		runner.WithCache(spinup.NewCache(st, o.logger)),
		runner.WithEventLog(st),
		runner.WithRunIDs(engine.NewFixedGenerator(ids...)),
	)
	if err != nil {
		return nil, err
	}

	result := NewResult()
	for _, u := range units {
		res, err := r.RunUnit(ctx, u)
		if err != nil {
			return nil, fmt.Errorf("unit %q: %w", u.Name, err)
		}
		result.Units = append(result.Units, res)

		recs, err := st.ReadDisturbances(ctx, res.RunID)
		if err != nil {
			return nil, fmt.Errorf("read trace for unit %q: %w", u.Name, err)
		}
		for _, rec := range recs {
			result.Trace = append(result.Trace, TraceEvent{
				Seq:         rec.Seq,
				Unit:        rec.Unit,
				Phase:       rec.Phase,
				Year:        rec.Year,
				Disturbance: rec.Disturbance,
				TypeCode:    rec.TypeCode,
				Transition:  rec.Transition,
			})
		}
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// selectUnits returns the named units in the given order, or every unit
// when names is empty.
func selectUnits(cfg *compiler.Config, names []string) ([]compiler.Unit, error) {
	if len(names) == 0 {
		if len(cfg.Units) == 0 {
			return nil, fmt.Errorf("configuration declares no units")
		}
		return cfg.Units, nil
	}
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
