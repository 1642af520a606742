// Package runner drives compiled configurations unit by unit: spin-up first,
// then the annual simulation over the configured calendar.
//
// Each unit gets its own state and dispatchers. Only the spin-up cache is
// shared between units, so units with matching cache keys skip equilibrium.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/carbonspin/internal/catalog"
	"github.com/roach88/carbonspin/internal/compiler"
	"github.com/roach88/carbonspin/internal/disturbance"
	"github.com/roach88/carbonspin/internal/engine"
	"github.com/roach88/carbonspin/internal/ir"
	"github.com/roach88/carbonspin/internal/landunit"
	"github.com/roach88/carbonspin/internal/process"
	"github.com/roach88/carbonspin/internal/spinup"
	"github.com/roach88/carbonspin/internal/store"
)

// applierModule is the handler after which a fired disturbance has moved
// carbon and reset ages.
const applierModule = "disturbance_applier"

// EventLog persists fired disturbances. *store.Store implements it.
type EventLog interface {
	WriteDisturbance(ctx context.Context, rec store.DisturbanceRecord) error
}

// FiredEvent is one disturbance applied to a unit.
type FiredEvent struct {
	Phase          string `json:"phase"`
	Year           int    `json:"year"`
	Disturbance    string `json:"disturbance"`
	TypeCode       int    `json:"type_code"`
	Transition     int    `json:"transition"`
	SpecialSurface bool   `json:"special_surface"`
}

// PoolValue is a pool's final stock.
type PoolValue struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// UnitResult summarises one unit run.
type UnitResult struct {
	Unit        string        `json:"unit"`
	RunID       string        `json:"run_id"`
	Spinup      spinup.Result `json:"spinup"`
	Events      []FiredEvent  `json:"events"`
	Pools       []PoolValue   `json:"pools"`
	ErrorLayers []string      `json:"error_layers,omitempty"`
}

// Pool returns the final value of the named pool.
func (r *UnitResult) Pool(name string) (float64, bool) {
	for _, p := range r.Pools {
		if p.Name == name {
			return p.Value, true
		}
	}
	return 0, false
}

// Runner runs the units of one compiled configuration.
type Runner struct {
	cfg     *compiler.Config
	catalog *catalog.Catalog
	cache   *spinup.Cache
	log     EventLog
	runIDs  engine.RunIDGenerator
	logger  *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger handed to every module.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithCache shares a spin-up cache across runners.
func WithCache(c *spinup.Cache) Option {
	return func(r *Runner) { r.cache = c }
}

// WithEventLog persists every fired disturbance.
func WithEventLog(l EventLog) Option {
	return func(r *Runner) { r.log = l }
}

// WithRunIDs sets the run id generator. Defaults to UUIDv7.
func WithRunIDs(g engine.RunIDGenerator) Option {
	return func(r *Runner) { r.runIDs = g }
}

// New builds a runner. The disturbance catalog is built once and shared.
func New(cfg *compiler.Config, opts ...Option) (*Runner, error) {
	if cfg == nil {
		return nil, errors.New("runner requires a compiled configuration")
	}
	cat, err := catalog.New(cfg.Tables)
	if err != nil {
		return nil, fmt.Errorf("build catalog: %w", err)
	}
	r := &Runner{
		cfg:     cfg,
		catalog: cat,
		runIDs:  engine.UUIDv7Generator{},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.cache == nil {
		r.cache = spinup.NewCache(nil, r.logger)
	}
	return r, nil
}

// Cache returns the spin-up cache shared by this runner's units.
func (r *Runner) Cache() *spinup.Cache { return r.cache }

// RunAll runs every unit in declaration order. A unit that fails with a
// CONFIGURATION or DATA_QUALITY error is logged and skipped; any other error
// stops the run. The joined unit errors are returned with the results of the
// units that completed.
func (r *Runner) RunAll(ctx context.Context) ([]*UnitResult, error) {
	var (
		results []*UnitResult
		errs    []error
	)
	for _, u := range r.cfg.Units {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res, err := r.RunUnit(ctx, u)
		if err != nil {
			if !engine.IsConfigError(err) && !engine.IsDataQualityError(err) {
				return results, fmt.Errorf("unit %q: %w", u.Name, err)
			}
			r.logger.Error("unit skipped", "unit", u.Name, "error", err)
			errs = append(errs, fmt.Errorf("unit %q: %w", u.Name, err))
			continue
		}
		results = append(results, res)
	}
	return results, errors.Join(errs...)
}

// RunUnit spins up one unit and simulates it from the start year to the end
// year inclusive.
func (r *Runner) RunUnit(ctx context.Context, u compiler.Unit) (*UnitResult, error) {
	data, err := landunit.NewData(r.cfg.Pools)
	if err != nil {
		return nil, engine.ConfigError("unit pools: %v", err)
	}
	for k, v := range u.Variables {
		data.SetVariable(k, v)
	}

	res := &UnitResult{Unit: u.Name, RunID: r.runIDs.Generate()}
	logger := r.logger.With("unit", u.Name, "run_id", res.RunID)
	obs := &observer{runner: r, data: data, result: res}

	spin, err := r.spinup(ctx, data, obs, logger)
	if err != nil {
		return nil, err
	}
	res.Spinup = spin
	logger.Debug("spinup complete",
		"variant", spin.Variant,
		"cached", spin.Cached,
		"rotations", spin.Rotations)

	layers, err := r.simulate(ctx, data, obs, logger)
	if err != nil {
		return nil, err
	}
	res.ErrorLayers = layers

	for _, p := range data.Pools() {
		res.Pools = append(res.Pools, PoolValue{Name: p.Name(), Value: p.Value()})
	}
	return res, nil
}

func (r *Runner) spinup(ctx context.Context, data *landunit.Data, obs *observer, logger *slog.Logger) (spinup.Result, error) {
	disp := engine.NewDispatcher(engine.WithLogger(logger))
	listener, err := r.wire(disp, data, logger, true)
	if err != nil {
		return spinup.Result{}, err
	}
	obs.phase = store.PhaseSpinup
	obs.register(disp)

	seq := spinup.New(r.cfg.Spinup, r.catalog, data, disp, listener, r.cache, spinup.WithLogger(logger))
	return seq.Run(ctx)
}

func (r *Runner) simulate(ctx context.Context, data *landunit.Data, obs *observer, logger *slog.Logger) ([]string, error) {
	disp := engine.NewDispatcher(engine.WithLogger(logger))
	listener, err := r.wire(disp, data, logger, false)
	if err != nil {
		return nil, err
	}
	obs.phase = store.PhaseSimulation
	obs.register(disp)

	sim := r.cfg.Simulation
	t := data.Timing()
	t.Reset(sim.StartYear, sim.EndYear)

	if err := disp.Publish(ctx, engine.TimingInit, nil); err != nil {
		return nil, err
	}
	if err := disp.Publish(ctx, engine.TimingPostInit, nil); err != nil {
		return nil, err
	}
	for year := sim.StartYear; year <= sim.EndYear; year++ {
		if year > sim.StartYear {
			t.AdvanceYear()
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := disp.PublishWithPost(ctx, engine.TimingStep, nil); err != nil {
			return nil, err
		}
		if err := disp.PublishWithPost(ctx, engine.TimingPreEndStep, nil); err != nil {
			return nil, err
		}
		if err := disp.Publish(ctx, engine.TimingEndStep, nil); err != nil {
			return nil, err
		}
		if err := disp.Publish(ctx, engine.TimingPostStep, nil); err != nil {
			return nil, err
		}
	}
	if err := disp.Publish(ctx, engine.SystemShutdown, nil); err != nil {
		return nil, err
	}
	return listener.ErrorLayers(), nil
}

// wire registers the processes, listener and applier on disp. Growth is
// registered first so each step runs growth, then disturbances, then decay.
func (r *Runner) wire(disp *engine.Dispatcher, data *landunit.Data, logger *slog.Logger, spin bool) (*disturbance.Listener, error) {
	proc, err := process.New(r.cfg.Processes, data, logger)
	if err != nil {
		return nil, err
	}
	proc.Register(disp)

	listener, err := disturbance.NewListener(r.cfg.Listener, r.catalog, data, disp,
		disturbance.WithListenerLogger(logger))
	if err != nil {
		return nil, err
	}
	if spin {
		listener.RegisterSpinup(disp)
	} else {
		listener.Register(disp)
	}

	var curves disturbance.RegrowthCurves
	if r.cfg.Curves != nil {
		curves = r.cfg.Curves
	}
	disturbance.NewApplier(r.cfg.Applier, data, curves, logger).Register(disp)
	return listener, nil
}

// observer records each disturbance once the applier has handled it and
// forwards it to the event log.
type observer struct {
	runner *Runner
	data   *landunit.Data
	result *UnitResult
	phase  string
	seq    engine.Sequence
}

func (o *observer) register(d *engine.Dispatcher) {
	d.Register("event_observer", engine.PostNotification, o.onPost)
}

func (o *observer) onPost(ctx context.Context, payload any) error {
	notice, ok := payload.(engine.PostNotice)
	if !ok || notice.Phase != engine.DisturbanceEvent || notice.Module != applierModule {
		return nil
	}
	ev, ok := notice.Payload.(*ir.DisturbanceEvent)
	if !ok {
		return nil
	}

	fired := FiredEvent{
		Phase:          o.phase,
		Year:           o.data.Timing().CurYear,
		Disturbance:    ev.Disturbance,
		TypeCode:       ev.TypeCode,
		Transition:     ev.Transition,
		SpecialSurface: ev.SpecialSurface,
	}
	o.result.Events = append(o.result.Events, fired)

	if o.runner.log == nil {
		return nil
	}
	spu, _ := o.data.IntVar(spinup.VarSpatialUnit)
	rec := store.DisturbanceRecord{
		RunID:          o.result.RunID,
		Seq:            o.seq.Next(),
		Unit:           o.result.Unit,
		SpatialUnit:    spu,
		Phase:          fired.Phase,
		Year:           fired.Year,
		Disturbance:    fired.Disturbance,
		TypeCode:       fired.TypeCode,
		Transition:     fired.Transition,
		SpecialSurface: fired.SpecialSurface,
	}
	if err := o.runner.log.WriteDisturbance(ctx, rec); err != nil {
		return fmt.Errorf("log disturbance: %w", err)
	}
	return nil
}
