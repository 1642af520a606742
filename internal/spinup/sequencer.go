package spinup

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/carbonspin/internal/catalog"
	"github.com/roach88/carbonspin/internal/engine"
	"github.com/roach88/carbonspin/internal/ir"
	"github.com/roach88/carbonspin/internal/landunit"
)

// Disturber fires a disturbance immediately, without gating.
type Disturber interface {
	FireDisturbance(ctx context.Context, disturbanceType string) error
}

// PeatlandConfig configures the peatland variant.
type PeatlandConfig struct {
	// EnabledVariable and ClassVariable select the variant: the flag must be
	// set and the class positive.
	EnabledVariable string
	ClassVariable   string
	// MaxFireReturnInterval caps the unit's fire-return interval; 0 disables the cap.
	MaxFireReturnInterval int
	FireReturnVariable    string
	FireYearVariable      string
	RegrowVariable        string
	// AgeVariables are zeroed before and after each historic firing.
	AgeVariables []string
}

// Config configures a Sequencer.
type Config struct {
	SimulationStartYear int
	// RampStartYear starts the ramp window; 0 disables the ramp.
	RampStartYear int

	AgeVariable string
	// SlowPools are summed for the convergence test.
	SlowPools []string
	// BareGroundPools are zeroed after each historic firing.
	BareGroundPools []string

	// SecondaryEnabledVariable turns on the secondary-layer stabilization.
	SecondaryEnabledVariable string
	SecondarySlowPools       []string

	Peatland PeatlandConfig
}

func (c *Config) applyDefaults() {
	def := func(s *string, v string) {
		if *s == "" {
			*s = v
		}
	}
	def(&c.AgeVariable, "age")
	def(&c.SecondaryEnabledVariable, "run_moss")
	def(&c.Peatland.EnabledVariable, "enable_peatland")
	def(&c.Peatland.ClassVariable, "peatland_class")
	def(&c.Peatland.FireReturnVariable, "fire_return_interval")
	def(&c.Peatland.FireYearVariable, "fire_year")
	def(&c.Peatland.RegrowVariable, "peatland_fire_regrow")
	if c.Peatland.AgeVariables == nil {
		c.Peatland.AgeVariables = []string{c.AgeVariable, "peatland_shrub_age", "peatland_smalltree_age"}
	}
}

// Result summarizes one spin-up.
type Result struct {
	Variant ir.CacheVariant `json:"variant"`
	// Cached is set when the equilibrium came from the cache.
	Cached bool `json:"cached"`
	// Rotations is the number of equilibrium rotations run.
	Rotations int `json:"rotations"`
	// Stable reports whether the slow pools converged.
	Stable bool `json:"stable"`
	// HistoricFirings counts historic disturbances fired while searching
	// for equilibrium.
	HistoricFirings int `json:"historic_firings"`
	// SecondaryRotations counts secondary-layer stabilization rotations.
	SecondaryRotations int `json:"secondary_rotations"`
	// ExtraRotations counts ramp rotations added to fill the ramp window.
	ExtraRotations int `json:"extra_rotations"`
	// StandAge is the stand age grown after the last pass.
	StandAge int `json:"stand_age"`
	// RegrowthYears is the peatland regrowth length.
	RegrowthYears int `json:"regrowth_years"`
}

// Sequencer runs spin-up for one unit at a time.
type Sequencer struct {
	cfg     Config
	catalog *catalog.Catalog
	data    *landunit.Data
	disp    *engine.Dispatcher
	dist    Disturber
	cache   *Cache
	logger  *slog.Logger

	cursor        int
	secondaryPrev float64
}

// Option configures a Sequencer.
type Option func(*Sequencer)

// WithLogger sets the sequencer's logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Sequencer) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a sequencer over data. disp carries the spin-up modules
// (growth, decay, applier); dist fires historic and last-pass
// disturbances; cache is the worker's equilibrium cache.
func New(cfg Config, cat *catalog.Catalog, data *landunit.Data, disp *engine.Dispatcher, dist Disturber, cache *Cache, opts ...Option) *Sequencer {
	cfg.applyDefaults()
	s := &Sequencer{
		cfg:     cfg,
		catalog: cat,
		data:    data,
		disp:    disp,
		dist:    dist,
		cache:   cache,
		logger:  slog.Default(),
	}
	if s.cache == nil {
		s.cache = NewCache(nil, s.logger)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IsPeatland reports whether the unit takes the peatland variant.
func (s *Sequencer) IsPeatland() bool {
	if !s.data.BoolVar(s.cfg.Peatland.EnabledVariable) {
		return false
	}
	class, ok := s.data.IntVar(s.cfg.Peatland.ClassVariable)
	return ok && class > 0
}

// Run spins the unit up. Pools carrying an initial value are overwritten
// with it once spin-up completes.
func (s *Sequencer) Run(ctx context.Context) (Result, error) {
	s.data.SetVariable(VarRunDelay, false)
	s.data.SetVariable(VarSecondaryOnly, false)
	s.data.SetVariable(VarRamp, false)
	s.data.SetVariable(VarCached, false)

	start := s.cfg.SimulationStartYear - 1
	if s.cfg.RampStartYear > 0 {
		start = s.cfg.RampStartYear - 1
	}
	s.data.Timing().Reset(start, s.cfg.SimulationStartYear)

	if err := s.disp.Publish(ctx, engine.TimingInit, nil); err != nil {
		return Result{}, err
	}
	if err := s.disp.Publish(ctx, engine.TimingPostInit, nil); err != nil {
		return Result{}, err
	}

	var (
		res Result
		err error
	)
	if s.IsPeatland() {
		res, err = s.runPeatland(ctx)
	} else {
		res, err = s.runForest(ctx)
	}
	if err != nil {
		return res, err
	}

	s.data.SetVariable(VarRamp, false)
	s.data.SetVariable(VarRunDelay, false)
	s.data.ApplyInitialValues()
	return res, nil
}

// steps publishes n simulated years. advance moves the clock one year
// before each.
func (s *Sequencer) steps(ctx context.Context, n int, advance bool) error {
	for i := 0; i < n; i++ {
		if advance {
			s.data.Timing().AdvanceYear()
		}
		if err := s.disp.PublishWithPost(ctx, engine.TimingStep, nil); err != nil {
			return err
		}
		if err := s.disp.PublishWithPost(ctx, engine.TimingPreEndStep, nil); err != nil {
			return err
		}
		if err := s.disp.Publish(ctx, engine.TimingEndStep, nil); err != nil {
			return err
		}
		if err := s.disp.Publish(ctx, engine.TimingPostStep, nil); err != nil {
			return err
		}
	}
	return nil
}

func (s *Sequencer) setAges(value int, names ...string) {
	for _, n := range names {
		s.data.SetVariable(n, value)
	}
}

func (s *Sequencer) zeroPools(names []string) error {
	for _, n := range names {
		p, err := s.data.Pool(n)
		if err != nil {
			return engine.ConfigError("bare ground pool: %v", err)
		}
		p.SetValue(0)
	}
	return nil
}

func (s *Sequencer) sumPools(names []string) (float64, error) {
	total, err := s.data.SumPools(names)
	if err != nil {
		return 0, engine.ConfigError("slow pools: %v", err)
	}
	return total, nil
}

func (s *Sequencer) restore(values []float64) error {
	if err := s.data.Restore(values); err != nil {
		return fmt.Errorf("restore cached snapshot: %w", err)
	}
	return nil
}
