// Package process provides a reference growth and decay module.
//
// It exists to drive the spin-up and simulation phases with real pool
// movement: fixed annual increments from a source pool, and first-order
// decay at end of step. It honours the spin-up mode flags written by the
// sequencers (run_delay, spinup_moss_only, spinup_ramp).
package process

import (
	"context"
	"log/slog"

	"github.com/roach88/carbonspin/internal/engine"
	"github.com/roach88/carbonspin/internal/landunit"
)

// Flag variables read each step.
const (
	VarRunDelay      = "run_delay"
	VarSecondaryOnly = "spinup_moss_only"
	VarRamp          = "spinup_ramp"
)

// Increment adds Amount to Pool every growth year.
type Increment struct {
	Pool   string
	Amount float64
}

// Decay moves Rate of Pool to Dest every year.
type Decay struct {
	Pool string
	Dest string
	Rate float64
}

// Config configures a Module.
type Config struct {
	// Source is the pool increments are drawn from.
	Source     string
	Increments []Increment

	// SecondaryIncrements grow the secondary layer while
	// SecondaryEnabledVariable is set.
	SecondaryIncrements      []Increment
	SecondaryEnabledVariable string

	Decay []Decay

	// RampScale multiplies increments in ramp years. Zero means 1.
	RampScale float64

	AgeVariable          string
	SecondaryAgeVariable string
}

type boundTransfer struct {
	src, dst *landunit.Pool
	value    float64
}

// Module is the growth and decay collaborator for one unit.
type Module struct {
	cfg       Config
	data      *landunit.Data
	logger    *slog.Logger
	growth    []boundTransfer
	secondary []boundTransfer
	decay     []boundTransfer
}

// New resolves the configured pools against data. Unknown pools are
// CONFIGURATION errors.
func New(cfg Config, data *landunit.Data, logger *slog.Logger) (*Module, error) {
	if cfg.AgeVariable == "" {
		cfg.AgeVariable = "age"
	}
	if cfg.SecondaryEnabledVariable == "" {
		cfg.SecondaryEnabledVariable = "run_moss"
	}
	if cfg.RampScale == 0 {
		cfg.RampScale = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	m := &Module{cfg: cfg, data: data, logger: logger}

	var err error
	if m.growth, err = m.bindIncrements(cfg.Increments); err != nil {
		return nil, err
	}
	if m.secondary, err = m.bindIncrements(cfg.SecondaryIncrements); err != nil {
		return nil, err
	}
	for _, d := range cfg.Decay {
		if d.Rate < 0 || d.Rate > 1 {
			return nil, engine.ConfigError("decay rate for %q must be within [0, 1], got %g", d.Pool, d.Rate)
		}
		src, err := m.pool(d.Pool)
		if err != nil {
			return nil, err
		}
		dst, err := m.pool(d.Dest)
		if err != nil {
			return nil, err
		}
		m.decay = append(m.decay, boundTransfer{src: src, dst: dst, value: d.Rate})
	}
	return m, nil
}

func (m *Module) bindIncrements(incs []Increment) ([]boundTransfer, error) {
	if len(incs) == 0 {
		return nil, nil
	}
	src, err := m.pool(m.cfg.Source)
	if err != nil {
		return nil, err
	}
	out := make([]boundTransfer, 0, len(incs))
	for _, inc := range incs {
		dst, err := m.pool(inc.Pool)
		if err != nil {
			return nil, err
		}
		out = append(out, boundTransfer{src: src, dst: dst, value: inc.Amount})
	}
	return out, nil
}

func (m *Module) pool(name string) (*landunit.Pool, error) {
	p, err := m.data.Pool(name)
	if err != nil {
		return nil, engine.ConfigError("process pools: %v", err)
	}
	return p, nil
}

// Register subscribes growth to TimingStep and decay to TimingEndStep.
func (m *Module) Register(d *engine.Dispatcher) {
	d.Register("growth", engine.TimingStep, m.onTimingStep)
	d.Register("decay", engine.TimingEndStep, m.onTimingEndStep)
}

func (m *Module) onTimingStep(ctx context.Context, _ any) error {
	delay := m.data.BoolVar(VarRunDelay)
	if delay {
		return nil
	}
	scale := 1.0
	if m.data.BoolVar(VarRamp) {
		scale = m.cfg.RampScale
	}

	primary := !m.data.BoolVar(VarSecondaryOnly)
	secondary := len(m.secondary) > 0 && m.data.BoolVar(m.cfg.SecondaryEnabledVariable)

	op := m.data.NewStockOperation(map[string]any{"module": "growth"})
	if primary {
		for _, t := range m.growth {
			op.AddTransfer(t.src, t.dst, t.value*scale)
		}
	}
	if secondary {
		for _, t := range m.secondary {
			op.AddTransfer(t.src, t.dst, t.value*scale)
		}
	}
	if op.Len() > 0 {
		m.data.Submit(op)
		m.data.ApplyOperations()
	}

	if primary {
		m.incrementAge(m.cfg.AgeVariable)
	}
	if secondary && m.cfg.SecondaryAgeVariable != "" {
		m.incrementAge(m.cfg.SecondaryAgeVariable)
	}
	return nil
}

func (m *Module) onTimingEndStep(ctx context.Context, _ any) error {
	if len(m.decay) == 0 {
		return nil
	}
	op := m.data.NewProportionalOperation(map[string]any{"module": "decay"})
	for _, t := range m.decay {
		op.AddTransfer(t.src, t.dst, t.value)
	}
	m.data.Submit(op)
	m.data.ApplyOperations()
	return nil
}

func (m *Module) incrementAge(name string) {
	age, ok := m.data.IntVar(name)
	if !ok {
		age = 0
	}
	m.data.SetVariable(name, age+1)
}
