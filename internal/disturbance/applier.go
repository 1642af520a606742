package disturbance

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/roach88/carbonspin/internal/engine"
	"github.com/roach88/carbonspin/internal/ir"
	"github.com/roach88/carbonspin/internal/landunit"
)

// BiomassThreshold is the live-biomass total below which a layer counts as
// cleared and its age is reset.
const BiomassThreshold = 0.001

// DefaultQualifyingClasses are the surface classes whose tertiary layer is
// reset by a disturbance.
var DefaultQualifyingClasses = []int{2, 5, 8, 10}

// LayerConfig describes the secondary vegetation layer.
type LayerConfig struct {
	// EnabledVariable is a flag turning the layer on for the unit.
	EnabledVariable string
	AgeVariable     string
	LivePools       []string
	// CurveVariable holds the unit's regrowth curve id.
	CurveVariable string
}

// TertiaryConfig describes the tertiary layer reset.
type TertiaryConfig struct {
	AgeVariable       string
	ClassVariable     string
	QualifyingClasses []int
}

// ApplierConfig configures an Applier.
type ApplierConfig struct {
	AgeVariable      string
	LiveBiomassPools []string
	Secondary        *LayerConfig
	Tertiary         *TertiaryConfig
}

// Applier moves carbon for published disturbance events and applies the
// post-disturbance age rules.
type Applier struct {
	cfg    ApplierConfig
	data   *landunit.Data
	curves RegrowthCurves
	logger *slog.Logger
}

// NewApplier creates an applier. curves may be nil when no secondary layer
// is configured.
func NewApplier(cfg ApplierConfig, data *landunit.Data, curves RegrowthCurves, logger *slog.Logger) *Applier {
	if cfg.AgeVariable == "" {
		cfg.AgeVariable = "age"
	}
	if cfg.Tertiary != nil && cfg.Tertiary.QualifyingClasses == nil {
		t := *cfg.Tertiary
		t.QualifyingClasses = DefaultQualifyingClasses
		cfg.Tertiary = &t
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Applier{cfg: cfg, data: data, curves: curves, logger: logger}
}

// Register subscribes the applier to disturbance events.
func (a *Applier) Register(d *engine.Dispatcher) {
	d.Register("disturbance_applier", engine.DisturbanceEvent, a.onDisturbance)
}

func (a *Applier) onDisturbance(ctx context.Context, payload any) error {
	ev, ok := payload.(*ir.DisturbanceEvent)
	if !ok {
		return fmt.Errorf("disturbance payload has type %T", payload)
	}
	return a.Apply(ev.Transfers.All(), ev.Metadata)
}

// Apply moves carbon along transfers as one proportional operation, then
// resets ages. Same-pool transfers are dropped.
func (a *Applier) Apply(transfers []ir.Transfer, metadata map[string]any) error {
	op := a.data.NewProportionalOperation(metadata)
	for _, t := range transfers {
		if t.IsSelfTransfer() {
			continue
		}
		src, err := a.data.Pool(t.Source)
		if err != nil {
			return engine.ConfigError("transfer source: %v", err)
		}
		dst, err := a.data.Pool(t.Dest)
		if err != nil {
			return engine.ConfigError("transfer destination: %v", err)
		}
		op.AddTransfer(src, dst, t.Proportion)
	}
	a.data.Submit(op)
	a.data.ApplyOperations()

	if err := a.resetPrimary(); err != nil {
		return err
	}
	if err := a.resetSecondary(); err != nil {
		return err
	}
	a.resetTertiary()
	return nil
}

func (a *Applier) resetPrimary() error {
	if len(a.cfg.LiveBiomassPools) == 0 {
		return nil
	}
	total, err := a.data.SumPools(a.cfg.LiveBiomassPools)
	if err != nil {
		return engine.ConfigError("live biomass pools: %v", err)
	}
	if total < BiomassThreshold {
		a.data.SetVariable(a.cfg.AgeVariable, 0)
	}
	return nil
}

func (a *Applier) resetSecondary() error {
	sec := a.cfg.Secondary
	if sec == nil || !a.data.BoolVar(sec.EnabledVariable) {
		return nil
	}
	total, err := a.data.SumPools(sec.LivePools)
	if err != nil {
		return engine.ConfigError("secondary live pools: %v", err)
	}
	if total < BiomassThreshold {
		a.data.SetVariable(sec.AgeVariable, 0)
		return nil
	}

	curveID, ok := a.data.IntVar(sec.CurveVariable)
	if !ok {
		return engine.ConfigError("variable %q is required for regrowth lookup", sec.CurveVariable)
	}
	if a.curves == nil {
		return engine.ConfigError("no regrowth curves configured")
	}
	curve, ok := a.curves.Curve(curveID)
	if !ok {
		return engine.ConfigError("unknown regrowth curve %d", curveID)
	}
	a.data.SetVariable(sec.AgeVariable, curve.RegrowthAge(total))
	return nil
}

func (a *Applier) resetTertiary() {
	ter := a.cfg.Tertiary
	if ter == nil {
		return
	}
	class, ok := a.data.IntVar(ter.ClassVariable)
	if !ok || !slices.Contains(ter.QualifyingClasses, class) {
		return
	}
	a.data.SetVariable(ter.AgeVariable, 0)
}
