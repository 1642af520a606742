package spinup

import (
	"context"

	"github.com/roach88/carbonspin/internal/engine"
	"github.com/roach88/carbonspin/internal/ir"
)

// VarRunPeatland is set for units spun up by the peatland variant.
const VarRunPeatland = "run_peatland"

// RegrowthTarget returns the number of years a peatland regrows after its
// equilibrium rotation. lastFireYear < 0 means no fire on record.
func RegrowthTarget(startYear, lastFireYear, fireReturnInterval int) int {
	switch {
	case lastFireYear < 0:
		return fireReturnInterval
	case startYear-lastFireYear < 0:
		return startYear - lastFireYear + fireReturnInterval
	default:
		return startYear - lastFireYear
	}
}

func (s *Sequencer) runPeatland(ctx context.Context) (Result, error) {
	res := Result{Variant: ir.VariantPeatland}
	pc := s.cfg.Peatland

	s.setAges(0, pc.AgeVariables...)
	s.data.SetVariable(VarRunPeatland, true)

	sp, err := spinupRecord(s.data)
	if err != nil {
		return res, err
	}
	historic, err := stringField(sp, "historic_disturbance_type")
	if err != nil {
		return res, err
	}
	spu, err := intVar(s.data, VarSpatialUnit)
	if err != nil {
		return res, err
	}
	class, err := intVar(s.data, pc.ClassVariable)
	if err != nil {
		return res, err
	}
	fri, ok := s.data.IntVar(pc.FireReturnVariable)
	if !ok || fri <= 0 {
		return res, engine.ConfigError("variable %q must be a positive integer for peatland spinup", pc.FireReturnVariable)
	}
	if pc.MaxFireReturnInterval > 0 && fri > pc.MaxFireReturnInterval {
		fri = pc.MaxFireReturnInterval
	}
	mat, _ := s.data.FloatVar(VarMeanAnnualTemp)
	regrow := s.data.BoolVar(pc.RegrowVariable)

	key := ir.PeatlandKey(spu, historic, class, fri, mat)
	snap, hit, err := s.cache.Get(ctx, key)
	if err != nil {
		return res, err
	}
	if hit {
		if err := s.restore(snap); err != nil {
			return res, err
		}
		res.Cached = true
		res.Stable = true
		s.data.SetVariable(VarCached, true)
	} else {
		if err := s.steps(ctx, fri, false); err != nil {
			return res, err
		}
		res.Rotations = 1
		if regrow {
			s.setAges(0, pc.AgeVariables...)
			if err := s.fireHistoric(ctx, historic, &res); err != nil {
				return res, err
			}
			s.setAges(0, pc.AgeVariables...)
		}
		if err := s.cache.Put(ctx, key, s.data.Snapshot()); err != nil {
			return res, err
		}
	}

	lastFire := -1
	if y, ok := s.data.IntVar(pc.FireYearVariable); ok {
		lastFire = y
	}
	res.RegrowthYears = RegrowthTarget(s.cfg.SimulationStartYear, lastFire, fri)
	if regrow {
		if err := s.steps(ctx, res.RegrowthYears, false); err != nil {
			return res, err
		}
	}
	return res, nil
}
