package spinup

import (
	"context"
	"strconv"

	"github.com/roach88/carbonspin/internal/engine"
	"github.com/roach88/carbonspin/internal/ir"
)

func (s *Sequencer) runForest(ctx context.Context) (Result, error) {
	res := Result{Variant: ir.VariantForest}

	p, err := ResolveParams(s.data, s.catalog)
	if err != nil {
		return res, err
	}
	s.data.SetVariable(VarDelay, p.Delay)

	key := ir.ForestKey(p.SpatialUnit, p.HistoricType, p.GrowthCurveID, p.ReturnInterval, p.MeanAnnualTemperature)
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
		s.logger.Debug("spinup cache hit", "spu", p.SpatialUnit, "fingerprint", key.Fingerprint())
	} else {
		secondaryStable, err := s.equilibrium(ctx, p, &res)
		if err != nil {
			return res, err
		}
		if !secondaryStable {
			if err := s.stabilizeSecondary(ctx, p, &res); err != nil {
				return res, err
			}
		}
		if err := s.cache.Put(ctx, key, s.data.Snapshot()); err != nil {
			return res, err
		}
	}

	if err := s.replay(ctx, p, &res); err != nil {
		return res, err
	}
	return res, nil
}

// equilibrium runs return-interval rotations separated by the historic
// disturbance until the slow pools stabilize. It reports whether the
// secondary slow pools were stable on the final rotation; true when the
// secondary layer is off.
func (s *Sequencer) equilibrium(ctx context.Context, p Params, res *Result) (bool, error) {
	secondary := s.secondaryEnabled()
	var prev, secPrev float64
	secStable := !secondary

	for rotation := 1; rotation <= p.MaxRotations; rotation++ {
		s.setAges(0, s.cfg.AgeVariable)
		if err := s.steps(ctx, p.ReturnInterval, false); err != nil {
			return false, err
		}
		res.Rotations = rotation

		cur, err := s.sumPools(s.cfg.SlowPools)
		if err != nil {
			return false, err
		}
		stable := IsStable(prev, cur)
		prev = cur
		res.Stable = stable

		if secondary {
			secCur, err := s.sumPools(s.cfg.SecondarySlowPools)
			if err != nil {
				return false, err
			}
			secStable = IsStable(secPrev, secCur)
			secPrev = secCur
		}

		if stable && rotation >= p.MinRotations {
			break
		}
		if rotation == p.MaxRotations {
			s.logger.Warn("slow pools not stable at maximum rotation",
				"rotation", rotation, "previous", prev, "spu", p.SpatialUnit)
			break
		}

		if err := s.fireHistoric(ctx, p.HistoricType, res); err != nil {
			return false, err
		}
	}
	s.secondaryPrev = secPrev
	return secStable, nil
}

// stabilizeSecondary repeats rotations with ordinary growth suppressed
// until the secondary slow pools stabilize or the rotation ceiling is hit.
func (s *Sequencer) stabilizeSecondary(ctx context.Context, p Params, res *Result) error {
	s.data.SetVariable(VarSecondaryOnly, true)
	defer s.data.SetVariable(VarSecondaryOnly, false)

	prev := s.secondaryPrev
	for rotation := 1; rotation <= p.MaxRotations; rotation++ {
		s.setAges(0, s.cfg.AgeVariable)
		if err := s.steps(ctx, p.ReturnInterval, false); err != nil {
			return err
		}
		res.SecondaryRotations = rotation

		cur, err := s.sumPools(s.cfg.SecondarySlowPools)
		if err != nil {
			return err
		}
		stable := IsStable(prev, cur)
		prev = cur
		if stable {
			return nil
		}
		if rotation == p.MaxRotations {
			s.logger.Warn("secondary slow pools not stable at maximum rotation",
				"rotation", rotation, "spu", p.SpatialUnit)
			return nil
		}
		if err := s.fireHistoric(ctx, p.HistoricType, res); err != nil {
			return err
		}
	}
	return nil
}

func (s *Sequencer) secondaryEnabled() bool {
	return len(s.cfg.SecondarySlowPools) > 0 && s.data.BoolVar(s.cfg.SecondaryEnabledVariable)
}

func (s *Sequencer) fireHistoric(ctx context.Context, disturbanceType string, res *Result) error {
	if err := s.dist.FireDisturbance(ctx, disturbanceType); err != nil {
		return err
	}
	res.HistoricFirings++
	return s.zeroPools(s.cfg.BareGroundPools)
}

// replay aligns the equilibrium state with the simulation start. A calendar
// cursor tracks the year each growth step represents; steps at or after the
// ramp start run in ramp mode and advance the clock.
func (s *Sequencer) replay(ctx context.Context, p Params, res *Result) error {
	simStart := s.cfg.SimulationStartYear
	standAge := p.StandAge

	ts := p.Timeseries
	tail := standAge + p.Delay
	if len(ts) > 0 {
		first, last := ts[0].Year, ts[len(ts)-1].Year
		if last > simStart {
			return engine.ConfigError("last pass timeseries ends in %d, after simulation start %d", last, simStart).
				WithDetail("spu", strconv.Itoa(p.SpatialUnit))
		}
		if implied := max(simStart-last-p.Delay, 0); implied < standAge {
			s.logger.Debug("stand age shortened to match last pass timeseries",
				"stand_age", standAge, "implied", implied)
			standAge = implied
		}
		tail = (last - first) + standAge + p.Delay
	}

	rampLength := 0
	if s.cfg.RampStartYear > 0 {
		rampLength = simStart - s.cfg.RampStartYear
	}
	s.cursor = simStart - max(tail, rampLength)

	if extra := rampLength - tail; extra > 0 {
		for i := 0; i < extra/p.ReturnInterval; i++ {
			s.setAges(0, s.cfg.AgeVariable)
			if err := s.grow(ctx, p.ReturnInterval); err != nil {
				return err
			}
			if err := s.fireHistoric(ctx, p.HistoricType, res); err != nil {
				return err
			}
			res.ExtraRotations++
		}
		if err := s.grow(ctx, extra%p.ReturnInterval); err != nil {
			return err
		}
	}

	if len(ts) == 0 {
		if err := s.dist.FireDisturbance(ctx, p.LastPassType); err != nil {
			return err
		}
	}
	for i, entry := range ts {
		for _, typ := range entry.Types {
			if err := s.dist.FireDisturbance(ctx, typ); err != nil {
				return err
			}
		}
		if i+1 < len(ts) {
			if err := s.grow(ctx, ts[i+1].Year-entry.Year); err != nil {
				return err
			}
		}
	}

	s.setAges(0, s.cfg.AgeVariable)
	if err := s.grow(ctx, standAge); err != nil {
		return err
	}
	res.StandAge = standAge

	if p.Delay > 0 {
		s.data.SetVariable(VarRunDelay, true)
		if err := s.grow(ctx, p.Delay); err != nil {
			return err
		}
		s.data.SetVariable(VarRunDelay, false)
	}
	return nil
}

// grow runs n growth years from the calendar cursor.
func (s *Sequencer) grow(ctx context.Context, n int) error {
	for i := 0; i < n; i++ {
		ramp := s.cfg.RampStartYear > 0 && s.cursor >= s.cfg.RampStartYear
		s.data.SetVariable(VarRamp, ramp)
		if err := s.steps(ctx, 1, ramp); err != nil {
			return err
		}
		s.cursor++
	}
	return nil
}
