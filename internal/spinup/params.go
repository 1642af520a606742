package spinup

import (
	"slices"

	"github.com/roach88/carbonspin/internal/catalog"
	"github.com/roach88/carbonspin/internal/engine"
	"github.com/roach88/carbonspin/internal/landunit"
)

// Variable names read and written by the sequencers.
const (
	VarSpinupParameters   = "spinup_parameters"
	VarMinimumRotation    = "minimum_rotation"
	VarGrowthCurveID      = "growth_curve_id"
	VarInitialAge         = "initial_age"
	VarMeanAnnualTemp     = "mean_annual_temperature"
	VarSpatialUnit        = "spatial_unit_id"
	VarLastPassTimeseries = "last_pass_disturbance_timeseries"

	VarCached        = "spinup_cached"
	VarSecondaryOnly = "spinup_moss_only"
	VarRamp          = "spinup_ramp"
	VarRunDelay      = "run_delay"
	VarDelay         = "delay"
)

// TimeseriesYear is one year of the last-pass timeseries, with its
// disturbance types in priority order.
type TimeseriesYear struct {
	Year  int
	Types []string
}

// Params are the forest spin-up inputs for one unit.
type Params struct {
	ReturnInterval        int
	MaxRotations          int
	MinRotations          int
	HistoricType          string
	LastPassType          string
	Delay                 int
	GrowthCurveID         int
	StandAge              int
	MeanAnnualTemperature float64
	SpatialUnit           int
	// Timeseries is ordered by year; nil when the unit has none.
	Timeseries []TimeseriesYear
}

// ResolveParams reads forest spin-up parameters from unit variables.
// Missing or malformed required values are CONFIGURATION errors.
func ResolveParams(data *landunit.Data, cat *catalog.Catalog) (Params, error) {
	sp, err := spinupRecord(data)
	if err != nil {
		return Params{}, err
	}

	var p Params
	if p.ReturnInterval, err = intField(sp, "return_interval"); err != nil {
		return Params{}, err
	}
	if p.MaxRotations, err = intField(sp, "max_rotations"); err != nil {
		return Params{}, err
	}
	if p.HistoricType, err = stringField(sp, "historic_disturbance_type"); err != nil {
		return Params{}, err
	}
	if p.LastPassType, err = stringField(sp, "last_pass_disturbance_type"); err != nil {
		return Params{}, err
	}
	if v, ok := sp["delay"]; ok && v != nil {
		d, ok := landunit.ToInt(v)
		if !ok || d < 0 {
			return Params{}, engine.ConfigError("spinup delay must be a non-negative integer, got %v", v)
		}
		p.Delay = d
	}
	if p.ReturnInterval <= 0 {
		return Params{}, engine.ConfigError("spinup return_interval must be positive, got %d", p.ReturnInterval)
	}
	if p.MaxRotations <= 0 {
		return Params{}, engine.ConfigError("spinup max_rotations must be positive, got %d", p.MaxRotations)
	}

	if p.MinRotations, err = intVar(data, VarMinimumRotation); err != nil {
		return Params{}, err
	}
	if p.GrowthCurveID, err = intVar(data, VarGrowthCurveID); err != nil {
		return Params{}, err
	}
	if p.StandAge, err = intVar(data, VarInitialAge); err != nil {
		return Params{}, err
	}
	if p.SpatialUnit, err = intVar(data, VarSpatialUnit); err != nil {
		return Params{}, err
	}
	if mat, ok := data.FloatVar(VarMeanAnnualTemp); ok {
		p.MeanAnnualTemperature = mat
	}

	if p.Timeseries, err = resolveTimeseries(data, cat); err != nil {
		return Params{}, err
	}
	return p, nil
}

func resolveTimeseries(data *landunit.Data, cat *catalog.Catalog) ([]TimeseriesYear, error) {
	raw, ok := data.Value(VarLastPassTimeseries)
	if !ok || raw == nil {
		return nil, nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, engine.ConfigError("variable %q must be a list, got %T", VarLastPassTimeseries, raw)
	}

	byYear := make(map[int][]string)
	var years []int
	for i, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, engine.ConfigError("%s[%d] must be a record", VarLastPassTimeseries, i)
		}
		year, err := intField(m, "year")
		if err != nil {
			return nil, err
		}
		typ, err := stringField(m, "disturbance_type")
		if err != nil {
			return nil, err
		}
		if _, seen := byYear[year]; !seen {
			years = append(years, year)
		}
		byYear[year] = append(byYear[year], typ)
	}

	slices.Sort(years)
	out := make([]TimeseriesYear, 0, len(years))
	for _, y := range years {
		types := byYear[y]
		if cat != nil {
			catalog.SortByPriority(cat, types, func(s string) string { return s })
		}
		out = append(out, TimeseriesYear{Year: y, Types: types})
	}
	return out, nil
}

func spinupRecord(data *landunit.Data) (map[string]any, error) {
	raw, ok := data.Value(VarSpinupParameters)
	if !ok || raw == nil {
		return nil, engine.ConfigError("variable %q is required", VarSpinupParameters)
	}
	sp, ok := raw.(map[string]any)
	if !ok {
		return nil, engine.ConfigError("variable %q must be a record, got %T", VarSpinupParameters, raw)
	}
	return sp, nil
}

func intField(m map[string]any, key string) (int, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return 0, engine.ConfigError("spinup parameter %q is required", key)
	}
	n, ok := landunit.ToInt(v)
	if !ok {
		return 0, engine.ConfigError("spinup parameter %q must be an integer, got %v", key, v)
	}
	return n, nil
}

func stringField(m map[string]any, key string) (string, error) {
	s, ok := m[key].(string)
	if !ok || s == "" {
		return "", engine.ConfigError("spinup parameter %q is required", key)
	}
	return s, nil
}

func intVar(data *landunit.Data, name string) (int, error) {
	v, ok := data.Value(name)
	if !ok || v == nil {
		return 0, engine.ConfigError("variable %q is required for spinup", name)
	}
	n, ok := landunit.ToInt(v)
	if !ok {
		return 0, engine.ConfigError("variable %q must be an integer, got %v", name, v)
	}
	return n, nil
}
