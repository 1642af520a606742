package compiler

import (
	"bytes"
	"encoding/json"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/carbonspin/internal/catalog"
	"github.com/roach88/carbonspin/internal/condition"
	"github.com/roach88/carbonspin/internal/disturbance"
	"github.com/roach88/carbonspin/internal/ir"
	"github.com/roach88/carbonspin/internal/landunit"
	"github.com/roach88/carbonspin/internal/process"
	"github.com/roach88/carbonspin/internal/spinup"
)

// Simulation is the simulated calendar.
type Simulation struct {
	StartYear int
	EndYear   int
	// RampStartYear is 0 when spin-up has no ramp.
	RampStartYear int
}

// Unit is one spatial unit and its initial variables.
type Unit struct {
	Name      string
	Variables map[string]any
}

// Config is a compiled configuration directory.
type Config struct {
	Simulation Simulation
	Pools      []landunit.PoolSpec
	Tables     catalog.Tables
	Listener   disturbance.ListenerConfig
	Applier    disturbance.ApplierConfig
	Curves     disturbance.CurveSet
	Spinup     spinup.Config
	Processes  process.Config
	Units      []Unit
}

// Unit returns the named unit.
func (c *Config) Unit(name string) (Unit, bool) {
	for _, u := range c.Units {
		if u.Name == name {
			return u, true
		}
	}
	return Unit{}, false
}

// Compile converts the root CUE value of a configuration into a Config.
// Every loosely-typed value is converted here, once; nothing downstream
// inspects raw configuration again.
func Compile(v cue.Value) (*Config, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	cfg := &Config{}

	if err := compileSimulation(v, cfg); err != nil {
		return nil, err
	}
	if err := compilePools(v, cfg); err != nil {
		return nil, err
	}
	if err := compileTables(v, cfg); err != nil {
		return nil, err
	}
	if err := compileListener(v, cfg); err != nil {
		return nil, err
	}
	if err := compileApplier(v, cfg); err != nil {
		return nil, err
	}
	if err := compileSpinup(v, cfg); err != nil {
		return nil, err
	}
	if err := compileProcesses(v, cfg); err != nil {
		return nil, err
	}
	if err := compileUnits(v, cfg); err != nil {
		return nil, err
	}
	if err := validatePoolRefs(v, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

type simulationSection struct {
	StartYear     int `json:"start_year"`
	EndYear       int `json:"end_year"`
	RampStartYear int `json:"ramp_start_year"`
}

func compileSimulation(root cue.Value, cfg *Config) error {
	v := root.LookupPath(cue.ParsePath("simulation"))
	if !v.Exists() {
		return &CompileError{Field: "simulation", Message: "simulation is required", Pos: root.Pos()}
	}
	var s simulationSection
	if err := decodeSection(v, "simulation", &s); err != nil {
		return err
	}
	if s.EndYear < s.StartYear {
		return &CompileError{
			Field:   "simulation",
			Message: fmt.Sprintf("end_year %d is before start_year %d", s.EndYear, s.StartYear),
			Pos:     v.Pos(),
		}
	}
	if s.RampStartYear != 0 && s.RampStartYear >= s.StartYear {
		return &CompileError{
			Field:   "simulation.ramp_start_year",
			Message: fmt.Sprintf("ramp_start_year %d must precede start_year %d", s.RampStartYear, s.StartYear),
			Pos:     v.Pos(),
		}
	}
	cfg.Simulation = Simulation(s)
	return nil
}

type poolEntry struct {
	Name    string   `json:"name"`
	Value   float64  `json:"value"`
	Initial *float64 `json:"initial"`
}

func compilePools(root cue.Value, cfg *Config) error {
	v := root.LookupPath(cue.ParsePath("pools"))
	if !v.Exists() {
		return &CompileError{Field: "pools", Message: "at least one pool is required", Pos: root.Pos()}
	}
	var entries []poolEntry
	if err := decodeSection(v, "pools", &entries); err != nil {
		return err
	}
	if len(entries) == 0 {
		return &CompileError{Field: "pools", Message: "at least one pool is required", Pos: v.Pos()}
	}
	for _, e := range entries {
		cfg.Pools = append(cfg.Pools, landunit.PoolSpec{Name: e.Name, Value: e.Value, Initial: e.Initial})
	}
	// Surface duplicate and empty names with a position.
	if _, err := landunit.NewData(cfg.Pools); err != nil {
		return &CompileError{Field: "pools", Message: err.Error(), Pos: v.Pos()}
	}
	return nil
}

type tablesSection struct {
	Matrices []struct {
		ID        int `json:"id"`
		Transfers []struct {
			Source     string  `json:"source"`
			Dest       string  `json:"dest"`
			Proportion float64 `json:"proportion"`
		} `json:"transfers"`
	} `json:"matrices"`
	Associations []struct {
		DisturbanceType string `json:"disturbance_type"`
		SpatialUnit     int    `json:"spatial_unit"`
		MatrixID        int    `json:"matrix_id"`
	} `json:"associations"`
	SpecialAssociations []struct {
		DisturbanceType string `json:"disturbance_type"`
		SurfaceID       int    `json:"surface_id"`
		MatrixID        int    `json:"matrix_id"`
	} `json:"special_associations"`
	Transitions []struct {
		DisturbanceType string `json:"disturbance_type"`
		LandClass       string `json:"land_class"`
	} `json:"transitions"`
	TypeCodes []struct {
		Name string `json:"name"`
		Code int    `json:"code"`
	} `json:"type_codes"`
	PriorityOrder []string  `json:"priority_order"`
	DefaultOrder  *[]string `json:"default_order"`
}

func compileTables(root cue.Value, cfg *Config) error {
	v := root.LookupPath(cue.ParsePath("tables"))
	if !v.Exists() {
		return &CompileError{Field: "tables", Message: "tables are required", Pos: root.Pos()}
	}
	var s tablesSection
	if err := decodeSection(v, "tables", &s); err != nil {
		return err
	}

	t := catalog.Tables{PriorityOrder: s.PriorityOrder}
	for _, m := range s.Matrices {
		mat := ir.TransferMatrix{ID: m.ID}
		for _, tr := range m.Transfers {
			mat.Transfers = append(mat.Transfers, ir.Transfer{Source: tr.Source, Dest: tr.Dest, Proportion: tr.Proportion})
		}
		t.Matrices = append(t.Matrices, mat)
	}
	for _, a := range s.Associations {
		t.Associations = append(t.Associations, ir.MatrixAssociation{
			DisturbanceType: a.DisturbanceType, SpatialUnit: a.SpatialUnit, MatrixID: a.MatrixID,
		})
	}
	for _, a := range s.SpecialAssociations {
		t.SpecialAssociations = append(t.SpecialAssociations, ir.SurfaceAssociation{
			DisturbanceType: a.DisturbanceType, SurfaceID: a.SurfaceID, MatrixID: a.MatrixID,
		})
	}
	for _, tr := range s.Transitions {
		t.Transitions = append(t.Transitions, ir.LandClassTransition{DisturbanceType: tr.DisturbanceType, LandClass: tr.LandClass})
	}
	for _, tc := range s.TypeCodes {
		t.TypeCodes = append(t.TypeCodes, ir.DisturbanceTypeCode{Name: tc.Name, Code: tc.Code})
	}
	if s.DefaultOrder != nil {
		t.DefaultOrder = *s.DefaultOrder
		if t.DefaultOrder == nil {
			t.DefaultOrder = []string{}
		}
	}

	// Catalog construction carries the cross-table checks.
	if _, err := catalog.New(t); err != nil {
		return &CompileError{Field: "tables", Message: err.Error(), Pos: v.Pos()}
	}
	cfg.Tables = t
	return nil
}

type listenerSection struct {
	Layers                     []string `json:"layers"`
	HistoryRecordsOriginalType bool     `json:"history_records_original_type"`
	HistoryCapacity            int      `json:"history_capacity"`
	SpatialUnitVariable        string   `json:"spatial_unit_variable"`
	AgeVariable                string   `json:"age_variable"`
	AgeClassVariable           string   `json:"age_class_variable"`
	LandClassVariable          string   `json:"land_class_variable"`
	SpecialSurfaceEnabled      string   `json:"special_surface_enabled_variable"`
	SpecialSurfaceClass        string   `json:"special_surface_class_variable"`
}

func compileListener(root cue.Value, cfg *Config) error {
	if v := root.LookupPath(cue.ParsePath("listener")); v.Exists() {
		var s listenerSection
		if err := decodeLoose(v, "listener", &s, "events"); err != nil {
			return err
		}
		cfg.Listener = disturbance.ListenerConfig{
			Layers:                        s.Layers,
			HistoryRecordsOriginalType:    s.HistoryRecordsOriginalType,
			HistoryCapacity:               s.HistoryCapacity,
			SpatialUnitVariable:           s.SpatialUnitVariable,
			AgeVariable:                   s.AgeVariable,
			AgeClassVariable:              s.AgeClassVariable,
			LandClassVariable:             s.LandClassVariable,
			SpecialSurfaceEnabledVariable: s.SpecialSurfaceEnabled,
			SpecialSurfaceClassVariable:   s.SpecialSurfaceClass,
		}

		if ev := v.LookupPath(cue.ParsePath("events")); ev.Exists() {
			raw, err := looseValue(ev)
			if err != nil {
				return err
			}
			records, err := disturbance.ParseEventRecords("listener.events", raw)
			if err != nil {
				return &CompileError{Field: "listener.events", Message: err.Error(), Pos: ev.Pos()}
			}
			cfg.Listener.Inline = records
		}
	}

	if v := root.LookupPath(cue.ParsePath("disturbance_conditions")); v.Exists() {
		raw, err := looseValue(v)
		if err != nil {
			return err
		}
		list, ok := raw.([]any)
		if !ok {
			return &CompileError{Field: "disturbance_conditions", Message: "must be a list", Pos: v.Pos()}
		}
		for i, item := range list {
			dc, err := condition.ParseDisturbanceCondition(item)
			if err != nil {
				return &CompileError{
					Field:   fmt.Sprintf("disturbance_conditions[%d]", i),
					Message: err.Error(),
					Pos:     v.Pos(),
				}
			}
			cfg.Listener.Conditions = append(cfg.Listener.Conditions, dc)
		}
	}
	return nil
}

type applierSection struct {
	AgeVariable      string   `json:"age_variable"`
	LiveBiomassPools []string `json:"live_biomass_pools"`
	Secondary        *struct {
		EnabledVariable string   `json:"enabled_variable"`
		AgeVariable     string   `json:"age_variable"`
		LivePools       []string `json:"live_pools"`
		CurveVariable   string   `json:"curve_variable"`
	} `json:"secondary"`
	Tertiary *struct {
		AgeVariable       string `json:"age_variable"`
		ClassVariable     string `json:"class_variable"`
		QualifyingClasses []int  `json:"qualifying_classes"`
	} `json:"tertiary"`
	Curves []struct {
		ID    int       `json:"id"`
		Stock []float64 `json:"stock"`
	} `json:"curves"`
}

func compileApplier(root cue.Value, cfg *Config) error {
	v := root.LookupPath(cue.ParsePath("applier"))
	if !v.Exists() {
		return nil
	}
	var s applierSection
	if err := decodeSection(v, "applier", &s); err != nil {
		return err
	}
	cfg.Applier = disturbance.ApplierConfig{
		AgeVariable:      s.AgeVariable,
		LiveBiomassPools: s.LiveBiomassPools,
	}
	if s.Secondary != nil {
		cfg.Applier.Secondary = &disturbance.LayerConfig{
			EnabledVariable: s.Secondary.EnabledVariable,
			AgeVariable:     s.Secondary.AgeVariable,
			LivePools:       s.Secondary.LivePools,
			CurveVariable:   s.Secondary.CurveVariable,
		}
	}
	if s.Tertiary != nil {
		cfg.Applier.Tertiary = &disturbance.TertiaryConfig{
			AgeVariable:       s.Tertiary.AgeVariable,
			ClassVariable:     s.Tertiary.ClassVariable,
			QualifyingClasses: s.Tertiary.QualifyingClasses,
		}
	}
	for _, c := range s.Curves {
		if cfg.Curves == nil {
			cfg.Curves = make(disturbance.CurveSet)
		}
		if _, dup := cfg.Curves[c.ID]; dup {
			return &CompileError{Field: "applier.curves", Message: fmt.Sprintf("duplicate curve %d", c.ID), Pos: v.Pos()}
		}
		cfg.Curves[c.ID] = disturbance.Curve{ID: c.ID, Stock: c.Stock}
	}
	return nil
}

type spinupSection struct {
	AgeVariable              string   `json:"age_variable"`
	SlowPools                []string `json:"slow_pools"`
	BareGroundPools          []string `json:"bare_ground_pools"`
	SecondaryEnabledVariable string   `json:"secondary_enabled_variable"`
	SecondarySlowPools       []string `json:"secondary_slow_pools"`
	MaxFireReturnInterval    int      `json:"max_fire_return_interval"`
	PeatlandAgeVariables     []string `json:"peatland_age_variables"`
}

func compileSpinup(root cue.Value, cfg *Config) error {
	v := root.LookupPath(cue.ParsePath("spinup"))
	if !v.Exists() {
		return &CompileError{Field: "spinup", Message: "spinup is required", Pos: root.Pos()}
	}
	var s spinupSection
	if err := decodeSection(v, "spinup", &s); err != nil {
		return err
	}
	if len(s.SlowPools) == 0 {
		return &CompileError{Field: "spinup.slow_pools", Message: "at least one slow pool is required", Pos: v.Pos()}
	}
	cfg.Spinup = spinup.Config{
		SimulationStartYear:      cfg.Simulation.StartYear,
		RampStartYear:            cfg.Simulation.RampStartYear,
		AgeVariable:              s.AgeVariable,
		SlowPools:                s.SlowPools,
		BareGroundPools:          s.BareGroundPools,
		SecondaryEnabledVariable: s.SecondaryEnabledVariable,
		SecondarySlowPools:       s.SecondarySlowPools,
		Peatland: spinup.PeatlandConfig{
			MaxFireReturnInterval: s.MaxFireReturnInterval,
			AgeVariables:          s.PeatlandAgeVariables,
		},
	}
	return nil
}

type processesSection struct {
	Source     string `json:"source"`
	Increments []struct {
		Pool   string  `json:"pool"`
		Amount float64 `json:"amount"`
	} `json:"increments"`
	SecondaryIncrements []struct {
		Pool   string  `json:"pool"`
		Amount float64 `json:"amount"`
	} `json:"secondary_increments"`
	SecondaryEnabledVariable string `json:"secondary_enabled_variable"`
	Decay                    []struct {
		Pool string  `json:"pool"`
		Dest string  `json:"dest"`
		Rate float64 `json:"rate"`
	} `json:"decay"`
	RampScale            float64 `json:"ramp_scale"`
	AgeVariable          string  `json:"age_variable"`
	SecondaryAgeVariable string  `json:"secondary_age_variable"`
}

func compileProcesses(root cue.Value, cfg *Config) error {
	v := root.LookupPath(cue.ParsePath("processes"))
	if !v.Exists() {
		return nil
	}
	var s processesSection
	if err := decodeSection(v, "processes", &s); err != nil {
		return err
	}
	cfg.Processes = process.Config{
		Source:                   s.Source,
		SecondaryEnabledVariable: s.SecondaryEnabledVariable,
		RampScale:                s.RampScale,
		AgeVariable:              s.AgeVariable,
		SecondaryAgeVariable:     s.SecondaryAgeVariable,
	}
	for _, inc := range s.Increments {
		cfg.Processes.Increments = append(cfg.Processes.Increments, process.Increment{Pool: inc.Pool, Amount: inc.Amount})
	}
	for _, inc := range s.SecondaryIncrements {
		cfg.Processes.SecondaryIncrements = append(cfg.Processes.SecondaryIncrements, process.Increment{Pool: inc.Pool, Amount: inc.Amount})
	}
	for _, d := range s.Decay {
		cfg.Processes.Decay = append(cfg.Processes.Decay, process.Decay{Pool: d.Pool, Dest: d.Dest, Rate: d.Rate})
	}
	if (len(s.Increments) > 0 || len(s.SecondaryIncrements) > 0) && s.Source == "" {
		return &CompileError{Field: "processes.source", Message: "source pool is required with increments", Pos: v.Pos()}
	}
	return nil
}

// compileUnits reads units in declaration order. Each unit is a struct of
// variables, optionally nested under "variables".
func compileUnits(root cue.Value, cfg *Config) error {
	v := root.LookupPath(cue.ParsePath("units"))
	if !v.Exists() {
		return nil
	}
	iter, err := v.Fields()
	if err != nil {
		return formatCUEError(err)
	}
	for iter.Next() {
		uv := iter.Value()
		if vars := uv.LookupPath(cue.ParsePath("variables")); vars.Exists() {
			uv = vars
		}
		raw, err := looseValue(uv)
		if err != nil {
			return err
		}
		m, ok := raw.(map[string]any)
		if !ok {
			return &CompileError{
				Field:   "units." + iter.Selector().String(),
				Message: "unit must be a struct of variables",
				Pos:     uv.Pos(),
			}
		}
		cfg.Units = append(cfg.Units, Unit{Name: iter.Selector().Unquoted(), Variables: m})
	}
	return nil
}

// validatePoolRefs checks every pool named outside the pool list.
func validatePoolRefs(root cue.Value, cfg *Config) error {
	known := make(map[string]bool, len(cfg.Pools))
	for _, p := range cfg.Pools {
		known[p.Name] = true
	}
	check := func(field string, names ...string) error {
		for _, n := range names {
			if n != "" && !known[n] {
				return &CompileError{
					Field:   field,
					Message: fmt.Sprintf("unknown pool %q", n),
					Pos:     root.LookupPath(cue.ParsePath(field)).Pos(),
				}
			}
		}
		return nil
	}

	for _, m := range cfg.Tables.Matrices {
		for _, t := range m.Transfers {
			if err := check("tables", t.Source, t.Dest); err != nil {
				return err
			}
		}
	}
	if err := check("spinup", cfg.Spinup.SlowPools...); err != nil {
		return err
	}
	if err := check("spinup", cfg.Spinup.BareGroundPools...); err != nil {
		return err
	}
	if err := check("spinup", cfg.Spinup.SecondarySlowPools...); err != nil {
		return err
	}
	if err := check("applier", cfg.Applier.LiveBiomassPools...); err != nil {
		return err
	}
	if s := cfg.Applier.Secondary; s != nil {
		if err := check("applier", s.LivePools...); err != nil {
			return err
		}
	}
	if err := condition.Validate(cfg.Listener.Conditions, func(n string) bool { return known[n] }); err != nil {
		return &CompileError{
			Field:   "disturbance_conditions",
			Message: err.Error(),
			Pos:     root.LookupPath(cue.ParsePath("disturbance_conditions")).Pos(),
		}
	}
	return nil
}

// decodeSection decodes a concrete CUE value into out through its JSON
// form. Unknown fields are rejected.
func decodeSection(v cue.Value, field string, out any) error {
	raw, err := v.MarshalJSON()
	if err != nil {
		return formatCUEError(err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return &CompileError{Field: field, Message: err.Error(), Pos: v.Pos()}
	}
	return nil
}

// decodeLoose is decodeSection for sections that also carry loosely-typed
// fields, which are skipped here and read separately.
func decodeLoose(v cue.Value, field string, out any, skip ...string) error {
	raw, err := looseValue(v)
	if err != nil {
		return err
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return &CompileError{Field: field, Message: "must be a struct", Pos: v.Pos()}
	}
	for _, k := range skip {
		delete(m, k)
	}
	b, err := json.Marshal(m)
	if err != nil {
		return &CompileError{Field: field, Message: err.Error(), Pos: v.Pos()}
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return &CompileError{Field: field, Message: err.Error(), Pos: v.Pos()}
	}
	return nil
}

// looseValue converts a concrete CUE value into plain maps, slices and
// json.Number scalars.
func looseValue(v cue.Value) (any, error) {
	raw, err := v.MarshalJSON()
	if err != nil {
		return nil, formatCUEError(err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, &CompileError{Field: "cue", Message: err.Error(), Pos: v.Pos()}
	}
	return out, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	ce := &CompileError{Field: "cue", Message: firstErr.Error()}
	if positions := errors.Positions(firstErr); len(positions) > 0 {
		ce.Pos = positions[0]
	}
	return ce
}
