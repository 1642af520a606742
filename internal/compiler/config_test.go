package compiler

import (
	"encoding/json"
	"errors"
	"testing"

	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/carbonspin/internal/condition"
	"github.com/roach88/carbonspin/internal/ir"
)

const fullConfig = `
simulation: {
	start_year:      2000
	end_year:        2010
	ramp_start_year: 1990
}

pools: [
	{name: "Atmosphere"},
	{name: "Merch", value: 5},
	{name: "SlowSoil", value: 100, initial: 42.5},
	{name: "Products"},
]

tables: {
	matrices: [
		{id: 1, transfers: [{source: "Merch", dest: "Atmosphere", proportion: 0.9}]},
		{id: 2, transfers: [{source: "Merch", dest: "Products", proportion: 0.8}]},
	]
	associations: [
		{disturbance_type: "wildfire", spatial_unit: 17, matrix_id: 1},
		{disturbance_type: "clearcut", spatial_unit: 17, matrix_id: 2},
	]
	transitions: [{disturbance_type: "clearcut", land_class: "harvested"}]
	type_codes: [{name: "wildfire", code: 1}, {name: "clearcut", code: 2}]
	priority_order: ["clearcut"]
	default_order: []
}

disturbance_conditions: [{
	disturbance_types: ["clearcut"]
	run_conditions: [{type: "pool", pools: ["Merch"], operator: ">=", target: 1}]
	override_conditions: [{
		condition: {type: "variable", variable: "age", operator: "<", target: 10}
		disturbance_type: "wildfire"
	}]
}]

listener: {
	layers: ["events_layer"]
	history_capacity: 20
	events: [{year: 2003, disturbance_type: "clearcut", source: "inventory"}]
}

applier: {
	live_biomass_pools: ["Merch"]
	tertiary: {age_variable: "sapling_age", class_variable: "peatland_class"}
	curves: [{id: 3, stock: [0, 1, 2.5]}]
}

spinup: {
	slow_pools: ["SlowSoil"]
	bare_ground_pools: ["Merch"]
	max_fire_return_interval: 120
}

processes: {
	source: "Atmosphere"
	increments: [{pool: "Merch", amount: 2}]
	decay: [{pool: "Merch", dest: "SlowSoil", rate: 0.1}]
	ramp_scale: 0.5
}

units: {
	stand_a: {
		spatial_unit_id: 17
		age:             0
		spinup_parameters: {
			return_interval:            10
			max_rotations:              3
			historic_disturbance_type:  "wildfire"
			last_pass_disturbance_type: "clearcut"
		}
	}
	stand_b: variables: {spatial_unit_id: 17, enable_peatland: true}
}
`

func compileString(t *testing.T, src string) (*Config, error) {
	t.Helper()
	v := cuecontext.New().CompileString(src)
	require.NoError(t, v.Err())
	return Compile(v)
}

func TestCompile_Full(t *testing.T) {
	cfg, err := compileString(t, fullConfig)
	require.NoError(t, err)

	assert.Equal(t, Simulation{StartYear: 2000, EndYear: 2010, RampStartYear: 1990}, cfg.Simulation)

	require.Len(t, cfg.Pools, 4)
	require.NotNil(t, cfg.Pools[2].Initial)
	assert.Equal(t, 42.5, *cfg.Pools[2].Initial)
	assert.Nil(t, cfg.Pools[1].Initial)

	require.Len(t, cfg.Tables.Matrices, 2)
	assert.Equal(t, ir.Transfer{Source: "Merch", Dest: "Products", Proportion: 0.8}, cfg.Tables.Matrices[1].Transfers[0])
	assert.Equal(t, []string{"clearcut"}, cfg.Tables.PriorityOrder)
	assert.NotNil(t, cfg.Tables.DefaultOrder, "explicit empty default order is kept")
	assert.Empty(t, cfg.Tables.DefaultOrder)

	require.Len(t, cfg.Listener.Conditions, 1)
	dc := cfg.Listener.Conditions[0]
	assert.Equal(t, []string{"clearcut"}, dc.Types)
	require.Len(t, dc.Run, 1)
	assert.IsType(t, condition.PoolSumCompare{}, dc.Run[0])
	require.Len(t, dc.Overrides, 1)
	assert.Equal(t, "wildfire", dc.Overrides[0].DisturbanceType)

	assert.Equal(t, []string{"events_layer"}, cfg.Listener.Layers)
	assert.Equal(t, 20, cfg.Listener.HistoryCapacity)
	require.Len(t, cfg.Listener.Inline, 1)
	assert.Equal(t, 2003, cfg.Listener.Inline[0].Year)
	assert.Equal(t, "inventory", cfg.Listener.Inline[0].Metadata["source"])

	assert.Equal(t, []string{"Merch"}, cfg.Applier.LiveBiomassPools)
	require.NotNil(t, cfg.Applier.Tertiary)
	assert.Equal(t, "sapling_age", cfg.Applier.Tertiary.AgeVariable)
	assert.Equal(t, 2, cfg.Curves[3].RegrowthAge(3))

	assert.Equal(t, 2000, cfg.Spinup.SimulationStartYear)
	assert.Equal(t, 1990, cfg.Spinup.RampStartYear)
	assert.Equal(t, 120, cfg.Spinup.Peatland.MaxFireReturnInterval)

	assert.Equal(t, "Atmosphere", cfg.Processes.Source)
	assert.Equal(t, 0.5, cfg.Processes.RampScale)

	require.Len(t, cfg.Units, 2)
	assert.Equal(t, "stand_a", cfg.Units[0].Name)
	assert.Equal(t, json.Number("17"), cfg.Units[0].Variables["spatial_unit_id"])
	params, ok := cfg.Units[0].Variables["spinup_parameters"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "wildfire", params["historic_disturbance_type"])

	b, ok := cfg.Unit("stand_b")
	require.True(t, ok)
	assert.Equal(t, true, b.Variables["enable_peatland"], "variables may be nested under a variables field")
}

func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		field string
	}{
		{
			name:  "missing simulation",
			src:   `pools: [{name: "A"}]`,
			field: "simulation",
		},
		{
			name: "end before start",
			src: `simulation: {start_year: 2000, end_year: 1999}
pools: [{name: "A"}]`,
			field: "simulation",
		},
		{
			name: "duplicate pool",
			src: `simulation: {start_year: 2000, end_year: 2001}
pools: [{name: "A"}, {name: "A"}]`,
			field: "pools",
		},
		{
			name: "unknown matrix",
			src: `simulation: {start_year: 2000, end_year: 2001}
pools: [{name: "A"}]
tables: associations: [{disturbance_type: "fire", spatial_unit: 1, matrix_id: 9}]`,
			field: "tables",
		},
		{
			name: "unknown table field",
			src: `simulation: {start_year: 2000, end_year: 2001}
pools: [{name: "A"}]
tables: matrixes: []`,
			field: "tables",
		},
		{
			name: "unknown pool in spinup",
			src: `simulation: {start_year: 2000, end_year: 2001}
pools: [{name: "A"}]
tables: {}
spinup: slow_pools: ["B"]`,
			field: "spinup",
		},
		{
			name: "condition on unknown pool",
			src: `simulation: {start_year: 2000, end_year: 2001}
pools: [{name: "A"}]
tables: {}
spinup: slow_pools: ["A"]
disturbance_conditions: [{disturbance_types: ["fire"], run_conditions: [{type: "pool", pools: ["Z"], operator: "<", target: 1}]}]`,
			field: "disturbance_conditions",
		},
		{
			name: "bad inline event",
			src: `simulation: {start_year: 2000, end_year: 2001}
pools: [{name: "A"}]
tables: {}
listener: events: [{disturbance_type: "fire"}]`,
			field: "listener.events",
		},
		{
			name: "increments without source",
			src: `simulation: {start_year: 2000, end_year: 2001}
pools: [{name: "A"}]
tables: {}
spinup: slow_pools: ["A"]
processes: increments: [{pool: "A", amount: 1}]`,
			field: "processes.source",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := compileString(t, tt.src)
			require.Error(t, err)
			var ce *CompileError
			require.True(t, errors.As(err, &ce), "want CompileError, got %T: %v", err, err)
			assert.Equal(t, tt.field, ce.Field)
		})
	}
}

func TestCompile_IncompleteValue(t *testing.T) {
	v := cuecontext.New().CompileString(`
		simulation: {start_year: int, end_year: 2001}
		pools: [{name: "A"}]
	`)
	require.NoError(t, v.Err())

	_, err := Compile(v)
	require.Error(t, err)
	var ce *CompileError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "cue", ce.Field)
}

func TestLoadDir(t *testing.T) {
	cfg, err := LoadDir("testdata/minimal")
	require.NoError(t, err)

	assert.Equal(t, 2002, cfg.Simulation.EndYear)
	require.Len(t, cfg.Units, 1)
	assert.Equal(t, "stand", cfg.Units[0].Name)
	assert.Nil(t, cfg.Tables.DefaultOrder, "absent default order falls back to the built-in one")
}

func TestLoadDir_Missing(t *testing.T) {
	_, err := LoadDir("testdata/nope")
	require.Error(t, err)

	_, err = BuildDir(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no CUE files")
}

func TestCompile_UnitOrderFollowsSource(t *testing.T) {
	cfg, err := compileString(t, `
		simulation: {start_year: 2000, end_year: 2001}
		pools: [{name: "A"}]
		tables: {}
		spinup: slow_pools: ["A"]
		units: {zeta: {x: 1}, alpha: {x: 2}}
	`)
	require.NoError(t, err)
	require.Len(t, cfg.Units, 2)
	assert.Equal(t, "zeta", cfg.Units[0].Name)
	assert.Equal(t, "alpha", cfg.Units[1].Name)

	_, ok := cfg.Unit("missing")
	assert.False(t, ok)
}
