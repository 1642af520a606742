// Package harness runs scenario tests against compiled configurations.
//
// A scenario names a CUE configuration directory, runs its units through
// spin-up and simulation, and checks assertions against the disturbance
// trace and the final unit state.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: basic_forest
//	description: "One stand, one clearcut"
//	config: ../configs/basic
//	run_id: basic
//	units: [stand]
//	assertions:
//	  - type: trace_order
//	    phase: spinup
//	    disturbances: [wildfire, clearcut]
//	  - type: trace_count
//	    disturbance: clearcut
//	    count: 2
//	  - type: final_pool
//	    unit: stand
//	    pool: Merch
//	    value: 2
//	  - type: spinup
//	    unit: stand
//	    field: rotations
//	    expect: 2
//
// The config path is resolved relative to the scenario file. units is
// optional and defaults to every unit in the configuration.
//
// # Assertion Types
//
//   - trace_contains: a disturbance appears in the trace
//   - trace_order: disturbances appear in the given order
//   - trace_count: a disturbance appears exactly N times
//   - final_pool: a unit's pool ends within tolerance of a value
//   - spinup: a field of a unit's spin-up result equals a value
//
// Trace assertions accept optional unit, phase and year filters.
//
// # Deterministic Testing
//
// Each run logs disturbances to a fresh in-memory SQLite store under run
// ids derived from the scenario's run_id and the unit name, and reads the
// trace back from it. Two runs of one scenario produce identical traces,
// which is what golden comparison relies on.
package harness
