package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario is one scenario test.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Config is the CUE configuration directory, relative to the scenario
	// file until LoadScenario resolves it.
	Config string `yaml:"config"`

	// RunID prefixes the per-unit run ids. Defaults to "scenario".
	RunID string `yaml:"run_id,omitempty"`

	// Units limits the run to the named units, in this order.
	Units []string `yaml:"units,omitempty"`

	// Assertions validate the trace and final state.
	Assertions []Assertion `yaml:"assertions"`
}

// Assertion validates the trace or a unit's final state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Unit selects the unit. Required for final_pool and spinup when the
	// run has more than one unit; a trace filter otherwise.
	Unit string `yaml:"unit,omitempty"`

	// Phase filters trace assertions to "spinup" or "simulation".
	Phase string `yaml:"phase,omitempty"`

	// Year filters trace assertions to one year.
	Year *int `yaml:"year,omitempty"`

	// Disturbance is the type name for trace_contains and trace_count.
	Disturbance string `yaml:"disturbance,omitempty"`

	// Disturbances is the expected order for trace_order.
	Disturbances []string `yaml:"disturbances,omitempty"`

	// Count is the expected number of occurrences for trace_count.
	Count int `yaml:"count,omitempty"`

	// Pool and Value are checked by final_pool, within Tolerance.
	Pool      string   `yaml:"pool,omitempty"`
	Value     *float64 `yaml:"value,omitempty"`
	Tolerance float64  `yaml:"tolerance,omitempty"`

	// Field and Expect are checked by spinup.
	Field  string `yaml:"field,omitempty"`
	Expect any    `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalPool     = "final_pool"
	AssertSpinup        = "spinup"
)

// LoadScenario reads and parses a scenario YAML file and resolves its
// config directory against the file's location.
// Unknown fields (typos) and missing required fields are errors.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "assertion:" vs "assertions:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Config != "" && !filepath.IsAbs(scenario.Config) {
		scenario.Config = filepath.Join(filepath.Dir(path), scenario.Config)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Config == "" {
		return fmt.Errorf("config is required")
	}
	if info, err := os.Stat(s.Config); err != nil || !info.IsDir() {
		return fmt.Errorf("config directory not found: %s", s.Config)
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}
	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Disturbance == "" {
			return fmt.Errorf("assertions[%d]: disturbance is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Disturbances) == 0 {
			return fmt.Errorf("assertions[%d]: disturbances list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Disturbance == "" {
			return fmt.Errorf("assertions[%d]: disturbance is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalPool:
		if a.Pool == "" {
			return fmt.Errorf("assertions[%d]: pool is required for final_pool", index)
		}
		if a.Value == nil {
			return fmt.Errorf("assertions[%d]: value is required for final_pool", index)
		}
		if a.Tolerance < 0 {
			return fmt.Errorf("assertions[%d]: tolerance must be non-negative", index)
		}
	case AssertSpinup:
		if a.Field == "" {
			return fmt.Errorf("assertions[%d]: field is required for spinup", index)
		}
		if a.Expect == nil {
			return fmt.Errorf("assertions[%d]: expect is required for spinup", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	switch a.Phase {
	case "", "spinup", "simulation":
	default:
		return fmt.Errorf("assertions[%d]: unknown phase %q", index, a.Phase)
	}
	return nil
}
