package condition

import (
	"fmt"
	"sort"

	"github.com/roach88/carbonspin/internal/engine"
	"github.com/roach88/carbonspin/internal/landunit"
)

// Parse converts a loosely-typed condition record into a SubCondition.
//
// Accepted shapes (the "type" key selects the variant):
//
//	{type: "variable", variable: "age", property?: "x", operator: ">=", target: 10}
//	{type: "pool", pools: ["A", "B"], operator: "<", target: 5}
//	{type: "history", sequence: [{disturbance_type: "fire", max_years_ago: 10, age?: {operator, target}}]}
//	{type: "all", conditions: [...]}
//
// A record without "type" is read as a variable comparison when it names a
// variable. Malformed records are configuration errors.
func Parse(raw any) (SubCondition, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, engine.ConfigError("condition must be a record, got %T", raw)
	}

	kind, _ := m["type"].(string)
	if kind == "" {
		if _, hasVar := m["variable"]; hasVar {
			kind = "variable"
		}
	}

	switch kind {
	case "variable":
		name, _ := m["variable"].(string)
		if name == "" {
			return nil, engine.ConfigError("variable condition requires \"variable\"")
		}
		prop, _ := m["property"].(string)
		cmp, err := parseComparison(m)
		if err != nil {
			return nil, fmt.Errorf("variable %q: %w", name, err)
		}
		return VariableCompare{Variable: name, Property: prop, Compare: cmp}, nil

	case "pool":
		pools, err := stringList(m["pools"])
		if err != nil || len(pools) == 0 {
			return nil, engine.ConfigError("pool condition requires a non-empty \"pools\" list")
		}
		cmp, err := parseComparison(m)
		if err != nil {
			return nil, fmt.Errorf("pools %v: %w", pools, err)
		}
		return PoolSumCompare{Pools: pools, Compare: cmp}, nil

	case "history":
		seq, ok := m["sequence"].([]any)
		if !ok || len(seq) == 0 {
			return nil, engine.ConfigError("history condition requires a non-empty \"sequence\"")
		}
		steps := make([]HistoryStep, 0, len(seq))
		for i, rawStep := range seq {
			step, err := parseHistoryStep(rawStep)
			if err != nil {
				return nil, fmt.Errorf("history step %d: %w", i, err)
			}
			steps = append(steps, step)
		}
		return HistorySequence{Steps: steps}, nil

	case "all":
		children, ok := m["conditions"].([]any)
		if !ok {
			return nil, engine.ConfigError("composite condition requires \"conditions\"")
		}
		parsed, err := ParseList(children)
		if err != nil {
			return nil, err
		}
		return Composite{Conditions: parsed}, nil

	default:
		return nil, engine.ConfigError("unknown condition type %q", kind)
	}
}

// ParseList parses each element of raw.
func ParseList(raw []any) ([]SubCondition, error) {
	out := make([]SubCondition, 0, len(raw))
	for i, r := range raw {
		c, err := Parse(r)
		if err != nil {
			return nil, fmt.Errorf("condition %d: %w", i, err)
		}
		out = append(out, c)
	}
	return out, nil
}

// ParseDisturbanceCondition converts a record of the form
//
//	{disturbance_types: [...], run_conditions: [...],
//	 override_conditions: [{condition: {...}, disturbance_type: "..."}]}
func ParseDisturbanceCondition(raw any) (DisturbanceCondition, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return DisturbanceCondition{}, engine.ConfigError("disturbance condition must be a record, got %T", raw)
	}

	types, err := stringList(m["disturbance_types"])
	if err != nil || len(types) == 0 {
		return DisturbanceCondition{}, engine.ConfigError("disturbance condition requires \"disturbance_types\"")
	}
	dc := DisturbanceCondition{Types: types}

	if runRaw, ok := m["run_conditions"].([]any); ok {
		dc.Run, err = ParseList(runRaw)
		if err != nil {
			return DisturbanceCondition{}, fmt.Errorf("run_conditions: %w", err)
		}
	}

	if ovRaw, ok := m["override_conditions"].([]any); ok {
		for i, r := range ovRaw {
			om, ok := r.(map[string]any)
			if !ok {
				return DisturbanceCondition{}, engine.ConfigError("override %d must be a record", i)
			}
			target, _ := om["disturbance_type"].(string)
			if target == "" {
				return DisturbanceCondition{}, engine.ConfigError("override %d requires \"disturbance_type\"", i)
			}
			c, err := Parse(om["condition"])
			if err != nil {
				return DisturbanceCondition{}, fmt.Errorf("override %d: %w", i, err)
			}
			dc.Overrides = append(dc.Overrides, Override{Condition: c, DisturbanceType: target})
		}
	}
	return dc, nil
}

func parseHistoryStep(raw any) (HistoryStep, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return HistoryStep{}, engine.ConfigError("history step must be a record")
	}
	dt, _ := m["disturbance_type"].(string)
	if dt == "" {
		return HistoryStep{}, engine.ConfigError("history step requires \"disturbance_type\"")
	}
	step := HistoryStep{DisturbanceType: dt, MaxYearsAgo: Unbounded}
	if v, ok := m["max_years_ago"]; ok {
		n, ok := landunit.ToInt(v)
		if !ok || n < 0 {
			return HistoryStep{}, engine.ConfigError("max_years_ago must be a non-negative integer, got %v", v)
		}
		step.MaxYearsAgo = n
	}
	if ageRaw, ok := m["age"]; ok {
		am, ok := ageRaw.(map[string]any)
		if !ok {
			return HistoryStep{}, engine.ConfigError("history step age must be a record")
		}
		cmp, err := parseComparison(am)
		if err != nil {
			return HistoryStep{}, fmt.Errorf("age: %w", err)
		}
		step.Age = &cmp
	}
	return step, nil
}

func parseComparison(m map[string]any) (Comparison, error) {
	opRaw, _ := m["operator"].(string)
	if opRaw == "" {
		return Comparison{}, engine.ConfigError("missing \"operator\"")
	}
	op := ParseOperator(opRaw)
	target, ok := m["target"]
	if !ok {
		return Comparison{}, engine.ConfigError("missing \"target\"")
	}

	switch op {
	case OpBetween:
		vals, err := scalarList(target)
		if err != nil || len(vals) != 2 || !vals[0].IsNum || !vals[1].IsNum {
			return Comparison{}, engine.ConfigError("between target must be [low, high] numbers, got %v", target)
		}
		return Comparison{Op: op, Values: vals}, nil
	case OpIn, OpNotIn:
		vals, err := scalarList(target)
		if err != nil {
			return Comparison{}, err
		}
		return Comparison{Op: op, Values: vals}, nil
	case OpLess, OpAtLeast:
		s, err := scalar(target)
		if err != nil || !s.IsNum {
			return Comparison{}, engine.ConfigError("operator %q requires a numeric target, got %v", op, target)
		}
		return Comparison{Op: op, Values: []Scalar{s}}, nil
	default:
		// Unknown operators parse but never match.
		s, err := scalar(target)
		if err != nil {
			return Comparison{}, err
		}
		return Comparison{Op: op, Values: []Scalar{s}}, nil
	}
}

func scalar(v any) (Scalar, error) {
	if s, ok := v.(string); ok {
		return Text(s), nil
	}
	if _, isBool := v.(bool); !isBool {
		if f, ok := landunit.ToFloat(v); ok {
			return Number(f), nil
		}
	}
	return Scalar{}, engine.ConfigError("target must be a number or string, got %T", v)
}

func scalarList(v any) ([]Scalar, error) {
	list, ok := v.([]any)
	if !ok {
		return nil, engine.ConfigError("target must be a list, got %T", v)
	}
	out := make([]Scalar, 0, len(list))
	for _, item := range list {
		s, err := scalar(item)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func stringList(v any) ([]string, error) {
	switch l := v.(type) {
	case []string:
		return append([]string(nil), l...), nil
	case []any:
		out := make([]string, 0, len(l))
		for _, item := range l {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("expected string, got %T", item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected list, got %T", v)
	}
}

// Validate checks that every pool referenced by conds exists.
func Validate(conds []DisturbanceCondition, hasPool func(string) bool) error {
	var missing []string
	seen := make(map[string]bool)
	for _, dc := range conds {
		for _, p := range dc.PoolRefs() {
			if !hasPool(p) && !seen[p] {
				seen[p] = true
				missing = append(missing, p)
			}
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return engine.ConfigError("conditions reference unknown pools %v", missing)
	}
	return nil
}
