package condition

import (
	"slices"
)

// Override substitutes DisturbanceType when Condition holds.
type Override struct {
	Condition       SubCondition
	DisturbanceType string
}

// DisturbanceCondition gates and overrides events of the listed types.
//
// Run conditions are disjunctive: the condition allows the event when any
// run condition holds, and always allows it when there are none. Overrides
// are scanned in order only when the event is allowed; the first that holds
// supplies the replacement type.
type DisturbanceCondition struct {
	Types     []string
	Run       []SubCondition
	Overrides []Override
}

// CheckResult is the outcome of one DisturbanceCondition.
type CheckResult struct {
	ShouldRun bool
	// Override is the replacement type, empty when none matched.
	Override string
	// HasRunConditions records whether ShouldRun came from configured run
	// conditions rather than the empty-list default.
	HasRunConditions bool
}

// AppliesTo reports whether the condition lists disturbanceType.
func (dc DisturbanceCondition) AppliesTo(disturbanceType string) bool {
	return slices.Contains(dc.Types, disturbanceType)
}

// Check evaluates the condition in state s.
func (dc DisturbanceCondition) Check(s State) CheckResult {
	res := CheckResult{ShouldRun: true, HasRunConditions: len(dc.Run) > 0}
	if res.HasRunConditions {
		res.ShouldRun = false
		for _, c := range dc.Run {
			if Evaluate(c, s) {
				res.ShouldRun = true
				break
			}
		}
	}
	if !res.ShouldRun {
		return res
	}
	for _, o := range dc.Overrides {
		if Evaluate(o.Condition, s) {
			res.Override = o.DisturbanceType
			break
		}
	}
	return res
}

// Outcome is the merged result of every condition that applies to a type.
type Outcome struct {
	Run bool
	// Override is the replacement type, empty when none matched.
	Override string
}

// Merge combines every condition in conds that applies to disturbanceType.
//
// Any applying condition that has run conditions and none of them hold
// vetoes the event. Overrides are taken in configuration order and the
// first one found is kept.
func Merge(conds []DisturbanceCondition, disturbanceType string, s State) Outcome {
	out := Outcome{Run: true}
	for _, dc := range conds {
		if !dc.AppliesTo(disturbanceType) {
			continue
		}
		res := dc.Check(s)
		if res.HasRunConditions && !res.ShouldRun {
			out.Run = false
		}
		if out.Override == "" && res.Override != "" {
			out.Override = res.Override
		}
	}
	if !out.Run {
		out.Override = ""
	}
	return out
}

// PoolRefs returns every pool referenced by the condition's run and override
// conditions.
func (dc DisturbanceCondition) PoolRefs() []string {
	var out []string
	for _, c := range dc.Run {
		out = append(out, PoolRefs(c)...)
	}
	for _, o := range dc.Overrides {
		out = append(out, PoolRefs(o.Condition)...)
	}
	return out
}
