// Package condition evaluates the boolean sub-conditions that gate, veto and
// override disturbance events.
//
// Sub-conditions are a closed set of variants: VariableCompare,
// PoolSumCompare, HistorySequence and Composite. Evaluate switches over all
// of them; a new variant must be added there.
package condition

import (
	"github.com/roach88/carbonspin/internal/ir"
	"github.com/roach88/carbonspin/internal/landunit"
)

// State is the read-only view a sub-condition is evaluated against.
type State interface {
	// Value returns a variable's value; ok is false when missing.
	Value(name string) (any, bool)
	// PoolValue returns a pool's current value; ok is false when missing.
	PoolValue(name string) (float64, bool)
	// History returns the rolling disturbance history, most recent first.
	History() []ir.HistoryRecord
	// Year returns the current simulated year.
	Year() int
}

// SubCondition is a sealed interface for the condition variants.
type SubCondition interface {
	subCondition()
}

// VariableCompare compares a variable, or one property of a struct-valued
// variable, against a target.
type VariableCompare struct {
	Variable string
	Property string
	Compare  Comparison
}

// PoolSumCompare sums the listed pools and compares the total.
type PoolSumCompare struct {
	Pools   []string
	Compare Comparison
}

// Unbounded disables the elapsed-years check of a HistoryStep.
const Unbounded = -1

// HistoryStep is one expected entry in a history sequence.
type HistoryStep struct {
	DisturbanceType string
	// MaxYearsAgo bounds the years elapsed since the previous step (or since
	// the current year for the first step). Unbounded disables the check.
	MaxYearsAgo int
	// Age optionally constrains the age recorded at the disturbance.
	Age *Comparison
}

// HistorySequence matches the most recent disturbances, front to back.
type HistorySequence struct {
	Steps []HistoryStep
}

// Composite is the ordered logical AND of its conditions.
type Composite struct {
	Conditions []SubCondition
}

func (VariableCompare) subCondition() {}
func (PoolSumCompare) subCondition()  {}
func (HistorySequence) subCondition() {}
func (Composite) subCondition()       {}

// Evaluate reports whether sc holds in state s.
//
// Missing variables and pools evaluate to false. Pool references are
// validated when conditions are bound to a unit (see Validate), so a missing
// pool here means the condition was never bound.
func Evaluate(sc SubCondition, s State) bool {
	switch c := sc.(type) {
	case VariableCompare:
		return evalVariable(c, s)
	case PoolSumCompare:
		return evalPoolSum(c, s)
	case HistorySequence:
		return evalHistory(c, s)
	case Composite:
		for _, child := range c.Conditions {
			if !Evaluate(child, s) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// All reports whether every condition holds. An empty list holds.
func All(conds []SubCondition, s State) bool {
	for _, c := range conds {
		if !Evaluate(c, s) {
			return false
		}
	}
	return true
}

func evalVariable(c VariableCompare, s State) bool {
	v, ok := s.Value(c.Variable)
	if !ok || v == nil {
		return false
	}
	if c.Property != "" {
		obj, ok := v.(map[string]any)
		if !ok {
			return false
		}
		v, ok = obj[c.Property]
		if !ok {
			return false
		}
	}
	return c.Compare.Matches(v)
}

func evalPoolSum(c PoolSumCompare, s State) bool {
	var total float64
	for _, name := range c.Pools {
		v, ok := s.PoolValue(name)
		if !ok {
			return false
		}
		total += v
	}
	return c.Compare.Matches(total)
}

func evalHistory(c HistorySequence, s State) bool {
	hist := s.History()
	if len(hist) < len(c.Steps) {
		return false
	}
	for i, step := range c.Steps {
		rec := hist[i]
		if rec.DisturbanceType != step.DisturbanceType {
			return false
		}
		if step.MaxYearsAgo != Unbounded {
			ref := s.Year()
			if i > 0 {
				ref = hist[i-1].Year
			}
			if ref-rec.Year > step.MaxYearsAgo {
				return false
			}
		}
		if step.Age != nil && !step.Age.Matches(rec.AgeAtDisturbance) {
			return false
		}
	}
	return true
}

// PoolRefs returns every pool name referenced by sc, in order.
func PoolRefs(sc SubCondition) []string {
	switch c := sc.(type) {
	case PoolSumCompare:
		return append([]string(nil), c.Pools...)
	case Composite:
		var out []string
		for _, child := range c.Conditions {
			out = append(out, PoolRefs(child)...)
		}
		return out
	default:
		return nil
	}
}

// dataState adapts landunit.Data to State with a supplied history and year.
type dataState struct {
	data    *landunit.Data
	history []ir.HistoryRecord
	year    int
}

// NewState builds a State over unit data.
func NewState(data *landunit.Data, history []ir.HistoryRecord, year int) State {
	return &dataState{data: data, history: history, year: year}
}

func (d *dataState) Value(name string) (any, bool)         { return d.data.Value(name) }
func (d *dataState) PoolValue(name string) (float64, bool) { return d.data.PoolValue(name) }
func (d *dataState) History() []ir.HistoryRecord           { return d.history }
func (d *dataState) Year() int                             { return d.year }
