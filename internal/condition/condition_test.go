package condition

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/carbonspin/internal/ir"
)

// fakeState is an in-memory State for condition tests.
type fakeState struct {
	vars    map[string]any
	pools   map[string]float64
	history []ir.HistoryRecord
	year    int
}

func (f *fakeState) Value(name string) (any, bool) {
	v, ok := f.vars[name]
	return v, ok
}

func (f *fakeState) PoolValue(name string) (float64, bool) {
	v, ok := f.pools[name]
	return v, ok
}

func (f *fakeState) History() []ir.HistoryRecord { return f.history }
func (f *fakeState) Year() int                   { return f.year }

func cmp(op Operator, vals ...Scalar) Comparison {
	return Comparison{Op: op, Values: vals}
}

func TestComparison_Operators(t *testing.T) {
	tests := []struct {
		name   string
		cmp    Comparison
		actual any
		want   bool
	}{
		{"less true", cmp(OpLess, Number(10)), 9, true},
		{"less false at bound", cmp(OpLess, Number(10)), 10, false},
		{"equal number", cmp(OpEqual, Number(3)), 3.0, true},
		{"equal string", cmp(OpEqual, Text("BF")), "BF", true},
		{"equal type mismatch", cmp(OpEqual, Text("3")), 3, false},
		{"at least bound", cmp(OpAtLeast, Number(5)), 5, true},
		{"at least below", cmp(OpAtLeast, Number(5)), 4.9, false},
		{"between low inclusive", cmp(OpBetween, Number(1), Number(5)), 1, true},
		{"between high exclusive", cmp(OpBetween, Number(1), Number(5)), 5, false},
		{"in mixed set", cmp(OpIn, Number(2), Text("wet")), "wet", true},
		{"in miss", cmp(OpIn, Number(2), Number(5)), 3, false},
		{"not in", cmp(OpNotIn, Number(2), Number(5)), 3, true},
		{"not in hit", cmp(OpNotIn, Number(2), Number(5)), 5, false},
		{"unknown operator", cmp(Operator("~"), Number(1)), 1, false},
		{"non numeric actual", cmp(OpLess, Number(1)), "x", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cmp.Matches(tt.actual))
		})
	}
}

func TestEvaluate_VariableCompare(t *testing.T) {
	s := &fakeState{vars: map[string]any{
		"age":   30,
		"stand": map[string]any{"species": "BF"},
	}}

	assert.True(t, Evaluate(VariableCompare{Variable: "age", Compare: cmp(OpAtLeast, Number(20))}, s))
	assert.True(t, Evaluate(VariableCompare{Variable: "stand", Property: "species", Compare: cmp(OpEqual, Text("BF"))}, s))
	assert.False(t, Evaluate(VariableCompare{Variable: "stand", Property: "missing", Compare: cmp(OpEqual, Text("BF"))}, s))
	assert.False(t, Evaluate(VariableCompare{Variable: "nope", Compare: cmp(OpAtLeast, Number(0))}, s), "missing variable is false")
	assert.False(t, Evaluate(VariableCompare{Variable: "age", Property: "x", Compare: cmp(OpAtLeast, Number(0))}, s), "property of scalar is false")
}

func TestEvaluate_PoolSumCompare(t *testing.T) {
	s := &fakeState{pools: map[string]float64{"Merch": 3, "Foliage": 1}}

	assert.True(t, Evaluate(PoolSumCompare{Pools: []string{"Merch", "Foliage"}, Compare: cmp(OpAtLeast, Number(4))}, s))
	assert.False(t, Evaluate(PoolSumCompare{Pools: []string{"Merch", "Foliage"}, Compare: cmp(OpLess, Number(4))}, s))
	assert.False(t, Evaluate(PoolSumCompare{Pools: []string{"Missing"}, Compare: cmp(OpAtLeast, Number(0))}, s))
}

func TestEvaluate_HistorySequence(t *testing.T) {
	s := &fakeState{
		year: 2020,
		history: []ir.HistoryRecord{
			{DisturbanceType: "fire", Year: 2020, AgeAtDisturbance: 10},
			{DisturbanceType: "harvest", Year: 2015, AgeAtDisturbance: 5},
		},
	}

	seq := HistorySequence{Steps: []HistoryStep{
		{DisturbanceType: "fire", MaxYearsAgo: 10},
		{DisturbanceType: "harvest", MaxYearsAgo: 10},
	}}
	assert.True(t, Evaluate(seq, s))

	seq.Steps[1].MaxYearsAgo = 3
	assert.False(t, Evaluate(seq, s), "harvest is 5 years before fire")

	seq.Steps[1].MaxYearsAgo = Unbounded
	assert.True(t, Evaluate(seq, s))

	wrongType := HistorySequence{Steps: []HistoryStep{{DisturbanceType: "harvest", MaxYearsAgo: Unbounded}}}
	assert.False(t, Evaluate(wrongType, s))

	tooLong := HistorySequence{Steps: []HistoryStep{
		{DisturbanceType: "fire", MaxYearsAgo: Unbounded},
		{DisturbanceType: "harvest", MaxYearsAgo: Unbounded},
		{DisturbanceType: "fire", MaxYearsAgo: Unbounded},
	}}
	assert.False(t, Evaluate(tooLong, s))

	age := cmp(OpAtLeast, Number(8))
	withAge := HistorySequence{Steps: []HistoryStep{{DisturbanceType: "fire", MaxYearsAgo: 0, Age: &age}}}
	assert.True(t, Evaluate(withAge, s))
	age.Values[0] = Number(11)
	assert.False(t, Evaluate(withAge, s))
}

func TestEvaluate_HistoryFirstStepUsesCurrentYear(t *testing.T) {
	s := &fakeState{
		year:    2030,
		history: []ir.HistoryRecord{{DisturbanceType: "fire", Year: 2020}},
	}
	seq := HistorySequence{Steps: []HistoryStep{{DisturbanceType: "fire", MaxYearsAgo: 9}}}
	assert.False(t, Evaluate(seq, s))
	seq.Steps[0].MaxYearsAgo = 10
	assert.True(t, Evaluate(seq, s))
}

func TestEvaluate_CompositeShortCircuits(t *testing.T) {
	s := &fakeState{vars: map[string]any{"age": 5}}
	c := Composite{Conditions: []SubCondition{
		VariableCompare{Variable: "age", Compare: cmp(OpLess, Number(10))},
		VariableCompare{Variable: "age", Compare: cmp(OpAtLeast, Number(5))},
	}}
	assert.True(t, Evaluate(c, s))

	c.Conditions = append(c.Conditions, VariableCompare{Variable: "age", Compare: cmp(OpEqual, Number(6))})
	assert.False(t, Evaluate(c, s))
	assert.True(t, Evaluate(Composite{}, s), "empty composite holds")
}

func TestPoolRefs(t *testing.T) {
	c := Composite{Conditions: []SubCondition{
		PoolSumCompare{Pools: []string{"A", "B"}},
		VariableCompare{Variable: "age"},
		Composite{Conditions: []SubCondition{PoolSumCompare{Pools: []string{"C"}}}},
	}}
	assert.Equal(t, []string{"A", "B", "C"}, PoolRefs(c))
}
