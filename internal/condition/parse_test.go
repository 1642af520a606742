package condition

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/carbonspin/internal/engine"
)

func decode(t *testing.T, src string) any {
	t.Helper()
	var v any
	dec := json.NewDecoder(strings.NewReader(src))
	dec.UseNumber()
	require.NoError(t, dec.Decode(&v))
	return v
}

func TestParse_Variants(t *testing.T) {
	t.Run("variable", func(t *testing.T) {
		c, err := Parse(decode(t, `{"type":"variable","variable":"age","operator":">=","target":10}`))
		require.NoError(t, err)
		vc, ok := c.(VariableCompare)
		require.True(t, ok)
		assert.Equal(t, "age", vc.Variable)
		assert.Equal(t, OpAtLeast, vc.Compare.Op)
		assert.Equal(t, []Scalar{Number(10)}, vc.Compare.Values)
	})

	t.Run("implicit variable with property", func(t *testing.T) {
		c, err := Parse(decode(t, `{"variable":"stand","property":"species","operator":"in","target":["BF", 3]}`))
		require.NoError(t, err)
		vc := c.(VariableCompare)
		assert.Equal(t, "species", vc.Property)
		assert.Equal(t, []Scalar{Text("BF"), Number(3)}, vc.Compare.Values)
	})

	t.Run("pool", func(t *testing.T) {
		c, err := Parse(decode(t, `{"type":"pool","pools":["A","B"],"operator":"between","target":[1,2]}`))
		require.NoError(t, err)
		pc := c.(PoolSumCompare)
		assert.Equal(t, []string{"A", "B"}, pc.Pools)
		assert.Equal(t, OpBetween, pc.Compare.Op)
	})

	t.Run("history", func(t *testing.T) {
		c, err := Parse(decode(t, `{"type":"history","sequence":[
			{"disturbance_type":"fire","max_years_ago":10,"age":{"operator":"<","target":40}},
			{"disturbance_type":"harvest"}]}`))
		require.NoError(t, err)
		hs := c.(HistorySequence)
		require.Len(t, hs.Steps, 2)
		assert.Equal(t, 10, hs.Steps[0].MaxYearsAgo)
		require.NotNil(t, hs.Steps[0].Age)
		assert.Equal(t, OpLess, hs.Steps[0].Age.Op)
		assert.Equal(t, Unbounded, hs.Steps[1].MaxYearsAgo)
	})

	t.Run("composite", func(t *testing.T) {
		c, err := Parse(decode(t, `{"type":"all","conditions":[
			{"variable":"age","operator":"==","target":1},
			{"type":"pool","pools":["A"],"operator":"<","target":5}]}`))
		require.NoError(t, err)
		comp := c.(Composite)
		require.Len(t, comp.Conditions, 2)
		assert.Equal(t, OpEqual, comp.Conditions[0].(VariableCompare).Compare.Op)
	})
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"not a record", `[1,2]`},
		{"unknown type", `{"type":"weather"}`},
		{"missing operator", `{"variable":"age","target":1}`},
		{"missing target", `{"variable":"age","operator":"<"}`},
		{"non numeric less", `{"variable":"age","operator":"<","target":"old"}`},
		{"bad between", `{"variable":"age","operator":"between","target":[1]}`},
		{"in needs list", `{"variable":"age","operator":"in","target":1}`},
		{"empty pools", `{"type":"pool","pools":[],"operator":"<","target":1}`},
		{"negative years", `{"type":"history","sequence":[{"disturbance_type":"fire","max_years_ago":-1}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(decode(t, tt.src))
			require.Error(t, err)
			assert.True(t, engine.IsConfigError(err), "got %v", err)
		})
	}
}

func TestParse_UnknownOperatorNeverMatches(t *testing.T) {
	c, err := Parse(decode(t, `{"variable":"age","operator":"~=","target":1}`))
	require.NoError(t, err)
	assert.False(t, Evaluate(c, &fakeState{vars: map[string]any{"age": 1}}))
}

func TestParseDisturbanceCondition(t *testing.T) {
	dc, err := ParseDisturbanceCondition(decode(t, `{
		"disturbance_types": ["fire", "wildfire"],
		"run_conditions": [{"variable":"age","operator":">=","target":20}],
		"override_conditions": [
			{"condition": {"variable":"age","operator":">=","target":80}, "disturbance_type":"stand_replacing_fire"}
		]}`))
	require.NoError(t, err)

	assert.True(t, dc.AppliesTo("wildfire"))
	assert.False(t, dc.AppliesTo("harvest"))
	require.Len(t, dc.Run, 1)
	require.Len(t, dc.Overrides, 1)
	assert.Equal(t, "stand_replacing_fire", dc.Overrides[0].DisturbanceType)

	_, err = ParseDisturbanceCondition(decode(t, `{"run_conditions": []}`))
	assert.True(t, engine.IsConfigError(err))

	_, err = ParseDisturbanceCondition(decode(t, `{"disturbance_types":["fire"],"override_conditions":[{"condition":{"variable":"age","operator":"<","target":1}}]}`))
	assert.True(t, engine.IsConfigError(err))
}

func TestValidate_UnknownPools(t *testing.T) {
	conds := []DisturbanceCondition{{
		Types: []string{"fire"},
		Run:   []SubCondition{PoolSumCompare{Pools: []string{"Merch", "Ghost"}}},
		Overrides: []Override{{
			Condition:       PoolSumCompare{Pools: []string{"Phantom"}},
			DisturbanceType: "x",
		}},
	}}
	known := map[string]bool{"Merch": true}

	err := Validate(conds, func(p string) bool { return known[p] })
	require.Error(t, err)
	assert.True(t, engine.IsConfigError(err))
	assert.Contains(t, err.Error(), "[Ghost Phantom]")

	known["Ghost"], known["Phantom"] = true, true
	assert.NoError(t, Validate(conds, func(p string) bool { return known[p] }))
}
