package catalog

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/carbonspin/internal/engine"
	"github.com/roach88/carbonspin/internal/ir"
)

func testTables() Tables {
	return Tables{
		Matrices: []ir.TransferMatrix{
			{ID: 1, Transfers: []ir.Transfer{{Source: "Merch", Dest: "Atmosphere", Proportion: 0.9}}},
			{ID: 2, Transfers: []ir.Transfer{{Source: "Merch", Dest: "Products", Proportion: 0.8}}},
			{ID: 3, Transfers: []ir.Transfer{{Source: "Peat", Dest: "CO2", Proportion: 0.1}}},
		},
		Associations: []ir.MatrixAssociation{
			{DisturbanceType: "wildfire", SpatialUnit: 17, MatrixID: 1},
			{DisturbanceType: "clearcut", SpatialUnit: 17, MatrixID: 2},
			{DisturbanceType: "blowdown", SpatialUnit: 17, MatrixID: 2},
		},
		SpecialAssociations: []ir.SurfaceAssociation{
			{DisturbanceType: "wildfire", SurfaceID: 4, MatrixID: 3},
		},
		Transitions: []ir.LandClassTransition{
			{DisturbanceType: "deforestation", LandClass: "CL"},
		},
		TypeCodes: []ir.DisturbanceTypeCode{
			{Name: "wildfire", Code: 1},
			{Name: "clearcut", Code: 2},
			{Name: "insects", Code: 9},
		},
		PriorityOrder: []string{"clearcut"},
		DefaultOrder:  []string{"deforestation", "wildfire"},
	}
}

func newTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := New(testTables())
	require.NoError(t, err)
	return c
}

func TestNew_PriorityOrder(t *testing.T) {
	c := newTestCatalog(t)

	// user order, then defaults; insects and blowdown are in neither list
	assert.Equal(t, []string{"clearcut", "deforestation", "wildfire"}, c.PriorityOrder())

	r, ok := c.Rank("wildfire")
	assert.True(t, ok)
	assert.Equal(t, 2, r)
	_, ok = c.Rank("meteor")
	assert.False(t, ok)
	_, ok = c.Rank("blowdown")
	assert.False(t, ok, "an association does not rank a type")
}

func TestSortByPriority_UnlistedTypesKeepInputOrder(t *testing.T) {
	tb := testTables()
	tb.Associations = append(tb.Associations,
		ir.MatrixAssociation{DisturbanceType: "alpha", SpatialUnit: 17, MatrixID: 1},
		ir.MatrixAssociation{DisturbanceType: "beta", SpatialUnit: 17, MatrixID: 1},
	)
	tb.PriorityOrder = []string{"wildfire"}
	tb.DefaultOrder = []string{}
	c, err := New(tb)
	require.NoError(t, err)

	tests := []struct {
		name  string
		input []string
		want  []string
	}{
		{"unlisted only", []string{"beta", "alpha"}, []string{"beta", "alpha"}},
		{"listed first", []string{"beta", "wildfire", "alpha"}, []string{"wildfire", "beta", "alpha"}},
		{"coded but unlisted", []string{"insects", "blowdown", "wildfire"}, []string{"wildfire", "insects", "blowdown"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items := slices.Clone(tt.input)
			SortByPriority(c, items, func(s string) string { return s })
			assert.Equal(t, tt.want, items)
		})
	}
}

func TestNew_ValidationErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Tables)
	}{
		{"duplicate matrix", func(tb *Tables) { tb.Matrices = append(tb.Matrices, ir.TransferMatrix{ID: 1}) }},
		{"unknown matrix", func(tb *Tables) {
			tb.Associations = append(tb.Associations, ir.MatrixAssociation{DisturbanceType: "x", SpatialUnit: 1, MatrixID: 99})
		}},
		{"unknown special matrix", func(tb *Tables) {
			tb.SpecialAssociations = append(tb.SpecialAssociations, ir.SurfaceAssociation{DisturbanceType: "x", SurfaceID: 1, MatrixID: 99})
		}},
		{"name with two codes", func(tb *Tables) {
			tb.TypeCodes = append(tb.TypeCodes, ir.DisturbanceTypeCode{Name: "wildfire", Code: 5})
		}},
		{"code with two names", func(tb *Tables) {
			tb.TypeCodes = append(tb.TypeCodes, ir.DisturbanceTypeCode{Name: "fire", Code: 1})
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tb := testTables()
			tt.mutate(&tb)
			_, err := New(tb)
			require.Error(t, err)
			assert.True(t, engine.IsConfigError(err))
		})
	}
}

func TestCatalog_MatrixLookup(t *testing.T) {
	c := newTestCatalog(t)

	m, err := c.MatrixFor("wildfire", 17)
	require.NoError(t, err)
	assert.Equal(t, 1, m.ID)

	_, err = c.MatrixFor("wildfire", 18)
	require.Error(t, err)
	assert.True(t, engine.IsConfigError(err))

	sm, ok := c.SpecialMatrixFor("wildfire", 4)
	assert.True(t, ok)
	assert.Equal(t, 3, sm.ID)
	_, ok = c.SpecialMatrixFor("clearcut", 4)
	assert.False(t, ok)
}

func TestCatalog_MatricesAreCopied(t *testing.T) {
	tb := testTables()
	c, err := New(tb)
	require.NoError(t, err)

	tb.Matrices[0].Transfers[0].Proportion = 0
	m, _ := c.Matrix(1)
	assert.Equal(t, 0.9, m.Transfers[0].Proportion)
}

func TestCatalog_Transition(t *testing.T) {
	c := newTestCatalog(t)
	lc, ok := c.Transition("deforestation")
	assert.True(t, ok)
	assert.Equal(t, "CL", lc)
	_, ok = c.Transition("wildfire")
	assert.False(t, ok)
}

func TestCatalog_ResolveType(t *testing.T) {
	c := newTestCatalog(t)
	code := func(n int) *int { return &n }

	name, err := c.ResolveType("wildfire", code(1))
	require.NoError(t, err)
	assert.Equal(t, "wildfire", name)

	name, err = c.ResolveType("", code(2))
	require.NoError(t, err)
	assert.Equal(t, "clearcut", name)

	name, err = c.ResolveType("unlisted", nil)
	require.NoError(t, err)
	assert.Equal(t, "unlisted", name)

	for _, tc := range []struct {
		name string
		code *int
	}{
		{"wildfire", code(2)},
		{"", code(42)},
		{"wildfire", code(42)},
		{"", nil},
	} {
		_, err := c.ResolveType(tc.name, tc.code)
		assert.True(t, engine.IsConfigError(err), "name=%q", tc.name)
	}
}

func TestSortByPriority_StableUnknownLast(t *testing.T) {
	c := newTestCatalog(t)

	type ev struct {
		typ string
		idx int
	}
	events := []ev{
		{"meteor", 0},
		{"wildfire", 1},
		{"alien", 2},
		{"clearcut", 3},
		{"wildfire", 4},
		{"deforestation", 5},
	}
	SortByPriority(c, events, func(e ev) string { return e.typ })

	got := make([]int, len(events))
	for i, e := range events {
		got[i] = e.idx
	}
	assert.Equal(t, []int{3, 5, 1, 4, 0, 2}, got)
}
