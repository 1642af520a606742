package landunit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestData(t *testing.T) *Data {
	t.Helper()
	initial := 42.0
	d, err := NewData([]PoolSpec{
		{Name: "Merch", Value: 10},
		{Name: "Foliage", Value: 4},
		{Name: "SlowSoil", Value: 100, Initial: &initial},
		{Name: "Atmosphere"},
	})
	require.NoError(t, err)
	return d
}

func TestNewData_RejectsDuplicates(t *testing.T) {
	_, err := NewData([]PoolSpec{{Name: "A"}, {Name: "A"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate pool")

	_, err = NewData([]PoolSpec{{Name: ""}})
	require.Error(t, err)
}

func TestData_PoolOrderAndSnapshot(t *testing.T) {
	d := newTestData(t)

	pools := d.Pools()
	require.Len(t, pools, 4)
	for i, p := range pools {
		assert.Equal(t, i, p.Idx())
	}

	snap := d.Snapshot()
	assert.Equal(t, []float64{10, 4, 100, 0}, snap)

	pools[0].SetValue(0)
	require.NoError(t, d.Restore(snap))
	assert.Equal(t, 10.0, pools[0].Value())

	assert.Error(t, d.Restore([]float64{1}))
}

func TestData_SumPools(t *testing.T) {
	d := newTestData(t)

	sum, err := d.SumPools([]string{"Merch", "Foliage"})
	require.NoError(t, err)
	assert.Equal(t, 14.0, sum)

	_, err = d.SumPools([]string{"Missing"})
	assert.Error(t, err)
}

func TestData_ApplyInitialValues(t *testing.T) {
	d := newTestData(t)
	slow, err := d.Pool("SlowSoil")
	require.NoError(t, err)
	slow.SetValue(7)

	d.ApplyInitialValues()

	assert.Equal(t, 42.0, slow.Value())
	merch, _ := d.Pool("Merch")
	assert.Equal(t, 10.0, merch.Value(), "pools without an initial value are untouched")
}

func TestData_Variables(t *testing.T) {
	d := newTestData(t)

	assert.False(t, d.HasVariable("age"))
	_, err := d.Variable("age")
	assert.Error(t, err)

	d.SetVariable("age", 12)
	d.SetVariable("run_delay", "false")
	d.SetVariable("mat", 1.5)
	d.SetVariable("classifier", "BF")

	age, ok := d.IntVar("age")
	assert.True(t, ok)
	assert.Equal(t, 12, age)
	assert.False(t, d.BoolVar("run_delay"))
	mat, ok := d.FloatVar("mat")
	assert.True(t, ok)
	assert.Equal(t, 1.5, mat)
	s, ok := d.StringVar("classifier")
	assert.True(t, ok)
	assert.Equal(t, "BF", s)

	d.SetVariable("age", nil)
	_, ok = d.IntVar("age")
	assert.False(t, ok, "empty variable")
}

func TestProportionalOperation_UsesPreApplyValues(t *testing.T) {
	d := newTestData(t)
	merch, _ := d.Pool("Merch")
	foliage, _ := d.Pool("Foliage")
	atm, _ := d.Pool("Atmosphere")

	op := d.NewProportionalOperation(nil)
	op.AddTransfer(merch, foliage, 0.5).AddTransfer(foliage, atm, 0.5)
	d.Submit(op)
	fluxes := d.ApplyOperations()

	require.Len(t, fluxes, 2)
	// Foliage loses half of its pre-operation value (4), not of 4+5.
	assert.InDelta(t, 5.0, merch.Value(), 1e-12)
	assert.InDelta(t, 7.0, foliage.Value(), 1e-12)
	assert.InDelta(t, 2.0, atm.Value(), 1e-12)
}

func TestStockOperation(t *testing.T) {
	d := newTestData(t)
	atm, _ := d.Pool("Atmosphere")
	merch, _ := d.Pool("Merch")

	d.Submit(d.NewStockOperation(nil).AddTransfer(atm, merch, 3))
	d.ApplyOperations()

	assert.Equal(t, 13.0, merch.Value())
	assert.Equal(t, -3.0, atm.Value())
	assert.Empty(t, d.ApplyOperations(), "queue cleared")
}

func TestTiming_AdvanceYear(t *testing.T) {
	var tm Timing
	tm.Reset(1990, 2010)
	tm.AdvanceYear()
	tm.AdvanceYear()

	assert.Equal(t, 2, tm.Step)
	assert.Equal(t, 1992, tm.CurYear)
	assert.Equal(t, 1991, tm.PrevYear)
}

func TestConverters(t *testing.T) {
	tests := []struct {
		in      any
		wantInt int
		intOK   bool
	}{
		{int64(5), 5, true},
		{5.0, 5, true},
		{5.5, 0, false},
		{"7", 7, true},
		{true, 0, false},
		{nil, 0, false},
	}
	for _, tt := range tests {
		got, ok := ToInt(tt.in)
		assert.Equal(t, tt.intOK, ok, "%v", tt.in)
		assert.Equal(t, tt.wantInt, got, "%v", tt.in)
	}

	b, ok := ToBool("true")
	assert.True(t, ok)
	assert.True(t, b)
	b, ok = ToBool(0)
	assert.True(t, ok)
	assert.False(t, b)
}
