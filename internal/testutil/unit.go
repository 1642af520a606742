package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/carbonspin/internal/landunit"
)

// Pool is a name/value pair for NewData.
type Pool struct {
	Name  string
	Value float64
}

// NewData builds unit state with the given pools (in order) and variables.
func NewData(t testing.TB, pools []Pool, vars map[string]any) *landunit.Data {
	t.Helper()
	specs := make([]landunit.PoolSpec, len(pools))
	for i, p := range pools {
		specs[i] = landunit.PoolSpec{Name: p.Name, Value: p.Value}
	}
	d, err := landunit.NewData(specs)
	require.NoError(t, err)
	for k, v := range vars {
		d.SetVariable(k, v)
	}
	return d
}

// PoolValue returns a pool's value, failing the test when it is missing.
func PoolValue(t testing.TB, d *landunit.Data, name string) float64 {
	t.Helper()
	v, ok := d.PoolValue(name)
	require.True(t, ok, "pool %q not found", name)
	return v
}

// IntVar returns an integer variable, failing the test when it is missing.
func IntVar(t testing.TB, d *landunit.Data, name string) int {
	t.Helper()
	v, ok := d.IntVar(name)
	require.True(t, ok, "variable %q missing or not an integer", name)
	return v
}
