package disturbance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/carbonspin/internal/engine"
	"github.com/roach88/carbonspin/internal/ir"
)

func TestRecordsFromValue(t *testing.T) {
	t.Run("single record", func(t *testing.T) {
		recs, err := recordsFromValue("l", map[string]any{"year": 2001, "disturbance_type": "wildfire"})
		require.NoError(t, err)
		require.Len(t, recs, 1)
	})

	t.Run("list of records", func(t *testing.T) {
		recs, err := recordsFromValue("l", []any{
			map[string]any{"year": 2001, "disturbance_type_code": 1},
			map[string]any{"year": 2002, "disturbance_type": "clearcut", "transition": 3},
		})
		require.NoError(t, err)
		assert.Len(t, recs, 2)
	})

	tests := []struct {
		name  string
		value any
	}{
		{"scalar", 5},
		{"missing year", map[string]any{"disturbance_type": "wildfire"}},
		{"fractional year", map[string]any{"year": 2001.5, "disturbance_type": "wildfire"}},
		{"string code", map[string]any{"year": 2001, "disturbance_type_code": "one"}},
		{"one bad record", []any{
			map[string]any{"year": 2001, "disturbance_type": "wildfire"},
			map[string]any{"year": "soon"},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := recordsFromValue("l", tt.value)
			require.Error(t, err)
			assert.True(t, engine.IsDataQualityError(err), "got %v", err)
		})
	}
}

func TestParseEventRecord(t *testing.T) {
	recs, err := recordsFromValue("l", map[string]any{
		"year":                  2005,
		"disturbance_type":      "wildfire",
		"disturbance_type_code": 1,
		"transition":            7,
		"source":                "fire_layer_v2",
		"conditions": []any{
			map[string]any{"variable": "age", "operator": ">=", "target": 20},
		},
	})
	require.NoError(t, err)

	rec, err := ParseEventRecord(recs[0])
	require.NoError(t, err)
	assert.Equal(t, 2005, rec.Year)
	assert.Equal(t, "wildfire", rec.DisturbanceType)
	require.NotNil(t, rec.TypeCode)
	assert.Equal(t, 1, *rec.TypeCode)
	assert.Equal(t, 7, rec.Transition)
	assert.Len(t, rec.Conditions, 1)
	assert.Equal(t, map[string]any{"source": "fire_layer_v2"}, rec.Metadata)
}

func TestParseEventRecord_Defaults(t *testing.T) {
	recs, err := recordsFromValue("l", map[string]any{"year": 2005, "disturbance_type": "wildfire"})
	require.NoError(t, err)
	rec, err := ParseEventRecord(recs[0])
	require.NoError(t, err)
	assert.Equal(t, ir.NoTransition, rec.Transition)
	assert.Nil(t, rec.TypeCode)
	assert.Nil(t, rec.Metadata)
}

func TestParseEventRecord_BadConditionIsConfigError(t *testing.T) {
	recs, err := recordsFromValue("l", map[string]any{
		"year":             2005,
		"disturbance_type": "wildfire",
		"conditions":       []any{map[string]any{"variable": "age", "operator": "<", "target": "old"}},
	})
	require.NoError(t, err)
	_, err = ParseEventRecord(recs[0])
	assert.True(t, engine.IsConfigError(err))
}
