package process

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/carbonspin/internal/engine"
	"github.com/roach88/carbonspin/internal/landunit"
	"github.com/roach88/carbonspin/internal/testutil"
)

func newModule(t *testing.T, vars map[string]any) (*Module, *landunit.Data, *engine.Dispatcher) {
	t.Helper()
	data := testutil.NewData(t, []testutil.Pool{
		{Name: "Atmosphere"},
		{Name: "Merch"},
		{Name: "Moss"},
		{Name: "SlowSoil"},
	}, vars)
	m, err := New(Config{
		Source:               "Atmosphere",
		Increments:           []Increment{{Pool: "Merch", Amount: 2}},
		SecondaryIncrements:  []Increment{{Pool: "Moss", Amount: 1}},
		Decay:                []Decay{{Pool: "Merch", Dest: "SlowSoil", Rate: 0.5}},
		RampScale:            0.5,
		SecondaryAgeVariable: "moss_age",
	}, data, nil)
	require.NoError(t, err)
	disp := engine.NewDispatcher()
	m.Register(disp)
	return m, data, disp
}

func step(t *testing.T, disp *engine.Dispatcher) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, disp.Publish(ctx, engine.TimingStep, nil))
	require.NoError(t, disp.Publish(ctx, engine.TimingEndStep, nil))
}

func TestModule_GrowthAndDecay(t *testing.T) {
	_, data, disp := newModule(t, map[string]any{"age": 0})

	step(t, disp)

	assert.InDelta(t, 1.0, testutil.PoolValue(t, data, "Merch"), 1e-12)
	assert.InDelta(t, 1.0, testutil.PoolValue(t, data, "SlowSoil"), 1e-12)
	assert.InDelta(t, -2.0, testutil.PoolValue(t, data, "Atmosphere"), 1e-12)
	assert.Equal(t, 0.0, testutil.PoolValue(t, data, "Moss"), "secondary layer off")
	assert.Equal(t, 1, testutil.IntVar(t, data, "age"))
}

func TestModule_Flags(t *testing.T) {
	tests := []struct {
		name      string
		vars      map[string]any
		wantMerch float64
		wantMoss  float64
		wantAge   int
	}{
		{"delay suppresses all growth", map[string]any{VarRunDelay: true, "run_moss": true}, 0, 0, 0},
		{"secondary only", map[string]any{VarSecondaryOnly: true, "run_moss": true}, 0, 1, 0},
		{"ramp scales increments", map[string]any{VarRamp: true, "run_moss": true}, 1, 0.5, 1},
		{"string flags", map[string]any{VarRunDelay: "false", "run_moss": "true"}, 2, 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.vars["age"] = 0
			_, data, disp := newModule(t, tt.vars)

			require.NoError(t, disp.Publish(context.Background(), engine.TimingStep, nil))

			assert.InDelta(t, tt.wantMerch, testutil.PoolValue(t, data, "Merch"), 1e-12)
			assert.InDelta(t, tt.wantMoss, testutil.PoolValue(t, data, "Moss"), 1e-12)
			assert.Equal(t, tt.wantAge, testutil.IntVar(t, data, "age"))
		})
	}
}

func TestModule_SecondaryAge(t *testing.T) {
	_, data, disp := newModule(t, map[string]any{"run_moss": true, "moss_age": 4})

	require.NoError(t, disp.Publish(context.Background(), engine.TimingStep, nil))

	assert.Equal(t, 5, testutil.IntVar(t, data, "moss_age"))
	assert.Equal(t, 1, testutil.IntVar(t, data, "age"), "missing age starts at zero")
}

func TestNew_UnknownPool(t *testing.T) {
	data := testutil.NewData(t, []testutil.Pool{{Name: "Atmosphere"}}, nil)

	_, err := New(Config{Source: "Atmosphere", Increments: []Increment{{Pool: "Nope", Amount: 1}}}, data, nil)
	require.Error(t, err)
	assert.True(t, engine.IsConfigError(err))

	_, err = New(Config{Decay: []Decay{{Pool: "Atmosphere", Dest: "Atmosphere", Rate: 2}}}, data, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decay rate")
}
