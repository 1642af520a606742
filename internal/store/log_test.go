package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisturbanceLog_OrderAndIsolation(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	recs := []DisturbanceRecord{
		{RunID: "run-a", Seq: 2, Unit: "stand", SpatialUnit: 17, Phase: PhaseSimulation, Year: 2001,
			Disturbance: "clearcut", TypeCode: 2, Transition: -1},
		{RunID: "run-a", Seq: 1, Unit: "stand", SpatialUnit: 17, Phase: PhaseSpinup, Year: 1999,
			Disturbance: "wildfire", TypeCode: 1, Transition: -1, SpecialSurface: true},
		{RunID: "run-b", Seq: 1, Unit: "other", SpatialUnit: 3, Phase: PhaseSpinup, Year: 1999,
			Disturbance: "wildfire", TypeCode: 1, Transition: 4},
	}
	for _, r := range recs {
		require.NoError(t, s.WriteDisturbance(ctx, r))
	}

	got, err := s.ReadDisturbances(ctx, "run-a")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, recs[1], got[0], "ordered by seq")
	assert.Equal(t, recs[0], got[1])

	other, err := s.ReadDisturbances(ctx, "run-b")
	require.NoError(t, err)
	require.Len(t, other, 1)
	assert.Equal(t, 4, other[0].Transition)
}

func TestDisturbanceLog_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	rec := DisturbanceRecord{RunID: "run", Seq: 1, Unit: "u", Phase: PhaseSpinup, Disturbance: "fire"}

	require.NoError(t, s.WriteDisturbance(ctx, rec))
	rec.Disturbance = "changed"
	require.NoError(t, s.WriteDisturbance(ctx, rec))

	got, err := s.ReadDisturbances(ctx, "run")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "fire", got[0].Disturbance)
}

func TestDisturbanceLog_EmptyRun(t *testing.T) {
	s := createTestStore(t)

	got, err := s.ReadDisturbances(context.Background(), "missing")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestListRuns(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for _, r := range []DisturbanceRecord{
		{RunID: "first", Seq: 1, Unit: "stand", Phase: PhaseSpinup, Disturbance: "wildfire"},
		{RunID: "second", Seq: 1, Unit: "neighbour", Phase: PhaseSpinup, Disturbance: "wildfire"},
		{RunID: "first", Seq: 2, Unit: "stand", Phase: PhaseSimulation, Disturbance: "clearcut"},
	} {
		require.NoError(t, s.WriteDisturbance(ctx, r))
	}

	runs, err := s.ListRuns(ctx)
	require.NoError(t, err)
	assert.Equal(t, []RunSummary{
		{RunID: "first", Unit: "stand", Events: 2},
		{RunID: "second", Unit: "neighbour", Events: 1},
	}, runs)
}
