package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedTraceDB runs the basic configuration into a new database.
func seedTraceDB(t *testing.T) string {
	t.Helper()
	db := filepath.Join(t.TempDir(), "trace.db")
	_, err := execute(NewRunCommand(&RootOptions{Format: "json"}), basicConfigDir, "--db", db)
	require.NoError(t, err)
	return db
}

func listRuns(t *testing.T, db string) []TraceRun {
	t.Helper()
	out, err := execute(NewTraceCommand(&RootOptions{Format: "json"}), "--db", db)
	require.NoError(t, err)
	var resp struct {
		Data []TraceRun `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	return resp.Data
}

func TestTraceListsRuns(t *testing.T) {
	runs := listRuns(t, seedTraceDB(t))
	require.Len(t, runs, 2)
	assert.Equal(t, "stand", runs[0].Unit)
	assert.Equal(t, 3, runs[0].Events)
	assert.Equal(t, "neighbour", runs[1].Unit)
	assert.Equal(t, 2, runs[1].Events, "cached spin-up skips the historic fire")
}

func TestTraceRun(t *testing.T) {
	db := seedTraceDB(t)
	runID := listRuns(t, db)[0].RunID

	out, err := execute(NewTraceCommand(&RootOptions{Format: "json"}), "--db", db, "--run", runID)
	require.NoError(t, err)
	var resp struct {
		Data []TraceEntry `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))

	var got []string
	for _, e := range resp.Data {
		got = append(got, e.Phase+" "+e.Disturbance)
	}
	assert.Equal(t, []string{"spinup wildfire", "spinup clearcut", "simulation clearcut"}, got)
	assert.Equal(t, 1, resp.Data[0].SpatialUnit)
	assert.Equal(t, int64(3), resp.Data[2].Seq)
	assert.Equal(t, 2001, resp.Data[2].Year)
}

func TestTraceRunPhaseFilter(t *testing.T) {
	db := seedTraceDB(t)
	runID := listRuns(t, db)[0].RunID

	out, err := execute(NewTraceCommand(&RootOptions{Format: "text"}), "--db", db, "--run", runID, "--phase", "simulation")
	require.NoError(t, err)
	assert.Contains(t, out, "Run "+runID+" (stand)")
	assert.Contains(t, out, "simulation 2001  clearcut (type 2)")
	assert.NotContains(t, out, "wildfire")
}

func TestTraceErrors(t *testing.T) {
	db := seedTraceDB(t)
	tests := []struct {
		name     string
		args     []string
		wantCode int
	}{
		{"missing_db", []string{"--db", filepath.Join(t.TempDir(), "none.db")}, ExitCommandError},
		{"bad_phase", []string{"--db", db, "--phase", "growth"}, ExitCommandError},
		{"unknown_run", []string{"--db", db, "--run", "no-such-run"}, ExitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(NewTraceCommand(&RootOptions{Format: "text"}), tt.args...)
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, GetExitCode(err))
		})
	}
}

func TestTraceRequiresDB(t *testing.T) {
	_, err := execute(NewTraceCommand(&RootOptions{Format: "text"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"db" not set`)
}
