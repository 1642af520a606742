package harness

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/carbonspin/internal/runner"
	"github.com/roach88/carbonspin/internal/spinup"
)

// TraceSnapshot captures a scenario run for golden comparison.
type TraceSnapshot struct {
	ScenarioName string         `json:"scenario_name"`
	Trace        []TraceEvent   `json:"trace"`
	Units        []UnitSnapshot `json:"units"`
}

// UnitSnapshot is the per-unit part of a TraceSnapshot.
type UnitSnapshot struct {
	Unit   string             `json:"unit"`
	RunID  string             `json:"run_id"`
	Spinup spinup.Result      `json:"spinup"`
	Pools  []runner.PoolValue `json:"pools"`
}

// Snapshot builds the golden snapshot of a result.
func Snapshot(name string, result *Result) TraceSnapshot {
	snap := TraceSnapshot{ScenarioName: name, Trace: result.Trace}
	for _, u := range result.Units {
		snap.Units = append(snap.Units, UnitSnapshot{
			Unit:   u.Unit,
			RunID:  u.RunID,
			Spinup: u.Spinup,
			Pools:  u.Pools,
		})
	}
	return snap
}

// MarshalSnapshot renders a snapshot as indented JSON with a trailing
// newline.
func MarshalSnapshot(snap TraceSnapshot) ([]byte, error) {
	out, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(out, '\n'), nil
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns the result so callers can also check assertions.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against its golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := MarshalSnapshot(Snapshot(scenarioName, result))
	if err != nil {
		return err
	}
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
