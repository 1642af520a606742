package store

import (
	"context"
	"fmt"
)

// Phase labels for logged disturbances.
const (
	PhaseSpinup     = "spinup"
	PhaseSimulation = "simulation"
)

// DisturbanceRecord is one fired disturbance.
type DisturbanceRecord struct {
	RunID          string
	Seq            int64
	Unit           string
	SpatialUnit    int
	Phase          string
	Year           int
	Disturbance    string
	TypeCode       int
	Transition     int
	SpecialSurface bool
}

// WriteDisturbance appends a record to the disturbance log.
// Uses ON CONFLICT DO NOTHING for idempotency - rewriting the same
// (run_id, seq) is silently ignored.
func (s *Store) WriteDisturbance(ctx context.Context, rec DisturbanceRecord) error {
	special := 0
	if rec.SpecialSurface {
		special = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO disturbance_log
		(run_id, seq, unit, spatial_unit, phase, year, disturbance, type_code, transition, special_surface)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		rec.RunID,
		rec.Seq,
		rec.Unit,
		rec.SpatialUnit,
		rec.Phase,
		rec.Year,
		rec.Disturbance,
		rec.TypeCode,
		rec.Transition,
		special,
	)
	if err != nil {
		return fmt.Errorf("write disturbance: %w", err)
	}
	return nil
}

// ReadDisturbances returns a run's log in firing order.
func (s *Store) ReadDisturbances(ctx context.Context, runID string) ([]DisturbanceRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, seq, unit, spatial_unit, phase, year, disturbance, type_code, transition, special_surface
		FROM disturbance_log
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("read disturbances: %w", err)
	}
	defer rows.Close()

	var out []DisturbanceRecord
	for rows.Next() {
		var (
			rec     DisturbanceRecord
			special int
		)
		if err := rows.Scan(
			&rec.RunID, &rec.Seq, &rec.Unit, &rec.SpatialUnit, &rec.Phase,
			&rec.Year, &rec.Disturbance, &rec.TypeCode, &rec.Transition, &special,
		); err != nil {
			return nil, fmt.Errorf("scan disturbance: %w", err)
		}
		rec.SpecialSurface = special != 0
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read disturbances: %w", err)
	}
	return out, nil
}

// RunSummary counts one run's logged disturbances.
type RunSummary struct {
	RunID  string
	Unit   string
	Events int
}

// ListRuns returns every run in the log, oldest first.
func (s *Store) ListRuns(ctx context.Context) ([]RunSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, MIN(unit), COUNT(*)
		FROM disturbance_log
		GROUP BY run_id
		ORDER BY MIN(rowid) ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(&r.RunID, &r.Unit, &r.Events); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return out, nil
}
