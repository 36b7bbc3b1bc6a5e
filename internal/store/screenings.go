package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lumenclass/selcoach/internal/screening"
)

// ScreeningRecord is one saved screening as listed from the archive.
type ScreeningRecord struct {
	ID          string    `json:"id"`
	Date        time.Time `json:"date"`
	Grade       string    `json:"grade"`
	NumStudents int       `json:"num_students"`
}

// SaveScreening persists a screening snapshot and returns its ID. Ratings
// and interventions are stored losslessly; results are stored for audit but
// recomputed on load.
func (s *Store) SaveScreening(ctx context.Context, snap screening.Snapshot) (string, error) {
	dataJSON, err := json.Marshal(snap.ScreeningData)
	if err != nil {
		return "", fmt.Errorf("marshal screening data: %w", err)
	}
	interJSON, err := json.Marshal(snap.Interventions)
	if err != nil {
		return "", fmt.Errorf("marshal interventions: %w", err)
	}
	var resultsJSON []byte
	if snap.Results != nil {
		resultsJSON, err = json.Marshal(snap.Results)
		if err != nil {
			return "", fmt.Errorf("marshal results: %w", err)
		}
	}

	var id string
	err = s.pool.QueryRow(ctx, `
		INSERT INTO screenings (id, screened_at, grade, num_students, screening_data, results, interventions)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6)
		RETURNING id`,
		snap.Date, snap.Grade, snap.NumStudents, dataJSON, resultsJSON, interJSON,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("save screening: %w", err)
	}
	return id, nil
}

// LoadScreening restores a saved screening snapshot by ID. Results are
// recomputed from the stored ratings rather than trusted from the row.
func (s *Store) LoadScreening(ctx context.Context, id string) (screening.Snapshot, error) {
	var snap screening.Snapshot
	var dataJSON, interJSON []byte
	err := s.pool.QueryRow(ctx, `
		SELECT screened_at, grade, num_students, screening_data, interventions
		FROM screenings
		WHERE id = $1`, id,
	).Scan(&snap.Date, &snap.Grade, &snap.NumStudents, &dataJSON, &interJSON)
	if err != nil {
		return screening.Snapshot{}, fmt.Errorf("load screening %s: %w", id, err)
	}

	if err := json.Unmarshal(dataJSON, &snap.ScreeningData); err != nil {
		return screening.Snapshot{}, fmt.Errorf("unmarshal screening data: %w", err)
	}
	if err := json.Unmarshal(interJSON, &snap.Interventions); err != nil {
		return screening.Snapshot{}, fmt.Errorf("unmarshal interventions: %w", err)
	}

	if results, err := screening.Restore(snap).ComputeResults(); err == nil {
		snap.Results = results
	}
	return snap, nil
}

// ListScreenings returns saved screenings, newest first.
func (s *Store) ListScreenings(ctx context.Context, limit int) ([]ScreeningRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, screened_at, grade, num_students
		FROM screenings
		ORDER BY screened_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list screenings: %w", err)
	}
	defer rows.Close()

	var recs []ScreeningRecord
	for rows.Next() {
		var rec ScreeningRecord
		if err := rows.Scan(&rec.ID, &rec.Date, &rec.Grade, &rec.NumStudents); err != nil {
			return nil, fmt.Errorf("scan screening: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// DeleteScreening removes a saved screening.
func (s *Store) DeleteScreening(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM screenings WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete screening %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete screening %s: not found", id)
	}
	return nil
}
