package store

import (
	"database/sql"
	"sort"
	"time"
)

// CalibrationRecord is one player's completed calibration. Records are an
// audit trail; they are never applied back to a running tracker.
type CalibrationRecord struct {
	SessionID    string    `json:"session_id"`
	PlayerID     int       `json:"player_id"`
	Distance     float64   `json:"distance"`
	CalibratedAt time.Time `json:"calibrated_at"`
}

// CalibrationRepository stores calibration results.
type CalibrationRepository struct {
	db *sql.DB
}

// Calibrations returns the calibration repository for this store.
func (s *Store) Calibrations() *CalibrationRepository {
	return &CalibrationRepository{db: s.db}
}

// Record stores one distance per player, in player order, inside a transaction.
func (r *CalibrationRepository) Record(sessionID string, at time.Time, distances map[int]float64) error {
	ids := make([]int, 0, len(distances))
	for id := range distances {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, id := range ids {
		if _, err := tx.Exec(
			`INSERT INTO calibrations (session_id, player_id, distance, calibrated_at)
			 VALUES (?, ?, ?, ?)`,
			sessionID, id, distances[id], at,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// ListBySession returns the calibrations of sessionID, oldest first.
func (r *CalibrationRepository) ListBySession(sessionID string) ([]*CalibrationRecord, error) {
	rows, err := r.db.Query(
		`SELECT session_id, player_id, distance, calibrated_at FROM calibrations
		 WHERE session_id = ? ORDER BY id ASC`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*CalibrationRecord
	for rows.Next() {
		rec := &CalibrationRecord{}
		if err := rows.Scan(&rec.SessionID, &rec.PlayerID, &rec.Distance, &rec.CalibratedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}
