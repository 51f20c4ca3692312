package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/ayusman/handbox/internal/skeleton"
)

// FrameRecord is one stored input frame.
type FrameRecord struct {
	SessionID string
	Sequence  int64
	Timestamp time.Time
	// Tracked is the number of tracked skeletons in the frame.
	Tracked int
	// Data is the frame in its wire encoding.
	Data []byte
}

// Frame decodes the stored data.
func (f *FrameRecord) Frame() (skeleton.Frame, error) {
	frame, err := skeleton.DecodeFrame(f.Data)
	if err != nil {
		return skeleton.Frame{}, fmt.Errorf("session %s frame %d: %w", f.SessionID, f.Sequence, err)
	}
	if frame.Timestamp.IsZero() {
		frame.Timestamp = f.Timestamp
	}
	return frame, nil
}

// FrameRepository stores the raw input frames of a session.
type FrameRepository struct {
	db *sql.DB
}

// Frames returns the frame repository for this store.
func (s *Store) Frames() *FrameRepository {
	return &FrameRepository{db: s.db}
}

// Append stores frame as the given sequence number of sessionID.
func (r *FrameRepository) Append(sessionID string, sequence int64, frame skeleton.Frame) error {
	data, err := skeleton.EncodeFrame(frame)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(
		`INSERT INTO frames (session_id, sequence, timestamp_ms, tracked, data)
		 VALUES (?, ?, ?, ?, ?)`,
		sessionID, sequence, frame.Timestamp.UnixMilli(), len(frame.Tracked()), string(data),
	)
	return err
}

// Range returns up to limit frames of sessionID with a sequence greater than
// after, in sequence order.
func (r *FrameRepository) Range(sessionID string, after int64, limit int) ([]*FrameRecord, error) {
	rows, err := r.db.Query(
		`SELECT sequence, timestamp_ms, tracked, data FROM frames
		 WHERE session_id = ? AND sequence > ?
		 ORDER BY sequence ASC LIMIT ?`,
		sessionID, after, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*FrameRecord
	for rows.Next() {
		rec := &FrameRecord{SessionID: sessionID}
		var ms int64
		var data string
		if err := rows.Scan(&rec.Sequence, &ms, &rec.Tracked, &data); err != nil {
			return nil, err
		}
		rec.Timestamp = time.UnixMilli(ms)
		rec.Data = []byte(data)
		records = append(records, rec)
	}

	return records, rows.Err()
}

// Count returns the number of frames stored for sessionID.
func (r *FrameRepository) Count(sessionID string) (int, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM frames WHERE session_id = ?`, sessionID).Scan(&n)
	return n, err
}
