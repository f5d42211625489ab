package db

import (
	"database/sql"
	"fmt"
	"time"
)

// RecordingRecord is one row in the recordings registry. The frames
// themselves live on disk; the registry maps ids to paths and carries
// the sealed header summary.
type RecordingRecord struct {
	ID          string    `json:"id"`
	PipelineID  string    `json:"pipeline_id"`
	Protocol    string    `json:"protocol"`
	Path        string    `json:"path"`
	TotalFrames int       `json:"total_frames"`
	DurationNs  int64     `json:"duration_ns"`
	SealedEarly bool      `json:"sealed_early"`
	CreatedAt   time.Time `json:"created_at"`
}

// CreateRecording registers a new recording.
func (db *DB) CreateRecording(rec *RecordingRecord) error {
	query := `
		INSERT INTO recordings (id, pipeline_id, protocol, path, total_frames, duration_ns, sealed_early)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.DB.Exec(query,
		rec.ID, rec.PipelineID, rec.Protocol, rec.Path,
		rec.TotalFrames, rec.DurationNs, boolToInt(rec.SealedEarly))
	if err != nil {
		return fmt.Errorf("failed to create recording: %w", err)
	}
	return nil
}

// SealRecording updates the registry row with the sealed header summary.
func (db *DB) SealRecording(id string, totalFrames int, durationNs int64, sealedEarly bool) error {
	result, err := db.DB.Exec(`
		UPDATE recordings SET total_frames = ?, duration_ns = ?, sealed_early = ?
		WHERE id = ?
	`, totalFrames, durationNs, boolToInt(sealedEarly), id)
	if err != nil {
		return fmt.Errorf("failed to seal recording %s: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("recording %s not found", id)
	}
	return nil
}

// GetRecording returns the registry row with the given id, or nil if
// none exists.
func (db *DB) GetRecording(id string) (*RecordingRecord, error) {
	rec, err := scanRecording(db.DB.QueryRow(`
		SELECT id, pipeline_id, protocol, path, total_frames, duration_ns, sealed_early, created_at
		FROM recordings WHERE id = ?
	`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get recording %s: %w", id, err)
	}
	return rec, nil
}

// ListRecordings returns all registered recordings, newest first. An
// empty pipelineID returns recordings from every pipeline.
func (db *DB) ListRecordings(pipelineID string) ([]RecordingRecord, error) {
	query := `
		SELECT id, pipeline_id, protocol, path, total_frames, duration_ns, sealed_early, created_at
		FROM recordings
	`
	var args []interface{}
	if pipelineID != "" {
		query += " WHERE pipeline_id = ?"
		args = append(args, pipelineID)
	}
	query += " ORDER BY created_at DESC"

	rows, err := db.DB.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list recordings: %w", err)
	}
	defer rows.Close()

	var records []RecordingRecord
	for rows.Next() {
		rec, err := scanRecording(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan recording: %w", err)
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// DeleteRecording removes the registry row. The frame files on disk are
// left for the caller to remove.
func (db *DB) DeleteRecording(id string) error {
	result, err := db.DB.Exec("DELETE FROM recordings WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete recording %s: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("recording %s not found", id)
	}
	return nil
}

func scanRecording(row rowScanner) (*RecordingRecord, error) {
	var rec RecordingRecord
	var sealedEarly int
	err := row.Scan(
		&rec.ID,
		&rec.PipelineID,
		&rec.Protocol,
		&rec.Path,
		&rec.TotalFrames,
		&rec.DurationNs,
		&sealedEarly,
		&rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.SealedEarly = sealedEarly != 0
	return &rec, nil
}
