package db

import (
	"database/sql"
	"fmt"
	"time"
)

// PipelineConfig is a stored pipeline configuration. The config is the
// durable half of a pipeline; runtime state (streaming, recording) lives
// in the pipeline manager and is never persisted.
type PipelineConfig struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Protocol    string    `json:"protocol"`
	Host        string    `json:"host"`
	Port        int       `json:"port"`
	PathPrefix  string    `json:"path_prefix"`
	SendRateHz  float64   `json:"send_rate_hz"`
	ProfileName string    `json:"profile_name"`
	UsePose     bool      `json:"use_pose"`
	UseFace     bool      `json:"use_face"`
	UseHands    bool      `json:"use_hands"`
	UseShrug    bool      `json:"use_shrug"`
	UseGaze     bool      `json:"use_gaze"`
	UseExtFace  bool      `json:"use_ext_face"`
	Alpha       float64   `json:"alpha"`
	Scale       float64   `json:"scale"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// CreatePipelineConfig inserts a new pipeline configuration.
func (db *DB) CreatePipelineConfig(cfg *PipelineConfig) error {
	query := `
		INSERT INTO pipelines (
			id, name, protocol, host, port, path_prefix, send_rate_hz,
			profile_name, use_pose, use_face, use_hands, use_shrug,
			use_gaze, use_ext_face, alpha, scale
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.DB.Exec(
		query,
		cfg.ID,
		cfg.Name,
		cfg.Protocol,
		cfg.Host,
		cfg.Port,
		cfg.PathPrefix,
		cfg.SendRateHz,
		cfg.ProfileName,
		boolToInt(cfg.UsePose),
		boolToInt(cfg.UseFace),
		boolToInt(cfg.UseHands),
		boolToInt(cfg.UseShrug),
		boolToInt(cfg.UseGaze),
		boolToInt(cfg.UseExtFace),
		cfg.Alpha,
		cfg.Scale,
	)
	if err != nil {
		return fmt.Errorf("failed to create pipeline config: %w", err)
	}
	return nil
}

// GetPipelineConfig returns the pipeline configuration with the given id,
// or nil if none exists.
func (db *DB) GetPipelineConfig(id string) (*PipelineConfig, error) {
	query := `
		SELECT id, name, protocol, host, port, path_prefix, send_rate_hz,
			profile_name, use_pose, use_face, use_hands, use_shrug,
			use_gaze, use_ext_face, alpha, scale, created_at, updated_at
		FROM pipelines WHERE id = ?
	`
	cfg, err := scanPipelineConfig(db.DB.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pipeline config: %w", err)
	}
	return cfg, nil
}

// ListPipelineConfigs returns all stored pipeline configurations ordered
// by creation time.
func (db *DB) ListPipelineConfigs() ([]PipelineConfig, error) {
	query := `
		SELECT id, name, protocol, host, port, path_prefix, send_rate_hz,
			profile_name, use_pose, use_face, use_hands, use_shrug,
			use_gaze, use_ext_face, alpha, scale, created_at, updated_at
		FROM pipelines ORDER BY created_at
	`
	rows, err := db.DB.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list pipeline configs: %w", err)
	}
	defer rows.Close()

	var configs []PipelineConfig
	for rows.Next() {
		cfg, err := scanPipelineConfig(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pipeline config: %w", err)
		}
		configs = append(configs, *cfg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return configs, nil
}

// UpdatePipelineConfig updates an existing pipeline configuration.
func (db *DB) UpdatePipelineConfig(cfg *PipelineConfig) error {
	query := `
		UPDATE pipelines SET
			name = ?, protocol = ?, host = ?, port = ?, path_prefix = ?,
			send_rate_hz = ?, profile_name = ?, use_pose = ?, use_face = ?,
			use_hands = ?, use_shrug = ?, use_gaze = ?, use_ext_face = ?,
			alpha = ?, scale = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`
	result, err := db.DB.Exec(
		query,
		cfg.Name,
		cfg.Protocol,
		cfg.Host,
		cfg.Port,
		cfg.PathPrefix,
		cfg.SendRateHz,
		cfg.ProfileName,
		boolToInt(cfg.UsePose),
		boolToInt(cfg.UseFace),
		boolToInt(cfg.UseHands),
		boolToInt(cfg.UseShrug),
		boolToInt(cfg.UseGaze),
		boolToInt(cfg.UseExtFace),
		cfg.Alpha,
		cfg.Scale,
		cfg.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update pipeline config: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("pipeline config %s not found", cfg.ID)
	}
	return nil
}

// DeletePipelineConfig removes the pipeline configuration with the given id.
func (db *DB) DeletePipelineConfig(id string) error {
	result, err := db.DB.Exec("DELETE FROM pipelines WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete pipeline config: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("pipeline config %s not found", id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPipelineConfig(row rowScanner) (*PipelineConfig, error) {
	var cfg PipelineConfig
	var usePose, useFace, useHands, useShrug, useGaze, useExtFace int
	err := row.Scan(
		&cfg.ID,
		&cfg.Name,
		&cfg.Protocol,
		&cfg.Host,
		&cfg.Port,
		&cfg.PathPrefix,
		&cfg.SendRateHz,
		&cfg.ProfileName,
		&usePose,
		&useFace,
		&useHands,
		&useShrug,
		&useGaze,
		&useExtFace,
		&cfg.Alpha,
		&cfg.Scale,
		&cfg.CreatedAt,
		&cfg.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	cfg.UsePose = usePose != 0
	cfg.UseFace = useFace != 0
	cfg.UseHands = useHands != 0
	cfg.UseShrug = useShrug != 0
	cfg.UseGaze = useGaze != 0
	cfg.UseExtFace = useExtFace != 0
	return &cfg, nil
}
