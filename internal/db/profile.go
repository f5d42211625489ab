package db

import (
	"database/sql"
	"fmt"
	"time"
)

// ProfileRecord is a stored avatar capability profile. The humanoid and
// expressions columns hold the raw capability JSON so a profile can be
// reconstructed exactly as uploaded.
type ProfileRecord struct {
	Name            string    `json:"name"`
	HumanoidJSON    string    `json:"humanoid_json"`
	ExpressionsJSON string    `json:"expressions_json"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// SaveProfile inserts or replaces a capability profile by name.
func (db *DB) SaveProfile(rec *ProfileRecord) error {
	query := `
		INSERT INTO profiles (name, humanoid_json, expressions_json)
		VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			humanoid_json = excluded.humanoid_json,
			expressions_json = excluded.expressions_json,
			updated_at = CURRENT_TIMESTAMP
	`
	_, err := db.DB.Exec(query, rec.Name, rec.HumanoidJSON, rec.ExpressionsJSON)
	if err != nil {
		return fmt.Errorf("failed to save profile %s: %w", rec.Name, err)
	}
	return nil
}

// GetProfile returns the stored profile with the given name, or nil if
// none exists.
func (db *DB) GetProfile(name string) (*ProfileRecord, error) {
	var rec ProfileRecord
	err := db.DB.QueryRow(`
		SELECT name, humanoid_json, expressions_json, created_at, updated_at
		FROM profiles WHERE name = ?
	`, name).Scan(&rec.Name, &rec.HumanoidJSON, &rec.ExpressionsJSON, &rec.CreatedAt, &rec.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile %s: %w", name, err)
	}
	return &rec, nil
}

// ListProfiles returns the names of all stored profiles.
func (db *DB) ListProfiles() ([]string, error) {
	rows, err := db.DB.Query("SELECT name FROM profiles ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// DeleteProfile removes the stored profile with the given name.
func (db *DB) DeleteProfile(name string) error {
	result, err := db.DB.Exec("DELETE FROM profiles WHERE name = ?", name)
	if err != nil {
		return fmt.Errorf("failed to delete profile %s: %w", name, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("profile %s not found", name)
	}
	return nil
}
