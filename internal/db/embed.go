package db

import (
	"embed"
	"io/fs"
)

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// getMigrationsFS returns the migrations filesystem rooted at the
// migration files themselves.
func getMigrationsFS() (fs.FS, error) {
	return fs.Sub(embeddedMigrations, "migrations")
}

// MigrationsFS exposes the embedded migrations for callers outside the
// package (main startup applies pending migrations on boot).
func MigrationsFS() (fs.FS, error) {
	return getMigrationsFS()
}
