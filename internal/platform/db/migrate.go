package db

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

const (
	MigrateUp      = "up"
	MigrateDown    = "down"
	MigrateForce   = "force"
	MigrateVersion = "version"
)

type MigrationStatus struct {
	Version uint
	Dirty   bool
	Changed bool
}

// RunMigrations applies the SQL files under path to the database at dsn.
// steps limits up/down to that many migrations; for force it is the version.
func RunMigrations(path string, dsn string, action string, steps int) (MigrationStatus, error) {
	if strings.TrimSpace(dsn) == "" {
		return MigrationStatus{}, errors.New("postgres dsn is required")
	}
	absolute, err := filepath.Abs(path)
	if err != nil {
		return MigrationStatus{}, fmt.Errorf("resolve migrations path: %w", err)
	}
	m, err := migrate.New("file://"+filepath.ToSlash(absolute), dsn)
	if err != nil {
		return MigrationStatus{}, fmt.Errorf("open migrations: %w", err)
	}
	defer m.Close()

	switch action {
	case MigrateUp:
		if steps > 0 {
			err = m.Steps(steps)
		} else {
			err = m.Up()
		}
	case MigrateDown:
		if steps > 0 {
			err = m.Steps(-steps)
		} else {
			err = m.Down()
		}
	case MigrateForce:
		err = m.Force(steps)
	case MigrateVersion:
	default:
		return MigrationStatus{}, fmt.Errorf("unknown migration action %q", action)
	}

	status := MigrationStatus{Changed: action != MigrateVersion}
	if errors.Is(err, migrate.ErrNoChange) {
		status.Changed = false
		err = nil
	}
	if err != nil {
		return MigrationStatus{}, fmt.Errorf("migrate %s: %w", action, err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return MigrationStatus{}, fmt.Errorf("read migration version: %w", err)
	}
	status.Version = version
	status.Dirty = dirty
	return status, nil
}
