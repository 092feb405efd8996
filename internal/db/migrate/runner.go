// Package migrate manages the client_storage table that backs STORAGE_DRIVER=postgres.
// The schema ships embedded in internal/db and is applied with golang-migrate.
package migrate

import (
	"errors"
	"fmt"

	"event-analytics/client/internal/db"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// Directions accepted by Run.
const (
	Up   = "up"
	Down = "down"
)

// ErrNoChange is golang-migrate's "already at target version". Run absorbs it; it is exported
// for callers driving migrate directly.
var ErrNoChange = migrate.ErrNoChange

// Run moves the client_storage schema at dsn Up (create the key-value table) or Down (drop it,
// discarding persisted identity ids and tokens). Being already at the target version is not an
// error.
func Run(dsn string, direction string) error {
	if dsn == "" {
		return errors.New("client_storage migrate: DATABASE_URL is empty")
	}
	if direction != Up && direction != Down {
		return fmt.Errorf("client_storage migrate: direction must be %q or %q, got %q", Up, Down, direction)
	}

	source, err := iofs.New(db.MigrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("client_storage migrate: load embedded schema: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", source, dsn)
	if err != nil {
		return fmt.Errorf("client_storage migrate: connect: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	if direction == Up {
		err = m.Up()
	} else {
		err = m.Down()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("client_storage migrate %s: %w", direction, err)
	}
	return nil
}
