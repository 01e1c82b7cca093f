package db

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/hackgods/frontdesk-scheduling/migrations"
)

// Migrate applies every pending embedded migration. A database that is
// already current is not an error.
func Migrate(dsn string) error {
	m, closeFn, err := newMigrator(dsn)
	if err != nil {
		return err
	}
	defer closeFn()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

// Force sets the recorded schema version without running migrations, for
// recovering from a dirty state.
func Force(dsn string, version int) error {
	m, closeFn, err := newMigrator(dsn)
	if err != nil {
		return err
	}
	defer closeFn()

	if err := m.Force(version); err != nil {
		return fmt.Errorf("force version: %w", err)
	}
	return nil
}

func newMigrator(dsn string) (*migrate.Migrate, func(), error) {
	conn, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("ping db: %w", err)
	}

	dbDriver, err := postgres.WithInstance(conn, &postgres.Config{})
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("db driver: %w", err)
	}

	srcDriver, err := iofs.New(migrations.FS, ".")
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("source driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", srcDriver, "postgres", dbDriver)
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("create migrator: %w", err)
	}

	return m, func() { _, _ = m.Close() }, nil
}
