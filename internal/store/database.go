// Package store opens the authoritative SQL database and migrates it.
package store

import (
	"embed"
	"errors"
	"fmt"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations
var migrationsFS embed.FS

// Open connects to the database and returns an ent SQL driver whose dialect
// the repositories use to build queries. Supported drivers are "sqlite3"
// and "postgres".
func Open(driver, source string) (*entsql.Driver, error) {
	switch driver {
	case dialect.SQLite, dialect.Postgres:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	drv, err := entsql.Open(driver, source)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db := drv.DB()

	if driver == dialect.SQLite {
		// a single connection keeps in-memory databases alive and avoids
		// SQLITE_BUSY under concurrent writers
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)

		for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000", "PRAGMA foreign_keys=ON"} {
			if _, err := db.Exec(pragma); err != nil {
				db.Close()
				return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
			}
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}
	return drv, nil
}

// RunMigrations applies all pending migrations for the driver's dialect.
func RunMigrations(drv *entsql.Driver) error {
	db := drv.DB()

	var (
		dir      string
		dbDriver database.Driver
		err      error
	)
	switch drv.Dialect() {
	case dialect.SQLite:
		dir = "migrations/sqlite"
		dbDriver, err = sqlite3.WithInstance(db, &sqlite3.Config{})
	case dialect.Postgres:
		dir = "migrations/postgres"
		dbDriver, err = postgres.WithInstance(db, &postgres.Config{})
	default:
		return fmt.Errorf("no migrations for dialect %q", drv.Dialect())
	}
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	sourceDriver, err := iofs.New(migrationsFS, dir)
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, drv.Dialect(), dbDriver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}
