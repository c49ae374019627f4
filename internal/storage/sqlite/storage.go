// Package sqlite implements the hub: a shared replica that local stores
// push to and pull from during an exchange.
//
// Records are kept with their vector clocks and LWW fields as JSON columns,
// so write timestamps survive at full precision.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // SQLite driver
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// hubPragmas применяются к единственному соединению хаба.
var hubPragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA synchronous = FULL",
	"PRAGMA busy_timeout = 5000",
}

// Storage is the hub record store.
type Storage struct {
	db   *sql.DB
	path string
}

// New opens the hub database at dbPath and applies pending migrations.
// ":memory:" gives a private hub that lives as long as the returned Storage.
func New(ctx context.Context, dbPath string) (*Storage, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open hub %s: %w", dbPath, err)
	}

	// Хаб пишет строго последовательно через одно соединение.
	// In-memory база существует, пока это соединение открыто.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	s := &Storage{db: db, path: dbPath}
	if err := s.init(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Storage) init(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("hub %s unreachable: %w", s.path, err)
	}
	for _, pragma := range hubPragmas {
		if _, err := s.db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}
	if err := s.runMigrations(ctx); err != nil {
		return fmt.Errorf("failed to migrate hub %s: %w", s.path, err)
	}
	return nil
}

// Close closes the hub connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

// runMigrations поднимает схему хаба до последней версии.
func (s *Storage) runMigrations(ctx context.Context) error {
	migrations, err := fs.Sub(embedMigrations, "migrations")
	if err != nil {
		return fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, s.db, migrations)
	if err != nil {
		return fmt.Errorf("failed to create goose provider: %w", err)
	}

	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("goose up failed: %w", err)
	}
	return nil
}

// DB exposes the connection to tests in this package.
func (s *Storage) DB() *sql.DB {
	return s.db
}
