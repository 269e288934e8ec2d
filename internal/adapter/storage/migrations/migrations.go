// Package migrations embeds the trend table migrations for every store driver.
package migrations

import (
	"database/sql"
	"embed"
	"fmt"
	"strings"
	"sync"

	"github.com/pressly/goose/v3"

	"trendcraft/internal/logging"
)

// FS contains the embedded SQL migration files, one directory per dialect.
//
//go:embed postgres/*.sql sqlite/*.sql
var FS embed.FS

// Dialect selects the migration directory and goose dialect
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

func (d Dialect) goose() (string, error) {
	switch d {
	case Postgres:
		return "postgres", nil
	case SQLite:
		return "sqlite3", nil
	}
	return "", fmt.Errorf("unsupported migration dialect %q", d)
}

// goose keeps its configuration in package globals
var mu sync.Mutex

func setup(dialect Dialect, logger logging.Logger) error {
	name, err := dialect.goose()
	if err != nil {
		return err
	}
	goose.SetBaseFS(FS)
	if logger != nil {
		goose.SetLogger(gooseLogger{logger: logger})
	} else {
		goose.SetLogger(goose.NopLogger())
	}
	if err := goose.SetDialect(name); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}
	return nil
}

// Up applies all pending migrations
func Up(db *sql.DB, dialect Dialect, logger logging.Logger) error {
	mu.Lock()
	defer mu.Unlock()
	if err := setup(dialect, logger); err != nil {
		return err
	}
	if err := goose.Up(db, string(dialect)); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// Down rolls back the latest migration
func Down(db *sql.DB, dialect Dialect, logger logging.Logger) error {
	mu.Lock()
	defer mu.Unlock()
	if err := setup(dialect, logger); err != nil {
		return err
	}
	if err := goose.Down(db, string(dialect)); err != nil {
		return fmt.Errorf("roll back migration: %w", err)
	}
	return nil
}

// Status logs the applied state of every migration
func Status(db *sql.DB, dialect Dialect, logger logging.Logger) error {
	mu.Lock()
	defer mu.Unlock()
	if err := setup(dialect, logger); err != nil {
		return err
	}
	if err := goose.Status(db, string(dialect)); err != nil {
		return fmt.Errorf("migration status: %w", err)
	}
	return nil
}

// Version returns the current schema version
func Version(db *sql.DB, dialect Dialect) (int64, error) {
	mu.Lock()
	defer mu.Unlock()
	if err := setup(dialect, nil); err != nil {
		return 0, err
	}
	return goose.GetDBVersion(db)
}

type gooseLogger struct {
	logger logging.Logger
}

func (l gooseLogger) Printf(format string, v ...interface{}) {
	l.logger.Info(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l gooseLogger) Fatalf(format string, v ...interface{}) {
	l.logger.Error(strings.TrimSpace(fmt.Sprintf(format, v...)))
}
