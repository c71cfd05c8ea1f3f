package main

import (
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/pressly/goose/v3"

	"github.com/cadence-learn/cadence-api/migrations"
)

// gooseLogger adapts slog to goose's logger interface.
type gooseLogger struct {
	logger *slog.Logger
}

func (l *gooseLogger) Fatalf(format string, v ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, v...))
}

func (l *gooseLogger) Printf(format string, v ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, v...))
}

// runMigrations applies any pending embedded migrations. Migrations are
// versioned and idempotent, so running at every boot is safe.
func runMigrations(db *sql.DB, logger *slog.Logger) error {
	goose.SetBaseFS(migrations.FS)
	goose.SetLogger(&gooseLogger{logger: logger.With(slog.String("component", "migrations"))})

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}

	if err := goose.Up(db, "."); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	logger.Info("database migrations up to date")
	return nil
}
