// Package main implements the entry point for the cadence-api server,
// which schedules learning activities, grades attempts, and tracks
// student progression.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
)

func main() {
	migrateOnly := flag.Bool("migrate", false, "apply pending database migrations and exit")
	flag.Parse()

	app, err := newApplication(context.Background())
	if err != nil {
		log.Fatalf("failed to initialize application: %v", err)
	}

	if err := runMigrations(app.db, app.logger); err != nil {
		app.logger.Error("database migration failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if *migrateOnly {
		app.logger.Info("migrations applied, exiting")
		app.cleanup()
		return
	}

	app.reconciler.Start()

	if err := app.startHTTPServer(context.Background()); err != nil {
		app.logger.Error("server exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
