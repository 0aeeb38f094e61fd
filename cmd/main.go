package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"feedhive/internal/config"
	"feedhive/internal/database"
	"feedhive/internal/feed"
	"feedhive/internal/scheduler"
	"feedhive/internal/syncer"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	start := time.Now()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := config.LoadConfig()

	db, err := database.New(ctx, cfg.DBPath, log)
	if err != nil {
		log.ErrorContext(ctx, "Failed to initialize db",
			"error", err,
			"dbPath", cfg.DBPath)

		return
	}
	defer func() {
		if err = db.Close(); err != nil {
			log.ErrorContext(ctx, "Failed to close db",
				"error", err,
				"dbPath", cfg.DBPath)
		}
	}()
	log.InfoContext(ctx, "DB is initialized",
		"dbPath", cfg.DBPath)

	fetcher := feed.NewFetcher(cfg.FetchTimeout, log)
	engine := syncer.New(db, fetcher, cfg.SyncConcurrency, log)

	sched := scheduler.New(
		ctx, db, engine,
		cfg.AccountID, cfg.SyncCronSpec, cfg.KeepReadDays,
		log)

	if err = sched.Start(); err != nil {
		log.ErrorContext(ctx, "Failed to start scheduler",
			"error", err,
			"spec", cfg.SyncCronSpec,
			"timezone", scheduler.Timezone)

		return
	}
	defer sched.Stop()
	log.InfoContext(ctx, "Scheduler is started",
		"spec", cfg.SyncCronSpec,
		"timezone", scheduler.Timezone)

	go func() {
		if syncErr := engine.SyncAll(ctx, cfg.AccountID); syncErr != nil {
			log.WarnContext(ctx, "Startup sync finished with failures",
				"error", syncErr,
				"accountID", cfg.AccountID)
		}
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	sig := <-c
	log.InfoContext(ctx, "Shutdown signal is received",
		"signal", sig.String())
	cancel()

	log.InfoContext(ctx, "Exiting...",
		"signal", sig.String(),
		"uptimeSeconds", time.Since(start).Seconds())
}
