package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/skystash/skystash/internal/activity"
	"github.com/skystash/skystash/internal/api"
	"github.com/skystash/skystash/internal/blob"
	"github.com/skystash/skystash/internal/config"
	"github.com/skystash/skystash/internal/httpserver"
	"github.com/skystash/skystash/internal/lifecycle"
	"github.com/skystash/skystash/internal/logger"
	"github.com/skystash/skystash/internal/pg"
	"github.com/skystash/skystash/internal/query"
	"github.com/skystash/skystash/internal/quota"
	"github.com/skystash/skystash/internal/storage"
	"github.com/skystash/skystash/internal/upload"
)

func main() {
	if err := run(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := logger.New(cfg.Log, cfg.ServiceName, cfg.Environment)
	slog.SetDefault(log)

	pool, err := pg.Connect(ctx, cfg.PG)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()

	if err := pg.Migrate(ctx, pool, cfg.PG, log); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	store := storage.NewPostgres(pool)

	gateway, err := blob.New(ctx, cfg.Blob)
	if err != nil {
		return fmt.Errorf("blob gateway: %w", err)
	}

	ledger := quota.NewLedger(store, cfg.Quota)

	recorder, closeRecorder := activity.NewRecorder(store, log, activity.Options{})
	defer func() {
		if err := closeRecorder(context.Background()); err != nil {
			log.Error("failed to drain activity recorder", "error", err)
		}
	}()

	uploads := upload.NewCoordinator(store, gateway, ledger, recorder, cfg.Upload, log)
	files := lifecycle.NewService(store, gateway, recorder, cfg.Lifecycle, log)
	queries := query.NewService(store)

	srv := api.NewServer(uploads, files, queries, ledger, pg.Healthcheck(pool), cfg.API, log)

	return httpserver.New(cfg.HTTP, log).Run(ctx, srv.Handler())
}
