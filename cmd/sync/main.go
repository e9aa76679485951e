// Command sync runs one incremental catalogue sync and exits. It is meant for
// cron jobs; the server exposes the same operation over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aeginies/backend/config"
	"github.com/aeginies/backend/internal/app"
	"github.com/aeginies/backend/internal/domain"
	"github.com/aeginies/backend/internal/logger"
	"go.uber.org/zap"
)

func main() {
	mirrorAll := flag.Bool("mirror-all", false, "publish every stored record to the postgres mirror after the sync")
	skipSync := flag.Bool("skip-sync", false, "do not contact INIES; useful with -mirror-all")
	timeout := flag.Duration("timeout", 0, "abort the run after this long (0 means no limit)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zl, err := logger.New(cfg.Server.Environment, cfg.Log.Level)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zl.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if *timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *timeout)
		defer cancel()
	}

	if err := run(ctx, cfg, zl, !*skipSync, *mirrorAll); err != nil {
		zl.Error("sync failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, zl *zap.Logger, doSync, mirrorAll bool) error {
	services, err := app.New(ctx, cfg, zl)
	defer func() {
		if cerr := services.Close(); cerr != nil {
			zl.Warn("releasing resources", zap.Error(cerr))
		}
	}()
	if err != nil {
		return err
	}

	if doSync {
		start := time.Now()
		report, err := services.Catalogue.Sync(ctx)
		if err != nil {
			if errors.Is(err, domain.ErrNoRemoteData) {
				zl.Warn("INIES returned no identifiers, catalogue left untouched")
			}
			return err
		}
		zl.Info("sync finished",
			zap.String("run_id", report.RunID),
			zap.Int("discovered", report.Discovered),
			zap.Int("stored", report.Stored),
			zap.Int("added", report.Added),
			zap.Int("failures", report.ExtractionFailures),
			zap.Strings("failed_ids", report.FailedIDs),
			zap.Int("cache_hits", report.CacheHits),
			zap.Int("mirrored", report.Mirrored),
			zap.Duration("duration", time.Since(start)))
	}

	if mirrorAll {
		if cfg.Postgres.DSN == "" {
			return errors.New("-mirror-all needs postgres.dsn (INIES_POSTGRES_DSN)")
		}
		n, err := services.Catalogue.PublishAll(ctx)
		if err != nil {
			return err
		}
		zl.Info("mirror backfilled", zap.Int("inserted", n), zap.Int("stored", services.Catalogue.Len()))
	}
	return nil
}
