package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aeginies/backend/config"
	"github.com/aeginies/backend/internal/app"
	httpDelivery "github.com/aeginies/backend/internal/delivery/http"
	"github.com/aeginies/backend/internal/logger"
	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zl, err := logger.New(cfg.Server.Environment, cfg.Log.Level)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zl.Sync()

	if err := run(cfg, zl); err != nil {
		zl.Error("server stopped", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, zl *zap.Logger) error {
	zl.Info("starting INIES catalogue backend",
		zap.String("environment", cfg.Server.Environment),
		zap.String("port", cfg.Server.Port),
		zap.String("cache", cfg.Cache.Type),
		zap.String("catalogue", cfg.Catalogue.Path),
		zap.Int("workers", cfg.Sync.Workers))

	if len(cfg.Auth.Users) == 0 {
		zl.Warn("no users configured, API is open")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	services, err := app.New(ctx, cfg, zl)
	defer func() {
		if cerr := services.Close(); cerr != nil {
			zl.Warn("releasing resources", zap.Error(cerr))
		}
	}()
	if err != nil {
		return err
	}

	handler := httpDelivery.NewHandler(services.Catalogue, services.Solutions, services.Spreadsheet, zl)
	router := httpDelivery.SetupRouter(cfg, handler, zl)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		zl.Info("server listening", zap.String("addr", srv.Addr))
		serverErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		zl.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-serverErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
