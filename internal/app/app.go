// Package app wires configuration into the services shared by the server and the
// sync command.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/aeginies/backend/config"
	"github.com/aeginies/backend/internal/domain"
	"github.com/aeginies/backend/internal/infrastructure/browser"
	"github.com/aeginies/backend/internal/infrastructure/cache"
	"github.com/aeginies/backend/internal/infrastructure/inies"
	"github.com/aeginies/backend/internal/infrastructure/postgres"
	"github.com/aeginies/backend/internal/infrastructure/solutions"
	"github.com/aeginies/backend/internal/infrastructure/spreadsheet"
	"github.com/aeginies/backend/internal/usecase"
	"go.uber.org/zap"
)

const cachePrefix = "inies:"

// App holds the wired services and the resources they own
type App struct {
	Catalogue   *usecase.CatalogueService
	Solutions   *usecase.SolutionService
	Spreadsheet *spreadsheet.Repository

	closers []func() error
}

// New builds every service from cfg and loads the stored catalogue.
// Call Close when done, also after an error.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{}

	productCache, err := a.newCache(ctx, cfg, logger)
	if err != nil {
		return a, err
	}

	client := inies.NewClient(inies.ClientConfig{
		BaseURL:           cfg.INIES.BaseURL,
		SearchPath:        cfg.INIES.SearchPath,
		UserAgent:         cfg.INIES.UserAgent,
		Timeout:           cfg.INIES.Timeout,
		RequestsPerSecond: cfg.RateLimit.Discovery,
	}, logger)

	opener := browser.NewOpener(browser.Config{
		Headless: cfg.Browser.Headless,
		ExecPath: cfg.Browser.ExecPath,
	}, logger)
	a.closers = append(a.closers, opener.Close)

	syncer := usecase.NewSyncService(client, opener, productCache, usecase.SyncConfig{
		Workers:              cfg.Sync.Workers,
		ExtractionsPerMinute: cfg.RateLimit.Extraction,
		CacheTTL:             cfg.Cache.TTL,
		Extractor: usecase.ExtractorConfig{
			URLTemplate:   cfg.INIES.ProductURLTemplate,
			ReadyTimeout:  cfg.Browser.ReadyTimeout,
			SettleDelay:   cfg.Browser.SettleDelay,
			TabDelay:      cfg.Browser.TabDelay,
			OptionalDelay: cfg.Browser.OptionalDelay,
		},
	}, logger)

	a.Spreadsheet = spreadsheet.NewRepository(spreadsheet.Config{
		Path:       cfg.Catalogue.Path,
		OutputPath: cfg.Catalogue.OutputPath,
		Sheet:      cfg.Catalogue.Sheet,
	}, logger)

	var mirror domain.CatalogueMirror
	if cfg.Postgres.DSN != "" {
		m, err := postgres.NewMirror(ctx, postgres.Config{
			DSN:      cfg.Postgres.DSN,
			Schema:   cfg.Postgres.Schema,
			MaxConns: cfg.Postgres.MaxConns,
		}, logger)
		if err != nil {
			return a, fmt.Errorf("postgres mirror: %w", err)
		}
		a.closers = append(a.closers, func() error { m.Close(); return nil })
		mirror = m
		logger.Info("postgres mirror enabled", zap.String("schema", cfg.Postgres.Schema))
	}

	a.Catalogue = usecase.NewCatalogueService(
		a.Spreadsheet,
		mirror,
		syncer,
		usecase.NewScoringService(usecase.ScoringConfig{ReferenceLife: cfg.Scoring.ReferenceLife}),
		usecase.CatalogueServiceConfig{IncludeUnclassified: cfg.Scoring.IncludeUnclassified},
		logger,
	)
	// stop a background sync before the browser and the stores go away
	a.closers = append(a.closers, func() error { a.Catalogue.Close(); return nil })

	if err := a.Catalogue.Load(ctx); err != nil {
		return a, err
	}

	a.Solutions = usecase.NewSolutionService(
		solutions.NewFileStore(cfg.Solutions.Path),
		a.Catalogue,
		usecase.SolutionServiceConfig{ReferenceLife: cfg.Scoring.ReferenceLife},
		logger,
	)

	return a, nil
}

func (a *App) newCache(ctx context.Context, cfg *config.Config, logger *zap.Logger) (domain.CacheRepository, error) {
	switch cfg.Cache.Type {
	case "redis":
		c, err := cache.NewRedisCache(ctx, cfg.Cache.RedisURL, cachePrefix)
		if err != nil {
			return nil, fmt.Errorf("redis cache: %w", err)
		}
		a.closers = append(a.closers, c.Close)
		logger.Info("using redis cache", zap.Duration("ttl", cfg.Cache.TTL))
		return c, nil
	default:
		c := cache.NewMemoryCache(0)
		a.closers = append(a.closers, c.Close)
		logger.Info("using memory cache", zap.Duration("ttl", cfg.Cache.TTL))
		return c, nil
	}
}

// Close releases resources in reverse order of acquisition
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
