package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aeginies/backend/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// SyncConfig holds configuration for the sync orchestrator
type SyncConfig struct {
	// Workers is the number of independent browser sessions; each handles a disjoint
	// share of the new identifiers sequentially.
	Workers int
	// ExtractionsPerMinute paces detail-page loads across all workers; 0 disables pacing
	ExtractionsPerMinute float64
	CacheTTL             time.Duration
	Extractor            ExtractorConfig
}

// SyncReport summarizes one sync run
type SyncReport struct {
	RunID              string        `json:"runId"`
	Discovered         int           `json:"discovered"`
	Stored             int           `json:"stored"`
	New                int           `json:"new"`
	Added              int           `json:"added"`
	ExtractionFailures int           `json:"extractionFailures"`
	FailedIDs          []string      `json:"failedIds,omitempty"`
	CacheHits          int           `json:"cacheHits"`
	Mirrored           int           `json:"mirrored"`
	StartedAt          time.Time     `json:"startedAt"`
	Duration           time.Duration `json:"duration"`

	// NewRecords are the records merged by this run, in discovery order
	NewRecords []domain.ProductRecord `json:"-"`
}

// SyncService brings a catalogue up to date with the identifiers published by INIES
type SyncService struct {
	source       domain.IdentifierSource
	opener       domain.PageOpener
	cache        domain.CacheRepository
	limiter      *rate.Limiter
	workers      int
	cacheTTL     time.Duration
	logger       *zap.Logger
	newExtractor func(page domain.Page) domain.ProductExtractor
}

// NewSyncService creates a new sync orchestrator. cache may be nil.
func NewSyncService(
	source domain.IdentifierSource,
	opener domain.PageOpener,
	cache domain.CacheRepository,
	config SyncConfig,
	logger *zap.Logger,
) *SyncService {
	workers := config.Workers
	if workers <= 0 {
		workers = 1
	}

	cacheTTL := config.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = 720 * time.Hour // Default 30 days
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if config.ExtractionsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Duration(float64(time.Minute)/config.ExtractionsPerMinute)), 1)
	}

	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("sync")

	extractorConfig := config.Extractor
	return &SyncService{
		source:   source,
		opener:   opener,
		cache:    cache,
		limiter:  limiter,
		workers:  workers,
		cacheTTL: cacheTTL,
		logger:   logger,
		newExtractor: func(page domain.Page) domain.ProductExtractor {
			return NewExtractor(page, extractorConfig, logger)
		},
	}
}

// Sync discovers the published identifiers, extracts the ones catalogue does not hold
// yet and merges them into catalogue.
//
// On any error catalogue is left untouched. A discovery that fails or returns no
// identifiers yields domain.ErrNoRemoteData. Stored records are never re-extracted.
func (s *SyncService) Sync(ctx context.Context, catalogue *domain.Catalogue) (*SyncReport, error) {
	report := &SyncReport{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
		Stored:    catalogue.Len(),
	}
	logger := s.logger.With(zap.String("run_id", report.RunID))

	discovered, err := s.source.FetchAllIdentifiers(ctx)
	if err != nil {
		logger.Error("identifier discovery failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", domain.ErrNoRemoteData, err)
	}
	if len(discovered) == 0 {
		logger.Warn("identifier discovery returned nothing")
		return nil, domain.ErrNoRemoteData
	}
	report.Discovered = len(discovered)

	missing := catalogue.Missing(discovered)
	report.New = len(missing)
	logger.Info("catalogue diff computed",
		zap.Int("discovered", report.Discovered),
		zap.Int("stored", report.Stored),
		zap.Int("new", report.New))

	if len(missing) == 0 {
		report.Duration = time.Since(report.StartedAt)
		return report, nil
	}

	records, hits, err := s.extractAll(ctx, logger, missing)
	if err != nil {
		return nil, err
	}
	report.CacheHits = hits

	for _, r := range records {
		if r.IsExtractionFailure() {
			report.ExtractionFailures++
			report.FailedIDs = append(report.FailedIDs, r.ID)
		}
	}

	report.Added = catalogue.Merge(records...)
	report.NewRecords = records
	report.Duration = time.Since(report.StartedAt)

	logger.Info("sync completed",
		zap.Int("added", report.Added),
		zap.Int("failures", report.ExtractionFailures),
		zap.Int("cache_hits", report.CacheHits),
		zap.Duration("duration", report.Duration))

	return report, nil
}

// extractAll spreads ids over the workers. Results keep the order of ids.
func (s *SyncService) extractAll(ctx context.Context, logger *zap.Logger, ids []string) ([]domain.ProductRecord, int, error) {
	workers := s.workers
	if workers > len(ids) {
		workers = len(ids)
	}

	records := make([]domain.ProductRecord, len(ids))
	hits := make([]int, workers)

	g, gCtx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		w := w
		g.Go(func() error {
			page, err := s.opener.Open(gCtx)
			if err != nil {
				return fmt.Errorf("open browser session: %w", err)
			}
			defer func() {
				if cerr := page.Close(); cerr != nil {
					logger.Warn("closing browser session", zap.Int("worker", w), zap.Error(cerr))
				}
			}()
			extractor := s.newExtractor(page)

			for i := w; i < len(ids); i += workers {
				if err := gCtx.Err(); err != nil {
					return err
				}
				record, hit, err := s.extractOne(gCtx, logger, extractor, ids[i])
				if err != nil {
					return err
				}
				if hit {
					hits[w]++
				}
				records[i] = record
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("extraction aborted", zap.Error(err))
		return nil, 0, err
	}

	total := 0
	for _, h := range hits {
		total += h
	}
	return records, total, nil
}

func (s *SyncService) extractOne(ctx context.Context, logger *zap.Logger, extractor domain.ProductExtractor, id string) (domain.ProductRecord, bool, error) {
	if record, ok := s.fromCache(ctx, logger, id); ok {
		return record, true, nil
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return domain.ProductRecord{}, false, fmt.Errorf("rate limiter error: %w", err)
	}

	record := extractor.Extract(ctx, id)
	// the extractor does not see cancellation as an error; treat it as an abort
	if err := ctx.Err(); err != nil {
		return domain.ProductRecord{}, false, err
	}
	logger.Debug("product extracted", zap.String("id", id), zap.String("name", record.Name))

	if !record.IsExtractionFailure() {
		s.toCache(ctx, logger, record)
	}
	return record, false, nil
}

func (s *SyncService) fromCache(ctx context.Context, logger *zap.Logger, id string) (domain.ProductRecord, bool) {
	if s.cache == nil {
		return domain.ProductRecord{}, false
	}
	data, err := s.cache.Get(ctx, productCacheKey(id))
	if err != nil {
		if !errors.Is(err, domain.ErrCacheMiss) {
			logger.Warn("cache read failed", zap.String("id", id), zap.Error(err))
		}
		return domain.ProductRecord{}, false
	}
	var record domain.ProductRecord
	if err := json.Unmarshal(data, &record); err != nil || record.ID != id {
		logger.Warn("discarding unreadable cache entry", zap.String("id", id), zap.Error(err))
		return domain.ProductRecord{}, false
	}
	return record, true
}

func (s *SyncService) toCache(ctx context.Context, logger *zap.Logger, record domain.ProductRecord) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(record)
	if err != nil {
		logger.Warn("encoding record for cache", zap.String("id", record.ID), zap.Error(err))
		return
	}
	if err := s.cache.Set(ctx, productCacheKey(record.ID), data, s.cacheTTL); err != nil {
		// Log but don't fail if caching fails
		logger.Warn("cache write failed", zap.String("id", record.ID), zap.Error(err))
	}
}

// productCacheKey format: "product:{id}"
func productCacheKey(id string) string {
	return "product:" + id
}
