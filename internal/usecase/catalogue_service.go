package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aeginies/backend/internal/domain"
	"go.uber.org/zap"
)

// CatalogueServiceConfig holds configuration for the catalogue service
type CatalogueServiceConfig struct {
	// IncludeUnclassified keeps records of unknown declaration type in unfiltered queries
	IncludeUnclassified bool
}

// CatalogueService owns the in-process catalogue handle. Reads run concurrently;
// syncs are serialized and swap the handle only once the new catalogue is persisted.
type CatalogueService struct {
	repo    domain.CatalogueRepository
	mirror  domain.CatalogueMirror
	syncer  *SyncService
	scoring *ScoringService
	logger  *zap.Logger

	includeUnclassified bool

	mu        sync.RWMutex
	catalogue *domain.Catalogue
	syncMu    sync.Mutex

	statusMu   sync.Mutex
	status     SyncStatus
	cancelSync context.CancelFunc
	background sync.WaitGroup
}

// SyncStatus describes the latest sync started through StartSync
type SyncStatus struct {
	Running    bool        `json:"running"`
	StartedAt  time.Time   `json:"startedAt,omitzero"`
	FinishedAt time.Time   `json:"finishedAt,omitzero"`
	Report     *SyncReport `json:"report,omitempty"`
	Error      string      `json:"error,omitempty"`
}

// NewCatalogueService creates a catalogue service. mirror may be nil.
func NewCatalogueService(
	repo domain.CatalogueRepository,
	mirror domain.CatalogueMirror,
	syncer *SyncService,
	scoring *ScoringService,
	config CatalogueServiceConfig,
	logger *zap.Logger,
) *CatalogueService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogueService{
		repo:                repo,
		mirror:              mirror,
		syncer:              syncer,
		scoring:             scoring,
		logger:              logger.Named("catalogue"),
		includeUnclassified: config.IncludeUnclassified,
		catalogue:           domain.NewCatalogue(),
	}
}

// Load replaces the in-process catalogue with the persisted one
func (s *CatalogueService) Load(ctx context.Context) error {
	catalogue, err := s.repo.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading catalogue: %w", err)
	}
	s.mu.Lock()
	s.catalogue = catalogue
	s.mu.Unlock()

	s.logger.Info("catalogue loaded", zap.Int("products", catalogue.Len()))
	return nil
}

// Len returns the number of stored products
func (s *CatalogueService) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.catalogue.Len()
}

// Records returns a snapshot of every stored record
func (s *CatalogueService) Records() []domain.ProductRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.catalogue.Records()
}

// Get returns one record by id
func (s *CatalogueService) Get(id string) (domain.ProductRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.catalogue.Get(id)
	if !ok {
		return domain.ProductRecord{}, fmt.Errorf("%w: %s", domain.ErrProductNotFound, id)
	}
	return record, nil
}

// List returns the records selected by filter, in catalogue order
func (s *CatalogueService) List(filter ProductFilter) []domain.ProductRecord {
	return ApplyFilter(s.Records(), filter, s.includeUnclassified)
}

// Search matches query tokens against product names or ids
func (s *CatalogueService) Search(query string) []domain.ProductRecord {
	return SearchProducts(s.Records(), query)
}

// Score filters the catalogue and scores the resulting comparison set.
// Like ScoringService.Score, it may return a result together with
// domain.ErrInsufficientVariance.
func (s *CatalogueService) Score(filter ProductFilter) (*domain.ScoreResult, error) {
	return s.scoring.Score(s.List(filter))
}

// Sync runs one incremental sync against a copy of the catalogue, persists it and
// then makes it visible. Concurrent calls fail with domain.ErrSyncInProgress.
func (s *CatalogueService) Sync(ctx context.Context) (*SyncReport, error) {
	if !s.syncMu.TryLock() {
		return nil, domain.ErrSyncInProgress
	}
	defer s.syncMu.Unlock()
	return s.runSync(ctx)
}

// StartSync runs Sync in the background and returns at once. The run is bound to
// ctx and to Close, not to the caller. A sync already running yields
// domain.ErrSyncInProgress.
func (s *CatalogueService) StartSync(ctx context.Context) error {
	if !s.syncMu.TryLock() {
		return domain.ErrSyncInProgress
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.statusMu.Lock()
	s.status = SyncStatus{Running: true, StartedAt: time.Now()}
	s.cancelSync = cancel
	s.statusMu.Unlock()

	s.background.Add(1)
	go func() {
		defer s.background.Done()
		defer s.syncMu.Unlock()
		defer cancel()

		report, err := s.runSync(runCtx)

		s.statusMu.Lock()
		defer s.statusMu.Unlock()
		s.status.Running = false
		s.status.FinishedAt = time.Now()
		s.status.Report = report
		if err != nil {
			s.status.Error = err.Error()
			s.logger.Error("background sync failed", zap.Error(err))
		}
	}()
	return nil
}

// SyncStatus returns the state of the latest background sync
func (s *CatalogueService) SyncStatus() SyncStatus {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	return s.status
}

// Close cancels a running background sync and waits for it to stop
func (s *CatalogueService) Close() {
	s.statusMu.Lock()
	cancel := s.cancelSync
	s.statusMu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.background.Wait()
}

// Snapshot returns a copy of the current catalogue
func (s *CatalogueService) Snapshot() *domain.Catalogue {
	return domain.NewCatalogue(s.Records()...)
}

func (s *CatalogueService) runSync(ctx context.Context) (*SyncReport, error) {
	working := domain.NewCatalogue(s.Records()...)

	report, err := s.syncer.Sync(ctx, working)
	if err != nil {
		return nil, err
	}
	if report.Added == 0 {
		return report, nil
	}

	if err := s.repo.Save(ctx, working); err != nil {
		return nil, fmt.Errorf("saving catalogue: %w", err)
	}

	s.mu.Lock()
	s.catalogue = working
	s.mu.Unlock()

	if s.mirror != nil {
		n, err := s.mirror.Publish(ctx, report.NewRecords)
		if err != nil {
			// the spreadsheet stays the source of truth; see PublishAll for backfilling
			s.logger.Warn("mirror publish failed", zap.String("run_id", report.RunID), zap.Error(err))
		}
		report.Mirrored = n
	}

	return report, nil
}

// PublishAll sends every stored record to the mirror. Records the mirror already
// holds are skipped by the mirror itself.
func (s *CatalogueService) PublishAll(ctx context.Context) (int, error) {
	if s.mirror == nil {
		return 0, nil
	}
	return s.mirror.Publish(ctx, s.Records())
}
