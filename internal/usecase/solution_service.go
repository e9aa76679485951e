package usecase

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/aeginies/backend/internal/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ProductLookup resolves catalogue records by id
type ProductLookup interface {
	Get(id string) (domain.ProductRecord, error)
}

// SolutionServiceConfig holds configuration for the solution service
type SolutionServiceConfig struct {
	ReferenceLife float64
}

// SolutionService manages named product assemblies and their normalized impact
type SolutionService struct {
	repo          domain.SolutionRepository
	products      ProductLookup
	referenceLife int64
	logger        *zap.Logger

	// serializes load-modify-save cycles on the store
	mu sync.Mutex
}

// NewSolutionService creates a solution service
func NewSolutionService(
	repo domain.SolutionRepository,
	products ProductLookup,
	config SolutionServiceConfig,
	logger *zap.Logger,
) *SolutionService {
	ref := int64(config.ReferenceLife)
	if ref <= 0 {
		ref = int64(domain.ReferenceServiceLife)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SolutionService{
		repo:          repo,
		products:      products,
		referenceLife: ref,
		logger:        logger.Named("solutions"),
	}
}

// List returns the solutions of category sorted by name; an empty category lists all
func (s *SolutionService) List(ctx context.Context, category string) ([]domain.NamedSolution, error) {
	all, err := s.repo.Load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.NamedSolution, 0, len(all))
	for name, sol := range all {
		if category != "" && sol.CategoryOrDefault() != category {
			continue
		}
		out = append(out, named(name, sol))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Categories returns the distinct solution categories, sorted
func (s *SolutionService) Categories(ctx context.Context) ([]string, error) {
	all, err := s.repo.Load(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var out []string
	for _, sol := range all {
		c := sol.CategoryOrDefault()
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Get returns one solution by name
func (s *SolutionService) Get(ctx context.Context, name string) (*domain.NamedSolution, error) {
	all, err := s.repo.Load(ctx)
	if err != nil {
		return nil, err
	}
	sol, ok := all[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrSolutionNotFound, name)
	}
	n := named(name, sol)
	return &n, nil
}

// Save creates or replaces a solution. Lines whose id is in the catalogue get their
// name, life, benefit and normalized impact recomputed from it.
func (s *SolutionService) Save(ctx context.Context, name string, sol domain.Solution) (*domain.NamedSolution, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: solution name is required", domain.ErrInvalidRequest)
	}

	sol.Category = strings.TrimSpace(sol.Category)
	if sol.Category == "" {
		sol.Category = domain.UnspecifiedCategory
	}

	lines := make([]domain.SolutionProduct, 0, len(sol.Products))
	for i, line := range sol.Products {
		line.ID = domain.NormalizeID(line.ID)
		if line.ID == "" {
			return nil, fmt.Errorf("%w: product %d has no id", domain.ErrInvalidRequest, i)
		}
		if line.Quantity < 0 || math.IsNaN(line.Quantity) || math.IsInf(line.Quantity, 0) {
			return nil, fmt.Errorf("%w: product %s has an invalid quantity", domain.ErrInvalidRequest, line.ID)
		}
		lines = append(lines, s.resolveLine(line))
	}
	sol.Products = lines

	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.repo.Load(ctx)
	if err != nil {
		return nil, err
	}
	if all == nil {
		all = make(domain.Solutions)
	}
	all[name] = sol
	if err := s.repo.Save(ctx, all); err != nil {
		return nil, fmt.Errorf("saving solutions: %w", err)
	}

	s.logger.Info("solution saved", zap.String("name", name), zap.Int("products", len(sol.Products)))
	n := named(name, sol)
	return &n, nil
}

// Delete removes a solution
func (s *SolutionService) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.repo.Load(ctx)
	if err != nil {
		return err
	}
	if _, ok := all[name]; !ok {
		return fmt.Errorf("%w: %s", domain.ErrSolutionNotFound, name)
	}
	delete(all, name)
	if err := s.repo.Save(ctx, all); err != nil {
		return fmt.Errorf("saving solutions: %w", err)
	}
	s.logger.Info("solution deleted", zap.String("name", name))
	return nil
}

// TotalImpact is the normalized impact of quantity units of the named solution
func (s *SolutionService) TotalImpact(ctx context.Context, name string, quantity float64) (float64, error) {
	sol, err := s.Get(ctx, name)
	if err != nil {
		return 0, err
	}
	return round2(decimal.NewFromFloat(sol.TotalImpact).Mul(decimal.NewFromFloat(quantity))), nil
}

// LineImpact is (co2 + benefit) * (reference / life) * quantity, rounded to two decimals
func (s *SolutionService) LineImpact(co2, benefit float64, life int, quantity float64) float64 {
	if life <= 0 {
		life = int(domain.ReferenceServiceLife)
	}
	v := decimal.NewFromFloat(finiteOrZero(co2)).
		Add(decimal.NewFromFloat(finiteOrZero(benefit))).
		Mul(decimal.NewFromInt(s.referenceLife)).
		Div(decimal.NewFromInt(int64(life))).
		Mul(decimal.NewFromFloat(quantity))
	return round2(v)
}

func (s *SolutionService) resolveLine(line domain.SolutionProduct) domain.SolutionProduct {
	record, err := s.products.Get(line.ID)
	if err != nil {
		// not in the catalogue: keep what the client sent
		line.NormalizedImpact = round2(decimal.NewFromFloat(finiteOrZero(line.NormalizedImpact)))
		if line.ServiceLife <= 0 {
			line.ServiceLife = int(domain.ReferenceServiceLife)
		}
		return line
	}

	life := int(domain.ReferenceServiceLife)
	if record.ServiceLifeYears != nil && *record.ServiceLifeYears >= 1 && !math.IsInf(*record.ServiceLifeYears, 0) {
		life = int(*record.ServiceLifeYears)
	}

	line.Name = record.Name
	line.ServiceLife = life
	line.Benefit = record.SystemBoundaryBenefit
	line.NormalizedImpact = s.LineImpact(record.CO2Impact, record.SystemBoundaryBenefit, life, line.Quantity)
	return line
}

func named(name string, sol domain.Solution) domain.NamedSolution {
	total := round2(decimal.NewFromFloat(sol.TotalImpact()))
	return domain.NamedSolution{Name: name, TotalImpact: total, Solution: sol}
}

func round2(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}
