package usecase

import (
	"math"

	"github.com/aeginies/backend/internal/domain"
)

// Category thresholds on the Z-score
const (
	lowCarbonBelow  = -1.0
	highCarbonAbove = 1.0
)

// ScoringConfig holds configuration for the scoring service
type ScoringConfig struct {
	// ReferenceLife is the service life, in years, every impact is rescaled to
	ReferenceLife float64
}

// ScoringService normalizes impacts over service life and ranks a comparison set
type ScoringService struct {
	referenceLife float64
}

// NewScoringService creates a new scoring service with the given configuration
func NewScoringService(config ScoringConfig) *ScoringService {
	ref := config.ReferenceLife
	if ref <= 0 || math.IsNaN(ref) || math.IsInf(ref, 0) {
		ref = domain.ReferenceServiceLife
	}
	return &ScoringService{referenceLife: ref}
}

// Score computes normalized impact, Z-score, category and min/max markers for records.
// Statistics are local to the given set and recomputed on every call.
//
// When the set has fewer than two rows, or every normalized impact is equal, the rows
// are returned with a zero Z-score in the intermediate category together with
// domain.ErrInsufficientVariance.
func (s *ScoringService) Score(records []domain.ProductRecord) (*domain.ScoreResult, error) {
	if len(records) == 0 {
		return nil, domain.ErrEmptyInput
	}

	rows := make([]domain.ScoredRow, len(records))
	sum := 0.0
	for i, r := range records {
		row := s.normalize(r)
		rows[i] = row
		sum += row.NormalizedImpact
	}
	mean := sum / float64(len(rows))
	stdDev := sampleStdDev(rows, mean)

	result := &domain.ScoreResult{Rows: rows, Mean: mean, StdDev: stdDev}

	if len(rows) < 2 || allEqual(rows) || stdDev == 0 || math.IsNaN(stdDev) {
		result.InsufficientVariance = true
		if allEqual(rows) {
			// rounding in the mean must not leak into the reported spread
			result.Mean = rows[0].NormalizedImpact
			result.StdDev = 0
		}
		for i := range rows {
			rows[i].ZScore = 0
			rows[i].Category = domain.CategoryIntermediate
		}
		return result, domain.ErrInsufficientVariance
	}

	maxIdx, minIdx := 0, 0
	for i := range rows {
		z := (rows[i].NormalizedImpact - mean) / stdDev
		rows[i].ZScore = z
		rows[i].Category = Categorize(z)

		if rows[i].NormalizedImpact > rows[maxIdx].NormalizedImpact {
			maxIdx = i
		}
		if rows[i].NormalizedImpact < rows[minIdx].NormalizedImpact {
			minIdx = i
		}
	}
	rows[maxIdx].IsMaxInSet = true
	rows[minIdx].IsMinInSet = true

	return result, nil
}

// NormalizedImpact rescales one record's total impact to the reference life
func (s *ScoringService) NormalizedImpact(r domain.ProductRecord) float64 {
	return s.normalize(r).NormalizedImpact
}

func (s *ScoringService) normalize(r domain.ProductRecord) domain.ScoredRow {
	r.CO2Impact = finiteOrZero(r.CO2Impact)
	r.SystemBoundaryBenefit = finiteOrZero(r.SystemBoundaryBenefit)

	// a missing or unusable life counts as the standard 50 years
	life := domain.ReferenceServiceLife
	if y := r.ServiceLifeYears; y != nil && *y > 0 && !math.IsInf(*y, 0) {
		life = *y
	}
	total := r.TotalImpact()

	return domain.ScoredRow{
		ProductRecord:    r,
		ServiceLifeUsed:  life,
		TotalImpact:      total,
		NormalizedImpact: total * (s.referenceLife / life),
	}
}

// Categorize buckets a Z-score; both boundaries belong to the intermediate class
func Categorize(z float64) domain.Category {
	switch {
	case z < lowCarbonBelow:
		return domain.CategoryLowCarbon
	case z > highCarbonAbove:
		return domain.CategoryHighCarbon
	default:
		return domain.CategoryIntermediate
	}
}

func sampleStdDev(rows []domain.ScoredRow, mean float64) float64 {
	if len(rows) < 2 {
		return 0
	}
	ss := 0.0
	for _, r := range rows {
		d := r.NormalizedImpact - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(rows)-1))
}

func allEqual(rows []domain.ScoredRow) bool {
	for _, r := range rows[1:] {
		if r.NormalizedImpact != rows[0].NormalizedImpact {
			return false
		}
	}
	return true
}

func finiteOrZero(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
