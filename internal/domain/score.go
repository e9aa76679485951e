package domain

// Category is the carbon class of a product within a comparison set
type Category string

const (
	CategoryLowCarbon    Category = "Bas carbone"
	CategoryIntermediate Category = "Intermédiaire"
	CategoryHighCarbon   Category = "Haut carbone"
)

// ScoredRow is a product record scored against one comparison set.
// Rows are never persisted; they only live as long as the result that holds them.
type ScoredRow struct {
	ProductRecord
	ServiceLifeUsed  float64  `json:"serviceLifeUsed"`
	TotalImpact      float64  `json:"totalImpact"`
	NormalizedImpact float64  `json:"normalizedImpact"`
	ZScore           float64  `json:"zScore"`
	Category         Category `json:"category"`
	IsMaxInSet       bool     `json:"isMaxInSet"`
	IsMinInSet       bool     `json:"isMinInSet"`
}

// ScoreResult is the outcome of scoring one comparison set
type ScoreResult struct {
	Rows                 []ScoredRow `json:"rows"`
	Mean                 float64     `json:"mean"`
	StdDev               float64     `json:"stdDev"`
	InsufficientVariance bool        `json:"insufficientVariance"`
}
