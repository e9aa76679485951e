package domain

// Solutions maps a solution name to its definition, as persisted
type Solutions map[string]Solution

// Solution is a named assembly of catalogue products
type Solution struct {
	Category string            `json:"categorie"`
	Products []SolutionProduct `json:"produits"`
}

// SolutionProduct is one line of a solution
type SolutionProduct struct {
	ID               string  `json:"id_inies"`
	Name             string  `json:"nom"`
	Quantity         float64 `json:"quantité"`
	NormalizedImpact float64 `json:"impact_normalisé"`
	ServiceLife      int     `json:"durée_vie"`
	Benefit          float64 `json:"d_bénéfices"`
}

// UnspecifiedCategory labels solutions saved without a category
const UnspecifiedCategory = "Non spécifiée"

// CategoryOrDefault returns the solution category, or UnspecifiedCategory
func (s Solution) CategoryOrDefault() string {
	if s.Category == "" {
		return UnspecifiedCategory
	}
	return s.Category
}

// TotalImpact sums the normalized impact of every product line
func (s Solution) TotalImpact() float64 {
	total := 0.0
	for _, p := range s.Products {
		total += p.NormalizedImpact
	}
	return total
}

// NamedSolution is a solution together with its key
type NamedSolution struct {
	Name        string  `json:"name"`
	TotalImpact float64 `json:"totalImpact"`
	Solution
}
