package usecase

import (
	"strings"

	"github.com/aeginies/backend/internal/domain"
)

// ProductFilter selects a subset of the catalogue.
// Zero values select everything.
type ProductFilter struct {
	Query string                   `json:"query"`
	Types []domain.DeclarationType `json:"types"`
	IDs   []string                 `json:"ids"`
}

// FilterByKeywords keeps the records whose name contains every whitespace-separated
// token of query, case-insensitively. An empty query keeps all records.
func FilterByKeywords(records []domain.ProductRecord, query string) []domain.ProductRecord {
	tokens := tokenize(query)
	if len(tokens) == 0 {
		return records
	}
	out := make([]domain.ProductRecord, 0, len(records))
	for _, r := range records {
		if containsAll(strings.ToLower(r.Name), tokens) {
			out = append(out, r)
		}
	}
	return out
}

// FilterByDeclarationType keeps the records whose declaration type is in types
func FilterByDeclarationType(records []domain.ProductRecord, types []domain.DeclarationType) []domain.ProductRecord {
	allowed := make(map[domain.DeclarationType]bool, len(types))
	for _, t := range types {
		allowed[t] = true
	}
	out := make([]domain.ProductRecord, 0, len(records))
	for _, r := range records {
		if allowed[r.DeclarationType] {
			out = append(out, r)
		}
	}
	return out
}

// FilterByIDs keeps the records whose id is listed, in catalogue order
func FilterByIDs(records []domain.ProductRecord, ids []string) []domain.ProductRecord {
	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[domain.NormalizeID(id)] = true
	}
	out := make([]domain.ProductRecord, 0, len(ids))
	for _, r := range records {
		if wanted[r.ID] {
			out = append(out, r)
		}
	}
	return out
}

// SearchProducts matches every token of query against the name or the id of each
// record. Used when composing solutions, where users type either.
func SearchProducts(records []domain.ProductRecord, query string) []domain.ProductRecord {
	tokens := tokenize(query)
	if len(tokens) == 0 {
		return records
	}
	out := make([]domain.ProductRecord, 0)
	for _, r := range records {
		name := strings.ToLower(r.Name)
		id := strings.ToLower(r.ID)
		match := true
		for _, tok := range tokens {
			if !strings.Contains(name, tok) && !strings.Contains(id, tok) {
				match = false
				break
			}
		}
		if match {
			out = append(out, r)
		}
	}
	return out
}

// ApplyFilter runs the keyword, type and id filters in turn.
// When no type is requested and includeUnclassified is false, records of unknown
// declaration type are left out.
func ApplyFilter(records []domain.ProductRecord, f ProductFilter, includeUnclassified bool) []domain.ProductRecord {
	out := FilterByKeywords(records, f.Query)

	switch {
	case len(f.Types) > 0:
		out = FilterByDeclarationType(out, f.Types)
	case !includeUnclassified:
		var classified []domain.DeclarationType
		for _, t := range domain.AllDeclarationTypes() {
			if t != domain.DeclarationUnknown {
				classified = append(classified, t)
			}
		}
		out = FilterByDeclarationType(out, classified)
	}

	if len(f.IDs) > 0 {
		out = FilterByIDs(out, f.IDs)
	}
	return out
}

func tokenize(query string) []string {
	return strings.Fields(strings.ToLower(query))
}

func containsAll(s string, tokens []string) bool {
	for _, tok := range tokens {
		if !strings.Contains(s, tok) {
			return false
		}
	}
	return true
}
