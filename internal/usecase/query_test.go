package usecase

import (
	"testing"

	"github.com/aeginies/backend/internal/domain"
)

func queryFixture() []domain.ProductRecord {
	return []domain.ProductRecord{
		{ID: "101", Name: "Plancher bois massif", DeclarationType: domain.DeclarationIndividual},
		{ID: "102", Name: "Plancher béton", DeclarationType: domain.DeclarationCollective},
		{ID: "103", Name: "Bardage BOIS douglas", DeclarationType: domain.DeclarationGenericData},
		{ID: "204", Name: "Isolant laine de bois pour plancher", DeclarationType: domain.DeclarationUnknown},
	}
}

func recordIDs(records []domain.ProductRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}

func equalIDs(got []domain.ProductRecord, want ...string) bool {
	g := recordIDs(got)
	if len(g) != len(want) {
		return false
	}
	for i := range g {
		if g[i] != want[i] {
			return false
		}
	}
	return true
}

func TestFilterByKeywords(t *testing.T) {
	records := queryFixture()

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"all tokens must match", "plancher bois", []string{"101", "204"}},
		{"case insensitive", "BOIS", []string{"101", "103", "204"}},
		{"token order is irrelevant", "bois plancher", []string{"101", "204"}},
		{"empty query keeps all", "", []string{"101", "102", "103", "204"}},
		{"whitespace query keeps all", "   ", []string{"101", "102", "103", "204"}},
		{"no match", "acier", nil},
		{"does not search ids", "101", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FilterByKeywords(records, tt.query)
			if !equalIDs(got, tt.want...) {
				t.Errorf("FilterByKeywords(%q) = %v, want %v", tt.query, recordIDs(got), tt.want)
			}
		})
	}
}

func TestFilterByDeclarationType(t *testing.T) {
	records := queryFixture()

	got := FilterByDeclarationType(records, []domain.DeclarationType{domain.DeclarationIndividual, domain.DeclarationUnknown})
	if !equalIDs(got, "101", "204") {
		t.Errorf("got %v, want [101 204]", recordIDs(got))
	}

	if got := FilterByDeclarationType(records, nil); len(got) != 0 {
		t.Errorf("no types should select nothing, got %v", recordIDs(got))
	}
}

func TestSearchProducts(t *testing.T) {
	records := queryFixture()

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"matches id", "102", []string{"102"}},
		{"matches id prefix", "10", []string{"101", "102", "103"}},
		{"mixes name and id", "plancher 20", []string{"204"}},
		{"name only", "douglas", []string{"103"}},
		{"empty keeps all", "", []string{"101", "102", "103", "204"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SearchProducts(records, tt.query)
			if !equalIDs(got, tt.want...) {
				t.Errorf("SearchProducts(%q) = %v, want %v", tt.query, recordIDs(got), tt.want)
			}
		})
	}
}

func TestApplyFilter(t *testing.T) {
	records := queryFixture()

	t.Run("includes unclassified by default", func(t *testing.T) {
		got := ApplyFilter(records, ProductFilter{Query: "plancher"}, true)
		if !equalIDs(got, "101", "102", "204") {
			t.Errorf("got %v", recordIDs(got))
		}
	})

	t.Run("excludes unclassified when disabled", func(t *testing.T) {
		got := ApplyFilter(records, ProductFilter{Query: "plancher"}, false)
		if !equalIDs(got, "101", "102") {
			t.Errorf("got %v", recordIDs(got))
		}
	})

	t.Run("explicit types override the policy", func(t *testing.T) {
		got := ApplyFilter(records, ProductFilter{Types: []domain.DeclarationType{domain.DeclarationUnknown}}, false)
		if !equalIDs(got, "204") {
			t.Errorf("got %v", recordIDs(got))
		}
	})

	t.Run("explicit ids narrow the set", func(t *testing.T) {
		got := ApplyFilter(records, ProductFilter{IDs: []string{" 103 ", "101", "999"}}, true)
		if !equalIDs(got, "101", "103") {
			t.Errorf("got %v", recordIDs(got))
		}
	})
}
