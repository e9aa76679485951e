package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/aeginies/backend/internal/domain"
)

var errNoSuchElement = errors.New("no such element")

// fakePage is an in-memory domain.Page keyed by selector
type fakePage struct {
	texts      map[string]string
	lists      map[string][]string
	clickable  map[string]bool
	navigateTo []string
	clicked    []string
	navErr     error
	readyErr   error
	closed     bool
}

func newFakePage() *fakePage {
	return &fakePage{
		texts:     make(map[string]string),
		lists:     make(map[string][]string),
		clickable: make(map[string]bool),
	}
}

func (p *fakePage) Navigate(ctx context.Context, url string) error {
	p.navigateTo = append(p.navigateTo, url)
	return p.navErr
}

func (p *fakePage) WaitReady(ctx context.Context, selector string, timeout time.Duration) error {
	return p.readyErr
}

func (p *fakePage) Click(ctx context.Context, selector string) error {
	if !p.clickable[selector] {
		return errNoSuchElement
	}
	p.clicked = append(p.clicked, selector)
	return nil
}

func (p *fakePage) ReadText(ctx context.Context, selector string) (string, error) {
	text, ok := p.texts[selector]
	if !ok {
		return "", errNoSuchElement
	}
	return text, nil
}

func (p *fakePage) ReadAllText(ctx context.Context, selector string) ([]string, error) {
	list, ok := p.lists[selector]
	if !ok {
		return nil, errNoSuchElement
	}
	return list, nil
}

func (p *fakePage) Close() error {
	p.closed = true
	return nil
}

// completePage renders a product detail page with every section present
func completePage() *fakePage {
	p := newFakePage()
	p.texts[nameSelector] = "  Plancher bois massif  "
	p.texts[generalInfoSelector] = "Informations générales\nType : Déclaration Individuelle\nFabricant X"
	p.clickable[functionalUnitTab] = true
	p.clickable[indicatorsTab] = true
	p.clickable[optionalPhasesSelector] = true
	p.texts[functionalUnitSelector] = "1 m² de plancher"
	p.texts[serviceLifeSelector] = "25 ans"
	p.lists[indicatorHeaderSelector] = []string{"Indicateur", "Unité", ColumnLifeCycleTotal, ColumnBoundaryBenefit}
	p.texts[fmt.Sprintf(indicatorCellFormat, 3)] = "100"
	p.texts[fmt.Sprintf(indicatorCellFormat, 4)] = "-20"
	return p
}

func newTestExtractor(page domain.Page) *Extractor {
	e := NewExtractor(page, ExtractorConfig{}, nil)
	e.sleep = func(ctx context.Context, d time.Duration) {}
	return e
}

func TestClassifyDeclaration(t *testing.T) {
	tests := []struct {
		text string
		want domain.DeclarationType
	}{
		{"Déclaration Individuelle du produit X", domain.DeclarationIndividual},
		{"DÉCLARATION COLLECTIVE syndicat", domain.DeclarationCollective},
		{"Donnée générique bois", domain.DeclarationGenericData},
		{"Donnée conventionnelle pour la RE2020", domain.DeclarationRE2020Conventional},
		{"Donnée conventionnelle issue du référenciel", domain.DeclarationReferenceConventional},
		{"texte sans rapport", domain.DeclarationUnknown},
		{"", domain.DeclarationUnknown},
		// priority order: individual is checked before generic data
		{"déclaration individuelle / donnée générique", domain.DeclarationIndividual},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			if got := ClassifyDeclaration(tt.text); got != tt.want {
				t.Errorf("ClassifyDeclaration(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestField(t *testing.T) {
	ok := fieldOf("value", nil)
	if !ok.Ok() || ok.Or("sentinel") != "value" {
		t.Errorf("successful field = %+v", ok)
	}

	failed := fieldOf("partial", errNoSuchElement)
	if failed.Ok() || failed.Or("sentinel") != "sentinel" {
		t.Errorf("failed field = %+v, want sentinel", failed)
	}
}

func TestExtract_CompletePage(t *testing.T) {
	page := completePage()
	record, failures := newTestExtractor(page).ExtractWithReport(context.Background(), "1234")

	if len(failures) != 0 {
		t.Errorf("failures = %v, want none", failures)
	}
	if page.navigateTo[0] != "https://base-inies.fr/consultation/infos-produit/1234" {
		t.Errorf("navigated to %q", page.navigateTo[0])
	}
	if record.ID != "1234" {
		t.Errorf("ID = %q", record.ID)
	}
	if record.Name != "Plancher bois massif" {
		t.Errorf("Name = %q", record.Name)
	}
	if record.DeclarationType != domain.DeclarationIndividual {
		t.Errorf("DeclarationType = %v", record.DeclarationType)
	}
	if record.FunctionalUnit != "1 m² de plancher" {
		t.Errorf("FunctionalUnit = %q", record.FunctionalUnit)
	}
	if record.ServiceLifeYears == nil || *record.ServiceLifeYears != 25 {
		t.Errorf("ServiceLifeYears = %v, want 25", record.ServiceLifeYears)
	}
	if record.CO2Impact != 100 || record.SystemBoundaryBenefit != -20 {
		t.Errorf("impacts = %v / %v, want 100 / -20", record.CO2Impact, record.SystemBoundaryBenefit)
	}

	wantClicks := []string{functionalUnitTab, indicatorsTab, optionalPhasesSelector}
	if fmt.Sprint(page.clicked) != fmt.Sprint(wantClicks) {
		t.Errorf("clicked = %v, want %v", page.clicked, wantClicks)
	}
}

func TestExtract_PageNeverReady(t *testing.T) {
	page := completePage()
	page.readyErr = context.DeadlineExceeded

	record := newTestExtractor(page).Extract(context.Background(), "42")

	if !record.IsExtractionFailure() {
		t.Fatalf("Name = %q, want error marker", record.Name)
	}
	if record.ID != "42" {
		t.Errorf("ID = %q, want 42", record.ID)
	}
	if record.DeclarationType != domain.DeclarationUnknown || record.FunctionalUnit != domain.UnknownFunctionalUnit {
		t.Errorf("record = %+v, want sentinels", record)
	}
	if record.ServiceLifeYears != nil || record.CO2Impact != 0 || record.SystemBoundaryBenefit != 0 {
		t.Errorf("record = %+v, want zero measures", record)
	}
}

func TestExtract_NavigationFailure(t *testing.T) {
	page := completePage()
	page.navErr = errors.New("net::ERR_NAME_NOT_RESOLVED")

	record := newTestExtractor(page).Extract(context.Background(), "42")

	if record.Name != "Erreur: navigate: net::ERR_NAME_NOT_RESOLVED" {
		t.Errorf("Name = %q", record.Name)
	}
}

func TestExtract_FieldFailuresAreIndependent(t *testing.T) {
	t.Run("missing name still reads indicators", func(t *testing.T) {
		page := completePage()
		delete(page.texts, nameSelector)

		record, failures := newTestExtractor(page).ExtractWithReport(context.Background(), "1")

		if record.Name != domain.UnknownName {
			t.Errorf("Name = %q, want %q", record.Name, domain.UnknownName)
		}
		if record.CO2Impact != 100 {
			t.Errorf("CO2Impact = %v, want 100", record.CO2Impact)
		}
		if len(failures) != 1 || failures[0].Field != "name" {
			t.Errorf("failures = %v, want only name", failures)
		}
	})

	t.Run("missing functional unit tab is tolerated", func(t *testing.T) {
		page := completePage()
		page.clickable[functionalUnitTab] = false
		delete(page.texts, functionalUnitSelector)
		delete(page.texts, serviceLifeSelector)

		record, _ := newTestExtractor(page).ExtractWithReport(context.Background(), "1")

		if record.FunctionalUnit != domain.UnknownFunctionalUnit {
			t.Errorf("FunctionalUnit = %q, want N/A", record.FunctionalUnit)
		}
		if record.ServiceLifeYears != nil {
			t.Errorf("ServiceLifeYears = %v, want nil", *record.ServiceLifeYears)
		}
		if record.CO2Impact != 100 || record.SystemBoundaryBenefit != -20 {
			t.Errorf("impacts = %v / %v", record.CO2Impact, record.SystemBoundaryBenefit)
		}
	})

	t.Run("unparseable service life", func(t *testing.T) {
		page := completePage()
		page.texts[serviceLifeSelector] = "non renseignée"

		record, failures := newTestExtractor(page).ExtractWithReport(context.Background(), "1")

		if record.ServiceLifeYears != nil {
			t.Errorf("ServiceLifeYears = %v, want nil", *record.ServiceLifeYears)
		}
		if len(failures) != 1 || failures[0].Field != "serviceLifeYears" {
			t.Errorf("failures = %v", failures)
		}
	})

	t.Run("unclassified declaration", func(t *testing.T) {
		page := completePage()
		page.texts[generalInfoSelector] = "Informations générales"

		record, _ := newTestExtractor(page).ExtractWithReport(context.Background(), "1")

		if record.DeclarationType != domain.DeclarationUnknown {
			t.Errorf("DeclarationType = %v, want Unknown", record.DeclarationType)
		}
	})
}

func TestExtract_Indicators(t *testing.T) {
	t.Run("placeholder benefit coerces to zero", func(t *testing.T) {
		page := completePage()
		page.texts[fmt.Sprintf(indicatorCellFormat, 4)] = "-"

		record, failures := newTestExtractor(page).ExtractWithReport(context.Background(), "1")

		if record.SystemBoundaryBenefit != 0 {
			t.Errorf("SystemBoundaryBenefit = %v, want 0", record.SystemBoundaryBenefit)
		}
		if len(failures) != 0 {
			t.Errorf("failures = %v, want none for placeholder", failures)
		}
	})

	t.Run("optional phases hidden leaves benefit column absent", func(t *testing.T) {
		page := completePage()
		page.clickable[optionalPhasesSelector] = false
		page.lists[indicatorHeaderSelector] = []string{"Indicateur", "Unité", ColumnLifeCycleTotal}

		record, failures := newTestExtractor(page).ExtractWithReport(context.Background(), "1")

		if record.CO2Impact != 100 {
			t.Errorf("CO2Impact = %v, want 100", record.CO2Impact)
		}
		if record.SystemBoundaryBenefit != 0 {
			t.Errorf("SystemBoundaryBenefit = %v, want 0", record.SystemBoundaryBenefit)
		}
		if len(failures) != 1 || !errors.Is(failures[0].Err, errColumnMissing) {
			t.Errorf("failures = %v, want missing column", failures)
		}
	})

	t.Run("columns located by header name", func(t *testing.T) {
		page := completePage()
		page.lists[indicatorHeaderSelector] = []string{" " + ColumnBoundaryBenefit + " ", ColumnLifeCycleTotal}
		page.texts[fmt.Sprintf(indicatorCellFormat, 1)] = "-3,5"
		page.texts[fmt.Sprintf(indicatorCellFormat, 2)] = "1,25E+02"

		record, _ := newTestExtractor(page).ExtractWithReport(context.Background(), "1")

		if record.CO2Impact != 125 {
			t.Errorf("CO2Impact = %v, want 125", record.CO2Impact)
		}
		if record.SystemBoundaryBenefit != -3.5 {
			t.Errorf("SystemBoundaryBenefit = %v, want -3.5", record.SystemBoundaryBenefit)
		}
	})

	t.Run("no indicator table", func(t *testing.T) {
		page := completePage()
		delete(page.lists, indicatorHeaderSelector)

		record, failures := newTestExtractor(page).ExtractWithReport(context.Background(), "1")

		if record.CO2Impact != 0 || record.SystemBoundaryBenefit != 0 {
			t.Errorf("impacts = %v / %v, want 0 / 0", record.CO2Impact, record.SystemBoundaryBenefit)
		}
		if len(failures) != 2 {
			t.Errorf("failures = %v, want 2", failures)
		}
	})
}

func TestNewExtractor_Defaults(t *testing.T) {
	e := NewExtractor(newFakePage(), ExtractorConfig{}, nil)

	if e.cfg.ReadyTimeout != 15*time.Second {
		t.Errorf("ReadyTimeout = %v, want 15s", e.cfg.ReadyTimeout)
	}
	if e.cfg.URLTemplate != DefaultProductURLTemplate {
		t.Errorf("URLTemplate = %q", e.cfg.URLTemplate)
	}
}
