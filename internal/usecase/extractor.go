package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aeginies/backend/internal/domain"
	"go.uber.org/zap"
)

// DefaultProductURLTemplate is the INIES detail view; %s receives the identifier
const DefaultProductURLTemplate = "https://base-inies.fr/consultation/infos-produit/%s"

// Detail page layout (XPath)
const (
	rootSelector            = `//*[@id="workSpace"]`
	productBase             = `//*[@id="workSpace"]/div/infos-produit/div`
	generalInfoSelector     = productBase + `/div[3]/informations-generales-read-only`
	nameSelector            = generalInfoSelector + `/div/div[1]/div[2]/span[1]`
	functionalUnitTab       = productBase + `/div[2]/button[2]`
	indicatorsTab           = productBase + `/div[2]/button[3]`
	functionalUnitSelector  = productBase + `/div[3]/unite-fonctionnelle-read-only/div/div[1]/div[2]/span`
	serviceLifeSelector     = productBase + `/div[3]/unite-fonctionnelle-read-only/div/div[3]/div[2]/span`
	optionalPhasesSelector  = `//*[contains(text(), "Afficher les phases optionnelles")]`
	indicatorsTable         = productBase + `/div[3]/indicateurs-read-only//table`
	indicatorHeaderSelector = indicatorsTable + `/thead/tr/th`
	indicatorCellFormat     = indicatorsTable + `/tbody/tr[1]/td[%d]/span`
)

// Indicator table columns
const (
	ColumnLifeCycleTotal  = "Total cycle de vie"
	ColumnBoundaryBenefit = "D-Bénéfices et charges au-delà des frontières du système"
)

// declarationKeywords are checked in order; the first match wins
var declarationKeywords = []struct {
	keyword string
	kind    domain.DeclarationType
}{
	{"déclaration individuelle", domain.DeclarationIndividual},
	{"déclaration collective", domain.DeclarationCollective},
	{"donnée générique", domain.DeclarationGenericData},
	{"donnée conventionnelle pour la re2020", domain.DeclarationRE2020Conventional},
	{"donnée conventionnelle issue du référenciel", domain.DeclarationReferenceConventional},
}

// ClassifyDeclaration maps the free-text declaration label of a product to its type
func ClassifyDeclaration(text string) domain.DeclarationType {
	lower := strings.ToLower(text)
	for _, k := range declarationKeywords {
		if strings.Contains(lower, k.keyword) {
			return k.kind
		}
	}
	return domain.DeclarationUnknown
}

// Field is the outcome of one best-effort read: a value or the error that prevented it
type Field[T any] struct {
	Value T
	Err   error
}

// Ok reports whether the read succeeded
func (f Field[T]) Ok() bool {
	return f.Err == nil
}

// Or returns the value, or sentinel when the read failed
func (f Field[T]) Or(sentinel T) T {
	if f.Err != nil {
		return sentinel
	}
	return f.Value
}

func fieldOf[T any](v T, err error) Field[T] {
	return Field[T]{Value: v, Err: err}
}

// errColumnMissing marks an indicator column absent from the table
var errColumnMissing = errors.New("indicator column not present")

// FieldFailure records one field that fell back to its sentinel
type FieldFailure struct {
	Field string
	Err   error
}

// ExtractorConfig holds detail-page timing and location settings
type ExtractorConfig struct {
	URLTemplate   string
	ReadyTimeout  time.Duration
	SettleDelay   time.Duration
	TabDelay      time.Duration
	OptionalDelay time.Duration
}

// Extractor reads product records from INIES detail pages through a Page
type Extractor struct {
	page   domain.Page
	cfg    ExtractorConfig
	logger *zap.Logger
	sleep  func(ctx context.Context, d time.Duration)
}

// NewExtractor creates an extractor bound to one page session
func NewExtractor(page domain.Page, cfg ExtractorConfig, logger *zap.Logger) *Extractor {
	if cfg.URLTemplate == "" {
		cfg.URLTemplate = DefaultProductURLTemplate
	}
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{
		page:   page,
		cfg:    cfg,
		logger: logger,
		sleep:  sleepContext,
	}
}

// Extract reads the detail page of id. It never fails; see domain.ProductExtractor.
func (e *Extractor) Extract(ctx context.Context, id string) domain.ProductRecord {
	record, failures := e.ExtractWithReport(ctx, id)
	for _, f := range failures {
		e.logger.Debug("field fell back to sentinel",
			zap.String("id", id), zap.String("field", f.Field), zap.Error(f.Err))
	}
	if record.IsExtractionFailure() {
		e.logger.Warn("product page unreadable", zap.String("id", id), zap.String("name", record.Name))
	}
	return record
}

// ExtractWithReport is Extract plus the list of fields that fell back to their sentinel
func (e *Extractor) ExtractWithReport(ctx context.Context, id string) (domain.ProductRecord, []FieldFailure) {
	if err := e.page.Navigate(ctx, fmt.Sprintf(e.cfg.URLTemplate, id)); err != nil {
		return domain.FailedProductRecord(id, fmt.Errorf("navigate: %w", err)), nil
	}
	if err := e.page.WaitReady(ctx, rootSelector, e.cfg.ReadyTimeout); err != nil {
		return domain.FailedProductRecord(id, fmt.Errorf("page not ready: %w", err)), nil
	}
	e.sleep(ctx, e.cfg.SettleDelay)

	name := e.readName(ctx)
	declaration := e.readDeclaration(ctx)

	e.activate(ctx, functionalUnitTab, e.cfg.TabDelay)
	functionalUnit := e.readFunctionalUnit(ctx)
	serviceLife := e.readServiceLife(ctx)

	e.activate(ctx, indicatorsTab, e.cfg.TabDelay)
	e.activate(ctx, optionalPhasesSelector, e.cfg.OptionalDelay)
	impact, benefit := e.readIndicators(ctx)

	record := domain.ProductRecord{
		ID:                    id,
		Name:                  name.Or(domain.UnknownName),
		DeclarationType:       declaration.Or(domain.DeclarationUnknown),
		FunctionalUnit:        functionalUnit.Or(domain.UnknownFunctionalUnit),
		ServiceLifeYears:      serviceLife.Or(nil),
		CO2Impact:             impact.Or(0),
		SystemBoundaryBenefit: benefit.Or(0),
	}

	var failures []FieldFailure
	collect := func(field string, err error) {
		if err != nil {
			failures = append(failures, FieldFailure{Field: field, Err: err})
		}
	}
	collect("name", name.Err)
	collect("declarationType", declaration.Err)
	collect("functionalUnit", functionalUnit.Err)
	collect("serviceLifeYears", serviceLife.Err)
	collect("co2Impact", impact.Err)
	collect("systemBoundaryBenefit", benefit.Err)

	return record, failures
}

// activate clicks a tab or toggle; a missing control is tolerated
func (e *Extractor) activate(ctx context.Context, selector string, delay time.Duration) {
	if err := e.page.Click(ctx, selector); err != nil {
		e.logger.Debug("control not activated", zap.String("selector", selector), zap.Error(err))
		return
	}
	e.sleep(ctx, delay)
}

func (e *Extractor) readName(ctx context.Context) Field[string] {
	text, err := e.page.ReadText(ctx, nameSelector)
	if err != nil {
		return fieldOf("", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return fieldOf("", errors.New("empty product name"))
	}
	return fieldOf(text, nil)
}

func (e *Extractor) readDeclaration(ctx context.Context) Field[domain.DeclarationType] {
	text, err := e.page.ReadText(ctx, generalInfoSelector)
	if err != nil {
		return fieldOf(domain.DeclarationUnknown, err)
	}
	kind := ClassifyDeclaration(text)
	if kind == domain.DeclarationUnknown {
		return fieldOf(kind, errors.New("no declaration keyword matched"))
	}
	return fieldOf(kind, nil)
}

func (e *Extractor) readFunctionalUnit(ctx context.Context) Field[string] {
	text, err := e.page.ReadText(ctx, functionalUnitSelector)
	if err != nil {
		return fieldOf("", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return fieldOf("", errors.New("empty functional unit"))
	}
	return fieldOf(text, nil)
}

func (e *Extractor) readServiceLife(ctx context.Context) Field[*float64] {
	text, err := e.page.ReadText(ctx, serviceLifeSelector)
	if err != nil {
		return fieldOf[*float64](nil, err)
	}
	years := domain.ParseServiceLife(text)
	if years == nil {
		return fieldOf[*float64](nil, fmt.Errorf("unparseable service life %q", text))
	}
	return fieldOf(years, nil)
}

// readIndicators locates the life-cycle total and boundary benefit columns by header
// name and reads them from the first data row.
func (e *Extractor) readIndicators(ctx context.Context) (Field[float64], Field[float64]) {
	headers, err := e.page.ReadAllText(ctx, indicatorHeaderSelector)
	if err != nil {
		return fieldOf(0.0, err), fieldOf(0.0, err)
	}
	columns := make(map[string]int, len(headers))
	for i, h := range headers {
		name := strings.TrimSpace(h)
		if _, dup := columns[name]; !dup {
			columns[name] = i + 1
		}
	}
	return e.readIndicatorCell(ctx, columns, ColumnLifeCycleTotal),
		e.readIndicatorCell(ctx, columns, ColumnBoundaryBenefit)
}

func (e *Extractor) readIndicatorCell(ctx context.Context, columns map[string]int, column string) Field[float64] {
	idx, ok := columns[column]
	if !ok {
		return fieldOf(0.0, fmt.Errorf("%w: %s", errColumnMissing, column))
	}
	text, err := e.page.ReadText(ctx, fmt.Sprintf(indicatorCellFormat, idx))
	if err != nil {
		return fieldOf(0.0, err)
	}
	return fieldOf(domain.ParseImpact(text), nil)
}

func sleepContext(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
