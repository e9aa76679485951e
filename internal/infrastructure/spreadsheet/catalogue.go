package spreadsheet

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/aeginies/backend/internal/domain"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// Catalogue columns, in file order
const (
	ColumnID             = "ID INIES"
	ColumnName           = "Nom du produit"
	ColumnDeclaration    = "Type de Déclaration"
	ColumnFunctionalUnit = "Unité Fonctionnelle"
	ColumnServiceLife    = "Durée de Vie"
	ColumnImpact         = "Impact CO₂ (kg)"
	ColumnBenefit        = "D-Bénéfices"
)

// Header is the exact first row of a catalogue sheet
var Header = []string{
	ColumnID,
	ColumnName,
	ColumnDeclaration,
	ColumnFunctionalUnit,
	ColumnServiceLife,
	ColumnImpact,
	ColumnBenefit,
}

// DefaultSheet is used when no sheet name is configured
const DefaultSheet = "Sheet1"

// Config holds catalogue file settings
type Config struct {
	// Path is read on Load
	Path string
	// OutputPath is written on Save; defaults to Path
	OutputPath string
	Sheet      string
}

// Repository stores the catalogue as a single-sheet xlsx workbook
type Repository struct {
	path       string
	outputPath string
	sheet      string
	logger     *zap.Logger
}

// NewRepository creates a catalogue repository
func NewRepository(cfg Config, logger *zap.Logger) *Repository {
	out := cfg.OutputPath
	if out == "" {
		out = cfg.Path
	}
	sheet := cfg.Sheet
	if sheet == "" {
		sheet = DefaultSheet
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repository{
		path:       cfg.Path,
		outputPath: out,
		sheet:      sheet,
		logger:     logger.Named("spreadsheet"),
	}
}

// Load reads the catalogue file. A missing file is an empty catalogue; a file
// without the identifier column is domain.ErrMalformedCatalogue. Duplicate ids keep
// their last row.
func (r *Repository) Load(ctx context.Context) (*domain.Catalogue, error) {
	f, err := excelize.OpenFile(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		r.logger.Info("catalogue file not found, starting empty", zap.String("path", r.path))
		return domain.NewCatalogue(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening catalogue %s: %w", r.path, err)
	}
	defer f.Close()

	return r.read(f)
}

// Read decodes a catalogue workbook from an arbitrary reader
func (r *Repository) Read(rd io.Reader) (*domain.Catalogue, error) {
	f, err := excelize.OpenReader(rd)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedCatalogue, err)
	}
	defer f.Close()

	return r.read(f)
}

func (r *Repository) read(f *excelize.File) (*domain.Catalogue, error) {
	sheet := r.sheet
	if idx, _ := f.GetSheetIndex(sheet); idx < 0 {
		// fall back to the first sheet, whatever its name
		sheet = f.GetSheetName(0)
	}

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedCatalogue, err)
	}
	if len(rows) == 0 {
		return domain.NewCatalogue(), nil
	}

	columns := make(map[string]int, len(rows[0]))
	for i, h := range rows[0] {
		name := strings.TrimSpace(h)
		if _, dup := columns[name]; !dup {
			columns[name] = i
		}
	}
	if _, ok := columns[ColumnID]; !ok {
		return nil, fmt.Errorf("%w: missing %q column", domain.ErrMalformedCatalogue, ColumnID)
	}

	cell := func(row []string, column string) string {
		i, ok := columns[column]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	records := make([]domain.ProductRecord, 0, len(rows)-1)
	for _, row := range rows[1:] {
		id := cell(row, ColumnID)
		if id == "" {
			continue
		}
		name := cell(row, ColumnName)
		if name == "" {
			name = domain.UnknownName
		}
		unit := cell(row, ColumnFunctionalUnit)
		if unit == "" {
			unit = domain.UnknownFunctionalUnit
		}
		records = append(records, domain.ProductRecord{
			ID:                    id,
			Name:                  name,
			DeclarationType:       domain.ParseDeclarationLabel(cell(row, ColumnDeclaration)),
			FunctionalUnit:        unit,
			ServiceLifeYears:      domain.ParseServiceLife(cell(row, ColumnServiceLife)),
			CO2Impact:             domain.ParseImpact(cell(row, ColumnImpact)),
			SystemBoundaryBenefit: domain.ParseImpact(cell(row, ColumnBenefit)),
		})
	}

	catalogue := domain.NewCatalogue(records...)
	if dups := len(records) - catalogue.Len(); dups > 0 {
		r.logger.Warn("duplicate ids in catalogue file, last row kept", zap.Int("duplicates", dups))
	}
	return catalogue, nil
}

// Save writes the catalogue to the output path through a temporary file renamed
// into place, so readers never see a partial workbook.
func (r *Repository) Save(ctx context.Context, catalogue *domain.Catalogue) error {
	dir := filepath.Dir(r.outputPath)
	tmp, err := os.CreateTemp(dir, ".catalogue-*.xlsx")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if err := r.Write(tmp, catalogue); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, r.outputPath); err != nil {
		return fmt.Errorf("replacing catalogue: %w", err)
	}

	r.logger.Info("catalogue saved", zap.String("path", r.outputPath), zap.Int("products", catalogue.Len()))
	return nil
}

// Write encodes the catalogue as an xlsx workbook
func (r *Repository) Write(w io.Writer, catalogue *domain.Catalogue) error {
	f := excelize.NewFile()
	defer f.Close()

	if r.sheet != DefaultSheet {
		if err := f.SetSheetName(DefaultSheet, r.sheet); err != nil {
			return err
		}
	}

	header := make([]interface{}, len(Header))
	for i, h := range Header {
		header[i] = h
	}
	if err := f.SetSheetRow(r.sheet, "A1", &header); err != nil {
		return err
	}

	for i, p := range catalogue.Records() {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []interface{}{
			p.ID,
			p.Name,
			p.DeclarationType.String(),
			p.FunctionalUnit,
			domain.FormatServiceLife(p.ServiceLifeYears),
			p.CO2Impact,
			p.SystemBoundaryBenefit,
		}
		if err := f.SetSheetRow(r.sheet, cell, &row); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("encoding workbook: %w", err)
	}
	return nil
}
