package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Sentinel values stored in place of fields the extractor could not read
const (
	UnknownName           = "unknown"
	UnknownFunctionalUnit = "N/A"
	ErrorNamePrefix       = "Erreur: "
)

// ReferenceServiceLife is the domain-standard reference life, in years, used to
// normalize impacts and substituted for a missing declared service life.
const ReferenceServiceLife = 50.0

// DeclarationType is the regulatory category of an environmental declaration
type DeclarationType int

const (
	DeclarationUnknown DeclarationType = iota
	DeclarationIndividual
	DeclarationCollective
	DeclarationGenericData
	DeclarationRE2020Conventional
	DeclarationReferenceConventional
)

// declarationLabels are the labels written to the catalogue spreadsheet
var declarationLabels = map[DeclarationType]string{
	DeclarationUnknown:               "N/A",
	DeclarationIndividual:            "Individuelle",
	DeclarationCollective:            "Collective",
	DeclarationGenericData:           "DED",
	DeclarationRE2020Conventional:    "RE2020",
	DeclarationReferenceConventional: "EC",
}

// String returns the catalogue label of the declaration type
func (d DeclarationType) String() string {
	if label, ok := declarationLabels[d]; ok {
		return label
	}
	return declarationLabels[DeclarationUnknown]
}

// MarshalText lets declaration types travel as their labels in JSON
func (d DeclarationType) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText accepts one of the catalogue labels, "N/A" included
func (d *DeclarationType) UnmarshalText(text []byte) error {
	t, ok := LookupDeclarationLabel(string(text))
	if !ok {
		return fmt.Errorf("%w: unknown declaration type %q", ErrInvalidRequest, string(text))
	}
	*d = t
	return nil
}

// ParseDeclarationLabel maps a catalogue label back to its declaration type.
// Matching is case-insensitive; anything else is DeclarationUnknown.
func ParseDeclarationLabel(label string) DeclarationType {
	t, _ := LookupDeclarationLabel(label)
	return t
}

// LookupDeclarationLabel is ParseDeclarationLabel that also reports whether the
// label is one of the known ones
func LookupDeclarationLabel(label string) (DeclarationType, bool) {
	label = strings.TrimSpace(label)
	for t, l := range declarationLabels {
		if strings.EqualFold(l, label) {
			return t, true
		}
	}
	return DeclarationUnknown, false
}

// AllDeclarationTypes lists every declaration type, classified ones first
func AllDeclarationTypes() []DeclarationType {
	return []DeclarationType{
		DeclarationIndividual,
		DeclarationCollective,
		DeclarationGenericData,
		DeclarationRE2020Conventional,
		DeclarationReferenceConventional,
		DeclarationUnknown,
	}
}

// ProductRecord is one product declaration of the catalogue
type ProductRecord struct {
	ID                    string          `json:"id"`
	Name                  string          `json:"name"`
	DeclarationType       DeclarationType `json:"declarationType"`
	FunctionalUnit        string          `json:"functionalUnit"`
	ServiceLifeYears      *float64        `json:"serviceLifeYears,omitempty"` // nil when not declared or unparseable
	CO2Impact             float64         `json:"co2Impact"`
	SystemBoundaryBenefit float64         `json:"systemBoundaryBenefit"`
}

// EffectiveServiceLife returns the declared service life, or ReferenceServiceLife
// when it is missing or not a positive number.
func (p ProductRecord) EffectiveServiceLife() float64 {
	if p.ServiceLifeYears == nil || *p.ServiceLifeYears <= 0 || math.IsNaN(*p.ServiceLifeYears) || math.IsInf(*p.ServiceLifeYears, 0) {
		return ReferenceServiceLife
	}
	return *p.ServiceLifeYears
}

// TotalImpact is the life-cycle impact plus the system-boundary benefit
func (p ProductRecord) TotalImpact() float64 {
	return p.CO2Impact + p.SystemBoundaryBenefit
}

// NormalizedImpact rescales the total impact to the reference service life
func (p ProductRecord) NormalizedImpact() float64 {
	return p.TotalImpact() * (ReferenceServiceLife / p.EffectiveServiceLife())
}

// IsExtractionFailure reports whether the record carries a top-level extraction error
func (p ProductRecord) IsExtractionFailure() bool {
	return strings.HasPrefix(p.Name, ErrorNamePrefix)
}

// FailedProductRecord builds the record emitted when a detail page could not be read at all
func FailedProductRecord(id string, err error) ProductRecord {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return ProductRecord{
		ID:              id,
		Name:            ErrorNamePrefix + msg,
		DeclarationType: DeclarationUnknown,
		FunctionalUnit:  UnknownFunctionalUnit,
	}
}

// ParseImpact coerces a displayed indicator value to a number.
// Placeholders ("-", "N/A", empty) and unparseable text yield 0.
// French decimal commas and thousands spaces are accepted.
func ParseImpact(text string) float64 {
	v, ok := parseNumber(text)
	if !ok {
		return 0
	}
	return v
}

// ParseServiceLife extracts a service life in years from free text such as
// "50 ans" or "25". It returns nil when no positive number can be read.
func ParseServiceLife(text string) *float64 {
	s := strings.ToLower(strings.TrimSpace(text))
	for _, suffix := range []string{"années", "annees", "ans", "an", "years", "year"} {
		if strings.HasSuffix(s, suffix) {
			s = strings.TrimSpace(strings.TrimSuffix(s, suffix))
			break
		}
	}
	v, ok := parseNumber(s)
	if !ok || v <= 0 {
		return nil
	}
	return &v
}

// FormatServiceLife renders a service life the way the catalogue stores it
func FormatServiceLife(years *float64) string {
	if years == nil {
		return UnknownFunctionalUnit
	}
	return strconv.FormatFloat(*years, 'f', -1, 64) + " ans"
}

func parseNumber(text string) (float64, bool) {
	s := strings.TrimSpace(text)
	if s == "" || s == "-" || strings.EqualFold(s, "n/a") {
		return 0, false
	}
	s = strings.NewReplacer(" ", "", "\u00a0", "", "\u202f", "", "'", "").Replace(s)
	if !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
