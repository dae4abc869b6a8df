package validation

import (
	"strings"

	"github.com/go-faster/errors"

	"github.com/agrovault/trialbase/modules/catalog/domain/resolve"
)

// DefaultDateFormat is the layout date cells are parsed with unless the
// deployment configures additional formats.
const DefaultDateFormat = "2006-01-02"

// DatasetKind selects which upload schema applies to a wizard run.
type DatasetKind string

const (
	DatasetYields DatasetKind = "yields"
	DatasetTraits DatasetKind = "traits"
)

func (k DatasetKind) IsValid() bool {
	return k == DatasetYields || k == DatasetTraits
}

// HeaderPolicy decides whether unrecognized columns abort the upload or
// merely warn.
type HeaderPolicy string

const (
	HeaderPolicyFatal HeaderPolicy = "fatal"
	HeaderPolicyWarn  HeaderPolicy = "warn"
)

// CellKind is the value type a column carries.
type CellKind string

const (
	CellNumeric    CellKind = "numeric"
	CellText       CellKind = "text"
	CellDate       CellKind = "date"
	CellCatalogRef CellKind = "catalog_ref"
)

// Column describes one recognized upload column.
type Column struct {
	Name     string
	Kind     CellKind
	Ref      resolve.Kind // catalog kind, set when Kind is CellCatalogRef
	Variable string       // dictionary variable used for range checks
	Integer  bool         // numeric values must be whole numbers
}

// Schema is the column contract of one dataset kind.
type Schema struct {
	Kind      DatasetKind
	Required  []Column
	Optional  []Column
	Forbidden []string
	// Alternates maps a required column to columns that jointly satisfy
	// it when the column itself is absent, e.g. the author/year/title
	// triple standing in for a DOI.
	Alternates   map[string][]string
	HeaderPolicy HeaderPolicy
	DateFormats  []string
	Dictionary   *Dictionary

	byName map[string]Column
}

var sharedOptionalColumns = []Column{
	{Name: "site", Kind: CellCatalogRef, Ref: resolve.KindSite},
	{Name: "species", Kind: CellCatalogRef, Ref: resolve.KindSpecies},
	{Name: "cultivar", Kind: CellCatalogRef, Ref: resolve.KindCultivar},
	{Name: "treatment", Kind: CellCatalogRef, Ref: resolve.KindTreatment},
	{Name: "date", Kind: CellDate},
	{Name: "n", Kind: CellNumeric, Integer: true},
	{Name: "SE", Kind: CellNumeric},
	{Name: "access_level", Kind: CellNumeric, Integer: true},
	{Name: "notes", Kind: CellText},
	{Name: "citation_author", Kind: CellText},
	{Name: "citation_year", Kind: CellNumeric, Integer: true},
	{Name: "citation_title", Kind: CellText},
}

var citationAlternates = map[string][]string{
	"citation_doi": {"citation_author", "citation_year", "citation_title"},
}

// SchemaFor builds the schema for a dataset kind. The dictionary backs
// numeric range checks; dateFormats defaults to DefaultDateFormat.
func SchemaFor(kind DatasetKind, dict *Dictionary, policy HeaderPolicy, dateFormats ...string) (*Schema, error) {
	if dict == nil {
		return nil, errors.New("variable dictionary is required")
	}
	if policy == "" {
		policy = HeaderPolicyWarn
	}
	if len(dateFormats) == 0 {
		dateFormats = []string{DefaultDateFormat}
	}

	schema := &Schema{
		Kind:         kind,
		Optional:     sharedOptionalColumns,
		Alternates:   citationAlternates,
		HeaderPolicy: policy,
		DateFormats:  dateFormats,
		Dictionary:   dict,
	}

	switch kind {
	case DatasetYields:
		schema.Required = []Column{
			{Name: "yield", Kind: CellNumeric, Variable: "yield"},
			{Name: "citation_doi", Kind: CellText},
		}
		schema.Forbidden = []string{"trait", "mean"}
	case DatasetTraits:
		schema.Required = []Column{
			{Name: "trait", Kind: CellText},
			{Name: "mean", Kind: CellNumeric},
			{Name: "citation_doi", Kind: CellText},
		}
		schema.Forbidden = []string{"yield"}
	default:
		return nil, errors.Errorf("unknown dataset kind %q", kind)
	}

	schema.byName = make(map[string]Column, len(schema.Required)+len(schema.Optional))
	for _, col := range schema.Required {
		schema.byName[strings.ToLower(col.Name)] = col
	}
	for _, col := range schema.Optional {
		schema.byName[strings.ToLower(col.Name)] = col
	}
	return schema, nil
}

// Column finds a recognized column by case-insensitive name.
func (s *Schema) Column(name string) (Column, bool) {
	col, ok := s.byName[strings.ToLower(strings.TrimSpace(name))]
	return col, ok
}

// IsForbidden reports whether the header belongs to the other dataset
// kind and must not appear in this upload.
func (s *Schema) IsForbidden(name string) bool {
	needle := strings.ToLower(strings.TrimSpace(name))
	for _, f := range s.Forbidden {
		if strings.ToLower(f) == needle {
			return true
		}
	}
	return false
}
