package validation

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agrovault/trialbase/modules/catalog/domain/resolve"
)

type stubLookup struct {
	resolutions map[resolve.Kind]map[string]resolve.Resolution
	err         error
	resolveAll  int
}

func (s *stubLookup) Resolve(_ context.Context, kind resolve.Kind, query string) (resolve.Resolution, error) {
	if s.err != nil {
		return resolve.Resolution{}, s.err
	}
	if r, ok := s.resolutions[kind][strings.TrimSpace(query)]; ok {
		return r, nil
	}
	return resolve.NotFound(kind, strings.TrimSpace(query)), nil
}

func (s *stubLookup) ResolveAll(ctx context.Context, kind resolve.Kind, queries []string) (map[string]resolve.Resolution, error) {
	s.resolveAll++
	if s.err != nil {
		return nil, s.err
	}
	out := make(map[string]resolve.Resolution, len(queries))
	for _, q := range queries {
		key := strings.TrimSpace(q)
		if _, done := out[key]; done {
			continue
		}
		r, err := s.Resolve(ctx, kind, key)
		if err != nil {
			return nil, err
		}
		out[key] = r
	}
	return out, nil
}

func knownCatalog() *stubLookup {
	return &stubLookup{resolutions: map[resolve.Kind]map[string]resolve.Resolution{
		resolve.KindSite: {
			"Rothamsted": resolve.Unique(resolve.KindSite, "Rothamsted", 1, "Rothamsted"),
		},
		resolve.KindSpecies: {
			"Zea mays": resolve.Unique(resolve.KindSpecies, "Zea mays", 7, "Zea mays"),
		},
		resolve.KindCitation: {
			"10.1000/j.fcr.001": resolve.Unique(resolve.KindCitation, "10.1000/j.fcr.001", 3, "Smith 2004 Corn yield trials"),
		},
	}}
}

func makeTable(headers []string, records ...[]string) *Table {
	table := &Table{Headers: headers}
	for i, values := range records {
		table.Rows = append(table.Rows, RawRow{Line: i + 2, Values: values})
	}
	return table
}

func TestValidateRows_CleanYieldRow(t *testing.T) {
	schema := yieldsSchema(t, HeaderPolicyWarn)
	lookup := knownCatalog()
	summary := NewSummary()
	table := makeTable(
		[]string{"site", "species", "yield", "citation_doi", "date"},
		[]string{"Rothamsted", "Zea mays", "8.15", "10.1000/j.fcr.001", "2023-07-15"},
	)

	rows, err := ValidateRows(context.Background(), schema, table, lookup, summary)

	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Zero(t, summary.TotalErrorCount())
	require.False(t, rows[0].HasErrors())

	yield, ok := rows[0].Cell("yield")
	require.True(t, ok)
	require.NotNil(t, yield.Number)
	require.Equal(t, "8.15", yield.Number.String())

	site, _ := rows[0].Cell("site")
	require.True(t, site.Resolved())
	require.Equal(t, int64(1), site.Ref.Match.ID)

	date, _ := rows[0].Cell("date")
	require.NotNil(t, date.Date)
	require.Equal(t, 2023, date.Date.Year())

	citationCell, ok := rows[0].Cell(CitationColumn)
	require.True(t, ok)
	require.True(t, citationCell.Resolved())
	require.Equal(t, int64(3), citationCell.Ref.Match.ID)
}

func TestValidateRows_NonNumericYield(t *testing.T) {
	schema := yieldsSchema(t, HeaderPolicyWarn)
	summary := NewSummary()
	table := makeTable(
		[]string{"yield", "citation_doi"},
		[]string{"lots", "10.1000/j.fcr.001"},
	)

	rows, err := ValidateRows(context.Background(), schema, table, knownCatalog(), summary)

	require.NoError(t, err)
	require.Equal(t, 1, summary.DataErrorCount)
	require.Len(t, summary.Issues[KindValue], 1)
	require.True(t, rows[0].HasErrors())
}

func TestValidateRows_YieldOutOfRange(t *testing.T) {
	schema := yieldsSchema(t, HeaderPolicyWarn)
	summary := NewSummary()
	table := makeTable(
		[]string{"yield", "citation_doi"},
		[]string{"999", "10.1000/j.fcr.001"},
	)

	_, err := ValidateRows(context.Background(), schema, table, knownCatalog(), summary)

	require.NoError(t, err)
	issues := summary.Issues[KindRange]
	require.Len(t, issues, 1)
	require.Equal(t, "yield", issues[0].Column)
	require.Equal(t, 2, issues[0].Row)
}

func TestValidateRows_BadDateFormat(t *testing.T) {
	schema := yieldsSchema(t, HeaderPolicyWarn)
	summary := NewSummary()
	table := makeTable(
		[]string{"yield", "citation_doi", "date"},
		[]string{"4.2", "10.1000/j.fcr.001", "15.07.2023"},
	)

	_, err := ValidateRows(context.Background(), schema, table, knownCatalog(), summary)

	require.NoError(t, err)
	issues := summary.Issues[KindValue]
	require.Len(t, issues, 1)
	require.Equal(t, "date", issues[0].Column)
}

func TestValidateRows_CustomDateFormatAccepted(t *testing.T) {
	dict, err := LoadDictionary()
	require.NoError(t, err)
	schema, err := SchemaFor(DatasetYields, dict, HeaderPolicyWarn, DefaultDateFormat, "02.01.2006")
	require.NoError(t, err)

	summary := NewSummary()
	table := makeTable(
		[]string{"yield", "citation_doi", "date"},
		[]string{"4.2", "10.1000/j.fcr.001", "15.07.2023"},
	)

	rows, err := ValidateRows(context.Background(), schema, table, knownCatalog(), summary)

	require.NoError(t, err)
	require.Zero(t, summary.TotalErrorCount())
	date, _ := rows[0].Cell("date")
	require.NotNil(t, date.Date)
	require.Equal(t, 7, int(date.Date.Month()))
}

func TestValidateRows_EmptyRequiredValue(t *testing.T) {
	schema := yieldsSchema(t, HeaderPolicyWarn)
	summary := NewSummary()
	table := makeTable(
		[]string{"yield", "citation_doi"},
		[]string{"", "10.1000/j.fcr.001"},
	)

	rows, err := ValidateRows(context.Background(), schema, table, knownCatalog(), summary)

	require.NoError(t, err)
	require.Equal(t, 1, summary.DataErrorCount)
	yield, _ := rows[0].Cell("yield")
	require.Equal(t, LevelError, yield.Verdict.Level)
}

func TestValidateRows_CitationDOIWinsOverTriple(t *testing.T) {
	schema := yieldsSchema(t, HeaderPolicyWarn)
	summary := NewSummary()
	table := makeTable(
		[]string{"yield", "citation_doi", "citation_author", "citation_year", "citation_title"},
		[]string{"4.2", "10.1000/j.fcr.001", "Jones", "2010", "Another paper"},
	)

	rows, err := ValidateRows(context.Background(), schema, table, knownCatalog(), summary)

	require.NoError(t, err)
	citationCell, ok := rows[0].Cell(CitationColumn)
	require.True(t, ok)
	require.Equal(t, "10.1000/j.fcr.001", citationCell.Raw)
	require.True(t, citationCell.Resolved())
}

func TestValidateRows_CitationTripleCondensed(t *testing.T) {
	schema := yieldsSchema(t, HeaderPolicyWarn)
	lookup := knownCatalog()
	lookup.resolutions[resolve.KindCitation]["Smith 2004 Corn yield trials"] =
		resolve.Unique(resolve.KindCitation, "Smith 2004 Corn yield trials", 3, "Smith 2004 Corn yield trials")
	summary := NewSummary()
	table := makeTable(
		[]string{"yield", "citation_author", "citation_year", "citation_title"},
		[]string{"4.2", "Smith", "2004", "Corn yield trials"},
	)

	rows, err := ValidateRows(context.Background(), schema, table, lookup, summary)

	require.NoError(t, err)
	require.Zero(t, summary.TotalErrorCount())
	citationCell, ok := rows[0].Cell(CitationColumn)
	require.True(t, ok)
	require.Equal(t, "Smith 2004 Corn yield trials", citationCell.Raw)
	require.Equal(t, int64(3), citationCell.Ref.Match.ID)
}

func TestValidateRows_PartialCitationTripleIsError(t *testing.T) {
	schema := yieldsSchema(t, HeaderPolicyWarn)
	summary := NewSummary()
	table := makeTable(
		[]string{"yield", "citation_author", "citation_year", "citation_title"},
		[]string{"4.2", "Smith", "", ""},
	)

	rows, err := ValidateRows(context.Background(), schema, table, knownCatalog(), summary)

	require.NoError(t, err)
	require.Equal(t, 2, summary.DataErrorCount)
	_, ok := rows[0].Cell(CitationColumn)
	require.False(t, ok)
}

func TestValidateRows_MissingCitationIsError(t *testing.T) {
	schema := yieldsSchema(t, HeaderPolicyWarn)
	summary := NewSummary()
	table := makeTable(
		[]string{"yield", "citation_doi"},
		[]string{"4.2", ""},
	)

	_, err := ValidateRows(context.Background(), schema, table, knownCatalog(), summary)

	require.NoError(t, err)
	issues := summary.Issues[KindValue]
	require.Len(t, issues, 1)
	require.Equal(t, "citation_doi", issues[0].Column)
}

func TestValidateRows_UnresolvedReferenceWarns(t *testing.T) {
	schema := yieldsSchema(t, HeaderPolicyWarn)
	summary := NewSummary()
	table := makeTable(
		[]string{"site", "yield", "citation_doi"},
		[]string{"Atlantis Research Station", "4.2", "10.1000/j.fcr.001"},
	)

	rows, err := ValidateRows(context.Background(), schema, table, knownCatalog(), summary)

	require.NoError(t, err)
	require.Zero(t, summary.DataErrorCount)
	require.Equal(t, 1, summary.WarningCount)
	require.Len(t, summary.Issues[KindUnresolved], 1)

	site, _ := rows[0].Cell("site")
	require.NotNil(t, site.Ref)
	require.Equal(t, resolve.StatusNotFound, site.Ref.Status)
	require.Equal(t, LevelWarning, site.Verdict.Level)
}

func TestValidateRows_AmbiguousReferenceIsError(t *testing.T) {
	schema := yieldsSchema(t, HeaderPolicyWarn)
	lookup := knownCatalog()
	lookup.resolutions[resolve.KindSpecies]["clover"] = resolve.Ambiguous(resolve.KindSpecies, "clover", []resolve.Candidate{
		{ID: 11, Label: "Trifolium repens"},
		{ID: 12, Label: "Trifolium pratense"},
	})
	summary := NewSummary()
	table := makeTable(
		[]string{"species", "yield", "citation_doi"},
		[]string{"clover", "4.2", "10.1000/j.fcr.001"},
	)

	rows, err := ValidateRows(context.Background(), schema, table, lookup, summary)

	require.NoError(t, err)
	require.Equal(t, 1, summary.DataErrorCount)
	require.Len(t, summary.Issues[KindAmbiguous], 1)

	speciesCell, _ := rows[0].Cell("species")
	require.Equal(t, LevelError, speciesCell.Verdict.Level)
	require.Len(t, speciesCell.Ref.Candidates, 2)
}

func TestValidateRows_SERequiresN(t *testing.T) {
	schema := yieldsSchema(t, HeaderPolicyWarn)
	summary := NewSummary()
	table := makeTable(
		[]string{"yield", "citation_doi", "SE", "n"},
		[]string{"4.2", "10.1000/j.fcr.001", "0.3", ""},
		[]string{"4.4", "10.1000/j.fcr.001", "0.2", "1"},
		[]string{"4.6", "10.1000/j.fcr.001", "0.1", "3"},
	)

	rows, err := ValidateRows(context.Background(), schema, table, knownCatalog(), summary)

	require.NoError(t, err)
	require.Equal(t, 2, summary.DataErrorCount)
	require.True(t, rows[0].HasErrors())
	require.True(t, rows[1].HasErrors())
	require.False(t, rows[2].HasErrors())
}

func TestValidateRows_AccessLevelBounds(t *testing.T) {
	schema := yieldsSchema(t, HeaderPolicyWarn)
	summary := NewSummary()
	table := makeTable(
		[]string{"yield", "citation_doi", "access_level"},
		[]string{"4.2", "10.1000/j.fcr.001", "0"},
		[]string{"4.2", "10.1000/j.fcr.001", "5"},
		[]string{"4.2", "10.1000/j.fcr.001", "4"},
	)

	rows, err := ValidateRows(context.Background(), schema, table, knownCatalog(), summary)

	require.NoError(t, err)
	require.Len(t, summary.Issues[KindRange], 2)
	require.False(t, rows[2].HasErrors())
}

func TestValidateRows_UnknownTrait(t *testing.T) {
	schema := traitsSchema(t)
	summary := NewSummary()
	table := makeTable(
		[]string{"trait", "mean", "citation_doi"},
		[]string{"sparkle", "4.2", "10.1000/j.fcr.001"},
	)

	rows, err := ValidateRows(context.Background(), schema, table, knownCatalog(), summary)

	require.NoError(t, err)
	trait, _ := rows[0].Cell("trait")
	require.Equal(t, LevelError, trait.Verdict.Level)
	require.Contains(t, trait.Verdict.Reason, "sparkle")
}

func TestValidateRows_TraitMeanRange(t *testing.T) {
	schema := traitsSchema(t)
	summary := NewSummary()
	table := makeTable(
		[]string{"trait", "mean", "citation_doi"},
		[]string{"SLA", "9000", "10.1000/j.fcr.001"},
		[]string{"SLA", "120", "10.1000/j.fcr.001"},
	)

	rows, err := ValidateRows(context.Background(), schema, table, knownCatalog(), summary)

	require.NoError(t, err)
	issues := summary.Issues[KindRange]
	require.Len(t, issues, 1)
	require.Equal(t, "mean", issues[0].Column)
	require.False(t, rows[1].HasErrors())
}

func TestValidateRows_LookupFailurePropagates(t *testing.T) {
	schema := yieldsSchema(t, HeaderPolicyWarn)
	lookup := &stubLookup{err: context.DeadlineExceeded}
	summary := NewSummary()
	table := makeTable(
		[]string{"site", "yield", "citation_doi"},
		[]string{"Rothamsted", "4.2", "10.1000/j.fcr.001"},
	)

	_, err := ValidateRows(context.Background(), schema, table, lookup, summary)

	require.Error(t, err)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestValidateRows_BatchesLookupsPerKind(t *testing.T) {
	schema := yieldsSchema(t, HeaderPolicyWarn)
	lookup := knownCatalog()
	summary := NewSummary()
	table := makeTable(
		[]string{"site", "species", "yield", "citation_doi"},
		[]string{"Rothamsted", "Zea mays", "4.2", "10.1000/j.fcr.001"},
		[]string{"Rothamsted", "Zea mays", "5.1", "10.1000/j.fcr.001"},
		[]string{"Rothamsted", "Zea mays", "6.0", "10.1000/j.fcr.001"},
	)

	_, err := ValidateRows(context.Background(), schema, table, lookup, summary)

	require.NoError(t, err)
	// One ResolveAll call per referenced kind: site, species, citation.
	require.Equal(t, 3, lookup.resolveAll)
}

func TestValidateRows_EmptyReferenceCellsSkipLookup(t *testing.T) {
	schema := yieldsSchema(t, HeaderPolicyWarn)
	lookup := knownCatalog()
	summary := NewSummary()
	table := makeTable(
		[]string{"site", "yield", "citation_doi"},
		[]string{"", "4.2", "10.1000/j.fcr.001"},
	)

	rows, err := ValidateRows(context.Background(), schema, table, lookup, summary)

	require.NoError(t, err)
	// Only the citation kind is looked up.
	require.Equal(t, 1, lookup.resolveAll)
	site, _ := rows[0].Cell("site")
	require.Nil(t, site.Ref)
	require.Equal(t, LevelOK, site.Verdict.Level)
}

func TestValidateRows_RerunYieldsIdenticalSummary(t *testing.T) {
	schema := yieldsSchema(t, HeaderPolicyWarn)
	table := makeTable(
		[]string{"site", "species", "yield", "citation_doi", "SE", "n"},
		[]string{"Rothamsted", "Unknown grass", "999", "10.1000/j.fcr.001", "0.3", "1"},
	)

	first := NewSummary()
	_, err := ValidateRows(context.Background(), schema, table, knownCatalog(), first)
	require.NoError(t, err)

	second := NewSummary()
	_, err = ValidateRows(context.Background(), schema, table, knownCatalog(), second)
	require.NoError(t, err)

	require.Equal(t, first.DataErrorCount, second.DataErrorCount)
	require.Equal(t, first.WarningCount, second.WarningCount)
	require.Equal(t, first.Issues, second.Issues)
}
