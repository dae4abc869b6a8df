package merge

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/agrovault/trialbase/modules/catalog/domain/resolve"
	"github.com/agrovault/trialbase/modules/ingest/domain/aggregates/session"
	"github.com/agrovault/trialbase/modules/ingest/domain/validation"
)

func refCell(column, raw string, res *resolve.Resolution) validation.Cell {
	cell := validation.Cell{Column: column, Raw: raw, Kind: validation.CellCatalogRef, Verdict: validation.OK()}
	cell.Ref = res
	return cell
}

func numCell(column, raw string) validation.Cell {
	num := decimal.RequireFromString(raw)
	return validation.Cell{Column: column, Raw: raw, Kind: validation.CellNumeric, Number: &num, Verdict: validation.OK()}
}

func baseRow(line int) validation.Row {
	resolved := resolve.Unique(resolve.KindSpecies, "Zea mays", 7, "Zea mays")
	return validation.Row{Line: line, Cells: map[string]validation.Cell{
		"species":      refCell("species", "Zea mays", &resolved),
		"yield":        numCell("yield", "8.1567"),
		"access_level": numCell("access_level", "2"),
	}}
}

func TestApply_FillsEmptySiteFromDefaults(t *testing.T) {
	row := baseRow(2)
	row.Cells["site"] = refCell("site", "", nil)

	merged, gaps := Apply([]validation.Row{row}, session.Defaults{Site: "Rothamsted", Rounding: 2})

	require.Empty(t, gaps)
	site, ok := merged[0].Cell("site")
	require.True(t, ok)
	require.Equal(t, "Rothamsted", site.Raw)
	require.Nil(t, site.Ref)
	require.Equal(t, validation.LevelOK, site.Verdict.Level)
}

func TestApply_CreatesCellWhenColumnAbsent(t *testing.T) {
	row := baseRow(2) // no site column at all

	merged, gaps := Apply([]validation.Row{row}, session.Defaults{Site: "Mead", Rounding: 2})

	require.Empty(t, gaps)
	site, ok := merged[0].Cell("site")
	require.True(t, ok)
	require.Equal(t, "Mead", site.Raw)
}

func TestApply_ReplacesUnresolvedReference(t *testing.T) {
	notFound := resolve.NotFound(resolve.KindSite, "Atlantis")
	row := baseRow(2)
	row.Cells["site"] = refCell("site", "Atlantis", &notFound)

	merged, _ := Apply([]validation.Row{row}, session.Defaults{Site: "Rothamsted", Rounding: 2})

	site, _ := merged[0].Cell("site")
	require.Equal(t, "Rothamsted", site.Raw)
	require.Nil(t, site.Ref)
}

func TestApply_LeavesResolvedCellsAlone(t *testing.T) {
	resolved := resolve.Unique(resolve.KindSite, "Wageningen", 3, "Wageningen")
	row := baseRow(2)
	row.Cells["site"] = refCell("site", "Wageningen", &resolved)

	merged, _ := Apply([]validation.Row{row}, session.Defaults{Site: "Rothamsted", Rounding: 2})

	site, _ := merged[0].Cell("site")
	require.Equal(t, "Wageningen", site.Raw)
	require.NotNil(t, site.Ref)
	require.Equal(t, resolve.StatusUnique, site.Ref.Status)
}

func TestApply_LeavesAmbiguousCellsForTheUser(t *testing.T) {
	ambiguous := resolve.Ambiguous(resolve.KindSite, "station", []resolve.Candidate{
		{ID: 1, Label: "Station A"}, {ID: 2, Label: "Station B"},
	})
	row := baseRow(2)
	cell := refCell("site", "station", &ambiguous)
	cell.Verdict = validation.Fail("ambiguous")
	row.Cells["site"] = cell

	merged, _ := Apply([]validation.Row{row}, session.Defaults{Site: "Rothamsted", Rounding: 2})

	site, _ := merged[0].Cell("site")
	require.Equal(t, "station", site.Raw)
	require.Equal(t, validation.LevelError, site.Verdict.Level)
}

func TestApply_RoundsMeasuredValuesOnly(t *testing.T) {
	row := baseRow(2)
	row.Cells["site"] = refCell("site", "Mead", nil)
	row.Cells["n"] = numCell("n", "5")

	merged, _ := Apply([]validation.Row{row}, session.Defaults{Rounding: 2})

	yield, _ := merged[0].Cell("yield")
	require.Equal(t, "8.16", yield.Number.String())
	require.Equal(t, "8.1567", yield.Raw)

	n, _ := merged[0].Cell("n")
	require.Equal(t, "5", n.Number.String())
}

func TestApply_FillsDateAndAccessLevel(t *testing.T) {
	date := time.Date(2023, 7, 1, 0, 0, 0, 0, time.UTC)
	row := validation.Row{Line: 2, Cells: map[string]validation.Cell{
		"species": baseRow(2).Cells["species"],
		"site":    refCell("site", "Mead", nil),
		"yield":   numCell("yield", "4.2"),
	}}

	merged, gaps := Apply([]validation.Row{row}, session.Defaults{
		AccessLevel: 3,
		Date:        &date,
		Rounding:    2,
	})

	require.Empty(t, gaps)
	level, ok := merged[0].Cell("access_level")
	require.True(t, ok)
	require.Equal(t, "3", level.Raw)
	require.NotNil(t, level.Number)

	d, ok := merged[0].Cell("date")
	require.True(t, ok)
	require.Equal(t, "2023-07-01", d.Raw)
	require.NotNil(t, d.Date)
}

func TestApply_ReportsGapsWhenNoDefaultCovers(t *testing.T) {
	row := baseRow(2)
	row.Cells["site"] = refCell("site", "", nil)

	_, gaps := Apply([]validation.Row{row}, session.Defaults{Rounding: 2})

	require.Len(t, gaps, 1)
	require.Equal(t, Gap{Row: 2, Column: "site"}, gaps[0])
}

func TestApply_IsIdempotent(t *testing.T) {
	notFound := resolve.NotFound(resolve.KindSite, "Atlantis")
	row := baseRow(2)
	row.Cells["site"] = refCell("site", "Atlantis", &notFound)
	defaults := session.Defaults{Site: "Rothamsted", AccessLevel: 2, Rounding: 2}

	once, gapsOnce := Apply([]validation.Row{row}, defaults)
	twice, gapsTwice := Apply(once, defaults)

	require.Equal(t, once, twice)
	require.Equal(t, gapsOnce, gapsTwice)
}

func TestApply_DoesNotMutateInput(t *testing.T) {
	row := baseRow(2)
	row.Cells["site"] = refCell("site", "", nil)
	input := []validation.Row{row}

	_, _ = Apply(input, session.Defaults{Site: "Rothamsted", Rounding: 2})

	site, _ := input[0].Cell("site")
	require.Empty(t, site.Raw)
	yield, _ := input[0].Cell("yield")
	require.Equal(t, "8.1567", yield.Number.String())
}
