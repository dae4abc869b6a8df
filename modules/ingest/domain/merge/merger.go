// Package merge fills session defaults into validated rows. It runs
// after row validation so raw validation always sees the user's
// unrounded, unmodified values, and before confirmation so gaps left
// after merging can block the wizard.
package merge

import (
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/agrovault/trialbase/modules/catalog/domain/resolve"
	"github.com/agrovault/trialbase/modules/ingest/domain/aggregates/session"
	"github.com/agrovault/trialbase/modules/ingest/domain/validation"
)

// referenceColumns are the default-eligible catalog reference columns.
var referenceColumns = []struct {
	name string
	kind resolve.Kind
}{
	{"site", resolve.KindSite},
	{"species", resolve.KindSpecies},
	{"treatment", resolve.KindTreatment},
	{"cultivar", resolve.KindCultivar},
}

// requiredForInsert are columns every observation must carry; a row
// leaving one empty after merging cannot be committed.
var requiredForInsert = []string{"site", "species", "access_level"}

// measuredColumns get the session's rounding precision applied.
var measuredColumns = []string{"yield", "mean", "SE"}

// Gap marks a required cell that stayed empty after defaults were
// applied. Gaps block the Confirmed stage.
type Gap struct {
	Row    int    `json:"row"`
	Column string `json:"column"`
}

// Apply substitutes defaults into empty or unresolved default-eligible
// cells and rounds measured values. The input is never mutated and the
// operation is idempotent: applying the same defaults twice changes
// nothing the second time. Substituted reference cells come back with a
// cleared resolution; the caller re-resolves them.
func Apply(rows []validation.Row, defaults session.Defaults) ([]validation.Row, []Gap) {
	out := make([]validation.Row, len(rows))
	var gaps []Gap

	for i, row := range rows {
		merged := validation.Row{Line: row.Line, Cells: make(map[string]validation.Cell, len(row.Cells))}
		for name, cell := range row.Cells {
			merged.Cells[name] = cell
		}

		for _, ref := range referenceColumns {
			fillReference(&merged, ref.name, defaults.Reference(ref.name))
		}
		fillAccessLevel(&merged, defaults.AccessLevel)
		fillDate(&merged, defaults)
		roundMeasured(&merged, defaults.Rounding)

		for _, name := range requiredForInsert {
			if cell, ok := merged.Cells[name]; !ok || cell.Empty() {
				gaps = append(gaps, Gap{Row: merged.Line, Column: name})
			}
		}
		out[i] = merged
	}
	return out, gaps
}

// fillReference substitutes the default into a reference cell that is
// empty or whose lookup found nothing. Ambiguous and otherwise failed
// cells are left for the user to fix.
func fillReference(row *validation.Row, column, fallback string) {
	if fallback == "" {
		return
	}
	cell, ok := row.Cells[column]
	if !ok {
		row.Cells[column] = validation.Cell{
			Column:  column,
			Raw:     fallback,
			Kind:    validation.CellCatalogRef,
			Verdict: validation.OK(),
		}
		return
	}
	unresolved := cell.Ref != nil && cell.Ref.Status == resolve.StatusNotFound
	if !cell.Empty() && !unresolved {
		return
	}
	if cell.Raw == fallback {
		return
	}
	cell.Raw = fallback
	cell.Ref = nil
	cell.Verdict = validation.OK()
	row.Cells[column] = cell
}

func fillAccessLevel(row *validation.Row, fallback int) {
	if fallback == 0 {
		return
	}
	cell, ok := row.Cells["access_level"]
	if ok && !cell.Empty() {
		return
	}
	level := decimal.NewFromInt(int64(fallback))
	row.Cells["access_level"] = validation.Cell{
		Column:  "access_level",
		Raw:     strconv.Itoa(fallback),
		Kind:    validation.CellNumeric,
		Number:  &level,
		Verdict: validation.OK(),
	}
}

func fillDate(row *validation.Row, defaults session.Defaults) {
	if defaults.Date == nil {
		return
	}
	cell, ok := row.Cells["date"]
	if ok && !cell.Empty() {
		return
	}
	date := *defaults.Date
	row.Cells["date"] = validation.Cell{
		Column:  "date",
		Raw:     date.Format(validation.DefaultDateFormat),
		Kind:    validation.CellDate,
		Date:    &date,
		Verdict: validation.OK(),
	}
}

// roundMeasured rounds measured values to the chosen precision. Raw
// keeps the original text so the user sees what they typed.
func roundMeasured(row *validation.Row, places int) {
	for _, name := range measuredColumns {
		cell, ok := row.Cells[name]
		if !ok || cell.Number == nil {
			continue
		}
		rounded := cell.Number.Round(int32(places))
		cell.Number = &rounded
		row.Cells[name] = cell
	}
}
