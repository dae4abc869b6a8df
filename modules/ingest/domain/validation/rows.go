package validation

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/agrovault/trialbase/modules/catalog/domain/resolve"
)

// CitationColumn names the derived citation cell. A row identifies its
// citation either by DOI or by the author/year/title triple; validation
// condenses whichever is present into one reference cell under this
// name so later stages deal with a single citation per row.
const CitationColumn = "citation"

const minCitationYear = 1800

// ValidateRows checks every data row against the schema and resolves
// catalog references through the lookup. Value findings are recovered
// into the summary, never returned as errors; only lookup failures
// (store unavailable) propagate. Re-running against an unchanged
// catalog yields identical results.
func ValidateRows(ctx context.Context, schema *Schema, table *Table, lookup resolve.Lookup, summary *Summary) ([]Row, error) {
	slots := recognizedColumns(schema, table.Headers)

	rows := make([]Row, 0, len(table.Rows))
	for _, raw := range table.Rows {
		row := Row{Line: raw.Line, Cells: make(map[string]Cell, len(slots)+1)}
		for _, slot := range slots {
			value := ""
			if slot.index < len(raw.Values) {
				value = strings.TrimSpace(raw.Values[slot.index])
			}
			row.Cells[slot.column.Name] = buildCell(schema, slot.column, value, raw.Line, summary)
		}
		condenseCitation(&row, summary)
		applyRowRules(schema, &row, summary)
		rows = append(rows, row)
	}

	if err := ResolveRefs(ctx, schema, rows, lookup, summary); err != nil {
		return nil, err
	}
	return rows, nil
}

// ResolveRefs resolves every pending catalog reference cell in place,
// then grades all reference cells of every row. Each distinct value is
// looked up once per kind. Unique matches pass, misses become warnings
// (the entity can be created on insert) and ambiguous matches become
// errors the user must disambiguate. Grading always reflects the cells
// as they stand, so a second pass after defaults filled some references
// reports current findings instead of echoing pre-fill ones.
func ResolveRefs(ctx context.Context, schema *Schema, rows []Row, lookup resolve.Lookup, summary *Summary) error {
	queries := map[resolve.Kind][]string{}
	for _, row := range rows {
		for name, cell := range row.Cells {
			if !pendingRef(cell) {
				continue
			}
			kind, ok := refKind(schema, name)
			if !ok {
				continue
			}
			queries[kind] = append(queries[kind], cell.Raw)
		}
	}

	resolved := make(map[resolve.Kind]map[string]resolve.Resolution, len(queries))
	for kind, qs := range queries {
		results, err := lookup.ResolveAll(ctx, kind, qs)
		if err != nil {
			return errors.Wrapf(err, "failed to resolve %s references", kind)
		}
		resolved[kind] = results
	}

	for i := range rows {
		attachResolutions(schema, &rows[i], resolved)
		reportResolutions(&rows[i], summary)
	}
	return nil
}

// pendingRef reports whether the cell still needs a catalog lookup.
func pendingRef(cell Cell) bool {
	return cell.Kind == CellCatalogRef &&
		!cell.Empty() &&
		cell.Ref == nil &&
		cell.Verdict.Level != LevelError
}

func refKind(schema *Schema, column string) (resolve.Kind, bool) {
	if column == CitationColumn {
		return resolve.KindCitation, true
	}
	col, ok := schema.Column(column)
	if !ok || col.Kind != CellCatalogRef {
		return "", false
	}
	return col.Ref, true
}

func attachResolutions(schema *Schema, row *Row, resolved map[resolve.Kind]map[string]resolve.Resolution) {
	for name, cell := range row.Cells {
		if !pendingRef(cell) {
			continue
		}
		kind, ok := refKind(schema, name)
		if !ok {
			continue
		}
		resolution, ok := resolved[kind][strings.TrimSpace(cell.Raw)]
		if !ok {
			continue
		}
		cell.Ref = &resolution
		row.Cells[name] = cell
	}
}

// reportResolutions turns the resolution status of every reference cell
// into a verdict and a summary finding.
func reportResolutions(row *Row, summary *Summary) {
	names := make([]string, 0, len(row.Cells))
	for name, cell := range row.Cells {
		if cell.Kind == CellCatalogRef && cell.Ref != nil {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	for _, name := range names {
		cell := row.Cells[name]
		switch cell.Ref.Status {
		case resolve.StatusUnique:
			cell.Verdict = OK()
		case resolve.StatusNotFound:
			cell.Verdict = Warn(fmt.Sprintf("no %s matches %q; it can be created on insert", cell.Ref.Kind, cell.Raw))
			summary.Add(KindUnresolved, LevelWarning, Issue{Row: row.Line, Column: name, Message: cell.Verdict.Reason})
		case resolve.StatusAmbiguous:
			cell.Verdict = Fail(fmt.Sprintf("%q matches %d %s entries; pick one", cell.Raw, len(cell.Ref.Candidates), cell.Ref.Kind))
			summary.Add(KindAmbiguous, LevelError, Issue{Row: row.Line, Column: name, Message: cell.Verdict.Reason})
		}
		row.Cells[name] = cell
	}
}

type headerSlot struct {
	index  int
	column Column
}

func recognizedColumns(schema *Schema, headers []string) []headerSlot {
	slots := make([]headerSlot, 0, len(headers))
	for i, h := range headers {
		if col, ok := schema.Column(h); ok {
			slots = append(slots, headerSlot{index: i, column: col})
		}
	}
	return slots
}

// buildCell interprets one raw value. Empty cells pass here; whether an
// empty value is acceptable is a row-level rule.
func buildCell(schema *Schema, col Column, raw string, line int, summary *Summary) Cell {
	cell := Cell{Column: col.Name, Raw: raw, Kind: col.Kind, Verdict: OK()}
	if raw == "" {
		return cell
	}

	switch col.Kind {
	case CellNumeric:
		num, err := decimal.NewFromString(raw)
		if err != nil {
			return failCell(cell, KindValue, fmt.Sprintf("%q is not a number", raw), line, summary)
		}
		if col.Integer && !num.IsInteger() {
			return failCell(cell, KindValue, fmt.Sprintf("%q must be a whole number", raw), line, summary)
		}
		cell.Number = &num
		if col.Variable != "" {
			if v, ok := schema.Dictionary.Lookup(col.Variable); ok && !v.InRange(num) {
				return failCell(cell, KindRange,
					fmt.Sprintf("%s is outside [%s, %s] %s", raw, v.Min, v.Max, v.Units), line, summary)
			}
		}
	case CellDate:
		parsed, ok := parseDate(schema.DateFormats, raw)
		if !ok {
			return failCell(cell, KindValue, fmt.Sprintf("%q does not match an accepted date format", raw), line, summary)
		}
		cell.Date = &parsed
	}
	return cell
}

func failCell(cell Cell, kind IssueKind, message string, line int, summary *Summary) Cell {
	cell.Verdict = Fail(message)
	summary.Add(kind, LevelError, Issue{Row: line, Column: cell.Column, Message: message})
	return cell
}

func parseDate(formats []string, raw string) (time.Time, bool) {
	for _, layout := range formats {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// condenseCitation folds the citation columns into one reference cell.
// A non-empty DOI wins; otherwise the author/year/title triple must be
// jointly present. Partially filled triples are per-member errors.
func condenseCitation(row *Row, summary *Summary) {
	if doi, ok := row.Cells["citation_doi"]; ok && !doi.Empty() {
		row.Cells[CitationColumn] = Cell{Column: CitationColumn, Raw: doi.Raw, Kind: CellCatalogRef, Verdict: OK()}
		return
	}

	members := []string{"citation_author", "citation_year", "citation_title"}
	filled := 0
	broken := false
	parts := make([]string, 0, len(members))
	for _, name := range members {
		cell, ok := row.Cells[name]
		if ok && !cell.Empty() {
			filled++
			parts = append(parts, cell.Raw)
			if cell.Verdict.Level == LevelError {
				broken = true
			}
		}
	}

	switch {
	case filled == len(members):
		if broken {
			return
		}
		query := strings.Join(parts, " ")
		row.Cells[CitationColumn] = Cell{Column: CitationColumn, Raw: query, Kind: CellCatalogRef, Verdict: OK()}
	case filled == 0:
		message := "each row needs a citation DOI or an author/year/title triple"
		summary.Add(KindValue, LevelError, Issue{Row: row.Line, Column: "citation_doi", Message: message})
		if doi, ok := row.Cells["citation_doi"]; ok {
			doi.Verdict = Fail(message)
			row.Cells["citation_doi"] = doi
		}
	default:
		for _, name := range members {
			cell, ok := row.Cells[name]
			if ok && !cell.Empty() {
				continue
			}
			message := "citation author, year and title must be given together"
			summary.Add(KindValue, LevelError, Issue{Row: row.Line, Column: name, Message: message})
			if ok {
				cell.Verdict = Fail(message)
				row.Cells[name] = cell
			}
		}
	}
}

// applyRowRules enforces cross-field constraints that depend on more
// than one cell of the same row.
func applyRowRules(schema *Schema, row *Row, summary *Summary) {
	for _, name := range requiredValueColumns(schema.Kind) {
		cell, ok := row.Cells[name]
		if !ok || cell.Empty() {
			message := fmt.Sprintf("%s requires a value", name)
			summary.Add(KindValue, LevelError, Issue{Row: row.Line, Column: name, Message: message})
			if ok {
				cell.Verdict = Fail(message)
				row.Cells[name] = cell
			}
		}
	}

	if schema.Kind == DatasetTraits {
		checkTrait(schema, row, summary)
	}

	if n, ok := row.Cells["n"]; ok && n.Number != nil {
		if n.Number.LessThan(decimal.NewFromInt(1)) {
			markRange(row, "n", "n must be at least 1", summary)
		}
	}
	if se, ok := row.Cells["SE"]; ok && !se.Empty() && se.Verdict.Level != LevelError {
		if se.Number != nil && se.Number.IsNegative() {
			markRange(row, "SE", "SE cannot be negative", summary)
		}
		n, ok := row.Cells["n"]
		if !ok || n.Number == nil || n.Number.LessThan(decimal.NewFromInt(2)) {
			message := "n must be at least 2 when SE is given"
			summary.Add(KindValue, LevelError, Issue{Row: row.Line, Column: "n", Message: message})
			if ok {
				n.Verdict = Fail(message)
				row.Cells["n"] = n
			}
		}
	}

	if level, ok := row.Cells["access_level"]; ok && level.Number != nil {
		if level.Number.LessThan(decimal.NewFromInt(1)) || level.Number.GreaterThan(decimal.NewFromInt(4)) {
			markRange(row, "access_level", "access_level must be between 1 and 4", summary)
		}
	}

	if year, ok := row.Cells["citation_year"]; ok && year.Number != nil {
		if year.Number.LessThan(decimal.NewFromInt(minCitationYear)) {
			markRange(row, "citation_year", fmt.Sprintf("citation_year must be %d or later", minCitationYear), summary)
		}
	}
}

// checkTrait requires the trait name to exist in the dictionary and
// range-checks the mean against that trait's bounds.
func checkTrait(schema *Schema, row *Row, summary *Summary) {
	trait, ok := row.Cells["trait"]
	if !ok || trait.Empty() {
		return
	}
	variable, known := schema.Dictionary.Lookup(trait.Raw)
	if !known {
		message := fmt.Sprintf("unknown trait %q; not in the variable dictionary", trait.Raw)
		trait.Verdict = Fail(message)
		row.Cells["trait"] = trait
		summary.Add(KindValue, LevelError, Issue{Row: row.Line, Column: "trait", Message: message})
		return
	}
	mean, ok := row.Cells["mean"]
	if !ok || mean.Number == nil || mean.Verdict.Level == LevelError {
		return
	}
	if !variable.InRange(*mean.Number) {
		markRange(row, "mean",
			fmt.Sprintf("%s is outside [%s, %s] %s for trait %s",
				mean.Raw, variable.Min, variable.Max, variable.Units, variable.Name), summary)
	}
}

func markRange(row *Row, column, message string, summary *Summary) {
	cell := row.Cells[column]
	cell.Verdict = Fail(message)
	row.Cells[column] = cell
	summary.Add(KindRange, LevelError, Issue{Row: row.Line, Column: column, Message: message})
}

func requiredValueColumns(kind DatasetKind) []string {
	if kind == DatasetTraits {
		return []string{"trait", "mean"}
	}
	return []string{"yield"}
}
