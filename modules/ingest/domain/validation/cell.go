package validation

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/agrovault/trialbase/modules/catalog/domain/resolve"
)

// Cell is one validated value. Exactly one of Number, Date or Ref is
// populated depending on Kind; text cells keep only Raw.
type Cell struct {
	Column  string              `json:"column"`
	Raw     string              `json:"raw"`
	Kind    CellKind            `json:"kind"`
	Number  *decimal.Decimal    `json:"number,omitempty"`
	Date    *time.Time          `json:"date,omitempty"`
	Ref     *resolve.Resolution `json:"ref,omitempty"`
	Verdict Verdict             `json:"verdict"`
}

// Empty reports whether the cell carries no value. Empty cells are
// candidates for global defaults, not errors.
func (c Cell) Empty() bool {
	return strings.TrimSpace(c.Raw) == ""
}

// Resolved reports whether a catalog reference cell points at exactly
// one entity.
func (c Cell) Resolved() bool {
	return c.Ref != nil && c.Ref.Status == resolve.StatusUnique
}

// Row is one validated input line. Cells are keyed by canonical column
// name; Line is the 1-based position in the file, the header being
// line 1.
type Row struct {
	Line  int             `json:"line"`
	Cells map[string]Cell `json:"cells"`
}

// Cell returns the named cell if the row carries it.
func (r Row) Cell(column string) (Cell, bool) {
	c, ok := r.Cells[column]
	return c, ok
}

// HasErrors reports whether any cell in the row failed validation.
func (r Row) HasErrors() bool {
	for _, c := range r.Cells {
		if c.Verdict.Level == LevelError {
			return true
		}
	}
	return false
}
