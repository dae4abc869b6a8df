package session

import "time"

const (
	// DefaultAccessLevel is the most restricted tier; new sessions start
	// here so nothing becomes public by omission.
	DefaultAccessLevel = 4
	// DefaultRounding is the decimal precision applied to measured
	// values during the merge stage.
	DefaultRounding = 2
)

// Defaults are the global values a user enters once per wizard run.
// Each is substituted into any row that leaves the matching column
// empty or unresolved; zero values mean "no default".
type Defaults struct {
	Site        string     `json:"site,omitempty"`
	Species     string     `json:"species,omitempty"`
	Treatment   string     `json:"treatment,omitempty"`
	Cultivar    string     `json:"cultivar,omitempty"`
	AccessLevel int        `json:"access_level,omitempty"`
	Date        *time.Time `json:"date,omitempty"`
	Rounding    int        `json:"rounding,omitempty"`
}

// Reference returns the default for a catalog reference column.
func (d Defaults) Reference(column string) string {
	switch column {
	case "site":
		return d.Site
	case "species":
		return d.Species
	case "treatment":
		return d.Treatment
	case "cultivar":
		return d.Cultivar
	default:
		return ""
	}
}
