// Package resolve defines the outcome types produced when free-text
// catalog references are matched against stored entities.
package resolve

import "context"

// Kind names the catalog an input string is resolved against.
type Kind string

const (
	KindSite      Kind = "site"
	KindSpecies   Kind = "species"
	KindCitation  Kind = "citation"
	KindCultivar  Kind = "cultivar"
	KindTreatment Kind = "treatment"
)

func (k Kind) IsValid() bool {
	switch k {
	case KindSite, KindSpecies, KindCitation, KindCultivar, KindTreatment:
		return true
	}
	return false
}

// Status classifies how an input matched the catalog.
type Status string

const (
	// StatusUnique means exactly one entity matched and its ID is usable.
	StatusUnique Status = "unique"
	// StatusAmbiguous means several entities matched equally well and a
	// human has to pick one.
	StatusAmbiguous Status = "ambiguous"
	// StatusNotFound means nothing matched; the value may name a new
	// entity to be created on commit.
	StatusNotFound Status = "not_found"
)

// Candidate is one possible match. Candidate lists are ordered best
// match first; Score is the fuzzy edit distance, lower is closer.
type Candidate struct {
	ID    int64  `json:"id"`
	Label string `json:"label"`
	Score int    `json:"score"`
}

// Resolution is the result of resolving a single query string.
// Match is set only for StatusUnique.
type Resolution struct {
	Kind       Kind        `json:"kind"`
	Query      string      `json:"query"`
	Status     Status      `json:"status"`
	Match      *Candidate  `json:"match,omitempty"`
	Candidates []Candidate `json:"candidates,omitempty"`
}

func Unique(kind Kind, query string, id int64, label string) Resolution {
	match := Candidate{ID: id, Label: label}
	return Resolution{
		Kind:       kind,
		Query:      query,
		Status:     StatusUnique,
		Match:      &match,
		Candidates: []Candidate{match},
	}
}

func Ambiguous(kind Kind, query string, candidates []Candidate) Resolution {
	return Resolution{
		Kind:       kind,
		Query:      query,
		Status:     StatusAmbiguous,
		Candidates: candidates,
	}
}

func NotFound(kind Kind, query string) Resolution {
	return Resolution{
		Kind:   kind,
		Query:  query,
		Status: StatusNotFound,
	}
}

// Lookup resolves free-text references against one catalog kind.
// Implementations must treat queries case-insensitively and prefer
// exact name matches over fuzzy ones.
type Lookup interface {
	Resolve(ctx context.Context, kind Kind, query string) (Resolution, error)
	ResolveAll(ctx context.Context, kind Kind, queries []string) (map[string]Resolution, error)
}
