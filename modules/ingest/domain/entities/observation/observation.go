package observation

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var ErrNotFound = errors.New("observation not found")

// Kind distinguishes harvested-yield records from trait measurements.
type Kind string

const (
	KindYield Kind = "yield"
	KindTrait Kind = "trait"
)

type Repository interface {
	// CreateMany inserts the batch within the caller's transaction and
	// returns the stored rows with identities assigned.
	CreateMany(ctx context.Context, data []*Observation) ([]*Observation, error)
	CountBySession(ctx context.Context, sessionID uuid.UUID) (int64, error)
	FindBySession(ctx context.Context, sessionID uuid.UUID) ([]*Observation, error)
}

// Observation is one committed measurement row. Trait carries the
// variable name; yield uploads always store it as "yield".
type Observation struct {
	id          int64
	sessionID   uuid.UUID
	kind        Kind
	trait       string
	value       decimal.Decimal
	n           *int
	stderr      *decimal.Decimal
	siteID      int64
	speciesID   int64
	citationID  int64
	cultivarID  *int64
	treatmentID *int64
	date        *time.Time
	accessLevel int
	notes       string
	checked     bool
	createdAt   time.Time
	updatedAt   time.Time
}

type Option func(*Observation)

func WithN(n int) Option {
	return func(o *Observation) {
		o.n = &n
	}
}

func WithStdErr(se decimal.Decimal) Option {
	return func(o *Observation) {
		o.stderr = &se
	}
}

func WithCultivarID(id int64) Option {
	return func(o *Observation) {
		o.cultivarID = &id
	}
}

func WithTreatmentID(id int64) Option {
	return func(o *Observation) {
		o.treatmentID = &id
	}
}

func WithDate(date time.Time) Option {
	return func(o *Observation) {
		o.date = &date
	}
}

func WithNotes(notes string) Option {
	return func(o *Observation) {
		o.notes = notes
	}
}

func WithChecked(checked bool) Option {
	return func(o *Observation) {
		o.checked = checked
	}
}

func New(
	sessionID uuid.UUID,
	kind Kind,
	trait string,
	value decimal.Decimal,
	siteID, speciesID, citationID int64,
	accessLevel int,
	opts ...Option,
) *Observation {
	o := &Observation{
		sessionID:   sessionID,
		kind:        kind,
		trait:       trait,
		value:       value,
		siteID:      siteID,
		speciesID:   speciesID,
		citationID:  citationID,
		accessLevel: accessLevel,
		createdAt:   time.Now(),
		updatedAt:   time.Now(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func Hydrate(
	id int64,
	sessionID uuid.UUID,
	kind Kind,
	trait string,
	value decimal.Decimal,
	n *int,
	stderr *decimal.Decimal,
	siteID, speciesID, citationID int64,
	cultivarID, treatmentID *int64,
	date *time.Time,
	accessLevel int,
	notes string,
	checked bool,
	createdAt, updatedAt time.Time,
) *Observation {
	return &Observation{
		id:          id,
		sessionID:   sessionID,
		kind:        kind,
		trait:       trait,
		value:       value,
		n:           n,
		stderr:      stderr,
		siteID:      siteID,
		speciesID:   speciesID,
		citationID:  citationID,
		cultivarID:  cultivarID,
		treatmentID: treatmentID,
		date:        date,
		accessLevel: accessLevel,
		notes:       notes,
		checked:     checked,
		createdAt:   createdAt,
		updatedAt:   updatedAt,
	}
}

func (o *Observation) ID() int64 {
	return o.id
}

func (o *Observation) SessionID() uuid.UUID {
	return o.sessionID
}

func (o *Observation) Kind() Kind {
	return o.kind
}

func (o *Observation) Trait() string {
	return o.trait
}

func (o *Observation) Value() decimal.Decimal {
	return o.value
}

func (o *Observation) N() *int {
	return o.n
}

func (o *Observation) StdErr() *decimal.Decimal {
	return o.stderr
}

func (o *Observation) SiteID() int64 {
	return o.siteID
}

func (o *Observation) SpeciesID() int64 {
	return o.speciesID
}

func (o *Observation) CitationID() int64 {
	return o.citationID
}

func (o *Observation) CultivarID() *int64 {
	return o.cultivarID
}

func (o *Observation) TreatmentID() *int64 {
	return o.treatmentID
}

func (o *Observation) Date() *time.Time {
	return o.date
}

func (o *Observation) AccessLevel() int {
	return o.accessLevel
}

func (o *Observation) Notes() string {
	return o.notes
}

func (o *Observation) Checked() bool {
	return o.checked
}

func (o *Observation) CreatedAt() time.Time {
	return o.createdAt
}

func (o *Observation) UpdatedAt() time.Time {
	return o.updatedAt
}
