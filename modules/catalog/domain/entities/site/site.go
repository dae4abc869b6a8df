package site

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound      = errors.New("site not found")
	ErrAlreadyExists = errors.New("site already exists")
)

type Repository interface {
	Count(ctx context.Context) (int64, error)
	GetAll(ctx context.Context) ([]*Site, error)
	GetByID(ctx context.Context, id int64) (*Site, error)
	FindByExactName(ctx context.Context, name string) ([]*Site, error)
	Search(ctx context.Context, fragment string, limit int) ([]*Site, error)
	Create(ctx context.Context, data *Site) (*Site, error)
	// GetOrCreate inserts the site unless one with the same name already
	// exists, then returns the stored row either way. Safe under
	// concurrent inserts.
	GetOrCreate(ctx context.Context, data *Site) (*Site, error)
}

type Site struct {
	id        int64
	name      string
	city      string
	state     string
	country   string
	latitude  *decimal.Decimal
	longitude *decimal.Decimal
	notes     string
	createdAt time.Time
	updatedAt time.Time
}

type Option func(*Site)

func WithCity(city string) Option {
	return func(s *Site) {
		s.city = city
	}
}

func WithState(state string) Option {
	return func(s *Site) {
		s.state = state
	}
}

func WithCountry(country string) Option {
	return func(s *Site) {
		s.country = country
	}
}

func WithCoordinates(lat, lon decimal.Decimal) Option {
	return func(s *Site) {
		s.latitude = &lat
		s.longitude = &lon
	}
}

func WithNotes(notes string) Option {
	return func(s *Site) {
		s.notes = notes
	}
}

func New(name string, opts ...Option) *Site {
	s := &Site{
		name:      name,
		createdAt: time.Now(),
		updatedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func Hydrate(
	id int64,
	name, city, state, country string,
	latitude, longitude *decimal.Decimal,
	notes string,
	createdAt, updatedAt time.Time,
) *Site {
	return &Site{
		id:        id,
		name:      name,
		city:      city,
		state:     state,
		country:   country,
		latitude:  latitude,
		longitude: longitude,
		notes:     notes,
		createdAt: createdAt,
		updatedAt: updatedAt,
	}
}

func (s *Site) ID() int64 {
	return s.id
}

func (s *Site) Name() string {
	return s.name
}

func (s *Site) City() string {
	return s.city
}

func (s *Site) State() string {
	return s.state
}

func (s *Site) Country() string {
	return s.country
}

func (s *Site) Latitude() *decimal.Decimal {
	return s.latitude
}

func (s *Site) Longitude() *decimal.Decimal {
	return s.longitude
}

func (s *Site) Notes() string {
	return s.notes
}

func (s *Site) CreatedAt() time.Time {
	return s.createdAt
}

func (s *Site) UpdatedAt() time.Time {
	return s.updatedAt
}
