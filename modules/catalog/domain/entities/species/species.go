package species

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound      = errors.New("species not found")
	ErrAlreadyExists = errors.New("species already exists")
)

type Repository interface {
	Count(ctx context.Context) (int64, error)
	GetAll(ctx context.Context) ([]*Species, error)
	GetByID(ctx context.Context, id int64) (*Species, error)
	FindByExactName(ctx context.Context, name string) ([]*Species, error)
	Search(ctx context.Context, fragment string, limit int) ([]*Species, error)
	Create(ctx context.Context, data *Species) (*Species, error)
	GetOrCreate(ctx context.Context, data *Species) (*Species, error)
}

// Species is identified by its scientific (latin binomial) name; the
// common name is display sugar and never used for resolution.
type Species struct {
	id             int64
	scientificName string
	genus          string
	commonName     string
	createdAt      time.Time
	updatedAt      time.Time
}

type Option func(*Species)

func WithGenus(genus string) Option {
	return func(s *Species) {
		s.genus = genus
	}
}

func WithCommonName(commonName string) Option {
	return func(s *Species) {
		s.commonName = commonName
	}
}

func New(scientificName string, opts ...Option) *Species {
	s := &Species{
		scientificName: scientificName,
		createdAt:      time.Now(),
		updatedAt:      time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func Hydrate(
	id int64,
	scientificName, genus, commonName string,
	createdAt, updatedAt time.Time,
) *Species {
	return &Species{
		id:             id,
		scientificName: scientificName,
		genus:          genus,
		commonName:     commonName,
		createdAt:      createdAt,
		updatedAt:      updatedAt,
	}
}

func (s *Species) ID() int64 {
	return s.id
}

func (s *Species) ScientificName() string {
	return s.scientificName
}

func (s *Species) Genus() string {
	return s.genus
}

func (s *Species) CommonName() string {
	return s.commonName
}

func (s *Species) CreatedAt() time.Time {
	return s.createdAt
}

func (s *Species) UpdatedAt() time.Time {
	return s.updatedAt
}
