package cultivar

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound      = errors.New("cultivar not found")
	ErrAlreadyExists = errors.New("cultivar already exists")
)

type Repository interface {
	Count(ctx context.Context) (int64, error)
	GetAll(ctx context.Context) ([]*Cultivar, error)
	GetByID(ctx context.Context, id int64) (*Cultivar, error)
	// FindByExactName matches the cultivar name case-insensitively;
	// speciesID zero matches across all species.
	FindByExactName(ctx context.Context, speciesID int64, name string) ([]*Cultivar, error)
	Search(ctx context.Context, speciesID int64, fragment string, limit int) ([]*Cultivar, error)
	Create(ctx context.Context, data *Cultivar) (*Cultivar, error)
	GetOrCreate(ctx context.Context, data *Cultivar) (*Cultivar, error)
}

type Cultivar struct {
	id        int64
	speciesID int64
	name      string
	ecotype   string
	createdAt time.Time
	updatedAt time.Time
}

type Option func(*Cultivar)

func WithEcotype(ecotype string) Option {
	return func(c *Cultivar) {
		c.ecotype = ecotype
	}
}

func New(speciesID int64, name string, opts ...Option) *Cultivar {
	c := &Cultivar{
		speciesID: speciesID,
		name:      name,
		createdAt: time.Now(),
		updatedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func Hydrate(
	id, speciesID int64,
	name, ecotype string,
	createdAt, updatedAt time.Time,
) *Cultivar {
	return &Cultivar{
		id:        id,
		speciesID: speciesID,
		name:      name,
		ecotype:   ecotype,
		createdAt: createdAt,
		updatedAt: updatedAt,
	}
}

func (c *Cultivar) ID() int64 {
	return c.id
}

func (c *Cultivar) SpeciesID() int64 {
	return c.speciesID
}

func (c *Cultivar) Name() string {
	return c.name
}

func (c *Cultivar) Ecotype() string {
	return c.ecotype
}

func (c *Cultivar) CreatedAt() time.Time {
	return c.createdAt
}

func (c *Cultivar) UpdatedAt() time.Time {
	return c.updatedAt
}
