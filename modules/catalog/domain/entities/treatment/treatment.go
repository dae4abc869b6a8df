package treatment

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound      = errors.New("treatment not found")
	ErrAlreadyExists = errors.New("treatment already exists")
)

type Repository interface {
	Count(ctx context.Context) (int64, error)
	GetAll(ctx context.Context) ([]*Treatment, error)
	GetByID(ctx context.Context, id int64) (*Treatment, error)
	FindByExactName(ctx context.Context, name string) ([]*Treatment, error)
	Search(ctx context.Context, fragment string, limit int) ([]*Treatment, error)
	Create(ctx context.Context, data *Treatment) (*Treatment, error)
	GetOrCreate(ctx context.Context, data *Treatment) (*Treatment, error)
}

type Treatment struct {
	id         int64
	name       string
	definition string
	control    bool
	createdAt  time.Time
	updatedAt  time.Time
}

type Option func(*Treatment)

func WithDefinition(definition string) Option {
	return func(t *Treatment) {
		t.definition = definition
	}
}

func WithControl(control bool) Option {
	return func(t *Treatment) {
		t.control = control
	}
}

func New(name string, opts ...Option) *Treatment {
	t := &Treatment{
		name:      name,
		createdAt: time.Now(),
		updatedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func Hydrate(
	id int64,
	name, definition string,
	control bool,
	createdAt, updatedAt time.Time,
) *Treatment {
	return &Treatment{
		id:         id,
		name:       name,
		definition: definition,
		control:    control,
		createdAt:  createdAt,
		updatedAt:  updatedAt,
	}
}

func (t *Treatment) ID() int64 {
	return t.id
}

func (t *Treatment) Name() string {
	return t.name
}

func (t *Treatment) Definition() string {
	return t.definition
}

func (t *Treatment) Control() bool {
	return t.control
}

func (t *Treatment) CreatedAt() time.Time {
	return t.createdAt
}

func (t *Treatment) UpdatedAt() time.Time {
	return t.updatedAt
}
