package citation

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound      = errors.New("citation not found")
	ErrAlreadyExists = errors.New("citation already exists")
)

type Repository interface {
	Count(ctx context.Context) (int64, error)
	GetAll(ctx context.Context) ([]*Citation, error)
	GetByID(ctx context.Context, id int64) (*Citation, error)
	FindByDOI(ctx context.Context, doi string) (*Citation, error)
	FindByExactName(ctx context.Context, name string) ([]*Citation, error)
	Search(ctx context.Context, fragment string, limit int) ([]*Citation, error)
	Create(ctx context.Context, data *Citation) (*Citation, error)
	GetOrCreate(ctx context.Context, data *Citation) (*Citation, error)
}

type Citation struct {
	id        int64
	author    string
	year      int
	title     string
	journal   string
	doi       *string
	createdAt time.Time
	updatedAt time.Time
}

type Option func(*Citation)

func WithJournal(journal string) Option {
	return func(c *Citation) {
		c.journal = journal
	}
}

func WithDOI(doi string) Option {
	return func(c *Citation) {
		if doi != "" {
			c.doi = &doi
		}
	}
}

func New(author string, year int, title string, opts ...Option) *Citation {
	c := &Citation{
		author:    author,
		year:      year,
		title:     title,
		createdAt: time.Now(),
		updatedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func Hydrate(
	id int64,
	author string,
	year int,
	title, journal string,
	doi *string,
	createdAt, updatedAt time.Time,
) *Citation {
	return &Citation{
		id:        id,
		author:    author,
		year:      year,
		title:     title,
		journal:   journal,
		doi:       doi,
		createdAt: createdAt,
		updatedAt: updatedAt,
	}
}

func (c *Citation) ID() int64 {
	return c.id
}

func (c *Citation) Author() string {
	return c.author
}

func (c *Citation) Year() int {
	return c.year
}

func (c *Citation) Title() string {
	return c.title
}

func (c *Citation) Journal() string {
	return c.journal
}

func (c *Citation) DOI() *string {
	return c.doi
}

// Label is the human-readable "Author Year Title" form used for
// resolution and candidate lists.
func (c *Citation) Label() string {
	return fmt.Sprintf("%s %d %s", c.author, c.year, c.title)
}

func (c *Citation) CreatedAt() time.Time {
	return c.createdAt
}

func (c *Citation) UpdatedAt() time.Time {
	return c.updatedAt
}
