package persistence

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/agrovault/trialbase/modules/catalog/domain/entities/citation"
	"github.com/agrovault/trialbase/modules/catalog/infrastructure/persistence/models"
	"github.com/agrovault/trialbase/pkg/composables"
	"github.com/agrovault/trialbase/pkg/repo"
)

const (
	citationFindQuery = `SELECT id, author, year, title, journal, doi, created_at, updated_at FROM citations`

	citationCountQuery = `SELECT COUNT(*) FROM citations`

	// citationLabel is the "Author Year Title" form references use.
	citationLabel = `(author || ' ' || year::text || ' ' || title)`

	citationInsertQuery = `
		INSERT INTO citations (author, year, title, journal, doi, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	citationUpsertQuery = `
		INSERT INTO citations (author, year, title, journal, doi, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (lower(author), year, lower(title)) DO NOTHING
		RETURNING id`
)

type CitationRepository struct{}

func NewCitationRepository() citation.Repository {
	return &CitationRepository{}
}

func (r *CitationRepository) Count(ctx context.Context) (int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}
	var count int64
	if err := tx.QueryRow(ctx, citationCountQuery).Scan(&count); err != nil {
		return 0, errors.Wrap(err, "failed to count citations")
	}
	return count, nil
}

func (r *CitationRepository) GetAll(ctx context.Context) ([]*citation.Citation, error) {
	return r.queryCitations(ctx, repo.Join(citationFindQuery, "ORDER BY author, year"))
}

func (r *CitationRepository) GetByID(ctx context.Context, id int64) (*citation.Citation, error) {
	citations, err := r.queryCitations(ctx, repo.Join(citationFindQuery, "WHERE id = $1"), id)
	if err != nil {
		return nil, err
	}
	if len(citations) == 0 {
		return nil, citation.ErrNotFound
	}
	return citations[0], nil
}

func (r *CitationRepository) FindByDOI(ctx context.Context, doi string) (*citation.Citation, error) {
	citations, err := r.queryCitations(ctx, repo.Join(citationFindQuery, "WHERE lower(doi) = lower($1)"), doi)
	if err != nil {
		return nil, err
	}
	if len(citations) == 0 {
		return nil, citation.ErrNotFound
	}
	return citations[0], nil
}

// FindByExactName matches the "Author Year Title" label case-insensitively.
func (r *CitationRepository) FindByExactName(ctx context.Context, name string) ([]*citation.Citation, error) {
	query := repo.Join(citationFindQuery, "WHERE lower"+citationLabel+" = lower($1)")
	return r.queryCitations(ctx, query, name)
}

func (r *CitationRepository) Search(ctx context.Context, fragment string, limit int) ([]*citation.Citation, error) {
	query := repo.Join(
		citationFindQuery,
		"WHERE "+citationLabel+" ILIKE $1 OR doi ILIKE $1 ORDER BY author, year",
		repo.FormatLimitOffset(limit, 0),
	)
	return r.queryCitations(ctx, query, "%"+fragment+"%")
}

func (r *CitationRepository) Create(ctx context.Context, data *citation.Citation) (*citation.Citation, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	dbCitation := toDBCitation(data)
	var id int64
	if err := tx.QueryRow(
		ctx,
		citationInsertQuery,
		dbCitation.Author,
		dbCitation.Year,
		dbCitation.Title,
		dbCitation.Journal,
		dbCitation.DOI,
		dbCitation.CreatedAt,
		dbCitation.UpdatedAt,
	).Scan(&id); err != nil {
		if isUniqueViolation(err) {
			return nil, citation.ErrAlreadyExists
		}
		return nil, errors.Wrap(err, "failed to insert citation")
	}
	return r.GetByID(ctx, id)
}

func (r *CitationRepository) GetOrCreate(ctx context.Context, data *citation.Citation) (*citation.Citation, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	dbCitation := toDBCitation(data)
	var id int64
	err = tx.QueryRow(
		ctx,
		citationUpsertQuery,
		dbCitation.Author,
		dbCitation.Year,
		dbCitation.Title,
		dbCitation.Journal,
		dbCitation.DOI,
		dbCitation.CreatedAt,
		dbCitation.UpdatedAt,
	).Scan(&id)
	if err == nil {
		return r.GetByID(ctx, id)
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, errors.Wrap(err, "failed to upsert citation")
	}
	existing, err := r.FindByExactName(ctx, data.Label())
	if err != nil {
		return nil, err
	}
	if len(existing) == 0 {
		return nil, citation.ErrNotFound
	}
	return existing[0], nil
}

func (r *CitationRepository) queryCitations(ctx context.Context, query string, args ...interface{}) ([]*citation.Citation, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get transaction")
	}

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to execute query")
	}
	defer rows.Close()

	var citations []*citation.Citation
	for rows.Next() {
		var c models.Citation
		if err := rows.Scan(
			&c.ID,
			&c.Author,
			&c.Year,
			&c.Title,
			&c.Journal,
			&c.DOI,
			&c.CreatedAt,
			&c.UpdatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan citation row")
		}
		citations = append(citations, toDomainCitation(&c))
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "row iteration error")
	}

	return citations, nil
}
