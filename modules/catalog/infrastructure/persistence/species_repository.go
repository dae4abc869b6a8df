package persistence

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/agrovault/trialbase/modules/catalog/domain/entities/species"
	"github.com/agrovault/trialbase/modules/catalog/infrastructure/persistence/models"
	"github.com/agrovault/trialbase/pkg/composables"
	"github.com/agrovault/trialbase/pkg/repo"
)

const (
	speciesFindQuery = `SELECT id, scientific_name, genus, common_name, created_at, updated_at FROM species`

	speciesCountQuery = `SELECT COUNT(*) FROM species`

	speciesInsertQuery = `
		INSERT INTO species (scientific_name, genus, common_name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	speciesUpsertQuery = `
		INSERT INTO species (scientific_name, genus, common_name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (lower(scientific_name)) DO NOTHING
		RETURNING id`
)

type SpeciesRepository struct{}

func NewSpeciesRepository() species.Repository {
	return &SpeciesRepository{}
}

func (r *SpeciesRepository) Count(ctx context.Context) (int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}
	var count int64
	if err := tx.QueryRow(ctx, speciesCountQuery).Scan(&count); err != nil {
		return 0, errors.Wrap(err, "failed to count species")
	}
	return count, nil
}

func (r *SpeciesRepository) GetAll(ctx context.Context) ([]*species.Species, error) {
	return r.querySpecies(ctx, repo.Join(speciesFindQuery, "ORDER BY scientific_name"))
}

func (r *SpeciesRepository) GetByID(ctx context.Context, id int64) (*species.Species, error) {
	found, err := r.querySpecies(ctx, repo.Join(speciesFindQuery, "WHERE id = $1"), id)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, species.ErrNotFound
	}
	return found[0], nil
}

func (r *SpeciesRepository) FindByExactName(ctx context.Context, name string) ([]*species.Species, error) {
	return r.querySpecies(ctx, repo.Join(speciesFindQuery, "WHERE lower(scientific_name) = lower($1)"), name)
}

func (r *SpeciesRepository) Search(ctx context.Context, fragment string, limit int) ([]*species.Species, error) {
	query := repo.Join(
		speciesFindQuery,
		"WHERE scientific_name ILIKE $1 OR common_name ILIKE $1 ORDER BY scientific_name",
		repo.FormatLimitOffset(limit, 0),
	)
	return r.querySpecies(ctx, query, "%"+fragment+"%")
}

func (r *SpeciesRepository) Create(ctx context.Context, data *species.Species) (*species.Species, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	dbSpecies := toDBSpecies(data)
	var id int64
	if err := tx.QueryRow(
		ctx,
		speciesInsertQuery,
		dbSpecies.ScientificName,
		dbSpecies.Genus,
		dbSpecies.CommonName,
		dbSpecies.CreatedAt,
		dbSpecies.UpdatedAt,
	).Scan(&id); err != nil {
		if isUniqueViolation(err) {
			return nil, species.ErrAlreadyExists
		}
		return nil, errors.Wrap(err, "failed to insert species")
	}
	return r.GetByID(ctx, id)
}

func (r *SpeciesRepository) GetOrCreate(ctx context.Context, data *species.Species) (*species.Species, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	dbSpecies := toDBSpecies(data)
	var id int64
	err = tx.QueryRow(
		ctx,
		speciesUpsertQuery,
		dbSpecies.ScientificName,
		dbSpecies.Genus,
		dbSpecies.CommonName,
		dbSpecies.CreatedAt,
		dbSpecies.UpdatedAt,
	).Scan(&id)
	if err == nil {
		return r.GetByID(ctx, id)
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, errors.Wrap(err, "failed to upsert species")
	}
	existing, err := r.FindByExactName(ctx, data.ScientificName())
	if err != nil {
		return nil, err
	}
	if len(existing) == 0 {
		return nil, species.ErrNotFound
	}
	return existing[0], nil
}

func (r *SpeciesRepository) querySpecies(ctx context.Context, query string, args ...interface{}) ([]*species.Species, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get transaction")
	}

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to execute query")
	}
	defer rows.Close()

	var found []*species.Species
	for rows.Next() {
		var s models.Species
		if err := rows.Scan(
			&s.ID,
			&s.ScientificName,
			&s.Genus,
			&s.CommonName,
			&s.CreatedAt,
			&s.UpdatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan species row")
		}
		found = append(found, toDomainSpecies(&s))
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "row iteration error")
	}

	return found, nil
}
