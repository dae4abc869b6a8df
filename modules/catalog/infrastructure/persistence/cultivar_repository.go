package persistence

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/agrovault/trialbase/modules/catalog/domain/entities/cultivar"
	"github.com/agrovault/trialbase/modules/catalog/infrastructure/persistence/models"
	"github.com/agrovault/trialbase/pkg/composables"
	"github.com/agrovault/trialbase/pkg/repo"
)

const (
	cultivarFindQuery = `SELECT id, species_id, name, ecotype, created_at, updated_at FROM cultivars`

	cultivarCountQuery = `SELECT COUNT(*) FROM cultivars`

	cultivarInsertQuery = `
		INSERT INTO cultivars (species_id, name, ecotype, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	cultivarUpsertQuery = `
		INSERT INTO cultivars (species_id, name, ecotype, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (species_id, lower(name)) DO NOTHING
		RETURNING id`
)

type CultivarRepository struct{}

func NewCultivarRepository() cultivar.Repository {
	return &CultivarRepository{}
}

func (r *CultivarRepository) Count(ctx context.Context) (int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}
	var count int64
	if err := tx.QueryRow(ctx, cultivarCountQuery).Scan(&count); err != nil {
		return 0, errors.Wrap(err, "failed to count cultivars")
	}
	return count, nil
}

func (r *CultivarRepository) GetAll(ctx context.Context) ([]*cultivar.Cultivar, error) {
	return r.queryCultivars(ctx, repo.Join(cultivarFindQuery, "ORDER BY name"))
}

func (r *CultivarRepository) GetByID(ctx context.Context, id int64) (*cultivar.Cultivar, error) {
	cultivars, err := r.queryCultivars(ctx, repo.Join(cultivarFindQuery, "WHERE id = $1"), id)
	if err != nil {
		return nil, err
	}
	if len(cultivars) == 0 {
		return nil, cultivar.ErrNotFound
	}
	return cultivars[0], nil
}

func (r *CultivarRepository) FindByExactName(ctx context.Context, speciesID int64, name string) ([]*cultivar.Cultivar, error) {
	if speciesID == 0 {
		return r.queryCultivars(ctx, repo.Join(cultivarFindQuery, "WHERE lower(name) = lower($1)"), name)
	}
	query := repo.Join(cultivarFindQuery, "WHERE species_id = $1 AND lower(name) = lower($2)")
	return r.queryCultivars(ctx, query, speciesID, name)
}

func (r *CultivarRepository) Search(ctx context.Context, speciesID int64, fragment string, limit int) ([]*cultivar.Cultivar, error) {
	if speciesID == 0 {
		query := repo.Join(cultivarFindQuery, "WHERE name ILIKE $1 ORDER BY name", repo.FormatLimitOffset(limit, 0))
		return r.queryCultivars(ctx, query, "%"+fragment+"%")
	}
	query := repo.Join(
		cultivarFindQuery,
		"WHERE species_id = $1 AND name ILIKE $2 ORDER BY name",
		repo.FormatLimitOffset(limit, 0),
	)
	return r.queryCultivars(ctx, query, speciesID, "%"+fragment+"%")
}

func (r *CultivarRepository) Create(ctx context.Context, data *cultivar.Cultivar) (*cultivar.Cultivar, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	dbCultivar := toDBCultivar(data)
	var id int64
	if err := tx.QueryRow(
		ctx,
		cultivarInsertQuery,
		dbCultivar.SpeciesID,
		dbCultivar.Name,
		dbCultivar.Ecotype,
		dbCultivar.CreatedAt,
		dbCultivar.UpdatedAt,
	).Scan(&id); err != nil {
		if isUniqueViolation(err) {
			return nil, cultivar.ErrAlreadyExists
		}
		return nil, errors.Wrap(err, "failed to insert cultivar")
	}
	return r.GetByID(ctx, id)
}

func (r *CultivarRepository) GetOrCreate(ctx context.Context, data *cultivar.Cultivar) (*cultivar.Cultivar, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	dbCultivar := toDBCultivar(data)
	var id int64
	err = tx.QueryRow(
		ctx,
		cultivarUpsertQuery,
		dbCultivar.SpeciesID,
		dbCultivar.Name,
		dbCultivar.Ecotype,
		dbCultivar.CreatedAt,
		dbCultivar.UpdatedAt,
	).Scan(&id)
	if err == nil {
		return r.GetByID(ctx, id)
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, errors.Wrap(err, "failed to upsert cultivar")
	}
	existing, err := r.FindByExactName(ctx, data.SpeciesID(), data.Name())
	if err != nil {
		return nil, err
	}
	if len(existing) == 0 {
		return nil, cultivar.ErrNotFound
	}
	return existing[0], nil
}

func (r *CultivarRepository) queryCultivars(ctx context.Context, query string, args ...interface{}) ([]*cultivar.Cultivar, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get transaction")
	}

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to execute query")
	}
	defer rows.Close()

	var cultivars []*cultivar.Cultivar
	for rows.Next() {
		var c models.Cultivar
		if err := rows.Scan(
			&c.ID,
			&c.SpeciesID,
			&c.Name,
			&c.Ecotype,
			&c.CreatedAt,
			&c.UpdatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan cultivar row")
		}
		cultivars = append(cultivars, toDomainCultivar(&c))
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "row iteration error")
	}

	return cultivars, nil
}
