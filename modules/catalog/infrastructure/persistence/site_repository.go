package persistence

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/agrovault/trialbase/modules/catalog/domain/entities/site"
	"github.com/agrovault/trialbase/modules/catalog/infrastructure/persistence/models"
	"github.com/agrovault/trialbase/pkg/composables"
	"github.com/agrovault/trialbase/pkg/repo"
)

const (
	siteFindQuery = `SELECT id, name, city, state, country, latitude, longitude, notes, created_at, updated_at FROM sites`

	siteCountQuery = `SELECT COUNT(*) FROM sites`

	siteInsertQuery = `
		INSERT INTO sites (name, city, state, country, latitude, longitude, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`

	siteUpsertQuery = `
		INSERT INTO sites (name, city, state, country, latitude, longitude, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (lower(name)) DO NOTHING
		RETURNING id`
)

type SiteRepository struct{}

func NewSiteRepository() site.Repository {
	return &SiteRepository{}
}

func (r *SiteRepository) Count(ctx context.Context) (int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}
	var count int64
	if err := tx.QueryRow(ctx, siteCountQuery).Scan(&count); err != nil {
		return 0, errors.Wrap(err, "failed to count sites")
	}
	return count, nil
}

func (r *SiteRepository) GetAll(ctx context.Context) ([]*site.Site, error) {
	return r.querySites(ctx, repo.Join(siteFindQuery, "ORDER BY name"))
}

func (r *SiteRepository) GetByID(ctx context.Context, id int64) (*site.Site, error) {
	sites, err := r.querySites(ctx, repo.Join(siteFindQuery, "WHERE id = $1"), id)
	if err != nil {
		return nil, err
	}
	if len(sites) == 0 {
		return nil, site.ErrNotFound
	}
	return sites[0], nil
}

func (r *SiteRepository) FindByExactName(ctx context.Context, name string) ([]*site.Site, error) {
	return r.querySites(ctx, repo.Join(siteFindQuery, "WHERE lower(name) = lower($1)"), name)
}

func (r *SiteRepository) Search(ctx context.Context, fragment string, limit int) ([]*site.Site, error) {
	query := repo.Join(siteFindQuery, "WHERE name ILIKE $1 ORDER BY name", repo.FormatLimitOffset(limit, 0))
	return r.querySites(ctx, query, "%"+fragment+"%")
}

func (r *SiteRepository) Create(ctx context.Context, data *site.Site) (*site.Site, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	dbSite := toDBSite(data)
	var id int64
	if err := tx.QueryRow(
		ctx,
		siteInsertQuery,
		dbSite.Name,
		dbSite.City,
		dbSite.State,
		dbSite.Country,
		dbSite.Latitude,
		dbSite.Longitude,
		dbSite.Notes,
		dbSite.CreatedAt,
		dbSite.UpdatedAt,
	).Scan(&id); err != nil {
		if isUniqueViolation(err) {
			return nil, site.ErrAlreadyExists
		}
		return nil, errors.Wrap(err, "failed to insert site")
	}
	return r.GetByID(ctx, id)
}

func (r *SiteRepository) GetOrCreate(ctx context.Context, data *site.Site) (*site.Site, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	dbSite := toDBSite(data)
	var id int64
	err = tx.QueryRow(
		ctx,
		siteUpsertQuery,
		dbSite.Name,
		dbSite.City,
		dbSite.State,
		dbSite.Country,
		dbSite.Latitude,
		dbSite.Longitude,
		dbSite.Notes,
		dbSite.CreatedAt,
		dbSite.UpdatedAt,
	).Scan(&id)
	if err == nil {
		return r.GetByID(ctx, id)
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, errors.Wrap(err, "failed to upsert site")
	}
	existing, err := r.FindByExactName(ctx, data.Name())
	if err != nil {
		return nil, err
	}
	if len(existing) == 0 {
		return nil, site.ErrNotFound
	}
	return existing[0], nil
}

func (r *SiteRepository) querySites(ctx context.Context, query string, args ...interface{}) ([]*site.Site, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get transaction")
	}

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to execute query")
	}
	defer rows.Close()

	var sites []*site.Site
	for rows.Next() {
		var s models.Site
		if err := rows.Scan(
			&s.ID,
			&s.Name,
			&s.City,
			&s.State,
			&s.Country,
			&s.Latitude,
			&s.Longitude,
			&s.Notes,
			&s.CreatedAt,
			&s.UpdatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan site row")
		}
		sites = append(sites, toDomainSite(&s))
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "row iteration error")
	}

	return sites, nil
}
