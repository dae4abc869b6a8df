package persistence

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/agrovault/trialbase/modules/catalog/domain/entities/treatment"
	"github.com/agrovault/trialbase/modules/catalog/infrastructure/persistence/models"
	"github.com/agrovault/trialbase/pkg/composables"
	"github.com/agrovault/trialbase/pkg/repo"
)

const (
	treatmentFindQuery = `SELECT id, name, definition, control, created_at, updated_at FROM treatments`

	treatmentCountQuery = `SELECT COUNT(*) FROM treatments`

	treatmentInsertQuery = `
		INSERT INTO treatments (name, definition, control, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	treatmentUpsertQuery = `
		INSERT INTO treatments (name, definition, control, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (lower(name)) DO NOTHING
		RETURNING id`
)

type TreatmentRepository struct{}

func NewTreatmentRepository() treatment.Repository {
	return &TreatmentRepository{}
}

func (r *TreatmentRepository) Count(ctx context.Context) (int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}
	var count int64
	if err := tx.QueryRow(ctx, treatmentCountQuery).Scan(&count); err != nil {
		return 0, errors.Wrap(err, "failed to count treatments")
	}
	return count, nil
}

func (r *TreatmentRepository) GetAll(ctx context.Context) ([]*treatment.Treatment, error) {
	return r.queryTreatments(ctx, repo.Join(treatmentFindQuery, "ORDER BY name"))
}

func (r *TreatmentRepository) GetByID(ctx context.Context, id int64) (*treatment.Treatment, error) {
	treatments, err := r.queryTreatments(ctx, repo.Join(treatmentFindQuery, "WHERE id = $1"), id)
	if err != nil {
		return nil, err
	}
	if len(treatments) == 0 {
		return nil, treatment.ErrNotFound
	}
	return treatments[0], nil
}

func (r *TreatmentRepository) FindByExactName(ctx context.Context, name string) ([]*treatment.Treatment, error) {
	return r.queryTreatments(ctx, repo.Join(treatmentFindQuery, "WHERE lower(name) = lower($1)"), name)
}

func (r *TreatmentRepository) Search(ctx context.Context, fragment string, limit int) ([]*treatment.Treatment, error) {
	query := repo.Join(
		treatmentFindQuery,
		"WHERE name ILIKE $1 OR definition ILIKE $1 ORDER BY name",
		repo.FormatLimitOffset(limit, 0),
	)
	return r.queryTreatments(ctx, query, "%"+fragment+"%")
}

func (r *TreatmentRepository) Create(ctx context.Context, data *treatment.Treatment) (*treatment.Treatment, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	dbTreatment := toDBTreatment(data)
	var id int64
	if err := tx.QueryRow(
		ctx,
		treatmentInsertQuery,
		dbTreatment.Name,
		dbTreatment.Definition,
		dbTreatment.Control,
		dbTreatment.CreatedAt,
		dbTreatment.UpdatedAt,
	).Scan(&id); err != nil {
		if isUniqueViolation(err) {
			return nil, treatment.ErrAlreadyExists
		}
		return nil, errors.Wrap(err, "failed to insert treatment")
	}
	return r.GetByID(ctx, id)
}

func (r *TreatmentRepository) GetOrCreate(ctx context.Context, data *treatment.Treatment) (*treatment.Treatment, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	dbTreatment := toDBTreatment(data)
	var id int64
	err = tx.QueryRow(
		ctx,
		treatmentUpsertQuery,
		dbTreatment.Name,
		dbTreatment.Definition,
		dbTreatment.Control,
		dbTreatment.CreatedAt,
		dbTreatment.UpdatedAt,
	).Scan(&id)
	if err == nil {
		return r.GetByID(ctx, id)
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, errors.Wrap(err, "failed to upsert treatment")
	}
	existing, err := r.FindByExactName(ctx, data.Name())
	if err != nil {
		return nil, err
	}
	if len(existing) == 0 {
		return nil, treatment.ErrNotFound
	}
	return existing[0], nil
}

func (r *TreatmentRepository) queryTreatments(ctx context.Context, query string, args ...interface{}) ([]*treatment.Treatment, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get transaction")
	}

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to execute query")
	}
	defer rows.Close()

	var treatments []*treatment.Treatment
	for rows.Next() {
		var t models.Treatment
		if err := rows.Scan(
			&t.ID,
			&t.Name,
			&t.Definition,
			&t.Control,
			&t.CreatedAt,
			&t.UpdatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan treatment row")
		}
		treatments = append(treatments, toDomainTreatment(&t))
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "row iteration error")
	}

	return treatments, nil
}
