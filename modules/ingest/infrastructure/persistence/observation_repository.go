package persistence

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/agrovault/trialbase/modules/ingest/domain/entities/observation"
	"github.com/agrovault/trialbase/modules/ingest/infrastructure/persistence/models"
	"github.com/agrovault/trialbase/pkg/composables"
	"github.com/agrovault/trialbase/pkg/repo"
)

const (
	observationFindQuery = `
		SELECT id, session_id, kind, trait, value, n, std_err,
		       site_id, species_id, citation_id, cultivar_id, treatment_id,
		       date, access_level, notes, checked, created_at, updated_at
		FROM observations`

	observationInsertQuery = `
		INSERT INTO observations (
			session_id, kind, trait, value, n, std_err,
			site_id, species_id, citation_id, cultivar_id, treatment_id,
			date, access_level, notes, checked, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING id`

	observationCountBySessionQuery = `SELECT COUNT(*) FROM observations WHERE session_id = $1`
)

type ObservationRepository struct{}

func NewObservationRepository() observation.Repository {
	return &ObservationRepository{}
}

// CreateMany inserts the batch row by row on the caller's transaction,
// so a failing row aborts the whole batch with it.
func (r *ObservationRepository) CreateMany(ctx context.Context, data []*observation.Observation) ([]*observation.Observation, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]*observation.Observation, 0, len(data))
	for i, entity := range data {
		row := toDBObservation(entity)
		var id int64
		if err := tx.QueryRow(
			ctx,
			observationInsertQuery,
			row.SessionID,
			row.Kind,
			row.Trait,
			row.Value,
			row.N,
			row.StdErr,
			row.SiteID,
			row.SpeciesID,
			row.CitationID,
			row.CultivarID,
			row.TreatmentID,
			row.Date,
			row.AccessLevel,
			row.Notes,
			row.Checked,
			row.CreatedAt,
			row.UpdatedAt,
		).Scan(&id); err != nil {
			return nil, errors.Wrapf(err, "failed to insert observation %d of %d", i+1, len(data))
		}
		row.ID = id
		out = append(out, toDomainObservation(row))
	}
	return out, nil
}

func (r *ObservationRepository) CountBySession(ctx context.Context, sessionID uuid.UUID) (int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}
	var count int64
	if err := tx.QueryRow(ctx, observationCountBySessionQuery, sessionID).Scan(&count); err != nil {
		return 0, errors.Wrap(err, "failed to count observations")
	}
	return count, nil
}

func (r *ObservationRepository) FindBySession(ctx context.Context, sessionID uuid.UUID) ([]*observation.Observation, error) {
	query := repo.Join(observationFindQuery, "WHERE session_id = $1 ORDER BY id")
	return r.queryObservations(ctx, query, sessionID)
}

func (r *ObservationRepository) queryObservations(ctx context.Context, query string, args ...interface{}) ([]*observation.Observation, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get transaction")
	}

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to execute query")
	}
	defer rows.Close()

	var observations []*observation.Observation
	for rows.Next() {
		var o models.Observation
		if err := rows.Scan(
			&o.ID,
			&o.SessionID,
			&o.Kind,
			&o.Trait,
			&o.Value,
			&o.N,
			&o.StdErr,
			&o.SiteID,
			&o.SpeciesID,
			&o.CitationID,
			&o.CultivarID,
			&o.TreatmentID,
			&o.Date,
			&o.AccessLevel,
			&o.Notes,
			&o.Checked,
			&o.CreatedAt,
			&o.UpdatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan observation row")
		}
		observations = append(observations, toDomainObservation(&o))
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "row iteration error")
	}

	return observations, nil
}
