package persistence

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/agrovault/trialbase/modules/ingest/domain/aggregates/session"
	"github.com/agrovault/trialbase/modules/ingest/infrastructure/persistence/models"
	"github.com/agrovault/trialbase/pkg/composables"
	"github.com/agrovault/trialbase/pkg/repo"
)

const (
	sessionFindQuery = `
		SELECT id, owner_key, dataset, stage,
		       file_name, file_path, file_sha256, file_size, file_mime, row_count, headers,
		       defaults, citations, last_error, created_at, updated_at
		FROM upload_sessions`

	sessionCountQuery = `SELECT COUNT(*) FROM upload_sessions`

	sessionInsertQuery = `
		INSERT INTO upload_sessions (
			id, owner_key, dataset, stage,
			file_name, file_path, file_sha256, file_size, file_mime, row_count, headers,
			defaults, citations, last_error, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	sessionUpdateQuery = `
		UPDATE upload_sessions
		SET dataset = $2,
		    stage = $3,
		    file_name = $4,
		    file_path = $5,
		    file_sha256 = $6,
		    file_size = $7,
		    file_mime = $8,
		    row_count = $9,
		    headers = $10,
		    defaults = $11,
		    citations = $12,
		    last_error = $13,
		    updated_at = $14
		WHERE id = $1`

	sessionDeleteQuery = `DELETE FROM upload_sessions WHERE id = $1`
)

type UploadSessionRepository struct{}

func NewUploadSessionRepository() session.Repository {
	return &UploadSessionRepository{}
}

func (r *UploadSessionRepository) Count(ctx context.Context) (int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}
	var count int64
	if err := tx.QueryRow(ctx, sessionCountQuery).Scan(&count); err != nil {
		return 0, errors.Wrap(err, "failed to count upload sessions")
	}
	return count, nil
}

func (r *UploadSessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*session.Session, error) {
	sessions, err := r.querySessions(ctx, repo.Join(sessionFindQuery, "WHERE id = $1"), id)
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return nil, session.ErrNotFound
	}
	return sessions[0], nil
}

func (r *UploadSessionRepository) GetActiveByOwner(ctx context.Context, ownerKey string) (*session.Session, error) {
	query := repo.Join(sessionFindQuery, "WHERE owner_key = $1 AND stage != $2 ORDER BY created_at DESC LIMIT 1")
	sessions, err := r.querySessions(ctx, query, ownerKey, string(session.StageInserted))
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return nil, session.ErrNoActiveSession
	}
	return sessions[0], nil
}

func (r *UploadSessionRepository) Create(ctx context.Context, data *session.Session) (*session.Session, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	row, err := toDBSession(data)
	if err != nil {
		return nil, err
	}
	if _, err := tx.Exec(
		ctx,
		sessionInsertQuery,
		row.ID,
		row.OwnerKey,
		row.Dataset,
		row.Stage,
		row.FileName,
		row.FilePath,
		row.FileSHA256,
		row.FileSize,
		row.FileMime,
		row.RowCount,
		row.Headers,
		row.Defaults,
		row.Citations,
		row.LastError,
		row.CreatedAt,
		row.UpdatedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return nil, session.ErrAlreadyExists
		}
		return nil, errors.Wrap(err, "failed to insert upload session")
	}
	return r.GetByID(ctx, data.ID())
}

func (r *UploadSessionRepository) Update(ctx context.Context, data *session.Session) (*session.Session, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	row, err := toDBSession(data)
	if err != nil {
		return nil, err
	}
	tag, err := tx.Exec(
		ctx,
		sessionUpdateQuery,
		row.ID,
		row.Dataset,
		row.Stage,
		row.FileName,
		row.FilePath,
		row.FileSHA256,
		row.FileSize,
		row.FileMime,
		row.RowCount,
		row.Headers,
		row.Defaults,
		row.Citations,
		row.LastError,
		row.UpdatedAt,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to update upload session")
	}
	if tag.RowsAffected() == 0 {
		return nil, session.ErrNotFound
	}
	return r.GetByID(ctx, data.ID())
}

func (r *UploadSessionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, sessionDeleteQuery, id); err != nil {
		return errors.Wrap(err, "failed to delete upload session")
	}
	return nil
}

func (r *UploadSessionRepository) querySessions(ctx context.Context, query string, args ...interface{}) ([]*session.Session, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get transaction")
	}

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to execute query")
	}
	defer rows.Close()

	var sessions []*session.Session
	for rows.Next() {
		var s models.UploadSession
		if err := rows.Scan(
			&s.ID,
			&s.OwnerKey,
			&s.Dataset,
			&s.Stage,
			&s.FileName,
			&s.FilePath,
			&s.FileSHA256,
			&s.FileSize,
			&s.FileMime,
			&s.RowCount,
			&s.Headers,
			&s.Defaults,
			&s.Citations,
			&s.LastError,
			&s.CreatedAt,
			&s.UpdatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan upload session row")
		}
		entity, err := toDomainSession(&s)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, entity)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "row iteration error")
	}

	return sessions, nil
}
