package persistence

import (
	"database/sql"
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/agrovault/trialbase/modules/ingest/domain/aggregates/session"
	"github.com/agrovault/trialbase/modules/ingest/domain/entities/observation"
	"github.com/agrovault/trialbase/modules/ingest/domain/validation"
	"github.com/agrovault/trialbase/modules/ingest/infrastructure/persistence/models"
	"github.com/agrovault/trialbase/pkg/mapping"
)

func toDBSession(entity *session.Session) (*models.UploadSession, error) {
	defaults, err := json.Marshal(entity.Defaults())
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode session defaults")
	}

	row := &models.UploadSession{
		ID:        entity.ID(),
		OwnerKey:  entity.OwnerKey(),
		Dataset:   string(entity.Dataset()),
		Stage:     string(entity.Stage()),
		Defaults:  defaults,
		Citations: entity.Citations(),
		LastError: mapping.ValueToSQLNullString(entity.LastError()),
		CreatedAt: entity.CreatedAt(),
		UpdatedAt: entity.UpdatedAt(),
	}
	if file := entity.File(); file != nil {
		row.FileName = mapping.ValueToSQLNullString(file.Filename)
		row.FilePath = mapping.ValueToSQLNullString(file.Path)
		row.FileSHA256 = mapping.ValueToSQLNullString(file.SHA256)
		row.FileSize = sql.NullInt64{Int64: file.Size, Valid: true}
		row.FileMime = mapping.ValueToSQLNullString(file.Mime)
		row.RowCount = sql.NullInt32{Int32: int32(file.RowCount), Valid: true}
		row.Headers = file.Headers
	}
	return row, nil
}

func toDomainSession(row *models.UploadSession) (*session.Session, error) {
	var defaults session.Defaults
	if len(row.Defaults) > 0 {
		if err := json.Unmarshal(row.Defaults, &defaults); err != nil {
			return nil, errors.Wrap(err, "failed to decode session defaults")
		}
	}

	var file *session.File
	if row.FilePath.Valid {
		file = &session.File{
			Filename: row.FileName.String,
			Path:     row.FilePath.String,
			SHA256:   row.FileSHA256.String,
			Size:     row.FileSize.Int64,
			Mime:     row.FileMime.String,
			RowCount: int(row.RowCount.Int32),
			Headers:  row.Headers,
		}
	}

	return session.Hydrate(
		row.ID,
		row.OwnerKey,
		validation.DatasetKind(row.Dataset),
		session.Stage(row.Stage),
		file,
		defaults,
		row.Citations,
		row.LastError.String,
		row.CreatedAt,
		row.UpdatedAt,
	), nil
}

func toDBObservation(entity *observation.Observation) *models.Observation {
	return &models.Observation{
		ID:          entity.ID(),
		SessionID:   entity.SessionID(),
		Kind:        string(entity.Kind()),
		Trait:       entity.Trait(),
		Value:       entity.Value(),
		N:           intPointerToNullInt32(entity.N()),
		StdErr:      pointerToNullDecimal(entity.StdErr()),
		SiteID:      entity.SiteID(),
		SpeciesID:   entity.SpeciesID(),
		CitationID:  entity.CitationID(),
		CultivarID:  mapping.PointerToSQLNullInt64(entity.CultivarID()),
		TreatmentID: mapping.PointerToSQLNullInt64(entity.TreatmentID()),
		Date:        mapping.PointerToSQLNullTime(entity.Date()),
		AccessLevel: entity.AccessLevel(),
		Notes:       mapping.ValueToSQLNullString(entity.Notes()),
		Checked:     entity.Checked(),
		CreatedAt:   entity.CreatedAt(),
		UpdatedAt:   entity.UpdatedAt(),
	}
}

func toDomainObservation(row *models.Observation) *observation.Observation {
	return observation.Hydrate(
		row.ID,
		row.SessionID,
		observation.Kind(row.Kind),
		row.Trait,
		row.Value,
		nullInt32ToIntPointer(row.N),
		nullDecimalToPointer(row.StdErr),
		row.SiteID,
		row.SpeciesID,
		row.CitationID,
		mapping.SQLNullInt64ToPointer(row.CultivarID),
		mapping.SQLNullInt64ToPointer(row.TreatmentID),
		mapping.SQLNullTimeToPointer(row.Date),
		row.AccessLevel,
		row.Notes.String,
		row.Checked,
		row.CreatedAt,
		row.UpdatedAt,
	)
}

func intPointerToNullInt32(v *int) sql.NullInt32 {
	if v == nil {
		return sql.NullInt32{}
	}
	return sql.NullInt32{Int32: int32(*v), Valid: true}
}

func nullInt32ToIntPointer(v sql.NullInt32) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int32)
	return &n
}

func pointerToNullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

func nullDecimalToPointer(d decimal.NullDecimal) *decimal.Decimal {
	if !d.Valid {
		return nil
	}
	v := d.Decimal
	return &v
}
