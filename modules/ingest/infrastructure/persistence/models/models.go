package models

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type UploadSession struct {
	ID         uuid.UUID
	OwnerKey   string
	Dataset    string
	Stage      string
	FileName   sql.NullString
	FilePath   sql.NullString
	FileSHA256 sql.NullString
	FileSize   sql.NullInt64
	FileMime   sql.NullString
	RowCount   sql.NullInt32
	Headers    []string
	Defaults   []byte
	Citations  []int64
	LastError  sql.NullString
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type Observation struct {
	ID          int64
	SessionID   uuid.UUID
	Kind        string
	Trait       string
	Value       decimal.Decimal
	N           sql.NullInt32
	StdErr      decimal.NullDecimal
	SiteID      int64
	SpeciesID   int64
	CitationID  int64
	CultivarID  sql.NullInt64
	TreatmentID sql.NullInt64
	Date        sql.NullTime
	AccessLevel int
	Notes       sql.NullString
	Checked     bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
