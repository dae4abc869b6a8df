package models

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
)

type Site struct {
	ID        int64
	Name      string
	City      sql.NullString
	State     sql.NullString
	Country   sql.NullString
	Latitude  decimal.NullDecimal
	Longitude decimal.NullDecimal
	Notes     sql.NullString
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Species struct {
	ID             int64
	ScientificName string
	Genus          sql.NullString
	CommonName     sql.NullString
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Citation struct {
	ID        int64
	Author    string
	Year      int
	Title     string
	Journal   sql.NullString
	DOI       sql.NullString
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Cultivar struct {
	ID        int64
	SpeciesID int64
	Name      string
	Ecotype   sql.NullString
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Treatment struct {
	ID         int64
	Name       string
	Definition sql.NullString
	Control    bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
