package persistence

import (
	"github.com/shopspring/decimal"

	"github.com/agrovault/trialbase/modules/catalog/domain/entities/citation"
	"github.com/agrovault/trialbase/modules/catalog/domain/entities/cultivar"
	"github.com/agrovault/trialbase/modules/catalog/domain/entities/site"
	"github.com/agrovault/trialbase/modules/catalog/domain/entities/species"
	"github.com/agrovault/trialbase/modules/catalog/domain/entities/treatment"
	"github.com/agrovault/trialbase/modules/catalog/infrastructure/persistence/models"
	"github.com/agrovault/trialbase/pkg/mapping"
)

func toDomainSite(dbSite *models.Site) *site.Site {
	return site.Hydrate(
		dbSite.ID,
		dbSite.Name,
		dbSite.City.String,
		dbSite.State.String,
		dbSite.Country.String,
		nullDecimalToPointer(dbSite.Latitude),
		nullDecimalToPointer(dbSite.Longitude),
		dbSite.Notes.String,
		dbSite.CreatedAt,
		dbSite.UpdatedAt,
	)
}

func toDBSite(entity *site.Site) *models.Site {
	return &models.Site{
		ID:        entity.ID(),
		Name:      entity.Name(),
		City:      mapping.ValueToSQLNullString(entity.City()),
		State:     mapping.ValueToSQLNullString(entity.State()),
		Country:   mapping.ValueToSQLNullString(entity.Country()),
		Latitude:  pointerToNullDecimal(entity.Latitude()),
		Longitude: pointerToNullDecimal(entity.Longitude()),
		Notes:     mapping.ValueToSQLNullString(entity.Notes()),
		CreatedAt: entity.CreatedAt(),
		UpdatedAt: entity.UpdatedAt(),
	}
}

func toDomainSpecies(dbSpecies *models.Species) *species.Species {
	return species.Hydrate(
		dbSpecies.ID,
		dbSpecies.ScientificName,
		dbSpecies.Genus.String,
		dbSpecies.CommonName.String,
		dbSpecies.CreatedAt,
		dbSpecies.UpdatedAt,
	)
}

func toDBSpecies(entity *species.Species) *models.Species {
	return &models.Species{
		ID:             entity.ID(),
		ScientificName: entity.ScientificName(),
		Genus:          mapping.ValueToSQLNullString(entity.Genus()),
		CommonName:     mapping.ValueToSQLNullString(entity.CommonName()),
		CreatedAt:      entity.CreatedAt(),
		UpdatedAt:      entity.UpdatedAt(),
	}
}

func toDomainCitation(dbCitation *models.Citation) *citation.Citation {
	return citation.Hydrate(
		dbCitation.ID,
		dbCitation.Author,
		dbCitation.Year,
		dbCitation.Title,
		dbCitation.Journal.String,
		mapping.SQLNullStringToPointer(dbCitation.DOI),
		dbCitation.CreatedAt,
		dbCitation.UpdatedAt,
	)
}

func toDBCitation(entity *citation.Citation) *models.Citation {
	return &models.Citation{
		ID:        entity.ID(),
		Author:    entity.Author(),
		Year:      entity.Year(),
		Title:     entity.Title(),
		Journal:   mapping.ValueToSQLNullString(entity.Journal()),
		DOI:       mapping.PointerToSQLNullString(entity.DOI()),
		CreatedAt: entity.CreatedAt(),
		UpdatedAt: entity.UpdatedAt(),
	}
}

func toDomainCultivar(dbCultivar *models.Cultivar) *cultivar.Cultivar {
	return cultivar.Hydrate(
		dbCultivar.ID,
		dbCultivar.SpeciesID,
		dbCultivar.Name,
		dbCultivar.Ecotype.String,
		dbCultivar.CreatedAt,
		dbCultivar.UpdatedAt,
	)
}

func toDBCultivar(entity *cultivar.Cultivar) *models.Cultivar {
	return &models.Cultivar{
		ID:        entity.ID(),
		SpeciesID: entity.SpeciesID(),
		Name:      entity.Name(),
		Ecotype:   mapping.ValueToSQLNullString(entity.Ecotype()),
		CreatedAt: entity.CreatedAt(),
		UpdatedAt: entity.UpdatedAt(),
	}
}

func toDomainTreatment(dbTreatment *models.Treatment) *treatment.Treatment {
	return treatment.Hydrate(
		dbTreatment.ID,
		dbTreatment.Name,
		dbTreatment.Definition.String,
		dbTreatment.Control,
		dbTreatment.CreatedAt,
		dbTreatment.UpdatedAt,
	)
}

func toDBTreatment(entity *treatment.Treatment) *models.Treatment {
	return &models.Treatment{
		ID:         entity.ID(),
		Name:       entity.Name(),
		Definition: mapping.ValueToSQLNullString(entity.Definition()),
		Control:    entity.Control(),
		CreatedAt:  entity.CreatedAt(),
		UpdatedAt:  entity.UpdatedAt(),
	}
}

func nullDecimalToPointer(d decimal.NullDecimal) *decimal.Decimal {
	if !d.Valid {
		return nil
	}
	v := d.Decimal
	return &v
}

func pointerToNullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}
