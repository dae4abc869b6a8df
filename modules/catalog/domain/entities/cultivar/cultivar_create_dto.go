package cultivar

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/agrovault/trialbase/pkg/constants"
	"github.com/agrovault/trialbase/pkg/serrors"
)

type CreateDTO struct {
	SpeciesID int64  `json:"species_id" validate:"required,gt=0"`
	Name      string `json:"name" validate:"required"`
	Ecotype   string `json:"ecotype"`
}

func (d *CreateDTO) Normalize() {
	d.Name = strings.TrimSpace(d.Name)
	d.Ecotype = strings.TrimSpace(d.Ecotype)
}

func (d *CreateDTO) Ok(ctx context.Context) (map[string]string, bool) {
	d.Normalize()

	errs := constants.Validate.Struct(d)
	if errs == nil {
		return map[string]string{}, true
	}
	return serrors.Messages(serrors.ProcessValidatorErrors(errs.(validator.ValidationErrors))), false
}

func (d *CreateDTO) ToEntity() *Cultivar {
	return New(d.SpeciesID, d.Name, WithEcotype(d.Ecotype))
}
