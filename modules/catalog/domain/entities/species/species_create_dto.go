package species

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/agrovault/trialbase/pkg/constants"
	"github.com/agrovault/trialbase/pkg/serrors"
)

type CreateDTO struct {
	ScientificName string `json:"scientific_name" validate:"required"`
	Genus          string `json:"genus"`
	CommonName     string `json:"common_name"`
}

func (d *CreateDTO) Normalize() {
	d.ScientificName = strings.TrimSpace(d.ScientificName)
	d.Genus = strings.TrimSpace(d.Genus)
	d.CommonName = strings.TrimSpace(d.CommonName)
}

func (d *CreateDTO) Ok(ctx context.Context) (map[string]string, bool) {
	d.Normalize()

	errs := constants.Validate.Struct(d)
	if errs == nil {
		return map[string]string{}, true
	}
	return serrors.Messages(serrors.ProcessValidatorErrors(errs.(validator.ValidationErrors))), false
}

func (d *CreateDTO) ToEntity() *Species {
	return New(
		d.ScientificName,
		WithGenus(d.Genus),
		WithCommonName(d.CommonName),
	)
}
