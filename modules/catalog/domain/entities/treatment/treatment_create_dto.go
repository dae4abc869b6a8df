package treatment

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/agrovault/trialbase/pkg/constants"
	"github.com/agrovault/trialbase/pkg/serrors"
)

type CreateDTO struct {
	Name       string `json:"name" validate:"required"`
	Definition string `json:"definition"`
	Control    bool   `json:"control"`
}

func (d *CreateDTO) Normalize() {
	d.Name = strings.TrimSpace(d.Name)
	d.Definition = strings.TrimSpace(d.Definition)
}

func (d *CreateDTO) Ok(ctx context.Context) (map[string]string, bool) {
	d.Normalize()

	errs := constants.Validate.Struct(d)
	if errs == nil {
		return map[string]string{}, true
	}
	return serrors.Messages(serrors.ProcessValidatorErrors(errs.(validator.ValidationErrors))), false
}

func (d *CreateDTO) ToEntity() *Treatment {
	return New(d.Name, WithDefinition(d.Definition), WithControl(d.Control))
}
