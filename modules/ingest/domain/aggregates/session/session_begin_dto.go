package session

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/agrovault/trialbase/modules/ingest/domain/validation"
	"github.com/agrovault/trialbase/pkg/constants"
	"github.com/agrovault/trialbase/pkg/serrors"
)

type BeginDTO struct {
	Dataset string `json:"dataset" validate:"required,oneof=yields traits"`
}

func (d *BeginDTO) Normalize() {
	d.Dataset = strings.ToLower(strings.TrimSpace(d.Dataset))
}

func (d *BeginDTO) Ok(ctx context.Context) (map[string]string, bool) {
	d.Normalize()

	errs := constants.Validate.Struct(d)
	if errs == nil {
		return map[string]string{}, true
	}
	return serrors.Messages(serrors.ProcessValidatorErrors(errs.(validator.ValidationErrors))), false
}

func (d *BeginDTO) Kind() validation.DatasetKind {
	return validation.DatasetKind(d.Dataset)
}
