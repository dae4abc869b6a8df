package citation

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/agrovault/trialbase/pkg/constants"
	"github.com/agrovault/trialbase/pkg/serrors"
)

type CreateDTO struct {
	Author  string `json:"author" validate:"required"`
	Year    int    `json:"year" validate:"required,gte=1800"`
	Title   string `json:"title" validate:"required"`
	Journal string `json:"journal"`
	DOI     string `json:"doi"`
}

func (d *CreateDTO) Normalize() {
	d.Author = strings.TrimSpace(d.Author)
	d.Title = strings.TrimSpace(d.Title)
	d.Journal = strings.TrimSpace(d.Journal)
	d.DOI = strings.TrimSpace(d.DOI)
}

func (d *CreateDTO) Ok(ctx context.Context) (map[string]string, bool) {
	d.Normalize()

	errs := constants.Validate.Struct(d)
	if errs == nil {
		return map[string]string{}, true
	}
	return serrors.Messages(serrors.ProcessValidatorErrors(errs.(validator.ValidationErrors))), false
}

func (d *CreateDTO) ToEntity() *Citation {
	return New(
		d.Author,
		d.Year,
		d.Title,
		WithJournal(d.Journal),
		WithDOI(d.DOI),
	)
}
