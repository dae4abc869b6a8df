package site

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/agrovault/trialbase/pkg/constants"
	"github.com/agrovault/trialbase/pkg/serrors"
)

type CreateDTO struct {
	Name      string `json:"name" validate:"required"`
	City      string `json:"city"`
	State     string `json:"state"`
	Country   string `json:"country"`
	Latitude  string `json:"latitude" validate:"omitempty,numeric,required_with=Longitude"`
	Longitude string `json:"longitude" validate:"omitempty,numeric,required_with=Latitude"`
	Notes     string `json:"notes"`
}

func (d *CreateDTO) Normalize() {
	d.Name = strings.TrimSpace(d.Name)
	d.City = strings.TrimSpace(d.City)
	d.State = strings.TrimSpace(d.State)
	d.Country = strings.TrimSpace(d.Country)
	d.Latitude = strings.TrimSpace(d.Latitude)
	d.Longitude = strings.TrimSpace(d.Longitude)
	d.Notes = strings.TrimSpace(d.Notes)
}

func (d *CreateDTO) Ok(ctx context.Context) (map[string]string, bool) {
	d.Normalize()

	errs := constants.Validate.Struct(d)
	if errs == nil {
		return map[string]string{}, true
	}
	return serrors.Messages(serrors.ProcessValidatorErrors(errs.(validator.ValidationErrors))), false
}

func (d *CreateDTO) ToEntity() (*Site, error) {
	opts := []Option{
		WithCity(d.City),
		WithState(d.State),
		WithCountry(d.Country),
		WithNotes(d.Notes),
	}
	if d.Latitude != "" && d.Longitude != "" {
		lat, err := decimal.NewFromString(d.Latitude)
		if err != nil {
			return nil, err
		}
		lon, err := decimal.NewFromString(d.Longitude)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithCoordinates(lat, lon))
	}
	return New(d.Name, opts...), nil
}
