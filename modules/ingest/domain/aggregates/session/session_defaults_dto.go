package session

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"

	"github.com/agrovault/trialbase/pkg/constants"
	"github.com/agrovault/trialbase/pkg/serrors"
)

// DefaultsDTO carries the wizard's global defaults form. Zero values
// mean "no default": empty reference strings leave cells untouched and
// a zero access level falls back to the most restrictive one.
type DefaultsDTO struct {
	Site        string `json:"site"`
	Species     string `json:"species"`
	Treatment   string `json:"treatment"`
	Cultivar    string `json:"cultivar"`
	AccessLevel int    `json:"access_level" validate:"omitempty,min=1,max=4"`
	Date        string `json:"date"`
	Rounding    int    `json:"rounding" validate:"omitempty,min=0,max=6"`
}

func (d *DefaultsDTO) Normalize() {
	d.Site = strings.TrimSpace(d.Site)
	d.Species = strings.TrimSpace(d.Species)
	d.Treatment = strings.TrimSpace(d.Treatment)
	d.Cultivar = strings.TrimSpace(d.Cultivar)
	d.Date = strings.TrimSpace(d.Date)
}

func (d *DefaultsDTO) Ok(ctx context.Context) (map[string]string, bool) {
	d.Normalize()

	errs := constants.Validate.Struct(d)
	if errs == nil {
		return map[string]string{}, true
	}
	return serrors.Messages(serrors.ProcessValidatorErrors(errs.(validator.ValidationErrors))), false
}

// ToDefaults parses the date against the accepted layouts and builds
// the aggregate value. Layouts come from configuration; at least one
// must be given.
func (d *DefaultsDTO) ToDefaults(layouts ...string) (Defaults, error) {
	out := Defaults{
		Site:        d.Site,
		Species:     d.Species,
		Treatment:   d.Treatment,
		Cultivar:    d.Cultivar,
		AccessLevel: d.AccessLevel,
		Rounding:    d.Rounding,
	}
	if d.Date == "" {
		return out, nil
	}
	for _, layout := range layouts {
		if parsed, err := time.Parse(layout, d.Date); err == nil {
			out.Date = &parsed
			return out, nil
		}
	}
	return Defaults{}, errors.Errorf("date %q does not match any accepted layout", d.Date)
}
