package serrors_test

import (
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrovault/trialbase/pkg/constants"
	"github.com/agrovault/trialbase/pkg/serrors"
)

func TestBaseError_AsTarget(t *testing.T) {
	var base *serrors.BaseError
	err := serrors.NewError("COMMIT_FAILED", "commit failed")

	require.True(t, errors.As(err, &base))
	assert.Equal(t, "COMMIT_FAILED", base.Code)
	assert.Equal(t, "commit failed", err.Error())
}

func TestProcessValidatorErrors(t *testing.T) {
	type dto struct {
		Site     string `validate:"required"`
		Rounding int    `validate:"min=1,max=4"`
		Date     string `validate:"omitempty,datetime=2006-01-02"`
	}

	err := constants.Validate.Struct(&dto{Rounding: 9, Date: "20-20-2020"})
	require.Error(t, err)

	var validatorErrs validator.ValidationErrors
	require.ErrorAs(t, err, &validatorErrs)

	fieldErrs := serrors.ProcessValidatorErrors(validatorErrs)
	require.Len(t, fieldErrs, 3)

	messages := serrors.Messages(fieldErrs)
	assert.Equal(t, "Site is required", messages["Site"])
	assert.Contains(t, messages["Rounding"], "at most 4")
	assert.Contains(t, messages["Date"], "2006-01-02")
}
