package serrors

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// BaseError is the minimal coded error carried across service and
// controller boundaries. Code is a stable machine-readable identifier,
// Message is safe to show to the user.
type BaseError struct {
	Code    string
	Message string
}

func (e *BaseError) Error() string {
	return e.Message
}

func NewError(code, message string) *BaseError {
	return &BaseError{
		Code:    code,
		Message: message,
	}
}

// ValidationErrors maps a field name to the error describing it.
type ValidationErrors map[string]error

func NewFieldRequiredError(field string) *BaseError {
	return &BaseError{
		Code:    "FIELD_REQUIRED",
		Message: fmt.Sprintf("%s is required", field),
	}
}

func NewInvalidValueError(field, detail string) *BaseError {
	return &BaseError{
		Code:    "INVALID_VALUE",
		Message: fmt.Sprintf("%s %s", field, detail),
	}
}

// ProcessValidatorErrors converts validator.ValidationErrors into
// per-field BaseErrors keyed by the struct field name.
func ProcessValidatorErrors(errs validator.ValidationErrors) ValidationErrors {
	out := make(ValidationErrors, len(errs))
	for _, err := range errs {
		out[err.Field()] = fromFieldError(err)
	}
	return out
}

func fromFieldError(err validator.FieldError) *BaseError {
	switch err.Tag() {
	case "required":
		return NewFieldRequiredError(err.Field())
	case "min":
		return NewInvalidValueError(err.Field(), fmt.Sprintf("must be at least %s", err.Param()))
	case "max":
		return NewInvalidValueError(err.Field(), fmt.Sprintf("must be at most %s", err.Param()))
	case "oneof":
		return NewInvalidValueError(err.Field(), fmt.Sprintf("must be one of: %s", err.Param()))
	case "datetime":
		return NewInvalidValueError(err.Field(), fmt.Sprintf("must be a date in format %s", err.Param()))
	default:
		return NewInvalidValueError(err.Field(), fmt.Sprintf("failed %q validation", err.Tag()))
	}
}

// Messages flattens ValidationErrors into user-facing strings.
func Messages(errs ValidationErrors) map[string]string {
	out := make(map[string]string, len(errs))
	for field, err := range errs {
		out[field] = err.Error()
	}
	return out
}
