package http

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// validateDTO runs struct tag validation on a decoded request body and
// returns per-field messages keyed by the lowercased field name.
func validateDTO(payload any) map[string]string {
	err := validate.Struct(payload)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return map[string]string{"body": "the request body is invalid"}
	}

	out := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		out[strings.ToLower(fe.Field())] = validationMessage(fe)
	}
	return out
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return "the value is too small"
	case "max":
		return "the value is too large"
	case "oneof":
		return "the value is not one of the allowed options"
	case "datetime":
		return "the value is not a valid date"
	default:
		return "the value is invalid"
	}
}
