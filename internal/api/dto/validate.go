package dto

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/spec-kit/helpdesk-service/pkg/util"
)

var validate = validator.New()

// Validate checks struct tags on req and returns a VALIDATION_FAILED error
// listing every offending field.
func Validate(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return apperrors.NewValidationError(err.Error(), nil)
	}
	details := make(map[string]any, len(ve))
	msgs := make([]string, 0, len(ve))
	for _, fe := range ve {
		msg := fieldError(fe)
		details[strings.ToLower(fe.Field())] = msg
		msgs = append(msgs, msg)
	}
	return apperrors.NewValidationError(strings.Join(msgs, "; "), details)
}

func fieldError(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email"
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed validation (%s)", field, fe.Tag())
	}
}
