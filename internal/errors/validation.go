package errors

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValidationError describes one rejected field of a request or of an attempt's question list
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
	Rule    string      `json:"rule,omitempty"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Message)
}

// ValidationErrors is returned whole to the client as the "errors" list
type ValidationErrors []ValidationError

func (ve ValidationErrors) Error() string {
	switch len(ve) {
	case 0:
		return "validation failed"
	case 1:
		return "validation failed: " + ve[0].Error()
	}

	fields := make([]string, len(ve))
	for i := range ve {
		fields[i] = ve[i].Field
	}
	return fmt.Sprintf("validation failed: %d fields (%s)", len(ve), strings.Join(fields, ", "))
}

// NewDuplicateKeyError reports a question key used by two questions of one attempt
func NewDuplicateKeyError(field, key string, first, second int) ValidationErrors {
	return ValidationErrors{{
		Field:   field,
		Message: fmt.Sprintf("%s is shared by questions %d and %d", key, first, second),
		Value:   key,
		Rule:    "unique",
	}}
}

// ToValidationErrors flattens validator field errors, nil for any other error
func ToValidationErrors(err error) ValidationErrors {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return nil
	}

	out := make(ValidationErrors, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, ValidationError{
			Field:   fe.Field(),
			Message: messageFor(fe),
			Value:   fe.Value(),
			Rule:    fe.Tag(),
		})
	}
	return out
}

func messageFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gte":
		return "must not be below " + fe.Param()
	case "question_type":
		return "must be multiple_choice, short_answer, long_answer or drawing"
	case "end_reason":
		return "must be submitted or time_out"
	default:
		return fmt.Sprintf("failed the %s check", fe.Tag())
	}
}
