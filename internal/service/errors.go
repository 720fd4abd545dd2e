package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Giveaway service errors.
var (
	ErrGiveawayNotFound = errors.New("giveaway not found")
	ErrNoParticipants   = errors.New("giveaway has no participants")
	ErrNotification     = errors.New("failed to deliver announcement")
)

// ValidationError reports a creation field that is missing or out of range.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// newValidator returns a validator that reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// toValidationError converts the first validator failure into a ValidationError.
func toValidationError(err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) || len(validationErrors) == 0 {
		return &ValidationError{Field: "request", Reason: "invalid request format"}
	}

	e := validationErrors[0]
	reason := "invalid value"
	switch e.Tag() {
	case "required":
		reason = "is required"
	case "gt":
		reason = fmt.Sprintf("must be greater than %s", e.Param())
	case "max":
		reason = fmt.Sprintf("must be at most %s", e.Param())
	}
	return &ValidationError{Field: e.Field(), Reason: reason}
}
