package utils

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())
}

// ValidateStruct validates a struct using its `validate` tags.
func ValidateStruct(v any) error {
	return validate.Struct(v)
}

// FieldErrors returns the namespaced field names (e.g. "PurchaseRequest.Payment.PayerAddress")
// of every failed validation in err, or nil if err is not a validation error.
func FieldErrors(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}

	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
	}
	return fields
}
