package utils

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

type Validator struct {
	validate *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New()

	// Custom validations
	v.RegisterValidation("pricing_mode", validatePricingMode)
	v.RegisterValidation("stripe_publishable_key", validatePublishableKey)

	return &Validator{
		validate: v,
	}
}

func (v *Validator) Struct(s interface{}) error {
	return v.validate.Struct(s)
}

// FieldNames returns the struct fields that failed validation, in order.
func FieldNames(err error) []string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return nil
	}
	names := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		names = append(names, fe.Field())
	}
	return names
}

func validatePricingMode(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "product", "years":
		return true
	}
	return false
}

// Publishable keys are the only keys allowed to reach a page.
func validatePublishableKey(fl validator.FieldLevel) bool {
	key := fl.Field().String()
	return strings.HasPrefix(key, "pk_test_") || strings.HasPrefix(key, "pk_live_")
}
