// Package validator provides validation infrastructure for the application.
// This is part of the platform layer and contains no business logic.
package validator

import (
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	postcodePattern     = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9 \-]{1,8}[A-Za-z0-9]$`)
	licensePlatePattern = regexp.MustCompile(`^[A-Z0-9]{2,8}$`)
)

// Validator wraps the go-playground validator for structured validation.
// Using a struct allows for dependency injection and easier testing.
type Validator struct {
	v *validator.Validate
}

// New creates a new Validator instance with the marketplace tags registered.
func New() *Validator {
	v := validator.New()
	_ = v.RegisterValidation("postcode", func(fl validator.FieldLevel) bool {
		return IsPostcode(fl.Field().String())
	})
	_ = v.RegisterValidation("licenseplate", func(fl validator.FieldLevel) bool {
		return IsLicensePlate(fl.Field().String())
	})
	return &Validator{v: v}
}

// Struct validates a struct based on validation tags.
func (val *Validator) Struct(s interface{}) error {
	return val.v.Struct(s)
}

// Var validates a single variable against a tag.
func (val *Validator) Var(field interface{}, tag string) error {
	return val.v.Var(field, tag)
}

// RegisterValidation registers a custom validation function.
func (val *Validator) RegisterValidation(tag string, fn validator.Func) error {
	return val.v.RegisterValidation(tag, fn)
}

// FirstField returns the JSON-ish name of the first failing field, or "".
func FirstField(err error) string {
	errs, ok := err.(validator.ValidationErrors)
	if !ok || len(errs) == 0 {
		return ""
	}
	name := errs[0].Field()
	if name == "" {
		return ""
	}
	return strings.ToLower(name[:1]) + name[1:]
}

// IsPostcode reports whether value looks like a postal code (3-10 chars).
func IsPostcode(value string) bool {
	return postcodePattern.MatchString(strings.TrimSpace(value))
}

// NormalizeLicensePlate uppercases a plate and drops dashes and spaces.
func NormalizeLicensePlate(value string) string {
	cleaned := strings.NewReplacer("-", "", " ", "").Replace(strings.TrimSpace(value))
	return strings.ToUpper(cleaned)
}

// IsLicensePlate reports whether value is a plausible license plate.
func IsLicensePlate(value string) bool {
	return licensePlatePattern.MatchString(NormalizeLicensePlate(value))
}
