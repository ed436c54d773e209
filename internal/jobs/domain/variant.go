package domain

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"marketplace_backend/platform/apperr"
	"marketplace_backend/platform/validator"
)

const (
	MinTitleLength       = 10
	MinDescriptionLength = 30
)

// Variant carries the category-specific submit rules of a job.
type Variant interface {
	Name() string
	// Prepare fills derived fields before validation. It reports whether
	// anything changed.
	Prepare(job *Job) bool
	// ValidateForSubmit returns a field-level validation error or nil.
	ValidateForSubmit(job *Job) error
	variant()
}

// StandardVariant covers every category with free-text requirements.
type StandardVariant struct{}

// AutomotiveVariant relaxes text requirements and mandates a license plate.
type AutomotiveVariant struct{}

// VariantFor dispatches on the category tag.
func VariantFor(category Category) Variant {
	if category == CategoryAutomotive {
		return AutomotiveVariant{}
	}
	return StandardVariant{}
}

func (StandardVariant) Name() string   { return "standard" }
func (AutomotiveVariant) Name() string { return "automotive" }

func (StandardVariant) variant()   {}
func (AutomotiveVariant) variant() {}

func (StandardVariant) Prepare(*Job) bool { return false }

func (StandardVariant) ValidateForSubmit(job *Job) error {
	if err := validateCategory(job); err != nil {
		return err
	}
	if runeLen(job.Title) < MinTitleLength {
		return apperr.ValidationField(FieldTitle, fmt.Sprintf("title must be at least %d characters", MinTitleLength))
	}
	if runeLen(job.Description) < MinDescriptionLength {
		return apperr.ValidationField(FieldDescription, fmt.Sprintf("description must be at least %d characters", MinDescriptionLength))
	}
	return validatePostcode(job)
}

func (AutomotiveVariant) Prepare(job *Job) bool {
	if job.Vehicle == nil {
		return false
	}
	changed := false
	if normalized := validator.NormalizeLicensePlate(job.Vehicle.LicensePlate); normalized != job.Vehicle.LicensePlate {
		job.Vehicle.LicensePlate = normalized
		changed = true
	}
	if strings.TrimSpace(job.Title) == "" && job.Vehicle.LicensePlate != "" {
		job.Title = DefaultAutomotiveTitle(job.Vehicle)
		changed = true
	}
	return changed
}

func (AutomotiveVariant) ValidateForSubmit(job *Job) error {
	if job.Vehicle == nil || strings.TrimSpace(job.Vehicle.LicensePlate) == "" {
		return apperr.ValidationField("licensePlate", "license plate is required for automotive jobs")
	}
	if !validator.IsLicensePlate(job.Vehicle.LicensePlate) {
		return apperr.ValidationField("licensePlate", "license plate is not valid")
	}
	return validatePostcode(job)
}

// DefaultAutomotiveTitle renders "<make> <model> (<plate>)", skipping unknown parts.
func DefaultAutomotiveTitle(v *Vehicle) string {
	name := strings.TrimSpace(strings.TrimSpace(v.Make) + " " + strings.TrimSpace(v.Model))
	if name == "" {
		return v.LicensePlate
	}
	return fmt.Sprintf("%s (%s)", name, v.LicensePlate)
}

// IsComplete reports whether the job would pass submit validation as stored.
func IsComplete(job *Job) bool {
	draft := *job
	if job.Vehicle != nil {
		vehicle := *job.Vehicle
		draft.Vehicle = &vehicle
	}
	v := VariantFor(draft.Category)
	v.Prepare(&draft)
	return v.ValidateForSubmit(&draft) == nil
}

func validateCategory(job *Job) error {
	if _, ok := ParseCategory(string(job.Category)); !ok {
		return apperr.ValidationField(FieldCategory, "category is required")
	}
	return nil
}

func validatePostcode(job *Job) error {
	if strings.TrimSpace(job.Postcode) == "" {
		return apperr.ValidationField(FieldPostcode, "postcode is required")
	}
	if !validator.IsPostcode(job.Postcode) {
		return apperr.ValidationField(FieldPostcode, "postcode is not valid")
	}
	return nil
}

func runeLen(s string) int {
	return utf8.RuneCountInString(strings.TrimSpace(s))
}
