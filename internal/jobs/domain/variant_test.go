package domain

import (
	"errors"
	"strings"
	"testing"

	"marketplace_backend/platform/apperr"
)

func asAppErr(err error, target **apperr.Error) bool {
	return errors.As(err, target)
}

func TestStandardVariantValidateForSubmit(t *testing.T) {
	base := func() *Job {
		return &Job{
			Category:    CategoryPlumbing,
			Title:       "Leaking tap",
			Description: strings.Repeat("d", 35),
			Postcode:    "101",
		}
	}

	cases := []struct {
		name   string
		mutate func(*Job)
		field  string
	}{
		{name: "complete", mutate: func(*Job) {}},
		{name: "missing title", mutate: func(j *Job) { j.Title = "" }, field: "title"},
		{name: "short title", mutate: func(j *Job) { j.Title = "Tap" }, field: "title"},
		{name: "short description", mutate: func(j *Job) { j.Description = "too short" }, field: "description"},
		{name: "missing postcode", mutate: func(j *Job) { j.Postcode = " " }, field: "postcode"},
		{name: "bad postcode", mutate: func(j *Job) { j.Postcode = "1" }, field: "postcode"},
		{name: "unknown category", mutate: func(j *Job) { j.Category = "alchemy" }, field: "category"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			job := base()
			tc.mutate(job)
			err := VariantFor(job.Category).ValidateForSubmit(job)
			if tc.field == "" {
				if err != nil {
					t.Fatalf("expected valid, got %v", err)
				}
				return
			}
			if !apperr.Is(err, apperr.KindValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if got := apperr.Field(err); got != tc.field {
				t.Fatalf("expected field %q, got %q", tc.field, got)
			}
		})
	}
}

func TestAutomotiveVariant(t *testing.T) {
	job := &Job{Category: CategoryAutomotive, Postcode: "200"}
	v := VariantFor(job.Category)
	if v.Name() != "automotive" {
		t.Fatalf("expected automotive variant, got %s", v.Name())
	}

	if got := apperr.Field(v.ValidateForSubmit(job)); got != "licensePlate" {
		t.Fatalf("expected licensePlate error, got %q", got)
	}

	job.Vehicle = &Vehicle{LicensePlate: "ab-123", Make: "Toyota", Model: "Yaris"}
	if !v.Prepare(job) {
		t.Fatal("expected prepare to normalise plate and default title")
	}
	if job.Vehicle.LicensePlate != "AB123" {
		t.Fatalf("expected normalised plate, got %q", job.Vehicle.LicensePlate)
	}
	if job.Title != "Toyota Yaris (AB123)" {
		t.Fatalf("unexpected default title %q", job.Title)
	}
	if err := v.ValidateForSubmit(job); err != nil {
		t.Fatalf("expected automotive job without description to be valid, got %v", err)
	}

	job.Vehicle.LicensePlate = "A"
	if got := apperr.Field(v.ValidateForSubmit(job)); got != "licensePlate" {
		t.Fatalf("expected invalid plate error, got %q", got)
	}
}

func TestIsCompleteDoesNotMutate(t *testing.T) {
	job := &Job{Category: CategoryAutomotive, Postcode: "200", Vehicle: &Vehicle{LicensePlate: "ab 123"}}
	if !IsComplete(job) {
		t.Fatal("expected automotive job with plate and postcode to be complete")
	}
	if job.Title != "" || job.Vehicle.LicensePlate != "ab 123" {
		t.Fatalf("IsComplete mutated the job: %+v %+v", job, job.Vehicle)
	}
}
