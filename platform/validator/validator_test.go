package validator

import "testing"

func TestIsPostcode(t *testing.T) {
	cases := map[string]bool{
		"101":         true,
		"1011 AB":     true,
		"SW1A 1AA":    true,
		"10":          false,
		"":            false,
		"1011-AB-":    false,
		"12345678901": false,
	}
	for input, want := range cases {
		if got := IsPostcode(input); got != want {
			t.Errorf("IsPostcode(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestLicensePlate(t *testing.T) {
	if got := NormalizeLicensePlate(" ab-123 "); got != "AB123" {
		t.Fatalf("expected AB123, got %q", got)
	}
	cases := map[string]bool{
		"AB123":      true,
		"ab-c12":     true,
		"A":          false,
		"ABCDE12345": false,
		"AB#12":      false,
	}
	for input, want := range cases {
		if got := IsLicensePlate(input); got != want {
			t.Errorf("IsLicensePlate(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestStructTags(t *testing.T) {
	type payload struct {
		Postcode string `validate:"required,postcode"`
		Plate    string `validate:"omitempty,licenseplate"`
	}
	v := New()
	if err := v.Struct(payload{Postcode: "101", Plate: "AB-123"}); err != nil {
		t.Fatalf("expected valid payload, got %v", err)
	}
	err := v.Struct(payload{Postcode: "1"})
	if err == nil {
		t.Fatal("expected postcode failure")
	}
	if field := FirstField(err); field != "postcode" {
		t.Fatalf("expected postcode field, got %q", field)
	}
}
