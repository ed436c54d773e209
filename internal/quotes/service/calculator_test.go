package service

import (
	"testing"

	"marketplace_backend/internal/quotes/repository"
)

func TestParseQuantityNumber(t *testing.T) {
	cases := []struct {
		input string
		want  float64
	}{
		{input: "5 x", want: 5},
		{input: "10 m²", want: 10},
		{input: "3,5 klst", want: 3.5},
		{input: "", want: 1},
		{input: "a few", want: 1},
		{input: "0", want: 1},
	}
	for _, tc := range cases {
		if got := parseQuantityNumber(tc.input); got != tc.want {
			t.Fatalf("parseQuantityNumber(%q) = %v, want %v", tc.input, got, tc.want)
		}
	}
}

func TestSummarizeMaterials(t *testing.T) {
	lines, total := SummarizeMaterials([]repository.Material{
		{Description: "pipe", Quantity: "2,5 m", UnitPriceCents: 1000},
		{Description: "valve", Quantity: "", UnitPriceCents: 4599},
	})

	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if lines[0].LineTotalCents != 2500 {
		t.Fatalf("expected first line 2500, got %d", lines[0].LineTotalCents)
	}
	if lines[1].LineTotalCents != 4599 {
		t.Fatalf("expected second line 4599, got %d", lines[1].LineTotalCents)
	}
	if total != 7099 {
		t.Fatalf("expected total 7099, got %d", total)
	}
}

func TestSummarizeMaterialsEmpty(t *testing.T) {
	lines, total := SummarizeMaterials(nil)
	if lines == nil || len(lines) != 0 || total != 0 {
		t.Fatalf("expected empty non-nil lines and zero total, got %v %d", lines, total)
	}
}
