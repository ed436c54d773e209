package docstore

import (
	"testing"
)

type kind string

func TestMatchesNormalizesTypedValues(t *testing.T) {
	doc, err := Normalize(map[string]any{"status": "open", "count": 3, "owner": nil})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}

	cases := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{name: "typed string", filter: Where(Eq("status", kind("open"))), want: true},
		{name: "int against float", filter: Where(Eq("count", 3)), want: true},
		{name: "null field", filter: Where(Eq("owner", nil)), want: true},
		{name: "missing field", filter: Where(Eq("absent", nil)), want: true},
		{name: "ne missing", filter: Where(Ne("absent", "x")), want: true},
		{name: "in miss", filter: Where(In("status", kind("draft"), kind("quoted"))), want: false},
		{name: "empty in", filter: Where(In[string]("status")), want: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f, err := NormalizeFilter(tc.filter)
			if err != nil {
				t.Fatalf("normalize filter: %v", err)
			}
			if got := Matches(doc, f); got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestApplyPage(t *testing.T) {
	cases := []struct {
		page       Page
		start, end int
	}{
		{page: All, start: 0, end: 5},
		{page: Page{Limit: 2}, start: 0, end: 2},
		{page: Page{Limit: 2, Skip: 4}, start: 4, end: 5},
		{page: Page{Skip: 9}, start: 5, end: 5},
		{page: Page{Skip: -1, Limit: 1}, start: 0, end: 1},
	}
	for _, tc := range cases {
		start, end := ApplyPage(5, tc.page)
		if start != tc.start || end != tc.end {
			t.Errorf("ApplyPage(5, %+v) = (%d, %d), want (%d, %d)", tc.page, start, end, tc.start, tc.end)
		}
	}
}

func TestDecodeAllRequiresSlicePointer(t *testing.T) {
	var notSlice struct{}
	if err := DecodeAll(nil, &notSlice); err == nil {
		t.Fatal("expected error for non-slice output")
	}
	var out []map[string]any
	if err := DecodeAll(nil, &out); err != nil {
		t.Fatalf("decode empty: %v", err)
	}
	if out == nil || len(out) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", out)
	}
}

func TestNormalizeRejectsNonObjects(t *testing.T) {
	if _, err := Normalize([]int{1, 2}); err == nil {
		t.Fatal("expected error for array document")
	}
	if _, err := NormalizePatch(Patch{"": 1}); err == nil {
		t.Fatal("expected error for empty field")
	}
}
