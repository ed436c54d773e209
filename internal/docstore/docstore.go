// Package docstore is the persistence boundary of the marketplace. Every
// aggregate is stored as a JSON document keyed by (collection, id); the
// backends only guarantee single-document atomicity.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
)

var (
	// ErrNotFound is returned by Get and Increment for an unknown id.
	ErrNotFound = errors.New("docstore: document not found")
	// ErrDuplicate is returned by Create when the id already exists.
	ErrDuplicate = errors.New("docstore: duplicate id")
)

// Op is a filter comparison.
type Op int

const (
	OpEq Op = iota
	OpIn
	OpNe
)

// Condition compares one top-level field.
type Condition struct {
	Field  string
	Op     Op
	Value  any
	Values []any
}

// Filter is a conjunction of conditions. The empty filter matches everything.
type Filter []Condition

// Eq matches documents whose field equals value. Eq(field, nil) matches a
// missing or null field.
func Eq(field string, value any) Condition {
	return Condition{Field: field, Op: OpEq, Value: value}
}

// Ne matches documents whose field differs from value, including documents
// where the field is missing. Ne(field, nil) matches a present non-null field.
func Ne(field string, value any) Condition {
	return Condition{Field: field, Op: OpNe, Value: value}
}

// In matches documents whose field equals any of values.
func In[T any](field string, values ...T) Condition {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return Condition{Field: field, Op: OpIn, Values: out}
}

// Where builds a filter from conditions.
func Where(conds ...Condition) Filter {
	return Filter(conds)
}

// Page bounds a query. A zero Limit means no limit.
type Page struct {
	Limit int
	Skip  int
}

// All is the unbounded page.
var All = Page{}

// Patch sets top-level fields. A nil value stores null.
type Patch map[string]any

// Store is the document store contract every backend implements.
type Store interface {
	// Get decodes the document into out or returns ErrNotFound.
	Get(ctx context.Context, collection, id string, out any) error
	// Query decodes matching documents into out, which must point to a slice.
	// Results come back in a stable, backend-defined order.
	Query(ctx context.Context, collection string, filter Filter, page Page, out any) error
	// Create inserts doc under id or returns ErrDuplicate.
	Create(ctx context.Context, collection, id string, doc any) error
	// Update applies patch and reports whether the document existed.
	Update(ctx context.Context, collection, id string, patch Patch) (bool, error)
	// UpdateIf applies patch only when the document also matches expect.
	// It reports whether the write happened.
	UpdateIf(ctx context.Context, collection, id string, expect Filter, patch Patch) (bool, error)
	// Increment adds delta to a numeric field; a missing field counts as zero.
	Increment(ctx context.Context, collection, id, field string, delta int) error
	// Delete removes the document and reports whether it existed.
	Delete(ctx context.Context, collection, id string) (bool, error)
}

// Normalize converts doc into its JSON object representation.
func Normalize(doc any) (map[string]any, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("docstore: encode document: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("docstore: document must be a JSON object: %w", err)
	}
	return out, nil
}

// NormalizeValue converts a scalar or composite value into its JSON shape so
// typed strings and integers compare equal to stored values.
func NormalizeValue(value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("docstore: encode value: %w", err)
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("docstore: decode value: %w", err)
	}
	return out, nil
}

// NormalizePatch normalizes every value of a patch.
func NormalizePatch(patch Patch) (map[string]any, error) {
	out := make(map[string]any, len(patch))
	for field, value := range patch {
		if field == "" {
			return nil, errors.New("docstore: empty patch field")
		}
		v, err := NormalizeValue(value)
		if err != nil {
			return nil, err
		}
		out[field] = v
	}
	return out, nil
}

// NormalizeFilter returns a copy of f with normalized comparison values.
func NormalizeFilter(f Filter) (Filter, error) {
	out := make(Filter, len(f))
	for i, cond := range f {
		if cond.Field == "" {
			return nil, errors.New("docstore: empty filter field")
		}
		c := Condition{Field: cond.Field, Op: cond.Op}
		v, err := NormalizeValue(cond.Value)
		if err != nil {
			return nil, err
		}
		c.Value = v
		if cond.Op == OpIn {
			c.Values = make([]any, len(cond.Values))
			for j, item := range cond.Values {
				nv, err := NormalizeValue(item)
				if err != nil {
					return nil, err
				}
				c.Values[j] = nv
			}
		}
		out[i] = c
	}
	return out, nil
}

// Matches evaluates a normalized filter against a normalized document.
func Matches(doc map[string]any, f Filter) bool {
	for _, cond := range f {
		value, present := doc[cond.Field]
		if !present {
			value = nil
		}
		switch cond.Op {
		case OpEq:
			if !equal(value, cond.Value) {
				return false
			}
		case OpNe:
			if equal(value, cond.Value) {
				return false
			}
		case OpIn:
			found := false
			for _, candidate := range cond.Values {
				if equal(value, candidate) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func equal(a, b any) bool {
	return reflect.DeepEqual(a, b)
}

// Decode copies a normalized document into out.
func Decode(doc map[string]any, out any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("docstore: encode document: %w", err)
	}
	return DecodeRaw(raw, out)
}

// DecodeRaw unmarshals a raw JSON document into out.
func DecodeRaw(raw []byte, out any) error {
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("docstore: decode document: %w", err)
	}
	return nil
}

// DecodeAll unmarshals raw JSON documents into out, a pointer to a slice.
func DecodeAll(raws []json.RawMessage, out any) error {
	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Pointer || rv.Elem().Kind() != reflect.Slice {
		return errors.New("docstore: query output must be a pointer to a slice")
	}
	if raws == nil {
		raws = []json.RawMessage{}
	}
	raw, err := json.Marshal(raws)
	if err != nil {
		return fmt.Errorf("docstore: encode documents: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("docstore: decode documents: %w", err)
	}
	return nil
}

// ApplyPage slices n items according to page and returns the bounds.
func ApplyPage(n int, page Page) (start, end int) {
	start = page.Skip
	if start < 0 {
		start = 0
	}
	if start > n {
		start = n
	}
	end = n
	if page.Limit > 0 && start+page.Limit < end {
		end = start + page.Limit
	}
	return start, end
}
