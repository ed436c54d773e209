package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"marketplace_backend/internal/vehicle/transport"
	"marketplace_backend/platform/apperr"
	"marketplace_backend/platform/logger"
)

type countingRegistry struct {
	calls    int
	vehicles map[string]transport.Vehicle
	err      error
}

func (r *countingRegistry) GetByPlate(_ context.Context, plate string) (*transport.Vehicle, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	v, ok := r.vehicles[plate]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func TestLookupCachesHitsAndMisses(t *testing.T) {
	registry := &countingRegistry{vehicles: map[string]transport.Vehicle{
		"AB123": {LicensePlate: "AB123", Make: "Toyota", Model: "Yaris"},
	}}
	svc := New(registry, logger.Nop())
	ctx := context.Background()

	for _, plate := range []string{"ab-123", "AB 123"} {
		v, err := svc.Lookup(ctx, plate)
		if err != nil || v == nil || v.Make != "Toyota" {
			t.Fatalf("lookup %q: %+v (%v)", plate, v, err)
		}
	}
	for i := 0; i < 2; i++ {
		if v, err := svc.Lookup(ctx, "ZZ999"); err != nil || v != nil {
			t.Fatalf("expected a cached miss, got %+v (%v)", v, err)
		}
	}
	if registry.calls != 2 {
		t.Fatalf("expected one registry call per plate, got %d", registry.calls)
	}
}

func TestLookupExpiresCache(t *testing.T) {
	registry := &countingRegistry{vehicles: map[string]transport.Vehicle{}}
	svc := New(registry, logger.Nop())
	now := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	_, _ = svc.Lookup(context.Background(), "AB123")
	now = now.Add(25 * time.Hour)
	_, _ = svc.Lookup(context.Background(), "AB123")

	if registry.calls != 2 {
		t.Fatalf("expected the entry to expire after a day, got %d calls", registry.calls)
	}
}

func TestLookupRejectsInvalidPlates(t *testing.T) {
	registry := &countingRegistry{}
	svc := New(registry, logger.Nop())

	_, err := svc.Lookup(context.Background(), "!")
	if apperr.Field(err) != "licensePlate" {
		t.Fatalf("expected licensePlate validation error, got %v", err)
	}
	if registry.calls != 0 {
		t.Fatal("invalid plates must not reach the registry")
	}
}

func TestLookupDoesNotCacheFailures(t *testing.T) {
	registry := &countingRegistry{err: errors.New("timeout")}
	svc := New(registry, logger.Nop())

	if _, err := svc.Lookup(context.Background(), "AB123"); !apperr.Is(err, apperr.KindInternal) {
		t.Fatalf("expected internal error, got %v", err)
	}
	registry.err = nil
	registry.vehicles = map[string]transport.Vehicle{"AB123": {Make: "Kia"}}
	if v, _ := svc.Lookup(context.Background(), "AB123"); v == nil || v.Make != "Kia" {
		t.Fatalf("expected a fresh lookup after a failure, got %+v", v)
	}
}
