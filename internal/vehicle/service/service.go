// Package service provides cached vehicle registry lookups.
package service

import (
	"context"
	"sync"
	"time"

	"marketplace_backend/internal/vehicle/transport"
	"marketplace_backend/platform/apperr"
	"marketplace_backend/platform/logger"
	"marketplace_backend/platform/validator"
)

// Registry is the upstream plate lookup.
type Registry interface {
	GetByPlate(ctx context.Context, plate string) (*transport.Vehicle, error)
}

type cacheEntry struct {
	vehicle   *transport.Vehicle
	expiresAt time.Time
}

// Service handles vehicle lookups with caching.
type Service struct {
	registry Registry
	log      *logger.Logger
	cache    map[string]cacheEntry
	cacheMu  sync.RWMutex
	cacheTTL time.Duration
	now      func() time.Time
}

// New creates a new vehicle service.
func New(registry Registry, log *logger.Logger) *Service {
	return &Service{
		registry: registry,
		log:      log,
		cache:    make(map[string]cacheEntry),
		cacheTTL: 24 * time.Hour,
		now:      time.Now,
	}
}

// Lookup returns the registration of plate, or nil when the registry has none.
func (s *Service) Lookup(ctx context.Context, plate string) (*transport.Vehicle, error) {
	normalized := validator.NormalizeLicensePlate(plate)
	if !validator.IsLicensePlate(normalized) {
		return nil, apperr.ValidationField("licensePlate", "license plate is not valid")
	}

	if vehicle, ok := s.getFromCache(normalized); ok {
		return vehicle, nil
	}

	vehicle, err := s.registry.GetByPlate(ctx, normalized)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "vehicle registry unavailable", err).WithOp("vehicle.service.lookup")
	}

	// Misses are cached too so unknown plates do not hit the registry again.
	s.setCache(normalized, vehicle)
	return vehicle, nil
}

// ClearCache removes all cached entries.
func (s *Service) ClearCache() {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.cache = make(map[string]cacheEntry)
}

func (s *Service) getFromCache(key string) (*transport.Vehicle, bool) {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()

	entry, ok := s.cache[key]
	if !ok || s.now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.vehicle, true
}

func (s *Service) setCache(key string, vehicle *transport.Vehicle) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	s.cache[key] = cacheEntry{
		vehicle:   vehicle,
		expiresAt: s.now().Add(s.cacheTTL),
	}
}
