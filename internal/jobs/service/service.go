// Package service implements the job lifecycle: draft creation and editing,
// submission, status transitions, and the compare-and-set writes other
// modules use to move a job through quoting and acceptance.
package service

import (
	"context"
	"strings"
	"time"

	"marketplace_backend/internal/adapters/storage"
	"marketplace_backend/internal/events"
	"marketplace_backend/internal/jobs/domain"
	"marketplace_backend/internal/jobs/repository"
	"marketplace_backend/platform/apperr"
	"marketplace_backend/platform/config"
	"marketplace_backend/platform/httpkit"
	"marketplace_backend/platform/logger"
)

// GuestSessions issues and resolves guest tokens. Only token hashes reach the job documents.
type GuestSessions interface {
	Issue(ctx context.Context) (token string, hash string, err error)
	Resolve(ctx context.Context, token string) (hash string, ok bool, err error)
	AttachDraft(ctx context.Context, hash string, jobID string) error
}

// VehicleLookup prefills make and model for automotive drafts.
type VehicleLookup interface {
	Lookup(ctx context.Context, plate string) (*domain.Vehicle, error)
}

// PendingQuoteCounter reports how many quotes on a job are still pending.
type PendingQuoteCounter interface {
	CountPending(ctx context.Context, jobID string) (int, error)
}

const maxCASAttempts = 5

// Service provides job lifecycle operations.
type Service struct {
	repo     *repository.Repository
	cfg      config.MarketplaceConfig
	log      *logger.Logger
	eventBus events.Bus
	guests   GuestSessions
	vehicles VehicleLookup
	quotes   PendingQuoteCounter
	photos   storage.StorageService
	photoCfg PhotoConfig
	now      func() time.Time
}

// New creates a job service.
func New(repo *repository.Repository, cfg config.MarketplaceConfig, log *logger.Logger) *Service {
	return &Service{
		repo: repo,
		cfg:  cfg,
		log:  log,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// SetEventBus injects the event bus.
func (s *Service) SetEventBus(bus events.Bus) {
	s.eventBus = bus
}

// SetGuestSessions injects the guest session manager.
func (s *Service) SetGuestSessions(guests GuestSessions) {
	s.guests = guests
}

// SetVehicleLookup injects the optional vehicle registry.
func (s *Service) SetVehicleLookup(vehicles VehicleLookup) {
	s.vehicles = vehicles
}

// SetPendingQuoteCounter injects the quote counter used by Delete.
func (s *Service) SetPendingQuoteCounter(quotes PendingQuoteCounter) {
	s.quotes = quotes
}

// PrincipalFor combines the actor with a live guest session, if the cookie carries one.
func (s *Service) PrincipalFor(ctx context.Context, actor httpkit.Actor, guestToken string) (domain.Principal, error) {
	p := domain.Principal{Actor: actor}
	if guestToken == "" || s.guests == nil {
		return p, nil
	}
	hash, ok, err := s.guests.Resolve(ctx, guestToken)
	if err != nil {
		return p, err
	}
	if ok {
		p.GuestTokenHash = hash
	}
	return p, nil
}

// Lookup loads a job without any policy check. It is meant for other modules.
func (s *Service) Lookup(ctx context.Context, id string) (*domain.Job, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	if s.eventBus == nil {
		return
	}
	s.eventBus.Publish(ctx, event)
}

func (s *Service) publishTransition(ctx context.Context, job *domain.Job, from domain.Status, t domain.Transition, actorID string) {
	s.log.JobTransition(job.ID, string(from), string(t.To), actorID)
	s.publish(ctx, events.JobStatusChanged{
		BaseEvent: events.NewBaseEvent(),
		JobID:     job.ID,
		OwnerID:   job.OwnerID(),
		From:      string(from),
		To:        string(t.To),
		Trigger:   string(t.Trigger),
		ActorID:   actorID,
	})
}

// lostRace explains a failed compare-and-set on the job status.
func (s *Service) lostRace(ctx context.Context, id string, to domain.Status) error {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := domain.CheckTransition(current.Status, to); err != nil {
		return err
	}
	return apperr.Conflict("job was modified concurrently; reload and retry")
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
