// Package service coordinates quotes against the job lifecycle: submission
// within the job's quote limits, acceptance with a single winner, withdrawal,
// and lazy expiry.
package service

import (
	"context"
	"time"

	"marketplace_backend/internal/docstore"
	"marketplace_backend/internal/events"
	jobdomain "marketplace_backend/internal/jobs/domain"
	"marketplace_backend/internal/quotes/repository"
	"marketplace_backend/platform/apperr"
	"marketplace_backend/platform/config"
	"marketplace_backend/platform/logger"
)

// JobLedger is the slice of the job lifecycle quotes move through.
// Implemented by the jobs service.
type JobLedger interface {
	Lookup(ctx context.Context, id string) (*jobdomain.Job, error)
	ReserveQuoteSlot(ctx context.Context, jobID string) (*jobdomain.Job, error)
	ReleaseQuoteSlot(ctx context.Context, jobID string) error
	MarkAccepted(ctx context.Context, p jobdomain.Principal, jobID, quoteID, professionalID string) (*jobdomain.Job, error)
}

const (
	defaultCurrency = "ISK"
	defaultValidity = 7 * 24 * time.Hour
	defaultPageSize = 20
	maxPageSize     = 100

	// A lock whose quote never got written is abandoned after this long.
	staleLockAge = time.Minute
	// An accepted quote the job does not reference is left alone this long,
	// so an accept still in flight is not undone.
	orphanedAcceptGrace = time.Minute
)

// Service provides business logic for quotes
type Service struct {
	repo     *repository.Repository
	jobs     JobLedger
	cfg      config.MarketplaceConfig
	log      *logger.Logger
	eventBus events.Bus
	now      func() time.Time
}

// New creates a new quotes service
func New(repo *repository.Repository, jobs JobLedger, cfg config.MarketplaceConfig, log *logger.Logger) *Service {
	return &Service{
		repo: repo,
		jobs: jobs,
		cfg:  cfg,
		log:  log,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// SetEventBus injects the event bus.
func (s *Service) SetEventBus(bus events.Bus) {
	s.eventBus = bus
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	if s.eventBus == nil {
		return
	}
	s.eventBus.Publish(ctx, event)
}

func (s *Service) validity() time.Duration {
	if v := s.cfg.GetQuoteValidity(); v > 0 {
		return v
	}
	return defaultValidity
}

// lostRace explains a failed compare-and-set on a quote's status.
func (s *Service) lostRace(ctx context.Context, id string, to repository.Status) error {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if current.Status != repository.StatusPending {
		return apperr.InvalidTransition(string(current.Status), string(to))
	}
	return apperr.Conflict("quote was modified concurrently; reload and retry")
}

// expire persists the expiry of a pending quote past expiresAt. A quote that
// changed in the meantime is reloaded instead.
func (s *Service) expire(ctx context.Context, q *repository.Quote, now time.Time) {
	ok, err := s.repo.UpdateIfStatus(ctx, q.ID, repository.StatusPending, docstore.Patch{
		repository.FieldStatus: repository.StatusExpired,
		"updatedAt":            now,
	})
	switch {
	case err != nil:
		s.log.Warn("failed to persist quote expiry", "quoteId", q.ID, "error", err)
		q.Status = repository.StatusExpired
	case ok:
		q.Status = repository.StatusExpired
		q.UpdatedAt = now
		s.publish(ctx, events.QuoteExpired{
			BaseEvent:      events.NewBaseEvent(),
			QuoteID:        q.ID,
			JobID:          q.JobRequestID,
			ProfessionalID: q.ProfessionalID,
		})
	default:
		if current, err := s.repo.GetByID(ctx, q.ID); err == nil {
			*q = *current
		}
	}
}

// settle applies lazy expiry to quotes read from the store.
func (s *Service) settle(ctx context.Context, quotes []repository.Quote) {
	now := s.now()
	for i := range quotes {
		if quotes[i].ExpiredAt(now) {
			s.expire(ctx, &quotes[i], now)
		}
	}
}

// decline moves a pending quote to rejected and tells its professional.
func (s *Service) decline(ctx context.Context, q *repository.Quote, jobTitle, reason string, now time.Time) bool {
	ok, err := s.repo.UpdateIfStatus(ctx, q.ID, repository.StatusPending, docstore.Patch{
		repository.FieldStatus: repository.StatusRejected,
		"respondedAt":          now,
		"updatedAt":            now,
	})
	if err != nil {
		s.log.Warn("failed to decline quote", "quoteId", q.ID, "error", err)
		return false
	}
	if !ok {
		return false
	}
	q.Status = repository.StatusRejected
	q.RespondedAt = &now
	q.UpdatedAt = now
	s.publish(ctx, events.QuoteDeclined{
		BaseEvent:      events.NewBaseEvent(),
		QuoteID:        q.ID,
		JobID:          q.JobRequestID,
		ProfessionalID: q.ProfessionalID,
		JobTitle:       jobTitle,
		Reason:         reason,
	})
	return true
}

// rejectPending declines every pending quote on the job except keepID.
// Failures are logged; reconcile picks up whatever is left on the next read.
func (s *Service) rejectPending(ctx context.Context, job *jobdomain.Job, keepID, reason string) int {
	pending, err := s.repo.ListPendingForJob(ctx, job.ID)
	if err != nil {
		s.log.Warn("failed to load pending quotes for sweep", "jobId", job.ID, "error", err)
		return 0
	}
	now := s.now()
	declined := 0
	for i := range pending {
		if pending[i].ID == keepID {
			continue
		}
		if s.decline(ctx, &pending[i], job.Title, reason, now) {
			declined++
		}
	}
	return declined
}

func declineReason(job *jobdomain.Job) string {
	if job.Status == jobdomain.StatusCancelled {
		return events.DeclineReasonJobCancelled
	}
	return events.DeclineReasonOtherAccepted
}

// revertAccept undoes step one of an accept whose job write failed. The quote
// goes back to pending while the job still takes quotes, otherwise it is
// declined. A nil job means the job could not be read and keeps it pending.
func (s *Service) revertAccept(ctx context.Context, q *repository.Quote, job *jobdomain.Job) error {
	now := s.now()
	if job == nil || job.Status.AcceptsQuotes() {
		ok, err := s.repo.UpdateIfStatus(ctx, q.ID, repository.StatusAccepted, docstore.Patch{
			repository.FieldStatus: repository.StatusPending,
			"respondedAt":          nil,
			"updatedAt":            now,
		})
		if ok {
			q.Status = repository.StatusPending
			q.RespondedAt = nil
			q.UpdatedAt = now
		}
		return err
	}

	ok, err := s.repo.UpdateIfStatus(ctx, q.ID, repository.StatusAccepted, docstore.Patch{
		repository.FieldStatus: repository.StatusRejected,
		"respondedAt":          now,
		"updatedAt":            now,
	})
	if ok {
		q.Status = repository.StatusRejected
		q.RespondedAt = &now
		q.UpdatedAt = now
		s.publish(ctx, events.QuoteDeclined{
			BaseEvent:      events.NewBaseEvent(),
			QuoteID:        q.ID,
			JobID:          q.JobRequestID,
			ProfessionalID: q.ProfessionalID,
			JobTitle:       job.Title,
			Reason:         declineReason(job),
		})
	}
	return err
}

// reconcile repairs what a partially failed accept can leave behind: pending
// quotes on a job that no longer takes quotes are declined, and an accepted
// quote the job never recorded is reverted.
func (s *Service) reconcile(ctx context.Context, job *jobdomain.Job, quotes []repository.Quote) {
	now := s.now()
	for i := range quotes {
		q := &quotes[i]
		switch q.Status {
		case repository.StatusPending:
			if job.Status.AcceptsQuotes() || job.Status == jobdomain.StatusDraft {
				continue
			}
			s.decline(ctx, q, job.Title, declineReason(job), now)
		case repository.StatusAccepted:
			if job.AcceptedQuoteID != nil && *job.AcceptedQuoteID == q.ID {
				continue
			}
			if now.Sub(q.UpdatedAt) < orphanedAcceptGrace {
				continue
			}
			if err := s.revertAccept(ctx, q, job); err != nil {
				s.log.Warn("failed to revert orphaned accepted quote", "quoteId", q.ID, "error", err)
			}
		}
	}
}
