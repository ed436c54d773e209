package service

import (
	"context"
	"strings"
	"time"

	"marketplace_backend/internal/docstore"
	"marketplace_backend/internal/events"
	jobdomain "marketplace_backend/internal/jobs/domain"
	"marketplace_backend/internal/quotes/repository"
	"marketplace_backend/internal/quotes/transport"
	"marketplace_backend/platform/apperr"
	"marketplace_backend/platform/httpkit"
	"marketplace_backend/platform/sanitize"

	"github.com/google/uuid"
)

// SubmitQuote records a professional's bid. The job must be taking quotes and
// the professional may hold only one pending quote on it.
func (s *Service) SubmitQuote(ctx context.Context, actor httpkit.Actor, jobID string, req transport.SubmitQuoteRequest) (*repository.Quote, error) {
	if !actor.IsProfessional() {
		return nil, apperr.Forbidden("only professionals can submit quotes")
	}
	job, err := s.jobs.Lookup(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !job.Status.AcceptsQuotes() {
		return nil, apperr.InvalidTransition(string(job.Status), string(jobdomain.StatusQuoted))
	}

	now := s.now()
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = defaultCurrency
	}
	quote := &repository.Quote{
		ID:             uuid.New().String(),
		JobRequestID:   jobID,
		ProfessionalID: actor.ID,
		PriceCents:     req.PriceCents,
		Currency:       currency,
		Timeline:       strings.TrimSpace(req.Timeline),
		Description:    sanitize.Text(req.Description),
		Materials:      toMaterials(req.Materials),
		Status:         repository.StatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
		ExpiresAt:      now.Add(s.validity()),
	}
	if quote.Description == "" {
		return nil, apperr.ValidationField("description", "description is required")
	}

	lockID := repository.LockID(jobID, actor.ID)
	if err := s.acquirePendingLock(ctx, lockID, quote.ID, now); err != nil {
		return nil, err
	}

	if _, err := s.jobs.ReserveQuoteSlot(ctx, jobID); err != nil {
		s.releaseLock(ctx, lockID, quote.ID)
		return nil, err
	}
	if err := s.repo.Create(ctx, quote); err != nil {
		if releaseErr := s.jobs.ReleaseQuoteSlot(ctx, jobID); releaseErr != nil {
			s.log.Error("failed to release quote slot after failed create", "jobId", jobID, "error", releaseErr)
		}
		s.releaseLock(ctx, lockID, quote.ID)
		return nil, err
	}

	s.publish(ctx, events.QuoteCreated{
		BaseEvent:      events.NewBaseEvent(),
		QuoteID:        quote.ID,
		JobID:          jobID,
		OwnerID:        job.OwnerID(),
		ContactEmail:   job.ContactEmail,
		ProfessionalID: actor.ID,
		PriceCents:     quote.PriceCents,
		Currency:       quote.Currency,
		JobTitle:       job.Title,
	})
	return quote, nil
}

// acquirePendingLock claims the (job, professional) lock for quoteID. A lock
// held by a quote that is no longer pending is taken over.
func (s *Service) acquirePendingLock(ctx context.Context, lockID, quoteID string, now time.Time) error {
	for attempt := 0; attempt < 2; attempt++ {
		ok, err := s.repo.AcquireLock(ctx, &repository.PendingLock{ID: lockID, QuoteID: quoteID, CreatedAt: now})
		if err != nil {
			return err
		}
		if ok {
			return nil
		}

		lock, err := s.repo.GetLock(ctx, lockID)
		if err != nil {
			return err
		}
		if lock == nil {
			continue
		}
		stale, err := s.lockIsStale(ctx, lock, now)
		if err != nil {
			return err
		}
		if !stale {
			return apperr.Conflict("you already have a pending quote on this job; update it instead")
		}
		ok, err = s.repo.TakeOverLock(ctx, lockID, lock.QuoteID, quoteID, now)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}
	return apperr.Conflict("another quote is being submitted for this job; retry")
}

func (s *Service) lockIsStale(ctx context.Context, lock *repository.PendingLock, now time.Time) (bool, error) {
	held, err := s.repo.GetByID(ctx, lock.QuoteID)
	if apperr.Is(err, apperr.KindNotFound) {
		return now.Sub(lock.CreatedAt) > staleLockAge, nil
	}
	if err != nil {
		return false, err
	}
	if held.ExpiredAt(now) {
		s.expire(ctx, held, now)
	}
	return held.Status != repository.StatusPending, nil
}

func (s *Service) releaseLock(ctx context.Context, lockID, quoteID string) {
	if err := s.repo.ReleaseLock(ctx, lockID, quoteID); err != nil {
		s.log.Warn("failed to release pending quote lock", "lockId", lockID, "error", err)
	}
}

// loadOwn loads a quote of the acting professional and applies lazy expiry.
func (s *Service) loadOwn(ctx context.Context, actor httpkit.Actor, quoteID string) (*repository.Quote, error) {
	quote, err := s.repo.GetByID(ctx, quoteID)
	if err != nil {
		return nil, err
	}
	if quote.ProfessionalID != actor.ID {
		return nil, apperr.Forbidden("only the submitting professional may change this quote")
	}
	if now := s.now(); quote.ExpiredAt(now) {
		s.expire(ctx, quote, now)
	}
	return quote, nil
}

// UpdateQuote edits the acting professional's pending quote in place.
func (s *Service) UpdateQuote(ctx context.Context, actor httpkit.Actor, quoteID string, req transport.UpdateQuoteRequest) (*repository.Quote, error) {
	quote, err := s.loadOwn(ctx, actor, quoteID)
	if err != nil {
		return nil, err
	}
	if quote.Status != repository.StatusPending {
		return nil, apperr.InvalidTransition(string(quote.Status), string(repository.StatusPending))
	}

	patch := docstore.Patch{"updatedAt": s.now()}
	if req.PriceCents != nil {
		patch["priceCents"] = *req.PriceCents
	}
	if req.Timeline != nil {
		patch["timeline"] = strings.TrimSpace(*req.Timeline)
	}
	if req.Description != nil {
		description := sanitize.Text(*req.Description)
		if description == "" {
			return nil, apperr.ValidationField("description", "description is required")
		}
		patch["description"] = description
	}
	if req.Materials != nil {
		patch["materials"] = toMaterials(*req.Materials)
	}

	ok, err := s.repo.UpdateIfStatus(ctx, quote.ID, repository.StatusPending, patch)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, s.lostRace(ctx, quote.ID, repository.StatusPending)
	}
	return s.repo.GetByID(ctx, quote.ID)
}

// WithdrawQuote pulls the acting professional's pending quote and frees its
// slot on the job. The last quote going away reopens the job.
func (s *Service) WithdrawQuote(ctx context.Context, actor httpkit.Actor, quoteID string) (*repository.Quote, error) {
	quote, err := s.loadOwn(ctx, actor, quoteID)
	if err != nil {
		return nil, err
	}
	if quote.Status != repository.StatusPending {
		return nil, apperr.InvalidTransition(string(quote.Status), string(repository.StatusWithdrawn))
	}

	now := s.now()
	ok, err := s.repo.UpdateIfStatus(ctx, quote.ID, repository.StatusPending, docstore.Patch{
		repository.FieldStatus: repository.StatusWithdrawn,
		"respondedAt":          now,
		"updatedAt":            now,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, s.lostRace(ctx, quote.ID, repository.StatusWithdrawn)
	}

	if err := s.jobs.ReleaseQuoteSlot(ctx, quote.JobRequestID); err != nil {
		// Put the quote back so quotesCount keeps matching the quotes that count.
		if _, undoErr := s.repo.UpdateIfStatus(ctx, quote.ID, repository.StatusWithdrawn, docstore.Patch{
			repository.FieldStatus: repository.StatusPending,
			"respondedAt":          nil,
			"updatedAt":            now,
		}); undoErr != nil {
			s.log.Error("failed to restore quote after slot release failed", "quoteId", quote.ID, "error", undoErr)
		}
		return nil, err
	}
	s.releaseLock(ctx, repository.LockID(quote.JobRequestID, quote.ProfessionalID), quote.ID)

	quote.Status = repository.StatusWithdrawn
	quote.RespondedAt = &now
	quote.UpdatedAt = now

	event := events.QuoteWithdrawn{
		BaseEvent:      events.NewBaseEvent(),
		QuoteID:        quote.ID,
		JobID:          quote.JobRequestID,
		ProfessionalID: quote.ProfessionalID,
	}
	if job, err := s.jobs.Lookup(ctx, quote.JobRequestID); err == nil {
		event.OwnerID = job.OwnerID()
		event.ContactEmail = job.ContactEmail
		event.JobTitle = job.Title
	}
	s.publish(ctx, event)
	return quote, nil
}
