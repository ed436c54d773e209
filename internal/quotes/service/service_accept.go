package service

import (
	"context"
	"strings"

	"marketplace_backend/internal/docstore"
	"marketplace_backend/internal/events"
	jobdomain "marketplace_backend/internal/jobs/domain"
	"marketplace_backend/internal/quotes/repository"
	"marketplace_backend/platform/apperr"
)

// loadForJob loads a quote of jobID together with its job, applying lazy expiry.
func (s *Service) loadForJob(ctx context.Context, jobID, quoteID string) (*repository.Quote, *jobdomain.Job, error) {
	quote, err := s.repo.GetByID(ctx, quoteID)
	if err != nil {
		return nil, nil, err
	}
	if quote.JobRequestID != jobID {
		return nil, nil, apperr.NotFound("quote not found")
	}
	job, err := s.jobs.Lookup(ctx, jobID)
	if err != nil {
		return nil, nil, err
	}
	if now := s.now(); quote.ExpiredAt(now) {
		s.expire(ctx, quote, now)
	}
	return quote, job, nil
}

// AcceptQuote makes quoteID the winner of its job. The writes are ordered so
// that a failure at any step leaves a state reconcile can repair: the quote
// goes to accepted first, then the job is assigned with a compare-and-set on
// its status, then the other pending quotes are declined.
func (s *Service) AcceptQuote(ctx context.Context, p jobdomain.Principal, jobID, quoteID string) (*repository.Quote, error) {
	quote, job, err := s.loadForJob(ctx, jobID, quoteID)
	if err != nil {
		return nil, err
	}
	if !p.IsOwner(job) {
		return nil, apperr.Forbidden("only the job owner may accept a quote")
	}
	if quote.Status != repository.StatusPending {
		return nil, apperr.InvalidTransition(string(quote.Status), string(repository.StatusAccepted))
	}
	if !job.Status.AcceptsQuotes() {
		return nil, apperr.InvalidTransition(string(job.Status), string(jobdomain.StatusAccepted))
	}

	now := s.now()
	ok, err := s.repo.UpdateIfStatus(ctx, quote.ID, repository.StatusPending, docstore.Patch{
		repository.FieldStatus: repository.StatusAccepted,
		"respondedAt":          now,
		"updatedAt":            now,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, s.lostRace(ctx, quote.ID, repository.StatusAccepted)
	}
	quote.Status = repository.StatusAccepted
	quote.RespondedAt = &now
	quote.UpdatedAt = now

	if _, err := s.jobs.MarkAccepted(ctx, p, jobID, quote.ID, quote.ProfessionalID); err != nil {
		current, lookupErr := s.jobs.Lookup(ctx, jobID)
		if lookupErr != nil {
			current = nil
		}
		if revertErr := s.revertAccept(ctx, quote, current); revertErr != nil {
			s.log.Error("failed to revert quote after job accept failed", "quoteId", quote.ID, "error", revertErr)
		}
		return nil, err
	}

	s.rejectPending(ctx, job, quote.ID, events.DeclineReasonOtherAccepted)

	s.publish(ctx, events.QuoteAccepted{
		BaseEvent:      events.NewBaseEvent(),
		QuoteID:        quote.ID,
		JobID:          jobID,
		OwnerID:        job.OwnerID(),
		ProfessionalID: quote.ProfessionalID,
		JobTitle:       job.Title,
	})
	return quote, nil
}

// RejectQuote lets the owner decline one pending quote. The quote keeps its
// slot on the job.
func (s *Service) RejectQuote(ctx context.Context, p jobdomain.Principal, jobID, quoteID, reason string) (*repository.Quote, error) {
	quote, job, err := s.loadForJob(ctx, jobID, quoteID)
	if err != nil {
		return nil, err
	}
	if !p.IsOwner(job) {
		return nil, apperr.Forbidden("only the job owner may reject a quote")
	}
	if quote.Status != repository.StatusPending {
		return nil, apperr.InvalidTransition(string(quote.Status), string(repository.StatusRejected))
	}

	declineReason := events.DeclineReasonOwnerRejected
	if reason = strings.TrimSpace(reason); reason != "" {
		s.log.Info("quote rejected by owner", "quoteId", quote.ID, "reason", reason)
	}
	if !s.decline(ctx, quote, job.Title, declineReason, s.now()) {
		return nil, s.lostRace(ctx, quote.ID, repository.StatusRejected)
	}
	return quote, nil
}

// RejectPendingForJob declines what is still pending on a job that stopped
// taking quotes. It backs the JobCancelled subscription.
func (s *Service) RejectPendingForJob(ctx context.Context, jobID string) error {
	job, err := s.jobs.Lookup(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status.AcceptsQuotes() {
		return nil
	}
	s.rejectPending(ctx, job, "", declineReason(job))
	return nil
}
