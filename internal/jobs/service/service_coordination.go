package service

import (
	"context"

	"marketplace_backend/internal/docstore"
	"marketplace_backend/internal/events"
	"marketplace_backend/internal/jobs/domain"
	"marketplace_backend/platform/apperr"
)

// ReserveQuoteSlot counts a new quote against the job and moves an open job
// to quoted. The write is a compare-and-set on (status, quotesCount) so
// concurrent submitters can never push quotesCount past maxQuotes.
func (s *Service) ReserveQuoteSlot(ctx context.Context, jobID string) (*domain.Job, error) {
	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		job, err := s.repo.GetByID(ctx, jobID)
		if err != nil {
			return nil, err
		}
		if !job.Status.AcceptsQuotes() {
			return nil, apperr.InvalidTransition(string(job.Status), string(domain.StatusQuoted))
		}
		now := s.now()
		if job.QuotesCount >= job.MaxQuotes {
			return nil, apperr.ValidationField("quotesCount", "job has reached its quote limit")
		}
		if job.QuoteDeadline != nil && !now.Before(*job.QuoteDeadline) {
			return nil, apperr.ValidationField(domain.FieldQuoteDeadline, "quote deadline has passed")
		}

		from := job.Status
		patch := docstore.Patch{
			"quotesCount": job.QuotesCount + 1,
			"updatedAt":   now,
		}
		var t domain.Transition
		if from == domain.StatusOpen {
			t, err = domain.Resolve(from, domain.StatusQuoted, domain.TriggerQuoteReceived)
			if err != nil {
				return nil, err
			}
			patch[domain.FieldStatus] = domain.StatusQuoted
		}

		expect := docstore.Where(
			docstore.Eq(domain.FieldStatus, from),
			docstore.Eq("quotesCount", job.QuotesCount),
		)
		ok, err := s.repo.UpdateIf(ctx, jobID, expect, patch)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}

		job.QuotesCount++
		job.UpdatedAt = now
		if t.To != "" {
			job.Status = t.To
			s.publishTransition(ctx, job, from, t, domain.System.Actor.ID)
		}
		return job, nil
	}
	return nil, apperr.Conflict("job is busy; retry the quote")
}

// ReleaseQuoteSlot uncounts a withdrawn quote. When the last quote of a
// quoted job goes away the job reopens.
func (s *Service) ReleaseQuoteSlot(ctx context.Context, jobID string) error {
	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		job, err := s.repo.GetByID(ctx, jobID)
		if err != nil {
			return err
		}
		if job.QuotesCount <= 0 {
			return nil
		}

		from := job.Status
		now := s.now()
		remaining := job.QuotesCount - 1
		patch := docstore.Patch{
			"quotesCount": remaining,
			"updatedAt":   now,
		}
		var t domain.Transition
		if from == domain.StatusQuoted && remaining == 0 {
			t, err = domain.Resolve(from, domain.StatusOpen, domain.TriggerReopen)
			if err != nil {
				return err
			}
			patch[domain.FieldStatus] = domain.StatusOpen
		}

		expect := docstore.Where(
			docstore.Eq(domain.FieldStatus, from),
			docstore.Eq("quotesCount", job.QuotesCount),
		)
		ok, err := s.repo.UpdateIf(ctx, jobID, expect, patch)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if t.To != "" {
			job.Status = t.To
			s.publishTransition(ctx, job, from, t, domain.System.Actor.ID)
		}
		return nil
	}
	return apperr.Conflict("job is busy; retry the withdrawal")
}

// MarkAccepted assigns the professional of an accepted quote. Only the first
// of several concurrent callers wins; the others observe accepted and get
// InvalidTransition.
func (s *Service) MarkAccepted(ctx context.Context, p domain.Principal, jobID, quoteID, professionalID string) (*domain.Job, error) {
	job, err := s.repo.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	t, err := domain.Resolve(job.Status, domain.StatusAccepted, domain.TriggerAcceptQuote)
	if err != nil {
		return nil, err
	}
	if err := domain.CanTransition(p, job, t).Err(); err != nil {
		return nil, err
	}

	from := job.Status
	now := s.now()
	patch := docstore.Patch{
		domain.FieldStatus:       domain.StatusAccepted,
		"assignedProfessionalId": professionalID,
		"acceptedQuoteId":        quoteID,
		"updatedAt":              now,
	}
	ok, err := s.repo.UpdateIfStatus(ctx, jobID, from, patch)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, s.lostRace(ctx, jobID, domain.StatusAccepted)
	}

	job.Status = domain.StatusAccepted
	job.AssignedProfessionalID = &professionalID
	job.AcceptedQuoteID = &quoteID
	job.UpdatedAt = now

	s.publishTransition(ctx, job, from, t, p.Actor.ID)
	s.publish(ctx, events.JobAccepted{
		BaseEvent:      events.NewBaseEvent(),
		JobID:          job.ID,
		OwnerID:        job.OwnerID(),
		ProfessionalID: professionalID,
		QuoteID:        quoteID,
		Title:          job.Title,
	})
	return job, nil
}

// FindLinkCandidates returns unowned draft or open jobs attributed to the
// guest token hash or carrying the contact email, without duplicates.
func (s *Service) FindLinkCandidates(ctx context.Context, guestTokenHash, email string) ([]domain.Job, error) {
	base := []docstore.Condition{
		docstore.Eq("customerId", nil),
		docstore.In(domain.FieldStatus, domain.StatusDraft, domain.StatusOpen),
	}

	var filters []docstore.Filter
	if guestTokenHash != "" {
		filters = append(filters, append(docstore.Where(docstore.Eq("guestTokenHash", guestTokenHash)), base...))
	}
	if email = normalizeEmail(email); email != "" {
		filters = append(filters, append(docstore.Where(docstore.Eq(domain.FieldContactEmail, email)), base...))
	}

	seen := make(map[string]bool)
	var candidates []domain.Job
	for _, filter := range filters {
		jobs, err := s.repo.Query(ctx, filter)
		if err != nil {
			return nil, err
		}
		for _, job := range jobs {
			if seen[job.ID] {
				continue
			}
			seen[job.ID] = true
			candidates = append(candidates, job)
		}
	}
	return candidates, nil
}

// LinkToAccount claims an unowned job for accountID. The write only lands if
// the job is still unowned and in the status the caller observed, so a
// concurrent linker or transition makes it report false.
func (s *Service) LinkToAccount(ctx context.Context, job domain.Job, accountID string) (bool, error) {
	expect := docstore.Where(
		docstore.Eq("customerId", nil),
		docstore.Eq(domain.FieldStatus, job.Status),
	)
	patch := docstore.Patch{
		"customerId":     accountID,
		"guestTokenHash": nil,
		"updatedAt":      s.now(),
	}
	return s.repo.UpdateIf(ctx, job.ID, expect, patch)
}
