package service

import (
	"context"
	"sort"
	"strings"

	"marketplace_backend/internal/docstore"
	"marketplace_backend/internal/events"
	"marketplace_backend/internal/jobs/domain"
	"marketplace_backend/internal/jobs/transport"
	"marketplace_backend/platform/apperr"
	"marketplace_backend/platform/sanitize"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Get returns a job the principal may view. Views by anyone but the owner
// bump the best-effort view counter.
func (s *Service) Get(ctx context.Context, p domain.Principal, id string) (*domain.Job, error) {
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := domain.CanView(p, job).Err(); err != nil {
		return nil, err
	}
	if !p.IsOwner(job) {
		if err := s.repo.IncrementViews(ctx, id); err != nil {
			s.log.Warn("view count increment failed", "jobId", id, "error", err)
		} else {
			job.ViewCount++
		}
	}
	return job, nil
}

// List returns a page of jobs for the scope the actor asked for.
// Customers default to their own jobs, professionals to the marketplace.
func (s *Service) List(ctx context.Context, p domain.Principal, req transport.ListJobsRequest) (*transport.JobListResponse, error) {
	actor := p.Actor
	if actor.IsAnonymous() {
		return nil, apperr.Unauthorized("authentication required")
	}

	scope := req.Scope
	if scope == "" {
		switch {
		case actor.IsAdmin():
			scope = "all"
		case actor.IsProfessional():
			scope = "marketplace"
		default:
			scope = "mine"
		}
	}

	var filter docstore.Filter
	switch scope {
	case "mine":
		if actor.IsProfessional() {
			filter = append(filter, docstore.Eq("assignedProfessionalId", actor.ID))
		} else {
			filter = append(filter, docstore.Eq("customerId", actor.ID))
		}
	case "marketplace":
		filter = append(filter, docstore.In(domain.FieldStatus, domain.StatusOpen, domain.StatusQuoted))
	case "all":
		if !actor.IsAdmin() {
			return nil, apperr.Forbidden("only admins may list all jobs")
		}
	default:
		return nil, apperr.ValidationField("scope", "unknown scope")
	}

	if req.Status != "" {
		status := domain.Status(strings.ToLower(req.Status))
		if !status.Valid() {
			return nil, apperr.ValidationField(domain.FieldStatus, "unknown status")
		}
		filter = append(filter, docstore.Eq(domain.FieldStatus, status))
	}
	if req.Category != "" {
		category, ok := domain.ParseCategory(req.Category)
		if !ok {
			return nil, apperr.ValidationField(domain.FieldCategory, "unknown category")
		}
		filter = append(filter, docstore.Eq(domain.FieldCategory, category))
	}

	jobs, err := s.repo.Query(ctx, filter)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})

	page, pageSize := normalizePage(req.Page, req.PageSize)
	start, end := docstore.ApplyPage(len(jobs), docstore.Page{Limit: pageSize, Skip: (page - 1) * pageSize})

	items := make([]transport.JobResponse, 0, end-start)
	for i := start; i < end; i++ {
		items = append(items, transport.ToJobResponse(&jobs[i]))
	}

	totalPages := (len(jobs) + pageSize - 1) / pageSize
	return &transport.JobListResponse{
		Items:      items,
		Total:      len(jobs),
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}, nil
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}

// Update edits the fields that remain editable after submit, then applies a
// requested status change, if any.
func (s *Service) Update(ctx context.Context, p domain.Principal, id string, req transport.UpdateJobRequest) (*domain.Job, error) {
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	patch := docstore.Patch{}
	var fields []string
	set := func(field string, value any) {
		patch[field] = value
		fields = append(fields, field)
	}
	if req.Title != nil {
		job.Title = sanitize.Text(*req.Title)
		set(domain.FieldTitle, job.Title)
	}
	if req.Description != nil {
		job.Description = sanitize.Text(*req.Description)
		set(domain.FieldDescription, job.Description)
	}
	if req.Address != nil {
		job.Address = strings.TrimSpace(*req.Address)
		set(domain.FieldAddress, job.Address)
	}
	if req.Budget != nil {
		job.Budget = toBudget(req.Budget)
		set(domain.FieldBudget, job.Budget)
	}
	if req.Priority != nil {
		job.Priority = toPriority(*req.Priority)
		set(domain.FieldPriority, job.Priority)
	}
	if req.QuoteDeadline != nil {
		job.QuoteDeadline = req.QuoteDeadline
		set(domain.FieldQuoteDeadline, job.QuoteDeadline)
	}
	checkFields := fields
	if req.Status != nil {
		checkFields = append(checkFields, domain.FieldStatus)
	}
	if err := domain.CanMutate(p, job, checkFields).Err(); err != nil {
		return nil, err
	}

	if len(patch) > 0 {
		if job.Status != domain.StatusDraft {
			if err := domain.VariantFor(job.Category).ValidateForSubmit(job); err != nil {
				return nil, err
			}
		}
		patch["updatedAt"] = s.now()
		ok, err := s.repo.UpdateIfStatus(ctx, id, job.Status, patch)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, apperr.Conflict("job was modified concurrently; reload and retry")
		}
	}

	if req.Status != nil {
		return s.Transition(ctx, p, id, *req.Status, req.Reason)
	}
	return s.repo.GetByID(ctx, id)
}

// Transition applies a caller-requested status change: submit, start,
// complete or cancel.
func (s *Service) Transition(ctx context.Context, p domain.Principal, id string, target string, reason string) (*domain.Job, error) {
	to := domain.Status(strings.ToLower(strings.TrimSpace(target)))
	if !to.Valid() {
		return nil, apperr.ValidationField(domain.FieldStatus, "unknown status")
	}

	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	t, err := domain.ResolveRequested(job.Status, to)
	if err != nil {
		return nil, err
	}
	if err := domain.CanTransition(p, job, t).Err(); err != nil {
		return nil, err
	}
	if t.Trigger == domain.TriggerSubmit {
		return s.publishDraft(ctx, job, t, p.Actor.ID)
	}

	from := job.Status
	previousAssignee := job.AssignedID()
	now := s.now()
	patch := docstore.Patch{
		domain.FieldStatus: t.To,
		"updatedAt":        now,
	}
	switch t.Trigger {
	case domain.TriggerStart:
		patch["startedAt"] = now
		job.StartedAt = &now
	case domain.TriggerComplete:
		patch["completedAt"] = now
		job.CompletedAt = &now
	case domain.TriggerCancel:
		reason = strings.TrimSpace(reason)
		patch["cancelledAt"] = now
		patch["cancelReason"] = reason
		patch["assignedProfessionalId"] = nil
		job.CancelledAt = &now
		job.CancelReason = reason
		job.AssignedProfessionalID = nil
	}

	ok, err := s.repo.UpdateIfStatus(ctx, id, from, patch)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, s.lostRace(ctx, id, t.To)
	}
	job.Status = t.To
	job.UpdatedAt = now

	s.publishTransition(ctx, job, from, t, p.Actor.ID)
	switch t.Trigger {
	case domain.TriggerComplete:
		s.publish(ctx, events.JobCompleted{
			BaseEvent:      events.NewBaseEvent(),
			JobID:          job.ID,
			OwnerID:        job.OwnerID(),
			ProfessionalID: job.AssignedID(),
			Title:          job.Title,
			ActorID:        p.Actor.ID,
		})
	case domain.TriggerCancel:
		s.publish(ctx, events.JobCancelled{
			BaseEvent:      events.NewBaseEvent(),
			JobID:          job.ID,
			OwnerID:        job.OwnerID(),
			ProfessionalID: previousAssignee,
			Title:          job.Title,
			Reason:         reason,
			ActorID:        p.Actor.ID,
		})
	}
	return job, nil
}

// Delete removes a job that has no pending quotes.
func (s *Service) Delete(ctx context.Context, p domain.Principal, id string) error {
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	pending := 0
	if s.quotes != nil {
		pending, err = s.quotes.CountPending(ctx, id)
		if err != nil {
			return err
		}
	}
	if err := domain.CanDelete(p, job, pending).Err(); err != nil {
		return err
	}
	ok, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NotFound("job not found")
	}
	s.removePhotos(ctx, id, job.Photos)
	return nil
}
