package service

import (
	"context"
	"strings"

	"marketplace_backend/internal/docstore"
	"marketplace_backend/internal/events"
	"marketplace_backend/internal/jobs/domain"
	"marketplace_backend/internal/jobs/transport"
	"marketplace_backend/platform/apperr"
	"marketplace_backend/platform/httpkit"
	"marketplace_backend/platform/phone"
	"marketplace_backend/platform/sanitize"
	"marketplace_backend/platform/validator"

	"github.com/google/uuid"
)

// CreateResult is a new draft plus the guest token issued for it, if any.
type CreateResult struct {
	Job         *domain.Job
	IssuedToken string
}

// CreateDraft stores a new draft for a customer or a guest. Guests without a
// live session get a fresh token which the caller must set as a cookie.
func (s *Service) CreateDraft(ctx context.Context, actor httpkit.Actor, guestToken string, req transport.CreateJobRequest) (*CreateResult, error) {
	if actor.IsProfessional() {
		return nil, apperr.Forbidden("professionals cannot post jobs")
	}
	category, ok := domain.ParseCategory(req.Category)
	if !ok {
		return nil, apperr.ValidationField(domain.FieldCategory, "category is required")
	}

	now := s.now()
	job := &domain.Job{
		ID:            uuid.New().String(),
		ContactEmail:  normalizeEmail(req.ContactEmail),
		ContactName:   strings.TrimSpace(req.ContactName),
		Category:      category,
		Title:         sanitize.Text(req.Title),
		Description:   sanitize.Text(req.Description),
		Postcode:      strings.TrimSpace(req.Postcode),
		Address:       strings.TrimSpace(req.Address),
		Budget:        toBudget(req.Budget),
		Priority:      toPriority(req.Priority),
		Photos:        req.Photos,
		Status:        domain.StatusDraft,
		MaxQuotes:     req.MaxQuotes,
		QuoteDeadline: req.QuoteDeadline,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if job.MaxQuotes == 0 {
		job.MaxQuotes = s.cfg.GetQuoteDefaultMax()
	}
	if job.Photos == nil {
		job.Photos = []string{}
	}
	if job.ContactEmail == "" {
		job.ContactEmail = actor.Email
	}

	contactPhone, err := normalizePhone(req.ContactPhone)
	if err != nil {
		return nil, err
	}
	job.ContactPhone = contactPhone

	if req.Vehicle != nil {
		job.Vehicle = toVehicle(req.Vehicle)
	}
	if category == domain.CategoryAutomotive {
		s.prefillVehicle(ctx, job)
	}

	result := &CreateResult{Job: job}
	var guestHash string
	if actor.IsAnonymous() {
		guestHash, result.IssuedToken, err = s.guestOwner(ctx, guestToken)
		if err != nil {
			return nil, err
		}
		job.GuestTokenHash = &guestHash
	} else {
		accountID := actor.ID
		job.CustomerID = &accountID
	}

	if err := s.repo.Create(ctx, job); err != nil {
		return nil, err
	}

	if guestHash != "" {
		if err := s.guests.AttachDraft(ctx, guestHash, job.ID); err != nil {
			s.log.Warn("failed to attach draft to guest session", "jobId", job.ID, "error", err)
		}
	}

	s.publish(ctx, events.JobCreated{
		BaseEvent:    events.NewBaseEvent(),
		JobID:        job.ID,
		OwnerID:      job.OwnerID(),
		ContactEmail: job.ContactEmail,
		Category:     string(job.Category),
		Title:        job.Title,
		Guest:        job.CustomerID == nil,
	})

	return result, nil
}

// guestOwner reuses a live guest session or issues a new token.
func (s *Service) guestOwner(ctx context.Context, guestToken string) (hash string, issued string, err error) {
	if s.guests == nil {
		return "", "", apperr.Internal("guest sessions are not configured")
	}
	if guestToken != "" {
		existing, ok, err := s.guests.Resolve(ctx, guestToken)
		if err != nil {
			return "", "", err
		}
		if ok {
			return existing, "", nil
		}
	}
	token, hash, err := s.guests.Issue(ctx)
	if err != nil {
		return "", "", err
	}
	return hash, token, nil
}

func (s *Service) prefillVehicle(ctx context.Context, job *domain.Job) {
	if s.vehicles == nil || job.Vehicle == nil || job.Vehicle.LicensePlate == "" {
		return
	}
	if job.Vehicle.Make != "" && job.Vehicle.Model != "" {
		return
	}
	found, err := s.vehicles.Lookup(ctx, job.Vehicle.LicensePlate)
	if err != nil {
		s.log.Warn("vehicle prefill failed", "plate", job.Vehicle.LicensePlate, "error", err)
		return
	}
	if found == nil {
		return
	}
	if job.Vehicle.Make == "" {
		job.Vehicle.Make = found.Make
	}
	if job.Vehicle.Model == "" {
		job.Vehicle.Model = found.Model
	}
	if job.Vehicle.Year == 0 {
		job.Vehicle.Year = found.Year
	}
}

// PatchDraft edits any field of a draft on behalf of its owner.
func (s *Service) PatchDraft(ctx context.Context, p domain.Principal, id string, req transport.PatchDraftRequest) (*domain.Job, error) {
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status != domain.StatusDraft {
		if !p.IsOwner(job) {
			return nil, apperr.Forbidden("only the owner may edit a draft")
		}
		return nil, apperr.Forbidden("job is no longer a draft")
	}
	if err := domain.CanMutate(p, job, nil).Err(); err != nil {
		return nil, err
	}

	previousPhotos := job.Photos
	patch, err := s.draftPatch(ctx, job, req)
	if err != nil {
		return nil, err
	}
	if len(patch) == 0 {
		return job, nil
	}
	patch["updatedAt"] = s.now()

	ok, err := s.repo.UpdateIfStatus(ctx, id, domain.StatusDraft, patch)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, s.lostRace(ctx, id, domain.StatusDraft)
	}
	if req.Photos != nil {
		s.removePhotos(ctx, id, droppedPhotos(previousPhotos, *req.Photos))
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) draftPatch(ctx context.Context, job *domain.Job, req transport.PatchDraftRequest) (docstore.Patch, error) {
	patch := docstore.Patch{}
	set := func(field string, value any) {
		patch[field] = value
	}

	if req.Category != nil {
		category, ok := domain.ParseCategory(*req.Category)
		if !ok {
			return nil, apperr.ValidationField(domain.FieldCategory, "category is not valid")
		}
		job.Category = category
		set(domain.FieldCategory, category)
	}
	if req.Title != nil {
		set(domain.FieldTitle, sanitize.Text(*req.Title))
	}
	if req.Description != nil {
		set(domain.FieldDescription, sanitize.Text(*req.Description))
	}
	if req.Postcode != nil {
		set(domain.FieldPostcode, strings.TrimSpace(*req.Postcode))
	}
	if req.Address != nil {
		set(domain.FieldAddress, strings.TrimSpace(*req.Address))
	}
	if req.Budget != nil {
		set(domain.FieldBudget, toBudget(req.Budget))
	}
	if req.Priority != nil {
		set(domain.FieldPriority, toPriority(*req.Priority))
	}
	if req.Photos != nil {
		set(domain.FieldPhotos, *req.Photos)
	}
	if req.ContactEmail != nil {
		set(domain.FieldContactEmail, normalizeEmail(*req.ContactEmail))
	}
	if req.ContactName != nil {
		set(domain.FieldContactName, strings.TrimSpace(*req.ContactName))
	}
	if req.ContactPhone != nil {
		normalized, err := normalizePhone(*req.ContactPhone)
		if err != nil {
			return nil, err
		}
		set(domain.FieldContactPhone, normalized)
	}
	if req.QuoteDeadline != nil {
		set(domain.FieldQuoteDeadline, req.QuoteDeadline)
	}
	if req.Vehicle != nil {
		job.Vehicle = toVehicle(req.Vehicle)
		if job.Category == domain.CategoryAutomotive {
			s.prefillVehicle(ctx, job)
		}
		set(domain.FieldVehicle, job.Vehicle)
	}

	return patch, nil
}

// Submit publishes a complete draft to the marketplace.
func (s *Service) Submit(ctx context.Context, p domain.Principal, id string) (*domain.Job, error) {
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	t, err := domain.Resolve(job.Status, domain.StatusOpen, domain.TriggerSubmit)
	if err != nil {
		return nil, err
	}
	if err := domain.CanTransition(p, job, t).Err(); err != nil {
		return nil, err
	}
	return s.publishDraft(ctx, job, t, p.Actor.ID)
}

// PromoteOnLink opens a linked draft that already passes submit validation.
// It reports false, without error, when the job is not an eligible draft.
func (s *Service) PromoteOnLink(ctx context.Context, id string) (bool, error) {
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	if job.Status != domain.StatusDraft || !domain.IsComplete(job) {
		return false, nil
	}
	t, err := domain.Resolve(job.Status, domain.StatusOpen, domain.TriggerPromoteOnLink)
	if err != nil {
		return false, err
	}
	if err := domain.CanTransition(domain.System, job, t).Err(); err != nil {
		return false, err
	}
	if _, err := s.publishDraft(ctx, job, t, domain.System.Actor.ID); err != nil {
		if apperr.Is(err, apperr.KindInvalidTransition) || apperr.Is(err, apperr.KindConflict) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *Service) publishDraft(ctx context.Context, job *domain.Job, t domain.Transition, actorID string) (*domain.Job, error) {
	variant := domain.VariantFor(job.Category)
	prepared := variant.Prepare(job)
	if err := variant.ValidateForSubmit(job); err != nil {
		return nil, err
	}

	now := s.now()
	patch := docstore.Patch{
		domain.FieldStatus: domain.StatusOpen,
		"postedAt":         now,
		"updatedAt":        now,
	}
	if prepared {
		patch[domain.FieldTitle] = job.Title
		patch[domain.FieldVehicle] = job.Vehicle
	}

	ok, err := s.repo.UpdateIfStatus(ctx, job.ID, domain.StatusDraft, patch)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, s.lostRace(ctx, job.ID, domain.StatusOpen)
	}

	from := job.Status
	job.Status = domain.StatusOpen
	job.PostedAt = &now
	job.UpdatedAt = now

	s.publishTransition(ctx, job, from, t, actorID)
	s.publish(ctx, events.JobSubmitted{
		BaseEvent: events.NewBaseEvent(),
		JobID:     job.ID,
		OwnerID:   job.OwnerID(),
		Category:  string(job.Category),
		Title:     job.Title,
		Trigger:   string(t.Trigger),
	})
	return job, nil
}

func toBudget(req *transport.BudgetRequest) *domain.Budget {
	if req == nil {
		return nil
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = "ISK"
	}
	return &domain.Budget{MinCents: req.MinCents, MaxCents: req.MaxCents, Currency: currency}
}

func toPriority(raw string) domain.Priority {
	switch domain.Priority(strings.ToLower(strings.TrimSpace(raw))) {
	case domain.PriorityLow:
		return domain.PriorityLow
	case domain.PriorityHigh:
		return domain.PriorityHigh
	case domain.PriorityUrgent:
		return domain.PriorityUrgent
	default:
		return domain.PriorityNormal
	}
}

func toVehicle(req *transport.VehicleRequest) *domain.Vehicle {
	return &domain.Vehicle{
		LicensePlate: validator.NormalizeLicensePlate(req.LicensePlate),
		Make:         strings.TrimSpace(req.Make),
		Model:        strings.TrimSpace(req.Model),
		Year:         req.Year,
	}
}

func normalizePhone(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	if !phone.IsValid(raw) {
		return "", apperr.ValidationField(domain.FieldContactPhone, "phone number is not valid")
	}
	return phone.NormalizeE164(raw), nil
}
