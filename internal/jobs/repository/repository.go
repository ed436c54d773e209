// Package repository persists job requests in the document store.
package repository

import (
	"context"
	"errors"

	"marketplace_backend/internal/docstore"
	"marketplace_backend/internal/jobs/domain"
	"marketplace_backend/platform/apperr"
)

// Collection is the document store collection holding job requests.
const Collection = "job_requests"

const jobNotFoundMsg = "job not found"

// Repository wraps the document store with job-typed helpers.
type Repository struct {
	store docstore.Store
}

// New creates a job repository.
func New(store docstore.Store) *Repository {
	return &Repository{store: store}
}

// Create stores a new job.
func (r *Repository) Create(ctx context.Context, job *domain.Job) error {
	if err := r.store.Create(ctx, Collection, job.ID, job); err != nil {
		if errors.Is(err, docstore.ErrDuplicate) {
			return apperr.Conflict("job already exists")
		}
		return apperr.Unavailable("jobs.create", err)
	}
	return nil
}

// GetByID loads one job.
func (r *Repository) GetByID(ctx context.Context, id string) (*domain.Job, error) {
	var job domain.Job
	if err := r.store.Get(ctx, Collection, id, &job); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, apperr.NotFound(jobNotFoundMsg)
		}
		return nil, apperr.Unavailable("jobs.get", err)
	}
	return &job, nil
}

// Query returns jobs matching filter in store order.
func (r *Repository) Query(ctx context.Context, filter docstore.Filter) ([]domain.Job, error) {
	var jobs []domain.Job
	if err := r.store.Query(ctx, Collection, filter, docstore.All, &jobs); err != nil {
		return nil, apperr.Unavailable("jobs.query", err)
	}
	return jobs, nil
}

// UpdateIf applies patch when the job still matches expect.
// It returns false when the job changed underneath the caller.
func (r *Repository) UpdateIf(ctx context.Context, id string, expect docstore.Filter, patch docstore.Patch) (bool, error) {
	ok, err := r.store.UpdateIf(ctx, Collection, id, expect, patch)
	if err != nil {
		return false, apperr.Unavailable("jobs.update", err)
	}
	return ok, nil
}

// UpdateIfStatus is UpdateIf guarded on the observed status.
func (r *Repository) UpdateIfStatus(ctx context.Context, id string, status domain.Status, patch docstore.Patch) (bool, error) {
	return r.UpdateIf(ctx, id, docstore.Where(docstore.Eq(domain.FieldStatus, status)), patch)
}

// IncrementViews bumps the view counter without touching updatedAt.
func (r *Repository) IncrementViews(ctx context.Context, id string) error {
	return r.store.Increment(ctx, Collection, id, "viewCount", 1)
}

// Delete removes a job and reports whether it existed.
func (r *Repository) Delete(ctx context.Context, id string) (bool, error) {
	ok, err := r.store.Delete(ctx, Collection, id)
	if err != nil {
		return false, apperr.Unavailable("jobs.delete", err)
	}
	return ok, nil
}
