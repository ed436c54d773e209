// Package repository persists quotes and the per-professional pending locks
// in the document store.
package repository

import (
	"context"
	"errors"
	"time"

	"marketplace_backend/internal/docstore"
	"marketplace_backend/platform/apperr"
)

// ── Domain Models ─────────────────────────────────────────────────────────────

// Status is the lifecycle state of a quote.
type Status string

const (
	StatusPending   Status = "pending"
	StatusAccepted  Status = "accepted"
	StatusRejected  Status = "rejected"
	StatusWithdrawn Status = "withdrawn"
	StatusExpired   Status = "expired"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusRejected, StatusWithdrawn, StatusExpired:
		return true
	}
	return false
}

// Material is one priced line of the materials a quote includes.
type Material struct {
	Description    string `json:"description"`
	Quantity       string `json:"quantity"`
	UnitPriceCents int64  `json:"unitPriceCents"`
}

// Quote is a professional's bid against one job request.
type Quote struct {
	ID             string     `json:"id"`
	JobRequestID   string     `json:"jobRequestId"`
	ProfessionalID string     `json:"professionalId"`
	PriceCents     int64      `json:"priceCents"`
	Currency       string     `json:"currency"`
	Timeline       string     `json:"timeline"`
	Description    string     `json:"description"`
	Materials      []Material `json:"materials"`
	Status         Status     `json:"status"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
	ExpiresAt      time.Time  `json:"expiresAt"`
	RespondedAt    *time.Time `json:"respondedAt,omitempty"`
}

// ExpiredAt reports whether a pending quote has outlived its validity at now.
func (q *Quote) ExpiredAt(now time.Time) bool {
	return q.Status == StatusPending && !now.Before(q.ExpiresAt)
}

// CountsAgainstJob reports whether the quote occupies one of the job's quote slots.
func (q *Quote) CountsAgainstJob() bool {
	return q.Status != StatusWithdrawn
}

// PendingLock pins the single pending quote a professional may hold on a job.
// A lock whose quote left pending is stale and may be taken over.
type PendingLock struct {
	ID        string    `json:"id"`
	QuoteID   string    `json:"quoteId"`
	CreatedAt time.Time `json:"createdAt"`
}

// LockID derives the lock id for a (job, professional) pair.
func LockID(jobID, professionalID string) string {
	return jobID + "/" + professionalID
}

// ── Repository ────────────────────────────────────────────────────────────────

const (
	// Collection holds quotes.
	Collection = "quotes"
	// LockCollection holds pending locks.
	LockCollection = "quote_pending_locks"

	quoteNotFoundMsg = "quote not found"
)

// Field names used in filters and patches.
const (
	FieldJobRequestID   = "jobRequestId"
	FieldProfessionalID = "professionalId"
	FieldStatus         = "status"
)

// Repository provides document store operations for quotes.
type Repository struct {
	store docstore.Store
}

// New creates a quote repository.
func New(store docstore.Store) *Repository {
	return &Repository{store: store}
}

// Create stores a new quote.
func (r *Repository) Create(ctx context.Context, quote *Quote) error {
	if err := r.store.Create(ctx, Collection, quote.ID, quote); err != nil {
		if errors.Is(err, docstore.ErrDuplicate) {
			return apperr.Conflict("quote already exists")
		}
		return apperr.Unavailable("quotes.create", err)
	}
	return nil
}

// GetByID loads one quote.
func (r *Repository) GetByID(ctx context.Context, id string) (*Quote, error) {
	var quote Quote
	if err := r.store.Get(ctx, Collection, id, &quote); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, apperr.NotFound(quoteNotFoundMsg)
		}
		return nil, apperr.Unavailable("quotes.get", err)
	}
	return &quote, nil
}

// Query returns quotes matching filter in store order.
func (r *Repository) Query(ctx context.Context, filter docstore.Filter) ([]Quote, error) {
	var quotes []Quote
	if err := r.store.Query(ctx, Collection, filter, docstore.All, &quotes); err != nil {
		return nil, apperr.Unavailable("quotes.query", err)
	}
	return quotes, nil
}

// ListForJob returns every quote on a job.
func (r *Repository) ListForJob(ctx context.Context, jobID string) ([]Quote, error) {
	return r.Query(ctx, docstore.Where(docstore.Eq(FieldJobRequestID, jobID)))
}

// ListPendingForJob returns the pending quotes on a job.
func (r *Repository) ListPendingForJob(ctx context.Context, jobID string) ([]Quote, error) {
	return r.Query(ctx, docstore.Where(
		docstore.Eq(FieldJobRequestID, jobID),
		docstore.Eq(FieldStatus, StatusPending),
	))
}

// ListByProfessional returns the quotes a professional submitted.
func (r *Repository) ListByProfessional(ctx context.Context, professionalID string) ([]Quote, error) {
	return r.Query(ctx, docstore.Where(docstore.Eq(FieldProfessionalID, professionalID)))
}

// ListPending returns every pending quote across jobs.
func (r *Repository) ListPending(ctx context.Context) ([]Quote, error) {
	return r.Query(ctx, docstore.Where(docstore.Eq(FieldStatus, StatusPending)))
}

// UpdateIfStatus applies patch only while the quote is still in status.
func (r *Repository) UpdateIfStatus(ctx context.Context, id string, status Status, patch docstore.Patch) (bool, error) {
	ok, err := r.store.UpdateIf(ctx, Collection, id, docstore.Where(docstore.Eq(FieldStatus, status)), patch)
	if err != nil {
		return false, apperr.Unavailable("quotes.update", err)
	}
	return ok, nil
}

// AcquireLock creates the pending lock. It returns false if a lock exists.
func (r *Repository) AcquireLock(ctx context.Context, lock *PendingLock) (bool, error) {
	if err := r.store.Create(ctx, LockCollection, lock.ID, lock); err != nil {
		if errors.Is(err, docstore.ErrDuplicate) {
			return false, nil
		}
		return false, apperr.Unavailable("quotes.lock", err)
	}
	return true, nil
}

// GetLock loads a lock, returning nil when there is none.
func (r *Repository) GetLock(ctx context.Context, id string) (*PendingLock, error) {
	var lock PendingLock
	if err := r.store.Get(ctx, LockCollection, id, &lock); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, nil
		}
		return nil, apperr.Unavailable("quotes.lock_get", err)
	}
	return &lock, nil
}

// TakeOverLock points a stale lock at a new quote, provided nobody else took it first.
func (r *Repository) TakeOverLock(ctx context.Context, id, staleQuoteID, quoteID string, at time.Time) (bool, error) {
	ok, err := r.store.UpdateIf(ctx, LockCollection, id,
		docstore.Where(docstore.Eq("quoteId", staleQuoteID)),
		docstore.Patch{"quoteId": quoteID, "createdAt": at},
	)
	if err != nil {
		return false, apperr.Unavailable("quotes.lock_takeover", err)
	}
	return ok, nil
}

// ReleaseLock drops the lock if it still points at quoteID.
func (r *Repository) ReleaseLock(ctx context.Context, id, quoteID string) error {
	lock, err := r.GetLock(ctx, id)
	if err != nil || lock == nil || lock.QuoteID != quoteID {
		return err
	}
	if _, err := r.store.Delete(ctx, LockCollection, id); err != nil {
		return apperr.Unavailable("quotes.lock_release", err)
	}
	return nil
}
