// Package repository stores guest sessions keyed by the hash of the guest token.
package repository

import (
	"context"
	"errors"
	"time"

	"marketplace_backend/internal/docstore"
	"marketplace_backend/platform/apperr"
)

// Collection holds one document per live guest session.
const Collection = "guest_sessions"

// Session maps a guest token hash to the drafts it authored. The token itself
// is never stored.
type Session struct {
	ID              string     `json:"id"`
	DraftJobIDs     []string   `json:"draftJobIds"`
	CreatedAt       time.Time  `json:"createdAt"`
	LastSeenAt      time.Time  `json:"lastSeenAt"`
	LinkedAccountID *string    `json:"linkedAccountId"`
	LinkedAt        *time.Time `json:"linkedAt"`
}

// Repository persists guest sessions.
type Repository struct {
	store docstore.Store
}

// New creates a guest session repository.
func New(store docstore.Store) *Repository {
	return &Repository{store: store}
}

// Create stores a new session.
func (r *Repository) Create(ctx context.Context, session *Session) error {
	if err := r.store.Create(ctx, Collection, session.ID, session); err != nil {
		if errors.Is(err, docstore.ErrDuplicate) {
			return apperr.Conflict("guest session already exists")
		}
		return apperr.Unavailable("guest.create", err)
	}
	return nil
}

// Get loads a session. It returns (nil, nil) for an unknown hash.
func (r *Repository) Get(ctx context.Context, hash string) (*Session, error) {
	var session Session
	if err := r.store.Get(ctx, Collection, hash, &session); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, nil
		}
		return nil, apperr.Unavailable("guest.get", err)
	}
	return &session, nil
}

// SetDrafts replaces the draft list if it still equals previous.
func (r *Repository) SetDrafts(ctx context.Context, hash string, previous, next []string) (bool, error) {
	if previous == nil {
		previous = []string{}
	}
	ok, err := r.store.UpdateIf(ctx, Collection, hash,
		docstore.Where(docstore.Eq("draftJobIds", previous)),
		docstore.Patch{"draftJobIds": next, "lastSeenAt": time.Now().UTC()},
	)
	if err != nil {
		return false, apperr.Unavailable("guest.attach", err)
	}
	return ok, nil
}

// Touch refreshes lastSeenAt.
func (r *Repository) Touch(ctx context.Context, hash string, at time.Time) error {
	if _, err := r.store.Update(ctx, Collection, hash, docstore.Patch{"lastSeenAt": at}); err != nil {
		return apperr.Unavailable("guest.touch", err)
	}
	return nil
}

// MarkLinked records the account a session was linked to. A linked session
// no longer resolves even if the following delete fails.
func (r *Repository) MarkLinked(ctx context.Context, hash, accountID string, at time.Time) error {
	if _, err := r.store.Update(ctx, Collection, hash, docstore.Patch{"linkedAccountId": accountID, "linkedAt": at}); err != nil {
		return apperr.Unavailable("guest.link", err)
	}
	return nil
}

// Delete destroys a session.
func (r *Repository) Delete(ctx context.Context, hash string) error {
	if _, err := r.store.Delete(ctx, Collection, hash); err != nil {
		return apperr.Unavailable("guest.delete", err)
	}
	return nil
}
