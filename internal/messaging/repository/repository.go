// Package repository persists job-scoped messages in the document store.
package repository

import (
	"context"
	"errors"
	"time"

	"marketplace_backend/internal/docstore"
	"marketplace_backend/platform/apperr"
)

// ── Domain Models ─────────────────────────────────────────────────────────────

// Type is the kind of a message.
type Type string

const (
	TypeText   Type = "text"
	TypeFile   Type = "file"
	TypeImage  Type = "image"
	TypeSystem Type = "system"
)

// Status is the delivery state of a message.
type Status string

const (
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusRead      Status = "read"
)

// Unread reports whether a message in this status still counts as unread.
func (s Status) Unread() bool {
	return s == StatusSent || s == StatusDelivered
}

// Attachment references an uploaded file.
type Attachment struct {
	URL         string `json:"url"`
	FileKey     string `json:"fileKey,omitempty"`
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

// Message is a directed communication scoped to one job request.
type Message struct {
	ID           string       `json:"id"`
	JobRequestID string       `json:"jobRequestId"`
	SenderID     string       `json:"senderId"`
	RecipientID  string       `json:"recipientId"`
	Type         Type         `json:"type"`
	Content      string       `json:"content"`
	Attachments  []Attachment `json:"attachments"`
	Status       Status       `json:"status"`
	EventTag     string       `json:"eventTag,omitempty"`
	SentAt       time.Time    `json:"sentAt"`
	DeliveredAt  *time.Time   `json:"deliveredAt,omitempty"`
	ReadAt       *time.Time   `json:"readAt,omitempty"`
}

// Involves reports whether actorID sent or received the message.
func (m *Message) Involves(actorID string) bool {
	return m.SenderID == actorID || m.RecipientID == actorID
}

// ── Repository ────────────────────────────────────────────────────────────────

const (
	// Collection holds messages.
	Collection = "messages"

	messageNotFoundMsg = "message not found"
)

// Field names used in filters and patches.
const (
	FieldJobRequestID = "jobRequestId"
	FieldSenderID     = "senderId"
	FieldRecipientID  = "recipientId"
	FieldStatus       = "status"
)

// Repository provides document store operations for messages.
type Repository struct {
	store docstore.Store
}

// New creates a message repository.
func New(store docstore.Store) *Repository {
	return &Repository{store: store}
}

// Create stores a new message.
func (r *Repository) Create(ctx context.Context, msg *Message) error {
	if err := r.store.Create(ctx, Collection, msg.ID, msg); err != nil {
		if errors.Is(err, docstore.ErrDuplicate) {
			return apperr.Conflict("message already exists")
		}
		return apperr.Unavailable("messages.create", err)
	}
	return nil
}

// GetByID loads one message.
func (r *Repository) GetByID(ctx context.Context, id string) (*Message, error) {
	var msg Message
	if err := r.store.Get(ctx, Collection, id, &msg); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, apperr.NotFound(messageNotFoundMsg)
		}
		return nil, apperr.Unavailable("messages.get", err)
	}
	return &msg, nil
}

// Query returns messages matching filter in store order.
func (r *Repository) Query(ctx context.Context, filter docstore.Filter) ([]Message, error) {
	var msgs []Message
	if err := r.store.Query(ctx, Collection, filter, docstore.All, &msgs); err != nil {
		return nil, apperr.Unavailable("messages.query", err)
	}
	return msgs, nil
}

// ListForJob returns every message on a job.
func (r *Repository) ListForJob(ctx context.Context, jobID string) ([]Message, error) {
	return r.Query(ctx, docstore.Where(docstore.Eq(FieldJobRequestID, jobID)))
}

// ListInvolving returns the messages actorID sent or received, without duplicates.
func (r *Repository) ListInvolving(ctx context.Context, actorID string) ([]Message, error) {
	sent, err := r.Query(ctx, docstore.Where(docstore.Eq(FieldSenderID, actorID)))
	if err != nil {
		return nil, err
	}
	received, err := r.Query(ctx, docstore.Where(docstore.Eq(FieldRecipientID, actorID)))
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(sent))
	out := make([]Message, 0, len(sent)+len(received))
	for _, list := range [][]Message{sent, received} {
		for _, m := range list {
			if seen[m.ID] {
				continue
			}
			seen[m.ID] = true
			out = append(out, m)
		}
	}
	return out, nil
}

// ListUnread returns the unread messages addressed to recipientID, optionally
// limited to one job.
func (r *Repository) ListUnread(ctx context.Context, recipientID, jobID string) ([]Message, error) {
	filter := docstore.Where(
		docstore.Eq(FieldRecipientID, recipientID),
		docstore.In(FieldStatus, StatusSent, StatusDelivered),
	)
	if jobID != "" {
		filter = append(filter, docstore.Eq(FieldJobRequestID, jobID))
	}
	return r.Query(ctx, filter)
}

// UpdateIfStatusIn applies patch only while the message is in one of statuses.
func (r *Repository) UpdateIfStatusIn(ctx context.Context, id string, statuses []Status, patch docstore.Patch) (bool, error) {
	ok, err := r.store.UpdateIf(ctx, Collection, id, docstore.Where(docstore.In(FieldStatus, statuses...)), patch)
	if err != nil {
		return false, apperr.Unavailable("messages.update", err)
	}
	return ok, nil
}
