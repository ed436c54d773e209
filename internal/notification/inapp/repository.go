package inapp

import (
	"context"
	"errors"
	"sort"
	"time"

	"marketplace_backend/internal/docstore"
	"marketplace_backend/platform/apperr"
)

// Type is the closed set of notification kinds.
type Type string

const (
	TypeJobCreated      Type = "JOB_CREATED"
	TypeJobAccepted     Type = "JOB_ACCEPTED"
	TypeJobCompleted    Type = "JOB_COMPLETED"
	TypeJobCancelled    Type = "JOB_CANCELLED"
	TypeNewQuote        Type = "NEW_QUOTE"
	TypeQuoteAccepted   Type = "QUOTE_ACCEPTED"
	TypeQuoteDeclined   Type = "QUOTE_DECLINED"
	TypeQuoteWithdrawn  Type = "QUOTE_WITHDRAWN"
	TypeQuoteExpired    Type = "QUOTE_EXPIRED"
	TypeMessageReceived Type = "MESSAGE_RECEIVED"
	TypeDraftsLinked    Type = "DRAFTS_LINKED"
)

// Channel is a delivery channel.
type Channel string

const (
	ChannelInApp Channel = "in_app"
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// DefaultChannels is the channel set for every notification.
var DefaultChannels = []Channel{ChannelInApp, ChannelEmail}

const (
	// Collection holds notifications.
	Collection = "notifications"

	// EmailRecipientPrefix marks recipients that have no account yet and are
	// reached by email only.
	EmailRecipientPrefix = "email:"

	fieldRecipientID = "recipientId"
	fieldIsRead      = "isRead"
	fieldType        = "type"

	errNotificationNotFound = "notification not found"
)

// Notification is a persisted notification addressed to one recipient.
type Notification struct {
	ID             string     `json:"id"`
	RecipientID    string     `json:"recipientId"`
	Type           Type       `json:"type"`
	Title          string     `json:"title"`
	Body           string     `json:"body"`
	RelatedJobID   string     `json:"relatedJobId,omitempty"`
	RelatedQuoteID string     `json:"relatedQuoteId,omitempty"`
	Channels       []Channel  `json:"channels"`
	EmailSent      bool       `json:"emailSent"`
	EmailAttempts  int        `json:"emailAttempts"`
	SmsSent        bool       `json:"smsSent"`
	IsRead         bool       `json:"isRead"`
	SentAt         time.Time  `json:"sentAt"`
	ReadAt         *time.Time `json:"readAt,omitempty"`
}

// HasChannel reports whether ch is one of the notification's channels.
func (n *Notification) HasChannel(ch Channel) bool {
	for _, c := range n.Channels {
		if c == ch {
			return true
		}
	}
	return false
}

// Stats summarizes a recipient's notifications.
type Stats struct {
	Total  int          `json:"total"`
	Unread int          `json:"unread"`
	ByType map[Type]int `json:"byType"`
}

// ErrAlreadyExists is returned by Create for a notification already stored.
var ErrAlreadyExists = errors.New("notification already exists")

type Repository struct {
	store docstore.Store
}

func NewRepository(store docstore.Store) *Repository {
	return &Repository{store: store}
}

// Create stores n, or returns ErrAlreadyExists when its id is taken.
func (r *Repository) Create(ctx context.Context, n *Notification) error {
	if n.RecipientID == "" {
		return apperr.Validation("recipientId is required").WithOp("notification.inapp.repository.create")
	}
	if err := r.store.Create(ctx, Collection, n.ID, n); err != nil {
		if errors.Is(err, docstore.ErrDuplicate) {
			return ErrAlreadyExists
		}
		return apperr.Unavailable("notification.inapp.repository.create", err)
	}
	return nil
}

func (r *Repository) GetByID(ctx context.Context, id string) (*Notification, error) {
	var n Notification
	if err := r.store.Get(ctx, Collection, id, &n); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, apperr.NotFound(errNotificationNotFound)
		}
		return nil, apperr.Unavailable("notification.inapp.repository.get", err)
	}
	return &n, nil
}

// GetForRecipient loads a notification and hides it from other recipients.
func (r *Repository) GetForRecipient(ctx context.Context, recipientID, id string) (*Notification, error) {
	n, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if n.RecipientID != recipientID {
		return nil, apperr.NotFound(errNotificationNotFound)
	}
	return n, nil
}

func (r *Repository) query(ctx context.Context, filter docstore.Filter) ([]Notification, error) {
	var items []Notification
	if err := r.store.Query(ctx, Collection, filter, docstore.All, &items); err != nil {
		return nil, apperr.Unavailable("notification.inapp.repository.query", err)
	}
	return items, nil
}

// List returns a page of the recipient's notifications, newest first, and the total.
func (r *Repository) List(ctx context.Context, recipientID string, limit, offset int) ([]Notification, int, error) {
	items, err := r.query(ctx, docstore.Where(docstore.Eq(fieldRecipientID, recipientID)))
	if err != nil {
		return nil, 0, err
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].SentAt.After(items[j].SentAt)
	})
	start, end := docstore.ApplyPage(len(items), docstore.Page{Limit: limit, Skip: offset})
	return items[start:end], len(items), nil
}

func (r *Repository) listUnread(ctx context.Context, recipientID string) ([]Notification, error) {
	return r.query(ctx, docstore.Where(
		docstore.Eq(fieldRecipientID, recipientID),
		docstore.Eq(fieldIsRead, false),
	))
}

func (r *Repository) CountUnread(ctx context.Context, recipientID string) (int, error) {
	items, err := r.listUnread(ctx, recipientID)
	if err != nil {
		return 0, err
	}
	return len(items), nil
}

// CountUnreadByTypes counts unread notifications limited to types.
func (r *Repository) CountUnreadByTypes(ctx context.Context, recipientID string, types []Type) (int, error) {
	if len(types) == 0 {
		return r.CountUnread(ctx, recipientID)
	}
	items, err := r.query(ctx, docstore.Where(
		docstore.Eq(fieldRecipientID, recipientID),
		docstore.Eq(fieldIsRead, false),
		docstore.In(fieldType, types...),
	))
	if err != nil {
		return 0, err
	}
	return len(items), nil
}

func (r *Repository) Stats(ctx context.Context, recipientID string) (Stats, error) {
	items, err := r.query(ctx, docstore.Where(docstore.Eq(fieldRecipientID, recipientID)))
	if err != nil {
		return Stats{}, err
	}
	stats := Stats{Total: len(items), ByType: make(map[Type]int)}
	for i := range items {
		stats.ByType[items[i].Type]++
		if !items[i].IsRead {
			stats.Unread++
		}
	}
	return stats, nil
}

// MarkRead flags one notification as read. Reading it again changes nothing.
func (r *Repository) MarkRead(ctx context.Context, recipientID, id string) error {
	if _, err := r.GetForRecipient(ctx, recipientID, id); err != nil {
		return err
	}
	_, err := r.store.UpdateIf(ctx, Collection, id,
		docstore.Where(docstore.Eq(fieldIsRead, false)),
		docstore.Patch{fieldIsRead: true, "readAt": time.Now().UTC()},
	)
	if err != nil {
		return apperr.Unavailable("notification.inapp.repository.mark_read", err)
	}
	return nil
}

// MarkAllRead flags every unread notification of the recipient and returns how many changed.
func (r *Repository) MarkAllRead(ctx context.Context, recipientID string) (int, error) {
	unread, err := r.listUnread(ctx, recipientID)
	if err != nil {
		return 0, err
	}
	now := time.Now().UTC()
	updated := 0
	for i := range unread {
		ok, err := r.store.UpdateIf(ctx, Collection, unread[i].ID,
			docstore.Where(docstore.Eq(fieldIsRead, false)),
			docstore.Patch{fieldIsRead: true, "readAt": now},
		)
		if err != nil {
			return updated, apperr.Unavailable("notification.inapp.repository.mark_all_read", err)
		}
		if ok {
			updated++
		}
	}
	return updated, nil
}

func (r *Repository) Delete(ctx context.Context, recipientID, id string) error {
	if _, err := r.GetForRecipient(ctx, recipientID, id); err != nil {
		return err
	}
	if _, err := r.store.Delete(ctx, Collection, id); err != nil {
		return apperr.Unavailable("notification.inapp.repository.delete", err)
	}
	return nil
}

// RecordEmailAttempt stores the outcome of one email delivery attempt.
func (r *Repository) RecordEmailAttempt(ctx context.Context, id string, sent bool, attempts int) error {
	if _, err := r.store.Update(ctx, Collection, id, docstore.Patch{
		"emailSent":     sent,
		"emailAttempts": attempts,
	}); err != nil {
		return apperr.Unavailable("notification.inapp.repository.email_attempt", err)
	}
	return nil
}

// RecordSMSSent marks the SMS copy of a notification as delivered.
func (r *Repository) RecordSMSSent(ctx context.Context, id string) error {
	if _, err := r.store.Update(ctx, Collection, id, docstore.Patch{"smsSent": true}); err != nil {
		return apperr.Unavailable("notification.inapp.repository.sms_sent", err)
	}
	return nil
}
