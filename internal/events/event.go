// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"marketplace_backend/platform/events"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// Decline reasons carried by QuoteDeclined.
const (
	DeclineReasonOtherAccepted = "other_accepted"
	DeclineReasonOwnerRejected = "owner_rejected"
	DeclineReasonJobCancelled  = "job_cancelled"
)

// =============================================================================
// Job Domain Events
// =============================================================================

// JobCreated is published when a draft job is created.
// OwnerID is empty for guest drafts; ContactEmail is then the only way to reach the author.
type JobCreated struct {
	BaseEvent
	JobID        string `json:"jobId"`
	OwnerID      string `json:"ownerId,omitempty"`
	ContactEmail string `json:"contactEmail,omitempty"`
	Category     string `json:"category"`
	Title        string `json:"title,omitempty"`
	Guest        bool   `json:"guest"`
}

func (e JobCreated) EventName() string { return "jobs.job.created" }

// JobSubmitted is published when a draft becomes visible in the marketplace,
// either by explicit submit or by promotion after guest linking.
type JobSubmitted struct {
	BaseEvent
	JobID    string `json:"jobId"`
	OwnerID  string `json:"ownerId,omitempty"`
	Category string `json:"category"`
	Title    string `json:"title"`
	Trigger  string `json:"trigger"`
}

func (e JobSubmitted) EventName() string { return "jobs.job.submitted" }

// JobStatusChanged is published for every committed status change.
type JobStatusChanged struct {
	BaseEvent
	JobID   string `json:"jobId"`
	OwnerID string `json:"ownerId,omitempty"`
	From    string `json:"from"`
	To      string `json:"to"`
	Trigger string `json:"trigger"`
	ActorID string `json:"actorId,omitempty"`
}

func (e JobStatusChanged) EventName() string { return "jobs.job.status_changed" }

// JobAccepted is published when the owner's accepted quote assigns a professional.
type JobAccepted struct {
	BaseEvent
	JobID          string `json:"jobId"`
	OwnerID        string `json:"ownerId,omitempty"`
	ProfessionalID string `json:"professionalId"`
	QuoteID        string `json:"quoteId"`
	Title          string `json:"title"`
}

func (e JobAccepted) EventName() string { return "jobs.job.accepted" }

// JobCompleted is published when an in-progress job completes.
type JobCompleted struct {
	BaseEvent
	JobID          string `json:"jobId"`
	OwnerID        string `json:"ownerId,omitempty"`
	ProfessionalID string `json:"professionalId"`
	Title          string `json:"title"`
	ActorID        string `json:"actorId"`
}

func (e JobCompleted) EventName() string { return "jobs.job.completed" }

// JobCancelled is published when a job reaches the cancelled state.
// ProfessionalID is the assignee at the moment of cancellation, if any.
type JobCancelled struct {
	BaseEvent
	JobID          string `json:"jobId"`
	OwnerID        string `json:"ownerId,omitempty"`
	ProfessionalID string `json:"professionalId,omitempty"`
	Title          string `json:"title"`
	Reason         string `json:"reason,omitempty"`
	ActorID        string `json:"actorId"`
}

func (e JobCancelled) EventName() string { return "jobs.job.cancelled" }

// =============================================================================
// Quote Domain Events
// =============================================================================

// QuoteCreated is published when a professional submits a quote.
type QuoteCreated struct {
	BaseEvent
	QuoteID        string `json:"quoteId"`
	JobID          string `json:"jobId"`
	OwnerID        string `json:"ownerId,omitempty"`
	ContactEmail   string `json:"contactEmail,omitempty"`
	ProfessionalID string `json:"professionalId"`
	PriceCents     int64  `json:"priceCents"`
	Currency       string `json:"currency"`
	JobTitle       string `json:"jobTitle"`
}

func (e QuoteCreated) EventName() string { return "quotes.quote.created" }

// QuoteAccepted is published to the winning professional.
type QuoteAccepted struct {
	BaseEvent
	QuoteID        string `json:"quoteId"`
	JobID          string `json:"jobId"`
	OwnerID        string `json:"ownerId,omitempty"`
	ProfessionalID string `json:"professionalId"`
	JobTitle       string `json:"jobTitle"`
}

func (e QuoteAccepted) EventName() string { return "quotes.quote.accepted" }

// QuoteDeclined is published once per quote moved to rejected.
type QuoteDeclined struct {
	BaseEvent
	QuoteID        string `json:"quoteId"`
	JobID          string `json:"jobId"`
	ProfessionalID string `json:"professionalId"`
	JobTitle       string `json:"jobTitle"`
	Reason         string `json:"reason"`
}

func (e QuoteDeclined) EventName() string { return "quotes.quote.declined" }

// QuoteWithdrawn is published when a professional pulls a pending quote.
type QuoteWithdrawn struct {
	BaseEvent
	QuoteID        string `json:"quoteId"`
	JobID          string `json:"jobId"`
	OwnerID        string `json:"ownerId,omitempty"`
	ContactEmail   string `json:"contactEmail,omitempty"`
	ProfessionalID string `json:"professionalId"`
	JobTitle       string `json:"jobTitle"`
}

func (e QuoteWithdrawn) EventName() string { return "quotes.quote.withdrawn" }

// QuoteExpired is published when a pending quote passes its expiry.
type QuoteExpired struct {
	BaseEvent
	QuoteID        string `json:"quoteId"`
	JobID          string `json:"jobId"`
	ProfessionalID string `json:"professionalId"`
}

func (e QuoteExpired) EventName() string { return "quotes.quote.expired" }

// =============================================================================
// Messaging Domain Events
// =============================================================================

// MessageReceived is published when a message is stored for a recipient.
type MessageReceived struct {
	BaseEvent
	MessageID   string `json:"messageId"`
	JobID       string `json:"jobId"`
	SenderID    string `json:"senderId"`
	RecipientID string `json:"recipientId"`
	Type        string `json:"type"`
	Preview     string `json:"preview"`
}

func (e MessageReceived) EventName() string { return "messaging.message.received" }

// =============================================================================
// Guest Domain Events
// =============================================================================

// GuestDraftsLinked is published after guest drafts were attached to an account.
type GuestDraftsLinked struct {
	BaseEvent
	AccountID string   `json:"accountId"`
	JobIDs    []string `json:"jobIds"`
}

func (e GuestDraftsLinked) EventName() string { return "guest.drafts.linked" }

// =============================================================================
// Notification Events
// =============================================================================

// NotificationEmailRetryDue is raised by the scheduler when a failed email
// delivery should be attempted again.
type NotificationEmailRetryDue struct {
	BaseEvent
	NotificationID string `json:"notificationId"`
}

func (e NotificationEmailRetryDue) EventName() string { return "notification.email.retry_due" }
