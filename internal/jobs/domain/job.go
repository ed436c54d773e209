// Package domain holds the job request aggregate: its states, the transition
// table, the per-category variants and the access policy. It has no storage
// or transport dependencies.
package domain

import (
	"strings"
	"time"
)

// Status is the lifecycle state of a job request.
type Status string

const (
	StatusDraft      Status = "draft"
	StatusOpen       Status = "open"
	StatusQuoted     Status = "quoted"
	StatusAccepted   Status = "accepted"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// AllStatuses lists every state in lifecycle order.
var AllStatuses = []Status{
	StatusDraft,
	StatusOpen,
	StatusQuoted,
	StatusAccepted,
	StatusInProgress,
	StatusCompleted,
	StatusCancelled,
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	for _, known := range AllStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition can leave s.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// AcceptsQuotes reports whether professionals may quote in this state.
func (s Status) AcceptsQuotes() bool {
	return s == StatusOpen || s == StatusQuoted
}

// HasAssignment reports whether a job in this state must carry an assigned professional.
func (s Status) HasAssignment() bool {
	return s == StatusAccepted || s == StatusInProgress || s == StatusCompleted
}

// Category is the closed set of job categories.
type Category string

const (
	CategoryPlumbing   Category = "plumbing"
	CategoryElectrical Category = "electrical"
	CategoryCarpentry  Category = "carpentry"
	CategoryPainting   Category = "painting"
	CategoryCleaning   Category = "cleaning"
	CategoryGardening  Category = "gardening"
	CategoryRoofing    Category = "roofing"
	CategoryMoving     Category = "moving"
	CategoryAutomotive Category = "automotive"
	CategoryOther      Category = "other"
)

// Categories lists every accepted category.
var Categories = []Category{
	CategoryPlumbing,
	CategoryElectrical,
	CategoryCarpentry,
	CategoryPainting,
	CategoryCleaning,
	CategoryGardening,
	CategoryRoofing,
	CategoryMoving,
	CategoryAutomotive,
	CategoryOther,
}

// ParseCategory normalises raw input to a known category.
func ParseCategory(raw string) (Category, bool) {
	candidate := Category(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range Categories {
		if candidate == known {
			return candidate, true
		}
	}
	return "", false
}

// Priority expresses urgency as chosen by the customer.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Budget is an optional price range in minor units.
type Budget struct {
	MinCents int64  `json:"minCents"`
	MaxCents int64  `json:"maxCents"`
	Currency string `json:"currency"`
}

// Vehicle carries the automotive payload of a job.
type Vehicle struct {
	LicensePlate string `json:"licensePlate"`
	Make         string `json:"make,omitempty"`
	Model        string `json:"model,omitempty"`
	Year         int    `json:"year,omitempty"`
}

// Job is the job request aggregate root as stored in the document store.
type Job struct {
	ID                     string     `json:"id"`
	CustomerID             *string    `json:"customerId"`
	GuestTokenHash         *string    `json:"guestTokenHash"`
	ContactEmail           string     `json:"contactEmail,omitempty"`
	ContactName            string     `json:"contactName,omitempty"`
	ContactPhone           string     `json:"contactPhone,omitempty"`
	Category               Category   `json:"category"`
	Title                  string     `json:"title"`
	Description            string     `json:"description"`
	Postcode               string     `json:"postcode"`
	Address                string     `json:"address,omitempty"`
	Budget                 *Budget    `json:"budget,omitempty"`
	Priority               Priority   `json:"priority"`
	Vehicle                *Vehicle   `json:"vehicle,omitempty"`
	Photos                 []string   `json:"photos"`
	Status                 Status     `json:"status"`
	QuotesCount            int        `json:"quotesCount"`
	MaxQuotes              int        `json:"maxQuotes"`
	QuoteDeadline          *time.Time `json:"quoteDeadline"`
	AssignedProfessionalID *string    `json:"assignedProfessionalId"`
	AcceptedQuoteID        *string    `json:"acceptedQuoteId"`
	ViewCount              int        `json:"viewCount"`
	CancelReason           string     `json:"cancelReason,omitempty"`
	CreatedAt              time.Time  `json:"createdAt"`
	UpdatedAt              time.Time  `json:"updatedAt"`
	PostedAt               *time.Time `json:"postedAt"`
	StartedAt              *time.Time `json:"startedAt"`
	CompletedAt            *time.Time `json:"completedAt"`
	CancelledAt            *time.Time `json:"cancelledAt"`
}

// OwnerID returns the owning account id, or "" while the job belongs to a guest.
func (j *Job) OwnerID() string {
	if j.CustomerID == nil {
		return ""
	}
	return *j.CustomerID
}

// AssignedID returns the assigned professional id, or "".
func (j *Job) AssignedID() string {
	if j.AssignedProfessionalID == nil {
		return ""
	}
	return *j.AssignedProfessionalID
}

// AcceptingQuotes reports whether a new quote may be submitted at now.
func (j *Job) AcceptingQuotes(now time.Time) bool {
	if !j.Status.AcceptsQuotes() {
		return false
	}
	if j.QuotesCount >= j.MaxQuotes {
		return false
	}
	if j.QuoteDeadline != nil && !now.Before(*j.QuoteDeadline) {
		return false
	}
	return true
}

// Field names used by the mutation policy and the repository patches.
const (
	FieldCategory      = "category"
	FieldTitle         = "title"
	FieldDescription   = "description"
	FieldPostcode      = "postcode"
	FieldAddress       = "address"
	FieldBudget        = "budget"
	FieldPriority      = "priority"
	FieldVehicle       = "vehicle"
	FieldPhotos        = "photos"
	FieldContactEmail  = "contactEmail"
	FieldContactName   = "contactName"
	FieldContactPhone  = "contactPhone"
	FieldQuoteDeadline = "quoteDeadline"
	FieldStatus        = "status"
)
