package transport

import (
	"time"

	"marketplace_backend/internal/quotes/repository"
)

// ── Requests ──────────────────────────────────────────────────────────────────

// MaterialRequest is one priced material line.
type MaterialRequest struct {
	Description    string `json:"description" validate:"required,max=200"`
	Quantity       string `json:"quantity" validate:"omitempty,max=32"`
	UnitPriceCents int64  `json:"unitPriceCents" validate:"min=0"`
}

// SubmitQuoteRequest is the body of POST /jobs/:id/quotes.
type SubmitQuoteRequest struct {
	PriceCents  int64             `json:"priceCents" validate:"required,min=1"`
	Currency    string            `json:"currency" validate:"omitempty,len=3,alpha"`
	Timeline    string            `json:"timeline" validate:"omitempty,max=200"`
	Description string            `json:"description" validate:"required,max=5000"`
	Materials   []MaterialRequest `json:"materials" validate:"omitempty,max=50,dive"`
}

// UpdateQuoteRequest edits a pending quote. Nil fields stay untouched.
type UpdateQuoteRequest struct {
	PriceCents  *int64             `json:"priceCents" validate:"omitempty,min=1"`
	Timeline    *string            `json:"timeline" validate:"omitempty,max=200"`
	Description *string            `json:"description" validate:"omitempty,min=1,max=5000"`
	Materials   *[]MaterialRequest `json:"materials" validate:"omitempty,max=50,dive"`
}

// RejectQuoteRequest optionally explains an owner's rejection.
type RejectQuoteRequest struct {
	Reason string `json:"reason" validate:"omitempty,max=500"`
}

// ListMyQuotesRequest filters GET /quotes/mine.
type ListMyQuotesRequest struct {
	Status   string `form:"status" validate:"omitempty,oneof=pending accepted rejected withdrawn expired"`
	Page     int    `form:"page" validate:"omitempty,min=1"`
	PageSize int    `form:"pageSize" validate:"omitempty,min=1,max=100"`
}

// ── Responses ─────────────────────────────────────────────────────────────────

// MaterialLine is a material with its computed line total.
type MaterialLine struct {
	Description    string `json:"description"`
	Quantity       string `json:"quantity"`
	UnitPriceCents int64  `json:"unitPriceCents"`
	LineTotalCents int64  `json:"lineTotalCents"`
}

// QuoteResponse is the public shape of a quote.
type QuoteResponse struct {
	ID                  string            `json:"id"`
	JobRequestID        string            `json:"jobRequestId"`
	ProfessionalID      string            `json:"professionalId"`
	PriceCents          int64             `json:"priceCents"`
	Currency            string            `json:"currency"`
	Timeline            string            `json:"timeline"`
	Description         string            `json:"description"`
	Materials           []MaterialLine    `json:"materials"`
	MaterialsTotalCents int64             `json:"materialsTotalCents"`
	Status              repository.Status `json:"status"`
	CreatedAt           time.Time         `json:"createdAt"`
	UpdatedAt           time.Time         `json:"updatedAt"`
	ExpiresAt           time.Time         `json:"expiresAt"`
	RespondedAt         *time.Time        `json:"respondedAt,omitempty"`
}

// QuoteListResponse is a list of quotes, paged for GET /quotes/mine.
type QuoteListResponse struct {
	Items      []QuoteResponse `json:"items"`
	Total      int             `json:"total"`
	Page       int             `json:"page"`
	PageSize   int             `json:"pageSize"`
	TotalPages int             `json:"totalPages"`
}
