package transport

import (
	"time"

	"marketplace_backend/internal/jobs/domain"
)

// ── Requests ──────────────────────────────────────────────────────────────────

// BudgetRequest is an optional price range in minor units.
type BudgetRequest struct {
	MinCents int64  `json:"minCents" validate:"min=0"`
	MaxCents int64  `json:"maxCents" validate:"min=0,gtefield=MinCents"`
	Currency string `json:"currency" validate:"omitempty,len=3,alpha"`
}

// VehicleRequest is the automotive payload.
type VehicleRequest struct {
	LicensePlate string `json:"licensePlate" validate:"required,licenseplate"`
	Make         string `json:"make" validate:"omitempty,max=60"`
	Model        string `json:"model" validate:"omitempty,max=60"`
	Year         int    `json:"year" validate:"omitempty,min=1900,max=2100"`
}

// CreateJobRequest creates a draft. Only the category is mandatory.
type CreateJobRequest struct {
	Category      string          `json:"category" validate:"required"`
	Title         string          `json:"title" validate:"omitempty,max=200"`
	Description   string          `json:"description" validate:"omitempty,max=5000"`
	Postcode      string          `json:"postcode" validate:"omitempty,postcode"`
	Address       string          `json:"address" validate:"omitempty,max=300"`
	Budget        *BudgetRequest  `json:"budget" validate:"omitempty"`
	Priority      string          `json:"priority" validate:"omitempty,oneof=low normal high urgent"`
	Vehicle       *VehicleRequest `json:"vehicle" validate:"omitempty"`
	Photos        []string        `json:"photos" validate:"omitempty,max=10,dive,url"`
	ContactEmail  string          `json:"contactEmail" validate:"omitempty,email,max=254"`
	ContactName   string          `json:"contactName" validate:"omitempty,max=120"`
	ContactPhone  string          `json:"contactPhone" validate:"omitempty,max=32"`
	QuoteDeadline *time.Time      `json:"quoteDeadline"`
	MaxQuotes     int             `json:"maxQuotes" validate:"omitempty,min=1,max=50"`
}

// PresignPhotoRequest is the body of POST /public/jobs/:id/photos/presign.
type PresignPhotoRequest struct {
	FileName    string `json:"fileName" validate:"required,max=255"`
	ContentType string `json:"contentType" validate:"required,max=100"`
	SizeBytes   int64  `json:"sizeBytes" validate:"required,min=1"`
}

// PatchDraftRequest edits any field of a draft. Nil pointers are left untouched.
type PatchDraftRequest struct {
	Category      *string         `json:"category"`
	Title         *string         `json:"title" validate:"omitempty,max=200"`
	Description   *string         `json:"description" validate:"omitempty,max=5000"`
	Postcode      *string         `json:"postcode" validate:"omitempty,postcode"`
	Address       *string         `json:"address" validate:"omitempty,max=300"`
	Budget        *BudgetRequest  `json:"budget" validate:"omitempty"`
	Priority      *string         `json:"priority" validate:"omitempty,oneof=low normal high urgent"`
	Vehicle       *VehicleRequest `json:"vehicle" validate:"omitempty"`
	Photos        *[]string       `json:"photos" validate:"omitempty,max=10,dive,url"`
	ContactEmail  *string         `json:"contactEmail" validate:"omitempty,email,max=254"`
	ContactName   *string         `json:"contactName" validate:"omitempty,max=120"`
	ContactPhone  *string         `json:"contactPhone" validate:"omitempty,max=32"`
	QuoteDeadline *time.Time      `json:"quoteDeadline"`
}

// UpdateJobRequest edits the fields that stay editable after submit.
type UpdateJobRequest struct {
	Title         *string        `json:"title" validate:"omitempty,min=10,max=200"`
	Description   *string        `json:"description" validate:"omitempty,max=5000"`
	Address       *string        `json:"address" validate:"omitempty,max=300"`
	Budget        *BudgetRequest `json:"budget" validate:"omitempty"`
	Priority      *string        `json:"priority" validate:"omitempty,oneof=low normal high urgent"`
	QuoteDeadline *time.Time     `json:"quoteDeadline"`
	Status        *string        `json:"status"`
	Reason        string         `json:"reason" validate:"omitempty,max=500"`
}

// TransitionRequest asks for a status change.
type TransitionRequest struct {
	Status string `json:"status" validate:"required"`
	Reason string `json:"reason" validate:"omitempty,max=500"`
}

// ListJobsRequest filters a job listing.
type ListJobsRequest struct {
	Scope    string `form:"scope" validate:"omitempty,oneof=mine marketplace all"`
	Status   string `form:"status"`
	Category string `form:"category"`
	Page     int    `form:"page" validate:"omitempty,min=1"`
	PageSize int    `form:"pageSize" validate:"omitempty,min=1,max=100"`
}

// ── Responses ─────────────────────────────────────────────────────────────────

// JobResponse is the public representation of a job. Guest attribution is
// reduced to a flag.
type JobResponse struct {
	ID                     string          `json:"id"`
	CustomerID             *string         `json:"customerId"`
	Guest                  bool            `json:"guest"`
	ContactEmail           string          `json:"contactEmail,omitempty"`
	ContactName            string          `json:"contactName,omitempty"`
	ContactPhone           string          `json:"contactPhone,omitempty"`
	Category               domain.Category `json:"category"`
	Title                  string          `json:"title"`
	Description            string          `json:"description"`
	Postcode               string          `json:"postcode"`
	Address                string          `json:"address,omitempty"`
	Budget                 *domain.Budget  `json:"budget,omitempty"`
	Priority               domain.Priority `json:"priority"`
	Vehicle                *domain.Vehicle `json:"vehicle,omitempty"`
	Photos                 []string        `json:"photos"`
	Status                 domain.Status   `json:"status"`
	QuotesCount            int             `json:"quotesCount"`
	MaxQuotes              int             `json:"maxQuotes"`
	QuoteDeadline          *time.Time      `json:"quoteDeadline,omitempty"`
	AssignedProfessionalID *string         `json:"assignedProfessionalId,omitempty"`
	AcceptedQuoteID        *string         `json:"acceptedQuoteId,omitempty"`
	ViewCount              int             `json:"viewCount"`
	CancelReason           string          `json:"cancelReason,omitempty"`
	CreatedAt              time.Time       `json:"createdAt"`
	UpdatedAt              time.Time       `json:"updatedAt"`
	PostedAt               *time.Time      `json:"postedAt,omitempty"`
	StartedAt              *time.Time      `json:"startedAt,omitempty"`
	CompletedAt            *time.Time      `json:"completedAt,omitempty"`
	CancelledAt            *time.Time      `json:"cancelledAt,omitempty"`
	Variant                string          `json:"variant"`
}

// JobListResponse is a page of jobs.
// PhotoUploadResponse pairs the presigned upload with the URL to store in photos.
type PhotoUploadResponse struct {
	UploadURL string    `json:"uploadUrl"`
	FileKey   string    `json:"fileKey"`
	PhotoURL  string    `json:"photoUrl"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type JobListResponse struct {
	Items      []JobResponse `json:"items"`
	Total      int           `json:"total"`
	Page       int           `json:"page"`
	PageSize   int           `json:"pageSize"`
	TotalPages int           `json:"totalPages"`
}

// ToJobResponse maps a stored job to its public shape.
func ToJobResponse(job *domain.Job) JobResponse {
	photos := job.Photos
	if photos == nil {
		photos = []string{}
	}
	return JobResponse{
		ID:                     job.ID,
		CustomerID:             job.CustomerID,
		Guest:                  job.CustomerID == nil,
		ContactEmail:           job.ContactEmail,
		ContactName:            job.ContactName,
		ContactPhone:           job.ContactPhone,
		Category:               job.Category,
		Title:                  job.Title,
		Description:            job.Description,
		Postcode:               job.Postcode,
		Address:                job.Address,
		Budget:                 job.Budget,
		Priority:               job.Priority,
		Vehicle:                job.Vehicle,
		Photos:                 photos,
		Status:                 job.Status,
		QuotesCount:            job.QuotesCount,
		MaxQuotes:              job.MaxQuotes,
		QuoteDeadline:          job.QuoteDeadline,
		AssignedProfessionalID: job.AssignedProfessionalID,
		AcceptedQuoteID:        job.AcceptedQuoteID,
		ViewCount:              job.ViewCount,
		CancelReason:           job.CancelReason,
		CreatedAt:              job.CreatedAt,
		UpdatedAt:              job.UpdatedAt,
		PostedAt:               job.PostedAt,
		StartedAt:              job.StartedAt,
		CompletedAt:            job.CompletedAt,
		CancelledAt:            job.CancelledAt,
		Variant:                domain.VariantFor(job.Category).Name(),
	}
}
