package transport

import (
	"time"

	"marketplace_backend/internal/messaging/repository"
)

// ── Requests ──────────────────────────────────────────────────────────────────

// AttachmentRequest references a file uploaded through a presigned URL.
type AttachmentRequest struct {
	URL         string `json:"url" validate:"required,url,max=2048"`
	FileKey     string `json:"fileKey" validate:"omitempty,max=1024"`
	Name        string `json:"name" validate:"required,max=255"`
	ContentType string `json:"contentType" validate:"required,max=100"`
	Size        int64  `json:"size" validate:"min=0"`
}

// SendMessageRequest is the body of POST /jobs/:id/messages.
type SendMessageRequest struct {
	RecipientID string              `json:"recipientId" validate:"required,max=128"`
	Type        string              `json:"type" validate:"omitempty,oneof=text file image"`
	Content     string              `json:"content" validate:"max=5000"`
	Attachments []AttachmentRequest `json:"attachments" validate:"omitempty,max=10,dive"`
}

// SystemMessageRequest is an internal announcement on a job.
type SystemMessageRequest struct {
	RecipientID string `json:"recipientId" validate:"required,max=128"`
	Content     string `json:"content" validate:"required,max=5000"`
	EventTag    string `json:"eventTag" validate:"required,max=64"`
}

// PresignAttachmentRequest is the body of POST /jobs/:id/attachments/presign.
type PresignAttachmentRequest struct {
	FileName    string `json:"fileName" validate:"required,max=255"`
	ContentType string `json:"contentType" validate:"required,max=100"`
	SizeBytes   int64  `json:"sizeBytes" validate:"required,min=1"`
}

// ── Responses ─────────────────────────────────────────────────────────────────

// MessageResponse is the wire shape of a message.
type MessageResponse struct {
	ID           string                  `json:"id"`
	JobRequestID string                  `json:"jobRequestId"`
	SenderID     string                  `json:"senderId"`
	RecipientID  string                  `json:"recipientId"`
	Type         repository.Type         `json:"type"`
	Content      string                  `json:"content"`
	Attachments  []repository.Attachment `json:"attachments"`
	Status       repository.Status       `json:"status"`
	EventTag     string                  `json:"eventTag,omitempty"`
	SentAt       time.Time               `json:"sentAt"`
	DeliveredAt  *time.Time              `json:"deliveredAt,omitempty"`
	ReadAt       *time.Time              `json:"readAt,omitempty"`
}

// MessageListResponse wraps the messages of one job.
type MessageListResponse struct {
	Items []MessageResponse `json:"items"`
	Total int               `json:"total"`
}

// ConversationResponse summarizes one job thread for the actor.
type ConversationResponse struct {
	JobRequestID   string           `json:"jobRequestId"`
	JobTitle       string           `json:"jobTitle"`
	JobStatus      string           `json:"jobStatus"`
	LastMessage    *MessageResponse `json:"lastMessage"`
	UnreadCount    int              `json:"unreadCount"`
	LastActivityAt time.Time        `json:"lastActivityAt"`
}

// ConversationListResponse is the body of GET /conversations.
type ConversationListResponse struct {
	Items []ConversationResponse `json:"items"`
	Total int                    `json:"total"`
}

// UnreadCountResponse is the body of unread counters.
type UnreadCountResponse struct {
	Count int `json:"count"`
}

// MarkAllReadResponse reports how many messages changed state.
type MarkAllReadResponse struct {
	Updated int `json:"updated"`
}

// ToMessageResponse converts a stored message to its wire shape.
func ToMessageResponse(m *repository.Message) MessageResponse {
	attachments := m.Attachments
	if attachments == nil {
		attachments = []repository.Attachment{}
	}
	return MessageResponse{
		ID:           m.ID,
		JobRequestID: m.JobRequestID,
		SenderID:     m.SenderID,
		RecipientID:  m.RecipientID,
		Type:         m.Type,
		Content:      m.Content,
		Attachments:  attachments,
		Status:       m.Status,
		EventTag:     m.EventTag,
		SentAt:       m.SentAt,
		DeliveredAt:  m.DeliveredAt,
		ReadAt:       m.ReadAt,
	}
}
