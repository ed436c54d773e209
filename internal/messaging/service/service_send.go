package service

import (
	"context"
	"fmt"
	"strings"

	"marketplace_backend/internal/adapters/storage"
	"marketplace_backend/internal/events"
	jobdomain "marketplace_backend/internal/jobs/domain"
	"marketplace_backend/internal/messaging/repository"
	"marketplace_backend/internal/messaging/transport"
	"marketplace_backend/platform/apperr"
	"marketplace_backend/platform/httpkit"
	"marketplace_backend/platform/sanitize"

	"github.com/google/uuid"
)

// Send stores a message from actor to another participant on the job.
func (s *Service) Send(ctx context.Context, actor httpkit.Actor, jobID string, req transport.SendMessageRequest) (*repository.Message, error) {
	msgType := repository.Type(req.Type)
	if msgType == "" {
		msgType = repository.TypeText
	}
	if err := validateOutgoing(actor, msgType, req); err != nil {
		return nil, err
	}

	job, err := s.requireAccess(ctx, jobID, actor)
	if err != nil {
		return nil, err
	}
	if err := s.requireRecipient(ctx, job, req.RecipientID); err != nil {
		return nil, err
	}
	for _, att := range req.Attachments {
		if att.FileKey != "" && !strings.HasPrefix(att.FileKey, attachmentFolder(job, actor.ID)+"/") {
			return nil, apperr.ValidationField("attachments", "attachment was not uploaded for this job")
		}
	}

	msg := &repository.Message{
		ID:           uuid.NewString(),
		JobRequestID: job.ID,
		SenderID:     actor.ID,
		RecipientID:  req.RecipientID,
		Type:         msgType,
		Content:      sanitize.Text(req.Content),
		Attachments:  toAttachments(req.Attachments),
		Status:       repository.StatusSent,
		SentAt:       s.now(),
	}
	if err := s.repo.Create(ctx, msg); err != nil {
		return nil, err
	}

	s.publish(ctx, events.MessageReceived{
		BaseEvent:   events.NewBaseEvent(),
		MessageID:   msg.ID,
		JobID:       job.ID,
		SenderID:    msg.SenderID,
		RecipientID: msg.RecipientID,
		Type:        string(msg.Type),
		Preview:     preview(msg),
	})
	return msg, nil
}

func validateOutgoing(actor httpkit.Actor, msgType repository.Type, req transport.SendMessageRequest) error {
	if actor.IsAnonymous() {
		return apperr.Unauthorized("authentication required")
	}
	switch msgType {
	case repository.TypeText:
		if strings.TrimSpace(req.Content) == "" {
			return apperr.ValidationField("content", "text messages need content")
		}
	case repository.TypeFile, repository.TypeImage:
		if len(req.Attachments) == 0 {
			return apperr.ValidationField("attachments", fmt.Sprintf("%s messages need at least one attachment", msgType))
		}
		for _, att := range req.Attachments {
			if err := storage.ValidateContentType(att.ContentType); err != nil {
				return apperr.ValidationField("attachments", "unsupported attachment type")
			}
			if msgType == repository.TypeImage && !storage.IsImageContentType(att.ContentType) {
				return apperr.ValidationField("attachments", "image messages only carry images")
			}
		}
	case repository.TypeSystem:
		return apperr.Forbidden("system messages cannot be sent by users")
	default:
		return apperr.ValidationField("type", "unknown message type")
	}
	if req.RecipientID == actor.ID {
		return apperr.ValidationField("recipientId", "cannot send a message to yourself")
	}
	return nil
}

func toAttachments(in []transport.AttachmentRequest) []repository.Attachment {
	out := make([]repository.Attachment, 0, len(in))
	for _, att := range in {
		out = append(out, repository.Attachment{
			URL:         att.URL,
			FileKey:     att.FileKey,
			Name:        att.Name,
			ContentType: att.ContentType,
			Size:        att.Size,
		})
	}
	return out
}

// SendSystem stores a system announcement on the job. Only admins and the
// internal system actor may author one; it does not raise MessageReceived.
func (s *Service) SendSystem(ctx context.Context, actor httpkit.Actor, jobID string, req transport.SystemMessageRequest) (*repository.Message, error) {
	if !actor.IsAdmin() {
		return nil, apperr.Forbidden("only administrators can send system messages")
	}
	if strings.TrimSpace(req.EventTag) == "" {
		return nil, apperr.ValidationField("eventTag", "system messages need an event tag")
	}
	if strings.TrimSpace(req.Content) == "" {
		return nil, apperr.ValidationField("content", "system messages need content")
	}

	job, err := s.jobs.Lookup(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if err := s.requireRecipient(ctx, job, req.RecipientID); err != nil {
		return nil, err
	}

	msg := &repository.Message{
		ID:           uuid.NewString(),
		JobRequestID: job.ID,
		SenderID:     actor.ID,
		RecipientID:  req.RecipientID,
		Type:         repository.TypeSystem,
		Content:      sanitize.Text(req.Content),
		Attachments:  []repository.Attachment{},
		Status:       repository.StatusSent,
		EventTag:     req.EventTag,
		SentAt:       s.now(),
	}
	if err := s.repo.Create(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// announce posts a system message and logs instead of failing; used from
// event subscriptions where no caller is waiting.
func (s *Service) announce(ctx context.Context, jobID, recipientID, tag, content string) error {
	if recipientID == "" {
		return nil
	}
	_, err := s.SendSystem(ctx, httpkit.SystemActor, jobID, transport.SystemMessageRequest{
		RecipientID: recipientID,
		Content:     content,
		EventTag:    tag,
	})
	if err != nil {
		s.log.Warn("system message failed", "job_id", jobID, "event_tag", tag, "error", err)
	}
	return nil
}

// AnnounceQuoteAccepted tells the winning professional their quote was accepted.
func (s *Service) AnnounceQuoteAccepted(ctx context.Context, e events.QuoteAccepted) error {
	return s.announce(ctx, e.JobID, e.ProfessionalID, "quote_accepted",
		fmt.Sprintf("Your quote for %q was accepted.", e.JobTitle))
}

// AnnounceJobCancelled tells the assigned professional the job was cancelled.
func (s *Service) AnnounceJobCancelled(ctx context.Context, e events.JobCancelled) error {
	content := fmt.Sprintf("The job %q was cancelled.", e.Title)
	if e.Reason != "" {
		content = fmt.Sprintf("The job %q was cancelled: %s", e.Title, e.Reason)
	}
	return s.announce(ctx, e.JobID, e.ProfessionalID, "job_cancelled", content)
}

// PresignAttachment returns an upload URL for a file to attach to a message
// on the job.
func (s *Service) PresignAttachment(ctx context.Context, actor httpkit.Actor, jobID string, req transport.PresignAttachmentRequest) (*storage.PresignedURL, error) {
	if s.storage == nil || s.files == nil {
		return nil, apperr.Internal("attachment uploads are not configured")
	}
	job, err := s.requireAccess(ctx, jobID, actor)
	if err != nil {
		return nil, err
	}
	folder := attachmentFolder(job, actor.ID)
	return s.storage.GenerateUploadURL(ctx, s.files.GetMinioBucketMessageAttachments(), folder, req.FileName, req.ContentType, req.SizeBytes)
}

func attachmentFolder(job *jobdomain.Job, actorID string) string {
	return job.ID + "/" + actorID
}
