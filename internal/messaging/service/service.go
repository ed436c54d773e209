// Package service implements job-scoped messaging. Access to a job's thread
// is derived from the job and its quotes on every call, never from a
// separate membership list.
package service

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"marketplace_backend/internal/adapters/storage"
	"marketplace_backend/internal/events"
	jobdomain "marketplace_backend/internal/jobs/domain"
	"marketplace_backend/internal/messaging/repository"
	"marketplace_backend/platform/apperr"
	"marketplace_backend/platform/httpkit"
	"marketplace_backend/platform/logger"
)

// JobReader loads jobs. Implemented by the jobs service.
type JobReader interface {
	Lookup(ctx context.Context, id string) (*jobdomain.Job, error)
}

// QuoteHistory answers whether a professional ever quoted on a job.
// Implemented by the quotes service.
type QuoteHistory interface {
	HasQuoted(ctx context.Context, jobID, professionalID string) (bool, error)
}

// RoleDirectory reports the role an account last authenticated with.
// Implemented by the notification contact directory.
type RoleDirectory interface {
	RoleOf(ctx context.Context, accountID string) (httpkit.Role, error)
}

// AttachmentConfig names the bucket for message attachments.
type AttachmentConfig interface {
	GetMinioBucketMessageAttachments() string
}

const (
	previewLength        = 120
	conversationFanout   = 5
	msgNoAccess          = "you do not have access to messages on this job"
	msgNotRecipient      = "only the recipient can update this message"
	msgRecipientNotParty = "recipient is not a participant on this job"
)

// Service provides messaging operations.
type Service struct {
	repo     *repository.Repository
	jobs     JobReader
	quotes   QuoteHistory
	log      *logger.Logger
	eventBus events.Bus
	storage  storage.StorageService
	files    AttachmentConfig
	roles    RoleDirectory
	now      func() time.Time
}

// New creates a messaging service.
func New(repo *repository.Repository, jobs JobReader, quotes QuoteHistory, log *logger.Logger) *Service {
	return &Service{
		repo:   repo,
		jobs:   jobs,
		quotes: quotes,
		log:    log,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// SetEventBus injects the event bus.
func (s *Service) SetEventBus(bus events.Bus) {
	s.eventBus = bus
}

// SetStorage enables presigned attachment uploads.
func (s *Service) SetStorage(store storage.StorageService, cfg AttachmentConfig) {
	s.storage = store
	s.files = cfg
}

// SetRoleDirectory lets admins be addressed as message recipients.
func (s *Service) SetRoleDirectory(roles RoleDirectory) {
	s.roles = roles
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	if s.eventBus == nil {
		return
	}
	s.eventBus.Publish(ctx, event)
}

// ── Access gate ───────────────────────────────────────────────────────────────

// CanAccess reports whether actor may read and write messages on the job:
// admins, the owner, the assigned professional, and any professional who
// has a non-withdrawn quote on it.
func (s *Service) CanAccess(ctx context.Context, jobID string, actor httpkit.Actor) (bool, error) {
	job, err := s.jobs.Lookup(ctx, jobID)
	if err != nil {
		return false, err
	}
	return s.canAccess(ctx, job, actor)
}

func (s *Service) canAccess(ctx context.Context, job *jobdomain.Job, actor httpkit.Actor) (bool, error) {
	if actor.IsAnonymous() {
		return false, nil
	}
	if actor.IsAdmin() {
		return true, nil
	}
	return s.isParticipant(ctx, job, actor.ID)
}

// isParticipant checks the job-derived roles only; it does not know roles
// of arbitrary ids, so admins are not participants here.
func (s *Service) isParticipant(ctx context.Context, job *jobdomain.Job, actorID string) (bool, error) {
	if actorID == "" {
		return false, nil
	}
	if job.OwnerID() == actorID || job.AssignedID() == actorID {
		return true, nil
	}
	return s.quotes.HasQuoted(ctx, job.ID, actorID)
}

func (s *Service) requireAccess(ctx context.Context, jobID string, actor httpkit.Actor) (*jobdomain.Job, error) {
	if actor.IsAnonymous() {
		return nil, apperr.Unauthorized("authentication required")
	}
	job, err := s.jobs.Lookup(ctx, jobID)
	if err != nil {
		return nil, err
	}
	ok, err := s.canAccess(ctx, job, actor)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.Forbidden(msgNoAccess)
	}
	return job, nil
}

func (s *Service) requireRecipient(ctx context.Context, job *jobdomain.Job, recipientID string) error {
	ok, err := s.isParticipant(ctx, job, recipientID)
	if err != nil {
		return err
	}
	if !ok && recipientID != "" && s.roles != nil {
		role, err := s.roles.RoleOf(ctx, recipientID)
		if err != nil {
			return err
		}
		ok = role == httpkit.RoleAdmin
	}
	if !ok {
		return apperr.ValidationField("recipientId", msgRecipientNotParty)
	}
	return nil
}

func preview(msg *repository.Message) string {
	content := strings.TrimSpace(msg.Content)
	if content == "" && len(msg.Attachments) > 0 {
		return msg.Attachments[0].Name
	}
	if utf8.RuneCountInString(content) <= previewLength {
		return content
	}
	runes := []rune(content)
	return string(runes[:previewLength]) + "…"
}
