package inapp

import (
	"context"
	"strings"

	"marketplace_backend/internal/notification/sse"
	"marketplace_backend/platform/apperr"
	"marketplace_backend/platform/logger"
)

const (
	defaultPageSize = 20
	maxPageSize     = 50
)

type Service struct {
	repo *Repository
	sse  *sse.Service
	log  *logger.Logger
}

func NewService(repo *Repository, log *logger.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log,
	}
}

// SetSSE injects the SSE service (circular dependency avoidance).
func (s *Service) SetSSE(sseSvc *sse.Service) {
	s.sse = sseSvc
}

// Send persists the notification and pushes it via SSE if the recipient is
// online. It returns ErrAlreadyExists for a repeated notification.
func (s *Service) Send(ctx context.Context, n *Notification) error {
	if s == nil || s.repo == nil {
		return apperr.Internal("in-app notification service not configured")
	}

	if err := s.repo.Create(ctx, n); err != nil {
		if err != ErrAlreadyExists && s.log != nil {
			s.log.Error("failed to persist notification", "error", err, "recipientId", n.RecipientID, "type", n.Type)
		}
		return err
	}

	if s.sse != nil && n.HasChannel(ChannelInApp) {
		s.sse.Publish(n.RecipientID, sse.Event{
			Type:    sse.EventNotification,
			Message: n.Title,
			Data:    n,
		})
	}

	return nil
}

func (s *Service) Get(ctx context.Context, id string) (*Notification, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, recipientID string, page, pageSize int) ([]Notification, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	offset := (page - 1) * pageSize
	return s.repo.List(ctx, recipientID, pageSize, offset)
}

func (s *Service) CountUnread(ctx context.Context, recipientID string) (int, error) {
	return s.repo.CountUnread(ctx, recipientID)
}

func (s *Service) CountUnreadByTypes(ctx context.Context, recipientID string, types []string) (int, error) {
	normalized := make([]Type, 0, len(types))
	for _, item := range types {
		trimmed := strings.ToUpper(strings.TrimSpace(item))
		if trimmed == "" {
			continue
		}
		normalized = append(normalized, Type(trimmed))
	}
	return s.repo.CountUnreadByTypes(ctx, recipientID, normalized)
}

func (s *Service) Stats(ctx context.Context, recipientID string) (Stats, error) {
	return s.repo.Stats(ctx, recipientID)
}

func (s *Service) MarkRead(ctx context.Context, recipientID, id string) error {
	return s.repo.MarkRead(ctx, recipientID, id)
}

func (s *Service) MarkAllRead(ctx context.Context, recipientID string) (int, error) {
	return s.repo.MarkAllRead(ctx, recipientID)
}

func (s *Service) Delete(ctx context.Context, recipientID, id string) error {
	return s.repo.Delete(ctx, recipientID, id)
}

func (s *Service) RecordEmailAttempt(ctx context.Context, id string, sent bool, attempts int) error {
	return s.repo.RecordEmailAttempt(ctx, id, sent, attempts)
}

func (s *Service) RecordSMSSent(ctx context.Context, id string) error {
	return s.repo.RecordSMSSent(ctx, id)
}
