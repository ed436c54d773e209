package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"marketplace_backend/internal/docstore"
	jobdomain "marketplace_backend/internal/jobs/domain"
	"marketplace_backend/internal/messaging/repository"
	"marketplace_backend/internal/messaging/transport"
	"marketplace_backend/platform/apperr"
	"marketplace_backend/platform/httpkit"

	"golang.org/x/sync/errgroup"
)

// ListForJob returns the job's messages the actor sent or received, oldest
// first. Admins see the whole job.
func (s *Service) ListForJob(ctx context.Context, actor httpkit.Actor, jobID string) ([]repository.Message, error) {
	if _, err := s.requireAccess(ctx, jobID, actor); err != nil {
		return nil, err
	}
	msgs, err := s.repo.ListForJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() {
		visible := msgs[:0]
		for _, m := range msgs {
			if m.Involves(actor.ID) {
				visible = append(visible, m)
			}
		}
		msgs = visible
	}
	sortBySentAt(msgs)
	s.signAttachments(ctx, msgs)
	return msgs, nil
}

// signAttachments swaps the URL of every stored attachment for a short-lived
// download URL. Attachments without a key keep the URL they were sent with.
func (s *Service) signAttachments(ctx context.Context, msgs []repository.Message) {
	if s.storage == nil || s.files == nil {
		return
	}
	bucket := s.files.GetMinioBucketMessageAttachments()
	for i := range msgs {
		for j := range msgs[i].Attachments {
			att := &msgs[i].Attachments[j]
			if att.FileKey == "" {
				continue
			}
			signed, err := s.storage.GenerateDownloadURL(ctx, bucket, att.FileKey)
			if err != nil {
				s.log.Warn("failed to sign attachment download", "messageId", msgs[i].ID, "key", att.FileKey, "error", err)
				continue
			}
			att.URL = signed.URL
		}
	}
}

func sortBySentAt(msgs []repository.Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].SentAt.Before(msgs[j].SentAt)
	})
}

func (s *Service) loadAsRecipient(ctx context.Context, actor httpkit.Actor, id string) (*repository.Message, error) {
	msg, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.IsAnonymous() || msg.RecipientID != actor.ID {
		return nil, apperr.Forbidden(msgNotRecipient)
	}
	return msg, nil
}

// MarkDelivered moves a sent message to delivered. Messages already
// delivered or read are returned unchanged.
func (s *Service) MarkDelivered(ctx context.Context, actor httpkit.Actor, id string) (*repository.Message, error) {
	msg, err := s.loadAsRecipient(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if msg.Status != repository.StatusSent {
		return msg, nil
	}

	now := s.now()
	ok, err := s.repo.UpdateIfStatusIn(ctx, id, []repository.Status{repository.StatusSent}, docstore.Patch{
		repository.FieldStatus: repository.StatusDelivered,
		"deliveredAt":          now,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return s.repo.GetByID(ctx, id)
	}
	msg.Status = repository.StatusDelivered
	msg.DeliveredAt = &now
	return msg, nil
}

// MarkRead moves a message to read. Marking a read message again is a no-op.
func (s *Service) MarkRead(ctx context.Context, actor httpkit.Actor, id string) (*repository.Message, error) {
	msg, err := s.loadAsRecipient(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !msg.Status.Unread() {
		return msg, nil
	}

	ok, readAt, err := s.markRead(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		// A concurrent reader got there first.
		return s.repo.GetByID(ctx, id)
	}
	msg.Status = repository.StatusRead
	msg.ReadAt = &readAt
	return msg, nil
}

func (s *Service) markRead(ctx context.Context, id string) (bool, time.Time, error) {
	now := s.now()
	ok, err := s.repo.UpdateIfStatusIn(ctx, id, []repository.Status{repository.StatusSent, repository.StatusDelivered}, docstore.Patch{
		repository.FieldStatus: repository.StatusRead,
		"readAt":               now,
	})
	return ok, now, err
}

// MarkAllRead marks every unread message addressed to the actor on the job
// as read and returns how many changed.
func (s *Service) MarkAllRead(ctx context.Context, actor httpkit.Actor, jobID string) (int, error) {
	if _, err := s.requireAccess(ctx, jobID, actor); err != nil {
		return 0, err
	}
	unread, err := s.repo.ListUnread(ctx, actor.ID, jobID)
	if err != nil {
		return 0, err
	}
	updated := 0
	for i := range unread {
		ok, _, err := s.markRead(ctx, unread[i].ID)
		if err != nil {
			return updated, err
		}
		if ok {
			updated++
		}
	}
	return updated, nil
}

// UnreadCount returns how many messages addressed to the actor are unread.
func (s *Service) UnreadCount(ctx context.Context, actor httpkit.Actor) (int, error) {
	if actor.IsAnonymous() {
		return 0, apperr.Unauthorized("authentication required")
	}
	unread, err := s.repo.ListUnread(ctx, actor.ID, "")
	if err != nil {
		return 0, err
	}
	return len(unread), nil
}

type thread struct {
	job    *jobdomain.Job
	last   *repository.Message
	unread int
}

// Conversations summarizes, per job the actor can access, the latest message
// and the unread count, most recent activity first.
func (s *Service) Conversations(ctx context.Context, actor httpkit.Actor) ([]transport.ConversationResponse, error) {
	if actor.IsAnonymous() {
		return nil, apperr.Unauthorized("authentication required")
	}
	msgs, err := s.repo.ListInvolving(ctx, actor.ID)
	if err != nil {
		return nil, err
	}

	threads := make(map[string]*thread)
	for i := range msgs {
		m := &msgs[i]
		t, ok := threads[m.JobRequestID]
		if !ok {
			t = &thread{}
			threads[m.JobRequestID] = t
		}
		if t.last == nil || m.SentAt.After(t.last.SentAt) {
			t.last = m
		}
		if m.RecipientID == actor.ID && m.Status.Unread() {
			t.unread++
		}
	}

	if err := s.attachJobs(ctx, actor, threads); err != nil {
		return nil, err
	}

	out := make([]transport.ConversationResponse, 0, len(threads))
	for jobID, t := range threads {
		if t.job == nil {
			continue
		}
		last := transport.ToMessageResponse(t.last)
		out = append(out, transport.ConversationResponse{
			JobRequestID:   jobID,
			JobTitle:       t.job.Title,
			JobStatus:      string(t.job.Status),
			LastMessage:    &last,
			UnreadCount:    t.unread,
			LastActivityAt: t.last.SentAt,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LastActivityAt.Equal(out[j].LastActivityAt) {
			return out[i].JobRequestID < out[j].JobRequestID
		}
		return out[i].LastActivityAt.After(out[j].LastActivityAt)
	})
	return out, nil
}

// attachJobs loads each thread's job and leaves job nil where the job is
// gone or no longer accessible.
func (s *Service) attachJobs(ctx context.Context, actor httpkit.Actor, threads map[string]*thread) error {
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(conversationFanout)

	for jobID, t := range threads {
		jobID, t := jobID, t
		g.Go(func() error {
			job, err := s.jobs.Lookup(gctx, jobID)
			if apperr.Is(err, apperr.KindNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			ok, err := s.canAccess(gctx, job, actor)
			if err != nil {
				return err
			}
			if ok {
				mu.Lock()
				t.job = job
				mu.Unlock()
			}
			return nil
		})
	}
	return g.Wait()
}
