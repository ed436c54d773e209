// Package service manages guest identities: opaque tokens for anonymous
// authors and the protocol that hands their drafts to an account.
package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"slices"
	"strings"
	"time"

	"marketplace_backend/internal/events"
	"marketplace_backend/internal/guest/repository"
	jobdomain "marketplace_backend/internal/jobs/domain"
	"marketplace_backend/platform/apperr"
	"marketplace_backend/platform/logger"
)

const (
	tokenBytes       = 32
	touchInterval    = time.Hour
	maxAttachRetries = 5
	maxLinkPasses    = 2
)

// JobLinker is the slice of the job lifecycle the link protocol needs.
type JobLinker interface {
	FindLinkCandidates(ctx context.Context, guestTokenHash, email string) ([]jobdomain.Job, error)
	LinkToAccount(ctx context.Context, job jobdomain.Job, accountID string) (bool, error)
	PromoteOnLink(ctx context.Context, jobID string) (bool, error)
}

// LinkRequest identifies the anonymous activity to reconcile.
type LinkRequest struct {
	GuestToken   string
	ContactEmail string
}

// LinkResult reports which jobs this call attached to the account.
type LinkResult struct {
	Linked   int
	JobIDs   []string
	Promoted []string
}

// Service issues guest tokens and links guest drafts to accounts.
type Service struct {
	repo     *repository.Repository
	jobs     JobLinker
	eventBus events.Bus
	log      *logger.Logger
	maxAge   time.Duration
	now      func() time.Time
}

// New creates the guest service. maxAge bounds how long an idle session resolves.
func New(repo *repository.Repository, maxAge time.Duration, log *logger.Logger) *Service {
	return &Service{
		repo:   repo,
		log:    log,
		maxAge: maxAge,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// SetJobLinker injects the job lifecycle.
func (s *Service) SetJobLinker(jobs JobLinker) {
	s.jobs = jobs
}

// SetEventBus injects the event bus.
func (s *Service) SetEventBus(bus events.Bus) {
	s.eventBus = bus
}

// HashToken derives the stored identifier of a guest token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// IssueGuestToken returns a new cryptographically random opaque token.
func IssueGuestToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Issue creates a token and its session. Only the hash is persisted.
func (s *Service) Issue(ctx context.Context) (string, string, error) {
	token, err := IssueGuestToken()
	if err != nil {
		return "", "", apperr.Wrap(apperr.KindInternal, "failed to issue guest token", err)
	}
	now := s.now()
	session := &repository.Session{
		ID:          HashToken(token),
		DraftJobIDs: []string{},
		CreatedAt:   now,
		LastSeenAt:  now,
	}
	if err := s.repo.Create(ctx, session); err != nil {
		return "", "", err
	}
	return token, session.ID, nil
}

// Resolve returns the hash of a token that maps to a live, unlinked session.
func (s *Service) Resolve(ctx context.Context, token string) (string, bool, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false, nil
	}
	hash := HashToken(token)
	session, err := s.repo.Get(ctx, hash)
	if err != nil || session == nil {
		return "", false, err
	}
	if session.LinkedAccountID != nil {
		return "", false, nil
	}
	now := s.now()
	if s.maxAge > 0 && now.Sub(session.LastSeenAt) > s.maxAge {
		return "", false, nil
	}
	if now.Sub(session.LastSeenAt) > touchInterval {
		if err := s.repo.Touch(ctx, hash, now); err != nil {
			s.log.Warn("failed to touch guest session", "error", err)
		}
	}
	return hash, true, nil
}

// AttachDraft records a draft on the guest session.
func (s *Service) AttachDraft(ctx context.Context, hash string, jobID string) error {
	for attempt := 0; attempt < maxAttachRetries; attempt++ {
		session, err := s.repo.Get(ctx, hash)
		if err != nil {
			return err
		}
		if session == nil {
			return apperr.NotFound("guest session not found")
		}
		if slices.Contains(session.DraftJobIDs, jobID) {
			return nil
		}
		next := append(slices.Clone(session.DraftJobIDs), jobID)
		ok, err := s.repo.SetDrafts(ctx, hash, session.DraftJobIDs, next)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}
	return apperr.Conflict("guest session is busy")
}

// ResolveGuestDraftsByEmail lists unowned draft or open jobs carrying email.
func (s *Service) ResolveGuestDraftsByEmail(ctx context.Context, email string) ([]jobdomain.Job, error) {
	if s.jobs == nil {
		return nil, apperr.Internal("job lifecycle is not configured")
	}
	if strings.TrimSpace(email) == "" {
		return []jobdomain.Job{}, nil
	}
	return s.jobs.FindLinkCandidates(ctx, "", email)
}

// LinkDraftsToAccount hands every unowned draft or open job attributed to the
// guest token or the contact email to accountID. Each job is claimed with a
// compare-and-set, so concurrent or repeated calls never count a job twice
// and never touch jobs another account already owns. Complete drafts are
// promoted to open through the promote_on_link transition.
func (s *Service) LinkDraftsToAccount(ctx context.Context, req LinkRequest, accountID string) (*LinkResult, error) {
	if s.jobs == nil {
		return nil, apperr.Internal("job lifecycle is not configured")
	}
	if strings.TrimSpace(accountID) == "" {
		return nil, apperr.Unauthorized("authentication required")
	}

	hash := ""
	if token := strings.TrimSpace(req.GuestToken); token != "" {
		hash = HashToken(token)
	}
	result := &LinkResult{JobIDs: []string{}, Promoted: []string{}}
	if hash == "" && strings.TrimSpace(req.ContactEmail) == "" {
		return result, nil
	}

	for pass := 0; pass < maxLinkPasses; pass++ {
		candidates, err := s.jobs.FindLinkCandidates(ctx, hash, req.ContactEmail)
		if err != nil {
			return nil, err
		}
		lost := 0
		for _, job := range candidates {
			ok, err := s.jobs.LinkToAccount(ctx, job, accountID)
			if err != nil {
				return nil, err
			}
			if !ok {
				lost++
				continue
			}
			result.Linked++
			result.JobIDs = append(result.JobIDs, job.ID)

			if job.Status != jobdomain.StatusDraft {
				continue
			}
			promoted, err := s.jobs.PromoteOnLink(ctx, job.ID)
			if err != nil {
				s.log.Warn("promote on link failed", "jobId", job.ID, "error", err)
				continue
			}
			if promoted {
				result.Promoted = append(result.Promoted, job.ID)
			}
		}
		if lost == 0 {
			break
		}
	}

	if hash != "" {
		s.destroySession(ctx, hash, accountID)
	}

	s.log.GuestLink(accountID, result.Linked)
	if result.Linked > 0 && s.eventBus != nil {
		s.eventBus.Publish(ctx, events.GuestDraftsLinked{
			BaseEvent: events.NewBaseEvent(),
			AccountID: accountID,
			JobIDs:    result.JobIDs,
		})
	}
	return result, nil
}

func (s *Service) destroySession(ctx context.Context, hash, accountID string) {
	session, err := s.repo.Get(ctx, hash)
	if err != nil {
		s.log.Warn("failed to load guest session for linking", "error", err)
		return
	}
	if session == nil {
		return
	}
	if err := s.repo.MarkLinked(ctx, hash, accountID, s.now()); err != nil {
		s.log.Warn("failed to mark guest session linked", "error", err)
		return
	}
	if err := s.repo.Delete(ctx, hash); err != nil {
		s.log.Warn("failed to delete linked guest session", "error", err)
	}
}
