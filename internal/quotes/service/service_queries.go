package service

import (
	"context"
	"sort"

	"marketplace_backend/internal/docstore"
	jobdomain "marketplace_backend/internal/jobs/domain"
	"marketplace_backend/internal/quotes/repository"
	"marketplace_backend/internal/quotes/transport"
	"marketplace_backend/platform/apperr"
	"marketplace_backend/platform/httpkit"
)

// ListForJob returns the quotes on a job. The owner and admins see all of
// them, a professional sees only their own. Reads repair leftovers of a
// partially failed accept and apply lazy expiry.
func (s *Service) ListForJob(ctx context.Context, p jobdomain.Principal, jobID string) ([]repository.Quote, error) {
	job, err := s.jobs.Lookup(ctx, jobID)
	if err != nil {
		return nil, err
	}
	seeAll := p.IsOwner(job) || p.Actor.IsAdmin()
	if !seeAll && !p.Actor.IsProfessional() {
		return nil, apperr.Forbidden("not allowed to view quotes on this job")
	}

	quotes, err := s.repo.ListForJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	s.reconcile(ctx, job, quotes)
	s.settle(ctx, quotes)

	visible := make([]repository.Quote, 0, len(quotes))
	for _, q := range quotes {
		if seeAll || q.ProfessionalID == p.Actor.ID {
			visible = append(visible, q)
		}
	}
	sort.SliceStable(visible, func(i, j int) bool {
		return visible[i].CreatedAt.Before(visible[j].CreatedAt)
	})
	return visible, nil
}

// ListMine returns a page of the acting professional's quotes, newest first.
func (s *Service) ListMine(ctx context.Context, actor httpkit.Actor, req transport.ListMyQuotesRequest) (*transport.QuoteListResponse, error) {
	if !actor.IsProfessional() {
		return nil, apperr.Forbidden("only professionals have quotes")
	}
	quotes, err := s.repo.ListByProfessional(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	s.settle(ctx, quotes)

	filtered := quotes[:0]
	for _, q := range quotes {
		if req.Status == "" || string(q.Status) == req.Status {
			filtered = append(filtered, q)
		}
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].CreatedAt.After(filtered[j].CreatedAt)
	})

	page, pageSize := req.Page, req.PageSize
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	start, end := docstore.ApplyPage(len(filtered), docstore.Page{Limit: pageSize, Skip: (page - 1) * pageSize})

	items := make([]transport.QuoteResponse, 0, end-start)
	for i := start; i < end; i++ {
		items = append(items, ToQuoteResponse(&filtered[i]))
	}
	return &transport.QuoteListResponse{
		Items:      items,
		Total:      len(filtered),
		Page:       page,
		PageSize:   pageSize,
		TotalPages: (len(filtered) + pageSize - 1) / pageSize,
	}, nil
}

// CountPending counts the live pending quotes on a job.
func (s *Service) CountPending(ctx context.Context, jobID string) (int, error) {
	pending, err := s.repo.ListPendingForJob(ctx, jobID)
	if err != nil {
		return 0, err
	}
	now := s.now()
	count := 0
	for i := range pending {
		if !pending[i].ExpiredAt(now) {
			count++
		}
	}
	return count, nil
}

// HasQuoted reports whether the professional ever submitted a quote on the
// job that was not withdrawn.
func (s *Service) HasQuoted(ctx context.Context, jobID, professionalID string) (bool, error) {
	quotes, err := s.repo.Query(ctx, docstore.Where(
		docstore.Eq(repository.FieldJobRequestID, jobID),
		docstore.Eq(repository.FieldProfessionalID, professionalID),
	))
	if err != nil {
		return false, err
	}
	for i := range quotes {
		if quotes[i].CountsAgainstJob() {
			return true, nil
		}
	}
	return false, nil
}

// ExpireDue persists the expiry of every pending quote past expiresAt and
// returns how many it moved. Expired quotes keep their slot on the job.
func (s *Service) ExpireDue(ctx context.Context) (int, error) {
	pending, err := s.repo.ListPending(ctx)
	if err != nil {
		return 0, err
	}
	now := s.now()
	expired := 0
	for i := range pending {
		if !pending[i].ExpiredAt(now) {
			continue
		}
		s.expire(ctx, &pending[i], now)
		if pending[i].Status == repository.StatusExpired {
			expired++
		}
	}
	return expired, nil
}
