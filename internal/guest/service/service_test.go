package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"marketplace_backend/internal/docstore/memstore"
	"marketplace_backend/internal/guest/repository"
	jobdomain "marketplace_backend/internal/jobs/domain"
	jobrepo "marketplace_backend/internal/jobs/repository"
	jobsvc "marketplace_backend/internal/jobs/service"
	"marketplace_backend/internal/jobs/transport"
	"marketplace_backend/platform/httpkit"
	"marketplace_backend/platform/logger"
)

type testMarketplaceConfig struct{}

func (testMarketplaceConfig) GetQuoteDefaultMax() int          { return 5 }
func (testMarketplaceConfig) GetQuoteValidity() time.Duration { return 24 * time.Hour }

type fixture struct {
	guests *Service
	jobs   *jobsvc.Service
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	store := memstore.New()
	log := logger.Nop()
	guests := New(repository.New(store), 30*24*time.Hour, log)
	jobs := jobsvc.New(jobrepo.New(store), testMarketplaceConfig{}, log)
	jobs.SetGuestSessions(guests)
	guests.SetJobLinker(jobs)
	return fixture{guests: guests, jobs: jobs}
}

func (f fixture) guestDraft(t *testing.T, token string, req transport.CreateJobRequest) (*jobdomain.Job, string) {
	t.Helper()
	res, err := f.jobs.CreateDraft(context.Background(), httpkit.Actor{}, token, req)
	if err != nil {
		t.Fatalf("create guest draft: %v", err)
	}
	if res.IssuedToken != "" {
		token = res.IssuedToken
	}
	return res.Job, token
}

func completePlumbing(email string) transport.CreateJobRequest {
	return transport.CreateJobRequest{
		Category:     "plumbing",
		Title:        "Leaking tap!",
		Description:  strings.Repeat("x", 35),
		Postcode:     "101",
		ContactEmail: email,
	}
}

func TestIssueAndResolve(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	token, hash, err := f.guests.Issue(ctx)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if hash != HashToken(token) || strings.Contains(hash, token) {
		t.Fatal("only the token hash may be stored")
	}
	got, ok, err := f.guests.Resolve(ctx, token)
	if err != nil || !ok || got != hash {
		t.Fatalf("resolve: %q %v %v", got, ok, err)
	}
	if _, ok, _ := f.guests.Resolve(ctx, "forged"); ok {
		t.Fatal("unknown token must not resolve")
	}
}

func TestResolveExpiredSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	token, _, err := f.guests.Issue(ctx)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	f.guests.now = func() time.Time { return time.Now().UTC().Add(31 * 24 * time.Hour) }
	if _, ok, _ := f.guests.Resolve(ctx, token); ok {
		t.Fatal("idle session past max age must not resolve")
	}
}

func TestLinkDraftsByEmailPromotesCompleteDrafts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	draft, _ := f.guestDraft(t, "", completePlumbing("x@y.is"))

	res, err := f.guests.LinkDraftsToAccount(ctx, LinkRequest{ContactEmail: "X@Y.is"}, "acct-1")
	if err != nil {
		t.Fatalf("link: %v", err)
	}
	if res.Linked != 1 || len(res.Promoted) != 1 || res.Promoted[0] != draft.ID {
		t.Fatalf("unexpected result %+v", res)
	}

	job, err := f.jobs.Lookup(ctx, draft.ID)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if job.OwnerID() != "acct-1" || job.Status != jobdomain.StatusOpen || job.GuestTokenHash != nil {
		t.Fatalf("unexpected linked job %+v", job)
	}
}

func TestLinkDraftsTwiceIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, token := f.guestDraft(t, "", transport.CreateJobRequest{Category: "painting"})
	f.guestDraft(t, token, transport.CreateJobRequest{Category: "cleaning"})
	f.guestDraft(t, token, completePlumbing(""))

	first, err := f.guests.LinkDraftsToAccount(ctx, LinkRequest{GuestToken: token}, "acct-1")
	if err != nil {
		t.Fatalf("first link: %v", err)
	}
	if first.Linked != 3 || len(first.Promoted) != 1 {
		t.Fatalf("expected 3 linked and 1 promoted, got %+v", first)
	}

	second, err := f.guests.LinkDraftsToAccount(ctx, LinkRequest{GuestToken: token}, "acct-1")
	if err != nil {
		t.Fatalf("second link: %v", err)
	}
	if second.Linked != 0 {
		t.Fatalf("second link must be a no-op, got %+v", second)
	}

	if _, ok, _ := f.guests.Resolve(ctx, token); ok {
		t.Fatal("session must be destroyed after linking")
	}
	session, err := f.guests.repo.Get(ctx, HashToken(token))
	if err != nil || session != nil {
		t.Fatalf("expected deleted session, got %+v %v", session, err)
	}
}

func TestConcurrentLinkCountsEachJobOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, token := f.guestDraft(t, "", completePlumbing("x@y.is"))
	for i := 0; i < 4; i++ {
		f.guestDraft(t, token, completePlumbing("x@y.is"))
	}

	var wg sync.WaitGroup
	results := make([]*LinkResult, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := f.guests.LinkDraftsToAccount(ctx, LinkRequest{GuestToken: token, ContactEmail: "x@y.is"}, "acct-1")
			if err != nil {
				t.Errorf("link %d: %v", i, err)
				return
			}
			results[i] = res
		}(i)
	}
	wg.Wait()

	total := 0
	seen := make(map[string]bool)
	for _, res := range results {
		if res == nil {
			continue
		}
		total += res.Linked
		for _, id := range res.JobIDs {
			if seen[id] {
				t.Fatalf("job %s linked twice", id)
			}
			seen[id] = true
		}
	}
	if total != 5 {
		t.Fatalf("expected 5 links in total, got %d", total)
	}
}

func TestLinkLeavesOtherOwnersUntouched(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	owned, err := f.jobs.CreateDraft(ctx, httpkit.Actor{ID: "acct-2", Role: httpkit.RoleCustomer}, "", completePlumbing("x@y.is"))
	if err != nil {
		t.Fatalf("create owned draft: %v", err)
	}

	res, err := f.guests.LinkDraftsToAccount(ctx, LinkRequest{ContactEmail: "x@y.is"}, "acct-1")
	if err != nil {
		t.Fatalf("link: %v", err)
	}
	if res.Linked != 0 {
		t.Fatalf("expected nothing linked, got %+v", res)
	}
	job, _ := f.jobs.Lookup(ctx, owned.Job.ID)
	if job.OwnerID() != "acct-2" || job.Status != jobdomain.StatusDraft {
		t.Fatalf("foreign job changed: %+v", job)
	}
}

func TestLinkWithoutIdentityIsEmpty(t *testing.T) {
	f := newFixture(t)
	res, err := f.guests.LinkDraftsToAccount(context.Background(), LinkRequest{}, "acct-1")
	if err != nil || res.Linked != 0 || len(res.JobIDs) != 0 {
		t.Fatalf("expected empty result, got %+v %v", res, err)
	}
}
