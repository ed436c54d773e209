package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"marketplace_backend/internal/docstore"
	"marketplace_backend/internal/docstore/memstore"
	"marketplace_backend/internal/events"
	jobdomain "marketplace_backend/internal/jobs/domain"
	jobrepo "marketplace_backend/internal/jobs/repository"
	jobsvc "marketplace_backend/internal/jobs/service"
	jobtransport "marketplace_backend/internal/jobs/transport"
	"marketplace_backend/internal/quotes/repository"
	"marketplace_backend/internal/quotes/transport"
	"marketplace_backend/platform/apperr"
	"marketplace_backend/platform/httpkit"
	"marketplace_backend/platform/logger"
)

type testMarketplaceConfig struct{}

func (testMarketplaceConfig) GetQuoteDefaultMax() int          { return 10 }
func (testMarketplaceConfig) GetQuoteValidity() time.Duration { return 48 * time.Hour }

var (
	owner = httpkit.Actor{ID: "cust-1", Role: httpkit.RoleCustomer}
	proA  = httpkit.Actor{ID: "pro-a", Role: httpkit.RoleProfessional}
	proB  = httpkit.Actor{ID: "pro-b", Role: httpkit.RoleProfessional}
	proC  = httpkit.Actor{ID: "pro-c", Role: httpkit.RoleProfessional}
)

type fixture struct {
	quotes *Service
	jobs   *jobsvc.Service
	bus    *events.InMemoryBus
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	store := memstore.New()
	log := logger.Nop()
	bus := events.NewInMemoryBus(log)
	jobs := jobsvc.New(jobrepo.New(store), testMarketplaceConfig{}, log)
	jobs.SetEventBus(bus)
	quotes := New(repository.New(store), jobs, testMarketplaceConfig{}, log)
	quotes.SetEventBus(bus)
	jobs.SetPendingQuoteCounter(quotes)
	return fixture{quotes: quotes, jobs: jobs, bus: bus}
}

func (f fixture) openJob(t *testing.T) *jobdomain.Job {
	t.Helper()
	ctx := context.Background()
	created, err := f.jobs.CreateDraft(ctx, owner, "", jobtransport.CreateJobRequest{
		Category:    "plumbing",
		Title:       "Replace bathroom sink",
		Description: strings.Repeat("the old sink is cracked ", 2),
		Postcode:    "101",
	})
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	job, err := f.jobs.Submit(ctx, jobdomain.Principal{Actor: owner}, created.Job.ID)
	if err != nil {
		t.Fatalf("submit job: %v", err)
	}
	return job
}

func (f fixture) submit(t *testing.T, pro httpkit.Actor, jobID string, price int64) *repository.Quote {
	t.Helper()
	quote, err := f.quotes.SubmitQuote(context.Background(), pro, jobID, transport.SubmitQuoteRequest{
		PriceCents:  price,
		Timeline:    "next week",
		Description: "parts and labour",
	})
	if err != nil {
		t.Fatalf("submit quote for %s: %v", pro.ID, err)
	}
	return quote
}

func (f fixture) assertCounts(t *testing.T, jobID string) {
	t.Helper()
	ctx := context.Background()
	job, err := f.jobs.Lookup(ctx, jobID)
	if err != nil {
		t.Fatalf("lookup job: %v", err)
	}
	all, err := f.quotes.repo.ListForJob(ctx, jobID)
	if err != nil {
		t.Fatalf("list quotes: %v", err)
	}
	counted := 0
	for i := range all {
		if all[i].CountsAgainstJob() {
			counted++
		}
	}
	if job.QuotesCount != counted {
		t.Fatalf("quotesCount %d does not match %d non-withdrawn quotes", job.QuotesCount, counted)
	}
}

func statusCounts(t *testing.T, f fixture, jobID string) map[repository.Status]int {
	t.Helper()
	all, err := f.quotes.repo.ListForJob(context.Background(), jobID)
	if err != nil {
		t.Fatalf("list quotes: %v", err)
	}
	counts := make(map[repository.Status]int)
	for _, q := range all {
		counts[q.Status]++
	}
	return counts
}

func TestSubmitAndAcceptScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	job := f.openJob(t)

	quote := f.submit(t, proA, job.ID, 100)
	got, _ := f.jobs.Lookup(ctx, job.ID)
	if got.Status != jobdomain.StatusQuoted || got.QuotesCount != 1 {
		t.Fatalf("expected quoted job with one quote, got %s/%d", got.Status, got.QuotesCount)
	}
	if !quote.ExpiresAt.Equal(quote.CreatedAt.Add(48 * time.Hour)) {
		t.Fatalf("unexpected expiry %v", quote.ExpiresAt)
	}

	accepted, err := f.quotes.AcceptQuote(ctx, jobdomain.Principal{Actor: owner}, job.ID, quote.ID)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if accepted.Status != repository.StatusAccepted {
		t.Fatalf("expected accepted quote, got %s", accepted.Status)
	}
	got, _ = f.jobs.Lookup(ctx, job.ID)
	if got.Status != jobdomain.StatusAccepted || got.AssignedID() != proA.ID || got.AcceptedQuoteID == nil || *got.AcceptedQuoteID != quote.ID {
		t.Fatalf("unexpected accepted job %+v", got)
	}

	_, err = f.quotes.SubmitQuote(ctx, proB, job.ID, transport.SubmitQuoteRequest{PriceCents: 90, Description: "cheaper"})
	if !apperr.Is(err, apperr.KindInvalidTransition) {
		t.Fatalf("expected InvalidTransition after accept, got %v", err)
	}
	f.assertCounts(t, job.ID)
}

func TestAcceptSweepsLosers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	job := f.openJob(t)

	a := f.submit(t, proA, job.ID, 100)
	f.submit(t, proB, job.ID, 120)
	c := f.submit(t, proC, job.ID, 150)
	if _, err := f.quotes.WithdrawQuote(ctx, proC, c.ID); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	f.assertCounts(t, job.ID)

	if _, err := f.quotes.AcceptQuote(ctx, jobdomain.Principal{Actor: owner}, job.ID, a.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}
	counts := statusCounts(t, f, job.ID)
	if counts[repository.StatusAccepted] != 1 || counts[repository.StatusPending] != 0 || counts[repository.StatusRejected] != 1 {
		t.Fatalf("unexpected quote states %v", counts)
	}
	f.assertCounts(t, job.ID)
}

func TestConcurrentAcceptHasOneWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	job := f.openJob(t)

	quotes := []*repository.Quote{
		f.submit(t, proA, job.ID, 100),
		f.submit(t, proB, job.ID, 110),
		f.submit(t, proC, job.ID, 120),
	}

	var wg sync.WaitGroup
	errs := make([]error, len(quotes))
	for i, q := range quotes {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_, errs[i] = f.quotes.AcceptQuote(ctx, jobdomain.Principal{Actor: owner}, job.ID, id)
		}(i, q.ID)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		if !apperr.Is(err, apperr.KindInvalidTransition) {
			t.Fatalf("loser must see InvalidTransition, got %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("expected one winner, got %d", wins)
	}

	counts := statusCounts(t, f, job.ID)
	if counts[repository.StatusAccepted] != 1 || counts[repository.StatusPending] != 0 {
		t.Fatalf("expected exactly one accepted and no pending quote, got %v", counts)
	}
	got, _ := f.jobs.Lookup(ctx, job.ID)
	if err := jobdomain.CheckInvariants(got); err != nil {
		t.Fatalf("job invariants: %v", err)
	}
}

func TestOnePendingQuotePerProfessional(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	job := f.openJob(t)

	first := f.submit(t, proA, job.ID, 100)
	_, err := f.quotes.SubmitQuote(ctx, proA, job.ID, transport.SubmitQuoteRequest{PriceCents: 80, Description: "again"})
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected Conflict for a second pending quote, got %v", err)
	}

	updated, err := f.quotes.UpdateQuote(ctx, proA, first.ID, transport.UpdateQuoteRequest{PriceCents: ptr(int64(80))})
	if err != nil || updated.PriceCents != 80 {
		t.Fatalf("update instead: %v", err)
	}

	if _, err := f.quotes.WithdrawQuote(ctx, proA, first.ID); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	got, _ := f.jobs.Lookup(ctx, job.ID)
	if got.Status != jobdomain.StatusOpen || got.QuotesCount != 0 {
		t.Fatalf("withdrawing the only quote must reopen the job, got %s/%d", got.Status, got.QuotesCount)
	}

	f.submit(t, proA, job.ID, 95)
	f.assertCounts(t, job.ID)
}

func TestQuoteRights(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	job := f.openJob(t)
	quote := f.submit(t, proA, job.ID, 100)

	if _, err := f.quotes.SubmitQuote(ctx, owner, job.ID, transport.SubmitQuoteRequest{PriceCents: 1, Description: "x"}); !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("customers must not quote, got %v", err)
	}
	if _, err := f.quotes.AcceptQuote(ctx, jobdomain.Principal{Actor: proB}, job.ID, quote.ID); !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("only the owner may accept, got %v", err)
	}
	if _, err := f.quotes.WithdrawQuote(ctx, proB, quote.ID); !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("only the author may withdraw, got %v", err)
	}
	if _, err := f.quotes.AcceptQuote(ctx, jobdomain.Principal{Actor: owner}, "other-job", quote.ID); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("quote of another job must be NotFound, got %v", err)
	}

	f.submit(t, proB, job.ID, 110)
	visible, err := f.quotes.ListForJob(ctx, jobdomain.Principal{Actor: proB}, job.ID)
	if err != nil || len(visible) != 1 || visible[0].ProfessionalID != proB.ID {
		t.Fatalf("a professional sees only their own quotes, got %d %v", len(visible), err)
	}
	all, err := f.quotes.ListForJob(ctx, jobdomain.Principal{Actor: owner}, job.ID)
	if err != nil || len(all) != 2 {
		t.Fatalf("the owner sees every quote, got %d %v", len(all), err)
	}
}

func TestRejectQuote(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	job := f.openJob(t)
	quote := f.submit(t, proA, job.ID, 100)

	rejected, err := f.quotes.RejectQuote(ctx, jobdomain.Principal{Actor: owner}, job.ID, quote.ID, "too expensive")
	if err != nil || rejected.Status != repository.StatusRejected {
		t.Fatalf("reject: %v", err)
	}
	if _, err := f.quotes.RejectQuote(ctx, jobdomain.Principal{Actor: owner}, job.ID, quote.ID, ""); !apperr.Is(err, apperr.KindInvalidTransition) {
		t.Fatalf("second reject must be InvalidTransition, got %v", err)
	}
	f.assertCounts(t, job.ID)

	quoted, err := f.quotes.HasQuoted(ctx, job.ID, proA.ID)
	if err != nil || !quoted {
		t.Fatalf("a rejected quote still counts as quoted: %v %v", quoted, err)
	}
}

func TestLazyExpiryKeepsSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	job := f.openJob(t)
	quote := f.submit(t, proA, job.ID, 100)

	later := time.Now().UTC().Add(72 * time.Hour)
	f.quotes.now = func() time.Time { return later }

	listed, err := f.quotes.ListForJob(ctx, jobdomain.Principal{Actor: owner}, job.ID)
	if err != nil || len(listed) != 1 || listed[0].Status != repository.StatusExpired {
		t.Fatalf("expected lazily expired quote, got %+v %v", listed, err)
	}
	stored, _ := f.quotes.repo.GetByID(ctx, quote.ID)
	if stored.Status != repository.StatusExpired {
		t.Fatalf("expiry must be persisted, got %s", stored.Status)
	}
	pending, _ := f.quotes.CountPending(ctx, job.ID)
	if pending != 0 {
		t.Fatalf("expected no pending quotes, got %d", pending)
	}
	got, _ := f.jobs.Lookup(ctx, job.ID)
	if got.QuotesCount != 1 {
		t.Fatalf("expired quotes keep their slot, got quotesCount %d", got.QuotesCount)
	}

	if _, err := f.quotes.AcceptQuote(ctx, jobdomain.Principal{Actor: owner}, job.ID, quote.ID); !apperr.Is(err, apperr.KindInvalidTransition) {
		t.Fatalf("expired quote cannot be accepted, got %v", err)
	}
	if _, err := f.quotes.SubmitQuote(ctx, proA, job.ID, transport.SubmitQuoteRequest{PriceCents: 100, Description: "fresh"}); err != nil {
		t.Fatalf("an expired quote must not block a new one: %v", err)
	}
}

func TestExpireDue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	job := f.openJob(t)
	f.submit(t, proA, job.ID, 100)
	f.submit(t, proB, job.ID, 100)

	if n, err := f.quotes.ExpireDue(ctx); err != nil || n != 0 {
		t.Fatalf("nothing is due yet: %d %v", n, err)
	}
	f.quotes.now = func() time.Time { return time.Now().UTC().Add(49 * time.Hour) }
	if n, err := f.quotes.ExpireDue(ctx); err != nil || n != 2 {
		t.Fatalf("expected two expiries, got %d %v", n, err)
	}
}

func TestCancelledJobDeclinesPendingQuotes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.bus.Subscribe(events.JobCancelled{}.EventName(), events.HandlerFunc(func(ctx context.Context, e events.Event) error {
		return f.quotes.RejectPendingForJob(ctx, e.(events.JobCancelled).JobID)
	}))
	job := f.openJob(t)
	f.submit(t, proA, job.ID, 100)
	f.submit(t, proB, job.ID, 100)

	if _, err := f.jobs.Transition(ctx, jobdomain.Principal{Actor: owner}, job.ID, "cancelled", "no longer needed"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	f.bus.Wait()

	counts := statusCounts(t, f, job.ID)
	if counts[repository.StatusRejected] != 2 || counts[repository.StatusPending] != 0 {
		t.Fatalf("expected both quotes declined, got %v", counts)
	}
}

func TestReconcileRevertsOrphanedAccept(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	job := f.openJob(t)
	quote := f.submit(t, proA, job.ID, 100)

	// an accept that stopped after its first write
	if _, err := f.quotes.repo.UpdateIfStatus(ctx, quote.ID, repository.StatusPending, docstore.Patch{
		repository.FieldStatus: repository.StatusAccepted,
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	f.quotes.now = func() time.Time { return time.Now().UTC().Add(5 * time.Minute) }

	listed, err := f.quotes.ListForJob(ctx, jobdomain.Principal{Actor: owner}, job.ID)
	if err != nil || len(listed) != 1 || listed[0].Status != repository.StatusPending {
		t.Fatalf("expected the orphaned accept to revert to pending, got %+v %v", listed, err)
	}
}

func TestDeleteBlockedByPendingQuotes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	job := f.openJob(t)
	f.submit(t, proA, job.ID, 100)

	if err := f.jobs.Delete(ctx, jobdomain.Principal{Actor: owner}, job.ID); !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("expected Forbidden while quotes are pending, got %v", err)
	}
}

func ptr[T any](v T) *T { return &v }

type singleGuest struct{}

func (singleGuest) Issue(context.Context) (string, string, error) { return "tok", "hash-1", nil }
func (singleGuest) Resolve(_ context.Context, token string) (string, bool, error) {
	return "hash-1", token == "tok", nil
}
func (singleGuest) AttachDraft(context.Context, string, string) error { return nil }

func TestQuoteOnGuestJobCarriesContactEmail(t *testing.T) {
	f := newFixture(t)
	f.jobs.SetGuestSessions(singleGuest{})
	ctx := context.Background()

	var mu sync.Mutex
	var created []events.QuoteCreated
	f.bus.Subscribe(events.QuoteCreated{}.EventName(), events.HandlerFunc(func(_ context.Context, e events.Event) error {
		mu.Lock()
		defer mu.Unlock()
		created = append(created, e.(events.QuoteCreated))
		return nil
	}))

	draft, err := f.jobs.CreateDraft(ctx, httpkit.Actor{}, "", jobtransport.CreateJobRequest{
		Category:     "plumbing",
		Title:        "Replace bathroom sink",
		Description:  strings.Repeat("the old sink is cracked ", 2),
		Postcode:     "101",
		ContactEmail: "X@Y.is",
	})
	if err != nil {
		t.Fatalf("create guest draft: %v", err)
	}
	if _, err := f.jobs.Submit(ctx, jobdomain.Principal{GuestTokenHash: "hash-1"}, draft.Job.ID); err != nil {
		t.Fatalf("guest submit: %v", err)
	}
	f.submit(t, proA, draft.Job.ID, 9000)
	f.bus.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(created) != 1 || created[0].OwnerID != "" || created[0].ContactEmail != "x@y.is" {
		t.Fatalf("expected the guest contact email on the quote event, got %+v", created)
	}
}
