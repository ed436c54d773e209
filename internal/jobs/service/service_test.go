package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"marketplace_backend/internal/docstore/memstore"
	"marketplace_backend/internal/events"
	"marketplace_backend/internal/jobs/domain"
	"marketplace_backend/internal/jobs/repository"
	"marketplace_backend/internal/jobs/transport"
	"marketplace_backend/platform/apperr"
	"marketplace_backend/platform/httpkit"
	"marketplace_backend/platform/logger"
)

type testConfig struct{}

func (testConfig) GetQuoteDefaultMax() int          { return 10 }
func (testConfig) GetQuoteValidity() time.Duration { return 7 * 24 * time.Hour }

type captureBus struct {
	mu     sync.Mutex
	events []events.Event
}

func (b *captureBus) Publish(_ context.Context, event events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
}

func (b *captureBus) PublishSync(ctx context.Context, event events.Event) error {
	b.Publish(ctx, event)
	return nil
}

func (b *captureBus) Subscribe(string, events.Handler) {}

func (b *captureBus) count(name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, e := range b.events {
		if e.EventName() == name {
			n++
		}
	}
	return n
}

type fakeGuests struct {
	mu       sync.Mutex
	sessions map[string][]string
	issued   int
}

func newFakeGuests() *fakeGuests {
	return &fakeGuests{sessions: make(map[string][]string)}
}

func (g *fakeGuests) Issue(context.Context) (string, string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.issued++
	token := "token-" + string(rune('a'+g.issued))
	g.sessions["hash-"+token] = nil
	return token, "hash-" + token, nil
}

func (g *fakeGuests) Resolve(_ context.Context, token string) (string, bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.sessions["hash-"+token]
	if !ok {
		return "", false, nil
	}
	return "hash-" + token, true, nil
}

func (g *fakeGuests) AttachDraft(_ context.Context, hash, jobID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sessions[hash] = append(g.sessions[hash], jobID)
	return nil
}

type fixedPending int

func (f fixedPending) CountPending(context.Context, string) (int, error) { return int(f), nil }

var (
	customer     = httpkit.Actor{ID: "cust-1", Role: httpkit.RoleCustomer, Email: "x@y.is"}
	otherCust    = httpkit.Actor{ID: "cust-2", Role: httpkit.RoleCustomer}
	professional = httpkit.Actor{ID: "pro-1", Role: httpkit.RoleProfessional}
	rival        = httpkit.Actor{ID: "pro-2", Role: httpkit.RoleProfessional}
	adminActor   = httpkit.Actor{ID: "adm-1", Role: httpkit.RoleAdmin}
)

func newTestService(t *testing.T) (*Service, *captureBus, *fakeGuests) {
	t.Helper()
	svc := New(repository.New(memstore.New()), testConfig{}, logger.Nop())
	bus := &captureBus{}
	guests := newFakeGuests()
	svc.SetEventBus(bus)
	svc.SetGuestSessions(guests)
	return svc, bus, guests
}

func ptr[T any](v T) *T { return &v }

func createOpenJob(t *testing.T, svc *Service) *domain.Job {
	t.Helper()
	ctx := context.Background()
	created, err := svc.CreateDraft(ctx, customer, "", transport.CreateJobRequest{
		Category:    "plumbing",
		Title:       "Leaking kitchen tap",
		Description: strings.Repeat("water everywhere ", 3),
		Postcode:    "101",
	})
	if err != nil {
		t.Fatalf("create draft: %v", err)
	}
	job, err := svc.Submit(ctx, domain.Principal{Actor: customer}, created.Job.ID)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	return job
}

func TestSubmitRequiresTitleThenOpens(t *testing.T) {
	svc, bus, _ := newTestService(t)
	ctx := context.Background()
	owner := domain.Principal{Actor: customer}

	created, err := svc.CreateDraft(ctx, customer, "", transport.CreateJobRequest{Category: "plumbing"})
	if err != nil {
		t.Fatalf("create draft: %v", err)
	}
	if created.Job.Status != domain.StatusDraft || created.Job.MaxQuotes != 10 {
		t.Fatalf("unexpected draft %+v", created.Job)
	}
	if created.IssuedToken != "" {
		t.Fatal("customers must not receive a guest token")
	}

	_, err = svc.Submit(ctx, owner, created.Job.ID)
	if !apperr.Is(err, apperr.KindValidation) || apperr.Field(err) != "title" {
		t.Fatalf("expected ValidationFailed(title), got %v", err)
	}

	_, err = svc.PatchDraft(ctx, owner, created.Job.ID, transport.PatchDraftRequest{
		Title:       ptr("Leaking tap!"),
		Description: ptr(strings.Repeat("x", 35)),
		Postcode:    ptr("101"),
	})
	if err != nil {
		t.Fatalf("patch draft: %v", err)
	}

	job, err := svc.Submit(ctx, owner, created.Job.ID)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if job.Status != domain.StatusOpen || job.PostedAt == nil {
		t.Fatalf("expected open job with postedAt, got %+v", job)
	}
	if bus.count("jobs.job.submitted") != 1 || bus.count("jobs.job.created") != 1 {
		t.Fatalf("unexpected events %+v", bus.events)
	}

	if _, err := svc.Submit(ctx, owner, created.Job.ID); !apperr.Is(err, apperr.KindInvalidTransition) {
		t.Fatalf("expected second submit to be InvalidTransition, got %v", err)
	}
}

func TestCreateDraftGuestFlow(t *testing.T) {
	svc, _, guests := newTestService(t)
	ctx := context.Background()

	first, err := svc.CreateDraft(ctx, httpkit.Actor{}, "", transport.CreateJobRequest{Category: "painting", ContactEmail: " X@Y.is ", ContactPhone: "581 2345"})
	if err != nil {
		t.Fatalf("create guest draft: %v", err)
	}
	if first.IssuedToken == "" || first.Job.GuestTokenHash == nil || first.Job.CustomerID != nil {
		t.Fatalf("expected guest-owned draft with issued token, got %+v", first)
	}
	if first.Job.ContactEmail != "x@y.is" || first.Job.ContactPhone != "+3545812345" {
		t.Fatalf("expected normalised contact details, got %q %q", first.Job.ContactEmail, first.Job.ContactPhone)
	}

	second, err := svc.CreateDraft(ctx, httpkit.Actor{}, first.IssuedToken, transport.CreateJobRequest{Category: "cleaning"})
	if err != nil {
		t.Fatalf("create second guest draft: %v", err)
	}
	if second.IssuedToken != "" || *second.Job.GuestTokenHash != *first.Job.GuestTokenHash {
		t.Fatal("a live guest token must be reused")
	}
	if len(guests.sessions[*first.Job.GuestTokenHash]) != 2 {
		t.Fatalf("expected both drafts on the session, got %v", guests.sessions)
	}

	guestOwner, err := svc.PrincipalFor(ctx, httpkit.Actor{}, first.IssuedToken)
	if err != nil {
		t.Fatalf("principal: %v", err)
	}
	if _, err := svc.PatchDraft(ctx, guestOwner, first.Job.ID, transport.PatchDraftRequest{Title: ptr("Paint the fence")}); err != nil {
		t.Fatalf("guest patch: %v", err)
	}

	stranger, _ := svc.PrincipalFor(ctx, httpkit.Actor{}, "unknown")
	if _, err := svc.PatchDraft(ctx, stranger, first.Job.ID, transport.PatchDraftRequest{Title: ptr("Hijacked title")}); !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("expected Forbidden for another guest, got %v", err)
	}
}

func TestCreateDraftRejects(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.CreateDraft(ctx, professional, "", transport.CreateJobRequest{Category: "plumbing"}); !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("expected professionals to be forbidden, got %v", err)
	}
	_, err := svc.CreateDraft(ctx, customer, "", transport.CreateJobRequest{Category: "alchemy"})
	if apperr.Field(err) != "category" {
		t.Fatalf("expected category validation error, got %v", err)
	}
	_, err = svc.CreateDraft(ctx, customer, "", transport.CreateJobRequest{Category: "plumbing", ContactPhone: "12"})
	if apperr.Field(err) != "contactPhone" {
		t.Fatalf("expected phone validation error, got %v", err)
	}
}

func TestReserveQuoteSlotNeverExceedsMax(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.CreateDraft(ctx, customer, "", transport.CreateJobRequest{
		Category:    "roofing",
		Title:       "Fix the roof please",
		Description: strings.Repeat("r", 40),
		Postcode:    "220",
		MaxQuotes:   3,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Submit(ctx, domain.Principal{Actor: customer}, created.Job.ID); err != nil {
		t.Fatalf("submit: %v", err)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.ReserveQuoteSlot(ctx, created.Job.ID); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	job, err := svc.Lookup(ctx, created.Job.ID)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if job.QuotesCount != successes || job.QuotesCount > job.MaxQuotes {
		t.Fatalf("quotesCount %d, successes %d, max %d", job.QuotesCount, successes, job.MaxQuotes)
	}
	if job.Status != domain.StatusQuoted {
		t.Fatalf("expected quoted, got %s", job.Status)
	}
	for job.QuotesCount < job.MaxQuotes {
		if job, err = svc.ReserveQuoteSlot(ctx, created.Job.ID); err != nil {
			t.Fatalf("reserve remaining slot: %v", err)
		}
	}
	if _, err := svc.ReserveQuoteSlot(ctx, created.Job.ID); apperr.Field(err) != "quotesCount" {
		t.Fatalf("expected quota error once full, got %v", err)
	}
}

func TestReleaseQuoteSlotReopensLastQuote(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	job := createOpenJob(t, svc)

	if _, err := svc.ReserveQuoteSlot(ctx, job.ID); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := svc.ReleaseQuoteSlot(ctx, job.ID); err != nil {
		t.Fatalf("release: %v", err)
	}
	got, _ := svc.Lookup(ctx, job.ID)
	if got.Status != domain.StatusOpen || got.QuotesCount != 0 {
		t.Fatalf("expected reopened job, got %s/%d", got.Status, got.QuotesCount)
	}
}

func TestMarkAcceptedSingleWinner(t *testing.T) {
	svc, bus, _ := newTestService(t)
	ctx := context.Background()
	job := createOpenJob(t, svc)
	owner := domain.Principal{Actor: customer}

	var wg sync.WaitGroup
	results := make([]error, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = svc.MarkAccepted(ctx, owner, job.ID, "quote-"+string(rune('a'+i)), "pro-1")
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range results {
		switch {
		case err == nil:
			wins++
		case apperr.Is(err, apperr.KindInvalidTransition):
		default:
			t.Fatalf("unexpected error %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins)
	}
	if bus.count("jobs.job.accepted") != 1 {
		t.Fatalf("expected one JobAccepted event, got %d", bus.count("jobs.job.accepted"))
	}

	if _, err := svc.MarkAccepted(ctx, domain.Principal{Actor: otherCust}, job.ID, "q", "pro-2"); !apperr.Is(err, apperr.KindInvalidTransition) {
		t.Fatalf("expected InvalidTransition on accepted job, got %v", err)
	}
}

func TestTransitionLifecycle(t *testing.T) {
	svc, bus, _ := newTestService(t)
	ctx := context.Background()
	job := createOpenJob(t, svc)
	owner := domain.Principal{Actor: customer}
	assigned := domain.Principal{Actor: professional}

	if _, err := svc.Transition(ctx, owner, job.ID, "quoted", ""); !apperr.Is(err, apperr.KindInvalidTransition) {
		t.Fatalf("system-only transition must be rejected, got %v", err)
	}
	if _, err := svc.MarkAccepted(ctx, owner, job.ID, "quote-1", professional.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, err := svc.Transition(ctx, domain.Principal{Actor: rival}, job.ID, "in_progress", ""); !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("expected Forbidden for a non-assigned professional, got %v", err)
	}
	started, err := svc.Transition(ctx, assigned, job.ID, "in_progress", "")
	if err != nil || started.StartedAt == nil {
		t.Fatalf("start: %v", err)
	}
	completed, err := svc.Transition(ctx, domain.Principal{Actor: adminActor}, job.ID, "completed", "")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if err := domain.CheckInvariants(completed); err != nil {
		t.Fatalf("invariants after completion: %v", err)
	}
	if _, err := svc.Transition(ctx, owner, job.ID, "cancelled", ""); !apperr.Is(err, apperr.KindInvalidTransition) {
		t.Fatalf("terminal job must not cancel, got %v", err)
	}
	if bus.count("jobs.job.completed") != 1 {
		t.Fatal("expected JobCompleted event")
	}
}

func TestCancelClearsAssignment(t *testing.T) {
	svc, bus, _ := newTestService(t)
	ctx := context.Background()
	job := createOpenJob(t, svc)
	owner := domain.Principal{Actor: customer}

	if _, err := svc.MarkAccepted(ctx, owner, job.ID, "quote-1", professional.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}
	cancelled, err := svc.Transition(ctx, owner, job.ID, "cancelled", "changed my mind")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	stored, _ := svc.Lookup(ctx, job.ID)
	if stored.AssignedProfessionalID != nil || stored.CancelledAt == nil || stored.CancelReason != "changed my mind" {
		t.Fatalf("unexpected cancelled job %+v", stored)
	}
	if err := domain.CheckInvariants(cancelled); err != nil {
		t.Fatalf("invariants: %v", err)
	}

	bus.mu.Lock()
	defer bus.mu.Unlock()
	for _, e := range bus.events {
		if ev, ok := e.(events.JobCancelled); ok {
			if ev.ProfessionalID != professional.ID {
				t.Fatalf("expected prior assignee on event, got %q", ev.ProfessionalID)
			}
			return
		}
	}
	t.Fatal("expected JobCancelled event")
}

func TestGetCountsNonOwnerViews(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	job := createOpenJob(t, svc)

	if _, err := svc.Get(ctx, domain.Principal{Actor: customer}, job.ID); err != nil {
		t.Fatalf("owner get: %v", err)
	}
	viewed, err := svc.Get(ctx, domain.Principal{Actor: professional}, job.ID)
	if err != nil {
		t.Fatalf("professional get: %v", err)
	}
	if viewed.ViewCount != 1 {
		t.Fatalf("expected one view, got %d", viewed.ViewCount)
	}
	stored, _ := svc.Lookup(ctx, job.ID)
	if stored.ViewCount != 1 || !stored.UpdatedAt.Equal(job.UpdatedAt) {
		t.Fatalf("view count must not touch updatedAt: %+v", stored)
	}
}

func TestUpdateWhitelist(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	job := createOpenJob(t, svc)
	owner := domain.Principal{Actor: customer}

	updated, err := svc.Update(ctx, owner, job.ID, transport.UpdateJobRequest{Priority: ptr("urgent")})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Priority != domain.PriorityUrgent {
		t.Fatalf("expected urgent, got %s", updated.Priority)
	}
	if _, err := svc.Update(ctx, domain.Principal{Actor: professional}, job.ID, transport.UpdateJobRequest{Priority: ptr("low")}); !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("expected Forbidden, got %v", err)
	}
	if _, err := svc.Update(ctx, owner, job.ID, transport.UpdateJobRequest{Description: ptr("short")}); apperr.Field(err) != "description" {
		t.Fatalf("published job must stay valid, got %v", err)
	}
	cancelled, err := svc.Update(ctx, owner, job.ID, transport.UpdateJobRequest{Status: ptr("cancelled")})
	if err != nil || cancelled.Status != domain.StatusCancelled {
		t.Fatalf("expected status change through update, got %v", err)
	}
}

func TestDeleteRefusesPendingQuotes(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	job := createOpenJob(t, svc)
	owner := domain.Principal{Actor: customer}

	svc.SetPendingQuoteCounter(fixedPending(1))
	if err := svc.Delete(ctx, owner, job.ID); !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("expected Forbidden with pending quotes, got %v", err)
	}
	svc.SetPendingQuoteCounter(fixedPending(0))
	if err := svc.Delete(ctx, domain.Principal{Actor: otherCust}, job.ID); !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("expected Forbidden for stranger, got %v", err)
	}
	if err := svc.Delete(ctx, owner, job.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.Lookup(ctx, job.ID); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected NotFound after delete, got %v", err)
	}
}

func TestListScopes(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	createOpenJob(t, svc)
	if _, err := svc.CreateDraft(ctx, customer, "", transport.CreateJobRequest{Category: "moving"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	mine, err := svc.List(ctx, domain.Principal{Actor: customer}, transport.ListJobsRequest{})
	if err != nil || mine.Total != 2 {
		t.Fatalf("expected two own jobs, got %+v %v", mine, err)
	}
	market, err := svc.List(ctx, domain.Principal{Actor: professional}, transport.ListJobsRequest{})
	if err != nil || market.Total != 1 || market.Items[0].Status != domain.StatusOpen {
		t.Fatalf("expected only the open job in the marketplace, got %+v %v", market, err)
	}
	if _, err := svc.List(ctx, domain.Principal{Actor: customer}, transport.ListJobsRequest{Scope: "all"}); !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("expected Forbidden for non-admin all scope, got %v", err)
	}
	paged, err := svc.List(ctx, domain.Principal{Actor: adminActor}, transport.ListJobsRequest{PageSize: 1, Page: 2})
	if err != nil || len(paged.Items) != 1 || paged.TotalPages != 2 {
		t.Fatalf("unexpected admin page %+v %v", paged, err)
	}
}

func TestLinkToAccountIsCompareAndSet(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.CreateDraft(ctx, httpkit.Actor{}, "", transport.CreateJobRequest{
		Category:     "plumbing",
		Title:        "Blocked drain in bathroom",
		Description:  strings.Repeat("d", 40),
		Postcode:     "101",
		ContactEmail: "x@y.is",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	candidates, err := svc.FindLinkCandidates(ctx, *created.Job.GuestTokenHash, "X@y.is")
	if err != nil || len(candidates) != 1 {
		t.Fatalf("expected one deduplicated candidate, got %d %v", len(candidates), err)
	}
	ok, err := svc.LinkToAccount(ctx, candidates[0], "cust-1")
	if err != nil || !ok {
		t.Fatalf("first link: ok=%v err=%v", ok, err)
	}
	ok, err = svc.LinkToAccount(ctx, candidates[0], "cust-2")
	if err != nil || ok {
		t.Fatalf("second link must lose: ok=%v err=%v", ok, err)
	}

	promoted, err := svc.PromoteOnLink(ctx, created.Job.ID)
	if err != nil || !promoted {
		t.Fatalf("expected promotion: %v %v", promoted, err)
	}
	job, _ := svc.Lookup(ctx, created.Job.ID)
	if job.OwnerID() != "cust-1" || job.GuestTokenHash != nil || job.Status != domain.StatusOpen {
		t.Fatalf("unexpected linked job %+v", job)
	}
	if err := domain.CheckInvariants(job); err != nil {
		t.Fatalf("invariants: %v", err)
	}
}
