package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"marketplace_backend/internal/events"
	"marketplace_backend/platform/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
)

type testSchedulerConfig struct {
	redisURL string
	interval time.Duration
}

func (c testSchedulerConfig) GetRedisURL() string                         { return c.redisURL }
func (c testSchedulerConfig) IsRedisEnabled() bool                        { return c.redisURL != "" }
func (c testSchedulerConfig) GetSchedulerQueue() string                   { return "" }
func (c testSchedulerConfig) GetSchedulerConcurrency() int                { return 1 }
func (c testSchedulerConfig) GetQuoteExpirySweepInterval() time.Duration { return c.interval }

type testExpirer struct {
	calls int
	err   error
}

func (e *testExpirer) ExpireDue(context.Context) (int, error) {
	e.calls++
	return 2, e.err
}

type recordingEnqueuer struct {
	windows []time.Time
}

func (r *recordingEnqueuer) EnqueueExpireDueQuotes(_ context.Context, window time.Time) error {
	r.windows = append(r.windows, window)
	return nil
}

func TestExpireDueTaskRunsSweep(t *testing.T) {
	expirer := &testExpirer{}
	w := newHandlers(nil, expirer, logger.Nop())

	if err := w.mux.ProcessTask(context.Background(), NewExpireDueQuotesTask()); err != nil {
		t.Fatalf("process: %v", err)
	}
	if expirer.calls != 1 {
		t.Fatalf("expected one sweep, got %d", expirer.calls)
	}

	expirer.err = errors.New("store down")
	if err := w.mux.ProcessTask(context.Background(), NewExpireDueQuotesTask()); err == nil {
		t.Fatal("expected sweep failure to surface for retry")
	}
}

func TestEmailRetryTaskPublishesEvent(t *testing.T) {
	bus := events.NewInMemoryBus(logger.Nop())
	var got string
	bus.Subscribe(events.NotificationEmailRetryDue{}.EventName(), events.HandlerFunc(func(_ context.Context, event events.Event) error {
		got = event.(events.NotificationEmailRetryDue).NotificationID
		return nil
	}))
	w := newHandlers(bus, nil, logger.Nop())

	task, err := NewNotificationEmailRetryTask(NotificationEmailRetryPayload{NotificationID: "n-1"})
	if err != nil {
		t.Fatalf("task: %v", err)
	}
	if err := w.mux.ProcessTask(context.Background(), task); err != nil {
		t.Fatalf("process: %v", err)
	}
	if got != "n-1" {
		t.Fatalf("expected retry event for n-1, got %q", got)
	}

	broken := asynq.NewTask(TaskNotificationEmailRetry, []byte("{"))
	if err := w.mux.ProcessTask(context.Background(), broken); !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("malformed payload should not be retried, got %v", err)
	}
}

func TestSweeperTicksOnWindowBoundaries(t *testing.T) {
	enqueuer := &recordingEnqueuer{}
	s := NewQuoteExpirySweeper(testSchedulerConfig{interval: 15 * time.Minute}, enqueuer, logger.Nop())

	s.Tick(context.Background(), time.Date(2026, 5, 1, 10, 7, 0, 0, time.UTC))
	s.Tick(context.Background(), time.Date(2026, 5, 1, 10, 14, 59, 0, time.UTC))

	want := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	if len(enqueuer.windows) != 2 || !enqueuer.windows[0].Equal(want) || !enqueuer.windows[1].Equal(want) {
		t.Fatalf("expected both ticks in the %s window, got %v", want, enqueuer.windows)
	}
}

func TestClientSchedulesEmailRetry(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := NewClient(testSchedulerConfig{redisURL: "redis://" + mr.Addr()})
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	defer client.Close()

	runAt := time.Now().Add(5 * time.Minute)
	if err := client.ScheduleEmailRetry(context.Background(), "n-1", runAt); err != nil {
		t.Fatalf("schedule: %v", err)
	}

	members, err := mr.ZMembers("asynq:{default}:scheduled")
	if err != nil {
		t.Fatalf("scheduled set: %v", err)
	}
	if len(members) != 1 {
		t.Fatalf("expected one scheduled task, got %d", len(members))
	}
}

func TestNewClientRequiresRedis(t *testing.T) {
	if _, err := NewClient(testSchedulerConfig{}); err == nil {
		t.Fatal("expected an error without a redis url")
	}
}
