package scheduler

import (
	"context"
	"fmt"

	"marketplace_backend/internal/events"
	"marketplace_backend/platform/config"
	"marketplace_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// QuoteExpirer moves pending quotes past their expiry to expired.
type QuoteExpirer interface {
	ExpireDue(ctx context.Context) (int, error)
}

type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	quotes QuoteExpirer
	bus    events.Bus
	log    *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, bus events.Bus, quotes QuoteExpirer, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL)
	if err != nil {
		return nil, err
	}

	concurrency := cfg.GetSchedulerConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queueName(cfg): 1,
		},
	})

	w := newHandlers(bus, quotes, log)
	w.server = server
	return w, nil
}

func newHandlers(bus events.Bus, quotes QuoteExpirer, log *logger.Logger) *Worker {
	mux := asynq.NewServeMux()
	w := &Worker{
		mux:    mux,
		quotes: quotes,
		bus:    bus,
		log:    log,
	}

	mux.HandleFunc(TaskExpireDueQuotes, w.handleExpireDueQuotes)
	mux.HandleFunc(TaskNotificationEmailRetry, w.handleNotificationEmailRetry)

	return w
}

func (w *Worker) handleExpireDueQuotes(ctx context.Context, _ *asynq.Task) error {
	if w.quotes == nil {
		return nil
	}

	expired, err := w.quotes.ExpireDue(ctx)
	if err != nil {
		return err
	}
	if expired > 0 {
		w.log.Info("expired due quotes", "count", expired)
	}
	return nil
}

func (w *Worker) handleNotificationEmailRetry(ctx context.Context, task *asynq.Task) error {
	if w.bus == nil {
		return nil
	}

	payload, err := ParseNotificationEmailRetryPayload(task)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	if payload.NotificationID == "" {
		return nil
	}

	return w.bus.PublishSync(ctx, events.NotificationEmailRetryDue{
		BaseEvent:      events.NewBaseEvent(),
		NotificationID: payload.NotificationID,
	})
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}
