package scheduler

import (
	"context"
	"time"

	"marketplace_backend/platform/config"
	"marketplace_backend/platform/logger"
)

const defaultSweepInterval = 15 * time.Minute

// ExpirySweepEnqueuer is the part of the client the sweeper needs.
type ExpirySweepEnqueuer interface {
	EnqueueExpireDueQuotes(ctx context.Context, window time.Time) error
}

// QuoteExpirySweeper enqueues the periodic quote expiry task.
type QuoteExpirySweeper struct {
	client   ExpirySweepEnqueuer
	interval time.Duration
	log      *logger.Logger
}

func NewQuoteExpirySweeper(cfg config.SchedulerConfig, client ExpirySweepEnqueuer, log *logger.Logger) *QuoteExpirySweeper {
	interval := cfg.GetQuoteExpirySweepInterval()
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	return &QuoteExpirySweeper{client: client, interval: interval, log: log}
}

// Tick enqueues the sweep for the window now falls into.
func (s *QuoteExpirySweeper) Tick(ctx context.Context, now time.Time) {
	window := now.Truncate(s.interval)
	if err := s.client.EnqueueExpireDueQuotes(ctx, window); err != nil {
		s.log.Warn("quote expiry sweep enqueue failed", "error", err)
	}
}

func (s *QuoteExpirySweeper) Run(ctx context.Context) {
	if s == nil || s.client == nil {
		return
	}

	s.Tick(ctx, time.Now().UTC())

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.Tick(ctx, now.UTC())
		}
	}
}
