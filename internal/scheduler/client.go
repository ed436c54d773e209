package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"marketplace_backend/platform/config"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

type Client struct {
	client *asynq.Client
	queue  string
}

func NewClient(cfg config.SchedulerConfig) (*Client, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL)
	if err != nil {
		return nil, err
	}

	return &Client{
		client: asynq.NewClient(opt),
		queue:  queueName(cfg),
	}, nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// ScheduleEmailRetry enqueues another delivery attempt for a notification email.
func (c *Client) ScheduleEmailRetry(ctx context.Context, notificationID string, runAt time.Time) error {
	if c == nil || c.client == nil {
		return nil
	}

	task, err := NewNotificationEmailRetryTask(NotificationEmailRetryPayload{NotificationID: notificationID})
	if err != nil {
		return err
	}

	_, err = c.client.EnqueueContext(ctx, task, asynq.ProcessAt(runAt), asynq.Queue(c.queue))
	return err
}

// EnqueueExpireDueQuotes enqueues one expiry sweep per window. Every
// instance ticking inside the same window maps to the same task id.
func (c *Client) EnqueueExpireDueQuotes(ctx context.Context, window time.Time) error {
	if c == nil || c.client == nil {
		return nil
	}

	taskID := fmt.Sprintf("%s:%d", TaskExpireDueQuotes, window.Unix())
	_, err := c.client.EnqueueContext(ctx, NewExpireDueQuotesTask(),
		asynq.Queue(c.queue),
		asynq.TaskID(taskID),
		asynq.MaxRetry(0),
		asynq.Retention(time.Hour),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	return err
}

func queueName(cfg config.SchedulerConfig) string {
	queue := cfg.GetSchedulerQueue()
	if queue == "" {
		queue = "default"
	}
	return queue
}

func redisClientOpt(redisURL string) (asynq.RedisClientOpt, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}

	tlsConfig := opt.TLSConfig
	if tlsConfig != nil {
		tlsConfig = tlsConfig.Clone()
	}

	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Username:  opt.Username,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: tlsConfig,
	}, nil
}
