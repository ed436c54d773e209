package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskExpireDueQuotes = "quotes:expire_due"

const TaskNotificationEmailRetry = "notifications:email_retry"

type NotificationEmailRetryPayload struct {
	NotificationID string `json:"notificationId"`
}

func NewExpireDueQuotesTask() *asynq.Task {
	return asynq.NewTask(TaskExpireDueQuotes, nil)
}

func NewNotificationEmailRetryTask(payload NotificationEmailRetryPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskNotificationEmailRetry, data), nil
}

func ParseNotificationEmailRetryPayload(task *asynq.Task) (NotificationEmailRetryPayload, error) {
	var payload NotificationEmailRetryPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return NotificationEmailRetryPayload{}, err
	}
	return payload, nil
}
