// Package tasks defines the event structures that are sent to Kafka.
package tasks

import "time"

// 通知事件类型，由外部推送子系统消费。
const (
	EventReminderCreated   = "reminder.created"
	EventReminderCancelled = "reminder.cancelled"
	EventReminderDue       = "reminder.due"
)

// NotificationEvent 是发往通知主题的一条出站事件。
type NotificationEvent struct {
	Type       string    `json:"type"`
	UserID     uint      `json:"user_id"`
	ReminderID string    `json:"reminder_id,omitempty"`
	Message    string    `json:"message"`
	RemindAt   time.Time `json:"remind_at,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
