package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"

	"wellmind-go/internal/repository"
	"wellmind-go/pkg/kafka"
	"wellmind-go/pkg/llm"
	"wellmind-go/pkg/log"
	"wellmind-go/pkg/tasks"
)

// CreateReminderTool 创建一条随访提醒并发布通知事件。
type CreateReminderTool struct {
	reminderRepo repository.ReminderRepository
}

// NewCreateReminderTool 创建 create_reminder 工具。
func NewCreateReminderTool(reminderRepo repository.ReminderRepository) *CreateReminderTool {
	return &CreateReminderTool{reminderRepo: reminderRepo}
}

type createReminderArgs struct {
	Message  string `json:"message"`
	RemindAt string `json:"remind_at"`
}

func (t *CreateReminderTool) Definition() llm.Tool {
	return llm.Tool{
		Type: "function",
		Function: llm.FunctionDefinition{
			Name:        "create_reminder",
			Description: "Create a follow-up reminder for the user at a specific time.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"message": {"type": "string", "description": "Reminder text shown to the user"},
					"remind_at": {"type": "string", "description": "Trigger time in RFC3339 format"}
				},
				"required": ["message", "remind_at"]
			}`),
		},
	}
}

func (t *CreateReminderTool) CanExecute(call llm.ToolCall) bool {
	return call.Function.Name == "create_reminder"
}

func (t *CreateReminderTool) Execute(ctx context.Context, db *gorm.DB, userID uint, chatID string, call llm.ToolCall) (string, error) {
	var args createReminderArgs
	if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	if args.Message == "" {
		return "", fmt.Errorf("message is required")
	}
	remindAt, err := time.Parse(time.RFC3339, args.RemindAt)
	if err != nil {
		return "", fmt.Errorf("remind_at must be RFC3339: %w", err)
	}

	reminder, err := t.reminderRepo.Create(db, userID, args.Message, remindAt)
	if err != nil {
		return "", fmt.Errorf("failed to create reminder: %w", err)
	}

	// 通知事件发布失败不影响工具结果
	if err := kafka.ProduceNotification(tasks.NotificationEvent{
		Type:       tasks.EventReminderCreated,
		UserID:     userID,
		ReminderID: reminder.ID,
		Message:    reminder.Message,
		RemindAt:   reminder.RemindAt,
	}); err != nil {
		log.Warnf("[Tools] 提醒创建事件发布失败: %v", err)
	}

	return fmt.Sprintf("Reminder %s created for %s.", reminder.ID, reminder.RemindAt.Format(time.RFC3339)), nil
}

// CancelReminderTool 取消一条待触发提醒。
type CancelReminderTool struct {
	reminderRepo repository.ReminderRepository
}

// NewCancelReminderTool 创建 cancel_reminder 工具。
func NewCancelReminderTool(reminderRepo repository.ReminderRepository) *CancelReminderTool {
	return &CancelReminderTool{reminderRepo: reminderRepo}
}

type cancelReminderArgs struct {
	ID string `json:"id"`
}

func (t *CancelReminderTool) Definition() llm.Tool {
	return llm.Tool{
		Type: "function",
		Function: llm.FunctionDefinition{
			Name:        "cancel_reminder",
			Description: "Cancel a pending follow-up reminder by its id.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"id": {"type": "string", "description": "Reminder id to cancel"}
				},
				"required": ["id"]
			}`),
		},
	}
}

func (t *CancelReminderTool) CanExecute(call llm.ToolCall) bool {
	return call.Function.Name == "cancel_reminder"
}

func (t *CancelReminderTool) Execute(ctx context.Context, db *gorm.DB, userID uint, chatID string, call llm.ToolCall) (string, error) {
	var args cancelReminderArgs
	if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	if args.ID == "" {
		return "", fmt.Errorf("id is required")
	}

	affected, err := t.reminderRepo.Cancel(db, userID, args.ID)
	if err != nil {
		return "", fmt.Errorf("failed to cancel reminder: %w", err)
	}
	if affected == 0 {
		return fmt.Sprintf("No pending reminder with id %s.", args.ID), nil
	}

	if err := kafka.ProduceNotification(tasks.NotificationEvent{
		Type:       tasks.EventReminderCancelled,
		UserID:     userID,
		ReminderID: args.ID,
	}); err != nil {
		log.Warnf("[Tools] 提醒取消事件发布失败: %v", err)
	}

	return fmt.Sprintf("Reminder %s cancelled.", args.ID), nil
}
