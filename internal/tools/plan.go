package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"

	"wellmind-go/internal/repository"
	"wellmind-go/pkg/llm"
)

// EditWellnessPlanTool 覆盖写入当前会话的健康计划文本。
// 计划挂在 Chat 上而非 Message 上，消息历史保持不可变。
type EditWellnessPlanTool struct {
	chatRepo repository.ChatRepository
}

// NewEditWellnessPlanTool 创建 edit_wellness_plan 工具。
func NewEditWellnessPlanTool(chatRepo repository.ChatRepository) *EditWellnessPlanTool {
	return &EditWellnessPlanTool{chatRepo: chatRepo}
}

type editPlanArgs struct {
	Plan string `json:"plan"`
}

func (t *EditWellnessPlanTool) Definition() llm.Tool {
	return llm.Tool{
		Type: "function",
		Function: llm.FunctionDefinition{
			Name:        "edit_wellness_plan",
			Description: "Replace the user's wellness plan with the given text.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"plan": {"type": "string", "description": "Full new wellness plan text"}
				},
				"required": ["plan"]
			}`),
		},
	}
}

func (t *EditWellnessPlanTool) CanExecute(call llm.ToolCall) bool {
	return call.Function.Name == "edit_wellness_plan"
}

func (t *EditWellnessPlanTool) Execute(ctx context.Context, db *gorm.DB, userID uint, chatID string, call llm.ToolCall) (string, error) {
	var args editPlanArgs
	if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	if chatID == "" {
		return "", fmt.Errorf("no active chat")
	}

	if err := t.chatRepo.UpdateWellnessPlan(db, chatID, args.Plan); err != nil {
		return "", fmt.Errorf("failed to update wellness plan: %w", err)
	}
	return "Wellness plan updated.", nil
}
