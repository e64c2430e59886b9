package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"

	"wellmind-go/internal/repository"
	"wellmind-go/pkg/llm"
)

// UpdateProfileTool 更新用户档案（称呼、目标）。
type UpdateProfileTool struct {
	userRepo repository.UserRepository
}

// NewUpdateProfileTool 创建 update_profile 工具。
func NewUpdateProfileTool(userRepo repository.UserRepository) *UpdateProfileTool {
	return &UpdateProfileTool{userRepo: userRepo}
}

type updateProfileArgs struct {
	DisplayName string `json:"display_name"`
	Goals       string `json:"goals"`
}

func (t *UpdateProfileTool) Definition() llm.Tool {
	return llm.Tool{
		Type: "function",
		Function: llm.FunctionDefinition{
			Name:        "update_profile",
			Description: "Update the user's profile: preferred name and/or wellness goals.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"display_name": {"type": "string", "description": "How the user wants to be addressed"},
					"goals": {"type": "string", "description": "The user's wellness goals"}
				}
			}`),
		},
	}
}

func (t *UpdateProfileTool) CanExecute(call llm.ToolCall) bool {
	return call.Function.Name == "update_profile"
}

func (t *UpdateProfileTool) Execute(ctx context.Context, db *gorm.DB, userID uint, chatID string, call llm.ToolCall) (string, error) {
	var args updateProfileArgs
	if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	if args.DisplayName == "" && args.Goals == "" {
		return "", fmt.Errorf("at least one of display_name or goals is required")
	}

	if err := t.userRepo.UpdateProfile(db, userID, args.DisplayName, args.Goals); err != nil {
		return "", fmt.Errorf("failed to update profile: %w", err)
	}
	return "Profile updated.", nil
}

// CompleteOnboardingTool 标记用户完成首次引导流程。
type CompleteOnboardingTool struct {
	userRepo repository.UserRepository
}

// NewCompleteOnboardingTool 创建 complete_onboarding 工具。
func NewCompleteOnboardingTool(userRepo repository.UserRepository) *CompleteOnboardingTool {
	return &CompleteOnboardingTool{userRepo: userRepo}
}

func (t *CompleteOnboardingTool) Definition() llm.Tool {
	return llm.Tool{
		Type: "function",
		Function: llm.FunctionDefinition{
			Name:        "complete_onboarding",
			Description: "Mark the user's onboarding conversation as completed.",
			Parameters:  json.RawMessage(`{"type": "object", "properties": {}}`),
		},
	}
}

func (t *CompleteOnboardingTool) CanExecute(call llm.ToolCall) bool {
	return call.Function.Name == "complete_onboarding"
}

func (t *CompleteOnboardingTool) Execute(ctx context.Context, db *gorm.DB, userID uint, chatID string, call llm.ToolCall) (string, error) {
	if err := t.userRepo.CompleteOnboarding(db, userID); err != nil {
		return "", fmt.Errorf("failed to complete onboarding: %w", err)
	}
	return "Onboarding completed.", nil
}
