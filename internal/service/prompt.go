package service

import (
	"fmt"
	"strings"

	"wellmind-go/internal/model"
)

// PromptContext 是提示构建时可用的上下文元数据。
type PromptContext struct {
	// CurrentMessageCount 本次加载进上下文窗口的消息数
	CurrentMessageCount int
	// TotalHistoryCount 该会话的历史消息总数
	TotalHistoryCount int64
}

// PromptBuilder 产出系统提示文本。轮次引擎只把结果当不透明字符串使用。
type PromptBuilder interface {
	BuildSystemPrompt(user *model.User, chat *model.Chat, meta PromptContext) string
}

type promptBuilder struct{}

// NewPromptBuilder 创建默认的提示构建器。
func NewPromptBuilder() PromptBuilder {
	return &promptBuilder{}
}

// BuildSystemPrompt 拼装系统提示：教练人设 + 用户档案 + 健康计划 + 历史规模。
func (b *promptBuilder) BuildSystemPrompt(user *model.User, chat *model.Chat, meta PromptContext) string {
	var sb strings.Builder

	sb.WriteString("You are a supportive wellness coach. You help the user build healthy habits ")
	sb.WriteString("around sleep, exercise, nutrition and stress. Be warm, concrete and brief. ")
	sb.WriteString("Use your tools to remember things, manage reminders, take notes and keep the ")
	sb.WriteString("wellness plan up to date. Never invent facts about the user's past; search ")
	sb.WriteString("memory when you are unsure.\n\n")

	sb.WriteString("## User profile\n")
	if user.DisplayName != "" {
		fmt.Fprintf(&sb, "Preferred name: %s\n", user.DisplayName)
	}
	if user.Goals != "" {
		fmt.Fprintf(&sb, "Goals: %s\n", user.Goals)
	}
	if !user.OnboardingCompleted {
		sb.WriteString("The user has not completed onboarding yet. Start by getting to know them: ")
		sb.WriteString("how they want to be addressed and what they want to work on. When done, ")
		sb.WriteString("call complete_onboarding.\n")
	}

	if chat.WellnessPlan != "" {
		sb.WriteString("\n## Current wellness plan\n")
		sb.WriteString(chat.WellnessPlan)
		sb.WriteString("\n")
	}

	sb.WriteString("\n## Conversation context\n")
	fmt.Fprintf(&sb, "Messages in this context window: %d. Total messages in history: %d.\n",
		meta.CurrentMessageCount, meta.TotalHistoryCount)
	if meta.TotalHistoryCount > int64(meta.CurrentMessageCount) {
		sb.WriteString("Older messages exist beyond this window; use search_memory to recall them.\n")
	}

	return sb.String()
}
