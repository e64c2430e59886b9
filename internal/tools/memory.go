package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"

	"wellmind-go/pkg/llm"
)

// MemorySearcher 是语义记忆检索引擎的最小接口，由 service 层实现。
type MemorySearcher interface {
	Search(ctx context.Context, userID uint, query string) (string, error)
}

// SearchMemoryTool 在用户的历史消息中做语义检索并返回综述文本。
type SearchMemoryTool struct {
	searcher MemorySearcher
}

// NewSearchMemoryTool 创建 search_memory 工具。
func NewSearchMemoryTool(searcher MemorySearcher) *SearchMemoryTool {
	return &SearchMemoryTool{searcher: searcher}
}

type searchMemoryArgs struct {
	Query string `json:"query"`
}

func (t *SearchMemoryTool) Definition() llm.Tool {
	return llm.Tool{
		Type: "function",
		Function: llm.FunctionDefinition{
			Name:        "search_memory",
			Description: "Search the user's past conversations for relevant context and return a summary.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"query": {"type": "string", "description": "What to look for in past conversations"}
				},
				"required": ["query"]
			}`),
		},
	}
}

func (t *SearchMemoryTool) CanExecute(call llm.ToolCall) bool {
	return call.Function.Name == "search_memory"
}

func (t *SearchMemoryTool) Execute(ctx context.Context, db *gorm.DB, userID uint, chatID string, call llm.ToolCall) (string, error) {
	var args searchMemoryArgs
	if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	if args.Query == "" {
		return "", fmt.Errorf("query is required")
	}
	return t.searcher.Search(ctx, userID, args.Query)
}
