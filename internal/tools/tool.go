// Package tools 实现了模型可调用的工具集合与分发注册表。
package tools

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"wellmind-go/pkg/llm"
	"wellmind-go/pkg/log"
)

// Tool 是一个可由模型调用的具名操作。
// 参数以 JSON 文本到达，由各工具解析并校验后执行。
type Tool interface {
	// Definition 返回对模型公布的工具定义。
	Definition() llm.Tool
	// CanExecute 报告本工具是否处理该调用（按函数名匹配）。
	CanExecute(call llm.ToolCall) bool
	// Execute 在给定事务句柄下执行调用，返回回传给模型的结果文本。
	Execute(ctx context.Context, db *gorm.DB, userID uint, chatID string, call llm.ToolCall) (string, error)
}

// Registry 是一个有序的工具注册表，分发时按注册顺序取首个匹配者。
type Registry struct {
	tools []Tool
}

// NewRegistry 按给定顺序创建注册表。
func NewRegistry(tools ...Tool) *Registry {
	return &Registry{tools: tools}
}

// Definitions 返回全部工具定义，用于在聊天请求中公布。
func (r *Registry) Definitions() []llm.Tool {
	defs := make([]llm.Tool, 0, len(r.tools))
	for _, t := range r.tools {
		defs = append(defs, t.Definition())
	}
	return defs
}

// Execute 分发一次工具调用并返回结果文本。
// 未匹配到工具与执行失败都不会中断对话轮次：
// 前者返回固定的 not found 文本，后者把错误转为模型可见的描述文本。
func (r *Registry) Execute(ctx context.Context, db *gorm.DB, userID uint, chatID string, call llm.ToolCall) string {
	for _, t := range r.tools {
		if !t.CanExecute(call) {
			continue
		}
		result, err := t.Execute(ctx, db, userID, chatID, call)
		if err != nil {
			log.Warnf("[Tools] 工具 %s 执行失败: %v", call.Function.Name, err)
			return fmt.Sprintf("Tool %s failed: %v", call.Function.Name, err)
		}
		return result
	}
	return fmt.Sprintf("Tool %s not found.", call.Function.Name)
}
