package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"wellmind-go/pkg/llm"
)

// fakeTool 按名字匹配并返回固定结果。
type fakeTool struct {
	name   string
	result string
	err    error
	called int
}

func (t *fakeTool) Definition() llm.Tool {
	return llm.Tool{Type: "function", Function: llm.FunctionDefinition{Name: t.name}}
}

func (t *fakeTool) CanExecute(call llm.ToolCall) bool {
	return call.Function.Name == t.name
}

func (t *fakeTool) Execute(ctx context.Context, db *gorm.DB, userID uint, chatID string, call llm.ToolCall) (string, error) {
	t.called++
	return t.result, t.err
}

func callFor(name string) llm.ToolCall {
	return llm.ToolCall{ID: "call_1", Type: "function", Function: llm.FunctionCall{Name: name, Arguments: "{}"}}
}

func TestRegistryFirstMatchWins(t *testing.T) {
	first := &fakeTool{name: "dup", result: "from first"}
	second := &fakeTool{name: "dup", result: "from second"}
	registry := NewRegistry(first, second)

	result := registry.Execute(context.Background(), nil, 1, "chat", callFor("dup"))
	assert.Equal(t, "from first", result)
	assert.Equal(t, 1, first.called)
	assert.Equal(t, 0, second.called)
}

func TestRegistryFailureBecomesText(t *testing.T) {
	tool := &fakeTool{name: "broken", err: errors.New("db timeout")}
	registry := NewRegistry(tool)

	result := registry.Execute(context.Background(), nil, 1, "chat", callFor("broken"))
	assert.Equal(t, "Tool broken failed: db timeout", result)
}

func TestRegistryUnknownTool(t *testing.T) {
	registry := NewRegistry(&fakeTool{name: "known"})

	result := registry.Execute(context.Background(), nil, 1, "chat", callFor("missing"))
	assert.Equal(t, "Tool missing not found.", result)
}

func TestRegistryDefinitionsPreserveOrder(t *testing.T) {
	registry := NewRegistry(
		&fakeTool{name: "alpha"},
		&fakeTool{name: "beta"},
	)

	defs := registry.Definitions()
	assert.Len(t, defs, 2)
	assert.Equal(t, "alpha", defs[0].Function.Name)
	assert.Equal(t, "beta", defs[1].Function.Name)
}
