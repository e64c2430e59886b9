package service

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"wellmind-go/internal/config"
	"wellmind-go/internal/model"
	"wellmind-go/internal/repository"
	"wellmind-go/internal/tools"
	"wellmind-go/pkg/llm"
)

// newTestDB 建立一个内存 sqlite 数据库并迁移全部表。
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	// 内存库随连接销毁，限制连接池为单连接
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(
		&model.User{},
		&model.Chat{},
		&model.Message{},
		&model.Note{},
		&model.Reminder{},
	))
	return db
}

// scriptedStream 按脚本回放增量帧。
type scriptedStream struct {
	deltas []*llm.Delta
	pos    int
}

func (s *scriptedStream) Recv() (*llm.Delta, error) {
	if s.pos >= len(s.deltas) {
		return nil, io.EOF
	}
	d := s.deltas[s.pos]
	s.pos++
	return d, nil
}

func (s *scriptedStream) Close() error { return nil }

// scriptedLLM 依次回放预设的流式响应，超出脚本后重复最后一个。
type scriptedLLM struct {
	mu       sync.Mutex
	scripts  [][]*llm.Delta
	requests []llm.ChatRequest

	summary    string
	summaryErr error
}

func (m *scriptedLLM) StreamChatCompletion(ctx context.Context, req llm.ChatRequest) (llm.ChatStream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	idx := len(m.requests) - 1
	if idx >= len(m.scripts) {
		idx = len(m.scripts) - 1
	}
	return &scriptedStream{deltas: m.scripts[idx]}, nil
}

func (m *scriptedLLM) CreateChatCompletion(ctx context.Context, req llm.ChatRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	return m.summary, m.summaryErr
}

func (m *scriptedLLM) recorded() []llm.ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]llm.ChatRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// captureEnqueuer 记录被提交向量化的消息。
type captureEnqueuer struct {
	mu  sync.Mutex
	ids []string
}

func (c *captureEnqueuer) Enqueue(messageID, content string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ids = append(c.ids, messageID)
}

func (c *captureEnqueuer) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.ids)
}

// moodTool 是测试用工具，记录调用并返回固定结果。
type moodTool struct {
	result string
	err    error
	calls  []llm.ToolCall
}

func (t *moodTool) Definition() llm.Tool {
	return llm.Tool{Type: "function", Function: llm.FunctionDefinition{Name: "log_mood"}}
}

func (t *moodTool) CanExecute(call llm.ToolCall) bool {
	return call.Function.Name == "log_mood"
}

func (t *moodTool) Execute(ctx context.Context, db *gorm.DB, userID uint, chatID string, call llm.ToolCall) (string, error) {
	t.calls = append(t.calls, call)
	return t.result, t.err
}

func testConfig() config.Config {
	var cfg config.Config
	cfg.Chat.HistoryLimit = 30
	cfg.Chat.MaxToolCallDepth = 10
	cfg.Chat.Timezone = "UTC"
	cfg.Memory.MaxResults = 35
	cfg.Memory.ContextWindow = 2
	return cfg
}

func newChatTestEnv(t *testing.T, mock *scriptedLLM, registry *tools.Registry) (ChatService, *gorm.DB, *captureEnqueuer) {
	t.Helper()
	db := newTestDB(t)
	enqueuer := &captureEnqueuer{}
	svc := NewChatService(db, repository.NewUserRepository(), repository.NewChatRepository(),
		mock, registry, NewPromptBuilder(), enqueuer, testConfig())
	return svc, db, enqueuer
}

func collect(t *testing.T, ch <-chan ChatEvent) []ChatEvent {
	t.Helper()
	var events []ChatEvent
	for ev := range ch {
		events = append(events, ev)
	}
	return events
}

func TestStreamTextTurn(t *testing.T) {
	mock := &scriptedLLM{scripts: [][]*llm.Delta{{
		{Role: "assistant", Content: "Hello"},
		{Content: ""},
		{Content: " world"},
		{Content: "!"},
	}}}
	svc, db, enqueuer := newChatTestEnv(t, mock, tools.NewRegistry())

	events := collect(t, svc.CreateChatStream(context.Background(), 1, "hi"))
	require.Len(t, events, 4)

	// 三个非空增量逐条下发，空串增量不产生 chunk 事件
	chunks := events[:3]
	for i, ev := range chunks {
		assert.Equal(t, EventChunk, ev.Event)
		assert.Equal(t, i, ev.Seq)
		assert.Equal(t, events[0].ID, ev.ID)
	}
	assert.Equal(t, "Hello", chunks[0].Chunk)
	assert.Equal(t, " world", chunks[1].Chunk)
	assert.Equal(t, "!", chunks[2].Chunk)

	final := events[3]
	assert.Equal(t, EventMessage, final.Event)
	assert.Equal(t, events[0].ID, final.ID)
	assert.Equal(t, model.RoleAssistant, final.Role)
	assert.Equal(t, "Hello world!", final.Content)

	// 落库：一条用户消息 + 一条助手消息，两条都进向量化队列
	var count int64
	require.NoError(t, db.Model(&model.Message{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)
	assert.Equal(t, 2, enqueuer.count())

	// 请求公布了工具并使用 auto 策略
	reqs := mock.recorded()
	require.Len(t, reqs, 1)
	assert.Equal(t, "auto", reqs[0].ToolChoice)
	assert.Equal(t, "system", reqs[0].Messages[0].Role)
}

func TestToolCallTurn(t *testing.T) {
	mock := &scriptedLLM{scripts: [][]*llm.Delta{
		{
			{Role: "assistant", ToolCalls: []llm.ToolCallDelta{
				{Index: 0, ID: "call_1", Type: "function", Function: llm.FunctionCall{Name: "log_mood", Arguments: `{"mo`}},
			}},
			{ToolCalls: []llm.ToolCallDelta{
				{Index: 0, Function: llm.FunctionCall{Arguments: `od":"good"}`}},
			}},
		},
		{
			{Role: "assistant", Content: "Logged."},
		},
	}}
	tool := &moodTool{result: "Mood logged."}
	svc, db, _ := newChatTestEnv(t, mock, tools.NewRegistry(tool))

	events := collect(t, svc.CreateChatStream(context.Background(), 1, "I feel good"))
	require.NotEmpty(t, events)

	final := events[len(events)-1]
	assert.Equal(t, EventMessage, final.Event)
	assert.Equal(t, "Logged.", final.Content)

	// 分片参数按顺序拼装后整体到达工具
	require.Len(t, tool.calls, 1)
	assert.Equal(t, `{"mood":"good"}`, tool.calls[0].Function.Arguments)

	// user, assistant(tool call), tool, assistant 共四条
	var messages []model.Message
	require.NoError(t, db.Order("created_at ASC, id ASC").Find(&messages).Error)
	require.Len(t, messages, 4)
	roles := []string{}
	for _, m := range messages {
		roles = append(roles, m.Role)
	}
	assert.Contains(t, roles, model.RoleTool)

	// 第二次请求的工作历史携带了工具调用与工具结果
	reqs := mock.recorded()
	require.Len(t, reqs, 2)
	second := reqs[1].Messages
	last := second[len(second)-1]
	assert.Equal(t, model.RoleTool, last.Role)
	assert.Equal(t, "call_1", last.ToolCallID)
	assert.Equal(t, "Mood logged.", last.Content)
	beforeLast := second[len(second)-2]
	assert.Equal(t, model.RoleAssistant, beforeLast.Role)
	require.Len(t, beforeLast.ToolCalls, 1)
	assert.Equal(t, "log_mood", beforeLast.ToolCalls[0].Function.Name)
}

func TestToolFailureBecomesModelVisibleResult(t *testing.T) {
	mock := &scriptedLLM{scripts: [][]*llm.Delta{
		{
			{Role: "assistant", ToolCalls: []llm.ToolCallDelta{
				{Index: 0, ID: "call_1", Type: "function", Function: llm.FunctionCall{Name: "log_mood", Arguments: `{}`}},
			}},
		},
		{
			{Role: "assistant", Content: "Sorry, that did not work."},
		},
	}}
	tool := &moodTool{err: errors.New("boom")}
	svc, db, _ := newChatTestEnv(t, mock, tools.NewRegistry(tool))

	events := collect(t, svc.CreateChatStream(context.Background(), 1, "log it"))
	final := events[len(events)-1]
	require.Equal(t, EventMessage, final.Event)

	var toolMsg model.Message
	require.NoError(t, db.Where("role = ?", model.RoleTool).First(&toolMsg).Error)
	assert.Equal(t, "Tool log_mood failed: boom", toolMsg.Content)
}

func TestUnknownToolReported(t *testing.T) {
	mock := &scriptedLLM{scripts: [][]*llm.Delta{
		{
			{Role: "assistant", ToolCalls: []llm.ToolCallDelta{
				{Index: 0, ID: "call_1", Type: "function", Function: llm.FunctionCall{Name: "teleport", Arguments: `{}`}},
			}},
		},
		{
			{Role: "assistant", Content: "I cannot do that."},
		},
	}}
	svc, db, _ := newChatTestEnv(t, mock, tools.NewRegistry())

	events := collect(t, svc.CreateChatStream(context.Background(), 1, "beam me up"))
	final := events[len(events)-1]
	require.Equal(t, EventMessage, final.Event)

	var toolMsg model.Message
	require.NoError(t, db.Where("role = ?", model.RoleTool).First(&toolMsg).Error)
	assert.Equal(t, "Tool teleport not found.", toolMsg.Content)
}

func TestToolCallDepthBounded(t *testing.T) {
	// 模型每轮都请求工具调用，永不给出文本收尾
	mock := &scriptedLLM{scripts: [][]*llm.Delta{
		{
			{Role: "assistant", ToolCalls: []llm.ToolCallDelta{
				{Index: 0, ID: "call_n", Type: "function", Function: llm.FunctionCall{Name: "log_mood", Arguments: `{}`}},
			}},
		},
	}}
	tool := &moodTool{result: "ok"}
	svc, db, _ := newChatTestEnv(t, mock, tools.NewRegistry(tool))

	events := collect(t, svc.CreateChatStream(context.Background(), 1, "loop forever"))
	final := events[len(events)-1]
	require.Equal(t, EventMessage, final.Event)
	assert.Equal(t, DepthExceededMessage, final.Content)

	// 恰好执行了 10 次工具分发，之后第 11 次流式响应触发终止
	assert.Len(t, tool.calls, 10)
	assert.Len(t, mock.recorded(), 11)

	var toolCount int64
	require.NoError(t, db.Model(&model.Message{}).Where("role = ?", model.RoleTool).Count(&toolCount).Error)
	assert.Equal(t, int64(10), toolCount)

	// 终止消息已落库且复用了事件中的消息 ID
	var fallback model.Message
	require.NoError(t, db.Where("content = ?", DepthExceededMessage).First(&fallback).Error)
	assert.Equal(t, final.ID, fallback.ID)
}

func TestMalformedHistoryRejected(t *testing.T) {
	mock := &scriptedLLM{scripts: [][]*llm.Delta{
		{{Role: "assistant", Content: "unreachable"}},
	}}
	svc, db, _ := newChatTestEnv(t, mock, tools.NewRegistry())

	// 预置一条缺少 toolCallId 的 tool 消息
	chatRepo := repository.NewChatRepository()
	chat, err := chatRepo.EnsureChat(db, 1)
	require.NoError(t, err)
	toolData, err := model.EncodeToolData(model.ToolData{ToolName: "log_mood"})
	require.NoError(t, err)
	require.NoError(t, chatRepo.CreateMessage(db, &model.Message{
		ChatID:   chat.ID,
		UserID:   1,
		Role:     model.RoleTool,
		Content:  "orphan result",
		ToolData: toolData,
	}))

	events := collect(t, svc.CreateChatStream(context.Background(), 1, "hello"))
	require.Len(t, events, 1)
	assert.Equal(t, EventError, events[0].Event)
	assert.Contains(t, events[0].Message, "malformed history")

	// 未发起任何模型调用
	assert.Empty(t, mock.recorded())
}

func TestHistoryCarriesTimestampsForUserMessages(t *testing.T) {
	mock := &scriptedLLM{scripts: [][]*llm.Delta{
		{{Role: "assistant", Content: "ok"}},
	}}
	svc, _, _ := newChatTestEnv(t, mock, tools.NewRegistry())

	events := collect(t, svc.CreateChatStream(context.Background(), 1, "good morning"))
	require.Equal(t, EventMessage, events[len(events)-1].Event)

	reqs := mock.recorded()
	require.Len(t, reqs, 1)
	msgs := reqs[0].Messages

	// 每条 user 消息前都有一条合成的时间戳 system 消息
	var sawTimestamp bool
	for i, m := range msgs {
		if m.Role == model.RoleUser {
			require.Greater(t, i, 0)
			assert.Equal(t, "system", msgs[i-1].Role)
			assert.Contains(t, msgs[i-1].Content, "Current time:")
			sawTimestamp = true
		}
	}
	assert.True(t, sawTimestamp)
}
