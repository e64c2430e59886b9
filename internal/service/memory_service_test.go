package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"wellmind-go/internal/config"
	"wellmind-go/internal/model"
	"wellmind-go/internal/repository"
)

// stubEmbedder 返回预置的文本向量，未命中时返回 fallback。
type stubEmbedder struct {
	vectors  map[string][]float32
	fallback []float32
}

func (s *stubEmbedder) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if v, ok := s.vectors[text]; ok {
		return v, nil
	}
	return s.fallback, nil
}

func memoryTestConfig(maxResults, contextWindow int) config.Config {
	cfg := testConfig()
	cfg.Memory.MaxResults = maxResults
	cfg.Memory.ContextWindow = contextWindow
	cfg.LLM.SummaryModel = "summary-model"
	return cfg
}

// seedEmbeddedMessage 以给定时间与向量插入一条消息。
func seedEmbeddedMessage(t *testing.T, db *gorm.DB, chatID string, userID uint, content string, at time.Time, vec model.Vector) model.Message {
	t.Helper()
	msg := model.Message{
		ChatID:    chatID,
		UserID:    userID,
		Role:      model.RoleUser,
		Content:   content,
		CreatedAt: at,
		Embedding: vec,
	}
	require.NoError(t, repository.NewChatRepository().CreateMessage(db, &msg))
	return msg
}

func TestMemorySearchNoChat(t *testing.T) {
	db := newTestDB(t)
	svc := NewMemoryService(db, repository.NewChatRepository(),
		&stubEmbedder{fallback: []float32{1, 0}}, &scriptedLLM{}, memoryTestConfig(35, 2))

	result, err := svc.Search(context.Background(), 1, "sleep")
	require.NoError(t, err)
	assert.Equal(t, NoMemoryResult, result)
}

func TestMemorySearchNoEmbeddedMessages(t *testing.T) {
	db := newTestDB(t)
	chatRepo := repository.NewChatRepository()
	_, err := chatRepo.EnsureChat(db, 1)
	require.NoError(t, err)

	svc := NewMemoryService(db, chatRepo,
		&stubEmbedder{fallback: []float32{1, 0}}, &scriptedLLM{}, memoryTestConfig(35, 2))

	result, err := svc.Search(context.Background(), 1, "sleep")
	require.NoError(t, err)
	assert.Equal(t, NoMemoryResult, result)
}

func TestMemorySearchRanksAndMergesWindows(t *testing.T) {
	db := newTestDB(t)
	chatRepo := repository.NewChatRepository()
	chat, err := chatRepo.EnsureChat(db, 1)
	require.NoError(t, err)

	base := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	off := model.Vector{0, 1}
	hit := model.Vector{1, 0}
	seedEmbeddedMessage(t, db, chat.ID, 1, "breakfast talk", base, off)
	seedEmbeddedMessage(t, db, chat.ID, 1, "slept badly last week", base.Add(1*time.Minute), off)
	seedEmbeddedMessage(t, db, chat.ID, 1, "melatonin discussion", base.Add(2*time.Minute), hit)
	seedEmbeddedMessage(t, db, chat.ID, 1, "agreed on a wind-down routine", base.Add(3*time.Minute), off)
	seedEmbeddedMessage(t, db, chat.ID, 1, "unrelated workout chat", base.Add(4*time.Minute), off)

	llmMock := &scriptedLLM{summary: "They discussed melatonin and a wind-down routine."}
	svc := NewMemoryService(db, chatRepo,
		&stubEmbedder{fallback: []float32{1, 0}}, llmMock, memoryTestConfig(1, 1))

	result, err := svc.Search(context.Background(), 1, "sleep")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(result, `Memory search results for "sleep":`))
	assert.Contains(t, result, "melatonin and a wind-down routine")

	// 综述输入只包含命中及其前后各一条，且按时间升序
	reqs := llmMock.recorded()
	require.Len(t, reqs, 1)
	assert.Equal(t, "summary-model", reqs[0].Model)
	prompt := reqs[0].Messages[1].Content
	assert.Contains(t, prompt, "slept badly last week")
	assert.Contains(t, prompt, "melatonin discussion")
	assert.Contains(t, prompt, "agreed on a wind-down routine")
	assert.NotContains(t, prompt, "breakfast talk")
	assert.NotContains(t, prompt, "unrelated workout chat")
	assert.Less(t,
		strings.Index(prompt, "slept badly"),
		strings.Index(prompt, "melatonin"))
	assert.Less(t,
		strings.Index(prompt, "melatonin"),
		strings.Index(prompt, "wind-down"))
}

func TestMemorySearchDedupsOverlappingWindows(t *testing.T) {
	db := newTestDB(t)
	chatRepo := repository.NewChatRepository()
	chat, err := chatRepo.EnsureChat(db, 1)
	require.NoError(t, err)

	base := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	hit := model.Vector{1, 0}
	seedEmbeddedMessage(t, db, chat.ID, 1, "first hit", base, hit)
	seedEmbeddedMessage(t, db, chat.ID, 1, "shared neighbor", base.Add(1*time.Minute), model.Vector{0, 1})
	seedEmbeddedMessage(t, db, chat.ID, 1, "second hit", base.Add(2*time.Minute), hit)

	llmMock := &scriptedLLM{summary: "summary"}
	svc := NewMemoryService(db, chatRepo,
		&stubEmbedder{fallback: []float32{1, 0}}, llmMock, memoryTestConfig(2, 1))

	_, err = svc.Search(context.Background(), 1, "anything")
	require.NoError(t, err)

	reqs := llmMock.recorded()
	require.Len(t, reqs, 1)
	prompt := reqs[0].Messages[1].Content
	// 两个命中的窗口都覆盖中间那条，但它只出现一次
	assert.Equal(t, 1, strings.Count(prompt, "shared neighbor"))
	assert.Equal(t, 1, strings.Count(prompt, "first hit"))
	assert.Equal(t, 1, strings.Count(prompt, "second hit"))
}

func TestMemorySearchSummaryFallback(t *testing.T) {
	db := newTestDB(t)
	chatRepo := repository.NewChatRepository()
	chat, err := chatRepo.EnsureChat(db, 1)
	require.NoError(t, err)

	seedEmbeddedMessage(t, db, chat.ID, 1, "a memory",
		time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC), model.Vector{1, 0})

	llmMock := &scriptedLLM{summaryErr: errors.New("model unavailable")}
	svc := NewMemoryService(db, chatRepo,
		&stubEmbedder{fallback: []float32{1, 0}}, llmMock, memoryTestConfig(5, 1))

	result, err := svc.Search(context.Background(), 1, "anything")
	require.NoError(t, err)
	assert.Contains(t, result, MemoryFallbackSummary)
}

func TestMemorySearchSkipsMismatchedDimensions(t *testing.T) {
	db := newTestDB(t)
	chatRepo := repository.NewChatRepository()
	chat, err := chatRepo.EnsureChat(db, 1)
	require.NoError(t, err)

	// 旧模型遗留的三维向量，查询向量是二维
	seedEmbeddedMessage(t, db, chat.ID, 1, "stale vector",
		time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC), model.Vector{1, 0, 0})

	svc := NewMemoryService(db, chatRepo,
		&stubEmbedder{fallback: []float32{1, 0}}, &scriptedLLM{}, memoryTestConfig(5, 1))

	result, err := svc.Search(context.Background(), 1, "anything")
	require.NoError(t, err)
	assert.Equal(t, NoMemoryResult, result)
}
