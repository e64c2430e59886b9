package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"wellmind-go/internal/model"
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

func TestEnsureChatIdempotent(t *testing.T) {
	db := newTestDB(t)
	repo := NewChatRepository()

	first, err := repo.EnsureChat(db, 1)
	require.NoError(t, err)
	require.NotEmpty(t, first.ID)

	second, err := repo.EnsureChat(db, 1)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	var count int64
	require.NoError(t, db.Model(&model.Chat{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestFindChatByUserNotFound(t *testing.T) {
	db := newTestDB(t)
	repo := NewChatRepository()

	_, err := repo.FindChatByUser(db, 42)
	assert.Equal(t, gorm.ErrRecordNotFound, err)
}

func TestUpdateWellnessPlan(t *testing.T) {
	db := newTestDB(t)
	repo := NewChatRepository()

	chat, err := repo.EnsureChat(db, 1)
	require.NoError(t, err)

	require.NoError(t, repo.UpdateWellnessPlan(db, chat.ID, "Sleep by 23:00 every night."))

	got, err := repo.FindChatByUser(db, 1)
	require.NoError(t, err)
	assert.Equal(t, "Sleep by 23:00 every night.", got.WellnessPlan)
}

func TestMessageToolDataRoundTrip(t *testing.T) {
	db := newTestDB(t)
	repo := NewChatRepository()

	chat, err := repo.EnsureChat(db, 1)
	require.NoError(t, err)

	toolData, err := model.EncodeToolData(model.ToolData{
		ToolCalls: []llm.ToolCall{
			{ID: "call_1", Type: "function", Function: llm.FunctionCall{Name: "upsert_note", Arguments: `{"title":"diet"}`}},
		},
	})
	require.NoError(t, err)

	msg := model.Message{
		ChatID:   chat.ID,
		UserID:   1,
		Role:     model.RoleAssistant,
		Content:  "",
		ToolData: toolData,
	}
	require.NoError(t, repo.CreateMessage(db, &msg))
	require.NotEmpty(t, msg.ID)

	loaded, err := repo.RecentMessages(db, chat.ID, 10)
	require.NoError(t, err)
	require.Len(t, loaded, 1)

	td, err := loaded[0].DecodeToolData()
	require.NoError(t, err)
	require.Len(t, td.ToolCalls, 1)
	assert.Equal(t, "call_1", td.ToolCalls[0].ID)
	assert.Equal(t, "upsert_note", td.ToolCalls[0].Function.Name)
	assert.Equal(t, `{"title":"diet"}`, td.ToolCalls[0].Function.Arguments)
}

// seedMessages 以固定间隔的时间戳插入 n 条用户消息，返回会话。
func seedMessages(t *testing.T, db *gorm.DB, repo ChatRepository, userID uint, n int) (*model.Chat, []model.Message) {
	t.Helper()
	chat, err := repo.EnsureChat(db, userID)
	require.NoError(t, err)

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	msgs := make([]model.Message, 0, n)
	for i := 0; i < n; i++ {
		msg := model.Message{
			ChatID:    chat.ID,
			UserID:    userID,
			Role:      model.RoleUser,
			Content:   string(rune('a' + i)),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, repo.CreateMessage(db, &msg))
		msgs = append(msgs, msg)
	}
	return chat, msgs
}

func TestRecentMessagesOrderAndLimit(t *testing.T) {
	db := newTestDB(t)
	repo := NewChatRepository()
	chat, msgs := seedMessages(t, db, repo, 1, 5)

	recent, err := repo.RecentMessages(db, chat.ID, 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	// 倒序：最新在前
	assert.Equal(t, msgs[4].Content, recent[0].Content)
	assert.Equal(t, msgs[3].Content, recent[1].Content)
	assert.Equal(t, msgs[2].Content, recent[2].Content)

	total, err := repo.CountMessages(db, chat.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
}

func TestContextWindowQueries(t *testing.T) {
	db := newTestDB(t)
	repo := NewChatRepository()
	chat, msgs := seedMessages(t, db, repo, 1, 5)

	// 以中间那条为锚点，前后各取 2 条
	anchor := msgs[2]

	before, err := repo.MessagesBefore(db, chat.ID, anchor.CreatedAt, 2)
	require.NoError(t, err)
	require.Len(t, before, 2)
	// 升序返回
	assert.Equal(t, msgs[0].Content, before[0].Content)
	assert.Equal(t, msgs[1].Content, before[1].Content)

	after, err := repo.MessagesAfter(db, chat.ID, anchor.CreatedAt, 2)
	require.NoError(t, err)
	require.Len(t, after, 2)
	assert.Equal(t, msgs[3].Content, after[0].Content)
	assert.Equal(t, msgs[4].Content, after[1].Content)
}

func TestContextWindowAtBoundary(t *testing.T) {
	db := newTestDB(t)
	repo := NewChatRepository()
	chat, msgs := seedMessages(t, db, repo, 1, 3)

	// 首条之前没有消息，窗口应为空而非报错
	before, err := repo.MessagesBefore(db, chat.ID, msgs[0].CreatedAt, 2)
	require.NoError(t, err)
	assert.Empty(t, before)

	after, err := repo.MessagesAfter(db, chat.ID, msgs[2].CreatedAt, 2)
	require.NoError(t, err)
	assert.Empty(t, after)
}

func TestUpdateEmbeddingAndBackfillScan(t *testing.T) {
	db := newTestDB(t)
	repo := NewChatRepository()
	_, msgs := seedMessages(t, db, repo, 1, 3)

	missing, err := repo.MessagesMissingEmbedding(db, 0)
	require.NoError(t, err)
	assert.Len(t, missing, 3)

	require.NoError(t, repo.UpdateEmbedding(db, msgs[0].ID, model.Vector{0.1, 0.2, 0.3}))

	missing, err = repo.MessagesMissingEmbedding(db, 0)
	require.NoError(t, err)
	assert.Len(t, missing, 2)

	embedded, err := repo.MessagesWithEmbedding(db, 1)
	require.NoError(t, err)
	require.Len(t, embedded, 1)
	assert.Equal(t, msgs[0].ID, embedded[0].ID)
	assert.InDelta(t, 0.2, float64(embedded[0].Embedding[1]), 1e-6)
}
