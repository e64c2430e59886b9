package repository

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"wellmind-go/internal/model"
)

// ChatRepository 定义了会话与消息的持久化操作（MessageStore）。
// 消息是插入后不可变的，Embedding 是唯一允许的后置更新。
type ChatRepository interface {
	// EnsureChat 幂等地确保用户的会话行存在并返回它。
	EnsureChat(db *gorm.DB, userID uint) (*model.Chat, error)
	// FindChatByUser 返回用户的会话，不存在时返回 gorm.ErrRecordNotFound。
	FindChatByUser(db *gorm.DB, userID uint) (*model.Chat, error)
	UpdateWellnessPlan(db *gorm.DB, chatID string, plan string) error

	CreateMessage(db *gorm.DB, msg *model.Message) error
	// RecentMessages 按创建时间倒序返回最近 limit 条消息。
	RecentMessages(db *gorm.DB, chatID string, limit int) ([]model.Message, error)
	CountMessages(db *gorm.DB, chatID string) (int64, error)
	// MessagesWithEmbedding 返回用户所有已生成向量的消息。
	MessagesWithEmbedding(db *gorm.DB, userID uint) ([]model.Message, error)
	// MessagesBefore/MessagesAfter 返回某时间点前/后紧邻的 limit 条消息，
	// 结果均按时间升序排列。
	MessagesBefore(db *gorm.DB, chatID string, t time.Time, limit int) ([]model.Message, error)
	MessagesAfter(db *gorm.DB, chatID string, t time.Time, limit int) ([]model.Message, error)

	UpdateEmbedding(db *gorm.DB, messageID string, vec model.Vector) error
	// MessagesMissingEmbedding 返回尚未生成向量的消息，用于启动时回填。
	MessagesMissingEmbedding(db *gorm.DB, limit int) ([]model.Message, error)
}

type chatRepository struct{}

// NewChatRepository 创建一个新的 ChatRepository 实例。
func NewChatRepository() ChatRepository {
	return &chatRepository{}
}

// EnsureChat 幂等地确保用户的会话行存在。
func (r *chatRepository) EnsureChat(db *gorm.DB, userID uint) (*model.Chat, error) {
	var chat model.Chat
	err := db.Where("user_id = ?", userID).First(&chat).Error
	if err == nil {
		return &chat, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	chat = model.Chat{ID: uuid.NewString(), UserID: userID}
	if err := db.Create(&chat).Error; err != nil {
		// 并发创建时回退为读取已存在行
		var existing model.Chat
		if ferr := db.Where("user_id = ?", userID).First(&existing).Error; ferr == nil {
			return &existing, nil
		}
		return nil, err
	}
	return &chat, nil
}

// FindChatByUser 返回用户的会话。
func (r *chatRepository) FindChatByUser(db *gorm.DB, userID uint) (*model.Chat, error) {
	var chat model.Chat
	err := db.Where("user_id = ?", userID).First(&chat).Error
	if err != nil {
		return nil, err
	}
	return &chat, nil
}

// UpdateWellnessPlan 覆盖写入会话的健康计划文本。
func (r *chatRepository) UpdateWellnessPlan(db *gorm.DB, chatID string, plan string) error {
	return db.Model(&model.Chat{}).Where("id = ?", chatID).
		Update("wellness_plan", plan).Error
}

// CreateMessage 插入一条消息记录。
func (r *chatRepository) CreateMessage(db *gorm.DB, msg *model.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	return db.Create(msg).Error
}

// RecentMessages 按创建时间倒序返回最近 limit 条消息。
func (r *chatRepository) RecentMessages(db *gorm.DB, chatID string, limit int) ([]model.Message, error) {
	var messages []model.Message
	err := db.Where("chat_id = ?", chatID).
		Order("created_at DESC").Order("id DESC").
		Limit(limit).Find(&messages).Error
	return messages, err
}

// CountMessages 返回会话的全部消息条数。
func (r *chatRepository) CountMessages(db *gorm.DB, chatID string) (int64, error) {
	var total int64
	err := db.Model(&model.Message{}).Where("chat_id = ?", chatID).Count(&total).Error
	return total, err
}

// MessagesWithEmbedding 返回用户所有已生成向量的消息，按主键升序。
func (r *chatRepository) MessagesWithEmbedding(db *gorm.DB, userID uint) ([]model.Message, error) {
	var messages []model.Message
	err := db.Where("user_id = ? AND embedding IS NOT NULL", userID).
		Order("id ASC").Find(&messages).Error
	return messages, err
}

// MessagesBefore 返回创建时间早于 t 的最近 limit 条消息，按时间升序。
func (r *chatRepository) MessagesBefore(db *gorm.DB, chatID string, t time.Time, limit int) ([]model.Message, error) {
	var messages []model.Message
	err := db.Where("chat_id = ? AND created_at < ?", chatID, t).
		Order("created_at DESC").Limit(limit).Find(&messages).Error
	if err != nil {
		return nil, err
	}
	// 倒序取出后翻转为时间升序
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// MessagesAfter 返回创建时间晚于 t 的最早 limit 条消息，按时间升序。
func (r *chatRepository) MessagesAfter(db *gorm.DB, chatID string, t time.Time, limit int) ([]model.Message, error) {
	var messages []model.Message
	err := db.Where("chat_id = ? AND created_at > ?", chatID, t).
		Order("created_at ASC").Limit(limit).Find(&messages).Error
	return messages, err
}

// UpdateEmbedding 为指定消息写入向量。
func (r *chatRepository) UpdateEmbedding(db *gorm.DB, messageID string, vec model.Vector) error {
	return db.Model(&model.Message{}).Where("id = ?", messageID).
		Update("embedding", vec).Error
}

// MessagesMissingEmbedding 返回尚未生成向量的消息，按创建时间升序。
func (r *chatRepository) MessagesMissingEmbedding(db *gorm.DB, limit int) ([]model.Message, error) {
	var messages []model.Message
	q := db.Where("embedding IS NULL").Order("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&messages).Error
	return messages, err
}
