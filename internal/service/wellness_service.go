package service

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"wellmind-go/internal/model"
	"wellmind-go/internal/repository"
	"wellmind-go/pkg/catalog"
)

// WellnessService 提供健康数据的只读查询：计划、笔记、提醒、历史消息。
type WellnessService interface {
	GetWellnessPlan(ctx context.Context, userID uint) (string, error)
	ListNotes(ctx context.Context, userID uint) ([]model.Note, error)
	ListReminders(ctx context.Context, userID uint) ([]model.Reminder, error)
	RecentHistory(ctx context.Context, userID uint, limit int) ([]model.Message, error)
	GetContentItem(ctx context.Context, itemID string) (*catalog.Item, error)
}

type wellnessService struct {
	db            *gorm.DB
	chatRepo      repository.ChatRepository
	noteRepo      repository.NoteRepository
	reminderRepo  repository.ReminderRepository
	catalogClient *catalog.Client
}

// NewWellnessService 创建一个新的 WellnessService 实例。
func NewWellnessService(db *gorm.DB, chatRepo repository.ChatRepository, noteRepo repository.NoteRepository,
	reminderRepo repository.ReminderRepository, catalogClient *catalog.Client) WellnessService {
	return &wellnessService{
		db:            db,
		chatRepo:      chatRepo,
		noteRepo:      noteRepo,
		reminderRepo:  reminderRepo,
		catalogClient: catalogClient,
	}
}

// GetWellnessPlan 返回当前健康计划文本；尚未建会话时返回空串。
func (s *wellnessService) GetWellnessPlan(ctx context.Context, userID uint) (string, error) {
	chat, err := s.chatRepo.FindChatByUser(s.db.WithContext(ctx), userID)
	if err == gorm.ErrRecordNotFound {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to find chat: %w", err)
	}
	return chat.WellnessPlan, nil
}

// ListNotes 返回用户的全部笔记。
func (s *wellnessService) ListNotes(ctx context.Context, userID uint) ([]model.Note, error) {
	notes, err := s.noteRepo.ListByUser(s.db.WithContext(ctx), userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	return notes, nil
}

// ListReminders 返回用户的全部提醒。
func (s *wellnessService) ListReminders(ctx context.Context, userID uint) ([]model.Reminder, error) {
	reminders, err := s.reminderRepo.ListByUser(s.db.WithContext(ctx), userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reminders: %w", err)
	}
	return reminders, nil
}

// RecentHistory 返回最近 limit 条消息，按时间升序。
func (s *wellnessService) RecentHistory(ctx context.Context, userID uint, limit int) ([]model.Message, error) {
	db := s.db.WithContext(ctx)

	chat, err := s.chatRepo.FindChatByUser(db, userID)
	if err == gorm.ErrRecordNotFound {
		return []model.Message{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find chat: %w", err)
	}

	messages, err := s.chatRepo.RecentMessages(db, chat.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// GetContentItem 从内容目录查询一条健康内容（带 Redis 缓存）。
func (s *wellnessService) GetContentItem(ctx context.Context, itemID string) (*catalog.Item, error) {
	return s.catalogClient.GetItem(ctx, itemID)
}
