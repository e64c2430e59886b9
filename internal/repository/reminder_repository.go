package repository

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"wellmind-go/internal/model"
)

// ReminderRepository 定义了随访提醒的持久化操作。
type ReminderRepository interface {
	Create(db *gorm.DB, userID uint, message string, remindAt time.Time) (*model.Reminder, error)
	// Cancel 将用户的一条待触发提醒置为 cancelled，返回受影响行数。
	Cancel(db *gorm.DB, userID uint, reminderID string) (int64, error)
	ListByUser(db *gorm.DB, userID uint) ([]model.Reminder, error)
	// DuePending 返回 remind_at 不晚于 t 的全部待触发提醒。
	DuePending(db *gorm.DB, t time.Time) ([]model.Reminder, error)
	MarkSent(db *gorm.DB, reminderID string) error
}

type reminderRepository struct{}

// NewReminderRepository 创建一个新的 ReminderRepository 实例。
func NewReminderRepository() ReminderRepository {
	return &reminderRepository{}
}

// Create 创建一条待触发提醒。
func (r *reminderRepository) Create(db *gorm.DB, userID uint, message string, remindAt time.Time) (*model.Reminder, error) {
	reminder := model.Reminder{
		ID:       uuid.NewString(),
		UserID:   userID,
		Message:  message,
		RemindAt: remindAt,
		Status:   model.ReminderStatusPending,
	}
	if err := db.Create(&reminder).Error; err != nil {
		return nil, err
	}
	return &reminder, nil
}

// Cancel 将用户的一条待触发提醒置为 cancelled。
func (r *reminderRepository) Cancel(db *gorm.DB, userID uint, reminderID string) (int64, error) {
	res := db.Model(&model.Reminder{}).
		Where("id = ? AND user_id = ? AND status = ?", reminderID, userID, model.ReminderStatusPending).
		Update("status", model.ReminderStatusCancelled)
	return res.RowsAffected, res.Error
}

// ListByUser 返回用户的全部提醒，按触发时间升序。
func (r *reminderRepository) ListByUser(db *gorm.DB, userID uint) ([]model.Reminder, error) {
	var reminders []model.Reminder
	err := db.Where("user_id = ?", userID).Order("remind_at ASC").Find(&reminders).Error
	return reminders, err
}

// DuePending 返回已到期的待触发提醒。
func (r *reminderRepository) DuePending(db *gorm.DB, t time.Time) ([]model.Reminder, error) {
	var reminders []model.Reminder
	err := db.Where("status = ? AND remind_at <= ?", model.ReminderStatusPending, t).
		Order("remind_at ASC").Find(&reminders).Error
	return reminders, err
}

// MarkSent 将提醒标记为已投递。
func (r *reminderRepository) MarkSent(db *gorm.DB, reminderID string) error {
	return db.Model(&model.Reminder{}).Where("id = ?", reminderID).
		Update("status", model.ReminderStatusSent).Error
}
