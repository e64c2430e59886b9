package model

import "time"

// 提醒状态枚举。
const (
	ReminderStatusPending   = "pending"
	ReminderStatusCancelled = "cancelled"
	ReminderStatusSent      = "sent"
)

// Reminder 对应于数据库中的 'reminders' 表，表示一条随访提醒。
// 到期投递由外部推送子系统完成，本服务只负责状态流转与事件发布。
type Reminder struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID    uint      `gorm:"index;not null" json:"userId"`
	Message   string    `gorm:"type:text;not null" json:"message"`
	RemindAt  time.Time `gorm:"index;not null" json:"remindAt"`
	Status    string    `gorm:"type:varchar(16);not null;default:'pending'" json:"status"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Reminder) TableName() string {
	return "reminders"
}
