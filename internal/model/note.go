package model

import "time"

// Note 对应于数据库中的 'notes' 表。
// 笔记按 (user_id, title) 维度做 upsert，由对话工具维护。
type Note struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID    uint      `gorm:"uniqueIndex:idx_notes_user_title;not null" json:"userId"`
	Title     string    `gorm:"type:varchar(255);uniqueIndex:idx_notes_user_title;not null" json:"title"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Note) TableName() string {
	return "notes"
}
