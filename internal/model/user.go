// Package model 定义了与数据库表对应的 Go 结构体。
package model

import "time"

// User 对应于数据库中的 'users' 表。
type User struct {
	ID       uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Username string `gorm:"type:varchar(64);uniqueIndex;not null" json:"username"`
	Password string `gorm:"type:varchar(128);not null" json:"-"`
	// DisplayName 教练对话中使用的称呼
	DisplayName string `gorm:"type:varchar(64)" json:"displayName"`
	// Goals 用户的健康目标描述，由 update_profile 工具维护
	Goals string `gorm:"type:text" json:"goals"`
	// OnboardingCompleted 首次引导流程是否完成，由 complete_onboarding 工具置位
	OnboardingCompleted bool      `gorm:"not null;default:false" json:"onboardingCompleted"`
	CreatedAt           time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt           time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (User) TableName() string {
	return "users"
}
