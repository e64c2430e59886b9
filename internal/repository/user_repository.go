// Package repository 定义了与数据库进行数据交换的接口和实现。
// 所有方法都显式接收一个 *gorm.DB 句柄（事务或基础连接），
// 事务边界由调用方（service 层）负责。
package repository

import (
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"wellmind-go/internal/model"
)

// UserRepository 接口定义了用户数据的持久化操作。
type UserRepository interface {
	Create(db *gorm.DB, user *model.User) error
	// EnsureUser 按 ID 幂等地确保用户行存在，已存在时不做任何修改。
	EnsureUser(db *gorm.DB, userID uint) (*model.User, error)
	FindByUsername(db *gorm.DB, username string) (*model.User, error)
	FindByID(db *gorm.DB, userID uint) (*model.User, error)
	UpdateProfile(db *gorm.DB, userID uint, displayName, goals string) error
	CompleteOnboarding(db *gorm.DB, userID uint) error
}

// userRepository 是 UserRepository 接口的 GORM 实现。
type userRepository struct{}

// NewUserRepository 创建一个新的 UserRepository 实例。
func NewUserRepository() UserRepository {
	return &userRepository{}
}

// Create 在数据库中创建一个新的用户记录。
func (r *userRepository) Create(db *gorm.DB, user *model.User) error {
	return db.Create(user).Error
}

// EnsureUser 幂等地确保指定 ID 的用户行存在。
// 行不存在时以占位用户名创建（令牌先于本地注册到达的场景）。
func (r *userRepository) EnsureUser(db *gorm.DB, userID uint) (*model.User, error) {
	user := model.User{ID: userID, Username: fmt.Sprintf("user-%d", userID)}
	err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&user).Error
	if err != nil {
		return nil, err
	}
	// 重新读取，保证返回已存在行的完整字段
	var out model.User
	if err := db.First(&out, userID).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

// FindByUsername 根据用户名从数据库中查找一个用户。
func (r *userRepository) FindByUsername(db *gorm.DB, username string) (*model.User, error) {
	var user model.User
	err := db.Where("username = ?", username).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByID 根据用户 ID 从数据库中查找一个用户。
func (r *userRepository) FindByID(db *gorm.DB, userID uint) (*model.User, error) {
	var user model.User
	err := db.First(&user, userID).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateProfile 更新用户的称呼与目标描述，空串字段保持不变。
func (r *userRepository) UpdateProfile(db *gorm.DB, userID uint, displayName, goals string) error {
	updates := map[string]interface{}{}
	if displayName != "" {
		updates["display_name"] = displayName
	}
	if goals != "" {
		updates["goals"] = goals
	}
	if len(updates) == 0 {
		return nil
	}
	return db.Model(&model.User{}).Where("id = ?", userID).Updates(updates).Error
}

// CompleteOnboarding 将用户的引导完成标记置位。
func (r *userRepository) CompleteOnboarding(db *gorm.DB, userID uint) error {
	return db.Model(&model.User{}).Where("id = ?", userID).
		Update("onboarding_completed", true).Error
}
