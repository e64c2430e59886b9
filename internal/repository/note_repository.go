package repository

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"wellmind-go/internal/model"
)

// NoteRepository 定义了笔记数据的持久化操作。
type NoteRepository interface {
	// Upsert 按 (user_id, title) 创建或覆盖一条笔记。
	Upsert(db *gorm.DB, userID uint, title, content string) (*model.Note, error)
	// DeleteByTitle 删除用户指定标题的笔记，返回删除的行数。
	DeleteByTitle(db *gorm.DB, userID uint, title string) (int64, error)
	ListByUser(db *gorm.DB, userID uint) ([]model.Note, error)
}

type noteRepository struct{}

// NewNoteRepository 创建一个新的 NoteRepository 实例。
func NewNoteRepository() NoteRepository {
	return &noteRepository{}
}

// Upsert 按 (user_id, title) 创建或覆盖一条笔记。
func (r *noteRepository) Upsert(db *gorm.DB, userID uint, title, content string) (*model.Note, error) {
	var note model.Note
	err := db.Where("user_id = ? AND title = ?", userID, title).First(&note).Error
	if err == gorm.ErrRecordNotFound {
		note = model.Note{
			ID:      uuid.NewString(),
			UserID:  userID,
			Title:   title,
			Content: content,
		}
		if err := db.Create(&note).Error; err != nil {
			return nil, err
		}
		return &note, nil
	}
	if err != nil {
		return nil, err
	}

	note.Content = content
	if err := db.Save(&note).Error; err != nil {
		return nil, err
	}
	return &note, nil
}

// DeleteByTitle 删除用户指定标题的笔记。
func (r *noteRepository) DeleteByTitle(db *gorm.DB, userID uint, title string) (int64, error) {
	res := db.Where("user_id = ? AND title = ?", userID, title).Delete(&model.Note{})
	return res.RowsAffected, res.Error
}

// ListByUser 返回用户的全部笔记，按更新时间倒序。
func (r *noteRepository) ListByUser(db *gorm.DB, userID uint) ([]model.Note, error) {
	var notes []model.Note
	err := db.Where("user_id = ?", userID).Order("updated_at DESC").Find(&notes).Error
	return notes, err
}
