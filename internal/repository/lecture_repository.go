package repository

import (
	"errors"

	"mcq_tutor_backend/internal/model"
	"mcq_tutor_backend/internal/util"

	"gorm.io/gorm"
)

type LectureRepository struct {
	DB *gorm.DB
}

func NewLectureRepository(db *gorm.DB) *LectureRepository {
	return &LectureRepository{DB: db}
}

// CreateWithSections 一个事务内写入讲义和所有小节
func (r *LectureRepository) CreateWithSections(lecture *model.Lecture, sections []model.Section) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(lecture).Error; err != nil {
			return err
		}
		for i := range sections {
			sections[i].LectureID = lecture.ID
		}
		if len(sections) > 0 {
			if err := tx.Create(&sections).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// ListActive 按创建时间倒序列出未删除的讲义
func (r *LectureRepository) ListActive() ([]model.Lecture, error) {
	var lectures []model.Lecture
	err := r.DB.Where("is_active = ?", true).
		Order("created_at DESC").
		Find(&lectures).Error
	return lectures, err
}

func (r *LectureRepository) FindByID(id uint) (*model.Lecture, error) {
	var lecture model.Lecture
	err := r.DB.Preload("Sections", func(db *gorm.DB) *gorm.DB {
		return db.Order("sections.order_index ASC")
	}).First(&lecture, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrLectureNotFound
	}
	if err != nil {
		return nil, err
	}
	return &lecture, nil
}

// SoftDelete 标记讲义不可用（不物理删除）
func (r *LectureRepository) SoftDelete(id uint) error {
	result := r.DB.Model(&model.Lecture{}).
		Where("id = ?", id).
		Update("is_active", false)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return util.ErrLectureNotFound
	}
	return nil
}
