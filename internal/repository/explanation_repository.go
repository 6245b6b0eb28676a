package repository

import (
	"errors"
	"mcq_tutor_backend/internal/model"

	"gorm.io/gorm"
)

// ExplanationRepository 解释缓存的持久层。
// 只追加：Append 永远插入新行；FindActive 只匹配当前版本标签，
// 升版本即让旧行全部失效，无需迁移或批量删除。
type ExplanationRepository struct {
	DB *gorm.DB
}

func NewExplanationRepository(db *gorm.DB) *ExplanationRepository {
	return &ExplanationRepository{DB: db}
}

// FindActive 查找 (question, option) 在指定版本标签下最新的解释。
// 未命中返回 (nil, nil)，调用方据此走生成路径。
func (r *ExplanationRepository) FindActive(questionID, optionID uint, sourceTag string) (*model.Explanation, error) {
	var expl model.Explanation
	err := r.DB.
		Where("question_id = ? AND option_id = ? AND source = ?", questionID, optionID, sourceTag).
		Order("created_at DESC").
		First(&expl).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &expl, nil
}

// Append 插入新解释行，从不覆盖既有行
func (r *ExplanationRepository) Append(expl *model.Explanation) error {
	return r.DB.Create(expl).Error
}
