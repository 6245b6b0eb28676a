package repository

import (
	"errors"
	"mcq_tutor_backend/internal/model"
	"mcq_tutor_backend/internal/util"

	"gorm.io/gorm"
)

type QuestionRepository struct {
	DB *gorm.DB
}

func NewQuestionRepository(db *gorm.DB) *QuestionRepository {
	return &QuestionRepository{DB: db}
}

// FindByID 加载题目及其选项、答案引用和所属讲义
func (r *QuestionRepository) FindByID(id uint) (*model.Question, error) {
	var question model.Question
	err := r.DB.
		Preload("Options").
		Preload("AnswerKey.CorrectOption").
		Preload("Lecture").
		First(&question, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrQuestionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &question, nil
}

// ListByLecture 按讲义（可选按小节）列出题目
func (r *QuestionRepository) ListByLecture(lectureID uint, sectionID *uint) ([]model.Question, error) {
	var questions []model.Question
	db := r.DB.
		Preload("Options").
		Preload("AnswerKey.CorrectOption").
		Where("lecture_id = ?", lectureID).
		Order("created_at DESC")

	if sectionID != nil {
		db = db.Where("section_id = ?", *sectionID)
	}

	err := db.Find(&questions).Error
	return questions, err
}

// CreateWithOptions 一个事务内创建题目、选项和答案引用。
// correctLabel 必须匹配某个选项的 label，否则整个事务回滚。
func (r *QuestionRepository) CreateWithOptions(question *model.Question, options []model.Option, correctLabel string) error {
	if len(options) == 0 {
		return util.ErrQuestionNoOptions
	}
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(question).Error; err != nil {
			return err
		}

		for i := range options {
			options[i].QuestionID = question.ID
		}
		if err := tx.Create(&options).Error; err != nil {
			return err
		}

		var correct *model.Option
		for i := range options {
			if options[i].Label == correctLabel {
				correct = &options[i]
				break
			}
		}
		if correct == nil {
			return util.ErrNoCorrectLabel
		}

		answerKey := model.AnswerKey{
			QuestionID:      question.ID,
			CorrectOptionID: correct.ID,
		}
		return tx.Create(&answerKey).Error
	})
}
