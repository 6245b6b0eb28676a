package model

// Question MCQ 题干与元数据
// swagger:model Question
type Question struct {
	BaseModel
	LectureID  uint   `gorm:"index;not null" json:"lectureId"`
	SectionID  *uint  `gorm:"index" json:"sectionId,omitempty"`
	Stem       string `gorm:"type:text;not null" json:"stem"`
	Difficulty string `gorm:"size:50;default:'medium'" json:"difficulty"`

	Lecture   *Lecture   `gorm:"foreignKey:LectureID" json:"-"`
	Options   []Option   `gorm:"foreignKey:QuestionID" json:"options,omitempty"`
	AnswerKey *AnswerKey `gorm:"foreignKey:QuestionID" json:"answerKey,omitempty"`
}

func (Question) TableName() string {
	return "questions"
}

// Option 题目的单个选项，label 取 A-D
// swagger:model Option
type Option struct {
	BaseModel
	QuestionID uint   `gorm:"index;not null" json:"questionId"`
	Label      string `gorm:"size:5;not null" json:"label"`
	Text       string `gorm:"size:512;not null" json:"text"`
	IsCorrect  bool   `gorm:"default:false" json:"isCorrect"`
}

func (Option) TableName() string {
	return "options"
}

// AnswerKey 题目的标准答案引用（每题唯一）
// swagger:model AnswerKey
type AnswerKey struct {
	BaseModel
	QuestionID      uint    `gorm:"uniqueIndex;not null" json:"questionId"`
	CorrectOptionID uint    `gorm:"not null" json:"correctOptionId"`
	CorrectOption   *Option `gorm:"foreignKey:CorrectOptionID" json:"correctOption,omitempty"`
}

func (AnswerKey) TableName() string {
	return "answer_keys"
}
