package model

// Explanation （题目, 选项）维度的解释缓存行。
// 追加式存储：同一 (question_id, option_id) 在不同 source 版本下各有历史行，
// 查询时按当前 source 标签过滤、取最新一条；核心代码从不更新或删除。
// (question_id, option_id, source) 不加唯一约束，并发生成允许重复行。
// swagger:model Explanation
type Explanation struct {
	BaseModel
	QuestionID uint   `gorm:"index:idx_expl_question_option;not null" json:"questionId"`
	OptionID   uint   `gorm:"index:idx_expl_question_option;not null" json:"optionId"`
	Content    string `gorm:"type:text;not null" json:"content"`
	Source     string `gorm:"size:100;index" json:"source"`
}

func (Explanation) TableName() string {
	return "explanations"
}
