package model

// Lecture 已处理、可用于出题的讲义
// swagger:model Lecture
type Lecture struct {
	BaseModel
	Title     string `gorm:"size:255;not null" json:"title"`
	RawText   string `gorm:"type:longtext;not null" json:"-"`
	CleanText string `gorm:"type:longtext;not null" json:"-"`
	// FileURL 原始上传文件的归档地址（本地或 MinIO）
	FileURL  string `gorm:"size:512" json:"fileUrl"`
	IsActive bool   `gorm:"default:true" json:"isActive"`

	Sections  []Section  `gorm:"foreignKey:LectureID" json:"sections,omitempty"`
	Questions []Question `gorm:"foreignKey:LectureID" json:"-"`
}

func (Lecture) TableName() string {
	return "lectures"
}

// Section 讲义的逻辑子段（段落、小节）
// swagger:model Section
type Section struct {
	BaseModel
	LectureID  uint   `gorm:"index;not null" json:"lectureId"`
	Heading    string `gorm:"size:255" json:"heading"`
	Content    string `gorm:"type:text;not null" json:"content"`
	OrderIndex int    `gorm:"not null" json:"orderIndex"`
}

func (Section) TableName() string {
	return "sections"
}
