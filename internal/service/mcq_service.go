package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"

	"mcq_tutor_backend/internal/model"
	"mcq_tutor_backend/internal/repository"
	"mcq_tutor_backend/internal/util"
)

// GeneratedOption LLM 生成的单个选项
type GeneratedOption struct {
	Label string `json:"label"`
	Text  string `json:"text"`
}

// GeneratedQuestion LLM 生成的单道题
type GeneratedQuestion struct {
	Stem         string            `json:"stem"`
	Options      []GeneratedOption `json:"options"`
	CorrectLabel string            `json:"correct_label"`
}

// MCQGenerateInput 出题请求
type MCQGenerateInput struct {
	LectureID    uint
	SectionID    *uint
	LectureText  string
	NumQuestions int
	UseStub      bool
	Backend      string
}

// MCQService 基于讲义文本出题并入库
type MCQService struct {
	lectureRepo  *repository.LectureRepository
	questionRepo *repository.QuestionRepository
	router       *HybridRouter
}

func NewMCQService(lectureRepo *repository.LectureRepository, questionRepo *repository.QuestionRepository, router *HybridRouter) *MCQService {
	return &MCQService{
		lectureRepo:  lectureRepo,
		questionRepo: questionRepo,
		router:       router,
	}
}

// ExtractJSONBlock 从模型回复中抽取 JSON 片段。
// 兼容 ```json 围栏、JSON 前后混杂说明文字的情况，取首个 '{' 到末个 '}'。
func ExtractJSONBlock(raw string) string {
	text := strings.TrimSpace(raw)

	if strings.HasPrefix(text, "```") {
		lines := strings.Split(text, "\n")
		if len(lines) > 0 {
			lines = lines[1:]
		}
		if len(lines) > 0 && strings.HasPrefix(strings.TrimSpace(lines[len(lines)-1]), "```") {
			lines = lines[:len(lines)-1]
		}
		text = strings.TrimSpace(strings.Join(lines, "\n"))
	}

	first := strings.Index(text, "{")
	last := strings.LastIndex(text, "}")
	if first != -1 && last > first {
		return text[first : last+1]
	}
	return text
}

// GenerateStubQuestions 返回确定性的占位题目，供离线联调使用
func GenerateStubQuestions(numQuestions int) []GeneratedQuestion {
	q := GeneratedQuestion{
		Stem: "Which concept best describes the placeholder lecture topic?",
		Options: []GeneratedOption{
			{Label: "A", Text: "Correct concept (stub)"},
			{Label: "B", Text: "Distractor 1"},
			{Label: "C", Text: "Distractor 2"},
			{Label: "D", Text: "Distractor 3"},
		},
		CorrectLabel: "A",
	}

	questions := make([]GeneratedQuestion, 0, numQuestions)
	for i := 0; i < numQuestions; i++ {
		questions = append(questions, q)
	}
	return questions
}

const mcqSystemPrompt = "You are an expert university MCQ writer. Generate clear questions with exactly four " +
	"options (labels A-D) and only one correct answer. Respond with JSON only."

const mcqSchemaExample = `{
  "questions": [
    {
      "stem": "question text",
      "options": [
        {"label": "A", "text": "..."},
        {"label": "B", "text": "..."},
        {"label": "C", "text": "..."},
        {"label": "D", "text": "..."}
      ],
      "correct_label": "A"
    }
  ]
}`

// GenerateWithLLM 调用模型出题并解析回复。
// 解析成功后打乱选项并按新顺序重贴 A-D 标签，避免正确答案总在 A。
func (s *MCQService) GenerateWithLLM(ctx context.Context, lectureText string, numQuestions int, backend string) ([]GeneratedQuestion, error) {
	userPrompt := fmt.Sprintf(
		"Lecture text:\n%s\n\nGenerate %d high-quality MCQs about the material above. "+
			"Each MCQ must contain exactly four options (A-D) and one `correct_label`.\n\n"+
			"Return JSON following this schema exactly:\n%s",
		lectureText, numQuestions, mcqSchemaExample,
	)

	raw := s.router.Call(ctx, mcqSystemPrompt, userPrompt, backend)
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("MCQ generation failed: all model backends unavailable")
	}

	var parsed struct {
		Questions []GeneratedQuestion `json:"questions"`
	}
	if err := json.Unmarshal([]byte(ExtractJSONBlock(raw)), &parsed); err != nil {
		return nil, fmt.Errorf("model returned invalid JSON for MCQ generation: %w", err)
	}
	if len(parsed.Questions) == 0 {
		return nil, fmt.Errorf("model response missing a valid questions list")
	}

	results := make([]GeneratedQuestion, 0, len(parsed.Questions))
	for _, item := range parsed.Questions {
		shuffled, err := shuffleAndRelabel(item)
		if err != nil {
			return nil, err
		}
		results = append(results, shuffled)
	}
	return results, nil
}

func shuffleAndRelabel(item GeneratedQuestion) (GeneratedQuestion, error) {
	if item.Stem == "" || len(item.Options) == 0 {
		return GeneratedQuestion{}, fmt.Errorf("generated MCQ has an unexpected structure")
	}

	options := make([]GeneratedOption, len(item.Options))
	copy(options, item.Options)
	rand.Shuffle(len(options), func(i, j int) {
		options[i], options[j] = options[j], options[i]
	})

	relabelled := make([]GeneratedOption, 0, len(options))
	newCorrect := ""
	for i, opt := range options {
		newLabel := string(rune('A' + i))
		relabelled = append(relabelled, GeneratedOption{Label: newLabel, Text: opt.Text})
		if opt.Label == item.CorrectLabel {
			newCorrect = newLabel
		}
	}

	if newCorrect == "" {
		return GeneratedQuestion{}, fmt.Errorf("generated MCQ has no matching correct option label")
	}

	return GeneratedQuestion{
		Stem:         item.Stem,
		Options:      relabelled,
		CorrectLabel: newCorrect,
	}, nil
}

// ResolveLectureText 确定出题素材：请求自带文本优先，
// 否则取指定小节内容，再退回按序拼接的全部小节或整篇清洗文本。
func (s *MCQService) ResolveLectureText(input MCQGenerateInput) (string, error) {
	if strings.TrimSpace(input.LectureText) != "" {
		return input.LectureText, nil
	}

	lecture, err := s.lectureRepo.FindByID(input.LectureID)
	if err != nil {
		return "", err
	}

	if input.SectionID != nil {
		for _, section := range lecture.Sections {
			if section.ID == *input.SectionID {
				return section.Content, nil
			}
		}
		return "", util.ErrSectionNotFound
	}

	if len(lecture.Sections) > 0 {
		parts := make([]string, 0, len(lecture.Sections))
		for _, section := range lecture.Sections {
			parts = append(parts, section.Content)
		}
		return strings.Join(parts, "\n\n"), nil
	}

	return lecture.CleanText, nil
}

// GenerateAndSave 出题并整批入库，返回持久化后的题目 ID
func (s *MCQService) GenerateAndSave(ctx context.Context, input MCQGenerateInput) ([]uint, []GeneratedQuestion, error) {
	if input.NumQuestions <= 0 {
		input.NumQuestions = 3
	}

	var (
		questions []GeneratedQuestion
		err       error
	)
	if input.UseStub {
		questions = GenerateStubQuestions(input.NumQuestions)
	} else {
		lectureText, rerr := s.ResolveLectureText(input)
		if rerr != nil {
			return nil, nil, rerr
		}
		questions, err = s.GenerateWithLLM(ctx, lectureText, input.NumQuestions, input.Backend)
		if err != nil {
			return nil, nil, err
		}
	}

	ids := make([]uint, 0, len(questions))
	for _, gq := range questions {
		question := &model.Question{
			LectureID:  input.LectureID,
			SectionID:  input.SectionID,
			Stem:       gq.Stem,
			Difficulty: "medium",
		}

		options := make([]model.Option, 0, len(gq.Options))
		for _, opt := range gq.Options {
			options = append(options, model.Option{
				Label:     opt.Label,
				Text:      opt.Text,
				IsCorrect: opt.Label == gq.CorrectLabel,
			})
		}

		if err := s.questionRepo.CreateWithOptions(question, options, gq.CorrectLabel); err != nil {
			return nil, nil, err
		}
		ids = append(ids, question.ID)
	}

	return ids, questions, nil
}

// ListQuestions 按讲义（可选小节）列出题目
func (s *MCQService) ListQuestions(lectureID uint, sectionID *uint) ([]model.Question, error) {
	return s.questionRepo.ListByLecture(lectureID, sectionID)
}

// GetQuestion 取单题及其选项与答案键
func (s *MCQService) GetQuestion(id uint) (*model.Question, error) {
	return s.questionRepo.FindByID(id)
}
