package service

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"mcq_tutor_backend/internal/config"
	"mcq_tutor_backend/internal/model"
	"mcq_tutor_backend/internal/util"
	"mcq_tutor_backend/pkg/logger"
	"mcq_tutor_backend/pkg/monitoring"

	"go.uber.org/zap"
)

// QuestionStore 题目存取能力，编排器只需要按 ID 取题
type QuestionStore interface {
	FindByID(id uint) (*model.Question, error)
}

// ExplanationStore 追加写的解释缓存
type ExplanationStore interface {
	FindActive(questionID, optionID uint, sourceTag string) (*model.Explanation, error)
	Append(expl *model.Explanation) error
}

// VerdictResponse 判题结果，REST 与会话层共用
type VerdictResponse struct {
	IsCorrect    bool     `json:"is_correct"`
	StudentLabel string   `json:"student_label"`
	CorrectLabel string   `json:"correct_label"`
	Reasoning    string   `json:"reasoning"`
	KeyConcepts  []string `json:"key_concepts"`
	ReviewTopics []string `json:"review_topics"`
}

// StatelessOption 无状态判题请求中的单个选项
type StatelessOption struct {
	Label string `json:"label"`
	Text  string `json:"text"`
}

// StatelessExplainInput 无状态模式入参，题目内容全部由调用方提供
type StatelessExplainInput struct {
	QuestionStem    string
	Options         []StatelessOption
	CorrectLabel    string
	StudentLabel    string
	LectureText     string
	IncludeEvidence bool
	Backend         string
}

// XAIService 解释流程编排器：归一化 → 取题 → 查缓存 → 检索 → 生成 → 落库
type XAIService struct {
	questions    QuestionStore
	explanations ExplanationStore
	retrieval    *RetrievalService
	generator    *ExplanationService

	mu        sync.RWMutex
	sourceTag string
}

func NewXAIService(
	questions QuestionStore,
	explanations ExplanationStore,
	retrieval *RetrievalService,
	generator *ExplanationService,
	cfg *config.Config,
) *XAIService {
	return &XAIService{
		questions:    questions,
		explanations: explanations,
		retrieval:    retrieval,
		generator:    generator,
		sourceTag:    cfg.XAI.SourceTag,
	}
}

var defaultReviewTopics = []string{"Review the definition/idea and compare it to the correct option."}

// SetSourceTag 运行时切换缓存版本标签。升级标签后所有旧解释立即失效，
// 下次请求重新生成，历史行保留在表里。
func (s *XAIService) SetSourceTag(tag string) {
	if tag == "" {
		return
	}
	s.mu.Lock()
	s.sourceTag = tag
	s.mu.Unlock()
}

func (s *XAIService) activeSourceTag() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sourceTag
}

// Explain 判定学生作答并返回选项级解释。缓存命中时不再调用模型，
// 同一 (question_id, option_id, source_tag) 的重复请求返回缓存内容。
func (s *XAIService) Explain(ctx context.Context, questionID uint, rawLabel, backend string, includeEvidence bool) (*VerdictResponse, error) {
	studentLabel := util.NormalizeLabel(rawLabel)
	if studentLabel == "" {
		return nil, fmt.Errorf("%w: %q", util.ErrLabelNotRecognized, rawLabel)
	}

	question, err := s.questions.FindByID(questionID)
	if err != nil {
		return nil, err
	}
	if len(question.Options) == 0 {
		return nil, fmt.Errorf("%w: question %d", util.ErrQuestionNoOptions, questionID)
	}

	correctLabel, correctOption := resolveCorrectOption(question)
	if correctLabel == "" {
		return nil, fmt.Errorf("%w: question %d", util.ErrNoCorrectLabel, questionID)
	}

	selected := findOptionByLabel(question.Options, studentLabel)
	if selected == nil {
		return nil, fmt.Errorf("%w: %q for question %d", util.ErrOptionNotFound, studentLabel, questionID)
	}

	isCorrect := studentLabel == correctLabel

	lectureText := ""
	if question.Lecture != nil {
		lectureText = question.Lecture.CleanText
	}

	correctText := ""
	if correctOption != nil {
		correctText = correctOption.Text
	}

	sourceTag := s.activeSourceTag()
	reasoning := ""
	cached, err := s.explanations.FindActive(questionID, selected.ID, sourceTag)
	if err != nil {
		logger.Log.Warn("explanation cache lookup failed",
			zap.Uint("question_id", questionID),
			zap.Error(err))
	}

	if cached != nil {
		monitoring.ExplanationCacheLookups.WithLabelValues("hit").Inc()
		reasoning = cached.Content
	} else {
		monitoring.ExplanationCacheLookups.WithLabelValues("miss").Inc()

		var evidence []Evidence
		if lectureText != "" {
			evidence = s.retrieval.Retrieve(lectureText, evidenceQuery(question.Stem, correctText))
		}

		reasoning = s.generator.Generate(ctx, ExplanationRequest{
			LectureText:       lectureText,
			QuestionStem:      question.Stem,
			StudentOptionText: selected.Text,
			CorrectOptionText: correctText,
			IsCorrect:         isCorrect,
			Evidence:          evidence,
			BackendPreference: backend,
		})

		if err := s.explanations.Append(&model.Explanation{
			QuestionID: questionID,
			OptionID:   selected.ID,
			Content:    reasoning,
			Source:     sourceTag,
		}); err != nil {
			// 落库失败不影响本次响应
			logger.Log.Warn("failed to persist explanation",
				zap.Uint("question_id", questionID),
				zap.Uint("option_id", selected.ID),
				zap.Error(err))
		}
	}

	resp := &VerdictResponse{
		IsCorrect:    isCorrect,
		StudentLabel: studentLabel,
		CorrectLabel: correctLabel,
		Reasoning:    reasoning,
		KeyConcepts:  []string{},
		ReviewTopics: defaultReviewTopics,
	}

	if includeEvidence && lectureText != "" {
		resp.KeyConcepts = evidenceSentences(s.retrieval.Retrieve(lectureText, evidenceQuery(question.Stem, correctText)))
	}

	return resp, nil
}

// ExplainStateless 处理调用方自带题目内容的判题请求，不读写缓存
func (s *XAIService) ExplainStateless(ctx context.Context, input StatelessExplainInput) (*VerdictResponse, error) {
	if strings.TrimSpace(input.QuestionStem) == "" || len(input.Options) == 0 {
		return nil, fmt.Errorf("%w: question_stem and options are required", util.ErrStatelessIncomplete)
	}

	studentLabel := util.NormalizeLabel(input.StudentLabel)
	if studentLabel == "" {
		return nil, fmt.Errorf("%w: %q", util.ErrLabelNotRecognized, input.StudentLabel)
	}

	correctLabel := util.NormalizeLabel(input.CorrectLabel)
	if correctLabel == "" {
		return nil, fmt.Errorf("%w: correct_label is required", util.ErrStatelessIncomplete)
	}

	studentText, correctText := "", ""
	studentFound := false
	for _, opt := range input.Options {
		label := util.NormalizeLabel(opt.Label)
		if label == studentLabel {
			studentText = opt.Text
			studentFound = true
		}
		if label == correctLabel {
			correctText = opt.Text
		}
	}
	if !studentFound {
		return nil, fmt.Errorf("%w: %q", util.ErrOptionNotFound, input.StudentLabel)
	}

	isCorrect := studentLabel == correctLabel

	var evidence []Evidence
	if input.LectureText != "" {
		evidence = s.retrieval.Retrieve(input.LectureText, evidenceQuery(input.QuestionStem, correctText))
	}

	reasoning := s.generator.Generate(ctx, ExplanationRequest{
		LectureText:       input.LectureText,
		QuestionStem:      input.QuestionStem,
		StudentOptionText: studentText,
		CorrectOptionText: correctText,
		IsCorrect:         isCorrect,
		Evidence:          evidence,
		BackendPreference: input.Backend,
	})

	resp := &VerdictResponse{
		IsCorrect:    isCorrect,
		StudentLabel: studentLabel,
		CorrectLabel: correctLabel,
		Reasoning:    reasoning,
		KeyConcepts:  []string{},
		ReviewTopics: defaultReviewTopics,
	}
	if input.IncludeEvidence {
		resp.KeyConcepts = evidenceSentences(evidence)
	}
	return resp, nil
}

// ExplainForChat 供会话层调用，把判题结果拼成单条消息文本
func (s *XAIService) ExplainForChat(ctx context.Context, questionID uint, rawLabel, backend string) (string, error) {
	resp, err := s.Explain(ctx, questionID, rawLabel, backend, false)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(resp.Reasoning)
	fmt.Fprintf(&b, "\n\nYour answer: %s. Correct answer: %s.", resp.StudentLabel, resp.CorrectLabel)
	return b.String(), nil
}

func evidenceQuery(stem, correctText string) string {
	return stem + "\nCorrect answer: " + correctText
}

func evidenceSentences(evidence []Evidence) []string {
	out := make([]string, 0, len(evidence))
	for _, ev := range evidence {
		out = append(out, ev.Sentence)
	}
	return out
}

// resolveCorrectOption 优先使用答案键，缺失时回退到选项上的 is_correct 标记
func resolveCorrectOption(q *model.Question) (string, *model.Option) {
	if q.AnswerKey != nil && q.AnswerKey.CorrectOption != nil {
		label := util.NormalizeLabel(q.AnswerKey.CorrectOption.Label)
		if label != "" {
			return label, q.AnswerKey.CorrectOption
		}
	}

	for i := range q.Options {
		if q.Options[i].IsCorrect {
			label := util.NormalizeLabel(q.Options[i].Label)
			if label != "" {
				return label, &q.Options[i]
			}
		}
	}
	return "", nil
}

func findOptionByLabel(options []model.Option, label string) *model.Option {
	for i := range options {
		if util.NormalizeLabel(options[i].Label) == label {
			return &options[i]
		}
	}
	return nil
}
