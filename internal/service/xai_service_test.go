package service

import (
	"context"
	"errors"
	"testing"

	"mcq_tutor_backend/internal/config"
	"mcq_tutor_backend/internal/model"
	"mcq_tutor_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubQuestionStore struct {
	questions map[uint]*model.Question
}

func (s *stubQuestionStore) FindByID(id uint) (*model.Question, error) {
	q, ok := s.questions[id]
	if !ok {
		return nil, util.ErrQuestionNotFound
	}
	return q, nil
}

type memExplanationStore struct {
	rows      []*model.Explanation
	appendErr error
}

func (s *memExplanationStore) FindActive(questionID, optionID uint, sourceTag string) (*model.Explanation, error) {
	for i := len(s.rows) - 1; i >= 0; i-- {
		row := s.rows[i]
		if row.QuestionID == questionID && row.OptionID == optionID && row.Source == sourceTag {
			return row, nil
		}
	}
	return nil, nil
}

func (s *memExplanationStore) Append(expl *model.Explanation) error {
	if s.appendErr != nil {
		return s.appendErr
	}
	s.rows = append(s.rows, expl)
	return nil
}

func option(id uint, label, text string, correct bool) model.Option {
	opt := model.Option{Label: label, Text: text, IsCorrect: correct}
	opt.ID = id
	return opt
}

func sampleQuestion() *model.Question {
	opts := []model.Option{
		option(101, "A", "Where a name is visible", true),
		option(102, "B", "How long a value stays in memory", false),
		option(103, "C", "How fast code executes", false),
		option(104, "D", "Which compiler is used", false),
	}

	q := &model.Question{
		Stem:    "What does variable scope control?",
		Options: opts,
		AnswerKey: &model.AnswerKey{
			CorrectOptionID: 101,
			CorrectOption:   &opts[0],
		},
		Lecture: &model.Lecture{
			CleanText: "Variable scope controls where a name is visible inside a program unit. " +
				"Lifetime describes how long a value stays allocated in memory during execution.",
		},
	}
	q.ID = 42
	return q
}

func newTestXAI(questions *stubQuestionStore, cache *memExplanationStore, primary, fallback LLMBackend) *XAIService {
	cfg := &config.Config{
		XAI: config.XAIConfig{
			SourceTag:             "ai_generated_v2",
			EvidenceTopK:          3,
			EvidenceMinSimilarity: 0.1,
			MaxLectureChars:       2000,
		},
	}
	retrieval := NewRetrievalService(cfg)
	generator := NewExplanationService(NewHybridRouter(primary, fallback), cfg)
	return NewXAIService(questions, cache, retrieval, generator, cfg)
}

func TestExplainGeneratesAndCaches(t *testing.T) {
	questions := &stubQuestionStore{questions: map[uint]*model.Question{42: sampleQuestion()}}
	cache := &memExplanationStore{}
	primary := &stubBackend{name: BackendOnline, reply: "Incorrect - Scope is about visibility, not duration. You likely chose this because scope and lifetime are related ideas."}

	svc := newTestXAI(questions, cache, primary, &stubBackend{name: BackendOffline})

	resp, err := svc.Explain(context.Background(), 42, "b", "", false)
	require.NoError(t, err)

	assert.False(t, resp.IsCorrect)
	assert.Equal(t, "B", resp.StudentLabel)
	assert.Equal(t, "A", resp.CorrectLabel)
	assert.Contains(t, resp.Reasoning, "Incorrect - ")
	assert.Equal(t, 1, primary.calls)

	require.Len(t, cache.rows, 1)
	assert.Equal(t, uint(42), cache.rows[0].QuestionID)
	assert.Equal(t, uint(102), cache.rows[0].OptionID)
	assert.Equal(t, "ai_generated_v2", cache.rows[0].Source)

	// 重复请求由缓存命中，不再调用模型
	again, err := svc.Explain(context.Background(), 42, "B.", "", false)
	require.NoError(t, err)
	assert.Equal(t, resp.Reasoning, again.Reasoning)
	assert.Equal(t, 1, primary.calls)
	assert.Len(t, cache.rows, 1)
}

func TestExplainVersionBumpInvalidatesCache(t *testing.T) {
	questions := &stubQuestionStore{questions: map[uint]*model.Question{42: sampleQuestion()}}
	cache := &memExplanationStore{rows: []*model.Explanation{
		{QuestionID: 42, OptionID: 102, Content: "Incorrect - stale explanation.", Source: "ai_generated_v1"},
	}}
	primary := &stubBackend{name: BackendOnline, reply: "Incorrect - Fresh explanation. You likely chose this because of the lifetime confusion."}

	svc := newTestXAI(questions, cache, primary, &stubBackend{name: BackendOffline})

	resp, err := svc.Explain(context.Background(), 42, "B", "", false)
	require.NoError(t, err)

	// 旧版本条目不命中，生成并追加新行，旧行保留
	assert.Equal(t, 1, primary.calls)
	assert.NotContains(t, resp.Reasoning, "stale")
	assert.Len(t, cache.rows, 2)
	assert.Equal(t, "ai_generated_v1", cache.rows[0].Source)
	assert.Equal(t, "ai_generated_v2", cache.rows[1].Source)
}

func TestExplainPersistFailureStillReturns(t *testing.T) {
	questions := &stubQuestionStore{questions: map[uint]*model.Question{42: sampleQuestion()}}
	cache := &memExplanationStore{appendErr: errors.New("disk full")}
	primary := &stubBackend{name: BackendOnline, reply: "Correct - Scope is about where names are visible."}

	svc := newTestXAI(questions, cache, primary, &stubBackend{name: BackendOffline})

	resp, err := svc.Explain(context.Background(), 42, "A", "", false)
	require.NoError(t, err)
	assert.True(t, resp.IsCorrect)
	assert.Contains(t, resp.Reasoning, "Correct - ")
}

func TestExplainInputErrors(t *testing.T) {
	questions := &stubQuestionStore{questions: map[uint]*model.Question{42: sampleQuestion()}}
	svc := newTestXAI(questions, &memExplanationStore{}, &stubBackend{name: BackendOnline}, &stubBackend{name: BackendOffline})

	_, err := svc.Explain(context.Background(), 42, "", "", false)
	assert.ErrorIs(t, err, util.ErrLabelNotRecognized)

	_, err = svc.Explain(context.Background(), 999, "A", "", false)
	assert.ErrorIs(t, err, util.ErrQuestionNotFound)

	// 标签合法但该题没有对应选项
	missing := sampleQuestion()
	missing.Options = missing.Options[:3]
	questions.questions[43] = missing
	_, err = svc.Explain(context.Background(), 43, "D", "", false)
	assert.ErrorIs(t, err, util.ErrOptionNotFound)

	for _, err := range []error{
		util.ErrLabelNotRecognized,
		util.ErrQuestionNotFound,
		util.ErrOptionNotFound,
		util.ErrNoCorrectLabel,
	} {
		assert.True(t, util.IsClientError(err))
	}
}

func TestExplainNoCorrectLabelIsDataIntegrityError(t *testing.T) {
	q := sampleQuestion()
	q.AnswerKey = nil
	for i := range q.Options {
		q.Options[i].IsCorrect = false
	}
	questions := &stubQuestionStore{questions: map[uint]*model.Question{42: q}}

	svc := newTestXAI(questions, &memExplanationStore{}, &stubBackend{name: BackendOnline}, &stubBackend{name: BackendOffline})

	_, err := svc.Explain(context.Background(), 42, "A", "", false)
	assert.ErrorIs(t, err, util.ErrNoCorrectLabel)
}

func TestExplainFallsBackToOptionFlag(t *testing.T) {
	q := sampleQuestion()
	q.AnswerKey = nil
	questions := &stubQuestionStore{questions: map[uint]*model.Question{42: q}}
	primary := &stubBackend{name: BackendOnline, reply: "Correct - Visibility is the point."}

	svc := newTestXAI(questions, &memExplanationStore{}, primary, &stubBackend{name: BackendOffline})

	resp, err := svc.Explain(context.Background(), 42, "A", "", false)
	require.NoError(t, err)
	assert.True(t, resp.IsCorrect)
	assert.Equal(t, "A", resp.CorrectLabel)
}

func TestExplainIncludeEvidence(t *testing.T) {
	questions := &stubQuestionStore{questions: map[uint]*model.Question{42: sampleQuestion()}}
	primary := &stubBackend{name: BackendOnline, reply: "Correct - Scope is about visibility."}

	svc := newTestXAI(questions, &memExplanationStore{}, primary, &stubBackend{name: BackendOffline})

	resp, err := svc.Explain(context.Background(), 42, "A", "", true)
	require.NoError(t, err)
	require.NotEmpty(t, resp.KeyConcepts)
	assert.Contains(t, resp.KeyConcepts[0], "scope controls where a name is visible")
}

func TestExplainStateless(t *testing.T) {
	primary := &stubBackend{name: BackendOnline, reply: "Incorrect - That describes lifetime. You likely chose this because both concern variables."}
	svc := newTestXAI(&stubQuestionStore{}, &memExplanationStore{}, primary, &stubBackend{name: BackendOffline})

	resp, err := svc.ExplainStateless(context.Background(), StatelessExplainInput{
		QuestionStem: "What does variable scope control?",
		Options: []StatelessOption{
			{Label: "A", Text: "Where a name is visible"},
			{Label: "B", Text: "How long a value stays in memory"},
		},
		CorrectLabel:    "A",
		StudentLabel:    "option b",
		LectureText:     "Variable scope controls where a name is visible inside a program unit.",
		IncludeEvidence: true,
	})
	require.NoError(t, err)

	assert.False(t, resp.IsCorrect)
	assert.Equal(t, "B", resp.StudentLabel)
	assert.Equal(t, "A", resp.CorrectLabel)
	assert.NotEmpty(t, resp.KeyConcepts)
	// 无状态模式不写缓存
}

func TestExplainStatelessIncomplete(t *testing.T) {
	svc := newTestXAI(&stubQuestionStore{}, &memExplanationStore{}, &stubBackend{name: BackendOnline}, &stubBackend{name: BackendOffline})

	_, err := svc.ExplainStateless(context.Background(), StatelessExplainInput{
		StudentLabel: "A",
	})
	assert.ErrorIs(t, err, util.ErrStatelessIncomplete)

	_, err = svc.ExplainStateless(context.Background(), StatelessExplainInput{
		QuestionStem: "Stem",
		Options:      []StatelessOption{{Label: "A", Text: "x"}},
		StudentLabel: "A",
	})
	assert.ErrorIs(t, err, util.ErrStatelessIncomplete)
}

func TestExplainForChat(t *testing.T) {
	questions := &stubQuestionStore{questions: map[uint]*model.Question{42: sampleQuestion()}}
	primary := &stubBackend{name: BackendOnline, reply: "Correct - Scope is about visibility."}

	svc := newTestXAI(questions, &memExplanationStore{}, primary, &stubBackend{name: BackendOffline})

	text, err := svc.ExplainForChat(context.Background(), 42, "A", "")
	require.NoError(t, err)
	assert.Contains(t, text, "Correct - Scope is about visibility.")
	assert.Contains(t, text, "Your answer: A. Correct answer: A.")
}
