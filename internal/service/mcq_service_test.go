package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSONBlock(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected string
	}{
		{
			name:     "bare json",
			raw:      `{"questions": []}`,
			expected: `{"questions": []}`,
		},
		{
			name:     "json fence",
			raw:      "```json\n{\"questions\": []}\n```",
			expected: `{"questions": []}`,
		},
		{
			name:     "plain fence",
			raw:      "```\n{\"questions\": []}\n```",
			expected: `{"questions": []}`,
		},
		{
			name:     "prose around json",
			raw:      "Here you go:\n{\"questions\": []}\nHope that helps!",
			expected: `{"questions": []}`,
		},
		{
			name:     "no json at all",
			raw:      "sorry, cannot do that",
			expected: "sorry, cannot do that",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExtractJSONBlock(tt.raw))
		})
	}
}

func TestGenerateStubQuestions(t *testing.T) {
	questions := GenerateStubQuestions(3)

	require.Len(t, questions, 3)
	for _, q := range questions {
		assert.Equal(t, "A", q.CorrectLabel)
		assert.Len(t, q.Options, 4)
	}
}

func TestGenerateWithLLMShufflesAndRelabels(t *testing.T) {
	reply := "```json\n" + `{
  "questions": [
    {
      "stem": "What does variable scope control?",
      "options": [
        {"label": "A", "text": "Where a name is visible"},
        {"label": "B", "text": "How long a value stays in memory"},
        {"label": "C", "text": "How fast code executes"},
        {"label": "D", "text": "Which compiler is used"}
      ],
      "correct_label": "A"
    }
  ]
}` + "\n```"

	primary := &stubBackend{name: BackendOnline, reply: reply}
	svc := NewMCQService(nil, nil, NewHybridRouter(primary, &stubBackend{name: BackendOffline}))

	questions, err := svc.GenerateWithLLM(context.Background(), "lecture text", 1, "")
	require.NoError(t, err)
	require.Len(t, questions, 1)

	q := questions[0]
	assert.Equal(t, "What does variable scope control?", q.Stem)
	require.Len(t, q.Options, 4)

	// 标签重贴为 A-D，正确标签始终指向原正确选项文本
	labels := make([]string, 0, 4)
	correctText := ""
	for _, opt := range q.Options {
		labels = append(labels, opt.Label)
		if opt.Label == q.CorrectLabel {
			correctText = opt.Text
		}
	}
	assert.Equal(t, []string{"A", "B", "C", "D"}, labels)
	assert.Equal(t, "Where a name is visible", correctText)
}

func TestGenerateWithLLMInvalidJSON(t *testing.T) {
	primary := &stubBackend{name: BackendOnline, reply: "not json"}
	svc := NewMCQService(nil, nil, NewHybridRouter(primary, &stubBackend{name: BackendOffline}))

	_, err := svc.GenerateWithLLM(context.Background(), "lecture", 1, "")
	assert.Error(t, err)
}

func TestGenerateWithLLMBackendsExhausted(t *testing.T) {
	primary := &stubBackend{name: BackendOnline, err: assert.AnError}
	fallback := &stubBackend{name: BackendOffline, err: assert.AnError}
	svc := NewMCQService(nil, nil, NewHybridRouter(primary, fallback))

	_, err := svc.GenerateWithLLM(context.Background(), "lecture", 1, "")
	assert.ErrorContains(t, err, "all model backends unavailable")
}

func TestGenerateWithLLMUnmatchedCorrectLabel(t *testing.T) {
	reply := `{"questions": [{"stem": "S", "options": [{"label": "A", "text": "x"}], "correct_label": "B"}]}`
	primary := &stubBackend{name: BackendOnline, reply: reply}
	svc := NewMCQService(nil, nil, NewHybridRouter(primary, &stubBackend{name: BackendOffline}))

	_, err := svc.GenerateWithLLM(context.Background(), "lecture", 1, "")
	assert.ErrorContains(t, err, "no matching correct option label")
}
