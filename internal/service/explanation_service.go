package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"mcq_tutor_backend/internal/config"
)

// ExplanationRequest 生成单条解释所需的全部上下文。
// IsCorrect 由调用方依据标准答案判定，模型输出的对错断言一律不信任。
type ExplanationRequest struct {
	LectureText       string
	QuestionStem      string
	StudentOptionText string
	CorrectOptionText string
	IsCorrect         bool
	Evidence          []Evidence
	BackendPreference string
}

// ExplanationService 调用模型生成选项级解释并强制统一输出格式
type ExplanationService struct {
	router          *HybridRouter
	maxLectureChars int
}

func NewExplanationService(router *HybridRouter, cfg *config.Config) *ExplanationService {
	return &ExplanationService{
		router:          router,
		maxLectureChars: cfg.XAI.MaxLectureChars,
	}
}

const explanationSystemPrompt = `You are an AI tutor explaining MCQ answers.
Your task is to generate VERY concise explanations (1-2 sentences max).
Format your response EXACTLY as:
- For correct answers: "Correct - [one sentence explanation]"
- For incorrect answers: "Incorrect - [one sentence]. You likely chose this because [one sentence]"

DO NOT add any other text. DO NOT mention the format instructions.
DO NOT reveal the correct answer letter (A/B/C/D).`

// Generate 返回形如 "Correct - ..." / "Incorrect - ... You likely chose this because ..." 的解释。
// 任何失败都降级为模板字符串，绝不向编排层返回错误。
func (s *ExplanationService) Generate(ctx context.Context, req ExplanationRequest) string {
	if strings.TrimSpace(req.LectureText) == "" && len(req.Evidence) == 0 {
		return s.ruleBasedFallback(req.IsCorrect)
	}

	raw := s.router.Call(ctx, explanationSystemPrompt, s.buildUserPrompt(req), req.BackendPreference)
	if strings.TrimSpace(raw) == "" {
		return s.errorFallback(req.IsCorrect, "all model backends unavailable")
	}

	return repairVerdict(raw, req.IsCorrect)
}

// buildUserPrompt 按对错分支构造提示词。
// 答错分支刻意不给出正确选项内容，防止模型在解释里泄露答案。
func (s *ExplanationService) buildUserPrompt(req ExplanationRequest) string {
	var b strings.Builder

	lecture := req.LectureText
	if len(lecture) > s.maxLectureChars {
		lecture = lecture[:s.maxLectureChars]
	}
	if strings.TrimSpace(lecture) != "" {
		fmt.Fprintf(&b, "LECTURE CONTENT:\n%s\n\n", lecture)
	}

	if len(req.Evidence) > 0 {
		b.WriteString("RELEVANT LECTURE SENTENCES:\n")
		for _, ev := range req.Evidence {
			fmt.Fprintf(&b, "- %q\n", ev.Sentence)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "QUESTION: %s\n\n", req.QuestionStem)

	if req.IsCorrect {
		fmt.Fprintf(&b, "STUDENT'S SELECTED ANSWER (CORRECT): %s\n", req.StudentOptionText)
		fmt.Fprintf(&b, "CORRECT ANSWER: %s\n\n", req.CorrectOptionText)
		b.WriteString("The student answered correctly. Explain in one sentence why this answer is correct according to the lecture.")
	} else {
		fmt.Fprintf(&b, "STUDENT'S SELECTED ANSWER (INCORRECT): %s\n\n", req.StudentOptionText)
		b.WriteString("The student answered incorrectly. Explain in one sentence why this specific option is wrong according to the lecture, " +
			"then one sentence about what likely led them to choose it. Do not state what the correct answer is.")
	}

	return b.String()
}

func (s *ExplanationService) ruleBasedFallback(isCorrect bool) string {
	if isCorrect {
		return "Correct - Your answer is correct based on the lecture content."
	}
	return "Incorrect - Your answer doesn't match the lecture content. You likely chose this because the selected option doesn't align with the evidence."
}

func (s *ExplanationService) errorFallback(isCorrect bool, msg string) string {
	verdict := "Incorrect"
	if isCorrect {
		verdict = "Correct"
	}
	return fmt.Sprintf("%s - (Error: %s).", verdict, msg)
}

var leadingVerdictRe = regexp.MustCompile(`(?i)^(correct|incorrect)\s*[-:]?\s*`)

const genericMisconception = "You likely chose this because the selected option doesn't match the lecture evidence."

// repairVerdict 把模型原始输出修复为标准格式。
// 模型自报的对错前缀会被剥掉，最终前缀始终来自调用方判定的 isCorrect。
func repairVerdict(raw string, isCorrect bool) string {
	text := strings.TrimSpace(raw)

	// 去掉成对的包裹引号
	for len(text) >= 2 {
		first, last := text[0], text[len(text)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
			text = strings.TrimSpace(text[1 : len(text)-1])
			continue
		}
		break
	}

	text = leadingVerdictRe.ReplaceAllString(text, "")
	text = strings.TrimSpace(text)

	if text == "" {
		if isCorrect {
			return "Correct - Your answer is correct based on the lecture content."
		}
		return "Incorrect - " + genericMisconception
	}

	if !strings.HasSuffix(text, ".") {
		text += "."
	}

	if isCorrect {
		return "Correct - " + text
	}

	if !strings.Contains(strings.ToLower(text), "you likely chose this because") {
		text += " " + genericMisconception
	}
	return "Incorrect - " + text
}
