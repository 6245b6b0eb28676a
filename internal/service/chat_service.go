package service

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"mcq_tutor_backend/internal/model"
	"mcq_tutor_backend/internal/repository"
	"mcq_tutor_backend/internal/util"
	"mcq_tutor_backend/pkg/logger"

	"go.uber.org/zap"
)

// SessionStore 会话状态读写
type SessionStore interface {
	Get(ctx context.Context, sessionID, userID string) (*repository.ChatSession, error)
	Save(ctx context.Context, session *repository.ChatSession) error
}

// LectureStore 讲义读取能力
type LectureStore interface {
	FindByID(id uint) (*model.Lecture, error)
}

// ChatService 辅导会话层。会话状态全部存在 Redis，进程内不持有任何
// 跨请求的可变状态，同一用户可以并行开多个互不干扰的会话。
type ChatService struct {
	sessions  SessionStore
	lectures  LectureStore
	xai       *XAIService
	retrieval *RetrievalService
	router    *HybridRouter
}

func NewChatService(sessions SessionStore, lectures LectureStore, xai *XAIService, retrieval *RetrievalService, router *HybridRouter) *ChatService {
	return &ChatService{
		sessions:  sessions,
		lectures:  lectures,
		xai:       xai,
		retrieval: retrieval,
		router:    router,
	}
}

var (
	questionRefRe = regexp.MustCompile(`(?i)\bq(?:uestion)?\s*#?\s*(\d+)\b`)
	loadLectureRe = regexp.MustCompile(`(?i)\b(?:load|open|use)\s+lecture\s*#?\s*(\d+)\b`)
	verbosityRe   = regexp.MustCompile(`(?i)\bverbosity\s+(short|normal|deep)\b`)
)

// HandleMessage 处理一条会话消息并返回回复文本
func (s *ChatService) HandleMessage(ctx context.Context, sessionID, userID, message string) (string, error) {
	session, err := s.sessions.Get(ctx, sessionID, userID)
	if err != nil {
		return "", err
	}

	message = strings.TrimSpace(message)
	if message == "" {
		return "Please type a message.", nil
	}
	lower := strings.ToLower(message)

	// 模式与偏好切换
	switch {
	case strings.Contains(lower, "offline mode"), strings.Contains(lower, "use offline"), strings.Contains(lower, "go offline"):
		session.Backend = BackendOffline
		if err := s.sessions.Save(ctx, session); err != nil {
			return "", err
		}
		return "Switched to offline mode. I will only use the local model from now on.", nil

	case strings.Contains(lower, "online mode"), strings.Contains(lower, "use online"), strings.Contains(lower, "go online"):
		session.Backend = BackendOnline
		if err := s.sessions.Save(ctx, session); err != nil {
			return "", err
		}
		return "Switched to online mode. I will try the online model first and fall back to the local one.", nil
	}

	if m := verbosityRe.FindStringSubmatch(message); m != nil {
		session.Verbosity = strings.ToLower(m[1])
		if err := s.sessions.Save(ctx, session); err != nil {
			return "", err
		}
		return fmt.Sprintf("Verbosity set to %s.", session.Verbosity), nil
	}

	if m := loadLectureRe.FindStringSubmatch(message); m != nil {
		id, _ := strconv.ParseUint(m[1], 10, 32)
		lecture, err := s.lectures.FindByID(uint(id))
		if err != nil {
			return fmt.Sprintf("I couldn't find lecture %d.", id), nil
		}
		session.LectureID = lecture.ID
		session.LectureTitle = lecture.Title
		if err := s.sessions.Save(ctx, session); err != nil {
			return "", err
		}
		return fmt.Sprintf("Loaded lecture %d (%q). Ask me about it or check an answer with \"question <id>: <label>\".", lecture.ID, lecture.Title), nil
	}

	if lower == "status" {
		return s.describeSession(session), nil
	}

	// 判题：消息里同时出现题号和选项标签
	if m := questionRefRe.FindStringSubmatch(message); m != nil {
		questionID, _ := strconv.ParseUint(m[1], 10, 32)
		rest := questionRefRe.ReplaceAllString(message, " ")
		label := util.ExtractLabel(rest)
		if label == "" {
			return fmt.Sprintf("Which option did you choose for question %d? Reply with a letter A-D.", questionID), nil
		}

		reply, err := s.xai.ExplainForChat(ctx, uint(questionID), label, session.Backend)
		if err != nil {
			if util.IsClientError(err) {
				return err.Error(), nil
			}
			return "", err
		}

		session.LastQuestionIDs = appendQuestionID(session.LastQuestionIDs, uint(questionID))
		if err := s.sessions.Save(ctx, session); err != nil {
			logger.Log.Warn("failed to save chat session",
				zap.String("session_id", sessionID),
				zap.Error(err))
		}
		return reply, nil
	}

	// 自由问答：有讲义时带上检索到的句子作为上下文
	return s.answerFreeForm(ctx, session, message), nil
}

func (s *ChatService) answerFreeForm(ctx context.Context, session *repository.ChatSession, message string) string {
	var evidence []Evidence
	if session.LectureID != 0 {
		if lecture, err := s.lectures.FindByID(session.LectureID); err == nil {
			evidence = s.retrieval.Retrieve(lecture.CleanText, message)
		}
	}

	systemPrompt := fmt.Sprintf(
		"You are a patient tutor helping a student study lecture notes. Answer %s. "+
			"If lecture sentences are provided, base your answer on them and say so when they don't cover the question.",
		verbosityInstruction(session.Verbosity),
	)

	var b strings.Builder
	if len(evidence) > 0 {
		b.WriteString("LECTURE SENTENCES:\n")
		for _, ev := range evidence {
			fmt.Fprintf(&b, "- %q\n", ev.Sentence)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "STUDENT: %s", message)

	reply := s.router.Call(ctx, systemPrompt, b.String(), session.Backend)
	if strings.TrimSpace(reply) == "" {
		return "I can't reach any model right now. Try again in a moment, or switch modes with \"use offline\" / \"use online\"."
	}
	return reply
}

func (s *ChatService) describeSession(session *repository.ChatSession) string {
	lecture := "none"
	if session.LectureID != 0 {
		lecture = fmt.Sprintf("%d (%q)", session.LectureID, session.LectureTitle)
	}
	return fmt.Sprintf("Lecture: %s. Mode: %s. Verbosity: %s. Questions checked: %d.",
		lecture, session.Backend, session.Verbosity, len(session.LastQuestionIDs))
}

func verbosityInstruction(verbosity string) string {
	switch verbosity {
	case "deep":
		return "thoroughly, in up to two short paragraphs"
	case "normal":
		return "in 2-3 sentences"
	default:
		return "in one or two sentences"
	}
}

func appendQuestionID(ids []uint, id uint) []uint {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	ids = append(ids, id)
	if len(ids) > 20 {
		ids = ids[len(ids)-20:]
	}
	return ids
}
