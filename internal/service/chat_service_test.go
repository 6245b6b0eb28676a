package service

import (
	"context"
	"testing"

	"mcq_tutor_backend/internal/model"
	"mcq_tutor_backend/internal/repository"
	"mcq_tutor_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memSessionStore struct {
	sessions map[string]*repository.ChatSession
}

func newMemSessionStore() *memSessionStore {
	return &memSessionStore{sessions: map[string]*repository.ChatSession{}}
}

func (s *memSessionStore) Get(_ context.Context, sessionID, userID string) (*repository.ChatSession, error) {
	if session, ok := s.sessions[sessionID]; ok {
		return session, nil
	}
	return &repository.ChatSession{
		SessionID: sessionID,
		UserID:    userID,
		Verbosity: "short",
		Backend:   BackendOnline,
	}, nil
}

func (s *memSessionStore) Save(_ context.Context, session *repository.ChatSession) error {
	s.sessions[session.SessionID] = session
	return nil
}

type memLectureStore struct {
	lectures map[uint]*model.Lecture
}

func (s *memLectureStore) FindByID(id uint) (*model.Lecture, error) {
	if lecture, ok := s.lectures[id]; ok {
		return lecture, nil
	}
	return nil, util.ErrLectureNotFound
}

func newTestChat(primary, fallback LLMBackend) (*ChatService, *memSessionStore, *stubQuestionStore) {
	questions := &stubQuestionStore{questions: map[uint]*model.Question{42: sampleQuestion()}}
	cache := &memExplanationStore{}
	xai := newTestXAI(questions, cache, primary, fallback)

	lecture := &model.Lecture{
		Title:     "scope-notes.txt",
		CleanText: "Variable scope controls where a name is visible inside a program unit.",
	}
	lecture.ID = 7
	lectures := &memLectureStore{lectures: map[uint]*model.Lecture{7: lecture}}

	sessions := newMemSessionStore()
	retrieval := newTestRetrieval()
	svc := NewChatService(sessions, lectures, xai, retrieval, NewHybridRouter(primary, fallback))
	return svc, sessions, questions
}

func TestChatModeSwitchPersists(t *testing.T) {
	svc, sessions, _ := newTestChat(&stubBackend{name: BackendOnline, reply: "hi"}, &stubBackend{name: BackendOffline, reply: "hi"})

	reply, err := svc.HandleMessage(context.Background(), "s1", "u1", "please use offline mode")
	require.NoError(t, err)
	assert.Contains(t, reply, "offline mode")
	assert.Equal(t, BackendOffline, sessions.sessions["s1"].Backend)

	reply, err = svc.HandleMessage(context.Background(), "s1", "u1", "go online again")
	require.NoError(t, err)
	assert.Contains(t, reply, "online mode")
	assert.Equal(t, BackendOnline, sessions.sessions["s1"].Backend)
}

func TestChatSessionsAreIndependent(t *testing.T) {
	svc, sessions, _ := newTestChat(&stubBackend{name: BackendOnline, reply: "hi"}, &stubBackend{name: BackendOffline, reply: "hi"})

	_, err := svc.HandleMessage(context.Background(), "s1", "u1", "use offline")
	require.NoError(t, err)
	_, err = svc.HandleMessage(context.Background(), "s2", "u2", "load lecture 7")
	require.NoError(t, err)

	assert.Equal(t, BackendOffline, sessions.sessions["s1"].Backend)
	assert.Equal(t, uint(0), sessions.sessions["s1"].LectureID)
	assert.Equal(t, uint(7), sessions.sessions["s2"].LectureID)
	assert.Equal(t, BackendOnline, sessions.sessions["s2"].Backend)
}

func TestChatAnswerCheck(t *testing.T) {
	primary := &stubBackend{name: BackendOnline, reply: "Correct - Scope is exactly about visibility."}
	svc, sessions, _ := newTestChat(primary, &stubBackend{name: BackendOffline})

	reply, err := svc.HandleMessage(context.Background(), "s1", "u1", "for question 42 I chose a")
	require.NoError(t, err)

	assert.Contains(t, reply, "Correct - ")
	assert.Contains(t, reply, "Your answer: A. Correct answer: A.")
	assert.Equal(t, []uint{42}, sessions.sessions["s1"].LastQuestionIDs)
}

func TestChatAnswerCheckMissingLabel(t *testing.T) {
	primary := &stubBackend{name: BackendOnline}
	svc, _, _ := newTestChat(primary, &stubBackend{name: BackendOffline})

	// 消息里的普通单词（explain、please）不能被误认成选项标签
	for _, msg := range []string{"explain question 42", "please walk me through question 42"} {
		reply, err := svc.HandleMessage(context.Background(), "s1", "u1", msg)
		require.NoError(t, err)
		assert.Contains(t, reply, "Which option did you choose")
	}
	assert.Equal(t, 0, primary.calls)
}

func TestChatAnswerCheckUnknownQuestion(t *testing.T) {
	svc, _, _ := newTestChat(&stubBackend{name: BackendOnline}, &stubBackend{name: BackendOffline})

	reply, err := svc.HandleMessage(context.Background(), "s1", "u1", "question 999: B")
	require.NoError(t, err)
	assert.Contains(t, reply, "not found")
}

func TestChatFreeFormUsesLectureEvidence(t *testing.T) {
	primary := &stubBackend{name: BackendOnline, reply: "Scope is about where names are visible."}
	svc, _, _ := newTestChat(primary, &stubBackend{name: BackendOffline})

	_, err := svc.HandleMessage(context.Background(), "s1", "u1", "load lecture 7")
	require.NoError(t, err)

	reply, err := svc.HandleMessage(context.Background(), "s1", "u1", "what does variable scope control in a program?")
	require.NoError(t, err)

	assert.Equal(t, "Scope is about where names are visible.", reply)
	assert.Contains(t, primary.lastUser, "LECTURE SENTENCES:")
	assert.Contains(t, primary.lastUser, "scope controls where a name is visible")
}

func TestChatFreeFormAllBackendsDown(t *testing.T) {
	svc, _, _ := newTestChat(
		&stubBackend{name: BackendOnline, err: assert.AnError},
		&stubBackend{name: BackendOffline, err: assert.AnError},
	)

	reply, err := svc.HandleMessage(context.Background(), "s1", "u1", "tell me about recursion")
	require.NoError(t, err)
	assert.Contains(t, reply, "can't reach any model")
}

func TestChatStatus(t *testing.T) {
	svc, _, _ := newTestChat(&stubBackend{name: BackendOnline}, &stubBackend{name: BackendOffline})

	_, err := svc.HandleMessage(context.Background(), "s1", "u1", "verbosity deep")
	require.NoError(t, err)

	reply, err := svc.HandleMessage(context.Background(), "s1", "u1", "status")
	require.NoError(t, err)
	assert.Contains(t, reply, "Verbosity: deep")
	assert.Contains(t, reply, "Lecture: none")
}
