package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// ChatSession 单个辅导会话的状态。每个会话独立持有自己的讲义上下文和偏好，
// 不存在进程级共享状态，多用户并发互不影响。
type ChatSession struct {
	SessionID       string `json:"sessionId"`
	UserID          string `json:"userId"`
	LectureID       uint   `json:"lectureId"`
	LectureTitle    string `json:"lectureTitle"`
	Verbosity       string `json:"verbosity"` // short | normal | deep
	Backend         string `json:"backend"`   // online | offline
	LastQuestionIDs []uint `json:"lastQuestionIds"`
}

type SessionRepository struct {
	Redis *redis.Client
	ttl   time.Duration
}

func NewSessionRepository(rdb *redis.Client) *SessionRepository {
	return &SessionRepository{
		Redis: rdb,
		ttl:   24 * time.Hour,
	}
}

func sessionKey(sessionID string) string {
	return fmt.Sprintf("tutor:session:%s", sessionID)
}

// Get 读取会话；不存在时返回带默认值的新会话
func (r *SessionRepository) Get(ctx context.Context, sessionID, userID string) (*ChatSession, error) {
	data, err := r.Redis.Get(ctx, sessionKey(sessionID)).Result()
	if err == redis.Nil {
		return &ChatSession{
			SessionID: sessionID,
			UserID:    userID,
			Verbosity: "short",
			Backend:   "online",
		}, nil
	}
	if err != nil {
		return nil, err
	}

	var session ChatSession
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *SessionRepository) Save(ctx context.Context, session *ChatSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return r.Redis.Set(ctx, sessionKey(session.SessionID), data, r.ttl).Err()
}
