package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mcq_tutor_backend/internal/config"
	"mcq_tutor_backend/pkg/logger"
	"mcq_tutor_backend/pkg/monitoring"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const (
	BackendOnline  = "online"
	BackendOffline = "offline"
)

type LLMMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// LLMBackend 单个模型后端
type LLMBackend interface {
	Name() string
	Chat(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// ---------------------------------------------------------------------------
// 在线后端：OpenAI 兼容接口（DeepSeek 等）
// ---------------------------------------------------------------------------

type chatCompletionRequest struct {
	Model    string       `json:"model"`
	Messages []LLMMessage `json:"messages"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message LLMMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type OnlineLLMClient struct {
	cfg    config.LLMBackendConfig
	client *http.Client
}

func NewOnlineLLMClient(cfg config.LLMBackendConfig) *OnlineLLMClient {
	return &OnlineLLMClient{
		cfg: cfg,
		client: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
	}
}

func (c *OnlineLLMClient) Name() string { return BackendOnline }

func (c *OnlineLLMClient) Chat(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	// 快速失败：没有 Key 不发请求
	if c.cfg.APIKey == "" {
		return "", fmt.Errorf("online LLM API key is missing")
	}

	reqBody := chatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []LLMMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.cfg.BaseURL+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("online LLM API error (status %d): %s", resp.StatusCode, string(body))
	}

	var result chatCompletionResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", err
	}

	if result.Error != nil {
		return "", fmt.Errorf("online LLM API error: %s", result.Error.Message)
	}

	if len(result.Choices) > 0 {
		return result.Choices[0].Message.Content, nil
	}

	return "", fmt.Errorf("online LLM returned no choices")
}

// ---------------------------------------------------------------------------
// 离线后端：本地 Ollama
// ---------------------------------------------------------------------------

type ollamaChatRequest struct {
	Model    string       `json:"model"`
	Messages []LLMMessage `json:"messages"`
	Stream   bool         `json:"stream"`
}

type ollamaChatResponse struct {
	Message LLMMessage `json:"message"`
	Error   string     `json:"error,omitempty"`
}

type OfflineLLMClient struct {
	cfg    config.LLMBackendConfig
	client *http.Client
}

func NewOfflineLLMClient(cfg config.LLMBackendConfig) *OfflineLLMClient {
	return &OfflineLLMClient{
		cfg: cfg,
		client: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
	}
}

func (c *OfflineLLMClient) Name() string { return BackendOffline }

func (c *OfflineLLMClient) Chat(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	reqBody := ollamaChatRequest{
		Model: c.cfg.Model,
		Messages: []LLMMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Stream: false,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.cfg.BaseURL+"/api/chat", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ollama API error (status %d): %s", resp.StatusCode, string(body))
	}

	var result ollamaChatResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", err
	}

	if result.Error != "" {
		return "", fmt.Errorf("ollama API error: %s", result.Error)
	}

	return result.Message.Content, nil
}

// ---------------------------------------------------------------------------
// 混合路由：在线优先，失败切换离线，都失败返回空串
// ---------------------------------------------------------------------------

// HybridRouter 两级后端状态机：TryPrimary → TryFallback → Exhausted。
// 单个后端内不重试，一次失败立即切换，最坏延迟受两个超时之和约束。
type HybridRouter struct {
	primary  LLMBackend
	fallback LLMBackend
}

func NewHybridRouter(primary, fallback LLMBackend) *HybridRouter {
	return &HybridRouter{
		primary:  primary,
		fallback: fallback,
	}
}

// Call 按 preference 路由一次对话。返回空串表示两级后端都失败，
// 调用方应用各自的规则兜底，而不是把失败向上抛。
func (r *HybridRouter) Call(ctx context.Context, systemPrompt, userPrompt, preference string) string {
	backends := []LLMBackend{r.primary, r.fallback}
	if preference == BackendOffline {
		// 严格离线：跳过联网后端
		backends = []LLMBackend{r.fallback}
	}

	for _, backend := range backends {
		start := time.Now()
		text, err := backend.Chat(ctx, systemPrompt, userPrompt)
		monitoring.LLMBackendDuration.WithLabelValues(backend.Name()).Observe(time.Since(start).Seconds())

		if err != nil {
			monitoring.LLMBackendCalls.WithLabelValues(backend.Name(), "error").Inc()
			logger.Log.Warn("LLM backend call failed",
				zap.String("backend", backend.Name()),
				zap.Error(err))
			continue
		}

		monitoring.LLMBackendCalls.WithLabelValues(backend.Name(), "ok").Inc()
		return text
	}

	logger.Log.Error("all LLM backends exhausted")
	return ""
}
