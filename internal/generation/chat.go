// Package generation composes grounded prompts and calls the chat-completion service.
package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/WindyStu/RAGJurisChat/internal/models"
	"go.uber.org/zap"
)

// ChatModel answers a user message under a system prompt.
type ChatModel interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// ChatConfig configures the OpenAI-compatible chat-completions client.
type ChatConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	Timeout     time.Duration
}

// ChatClient calls POST {BaseURL}/chat/completions.
type ChatClient struct {
	cfg    ChatConfig
	client *http.Client
	logger *zap.Logger
}

// NewChatClient returns a client. A missing API key is a configuration error.
func NewChatClient(cfg ChatConfig, httpClient *http.Client, logger *zap.Logger) (*ChatClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("%w: chat API key is not set", models.ErrConfiguration)
	}
	if cfg.BaseURL == "" || cfg.Model == "" {
		return nil, fmt.Errorf("%w: chat base URL and model are required", models.ErrConfiguration)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &ChatClient{cfg: cfg, client: httpClient, logger: logger}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"error"`
}

// Complete sends one system and one user message and returns the reply verbatim.
func (c *ChatClient) Complete(ctx context.Context, system, user string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req := chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	}
	if c.cfg.Temperature > 0 {
		t := c.cfg.Temperature
		req.Temperature = &t
	}
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("%w: marshal request: %v", models.ErrGenerationService, err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: build request: %v", models.ErrGenerationService, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	started := time.Now()
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", models.WrapTimeout(models.ErrGenerationService, "request", err)
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", models.WrapTimeout(models.ErrGenerationService, "read response", err)
	}
	c.logger.Debug("chat completion",
		zap.String("model", c.cfg.Model),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(started)))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(payload))
		if len(msg) > 300 {
			msg = msg[:300] + "..."
		}
		return "", fmt.Errorf("%w: status %d: %s", models.ErrGenerationService, resp.StatusCode, msg)
	}
	var parsed chatResponse
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", models.ErrGenerationService, err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("%w: %s (%s)", models.ErrGenerationService, parsed.Error.Message, parsed.Error.Code)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("%w: response has no choices", models.ErrGenerationService)
	}
	content := parsed.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("%w: empty completion", models.ErrGenerationService)
	}
	return content, nil
}
