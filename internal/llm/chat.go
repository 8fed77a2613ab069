package llm

import (
	"context"
	"strings"
	"time"

	"product-insights-go/internal/metrics"
)

// ChatConfig configures endpoint B.
type ChatConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	HTTP        HTTPOptions
}

// ChatClient speaks the chat-completions envelope with a bearer key.
type ChatClient struct {
	cfg ChatConfig
}

var _ Completer = (*ChatClient)(nil)

func NewChatClient(cfg ChatConfig) *ChatClient {
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1000
	}
	return &ChatClient{cfg: cfg}
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int     `json:"index"`
		Message Message `json:"message"`
	} `json:"choices"`
}

func (c *ChatClient) Name() string { return "openai" }

func (c *ChatClient) Complete(ctx context.Context, req Request) (string, error) {
	start := time.Now()
	text, err := c.complete(ctx, req)
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	metrics.RecordLLMRequest(c.Name(), outcome, time.Since(start))
	return text, err
}

func (c *ChatClient) complete(ctx context.Context, req Request) (string, error) {
	payload := chatRequest{
		Model:       c.cfg.Model,
		Messages:    make([]Message, 0, len(req.Messages)+1),
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	}
	if req.System != "" {
		payload.Messages = append(payload.Messages, Message{Role: RoleSystem, Content: req.System})
	}
	payload.Messages = append(payload.Messages, req.Messages...)
	if req.Temperature > 0 {
		payload.Temperature = req.Temperature
	}
	if req.MaxTokens > 0 {
		payload.MaxTokens = req.MaxTokens
	}
	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}

	var out chatResponse
	if err := postJSON(ctx, c.cfg.HTTP, c.Name(), c.cfg.BaseURL+"/v1/chat/completions", headers, payload, &out); err != nil {
		return "", err
	}
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return "", ErrNoContent
	}
	return out.Choices[0].Message.Content, nil
}
