package llm

import (
	"context"
	"strings"
	"time"

	"product-insights-go/internal/metrics"
)

// MessagesConfig configures endpoint A.
type MessagesConfig struct {
	BaseURL   string
	APIKey    string
	Model     string
	Version   string
	MaxTokens int
	HTTP      HTTPOptions
}

// MessagesClient speaks the messages envelope: model, max_tokens, optional
// top-level system prompt, role-tagged messages; text comes back in content
// blocks.
type MessagesClient struct {
	cfg MessagesConfig
}

var _ Completer = (*MessagesClient)(nil)

func NewMessagesClient(cfg MessagesConfig) *MessagesClient {
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	if cfg.Version == "" {
		cfg.Version = "2023-06-01"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 2000
	}
	return &MessagesClient{cfg: cfg}
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system,omitempty"`
	Messages  []Message `json:"messages"`
}

type messagesResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

func (c *MessagesClient) Name() string { return "anthropic" }

func (c *MessagesClient) Complete(ctx context.Context, req Request) (string, error) {
	start := time.Now()
	text, err := c.complete(ctx, req)
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	metrics.RecordLLMRequest(c.Name(), outcome, time.Since(start))
	return text, err
}

func (c *MessagesClient) complete(ctx context.Context, req Request) (string, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.cfg.MaxTokens
	}
	payload := messagesRequest{
		Model:     c.cfg.Model,
		MaxTokens: maxTokens,
		System:    req.System,
		Messages:  req.Messages,
	}
	headers := map[string]string{
		"x-api-key":         c.cfg.APIKey,
		"anthropic-version": c.cfg.Version,
	}
	var out messagesResponse
	if err := postJSON(ctx, c.cfg.HTTP, c.Name(), c.cfg.BaseURL+"/v1/messages", headers, payload, &out); err != nil {
		return "", err
	}
	for _, block := range out.Content {
		if block.Type != "" && block.Type != "text" {
			continue
		}
		if strings.TrimSpace(block.Text) != "" {
			return block.Text, nil
		}
	}
	return "", ErrNoContent
}
