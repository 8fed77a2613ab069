// Package llm talks to remote text-generation endpoints. Two envelopes are
// supported: a messages API (endpoint A) and a chat-completions API
// (endpoint B). Both sit behind the Completer interface so callers can chain
// them, wrap them in circuit breakers, or swap in a stub.
package llm

import (
	"context"
	"errors"
)

var (
	ErrNoContent    = errors.New("llm: response carried no text")
	ErrNoCompleters = errors.New("llm: no completers configured")
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is provider-neutral. Zero MaxTokens or Temperature means "use the
// client's configured default".
type Request struct {
	System      string
	Messages    []Message
	MaxTokens   int
	Temperature float64
}

// UserPrompt builds the single-turn request every strategy in this service sends.
func UserPrompt(system, prompt string) Request {
	return Request{
		System:   system,
		Messages: []Message{{Role: RoleUser, Content: prompt}},
	}
}

type Completer interface {
	Name() string
	Complete(ctx context.Context, req Request) (string, error)
}

// CompleterFunc adapts a function; handy for tests and offline stubs.
type CompleterFunc func(ctx context.Context, req Request) (string, error)

func (f CompleterFunc) Name() string { return "func" }

func (f CompleterFunc) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}
