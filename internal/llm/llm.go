// Package llm is a small abstraction over chat-completion providers. It only
// does text completions: a list of role-tagged messages in, one answer out.
package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/sokinpui/devx.go/internal/config"
)

// ErrEmptyResponse is returned when a provider answers with no text.
var ErrEmptyResponse = errors.New("empty response from model")

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role
	Content string
}

// Request is one completion call.
type Request struct {
	Messages  []Message
	MaxTokens int // 0 means provider default
}

// Provider completes chat requests.
type Provider interface {
	Complete(ctx context.Context, req Request) (string, error)

	// Name returns the provider name (e.g., "openai", "gemini")
	Name() string

	// Model returns the model name being used
	Model() string
}

// Streamer is implemented by providers that can deliver the answer
// incrementally. onDelta receives each fragment as it arrives; the full text
// is returned at the end.
type Streamer interface {
	Stream(ctx context.Context, req Request, onDelta func(string)) (string, error)
}

// New builds the provider selected by cfg.
func New(cfg *config.Config) (Provider, error) {
	key, err := cfg.ResolveAPIKey()
	if err != nil {
		return nil, err
	}

	switch cfg.LLM.Provider {
	case "openai", "":
		return NewOpenAI(key, cfg.LLM.BaseURL, cfg.LLM.Model), nil
	case "gemini":
		return NewGemini(key, cfg.LLM.BaseURL, cfg.LLM.Model), nil
	default:
		return nil, fmt.Errorf("unsupported provider %q", cfg.LLM.Provider)
	}
}
