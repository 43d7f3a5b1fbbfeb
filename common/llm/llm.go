package llm

import (
	"context"
	"fmt"
	"regexp"
)

var nameInvalidChars = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

// Provider constants for LLM provider selection.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Config holds LLM client configuration.
type Config struct {
	Provider string // "openai" or "anthropic"
	APIKey   string // Required: API key for the provider
	BaseURL  string // Optional: custom API endpoint
	Model    string
}

// ChatClient produces one assistant reply for a conversation.
type ChatClient interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
	Model() string
}

type ChatRequest struct {
	Messages    []Message
	MaxTokens   int
	Temperature *float64 // nil = model default
}

// Message represents a conversation message.
type Message struct {
	Role    string // "system", "user", "assistant"
	Name    string // Optional: participant name (user messages only)
	Content string
}

type ChatResponse struct {
	Content          string
	FinishReason     string // "stop", "length"
	PromptTokens     int
	CompletionTokens int
}

// TotalTokens is the sum of prompt and completion tokens.
func (r *ChatResponse) TotalTokens() int {
	return r.PromptTokens + r.CompletionTokens
}

// NewChatClient selects the provider from cfg.Provider, defaulting to Anthropic.
func NewChatClient(cfg Config) (ChatClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	provider := cfg.Provider
	if provider == "" {
		provider = ProviderAnthropic
	}

	switch provider {
	case ProviderAnthropic:
		return newAnthropicClient(cfg), nil
	case ProviderOpenAI:
		return newOpenAIClient(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", provider)
	}
}

// SanitizeName converts a display name to a valid OpenAI name parameter.
// The name must match ^[a-zA-Z0-9_-]{1,64}$.
// Invalid characters are replaced with underscores, and the result is truncated to 64 characters.
func SanitizeName(username string) string {
	sanitized := nameInvalidChars.ReplaceAllString(username, "_")
	if len(sanitized) > 64 {
		sanitized = sanitized[:64]
	}
	return sanitized
}

func defaultMaxTokens(n int) int {
	if n <= 0 {
		return 1024
	}
	return n
}
