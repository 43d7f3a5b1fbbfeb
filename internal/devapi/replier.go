package devapi

import (
	"context"
	"fmt"
	"strings"

	"laivdata.app/agentdesk/common/llm"
	"laivdata.app/agentdesk/internal/model"
)

// Reply is an agent answer with its token usage.
type Reply struct {
	Content string
	Tokens  model.TokenUsage
}

// Replier answers the last user message of history on behalf of agent.
type Replier interface {
	Reply(ctx context.Context, agent model.Agent, history []model.Message) (Reply, error)
}

// EchoReplier repeats the prompt back. Token counts are word counts.
type EchoReplier struct{}

func (EchoReplier) Reply(_ context.Context, agent model.Agent, history []model.Message) (Reply, error) {
	if len(history) == 0 {
		return Reply{}, fmt.Errorf("empty history")
	}
	prompt := history[len(history)-1].Content
	content := fmt.Sprintf("%s heard: %s", agent.Name, prompt)
	in, out := len(strings.Fields(prompt)), len(strings.Fields(content))
	return Reply{
		Content: content,
		Tokens:  model.TokenUsage{Input: in, Output: out, Total: in + out},
	}, nil
}

// LLMReplier answers through a chat model, sending the agent's system prompt
// and the most recent HistoryLength messages.
type LLMReplier struct {
	client        llm.ChatClient
	systemPrompt  string
	maxTokens     int
	defaultWindow int
}

func NewLLMReplier(client llm.ChatClient, systemPrompt string, maxTokens int) *LLMReplier {
	return &LLMReplier{
		client:        client,
		systemPrompt:  systemPrompt,
		maxTokens:     maxTokens,
		defaultWindow: 20,
	}
}

func (r *LLMReplier) Reply(ctx context.Context, agent model.Agent, history []model.Message) (Reply, error) {
	cfg := agent.Configuration

	system := cfg.SystemPrompt
	if system == "" {
		system = r.systemPrompt
	}
	window := cfg.HistoryLength
	if window <= 0 {
		window = r.defaultWindow
	}
	if len(history) > window {
		history = history[len(history)-window:]
	}

	messages := make([]llm.Message, 0, len(history)+1)
	if system != "" {
		messages = append(messages, llm.Message{Role: "system", Content: system})
	}
	for _, m := range history {
		if m.Role == model.RoleUser || m.Role == model.RoleAssistant {
			messages = append(messages, llm.Message{Role: string(m.Role), Content: m.Content})
		}
	}

	req := llm.ChatRequest{Messages: messages, MaxTokens: r.maxTokens}
	if cfg.MaxTokens > 0 {
		req.MaxTokens = cfg.MaxTokens
	}
	if cfg.Temperature > 0 {
		req.Temperature = &cfg.Temperature
	}

	resp, err := r.client.Chat(ctx, req)
	if err != nil {
		return Reply{}, fmt.Errorf("generating reply: %w", err)
	}
	return Reply{
		Content: resp.Content,
		Tokens: model.TokenUsage{
			Input:  resp.PromptTokens,
			Output: resp.CompletionTokens,
			Total:  resp.TotalTokens(),
		},
	}, nil
}
