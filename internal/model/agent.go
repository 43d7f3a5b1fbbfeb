package model

import "time"

type LLMSettings struct {
	Provider         string `json:"provider"`
	Model            string `json:"model"`
	FallbackProvider string `json:"fallback_provider,omitempty"`
	FallbackModel    string `json:"fallback_model,omitempty"`
}

type AgentConfiguration struct {
	SystemPrompt     string      `json:"system_prompt"`
	Temperature      float64     `json:"temperature"`
	MaxTokens        int         `json:"max_tokens"`
	HistoryLength    int         `json:"history_length"`
	ReasoningEnabled bool        `json:"reasoning_enabled"`
	LLMSettings      LLMSettings `json:"llm_settings"`
}

// AgentMCP is a capability module attached to an agent, referenced by id only.
type AgentMCP struct {
	MCPID string `json:"mcp_id"`
	Name  string `json:"name"`
}

// Agent is read-only to this module; it is used for display headers and for
// naming placeholder conversation summaries.
type Agent struct {
	ID            string             `json:"id"`
	Name          string             `json:"name"`
	Description   string             `json:"description"`
	Type          string             `json:"type,omitempty"`
	Avatar        string             `json:"avatar,omitempty"`
	LLMProvider   string             `json:"llm_provider"`
	Configuration AgentConfiguration `json:"configuration"`
	IsActive      bool               `json:"is_active"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
	MCPs          []AgentMCP         `json:"mcps"`
}
