// Package model provides the provider-agnostic chat contract that
// AgentNode dispatches against, plus the three SDK-backed adapters
// (anthropic, openai, google) that implement it.
package model

import "context"

// ChatModel abstracts a conversational LLM provider. Implementations
// translate Message/ToolSpec into their provider's wire format and
// translate the response back, so AgentNode never branches on provider.
type ChatModel interface {
	Chat(ctx context.Context, messages []Message, tools []ToolSpec) (ChatOut, error)
}

// Message is one turn in a chat-style conversation.
type Message struct {
	Role    string
	Content string
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ToolSpec describes a tool the model may choose to call, with its
// parameters expressed as a JSON Schema object.
type ToolSpec struct {
	Name        string
	Description string
	Schema      map[string]interface{}
}

// ChatOut is a provider's response: text, tool calls, or both.
type ChatOut struct {
	Text      string
	ToolCalls []ToolCall
}

// ToolCall is one tool invocation the model requested.
type ToolCall struct {
	Name  string
	Input map[string]interface{}
}
