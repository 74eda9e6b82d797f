package graph

import (
	"context"

	gmodel "github.com/agentflow/graphcore/graph/model"
)

// DefaultChatHistoryKey and DefaultModelToolCallsKey name the Data
// entries ChatModelCapability reads prior conversation turns from and
// writes model-requested tool calls to, when the capability isn't
// configured with its own keys.
const (
	DefaultChatHistoryKey    = "chatHistory"
	DefaultModelToolCallsKey = "modelToolCalls"
)

// ChatModelCapability adapts a model.ChatModel — any of the anthropic,
// openai, or google adapters — into an AgentCapability, so AgentNode
// can drive a real provider without depending on any one SDK. It
// builds one user turn from msg.Content, prepends an optional system
// prompt and any prior turns stored under HistoryKey, and translates
// the provider's reply back into the fields AgentNode copies onto the
// flowing message.
type ChatModelCapability struct {
	Model      gmodel.ChatModel
	System     string
	Tools      []gmodel.ToolSpec
	HistoryKey string // defaults to DefaultChatHistoryKey
	ToolsKey   string // defaults to DefaultModelToolCallsKey
}

func (c ChatModelCapability) historyKey() string {
	if c.HistoryKey != "" {
		return c.HistoryKey
	}
	return DefaultChatHistoryKey
}

func (c ChatModelCapability) toolsKey() string {
	if c.ToolsKey != "" {
		return c.ToolsKey
	}
	return DefaultModelToolCallsKey
}

// Invoke implements AgentCapability.
func (c ChatModelCapability) Invoke(ctx context.Context, msg Message) (Message, error) {
	turns := make([]gmodel.Message, 0, len(msg.Data)+2)
	if c.System != "" {
		turns = append(turns, gmodel.Message{Role: gmodel.RoleSystem, Content: c.System})
	}
	if history, ok := msg.Data[c.historyKey()].([]gmodel.Message); ok {
		turns = append(turns, history...)
	}
	turns = append(turns, gmodel.Message{Role: gmodel.RoleUser, Content: msg.Content})

	out, err := c.Model.Chat(ctx, turns, c.Tools)
	if err != nil {
		return Message{}, err
	}

	reply := Message{Content: out.Text, Data: map[string]any{}}
	if len(out.ToolCalls) > 0 {
		reply.Data[c.toolsKey()] = out.ToolCalls
	}
	return reply, nil
}
