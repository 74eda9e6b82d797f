package graph_test

import (
	"context"
	"errors"
	"testing"

	"github.com/agentflow/graphcore/graph"
	gmodel "github.com/agentflow/graphcore/graph/model"
)

type fakeChatModel struct {
	gotMessages []gmodel.Message
	out         gmodel.ChatOut
	err         error
}

func (f *fakeChatModel) Chat(_ context.Context, messages []gmodel.Message, _ []gmodel.ToolSpec) (gmodel.ChatOut, error) {
	f.gotMessages = messages
	return f.out, f.err
}

func TestChatModelCapabilityBuildsTurnsInOrder(t *testing.T) {
	fake := &fakeChatModel{out: gmodel.ChatOut{Text: "hi there"}}
	mc := graph.ChatModelCapability{Model: fake, System: "be terse"}

	msg := graph.NewMessage("what's up", "user")
	out, err := mc.Invoke(context.Background(), msg)
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if out.Content != "hi there" {
		t.Fatalf("content = %q, want %q", out.Content, "hi there")
	}
	if len(fake.gotMessages) != 2 {
		t.Fatalf("got %d turns, want 2 (system + user)", len(fake.gotMessages))
	}
	if fake.gotMessages[0].Role != gmodel.RoleSystem || fake.gotMessages[0].Content != "be terse" {
		t.Fatalf("turn 0 = %+v, want system prompt", fake.gotMessages[0])
	}
	if fake.gotMessages[1].Role != gmodel.RoleUser || fake.gotMessages[1].Content != "what's up" {
		t.Fatalf("turn 1 = %+v, want user content", fake.gotMessages[1])
	}
}

func TestChatModelCapabilityIncludesHistory(t *testing.T) {
	fake := &fakeChatModel{out: gmodel.ChatOut{Text: "ok"}}
	mc := graph.ChatModelCapability{Model: fake}

	history := []gmodel.Message{
		{Role: gmodel.RoleUser, Content: "first"},
		{Role: gmodel.RoleAssistant, Content: "first reply"},
	}
	msg := graph.NewMessage("second", "user").WithData(graph.DefaultChatHistoryKey, history)

	if _, err := mc.Invoke(context.Background(), msg); err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if len(fake.gotMessages) != 3 {
		t.Fatalf("got %d turns, want 3 (2 history + 1 new user turn)", len(fake.gotMessages))
	}
	if fake.gotMessages[2].Content != "second" {
		t.Fatalf("final turn = %+v, want the new user content", fake.gotMessages[2])
	}
}

func TestChatModelCapabilityCarriesToolCalls(t *testing.T) {
	fake := &fakeChatModel{out: gmodel.ChatOut{
		Text:      "calling a tool",
		ToolCalls: []gmodel.ToolCall{{Name: "search", Input: map[string]interface{}{"q": "go"}}},
	}}
	mc := graph.ChatModelCapability{Model: fake}

	out, err := mc.Invoke(context.Background(), graph.NewMessage("find it", "user"))
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	calls, ok := out.Data[graph.DefaultModelToolCallsKey].([]gmodel.ToolCall)
	if !ok || len(calls) != 1 {
		t.Fatalf("data[%s] = %v, want 1 ToolCall", graph.DefaultModelToolCallsKey, out.Data[graph.DefaultModelToolCallsKey])
	}
	if calls[0].Name != "search" {
		t.Fatalf("tool call name = %q, want search", calls[0].Name)
	}
}

func TestChatModelCapabilityPropagatesError(t *testing.T) {
	fake := &fakeChatModel{err: errors.New("provider down")}
	mc := graph.ChatModelCapability{Model: fake}

	if _, err := mc.Invoke(context.Background(), graph.NewMessage("hi", "user")); err == nil {
		t.Fatal("expected provider error to propagate")
	}
}

func TestChatModelCapabilityDrivesAgentNode(t *testing.T) {
	fake := &fakeChatModel{out: gmodel.ChatOut{Text: "agent reply"}}
	node := graph.NewAgentNode("agent", graph.ChatModelCapability{Model: fake, System: "you are helpful"})

	g, err := graph.NewGraphBuilder("agent-graph").AddNode(node).EntryPoint("agent").Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	runner, _ := graph.NewRunner()
	res := runner.Execute(context.Background(), g, graph.NewMessage("hello", "user"))
	if !res.Ok() {
		t.Fatalf("execute failed: %v", res.Err())
	}
	if res.Value().Content != "agent reply" {
		t.Fatalf("content = %q, want agent reply", res.Value().Content)
	}
}
