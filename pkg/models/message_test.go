package models

import (
	"encoding/json"
	"testing"
)

func TestNewUserMessage(t *testing.T) {
	msg := NewUserMessage("u1", "hello")
	if msg.Role != RoleUser || msg.Text != "hello" || msg.ID != "u1" {
		t.Errorf("unexpected message: %+v", msg)
	}
}

func TestAssistantTextConcatenatesTextParts(t *testing.T) {
	a := NewTextPart("foo")
	b := NewTextPart("bar")
	call := ToolCallPart{Type: PartToolCall, ID: "c1", Name: "search"}
	msg := NewAssistantMessage("m1", []AssistantPart{
		{Type: PartText, Text: &a},
		{Type: PartToolCall, ToolCall: &call},
		{Type: PartText, Text: &b},
	})
	if got := msg.AssistantText(); got != "foobar" {
		t.Errorf("AssistantText() = %q, want %q", got, "foobar")
	}
}

func TestAssistantReasoningTextConcatenatesReasoningParts(t *testing.T) {
	r1 := ReasoningPart{Type: PartReasoning, Mode: "summary", Text: "step one. "}
	r2 := ReasoningPart{Type: PartReasoning, Mode: "summary", Text: "step two."}
	msg := NewAssistantMessage("m1", []AssistantPart{
		{Type: PartReasoning, Reasoning: &r1},
		{Type: PartReasoning, Reasoning: &r2},
	})
	want := "step one. step two."
	if got := msg.AssistantReasoningText(); got != want {
		t.Errorf("AssistantReasoningText() = %q, want %q", got, want)
	}
}

func TestToolCallsExtractsInEmissionOrder(t *testing.T) {
	c1 := ToolCallPart{Type: PartToolCall, ID: "a", Name: "first"}
	c2 := ToolCallPart{Type: PartToolCall, ID: "b", Name: "second"}
	msg := NewAssistantMessage("m1", []AssistantPart{
		{Type: PartToolCall, ToolCall: &c1},
		{Type: PartToolCall, ToolCall: &c2},
	})
	calls := msg.ToolCalls()
	if len(calls) != 2 || calls[0].Name != "first" || calls[1].Name != "second" {
		t.Errorf("ToolCalls() = %+v, want [first second] in order", calls)
	}
}

func TestNewToolResultMessage(t *testing.T) {
	msg := NewToolResultMessage("tr1", "call1", "search", []TextPart{NewTextPart("done")}, false)
	if msg.Role != RoleTool || msg.ToolCallID != "call1" || msg.ToolName != "search" {
		t.Errorf("unexpected tool result message: %+v", msg)
	}
	if len(msg.Content) != 1 || msg.Content[0].Text != "done" {
		t.Errorf("unexpected content: %+v", msg.Content)
	}
}

func TestMessageJSONRoundTrip(t *testing.T) {
	original := NewUserMessage("u1", "hi there")
	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded Message
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.Text != original.Text || decoded.Role != original.Role {
		t.Errorf("round trip mismatch: got %+v, want %+v", decoded, original)
	}
}
