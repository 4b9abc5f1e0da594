package providers

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/mweinbach/agent-coworker-sub008/pkg/models"
	openai "github.com/sashabaranov/go-openai"
)

func TestNewOpenAIProviderUnconfigured(t *testing.T) {
	p := NewOpenAIProvider("")
	if p.client != nil {
		t.Fatal("expected nil client for empty API key")
	}
	if p.Name() != "openai" {
		t.Errorf("Name() = %q, want openai", p.Name())
	}
	if !p.SupportsTools() {
		t.Error("SupportsTools() = false, want true")
	}
	if p.ReasoningMode() != models.ReasoningModeSummary {
		t.Errorf("ReasoningMode() = %q, want summary", p.ReasoningMode())
	}
}

func TestOpenAIModelsNonEmpty(t *testing.T) {
	p := NewOpenAIProvider("sk-test")
	list := p.Models()
	if len(list) == 0 {
		t.Fatal("Models() returned none")
	}
	for _, m := range list {
		if m.ID == "" || m.ContextSize == 0 {
			t.Errorf("model %+v missing ID or ContextSize", m)
		}
	}
}

func TestConvertMessageToOpenAIUser(t *testing.T) {
	msg := *models.NewUserMessage("m1", "hi")
	out, err := convertMessageToOpenAI(msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 || out[0].Content != "hi" || out[0].Role != openai.ChatMessageRoleUser {
		t.Errorf("unexpected conversion: %+v", out)
	}
}

func TestConvertMessageToOpenAIAssistantWithToolCall(t *testing.T) {
	text := models.NewTextPart("thinking")
	call := models.ToolCallPart{Type: models.PartToolCall, ID: "call1", Name: "search", Input: json.RawMessage(`{"q":"go"}`)}
	msg := models.Message{
		Role: models.RoleAssistant,
		Parts: []models.AssistantPart{
			{Type: models.PartText, Text: &text},
			{Type: models.PartToolCall, ToolCall: &call},
		},
	}
	out, err := convertMessageToOpenAI(msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 message, got %d", len(out))
	}
	if len(out[0].ToolCalls) != 1 || out[0].ToolCalls[0].Function.Name != "search" {
		t.Errorf("tool call not carried over: %+v", out[0].ToolCalls)
	}
}

func TestConvertMessageToOpenAITool(t *testing.T) {
	msg := models.Message{
		Role:       models.RoleTool,
		ToolCallID: "call1",
		ToolName:   "search",
		Content:    []models.TextPart{models.NewTextPart("result text")},
	}
	out, err := convertMessageToOpenAI(msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out[0].Content != "result text" || out[0].ToolCallID != "call1" {
		t.Errorf("unexpected tool message: %+v", out[0])
	}
}

func TestConvertMessageToOpenAIUnsupportedRole(t *testing.T) {
	_, err := convertMessageToOpenAI(models.Message{Role: "bogus"})
	if err == nil {
		t.Fatal("expected error for unsupported role")
	}
}

func TestMapOpenAIFinishReason(t *testing.T) {
	cases := map[openai.FinishReason]models.FinishReason{
		openai.FinishReasonToolCalls:     models.FinishToolCalls,
		openai.FinishReasonFunctionCall:  models.FinishToolCalls,
		openai.FinishReasonLength:        models.FinishStepLimit,
		openai.FinishReasonContentFilter: models.FinishError,
		openai.FinishReasonStop:          models.FinishStop,
	}
	for in, want := range cases {
		if got := mapOpenAIFinishReason(in); got != want {
			t.Errorf("mapOpenAIFinishReason(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestIsOpenAIRetryable(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("rate limit exceeded"), true},
		{errors.New("429 too many requests"), true},
		{errors.New("502 bad gateway"), true},
		{errors.New("context deadline exceeded"), true},
		{errors.New("invalid api key"), false},
	}
	for _, tt := range cases {
		if got := isOpenAIRetryable(tt.err); got != tt.want {
			t.Errorf("isOpenAIRetryable(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
