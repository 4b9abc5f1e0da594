package providers

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/mweinbach/agent-coworker-sub008/pkg/models"
)

func TestNewAnthropicProviderRequiresAPIKey(t *testing.T) {
	if _, err := NewAnthropicProvider(AnthropicConfig{}); err == nil {
		t.Fatal("expected error for empty API key")
	}
}

func TestNewAnthropicProviderDefaults(t *testing.T) {
	p, err := NewAnthropicProvider(AnthropicConfig{APIKey: "sk-ant-test"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.defaultModel != "claude-sonnet-4-20250514" {
		t.Errorf("defaultModel = %q, want default sonnet", p.defaultModel)
	}
	if p.Name() != "anthropic" {
		t.Errorf("Name() = %q, want anthropic", p.Name())
	}
	if p.ReasoningMode() != models.ReasoningModeReasoning {
		t.Errorf("ReasoningMode() = %q, want reasoning", p.ReasoningMode())
	}
	if len(p.Models()) == 0 {
		t.Error("Models() returned none")
	}
}

func TestConvertMessagesUser(t *testing.T) {
	p, _ := NewAnthropicProvider(AnthropicConfig{APIKey: "sk-ant-test"})
	msgs, err := p.convertMessages([]models.Message{*models.NewUserMessage("m1", "hello")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected 1 converted message, got %d", len(msgs))
	}
}

func TestConvertMessagesAssistantToolCall(t *testing.T) {
	p, _ := NewAnthropicProvider(AnthropicConfig{APIKey: "sk-ant-test"})
	call := models.ToolCallPart{Type: models.PartToolCall, ID: "t1", Name: "search", Input: json.RawMessage(`{"q":"go"}`)}
	msg := models.Message{Role: models.RoleAssistant, Parts: []models.AssistantPart{{Type: models.PartToolCall, ToolCall: &call}}}
	msgs, err := p.convertMessages([]models.Message{msg})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected 1 converted message, got %d", len(msgs))
	}
}

func TestConvertMessagesToolResult(t *testing.T) {
	p, _ := NewAnthropicProvider(AnthropicConfig{APIKey: "sk-ant-test"})
	msg := models.NewToolResultMessage("tr1", "t1", "search", []models.TextPart{models.NewTextPart("ok")}, false)
	msgs, err := p.convertMessages([]models.Message{*msg})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected 1 converted message, got %d", len(msgs))
	}
}

func TestConvertMessagesInvalidToolInput(t *testing.T) {
	p, _ := NewAnthropicProvider(AnthropicConfig{APIKey: "sk-ant-test"})
	call := models.ToolCallPart{Type: models.PartToolCall, ID: "t1", Name: "search", Input: json.RawMessage(`not-json`)}
	msg := models.Message{Role: models.RoleAssistant, Parts: []models.AssistantPart{{Type: models.PartToolCall, ToolCall: &call}}}
	if _, err := p.convertMessages([]models.Message{msg}); err == nil {
		t.Fatal("expected error for malformed tool input JSON")
	}
}

func TestWrapErrorPassesThroughProviderError(t *testing.T) {
	p, _ := NewAnthropicProvider(AnthropicConfig{APIKey: "sk-ant-test"})
	original := NewProviderError("anthropic", "claude", errors.New("boom"))
	if got := p.wrapError(original, "claude"); got != original {
		t.Errorf("wrapError should pass an existing *ProviderError through unchanged, got %v", got)
	}
}

func TestWrapErrorNil(t *testing.T) {
	p, _ := NewAnthropicProvider(AnthropicConfig{APIKey: "sk-ant-test"})
	if err := p.wrapError(nil, "claude"); err != nil {
		t.Errorf("wrapError(nil) = %v, want nil", err)
	}
}

func TestIsAnthropicRetryable(t *testing.T) {
	if isAnthropicRetryable(nil) {
		t.Error("nil error should not be retryable")
	}
}
