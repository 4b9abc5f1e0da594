// Package providers implements agent.LLMProvider for the concrete LLM
// backends this repo ships with.
package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"
	"github.com/google/uuid"
	"github.com/mweinbach/agent-coworker-sub008/internal/agent"
	"github.com/mweinbach/agent-coworker-sub008/pkg/models"
)

// AnthropicProvider implements agent.LLMProvider over Claude's
// Messages-streaming API. Grounded on the teacher's AnthropicProvider
// (internal/agent/providers/anthropic.go, pre-rewrite): client setup,
// retry/error classification, and the content_block_start/delta/stop event
// switch are kept; Stream now translates directly into the canonical
// models.StreamPart sequence (spec §4.4) instead of the teacher's
// CompletionChunk union. The teacher's beta computer-use streaming path
// (createBetaStream/processBetaStream) is dropped — SPEC_FULL.md has no
// computer-use tool, see DESIGN.md.
type AnthropicProvider struct {
	base BaseProvider

	client       anthropic.Client
	defaultModel string
}

// AnthropicConfig configures NewAnthropicProvider.
type AnthropicConfig struct {
	APIKey       string
	BaseURL      string
	MaxRetries   int
	RetryDelay   time.Duration
	DefaultModel string
}

// NewAnthropicProvider builds a provider from config. APIKey is required.
func NewAnthropicProvider(config AnthropicConfig) (*AnthropicProvider, error) {
	if config.APIKey == "" {
		return nil, errors.New("anthropic: API key is required")
	}
	if config.DefaultModel == "" {
		config.DefaultModel = "claude-sonnet-4-20250514"
	}

	opts := []option.RequestOption{option.WithAPIKey(config.APIKey)}
	if strings.TrimSpace(config.BaseURL) != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}

	return &AnthropicProvider{
		base:         NewBaseProvider("anthropic", config.MaxRetries, config.RetryDelay),
		client:       anthropic.NewClient(opts...),
		defaultModel: config.DefaultModel,
	}, nil
}

func (p *AnthropicProvider) Name() string { return "anthropic" }

func (p *AnthropicProvider) Models() []agent.Model {
	return []agent.Model{
		{ID: "claude-sonnet-4-20250514", Name: "Claude Sonnet 4", ContextSize: 200000, SupportsVision: true},
		{ID: "claude-opus-4-20250514", Name: "Claude Opus 4", ContextSize: 200000, SupportsVision: true},
		{ID: "claude-3-5-sonnet-20241022", Name: "Claude 3.5 Sonnet", ContextSize: 200000, SupportsVision: true},
		{ID: "claude-3-haiku-20240307", Name: "Claude 3 Haiku", ContextSize: 200000, SupportsVision: true},
	}
}

func (p *AnthropicProvider) SupportsTools() bool { return true }

// ReasoningMode returns models.ReasoningModeReasoning: Claude's extended
// thinking surfaces as raw reasoning text, not a post-hoc summary (spec
// §4.4's translation table, OpenAI-family is the summary exception).
func (p *AnthropicProvider) ReasoningMode() models.ReasoningMode { return models.ReasoningModeReasoning }

type blockKind int

const (
	blockNone blockKind = iota
	blockText
	blockThinking
	blockToolUse
)

// Stream sends req and emits StreamParts as Claude's SSE stream arrives, per
// spec §4.4 step 2.
func (p *AnthropicProvider) Stream(ctx context.Context, req agent.StepRequest, onPart func(models.StreamPart)) (agent.StepResult, error) {
	params, err := p.buildParams(req)
	if err != nil {
		return agent.StepResult{}, fmt.Errorf("anthropic: build request: %w", err)
	}

	var stream *ssestream.Stream[anthropic.MessageStreamEventUnion]
	retryErr := p.base.Retry(ctx, isAnthropicRetryable, func() error {
		stream = p.client.Messages.NewStreaming(ctx, params)
		return nil
	})
	if retryErr != nil {
		return agent.StepResult{}, p.wrapError(retryErr, req.Model)
	}

	onPart(models.StartPart())

	var usage models.Usage
	var textBuilder, reasoningBuilder strings.Builder
	var parts []models.AssistantPart
	current := blockNone
	var toolID, toolName string
	var toolArgs strings.Builder

	for stream.Next() {
		if ctx.Err() != nil {
			return agent.StepResult{}, ctx.Err()
		}
		event := stream.Current()

		switch event.Type {
		case "message_start":
			ms := event.AsMessageStart()
			usage.InputTokens += int(ms.Message.Usage.InputTokens)

		case "content_block_start":
			block := event.AsContentBlockStart().ContentBlock
			switch block.Type {
			case "text":
				current = blockText
				onPart(models.StreamPart{Type: models.PartTextStart, TextStart: &models.IDPayload{ID: "text"}})
			case "thinking":
				current = blockThinking
				onPart(models.StreamPart{Type: models.PartReasoningStart, ReasoningStart: &models.ReasoningEdgePayload{ID: "reasoning", Mode: models.ReasoningModeReasoning}})
			case "tool_use":
				current = blockToolUse
				toolUse := block.AsToolUse()
				toolID, toolName = toolUse.ID, toolUse.Name
				toolArgs.Reset()
				onPart(models.StreamPart{Type: models.PartToolInputStart, ToolInputStart: &models.ToolKeyNamePayload{Key: toolID, Name: toolName}})
			}

		case "content_block_delta":
			delta := event.AsContentBlockDelta().Delta
			switch delta.Type {
			case "text_delta":
				if delta.Text != "" {
					textBuilder.WriteString(delta.Text)
					onPart(models.StreamPart{Type: models.PartTextDelta, TextDelta: &models.DeltaPayload{ID: "text", Text: delta.Text}})
				}
			case "thinking_delta":
				if delta.Thinking != "" {
					reasoningBuilder.WriteString(delta.Thinking)
					onPart(models.StreamPart{Type: models.PartReasoningDelta, ReasoningDelta: &models.ReasoningDeltaPayload{ID: "reasoning", Mode: models.ReasoningModeReasoning, Text: delta.Thinking}})
				}
			case "input_json_delta":
				if delta.PartialJSON != "" {
					toolArgs.WriteString(delta.PartialJSON)
					onPart(models.StreamPart{Type: models.PartToolInputDelta, ToolInputDelta: &models.ToolInputDeltaPayload{Key: toolID, Delta: delta.PartialJSON}})
				}
			}

		case "content_block_stop":
			switch current {
			case blockText:
				onPart(models.StreamPart{Type: models.PartTextEnd, TextEnd: &models.IDPayload{ID: "text"}})
			case blockThinking:
				onPart(models.StreamPart{Type: models.PartReasoningEnd, ReasoningEnd: &models.ReasoningEdgePayload{ID: "reasoning", Mode: models.ReasoningModeReasoning}})
			case blockToolUse:
				input := json.RawMessage(toolArgs.String())
				if len(input) == 0 {
					input = json.RawMessage("{}")
				}
				onPart(models.StreamPart{Type: models.PartToolInputEnd, ToolInputEnd: &models.ToolKeyNamePayload{Key: toolID, Name: toolName}})
				call := models.ToolCallPart{Type: models.PartToolCall, ID: toolID, Name: toolName, Input: input}
				parts = append(parts, models.AssistantPart{Type: models.PartToolCall, ToolCall: &call})
			}
			current = blockNone

		case "message_delta":
			md := event.AsMessageDelta()
			usage.OutputTokens += int(md.Usage.OutputTokens)

		case "error":
			wrapped := p.wrapError(errors.New("anthropic: stream error"), req.Model)
			onPart(models.ErrorPart("provider_error", "provider", wrapped.Error()))
			return agent.StepResult{}, wrapped
		}
	}

	if err := stream.Err(); err != nil {
		wrapped := p.wrapError(err, req.Model)
		onPart(models.ErrorPart("provider_error", "provider", wrapped.Error()))
		return agent.StepResult{}, wrapped
	}

	stopReason := models.FinishStop
	if reasoningBuilder.Len() > 0 {
		r := models.ReasoningPart{Type: models.PartReasoning, Mode: string(models.ReasoningModeReasoning), Text: reasoningBuilder.String()}
		parts = append([]models.AssistantPart{{Type: models.PartReasoning, Reasoning: &r}}, parts...)
	}
	if textBuilder.Len() > 0 {
		t := models.NewTextPart(textBuilder.String())
		parts = append(parts, models.AssistantPart{Type: models.PartText, Text: &t})
	}
	hasToolCalls := false
	for _, part := range parts {
		if part.Type == models.PartToolCall {
			hasToolCalls = true
			break
		}
	}
	if hasToolCalls {
		stopReason = models.FinishToolCalls
	}

	assistant := models.NewAssistantMessage(uuid.NewString(), parts)
	return agent.StepResult{AssistantMessage: *assistant, Usage: usage, StopReason: stopReason}, nil
}

func (p *AnthropicProvider) buildParams(req agent.StepRequest) (anthropic.MessageNewParams, error) {
	messages, err := p.convertMessages(req.Messages)
	if err != nil {
		return anthropic.MessageNewParams{}, err
	}

	model := req.Model
	if model == "" {
		model = p.defaultModel
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		Messages:  messages,
		MaxTokens: int64(maxTokens),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Type: "text", Text: req.System}}
	}
	if len(req.Tools) > 0 {
		tools, err := p.convertTools(req.Tools)
		if err != nil {
			return anthropic.MessageNewParams{}, err
		}
		params.Tools = tools
	}
	if req.EnableThinking {
		budget := int64(req.ThinkingBudgetTokens)
		if budget < 1024 {
			budget = 10000
		}
		params.Thinking = anthropic.ThinkingConfigParamOfEnabled(budget)
	}
	return params, nil
}

func (p *AnthropicProvider) convertMessages(messages []models.Message) ([]anthropic.MessageParam, error) {
	var result []anthropic.MessageParam

	for _, msg := range messages {
		var content []anthropic.ContentBlockParamUnion

		switch msg.Role {
		case models.RoleUser:
			content = append(content, anthropic.NewTextBlock(msg.Text))
			result = append(result, anthropic.NewUserMessage(content...))

		case models.RoleAssistant:
			for _, part := range msg.Parts {
				switch part.Type {
				case models.PartText:
					if part.Text != nil {
						content = append(content, anthropic.NewTextBlock(part.Text.Text))
					}
				case models.PartToolCall:
					if part.ToolCall != nil {
						var input map[string]any
						if err := json.Unmarshal(part.ToolCall.Input, &input); err != nil {
							return nil, fmt.Errorf("anthropic: invalid tool call input: %w", err)
						}
						content = append(content, anthropic.NewToolUseBlock(part.ToolCall.ID, input, part.ToolCall.Name))
					}
				}
			}
			result = append(result, anthropic.NewAssistantMessage(content...))

		case models.RoleTool:
			var text strings.Builder
			for _, c := range msg.Content {
				text.WriteString(c.Text)
			}
			content = append(content, anthropic.NewToolResultBlock(msg.ToolCallID, text.String(), msg.IsError))
			result = append(result, anthropic.NewUserMessage(content...))
		}
	}

	return result, nil
}

func (p *AnthropicProvider) convertTools(tools []models.ToolDescriptor) ([]anthropic.ToolUnionParam, error) {
	result := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, tool := range tools {
		raw := json.RawMessage(`{"type":"object","properties":{}}`)
		if tool.InputSchema != nil {
			raw = tool.InputSchema.JSONSchema()
		}
		var schema anthropic.ToolInputSchemaParam
		if err := json.Unmarshal(raw, &schema); err != nil {
			return nil, fmt.Errorf("anthropic: invalid tool schema for %s: %w", tool.Name, err)
		}

		toolParam := anthropic.ToolUnionParamOfTool(schema, tool.Name)
		if toolParam.OfTool == nil {
			return nil, fmt.Errorf("anthropic: invalid tool schema for %s: missing tool definition", tool.Name)
		}
		toolParam.OfTool.Description = anthropic.String(tool.Description)
		result = append(result, toolParam)
	}
	return result, nil
}

func isAnthropicRetryable(err error) bool {
	return ShouldFailover(err) || ClassifyError(err).IsRetryable()
}

// wrapError classifies err into a *ProviderError carrying HTTP status/code/
// request id when the SDK's own error type is present, for the
// retry/failover machinery in errors.go to act on.
func (p *AnthropicProvider) wrapError(err error, model string) error {
	if err == nil {
		return nil
	}
	if IsProviderError(err) {
		return err
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		providerErr := NewProviderError("anthropic", model, err).WithStatus(apiErr.StatusCode)
		if apiErr.RequestID != "" {
			providerErr = providerErr.WithRequestID(apiErr.RequestID)
		}
		if providerErr.Message == "" {
			providerErr.Message = "anthropic request failed"
		}
		return providerErr
	}
	return NewProviderError("anthropic", model, err)
}
