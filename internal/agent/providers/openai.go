package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mweinbach/agent-coworker-sub008/internal/agent"
	"github.com/mweinbach/agent-coworker-sub008/pkg/models"
	openai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider implements agent.LLMProvider over OpenAI's chat completions
// streaming API. Grounded on the teacher's OpenAIProvider
// (internal/agent/providers/openai.go, pre-rewrite) for the client/retry
// shape; Stream now translates each chunk into the canonical
// models.StreamPart sequence of spec §4.4 instead of the teacher's
// CompletionChunk union. go-openai exposes chat completions streaming, not
// the newer Responses API events SPEC_FULL.md's translation table names
// (response.output_text.delta etc) — translated 1:1 from the closest chat
// completions equivalent (delta.Content, delta.ToolCalls, FinishReason),
// see DESIGN.md.
type OpenAIProvider struct {
	base BaseProvider

	client *openai.Client
}

// NewOpenAIProvider creates a provider bound to apiKey. An empty apiKey
// yields a provider whose Stream always fails, for tests that exercise the
// unconfigured path.
func NewOpenAIProvider(apiKey string) *OpenAIProvider {
	p := &OpenAIProvider{base: NewBaseProvider("openai", 3, time.Second)}
	if apiKey != "" {
		p.client = openai.NewClient(apiKey)
	}
	return p
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) Models() []agent.Model {
	return []agent.Model{
		{ID: "gpt-4o", Name: "GPT-4o", ContextSize: 128000, SupportsVision: true},
		{ID: "gpt-4-turbo", Name: "GPT-4 Turbo", ContextSize: 128000, SupportsVision: true},
		{ID: "gpt-4", Name: "GPT-4", ContextSize: 8192, SupportsVision: false},
		{ID: "gpt-3.5-turbo", Name: "GPT-3.5 Turbo", ContextSize: 16385, SupportsVision: false},
	}
}

func (p *OpenAIProvider) SupportsTools() bool { return true }

// ReasoningMode returns models.ReasoningModeSummary: OpenAI-family models
// surface reasoning as a post-hoc summary, not raw chain-of-thought (spec
// §4.4's translation table).
func (p *OpenAIProvider) ReasoningMode() models.ReasoningMode { return models.ReasoningModeSummary }

// Stream sends req and emits StreamParts as the chat completion streams
// back, per spec §4.4 step 2. It never buffers the full response before
// emitting: each delta is translated and forwarded as it arrives.
func (p *OpenAIProvider) Stream(ctx context.Context, req agent.StepRequest, onPart func(models.StreamPart)) (agent.StepResult, error) {
	if p.client == nil {
		return agent.StepResult{}, errors.New("openai: API key not configured")
	}

	chatReq, err := p.buildRequest(req)
	if err != nil {
		return agent.StepResult{}, fmt.Errorf("openai: build request: %w", err)
	}

	var stream *openai.ChatCompletionStream
	retryErr := p.base.Retry(ctx, isOpenAIRetryable, func() error {
		s, streamErr := p.client.CreateChatCompletionStream(ctx, chatReq)
		if streamErr != nil {
			return streamErr
		}
		stream = s
		return nil
	})
	if retryErr != nil {
		return agent.StepResult{}, fmt.Errorf("openai: stream request: %w", retryErr)
	}
	defer stream.Close()

	onPart(models.StartPart())

	toolBuilders := make(map[int]*toolCallBuilder)
	var order []int
	var textBuilder strings.Builder
	textOpen := false
	var stopReason models.FinishReason = models.FinishStop
	var usage models.Usage

	for {
		if ctx.Err() != nil {
			return agent.StepResult{}, ctx.Err()
		}

		chunk, recvErr := stream.Recv()
		if recvErr != nil {
			if errors.Is(recvErr, io.EOF) {
				break
			}
			onPart(models.ErrorPart("provider_error", "provider", recvErr.Error()))
			return agent.StepResult{}, fmt.Errorf("openai: stream recv: %w", recvErr)
		}

		if chunk.Usage != nil {
			usage.InputTokens += chunk.Usage.PromptTokens
			usage.OutputTokens += chunk.Usage.CompletionTokens
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		choice := chunk.Choices[0]
		delta := choice.Delta

		if delta.Content != "" {
			if !textOpen {
				onPart(models.StreamPart{Type: models.PartTextStart, TextStart: &models.IDPayload{ID: "text"}})
				textOpen = true
			}
			textBuilder.WriteString(delta.Content)
			onPart(models.StreamPart{Type: models.PartTextDelta, TextDelta: &models.DeltaPayload{ID: "text", Text: delta.Content}})
		}

		for _, tc := range delta.ToolCalls {
			idx := 0
			if tc.Index != nil {
				idx = *tc.Index
			}
			b, ok := toolBuilders[idx]
			if !ok {
				b = &toolCallBuilder{id: tc.ID, name: tc.Function.Name}
				if b.id == "" {
					b.id = uuid.NewString()
				}
				toolBuilders[idx] = b
				order = append(order, idx)
				onPart(models.StreamPart{Type: models.PartToolInputStart, ToolInputStart: &models.ToolKeyNamePayload{Key: b.id, Name: b.name}})
			}
			if tc.Function.Arguments != "" {
				b.args.WriteString(tc.Function.Arguments)
				onPart(models.StreamPart{Type: models.PartToolInputDelta, ToolInputDelta: &models.ToolInputDeltaPayload{Key: b.id, Delta: tc.Function.Arguments}})
			}
		}

		if choice.FinishReason != "" {
			stopReason = mapOpenAIFinishReason(choice.FinishReason)
		}
	}

	if textOpen {
		onPart(models.StreamPart{Type: models.PartTextEnd, TextEnd: &models.IDPayload{ID: "text"}})
	}

	var parts []models.AssistantPart
	if textBuilder.Len() > 0 {
		text := models.NewTextPart(textBuilder.String())
		parts = append(parts, models.AssistantPart{Type: models.PartText, Text: &text})
	}
	for _, idx := range order {
		b := toolBuilders[idx]
		input := json.RawMessage(b.args.String())
		if len(input) == 0 {
			input = json.RawMessage("{}")
		}
		onPart(models.StreamPart{Type: models.PartToolInputEnd, ToolInputEnd: &models.ToolKeyNamePayload{Key: b.id, Name: b.name}})
		call := models.ToolCallPart{Type: models.PartToolCall, ID: b.id, Name: b.name, Input: input}
		parts = append(parts, models.AssistantPart{Type: models.PartToolCall, ToolCall: &call})
	}
	if len(order) > 0 {
		stopReason = models.FinishToolCalls
	}

	assistant := models.NewAssistantMessage(uuid.NewString(), parts)
	return agent.StepResult{AssistantMessage: *assistant, Usage: usage, StopReason: stopReason}, nil
}

type toolCallBuilder struct {
	id   string
	name string
	args strings.Builder
}

func mapOpenAIFinishReason(reason openai.FinishReason) models.FinishReason {
	switch reason {
	case openai.FinishReasonToolCalls, openai.FinishReasonFunctionCall:
		return models.FinishToolCalls
	case openai.FinishReasonLength:
		return models.FinishStepLimit
	case openai.FinishReasonContentFilter:
		return models.FinishError
	default:
		return models.FinishStop
	}
}

func (p *OpenAIProvider) buildRequest(req agent.StepRequest) (openai.ChatCompletionRequest, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}

	for _, msg := range req.Messages {
		converted, err := convertMessageToOpenAI(msg)
		if err != nil {
			return openai.ChatCompletionRequest{}, err
		}
		messages = append(messages, converted...)
	}

	chatReq := openai.ChatCompletionRequest{
		Model:    req.Model,
		Messages: messages,
		Stream:   true,
		StreamOptions: &openai.StreamOptions{
			IncludeUsage: true,
		},
	}
	if req.MaxTokens > 0 {
		chatReq.MaxTokens = req.MaxTokens
	}
	if len(req.Tools) > 0 {
		chatReq.Tools = convertToolsToOpenAI(req.Tools)
	}
	return chatReq, nil
}

func convertMessageToOpenAI(msg models.Message) ([]openai.ChatCompletionMessage, error) {
	switch msg.Role {
	case models.RoleUser:
		return []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: msg.Text}}, nil
	case models.RoleAssistant:
		out := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: msg.AssistantText()}
		for _, call := range msg.ToolCalls() {
			out.ToolCalls = append(out.ToolCalls, openai.ToolCall{
				ID:   call.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      call.Name,
					Arguments: string(call.Input),
				},
			})
		}
		return []openai.ChatCompletionMessage{out}, nil
	case models.RoleTool:
		var text strings.Builder
		for _, part := range msg.Content {
			text.WriteString(part.Text)
		}
		return []openai.ChatCompletionMessage{{
			Role:       openai.ChatMessageRoleTool,
			Content:    text.String(),
			ToolCallID: msg.ToolCallID,
		}}, nil
	default:
		return nil, fmt.Errorf("openai: unsupported message role %q", msg.Role)
	}
}

func convertToolsToOpenAI(tools []models.ToolDescriptor) []openai.Tool {
	out := make([]openai.Tool, len(tools))
	for i, tool := range tools {
		var schema map[string]any
		if tool.InputSchema == nil {
			schema = map[string]any{"type": "object", "properties": map[string]any{}}
		} else if err := json.Unmarshal(tool.InputSchema.JSONSchema(), &schema); err != nil {
			schema = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		out[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  schema,
			},
		}
	}
	return out
}

func isOpenAIRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "rate limit"), strings.Contains(msg, "429"):
		return true
	case strings.Contains(msg, "500"), strings.Contains(msg, "502"), strings.Contains(msg, "503"), strings.Contains(msg, "504"):
		return true
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "deadline exceeded"):
		return true
	default:
		return false
	}
}
