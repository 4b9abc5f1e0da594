package agent

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/mweinbach/agent-coworker-sub008/pkg/models"
)

// StreamSink is the always-present triple of stream callbacks spec §9 asks
// for in place of a conditionally-nil callback bag: the adapter never needs
// to nil-check it. NewNoopSink supplies the no-op default.
type StreamSink struct {
	OnPart  func(models.StreamPart)
	OnAbort func()
	OnError func(error)
}

// NewNoopSink returns a StreamSink whose every callback is a no-op.
func NewNoopSink() StreamSink {
	return StreamSink{
		OnPart:  func(models.StreamPart) {},
		OnAbort: func() {},
		OnError: func(error) {},
	}
}

func (s StreamSink) filled() StreamSink {
	if s.OnPart == nil {
		s.OnPart = func(models.StreamPart) {}
	}
	if s.OnAbort == nil {
		s.OnAbort = func() {}
	}
	if s.OnError == nil {
		s.OnError = func(error) {}
	}
	return s
}

// StepOverrides is what a prepareStep hook may return to alter the next
// step's request (spec §4.6): replace the message list, or merge
// provider/stream options (options merging is represented as a freeform
// map since callers construct their own provider-specific option sets).
type StepOverrides struct {
	Messages       []models.Message
	ProviderOptions map[string]any
	StreamOptions   map[string]any
}

// PrepareStepFunc previews the messages about to be sent for stepNumber and
// optionally overrides them before the provider call.
type PrepareStepFunc func(stepNumber int, messages []models.Message) *StepOverrides

// TurnParams configures one RunTurn invocation.
type TurnParams struct {
	SessionID string
	Model     string
	System    string
	Messages  []models.Message
	MaxSteps  int

	PrepareStep PrepareStepFunc
	Sink        StreamSink
}

// TurnResult is what RunTurn resolves to once the bounded loop stops.
type TurnResult struct {
	Text             string
	ReasoningText    string
	ResponseMessages []models.Message
	Usage            models.Usage
}

// RuntimeAdapter wraps one concrete LLMProvider and drives the bounded
// step loop of spec §4.4: translate provider events to StreamParts,
// dispatch any tool calls the assistant message carries, and repeat until
// the model stops calling tools or the step budget is exhausted. Grounded
// on the teacher's Runtime.run (internal/agent/runtime.go, pre-rewrite, the
// production step loop — internal/agent/loop.go's AgenticLoop had zero
// external callers and contributed only its Init/Stream/ExecuteTools
// phase-naming and LoopConfig sanitization pattern, see DESIGN.md).
type RuntimeAdapter struct {
	Provider   LLMProvider
	Dispatcher *ToolDispatcher
	Telemetry  TelemetryRecorder
}

// NewRuntimeAdapter creates an adapter with a no-op telemetry recorder.
func NewRuntimeAdapter(provider LLMProvider, dispatcher *ToolDispatcher) *RuntimeAdapter {
	return &RuntimeAdapter{Provider: provider, Dispatcher: dispatcher, Telemetry: NoopTelemetry()}
}

// RunTurn executes the bounded step loop described by spec §4.4 steps 1-7.
func (a *RuntimeAdapter) RunTurn(ctx context.Context, params TurnParams) (TurnResult, error) {
	sink := params.Sink.filled()
	maxSteps := params.MaxSteps
	if maxSteps <= 0 {
		maxSteps = 1
	}

	messages := append([]models.Message(nil), params.Messages...)
	var total models.Usage
	var responseMessages []models.Message
	var finalText, finalReasoning string

	for step := 1; step <= maxSteps; step++ {
		if params.PrepareStep != nil {
			if overrides := params.PrepareStep(step, messages); overrides != nil && overrides.Messages != nil {
				messages = overrides.Messages
			}
		}

		sink.OnPart(models.StartStepPart(step))
		a.Telemetry.RecordStepStart(params.SessionID, step, nil)

		reasoningMode := a.Provider.ReasoningMode()
		result, err := a.Provider.Stream(ctx, StepRequest{
			Model:    params.Model,
			System:   params.System,
			Messages: messages,
			Tools:    a.Dispatcher.Descriptors(),
		}, func(part models.StreamPart) {
			annotateReasoningMode(&part, reasoningMode)
			sink.OnPart(part)
			a.Telemetry.RecordStreamPart(params.SessionID, part)
		})

		if ctx.Err() != nil {
			sink.OnAbort()
			a.Telemetry.RecordError(params.SessionID, ctx.Err())
			return TurnResult{}, WrapTurnError(ErrorCodeTurnAborted, ErrorSourceSession, ctx.Err())
		}
		if err != nil {
			turnErr := WrapTurnError(ErrorCodeProviderError, ErrorSourceProvider, err)
			sink.OnError(turnErr)
			a.Telemetry.RecordError(params.SessionID, turnErr)
			return TurnResult{}, turnErr
		}

		total = addUsage(total, result.Usage)
		sink.OnPart(models.FinishStepPart(step, result.Usage, result.StopReason))
		a.Telemetry.RecordStepEnd(params.SessionID, step, result.Usage, result.StopReason)

		if result.StopReason == models.FinishError {
			turnErr := NewTurnError(ErrorCodeProviderError, ErrorSourceProvider, "provider reported a stream error")
			sink.OnError(turnErr)
			return TurnResult{}, turnErr
		}
		if result.StopReason == models.FinishAbort {
			sink.OnAbort()
			return TurnResult{}, NewTurnError(ErrorCodeTurnAborted, ErrorSourceProvider, "provider reported an aborted stream")
		}

		assistant := result.AssistantMessage
		messages = append(messages, assistant)
		finalText = assistant.AssistantText()
		finalReasoning = assistant.AssistantReasoningText()

		toolCalls := assistant.ToolCalls()
		if len(toolCalls) == 0 {
			responseMessages = append(responseMessages, assistant)
			sink.OnPart(models.FinishPart(models.FinishStop, total))
			return TurnResult{Text: finalText, ReasoningText: finalReasoning, ResponseMessages: responseMessages, Usage: total}, nil
		}
		responseMessages = append(responseMessages, assistant)

		for _, call := range toolCalls {
			toolCall := models.ToolCall{ID: call.ID, Name: call.Name, Input: call.Input}
			sink.OnPart(models.StreamPart{Type: models.PartToolCall, ToolCall: &models.ToolCallPayload{Key: call.ID, Name: call.Name, Input: call.Input}})

			outcome, dispatchErr := a.Dispatcher.Execute(ctx, toolCall)
			if dispatchErr != nil {
				sink.OnAbort()
				return TurnResult{}, WrapTurnError(ErrorCodeTurnAborted, ErrorSourceSession, dispatchErr)
			}

			switch {
			case IsDenied(outcome):
				sink.OnPart(models.StreamPart{Type: models.PartToolOutputDenied, ToolOutputDenied: &models.ToolDeniedPayload{Key: call.ID, Name: call.Name, Reason: "denied"}})
			case outcome.IsError:
				sink.OnPart(models.StreamPart{Type: models.PartToolError, ToolError: &models.ToolErrorPayload{Key: call.ID, Name: call.Name, Error: outcome.ErrorText()}})
			default:
				sink.OnPart(models.StreamPart{Type: models.PartToolResult, ToolResult: &models.ToolResultPayload{Key: call.ID, Name: call.Name, Output: outcome}})
			}

			toolMsg := models.NewToolResultMessage(uuid.NewString(), call.ID, call.Name, outcome.Content, outcome.IsError)
			messages = append(messages, *toolMsg)
			responseMessages = append(responseMessages, *toolMsg)
		}

		if step == maxSteps {
			sink.OnPart(models.FinishPart(models.FinishStepLimit, total))
			return TurnResult{Text: finalText, ReasoningText: finalReasoning, ResponseMessages: responseMessages, Usage: total}, nil
		}
	}

	return TurnResult{}, fmt.Errorf("agent: unreachable: step loop exited without a terminal result")
}

// annotateReasoningMode stamps a reasoning StreamPart's mode field when the
// provider's translation layer left it zero-valued, defaulting to the
// provider family's reasoning mode (spec §4.4 step 2).
func annotateReasoningMode(part *models.StreamPart, mode models.ReasoningMode) {
	switch part.Type {
	case models.PartReasoningStart:
		if part.ReasoningStart != nil && part.ReasoningStart.Mode == "" {
			part.ReasoningStart.Mode = mode
		}
	case models.PartReasoningDelta:
		if part.ReasoningDelta != nil && part.ReasoningDelta.Mode == "" {
			part.ReasoningDelta.Mode = mode
		}
	case models.PartReasoningEnd:
		if part.ReasoningEnd != nil && part.ReasoningEnd.Mode == "" {
			part.ReasoningEnd.Mode = mode
		}
	}
}
