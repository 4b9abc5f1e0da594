package models

import "encoding/json"

// StreamPartType discriminates a StreamPart's payload, mirroring the
// discriminator+optional-pointer-payload shape used throughout this package.
type StreamPartType string

const (
	PartStart      StreamPartType = "start"
	PartFinish     StreamPartType = "finish"
	PartAbort      StreamPartType = "abort"
	PartError      StreamPartType = "error"
	PartStartStep  StreamPartType = "start_step"
	PartFinishStep StreamPartType = "finish_step"

	PartTextStart StreamPartType = "text_start"
	PartTextDelta StreamPartType = "text_delta"
	PartTextEnd   StreamPartType = "text_end"

	PartReasoningStart StreamPartType = "reasoning_start"
	PartReasoningDelta StreamPartType = "reasoning_delta"
	PartReasoningEnd   StreamPartType = "reasoning_end"

	PartToolInputStart    StreamPartType = "tool_input_start"
	PartToolInputDelta    StreamPartType = "tool_input_delta"
	PartToolInputEnd      StreamPartType = "tool_input_end"
	PartToolCall          StreamPartType = "tool_call"
	PartToolResult        StreamPartType = "tool_result"
	PartToolError         StreamPartType = "tool_error"
	PartToolOutputDenied  StreamPartType = "tool_output_denied"
	PartToolApprovalReq   StreamPartType = "tool_approval_request"

	PartRaw     StreamPartType = "raw"
	PartUnknown StreamPartType = "unknown"
)

// ReasoningMode distinguishes OpenAI-family "summary" reasoning from the
// "reasoning" mode used by other provider families.
type ReasoningMode string

const (
	ReasoningModeReasoning ReasoningMode = "reasoning"
	ReasoningModeSummary   ReasoningMode = "summary"
)

// Usage aggregates token accounting for a step or a whole turn.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// FinishReason classifies why a step or turn stopped.
type FinishReason string

const (
	FinishStop            FinishReason = "stop"
	FinishToolCalls       FinishReason = "tool_calls"
	FinishStepLimit       FinishReason = "step_limit_reached"
	FinishAbort           FinishReason = "aborted"
	FinishError           FinishReason = "error"
)

// StreamPart is the canonical, provider-agnostic element of the model
// stream. Exactly one payload field is populated, selected by Type — the
// same tagged-variant idiom as Message and AssistantPart.
type StreamPart struct {
	Type StreamPartType `json:"type"`

	// Lifecycle payloads.
	Finish     *FinishPayload     `json:"finish,omitempty"`
	Abort      *AbortPayload      `json:"abort,omitempty"`
	Error      *ErrorPayload      `json:"error,omitempty"`
	StartStep  *StepPayload       `json:"start_step,omitempty"`
	FinishStep *FinishStepPayload `json:"finish_step,omitempty"`

	// Text payloads.
	TextStart *IDPayload    `json:"text_start,omitempty"`
	TextDelta *DeltaPayload `json:"text_delta,omitempty"`
	TextEnd   *IDPayload    `json:"text_end,omitempty"`

	// Reasoning payloads.
	ReasoningStart *ReasoningEdgePayload `json:"reasoning_start,omitempty"`
	ReasoningDelta *ReasoningDeltaPayload `json:"reasoning_delta,omitempty"`
	ReasoningEnd   *ReasoningEdgePayload `json:"reasoning_end,omitempty"`

	// Tool payloads.
	ToolInputStart   *ToolKeyNamePayload    `json:"tool_input_start,omitempty"`
	ToolInputDelta   *ToolInputDeltaPayload `json:"tool_input_delta,omitempty"`
	ToolInputEnd     *ToolKeyNamePayload    `json:"tool_input_end,omitempty"`
	ToolCall         *ToolCallPayload       `json:"tool_call,omitempty"`
	ToolResult       *ToolResultPayload     `json:"tool_result,omitempty"`
	ToolError        *ToolErrorPayload      `json:"tool_error,omitempty"`
	ToolOutputDenied *ToolDeniedPayload     `json:"tool_output_denied,omitempty"`
	ToolApproval     *ToolApprovalPayload   `json:"tool_approval_request,omitempty"`

	// Opaque payloads.
	Raw     json.RawMessage  `json:"raw,omitempty"`
	Unknown *UnknownPayload  `json:"unknown,omitempty"`
}

type FinishPayload struct {
	Reason FinishReason `json:"reason"`
	Usage  Usage        `json:"usage"`
}

type AbortPayload struct {
	Reason string `json:"reason"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Source  string `json:"source"`
	Message string `json:"message"`
}

type StepPayload struct {
	N int `json:"n"`
}

type FinishStepPayload struct {
	N      int          `json:"n"`
	Usage  Usage        `json:"usage"`
	Reason FinishReason `json:"reason"`
}

type IDPayload struct {
	ID string `json:"id"`
}

type DeltaPayload struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type ReasoningEdgePayload struct {
	ID   string        `json:"id"`
	Mode ReasoningMode `json:"mode"`
}

type ReasoningDeltaPayload struct {
	ID   string        `json:"id"`
	Mode ReasoningMode `json:"mode"`
	Text string        `json:"text"`
}

type ToolKeyNamePayload struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

type ToolInputDeltaPayload struct {
	Key   string `json:"key"`
	Delta string `json:"delta"`
}

type ToolCallPayload struct {
	Key   string          `json:"key"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

type ToolResultPayload struct {
	Key    string      `json:"key"`
	Name   string       `json:"name"`
	Output ToolOutcome `json:"output"`
}

type ToolErrorPayload struct {
	Key   string `json:"key"`
	Name  string `json:"name"`
	Error string `json:"error"`
}

type ToolDeniedPayload struct {
	Key    string `json:"key"`
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

type ToolApprovalPayload struct {
	ApprovalID string       `json:"approval_id"`
	Call       ToolCallPart `json:"call"`
}

type UnknownPayload struct {
	PartType string          `json:"part_type"`
	Payload  json.RawMessage `json:"payload"`
}

// Helper constructors for the lifecycle parts used on every step.

func StartPart() StreamPart { return StreamPart{Type: PartStart} }

func FinishPart(reason FinishReason, usage Usage) StreamPart {
	return StreamPart{Type: PartFinish, Finish: &FinishPayload{Reason: reason, Usage: usage}}
}

func AbortPart(reason string) StreamPart {
	return StreamPart{Type: PartAbort, Abort: &AbortPayload{Reason: reason}}
}

func ErrorPart(code, source, message string) StreamPart {
	return StreamPart{Type: PartError, Error: &ErrorPayload{Code: code, Source: source, Message: message}}
}

func StartStepPart(n int) StreamPart {
	return StreamPart{Type: PartStartStep, StartStep: &StepPayload{N: n}}
}

func FinishStepPart(n int, usage Usage, reason FinishReason) StreamPart {
	return StreamPart{Type: PartFinishStep, FinishStep: &FinishStepPayload{N: n, Usage: usage, Reason: reason}}
}

func UnknownPart(partType string, payload json.RawMessage) StreamPart {
	return StreamPart{Type: PartUnknown, Unknown: &UnknownPayload{PartType: partType, Payload: payload}}
}
