package agent

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/mweinbach/agent-coworker-sub008/pkg/models"
)

// TurnOrchestrator drives one user turn at a time for a session: it
// serializes concurrent sendUserMessage calls behind a single-bit lock,
// runs the RuntimeAdapter's bounded step loop, and appends to the
// transcript only after a step completes successfully (spec §4.6).
// Grounded on the teacher's Runtime.Process (internal/agent/runtime.go,
// pre-rewrite) for the "one turn at a time, append after success" shape.
type TurnOrchestrator struct {
	adapter  *RuntimeAdapter
	options  TurnOptions
	running  atomic.Bool
}

// NewTurnOrchestrator creates an orchestrator around adapter with the given
// base options.
func NewTurnOrchestrator(adapter *RuntimeAdapter, options TurnOptions) *TurnOrchestrator {
	return &TurnOrchestrator{adapter: adapter, options: options}
}

// AppendFunc appends a message to a session's transcript. The orchestrator
// never mutates a transcript directly; it calls this closure once per
// successfully-produced message, after the step that produced it completed
// (spec §4.6: "append to the transcript only after a step completes
// successfully, never mid-stream").
type AppendFunc func(models.Message)

// EmitFunc publishes one server-facing event keyed by type; the
// orchestrator uses it for assistant_message/reasoning/error, leaving
// StreamPart fan-out to the sink the caller supplied in TurnParams.
type EmitFunc func(eventType string, payload any)

// SendUserMessage runs one turn for text, appending the user message and
// every message the turn produces via append, and emitting
// assistant_message/reasoning/error events via emit. Concurrent calls while
// a turn is already running return ErrBusy without enqueueing anything,
// per spec §4.6.
func (o *TurnOrchestrator) SendUserMessage(
	ctx context.Context,
	sessionID, model, system, text string,
	history []models.Message,
	prepareStep PrepareStepFunc,
	sink StreamSink,
	append AppendFunc,
	emit EmitFunc,
) error {
	if !o.running.CompareAndSwap(false, true) {
		emit("error", map[string]any{"code": ErrorCodeBusy, "source": ErrorSourceSession, "message": ErrBusy.Message})
		return ErrBusy
	}
	defer o.running.Store(false)

	userMsg := models.NewUserMessage(uuid.NewString(), text)
	append(*userMsg)
	emit("user_message", map[string]any{"text": text})

	messages := append_(history, *userMsg)

	result, err := o.adapter.RunTurn(ctx, TurnParams{
		SessionID:   sessionID,
		Model:       model,
		System:      system,
		Messages:    messages,
		MaxSteps:    o.options.MaxSteps,
		PrepareStep: prepareStep,
		Sink:        sink,
	})
	if err != nil {
		code, source, message := classifyTurnError(err)
		emit("error", map[string]any{"code": code, "source": source, "message": message})
		return err
	}

	for _, m := range result.ResponseMessages {
		append(m)
	}
	if result.ReasoningText != "" {
		emit("reasoning", map[string]any{"text": result.ReasoningText, "kind": "text"})
	}
	if result.Text != "" {
		emit("assistant_message", map[string]any{"text": result.Text})
	}
	return nil
}

// IsRunning reports whether a turn is currently in flight.
func (o *TurnOrchestrator) IsRunning() bool { return o.running.Load() }

// append_ avoids shadowing the append builtin inside SendUserMessage, whose
// AppendFunc parameter is itself named append.
func append_(history []models.Message, extra ...models.Message) []models.Message {
	out := make([]models.Message, 0, len(history)+len(extra))
	out = append(out, history...)
	out = append(out, extra...)
	return out
}

func classifyTurnError(err error) (ErrorCode, ErrorSource, string) {
	if turnErr, ok := err.(*TurnError); ok {
		return turnErr.Code, turnErr.Source, turnErr.Message
	}
	return ErrorCodeInternalError, ErrorSourceSession, err.Error()
}
