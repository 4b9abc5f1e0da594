package agent

import (
	"context"

	"github.com/mweinbach/agent-coworker-sub008/pkg/models"
)

// StepRequest is what the RuntimeAdapter sends a provider for one step of a
// turn: the full conversation so far, available tools, and generation
// options. Grounded on the teacher's CompletionRequest
// (internal/agent/provider_types.go, pre-rewrite) but message/tool shapes now
// point at pkg/models' canonical types instead of the old channel-platform
// ones.
type StepRequest struct {
	Model     string
	System    string
	Messages  []models.Message
	Tools     []models.ToolDescriptor
	MaxTokens int

	EnableThinking       bool
	ThinkingBudgetTokens int
}

// StepResult is what a provider stream resolves to once fully drained.
type StepResult struct {
	AssistantMessage models.Message
	Usage            models.Usage
	StopReason       models.FinishReason
}

func addUsage(a, b models.Usage) models.Usage {
	return models.Usage{InputTokens: a.InputTokens + b.InputTokens, OutputTokens: a.OutputTokens + b.OutputTokens}
}

// LLMProvider wraps one concrete model backend. Implementations translate
// their wire format into the canonical models.StreamPart sequence as they
// stream; Stream itself never buffers a whole response before emitting.
//
// Thread safety: implementations must support concurrent Stream calls for
// distinct requests (one session's turn never overlaps another's, but
// multiple sessions share a provider instance).
type LLMProvider interface {
	Name() string
	Models() []Model
	SupportsTools() bool
	ReasoningMode() models.ReasoningMode

	// Stream sends req and emits StreamParts via onPart as they are
	// translated from the provider's native events. It blocks until the
	// stream ends, ctx is cancelled, or translation fails, then returns the
	// accumulated StepResult.
	Stream(ctx context.Context, req StepRequest, onPart func(models.StreamPart)) (StepResult, error)
}

// Model describes an available model and its capabilities.
type Model struct {
	ID             string
	Name           string
	ContextSize    int
	SupportsVision bool
}
