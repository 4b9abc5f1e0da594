package agent

import (
	"log/slog"
	"time"
)

// TurnOptions configures one TurnOrchestrator's bounded step loop and tool
// execution behavior. Grounded on the teacher's RuntimeOptions
// (internal/agent/options.go, pre-rewrite), trimmed of the async-job fields:
// the dispatcher protocol is synchronous only per spec §4.5.
type TurnOptions struct {
	// MaxSteps bounds the number of model-stream invocations in one turn
	// (spec §4.4 step 7, §4.6).
	MaxSteps int

	// ToolConcurrency caps concurrent tool execution within one step.
	ToolConcurrency int

	// ToolTimeout applies a default timeout to each tool call when the
	// descriptor declares none.
	ToolTimeout time.Duration

	// ToolMaxAttempts controls retry attempts for tool execution.
	ToolMaxAttempts int

	// ToolRetryBackoff waits between retry attempts.
	ToolRetryBackoff time.Duration

	// RequireApproval lists tool name patterns that always require
	// approval, independent of the dangerous-classification rule.
	RequireApproval []string

	// ToolResultGuard redacts tool outcomes before they are appended to the
	// transcript.
	ToolResultGuard ToolResultGuard

	Logger *slog.Logger
}

// DefaultTurnOptions returns the baseline turn options.
func DefaultTurnOptions() TurnOptions {
	return TurnOptions{
		MaxSteps:         20,
		ToolConcurrency:  4,
		ToolTimeout:      30 * time.Second,
		ToolMaxAttempts:  1,
		ToolRetryBackoff: 0,
		Logger:           slog.Default(),
	}
}

func mergeTurnOptions(base, override TurnOptions) TurnOptions {
	merged := base
	if override.MaxSteps > 0 {
		merged.MaxSteps = override.MaxSteps
	}
	if override.ToolConcurrency > 0 {
		merged.ToolConcurrency = override.ToolConcurrency
	}
	if override.ToolTimeout > 0 {
		merged.ToolTimeout = override.ToolTimeout
	}
	if override.ToolMaxAttempts > 0 {
		merged.ToolMaxAttempts = override.ToolMaxAttempts
	}
	if override.ToolRetryBackoff > 0 {
		merged.ToolRetryBackoff = override.ToolRetryBackoff
	}
	if len(override.RequireApproval) > 0 {
		merged.RequireApproval = override.RequireApproval
	}
	if override.ToolResultGuard.Active() {
		merged.ToolResultGuard = override.ToolResultGuard
	}
	if override.Logger != nil {
		merged.Logger = override.Logger
	}
	return merged
}
