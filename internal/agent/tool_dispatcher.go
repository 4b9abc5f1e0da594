package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/mweinbach/agent-coworker-sub008/internal/humanchannel"
	"github.com/mweinbach/agent-coworker-sub008/pkg/models"
)

// ToolDispatcher is the registry of tool descriptors (local built-ins and
// MCP-hosted) and the single execution path for a dispatched call: exact-name
// lookup, schema validation, approval gating, and uniform error surfacing
// (spec §4.5). Grounded on the teacher's ToolRegistry + ToolExecutor
// (internal/agent/tool_registry.go, tool_exec.go, pre-rewrite), consolidated
// into one type since the spec describes one component, not three competing
// ones (the teacher additionally had a third, executor.go, never wired to
// production — dropped, see DESIGN.md).
type ToolDispatcher struct {
	mu    sync.RWMutex
	tools map[string]models.ToolDescriptor

	humanChannel            *humanchannel.Channel
	workspaceRoot           string
	guard                   ToolResultGuard
	requireApprovalPatterns []string
}

// NewToolDispatcher creates an empty dispatcher. humanChannel gates
// dangerous/approval-required tool calls; it must not be nil.
func NewToolDispatcher(humanChannel *humanchannel.Channel, workspaceRoot string) *ToolDispatcher {
	return &ToolDispatcher{
		tools:         make(map[string]models.ToolDescriptor),
		humanChannel:  humanChannel,
		workspaceRoot: workspaceRoot,
	}
}

// SetGuard installs the redaction/truncation policy applied to every
// outcome before it is returned.
func (d *ToolDispatcher) SetGuard(guard ToolResultGuard) { d.guard = guard }

// SetRequireApproval installs tool-name patterns that always require
// approval, in addition to the dangerous-classification rule.
func (d *ToolDispatcher) SetRequireApproval(patterns []string) { d.requireApprovalPatterns = patterns }

// Register adds or replaces a tool descriptor by name. MCP-hosted tools are
// registered by callers with the `mcp__<server>__<tool>` naming convention
// (spec §4.5); the dispatcher treats them identically to built-ins once
// registered.
func (d *ToolDispatcher) Register(descriptor models.ToolDescriptor) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tools[descriptor.Name] = descriptor
}

// Unregister removes a tool descriptor by name, e.g. when an MCP server
// disconnects.
func (d *ToolDispatcher) Unregister(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.tools, name)
}

func (d *ToolDispatcher) get(name string) (models.ToolDescriptor, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	descriptor, ok := d.tools[name]
	return descriptor, ok
}

// Descriptors returns every registered tool, for advertising to the provider
// as callable tools.
func (d *ToolDispatcher) Descriptors() []models.ToolDescriptor {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]models.ToolDescriptor, 0, len(d.tools))
	for _, t := range d.tools {
		out = append(out, t)
	}
	return out
}

// mcpToolName builds the dispatcher-facing name for an MCP-hosted tool,
// per spec §4.5's `mcp__<server>__<tool>` convention.
func mcpToolName(server, tool string) string {
	return fmt.Sprintf("mcp__%s__%s", server, tool)
}

// Execute runs one tool call through the full protocol of spec §4.5,
// returning a ToolOutcome that is never itself an error return: dispatch
// failures surface as outcome.IsError, not as the Go error — the only
// exception is cancellation during Execute, which propagates unwrapped
// (step 5).
func (d *ToolDispatcher) Execute(ctx context.Context, call models.ToolCall) (models.ToolOutcome, error) {
	descriptor, ok := d.get(call.Name)
	if !ok {
		return models.ErrorOutcome(fmt.Sprintf("Tool %s not found", call.Name)), nil
	}

	if descriptor.InputSchema != nil {
		result := descriptor.InputSchema.Validate(call.Input)
		if !result.Valid {
			return models.ErrorOutcome(result.FirstIssueMessage()), nil
		}
	}

	command, dangerous := classifyDangerous(call.Name, call.Input, d.workspaceRoot)
	requiresApproval := descriptor.RequiresApproval || dangerous || matchesToolPatterns(d.requireApprovalPatterns, call.Name)
	if requiresApproval {
		if command == "" {
			command = call.Name
		}
		future, err := d.humanChannel.Approve(command, dangerous)
		if err != nil {
			return d.guard.Apply(call.Name, deniedOutcome()), nil
		}
		approved, err := future.Wait()
		if err != nil || !approved {
			return d.guard.Apply(call.Name, deniedOutcome()), nil
		}
	}

	outcome, err := descriptor.Execute(ctx, call.Input)
	if err != nil {
		if ctx.Err() != nil {
			return models.ToolOutcome{}, ctx.Err()
		}
		return d.guard.Apply(call.Name, models.ErrorOutcome(err.Error())), nil
	}
	if outcome.IsError && len(outcome.Content) == 0 {
		outcome = models.ErrorOutcome(extractErrorMessage(outcome))
	}
	return d.guard.Apply(call.Name, outcome), nil
}

const deniedDetailMarker = "denied"

// deniedOutcome builds the tool-error outcome spec §4.5 step 3 requires when
// a human rejects an approval request, tagged in Details so the
// TurnOrchestrator can tell a denial apart from any other tool-error and
// emit `tool_output_denied` instead of `tool_error`.
func deniedOutcome() models.ToolOutcome {
	return models.ToolOutcome{
		Content: []models.TextPart{models.NewTextPart(deniedDetailMarker)},
		IsError: true,
		Details: deniedDetailMarker,
	}
}

// IsDenied reports whether outcome was produced by an approval denial.
func IsDenied(outcome models.ToolOutcome) bool {
	marker, ok := outcome.Details.(string)
	return ok && marker == deniedDetailMarker && outcome.IsError
}

// extractErrorMessage implements spec §4.5 step 4's fallback chain for a
// failing outcome with no textual content: the explicit details field, else
// a JSON encoding.
func extractErrorMessage(outcome models.ToolOutcome) string {
	if outcome.Details == nil {
		return "tool execution failed"
	}
	if m, ok := outcome.Details.(map[string]any); ok {
		if msg, ok := m["error"].(string); ok && msg != "" {
			return msg
		}
		if msg, ok := m["message"].(string); ok && msg != "" {
			return msg
		}
	}
	encoded, err := json.Marshal(outcome.Details)
	if err != nil {
		return "tool execution failed"
	}
	return string(encoded)
}

func matchesToolPatterns(patterns []string, toolName string) bool {
	if len(patterns) == 0 {
		return false
	}
	for _, pattern := range patterns {
		if matchToolPattern(pattern, toolName) {
			return true
		}
	}
	return false
}

func matchToolPattern(pattern, toolName string) bool {
	if pattern == "" || toolName == "" {
		return false
	}
	if pattern == "mcp:*" {
		return strings.HasPrefix(toolName, "mcp__") || strings.HasPrefix(toolName, "mcp:")
	}
	if strings.HasSuffix(pattern, ".*") {
		return strings.HasPrefix(toolName, strings.TrimSuffix(pattern, "*"))
	}
	return pattern == toolName
}
