package models

import (
	"context"
	"encoding/json"
)

// ValidationIssue describes a single schema validation failure.
type ValidationIssue struct {
	Path    string `json:"path,omitempty"`
	Message string `json:"message"`
}

// ValidationResult is the outcome of validating a tool input against its
// descriptor's schema capability.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Value  json.RawMessage   `json:"value,omitempty"`
	Issues []ValidationIssue `json:"issues,omitempty"`
}

// FirstIssueMessage returns the message of the first validation issue, or
// an empty string if the result is valid or carries no issues.
func (r ValidationResult) FirstIssueMessage() string {
	if len(r.Issues) == 0 {
		return ""
	}
	return r.Issues[0].Message
}

// SchemaValidator is the capability a ToolDescriptor's input schema must
// provide: yes/no validation plus coercion, independent of the concrete
// schema representation (JSON Schema is one implementation, not the only
// one the dispatcher is allowed to assume).
type SchemaValidator interface {
	Validate(input json.RawMessage) ValidationResult
	// JSONSchema returns a JSON-schema-as-bytes serialization of the same
	// capability, for providers that need to advertise the schema.
	JSONSchema() json.RawMessage
}

// ToolOutcome is the result of a tool execution.
type ToolOutcome struct {
	Content []TextPart `json:"content"`
	IsError bool       `json:"is_error"`
	Details any        `json:"details,omitempty"`
}

// ErrorText extracts the error message from a failing outcome: the first
// textual content element if present, else empty.
func (o ToolOutcome) ErrorText() string {
	if len(o.Content) > 0 {
		return o.Content[0].Text
	}
	return ""
}

// TextOutcome builds a successful, single-text-part outcome.
func TextOutcome(text string) ToolOutcome {
	return ToolOutcome{Content: []TextPart{NewTextPart(text)}, IsError: false}
}

// ErrorOutcome builds a failing, single-text-part outcome.
func ErrorOutcome(message string) ToolOutcome {
	return ToolOutcome{Content: []TextPart{NewTextPart(message)}, IsError: true}
}

// ToolDescriptor registers one dispatchable tool: local built-in or
// MCP-hosted. Execute receives a cancellable context so aborts propagate to
// whatever is suspended inside it.
type ToolDescriptor struct {
	Name        string
	Description string
	InputSchema SchemaValidator
	// RequiresApproval forces human gating regardless of the dangerous
	// classification rule.
	RequiresApproval bool
	// Timeout is an optional per-descriptor execution timeout; zero means
	// no descriptor-level timeout (the dispatcher may still apply one).
	Execute func(ctx context.Context, input json.RawMessage) (ToolOutcome, error)
}

// ToolCall is the dispatcher-facing view of a model's request to invoke a
// tool, keyed by the id the model assigned it.
type ToolCall struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}
