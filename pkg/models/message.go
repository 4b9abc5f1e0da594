package models

import (
	"encoding/json"
	"time"
)

// Role identifies the author of a transcript message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool_result"
)

// PartType discriminates the kind of content carried by an assistant message part.
type PartType string

const (
	PartText      PartType = "text"
	PartReasoning PartType = "reasoning"
	PartToolCall  PartType = "tool_call"
)

// TextPart is plain text content, used both as an assistant part and as the
// content element of a tool_result message.
type TextPart struct {
	Type PartType `json:"type"`
	Text string   `json:"text"`
}

// NewTextPart builds a TextPart with the discriminator set.
func NewTextPart(text string) TextPart {
	return TextPart{Type: PartText, Text: text}
}

// ReasoningPart carries a model's reasoning/thinking trace. Mode distinguishes
// OpenAI-family "summary" reasoning from "reasoning" mode used elsewhere.
type ReasoningPart struct {
	Type PartType `json:"type"`
	Mode string   `json:"mode"`
	Text string   `json:"text"`
}

// ToolCallPart is an assistant's request to invoke a tool.
type ToolCallPart struct {
	Type PartType        `json:"type"`
	ID   string          `json:"id"`
	Name string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

// AssistantPart is a tagged variant over {TextPart, ReasoningPart, ToolCallPart}.
// Exactly one of Text/Reasoning/ToolCall is non-nil, selected by Type.
type AssistantPart struct {
	Type      PartType       `json:"type"`
	Text      *TextPart      `json:"text,omitempty"`
	Reasoning *ReasoningPart `json:"reasoning,omitempty"`
	ToolCall  *ToolCallPart  `json:"tool_call,omitempty"`
}

// Message is the transcript's tagged-variant element. Exactly one payload
// field is populated, selected by Role.
type Message struct {
	ID        string          `json:"id"`
	Role      Role            `json:"role"`
	CreatedAt time.Time       `json:"created_at"`

	// User payload.
	Text string `json:"text,omitempty"`

	// Assistant payload.
	Parts []AssistantPart `json:"parts,omitempty"`

	// ToolResult payload.
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolName   string     `json:"tool_name,omitempty"`
	Content    []TextPart `json:"content,omitempty"`
	IsError    bool       `json:"is_error,omitempty"`
}

// NewUserMessage builds a user-role message.
func NewUserMessage(id, text string) *Message {
	return &Message{ID: id, Role: RoleUser, Text: text, CreatedAt: time.Now()}
}

// NewAssistantMessage builds an assistant-role message from accumulated parts.
func NewAssistantMessage(id string, parts []AssistantPart) *Message {
	return &Message{ID: id, Role: RoleAssistant, Parts: parts, CreatedAt: time.Now()}
}

// NewToolResultMessage builds a tool_result-role message.
func NewToolResultMessage(id, toolCallID, toolName string, content []TextPart, isError bool) *Message {
	return &Message{
		ID:         id,
		Role:       RoleTool,
		ToolCallID: toolCallID,
		ToolName:   toolName,
		Content:    content,
		IsError:    isError,
		CreatedAt:  time.Now(),
	}
}

// AssistantText concatenates every text part of an assistant message.
func (m *Message) AssistantText() string {
	var text string
	for _, p := range m.Parts {
		if p.Type == PartText && p.Text != nil {
			text += p.Text.Text
		}
	}
	return text
}

// AssistantReasoningText concatenates every reasoning part of an assistant message.
func (m *Message) AssistantReasoningText() string {
	var text string
	for _, p := range m.Parts {
		if p.Type == PartReasoning && p.Reasoning != nil {
			text += p.Reasoning.Text
		}
	}
	return text
}

// ToolCalls extracts the tool-call parts of an assistant message, in emission order.
func (m *Message) ToolCalls() []ToolCallPart {
	var calls []ToolCallPart
	for _, p := range m.Parts {
		if p.Type == PartToolCall && p.ToolCall != nil {
			calls = append(calls, *p.ToolCall)
		}
	}
	return calls
}

// Attachment represents a file or media attachment carried on a user message.
type Attachment struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	URL      string `json:"url"`
	Filename string `json:"filename,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
	Size     int64  `json:"size,omitempty"`
}
