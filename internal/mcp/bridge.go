package mcp

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/mweinbach/agent-coworker-sub008/internal/agent"
	"github.com/mweinbach/agent-coworker-sub008/pkg/models"
)

const maxToolNameLen = 64

// ToolCaller defines the MCP tool execution contract used by the bridge.
type ToolCaller interface {
	CallTool(ctx context.Context, serverID, toolName string, arguments map[string]any) (*ToolCallResult, error)
}

// ResourceReader defines the MCP resource read contract used by the bridge.
type ResourceReader interface {
	ReadResource(ctx context.Context, serverID, uri string) ([]*ResourceContent, error)
}

// PromptGetter defines the MCP prompt get contract used by the bridge.
type PromptGetter interface {
	GetPrompt(ctx context.Context, serverID, name string, arguments map[string]string) (*GetPromptResult, error)
}

// toolOutcome builds a models.ToolOutcome from a single text blob, the shape
// every bridge below collapses its MCP-specific result type into before
// handing it to agent.ToolDispatcher.
func toolOutcome(text string, isError bool) (models.ToolOutcome, error) {
	if text == "" {
		return models.ToolOutcome{IsError: isError}, nil
	}
	return models.ToolOutcome{Content: []models.TextPart{models.NewTextPart(text)}, IsError: isError}, nil
}

// newToolDescriptor wraps an MCP tool as a models.ToolDescriptor, the unit
// agent.ToolDispatcher.Register expects (spec §4.5's ToolDispatcher
// registers each callable under a descriptor carrying its own schema).
func newToolDescriptor(caller ToolCaller, serverID string, tool *MCPTool, safeName string) (models.ToolDescriptor, error) {
	schema := tool.InputSchema
	if len(schema) == 0 {
		schema = json.RawMessage(`{"type":"object"}`)
	}
	validator, err := models.NewJSONSchemaValidator(safeName, schema)
	if err != nil {
		return models.ToolDescriptor{}, fmt.Errorf("mcp tool %s: %w", safeName, err)
	}

	desc := strings.TrimSpace(tool.Description)
	if desc == "" {
		desc = fmt.Sprintf("MCP tool %s.%s", serverID, tool.Name)
	} else {
		desc = fmt.Sprintf("MCP tool %s.%s: %s", serverID, tool.Name, desc)
	}

	return models.ToolDescriptor{
		Name:        safeName,
		Description: desc,
		InputSchema: validator,
		Execute: func(ctx context.Context, input json.RawMessage) (models.ToolOutcome, error) {
			var arguments map[string]any
			if len(input) > 0 {
				if err := json.Unmarshal(input, &arguments); err != nil {
					return models.ToolOutcome{}, err
				}
			}
			result, err := caller.CallTool(ctx, serverID, tool.Name, arguments)
			if err != nil {
				return models.ToolOutcome{}, err
			}
			text, isError := formatToolCallResult(result)
			return toolOutcome(text, isError)
		},
	}, nil
}

func newResourceListDescriptor(mgr *Manager, serverID, safeName string) models.ToolDescriptor {
	validator, _ := models.NewJSONSchemaValidator(safeName, nil)
	return models.ToolDescriptor{
		Name:        safeName,
		Description: fmt.Sprintf("List MCP resources for %s", serverID),
		InputSchema: validator,
		Execute: func(ctx context.Context, input json.RawMessage) (models.ToolOutcome, error) {
			resources := mgr.AllResources()[serverID]
			payload, err := json.Marshal(resources)
			if err != nil {
				return models.ToolOutcome{}, err
			}
			return toolOutcome(string(payload), false)
		},
	}
}

func newResourceReadDescriptor(reader ResourceReader, serverID, safeName string) (models.ToolDescriptor, error) {
	validator, err := models.NewJSONSchemaValidator(safeName, json.RawMessage(
		`{"type":"object","properties":{"uri":{"type":"string"}},"required":["uri"]}`))
	if err != nil {
		return models.ToolDescriptor{}, err
	}
	return models.ToolDescriptor{
		Name:        safeName,
		Description: fmt.Sprintf("Read an MCP resource from %s (provide uri)", serverID),
		InputSchema: validator,
		Execute: func(ctx context.Context, input json.RawMessage) (models.ToolOutcome, error) {
			var args struct {
				URI string `json:"uri"`
			}
			if err := json.Unmarshal(input, &args); err != nil {
				return models.ToolOutcome{}, err
			}
			if strings.TrimSpace(args.URI) == "" {
				return models.ToolOutcome{}, fmt.Errorf("uri is required")
			}
			contents, err := reader.ReadResource(ctx, serverID, args.URI)
			if err != nil {
				return models.ToolOutcome{}, err
			}
			text, isError := formatResourceContents(contents)
			return toolOutcome(text, isError)
		},
	}, nil
}

func newPromptListDescriptor(mgr *Manager, serverID, safeName string) models.ToolDescriptor {
	validator, _ := models.NewJSONSchemaValidator(safeName, nil)
	return models.ToolDescriptor{
		Name:        safeName,
		Description: fmt.Sprintf("List MCP prompts for %s", serverID),
		InputSchema: validator,
		Execute: func(ctx context.Context, input json.RawMessage) (models.ToolOutcome, error) {
			prompts := mgr.AllPrompts()[serverID]
			payload, err := json.Marshal(prompts)
			if err != nil {
				return models.ToolOutcome{}, err
			}
			return toolOutcome(string(payload), false)
		},
	}
}

func newPromptGetDescriptor(getter PromptGetter, serverID, safeName string) (models.ToolDescriptor, error) {
	validator, err := models.NewJSONSchemaValidator(safeName, json.RawMessage(
		`{"type":"object","properties":{"name":{"type":"string"},"arguments":{"type":"object"}},"required":["name"]}`))
	if err != nil {
		return models.ToolDescriptor{}, err
	}
	return models.ToolDescriptor{
		Name:        safeName,
		Description: fmt.Sprintf("Fetch an MCP prompt from %s (provide name, arguments)", serverID),
		InputSchema: validator,
		Execute: func(ctx context.Context, input json.RawMessage) (models.ToolOutcome, error) {
			var args struct {
				Name      string            `json:"name"`
				Arguments map[string]string `json:"arguments,omitempty"`
			}
			if err := json.Unmarshal(input, &args); err != nil {
				return models.ToolOutcome{}, err
			}
			if strings.TrimSpace(args.Name) == "" {
				return models.ToolOutcome{}, fmt.Errorf("name is required")
			}
			result, err := getter.GetPrompt(ctx, serverID, args.Name, args.Arguments)
			if err != nil {
				return models.ToolOutcome{}, err
			}
			text, isError := formatPromptResult(result)
			return toolOutcome(text, isError)
		},
	}, nil
}

// RegisterTools registers every tool, resource, and prompt exposed by mgr's
// connected servers onto dispatcher, under the flat mcp__<server>__<tool>
// dispatch namespace (DESIGN.md's MCP-hosted tool naming convention,
// generalized from the teacher's map[serverID][]tool shape into one
// ToolDispatcher registry). Returns the registered names.
func RegisterTools(dispatcher *agent.ToolDispatcher, mgr *Manager) ([]string, error) {
	if dispatcher == nil || mgr == nil {
		return nil, nil
	}

	tools := listToolsSorted(mgr)
	used := make(map[string]struct{})
	registered := make([]string, 0, len(tools))
	for _, entry := range tools {
		name := safeToolName(entry.serverID, entry.tool.Name, used)
		descriptor, err := newToolDescriptor(mgr, entry.serverID, entry.tool, name)
		if err != nil {
			return registered, err
		}
		dispatcher.Register(descriptor)
		registered = append(registered, name)
	}

	for _, serverID := range listServerIDs(mgr) {
		resListName := safeToolName(serverID, "resources_list", used)
		resReadName := safeToolName(serverID, "resource_read", used)
		promptListName := safeToolName(serverID, "prompts_list", used)
		promptGetName := safeToolName(serverID, "prompt_get", used)

		dispatcher.Register(newResourceListDescriptor(mgr, serverID, resListName))
		resReadDescriptor, err := newResourceReadDescriptor(mgr, serverID, resReadName)
		if err != nil {
			return registered, err
		}
		dispatcher.Register(resReadDescriptor)
		dispatcher.Register(newPromptListDescriptor(mgr, serverID, promptListName))
		promptGetDescriptor, err := newPromptGetDescriptor(mgr, serverID, promptGetName)
		if err != nil {
			return registered, err
		}
		dispatcher.Register(promptGetDescriptor)

		registered = append(registered, resListName, resReadName, promptListName, promptGetName)
	}

	return registered, nil
}

type toolEntry struct {
	serverID string
	tool     *MCPTool
}

func listToolsSorted(mgr *Manager) []toolEntry {
	all := mgr.AllTools()
	if len(all) == 0 {
		return nil
	}

	serverIDs := make([]string, 0, len(all))
	for id := range all {
		serverIDs = append(serverIDs, id)
	}
	sort.Strings(serverIDs)

	var entries []toolEntry
	for _, serverID := range serverIDs {
		tools := all[serverID]
		sort.Slice(tools, func(i, j int) bool {
			return tools[i].Name < tools[j].Name
		})
		for _, tool := range tools {
			entries = append(entries, toolEntry{serverID: serverID, tool: tool})
		}
	}
	return entries
}

func listServerIDs(mgr *Manager) []string {
	seen := make(map[string]struct{})
	for id := range mgr.AllTools() {
		seen[id] = struct{}{}
	}
	for id := range mgr.AllResources() {
		seen[id] = struct{}{}
	}
	for id := range mgr.AllPrompts() {
		seen[id] = struct{}{}
	}
	if len(seen) == 0 {
		return nil
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func safeToolName(serverID, toolName string, used map[string]struct{}) string {
	base := "mcp_" + sanitizeToolPart(serverID) + "_" + sanitizeToolPart(toolName)
	name := base
	if len(name) > maxToolNameLen {
		name = truncateWithHash(base, serverID, toolName)
	}

	if _, exists := used[name]; exists {
		name = dedupeWithHash(name, serverID, toolName)
	}

	used[name] = struct{}{}
	return name
}

func sanitizeToolPart(value string) string {
	var b strings.Builder
	b.Grow(len(value))
	underscore := false
	for _, r := range value {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(unicode.ToLower(r))
			underscore = false
		default:
			if !underscore {
				b.WriteByte('_')
				underscore = true
			}
		}
	}
	clean := strings.Trim(b.String(), "_")
	if clean == "" {
		return "tool"
	}
	return clean
}

func toolNameHash(serverID, toolName string) string {
	sum := sha1.Sum([]byte(serverID + ":" + toolName))
	return hex.EncodeToString(sum[:])[:8]
}

func truncateWithHash(base, serverID, toolName string) string {
	suffix := "_" + toolNameHash(serverID, toolName)
	if maxToolNameLen <= len(suffix) {
		return suffix[len(suffix)-maxToolNameLen:]
	}
	trimLen := maxToolNameLen - len(suffix)
	if trimLen > len(base) {
		trimLen = len(base)
	}
	return base[:trimLen] + suffix
}

func dedupeWithHash(base, serverID, toolName string) string {
	suffix := "_" + toolNameHash(serverID, toolName)
	name := base + suffix
	if len(name) <= maxToolNameLen {
		return name
	}
	return truncateWithHash(base, serverID, toolName)
}

func formatToolCallResult(result *ToolCallResult) (string, bool) {
	if result == nil {
		return "", false
	}
	if len(result.Content) == 0 {
		return "", result.IsError
	}

	allText := true
	var combined strings.Builder
	for _, item := range result.Content {
		if item.Type != "text" {
			allText = false
			break
		}
		if item.Text == "" {
			continue
		}
		if combined.Len() > 0 {
			combined.WriteString("\n")
		}
		combined.WriteString(item.Text)
	}

	if allText && combined.Len() > 0 {
		return combined.String(), result.IsError
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return "", result.IsError
	}
	return string(payload), result.IsError
}

func formatResourceContents(contents []*ResourceContent) (string, bool) {
	if len(contents) == 0 {
		return "", false
	}
	if len(contents) == 1 && contents[0].Text != "" {
		return contents[0].Text, false
	}
	payload, err := json.Marshal(contents)
	if err != nil {
		return "", false
	}
	return string(payload), false
}

func formatPromptResult(result *GetPromptResult) (string, bool) {
	if result == nil || len(result.Messages) == 0 {
		return "", false
	}
	if len(result.Messages) == 1 && result.Messages[0].Content.Type == "text" {
		return result.Messages[0].Content.Text, false
	}
	payload, err := json.Marshal(result.Messages)
	if err != nil {
		return "", false
	}
	return string(payload), false
}

