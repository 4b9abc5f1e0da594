package models

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// JSONSchemaValidator is the concrete SchemaValidator backing ToolDescriptor
// input validation (spec §4.5's "schema validation capability"). Grounded
// on internal/gateway/ws_schema.go's jsonschema.CompileString usage, the
// same library the control plane already uses for wire-frame validation —
// one schema engine for both the tool-input and wire-protocol validation
// concerns.
type JSONSchemaValidator struct {
	raw    json.RawMessage
	schema *jsonschema.Schema
}

// NewJSONSchemaValidator compiles raw (a JSON Schema document) under name,
// used only to label compiler errors. An empty or nil raw schema is treated
// as "accept anything" with an empty-object schema advertised in its place.
func NewJSONSchemaValidator(name string, raw json.RawMessage) (*JSONSchemaValidator, error) {
	if len(raw) == 0 {
		raw = json.RawMessage(`{"type":"object","properties":{}}`)
	}
	compiled, err := jsonschema.CompileString(name, string(raw))
	if err != nil {
		return nil, fmt.Errorf("compile schema %q: %w", name, err)
	}
	return &JSONSchemaValidator{raw: raw, schema: compiled}, nil
}

// JSONSchema returns the schema document this validator was compiled from.
func (v *JSONSchemaValidator) JSONSchema() json.RawMessage { return v.raw }

// Validate decodes input as JSON and checks it against the compiled schema.
// A malformed input document is reported as a single validation issue
// rather than an error: callers treat both the same way (reject the call),
// and ToolDispatcher's synchronous protocol has no separate "bad JSON" wire
// code (spec §4.5 step 2).
func (v *JSONSchemaValidator) Validate(input json.RawMessage) ValidationResult {
	if len(input) == 0 {
		input = json.RawMessage("{}")
	}
	var decoded any
	if err := json.Unmarshal(input, &decoded); err != nil {
		return ValidationResult{
			Valid:  false,
			Issues: []ValidationIssue{{Message: fmt.Sprintf("invalid JSON: %v", err)}},
		}
	}

	if err := v.schema.Validate(decoded); err != nil {
		issues := flattenValidationError(err)
		if len(issues) == 0 {
			issues = []ValidationIssue{{Message: err.Error()}}
		}
		return ValidationResult{Valid: false, Value: input, Issues: issues}
	}
	return ValidationResult{Valid: true, Value: input}
}

// flattenValidationError walks a jsonschema.ValidationError's cause tree
// into a flat list of leaf issues, each carrying the instance path that
// failed.
func flattenValidationError(err error) []ValidationIssue {
	verr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return nil
	}
	var issues []ValidationIssue
	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			issues = append(issues, ValidationIssue{Path: e.InstanceLocation, Message: e.Message})
			return
		}
		for _, cause := range e.Causes {
			walk(cause)
		}
	}
	walk(verr)
	return issues
}
