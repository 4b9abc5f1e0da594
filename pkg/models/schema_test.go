package models

import (
	"encoding/json"
	"testing"
)

func TestJSONSchemaValidatorAcceptsConformingInput(t *testing.T) {
	v, err := NewJSONSchemaValidator("t1", json.RawMessage(`{
		"type": "object",
		"required": ["path"],
		"properties": { "path": { "type": "string" } }
	}`))
	if err != nil {
		t.Fatalf("NewJSONSchemaValidator: %v", err)
	}
	result := v.Validate(json.RawMessage(`{"path":"/tmp/x"}`))
	if !result.Valid {
		t.Errorf("Validate() = %+v, want valid", result)
	}
}

func TestJSONSchemaValidatorRejectsMissingRequiredField(t *testing.T) {
	v, err := NewJSONSchemaValidator("t2", json.RawMessage(`{
		"type": "object",
		"required": ["path"],
		"properties": { "path": { "type": "string" } }
	}`))
	if err != nil {
		t.Fatalf("NewJSONSchemaValidator: %v", err)
	}
	result := v.Validate(json.RawMessage(`{}`))
	if result.Valid {
		t.Error("Validate() on missing required field should be invalid")
	}
	if result.FirstIssueMessage() == "" {
		t.Error("expected at least one validation issue")
	}
}

func TestJSONSchemaValidatorRejectsMalformedJSON(t *testing.T) {
	v, err := NewJSONSchemaValidator("t3", nil)
	if err != nil {
		t.Fatalf("NewJSONSchemaValidator: %v", err)
	}
	result := v.Validate(json.RawMessage(`not-json`))
	if result.Valid {
		t.Error("Validate() on malformed JSON should be invalid")
	}
}

func TestJSONSchemaValidatorEmptySchemaAcceptsAnyObject(t *testing.T) {
	v, err := NewJSONSchemaValidator("t4", nil)
	if err != nil {
		t.Fatalf("NewJSONSchemaValidator: %v", err)
	}
	result := v.Validate(json.RawMessage(`{"anything":"goes"}`))
	if !result.Valid {
		t.Errorf("Validate() with default empty schema = %+v, want valid", result)
	}
}

func TestJSONSchemaValidatorJSONSchemaRoundTrips(t *testing.T) {
	raw := json.RawMessage(`{"type":"object"}`)
	v, err := NewJSONSchemaValidator("t5", raw)
	if err != nil {
		t.Fatalf("NewJSONSchemaValidator: %v", err)
	}
	if string(v.JSONSchema()) != string(raw) {
		t.Errorf("JSONSchema() = %s, want %s", v.JSONSchema(), raw)
	}
}
