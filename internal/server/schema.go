package server

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// schemaRegistry compiles and caches the request envelope schema plus one
// params schema per method. Grounded on ws_schema.go's wsSchemaRegistry.
type schemaRegistry struct {
	once    sync.Once
	initErr error
	request *jsonschema.Schema
	methods map[string]*jsonschema.Schema
}

var schemas schemaRegistry

func initSchemas() error {
	schemas.once.Do(func() {
		req, err := jsonschema.CompileString("request", requestSchema)
		if err != nil {
			schemas.initErr = err
			return
		}
		schemas.request = req

		methodSchemas := map[string]string{
			"connect":          connectParamsSchema,
			"session.create":   sessionCreateParamsSchema,
			"session.send":     sessionSendParamsSchema,
			"session.abort":    sessionAbortParamsSchema,
			"session.dispose":  sessionDisposeParamsSchema,
			"human.respond":    humanRespondParamsSchema,
		}
		schemas.methods = make(map[string]*jsonschema.Schema, len(methodSchemas))
		for name, raw := range methodSchemas {
			compiled, err := jsonschema.CompileString("method_"+name, raw)
			if err != nil {
				schemas.initErr = err
				return
			}
			schemas.methods[name] = compiled
		}
	})
	return schemas.initErr
}

// validateRequestFrame checks raw against the envelope schema, then the
// per-method params schema if one is registered for f.Method.
func validateRequestFrame(raw []byte, f *frame) error {
	if err := initSchemas(); err != nil {
		return err
	}

	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return err
	}
	if err := schemas.request.Validate(payload); err != nil {
		return err
	}
	if f == nil {
		return fmt.Errorf("missing frame")
	}
	schema := schemas.methods[f.Method]
	if schema == nil {
		return nil
	}
	var params any
	if len(f.Params) == 0 {
		params = map[string]any{}
	} else if err := json.Unmarshal(f.Params, &params); err != nil {
		return err
	}
	return schema.Validate(params)
}

const requestSchema = `{
  "type": "object",
  "required": ["type", "id", "method"],
  "properties": {
    "type": { "const": "req" },
    "id": { "type": "string", "minLength": 1 },
    "method": { "type": "string", "minLength": 1 },
    "params": {}
  },
  "additionalProperties": true
}`

const connectParamsSchema = `{
  "type": "object",
  "required": ["minProtocol", "maxProtocol", "client"],
  "properties": {
    "minProtocol": { "type": "integer", "minimum": 1 },
    "maxProtocol": { "type": "integer", "minimum": 1 },
    "client": {
      "type": "object",
      "required": ["id", "version", "platform"],
      "properties": {
        "id": { "type": "string", "minLength": 1 },
        "version": { "type": "string", "minLength": 1 },
        "platform": { "type": "string", "minLength": 1 }
      },
      "additionalProperties": true
    },
    "auth": {
      "type": "object",
      "properties": { "token": { "type": "string" } },
      "additionalProperties": true
    }
  },
  "additionalProperties": true
}`

const sessionCreateParamsSchema = `{
  "type": "object",
  "required": ["provider", "model"],
  "properties": {
    "provider": { "type": "string", "minLength": 1 },
    "model": { "type": "string", "minLength": 1 },
    "workingDir": { "type": "string" },
    "outputDir": { "type": "string" },
    "systemPrompt": { "type": "string" },
    "enableMcp": { "type": "boolean" },
    "yolo": { "type": "boolean" }
  },
  "additionalProperties": true
}`

const sessionSendParamsSchema = `{
  "type": "object",
  "required": ["sessionId", "text"],
  "properties": {
    "sessionId": { "type": "string", "minLength": 1 },
    "text": { "type": "string", "minLength": 1 },
    "clientMessageId": { "type": "string" }
  },
  "additionalProperties": true
}`

const sessionAbortParamsSchema = `{
  "type": "object",
  "required": ["sessionId"],
  "properties": {
    "sessionId": { "type": "string", "minLength": 1 }
  },
  "additionalProperties": true
}`

const sessionDisposeParamsSchema = `{
  "type": "object",
  "required": ["sessionId"],
  "properties": {
    "sessionId": { "type": "string", "minLength": 1 },
    "reason": { "type": "string" }
  },
  "additionalProperties": true
}`

const humanRespondParamsSchema = `{
  "type": "object",
  "required": ["sessionId", "type", "requestId"],
  "properties": {
    "sessionId": { "type": "string", "minLength": 1 },
    "type": { "type": "string", "enum": ["ask", "approval"] },
    "requestId": { "type": "string", "minLength": 1 },
    "answer": { "type": "string" },
    "approved": { "type": "boolean" }
  },
  "additionalProperties": true
}`
