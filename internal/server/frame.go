// Package server implements the SessionManager of spec §4.8: a duplex
// per-client websocket transport that accepts connections, assigns session
// ids, routes inbound control frames to internal/session.Session operations,
// and fans event-bus traffic back out to the client. Grounded on the
// teacher's internal/gateway/ws_control_plane.go (wsFrame/wsSession/
// readLoop/writeLoop shape) and ws_schema.go (jsonschema-validated request
// envelopes), retargeted at this spec's smaller method set.
package server

import "encoding/json"

// frame is the wire envelope. Grounded on wsFrame (ws_control_plane.go):
// one shape for requests, responses, and server-pushed events,
// discriminated by Type.
type frame struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Event   string          `json:"event,omitempty"`
	OK      *bool           `json:"ok,omitempty"`
	Payload any             `json:"payload,omitempty"`
	Error   *frameError     `json:"error,omitempty"`
	Seq     *int64          `json:"seq,omitempty"`
}

type frameError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// connectParams is the handshake payload of the first frame a client must
// send. Grounded on wsConnectParams.
type connectParams struct {
	MinProtocol int              `json:"minProtocol"`
	MaxProtocol int              `json:"maxProtocol"`
	Client      connectClientInfo `json:"client"`
	Auth        *connectAuth     `json:"auth,omitempty"`
}

type connectClientInfo struct {
	ID       string `json:"id"`
	Version  string `json:"version"`
	Platform string `json:"platform"`
}

type connectAuth struct {
	Token string `json:"token"`
}

// sessionCreateParams requests a new Session; fields mirror
// internal/session.Config (spec §3).
type sessionCreateParams struct {
	Provider     string `json:"provider"`
	Model        string `json:"model"`
	WorkingDir   string `json:"workingDir,omitempty"`
	OutputDir    string `json:"outputDir,omitempty"`
	SystemPrompt string `json:"systemPrompt,omitempty"`
	EnableMCP    bool   `json:"enableMcp,omitempty"`
	Yolo         bool   `json:"yolo,omitempty"`
}

type sessionSendParams struct {
	SessionID       string `json:"sessionId"`
	Text            string `json:"text"`
	ClientMessageID string `json:"clientMessageId,omitempty"`
}

type sessionAbortParams struct {
	SessionID string `json:"sessionId"`
}

type sessionDisposeParams struct {
	SessionID string `json:"sessionId"`
	Reason    string `json:"reason,omitempty"`
}

// humanRespondParams carries the answer to one outstanding HumanRequest
// (spec §4.2): Type selects which of Answer/Approved applies.
type humanRespondParams struct {
	SessionID string `json:"sessionId"`
	Type      string `json:"type"`
	RequestID string `json:"requestId"`
	Answer    string `json:"answer,omitempty"`
	Approved  bool   `json:"approved,omitempty"`
}
