package server

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/mweinbach/agent-coworker-sub008/internal/agent"
	"github.com/mweinbach/agent-coworker-sub008/internal/eventbus"
	"github.com/mweinbach/agent-coworker-sub008/internal/session"
)

// connection is one client's duplex transport. Grounded on wsSession
// (ws_control_plane.go): a read pump and a write pump sharing a buffered
// send channel, a per-connection sequence counter for pushed events, and a
// "connect must be first" handshake gate.
type connection struct {
	manager *Manager
	conn    *websocket.Conn
	send    chan []byte
	ctx     context.Context
	cancel  context.CancelFunc

	id        string
	connected atomic.Bool
	seq       int64

	session *session.Session
	sub     *eventbus.Subscription
}

func newConnection(m *Manager, conn *websocket.Conn) *connection {
	ctx, cancel := context.WithCancel(context.Background())
	return &connection{
		manager: m,
		conn:    conn,
		send:    make(chan []byte, 64),
		ctx:     ctx,
		cancel:  cancel,
		id:      uuid.NewString(),
	}
}

func (c *connection) run() {
	defer c.close()
	go c.writeLoop()
	c.readLoop()
}

func (c *connection) close() {
	c.cancel()
	if c.sub != nil {
		c.sub.Cancel()
	}
	close(c.send)
	_ = c.conn.Close() //nolint:errcheck
}

func (c *connection) readLoop() {
	c.conn.SetReadLimit(maxPayloadBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		f, err := c.decodeFrame(data)
		if err != nil {
			c.sendError("", "invalid_frame", err.Error())
			continue
		}

		if !c.connected.Load() {
			if f.Method != "connect" {
				c.sendError(f.ID, "handshake_required", "first request must be connect")
				continue
			}
			if err := c.handleConnect(f); err != nil {
				c.sendError(f.ID, "connect_failed", err.Error())
				return
			}
			continue
		}

		if err := c.handleRequest(f); err != nil {
			c.sendError(f.ID, "request_failed", err.Error())
		}
	}
}

func (c *connection) writeLoop() {
	for {
		select {
		case <-c.ctx.Done():
			return
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}
}

func (c *connection) decodeFrame(raw []byte) (*frame, error) {
	var f frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, err
	}
	if f.Type == "" {
		f.Type = "req"
	}
	if f.Type != "req" {
		return nil, fmt.Errorf("unsupported frame type %q", f.Type)
	}
	if err := validateRequestFrame(raw, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

func (c *connection) handleConnect(f *frame) error {
	var params connectParams
	if err := json.Unmarshal(f.Params, &params); err != nil {
		return err
	}

	minProtocol, maxProtocol := params.MinProtocol, params.MaxProtocol
	if minProtocol <= 0 {
		minProtocol = protocolVersion
	}
	if maxProtocol <= 0 {
		maxProtocol = protocolVersion
	}
	if protocolVersion < minProtocol || protocolVersion > maxProtocol {
		return fmt.Errorf("unsupported protocol version")
	}

	token := ""
	if params.Auth != nil {
		token = params.Auth.Token
	}
	if !c.manager.checkAuth(token) {
		return fmt.Errorf("unauthorized")
	}

	payload := map[string]any{
		"type":            "server_hello",
		"connectionId":    c.id,
		"protocolVersion": protocolVersion,
		"config": map[string]any{
			"maxPayloadBytes": maxPayloadBytes,
			"tickIntervalMs":  tickInterval.Milliseconds(),
		},
	}
	if err := c.sendResponse(f.ID, true, payload, nil); err != nil {
		return err
	}
	c.connected.Store(true)
	go c.startTicking()
	return nil
}

// handleRequest dispatches one post-handshake frame. Grounded on
// wsSession.handleRequest's method switch, retargeted at spec's session
// operation set (spec §4.7/§4.8).
func (c *connection) handleRequest(f *frame) error {
	switch f.Method {
	case "ping":
		return c.sendResponse(f.ID, true, map[string]any{"timestamp": time.Now().UnixMilli()}, nil)
	case "session.create":
		return c.handleSessionCreate(f)
	case "session.send":
		return c.handleSessionSend(f)
	case "session.abort":
		return c.handleSessionAbort(f)
	case "session.dispose":
		return c.handleSessionDispose(f)
	case "human.respond":
		return c.handleHumanRespond(f)
	default:
		return fmt.Errorf("unknown method %q", f.Method)
	}
}

func (c *connection) handleSessionCreate(f *frame) error {
	var params sessionCreateParams
	if err := json.Unmarshal(f.Params, &params); err != nil {
		return err
	}

	sess, err := c.manager.createSession(session.Config{
		Provider:     params.Provider,
		Model:        params.Model,
		WorkingDir:   params.WorkingDir,
		OutputDir:    params.OutputDir,
		SystemPrompt: params.SystemPrompt,
		EnableMCP:    params.EnableMCP,
		Yolo:         params.Yolo,
	})
	if err != nil {
		return err
	}

	// One connection follows one session at a time; a fresh session.create
	// replaces whichever subscription (if any) was active before it.
	if c.sub != nil {
		c.sub.Cancel()
	}
	c.session = sess
	c.sub = c.manager.bus.Subscribe(sess.ID)
	go c.forwardEvents(c.sub)

	return c.sendResponse(f.ID, true, map[string]any{"sessionId": sess.ID, "state": string(sess.State())}, nil)
}

func (c *connection) handleSessionSend(f *frame) error {
	var params sessionSendParams
	if err := json.Unmarshal(f.Params, &params); err != nil {
		return err
	}
	sess, err := c.manager.lookupSession(params.SessionID)
	if err != nil {
		return err
	}

	if err := c.sendResponse(f.ID, true, map[string]any{"status": "accepted"}, nil); err != nil {
		return err
	}

	go func() {
		if err := sess.SendUserMessage(c.ctx, params.Text, params.ClientMessageID); err != nil {
			if terr, ok := err.(*agent.TurnError); ok {
				c.sendEvent(sess.ID, "error", map[string]any{"code": terr.Code, "source": terr.Source, "message": terr.Message})
				return
			}
			c.sendEvent(sess.ID, "error", map[string]any{"code": agent.ErrorCodeInternalError, "source": agent.ErrorSourceSession, "message": err.Error()})
		}
	}()
	return nil
}

func (c *connection) handleSessionAbort(f *frame) error {
	var params sessionAbortParams
	if err := json.Unmarshal(f.Params, &params); err != nil {
		return err
	}
	sess, err := c.manager.lookupSession(params.SessionID)
	if err != nil {
		return err
	}
	sess.Cancel()
	return c.sendResponse(f.ID, true, map[string]any{"aborted": true}, nil)
}

func (c *connection) handleSessionDispose(f *frame) error {
	var params sessionDisposeParams
	if err := json.Unmarshal(f.Params, &params); err != nil {
		return err
	}
	reason := params.Reason
	if reason == "" {
		reason = "client requested"
	}
	if err := c.manager.disposeSession(params.SessionID, reason); err != nil {
		return err
	}
	if c.sub != nil {
		c.sub.Cancel()
		c.sub = nil
	}
	return c.sendResponse(f.ID, true, map[string]any{"disposed": true}, nil)
}

func (c *connection) handleHumanRespond(f *frame) error {
	var params humanRespondParams
	if err := json.Unmarshal(f.Params, &params); err != nil {
		return err
	}
	sess, err := c.manager.lookupSession(params.SessionID)
	if err != nil {
		return err
	}
	switch params.Type {
	case "ask":
		sess.ResolveAsk(params.RequestID, params.Answer)
	case "approval":
		sess.ResolveApproval(params.RequestID, params.Approved)
	default:
		return fmt.Errorf("unknown human response type %q", params.Type)
	}
	return c.sendResponse(f.ID, true, map[string]any{"resolved": true}, nil)
}

// forwardEvents drains sub and pushes each event out as a server-initiated
// frame, until the subscription closes (session disposed or cancelled).
func (c *connection) forwardEvents(sub *eventbus.Subscription) {
	for evt := range sub.Events() {
		c.sendEvent(evt.SessionID, evt.Kind, evt.Payload)
	}
}

func (c *connection) sendResponse(id string, ok bool, payload any, frameErr *frameError) error {
	f := frame{Type: "res", ID: id, OK: &ok, Payload: payload, Error: frameErr}
	return c.enqueue(f)
}

func (c *connection) sendEvent(sessionID, event string, payload any) {
	seq := atomic.AddInt64(&c.seq, 1)
	f := frame{Type: "event", Event: event, Payload: map[string]any{"sessionId": sessionID, "data": payload}, Seq: &seq}
	_ = c.enqueue(f) //nolint:errcheck
}

func (c *connection) sendError(id, code, message string) {
	_ = c.sendResponse(id, false, nil, &frameError{Code: code, Message: message}) //nolint:errcheck
}

func (c *connection) enqueue(f frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}
	if len(data) > maxPayloadBytes {
		return fmt.Errorf("payload too large")
	}
	select {
	case c.send <- data:
		return nil
	default:
		return fmt.Errorf("send buffer full")
	}
}

func (c *connection) startTicking() {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			seq := atomic.AddInt64(&c.seq, 1)
			_ = c.enqueue(frame{Type: "event", Event: "tick", Payload: map[string]any{"timestamp": time.Now().UnixMilli()}, Seq: &seq}) //nolint:errcheck
		}
	}
}
