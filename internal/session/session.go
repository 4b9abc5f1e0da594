// Package session implements the per-thread state machine of spec §4.7:
// idle/running/disposed, owning a transcript, a HumanChannel, and an abort
// controller, serializing turns one at a time.
package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/mweinbach/agent-coworker-sub008/internal/agent"
	"github.com/mweinbach/agent-coworker-sub008/internal/eventbus"
	"github.com/mweinbach/agent-coworker-sub008/internal/humanchannel"
	"github.com/mweinbach/agent-coworker-sub008/pkg/models"
)

// State is one of the session's three lifecycle states.
type State string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StateDisposed State = "disposed"
)

// Config carries the per-session attributes named in spec §3: provider,
// model, workspace roots, MCP/yolo toggles.
type Config struct {
	Provider      string
	Model         string
	WorkingDir    string
	OutputDir     string
	EnableMCP     bool
	Yolo          bool
	SystemPrompt  string
}

// Session is the per-thread state machine described in spec §4.7. Grounded
// on the teacher's in-memory session record (internal/sessions/memory.go,
// pre-deletion — that package additionally carried a CockroachDB-backed,
// multi-tenant branch hierarchy explicitly out of spec's scope: "distributed
// coordination; durable session storage with replication", see DESIGN.md)
// but reduced to the single local, disposable state machine the spec
// describes, with the transcript held in memory and handed to an
// append-only writer via Session.OnAppend.
type Session struct {
	ID     string
	Config Config

	mu         sync.Mutex
	state      State
	transcript []models.Message

	Bus          *eventbus.Bus
	HumanChannel *humanchannel.Channel
	Orchestrator *agent.TurnOrchestrator

	cancel context.CancelFunc

	// OnAppend, if set, is called once per message as it is appended to the
	// transcript (e.g. to persist it to an append-only file).
	OnAppend func(models.Message)

	// OnDispose, if set, runs once at the end of Dispose (e.g. to release
	// MCP servers acquired for this session). The session is already in
	// StateDisposed by the time it runs.
	OnDispose func()
}

// New creates an idle session with a fresh HumanChannel wired for cfg.Yolo.
func New(id string, cfg Config, bus *eventbus.Bus, orchestrator *agent.TurnOrchestrator) *Session {
	if id == "" {
		id = uuid.NewString()
	}
	hc := humanchannel.New()
	hc.Yolo = cfg.Yolo
	s := &Session{
		ID:           id,
		Config:       cfg,
		state:        StateIdle,
		Bus:          bus,
		HumanChannel: hc,
		Orchestrator: orchestrator,
	}
	hc.OnApprovalRequested = func(req models.HumanRequest) {
		s.publish("approval", approvalPayload(req))
	}
	hc.OnAskRequested = func(req models.HumanRequest) {
		s.publish("ask", askPayload(req))
	}
	return s
}

func approvalPayload(req models.HumanRequest) map[string]any {
	p := map[string]any{"requestId": req.RequestID}
	if req.Approval != nil {
		p["command"] = req.Approval.Command
		p["dangerous"] = req.Approval.Dangerous
		if req.Approval.ReasonCode != "" {
			p["reasonCode"] = req.Approval.ReasonCode
		}
	}
	return p
}

func askPayload(req models.HumanRequest) map[string]any {
	p := map[string]any{"requestId": req.RequestID}
	if req.Ask != nil {
		p["question"] = req.Ask.Question
	}
	return p
}

func (s *Session) publish(eventType string, payload any) {
	if s.Bus == nil {
		return
	}
	s.Bus.Publish(s.ID, eventbus.Event{Kind: eventType, SessionID: s.ID, Payload: payload})
}

// State reports the session's current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Transcript returns a copy of the appended message sequence.
func (s *Session) Transcript() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Message, len(s.transcript))
	copy(out, s.transcript)
	return out
}

func (s *Session) append(msg models.Message) {
	s.mu.Lock()
	s.transcript = append(s.transcript, msg)
	s.mu.Unlock()
	if s.OnAppend != nil {
		s.OnAppend(msg)
	}
}

// SendUserMessage runs one turn for text. It returns agent.ErrSessionDisposed
// if the session has been disposed (this implementation pins "disposed is
// terminal", spec §9's open question — see DESIGN.md), or agent.ErrBusy if
// a turn is already running.
func (s *Session) SendUserMessage(ctx context.Context, text, clientMessageID string) error {
	s.mu.Lock()
	if s.state == StateDisposed {
		s.mu.Unlock()
		s.publish("error", map[string]any{"code": agent.ErrorCodeInternalError, "source": agent.ErrorSourceSession, "message": agent.ErrSessionDisposed.Message})
		return agent.ErrSessionDisposed
	}
	if s.state == StateRunning {
		s.mu.Unlock()
		s.publish("error", map[string]any{"code": agent.ErrorCodeBusy, "source": agent.ErrorSourceSession, "message": agent.ErrBusy.Message})
		return agent.ErrBusy
	}
	s.state = StateRunning
	turnCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	history := s.Transcript()
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		if s.state == StateRunning {
			s.state = StateIdle
		}
		s.cancel = nil
		s.mu.Unlock()
		cancel()
	}()

	sink := agent.StreamSink{
		OnPart: func(part models.StreamPart) {
			s.publish("model_stream_chunk", part)
		},
	}

	return s.Orchestrator.SendUserMessage(
		turnCtx,
		s.ID, s.Config.Model, s.Config.SystemPrompt, text,
		history,
		nil,
		sink,
		s.append,
		s.publish,
	)
}

// ResolveAsk forwards to the session's HumanChannel.
func (s *Session) ResolveAsk(requestID, answer string) { s.HumanChannel.ResolveAsk(requestID, answer) }

// ResolveApproval forwards to the session's HumanChannel.
func (s *Session) ResolveApproval(requestID string, approved bool) {
	s.HumanChannel.ResolveApproval(requestID, approved)
}

// Cancel fires the current turn's abort signal, if one is running.
func (s *Session) Cancel() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Reset clears the transcript and emits an empty todos list, per spec §4.7.
func (s *Session) Reset() {
	s.mu.Lock()
	s.transcript = nil
	s.mu.Unlock()
	s.publish("todos", []any{})
}

// Dispose transitions the session to its terminal state, rejects every
// outstanding human-channel future, unsubscribes from the bus, and cancels
// any in-flight turn.
func (s *Session) Dispose(reason string) {
	s.Cancel()
	s.HumanChannel.DisposeAll()

	s.mu.Lock()
	s.state = StateDisposed
	s.mu.Unlock()

	if s.Bus != nil {
		s.Bus.DisposeSession(s.ID)
	}
	s.publish("log", map[string]any{"message": fmt.Sprintf("session disposed: %s", reason)})

	if s.OnDispose != nil {
		s.OnDispose()
	}
}
