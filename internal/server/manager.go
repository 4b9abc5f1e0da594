package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/mweinbach/agent-coworker-sub008/internal/agent"
	"github.com/mweinbach/agent-coworker-sub008/internal/eventbus"
	"github.com/mweinbach/agent-coworker-sub008/internal/humanchannel"
	"github.com/mweinbach/agent-coworker-sub008/internal/session"
)

// protocolVersion is the control-plane's own version number, compared
// against a connecting client's [minProtocol, maxProtocol] range at
// handshake. Grounded on wsProtocolVersion.
const protocolVersion = 1

const (
	maxPayloadBytes = 1 << 20
	tickInterval    = 15 * time.Second
	pongWait        = 45 * time.Second
	writeWait       = 10 * time.Second
)

// ErrUnknownSession is returned when a frame references a session id the
// Manager has no record of.
var ErrUnknownSession = errors.New("server: unknown session id")

// ProviderFactory resolves a provider name (spec §3's per-session
// provider selection) to the LLMProvider backing it.
type ProviderFactory func(name string) (agent.LLMProvider, error)

// ToolBuilder wires a fresh ToolDispatcher for a new session: registering
// built-in tools and, if cfg.EnableMCP is set, MCP-hosted ones. Kept as a
// caller-supplied hook since the built-in tool set and MCP server config
// are deployment concerns outside SessionManager's own responsibility. The
// returned cleanup func, if non-nil, is wired to the session's OnDispose
// hook (e.g. to release MCP servers this session acquired).
type ToolBuilder func(cfg session.Config, humanChannel *humanchannel.Channel) (*agent.ToolDispatcher, func(), error)

// Config configures a Manager.
type Config struct {
	Providers   ProviderFactory
	BuildTools  ToolBuilder
	TurnOptions agent.TurnOptions
	AuthToken   string
	Logger      *slog.Logger
}

// Manager is the SessionManager of spec §4.8: it accepts websocket
// connections, assigns each a connection id, creates/looks up Sessions by
// client request, and bridges eventbus traffic back out over the wire.
// Grounded on internal/gateway/ws_control_plane.go's wsControlPlane, with
// the gRPC-bridging wsStream and the CockroachDB-backed session store
// dropped: this Manager owns an in-memory map of internal/session.Session
// directly instead of routing through a separate sessions store (see
// DESIGN.md, "internal/sessions" deletion entry).
type Manager struct {
	cfg      Config
	bus      *eventbus.Bus
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu       sync.Mutex
	sessions map[string]*session.Session
}

// New creates a Manager with an empty session table and its own EventBus.
func New(cfg Config) *Manager {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Manager{
		cfg:      cfg,
		bus:      eventbus.New(cfg.Logger),
		logger:   cfg.Logger.With("component", "server"),
		sessions: make(map[string]*session.Session),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  8192,
			WriteBufferSize: 8192,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Handler returns the http.Handler that upgrades incoming requests to the
// websocket control plane (mounted at e.g. "/ws").
func (m *Manager) Handler() http.Handler { return http.HandlerFunc(m.serveHTTP) }

// HealthHandler returns a minimal liveness/readiness endpoint, grounded on
// the teacher's handleHealthz (internal/gateway/http_server.go) but trimmed
// to this repo's narrower scope: no channel activity stats, no migration
// status, since neither concept exists here.
func (m *Manager) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		active := len(m.sessions)
		m.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		writeJSON(w, http.StatusOK, map[string]any{
			"status":         "ok",
			"activeSessions": active,
			"droppedEvents":  m.bus.DroppedTotal(),
		})
	}
}

func (m *Manager) serveHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := newConnection(m, conn)
	c.run()
}

// createSession builds a new idle Session and registers it by id.
func (m *Manager) createSession(cfg session.Config) (*session.Session, error) {
	provider, err := m.resolveProvider(cfg.Provider)
	if err != nil {
		return nil, err
	}

	hc := humanchannel.New()
	dispatcher, cleanup, err := m.buildTools(cfg, hc)
	if err != nil {
		return nil, fmt.Errorf("server: build tools: %w", err)
	}
	if m.cfg.TurnOptions.ToolResultGuard.Active() {
		dispatcher.SetGuard(m.cfg.TurnOptions.ToolResultGuard)
	}
	if len(m.cfg.TurnOptions.RequireApproval) > 0 {
		dispatcher.SetRequireApproval(m.cfg.TurnOptions.RequireApproval)
	}

	adapter := agent.NewRuntimeAdapter(provider, dispatcher)
	orchestrator := agent.NewTurnOrchestrator(adapter, m.cfg.TurnOptions)

	id := uuid.NewString()
	sess := session.New(id, cfg, m.bus, orchestrator)
	sess.HumanChannel = hc
	sess.OnDispose = cleanup

	m.mu.Lock()
	m.sessions[id] = sess
	m.mu.Unlock()

	return sess, nil
}

func (m *Manager) resolveProvider(name string) (agent.LLMProvider, error) {
	if m.cfg.Providers == nil {
		return nil, fmt.Errorf("server: no provider factory configured")
	}
	return m.cfg.Providers(name)
}

func (m *Manager) buildTools(cfg session.Config, hc *humanchannel.Channel) (*agent.ToolDispatcher, func(), error) {
	if m.cfg.BuildTools != nil {
		return m.cfg.BuildTools(cfg, hc)
	}
	return agent.NewToolDispatcher(hc, cfg.WorkingDir), nil, nil
}

// lookupSession returns the session registered under id.
func (m *Manager) lookupSession(id string) (*session.Session, error) {
	m.mu.Lock()
	sess, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return nil, ErrUnknownSession
	}
	return sess, nil
}

// disposeSession tears down and forgets a session.
func (m *Manager) disposeSession(id, reason string) error {
	m.mu.Lock()
	sess, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return ErrUnknownSession
	}
	sess.Dispose(reason)
	return nil
}

// checkAuth compares token against the configured shared secret. An empty
// configured token disables authentication, matching the teacher's
// auth.Service.Enabled() gate (ws_control_plane.go's handleConnect).
func (m *Manager) checkAuth(token string) bool {
	if m.cfg.AuthToken == "" {
		return true
	}
	return token == m.cfg.AuthToken
}
