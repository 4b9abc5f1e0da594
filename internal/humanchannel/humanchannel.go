// Package humanchannel coordinates out-of-band ask/approval requests
// between a running turn and the human on the other end of a session's
// transport connection.
package humanchannel

import (
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/mweinbach/agent-coworker-sub008/pkg/models"
)

// ErrSessionDisposed is the terminal error every still-pending request
// receives from disposeAll.
var ErrSessionDisposed = errors.New("session_disposed")

// AskFuture resolves to the human's free-form answer, or ErrSessionDisposed.
type AskFuture struct {
	requestID string
	result    chan askResult
}

type askResult struct {
	answer string
	err    error
}

// RequestID returns the id the pending ask is keyed by.
func (f *AskFuture) RequestID() string { return f.requestID }

// Wait blocks until resolveAsk or disposeAll settles this request.
func (f *AskFuture) Wait() (string, error) {
	r := <-f.result
	return r.answer, r.err
}

// ApproveFuture resolves to whether the human approved the command, or
// ErrSessionDisposed.
type ApproveFuture struct {
	requestID string
	result    chan approveResult
}

type approveResult struct {
	approved bool
	err      error
}

// RequestID returns the id the pending approval is keyed by.
func (f *ApproveFuture) RequestID() string { return f.requestID }

// Wait blocks until resolveApproval or disposeAll settles this request.
func (f *ApproveFuture) Wait() (bool, error) {
	r := <-f.result
	return r.approved, r.err
}

type pending struct {
	request models.HumanRequest
	ask     chan askResult
	approve chan approveResult
	settled bool
}

// Channel is a per-session registry of outstanding ask/approval requests,
// each resolved at most once. Grounded on the teacher's ApprovalStore /
// MemoryApprovalStore (internal/agent/approval.go) — generalized from
// approval-only to the ask|approval tagged variant the spec requires, and
// from a TTL-pruned store to a dispose-draining one (this is a per-session
// registry, not a shared long-lived store).
type Channel struct {
	mu       sync.Mutex
	pending  map[string]*pending
	disposed bool

	// Yolo short-circuits approve() to auto-true without creating a pending
	// request or emitting an approval event, per spec §4.2.
	Yolo bool

	// OnApprovalRequested is called synchronously while holding no lock,
	// right after a new approval request is registered, so the caller can
	// publish the corresponding StreamPart/event. Nil is a valid no-op.
	OnApprovalRequested func(models.HumanRequest)
	OnAskRequested       func(models.HumanRequest)
}

// New creates an empty Channel.
func New() *Channel {
	return &Channel{pending: make(map[string]*pending)}
}

// Ask registers a pending free-form question and returns a future for the
// human's answer.
func (c *Channel) Ask(question string) (*AskFuture, error) {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return nil, ErrSessionDisposed
	}
	id := uuid.NewString()
	p := &pending{
		request: models.HumanRequest{
			Type:      models.HumanRequestAsk,
			RequestID: id,
			Ask:       &models.AskRequest{Question: question},
		},
		ask: make(chan askResult, 1),
	}
	c.pending[id] = p
	c.mu.Unlock()

	if c.OnAskRequested != nil {
		c.OnAskRequested(p.request)
	}
	return &AskFuture{requestID: id, result: p.ask}, nil
}

// Approve registers a pending approval request and returns a future for
// the human's decision. If Yolo is set, it resolves to true immediately
// without registering anything or firing OnApprovalRequested.
func (c *Channel) Approve(command string, dangerous bool) (*ApproveFuture, error) {
	if c.Yolo {
		f := &ApproveFuture{requestID: "", result: make(chan approveResult, 1)}
		f.result <- approveResult{approved: true}
		return f, nil
	}

	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return nil, ErrSessionDisposed
	}
	id := uuid.NewString()
	p := &pending{
		request: models.HumanRequest{
			Type:      models.HumanRequestApproval,
			RequestID: id,
			Approval:  &models.ApprovalRequest{Command: command, Dangerous: dangerous},
		},
		approve: make(chan approveResult, 1),
	}
	c.pending[id] = p
	c.mu.Unlock()

	if c.OnApprovalRequested != nil {
		c.OnApprovalRequested(p.request)
	}
	return &ApproveFuture{requestID: id, result: p.approve}, nil
}

// ResolveAsk resolves a pending ask. Unknown ids are silently ignored. An
// answer equal to models.AskSkipToken is delivered to the waiter verbatim;
// interpreting it as "skipped" is the tool wrapper's job.
func (c *Channel) ResolveAsk(requestID, answer string) {
	c.mu.Lock()
	p, ok := c.pending[requestID]
	if !ok || p.settled || p.ask == nil {
		c.mu.Unlock()
		return
	}
	p.settled = true
	delete(c.pending, requestID)
	c.mu.Unlock()

	p.ask <- askResult{answer: answer}
}

// ResolveApproval resolves a pending approval. Unknown ids are silently
// ignored.
func (c *Channel) ResolveApproval(requestID string, approved bool) {
	c.mu.Lock()
	p, ok := c.pending[requestID]
	if !ok || p.settled || p.approve == nil {
		c.mu.Unlock()
		return
	}
	p.settled = true
	delete(c.pending, requestID)
	c.mu.Unlock()

	p.approve <- approveResult{approved: approved}
}

// DisposeAll rejects every pending request with ErrSessionDisposed and
// marks the channel disposed: further Ask/Approve calls fail immediately,
// and further resolve calls are no-ops (there is nothing left pending).
func (c *Channel) DisposeAll() {
	c.mu.Lock()
	c.disposed = true
	pending := c.pending
	c.pending = make(map[string]*pending)
	c.mu.Unlock()

	for _, p := range pending {
		if p.settled {
			continue
		}
		p.settled = true
		switch {
		case p.ask != nil:
			p.ask <- askResult{err: ErrSessionDisposed}
		case p.approve != nil:
			p.approve <- approveResult{err: ErrSessionDisposed}
		}
	}
}

// PendingCount reports the number of still-outstanding requests, for tests
// and diagnostics.
func (c *Channel) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
