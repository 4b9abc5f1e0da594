// Package eventbus fans out per-session server events to subscribers — one
// subscription per connected client — without letting a slow consumer stall
// the publisher.
package eventbus

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/mweinbach/agent-coworker-sub008/pkg/models"
)

// DefaultBufferSize is the bounded FIFO depth per subscription.
const DefaultBufferSize = 128

// Event is one server-originated message published to a session's
// subscribers. Kind is the wire `type` field; Payload is marshaled as-is.
type Event struct {
	Kind      string `json:"type"`
	SessionID string `json:"sessionId"`
	Payload   any    `json:"payload,omitempty"`
}

// DroppedEvent is the terminal event a subscriber receives in place of
// further delivery once its buffer has overflowed.
type DroppedEvent struct {
	Reason string `json:"reason"`
}

// StreamPartEvent wraps a models.StreamPart for publication; most session
// traffic flows through this shape.
func StreamPartEvent(sessionID string, part models.StreamPart) Event {
	return Event{Kind: string(part.Type), SessionID: sessionID, Payload: part}
}

// Subscription is a bounded FIFO of events for one session, owned by one
// client connection.
type Subscription struct {
	id        uint64
	sessionID string
	ch        chan Event
	dropped   atomic.Bool
	closed    atomic.Bool
	bus       *Bus
}

// Events returns the channel to range over. It closes when the session
// disposes or the subscription is individually cancelled.
func (s *Subscription) Events() <-chan Event {
	return s.ch
}

// Cancel stops delivery to this subscription and releases it from the bus.
func (s *Subscription) Cancel() {
	s.bus.unsubscribe(s)
}

func (s *Subscription) closeOnce() {
	if s.closed.CompareAndSwap(false, true) {
		close(s.ch)
	}
}

// Bus is a process-level, in-memory fan-out of typed server events keyed by
// session id. Grounded on the teacher's BackpressureSink two-lane design
// (internal/agent/event_sink.go), collapsed to spec's single bounded FIFO
// per subscriber: once a subscriber misses an event it gets exactly one
// terminal `dropped` event and nothing more, rather than the teacher's
// continued best-effort low-priority delivery.
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[string]map[uint64]*Subscription
	logger *slog.Logger

	droppedTotal atomic.Uint64
}

// New creates an empty Bus.
func New(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		subs:   make(map[string]map[uint64]*Subscription),
		logger: logger.With("component", "eventbus"),
	}
}

// Subscribe returns a bounded FIFO of events for sessionID.
func (b *Bus) Subscribe(sessionID string) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := &Subscription{
		id:        b.nextID,
		sessionID: sessionID,
		ch:        make(chan Event, DefaultBufferSize),
		bus:       b,
	}
	if b.subs[sessionID] == nil {
		b.subs[sessionID] = make(map[uint64]*Subscription)
	}
	b.subs[sessionID][sub.id] = sub
	return sub
}

func (b *Bus) unsubscribe(sub *Subscription) {
	b.mu.Lock()
	if set := b.subs[sub.sessionID]; set != nil {
		delete(set, sub.id)
		if len(set) == 0 {
			delete(b.subs, sub.sessionID)
		}
	}
	b.mu.Unlock()
	sub.closeOnce()
}

// Publish enqueues event to every live subscriber of sessionID in O(1) per
// subscriber. A subscriber whose buffer is already full is marked dropped
// and receives one terminal `{type: dropped, reason: slow_consumer}` event
// instead; it never blocks the publisher and never receives anything after
// that marker.
func (b *Bus) Publish(sessionID string, event Event) {
	b.mu.RLock()
	set := b.subs[sessionID]
	// Snapshot so we don't hold the bus lock while sending.
	targets := make([]*Subscription, 0, len(set))
	for _, sub := range set {
		targets = append(targets, sub)
	}
	b.mu.RUnlock()

	for _, sub := range targets {
		if sub.dropped.Load() {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			if sub.dropped.CompareAndSwap(false, true) {
				b.droppedTotal.Add(1)
				b.logger.Warn("subscriber dropped", "session_id", sessionID, "subscription_id", sub.id)
				select {
				case sub.ch <- Event{
					Kind:      "dropped",
					SessionID: sessionID,
					Payload:   DroppedEvent{Reason: "slow_consumer"},
				}:
				default:
					// Even the terminal marker didn't fit; the consumer is
					// far enough behind that there is nothing useful left
					// to do but close its channel.
					sub.closeOnce()
				}
			}
		}
	}
}

// DisposeSession closes every subscription for sessionID, e.g. when the
// owning Session disposes.
func (b *Bus) DisposeSession(sessionID string) {
	b.mu.Lock()
	set := b.subs[sessionID]
	delete(b.subs, sessionID)
	b.mu.Unlock()

	for _, sub := range set {
		sub.closeOnce()
	}
}

// DroppedTotal reports the cumulative number of subscribers dropped for
// slow consumption, for telemetry.
func (b *Bus) DroppedTotal() uint64 {
	return b.droppedTotal.Load()
}
