// Package event provides the per-session output stream: a pub/sub bus built
// on watermill's gochannel, fanning text chunks and structural events out to
// zero or more subscribers per session.
package event

import (
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// Type tags an output event.
type Type string

const (
	// SessionCreated and SessionDeleted mark registry lifecycle changes.
	SessionCreated Type = "session.created"
	SessionDeleted Type = "session.deleted"

	// OutputChunk carries raw model text, streamed in order with no trailing
	// newline forced. OutputLine carries a complete advisory line.
	OutputChunk Type = "output.chunk"
	OutputLine  Type = "output.line"

	// Structural events, emitted as complete lines.
	ToolStarted   Type = "tool.started"
	TurnCompleted Type = "turn.completed"
	TurnCancelled Type = "turn.cancelled"
	SessionError  Type = "session.error"
)

// Event is one entry on a session's output stream. The stream is advisory
// and UI-facing; the persisted transcript is the durable record.
type Event struct {
	Type      Type   `json:"type"`
	SessionID string `json:"sessionID"`
	Text      string `json:"text,omitempty"`
	Time      int64  `json:"time,omitempty"`
}

// Subscriber receives events for one session (or all sessions).
type Subscriber func(Event)

type entry struct {
	id uint64
	fn Subscriber
}

// Bus fans events out per session id. Watermill's gochannel carries the
// infrastructure; direct subscriber dispatch preserves the typed payload.
type Bus struct {
	mu sync.RWMutex

	pubsub *gochannel.GoChannel

	bySession map[string][]entry
	global    []entry

	nextID uint64
	closed bool
}

// NewBus creates an event bus.
func NewBus() *Bus {
	return &Bus{
		pubsub: gochannel.NewGoChannel(
			gochannel.Config{OutputChannelBuffer: 100},
			watermill.NopLogger{},
		),
		bySession: make(map[string][]entry),
	}
}

// Subscribe registers a subscriber for one session's events and returns an
// unsubscribe function. Unsubscribing more than once is a no-op.
func (b *Bus) Subscribe(sessionID string, fn Subscriber) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return func() {}
	}

	id := atomic.AddUint64(&b.nextID, 1)
	b.bySession[sessionID] = append(b.bySession[sessionID], entry{id: id, fn: fn})

	return func() { b.unsubscribe(sessionID, id) }
}

// SubscribeAll registers a subscriber for every session's events.
func (b *Bus) SubscribeAll(fn Subscriber) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return func() {}
	}

	id := atomic.AddUint64(&b.nextID, 1)
	b.global = append(b.global, entry{id: id, fn: fn})

	return func() { b.unsubscribeGlobal(id) }
}

func (b *Bus) unsubscribe(sessionID string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.bySession[sessionID]
	for i, e := range subs {
		if e.id == id {
			b.bySession[sessionID] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(b.bySession[sessionID]) == 0 {
		delete(b.bySession, sessionID)
	}
}

func (b *Bus) unsubscribeGlobal(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, e := range b.global {
		if e.id == id {
			b.global = append(b.global[:i], b.global[i+1:]...)
			break
		}
	}
}

func (b *Bus) collect(ev Event) []Subscriber {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil
	}
	subs := make([]Subscriber, 0, len(b.bySession[ev.SessionID])+len(b.global))
	for _, e := range b.bySession[ev.SessionID] {
		subs = append(subs, e.fn)
	}
	for _, e := range b.global {
		subs = append(subs, e.fn)
	}
	return subs
}

// Publish delivers an event to the session's subscribers synchronously, in
// emission order. Subscribers must not block; slow consumers should buffer.
// Events are mirrored onto the watermill topic named after the session so
// middleware or distributed backends can tap the stream.
func (b *Bus) Publish(ev Event) {
	subs := b.collect(ev)
	if subs == nil {
		return
	}
	if payload, err := json.Marshal(ev); err == nil {
		_ = b.pubsub.Publish(ev.SessionID, message.NewMessage(watermill.NewUUID(), payload))
	}
	for _, fn := range subs {
		fn(ev)
	}
}

// PubSub exposes the underlying watermill channel for advanced consumers.
func (b *Bus) PubSub() *gochannel.GoChannel {
	return b.pubsub
}

// DropSession removes every subscriber registered for a session.
func (b *Bus) DropSession(sessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.bySession, sessionID)
}

// Close shuts the bus down; subsequent publishes are dropped.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.bySession = make(map[string][]entry)
	b.global = nil
	b.mu.Unlock()

	return b.pubsub.Close()
}
