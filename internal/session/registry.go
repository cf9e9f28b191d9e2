// Package session implements the orchestration core: the registry that owns
// concurrent sessions and the per-session conversation loop that alternates
// between model requests and parallel tool dispatch.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/easel-ai/easel/internal/event"
	"github.com/easel-ai/easel/internal/persist"
	"github.com/easel-ai/easel/internal/provider"
	"github.com/easel-ai/easel/internal/tool"
	"github.com/easel-ai/easel/pkg/types"
)

var (
	// ErrSessionNotFound marks caller misuse: an id the registry does not know.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionBusy rejects a second SendMessage while a turn is running.
	ErrSessionBusy = errors.New("session is processing another message")
)

// Defaults applied when Options fields are zero.
const (
	DefaultMaxTurns             = 10
	defaultMaxRetries           = 3
	defaultRetryInitialInterval = time.Second
)

// Options configures the registry's conversation loops.
type Options struct {
	// Model is the model identifier sent with every completion request.
	Model string

	// MaxTurns caps model calls per inbound message, guarding against a
	// model that never stops requesting tools.
	MaxTurns int

	// MaxTokens caps completion length; zero lets the provider choose.
	MaxTokens int

	// MaxRetries and RetryInitialInterval tune the in-turn retry of
	// transient model failures.
	MaxRetries           int
	RetryInitialInterval time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxTurns <= 0 {
		o.MaxTurns = DefaultMaxTurns
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = defaultMaxRetries
	}
	if o.RetryInitialInterval <= 0 {
		o.RetryInitialInterval = defaultRetryInitialInterval
	}
	return o
}

// Session is one running conversation. The registry owns it exclusively;
// the conversation loop is the only writer of its status and transcript.
type Session struct {
	id             string
	name           string
	workingContext string
	corr           types.Correlation
	created        time.Time

	reg *Registry

	// turnMu serializes turns: a second SendMessage while mid-turn is
	// rejected rather than interleaved.
	turnMu sync.Mutex

	// stMu guards status and transcript for concurrent snapshot readers.
	stMu       sync.Mutex
	status     types.SessionStatus
	transcript []types.Message

	cancel Token
	killed atomic.Bool
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Status returns the current loop state.
func (s *Session) Status() types.SessionStatus {
	s.stMu.Lock()
	defer s.stMu.Unlock()
	return s.status
}

// Transcript returns a snapshot of the transcript.
func (s *Session) Transcript() []types.Message {
	s.stMu.Lock()
	defer s.stMu.Unlock()
	out := make([]types.Message, len(s.transcript))
	copy(out, s.transcript)
	return out
}

// Registry is the single authority for session identity and lifecycle, and
// the fan-out point for output events. The session map is the only state
// shared across loops; everything else is owned by one session.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	order    []string

	client     provider.Client
	tools      *tool.Registry
	dispatcher *tool.Dispatcher
	gateway    persist.Gateway
	bus        *event.Bus
	opts       Options
}

// NewRegistry creates a session registry.
func NewRegistry(client provider.Client, tools *tool.Registry, gateway persist.Gateway, bus *event.Bus, opts Options) *Registry {
	return &Registry{
		sessions:   make(map[string]*Session),
		client:     client,
		tools:      tools,
		dispatcher: tool.NewDispatcher(tools),
		gateway:    gateway,
		bus:        bus,
		opts:       opts.withDefaults(),
	}
}

// Bus returns the output event bus.
func (r *Registry) Bus() *event.Bus { return r.bus }

// Spawn creates a session and returns its id immediately; it never waits on
// model availability. When a widget id is supplied, the transcript is
// hydrated from the persistence gateway.
func (r *Registry) Spawn(ctx context.Context, name, workingContext string, corr types.Correlation) string {
	if name == "" {
		name = "agent"
	}
	s := &Session{
		id:             newID(),
		name:           name,
		workingContext: workingContext,
		corr:           corr,
		created:        time.Now(),
		status:         types.StatusIdle,
	}
	s.reg = r

	if corr.WidgetID != "" {
		s.transcript = r.gateway.LoadTranscript(ctx, corr.WidgetID)
	}

	r.mu.Lock()
	r.sessions[s.id] = s
	r.order = append(r.order, s.id)
	r.mu.Unlock()

	r.bus.Publish(event.Event{Type: event.SessionCreated, SessionID: s.id, Text: name})

	// Advisory banner: not part of the transcript.
	s.emitLine(ctx, event.OutputLine, fmt.Sprintf("session %s ready (model %s)", s.id, r.opts.Model))
	if workingContext != "" {
		s.emitLine(ctx, event.OutputLine, "working context: "+workingContext)
	}
	if names := r.tools.Names(); len(names) > 0 {
		s.emitLine(ctx, event.OutputLine, "capabilities: "+strings.Join(names, ", "))
	} else {
		s.emitLine(ctx, event.OutputLine, "capabilities: none registered")
	}
	if len(s.transcript) > 0 {
		s.emitLine(ctx, event.OutputLine, fmt.Sprintf("restored %d transcript messages", len(s.transcript)))
	}

	return s.id
}

// SendMessage runs one inbound message through the session's conversation
// loop. It returns when the turn loop finishes; concurrent sends to other
// sessions are unaffected. A send racing an active turn on the same session
// fails with ErrSessionBusy.
func (r *Registry) SendMessage(ctx context.Context, sessionID, text string) error {
	s, err := r.get(sessionID)
	if err != nil {
		return err
	}
	return s.processMessage(ctx, text)
}

// Cancel sets the session's cancellation token. Cooperative: in-flight
// model or tool work finishes; the next suspension point observes the flag.
func (r *Registry) Cancel(sessionID string) error {
	s, err := r.get(sessionID)
	if err != nil {
		return err
	}
	s.cancel.Set()
	return nil
}

// Kill removes a session. In-flight work that later tries to mutate the
// session detects removal and abandons without re-inserting state.
func (r *Registry) Kill(sessionID string) error {
	r.mu.Lock()
	s, ok := r.sessions[sessionID]
	if !ok {
		r.mu.Unlock()
		return ErrSessionNotFound
	}
	delete(r.sessions, sessionID)
	for i, id := range r.order {
		if id == sessionID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.mu.Unlock()

	s.killed.Store(true)
	s.cancel.Set()

	r.bus.Publish(event.Event{Type: event.SessionDeleted, SessionID: sessionID})
	r.bus.DropSession(sessionID)
	return nil
}

// KillAll removes every session.
func (r *Registry) KillAll() {
	r.mu.RLock()
	ids := make([]string, len(r.order))
	copy(ids, r.order)
	r.mu.RUnlock()

	for _, id := range ids {
		_ = r.Kill(id)
	}
}

// List returns a snapshot of all sessions in spawn order.
func (r *Registry) List() []types.SessionInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]types.SessionInfo, 0, len(r.order))
	for _, id := range r.order {
		s, ok := r.sessions[id]
		if !ok {
			continue
		}
		s.stMu.Lock()
		infos = append(infos, types.SessionInfo{
			ID:           s.id,
			Name:         s.name,
			Status:       s.status,
			MessageCount: len(s.transcript),
		})
		s.stMu.Unlock()
	}
	return infos
}

// SubscribeOutput registers a listener for one session's output events and
// returns an idempotent unsubscribe function.
func (r *Registry) SubscribeOutput(sessionID string, fn func(event.Event)) (func(), error) {
	if _, err := r.get(sessionID); err != nil {
		return nil, err
	}
	return r.bus.Subscribe(sessionID, fn), nil
}

// Transcript returns a snapshot of one session's transcript.
func (r *Registry) Transcript(sessionID string) ([]types.Message, error) {
	s, err := r.get(sessionID)
	if err != nil {
		return nil, err
	}
	return s.Transcript(), nil
}

func (r *Registry) get(sessionID string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return s, nil
}

func newID() string {
	return ulid.Make().String()
}
