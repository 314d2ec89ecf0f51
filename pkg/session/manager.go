// Package session owns the lifecycle of runs: it creates them, routes their
// event stream through the reducer into the turn store, and exposes the
// command surface the render layer uses (new run, cancel, regenerate, clear).
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/eva-chat/turnstream/pkg/client"
	"github.com/eva-chat/turnstream/pkg/events"
	"github.com/eva-chat/turnstream/pkg/reducer"
	"github.com/eva-chat/turnstream/pkg/reveal"
	"github.com/eva-chat/turnstream/pkg/store"
	"github.com/eva-chat/turnstream/pkg/turns"
)

type run struct {
	cancel      client.CancelFunc
	prompt      string
	attachments []client.Attachment
	done        chan struct{}
	finished    bool
}

// Manager drives turns from the event stream. All event application goes
// through one logical path (handleFrame under mu), so per-turn mutation is
// serialized; the render layer only reads snapshots.
type Manager struct {
	mu      sync.Mutex
	store   *store.TurnStore
	policy  reveal.Policy
	source  client.RunEventSource
	starter client.RunStarter
	clock   func() time.Time

	conversationID string
	runs           map[string]*run
}

type Option func(*Manager)

func WithPolicy(p reveal.Policy) Option {
	return func(m *Manager) { m.policy = p }
}

func WithClock(clock func() time.Time) Option {
	return func(m *Manager) { m.clock = clock }
}

func WithStore(s *store.TurnStore) Option {
	return func(m *Manager) { m.store = s }
}

func NewManager(source client.RunEventSource, starter client.RunStarter, opts ...Option) *Manager {
	m := &Manager{
		store:   store.New(),
		policy:  reveal.Realtime{},
		source:  source,
		starter: starter,
		clock:   time.Now,
		runs:    map[string]*run{},
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Store exposes the turn store for read-only iteration by the render layer.
func (m *Manager) Store() *store.TurnStore {
	return m.store
}

// Turn returns the current snapshot for a turn id.
func (m *Manager) Turn(turnID string) (*turns.Turn, bool) {
	return m.store.Get(turnID)
}

// NewRun issues a run for the user message and wires its event stream into
// the reducer. The returned id identifies both the run and its turn.
func (m *Manager) NewRun(ctx context.Context, message string, attachments []client.Attachment) (string, error) {
	m.mu.Lock()
	conversationID := m.conversationID
	m.mu.Unlock()

	handle, err := m.starter.StartRun(ctx, message, attachments, conversationID)
	if err != nil {
		return "", errors.Wrap(err, "starting run")
	}
	turnID := handle.RunID
	log.Debug().Str("run_id", handle.RunID).Str("conversation_id", handle.ConversationID).Msg("run created")

	m.mu.Lock()
	m.conversationID = handle.ConversationID
	r := &run{
		prompt:      message,
		attachments: attachments,
		done:        make(chan struct{}),
	}
	m.runs[turnID] = r
	m.store.Upsert(turns.New(turnID))
	m.mu.Unlock()

	cancel, err := m.source.Subscribe(ctx, handle.RunID, client.Callbacks{
		OnOpen: func() {
			log.Debug().Str("run_id", handle.RunID).Msg("event stream opened")
		},
		OnMessage: func(name string, payload []byte) {
			m.handleFrame(turnID, name, payload)
		},
		OnError: func(err error) {
			log.Warn().Err(err).Str("run_id", handle.RunID).Msg("event stream error")
			m.applyTransition(turnID, reducer.ApplyTransportError)
			m.finish(turnID)
		},
		OnClose: func() {
			log.Debug().Str("run_id", handle.RunID).Msg("event stream closed")
			m.applyTransition(turnID, reducer.ApplyConnectionClosed)
			m.finish(turnID)
		},
	})
	if err != nil {
		m.mu.Lock()
		delete(m.runs, turnID)
		m.store.Remove(turnID)
		m.mu.Unlock()
		return "", errors.Wrap(err, "subscribing to run events")
	}

	m.mu.Lock()
	r.cancel = cancel
	m.mu.Unlock()

	return turnID, nil
}

// CancelRun stops a run: request backend cancellation, tear down the
// subscription, and apply the canceled transition locally without waiting for
// a server acknowledgment. A server-confirmed cancel arriving later is
// idempotent with the local transition.
func (m *Manager) CancelRun(ctx context.Context, turnID string) {
	if err := m.starter.CancelRun(ctx, turnID); err != nil {
		log.Warn().Err(err).Str("run_id", turnID).Msg("backend cancel failed")
	}

	m.mu.Lock()
	if r, ok := m.runs[turnID]; ok && r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	m.mu.Unlock()

	m.applyTransition(turnID, reducer.ApplyLocalCancel)
	m.finish(turnID)
}

// Regenerate removes the turn and re-issues a run with its originating user
// message. The conversation binding is dropped so the backend does not trip
// over the removed turn's unfinished tool calls.
func (m *Manager) Regenerate(ctx context.Context, turnID string) (string, error) {
	m.mu.Lock()
	r, ok := m.runs[turnID]
	if !ok {
		m.mu.Unlock()
		return "", errors.Errorf("unknown turn %s", turnID)
	}
	prompt, attachments := r.prompt, r.attachments
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	delete(m.runs, turnID)
	m.store.Remove(turnID)
	m.conversationID = ""
	m.mu.Unlock()

	return m.NewRun(ctx, prompt, attachments)
}

// Clear tears down all runs and empties the store ("new chat").
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, r := range m.runs {
		if r.cancel != nil {
			r.cancel()
		}
		m.store.Remove(id)
		delete(m.runs, id)
	}
	m.conversationID = ""
}

// Wait returns a channel closed when the run's stream has ended (terminal
// run status followed by close, transport error, or cancellation).
func (m *Manager) Wait(turnID string) <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.runs[turnID]; ok {
		return r.done
	}
	closed := make(chan struct{})
	close(closed)
	return closed
}

func (m *Manager) handleFrame(turnID string, name string, payload []byte) {
	ev, err := events.NewEventFromWire(name, payload)
	if err != nil {
		// Unknown names are forward compatibility, malformed payloads are
		// treated as never delivered. Neither reaches the reducer.
		log.Debug().Err(err).Str("event", name).Str("turn_id", turnID).Msg("dropping frame")
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.runs[turnID]; !ok {
		// Torn down mid-flight (regenerate/clear); late frames are expected.
		log.Debug().Str("turn_id", turnID).Msg("dropping frame for removed run")
		return
	}
	t, ok := m.store.Get(turnID)
	if !ok {
		panic(fmt.Sprintf("session: turn %s tracked but missing from store", turnID))
	}

	next := reducer.Apply(t, ev, m.policy, m.clock())
	if next != t {
		m.store.Upsert(next)
	}
}

func (m *Manager) applyTransition(turnID string, fn func(*turns.Turn) *turns.Turn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.store.Get(turnID)
	if !ok {
		return
	}
	next := fn(t)
	if next != t {
		m.store.Upsert(next)
	}
}

func (m *Manager) finish(turnID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.runs[turnID]; ok && !r.finished {
		r.finished = true
		close(r.done)
	}
}
