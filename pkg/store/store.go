// Package store holds Turn state keyed by turn id. It is a pure container:
// all business logic lives in the reducer, and stored turns are treated as
// immutable snapshots (the reducer returns a fresh value per transition), so
// readers can hold what Get returns without copying.
package store

import (
	"sync"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/eva-chat/turnstream/pkg/turns"
)

// TurnStore maps turn id to the latest Turn snapshot, preserving insertion
// order for chronological display. Writes come from the single event
// application path; the lock exists so render goroutines can read safely.
type TurnStore struct {
	mu sync.RWMutex
	m  *orderedmap.OrderedMap[string, *turns.Turn]
}

func New() *TurnStore {
	return &TurnStore{
		m: orderedmap.New[string, *turns.Turn](),
	}
}

// Get returns the current snapshot for a turn id.
func (s *TurnStore) Get(turnID string) (*turns.Turn, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.m.Get(turnID)
}

// Upsert stores a turn snapshot, keeping the original insertion position for
// existing ids.
func (s *TurnStore) Upsert(t *turns.Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m.Set(t.TurnID, t)
}

// Remove deletes a turn. Explicit teardown only (new chat, regenerate); the
// reducer never removes turns.
func (s *TurnStore) Remove(turnID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m.Delete(turnID)
}

func (s *TurnStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.m.Len()
}

// Range iterates turns in insertion order until fn returns false.
func (s *TurnStore) Range(fn func(turnID string, t *turns.Turn) bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for pair := s.m.Oldest(); pair != nil; pair = pair.Next() {
		if !fn(pair.Key, pair.Value) {
			return
		}
	}
}

// Snapshot returns all turns in insertion order.
func (s *TurnStore) Snapshot() []*turns.Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*turns.Turn, 0, s.m.Len())
	for pair := s.m.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value)
	}
	return out
}
