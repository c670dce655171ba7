package session

import (
	"context"
	"sync"

	"storyforge/internal/model"
)

// MemoryStore is the in-process Store used by tests and single-node
// development runs.
type MemoryStore struct {
	mu        sync.Mutex
	flashes   map[string][]Flash
	positions map[string]model.LastPosition
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		flashes:   map[string][]Flash{},
		positions: map[string]model.LastPosition{},
	}
}

func (s *MemoryStore) PushFlash(_ context.Context, sessionID string, flash Flash) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flashes[sessionID] = append(s.flashes[sessionID], flash)
	return nil
}

func (s *MemoryStore) PopFlashes(_ context.Context, sessionID string) ([]Flash, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.flashes[sessionID]
	delete(s.flashes, sessionID)
	return out, nil
}

func (s *MemoryStore) SetLastPosition(_ context.Context, sessionID string, pos model.LastPosition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.positions[sessionID] = pos
	return nil
}

func (s *MemoryStore) LastPosition(_ context.Context, sessionID string) (model.LastPosition, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pos, ok := s.positions[sessionID]
	return pos, ok, nil
}
