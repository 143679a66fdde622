package memory

import (
	"context"
	"sync"
)

// SeenStore keeps already handed-off proposal ids for the process lifetime.
type SeenStore struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewSeenStore() *SeenStore {
	return &SeenStore{seen: make(map[string]struct{})}
}

func (s *SeenStore) MarkSeen(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[id]; ok {
		return false, nil
	}
	s.seen[id] = struct{}{}
	return true, nil
}

func (s *SeenStore) Forget(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.seen, id)
	return nil
}
