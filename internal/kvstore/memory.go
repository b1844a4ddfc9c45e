package kvstore

import (
	"context"
	"sync"
)

// Memory keeps every client's slot in process memory. Used in development
// and tests; values are lost on restart.
type Memory struct {
	mu   sync.RWMutex
	data map[string]map[string]string
}

// NewMemory creates an empty in-memory provider
func NewMemory() *Memory {
	return &Memory{data: make(map[string]map[string]string)}
}

// ForClient returns the slot for clientID
func (m *Memory) ForClient(clientID string) Store {
	return &memoryStore{parent: m, client: clientKey(clientID)}
}

type memoryStore struct {
	parent *Memory
	client string
}

func (s *memoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.parent.mu.RLock()
	defer s.parent.mu.RUnlock()

	v, ok := s.parent.data[s.client][key]
	return v, ok, nil
}

func (s *memoryStore) Set(_ context.Context, key, value string) error {
	s.parent.mu.Lock()
	defer s.parent.mu.Unlock()

	slot, ok := s.parent.data[s.client]
	if !ok {
		slot = make(map[string]string)
		s.parent.data[s.client] = slot
	}
	slot[key] = value
	return nil
}

func (s *memoryStore) Delete(_ context.Context, key string) error {
	s.parent.mu.Lock()
	defer s.parent.mu.Unlock()

	delete(s.parent.data[s.client], key)
	if len(s.parent.data[s.client]) == 0 {
		delete(s.parent.data, s.client)
	}
	return nil
}
