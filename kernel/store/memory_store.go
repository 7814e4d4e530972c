package store

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory History for testing.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string][]*Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string][]*Record)}
}

func (s *MemoryStore) Record(_ context.Context, record *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[record.InstanceId] = append(s.records[record.InstanceId], record)
	return nil
}

func (s *MemoryStore) List(instanceId string) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// copy so callers cannot race later appends
	result := make([]*Record, len(s.records[instanceId]))
	copy(result, s.records[instanceId])
	return result, nil
}

func (s *MemoryStore) Close() error {
	return nil
}
