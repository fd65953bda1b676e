package repository

import (
	"context"
	"sync"

	"github.com/neudev/attemptd/internal/model"
)

// MemoryStore keeps encoded records in a map. Used for tests and ephemeral runs.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string][]byte
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string][]byte)}
}

func (s *MemoryStore) Load(_ context.Context, key model.SessionKey) (*model.SessionRecord, error) {
	s.mu.Lock()
	data, ok := s.records[StorageKey(key)]
	s.mu.Unlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	return decodeRecord(data)
}

func (s *MemoryStore) Save(_ context.Context, key model.SessionKey, rec *model.SessionRecord) error {
	data, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.records[StorageKey(key)] = data
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Clear(_ context.Context, key model.SessionKey) error {
	s.mu.Lock()
	delete(s.records, StorageKey(key))
	s.mu.Unlock()
	return nil
}

// Len returns the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
