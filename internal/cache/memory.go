package cache

import (
	"context"
	"time"

	"github.com/gofiber/storage/memory/v2"
)

// MemoryStore keeps entries in process memory. Entries never expire; the
// storage GC only matters when a TTL is configured.
type MemoryStore struct {
	storage *memory.Storage
	ttl     time.Duration
}

// NewMemoryStore creates an empty in-memory store. A zero ttl keeps
// entries for the life of the process.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		storage: memory.New(memory.Config{
			GCInterval: 10 * time.Minute,
		}),
		ttl: ttl,
	}
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, key string) (*Entry, error) {
	data, err := s.storage.Get(key)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	return Unmarshal(data)
}

// Set implements Store.
func (s *MemoryStore) Set(_ context.Context, key string, e *Entry) error {
	data, err := Marshal(e)
	if err != nil {
		return err
	}
	return s.storage.Set(key, data, s.ttl)
}

// Close stops the storage GC.
func (s *MemoryStore) Close() error {
	return s.storage.Close()
}
