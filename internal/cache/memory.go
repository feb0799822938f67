package cache

import (
	"context"
	"sync"

	"blink/internal/livestatus"
)

// MemorySnapshotStore holds the encoded snapshot in process. It round-trips
// through the same codec as the durable stores.
type MemorySnapshotStore struct {
	mu   sync.RWMutex
	data []byte
}

func NewMemorySnapshotStore() *MemorySnapshotStore {
	return &MemorySnapshotStore{}
}

func (s *MemorySnapshotStore) Get(ctx context.Context) (*livestatus.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.data == nil {
		return nil, nil
	}
	return livestatus.DecodeSnapshot(s.data)
}

func (s *MemorySnapshotStore) Set(ctx context.Context, snap *livestatus.Snapshot) error {
	data, err := livestatus.EncodeSnapshot(snap)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.data = data
	s.mu.Unlock()
	return nil
}

func (s *MemorySnapshotStore) Remove(ctx context.Context) error {
	s.mu.Lock()
	s.data = nil
	s.mu.Unlock()
	return nil
}
