package session

import (
	"context"
	"sync"
)

// MemoryStore keeps sessions in process memory. It is meant for
// development and tests; sessions do not survive a restart.
type MemoryStore struct {
	opts storeOptions

	mu       sync.Mutex
	sessions map[string]Data
}

func NewMemoryStore(opts ...StoreOption) *MemoryStore {
	return &MemoryStore{
		opts:     buildStoreOptions(opts),
		sessions: make(map[string]Data),
	}
}

func (m *MemoryStore) Create(_ context.Context, sessionID string, data Data) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data.ExpiresAt = m.opts.now().Add(m.opts.ttl)
	m.sessions[sessionID] = data.clone()
	return nil
}

func (m *MemoryStore) Read(_ context.Context, sessionID string) (*Data, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	if data.Expired(m.opts.now()) {
		delete(m.sessions, sessionID)
		return nil, ErrNotFound
	}

	out := data.clone()
	return &out, nil
}

func (m *MemoryStore) Update(_ context.Context, sessionID string, patch Patch) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, ok := m.sessions[sessionID]
	if !ok {
		return nil
	}
	m.sessions[sessionID] = data.Apply(patch)
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, sessionID)
	return nil
}

func (m *MemoryStore) Close() error {
	return nil
}

var _ Store = (*MemoryStore)(nil)
