package cache

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	value     []byte
	expiresAt time.Time
}

// Memory is an in-process TTL cache guarded by a mutex. Expired entries are
// dropped lazily on read.
type Memory struct {
	mu    sync.Mutex
	store map[string]entry
	now   func() time.Time
}

func NewMemory() *Memory {
	return &Memory{store: make(map[string]entry), now: time.Now}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.store[key]
	if !ok {
		return nil, false
	}
	if m.now().After(e.expiresAt) {
		delete(m.store, key)
		return nil, false
	}
	return e.value, true
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store[key] = entry{value: value, expiresAt: m.now().Add(ttl)}
}
