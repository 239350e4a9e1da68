package cache

import (
	"context"
	"sync"
	"time"

	"github.com/imagemill/imagemill/internal/model"
)

// DefaultTTL bounds how stale a cached listing may get.
const DefaultTTL = 30 * time.Second

type memoryEntry struct {
	data      *model.ListResponse
	expiresAt time.Time
}

// Memory is the in-process ListCache. Expired entries are evicted on access.
// There is no size bound: key cardinality equals active owner count, which is
// an unbounded-growth risk if that count gets large.
type Memory struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Memory{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (m *Memory) Get(_ context.Context, ownerID string) (*model.ListResponse, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[ownerID]
	if !ok {
		return nil, false
	}
	if m.now().After(entry.expiresAt) {
		delete(m.entries, ownerID)
		return nil, false
	}
	return entry.data, true
}

func (m *Memory) Put(_ context.Context, ownerID string, data *model.ListResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[ownerID] = memoryEntry{
		data:      data,
		expiresAt: m.now().Add(m.ttl),
	}
}

func (m *Memory) Invalidate(_ context.Context, ownerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, ownerID)
}

// Len reports how many entries are held, expired or not.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.entries)
}
