// Package cache provides the caching layer for the analysis services: a
// small Store capability interface, an in-process TTL store, and a
// Redis-backed service with graceful degradation.
package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// DefaultMaxEntries caps a memory store when no explicit cap is given.
const DefaultMaxEntries = 300

// Store is the capability analysis services cache through. Payloads are
// opaque bytes; callers own serialization. Implementations never fail a
// call: broken backends degrade to misses.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte)
	Delete(ctx context.Context, key string)
}

type memoryEntry struct {
	value   []byte
	written time.Time
}

// Memory is an in-process TTL store. Reads drop expired entries; a write
// that grows the store past its cap evicts the oldest-written entry.
type Memory struct {
	mu         sync.Mutex
	entries    map[string]memoryEntry
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
}

// NewMemory creates a memory store holding entries for ttl, capped at
// maxEntries (DefaultMaxEntries when <= 0).
func NewMemory(ttl time.Duration, maxEntries int) *Memory {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Memory{
		entries:    make(map[string]memoryEntry),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if !ok {
		return nil, false
	}
	if m.now().Sub(entry.written) >= m.ttl {
		delete(m.entries, key)
		return nil, false
	}
	return entry.value, true
}

func (m *Memory) Set(_ context.Context, key string, value []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = memoryEntry{value: value, written: m.now()}
	if len(m.entries) <= m.maxEntries {
		return
	}

	var oldestKey string
	var oldest time.Time
	for k, e := range m.entries {
		if oldestKey == "" || e.written.Before(oldest) {
			oldestKey = k
			oldest = e.written
		}
	}
	delete(m.entries, oldestKey)
}

func (m *Memory) Delete(_ context.Context, key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
}

// Len reports the current number of entries, expired or not.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// GetJSON reads key from the store and unmarshals it into dest. A decode
// failure counts as a miss and drops the entry.
func GetJSON(ctx context.Context, s Store, key string, dest interface{}) bool {
	data, ok := s.Get(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(data, dest); err != nil {
		s.Delete(ctx, key)
		return false
	}
	return true
}

// SetJSON marshals value and stores it under key. Unmarshalable values are
// silently not cached.
func SetJSON(ctx context.Context, s Store, key string, value interface{}) {
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	s.Set(ctx, key, data)
}
