package cache

import (
	"context"
	"sync"
	"time"
)

// memoryEntry stores a value with its expiry deadline.
type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// Memory is an in-process Cache for tests and single-node deployments.
// A background goroutine periodically removes expired entries.
//
// Memory is safe for concurrent use by multiple goroutines.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	done    chan struct{}
	closed  bool
}

// janitorInterval is how often expired entries are swept.
const janitorInterval = time.Minute

// NewMemory creates an in-process cache and starts its janitor.
func NewMemory() *Memory {
	m := &Memory{
		entries: make(map[string]memoryEntry),
		done:    make(chan struct{}),
	}
	go m.janitor()
	return m
}

// Get returns the entry and true, or nil and false when absent or expired.
func (m *Memory) Get(_ context.Context, family Family, userID string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.entries[Key(family, userID)]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false, nil
	}
	// Copy so callers cannot mutate the cached snapshot.
	value := make([]byte, len(entry.value))
	copy(value, entry.value)
	return value, true, nil
}

// Set stores a value with the given TTL, overwriting any present entry.
func (m *Memory) Set(_ context.Context, family Family, userID string, value []byte, ttl time.Duration) error {
	stored := make([]byte, len(value))
	copy(stored, value)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[Key(family, userID)] = memoryEntry{
		value:     stored,
		expiresAt: time.Now().Add(ttl),
	}
	return nil
}

// Invalidate deletes the entry. Deleting an absent key is a no-op.
func (m *Memory) Invalidate(_ context.Context, family Family, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, Key(family, userID))
	return nil
}

// Close stops the janitor goroutine. Safe to call more than once.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.done)
	}
	return nil
}

// janitor sweeps expired entries until Close.
func (m *Memory) janitor() {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			now := time.Now()
			m.mu.Lock()
			for key, entry := range m.entries {
				if now.After(entry.expiresAt) {
					delete(m.entries, key)
				}
			}
			m.mu.Unlock()
		}
	}
}
