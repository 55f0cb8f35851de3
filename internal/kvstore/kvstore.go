// Package kvstore is the expiring key-value contract used by
// collaborator services for short-lived state such as verification
// codes. The ledger core never depends on it; it exists so that state
// lives behind an explicitly-owned store with TTL eviction instead of
// a process-wide map.
package kvstore

import (
	"context"
	"sync"
	"time"
)

// Store is an expiring key-value store. Entries vanish after their TTL
// whether or not anything reads them.
type Store interface {
	// Set writes value under key with the given time-to-live.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Get returns the value and whether the key is present and
	// unexpired.
	Get(ctx context.Context, key string) (string, bool, error)

	// Delete removes a key; deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}

type entry struct {
	value     string
	expiresAt time.Time
}

// Memory is an in-process Store with lazy eviction on read plus a
// periodic janitor. Suitable for a single instance; multi-instance
// deployments put a shared store behind the same interface.
type Memory struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// Set implements Store.
func (m *Memory) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = entry{value: value, expiresAt: m.now().Add(ttl)}
	return nil
}

// Get implements Store, evicting the key on the spot when expired.
func (m *Memory) Get(ctx context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return "", false, nil
	}
	if !m.now().Before(e.expiresAt) {
		delete(m.entries, key)
		return "", false, nil
	}
	return e.value, true, nil
}

// Delete implements Store.
func (m *Memory) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

// Janitor evicts expired entries every interval until ctx is done.
// Lazy eviction already keeps reads correct; this bounds memory for
// keys nobody reads again.
func (m *Memory) Janitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.evictExpired()
		}
	}
}

func (m *Memory) evictExpired() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for k, e := range m.entries {
		if !now.Before(e.expiresAt) {
			delete(m.entries, k)
		}
	}
}
