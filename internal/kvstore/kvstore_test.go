package kvstore

import (
	"context"
	"testing"
	"time"
)

func TestMemory_SetGet(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if err := m.Set(ctx, "otp:alice@example.com", "123456", time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, ok, err := m.Get(ctx, "otp:alice@example.com")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !ok || got != "123456" {
		t.Errorf("Get = (%q, %v), want (%q, true)", got, ok, "123456")
	}
}

func TestMemory_Expiry(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	current := time.Now()
	m.now = func() time.Time { return current }

	if err := m.Set(ctx, "k", "v", 30*time.Second); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	current = current.Add(29 * time.Second)
	if _, ok, _ := m.Get(ctx, "k"); !ok {
		t.Error("key expired before its TTL")
	}

	current = current.Add(2 * time.Second)
	if _, ok, _ := m.Get(ctx, "k"); ok {
		t.Error("key still readable after its TTL")
	}

	// Expired read must have evicted the entry.
	m.mu.Lock()
	_, present := m.entries["k"]
	m.mu.Unlock()
	if present {
		t.Error("expired entry not evicted on read")
	}
}

func TestMemory_Delete(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if err := m.Set(ctx, "k", "v", time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := m.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, ok, _ := m.Get(ctx, "k"); ok {
		t.Error("key readable after Delete")
	}

	// Deleting an absent key is fine.
	if err := m.Delete(ctx, "missing"); err != nil {
		t.Errorf("Delete of absent key returned %v", err)
	}
}

func TestMemory_EvictExpired(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	current := time.Now()
	m.now = func() time.Time { return current }

	_ = m.Set(ctx, "old", "v", time.Second)
	_ = m.Set(ctx, "new", "v", time.Hour)

	current = current.Add(time.Minute)
	m.evictExpired()

	m.mu.Lock()
	_, oldPresent := m.entries["old"]
	_, newPresent := m.entries["new"]
	m.mu.Unlock()

	if oldPresent {
		t.Error("expired entry survived eviction")
	}
	if !newPresent {
		t.Error("live entry was evicted")
	}
}
