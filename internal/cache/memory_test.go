package cache

import (
	"context"
	"testing"
	"time"
)

func TestMemoryGetSet(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if _, ok := m.Get(ctx, "missing"); ok {
		t.Fatalf("empty cache should miss")
	}

	m.Set(ctx, "k", []byte("v"), time.Minute)
	got, ok := m.Get(ctx, "k")
	if !ok || string(got) != "v" {
		t.Fatalf("expected hit with %q, got %q (ok=%v)", "v", got, ok)
	}
}

func TestMemoryExpiry(t *testing.T) {
	m := NewMemory()
	now := time.Now()
	m.now = func() time.Time { return now }
	ctx := context.Background()

	m.Set(ctx, "k", []byte("v"), time.Minute)
	if _, ok := m.Get(ctx, "k"); !ok {
		t.Fatalf("entry should be live before its ttl")
	}

	now = now.Add(2 * time.Minute)
	if _, ok := m.Get(ctx, "k"); ok {
		t.Fatalf("entry should expire after its ttl")
	}
	// Expired entries are dropped on read.
	if len(m.store) != 0 {
		t.Fatalf("expected lazy eviction, %d entries remain", len(m.store))
	}
}

func TestMemoryOverwrite(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	m.Set(ctx, "k", []byte("old"), time.Minute)
	m.Set(ctx, "k", []byte("new"), time.Minute)
	got, _ := m.Get(ctx, "k")
	if string(got) != "new" {
		t.Fatalf("expected overwrite, got %q", got)
	}
}
