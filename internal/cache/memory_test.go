package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryProviderRoundTrip(t *testing.T) {
	p := NewMemoryProvider(4)
	ctx := context.Background()

	if err := p.Set(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	got, err := p.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if string(got) != "v" {
		t.Fatalf("unexpected value: %q", got)
	}

	if err := p.Del(ctx, "k"); err != nil {
		t.Fatalf("del failed: %v", err)
	}
	if _, err := p.Get(ctx, "k"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected miss after delete, got %v", err)
	}
}

func TestMemoryProviderTTL(t *testing.T) {
	p := NewMemoryProvider(4)
	current := time.Date(2025, 11, 10, 10, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return current }

	ctx := context.Background()
	if err := p.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if _, err := p.Get(ctx, "k"); err != nil {
		t.Fatalf("expected hit before expiry, got %v", err)
	}

	current = current.Add(2 * time.Minute)
	if _, err := p.Get(ctx, "k"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected miss after expiry, got %v", err)
	}
}

func TestMemoryProviderEviction(t *testing.T) {
	p := NewMemoryProvider(2)
	ctx := context.Background()

	p.Set(ctx, "a", []byte("1"), 0)
	p.Set(ctx, "b", []byte("2"), 0)
	p.Get(ctx, "a") // refresh a; b becomes least recent
	p.Set(ctx, "c", []byte("3"), 0)

	if _, err := p.Get(ctx, "b"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected least-recently-used key evicted, got %v", err)
	}
	if _, err := p.Get(ctx, "a"); err != nil {
		t.Fatalf("expected refreshed key retained, got %v", err)
	}
}

func TestNoopProviderAlwaysMisses(t *testing.T) {
	var p NoopProvider
	ctx := context.Background()

	if err := p.Set(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if _, err := p.Get(ctx, "k"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected miss, got %v", err)
	}
}
