package cache

import (
	"context"
	"testing"
	"time"

	"chatrelay/api/internal/store"
	"github.com/alicebob/miniredis/v2"
)

func setupTestCache(t *testing.T) (*RecentCache, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	recent, err := NewRecentCache("redis://"+s.Addr(), time.Minute)
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}
	return recent, s
}

func TestNewRecentCache(t *testing.T) {
	recent, s := setupTestCache(t)
	defer recent.Close()
	defer s.Close()

	if err := recent.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestSetAndGetLatest(t *testing.T) {
	recent, s := setupTestCache(t)
	defer recent.Close()
	defer s.Close()

	ctx := context.Background()
	messages := []store.Message{
		{User: "alice", Message: "hi", Sent: 1000, Channel: "general"},
		{User: "bob", Message: "hey", Sent: 2000, Channel: "general"},
	}

	if err := recent.SetLatest(ctx, "general", messages); err != nil {
		t.Fatalf("SetLatest failed: %v", err)
	}

	cached, ok := recent.GetLatest(ctx, "general")
	if !ok {
		t.Fatal("expected a cache hit")
	}
	if len(cached) != 2 || cached[0].User != "alice" || cached[1].Sent != 2000 {
		t.Fatalf("cached page does not match: %+v", cached)
	}
}

func TestGetLatestMiss(t *testing.T) {
	recent, s := setupTestCache(t)
	defer recent.Close()
	defer s.Close()

	if _, ok := recent.GetLatest(context.Background(), "nothing-here"); ok {
		t.Fatal("expected a miss for an unknown channel")
	}
}

func TestInvalidateDropsChannel(t *testing.T) {
	recent, s := setupTestCache(t)
	defer recent.Close()
	defer s.Close()

	ctx := context.Background()
	if err := recent.SetLatest(ctx, "general", []store.Message{{User: "a", Sent: 1}}); err != nil {
		t.Fatalf("SetLatest general failed: %v", err)
	}
	if err := recent.SetLatest(ctx, "random", []store.Message{{User: "b", Sent: 2}}); err != nil {
		t.Fatalf("SetLatest random failed: %v", err)
	}

	if err := recent.Invalidate(ctx, "general"); err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}

	if _, ok := recent.GetLatest(ctx, "general"); ok {
		t.Fatal("expected invalidated channel to miss")
	}
	if _, ok := recent.GetLatest(ctx, "random"); !ok {
		t.Fatal("expected untouched channel to still hit")
	}
}

func TestEntriesExpire(t *testing.T) {
	s := miniredis.RunT(t)
	defer s.Close()
	recent, err := NewRecentCache("redis://"+s.Addr(), time.Second)
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}
	defer recent.Close()

	ctx := context.Background()
	if err := recent.SetLatest(ctx, "general", []store.Message{{User: "a", Sent: 1}}); err != nil {
		t.Fatalf("SetLatest failed: %v", err)
	}

	s.FastForward(2 * time.Second)

	if _, ok := recent.GetLatest(ctx, "general"); ok {
		t.Fatal("expected entry to have expired")
	}
}
