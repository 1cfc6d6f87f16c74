package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func TestNew_WithoutURLReturnsNoCache(t *testing.T) {
	c, client := New(context.Background(), "", nil)
	if client != nil {
		t.Fatalf("expected no redis client")
	}
	if _, ok := c.(NoCache); !ok {
		t.Fatalf("expected NoCache, got %T", c)
	}
	if err := c.Set(context.Background(), "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, hit, err := c.Get(context.Background(), "k"); err != nil || hit {
		t.Fatalf("expected miss without error, got hit=%v err=%v", hit, err)
	}
}

func TestNew_UnreachableRedisFallsBack(t *testing.T) {
	c, client := New(context.Background(), "redis://127.0.0.1:1/0", nil)
	if client != nil {
		t.Fatalf("expected no redis client")
	}
	if _, ok := c.(NoCache); !ok {
		t.Fatalf("expected NoCache fallback, got %T", c)
	}
}

func TestRedisCache_GetSetExpire(t *testing.T) {
	mr := miniredis.RunT(t)
	c, client := New(context.Background(), "redis://"+mr.Addr()+"/0", nil)
	if client == nil {
		t.Fatalf("expected redis client")
	}
	defer client.Close()
	ctx := context.Background()

	if _, hit, err := c.Get(ctx, "leaderboard:global"); err != nil || hit {
		t.Fatalf("expected initial miss, got hit=%v err=%v", hit, err)
	}
	if err := c.Set(ctx, "leaderboard:global", []byte(`[1]`), 300*time.Second); err != nil {
		t.Fatalf("set: %v", err)
	}
	val, hit, err := c.Get(ctx, "leaderboard:global")
	if err != nil || !hit || string(val) != `[1]` {
		t.Fatalf("expected hit with payload, got %q hit=%v err=%v", val, hit, err)
	}

	mr.FastForward(301 * time.Second)
	if _, hit, _ := c.Get(ctx, "leaderboard:global"); hit {
		t.Fatalf("expected miss after ttl")
	}
}

func TestRedisCache_DeletePrefix(t *testing.T) {
	mr := miniredis.RunT(t)
	c, client := New(context.Background(), "redis://"+mr.Addr()+"/0", nil)
	if client == nil {
		t.Fatalf("expected redis client")
	}
	defer client.Close()
	ctx := context.Background()

	for _, key := range []string{"leaderboard:global", "leaderboard:weekly", "leaderboard:user:7:rank", "other"} {
		if err := c.Set(ctx, key, []byte("x"), time.Minute); err != nil {
			t.Fatalf("set %s: %v", key, err)
		}
	}
	if err := c.DeletePrefix(ctx, "leaderboard:"); err != nil {
		t.Fatalf("delete prefix: %v", err)
	}
	for _, key := range []string{"leaderboard:global", "leaderboard:weekly", "leaderboard:user:7:rank"} {
		if mr.Exists(key) {
			t.Fatalf("expected %s to be deleted", key)
		}
	}
	if !mr.Exists("other") {
		t.Fatalf("expected unrelated key to survive")
	}
}

func TestMemoryCache_Expiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c := NewMemoryCache(func() time.Time { return now })
	ctx := context.Background()

	if err := c.Set(ctx, "leaderboard:user:1:rank", []byte("r"), 60*time.Second); err != nil {
		t.Fatalf("set: %v", err)
	}
	now = now.Add(59 * time.Second)
	if _, hit, _ := c.Get(ctx, "leaderboard:user:1:rank"); !hit {
		t.Fatalf("expected hit before ttl")
	}
	now = now.Add(time.Second)
	if _, hit, _ := c.Get(ctx, "leaderboard:user:1:rank"); hit {
		t.Fatalf("expected miss at ttl")
	}
}

func TestMemoryCache_DeletePrefix(t *testing.T) {
	c := NewMemoryCache(nil)
	ctx := context.Background()
	_ = c.Set(ctx, "leaderboard:global", []byte("g"), 0)
	_ = c.Set(ctx, "session:1", []byte("s"), 0)

	if err := c.DeletePrefix(ctx, "leaderboard:"); err != nil {
		t.Fatalf("delete prefix: %v", err)
	}
	if _, hit, _ := c.Get(ctx, "leaderboard:global"); hit {
		t.Fatalf("expected prefix key removed")
	}
	if _, hit, _ := c.Get(ctx, "session:1"); !hit {
		t.Fatalf("expected other key kept")
	}
}

func TestNew_MemoryURLSelectsMemoryCache(t *testing.T) {
	c, client := New(context.Background(), " Memory:// ", nil)
	if client != nil {
		t.Fatalf("expected no redis client")
	}
	if _, ok := c.(*MemoryCache); !ok {
		t.Fatalf("expected *MemoryCache, got %T", c)
	}
	ctx := context.Background()
	if err := c.Set(ctx, "leaderboard:global", []byte(`[1]`), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	if got, hit, err := c.Get(ctx, "leaderboard:global"); err != nil || !hit || string(got) != `[1]` {
		t.Fatalf("expected hit, got %q hit=%v err=%v", got, hit, err)
	}
}
