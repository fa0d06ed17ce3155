package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/wayfare-ai/wayfare/pkg/config"
	"github.com/wayfare-ai/wayfare/pkg/db"
)

func newTestCache(t *testing.T, ttl time.Duration) *Cache {
	t.Helper()
	conn, err := db.Open(filepath.Join(t.TempDir(), "cache_test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	c, err := New(conn, config.CacheConfig{TTL: ttl, MemoryTTL: time.Minute}, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestHashParams(t *testing.T) {
	h1 := HashParams(map[string]any{"lat": 41.9, "lon": 12.5, "limit": 20})
	h2 := HashParams(map[string]any{"limit": 20, "lon": 12.5, "lat": 41.9})
	h3 := HashParams(map[string]any{"lat": 41.9, "lon": 12.5, "limit": 10})

	if h1 != h2 {
		t.Error("key order must not change the hash")
	}
	if h1 == h3 {
		t.Error("different params should produce different hash")
	}
	if len(h1) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(h1))
	}
}

func TestPutAndGet(t *testing.T) {
	c := newTestCache(t, time.Hour)
	ctx := context.Background()
	params := map[string]any{"lat": 41.9}

	if err := c.Put(ctx, "opentripmap", "radius_search", params, []byte(`{"features":[]}`), 0); err != nil {
		t.Fatal(err)
	}

	data, ok := c.Get(ctx, "opentripmap", "radius_search", params)
	if !ok {
		t.Fatal("expected cache hit")
	}
	if string(data) != `{"features":[]}` {
		t.Errorf("unexpected response: %s", data)
	}

	// Served from SQLite once the memory layer is empty.
	c.mem.Flush()
	data, ok = c.Get(ctx, "opentripmap", "radius_search", params)
	if !ok || string(data) != `{"features":[]}` {
		t.Errorf("expected sqlite hit, got %q %v", data, ok)
	}

	if _, ok := c.Get(ctx, "opentripmap", "other", params); ok {
		t.Error("different endpoint should miss")
	}
}

func TestPutUpserts(t *testing.T) {
	c := newTestCache(t, time.Hour)
	ctx := context.Background()
	params := map[string]any{"q": "rome"}

	_ = c.Put(ctx, "rapidapi_hotels", "locations", params, []byte(`1`), 0)
	_ = c.Put(ctx, "rapidapi_hotels", "locations", params, []byte(`2`), 0)
	c.mem.Flush()

	data, ok := c.Get(ctx, "rapidapi_hotels", "locations", params)
	if !ok || string(data) != `2` {
		t.Errorf("expected upserted value 2, got %q", data)
	}
	stats, err := c.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Entries != 1 {
		t.Errorf("expected 1 entry after upsert, got %d", stats.Entries)
	}
}

func TestExpiredDeletedOnRead(t *testing.T) {
	c := newTestCache(t, time.Hour)
	ctx := context.Background()
	params := map[string]any{"lat": 1}

	_ = c.Put(ctx, "opentripmap", "radius_search", params, []byte(`x`), time.Minute)
	c.mem.Flush()
	c.now = func() time.Time { return time.Now().Add(2 * time.Minute) }

	if _, ok := c.Get(ctx, "opentripmap", "radius_search", params); ok {
		t.Fatal("expected miss for expired entry")
	}
	var n int
	if err := c.db.Get(&n, `SELECT COUNT(*) FROM api_cache`); err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("expired row should be deleted on read, %d remain", n)
	}
}

func TestClearExpiredAndStats(t *testing.T) {
	c := newTestCache(t, time.Hour)
	ctx := context.Background()

	_ = c.Put(ctx, "opentripmap", "radius_search", map[string]any{"a": 1}, []byte(`1`), time.Minute)
	_ = c.Put(ctx, "opentripmap", "radius_search", map[string]any{"a": 2}, []byte(`2`), 3*time.Hour)
	_ = c.Put(ctx, "rapidapi_hotels", "hotels_search", map[string]any{"a": 3}, []byte(`3`), 3*time.Hour)

	c.now = func() time.Time { return time.Now().Add(time.Hour) }

	stats, err := c.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Entries != 3 || len(stats.Providers) != 2 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.Providers[0].Provider != "opentripmap" || stats.Providers[0].Expired != 1 {
		t.Errorf("opentripmap stats = %+v", stats.Providers[0])
	}

	removed, err := c.ClearExpired(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}

	if err := c.Clear(ctx, false); err != nil {
		t.Fatal(err)
	}
	stats, _ = c.Stats(ctx)
	if stats.Entries != 0 {
		t.Errorf("expected empty cache, got %d", stats.Entries)
	}
}

func TestHitMissCounters(t *testing.T) {
	c := newTestCache(t, time.Hour)
	ctx := context.Background()

	c.Get(ctx, "opentripmap", "radius_search", map[string]any{"miss": true})
	_ = c.Put(ctx, "opentripmap", "radius_search", map[string]any{"hit": true}, []byte(`ok`), 0)
	c.Get(ctx, "opentripmap", "radius_search", map[string]any{"hit": true})

	stats, _ := c.Stats(ctx)
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("hits=%d misses=%d, want 1/1", stats.Hits, stats.Misses)
	}
}

func TestSweepLoopStops(t *testing.T) {
	conn, err := db.Open(filepath.Join(t.TempDir(), "sweep.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	c, err := New(conn, config.CacheConfig{SweepInterval: 10 * time.Millisecond}, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	time.Sleep(30 * time.Millisecond)
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	_ = c.Close()
}
