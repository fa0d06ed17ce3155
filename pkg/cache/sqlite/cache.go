// Package sqlite caches upstream provider responses in SQLite with an
// in-memory layer in front.
package sqlite

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jmoiron/sqlx"
	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/wayfare-ai/wayfare/pkg/config"
	"github.com/wayfare-ai/wayfare/pkg/db"
	"github.com/wayfare-ai/wayfare/pkg/metrics"
	"github.com/wayfare-ai/wayfare/pkg/models"
)

// Cache is an exact-match upstream response cache keyed by provider,
// endpoint and a hash of the request parameters.
type Cache struct {
	db        *sqlx.DB
	ttl       time.Duration
	memTTL    time.Duration
	mem       *gocache.Cache
	logger    *zap.Logger
	now       func() time.Time
	hits      atomic.Int64
	misses    atomic.Int64
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

const createCacheTable = `
CREATE TABLE IF NOT EXISTS api_cache (
	provider TEXT NOT NULL,
	endpoint TEXT NOT NULL,
	params_hash TEXT NOT NULL,
	response_json BLOB NOT NULL,
	fetched_at DATETIME NOT NULL,
	ttl_seconds INTEGER NOT NULL,
	expires_at INTEGER NOT NULL,
	PRIMARY KEY (provider, endpoint, params_hash)
);
CREATE INDEX IF NOT EXISTS idx_api_cache_expires ON api_cache(expires_at);
`

// New creates a Cache on conn. When cfg.SweepInterval is positive a
// background loop deletes expired rows until Close is called.
func New(conn *sqlx.DB, cfg config.CacheConfig, logger *zap.Logger) (*Cache, error) {
	if err := db.Migrate(conn, createCacheTable); err != nil {
		return nil, fmt.Errorf("migrate cache db: %w", err)
	}

	if logger == nil {
		logger = zap.NewNop()
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	memTTL := cfg.MemoryTTL
	if memTTL <= 0 {
		memTTL = 5 * time.Minute
	}

	c := &Cache{
		db:     conn,
		ttl:    ttl,
		memTTL: memTTL,
		mem:    gocache.New(memTTL, 2*memTTL),
		logger: logger,
		now:    time.Now,
		done:   make(chan struct{}),
	}

	if cfg.SweepInterval > 0 {
		c.wg.Add(1)
		go c.sweepLoop(cfg.SweepInterval)
	}
	return c, nil
}

// TTL returns the default entry lifetime.
func (c *Cache) TTL() time.Duration { return c.ttl }

// HashParams computes a SHA-256 hash of the canonical JSON encoding of params.
// encoding/json writes map keys in sorted order.
func HashParams(params map[string]any) string {
	data, _ := json.Marshal(params)
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%x", sum)
}

func memKey(provider, endpoint, hash string) string {
	return provider + "|" + endpoint + "|" + hash
}

// Get returns a cached response body. Expired rows are deleted on read.
func (c *Cache) Get(ctx context.Context, provider, endpoint string, params map[string]any) ([]byte, bool) {
	hash := HashParams(params)
	key := memKey(provider, endpoint, hash)

	if v, ok := c.mem.Get(key); ok {
		c.hit(provider)
		return v.([]byte), true
	}

	var row models.APICacheEntry
	err := c.db.GetContext(ctx, &row,
		`SELECT provider, endpoint, params_hash, response_json, fetched_at, ttl_seconds, expires_at
		 FROM api_cache WHERE provider = ? AND endpoint = ? AND params_hash = ?`,
		provider, endpoint, hash,
	)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			c.logger.Warn("api cache read failed", zap.String("provider", provider), zap.Error(err))
		}
		c.miss(provider)
		return nil, false
	}

	now := c.now().Unix()
	if now >= row.ExpiresAt {
		if _, err := c.db.ExecContext(ctx,
			`DELETE FROM api_cache WHERE provider = ? AND endpoint = ? AND params_hash = ?`,
			provider, endpoint, hash,
		); err != nil {
			c.logger.Warn("api cache delete failed", zap.String("provider", provider), zap.Error(err))
		}
		c.miss(provider)
		return nil, false
	}

	c.mem.Set(key, row.ResponseJSON, min(c.memTTL, time.Duration(row.ExpiresAt-now)*time.Second))
	c.hit(provider)
	return row.ResponseJSON, true
}

// Put stores a response. A non-positive ttl uses the default.
func (c *Cache) Put(ctx context.Context, provider, endpoint string, params map[string]any, body []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.ttl
	}
	hash := HashParams(params)
	now := c.now().UTC()

	_, err := c.db.ExecContext(ctx,
		`INSERT INTO api_cache (provider, endpoint, params_hash, response_json, fetched_at, ttl_seconds, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(provider, endpoint, params_hash) DO UPDATE SET
			response_json = excluded.response_json,
			fetched_at = excluded.fetched_at,
			ttl_seconds = excluded.ttl_seconds,
			expires_at = excluded.expires_at`,
		provider, endpoint, hash, body, now, int64(ttl.Seconds()), now.Add(ttl).Unix(),
	)
	if err != nil {
		return fmt.Errorf("cache put: %w", err)
	}
	c.mem.Set(memKey(provider, endpoint, hash), body, min(c.memTTL, ttl))
	return nil
}

// ClearExpired deletes expired rows and returns how many were removed.
func (c *Cache) ClearExpired(ctx context.Context) (int64, error) {
	res, err := c.db.ExecContext(ctx, `DELETE FROM api_cache WHERE expires_at <= ?`, c.now().Unix())
	if err != nil {
		return 0, fmt.Errorf("cache clear expired: %w", err)
	}
	c.mem.DeleteExpired()
	return res.RowsAffected()
}

// Clear removes cache entries. If expiredOnly is true, only expired entries are removed.
func (c *Cache) Clear(ctx context.Context, expiredOnly bool) error {
	if expiredOnly {
		_, err := c.ClearExpired(ctx)
		return err
	}
	if _, err := c.db.ExecContext(ctx, `DELETE FROM api_cache`); err != nil {
		return fmt.Errorf("cache clear: %w", err)
	}
	c.mem.Flush()
	return nil
}

// Stats returns cache performance metrics and per-provider entry counts.
func (c *Cache) Stats(ctx context.Context) (models.CacheStats, error) {
	var providers []models.ProviderCacheStats
	err := c.db.SelectContext(ctx, &providers,
		`SELECT provider, COUNT(*) AS entries,
			COALESCE(SUM(CASE WHEN expires_at <= ? THEN 1 ELSE 0 END), 0) AS expired
		 FROM api_cache GROUP BY provider ORDER BY provider`,
		c.now().Unix(),
	)
	if err != nil {
		return models.CacheStats{}, fmt.Errorf("cache stats: %w", err)
	}
	var total int64
	for _, p := range providers {
		total += p.Entries
	}
	return models.CacheStats{
		Entries:   total,
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Providers: providers,
	}, nil
}

// Close stops the sweep goroutine. The database is owned by the caller.
func (c *Cache) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		c.wg.Wait()
	})
	return nil
}

func (c *Cache) sweepLoop(interval time.Duration) {
	defer c.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			n, err := c.ClearExpired(context.Background())
			if err != nil {
				c.logger.Warn("api cache sweep failed", zap.Error(err))
				continue
			}
			if n > 0 {
				c.logger.Debug("api cache swept", zap.Int64("removed", n))
			}
		}
	}
}

func (c *Cache) hit(provider string) {
	c.hits.Add(1)
	metrics.APICacheRequests.WithLabelValues(provider, "hit").Inc()
}

func (c *Cache) miss(provider string) {
	c.misses.Add(1)
	metrics.APICacheRequests.WithLabelValues(provider, "miss").Inc()
}
