package models

import "time"

// APICacheEntry stores an upstream API response.
type APICacheEntry struct {
	Provider     string    `json:"provider" db:"provider"`
	Endpoint     string    `json:"endpoint" db:"endpoint"`
	ParamsHash   string    `json:"params_hash" db:"params_hash"`
	ResponseJSON []byte    `json:"-" db:"response_json"`
	FetchedAt    time.Time `json:"fetched_at" db:"fetched_at"`
	TTLSeconds   int64     `json:"ttl_seconds" db:"ttl_seconds"`
	ExpiresAt    int64     `json:"expires_at" db:"expires_at"`
}

// ProviderCacheStats counts cached entries for one upstream provider.
type ProviderCacheStats struct {
	Provider string `json:"provider" db:"provider"`
	Entries  int64  `json:"entries" db:"entries"`
	Expired  int64  `json:"expired" db:"expired"`
}

// CacheStats reports cache performance metrics.
type CacheStats struct {
	Entries   int64                `json:"entries"`
	Hits      int64                `json:"hits"`
	Misses    int64                `json:"misses"`
	Providers []ProviderCacheStats `json:"providers"`
}
