package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"time"

	"github.com/ppiankov/cardpricer/internal/model"
)

// Cache stores downloaded card databases keyed by source URL
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// CacheKey generates a cache key from a source URL
func CacheKey(url string) string {
	hash := sha256.Sum256([]byte(url))
	return "cardpricer:v1:" + hex.EncodeToString(hash[:])
}

// New builds the cache described by cfg, nil when caching is disabled
func New(cfg model.CacheConfig) Cache {
	if !cfg.Enabled {
		return nil
	}
	if cfg.Dir == "" {
		return NewMemoryCache(cfg.MemoryTTL, 10*time.Minute)
	}
	return NewLayeredCache(cfg.MemoryTTL, cfg.Dir, cfg.DiskTTL)
}

// DefaultDir returns the disk cache directory under the user cache dir
func DefaultDir(userCacheDir string) string {
	return filepath.Join(userCacheDir, "cardpricer")
}
