package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ppiankov/readmecheck/internal/model"
)

const keyPrefix = "readmecheck:v1:"

// Cache stores opaque values by key
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// Key derives a cache key from a namespace and a raw value such as a URL
func Key(namespace, raw string) string {
	hash := sha256.Sum256([]byte(raw))
	return keyPrefix + namespace + ":" + hex.EncodeToString(hash[:])
}

// New builds the cache described by cfg. A disabled cache yields a memory-only
// cache so callers never need a nil check. A relative Dir is placed under the
// user cache directory.
func New(cfg model.CacheConfig) (Cache, error) {
	memoryTTL := cfg.MemoryTTL
	if memoryTTL <= 0 {
		memoryTTL = 10 * time.Minute
	}
	if !cfg.Enabled || cfg.Dir == "" {
		return NewMemoryCache(memoryTTL, memoryTTL), nil
	}

	dir := cfg.Dir
	if !filepath.IsAbs(dir) {
		base, err := os.UserCacheDir()
		if err != nil {
			return nil, fmt.Errorf("resolve cache dir: %w", err)
		}
		dir = filepath.Join(base, dir)
	}

	diskTTL := cfg.DiskTTL
	if diskTTL <= 0 {
		diskTTL = 24 * time.Hour
	}
	return NewLayeredCache(memoryTTL, dir, diskTTL), nil
}
