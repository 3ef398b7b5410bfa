package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ppiankov/citecheck/internal/model"
)

// DiskCache is the local snapshot tier: one JSON file per key
type DiskCache struct {
	dir string
	ttl time.Duration
}

// NewDiskCache creates a disk tier rooted at dir
func NewDiskCache(dir string, ttl time.Duration) *DiskCache {
	return &DiskCache{
		dir: dir,
		ttl: ttl,
	}
}

type diskEntry struct {
	Key       string            `json:"key"`
	Record    model.CacheRecord `json:"record"`
	ExpiresAt time.Time         `json:"expires_at"`
}

// Name returns the tier name
func (c *DiskCache) Name() string {
	return TierDisk
}

// Get retrieves a record from its snapshot file
func (c *DiskCache) Get(_ context.Context, key string) (model.CacheRecord, error) {
	path := c.path(key)

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return model.CacheRecord{}, ErrMiss
		}
		return model.CacheRecord{}, fmt.Errorf("read cache file: %w", err)
	}

	var entry diskEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		_ = os.Remove(path)
		return model.CacheRecord{}, fmt.Errorf("decode cache file: %w", err)
	}

	// Check expiration; a hash collision is treated as a miss
	if (!entry.ExpiresAt.IsZero() && time.Now().After(entry.ExpiresAt)) || entry.Key != key {
		_ = os.Remove(path)
		return model.CacheRecord{}, ErrMiss
	}

	return entry.Record, nil
}

// Set writes a record snapshot
func (c *DiskCache) Set(_ context.Context, key string, record model.CacheRecord) error {
	entry := diskEntry{
		Key:    key,
		Record: record,
	}
	if c.ttl > 0 {
		entry.ExpiresAt = time.Now().Add(c.ttl)
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}

	// Ensure directory exists
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	// Write to a temp file and rename so readers never see a partial snapshot
	tmp, err := os.CreateTemp(c.dir, ".snapshot-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close cache file: %w", err)
	}
	if err := os.Rename(tmp.Name(), c.path(key)); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("rename cache file: %w", err)
	}

	return nil
}

// Delete removes a record snapshot
func (c *DiskCache) Delete(_ context.Context, key string) error {
	if err := os.Remove(c.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove cache file: %w", err)
	}
	return nil
}

// Clear removes all snapshot files
func (c *DiskCache) Clear(_ context.Context) error {
	matches, err := filepath.Glob(filepath.Join(c.dir, "*.json"))
	if err != nil {
		return fmt.Errorf("list cache files: %w", err)
	}
	for _, path := range matches {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove cache file: %w", err)
		}
	}
	return nil
}

// path generates the file path for a cache key
func (c *DiskCache) path(key string) string {
	return filepath.Join(c.dir, HashKey(key)+".json")
}
