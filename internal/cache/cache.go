// Package cache stores verification records in four tiers: in-process
// memory, a shared redis instance, per-key disk snapshots and a durable
// SQLite table.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ppiankov/citecheck/internal/model"
)

var (
	// ErrMiss is returned by a tier that holds no live record for a key
	ErrMiss = errors.New("cache miss")

	// ErrTierUnavailable is returned for operations on a tier that could
	// not be reached
	ErrTierUnavailable = errors.New("cache tier unavailable")
)

// Tier names, in lookup order
const (
	TierMemory  = "memory"
	TierRemote  = "remote"
	TierDisk    = "disk"
	TierDurable = "durable"
)

// Tier is one level of the cache. Each tier keeps its own serialized copy
// of a record, so callers may mutate what Get returns.
type Tier interface {
	Name() string
	Get(ctx context.Context, key string) (model.CacheRecord, error)
	Set(ctx context.Context, key string, record model.CacheRecord) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}

// Entry pairs a key with its record, used for warming
type Entry struct {
	Key    string
	Record model.CacheRecord
}

// HashKey generates a file-safe digest of a cache key
func HashKey(key string) string {
	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:])
}

func encode(record model.CacheRecord) ([]byte, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("marshal record: %w", err)
	}
	return data, nil
}

func decode(data []byte) (model.CacheRecord, error) {
	var record model.CacheRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return model.CacheRecord{}, fmt.Errorf("unmarshal record: %w", err)
	}
	return record, nil
}
