package cache

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ppiankov/citecheck/internal/model"
)

const remoteKeyPrefix = "citecheck:v1:"

// RemoteOptions configures the shared redis tier
type RemoteOptions struct {
	Addr           string
	Password       string
	DB             int
	TTL            time.Duration
	ConnectRetries int
}

// RemoteCache is the shared tier: gzip-compressed JSON in redis with a TTL
type RemoteCache struct {
	client *redis.Client
	ttl    time.Duration
}

// remoteConnectBackoff is replaced in tests to avoid real sleeps
var remoteConnectBackoff = func() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	return b
}

// NewRemoteCache connects to redis, retrying with capped exponential backoff.
// Retries happen only here; later per-request failures are reported to the
// caller without retry. The error wraps ErrTierUnavailable when the server
// never answered.
func NewRemoteCache(ctx context.Context, opts RemoteOptions, logger *zap.Logger) (*RemoteCache, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Addr == "" {
		return nil, fmt.Errorf("%w: no redis address configured", ErrTierUnavailable)
	}

	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	tries := opts.ConnectRetries + 1
	if tries < 1 {
		tries = 1
	}

	_, err := backoff.Retry(ctx, func() (string, error) {
		return client.Ping(ctx).Result()
	},
		backoff.WithBackOff(remoteConnectBackoff()),
		backoff.WithMaxTries(uint(tries)),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.Warn("redis not reachable, retrying",
				zap.String("addr", opts.Addr),
				zap.Duration("next", next),
				zap.Error(err))
		}),
	)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: connect redis %s: %v", ErrTierUnavailable, opts.Addr, err)
	}

	return &RemoteCache{
		client: client,
		ttl:    opts.TTL,
	}, nil
}

// Name returns the tier name
func (c *RemoteCache) Name() string {
	return TierRemote
}

// Get retrieves and decompresses a record
func (c *RemoteCache) Get(ctx context.Context, key string) (model.CacheRecord, error) {
	data, err := c.client.Get(ctx, remoteKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.CacheRecord{}, ErrMiss
	}
	if err != nil {
		return model.CacheRecord{}, fmt.Errorf("redis get: %w", err)
	}

	raw, err := gunzip(data)
	if err != nil {
		return model.CacheRecord{}, err
	}
	return decode(raw)
}

// Set compresses and stores a record with the tier TTL
func (c *RemoteCache) Set(ctx context.Context, key string, record model.CacheRecord) error {
	raw, err := encode(record)
	if err != nil {
		return err
	}
	data, err := gzipBytes(raw)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, remoteKeyPrefix+key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Delete removes a record
func (c *RemoteCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, remoteKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Clear removes every citecheck key, leaving other keys in the database alone
func (c *RemoteCache) Clear(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, remoteKeyPrefix+"*", 500).Iterator()
	var batch []string
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == 500 {
			if err := c.client.Del(ctx, batch...).Err(); err != nil {
				return fmt.Errorf("redis del: %w", err)
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan: %w", err)
	}
	if len(batch) > 0 {
		if err := c.client.Del(ctx, batch...).Err(); err != nil {
			return fmt.Errorf("redis del: %w", err)
		}
	}
	return nil
}

// Close releases the redis connection pool
func (c *RemoteCache) Close() error {
	return c.client.Close()
}

func gzipBytes(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, fmt.Errorf("compress record: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("compress record: %w", err)
	}
	return buf.Bytes(), nil
}

func gunzip(data []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decompress record: %w", err)
	}
	defer zr.Close()

	raw, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("decompress record: %w", err)
	}
	return raw, nil
}
