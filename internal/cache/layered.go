package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/citecheck/internal/metrics"
	"github.com/ppiankov/citecheck/internal/model"
)

// TierAll selects every tier in Clear
const TierAll = "all"

// StoreOptions lists the tiers a Store is built from. Nil tiers are skipped.
type StoreOptions struct {
	Memory  *MemoryCache
	Remote  *RemoteCache
	Disk    *DiskCache
	Durable *DurableCache
}

// Store is the layered cache: memory, remote, disk, durable.
// Get back-fills every faster tier on a hit; Set writes through all tiers.
// A failing tier is logged and skipped.
type Store struct {
	tiers   []Tier
	remote  *RemoteCache
	memory  *MemoryCache
	durable *DurableCache
	logger  *zap.Logger
}

// NewStore creates a store from already-opened tiers
func NewStore(opts StoreOptions, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		remote:  opts.Remote,
		memory:  opts.Memory,
		durable: opts.Durable,
		logger:  logger.Named("cache"),
	}
	// Fixed lookup order; typed nils must not become non-nil interfaces
	if opts.Memory != nil {
		s.tiers = append(s.tiers, opts.Memory)
	}
	if opts.Remote != nil {
		s.tiers = append(s.tiers, opts.Remote)
	}
	if opts.Disk != nil {
		s.tiers = append(s.tiers, opts.Disk)
	}
	if opts.Durable != nil {
		s.tiers = append(s.tiers, opts.Durable)
	}
	return s
}

// Open builds a store from configuration. Paths must already be expanded.
// An unreachable redis or an unopenable database is logged and left out;
// the memory tier is always present.
func Open(ctx context.Context, cfg model.CacheConfig, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := StoreOptions{
		Memory: NewMemoryCache(cfg.MemoryTTL, cfg.MemoryCapacity),
	}

	if cfg.Redis.Addr != "" {
		remote, err := NewRemoteCache(ctx, RemoteOptions{
			Addr:           cfg.Redis.Addr,
			Password:       cfg.Redis.Password,
			DB:             cfg.Redis.DB,
			TTL:            cfg.Redis.TTL,
			ConnectRetries: cfg.Redis.ConnectRetries,
		}, logger)
		if err != nil {
			logger.Warn("remote cache tier disabled", zap.String("tier", TierRemote), zap.Error(err))
		} else {
			opts.Remote = remote
		}
	}

	if cfg.DiskDir != "" {
		opts.Disk = NewDiskCache(cfg.DiskDir, cfg.DiskTTL)
	}

	if cfg.DBPath != "" {
		durable, err := NewDurableCache(cfg.DBPath)
		if err != nil {
			logger.Warn("durable cache tier disabled", zap.String("tier", TierDurable), zap.Error(err))
		} else {
			opts.Durable = durable
		}
	}

	return NewStore(opts, logger)
}

// Tiers returns the names of the active tiers in lookup order
func (s *Store) Tiers() []string {
	names := make([]string, len(s.tiers))
	for i, t := range s.tiers {
		names[i] = t.Name()
	}
	return names
}

// Get returns the record for key and the name of the tier that held it.
// Every faster tier is back-filled on a hit. ErrMiss means no tier had it.
func (s *Store) Get(ctx context.Context, key string) (model.CacheRecord, string, error) {
	for i, tier := range s.tiers {
		record, err := tier.Get(ctx, key)
		if errors.Is(err, ErrMiss) {
			continue
		}
		if err != nil {
			s.tierFailed(tier.Name(), "get", key, err)
			continue
		}

		metrics.CacheHitsTotal.WithLabelValues(tier.Name()).Inc()
		for _, faster := range s.tiers[:i] {
			if err := faster.Set(ctx, key, record); err != nil {
				s.tierFailed(faster.Name(), "backfill", key, err)
			}
		}
		return record, tier.Name(), nil
	}

	metrics.CacheMissesTotal.Inc()
	return model.CacheRecord{}, "", ErrMiss
}

// Set writes record to every tier. It fails only if every tier failed.
func (s *Store) Set(ctx context.Context, key string, record model.CacheRecord) error {
	var errs []error
	for _, tier := range s.tiers {
		if err := tier.Set(ctx, key, record); err != nil {
			s.tierFailed(tier.Name(), "set", key, err)
			errs = append(errs, fmt.Errorf("%s: %w", tier.Name(), err))
		}
	}
	if len(s.tiers) > 0 && len(errs) == len(s.tiers) {
		return fmt.Errorf("all cache tiers failed: %w", errors.Join(errs...))
	}
	return nil
}

// Warm loads the limit most recently updated durable records into the
// remote tier, or into memory when there is no remote tier
func (s *Store) Warm(ctx context.Context, limit int) (int, error) {
	if s.durable == nil {
		return 0, fmt.Errorf("warm: durable tier: %w", ErrTierUnavailable)
	}
	if limit <= 0 {
		return 0, nil
	}

	var target Tier
	switch {
	case s.remote != nil:
		target = s.remote
	case s.memory != nil:
		target = s.memory
	default:
		return 0, fmt.Errorf("warm: no target tier: %w", ErrTierUnavailable)
	}

	start := time.Now()
	entries, err := s.durable.Recent(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("warm: %w", err)
	}

	loaded := 0
	for _, e := range entries {
		if err := target.Set(ctx, e.Key, e.Record); err != nil {
			s.tierFailed(target.Name(), "warm", e.Key, err)
			continue
		}
		loaded++
	}

	s.logger.Info("cache warmed",
		zap.String("tier", target.Name()),
		zap.Int("records", loaded),
		zap.Duration("took", time.Since(start)))
	return loaded, nil
}

// Clear empties one tier by name, or every tier for TierAll or ""
func (s *Store) Clear(ctx context.Context, tier string) error {
	if tier == "" {
		tier = TierAll
	}
	switch tier {
	case TierAll, TierMemory, TierRemote, TierDisk, TierDurable:
	default:
		return fmt.Errorf("unknown cache tier %q", tier)
	}

	found := false
	var errs []error
	for _, t := range s.tiers {
		if tier != TierAll && t.Name() != tier {
			continue
		}
		found = true
		if err := t.Clear(ctx); err != nil {
			s.tierFailed(t.Name(), "clear", "", err)
			errs = append(errs, fmt.Errorf("%s: %w", t.Name(), err))
		}
	}
	if !found && tier != TierAll {
		return fmt.Errorf("clear %s: %w", tier, ErrTierUnavailable)
	}
	return errors.Join(errs...)
}

// Close releases the remote connection pool and the database
func (s *Store) Close() error {
	var errs []error
	if s.remote != nil {
		if err := s.remote.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close remote: %w", err))
		}
	}
	if s.durable != nil {
		if err := s.durable.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close durable: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (s *Store) tierFailed(tier, op, key string, err error) {
	metrics.CacheErrorsTotal.WithLabelValues(tier, op).Inc()
	s.logger.Warn("cache tier failed",
		zap.String("tier", tier),
		zap.String("op", op),
		zap.String("citation", key),
		zap.Error(err))
}
