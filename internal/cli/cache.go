package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/citecheck/internal/cache"
	"github.com/ppiankov/citecheck/internal/extract"
)

var (
	clearTier string
	warmLimit int
)

// cacheCmd represents the cache command
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and manage the verification cache",
	Long: `The verification cache has four tiers, consulted in order:
  memory   in-process, bounded, per-entry TTL
  remote   shared redis (when cache.redis.addr is set)
  disk     one file per citation under cache.disk_dir
  durable  SQLite table at cache.db_path, the source for warming`,
}

var cacheGetCmd = &cobra.Command{
	Use:     "get <citation>",
	Short:   "Show the cached record for a citation and the tier that holds it",
	Example: `  citecheck cache get "347 U.S. 483"`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCache(cmd.Context(), func(ctx context.Context, store *cache.Store) error {
			key := extract.NormalizeCitation(args[0])
			record, tier, err := store.Get(ctx, key)
			if errors.Is(err, cache.ErrMiss) {
				return fmt.Errorf("%q is not cached", args[0])
			}
			if err != nil {
				return err
			}

			data, err := yaml.Marshal(record)
			if err != nil {
				return fmt.Errorf("error marshaling record: %w", err)
			}
			fmt.Printf("# key: %s (tier: %s)\n%s", key, tier, data)
			return nil
		})
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear one cache tier or all of them",
	Example: `  citecheck cache clear
  citecheck cache clear --tier disk`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCache(cmd.Context(), func(ctx context.Context, store *cache.Store) error {
			if err := store.Clear(ctx, clearTier); err != nil {
				return fmt.Errorf("clear cache: %w", err)
			}
			fmt.Printf("✓ Cleared cache tier: %s\n", clearTier)
			return nil
		})
	},
}

var cacheWarmCmd = &cobra.Command{
	Use:   "warm",
	Short: "Load the most recently updated durable records into the fast tiers",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCache(cmd.Context(), func(ctx context.Context, store *cache.Store) error {
			start := time.Now()
			n, err := store.Warm(ctx, warmLimit)
			if err != nil {
				return fmt.Errorf("warm cache: %w", err)
			}
			fmt.Printf("✓ Warmed %d records in %v\n", n, time.Since(start).Round(time.Millisecond))
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheGetCmd, cacheClearCmd, cacheWarmCmd)

	cacheClearCmd.Flags().StringVar(&clearTier, "tier", cache.TierAll, "tier to clear (memory, remote, disk, durable, all)")
	cacheWarmCmd.Flags().IntVar(&warmLimit, "limit", 1000, "number of records to load")
}

// withCache opens the configured cache without warming it and runs fn
func withCache(ctx context.Context, fn func(ctx context.Context, store *cache.Store) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !cfg.Cache.Enabled {
		return fmt.Errorf("cache is disabled (cache.enabled=false or --no-cache)")
	}

	s, err := openSessionWith(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer s.Close()

	if verbose {
		fmt.Fprintf(os.Stderr, "Cache tiers: %v\n", s.store.Tiers())
	}
	return fn(ctx, s.store)
}
