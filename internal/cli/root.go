package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/citecheck/internal/cache"
	"github.com/ppiankov/citecheck/internal/logging"
	"github.com/ppiankov/citecheck/internal/metrics"
	"github.com/ppiankov/citecheck/internal/model"
	"github.com/ppiankov/citecheck/internal/pipeline"
	"github.com/ppiankov/citecheck/internal/util"
	"github.com/ppiankov/citecheck/internal/verify"
)

// Set at build time with -ldflags "-X github.com/ppiankov/citecheck/internal/cli.version=..."
var version = "0.1.0"

var (
	cfgFile     string
	verbose     bool
	logLevel    string
	logFormat   string
	metricsAddr string
	noCache     bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "citecheck",
	Short: "citecheck - legal citation extraction and verification",
	Long: `citecheck finds legal citations in document text, recovers the case
name and decision date each one is cited with, groups parallel citations,
and verifies every citation against public case-law sources.

Citations no source can confirm are reported as unverified. An unverified
citation is not necessarily fabricated; it is one nobody could vouch for.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command. An interrupt cancels the running command,
// which then reports what it has verified so far.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("citecheck v%s\n", version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default: $HOME/.citecheck/config.yaml)")
	pf.BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	pf.StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error, off)")
	pf.StringVar(&logFormat, "log-format", "", "log format (console, json)")
	pf.StringVar(&metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address (e.g. :9090)")
	pf.BoolVar(&noCache, "no-cache", false, "disable the verification cache")

	// Bind flags to viper
	_ = viper.BindPFlag("output.verbose", pf.Lookup("verbose"))
	_ = viper.BindPFlag("log.level", pf.Lookup("log-level"))
	_ = viper.BindPFlag("log.format", pf.Lookup("log-format"))
	_ = viper.BindPFlag("metrics.addr", pf.Lookup("metrics-addr"))

	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
		} else {
			viper.AddConfigPath(filepath.Join(home, ".citecheck"))
		}
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	bindEnv()
	if err := setDefaults(model.DefaultConfig()); err != nil {
		fmt.Fprintf(os.Stderr, "Error registering config defaults: %v\n", err)
	}

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// bindEnv maps CITECHECK_LOG_LEVEL, CITECHECK_CACHE_REDIS_ADDR, ... onto
// config keys
func bindEnv() {
	viper.SetEnvPrefix("CITECHECK")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}

// setDefaults registers every key of cfg with viper, so env variables reach
// keys the config file does not mention
func setDefaults(cfg *model.Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	var tree map[string]interface{}
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return err
	}
	setDefaultTree("", tree)

	// Keys omitted from YAML output when empty
	for _, key := range []string{
		"http.http_proxy", "http.https_proxy", "http.no_proxy",
		"cache.redis.addr", "cache.redis.password",
		"sources.courtlistener.api_token",
		"metrics.addr",
	} {
		viper.SetDefault(key, "")
	}
	return nil
}

func setDefaultTree(prefix string, tree map[string]interface{}) {
	for k, v := range tree {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if sub, ok := v.(map[string]interface{}); ok {
			setDefaultTree(key, sub)
			continue
		}
		viper.SetDefault(key, v)
	}
}

// loadConfig decodes the effective configuration: flags, env, config file,
// then defaults
func loadConfig() (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if cfg.Sources.CourtListener.APIToken == "" {
		cfg.Sources.CourtListener.APIToken = os.Getenv("COURTLISTENER_API_TOKEN")
	}
	if noCache {
		cfg.Cache.Enabled = false
	}
	cfg.Cache.DiskDir = util.ExpandHome(cfg.Cache.DiskDir)
	cfg.Cache.DBPath = util.ExpandHome(cfg.Cache.DBPath)
	return cfg, nil
}

// session holds what every command shares: config, logger and the cache
type session struct {
	cfg    *model.Config
	logger *zap.Logger
	store  *cache.Store
}

// openSession loads config, builds the logger, opens and warms the cache and
// starts the metrics endpoint when configured
func openSession(ctx context.Context) (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return openSessionWith(ctx, cfg, true)
}

func openSessionWith(ctx context.Context, cfg *model.Config, warm bool) (*session, error) {
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}
	s := &session{cfg: cfg, logger: logger}

	if cfg.Cache.Enabled {
		s.store = cache.Open(ctx, cfg.Cache, logger)
		if warm && cfg.Cache.WarmLimit > 0 {
			if _, err := s.store.Warm(ctx, cfg.Cache.WarmLimit); err != nil && !errors.Is(err, cache.ErrTierUnavailable) {
				logger.Warn("cache warm failed", zap.Error(err))
			}
		}
	}

	if cfg.Metrics.Addr != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Addr, logger); err != nil {
				logger.Warn("metrics endpoint stopped", zap.String("addr", cfg.Metrics.Addr), zap.Error(err))
			}
		}()
	}
	return s, nil
}

// newPipeline builds the document pipeline over the session cache
func (s *session) newPipeline() *pipeline.Pipeline {
	var store verify.Cache
	if s.store != nil {
		store = s.store
	}
	return pipeline.NewPipeline(s.cfg, store, s.logger)
}

// Close closes the cache and flushes the logger
func (s *session) Close() {
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Warn("closing cache", zap.Error(err))
		}
	}
	logging.Sync(s.logger)
}
