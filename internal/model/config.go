package model

import "time"

// Config is the complete citecheck configuration
type Config struct {
	HTTP        HTTPConfig        `yaml:"http" mapstructure:"http"`
	Concurrency ConcurrencyConfig `yaml:"concurrency" mapstructure:"concurrency"`
	RateLimit   RateLimitConfig   `yaml:"rate_limit" mapstructure:"rate_limit"`
	Cache       CacheConfig       `yaml:"cache" mapstructure:"cache"`
	Sources     SourcesConfig     `yaml:"sources" mapstructure:"sources"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
	Metrics     MetricsConfig     `yaml:"metrics" mapstructure:"metrics"`
	Output      OutputConfig      `yaml:"output" mapstructure:"output"`
}

// HTTPConfig controls outbound requests to verification sources
type HTTPConfig struct {
	Timeout      time.Duration `yaml:"timeout" mapstructure:"timeout"` // Per request
	UserAgent    string        `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	HTTPProxy    string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy   string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy      string        `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// ConcurrencyConfig bounds parallel work
type ConcurrencyConfig struct {
	VerifyWorkers   int `yaml:"verify_workers" mapstructure:"verify_workers"`     // Citations verified at once per document
	DocumentWorkers int `yaml:"document_workers" mapstructure:"document_workers"` // Documents processed at once in batch mode
}

// RateLimitConfig sets the minimum delay between requests to one host
type RateLimitConfig struct {
	MinDelay time.Duration `yaml:"min_delay" mapstructure:"min_delay"`
	PerHost  []HostDelay   `yaml:"per_host,omitempty" mapstructure:"per_host"`
}

// HostDelay overrides the minimum delay for one host. Kept as a list since
// host names contain the config key delimiter.
type HostDelay struct {
	Host  string        `yaml:"host" mapstructure:"host"`
	Delay time.Duration `yaml:"delay" mapstructure:"delay"`
}

// CacheConfig configures the four cache tiers
type CacheConfig struct {
	Enabled        bool          `yaml:"enabled" mapstructure:"enabled"`
	MemoryTTL      time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	MemoryCapacity int           `yaml:"memory_capacity" mapstructure:"memory_capacity"`
	Redis          RedisConfig   `yaml:"redis" mapstructure:"redis"`
	DiskDir        string        `yaml:"disk_dir" mapstructure:"disk_dir"`
	DiskTTL        time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
	DBPath         string        `yaml:"db_path" mapstructure:"db_path"`
	WarmLimit      int           `yaml:"warm_limit" mapstructure:"warm_limit"`
}

// RedisConfig configures the shared remote tier. Empty Addr disables it.
type RedisConfig struct {
	Addr           string        `yaml:"addr" mapstructure:"addr"`
	Password       string        `yaml:"password,omitempty" mapstructure:"password"`
	DB             int           `yaml:"db" mapstructure:"db"`
	TTL            time.Duration `yaml:"ttl" mapstructure:"ttl"`
	ConnectRetries int           `yaml:"connect_retries" mapstructure:"connect_retries"`
}

// SourcesConfig configures the verification cascade sources
type SourcesConfig struct {
	StageTimeout  time.Duration       `yaml:"stage_timeout" mapstructure:"stage_timeout"`
	Landmarks     bool                `yaml:"landmarks" mapstructure:"landmarks"`
	CourtListener CourtListenerConfig `yaml:"courtlistener" mapstructure:"courtlistener"`
	WebSearch     WebSearchConfig     `yaml:"web_search" mapstructure:"web_search"`
}

// CourtListenerConfig configures the primary lookup and search service
type CourtListenerConfig struct {
	Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`
	BaseURL  string `yaml:"base_url" mapstructure:"base_url"`
	APIToken string `yaml:"api_token,omitempty" mapstructure:"api_token"`
}

// WebSearchConfig configures the legal web search fallbacks
type WebSearchConfig struct {
	Enabled      bool     `yaml:"enabled" mapstructure:"enabled"`
	Endpoint     string   `yaml:"endpoint" mapstructure:"endpoint"`
	Sites        []string `yaml:"sites" mapstructure:"sites"`
	ConfirmPages bool     `yaml:"confirm_pages" mapstructure:"confirm_pages"`
}

// LogConfig configures zap
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`   // debug, info, warn, error, off
	Format string `yaml:"format" mapstructure:"format"` // json, console
}

// MetricsConfig configures the prometheus endpoint. Empty Addr disables it.
type MetricsConfig struct {
	Addr string `yaml:"addr,omitempty" mapstructure:"addr"`
}

// OutputConfig configures report rendering
type OutputConfig struct {
	Verbose bool `yaml:"verbose" mapstructure:"verbose"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Timeout:      15 * time.Second,
			UserAgent:    "citecheck/0.1 (+https://github.com/ppiankov/citecheck)",
			MaxBodyBytes: 2_000_000,
		},
		Concurrency: ConcurrencyConfig{
			VerifyWorkers:   4,
			DocumentWorkers: 2,
		},
		RateLimit: RateLimitConfig{
			MinDelay: 500 * time.Millisecond,
			PerHost: []HostDelay{
				{Host: "html.duckduckgo.com", Delay: 2 * time.Second},
			},
		},
		Cache: CacheConfig{
			Enabled:        true,
			MemoryTTL:      1 * time.Hour,
			MemoryCapacity: 10_000,
			Redis: RedisConfig{
				TTL:            7 * 24 * time.Hour,
				ConnectRetries: 3,
			},
			DiskDir:   "~/.citecheck/cache",
			DiskTTL:   30 * 24 * time.Hour,
			DBPath:    "~/.citecheck/citations.db",
			WarmLimit: 1000,
		},
		Sources: SourcesConfig{
			StageTimeout: 20 * time.Second,
			Landmarks:    true,
			CourtListener: CourtListenerConfig{
				Enabled: true,
				BaseURL: "https://www.courtlistener.com",
			},
			WebSearch: WebSearchConfig{
				Enabled:  true,
				Endpoint: "https://html.duckduckgo.com/html/",
				Sites: []string{
					"courtlistener.com",
					"law.justia.com",
					"casetext.com",
					"law.cornell.edu",
					"leagle.com",
				},
				ConfirmPages: true,
			},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
