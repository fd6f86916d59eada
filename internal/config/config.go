// Package config loads and validates crawl pipeline configuration via
// Viper. A local .env file is honored before the environment is read.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/bepdata/recipe-crawler/internal/crawl"
)

// Config captures all pipeline knobs.
type Config struct {
	Supabase SupabaseConfig `mapstructure:"supabase"`
	Crawler  CrawlerConfig  `mapstructure:"crawler"`
	Worker   WorkerConfig   `mapstructure:"worker"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Seeds    SeedsConfig    `mapstructure:"seeds"`
}

// SupabaseConfig holds backend credentials.
type SupabaseConfig struct {
	URL        string `mapstructure:"url"`
	ServiceKey string `mapstructure:"service_key"`
}

// CrawlerConfig governs the harvest walk and freshness window.
type CrawlerConfig struct {
	Source               string `mapstructure:"source"`
	Locale               string `mapstructure:"locale"`
	CutoffDays           int    `mapstructure:"cutoff_days"`
	MaxPagesPerKeyword   int    `mapstructure:"max_pages_per_keyword"`
	UserAgent            string `mapstructure:"user_agent"`
	KeywordConcurrency   int    `mapstructure:"keyword_concurrency"`
	FetchBatchSize       int    `mapstructure:"fetch_batch_size"`
	ZeroNewPageThreshold int    `mapstructure:"zero_new_page_threshold"`
	PolitenessMs         int    `mapstructure:"politeness_ms"`
}

// WorkerConfig governs the detail worker loop.
type WorkerConfig struct {
	ID                 string `mapstructure:"id"`
	IdleWaitSeconds    int    `mapstructure:"idle_wait_seconds"`
	FailureWaitSeconds int    `mapstructure:"failure_wait_seconds"`
}

// HTTPConfig holds per-request timeouts.
type HTTPConfig struct {
	FetchTimeoutSeconds int `mapstructure:"fetch_timeout_seconds"`
	RestTimeoutSeconds  int `mapstructure:"rest_timeout_seconds"`
}

// MetricsConfig controls the ops server; an empty addr disables it.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// SeedsConfig holds the keyword tiers the harvester walks.
type SeedsConfig struct {
	Tier1 []string `mapstructure:"tier1"`
	Tier2 []string `mapstructure:"tier2"`
}

// Load builds a Config from an optional file plus the environment.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("CRAWLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Supabase.URL = strings.TrimRight(strings.TrimSpace(cfg.Supabase.URL), "/")
	cfg.Supabase.ServiceKey = strings.TrimSpace(cfg.Supabase.ServiceKey)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Registering empty defaults makes the env-only credentials visible
	// to Unmarshal.
	v.SetDefault("supabase.url", "")
	v.SetDefault("supabase.service_key", "")
	v.SetDefault("worker.id", "")
	v.SetDefault("crawler.source", "cookpad")
	v.SetDefault("crawler.locale", "vn")
	v.SetDefault("crawler.cutoff_days", 30)
	v.SetDefault("crawler.max_pages_per_keyword", 30)
	v.SetDefault("crawler.user_agent",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	v.SetDefault("crawler.keyword_concurrency", 5)
	v.SetDefault("crawler.fetch_batch_size", 3)
	v.SetDefault("crawler.zero_new_page_threshold", 5)
	v.SetDefault("crawler.politeness_ms", 200)
	v.SetDefault("worker.idle_wait_seconds", 5)
	v.SetDefault("worker.failure_wait_seconds", 1)
	v.SetDefault("http.fetch_timeout_seconds", 20)
	v.SetDefault("http.rest_timeout_seconds", 30)
	v.SetDefault("metrics.addr", "")
	v.SetDefault("logging.development", false)
	v.SetDefault("seeds.tier1", Tier1Seeds)
	v.SetDefault("seeds.tier2", Tier2Seeds)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Supabase.URL == "" {
		return fmt.Errorf("supabase.url must be set")
	}
	if c.Supabase.ServiceKey == "" {
		return fmt.Errorf("supabase.service_key must be set")
	}
	if c.Crawler.CutoffDays <= 0 {
		return fmt.Errorf("crawler.cutoff_days must be > 0")
	}
	if c.Crawler.MaxPagesPerKeyword <= 0 {
		return fmt.Errorf("crawler.max_pages_per_keyword must be > 0")
	}
	if c.Crawler.KeywordConcurrency <= 0 {
		return fmt.Errorf("crawler.keyword_concurrency must be > 0")
	}
	if c.Crawler.FetchBatchSize <= 0 {
		return fmt.Errorf("crawler.fetch_batch_size must be > 0")
	}
	if c.Crawler.ZeroNewPageThreshold <= 0 {
		return fmt.Errorf("crawler.zero_new_page_threshold must be > 0")
	}
	if c.HTTP.FetchTimeoutSeconds <= 0 {
		return fmt.Errorf("http.fetch_timeout_seconds must be > 0")
	}
	if c.HTTP.RestTimeoutSeconds <= 0 {
		return fmt.Errorf("http.rest_timeout_seconds must be > 0")
	}
	return nil
}

// CutoffDate returns the freshness cutoff as a UTC date.
func (c Config) CutoffDate() time.Time {
	now := time.Now().UTC()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return day.AddDate(0, 0, -c.Crawler.CutoffDays)
}

// Politeness returns the inter-page delay for the harvester.
func (c Config) Politeness() time.Duration {
	return time.Duration(c.Crawler.PolitenessMs) * time.Millisecond
}

// FetchTimeout returns the page fetch timeout.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.HTTP.FetchTimeoutSeconds) * time.Second
}

// RestTimeout returns the backend request timeout.
func (c Config) RestTimeout() time.Duration {
	return time.Duration(c.HTTP.RestTimeoutSeconds) * time.Second
}

// IdleWait returns the worker's pause after an empty claim.
func (c Config) IdleWait() time.Duration {
	return time.Duration(c.Worker.IdleWaitSeconds) * time.Second
}

// FailureWait returns the worker's pause after a 429 or 5xx job failure.
func (c Config) FailureWait() time.Duration {
	return time.Duration(c.Worker.FailureWaitSeconds) * time.Second
}

// SeedTiers returns the configured keyword tiers in harvest order.
func (c Config) SeedTiers() []crawl.SeedTier {
	return []crawl.SeedTier{
		{Tier: 1, Keywords: c.Seeds.Tier1},
		{Tier: 2, Keywords: c.Seeds.Tier2},
	}
}
