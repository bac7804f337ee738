// Package config loads and validates pipeline configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/JakeFAU/catalog-pipeline/internal/assist"
	"github.com/JakeFAU/catalog-pipeline/internal/catalog"
	"github.com/JakeFAU/catalog-pipeline/internal/fetcher/openfoodfacts"
	"github.com/JakeFAU/catalog-pipeline/internal/logging"
	"github.com/JakeFAU/catalog-pipeline/internal/normalize"
	"github.com/JakeFAU/catalog-pipeline/internal/policy/ratelimit"
	"github.com/JakeFAU/catalog-pipeline/internal/publisher/pubsub"
	"github.com/JakeFAU/catalog-pipeline/internal/storage/postgres"
)

// EnvPrefix prefixes every environment override, e.g. CATALOG_API_BASE_URL.
const EnvPrefix = "CATALOG"

// Config captures all pipeline configuration knobs loaded via Viper.
type Config struct {
	API        APIConfig        `mapstructure:"api"`
	Pagination PaginationConfig `mapstructure:"pagination"`
	Retry      RetryConfig      `mapstructure:"retry"`
	RateLimit  RateLimitConfig  `mapstructure:"ratelimit"`
	Output     OutputConfig     `mapstructure:"output"`
	Normalize  NormalizeConfig  `mapstructure:"normalize"`
	Logging    logging.Config   `mapstructure:"logging"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Storage    StorageConfig    `mapstructure:"storage"`
	DB         postgres.Config  `mapstructure:"db"`
	PubSub     pubsub.Config    `mapstructure:"pubsub"`
	Assist     assist.Config    `mapstructure:"assist"`
}

// APIConfig points the fetch client at the catalog API.
type APIConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
	UserAgent string        `mapstructure:"user_agent"`
	Fields    string        `mapstructure:"fields"`
}

// PaginationConfig bounds a single run.
type PaginationConfig struct {
	PageSize int `mapstructure:"page_size"`
	MaxPages int `mapstructure:"max_pages"`
}

// RetryConfig configures exponential backoff for transient failures.
type RetryConfig struct {
	MaxRetries int           `mapstructure:"max_retries"`
	BaseDelay  time.Duration `mapstructure:"base_delay"`
	Multiplier float64       `mapstructure:"multiplier"`
	MaxDelay   time.Duration `mapstructure:"max_delay"`
}

// RateLimitConfig spaces out outbound requests.
type RateLimitConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// OutputConfig sets artifact directories.
type OutputConfig struct {
	RawDir       string `mapstructure:"raw_dir"`
	ProcessedDir string `mapstructure:"processed_dir"`
	KeepPartial  bool   `mapstructure:"keep_partial"`
}

// NormalizeConfig overrides plausibility ranges per numeric column.
type NormalizeConfig struct {
	Ranges map[string]normalize.Range `mapstructure:"ranges"`
}

// MetricsConfig enables the Prometheus endpoint when Addr is set.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// StorageConfig selects an optional artifact mirror.
type StorageConfig struct {
	GCSBucket string `mapstructure:"gcs_bucket"`
	LocalDir  string `mapstructure:"local_dir"`
	Prefix    string `mapstructure:"prefix"`
}

// Load builds a Config from .env, disk and environment, in increasing order
// of precedence for the environment.
func Load(path string) (Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("assist.api_key", EnvPrefix+"_ASSIST_API_KEY", "ANTHROPIC_API_KEY"); err != nil {
		return Config{}, fmt.Errorf("bind env: %w", err)
	}

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

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// loadDotEnv populates the process environment from files that exist.
// Variables already set win.
func loadDotEnv(files ...string) error {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	backoff := catalog.DefaultBackoff()

	v.SetDefault("api.base_url", openfoodfacts.DefaultBaseURL)
	v.SetDefault("api.timeout", 30*time.Second)
	v.SetDefault("api.user_agent", openfoodfacts.DefaultUserAgent)
	v.SetDefault("api.fields", openfoodfacts.DefaultFields)
	v.SetDefault("pagination.page_size", 100)
	v.SetDefault("pagination.max_pages", 10)
	v.SetDefault("retry.max_retries", backoff.MaxRetries)
	v.SetDefault("retry.base_delay", backoff.Base)
	v.SetDefault("retry.multiplier", backoff.Multiplier)
	v.SetDefault("retry.max_delay", backoff.Max)
	v.SetDefault("ratelimit.interval", ratelimit.DefaultInterval)
	v.SetDefault("output.raw_dir", "data/raw")
	v.SetDefault("output.processed_dir", "data/processed")
	v.SetDefault("output.keep_partial", false)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("metrics.addr", "")
	v.SetDefault("storage.gcs_bucket", "")
	v.SetDefault("storage.local_dir", "")
	v.SetDefault("storage.prefix", "catalog")
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.table", "catalog_runs")
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic", "")
	v.SetDefault("assist.enabled", false)
	v.SetDefault("assist.model", assist.DefaultModel)
	v.SetDefault("assist.max_tokens", assist.DefaultMaxTokens)
	v.SetDefault("assist.base_url", "")
	v.SetDefault("assist.timeout", assist.DefaultTimeout)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if strings.TrimSpace(c.API.BaseURL) == "" {
		return fmt.Errorf("api.base_url is required")
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("api.timeout must be > 0")
	}
	if c.Pagination.PageSize <= 0 {
		return fmt.Errorf("pagination.page_size must be > 0")
	}
	if c.Pagination.MaxPages <= 0 {
		return fmt.Errorf("pagination.max_pages must be > 0")
	}
	if err := c.Backoff().Validate(); err != nil {
		return err
	}
	if c.Output.RawDir == "" || c.Output.ProcessedDir == "" {
		return fmt.Errorf("output.raw_dir and output.processed_dir are required")
	}
	if err := c.Policy().Validate(); err != nil {
		return err
	}
	if c.Storage.GCSBucket != "" && c.Storage.LocalDir != "" {
		return fmt.Errorf("storage.gcs_bucket and storage.local_dir are mutually exclusive")
	}
	if (c.PubSub.ProjectID == "") != (c.PubSub.Topic == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic must be set together")
	}
	return nil
}

// Backoff converts the retry section.
func (c Config) Backoff() catalog.Backoff {
	return catalog.Backoff{
		MaxRetries: c.Retry.MaxRetries,
		Base:       c.Retry.BaseDelay,
		Multiplier: c.Retry.Multiplier,
		Max:        c.Retry.MaxDelay,
	}
}

// Policy merges configured ranges over the defaults.
func (c Config) Policy() normalize.Policy {
	return normalize.DefaultPolicy().WithRanges(c.Normalize.Ranges)
}

// Fetcher converts the api and retry sections for the fetch client.
func (c Config) Fetcher() openfoodfacts.Config {
	return openfoodfacts.Config{
		BaseURL:   c.API.BaseURL,
		UserAgent: c.API.UserAgent,
		Fields:    c.API.Fields,
		Timeout:   c.API.Timeout,
		Backoff:   c.Backoff(),
	}
}

// Limiter converts the ratelimit section.
func (c Config) Limiter() ratelimit.Config {
	return ratelimit.Config{Interval: c.RateLimit.Interval}
}
