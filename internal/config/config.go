// Package config loads and validates scraper configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator"`
	Crawler      CrawlerConfig      `mapstructure:"crawler"`
	Headless     HeadlessConfig     `mapstructure:"headless"`
	Storage      StorageConfig      `mapstructure:"storage"`
	DB           DBConfig           `mapstructure:"db"`
	PubSub       PubSubConfig       `mapstructure:"pubsub"`
	Logging      LoggingConfig      `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// OrchestratorConfig governs batch scheduling.
type OrchestratorConfig struct {
	BatchSize           int `mapstructure:"batch_size"`
	MaxConcurrentJobs   int `mapstructure:"max_concurrent_jobs"`
	PollIntervalSeconds int `mapstructure:"poll_interval_seconds"`
	JobTimeoutSeconds   int `mapstructure:"job_timeout_seconds"`
	MaxRetries          int `mapstructure:"max_retries"`
}

// CrawlerConfig governs the in-unit crawl pipeline.
type CrawlerConfig struct {
	Concurrency    int    `mapstructure:"concurrency"`
	MaxRequests    int    `mapstructure:"max_requests"`
	UserAgent      string `mapstructure:"user_agent"`
	RespectRobots  bool   `mapstructure:"respect_robots"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	DefaultParser  string `mapstructure:"default_parser"`
}

// HeadlessConfig configures the headless rendering subsystem.
type HeadlessConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	MaxParallel     int  `mapstructure:"max_parallel"`
	NavTimeoutSec   int  `mapstructure:"nav_timeout_seconds"`
	PromotionThresh int  `mapstructure:"promotion_threshold"`
}

// StorageConfig sets paths and content types for snapshot persistence.
type StorageConfig struct {
	Backend     string `mapstructure:"backend"`
	GCSBucket   string `mapstructure:"gcs_bucket"`
	LocalDir    string `mapstructure:"local_dir"`
	Prefix      string `mapstructure:"prefix"`
	ContentType string `mapstructure:"content_type"`
}

// DBConfig controls access to the relational database. An empty DSN
// selects the in-memory store.
type DBConfig struct {
	DSN          string `mapstructure:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MinConns     int    `mapstructure:"min_conns"`
}

// PubSubConfig holds metadata for stored-record notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("NEWSGRAB")
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

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("orchestrator.batch_size", 5)
	v.SetDefault("orchestrator.max_concurrent_jobs", 20)
	v.SetDefault("orchestrator.poll_interval_seconds", 10)
	v.SetDefault("orchestrator.job_timeout_seconds", 600)
	v.SetDefault("orchestrator.max_retries", 3)
	v.SetDefault("crawler.concurrency", 2)
	v.SetDefault("crawler.max_requests", 100)
	v.SetDefault("crawler.user_agent", "newsgrab-bot/0.1")
	v.SetDefault("crawler.respect_robots", true)
	v.SetDefault("crawler.timeout_seconds", 15)
	v.SetDefault("crawler.default_parser", "generic-news")
	v.SetDefault("headless.enabled", false)
	v.SetDefault("headless.max_parallel", 1)
	v.SetDefault("headless.nav_timeout_seconds", 25)
	v.SetDefault("headless.promotion_threshold", 2048)
	v.SetDefault("storage.backend", "memory")
	v.SetDefault("storage.prefix", "pages")
	v.SetDefault("storage.content_type", "text/html; charset=utf-8")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Orchestrator.BatchSize <= 0 {
		return fmt.Errorf("orchestrator.batch_size must be > 0")
	}
	if c.Orchestrator.MaxConcurrentJobs <= 0 {
		return fmt.Errorf("orchestrator.max_concurrent_jobs must be > 0")
	}
	if c.Orchestrator.MaxRetries < 0 {
		return fmt.Errorf("orchestrator.max_retries must be >= 0")
	}
	if c.Crawler.Concurrency <= 0 {
		return fmt.Errorf("crawler.concurrency must be > 0")
	}
	if c.Crawler.TimeoutSeconds <= 0 {
		return fmt.Errorf("crawler.timeout_seconds must be > 0")
	}
	if c.Headless.Enabled && c.Headless.MaxParallel <= 0 {
		return fmt.Errorf("headless.max_parallel must be > 0 when headless is enabled")
	}
	switch c.Storage.Backend {
	case "memory", "local", "gcs":
	default:
		return fmt.Errorf("storage.backend must be one of memory, local, gcs")
	}
	if c.Storage.Backend == "gcs" && c.Storage.GCSBucket == "" {
		return fmt.Errorf("storage.gcs_bucket must be set for the gcs backend")
	}
	if c.Storage.Backend == "local" && c.Storage.LocalDir == "" {
		return fmt.Errorf("storage.local_dir must be set for the local backend")
	}
	return nil
}

// PollInterval converts the poll interval config into a duration.
func (c Config) PollInterval() time.Duration {
	return time.Duration(c.Orchestrator.PollIntervalSeconds) * time.Second
}

// JobTimeout converts the job timeout config into a duration.
func (c Config) JobTimeout() time.Duration {
	return time.Duration(c.Orchestrator.JobTimeoutSeconds) * time.Second
}

// FetchTimeout converts the crawler timeout config into a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Crawler.TimeoutSeconds) * time.Second
}

// NavTimeout converts the headless navigation timeout into a duration.
func (c Config) NavTimeout() time.Duration {
	return time.Duration(c.Headless.NavTimeoutSec) * time.Second
}
