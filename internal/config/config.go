// Package config loads and validates portal configuration via Viper.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Site      SiteConfig      `mapstructure:"site"`
	Webhook   WebhookConfig   `mapstructure:"webhook"`
	Dispatch  DispatchConfig  `mapstructure:"dispatch"`
	Store     StoreConfig     `mapstructure:"store"`
	Archive   ArchiveConfig   `mapstructure:"archive"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Progress  ProgressConfig  `mapstructure:"progress"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Poller    PollerConfig    `mapstructure:"poller"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                   int  `mapstructure:"port"`
	RequestTimeoutSeconds  int  `mapstructure:"request_timeout_seconds"`
	ShutdownTimeoutSeconds int  `mapstructure:"shutdown_timeout_seconds"`
	TrustProxy             bool `mapstructure:"trust_proxy"`
}

// SiteConfig describes the public address of this service.
type SiteConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

// WebhookURL is the callback handed to the generation workflow.
func (s SiteConfig) WebhookURL() string {
	return strings.TrimRight(s.BaseURL, "/") + "/webhooks/status"
}

// WebhookConfig governs inbound signature checks.
type WebhookConfig struct {
	Secret        string `mapstructure:"secret"`
	AllowUnsigned bool   `mapstructure:"allow_unsigned"`
}

// DispatchConfig points at the repository-dispatch API.
type DispatchConfig struct {
	APIURL          string `mapstructure:"api_url"`
	Token           string `mapstructure:"token"`
	Owner           string `mapstructure:"owner"`
	Repo            string `mapstructure:"repo"`
	EventType       string `mapstructure:"event_type"`
	CancelEventType string `mapstructure:"cancel_event_type"`
	TimeoutSeconds  int    `mapstructure:"timeout_seconds"`
	MaxRetries      int    `mapstructure:"max_retries"`
}

// StoreConfig selects and tunes the status store.
type StoreConfig struct {
	Backend       string         `mapstructure:"backend"`
	TTL           time.Duration  `mapstructure:"ttl"`
	SweepInterval time.Duration  `mapstructure:"sweep_interval"`
	Postgres      PostgresConfig `mapstructure:"postgres"`
}

// PostgresConfig controls the Postgres status store.
type PostgresConfig struct {
	DSN         string `mapstructure:"dsn"`
	Table       string `mapstructure:"table"`
	MaxConns    int32  `mapstructure:"max_conns"`
	AutoMigrate bool   `mapstructure:"auto_migrate"`
}

// ArchiveConfig selects where terminal records are archived.
type ArchiveConfig struct {
	Backend   string `mapstructure:"backend"`
	BaseDir   string `mapstructure:"base_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// PubSubConfig holds metadata for publish-subscribe notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// ProgressConfig tunes the progress hub.
type ProgressConfig struct {
	BufferSize     int           `mapstructure:"buffer_size"`
	MaxBatchEvents int           `mapstructure:"max_batch_events"`
	MaxBatchWait   time.Duration `mapstructure:"max_batch_wait"`
}

// RateLimitConfig bounds POST /generate per client IP.
type RateLimitConfig struct {
	GenerateRPS   float64 `mapstructure:"generate_rps"`
	GenerateBurst int     `mapstructure:"generate_burst"`
}

// PollerConfig configures the polling client used by the CLI.
type PollerConfig struct {
	BaseURL          string        `mapstructure:"base_url"`
	Interval         time.Duration `mapstructure:"interval"`
	MaxRetries       int           `mapstructure:"max_retries"`
	BackoffInitialMs int           `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs     int           `mapstructure:"backoff_max_ms"`
	TimeoutSeconds   int           `mapstructure:"timeout_seconds"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Supported backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendNone     = "none"
	BackendLocal    = "local"
	BackendGCS      = "gcs"
)

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PORTAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	if err := bindAliases(v); err != nil {
		return Config{}, err
	}

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

// bindAliases lets the conventional unprefixed variables fill the three
// secrets-bearing settings.
func bindAliases(v *viper.Viper) error {
	aliases := map[string][]string{
		"dispatch.token": {"PORTAL_DISPATCH_TOKEN", "GITHUB_TOKEN"},
		"webhook.secret": {"PORTAL_WEBHOOK_SECRET", "WEBHOOK_SECRET"},
		"site.base_url":  {"PORTAL_SITE_BASE_URL", "SITE_URL"},
	}
	for key, envs := range aliases {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return fmt.Errorf("bind env %s: %w", key, err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout_seconds", 30)
	v.SetDefault("server.shutdown_timeout_seconds", 15)
	v.SetDefault("server.trust_proxy", false)
	v.SetDefault("site.base_url", "http://localhost:8080")
	v.SetDefault("webhook.secret", "")
	v.SetDefault("webhook.allow_unsigned", false)
	v.SetDefault("dispatch.api_url", "https://api.github.com")
	v.SetDefault("dispatch.token", "")
	v.SetDefault("dispatch.owner", "")
	v.SetDefault("dispatch.repo", "")
	v.SetDefault("dispatch.event_type", "generate-website")
	v.SetDefault("dispatch.cancel_event_type", "cancel-website")
	v.SetDefault("dispatch.timeout_seconds", 15)
	v.SetDefault("dispatch.max_retries", 2)
	v.SetDefault("store.backend", BackendMemory)
	v.SetDefault("store.ttl", "24h")
	v.SetDefault("store.sweep_interval", "10m")
	v.SetDefault("store.postgres.dsn", "")
	v.SetDefault("store.postgres.table", "generation_status")
	v.SetDefault("store.postgres.max_conns", 4)
	v.SetDefault("store.postgres.auto_migrate", false)
	v.SetDefault("archive.backend", BackendNone)
	v.SetDefault("archive.base_dir", "")
	v.SetDefault("archive.gcs_bucket", "")
	v.SetDefault("archive.prefix", "status-archive")
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "generation-status")
	v.SetDefault("progress.buffer_size", 1024)
	v.SetDefault("progress.max_batch_events", 100)
	v.SetDefault("progress.max_batch_wait", "250ms")
	v.SetDefault("ratelimit.generate_rps", 0.2)
	v.SetDefault("ratelimit.generate_burst", 3)
	v.SetDefault("poller.base_url", "http://localhost:8080")
	v.SetDefault("poller.interval", "5s")
	v.SetDefault("poller.max_retries", 3)
	v.SetDefault("poller.backoff_initial_ms", 500)
	v.SetDefault("poller.backoff_max_ms", 8000)
	v.SetDefault("poller.timeout_seconds", 45)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Server.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("server.request_timeout_seconds must be > 0")
	}
	if u, err := url.Parse(c.Site.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("site.base_url must be an absolute URL")
	}
	if c.Dispatch.TimeoutSeconds <= 0 {
		return fmt.Errorf("dispatch.timeout_seconds must be > 0")
	}
	if c.Dispatch.MaxRetries < 0 {
		return fmt.Errorf("dispatch.max_retries must be >= 0")
	}
	if c.Dispatch.Token != "" && (c.Dispatch.Owner == "" || c.Dispatch.Repo == "") {
		return fmt.Errorf("dispatch.owner and dispatch.repo must be set when dispatch.token is set")
	}
	switch c.Store.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.Store.Postgres.DSN == "" {
			return fmt.Errorf("store.postgres.dsn must be set when store.backend is postgres")
		}
	default:
		return fmt.Errorf("store.backend must be one of memory, postgres")
	}
	if c.Store.TTL <= 0 {
		return fmt.Errorf("store.ttl must be > 0")
	}
	if c.Store.SweepInterval <= 0 {
		return fmt.Errorf("store.sweep_interval must be > 0")
	}
	switch c.Archive.Backend {
	case BackendNone, BackendMemory:
	case BackendLocal:
		if c.Archive.BaseDir == "" {
			return fmt.Errorf("archive.base_dir must be set when archive.backend is local")
		}
	case BackendGCS:
		if c.Archive.GCSBucket == "" {
			return fmt.Errorf("archive.gcs_bucket must be set when archive.backend is gcs")
		}
	default:
		return fmt.Errorf("archive.backend must be one of none, memory, local, gcs")
	}
	if c.PubSub.ProjectID != "" && c.PubSub.TopicName == "" {
		return fmt.Errorf("pubsub.topic_name must be set when pubsub.project_id is set")
	}
	if c.RateLimit.GenerateRPS < 0 || c.RateLimit.GenerateBurst < 0 {
		return fmt.Errorf("ratelimit values must be >= 0")
	}
	if c.Poller.Interval <= 0 {
		return fmt.Errorf("poller.interval must be > 0")
	}
	if c.Poller.MaxRetries < 0 {
		return fmt.Errorf("poller.max_retries must be >= 0")
	}
	return nil
}

// RequestTimeout converts the server timeout to a duration.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSeconds) * time.Second
}

// ShutdownTimeout converts the shutdown grace period to a duration.
func (c Config) ShutdownTimeout() time.Duration {
	if c.Server.ShutdownTimeoutSeconds <= 0 {
		return 15 * time.Second
	}
	return time.Duration(c.Server.ShutdownTimeoutSeconds) * time.Second
}
