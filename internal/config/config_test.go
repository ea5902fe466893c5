package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func clearAliasEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"GITHUB_TOKEN", "WEBHOOK_SECRET", "SITE_URL"} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearAliasEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Fatalf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Webhook.AllowUnsigned {
		t.Fatal("expected unsigned webhooks to be rejected by default")
	}
	if cfg.Server.TrustProxy {
		t.Fatal("expected forwarding headers to be ignored by default")
	}
	if cfg.Store.Backend != BackendMemory || cfg.Store.TTL != 24*time.Hour {
		t.Fatalf("unexpected store defaults: %+v", cfg.Store)
	}
	if cfg.Poller.Interval != 5*time.Second {
		t.Fatalf("expected 5s poll interval, got %v", cfg.Poller.Interval)
	}
	if cfg.Poller.TimeoutSeconds <= cfg.Server.RequestTimeoutSeconds {
		t.Fatalf("poller timeout %ds must outlast the server request timeout %ds",
			cfg.Poller.TimeoutSeconds, cfg.Server.RequestTimeoutSeconds)
	}
	if cfg.Dispatch.EventType != "generate-website" {
		t.Fatalf("unexpected event type %q", cfg.Dispatch.EventType)
	}
	if got := cfg.Site.WebhookURL(); got != "http://localhost:8080/webhooks/status" {
		t.Fatalf("unexpected webhook url %s", got)
	}
}

func TestLoadWithFileOverrides(t *testing.T) {
	clearAliasEnv(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 9090
  request_timeout_seconds: 45
site:
  base_url: https://portal.example.com/
webhook:
  secret: hush
dispatch:
  token: ghp_test
  owner: acme
  repo: site-builder
  max_retries: 5
store:
  backend: postgres
  ttl: 2h
  sweep_interval: 1m
  postgres:
    dsn: postgres://localhost/portal
    table: statuses
archive:
  backend: local
  base_dir: /tmp/archive
progress:
  max_batch_wait: 1s
poller:
  interval: 2s
logging:
  development: false
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 || cfg.RequestTimeout() != 45*time.Second {
		t.Fatalf("expected server overrides, got %+v", cfg.Server)
	}
	if cfg.Webhook.Secret != "hush" {
		t.Fatalf("expected webhook secret to load")
	}
	if cfg.Dispatch.Owner != "acme" || cfg.Dispatch.Repo != "site-builder" || cfg.Dispatch.MaxRetries != 5 {
		t.Fatalf("expected dispatch overrides, got %+v", cfg.Dispatch)
	}
	if cfg.Store.Backend != BackendPostgres || cfg.Store.Postgres.Table != "statuses" {
		t.Fatalf("expected postgres store, got %+v", cfg.Store)
	}
	if cfg.Store.TTL != 2*time.Hour || cfg.Store.SweepInterval != time.Minute {
		t.Fatalf("expected durations to parse, got %+v", cfg.Store)
	}
	if cfg.Progress.MaxBatchWait != time.Second || cfg.Poller.Interval != 2*time.Second {
		t.Fatalf("expected duration overrides, got %+v / %+v", cfg.Progress, cfg.Poller)
	}
	if cfg.Logging.Development {
		t.Fatal("expected development logging disabled")
	}
	if got := cfg.Site.WebhookURL(); got != "https://portal.example.com/webhooks/status" {
		t.Fatalf("unexpected webhook url %s", got)
	}
}

func TestLoadEnvAliases(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "ghp_env")
	t.Setenv("WEBHOOK_SECRET", "from-env")
	t.Setenv("SITE_URL", "https://env.example.com")
	t.Setenv("PORTAL_DISPATCH_OWNER", "acme")
	t.Setenv("PORTAL_DISPATCH_REPO", "builder")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Dispatch.Token != "ghp_env" {
		t.Fatalf("expected token from GITHUB_TOKEN, got %q", cfg.Dispatch.Token)
	}
	if cfg.Webhook.Secret != "from-env" {
		t.Fatalf("expected secret from WEBHOOK_SECRET, got %q", cfg.Webhook.Secret)
	}
	if cfg.Site.BaseURL != "https://env.example.com" {
		t.Fatalf("expected base url from SITE_URL, got %q", cfg.Site.BaseURL)
	}
	if cfg.Dispatch.Owner != "acme" {
		t.Fatalf("expected owner from PORTAL_DISPATCH_OWNER, got %q", cfg.Dispatch.Owner)
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := Config{
		Server:   ServerConfig{Port: 8080, RequestTimeoutSeconds: 30},
		Site:     SiteConfig{BaseURL: "http://localhost:8080"},
		Dispatch: DispatchConfig{TimeoutSeconds: 10},
		Store:    StoreConfig{Backend: BackendMemory, TTL: time.Hour, SweepInterval: time.Minute},
		Archive:  ArchiveConfig{Backend: BackendNone},
		Poller:   PollerConfig{Interval: time.Second},
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("expected base config to validate, got %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"invalid port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"relative base url", func(c *Config) { c.Site.BaseURL = "/portal" }, "site.base_url"},
		{"token without repo", func(c *Config) { c.Dispatch.Token = "t" }, "dispatch.owner"},
		{"unknown store", func(c *Config) { c.Store.Backend = "redis" }, "store.backend"},
		{"postgres without dsn", func(c *Config) { c.Store.Backend = BackendPostgres }, "store.postgres.dsn"},
		{"zero ttl", func(c *Config) { c.Store.TTL = 0 }, "store.ttl"},
		{"local archive without dir", func(c *Config) { c.Archive.Backend = BackendLocal }, "archive.base_dir"},
		{"gcs archive without bucket", func(c *Config) { c.Archive.Backend = BackendGCS }, "archive.gcs_bucket"},
		{"unknown archive", func(c *Config) { c.Archive.Backend = "s3" }, "archive.backend"},
		{"pubsub without topic", func(c *Config) { c.PubSub.ProjectID = "p" }, "pubsub.topic_name"},
		{"zero poll interval", func(c *Config) { c.Poller.Interval = 0 }, "poller.interval"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
