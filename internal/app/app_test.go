package app_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/sitegen-portal/internal/app"
	"github.com/JakeFAU/sitegen-portal/internal/config"
	"github.com/JakeFAU/sitegen-portal/internal/hash/hmacsha256"
	memorypublisher "github.com/JakeFAU/sitegen-portal/internal/publisher/memory"
)

const secret = "app-test-secret"

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		Server:  config.ServerConfig{Port: 8080, RequestTimeoutSeconds: 5, ShutdownTimeoutSeconds: 5},
		Site:    config.SiteConfig{BaseURL: "http://localhost:8080"},
		Webhook: config.WebhookConfig{Secret: secret},
		Dispatch: config.DispatchConfig{
			APIURL:          "http://127.0.0.1:1",
			EventType:       "generate-website",
			CancelEventType: "cancel-website",
			TimeoutSeconds:  1,
		},
		Store: config.StoreConfig{
			Backend:       config.BackendMemory,
			TTL:           time.Hour,
			SweepInterval: time.Minute,
		},
		Archive:  config.ArchiveConfig{Backend: config.BackendLocal, BaseDir: t.TempDir(), Prefix: "archive"},
		PubSub:   config.PubSubConfig{TopicName: "generation-status"},
		Progress: config.ProgressConfig{MaxBatchWait: 10 * time.Millisecond},
		Poller:   config.PollerConfig{Interval: time.Second},
		Logging:  config.LoggingConfig{Level: "info"},
	}
}

func newApp(t *testing.T, cfg config.Config, pub *memorypublisher.Publisher) *app.App {
	t.Helper()
	opts := app.Options{Registerer: prometheus.NewRegistry()}
	if pub != nil {
		opts.Publisher = pub
	}
	a, err := app.New(context.Background(), cfg, zap.NewNop(), opts)
	require.NoError(t, err)
	return a
}

func postSigned(t *testing.T, h http.Handler, body string) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/status", strings.NewReader(body))
	req.Header.Set("X-Webhook-Signature", hmacsha256.New(secret).Sign([]byte(body)))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Code
}

func TestNewWiresWebhookToSinks(t *testing.T) {
	cfg := testConfig(t)
	pub := memorypublisher.New()
	a := newApp(t, cfg, pub)
	a.Start()

	h := a.Handler()
	require.Equal(t, http.StatusOK, postSigned(t, h, `{"status":"started","client_name":"acme-1-abc123"}`))
	require.Equal(t, http.StatusOK, postSigned(t, h, `{"status":"completed","client_name":"acme-1-abc123"}`))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, a.Close(ctx))

	msgs := pub.ForClient("acme-1-abc123")
	require.Len(t, msgs, 2)
	require.Equal(t, "generation-status", msgs[0].Topic)
	require.Equal(t, "completed", msgs[1].Attributes["status"])

	archived, err := filepath.Glob(filepath.Join(cfg.Archive.BaseDir, "archive", "acme-1-abc123", "*.json"))
	require.NoError(t, err)
	require.Len(t, archived, 1)
	data, err := os.ReadFile(archived[0])
	require.NoError(t, err)
	require.Contains(t, string(data), `"status":"completed"`)
}

func TestGenerateWithoutDispatchTokenIsUnavailable(t *testing.T) {
	a := newApp(t, testConfig(t), nil)
	t.Cleanup(func() { _ = a.Close(context.Background()) })

	body := `{"businessName":"Acme","email":"a@acme.test","industry":"Retail","services":["Widgets"]}`
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/generate", strings.NewReader(body)))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStatusDefaultsThroughApp(t *testing.T) {
	a := newApp(t, testConfig(t), nil)
	t.Cleanup(func() { _ = a.Close(context.Background()) })

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/webhooks/status?clientId=nobody-1-aaaaaa", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"status":"starting"`)
	require.NotNil(t, a.Store())
	require.NotNil(t, a.Sweeper())
}

func TestNewRejectsUnknownBackends(t *testing.T) {
	cfg := testConfig(t)
	cfg.Store.Backend = "redis"
	_, err := app.New(context.Background(), cfg, nil, app.Options{Registerer: prometheus.NewRegistry()})
	require.ErrorContains(t, err, "unknown store backend")

	cfg = testConfig(t)
	cfg.Archive.Backend = "s3"
	_, err = app.New(context.Background(), cfg, nil, app.Options{Registerer: prometheus.NewRegistry()})
	require.ErrorContains(t, err, "unknown archive backend")
}

func TestNewFailsOnBadPostgresDSN(t *testing.T) {
	cfg := testConfig(t)
	cfg.Store.Backend = config.BackendPostgres
	cfg.Store.Postgres.DSN = "://not-a-dsn"
	_, err := app.New(context.Background(), cfg, nil, app.Options{Registerer: prometheus.NewRegistry()})
	require.ErrorContains(t, err, "postgres")
}
