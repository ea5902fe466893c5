package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLimiterAllowPerKey(t *testing.T) {
	t.Parallel()

	l := New(Config{RPS: 1, Burst: 2})
	base := time.Unix(1700000000, 0)
	l.now = func() time.Time { return base }

	require.True(t, l.Allow("a"))
	require.True(t, l.Allow("a"))
	require.False(t, l.Allow("a"))
	require.True(t, l.Allow("b"))

	l.now = func() time.Time { return base.Add(1500 * time.Millisecond) }
	require.True(t, l.Allow("a"))
}

func TestLimiterDisabled(t *testing.T) {
	t.Parallel()

	l := New(Config{})
	for range 100 {
		require.True(t, l.Allow("a"))
	}
	require.Zero(t, l.Len())
}

func TestLimiterPrunesIdleKeys(t *testing.T) {
	t.Parallel()

	l := New(Config{RPS: 1, Burst: 1})
	base := time.Unix(1700000000, 0)
	l.now = func() time.Time { return base }
	l.Allow("a")
	l.Allow("b")
	require.Equal(t, 2, l.Len())

	l.now = func() time.Time { return base.Add(idleTTL + time.Minute) }
	l.Allow("c")
	require.Equal(t, 1, l.Len())
}

func TestMiddlewareRejectsOverLimit(t *testing.T) {
	t.Parallel()

	l := New(Config{RPS: 0.001, Burst: 1})
	rejected := 0
	h := l.Middleware(func(*http.Request) { rejected++ })(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	do := func(addr string) int {
		req := httptest.NewRequest(http.MethodPost, "/generate", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	require.Equal(t, http.StatusOK, do("10.0.0.1:5000"))
	require.Equal(t, http.StatusTooManyRequests, do("10.0.0.1:5001"))
	require.Equal(t, http.StatusOK, do("10.0.0.2:5000"))
	require.Equal(t, 1, rejected)
}
