package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kbservice/internal/auth"
	"kbservice/internal/logging"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestRequireAPIKey(t *testing.T) {
	key, hash, err := auth.GenerateAPIKey("test")
	require.NoError(t, err)
	h := RequireAPIKey(true, []string{hash})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := ClientIDFromContext(r.Context())
		assert.True(t, ok)
		assert.Contains(t, id, "key:")
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		setup  func(r *http.Request)
		status int
	}{
		{name: "missing", setup: func(*http.Request) {}, status: http.StatusUnauthorized},
		{name: "wrong", setup: func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") }, status: http.StatusUnauthorized},
		{name: "bearer", setup: func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+key) }, status: http.StatusNoContent},
		{name: "query", setup: func(r *http.Request) { r.URL.RawQuery = "api_key=" + key }, status: http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/kbs", nil)
			tt.setup(req)
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			assert.Equal(t, tt.status, rr.Code)
		})
	}
}

func TestRequireAPIKeyDisabled(t *testing.T) {
	rr := httptest.NewRecorder()
	RequireAPIKey(false, nil)(okHandler()).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusNoContent, rr.Code)
}

func TestRateLimiterPerClient(t *testing.T) {
	rl := NewRateLimiter(1, 2)
	h := rl.Middleware(okHandler())

	call := func(remote string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = remote
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr.Code
	}

	assert.Equal(t, http.StatusNoContent, call("10.0.0.1:1000"))
	assert.Equal(t, http.StatusNoContent, call("10.0.0.1:1001"))
	assert.Equal(t, http.StatusTooManyRequests, call("10.0.0.1:1002"))
	assert.Equal(t, http.StatusNoContent, call("10.0.0.2:1000"))
}

func TestRateLimiterEvictsIdleClients(t *testing.T) {
	rl := NewRateLimiter(60, 1)
	now := time.Now()
	rl.now = func() time.Time { return now }
	rl.getLimiter("a")

	now = now.Add(limiterIdleTTL + time.Second)
	rl.getLimiter("b")

	_, ok := rl.clients["a"]
	assert.False(t, ok)
	assert.Len(t, rl.clients, 1)
}

func TestLoggingRecordsStatus(t *testing.T) {
	var buf bytes.Buffer
	h := Logging(logging.NewWithWriter(&buf, "info", "json"))(okHandler())
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Contains(t, buf.String(), `"status":204`)
	assert.Contains(t, buf.String(), `"path":"/healthz"`)
}
