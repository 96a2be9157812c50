package ratelimit

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareRejectsOverLimit(t *testing.T) {
	clock := newClock()
	l := New(WithClock(clock.Now))

	var limited int
	handler := l.Middleware("verify", Config{MaxRequests: 2, Window: time.Minute}, ClientIP, func(*http.Request) { limited++ })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }),
	)

	call := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/verify-fix", nil)
		req.RemoteAddr = "203.0.113.7:5555"
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr
	}

	first := call()
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "2", first.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Remaining"))

	require.Equal(t, http.StatusOK, call().Code)

	rejected := call()
	require.Equal(t, http.StatusTooManyRequests, rejected.Code)
	assert.Equal(t, "60", rejected.Header().Get("Retry-After"))
	assert.Equal(t, 1, limited)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rejected.Body.Bytes(), &body))
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Too many requests", body["error"])

	clock.Advance(time.Minute + time.Second)
	assert.Equal(t, http.StatusOK, call().Code)
}

func TestMiddlewareScopesAreIndependent(t *testing.T) {
	l := New()
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	cfg := Config{MaxRequests: 1, Window: time.Minute}
	a := l.Middleware("a", cfg, nil, nil)(ok)
	b := l.Middleware("b", cfg, nil, nil)(ok)

	for _, h := range []http.Handler{a, b} {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, rr.Code)
	}
	assert.Equal(t, 2, l.Len())
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name   string
		xff    string
		remote string
		want   string
	}{
		{"forwarded first hop", "198.51.100.1, 10.0.0.1", "10.0.0.2:80", "198.51.100.1"},
		{"remote addr", "", "192.0.2.4:1234", "192.0.2.4"},
		{"remote without port", "", "192.0.2.5", "192.0.2.5"},
		{"blank forwarded", " ", "192.0.2.6:1", "192.0.2.6"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			assert.Equal(t, tt.want, ClientIP(r))
		})
	}
}
