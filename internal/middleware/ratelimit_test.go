package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T, limit int, key KeyFunc) (*RateLimiter, *time.Time) {
	t.Helper()
	rl := NewRateLimiter(t.Context(), limit, time.Minute, key)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	return rl, &now
}

func TestRateLimiter_PerIP(t *testing.T) {
	rl, now := newTestLimiter(t, 2, nil)
	h := rl.Limit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	call := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/wear/compute", nil)
		req.RemoteAddr = ip + ":5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, call("10.0.0.1").Code)
	assert.Equal(t, http.StatusOK, call("10.0.0.1").Code)
	limited := call("10.0.0.1")
	require.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.Equal(t, "30", limited.Header().Get("Retry-After"))
	assert.Equal(t, http.StatusOK, call("10.0.0.2").Code, "buckets are per IP")

	*now = now.Add(30 * time.Second)
	assert.Equal(t, http.StatusOK, call("10.0.0.1").Code)
	assert.Equal(t, http.StatusTooManyRequests, call("10.0.0.1").Code)

	*now = now.Add(time.Hour)
	rl.evictIdle()
	assert.Empty(t, rl.visitors)
}

func TestRateLimiter_CustomKey(t *testing.T) {
	byHeader := func(r *http.Request) string { return r.Header.Get("X-Caller") }
	rl, _ := newTestLimiter(t, 1, byHeader)
	h := rl.Limit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	call := func(caller string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/wear/mine", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		req.Header.Set("X-Caller", caller)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, call("driver-a"))
	assert.Equal(t, http.StatusOK, call("driver-b"), "same IP, different caller")
	assert.Equal(t, http.StatusTooManyRequests, call("driver-a"))
}

func TestRateLimiter_RefillsAtWindowRate(t *testing.T) {
	rl, now := newTestLimiter(t, 4, nil)

	for range 4 {
		ok, _ := rl.allow("k")
		require.True(t, ok)
	}
	ok, wait := rl.allow("k")
	assert.False(t, ok)
	assert.Equal(t, 15*time.Second, wait)

	// A rejected request does not push the next token further out.
	ok, wait = rl.allow("k")
	assert.False(t, ok)
	assert.Equal(t, 15*time.Second, wait)

	*now = now.Add(15 * time.Second)
	ok, _ = rl.allow("k")
	assert.True(t, ok)
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"remote addr", nil, "192.168.1.5:4000", "192.168.1.5"},
		{"forwarded chain", map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"}, "10.0.0.1:1", "203.0.113.7"},
		{"real ip", map[string]string{"X-Real-IP": "198.51.100.2"}, "10.0.0.1:1", "198.51.100.2"},
		{"ipv6", nil, "[2001:db8::1]:443", "2001:db8::1"},
		{"no port", nil, "unix-socket", "unix-socket"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, ClientIP(req))
		})
	}
}
