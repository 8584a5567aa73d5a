package middleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"fleetwear/internal/logging"
)

// KeyFunc names the bucket a request is charged to.
type KeyFunc func(r *http.Request) string

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per key.
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
	idle     time.Duration
	key      KeyFunc
	now      func() time.Time
}

// NewRateLimiter allows limit requests per window for each key, with bursts
// up to limit. A nil key charges requests to ClientIP. Idle keys are
// evicted until ctx is cancelled.
func NewRateLimiter(ctx context.Context, limit int, window time.Duration, key KeyFunc) *RateLimiter {
	if key == nil {
		key = ClientIP
	}
	every := rate.Inf
	if limit > 0 {
		every = rate.Every(window / time.Duration(limit))
	}
	rl := &RateLimiter{
		visitors: make(map[string]*visitor),
		limit:    every,
		burst:    max(limit, 1),
		idle:     max(window, 10*time.Minute),
		key:      key,
		now:      time.Now,
	}

	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rl.evictIdle()
			}
		}
	}()
	return rl
}

// allow spends one token from key's bucket. When the bucket is empty the
// reservation is returned and the wait until the next token is reported.
func (rl *RateLimiter) allow(key string) (bool, time.Duration) {
	now := rl.now()

	rl.mu.Lock()
	v, ok := rl.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.visitors[key] = v
	}
	v.lastSeen = now
	rl.mu.Unlock()

	res := v.limiter.ReserveN(now, 1)
	if !res.OK() {
		return false, time.Hour
	}
	if wait := res.DelayFrom(now); wait > 0 {
		res.CancelAt(now)
		return false, wait
	}
	return true, 0
}

func (rl *RateLimiter) evictIdle() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-rl.idle)
	for k, v := range rl.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(rl.visitors, k)
		}
	}
}

// Limit rejects requests over the limit with 429 and a Retry-After header.
func (rl *RateLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ok, wait := rl.allow(rl.key(r))
		if !ok {
			secs := int(math.Ceil(wait.Seconds()))
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", strconv.Itoa(max(secs, 1)))
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":"Too many requests. Please try again later."}`))

			lg := logging.Component("http")
			lg.Warn().Str("path", r.URL.Path).Dur("retry_after", wait).Msg("rate limited")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ClientIP returns the caller's address, trusting the first hop of
// X-Forwarded-For and then X-Real-IP as set by a reverse proxy.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
