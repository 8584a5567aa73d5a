package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetwear/internal/backend"
	"fleetwear/internal/config"
	"fleetwear/internal/db"
	"fleetwear/internal/fleet"
	"fleetwear/internal/monitor"
	"fleetwear/internal/version"
	"fleetwear/internal/wearout"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestComputeCommand(t *testing.T) {
	out := execute(t, "compute", "--current", "14000", "--target", "15000", "--interval", "15000")

	var res wearout.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, wearout.ModeCountdown, res.Mode)
	assert.Equal(t, "1,000 km left", res.DisplayValue)
	assert.Equal(t, wearout.SeverityCritical, res.Severity)
}

func TestVersionCommand(t *testing.T) {
	out := execute(t, "version")
	assert.Contains(t, out, version.Version)
}

func TestBuildHandler_RateLimitsAPIOnly(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	h := buildHandler(t.Context(), config.ServerConfig{RateLimit: 1}, ok)

	get := func(path string) int {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, get("/api/wear/fleet"))
	assert.Equal(t, http.StatusTooManyRequests, get("/api/wear/fleet"))
	assert.Equal(t, http.StatusOK, get("/health"))
	assert.Equal(t, http.StatusOK, get("/health"))
}

func TestBuildHandler_RotatingTokensHitIPLimit(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	h := buildHandler(t.Context(), config.ServerConfig{RateLimit: 2, IPRateLimit: 8}, ok)

	passed, limited := 0, 0
	for i := range 50 {
		req := httptest.NewRequest(http.MethodGet, "/api/wear/mine", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		req.Header.Set("Authorization", fmt.Sprintf("Bearer made-up-%d", i))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code == http.StatusTooManyRequests {
			limited++
		} else {
			passed++
		}
	}
	assert.Equal(t, 8, passed)
	assert.Equal(t, 42, limited)

	// Another address is unaffected.
	req := httptest.NewRequest(http.MethodGet, "/api/wear/mine", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	req.Header.Set("Authorization", "Bearer real-driver")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBuildHandler_DriversShareDepotIP(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	h := buildHandler(t.Context(), config.ServerConfig{RateLimit: 1, IPRateLimit: 4}, ok)

	get := func(token string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/wear/mine", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, get("driver-a"))
	assert.Equal(t, http.StatusOK, get("driver-b"))
	assert.Equal(t, http.StatusTooManyRequests, get("driver-a"))
}

// slowSource blocks a scan until its context is cancelled and then takes a
// little longer to unwind, like a backend call that ignores cancellation.
type slowSource struct {
	started  chan struct{}
	finished atomic.Bool
}

func (s *slowSource) Trucks(ctx context.Context, _ backend.Session) ([]fleet.Truck, error) {
	close(s.started)
	<-ctx.Done()
	time.Sleep(50 * time.Millisecond)
	s.finished.Store(true)
	return nil, ctx.Err()
}

func (s *slowSource) Trailers(context.Context, backend.Session) ([]fleet.Trailer, error) {
	return nil, nil
}

func (s *slowSource) Tires(context.Context, backend.Session) ([]fleet.Tire, error) { return nil, nil }

func (s *slowSource) MaintenanceConfig(context.Context, backend.Session) (fleet.MaintenanceConfig, error) {
	return fleet.MaintenanceConfig{}, nil
}

func TestStartScanner_WaitOutlastsScanInFlight(t *testing.T) {
	conn, err := db.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	src := &slowSource{started: make(chan struct{})}
	scanner := monitor.New(conn, nil, src, backend.Session{Token: "svc"}, monitor.Options{Interval: time.Hour})

	ctx, cancel := context.WithCancel(t.Context())
	wait := startScanner(ctx, scanner)
	<-src.started
	cancel()
	wait()

	assert.True(t, src.finished.Load(), "wait returned before the scan unwound")
}

func TestCallerKey(t *testing.T) {
	anon := httptest.NewRequest(http.MethodGet, "/api/wear/compute", nil)
	anon.RemoteAddr = "10.0.0.1:1234"
	assert.Equal(t, "ip:10.0.0.1", callerKey(anon))

	signed := httptest.NewRequest(http.MethodGet, "/api/wear/compute", nil)
	signed.RemoteAddr = "10.0.0.1:1234"
	signed.Header.Set("Authorization", "Bearer driver-tok")
	key := callerKey(signed)
	assert.True(t, strings.HasPrefix(key, "token:"))
	assert.NotContains(t, key, "driver-tok")
}
