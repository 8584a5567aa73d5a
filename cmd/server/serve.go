package main

import (
	"cmp"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"fleetwear/internal/auth"
	"fleetwear/internal/backend"
	"fleetwear/internal/config"
	"fleetwear/internal/db"
	"fleetwear/internal/events"
	"fleetwear/internal/handlers"
	"fleetwear/internal/live"
	"fleetwear/internal/logging"
	"fleetwear/internal/metrics"
	"fleetwear/internal/middleware"
	"fleetwear/internal/monitor"
	"fleetwear/internal/notify"
	"fleetwear/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, live feed and fleet scanner",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	lg := logging.Component("main")
	lg.Info().Str("version", version.Version).Str("addr", cfg.Server.Addr).Msg("starting fleetwear")

	conn, err := db.Open(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer conn.Close()

	sink, err := metrics.NewPromSink(prometheus.DefaultRegisterer)
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	bus := events.NewBus()
	dispatcher := notify.NewDispatcher(conn, bus, notify.ShoutrrrSender{}).WithRecorder(sink)
	dispatcher.Start()
	defer dispatcher.Stop()

	hub := live.NewHub(bus, cfg.Server.AllowedOrigins)
	defer hub.CloseAll()

	client := backend.New(cfg.Backend)
	api := &handlers.API{
		DB:          conn,
		Fleet:       client,
		Maintenance: cfg.Maintenance,
	}

	waitScanner := func() {}
	if scanner := newScanner(cfg, conn, bus, client, sink); scanner != nil {
		api.Scanner = scanner
		if cfg.Scanner.Enabled {
			waitScanner = startScanner(ctx, scanner)
		}
	}

	authn := auth.NewAuthenticator(client, auth.DefaultCacheTTL)
	authn.StartCleanup(ctx, time.Minute)

	router := handlers.NewRouter(api, handlers.Routes{
		Auth:    authn,
		Live:    hub.HandleConnection,
		Metrics: promhttp.Handler(),
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           buildHandler(ctx, cfg.Server, router),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		lg.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			stop()
			waitScanner()
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}

	lg.Info().Msg("shutting down")
	stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	err = srv.Shutdown(shutdownCtx)

	// The scanner writes to conn and publishes to the dispatcher, both of
	// which are closed by the deferred calls above.
	waitScanner()
	return err
}

// startScanner runs s in the background until ctx is cancelled. The returned
// func blocks until the scan loop, including any scan in flight, has exited.
func startScanner(ctx context.Context, s *monitor.Scanner) (wait func()) {
	var wg sync.WaitGroup
	wg.Go(func() { s.Run(ctx) })
	return wg.Wait
}

// newScanner returns nil when no service token is configured, since the
// scanner has no user session of its own to read the fleet with.
func newScanner(cfg *config.Config, conn *sql.DB, bus *events.Bus, client *backend.Client, sink monitor.Sink) *monitor.Scanner {
	session := backend.Session{Token: cfg.Backend.ServiceToken}
	if !session.Valid() {
		lg := logging.Component("main")
		lg.Warn().Msg("backend.service_token is not set; fleet scanner disabled")
		return nil
	}
	return monitor.New(conn, bus, client, session, monitor.Options{
		Interval:      cfg.Scanner.Interval,
		RetentionDays: cfg.Database.RetentionDays,
		Fallback:      cfg.Maintenance,
		Sink:          sink,
	})
}

// buildHandler wraps the router in CORS and request logging, and rate
// limits the /api routes per client IP and then per caller.
func buildHandler(ctx context.Context, cfg config.ServerConfig, router http.Handler) http.Handler {
	perCaller := middleware.NewRateLimiter(ctx, cfg.RateLimit, time.Minute, callerKey)
	perIP := middleware.NewRateLimiter(ctx, cmp.Or(cfg.IPRateLimit, 4*cfg.RateLimit), time.Minute, nil)
	limited := perIP.Limit(perCaller.Limit(router))
	mux := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			limited.ServeHTTP(w, r)
			return
		}
		router.ServeHTTP(w, r)
	})
	return middleware.CORS(cfg.AllowedOrigins)(middleware.Logging(mux))
}

// callerKey charges signed-in requests to their token, so drivers sharing a
// depot's public IP get separate buckets, and anonymous ones to their IP.
// Tokens are not verified yet at this point; the per-IP limiter in front
// bounds callers that rotate made-up tokens.
func callerKey(r *http.Request) string {
	if token := auth.TokenFromRequest(r); token != "" {
		return "token:" + auth.HashToken(token)
	}
	return "ip:" + middleware.ClientIP(r)
}
