package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mmynk/hearth/internal/auth"
	"github.com/mmynk/hearth/internal/household"
	"github.com/mmynk/hearth/internal/metrics"
	"github.com/mmynk/hearth/internal/service"
)

func serveCommand() cli.Command {
	return cli.Command{
		Name:   "serve",
		Usage:  "run the RPC server",
		Action: runServe,
	}
}

func runServe(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if err := cfg.ValidateServer(); err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()

	m := metrics.New()
	logger := slog.Default()

	authenticator := auth.NewPasswordAuthenticator(store)
	jwtManager := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	manager, err := household.NewManager(store,
		household.WithLogger(logger),
		household.WithMetrics(m),
		household.WithKDFIterations(cfg.KDFIterations),
		household.WithInviteTTL(cfg.InviteTTL),
	)
	if err != nil {
		return err
	}
	registry, err := household.NewRegistry(cfg.Session.CacheSize, cfg.Session.TTL, nil)
	if err != nil {
		return err
	}
	defer registry.Close()

	mux := http.NewServeMux()
	service.Register(mux,
		service.NewAuthService(authenticator, jwtManager, logger),
		service.NewHouseholdService(manager, registry, authenticator, logger),
		jwtManager,
	)
	mux.Handle("/metrics", m.Handler())

	// Wrap with h2c for HTTP/2 without TLS (required for Connect)
	handler := h2c.NewHandler(loggingMiddleware(corsMiddleware(mux)), &http2.Server{})
	server := &http.Server{
		Addr:              cfg.ListenAddress(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go sweepSessions(ctx, registry, cfg.Session.TTL)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Connect server starting", "address", server.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sweepSessions closes expired sessions so their keys do not outlive the
// TTL while idle.
func sweepSessions(ctx context.Context, registry *household.Registry, ttl time.Duration) {
	interval := ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := registry.Sweep(); n > 0 {
				slog.Debug("Expired sessions closed", "count", n)
			}
		}
	}
}

// loggingMiddleware logs all incoming requests
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		next.ServeHTTP(w, r)

		slog.Debug("Request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

// corsMiddleware adds CORS headers for browser access
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, Connect-Protocol-Version, Connect-Timeout-Ms")
		w.Header().Set("Access-Control-Expose-Headers", "Connect-Protocol-Version, Connect-Timeout-Ms")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
