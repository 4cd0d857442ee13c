// Command server runs the gatekeeper authorization and audit pipeline.
//
// Configuration is loaded from a YAML file (see pkg/config for the
// discovery order) with GATEKEEPER_* environment overrides:
//
//	GATEKEEPER_CONFIG            - Config file path
//	GATEKEEPER_PORT              - Listen port (default: 8080)
//	GATEKEEPER_JWT_SECRET        - Bearer token signing secret
//	GATEKEEPER_AUDIT_STORE       - Audit store: "memory" or "postgres"
//	GATEKEEPER_AUDIT_DSN         - PostgreSQL DSN for the audit store
//	GATEKEEPER_RATELIMIT_RPM     - Requests per minute per client address
//	GATEKEEPER_RATELIMIT_ENABLED - "true" or "false"
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vantagecrm/gatekeeper/pkg/audit"
	auditmemory "github.com/vantagecrm/gatekeeper/pkg/audit/memory"
	auditpostgres "github.com/vantagecrm/gatekeeper/pkg/audit/postgres"
	"github.com/vantagecrm/gatekeeper/pkg/auth"
	"github.com/vantagecrm/gatekeeper/pkg/auth/apikey"
	"github.com/vantagecrm/gatekeeper/pkg/auth/jwt"
	"github.com/vantagecrm/gatekeeper/pkg/config"
	"github.com/vantagecrm/gatekeeper/pkg/observability"
	"github.com/vantagecrm/gatekeeper/pkg/pipeline"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load("")
	if err != nil {
		return err
	}

	// Create the audit store.
	store, err := newAuditStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	recorder := audit.NewRecorder(store, slog.Default())

	// Build the resolver chain.
	chain, err := newResolverChain(cfg)
	if err != nil {
		return err
	}

	// Rate limiter (keyed by client address, evaluated before auth).
	var limiter auth.RateLimiter
	if cfg.RateLimit.Enabled {
		limiter = auth.NewInProcessLimiter(cfg.RateLimit.RequestsPerMinute)
		slog.Info("rate limiting enabled", "rpm", cfg.RateLimit.RequestsPerMinute)
	}

	// Assemble the pipeline. Resource services register their routes
	// here; the audit read API ships with the server.
	pipe := pipeline.New(chain, limiter, recorder, slog.Default(), pipeline.Config{})

	auditAPI := audit.NewAPI(recorder)
	adminOnly := auth.RoutePolicy{Roles: []auth.Role{auth.RoleAdmin, auth.RoleOwner}}
	pipe.Register(
		pipeline.Route{
			Method:      http.MethodGet,
			Pattern:     "/v1/audit/entries",
			Policy:      adminOnly,
			Controller:  "AuditLogsController",
			AuditExempt: true,
			Handler:     auditAPI.ListHandler(),
		},
		pipeline.Route{
			Method:      http.MethodGet,
			Pattern:     "/v1/audit/stats",
			Policy:      adminOnly,
			Controller:  "AuditLogsController",
			AuditExempt: true,
			Handler:     auditAPI.StatsHandler(),
		},
	)

	// Build HTTP mux with health endpoints.
	mux := http.NewServeMux()
	mux.Handle("/", pipe.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})
	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := store.HealthCheck(r.Context()); err != nil {
			http.Error(w, "audit store unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})
	if cfg.Observability.Metrics.Enabled {
		mux.Handle("GET "+cfg.Observability.Metrics.Path, promhttp.Handler())
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      observability.MetricsMiddleware(mux),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "port", cfg.Server.Port, "audit_store", cfg.Audit.Store)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// newAuditStore creates the configured audit store backend.
func newAuditStore(cfg *config.Config) (audit.Store, error) {
	switch cfg.Audit.Store {
	case "postgres":
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		store, err := auditpostgres.New(ctx, auditpostgres.Config{
			DSN:            cfg.Audit.Postgres.DSN,
			MaxConns:       cfg.Audit.Postgres.MaxConns,
			MigrateOnStart: cfg.Audit.Postgres.MigrateOnStart,
		})
		if err != nil {
			return nil, fmt.Errorf("creating postgres audit store: %w", err)
		}
		slog.Info("audit store enabled", "type", "postgres")
		return store, nil
	default:
		slog.Info("audit store enabled", "type", "memory", "max_size", cfg.Audit.MaxSize)
		return auditmemory.New(cfg.Audit.MaxSize), nil
	}
}

// newResolverChain builds identity resolvers from configuration:
// service-account API keys first, then JWT bearer tokens.
func newResolverChain(cfg *config.Config) (*auth.Chain, error) {
	chain := &auth.Chain{}

	if len(cfg.Auth.APIKeys) > 0 {
		entries := make([]apikey.RawKeyEntry, 0, len(cfg.Auth.APIKeys))
		for _, k := range cfg.Auth.APIKeys {
			entries = append(entries, apikey.RawKeyEntry{
				Key: k.Key,
				Context: auth.Context{
					UserID:   k.UserID,
					TenantID: k.TenantID,
					Role:     auth.ParseRole(k.Role),
				},
			})
		}
		chain.Resolvers = append(chain.Resolvers, apikey.New(entries))
		slog.Info("api key auth enabled", "keys", len(entries))
	}

	if cfg.Auth.JWTSecret != "" {
		resolver, err := jwt.New(jwt.Config{
			Secret:   []byte(cfg.Auth.JWTSecret),
			Issuer:   cfg.Auth.Issuer,
			Audience: cfg.Auth.Audience,
		})
		if err != nil {
			return nil, fmt.Errorf("creating jwt resolver: %w", err)
		}
		chain.Resolvers = append(chain.Resolvers, resolver)
		slog.Info("jwt auth enabled")
	}

	return chain, nil
}
