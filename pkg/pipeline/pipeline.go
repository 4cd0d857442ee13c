package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/vantagecrm/gatekeeper/pkg/api"
	"github.com/vantagecrm/gatekeeper/pkg/audit"
	"github.com/vantagecrm/gatekeeper/pkg/auth"
	"github.com/vantagecrm/gatekeeper/pkg/observability"
)

// Route declares one endpoint and its pipeline metadata. Routes are
// registered once at startup; the pipeline consults this table instead
// of per-handler annotations.
type Route struct {
	// Method is the HTTP method (e.g. http.MethodPost).
	Method string

	// Pattern is the ServeMux path pattern (e.g. "/v1/contacts/{id}").
	Pattern string

	// Policy controls anonymous access and required roles.
	Policy auth.RoutePolicy

	// Controller is the owning handler type name. When AuditResource is
	// unset, the resource name is derived from it ("ContactsController"
	// records as "contacts").
	Controller string

	// AuditResource names the resource in audit entries. Overrides the
	// Controller-derived name.
	AuditResource string

	// AuditExempt suppresses audit recording for this route entirely.
	// Used by the audit read endpoints themselves.
	AuditExempt bool

	// Handler is the business handler. Its outcome is observed by the
	// pipeline but never altered.
	Handler http.Handler
}

// resource returns the audit resource name for the route.
func (rt Route) resource() string {
	if rt.AuditResource != "" {
		return rt.AuditResource
	}
	return audit.DeriveResource(rt.Controller)
}

// Config holds pipeline tuning knobs.
type Config struct {
	// MaxBodyCapture bounds how many request body bytes are retained
	// for audit details (default: 64 KiB). The handler always sees the
	// full body.
	MaxBodyCapture int
}

// defaults applies default values for unset configuration fields.
func (c *Config) defaults() {
	if c.MaxBodyCapture == 0 {
		c.MaxBodyCapture = 64 * 1024
	}
}

// Pipeline executes the per-request stage ordering for every registered
// route. It is stateless across requests; the audit store behind the
// recorder is the only shared, concurrently written resource.
type Pipeline struct {
	chain    *auth.Chain
	limiter  auth.RateLimiter
	recorder *audit.Recorder
	logger   *slog.Logger
	config   Config
	routes   []Route
}

// New creates a pipeline. The limiter and recorder may be nil to disable
// rate limiting or auditing (used in tests).
func New(chain *auth.Chain, limiter auth.RateLimiter, recorder *audit.Recorder, logger *slog.Logger, cfg Config) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.defaults()
	return &Pipeline{
		chain:    chain,
		limiter:  limiter,
		recorder: recorder,
		logger:   logger,
		config:   cfg,
	}
}

// Register adds routes to the table. Must be called before Handler.
func (p *Pipeline) Register(routes ...Route) {
	p.routes = append(p.routes, routes...)
}

// Handler builds the HTTP handler for all registered routes. The
// middleware ordering is fixed here, once, at startup.
func (p *Pipeline) Handler() http.Handler {
	mux := http.NewServeMux()
	for _, rt := range p.routes {
		mux.Handle(rt.Method+" "+rt.Pattern, p.wrap(rt))
	}
	return mux
}

// wrap builds the per-route stage chain.
func (p *Pipeline) wrap(rt Route) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := ensureRequestID(r)
		r = r.WithContext(ctx)

		action := audit.ActionForMethod(r.Method)
		mutating := action != ""
		audited := mutating && !rt.AuditExempt && p.recorder != nil

		// Rate limiting runs first, before any tenant-scoped work, and
		// needs no resolved identity: the key is the client address.
		if p.limiter != nil {
			if err := p.limiter.Allow(ctx, ClientIP(r)); err != nil {
				observability.RateLimitRejectedTotal.Inc()
				p.logger.Warn("rate limit exceeded",
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr,
				)
				api.WriteError(w, api.NewTooManyRequestsError("rate limit exceeded"))
				if audited {
					p.dispatch(ctx, audit.Entry{
						Action:       audit.ActionRateLimited,
						Resource:     rt.resource(),
						IPAddress:    ClientIP(r),
						UserAgent:    r.UserAgent(),
						Status:       audit.StatusFailure,
						ErrorMessage: "rate limit exceeded",
					})
				}
				return
			}
		}

		// Identity resolution and the role check are skipped entirely
		// for public routes, not merely ignored: the credential may be
		// absent or malformed and must not be rejected for them.
		var ac *auth.Context
		if !rt.Policy.Public {
			result := p.chain.Resolve(ctx, r.Header.Get("Authorization"))
			if result.Decision != auth.Yes || result.Context == nil {
				observability.AuthFailuresTotal.WithLabelValues("unauthenticated").Inc()
				p.logger.Warn("authentication failed",
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr,
					"error", result.Err,
				)
				api.WriteError(w, api.NewUnauthenticatedError("authentication required"))
				return
			}

			ac = result.Context
			if ac.UserID == "" {
				p.logger.Error("resolver returned context with empty user id")
				api.WriteError(w, api.NewServerError("internal authentication error"))
				return
			}

			if err := auth.Authorize(ac, rt.Policy); err != nil {
				if errors.Is(err, auth.ErrForbidden) {
					observability.AuthFailuresTotal.WithLabelValues("forbidden").Inc()
					p.logger.Warn("authorization failed",
						"path", r.URL.Path,
						"user_id", ac.UserID,
						"role", ac.Role,
					)
					api.WriteError(w, api.NewForbiddenError(err.Error()))
				} else {
					observability.AuthFailuresTotal.WithLabelValues("unauthenticated").Inc()
					api.WriteError(w, api.NewUnauthenticatedError("authentication required"))
				}
				return
			}

			ctx = auth.WithContext(ctx, ac)
			r = r.WithContext(ctx)
		}

		// Capture the request body for audit details before the handler
		// consumes it. The handler still reads the full body.
		var body []byte
		if audited {
			body = captureBody(r, p.config.MaxBodyCapture)
		}

		rec := newResponseRecorder(w, p.config.MaxBodyCapture)
		p.invoke(rt, rec, r)

		if !audited {
			return
		}

		entry := audit.Entry{
			Action:     action,
			Resource:   rt.resource(),
			ResourceID: r.PathValue("id"),
			Details:    audit.DetailsFromBody(body),
			IPAddress:  ClientIP(r),
			UserAgent:  r.UserAgent(),
			Status:     audit.StatusSuccess,
		}
		if ac != nil {
			entry.TenantID = ac.TenantID
			entry.UserID = ac.UserID
		}
		if rec.status() >= 400 {
			entry.Status = audit.StatusFailure
			entry.ErrorMessage = rec.errorMessage()
		}

		p.dispatch(ctx, entry)
	})
}

// invoke runs the business handler, converting a panic into a server
// error response. The pipeline never recovers or transforms handler
// errors beyond this; outcomes pass through to the caller verbatim.
func (p *Pipeline) invoke(rt Route, w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			p.logger.Error("handler panicked",
				"path", r.URL.Path,
				"panic", rec,
			)
			api.WriteError(w, api.NewServerError("internal server error"))
		}
	}()
	rt.Handler.ServeHTTP(w, r)
}

// dispatch records the entry without blocking the response path. The
// recorder detaches from request cancellation internally, so an aborted
// request still gets one best-effort attempt.
func (p *Pipeline) dispatch(ctx context.Context, entry audit.Entry) {
	go p.recorder.Record(ctx, entry)
}
