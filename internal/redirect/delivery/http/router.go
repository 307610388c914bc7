package http

import (
	"net/http"

	"go-shortlink/internal/ratelimit"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

func shortCodeParam(r *http.Request) string {
	return chi.URLParam(r, "code")
}

// RouteMounter adds further operator routes under /internal/v1.
type RouteMounter interface {
	Routes(r chi.Router)
}

// NewRouter creates the chi router: probes, the operator API under
// /internal/v1 and the short-link routes at the root. analytics may be nil.
// Forwarding headers are honoured only from the trusted proxies.
func NewRouter(handler *Handler, internal *InternalHandler, analytics RouteMounter, health *HealthHandler, limiter *ratelimit.Limiter, trusted ratelimit.TrustedProxies, internalToken string, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(ratelimit.RealIP(trusted))
	r.Use(LoggerMiddleware(logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", health.Live)
	r.Get("/readyz", health.Ready)

	r.Route("/internal/v1", func(r chi.Router) {
		r.Use(limiter.Middleware(
			ratelimit.Rule{Scope: ratelimit.ScopeIP, Key: ratelimit.ByIP},
			ratelimit.Rule{Scope: ratelimit.ScopeUser, Key: ratelimit.ByHeader(HeaderUserID)},
			ratelimit.Rule{Scope: ratelimit.ScopeOrg, Key: ratelimit.ByHeader(HeaderOrgID)},
		))
		r.Use(BearerAuth(internalToken))
		r.Post("/cache/invalidate", internal.InvalidateCache)
		r.Post("/events", internal.EmitEvent)
		r.Post("/webhooks", internal.RegisterEndpoint)
		if analytics != nil {
			analytics.Routes(r)
		}
	})

	redirectRule := ratelimit.Rule{Scope: ratelimit.ScopeRedirect, Key: ratelimit.ByIP}
	r.With(limiter.Middleware(redirectRule)).Get("/{code}", handler.Redirect)
	r.With(limiter.Middleware(
		redirectRule,
		ratelimit.Rule{Scope: ratelimit.ScopeAuth, Key: ratelimit.ByAuthAttempt(shortCodeParam)},
	)).Post("/{code}", handler.SubmitPassword)

	return r
}
