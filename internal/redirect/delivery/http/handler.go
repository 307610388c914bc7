// Package http serves short links and the operator endpoints over chi.
package http

import (
	"context"
	"html/template"
	"net/http"

	"go-shortlink/internal/ratelimit"
	"go-shortlink/internal/redirect/usecase"
	"go-shortlink/pkg/problemdetails"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// maxFormBytes bounds the password form body.
const maxFormBytes = 8 << 10

type RedirectResolver interface {
	Resolve(ctx context.Context, code string, req usecase.RequestContext) (*usecase.Outcome, error)
}

// Handler serves GET and POST /{code}.
type Handler struct {
	resolver RedirectResolver
	logger   *zap.Logger
}

func NewHandler(resolver RedirectResolver, logger *zap.Logger) *Handler {
	return &Handler{resolver: resolver, logger: logger}
}

// Redirect handles GET /{code}
func (h *Handler) Redirect(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, requestContext(r))
}

// SubmitPassword handles POST /{code} with a "password" form field.
func (h *Handler) SubmitPassword(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		writeProblem(w, r, problemdetails.New(
			http.StatusBadRequest,
			problemdetails.TypeValidationError,
			"Invalid Request",
			"Request body must be a form with a 'password' field",
		))
		return
	}

	rc := requestContext(r)
	rc.Password = r.PostForm.Get("password")
	rc.PasswordSubmitted = true
	h.serve(w, r, rc)
}

func requestContext(r *http.Request) usecase.RequestContext {
	return usecase.RequestContext{
		ClientIP:  ratelimit.ClientIP(r),
		UserAgent: r.UserAgent(),
		Referer:   r.Referer(),
		Cookie: func(name string) string {
			c, err := r.Cookie(name)
			if err != nil {
				return ""
			}
			return c.Value
		},
	}
}

func (h *Handler) serve(w http.ResponseWriter, r *http.Request, rc usecase.RequestContext) {
	code := chi.URLParam(r, "code")

	out, err := h.resolver.Resolve(r.Context(), code, rc)
	if err != nil {
		h.logger.Error("link resolution failed", zap.String("short_code", code), zap.Error(err))
		internalError(w, r)
		return
	}

	if out.NewSession != nil {
		http.SetCookie(w, &http.Cookie{
			Name:     out.NewSession.Name,
			Value:    out.NewSession.Value,
			Path:     "/",
			MaxAge:   out.NewSession.MaxAge,
			Expires:  out.NewSession.ExpiresAt,
			HttpOnly: true,
			Secure:   isHTTPS(r),
			SameSite: http.SameSiteLaxMode,
		})
	}

	switch out.Kind {
	case usecase.KindRedirect:
		w.Header().Set("Cache-Control", "private, no-store")
		http.Redirect(w, r, out.URL, out.StatusCode)

	case usecase.KindPasswordRequired:
		renderPage(w, h.logger, http.StatusUnauthorized, "password.html", passwordPage{
			Code:    code,
			Invalid: out.InvalidAttempt,
		})

	case usecase.KindDeepLinkInterstitial:
		renderPage(w, h.logger, http.StatusOK, "interstitial.html", interstitialPage{
			DeepLinkURL:  out.DeepLinkURL,
			DeepLinkHref: template.URL(out.DeepLinkURL),
			FallbackURL:  out.FallbackURL,
			TimeoutMs:    out.FallbackTimeout.Milliseconds(),
		})

	case usecase.KindGone:
		problemType, detail := problemdetails.TypeLinkPaused, "This link has been paused"
		if out.GoneReason == usecase.GoneExpired {
			problemType, detail = problemdetails.TypeLinkExpired, "This link has expired"
		}
		writeProblem(w, r, problemdetails.New(http.StatusGone, problemType, "Gone", detail))

	case usecase.KindNotFound:
		writeProblem(w, r, problemdetails.New(
			http.StatusNotFound,
			problemdetails.TypeNotFound,
			"Not Found",
			"Short link not found",
		))

	case usecase.KindBadDestination:
		writeProblem(w, r, problemdetails.New(
			http.StatusBadRequest,
			problemdetails.TypeInvalidDestination,
			"Invalid Destination",
			"This link points to an address that cannot be opened",
		))

	default:
		h.logger.Error("unhandled resolution outcome", zap.Stringer("kind", out.Kind))
		internalError(w, r)
	}
}

func isHTTPS(r *http.Request) bool {
	return r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https"
}
