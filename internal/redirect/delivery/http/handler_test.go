package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	httphandler "go-shortlink/internal/redirect/delivery/http"
	"go-shortlink/internal/redirect/usecase"
	"go-shortlink/pkg/problemdetails"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type resolverFunc func(ctx context.Context, code string, req usecase.RequestContext) (*usecase.Outcome, error)

func (f resolverFunc) Resolve(ctx context.Context, code string, req usecase.RequestContext) (*usecase.Outcome, error) {
	return f(ctx, code, req)
}

func fixed(out *usecase.Outcome) resolverFunc {
	return func(context.Context, string, usecase.RequestContext) (*usecase.Outcome, error) { return out, nil }
}

func setupHandler(resolver httphandler.RedirectResolver) http.Handler {
	h := httphandler.NewHandler(resolver, zap.NewNop())
	r := chi.NewRouter()
	r.Get("/{code}", h.Redirect)
	r.Post("/{code}", h.SubmitPassword)
	return r
}

func get(t *testing.T, handler http.Handler, path string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func postPassword(t *testing.T, handler http.Handler, path, password string) *httptest.ResponseRecorder {
	t.Helper()
	form := url.Values{"password": {password}}
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func decodeProblem(t *testing.T, rr *httptest.ResponseRecorder) problemdetails.ProblemDetail {
	t.Helper()
	assert.Equal(t, problemdetails.ContentType, rr.Header().Get("Content-Type"))
	var p problemdetails.ProblemDetail
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &p))
	return p
}

func TestRedirect_Redirect_Returns302WithLocation(t *testing.T) {
	var gotCode string
	var gotReq usecase.RequestContext
	handler := setupHandler(resolverFunc(func(_ context.Context, code string, req usecase.RequestContext) (*usecase.Outcome, error) {
		gotCode, gotReq = code, req
		return &usecase.Outcome{Kind: usecase.KindRedirect, URL: "https://example.com/x", StatusCode: http.StatusFound}, nil
	}))

	req := httptest.NewRequest(http.MethodGet, "/abc123", nil)
	req.RemoteAddr = "203.0.113.7:5555"
	req.Header.Set("User-Agent", "curl/8.0")
	req.Header.Set("Referer", "https://ref.example.com/")
	req.AddCookie(&http.Cookie{Name: "sl_pw_1", Value: "proof"})
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "https://example.com/x", rr.Header().Get("Location"))
	assert.Equal(t, "private, no-store", rr.Header().Get("Cache-Control"))
	assert.Empty(t, rr.Header().Get("Set-Cookie"))

	assert.Equal(t, "abc123", gotCode)
	assert.Equal(t, "203.0.113.7", gotReq.ClientIP)
	assert.Equal(t, "curl/8.0", gotReq.UserAgent)
	assert.Equal(t, "https://ref.example.com/", gotReq.Referer)
	assert.False(t, gotReq.PasswordSubmitted)
	assert.Equal(t, "proof", gotReq.Cookie("sl_pw_1"))
	assert.Equal(t, "", gotReq.Cookie("missing"))
}

func TestSubmitPassword_PassesPasswordAndSetsSessionCookie(t *testing.T) {
	expires := time.Now().Add(24 * time.Hour)
	var gotReq usecase.RequestContext
	handler := setupHandler(resolverFunc(func(_ context.Context, _ string, req usecase.RequestContext) (*usecase.Outcome, error) {
		gotReq = req
		return &usecase.Outcome{
			Kind:       usecase.KindRedirect,
			URL:        "https://example.com/private",
			StatusCode: http.StatusFound,
			NewSession: &usecase.SessionProof{Name: "sl_pw_42", Value: "123.sig", ExpiresAt: expires, MaxAge: 86400},
		}, nil
	}))

	rr := postPassword(t, handler, "/secret", "hunter2")

	assert.Equal(t, http.StatusFound, rr.Code)
	assert.True(t, gotReq.PasswordSubmitted)
	assert.Equal(t, "hunter2", gotReq.Password)

	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	c := cookies[0]
	assert.Equal(t, "sl_pw_42", c.Name)
	assert.Equal(t, "123.sig", c.Value)
	assert.Equal(t, 86400, c.MaxAge)
	assert.True(t, c.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
	assert.Equal(t, "/", c.Path)
}

func TestRedirect_PasswordRequired_Returns401PromptWithHintOnlyWhenInvalid(t *testing.T) {
	first := get(t, setupHandler(fixed(&usecase.Outcome{Kind: usecase.KindPasswordRequired})), "/secret")
	wrong := postPassword(t, setupHandler(fixed(&usecase.Outcome{Kind: usecase.KindPasswordRequired, InvalidAttempt: true})), "/secret", "nope")

	for _, rr := range []*httptest.ResponseRecorder{first, wrong} {
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Contains(t, rr.Header().Get("Content-Type"), "text/html")
		assert.Contains(t, rr.Body.String(), `action="/secret"`)
		assert.Contains(t, rr.Body.String(), `name="password"`)
	}
	assert.NotContains(t, first.Body.String(), "not correct")
	assert.Contains(t, wrong.Body.String(), "not correct")
}

func TestRedirect_DeepLinkInterstitial_Returns200Page(t *testing.T) {
	handler := setupHandler(fixed(&usecase.Outcome{
		Kind:            usecase.KindDeepLinkInterstitial,
		URL:             "https://example.com/web",
		DeepLinkURL:     "myapp://item/1",
		FallbackURL:     "https://apps.apple.com/app/id1",
		FallbackTimeout: 1500 * time.Millisecond,
	}))

	rr := get(t, handler, "/app")

	assert.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, `href="myapp://item/1"`)
	assert.Contains(t, body, `href="https://apps.apple.com/app/id1"`)
	assert.Contains(t, body, "1500")
}

func TestRedirect_ErrorOutcomes_AreProblemDetails(t *testing.T) {
	tests := []struct {
		name       string
		outcome    *usecase.Outcome
		wantStatus int
		wantType   string
	}{
		{"expired", &usecase.Outcome{Kind: usecase.KindGone, GoneReason: usecase.GoneExpired}, http.StatusGone, problemdetails.TypeLinkExpired},
		{"paused", &usecase.Outcome{Kind: usecase.KindGone, GoneReason: usecase.GonePaused}, http.StatusGone, problemdetails.TypeLinkPaused},
		{"not found", &usecase.Outcome{Kind: usecase.KindNotFound}, http.StatusNotFound, problemdetails.TypeNotFound},
		{"bad destination", &usecase.Outcome{Kind: usecase.KindBadDestination}, http.StatusBadRequest, problemdetails.TypeInvalidDestination},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := get(t, setupHandler(fixed(tt.outcome)), "/abc")

			assert.Equal(t, tt.wantStatus, rr.Code)
			p := decodeProblem(t, rr)
			assert.Equal(t, tt.wantStatus, p.Status)
			assert.True(t, strings.HasSuffix(p.Type, "/"+tt.wantType), p.Type)
			assert.Equal(t, "/abc", p.Instance)
		})
	}
}

func TestRedirect_ResolverError_Returns500WithoutDetails(t *testing.T) {
	handler := setupHandler(resolverFunc(func(context.Context, string, usecase.RequestContext) (*usecase.Outcome, error) {
		return nil, errors.New("pq: connection refused to 10.0.0.5")
	}))

	rr := get(t, handler, "/abc")

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.NotContains(t, rr.Body.String(), "10.0.0.5")
	assert.Equal(t, http.StatusInternalServerError, decodeProblem(t, rr).Status)
}
