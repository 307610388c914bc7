package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	analyticshttp "go-shortlink/internal/analytics/delivery/http"
	"go-shortlink/internal/analytics/pipeline"
	clicksql "go-shortlink/internal/analytics/repository/sqlstore"
	analyticsuc "go-shortlink/internal/analytics/usecase"
	"go-shortlink/internal/ratelimit"
	"go-shortlink/internal/redirect/cache"
	httphandler "go-shortlink/internal/redirect/delivery/http"
	linksql "go-shortlink/internal/redirect/repository/sqlstore"
	"go-shortlink/internal/redirect/usecase"
	"go-shortlink/internal/store/storetest"
	"go-shortlink/internal/webhook"
	webhooksql "go-shortlink/internal/webhook/repository/sqlstore"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const operatorToken = "op-token"

type brokenQueue struct{}

func (brokenQueue) Publish(context.Context, []byte) error { return errors.New("queue unreachable") }
func (brokenQueue) Receive(context.Context, string, time.Duration) (*pipeline.Message, error) {
	return nil, pipeline.ErrNoMessage
}
func (brokenQueue) Close() error { return nil }

type emission struct {
	orgID string
	typ   webhook.EventType
	data  map[string]any
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []emission
}

func (r *recordingEmitter) Emit(orgID string, t webhook.EventType, data map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, emission{orgID: orgID, typ: t, data: data})
}

func (r *recordingEmitter) all() []emission {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]emission(nil), r.events...)
}

type stack struct {
	router  http.Handler
	drv     *entsql.Driver
	clicks  *clicksql.ClickRepository
	emitter *recordingEmitter
}

func newStack(t *testing.T, budgets map[ratelimit.Scope]int, checks map[string]httphandler.Check) *stack {
	t.Helper()
	return newStackBehind(t, nil, budgets, checks)
}

// newStackBehind builds the router with the given trusted proxy ranges.
func newStackBehind(t *testing.T, proxies []string, budgets map[ratelimit.Scope]int, checks map[string]httphandler.Check) *stack {
	t.Helper()
	trusted, err := ratelimit.ParseTrustedProxies(proxies)
	require.NoError(t, err)
	logger := zap.NewNop()
	drv := storetest.NewSQLite(t)
	links := linksql.NewLinkRepository(drv)
	clicks := clicksql.NewClickRepository(drv)
	emitter := &recordingEmitter{}

	processor := pipeline.NewProcessor(nil, clicks, links, emitter, logger)
	clickPipeline := pipeline.NewPipeline(brokenQueue{}, processor, logger)
	sessions, err := usecase.NewSessionSigner("secret", "sl", 24*time.Hour)
	require.NoError(t, err)
	linkCache := cache.NewLinkCache(nil, logger)
	resolver := usecase.NewResolver(usecase.Config{}, linkCache, links, clickPipeline, sessions, logger)

	limiter := ratelimit.NewLimiter(ratelimit.Config{Budgets: budgets, BypassToken: "bypass"}, nil, nil, logger)
	internal := httphandler.NewInternalHandler(linkCache, emitter, webhooksql.NewEndpointRepository(drv), logger)
	health := httphandler.NewHealthHandler(checks, logger)
	analytics := analyticshttp.NewHandler(analyticsuc.NewAnalyticsService(clicks, links), logger)
	router := httphandler.NewRouter(httphandler.NewHandler(resolver, logger), internal, analytics, health, limiter, trusted, operatorToken, logger)

	return &stack{router: router, drv: drv, clicks: clicks, emitter: emitter}
}

func (s *stack) seed(t *testing.T, code, dest string) int64 {
	t.Helper()
	query, args := entsql.Dialect(s.drv.Dialect()).
		Insert("links").
		Columns("short_code", "org_id", "destination_url").
		Values(code, "org_1", dest).
		Query()
	res, err := s.drv.DB().ExecContext(context.Background(), query, args...)
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return id
}

func (s *stack) do(method, path string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.RemoteAddr = "198.51.100.10:40000"
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	return rr
}

func TestRouter_Redirect_QueueDown_PersistsExactlyOneClick(t *testing.T) {
	s := newStack(t, nil, nil)
	linkID := s.seed(t, "abc123", "https://example.com/landing")

	rr := s.do(http.MethodGet, "/abc123", nil, map[string]string{"User-Agent": "curl/8.0"})

	require.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "https://example.com/landing", rr.Header().Get("Location"))

	assert.Eventually(t, func() bool {
		n, err := s.clicks.CountByLink(context.Background(), linkID)
		return err == nil && n == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool { return len(s.emitter.all()) == 1 }, time.Second, 10*time.Millisecond)

	// settle any late work before asserting there is no duplicate
	time.Sleep(50 * time.Millisecond)
	n, err := s.clicks.CountByLink(context.Background(), linkID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, webhook.EventClickRecorded, s.emitter.all()[0].typ)
}

func TestRouter_Redirect_UnknownCode_Returns404(t *testing.T) {
	s := newStack(t, nil, nil)

	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/missing", nil, nil).Code)
}

func TestRouter_Redirect_BudgetExhausted_Returns429ThenBypassWorks(t *testing.T) {
	s := newStack(t, map[ratelimit.Scope]int{ratelimit.ScopeRedirect: 2}, nil)
	s.seed(t, "abc123", "https://example.com")

	for i := 0; i < 2; i++ {
		rr := s.do(http.MethodGet, "/abc123", nil, nil)
		require.Equal(t, http.StatusFound, rr.Code)
		assert.Equal(t, "2", rr.Header().Get("X-RateLimit-Limit"))
	}

	rr := s.do(http.MethodGet, "/abc123", nil, nil)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))

	rr = s.do(http.MethodGet, "/abc123", nil, map[string]string{ratelimit.BypassHeader: "bypass"})
	assert.Equal(t, http.StatusFound, rr.Code)
}

func TestRouter_PasswordPost_AuthBudgetAppliesPerCodeAndIP(t *testing.T) {
	s := newStack(t, map[ratelimit.Scope]int{ratelimit.ScopeAuth: 1}, nil)
	s.seed(t, "abc123", "https://example.com")
	form := map[string]string{"Content-Type": "application/x-www-form-urlencoded"}

	assert.Equal(t, http.StatusFound, s.do(http.MethodPost, "/abc123", []byte("password=x"), form).Code)
	assert.Equal(t, http.StatusTooManyRequests, s.do(http.MethodPost, "/abc123", []byte("password=x"), form).Code)
	assert.Equal(t, http.StatusFound, s.do(http.MethodGet, "/abc123", nil, nil).Code)
}

func TestRouter_PasswordPost_ForwardedForFromUntrustedPeer_IsIgnored(t *testing.T) {
	s := newStack(t, map[ratelimit.Scope]int{ratelimit.ScopeAuth: 1}, nil)
	s.seed(t, "abc123", "https://example.com")

	allowed := 0
	for i := range 20 {
		rr := s.do(http.MethodPost, "/abc123", []byte("password=x"), map[string]string{
			"Content-Type":    "application/x-www-form-urlencoded",
			"X-Forwarded-For": "203.0.113." + strconv.Itoa(i+1),
			"X-Real-IP":       "192.0.2." + strconv.Itoa(i+1),
		})
		if rr.Code != http.StatusTooManyRequests {
			allowed++
		}
	}

	assert.Equal(t, 1, allowed)
}

func TestRouter_PasswordPost_TrustedProxy_KeysOnForwardedClient(t *testing.T) {
	s := newStackBehind(t, []string{"198.51.100.0/24"}, map[ratelimit.Scope]int{ratelimit.ScopeAuth: 1}, nil)
	s.seed(t, "abc123", "https://example.com")
	post := func(xff string) int {
		return s.do(http.MethodPost, "/abc123", []byte("password=x"), map[string]string{
			"Content-Type":    "application/x-www-form-urlencoded",
			"X-Forwarded-For": xff,
		}).Code
	}

	assert.Equal(t, http.StatusFound, post("203.0.113.7"))
	assert.Equal(t, http.StatusTooManyRequests, post("203.0.113.7"))
	assert.Equal(t, http.StatusFound, post("203.0.113.8"), "another client behind the proxy has its own bucket")
	assert.Equal(t, http.StatusTooManyRequests, post("10.9.9.9, 203.0.113.7"), "only the hop the proxy appended counts")
}

func TestRouter_Health(t *testing.T) {
	healthy := newStack(t, map[ratelimit.Scope]int{ratelimit.ScopeRedirect: 1}, map[string]httphandler.Check{
		"database": func(context.Context) error { return nil },
	})
	assert.Equal(t, http.StatusOK, healthy.do(http.MethodGet, "/healthz", nil, nil).Code)
	assert.Equal(t, http.StatusOK, healthy.do(http.MethodGet, "/readyz", nil, nil).Code)
	assert.Equal(t, http.StatusOK, healthy.do(http.MethodGet, "/readyz", nil, nil).Code, "health checks are not rate limited")

	degraded := newStack(t, nil, map[string]httphandler.Check{
		"database": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return errors.New("dial tcp: refused") },
	})
	rr := degraded.do(http.MethodGet, "/readyz", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "unavailable", body.Status)
	assert.Equal(t, "ok", body.Checks["database"])
	assert.Equal(t, "unavailable", body.Checks["redis"])
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token, "Content-Type": "application/json"}
}

func TestRouter_PanickingHandler_Returns500AndKeepsServing(t *testing.T) {
	s := newStack(t, nil, map[string]httphandler.Check{
		"database": func(context.Context) error { panic("driver bug") },
	})

	assert.Equal(t, http.StatusInternalServerError, s.do(http.MethodGet, "/readyz", nil, nil).Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/healthz", nil, nil).Code)
}

func TestRouter_Internal_RequiresOperatorToken(t *testing.T) {
	s := newStack(t, nil, nil)
	body := []byte(`{"codes":["abc"]}`)

	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodPost, "/internal/v1/cache/invalidate", body, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodPost, "/internal/v1/cache/invalidate", body, bearer("wrong")).Code)
	assert.Equal(t, http.StatusNoContent, s.do(http.MethodPost, "/internal/v1/cache/invalidate", body, bearer(operatorToken)).Code)
}

func TestRouter_Internal_InvalidateValidatesCodes(t *testing.T) {
	s := newStack(t, nil, nil)

	rr := s.do(http.MethodPost, "/internal/v1/cache/invalidate", []byte(`{"codes":[]}`), bearer(operatorToken))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = s.do(http.MethodPost, "/internal/v1/cache/invalidate", []byte(`{not json`), bearer(operatorToken))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRouter_Internal_EmitEvent(t *testing.T) {
	s := newStack(t, nil, nil)

	rr := s.do(http.MethodPost, "/internal/v1/events",
		[]byte(`{"type":"link.created","org_id":"org_1","data":{"short_code":"abc"}}`), bearer(operatorToken))
	require.Equal(t, http.StatusAccepted, rr.Code)
	events := s.emitter.all()
	require.Len(t, events, 1)
	assert.Equal(t, "org_1", events[0].orgID)
	assert.Equal(t, webhook.EventLinkCreated, events[0].typ)
	assert.Equal(t, "abc", events[0].data["short_code"])

	for _, body := range []string{
		`{"type":"click.recorded","org_id":"org_1"}`,
		`{"type":"link.exploded","org_id":"org_1"}`,
		`{"type":"link.deleted"}`,
	} {
		rr := s.do(http.MethodPost, "/internal/v1/events", []byte(body), bearer(operatorToken))
		assert.Equal(t, http.StatusBadRequest, rr.Code, body)
		assert.True(t, strings.Contains(rr.Body.String(), "validation-error"), body)
	}
	assert.Len(t, s.emitter.all(), 1)
}

func TestRouter_Internal_AnalyticsSummaryAfterRedirect(t *testing.T) {
	s := newStack(t, nil, nil)
	linkID := s.seed(t, "abc123", "https://example.com")

	require.Equal(t, http.StatusFound, s.do(http.MethodGet, "/abc123", nil, map[string]string{
		"User-Agent": "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X)",
	}).Code)
	require.Eventually(t, func() bool {
		n, err := s.clicks.CountByLink(context.Background(), linkID)
		return err == nil && n == 1
	}, 2*time.Second, 10*time.Millisecond)

	path := "/internal/v1/links/" + strconv.FormatInt(linkID, 10) + "/summary"
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, path, nil, nil).Code)

	rr := s.do(http.MethodGet, path, nil, bearer(operatorToken))
	require.Equal(t, http.StatusOK, rr.Code)
	var summary struct {
		TotalClicks int64 `json:"total_clicks"`
		Countries   []struct {
			Value      string `json:"value"`
			Percentage string `json:"percentage"`
		} `json:"countries"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &summary))
	assert.Equal(t, int64(1), summary.TotalClicks)
	require.Len(t, summary.Countries, 1)
	assert.Equal(t, "unknown", summary.Countries[0].Value)
	assert.Equal(t, "100.0%", summary.Countries[0].Percentage)
}

func TestRouter_Internal_RegisterEndpoint(t *testing.T) {
	s := newStack(t, nil, nil)

	rr := s.do(http.MethodPost, "/internal/v1/webhooks",
		[]byte(`{"org_id":"org_1","url":"https://hooks.example.com/in","secret":"whsec","events":["click.recorded"]}`),
		bearer(operatorToken))
	require.Equal(t, http.StatusCreated, rr.Code)
	var created struct {
		ID     string   `json:"id"`
		OrgID  string   `json:"org_id"`
		Events []string `json:"events"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "org_1", created.OrgID)
	assert.Equal(t, []string{"click.recorded"}, created.Events)

	subscribed, err := webhooksql.NewEndpointRepository(s.drv).ListSubscribed(context.Background(), "org_1", webhook.EventClickRecorded)
	require.NoError(t, err)
	require.Len(t, subscribed, 1)
	assert.Equal(t, created.ID, subscribed[0].ID)

	rr = s.do(http.MethodPost, "/internal/v1/webhooks",
		[]byte(`{"org_id":"org_1","url":"ftp://hooks.example.com","events":["link.exploded"]}`),
		bearer(operatorToken))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
