// Package ratelimit implements per-scope token buckets backed by Redis with
// an in-process fallback.
package ratelimit

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Scope names an independent budget.
type Scope string

const (
	ScopeIP       Scope = "ip"
	ScopeRedirect Scope = "redirect"
	ScopeUser     Scope = "user"
	ScopeOrg      Scope = "org"
	ScopeAuth     Scope = "auth"
)

// Budget is the bucket capacity and the window over which it refills.
// A Limit of zero or less disables limiting.
type Budget struct {
	Limit  int
	Window time.Duration
}

// Result describes the bucket after one consume.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

// Store takes one token from the bucket under key.
type Store interface {
	Take(ctx context.Context, key string, budget Budget, now time.Time) (Result, error)
}

type Config struct {
	Window  time.Duration
	Budgets map[Scope]int
	// BypassToken, when set, lets requests carrying it skip limiting.
	BypassToken string
	// StoreTimeout bounds each shared-store round trip.
	StoreTimeout time.Duration
}

// Limiter consumes from the shared store and falls back to local buckets
// whenever the store errors.
type Limiter struct {
	cfg      Config
	store    Store
	fallback *LocalStore
	orgs     OrgSettingsProvider
	logger   *zap.Logger
	now      func() time.Time
}

// NewLimiter creates a limiter. A nil store limits in-process only; a nil
// orgs provider leaves ScopeOrg on its configured budget.
func NewLimiter(cfg Config, store Store, orgs OrgSettingsProvider, logger *zap.Logger) *Limiter {
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = 100 * time.Millisecond
	}
	return &Limiter{
		cfg:      cfg,
		store:    store,
		fallback: NewLocalStore(),
		orgs:     orgs,
		logger:   logger,
		now:      time.Now,
	}
}

// SetClock replaces the time source.
func (l *Limiter) SetClock(now func() time.Time) {
	l.now = now
}

func storeKey(scope Scope, key string) string {
	return "ratelimit:" + string(scope) + ":" + key
}

// Consume takes one token for key in scope. Store failures are logged and
// answered from the in-process bucket.
func (l *Limiter) Consume(ctx context.Context, scope Scope, key string) Result {
	now := l.now()
	budget := l.budget(ctx, scope, key)
	if budget.Limit <= 0 {
		return Result{Allowed: true}
	}

	fullKey := storeKey(scope, key)
	if l.store != nil {
		storeCtx, cancel := context.WithTimeout(ctx, l.cfg.StoreTimeout)
		res, err := l.store.Take(storeCtx, fullKey, budget, now)
		cancel()
		if err == nil {
			return res
		}
		l.logger.Warn("rate limit store unavailable, using local bucket",
			zap.String("scope", string(scope)),
			zap.Error(err),
		)
	}

	res, _ := l.fallback.Take(ctx, fullKey, budget, now)
	return res
}

func (l *Limiter) budget(ctx context.Context, scope Scope, key string) Budget {
	b := Budget{Limit: l.cfg.Budgets[scope], Window: l.cfg.Window}
	if scope != ScopeOrg || l.orgs == nil {
		return b
	}

	settings, err := l.orgs.Settings(ctx, key)
	if err != nil {
		l.logger.Warn("org settings unavailable, using default org budget",
			zap.String("org_id", key),
			zap.Error(err),
		)
		return b
	}
	// plan budgets are expressed per minute
	return Budget{Limit: settings.RateLimitPerMinute, Window: time.Minute}
}

// Bypass reports whether token matches the operator bypass credential.
func (l *Limiter) Bypass(token string) bool {
	return l.cfg.BypassToken != "" && token != "" && constantTimeEqual(token, l.cfg.BypassToken)
}
