package usecase

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	analytics "go-shortlink/internal/analytics/domain"
	"go-shortlink/internal/redirect/cache"
	"go-shortlink/internal/redirect/domain"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type Config struct {
	CacheTTL        time.Duration
	DeepLinkTimeout time.Duration
	// EnqueueTimeout bounds the detached click enqueue.
	EnqueueTimeout time.Duration
}

// Resolver decides what a request for a short code gets: a redirect, a
// password prompt, a deep-link interstitial or an error outcome.
type Resolver struct {
	cfg      Config
	cache    cache.LinkCache
	store    LinkStore
	clicks   ClickEnqueuer
	sessions *SessionSigner
	logger   *zap.Logger

	now  func() time.Time
	intn func(int) int
}

func NewResolver(cfg Config, linkCache cache.LinkCache, store LinkStore, clicks ClickEnqueuer, sessions *SessionSigner, logger *zap.Logger) *Resolver {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Hour
	}
	if cfg.DeepLinkTimeout <= 0 {
		cfg.DeepLinkTimeout = 1500 * time.Millisecond
	}
	if cfg.EnqueueTimeout <= 0 {
		cfg.EnqueueTimeout = 5 * time.Second
	}
	return &Resolver{
		cfg:      cfg,
		cache:    linkCache,
		store:    store,
		clicks:   clicks,
		sessions: sessions,
		logger:   logger,
		now:      time.Now,
		intn:     rand.IntN,
	}
}

// SetClock replaces the time source. Tests only.
func (r *Resolver) SetClock(now func() time.Time) { r.now = now }

// SetRand replaces the variant draw. Tests only.
func (r *Resolver) SetRand(intn func(int) int) { r.intn = intn }

// SessionCookieName is the cookie a proof for linkID travels in.
func (r *Resolver) SessionCookieName(linkID int64) string {
	return r.sessions.CookieName(linkID)
}

// Resolve returns an error only when the authoritative store fails on a
// cache miss.
func (r *Resolver) Resolve(ctx context.Context, code string, req RequestContext) (*Outcome, error) {
	if code == "" {
		return &Outcome{Kind: KindNotFound}, nil
	}

	link, err := r.lookup(ctx, code)
	if errors.Is(err, domain.ErrLinkNotFound) {
		return &Outcome{Kind: KindNotFound, ShortCode: code}, nil
	}
	if err != nil {
		return nil, err
	}

	now := r.now()
	if !link.Active {
		return &Outcome{Kind: KindGone, ShortCode: code, GoneReason: GonePaused}, nil
	}
	if link.Expired(now) {
		return &Outcome{Kind: KindGone, ShortCode: code, GoneReason: GoneExpired}, nil
	}

	var session *SessionProof
	if link.PasswordProtected() {
		granted, proof := r.checkAccess(link, req, now)
		if !granted {
			return &Outcome{
				Kind:           KindPasswordRequired,
				ShortCode:      code,
				InvalidAttempt: req.PasswordSubmitted,
			}, nil
		}
		session = proof
	}

	r.recordClick(link, req, now)

	destination := pickDestination(link.DestinationURL, link.Variants, r.intn)
	if err := validateDestination(destination); err != nil {
		r.logger.Warn("refusing to redirect to invalid destination",
			zap.String("short_code", code), zap.Error(err))
		return &Outcome{Kind: KindBadDestination, ShortCode: code}, nil
	}

	if out := r.deepLinkOutcome(link, req.UserAgent, destination); out != nil {
		out.ShortCode = code
		out.NewSession = session
		return out, nil
	}

	out := redirectTo(destination, session)
	out.ShortCode = code
	return out, nil
}

// lookup is read-through: a miss loads from the store and fills the cache.
func (r *Resolver) lookup(ctx context.Context, code string) (*domain.ResolvedLink, error) {
	if link := r.cache.Get(ctx, code); link != nil {
		return link, nil
	}

	link, err := r.store.FindByShortCode(ctx, code)
	if err != nil {
		return nil, err
	}
	r.cache.Set(ctx, code, link, r.cfg.CacheTTL)
	return link, nil
}

// checkAccess accepts a valid session proof, else a correct submitted
// password, which earns a fresh proof.
func (r *Resolver) checkAccess(link *domain.ResolvedLink, req RequestContext, now time.Time) (bool, *SessionProof) {
	if value := req.cookie(r.sessions.CookieName(link.ID)); value != "" && r.sessions.Verify(link.ID, value, now) {
		return true, nil
	}
	if !req.PasswordSubmitted || req.Password == "" {
		return false, nil
	}
	if err := bcrypt.CompareHashAndPassword([]byte(link.PasswordHash), []byte(req.Password)); err != nil {
		return false, nil
	}
	return true, r.sessions.Issue(link.ID, now)
}

// recordClick enqueues on a detached goroutine; the response never waits.
func (r *Resolver) recordClick(link *domain.ResolvedLink, req RequestContext, now time.Time) {
	in := analytics.ClickInput{
		LinkID:          link.ID,
		OrgID:           link.OrgID,
		ShortCode:       link.ShortCode,
		IP:              req.ClientIP,
		UserAgent:       req.UserAgent,
		Referer:         req.Referer,
		IPAnonymization: link.IPAnonymization,
		OccurredAt:      now.UTC(),
	}

	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				r.logger.Error("click enqueue panicked", zap.Int64("link_id", in.LinkID), zap.Any("panic", rec))
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), r.cfg.EnqueueTimeout)
		defer cancel()
		if err := r.clicks.Enqueue(ctx, in); err != nil {
			r.logger.Warn("click enqueue failed", zap.Int64("link_id", in.LinkID), zap.Error(err))
		}
	}()
}
