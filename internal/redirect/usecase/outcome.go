package usecase

import (
	"net/http"
	"time"
)

type Kind int

const (
	KindRedirect Kind = iota + 1
	KindPasswordRequired
	KindDeepLinkInterstitial
	KindGone
	KindNotFound
	KindBadDestination
)

func (k Kind) String() string {
	switch k {
	case KindRedirect:
		return "redirect"
	case KindPasswordRequired:
		return "password_required"
	case KindDeepLinkInterstitial:
		return "deep_link_interstitial"
	case KindGone:
		return "gone"
	case KindNotFound:
		return "not_found"
	case KindBadDestination:
		return "bad_destination"
	default:
		return "unknown"
	}
}

type GoneReason string

const (
	GoneExpired GoneReason = "expired"
	GonePaused  GoneReason = "paused"
)

// RequestContext is what the resolver needs from the inbound request.
type RequestContext struct {
	ClientIP  string
	UserAgent string
	Referer   string
	// Password is only meaningful when PasswordSubmitted is set.
	Password          string
	PasswordSubmitted bool
	// Cookie returns the named cookie's value or "".
	Cookie func(name string) string
}

func (rc RequestContext) cookie(name string) string {
	if rc.Cookie == nil {
		return ""
	}
	return rc.Cookie(name)
}

// Outcome is the resolver's decision. Which fields are set depends on Kind.
type Outcome struct {
	Kind       Kind
	URL        string
	StatusCode int
	ShortCode  string

	InvalidAttempt bool
	GoneReason     GoneReason

	DeepLinkURL     string
	FallbackURL     string
	FallbackTimeout time.Duration

	// NewSession is set when a correct password was submitted.
	NewSession *SessionProof
}

func redirectTo(url string, session *SessionProof) *Outcome {
	return &Outcome{Kind: KindRedirect, URL: url, StatusCode: http.StatusFound, NewSession: session}
}
