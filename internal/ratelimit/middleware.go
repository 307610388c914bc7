package ratelimit

import (
	"crypto/subtle"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"go-shortlink/pkg/problemdetails"
)

// BypassHeader carries the operator credential that skips limiting.
const BypassHeader = "X-RateLimit-Bypass"

// KeyFunc extracts the bucket key from a request. An empty key skips the rule.
type KeyFunc func(r *http.Request) string

// Rule applies one scope to a request.
type Rule struct {
	Scope Scope
	Key   KeyFunc
}

// ClientIP returns the request's client address without port. Run RealIP
// first so trusted proxies are accounted for.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func ByIP(r *http.Request) string {
	return ClientIP(r)
}

// ByHeader keys on an identity header set by the upstream gateway.
func ByHeader(name string) KeyFunc {
	return func(r *http.Request) string {
		return r.Header.Get(name)
	}
}

// AuthKey combines an auth subject with the client IP.
func AuthKey(subject, ip string) string {
	return subject + ":" + ip
}

// ByAuthAttempt keys password attempts on subject and client IP.
func ByAuthAttempt(subject KeyFunc) KeyFunc {
	return func(r *http.Request) string {
		s := subject(r)
		if s == "" {
			return ""
		}
		return AuthKey(s, ClientIP(r))
	}
}

func constantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Middleware enforces the rules in order; the most constrained result is
// reported in the X-RateLimit-* headers. Rules after the first denial are not
// consumed, so rejected traffic does not drain the remaining scopes.
func (l *Limiter) Middleware(rules ...Rule) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if l.Bypass(r.Header.Get(BypassHeader)) {
				next.ServeHTTP(w, r)
				return
			}

			var (
				reported *Result
				denied   *Result
			)
			for _, rule := range rules {
				key := rule.Key(r)
				if key == "" {
					continue
				}
				res := l.Consume(r.Context(), rule.Scope, key)
				if res.Limit <= 0 {
					continue
				}
				if !res.Allowed {
					denied = &res
					break
				}
				if reported == nil || res.Remaining < reported.Remaining {
					reported = &res
				}
			}

			if denied != nil {
				writeHeaders(w, *denied)
				w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(denied.RetryAfter)))
				problemdetails.Write(w, problemdetails.New(
					http.StatusTooManyRequests,
					problemdetails.TypeRateLimitExceeded,
					"Rate Limit Exceeded",
					"Too many requests. Please try again later.",
				).WithInstance(r.URL.Path))
				return
			}
			if reported != nil {
				writeHeaders(w, *reported)
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeHeaders(w http.ResponseWriter, res Result) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))
}

func retryAfterSeconds(d time.Duration) int {
	return max(1, int(math.Ceil(d.Seconds())))
}
