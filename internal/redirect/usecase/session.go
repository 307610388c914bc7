package usecase

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SessionProof is the signed cookie granting access to one password
// protected link until ExpiresAt.
type SessionProof struct {
	Name      string
	Value     string
	ExpiresAt time.Time
	MaxAge    int
}

// SessionSigner issues and verifies "<expMs>.<base64url(hmac)>" proofs where
// the MAC covers "<linkID>.<expMs>".
type SessionSigner struct {
	secret []byte
	prefix string
	ttl    time.Duration
}

// NewSessionSigner falls back to a random per-process secret when secret is
// empty, so proofs do not survive a restart.
func NewSessionSigner(secret, prefix string, ttl time.Duration) (*SessionSigner, error) {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generate session secret: %w", err)
		}
	}
	if prefix == "" {
		prefix = "sl"
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SessionSigner{secret: key, prefix: prefix, ttl: ttl}, nil
}

func (s *SessionSigner) CookieName(linkID int64) string {
	return s.prefix + "_pw_" + strconv.FormatInt(linkID, 10)
}

func (s *SessionSigner) mac(linkID, expMs int64) string {
	h := hmac.New(sha256.New, s.secret)
	fmt.Fprintf(h, "%d.%d", linkID, expMs)
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}

func (s *SessionSigner) Issue(linkID int64, now time.Time) *SessionProof {
	exp := now.Add(s.ttl)
	expMs := exp.UnixMilli()
	return &SessionProof{
		Name:      s.CookieName(linkID),
		Value:     strconv.FormatInt(expMs, 10) + "." + s.mac(linkID, expMs),
		ExpiresAt: time.UnixMilli(expMs),
		MaxAge:    int(s.ttl / time.Second),
	}
}

// Verify reports whether value is an unexpired proof for linkID.
func (s *SessionSigner) Verify(linkID int64, value string, now time.Time) bool {
	expPart, sig, ok := strings.Cut(value, ".")
	if !ok || sig == "" {
		return false
	}
	expMs, err := strconv.ParseInt(expPart, 10, 64)
	if err != nil || now.UnixMilli() >= expMs {
		return false
	}
	return hmac.Equal([]byte(sig), []byte(s.mac(linkID, expMs)))
}
