package domain

import "time"

// ResolvedLink is the read projection of a link the redirect path needs.
// It is the value stored in the link cache.
type ResolvedLink struct {
	ID                 int64      `json:"id"`
	ShortCode          string     `json:"short_code"`
	OrgID              string     `json:"org_id"`
	DestinationURL     string     `json:"destination_url"`
	ExpiresAt          *time.Time `json:"expires_at,omitempty"`
	Active             bool       `json:"active"`
	IPAnonymization    bool       `json:"ip_anonymization"`
	PasswordHash       string     `json:"password_hash,omitempty"`
	DeepLinkURL        string     `json:"deep_link_url,omitempty"`
	IOSFallbackURL     string     `json:"ios_fallback_url,omitempty"`
	AndroidFallbackURL string     `json:"android_fallback_url,omitempty"`
	DeepLinkEnabled    bool       `json:"deep_link_enabled"`
	Variants           []Variant  `json:"variants,omitempty"`
}

// Variant is one weighted A/B destination, kept in stored position order.
type Variant struct {
	DestinationURL string `json:"destination_url"`
	Weight         int    `json:"weight"`
	Active         bool   `json:"active"`
}

func (l *ResolvedLink) Expired(now time.Time) bool {
	return l.ExpiresAt != nil && now.After(*l.ExpiresAt)
}

func (l *ResolvedLink) PasswordProtected() bool {
	return l.PasswordHash != ""
}
