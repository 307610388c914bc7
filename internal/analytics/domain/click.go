package domain

import (
	"errors"
	"time"
)

var ErrInvalidClick = errors.New("invalid click")

// maxHeaderLength bounds free-form request headers stored with a click.
const maxHeaderLength = 500

// ClickInput is what the redirect path hands to the pipeline. It carries the
// raw client IP; anonymisation happens after geo lookup.
type ClickInput struct {
	LinkID          int64     `json:"link_id"`
	OrgID           string    `json:"org_id,omitempty"`
	ShortCode       string    `json:"short_code,omitempty"`
	IP              string    `json:"ip"`
	UserAgent       string    `json:"user_agent,omitempty"`
	Referer         string    `json:"referer,omitempty"`
	IPAnonymization bool      `json:"ip_anonymization"`
	OccurredAt      time.Time `json:"occurred_at"`
}

// Normalize truncates oversized headers and stamps a missing timestamp.
func (in *ClickInput) Normalize(now time.Time) {
	in.UserAgent = truncate(in.UserAgent, maxHeaderLength)
	in.Referer = truncate(in.Referer, maxHeaderLength)
	if in.OccurredAt.IsZero() {
		in.OccurredAt = now.UTC()
	}
}

func (in *ClickInput) Validate() error {
	if in.LinkID <= 0 {
		return ErrInvalidClick
	}
	return nil
}

// ClickFact is the persisted, write-once click record.
type ClickFact struct {
	ID          string
	LinkID      int64
	IP          string
	Referer     string
	UserAgent   string
	Device      string
	Source      string
	CountryCode string
	CountryName string
	Region      string
	City        string
	Latitude    *float64
	Longitude   *float64
	OccurredAt  time.Time
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	// avoid splitting a multi-byte rune
	for n > 0 && s[n]&0xC0 == 0x80 {
		n--
	}
	return s[:n]
}
