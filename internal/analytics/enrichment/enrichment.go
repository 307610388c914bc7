// Package enrichment derives device and traffic-source labels for clicks.
package enrichment

import (
	"net/url"
	"strings"

	ua "github.com/mileusna/useragent"
	"github.com/samber/lo"
)

const (
	DeviceBot     = "bot"
	DeviceTablet  = "tablet"
	DeviceMobile  = "mobile"
	DeviceDesktop = "desktop"
	DeviceUnknown = "unknown"

	SourceDirect   = "direct"
	SourceSearch   = "search"
	SourceSocial   = "social"
	SourceAI       = "ai"
	SourceReferral = "referral"
)

var sourceDomains = []struct {
	source  string
	domains []string
}{
	{SourceAI, []string{"chatgpt.com", "claude.ai", "gemini.google.com", "perplexity.ai", "copilot.microsoft.com"}},
	{SourceSearch, []string{"google.com", "bing.com", "yahoo.com", "duckduckgo.com", "baidu.com", "yandex.ru", "ecosia.org"}},
	{SourceSocial, []string{
		"facebook.com", "twitter.com", "x.com", "t.co", "instagram.com", "linkedin.com", "pinterest.com",
		"reddit.com", "tiktok.com", "youtube.com", "threads.net", "mastodon.social",
	}},
}

// Device classifies a User-Agent. Bots are checked first so crawlers that
// claim a mobile platform are still counted as bots.
func Device(userAgent string) string {
	if userAgent == "" {
		return DeviceUnknown
	}
	parsed := ua.Parse(userAgent)
	switch {
	case parsed.Bot:
		return DeviceBot
	case parsed.Tablet:
		return DeviceTablet
	case parsed.Mobile:
		return DeviceMobile
	case parsed.Desktop:
		return DeviceDesktop
	default:
		return DeviceUnknown
	}
}

// Source classifies a Referer by host. More specific lists are matched
// first, so gemini.google.com is AI rather than search.
func Source(referer string) string {
	if referer == "" {
		return SourceDirect
	}
	parsed, err := url.Parse(referer)
	if err != nil || parsed.Hostname() == "" {
		return SourceDirect
	}
	host := strings.TrimPrefix(strings.ToLower(parsed.Hostname()), "www.")

	for _, group := range sourceDomains {
		matched := lo.ContainsBy(group.domains, func(domain string) bool {
			return host == domain || strings.HasSuffix(host, "."+domain)
		})
		if matched {
			return group.source
		}
	}
	return SourceReferral
}
