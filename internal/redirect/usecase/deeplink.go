package usecase

import (
	"net/http"

	"go-shortlink/internal/redirect/domain"

	ua "github.com/mileusna/useragent"
	"go.uber.org/zap"
)

type platform int

const (
	platformOther platform = iota
	platformIOS
	platformAndroid
)

func detectPlatform(userAgent string) platform {
	if userAgent == "" {
		return platformOther
	}
	switch ua.Parse(userAgent).OS {
	case ua.IOS:
		return platformIOS
	case ua.Android:
		return platformAndroid
	default:
		return platformOther
	}
}

// deepLinkOutcome returns an interstitial for mobile clients of a link with
// deep linking configured, and nil when a plain redirect should be used.
func (r *Resolver) deepLinkOutcome(link *domain.ResolvedLink, userAgent, destination string) *Outcome {
	if !link.DeepLinkEnabled || link.DeepLinkURL == "" {
		return nil
	}

	var fallback string
	switch detectPlatform(userAgent) {
	case platformIOS:
		fallback = link.IOSFallbackURL
	case platformAndroid:
		fallback = link.AndroidFallbackURL
	default:
		return nil
	}

	if err := validateAppLink(link.DeepLinkURL); err != nil {
		r.logger.Warn("deep link rejected, redirecting instead", zap.Int64("link_id", link.ID), zap.Error(err))
		return nil
	}
	if fallback == "" || validateDestination(fallback) != nil {
		fallback = destination
	}

	return &Outcome{
		Kind:            KindDeepLinkInterstitial,
		URL:             destination,
		StatusCode:      http.StatusOK,
		DeepLinkURL:     link.DeepLinkURL,
		FallbackURL:     fallback,
		FallbackTimeout: r.cfg.DeepLinkTimeout,
	}
}
