package usecase

import (
	"fmt"
	"net/url"
	"strings"

	"go-shortlink/internal/redirect/domain"
)

const maxURLLength = 2048

// validateDestination only lets absolute http(s) URLs with a host through.
func validateDestination(raw string) error {
	if raw == "" || len(raw) > maxURLLength {
		return fmt.Errorf("%w: empty or too long", domain.ErrInvalidDestination)
	}
	u, err := url.ParseRequestURI(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidDestination, err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return fmt.Errorf("%w: scheme %q", domain.ErrInvalidDestination, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: missing host", domain.ErrInvalidDestination)
	}
	return nil
}

// validateAppLink accepts custom app schemes but never script-capable ones.
func validateAppLink(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		return fmt.Errorf("%w: app link %q", domain.ErrInvalidDestination, raw)
	}
	switch strings.ToLower(u.Scheme) {
	case "javascript", "data", "vbscript", "file":
		return fmt.Errorf("%w: scheme %q", domain.ErrInvalidDestination, u.Scheme)
	}
	return nil
}
