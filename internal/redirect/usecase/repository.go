package usecase

import (
	"context"

	analytics "go-shortlink/internal/analytics/domain"
	"go-shortlink/internal/redirect/domain"
)

// LinkStore is the authoritative source consulted on a cache miss.
type LinkStore interface {
	// FindByShortCode returns domain.ErrLinkNotFound for unknown codes.
	FindByShortCode(ctx context.Context, code string) (*domain.ResolvedLink, error)
}

// ClickEnqueuer hands clicks to the analytics pipeline.
type ClickEnqueuer interface {
	Enqueue(ctx context.Context, in analytics.ClickInput) error
}
