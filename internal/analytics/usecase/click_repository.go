package usecase

import (
	"context"

	"go-shortlink/internal/analytics/domain"
)

// ClickRepository is the read side of the click store.
type ClickRepository interface {
	// CountByLink returns the number of persisted click facts.
	CountByLink(ctx context.Context, linkID int64) (int64, error)
	// CountBy groups a link's clicks by one dimension, largest first.
	CountBy(ctx context.Context, linkID int64, dim domain.Dimension) ([]domain.GroupCount, error)
	// FindByLink returns up to limit facts, oldest first.
	FindByLink(ctx context.Context, linkID int64, limit int) ([]domain.ClickFact, error)
}

// LinkCounter reads the aggregate counter kept on the link row.
type LinkCounter interface {
	ClickCount(ctx context.Context, linkID int64) (int64, error)
}
