// Package usecase answers operator questions about recorded clicks.
package usecase

import (
	"context"
	"fmt"

	"go-shortlink/internal/analytics/domain"
)

// BreakdownItem is one group of a breakdown with its share of all clicks.
type BreakdownItem struct {
	Value      string
	Count      int64
	Percentage float64
}

// Summary aggregates a link's clicks. TotalClicks counts persisted facts;
// Counter is the link's own counter, which may trail or lead it slightly.
type Summary struct {
	LinkID         int64
	TotalClicks    int64
	Counter        int64
	Countries      []BreakdownItem
	DeviceTypes    []BreakdownItem
	TrafficSources []BreakdownItem
}

type AnalyticsService struct {
	repo  ClickRepository
	links LinkCounter
}

func NewAnalyticsService(repo ClickRepository, links LinkCounter) *AnalyticsService {
	return &AnalyticsService{repo: repo, links: links}
}

// GetAnalyticsSummary returns totals and per-dimension breakdowns. A link
// with no clicks yields a zero summary, not an error.
func (s *AnalyticsService) GetAnalyticsSummary(ctx context.Context, linkID int64) (*Summary, error) {
	total, err := s.repo.CountByLink(ctx, linkID)
	if err != nil {
		return nil, err
	}
	counter, err := s.links.ClickCount(ctx, linkID)
	if err != nil {
		return nil, err
	}

	summary := &Summary{LinkID: linkID, TotalClicks: total, Counter: counter}
	for _, b := range []struct {
		dim domain.Dimension
		dst *[]BreakdownItem
	}{
		{domain.DimensionCountry, &summary.Countries},
		{domain.DimensionDevice, &summary.DeviceTypes},
		{domain.DimensionSource, &summary.TrafficSources},
	} {
		groups, err := s.repo.CountBy(ctx, linkID, b.dim)
		if err != nil {
			return nil, fmt.Errorf("breakdown by %s: %w", b.dim, err)
		}
		*b.dst = breakdown(groups, total)
	}
	return summary, nil
}

// GetClickDetails returns up to limit click facts, oldest first.
func (s *AnalyticsService) GetClickDetails(ctx context.Context, linkID int64, limit int) ([]domain.ClickFact, error) {
	return s.repo.FindByLink(ctx, linkID, limit)
}

func breakdown(groups []domain.GroupCount, total int64) []BreakdownItem {
	items := make([]BreakdownItem, len(groups))
	for i, g := range groups {
		items[i] = BreakdownItem{Value: g.Value, Count: g.Count}
		if total > 0 {
			items[i].Percentage = float64(g.Count) * 100 / float64(total)
		}
	}
	return items
}
