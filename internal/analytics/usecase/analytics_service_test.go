package usecase_test

import (
	"context"
	"errors"
	"testing"

	"go-shortlink/internal/analytics/domain"
	"go-shortlink/internal/analytics/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	total    int64
	groups   map[domain.Dimension][]domain.GroupCount
	facts    []domain.ClickFact
	countErr error
	groupErr error
	limit    int
}

func (f *fakeRepo) CountByLink(context.Context, int64) (int64, error) { return f.total, f.countErr }

func (f *fakeRepo) CountBy(_ context.Context, _ int64, dim domain.Dimension) ([]domain.GroupCount, error) {
	return f.groups[dim], f.groupErr
}

func (f *fakeRepo) FindByLink(_ context.Context, _ int64, limit int) ([]domain.ClickFact, error) {
	f.limit = limit
	return f.facts, nil
}

type counter int64

func (c counter) ClickCount(context.Context, int64) (int64, error) { return int64(c), nil }

func TestGetAnalyticsSummary_ComputesPercentages(t *testing.T) {
	repo := &fakeRepo{
		total: 4,
		groups: map[domain.Dimension][]domain.GroupCount{
			domain.DimensionCountry: {{Value: "DE", Count: 3}, {Value: "US", Count: 1}},
			domain.DimensionDevice:  {{Value: "mobile", Count: 4}},
		},
	}
	service := usecase.NewAnalyticsService(repo, counter(5))

	summary, err := service.GetAnalyticsSummary(context.Background(), 7)

	require.NoError(t, err)
	assert.Equal(t, int64(7), summary.LinkID)
	assert.Equal(t, int64(4), summary.TotalClicks)
	assert.Equal(t, int64(5), summary.Counter)
	require.Len(t, summary.Countries, 2)
	assert.InDelta(t, 75.0, summary.Countries[0].Percentage, 1e-9)
	assert.InDelta(t, 25.0, summary.Countries[1].Percentage, 1e-9)
	assert.InDelta(t, 100.0, summary.DeviceTypes[0].Percentage, 1e-9)
	assert.Empty(t, summary.TrafficSources)
}

func TestGetAnalyticsSummary_NoClicks_ReturnsZeroSummary(t *testing.T) {
	service := usecase.NewAnalyticsService(&fakeRepo{}, counter(0))

	summary, err := service.GetAnalyticsSummary(context.Background(), 7)

	require.NoError(t, err)
	assert.Zero(t, summary.TotalClicks)
	assert.Empty(t, summary.Countries)
}

func TestGetAnalyticsSummary_RepositoryError_IsReturned(t *testing.T) {
	repoErr := errors.New("database error")

	_, err := usecase.NewAnalyticsService(&fakeRepo{countErr: repoErr}, counter(0)).
		GetAnalyticsSummary(context.Background(), 7)
	assert.ErrorIs(t, err, repoErr)

	_, err = usecase.NewAnalyticsService(&fakeRepo{total: 1, groupErr: repoErr}, counter(1)).
		GetAnalyticsSummary(context.Background(), 7)
	assert.ErrorIs(t, err, repoErr)
}

func TestGetClickDetails_PassesLimit(t *testing.T) {
	repo := &fakeRepo{facts: []domain.ClickFact{{ID: "c1"}}}
	service := usecase.NewAnalyticsService(repo, counter(1))

	facts, err := service.GetClickDetails(context.Background(), 7, 25)

	require.NoError(t, err)
	assert.Len(t, facts, 1)
	assert.Equal(t, 25, repo.limit)
}
