package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"go-shortlink/internal/analytics/domain"
	"go-shortlink/internal/analytics/usecase"
	"go-shortlink/pkg/problemdetails"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// AnalyticsService is the read model the handler serves.
type AnalyticsService interface {
	GetAnalyticsSummary(ctx context.Context, linkID int64) (*usecase.Summary, error)
	GetClickDetails(ctx context.Context, linkID int64, limit int) ([]domain.ClickFact, error)
}

type Handler struct {
	analyticsService AnalyticsService
	logger           *zap.Logger
}

func NewHandler(analyticsService AnalyticsService, logger *zap.Logger) *Handler {
	return &Handler{
		analyticsService: analyticsService,
		logger:           logger,
	}
}

// Routes mounts the analytics endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/links/{id}/summary", h.GetAnalyticsSummary)
	r.Get("/links/{id}/clicks", h.GetClickDetails)
}

// GetAnalyticsSummary handles GET /links/{id}/summary
func (h *Handler) GetAnalyticsSummary(w http.ResponseWriter, r *http.Request) {
	linkID, ok := parseLinkID(w, r)
	if !ok {
		return
	}

	summary, err := h.analyticsService.GetAnalyticsSummary(r.Context(), linkID)
	if err != nil {
		h.logger.Error("failed to build analytics summary", zap.Int64("link_id", linkID), zap.Error(err))
		writeProblem(w, r, problemdetails.New(
			http.StatusInternalServerError,
			problemdetails.TypeInternalError,
			"Internal Server Error",
			"Failed to retrieve analytics summary",
		))
		return
	}

	// zero clicks is a 200 with zero totals, not a 404
	writeJSON(w, http.StatusOK, convertToSummaryResponse(summary))
}

// GetClickDetails handles GET /links/{id}/clicks
func (h *Handler) GetClickDetails(w http.ResponseWriter, r *http.Request) {
	linkID, ok := parseLinkID(w, r)
	if !ok {
		return
	}
	limit := parseLimit(r.URL.Query().Get("limit"))

	facts, err := h.analyticsService.GetClickDetails(r.Context(), linkID, limit)
	if err != nil {
		h.logger.Error("failed to list clicks", zap.Int64("link_id", linkID), zap.Error(err))
		writeProblem(w, r, problemdetails.New(
			http.StatusInternalServerError,
			problemdetails.TypeInternalError,
			"Internal Server Error",
			"Failed to retrieve click details",
		))
		return
	}

	writeJSON(w, http.StatusOK, &ClickListResponse{
		LinkID: linkID,
		Clicks: lo.Map(facts, func(f domain.ClickFact, _ int) ClickDetailResponse {
			return ClickDetailResponse{
				ID:          f.ID,
				OccurredAt:  f.OccurredAt.UTC().Format(time.RFC3339),
				IP:          f.IP,
				CountryCode: f.CountryCode,
				City:        f.City,
				DeviceType:  f.Device,
				Source:      f.Source,
				Referer:     f.Referer,
			}
		}),
	})
}

func parseLinkID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeProblem(w, r, problemdetails.NewValidation([]problemdetails.FieldError{
			{Field: "id", Message: "must be a positive integer"},
		}))
		return 0, false
	}
	return id, true
}

// parseLimit parses the limit query parameter
func parseLimit(limitStr string) int {
	if limitStr == "" {
		return 20 // Default
	}

	limit, err := strconv.Atoi(limitStr)
	if err != nil {
		return 20
	}

	// Clamp to 1-100
	if limit < 1 {
		return 1
	}
	if limit > 100 {
		return 100
	}

	return limit
}

func convertToSummaryResponse(summary *usecase.Summary) *AnalyticsSummaryResponse {
	return &AnalyticsSummaryResponse{
		LinkID:         summary.LinkID,
		TotalClicks:    summary.TotalClicks,
		ClickCounter:   summary.Counter,
		Countries:      convertBreakdownItems(summary.Countries),
		DeviceTypes:    convertBreakdownItems(summary.DeviceTypes),
		TrafficSources: convertBreakdownItems(summary.TrafficSources),
	}
}

func convertBreakdownItems(items []usecase.BreakdownItem) []BreakdownResponse {
	resp := make([]BreakdownResponse, len(items))
	for i, item := range items {
		resp[i] = BreakdownResponse{
			Value:      item.Value,
			Count:      item.Count,
			Percentage: formatPercentage(item.Percentage),
		}
	}
	return resp
}
