package http

import (
	"encoding/json"
	"fmt"
	"net/http"

	"go-shortlink/pkg/problemdetails"
)

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeProblem(w http.ResponseWriter, r *http.Request, problem *problemdetails.ProblemDetail) {
	problemdetails.Write(w, problem.WithInstance(r.URL.Path))
}

// BreakdownResponse represents a single breakdown item with count and percentage
type BreakdownResponse struct {
	Value      string `json:"value"`
	Count      int64  `json:"count"`
	Percentage string `json:"percentage"` // "58.3%"
}

// AnalyticsSummaryResponse holds summary analytics with breakdowns
type AnalyticsSummaryResponse struct {
	LinkID         int64               `json:"link_id"`
	TotalClicks    int64               `json:"total_clicks"`
	ClickCounter   int64               `json:"click_counter"`
	Countries      []BreakdownResponse `json:"countries"`
	DeviceTypes    []BreakdownResponse `json:"device_types"`
	TrafficSources []BreakdownResponse `json:"traffic_sources"`
}

type ClickDetailResponse struct {
	ID          string `json:"id"`
	OccurredAt  string `json:"occurred_at"`
	IP          string `json:"ip,omitempty"`
	CountryCode string `json:"country_code,omitempty"`
	City        string `json:"city,omitempty"`
	DeviceType  string `json:"device_type,omitempty"`
	Source      string `json:"source,omitempty"`
	Referer     string `json:"referer,omitempty"`
}

type ClickListResponse struct {
	LinkID int64                 `json:"link_id"`
	Clicks []ClickDetailResponse `json:"clicks"`
}

// formatPercentage formats a float percentage to "XX.X%" format
func formatPercentage(value float64) string {
	return fmt.Sprintf("%.1f%%", value)
}
