package handlers

import (
	"context"
	"net/http"

	"github.com/supportlens/supportlens/internal/api"
	"github.com/supportlens/supportlens/internal/service"
)

type AnalyticsServiceInterface interface {
	Stats(ctx context.Context) (*service.TicketStats, error)
}

type AnalyticsHandler struct {
	svc AnalyticsServiceInterface
}

func NewAnalyticsHandler(svc AnalyticsServiceInterface) *AnalyticsHandler {
	return &AnalyticsHandler{svc: svc}
}

type SentimentResponse struct {
	Positive int `json:"positive"`
	Negative int `json:"negative"`
	Neutral  int `json:"neutral"`
}

type CategoryCountResponse struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

type AnalyticsResponse struct {
	TotalTickets    int                     `json:"total_tickets"`
	OpenTickets     int                     `json:"open_tickets"`
	ClosedTickets   int                     `json:"closed_tickets"`
	AvgUrgencyScore float64                 `json:"avg_urgency_score"`
	Sentiment       SentimentResponse       `json:"sentiment"`
	TopCategories   []CategoryCountResponse `json:"top_categories"`
}

func (h *AnalyticsHandler) Get(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Stats(r.Context())
	if err != nil {
		api.HandleError(w, err)
		return
	}

	categories := make([]CategoryCountResponse, 0, len(stats.TopCategories))
	for _, c := range stats.TopCategories {
		categories = append(categories, CategoryCountResponse{
			Category: c.Category,
			Count:    c.Count,
		})
	}

	api.Success(w, http.StatusOK, &AnalyticsResponse{
		TotalTickets:    stats.TotalTickets,
		OpenTickets:     stats.OpenTickets,
		ClosedTickets:   stats.ClosedTickets,
		AvgUrgencyScore: stats.AvgUrgencyScore,
		Sentiment: SentimentResponse{
			Positive: stats.Sentiment.Positive,
			Negative: stats.Sentiment.Negative,
			Neutral:  stats.Sentiment.Neutral,
		},
		TopCategories: categories,
	})
}
