package service

import (
	"context"

	"github.com/supportlens/supportlens/internal/telemetry"
)

// CategoryCount is one entry of the top-categories breakdown.
type CategoryCount struct {
	Category string
	Count    int
}

// SentimentStats counts tickets per analyzed sentiment.
type SentimentStats struct {
	Positive int
	Negative int
	Neutral  int
}

// TicketStats aggregates the dashboard numbers over all tickets.
type TicketStats struct {
	TotalTickets    int
	OpenTickets     int
	ClosedTickets   int
	AvgUrgencyScore float64
	Sentiment       SentimentStats
	TopCategories   []CategoryCount
}

// AnalyticsRepositoryInterface defines the aggregate query for ticket stats.
type AnalyticsRepositoryInterface interface {
	TicketStats(ctx context.Context) (*TicketStats, error)
}

// AnalyticsService exposes aggregate ticket statistics.
type AnalyticsService struct {
	repo AnalyticsRepositoryInterface
}

// NewAnalyticsService creates a new AnalyticsService instance
func NewAnalyticsService(repo AnalyticsRepositoryInterface) *AnalyticsService {
	return &AnalyticsService{repo: repo}
}

// Stats returns aggregate ticket statistics.
func (s *AnalyticsService) Stats(ctx context.Context) (*TicketStats, error) {
	ctx, span := telemetry.StartSpan(ctx, "AnalyticsService.Stats", telemetry.SpanAttributes{
		Operation: "stats",
	})
	defer span.End()

	return s.repo.TicketStats(ctx)
}
