package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/supportlens/supportlens/internal/domain"
	"github.com/supportlens/supportlens/internal/service"
)

// AnalyticsRepository answers the dashboard aggregates with SQL over the
// tickets table and its JSONB analysis column.
type AnalyticsRepository struct {
	pool *pgxpool.Pool
}

func NewAnalyticsRepository(pool *pgxpool.Pool) *AnalyticsRepository {
	return &AnalyticsRepository{pool: pool}
}

func (r *AnalyticsRepository) TicketStats(ctx context.Context) (*service.TicketStats, error) {
	stats := &service.TicketStats{
		TopCategories: []service.CategoryCount{},
	}

	var avgUrgency *float64
	err := r.pool.QueryRow(ctx,
		`SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = $1),
			COUNT(*) FILTER (WHERE status = $2),
			AVG((analysis->>'urgency_score')::numeric),
			COUNT(*) FILTER (WHERE analysis->>'sentiment' = $3),
			COUNT(*) FILTER (WHERE analysis->>'sentiment' = $4),
			COUNT(*) FILTER (WHERE analysis->>'sentiment' = $5)
		 FROM tickets`,
		domain.TicketStatusOpen, domain.TicketStatusClosed,
		domain.SentimentPositive, domain.SentimentNegative, domain.SentimentNeutral,
	).Scan(
		&stats.TotalTickets,
		&stats.OpenTickets,
		&stats.ClosedTickets,
		&avgUrgency,
		&stats.Sentiment.Positive,
		&stats.Sentiment.Negative,
		&stats.Sentiment.Neutral,
	)
	if err != nil {
		return nil, err
	}
	if avgUrgency != nil {
		stats.AvgUrgencyScore = *avgUrgency
	}

	rows, err := r.pool.Query(ctx,
		`SELECT analysis->>'category', COUNT(*)
		 FROM tickets
		 WHERE analysis->>'category' IS NOT NULL
		 GROUP BY analysis->>'category'
		 ORDER BY COUNT(*) DESC, analysis->>'category' ASC
		 LIMIT 5`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var cc service.CategoryCount
		if err := rows.Scan(&cc.Category, &cc.Count); err != nil {
			return nil, err
		}
		stats.TopCategories = append(stats.TopCategories, cc)
	}
	return stats, rows.Err()
}
