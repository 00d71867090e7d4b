package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/supportlens/supportlens/internal/domain"
	"github.com/supportlens/supportlens/internal/pagination"
	"github.com/supportlens/supportlens/internal/service"
)

// TicketRepository persists tickets. The conversation and AI analysis are
// stored as JSONB documents alongside the row.
type TicketRepository struct {
	db dbtx
}

func NewTicketRepository(pool *pgxpool.Pool) *TicketRepository {
	return &TicketRepository{db: pool}
}

func NewTicketRepositoryWithTx(tx pgx.Tx) *TicketRepository {
	return &TicketRepository{db: tx}
}

func (r *TicketRepository) Create(ctx context.Context, t *domain.Ticket) error {
	messages, err := json.Marshal(t.Messages)
	if err != nil {
		return err
	}
	analysis, err := json.Marshal(t.Analysis)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx,
		`INSERT INTO tickets (id, name, email, status, messages, analysis, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		t.ID, t.Name, t.Email, t.Status, messages, analysis, t.CreatedAt, t.UpdatedAt,
	)
	return err
}

func (r *TicketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	var t domain.Ticket
	var messages, analysis []byte
	err := r.db.QueryRow(ctx,
		`SELECT id, name, email, status, messages, analysis, created_at, updated_at
		 FROM tickets WHERE id = $1`,
		id,
	).Scan(&t.ID, &t.Name, &t.Email, &t.Status, &messages, &analysis, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTicketNotFound
		}
		return nil, err
	}
	if err := unmarshalTicketPayloads(&t, messages, analysis); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TicketRepository) ListWithCursor(ctx context.Context, status domain.TicketStatus, cursor *pagination.Cursor, limit int) (*service.TicketPageResult, error) {
	if limit <= 0 {
		limit = 20
	}

	var rows pgx.Rows
	var err error

	switch {
	case status != "" && cursor != nil:
		rows, err = r.db.Query(ctx,
			`SELECT id, name, email, status, messages, analysis, created_at, updated_at
			 FROM tickets
			 WHERE status = $1 AND (created_at, id) < ($2, $3)
			 ORDER BY created_at DESC, id DESC
			 LIMIT $4`,
			status, cursor.Timestamp, cursor.LastID, limit+1,
		)
	case status != "":
		rows, err = r.db.Query(ctx,
			`SELECT id, name, email, status, messages, analysis, created_at, updated_at
			 FROM tickets
			 WHERE status = $1
			 ORDER BY created_at DESC, id DESC
			 LIMIT $2`,
			status, limit+1,
		)
	case cursor != nil:
		rows, err = r.db.Query(ctx,
			`SELECT id, name, email, status, messages, analysis, created_at, updated_at
			 FROM tickets
			 WHERE (created_at, id) < ($1, $2)
			 ORDER BY created_at DESC, id DESC
			 LIMIT $3`,
			cursor.Timestamp, cursor.LastID, limit+1,
		)
	default:
		rows, err = r.db.Query(ctx,
			`SELECT id, name, email, status, messages, analysis, created_at, updated_at
			 FROM tickets
			 ORDER BY created_at DESC, id DESC
			 LIMIT $1`,
			limit+1,
		)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tickets []*domain.Ticket
	for rows.Next() {
		var t domain.Ticket
		var messages, analysis []byte
		if err := rows.Scan(&t.ID, &t.Name, &t.Email, &t.Status, &messages, &analysis, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		if err := unmarshalTicketPayloads(&t, messages, analysis); err != nil {
			return nil, err
		}
		tickets = append(tickets, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	hasMore := len(tickets) > limit
	if hasMore {
		tickets = tickets[:limit]
	}

	var nextCursor string
	if hasMore && len(tickets) > 0 {
		last := tickets[len(tickets)-1]
		nextCursor = pagination.EncodeCursor(last.ID, last.CreatedAt)
	}

	return &service.TicketPageResult{
		Items:      tickets,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

// AppendMessage adds a message to the ticket conversation and optionally
// closes the ticket in the same statement.
func (r *TicketRepository) AppendMessage(ctx context.Context, id string, msg domain.TicketMessage, close bool) error {
	encoded, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	query := `UPDATE tickets
	          SET messages = messages || $1::jsonb, updated_at = $2
	          WHERE id = $3`
	args := []interface{}{encoded, time.Now().UTC(), id}
	if close {
		query = `UPDATE tickets
		         SET messages = messages || $1::jsonb, updated_at = $2, status = $4
		         WHERE id = $3`
		args = append(args, domain.TicketStatusClosed)
	}

	cmdTag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrTicketNotFound
	}
	return nil
}

func unmarshalTicketPayloads(t *domain.Ticket, messages, analysis []byte) error {
	if len(messages) > 0 {
		if err := json.Unmarshal(messages, &t.Messages); err != nil {
			return err
		}
	}
	if len(analysis) > 0 && string(analysis) != "null" {
		t.Analysis = &domain.TicketAnalysis{}
		if err := json.Unmarshal(analysis, t.Analysis); err != nil {
			return err
		}
	}
	return nil
}
