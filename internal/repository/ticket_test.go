//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supportlens/supportlens/internal/domain"
	"github.com/supportlens/supportlens/internal/pagination"
	"github.com/supportlens/supportlens/internal/testutil"
)

func newTicket(createdAt time.Time) *domain.Ticket {
	return &domain.Ticket{
		ID:     uuid.NewString(),
		Name:   "Alice",
		Email:  "alice@example.com",
		Status: domain.TicketStatusOpen,
		Messages: []domain.TicketMessage{
			{Sender: "customer", Message: "My invoice looks wrong", Time: createdAt},
		},
		Analysis: &domain.TicketAnalysis{
			Category:     domain.CategoryBilling,
			Sentiment:    domain.SentimentNegative,
			UrgencyScore: 7,
			Summary:      "Invoice dispute.",
		},
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

func TestTicketRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewTicketRepository(pool)

	ticket := newTicket(time.Now().UTC().Truncate(time.Microsecond))
	require.NoError(t, repo.Create(ctx, ticket))

	retrieved, err := repo.GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, ticket.ID, retrieved.ID)
	assert.Equal(t, domain.TicketStatusOpen, retrieved.Status)
	require.Len(t, retrieved.Messages, 1)
	assert.Equal(t, "customer", retrieved.Messages[0].Sender)
	assert.Equal(t, "My invoice looks wrong", retrieved.Messages[0].Message)
	require.NotNil(t, retrieved.Analysis)
	assert.Equal(t, domain.CategoryBilling, retrieved.Analysis.Category)
	assert.Equal(t, 7, retrieved.Analysis.UrgencyScore)
}

func TestTicketRepository_GetByID_NotFound(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewTicketRepository(pool)

	_, err := repo.GetByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrTicketNotFound)
}

func TestTicketRepository_NilAnalysisRoundTrips(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewTicketRepository(pool)

	ticket := newTicket(time.Now().UTC().Truncate(time.Microsecond))
	ticket.Analysis = nil
	require.NoError(t, repo.Create(ctx, ticket))

	retrieved, err := repo.GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Nil(t, retrieved.Analysis)
}

func TestTicketRepository_ListWithCursor_Pagination(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewTicketRepository(pool)

	base := time.Now().UTC().Truncate(time.Microsecond)
	var ids []string
	for i := 0; i < 5; i++ {
		ticket := newTicket(base.Add(time.Duration(i) * time.Minute))
		require.NoError(t, repo.Create(ctx, ticket))
		ids = append(ids, ticket.ID)
	}

	// First page: the two most recent tickets.
	page, err := repo.ListWithCursor(ctx, "", nil, 2)
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.True(t, page.HasMore)
	assert.NotEmpty(t, page.NextCursor)
	assert.Equal(t, ids[4], page.Items[0].ID)
	assert.Equal(t, ids[3], page.Items[1].ID)

	// Second page continues strictly after the first.
	cursor, err := pagination.DecodeCursor(page.NextCursor)
	require.NoError(t, err)
	page2, err := repo.ListWithCursor(ctx, "", cursor, 2)
	require.NoError(t, err)
	require.Len(t, page2.Items, 2)
	assert.Equal(t, ids[2], page2.Items[0].ID)
	assert.Equal(t, ids[1], page2.Items[1].ID)
	assert.True(t, page2.HasMore)

	// Final page has one ticket and no continuation.
	cursor2, err := pagination.DecodeCursor(page2.NextCursor)
	require.NoError(t, err)
	page3, err := repo.ListWithCursor(ctx, "", cursor2, 2)
	require.NoError(t, err)
	require.Len(t, page3.Items, 1)
	assert.Equal(t, ids[0], page3.Items[0].ID)
	assert.False(t, page3.HasMore)
	assert.Empty(t, page3.NextCursor)
}

func TestTicketRepository_ListWithCursor_StatusFilter(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewTicketRepository(pool)

	base := time.Now().UTC().Truncate(time.Microsecond)
	open := newTicket(base)
	closed := newTicket(base.Add(time.Minute))
	closed.Status = domain.TicketStatusClosed
	require.NoError(t, repo.Create(ctx, open))
	require.NoError(t, repo.Create(ctx, closed))

	page, err := repo.ListWithCursor(ctx, domain.TicketStatusClosed, nil, 10)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, closed.ID, page.Items[0].ID)
	assert.False(t, page.HasMore)
}

func TestTicketRepository_AppendMessage(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewTicketRepository(pool)

	ticket := newTicket(time.Now().UTC().Truncate(time.Microsecond))
	require.NoError(t, repo.Create(ctx, ticket))

	msg := domain.TicketMessage{
		Sender:     "agent",
		Message:    "We fixed the invoice.",
		Time:       time.Now().UTC().Truncate(time.Microsecond),
		AgentEmail: "sam@support.example",
	}
	require.NoError(t, repo.AppendMessage(ctx, ticket.ID, msg, false))

	retrieved, err := repo.GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	require.Len(t, retrieved.Messages, 2)
	assert.Equal(t, "agent", retrieved.Messages[1].Sender)
	assert.Equal(t, "sam@support.example", retrieved.Messages[1].AgentEmail)
	assert.Equal(t, domain.TicketStatusOpen, retrieved.Status)
}

func TestTicketRepository_AppendMessage_ClosesTicket(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewTicketRepository(pool)

	ticket := newTicket(time.Now().UTC().Truncate(time.Microsecond))
	require.NoError(t, repo.Create(ctx, ticket))

	msg := domain.TicketMessage{Sender: "agent", Message: "Resolved.", Time: time.Now().UTC()}
	require.NoError(t, repo.AppendMessage(ctx, ticket.ID, msg, true))

	retrieved, err := repo.GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusClosed, retrieved.Status)
	require.Len(t, retrieved.Messages, 2)
}

func TestTicketRepository_AppendMessage_NotFound(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewTicketRepository(pool)

	msg := domain.TicketMessage{Sender: "agent", Message: "hello", Time: time.Now().UTC()}
	err := repo.AppendMessage(ctx, uuid.NewString(), msg, false)
	assert.ErrorIs(t, err, domain.ErrTicketNotFound)
}
