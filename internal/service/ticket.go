package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/supportlens/supportlens/internal/domain"
	"github.com/supportlens/supportlens/internal/pagination"
	"github.com/supportlens/supportlens/internal/telemetry"
)

// TicketRepositoryInterface defines the repository interface for ticket persistence
type TicketRepositoryInterface interface {
	Create(ctx context.Context, t *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	ListWithCursor(ctx context.Context, status domain.TicketStatus, cursor *pagination.Cursor, limit int) (*TicketPageResult, error)
	AppendMessage(ctx context.Context, id string, msg domain.TicketMessage, close bool) error
}

// TicketPageResult is one page of tickets.
type TicketPageResult struct {
	Items      []*domain.Ticket
	NextCursor string
	HasMore    bool
}

// TicketAnalyst classifies a new ticket's first message.
type TicketAnalyst interface {
	AnalyzeTicket(ctx context.Context, message string) (*domain.TicketAnalysis, error)
}

// TextGenerator produces prose from a prompt. Used for reply drafting.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// Retriever supplies ranked knowledge base context for a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) *domain.RetrievalResult
}

// TicketService handles ticket workflow: creation with AI classification,
// listing, agent replies, and RAG-grounded draft replies.
type TicketService struct {
	repo      TicketRepositoryInterface
	analyst   TicketAnalyst
	generator TextGenerator
	retriever Retriever
	uuidGen   UUIDGenerator
}

// NewTicketService creates a new TicketService instance. analyst, generator,
// and retriever may be nil when no AI provider is configured; the affected
// features degrade instead of failing.
func NewTicketService(
	repo TicketRepositoryInterface,
	analyst TicketAnalyst,
	generator TextGenerator,
	retriever Retriever,
) *TicketService {
	return &TicketService{
		repo:      repo,
		analyst:   analyst,
		generator: generator,
		retriever: retriever,
		uuidGen:   &DefaultUUIDGenerator{},
	}
}

// NewTicketServiceWithUUIDGen creates a TicketService with a custom UUID
// generator (for testing).
func NewTicketServiceWithUUIDGen(
	repo TicketRepositoryInterface,
	analyst TicketAnalyst,
	generator TextGenerator,
	retriever Retriever,
	uuidGen UUIDGenerator,
) *TicketService {
	svc := NewTicketService(repo, analyst, generator, retriever)
	svc.uuidGen = uuidGen
	return svc
}

// CreateTicketInput represents a customer's ticket submission
type CreateTicketInput struct {
	Name    string
	Email   string
	Message string
}

// Create opens a ticket for a customer message. Classification runs inline;
// if the analyst fails the ticket is still created with fallback analysis.
func (s *TicketService) Create(ctx context.Context, input CreateTicketInput) (*domain.Ticket, error) {
	ctx, span := telemetry.StartSpan(ctx, "TicketService.Create", telemetry.SpanAttributes{
		Operation: "create",
	})
	defer span.End()

	if input.Name == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "name is required")
	}
	if input.Email == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "email is required")
	}
	if len(input.Message) < 10 {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "message must be at least 10 characters")
	}

	analysis := domain.FallbackAnalysis()
	if s.analyst != nil {
		if a, err := s.analyst.AnalyzeTicket(ctx, input.Message); err != nil {
			log.Printf("tickets: analysis failed, using fallback: %v", err)
		} else {
			analysis = a
		}
	}

	now := time.Now().UTC()
	ticket := &domain.Ticket{
		ID:     s.uuidGen.NewString(),
		Name:   input.Name,
		Email:  input.Email,
		Status: domain.TicketStatusOpen,
		Messages: []domain.TicketMessage{{
			Sender:  "customer",
			Message: input.Message,
			Time:    now,
		}},
		Analysis:  analysis,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := domain.ValidateTicket(ticket); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, ticket); err != nil {
		return nil, err
	}

	return ticket, nil
}

// GetByID retrieves a ticket by ID
func (s *TicketService) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	return s.repo.GetByID(ctx, id)
}

// ListTicketsInput controls ticket listing.
type ListTicketsInput struct {
	Status domain.TicketStatus
	Cursor string
	Limit  int
}

// ListTicketsOutput is one page of tickets plus a continuation cursor.
type ListTicketsOutput struct {
	Items   []*domain.Ticket
	Cursor  string
	HasMore bool
}

// List returns tickets most recent first, optionally filtered by status.
func (s *TicketService) List(ctx context.Context, input ListTicketsInput) (*ListTicketsOutput, error) {
	ctx, span := telemetry.StartSpan(ctx, "TicketService.List", telemetry.SpanAttributes{
		Operation: "list",
	})
	defer span.End()

	if input.Status != "" && input.Status != domain.TicketStatusOpen && input.Status != domain.TicketStatusClosed {
		return nil, domain.ErrInvalidTicketStatus
	}

	cursor, _ := pagination.DecodeCursor(input.Cursor)
	limit := input.Limit
	if limit <= 0 {
		limit = 20
	}

	result, err := s.repo.ListWithCursor(ctx, input.Status, cursor, limit)
	if err != nil {
		return nil, err
	}

	return &ListTicketsOutput{
		Items:   result.Items,
		Cursor:  result.NextCursor,
		HasMore: result.HasMore,
	}, nil
}

// ReplyInput represents an agent reply to a ticket
type ReplyInput struct {
	TicketID    string
	Message     string
	AgentEmail  string
	CloseTicket bool
}

// Reply appends an agent message to the conversation and optionally closes
// the ticket.
func (s *TicketService) Reply(ctx context.Context, input ReplyInput) error {
	ctx, span := telemetry.StartSpan(ctx, "TicketService.Reply", telemetry.SpanAttributes{
		TicketID:  input.TicketID,
		Operation: "reply",
	})
	defer span.End()

	if input.Message == "" {
		return domain.NewDomainError(domain.ErrCodeValidation, "message is required")
	}

	if _, err := s.repo.GetByID(ctx, input.TicketID); err != nil {
		return err
	}

	msg := domain.TicketMessage{
		Sender:     "agent",
		Message:    input.Message,
		Time:       time.Now().UTC(),
		AgentEmail: input.AgentEmail,
	}

	return s.repo.AppendMessage(ctx, input.TicketID, msg, input.CloseTicket)
}

// DraftReply is a generated reply suggestion with the knowledge base sources
// it drew on.
type DraftReply struct {
	Draft           string
	SourceDocuments []string
}

// GenerateDraft composes a suggested reply for a ticket, grounded on
// knowledge base passages retrieved for the given context message. Retrieval
// failures degrade to drafting without context; only generation failures
// surface to the caller.
func (s *TicketService) GenerateDraft(ctx context.Context, ticketID, contextMessage string) (*DraftReply, error) {
	ctx, span := telemetry.StartSpan(ctx, "TicketService.GenerateDraft", telemetry.SpanAttributes{
		TicketID:  ticketID,
		Operation: "draft",
	})
	defer span.End()

	if s.generator == nil {
		return nil, domain.NewDomainError(domain.ErrCodeInternalError, "text generation not configured")
	}
	if contextMessage == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "context message is required")
	}

	ticket, err := s.repo.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	retrieval := domain.EmptyRetrievalResult()
	if s.retriever != nil {
		retrieval = s.retriever.Retrieve(ctx, contextMessage, DefaultTopK)
	}

	prompt := buildDraftPrompt(ticket, contextMessage, retrieval)
	draft, err := s.generator.GenerateText(ctx, prompt)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "failed to generate draft reply", err)
	}

	return &DraftReply{
		Draft:           strings.TrimSpace(draft),
		SourceDocuments: retrieval.SourceDocuments,
	}, nil
}

func buildDraftPrompt(ticket *domain.Ticket, contextMessage string, retrieval *domain.RetrievalResult) string {
	var b strings.Builder

	b.WriteString("You are a customer support agent. Draft a helpful, polite reply to the customer below.\n\n")

	b.WriteString("CONVERSATION:\n")
	for _, m := range ticket.Messages {
		fmt.Fprintf(&b, "%s: %s\n", strings.ToUpper(m.Sender), m.Message)
	}

	fmt.Fprintf(&b, "\nCUSTOMER QUESTION:\n%s\n", contextMessage)

	if len(retrieval.RelevantChunks) > 0 {
		b.WriteString("\nRELEVANT KNOWLEDGE BASE EXCERPTS:\n")
		for _, c := range retrieval.RelevantChunks {
			fmt.Fprintf(&b, "[%s] %s\n", c.Source, c.Text)
		}
		b.WriteString("\nGround your answer in the excerpts above when they apply.\n")
	} else {
		b.WriteString("\nNo knowledge base context was found; answer from general support best practice.\n")
	}

	b.WriteString("Reply with the draft message only, no preamble.")

	return b.String()
}
