package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/supportlens/supportlens/internal/api"
	"github.com/supportlens/supportlens/internal/domain"
	"github.com/supportlens/supportlens/internal/service"
)

type TicketServiceInterface interface {
	Create(ctx context.Context, input service.CreateTicketInput) (*domain.Ticket, error)
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	List(ctx context.Context, input service.ListTicketsInput) (*service.ListTicketsOutput, error)
	Reply(ctx context.Context, input service.ReplyInput) error
	GenerateDraft(ctx context.Context, ticketID, contextMessage string) (*service.DraftReply, error)
}

type TicketHandler struct {
	svc TicketServiceInterface
}

func NewTicketHandler(svc TicketServiceInterface) *TicketHandler {
	return &TicketHandler{svc: svc}
}

type CreateTicketRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

type ReplyRequest struct {
	Message     string `json:"message"`
	AgentEmail  string `json:"agent_email"`
	CloseTicket bool   `json:"close_ticket"`
}

type DraftRequest struct {
	ContextMessage string `json:"context_message"`
}

type TicketResponse struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	Email     string                 `json:"email"`
	Status    string                 `json:"status"`
	Messages  []domain.TicketMessage `json:"messages"`
	Analysis  *domain.TicketAnalysis `json:"analysis,omitempty"`
	CreatedAt string                 `json:"created_at"`
	UpdatedAt string                 `json:"updated_at"`
}

type TicketListResponse struct {
	Items   []*TicketResponse `json:"items"`
	Cursor  string            `json:"cursor,omitempty"`
	HasMore bool              `json:"has_more"`
}

type DraftResponse struct {
	Draft           string   `json:"draft"`
	SourceDocuments []string `json:"source_documents"`
}

func ticketToResponse(t *domain.Ticket) *TicketResponse {
	return &TicketResponse{
		ID:        t.ID,
		Name:      t.Name,
		Email:     t.Email,
		Status:    string(t.Status),
		Messages:  t.Messages,
		Analysis:  t.Analysis,
		CreatedAt: t.CreatedAt.Format("2006-01-02T15:04:05Z"),
		UpdatedAt: t.UpdatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

// Create opens a new ticket. This is the public customer-facing endpoint.
func (h *TicketHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateTicketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ticket, err := h.svc.Create(r.Context(), service.CreateTicketInput{
		Name:    req.Name,
		Email:   req.Email,
		Message: req.Message,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, ticketToResponse(ticket))
}

func (h *TicketHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			api.Error(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	output, err := h.svc.List(r.Context(), service.ListTicketsInput{
		Status: domain.TicketStatus(r.URL.Query().Get("status")),
		Cursor: r.URL.Query().Get("cursor"),
		Limit:  limit,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	items := make([]*TicketResponse, 0, len(output.Items))
	for _, t := range output.Items {
		items = append(items, ticketToResponse(t))
	}

	api.Success(w, http.StatusOK, &TicketListResponse{
		Items:   items,
		Cursor:  output.Cursor,
		HasMore: output.HasMore,
	})
}

func (h *TicketHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "ticket id is required")
		return
	}

	ticket, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, ticketToResponse(ticket))
}

func (h *TicketHandler) Reply(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "ticket id is required")
		return
	}

	var req ReplyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := h.svc.Reply(r.Context(), service.ReplyInput{
		TicketID:    id,
		Message:     req.Message,
		AgentEmail:  req.AgentEmail,
		CloseTicket: req.CloseTicket,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	ticket, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, ticketToResponse(ticket))
}

// Draft generates a suggested agent reply grounded on knowledge base context.
func (h *TicketHandler) Draft(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "ticket id is required")
		return
	}

	var req DraftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	draft, err := h.svc.GenerateDraft(r.Context(), id, req.ContextMessage)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, &DraftResponse{
		Draft:           draft.Draft,
		SourceDocuments: draft.SourceDocuments,
	})
}
