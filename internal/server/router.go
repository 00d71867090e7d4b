package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/supportlens/supportlens/internal/api"
	"github.com/supportlens/supportlens/internal/api/handlers"
	"github.com/supportlens/supportlens/internal/api/middleware"
)

type RouterConfig struct {
	AuthValidator        middleware.AuthValidator
	KnowledgeBaseHandler *handlers.KnowledgeBaseHandler
	TicketHandler        *handlers.TicketHandler
	AnalyticsHandler     *handlers.AnalyticsHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = handlers.MaxUploadBytes

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Ticket creation is the public customer entry point.
	r.Post("/tickets", cfg.TicketHandler.Create)

	r.Group(func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(cfg.AuthValidator))

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAgent)

			r.Get("/tickets", cfg.TicketHandler.List)
			r.Get("/tickets/{id}", cfg.TicketHandler.Get)
			r.Post("/tickets/{id}/reply", cfg.TicketHandler.Reply)
			r.Post("/tickets/{id}/draft", cfg.TicketHandler.Draft)

			r.Get("/analytics", cfg.AnalyticsHandler.Get)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdmin)

			r.Post("/knowledge-base/upload", cfg.KnowledgeBaseHandler.Upload)
			r.Get("/knowledge-base", cfg.KnowledgeBaseHandler.List)
			r.Get("/knowledge-base/search", cfg.KnowledgeBaseHandler.Search)
			r.Get("/knowledge-base/{id}/download", cfg.KnowledgeBaseHandler.Download)
			r.Delete("/knowledge-base/{id}", cfg.KnowledgeBaseHandler.Delete)
		})
	})

	return r
}
