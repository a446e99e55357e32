package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/normahq/norma/internal/api"
	"github.com/normahq/norma/internal/api/handlers"
	"github.com/normahq/norma/internal/api/middleware"
)

type RouterConfig struct {
	AuthValidator    middleware.AuthValidator
	FAQHandler       *handlers.FAQHandler
	DocumentHandler  *handlers.DocumentHandler
	AssistantHandler *handlers.AssistantHandler
	AskHandler       *handlers.AskHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Uploads go through multipart; everything else is small JSON.
	const maxBodyBytes int64 = 25 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(cfg.AuthValidator))

		r.Route("/faqs", func(r chi.Router) {
			r.Post("/", cfg.FAQHandler.Create)
			r.Get("/", cfg.FAQHandler.List)
			r.Get("/{id}", cfg.FAQHandler.Get)
			r.Delete("/{id}", cfg.FAQHandler.Delete)
		})

		r.Route("/documents", func(r chi.Router) {
			r.Post("/", cfg.DocumentHandler.Upload)
			r.Get("/", cfg.DocumentHandler.List)
			r.Get("/{id}", cfg.DocumentHandler.Get)
			r.Get("/{id}/download", cfg.DocumentHandler.GetDownloadURL)
			r.Delete("/{id}", cfg.DocumentHandler.Delete)
		})

		r.Post("/reindex", cfg.FAQHandler.Reindex)
		r.Get("/reindex/{id}", cfg.FAQHandler.ReindexStatus)

		r.Post("/ask", cfg.AskHandler.Ask)

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", cfg.AssistantHandler.CreateSession)
			r.Get("/{id}/turns", cfg.AssistantHandler.GetTurns)
			r.Post("/{id}/messages", cfg.AssistantHandler.Submit)
			r.Post("/{id}/escalate", cfg.AssistantHandler.Escalate)
			r.Post("/{id}/feedback", cfg.AssistantHandler.Feedback)
			r.Delete("/{id}", cfg.AssistantHandler.CloseSession)
		})
	})

	return r
}
