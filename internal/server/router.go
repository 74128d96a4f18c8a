package server

import (
	"net/http"

	"github.com/ainotes/secondbrain/internal/api"
	"github.com/ainotes/secondbrain/internal/api/handlers"
	"github.com/ainotes/secondbrain/internal/api/middleware"
	"github.com/go-chi/chi/v5"
)

type RouterConfig struct {
	TokenVerifier    middleware.TokenVerifier
	AuthHandler      *handlers.AuthHandler
	ChatHandler      *handlers.ChatHandler
	DocumentHandler  *handlers.DocumentHandler
	TagHandler       *handlers.TagHandler
	KnowledgeHandler *handlers.KnowledgeHandler

	// ChatRateLimit caps chat turns per user per minute. Zero disables
	// the limiter.
	ChatRateLimit int
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Uploads carry their own cap in the handler; everything else is
	// small JSON.
	const maxBodyBytes int64 = 1 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "Second Brain is active"})
	})
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.With(middleware.MaxBodyBytes(maxBodyBytes)).Post("/auth/google", cfg.AuthHandler.GoogleAuth)

	chatLimiter := middleware.NewRateLimiter(cfg.ChatRateLimit)

	r.Group(func(r chi.Router) {
		r.Use(middleware.BearerAuth(cfg.TokenVerifier))

		r.Get("/auth/me", cfg.AuthHandler.Me)

		r.With(middleware.MaxBodyBytes(maxBodyBytes), middleware.RateLimit(chatLimiter)).
			Post("/chat", cfg.ChatHandler.Chat)
		r.Get("/history", cfg.ChatHandler.History)
		r.Delete("/history", cfg.ChatHandler.ClearHistory)

		r.Route("/documents", func(r chi.Router) {
			r.Post("/upload", cfg.DocumentHandler.Upload)
			r.Get("/download", cfg.DocumentHandler.DownloadURL)
		})

		r.Route("/tags", func(r chi.Router) {
			r.Get("/", cfg.TagHandler.List)
			r.Get("/{tag}/items", cfg.TagHandler.Items)
			r.Post("/regenerate", cfg.TagHandler.Regenerate)
		})

		r.Route("/knowledge", func(r chi.Router) {
			r.Get("/", cfg.KnowledgeHandler.List)
			r.Post("/migrate", cfg.KnowledgeHandler.Migrate)
		})
	})

	return r
}
