package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"kbservice/internal/api/handlers"
	apimw "kbservice/internal/api/middleware"
	ws "kbservice/internal/api/websocket"
)

func NewRouter(server *handlers.Server, hub *ws.Hub, logger *slog.Logger) http.Handler {
	cfg := server.Config
	limiter := apimw.NewRateLimiter(cfg.Server.RateLimit.PerMinute, cfg.Server.RateLimit.Burst)
	requireKey := apimw.RequireAPIKey(cfg.Auth.Enabled, cfg.Auth.KeyHashes)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(apimw.Logging(logger))

	r.Get("/healthz", server.Health)

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(limiter.Middleware)

		// The hub authenticates itself so browsers can pass api_key in the query.
		api.Get("/ws", hub.ServeWS)

		// KBs
		api.Get("/kbs", server.SearchKBs)
		api.Get("/kbs/key/{key}", server.GetKBByKey)
		api.Get("/kbs/{id}", server.GetKB)
		api.With(requireKey).Post("/kbs", server.CreateKB)
		api.With(requireKey).Patch("/kbs", server.UpdateKB)

		// Categories
		api.Get("/categories", server.ListCategories)
		api.With(requireKey).Post("/categories", server.CreateCategory)

		// Admin
		api.With(requireKey).Get("/admin/config", server.AdminConfig)
		api.With(requireKey).Post("/admin/backup", server.AdminBackup)
	})

	return r
}
