package router

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"shopsync/internal/config"
	"shopsync/internal/database"
	"shopsync/internal/handler"
	"shopsync/internal/middleware"
	"shopsync/internal/model"
	"shopsync/internal/websocket"
)

type Handlers struct {
	Auth     *handler.AuthHandler
	Sync     *handler.SyncHandler
	Trash    *handler.TrashHandler
	Deletion *handler.DeletionHandler
	Audit    *handler.AuditHandler
}

func New(
	cfg *config.Config,
	db *database.DB,
	authMiddleware *middleware.AuthMiddleware,
	h Handlers,
	hub *websocket.Hub,
) http.Handler {
	r := chi.NewRouter()
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(cfg.RateLimitRPM, cfg.AuthRateLimitRPM)

	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.SecurityHeaders)
	r.Use(rateLimitMiddleware.Handler)

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
		defer cancel()
		if err := db.Health(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("degraded"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.With(authMiddleware.RequireAuth, authMiddleware.RequireRoles(model.RoleAdmin)).
		Get("/ws", func(w http.ResponseWriter, req *http.Request) {
			websocket.ServeWS(hub, w, req)
		})

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(middleware.Timeout(cfg.RequestTimeout))

		api.Route("/auth", func(auth chi.Router) {
			auth.Post("/login", h.Auth.Login)
			auth.With(authMiddleware.RequireAuth, authMiddleware.RequireRoles(model.RoleAdmin)).Post("/register", h.Auth.Register)
			auth.Post("/refresh", h.Auth.Refresh)
			auth.With(authMiddleware.RequireAuth).Post("/logout", h.Auth.Logout)
			auth.With(authMiddleware.RequireAuth).Get("/me", h.Auth.Me)
		})

		api.Route("/sync", func(sync chi.Router) {
			sync.Use(authMiddleware.RequireAuth)
			sync.Get("/{collection}/changes", h.Sync.Pull)
			sync.Post("/{collection}/push", h.Sync.Push)
			sync.Post("/{collection}/tombstones", h.Sync.Tombstones)
		})

		api.Route("/trash", func(trash chi.Router) {
			trash.Use(authMiddleware.RequireAuth, authMiddleware.RequireRoles(model.RoleAdmin))
			trash.Get("/", h.Trash.List)
			trash.Post("/{id}/restore", h.Trash.Restore)
			trash.Delete("/{id}", h.Trash.Purge)
			trash.Delete("/", h.Trash.Empty)
		})

		api.Route("/deletions", func(del chi.Router) {
			del.Use(authMiddleware.RequireAuth)
			del.With(authMiddleware.RequireRoles(model.RoleAdmin)).Post("/", h.Deletion.Create)
			del.Get("/", h.Deletion.List)
			del.Get("/{id}", h.Deletion.Get)
			del.With(authMiddleware.RequireRoles(model.RoleAdmin)).Post("/{id}/validate", h.Deletion.Validate)
			del.Post("/{id}/decide", h.Deletion.Decide)
		})

		api.With(authMiddleware.RequireAuth, authMiddleware.RequireRoles(model.RoleAdmin)).Get("/audit", h.Audit.List)
	})

	return r
}
