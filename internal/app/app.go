package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"shopsync/internal/config"
	"shopsync/internal/database"
	"shopsync/internal/event"
	"shopsync/internal/handler"
	"shopsync/internal/middleware"
	"shopsync/internal/repository"
	"shopsync/internal/router"
	"shopsync/internal/service"
	"shopsync/internal/websocket"
)

type App struct {
	server       *http.Server
	db           *database.DB
	cleanupFuncs []func()
}

func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	slog.Info("connecting to PostgreSQL")
	db, err := database.New(context.Background(), cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.EnsureSchema(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure database schema: %w", err)
	}

	userRepo := repository.NewUserRepository(db)
	tokenRepo := repository.NewTokenRepository(db)
	recordRepo := repository.NewRecordRepository(db)
	trashRepo := repository.NewTrashRepository(db)
	deletionRepo := repository.NewDeletionRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	slog.Info("database ready")

	authService, err := service.NewAuthService(cfg.JWTSecret, cfg.JWTAccessTTL, cfg.JWTRefreshTTL, userRepo, tokenRepo)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize auth service: %w", err)
	}
	authMiddleware := middleware.NewAuthMiddleware(authService)

	bus := event.NewBus()
	hub := websocket.NewHub(bus)
	go hub.Run()

	clock := service.SystemClock()
	registry := service.NewCollectionRegistry()
	auditService := service.NewAuditService(auditRepo, clock)
	syncService := service.NewSyncService(recordRepo, db, clock, registry, auditService, bus,
		cfg.SyncMaxBatch, cfg.SyncDefaultPullLimit, cfg.SyncMaxPullLimit)
	trashService := service.NewTrashService(trashRepo, recordRepo, db, clock, auditService, bus)
	deletionService := service.NewDeletionService(deletionRepo, recordRepo, trashRepo, db, clock, auditService, bus)

	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	go sweepExpiredTokens(cleanupCtx, tokenRepo)

	appRouter := router.New(cfg, db, authMiddleware, router.Handlers{
		Auth:     handler.NewAuthHandler(authService),
		Sync:     handler.NewSyncHandler(syncService),
		Trash:    handler.NewTrashHandler(trashService),
		Deletion: handler.NewDeletionHandler(deletionService),
		Audit:    handler.NewAuditHandler(auditService),
	}, hub)

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           appRouter,
		ReadHeaderTimeout: cfg.ServerReadHeaderTimeout,
		WriteTimeout:      cfg.ServerWriteTimeout,
		IdleTimeout:       cfg.ServerIdleTimeout,
	}

	return &App{
		server: server,
		db:     db,
		cleanupFuncs: []func(){
			func() {
				cleanupCancel()
			},
			func() {
				db.Close()
			},
		},
	}, nil
}

// sweepExpiredTokens drops dead refresh tokens hourly so the table
// does not grow with every agent device that ever logged in.
func sweepExpiredTokens(ctx context.Context, tokens *repository.TokenRepository) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			count, err := tokens.DeleteExpired(ctx)
			if err != nil {
				slog.Error("refresh token sweep failed", "error", err)
				continue
			}
			if count > 0 {
				slog.Info("expired refresh tokens removed", "count", count)
			}
		}
	}
}

func (a *App) Run() error {
	go func() {
		slog.Info("server starting", "addr", a.server.Addr)
		if serveErr := a.server.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			slog.Error("server failed", "error", serveErr)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	for _, cleanup := range a.cleanupFuncs {
		cleanup()
	}

	slog.Info("server stopped")
	return nil
}
