package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dimitrije/tokenhub-api/internal/config"
	"github.com/dimitrije/tokenhub-api/internal/database"
	"github.com/dimitrije/tokenhub-api/internal/handlers"
	authmw "github.com/dimitrije/tokenhub-api/internal/middleware"
	"github.com/dimitrije/tokenhub-api/internal/models"
	"github.com/dimitrije/tokenhub-api/internal/obs"
	"github.com/dimitrije/tokenhub-api/internal/services"
	"github.com/dimitrije/tokenhub-api/internal/sse"
	"github.com/m1z23r/drift/pkg/drift"
	"github.com/m1z23r/drift/pkg/middleware"
)

// Set at build time with -ldflags "-X main.version=... -X main.commit=...".
var (
	version = "dev"
	commit  = "none"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	slog.SetDefault(obs.NewLogger(os.Stdout, cfg.LogLevel, cfg.IsProduction()))
	obs.Init()
	obs.SetBuildInfo(version, commit)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.New(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	hub := sse.NewHub()
	go hub.Run(ctx)

	jwtService := services.NewJWTService(cfg.JWTSecret, cfg.JWTAccessExpiry, cfg.JWTRefreshExpiry)
	userService := services.NewUserService(db, nil)
	sessionService := services.NewSessionService(db)
	loginService := services.NewLoginService(userService, jwtService, sessionService)
	tokenService := services.NewTokenService(db)
	supplyService := services.NewSupplyService(db, hub)
	transferService := services.NewTransferService(db, nil, hub)

	authHandler := handlers.NewAuthHandler(ctx, cfg, loginService)
	userHandler := handlers.NewUserHandler(userService)
	tokenHandler := handlers.NewTokenHandler(tokenService, supplyService, transferService)
	sseHandler := handlers.NewSSEHandler(hub, tokenService)

	app := drift.New()

	if cfg.IsProduction() {
		app.SetMode(drift.ReleaseMode)
	} else {
		app.SetMode(drift.DebugMode)
	}

	app.Use(middleware.Recovery())
	app.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization", obs.RequestIDHeader},
		MaxAge:       86400,
	}))
	app.Use(middleware.BodyParser())

	api := app.Group("/api/v1")

	auth := api.Group("/auth")
	auth.Use(authmw.Timeout(cfg.RequestTimeout))
	auth.Get("/:provider/consent", authHandler.GetConsentURL)
	auth.Get("/:provider/callback", authHandler.Callback)
	auth.Post("/exchange", authHandler.ExchangeCode)
	auth.Post("/admin/login", authHandler.AdminLogin)
	auth.Post("/refresh", authHandler.RefreshToken)
	auth.Post("/logout", authHandler.Logout)

	protected := api.Group("")
	protected.Use(authmw.Auth(jwtService))
	protected.Use(authmw.Timeout(cfg.RequestTimeout))

	protected.Post("/auth/logout-all", authHandler.LogoutAll)

	protected.Get("/users/me", userHandler.GetMe)
	protected.Patch("/users/me", userHandler.UpdateMe)
	protected.Post("/users/me/wallet", userHandler.ConnectWallet)

	protected.Get("/tokens", tokenHandler.List)
	protected.Post("/tokens", tokenHandler.Create)
	protected.Get("/tokens/:id", tokenHandler.Get)
	protected.Post("/tokens/:id/manage", tokenHandler.Manage)
	protected.Patch("/tokens/:id/active", tokenHandler.SetActive)
	protected.Get("/tokens/:id/permissions", tokenHandler.ListPermissions)
	protected.Post("/tokens/:id/permissions", tokenHandler.GrantPermission)
	protected.Delete("/tokens/:id/permissions/:userId", tokenHandler.RevokePermission)
	protected.Post("/tokens/:id/favorite", tokenHandler.AddFavorite)
	protected.Delete("/tokens/:id/favorite", tokenHandler.RemoveFavorite)
	protected.Get("/favorites", tokenHandler.ListFavorites)
	protected.Post("/tokens/:id/transfer", tokenHandler.Transfer)
	protected.Get("/tokens/:id/history", tokenHandler.History)

	// Event streams live as long as the client stays connected.
	streams := api.Group("")
	streams.Use(authmw.Auth(jwtService))
	streams.Get("/tokens/:id/events", sseHandler.Connect)

	admin := api.Group("/admin")
	admin.Use(authmw.Auth(jwtService))
	admin.Use(authmw.RequireRole(models.RoleAdmin))
	admin.Use(authmw.Timeout(cfg.RequestTimeout))
	admin.Patch("/users/:id/role", userHandler.SetRole)
	admin.Patch("/users/:id/active", userHandler.SetActive)

	api.Get("/health", func(c *drift.Context) {
		if err := db.Pool.Ping(c.Request.Context()); err != nil {
			_ = c.JSON(503, map[string]string{"status": "degraded"})
			return
		}
		_ = c.JSON(200, map[string]string{"status": "ok"})
	})

	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed, err := sessionService.CleanupExpired(ctx)
				if err != nil {
					slog.Error("failed to clean up expired sessions", "error", err)
					continue
				}
				slog.Debug("expired sessions removed", "count", removed)
			}
		}
	}()

	mux := http.NewServeMux()
	mux.Handle("/metrics", obs.Handler())
	mux.Handle("/", obs.RequestLogger(obs.Instrument(app)))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", srv.Addr, "version", version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")

	// Closing the hub ends open event streams so Shutdown can drain.
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("graceful shutdown failed", "error", err)
	}
}
