package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/cors"
	"github.com/otcheredev/roadservice-api/internal/auth"
	"github.com/otcheredev/roadservice-api/internal/cache"
	"github.com/otcheredev/roadservice-api/internal/config"
	"github.com/otcheredev/roadservice-api/internal/database"
	"github.com/otcheredev/roadservice-api/internal/handlers"
	"github.com/otcheredev/roadservice-api/internal/metrics"
	"github.com/otcheredev/roadservice-api/internal/middleware"
	"github.com/otcheredev/roadservice-api/internal/realtime"
	"github.com/otcheredev/roadservice-api/internal/repository"
	"github.com/otcheredev/roadservice-api/internal/services"
	"github.com/otcheredev/roadservice-api/internal/session"
	"github.com/otcheredev/roadservice-api/internal/store"
	"github.com/otcheredev/roadservice-api/pkg/logger"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const version = "2.0.0"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	// Initialize logger
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	log.Info().Str("version", version).Msg("Starting RoadService API")

	if cfg.Metrics.Enabled {
		metrics.Init()
	}

	// Audit database is optional; without it the audit trail only logs
	var db *gorm.DB
	var auditRepo *repository.AuditRepository
	if cfg.Database.Enabled {
		db, err = database.Connect(database.Config{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			DBName:   cfg.Database.DBName,
			SSLMode:  cfg.Database.SSLMode,
			LogLevel: cfg.Database.LogLevel,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to audit database")
		}
		defer database.Close(db)
		auditRepo = repository.NewAuditRepository(db)
		log.Info().Msg("Audit database connected")
	}

	// Session cache
	var sessions *session.Store
	var cacheImpl cache.Cache
	if cfg.Cache.Enabled {
		if cfg.Cache.Type == "redis" {
			addr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
			cacheImpl, err = cache.NewRedisCache(addr, cfg.Redis.Password, cfg.Redis.DB)
			if err != nil {
				log.Fatal().Err(err).Msg("Failed to connect to Redis")
			}
			log.Info().Msg("Redis session cache initialized")
		} else {
			cacheImpl = cache.NewMemoryCache()
			log.Info().Msg("Memory session cache initialized")
		}
		defer cacheImpl.Close()
		sessions = session.NewStore(cacheImpl, cfg.Auth.RefreshTTL)
	} else {
		log.Warn().Msg("Session cache disabled, refresh tokens will not be issued")
	}

	tokenOpts := []auth.TokenOption{
		auth.WithIssuer(cfg.Auth.Issuer),
		auth.WithTTL(cfg.Auth.AccessTTL),
	}
	if !cfg.Auth.FailClosedRoles {
		tokenOpts = append(tokenOpts, auth.WithPermissiveRoles())
	}
	tokens, err := auth.NewTokenService(cfg.Auth.SecretKey, tokenOpts...)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize token service")
	}

	client := store.NewClient(cfg.Store.URL, cfg.Store.ServiceKey, store.WithTimeout(cfg.Store.Timeout))

	// Initialize repositories
	userRepo := repository.NewUserRepository(client, cfg.Store.PropagateCredential)
	companyRepo := repository.NewCompanyRepository(client, cfg.Store.PropagateCredential)
	invitationRepo := repository.NewInvitationRepository(client, cfg.Store.PropagateCredential)

	hub := realtime.NewHub()

	// Initialize services
	audit := services.NewAuditTrail(auditRepo)
	invitationService := services.NewInvitationService(invitationRepo, userRepo, companyRepo, audit, hub, cfg.Invitation.TTL)
	authService := services.NewAuthService(userRepo, tokens, sessions, invitationService, audit)
	userService := services.NewUserService(userRepo, sessions, audit, hub)
	companyService := services.NewCompanyService(companyRepo, userRepo, audit)
	setupService := services.NewSetupService(companyRepo, userRepo, audit, cfg.Auth.SetupToken)

	authenticator := middleware.NewAuthenticator(tokens, userRepo, audit)

	checks := map[string]handlers.Check{"store": client.Ping}
	if db != nil {
		checks["database"] = func(ctx context.Context) error { return database.Ping(ctx, db) }
	}
	if rc, ok := cacheImpl.(*cache.RedisCache); ok {
		checks["redis"] = rc.Ping
	}

	router := handlers.NewRouter(handlers.Deps{
		Authenticator: authenticator,
		LoginLimiter:  middleware.NewRateLimiter(cfg.RateLimit.LoginPerSecond, cfg.RateLimit.LoginBurst),
		Health:        handlers.NewHealthHandler(version, checks),
		Auth:          handlers.NewAuthHandler(authService),
		Invitations:   handlers.NewInvitationHandler(invitationService),
		Users:         handlers.NewUserHandler(userService),
		Companies:     handlers.NewCompanyHandler(companyService, audit),
		Setup:         handlers.NewSetupHandler(setupService),
		WS:            handlers.NewWSHandler(hub, authenticator, cfg.CORS.AllowedOrigins),
		CORS: cors.Options{
			AllowedOrigins:   cfg.CORS.AllowedOrigins,
			AllowedMethods:   cfg.CORS.AllowedMethods,
			AllowedHeaders:   cfg.CORS.AllowedHeaders,
			ExposedHeaders:   []string{"Content-Length", "Content-Type", "X-Request-ID"},
			AllowCredentials: false,
			MaxAge:           300,
		},
		Metrics: cfg.Metrics.Enabled,
	})

	// Create server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Websocket connections are hijacked and not covered by Shutdown
	hub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
