package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/deckline/pairing-server-go/internal/config"
	"github.com/deckline/pairing-server-go/internal/database"
	"github.com/deckline/pairing-server-go/internal/handler"
	"github.com/deckline/pairing-server-go/internal/jobs"
	"github.com/deckline/pairing-server-go/internal/middleware"
	"github.com/deckline/pairing-server-go/internal/redis"
	"github.com/deckline/pairing-server-go/internal/repository"
	"github.com/deckline/pairing-server-go/internal/service"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	isProduction := os.Getenv("FLY_APP_NAME") != ""
	if err := cfg.Validate(isProduction); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
	if err := db.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}
	cancel()
	log.Info().Msg("database connected")

	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected")

	pairingRepo := repository.NewPairingRequestRepository(db.DB)
	deviceRepo := repository.NewDeviceCredentialRepository(db.DB)

	tokenCache := redis.NewTokenCache(redisClient.Client, cfg.ValidateCacheTTL())
	if tokenCache != nil {
		log.Info().Dur("ttl", cfg.ValidateCacheTTL()).Msg("validate cache enabled")
	}

	pairingService := service.NewPairingService(pairingRepo, cfg.PairingCodeTTL())
	tokenService := service.NewTokenService(db, pairingRepo, deviceRepo, tokenCache, cfg.DeviceTokenTTL())
	deviceService := service.NewDeviceService(deviceRepo, tokenCache)
	rateLimiter := service.NewRateLimiter(redisClient.Client)

	sessionMiddleware := middleware.NewWebSessionMiddleware(cfg.SessionSecret)
	deviceAuthMiddleware := middleware.NewDeviceAuthMiddleware(tokenService)
	bodyLimitMiddleware := middleware.NewBodyLimitMiddleware(0)

	registerLimit := middleware.NewIPRateLimitMiddleware(
		rateLimiter, config.RegisterRateLimit, config.RateLimitWindow, "register")
	claimLimit := middleware.NewIPRateLimitMiddleware(
		rateLimiter, config.ClaimRateLimit, config.RateLimitWindow, "claim")
	exchangeLimit := middleware.NewIPRateLimitMiddleware(
		rateLimiter, config.ExchangeRateLimit, config.RateLimitWindow, "exchange")

	pairingHandler := handler.NewPairingHandler(
		pairingService, tokenService,
		sessionMiddleware.Handler,
		registerLimit.Handler, claimLimit.Handler, exchangeLimit.Handler,
	)
	tokenHandler := handler.NewTokenHandler(tokenService, deviceAuthMiddleware.Handler)
	deviceHandler := handler.NewDeviceHandler(deviceService, sessionMiddleware.Handler)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
	r.Use(bodyLimitMiddleware.Handler)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"status":    "ok",
			"timestamp": time.Now().UnixMilli(),
		})
	})

	r.Route("/v1/pairing", func(r chi.Router) {
		r.Mount("/", pairingHandler.Routes())
	})
	r.Route("/v1/token", func(r chi.Router) {
		r.Mount("/", tokenHandler.Routes())
	})
	r.Route("/v1/devices", func(r chi.Router) {
		r.Mount("/", deviceHandler.Routes())
	})

	cleanupJob := jobs.NewCleanupJob(
		pairingRepo, deviceRepo, config.CleanupJobInterval, config.CredentialRetention,
	)
	cleanupJob.Start()
	defer cleanupJob.Stop()

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: config.ServerWriteTimeout,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
