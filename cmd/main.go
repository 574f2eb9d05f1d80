package main

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

	"github.com/padelops/tournament-engine/brackets"
	"github.com/padelops/tournament-engine/config"
	"github.com/padelops/tournament-engine/db"
	"github.com/padelops/tournament-engine/events"
	"github.com/padelops/tournament-engine/handlers"
	"github.com/padelops/tournament-engine/middleware"
	"github.com/padelops/tournament-engine/repositories"
	api "github.com/padelops/tournament-engine/routes"
	"github.com/padelops/tournament-engine/services"
	"github.com/padelops/tournament-engine/storage"
	"github.com/redis/go-redis/v9"
)

// How often the auto-confirmation sweep runs.
const sweepInterval = 60 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort))

	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		} else {
			logger.Info("database connection closed")
		}
	}()
	logger.Info("database connection established")

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Error("invalid REDIS_URL", slog.Any("error", err))
		os.Exit(1)
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()
	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		cancelPing()
		logger.Error("failed to connect to redis", slog.Any("error", err))
		os.Exit(1)
	}
	cancelPing()
	logger.Info("redis connection established")

	// Poster storage is optional; the engine runs without it.
	var uploader storage.FileUploader
	if cfg.R2.Enabled() {
		uploader, err = storage.NewCloudflareR2Uploader(storage.CloudflareR2UploaderConfig{
			AccountID:       cfg.R2.AccountID,
			AccessKeyID:     cfg.R2.AccessKeyID,
			SecretAccessKey: cfg.R2.SecretAccessKey,
			BucketName:      cfg.R2.BucketName,
			PublicBaseURL:   cfg.R2.PublicBaseURL,
		})
		if err != nil {
			logger.Error("failed to initialize Cloudflare R2 uploader", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("Cloudflare R2 uploader initialized")
	} else {
		logger.Warn("R2 credentials not set, poster upload disabled")
	}

	wsHub := brackets.NewHub(logger)
	go wsHub.Run()
	logger.Info("WebSocket Hub started")

	tournamentRepo := repositories.NewPostgresTournamentRepository()
	entryRepo := repositories.NewPostgresEntryRepository()
	matchRepo := repositories.NewPostgresMatchRepository()
	setResultRepo := repositories.NewPostgresSetResultRepository()
	incidentRepo := repositories.NewPostgresIncidentRepository()
	memberRepo := repositories.NewPostgresMemberRepository()
	warningRepo := repositories.NewPostgresWarningRepository()
	idempotencyRepo := repositories.NewPostgresIdempotencyRepository()
	txManager := repositories.NewTxManager(dbConn, logger)
	logger.Info("Repositories initialized")

	publisher := events.NewRedisPublisher(redisClient, logger)
	advancer := services.NewBracketAdvancer(tournamentRepo, matchRepo, setResultRepo, logger)

	fixtureService := services.NewFixtureService(
		txManager, tournamentRepo, entryRepo, matchRepo,
		publisher, wsHub, logger,
	)
	resultService := services.NewResultService(
		txManager, tournamentRepo, entryRepo, matchRepo, setResultRepo,
		incidentRepo, memberRepo, idempotencyRepo,
		advancer, publisher, wsHub, cfg.ConfirmationWindow, logger,
	)
	incidentService := services.NewIncidentService(
		txManager, incidentRepo, matchRepo, entryRepo,
		warningRepo, memberRepo, advancer, publisher, wsHub, logger,
	)
	tournamentService := services.NewTournamentService(
		dbConn, txManager, tournamentRepo, entryRepo,
		matchRepo, setResultRepo, uploader, logger,
	)
	logger.Info("Services initialized")

	// Sweep pending results whose confirmation window has expired.
	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		logger.Info("auto-confirmation sweep started", slog.Duration("interval", sweepInterval))

		for range ticker.C {
			n, err := resultService.AutoConfirmExpired(context.Background())
			if err != nil {
				logger.Error("auto-confirmation sweep failed", slog.Any("error", err))
				continue
			}
			if n > 0 {
				logger.Info("auto-confirmed expired results", slog.Int("count", n))
			}
		}
	}()

	auth := middleware.NewAuthenticator(cfg.GatewayJWTSecret)
	router := api.InitRoutes(api.Handlers{
		Tournament: handlers.NewTournamentHandler(tournamentService),
		Fixture:    handlers.NewFixtureHandler(fixtureService),
		Result:     handlers.NewResultHandler(resultService),
		Incident:   handlers.NewIncidentHandler(incidentService),
		WebSocket:  handlers.NewWebSocketHandler(wsHub, logger),
	}, auth)
	logger.Info("Routes configured")

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("server stopped gracefully")
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			os.Exit(1)
		}
		logger.Info("server shutdown complete")
	}
	logger.Info("application exited")
}
