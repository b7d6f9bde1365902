package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/songclash/songclash/brackets"
	"github.com/songclash/songclash/config"
	"github.com/songclash/songclash/db"
	"github.com/songclash/songclash/events"
	"github.com/songclash/songclash/handlers"
	"github.com/songclash/songclash/realtime"
	"github.com/songclash/songclash/repositories"
	api "github.com/songclash/songclash/routes"
	"github.com/songclash/songclash/services"
	"github.com/songclash/songclash/spotify"
	"github.com/songclash/songclash/storage"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

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
		}
	}()
	logger.Info("database connection established")

	var artwork services.ArtworkMirror
	if cfg.R2Configured() {
		uploader, err := storage.NewCloudflareR2Uploader(storage.CloudflareR2UploaderConfig{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicBaseURL:   cfg.R2PublicBaseURL,
		})
		if err != nil {
			logger.Error("failed to initialize Cloudflare R2 uploader", slog.Any("error", err))
			os.Exit(1)
		}
		artwork = storage.NewArtworkMirror(uploader)
		logger.Info("Cloudflare R2 artwork mirror initialized")
	} else {
		logger.Info("R2 not configured, song artwork keeps original URLs")
	}

	spotifyClient := spotify.New(cfg.SpotifyClientID, cfg.SpotifyClientSecret, cfg.SpotifyRefreshToken)
	var playbackController services.PlaybackController
	if cfg.SpotifyConfigured() && spotifyClient.CanControlPlayback() {
		playbackController = spotifyClient
		logger.Info("spotify playback control enabled")
	}

	hub := realtime.NewHub(logger)
	bus := events.NewBus(logger)
	locker := services.NewMatchLocker()
	ladder := brackets.NewLadderGenerator(rand.New(rand.NewSource(time.Now().UnixNano())))

	userRepo := repositories.NewPostgresUserRepository(dbConn)
	sessionRepo := repositories.NewPostgresSessionRepository(dbConn)
	playerRepo := repositories.NewPostgresPlayerRepository(dbConn)
	tournamentRepo := repositories.NewPostgresTournamentRepository(dbConn)
	songRepo := repositories.NewPostgresSongRepository(dbConn)
	matchRepo := repositories.NewPostgresMatchRepository(dbConn)
	voteRepo := repositories.NewPostgresVoteRepository(dbConn)
	logger.Info("repositories initialized")

	authService := services.NewAuthService(userRepo, cfg.JWTSecretKey)
	sessionService := services.NewSessionService(sessionRepo, playerRepo, tournamentRepo, songRepo, matchRepo, hub)
	tournamentService := services.NewTournamentService(
		sessionRepo, playerRepo, tournamentRepo, songRepo, matchRepo,
		ladder, sessionService, hub, artwork, logger,
	)
	voteService := services.NewVoteService(
		playerRepo, tournamentRepo, matchRepo, voteRepo,
		locker, bus, sessionService, hub, logger,
	)
	playbackService := services.NewPlaybackService(
		playerRepo, tournamentRepo, songRepo, matchRepo,
		playbackController, hub, logger,
	)

	progression := services.NewProgressionService(
		playerRepo, tournamentRepo, songRepo, matchRepo, voteRepo,
		ladder, locker, bus, sessionService, hub, logger,
	)
	progression.Register()
	logger.Info("services initialized")

	router := chi.NewRouter()
	api.Setup(router, api.Handlers{
		Auth:       handlers.NewAuthHandler(authService),
		Session:    handlers.NewSessionHandler(sessionService),
		Tournament: handlers.NewTournamentHandler(tournamentService),
		Vote:       handlers.NewVoteHandler(voteService),
		Playback:   handlers.NewPlaybackHandler(playbackService),
		Search:     handlers.NewSearchHandler(spotifyClient),
		Stream:     handlers.NewStreamHandler(hub, sessionService, logger),
	}, cfg.JWTSecretKey)
	logger.Info("routes configured")

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
}
