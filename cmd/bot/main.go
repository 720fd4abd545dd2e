// Package main is the entry point for the giveaway bot.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"giveaway-bot/internal/bot"
	"giveaway-bot/internal/config"
	"giveaway-bot/internal/httpapi"
	"giveaway-bot/internal/pkg/db"
	"giveaway-bot/internal/pkg/rdb"
	"giveaway-bot/internal/repository"
	"giveaway-bot/internal/service"
)

func main() {
	// Configure zerolog
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Load configuration
	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if level, err := zerolog.ParseLevel(cfg.Log.Level); err == nil {
		zerolog.SetGlobalLevel(level)
	} else {
		log.Warn().Str("level", cfg.Log.Level).Msg("Unknown log level, using info")
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	log.Info().Str("storage", cfg.Storage.Driver).Msg("Configuration loaded successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open giveaway store")
	}
	defer closeStore()

	// Initialize bot
	telegramBot, err := bot.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create bot")
	}

	notifier, err := telegramBot.ChannelNotifier()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to set up channel announcements")
	}

	giveaways, err := service.NewGiveawayService(ctx, store, notifier)
	if errors.Is(err, repository.ErrCorruptState) {
		log.Fatal().Err(err).Msg("Persisted giveaways are corrupt, refusing to start")
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize giveaway service")
	}

	telegramBot.RegisterHandlers(giveaways)

	// Finish what was due while we were down and re-arm the rest
	if err := giveaways.Recover(ctx); err != nil {
		log.Error().Err(err).Msg("Some giveaways could not be recovered, retries scheduled")
	}

	go telegramBot.Start()

	gin.SetMode(gin.ReleaseMode)
	server := httpapi.NewServer(cfg.HTTP.Addr, httpapi.NewRouter(cfg, giveaways))

	go func() {
		log.Info().Str("addr", cfg.HTTP.Addr).Msg("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server forced to shutdown")
	}

	telegramBot.Stop()
	giveaways.Stop()
	log.Info().Msg("Bot stopped gracefully")
}

// openStore opens the configured giveaway store. The returned func releases it.
func openStore(ctx context.Context, cfg *config.Config) (repository.Store, func(), error) {
	switch cfg.Storage.Driver {
	case config.StoragePostgres:
		pool, err := db.NewPool(ctx, &cfg.Database)
		if err != nil {
			return nil, nil, err
		}

		store := repository.NewPostgresStore(pool.Pool)
		if err := store.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return store, func() {
			_ = store.Close()
			pool.Close()
		}, nil

	case config.StorageRedis:
		client, err := rdb.Open(ctx, &cfg.Redis)
		if err != nil {
			return nil, nil, err
		}

		store := repository.NewRedisStore(client, cfg.Redis.Key)
		return store, func() {
			if err := store.Close(); err != nil {
				log.Warn().Err(err).Msg("Failed to close Redis client")
			}
		}, nil

	default:
		store := repository.NewFileStore(cfg.Storage.Path)
		log.Info().Str("path", store.Path()).Msg("Using file store")
		return store, func() { _ = store.Close() }, nil
	}
}
