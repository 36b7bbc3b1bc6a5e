package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/lumenclass/selcoach/internal/api"
	"github.com/lumenclass/selcoach/internal/coach"
	"github.com/lumenclass/selcoach/internal/config"
	"github.com/lumenclass/selcoach/internal/library"
	"github.com/lumenclass/selcoach/internal/provider"
	"github.com/lumenclass/selcoach/internal/session"
	"github.com/lumenclass/selcoach/internal/snapshot"
	pgstore "github.com/lumenclass/selcoach/internal/store"
	"github.com/lumenclass/selcoach/internal/surface"
	"github.com/lumenclass/selcoach/internal/usage"
)

// snapshotTTL bounds how long a parked screening survives in Redis.
const snapshotTTL = 30 * 24 * time.Hour

func main() {
	_ = godotenv.Load()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	logger.Info("Starting SEL Coach...")

	// Load configuration
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "configs/selcoach.json"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Fatal("failed to load config", zap.String("path", cfgPath), zap.Error(err))
	}
	logger.Info("Config loaded", zap.String("path", cfgPath))

	if cfg.Server.LogLevel == "production" {
		prod, perr := zap.NewProduction()
		if perr == nil {
			logger = prod
			defer logger.Sync()
		}
	}

	// Initialize provider router
	router := provider.NewRouter(logger)
	defaultModel := ""
	for _, pc := range cfg.Providers {
		provCfg := provider.Config{
			ID: pc.ID, Type: pc.Type, Name: pc.Name,
			Endpoint: pc.Endpoint, APIKey: pc.APIKey, Model: pc.Model,
		}
		switch pc.Type {
		case "openai":
			router.Register(provider.NewOpenAIProvider(provCfg, logger))
		case "anthropic":
			router.Register(provider.NewAnthropicProvider(provCfg, logger))
		default:
			logger.Warn("unknown provider type", zap.String("id", pc.ID), zap.String("type", pc.Type))
			continue
		}
		if pc.Default || defaultModel == "" {
			router.SetDefault(pc.ID)
			defaultModel = pc.Model
		}
	}

	// Session manager carries the per-session generation defaults
	sessions := session.NewManager(session.Defaults{
		Model:     defaultModel,
		MaxTokens: 4096,
		UseCache:  true,
		PerMinute: cfg.Limits.PerMinute,
		PerHour:   cfg.Limits.PerHour,
		Prices: usage.PriceTable{
			Input:      cfg.Pricing.InputPerMTok,
			Output:     cfg.Pricing.OutputPerMTok,
			CacheWrite: cfg.Pricing.CacheWritePerMTok,
			CacheRead:  cfg.Pricing.CacheReadPerMTok,
		},
	})

	gateway := coach.NewGateway(router, logger)
	allow := session.NewAllowlist(cfg.Auth.Admins)

	// Initialize PostgreSQL archive
	var store *pgstore.Store
	if cfg.Database.Postgres.DSN != "" {
		ps, pgErr := pgstore.New(cfg.Database.Postgres.DSN, logger)
		if pgErr != nil {
			logger.Warn("PostgreSQL unavailable, running without archive", zap.Error(pgErr))
		} else {
			if mErr := ps.Migrate(context.Background(), "migrations"); mErr != nil {
				logger.Fatal("migration failed", zap.Error(mErr))
			}
			store = ps
		}
	}

	// Initialize Redis snapshot saver
	var saver snapshot.Saver
	if cfg.Database.Redis.URL != "" {
		rs, rErr := snapshot.NewRedisSaver(cfg.Database.Redis.URL, snapshotTTL, logger)
		if rErr != nil {
			logger.Warn("Redis unavailable, running without screening snapshots", zap.Error(rErr))
		} else {
			saver = rs
			defer rs.Close()
		}
	}

	// Initialize evidence library
	var lib *library.Library
	if cfg.Embedding.Endpoint != "" && cfg.Database.Qdrant.Host != "" {
		embedder := library.NewAPIEmbedder(library.EmbedConfig{
			Endpoint:  cfg.Embedding.Endpoint,
			APIKey:    cfg.Embedding.APIKey,
			Model:     cfg.Embedding.Model,
			Dimension: cfg.Embedding.Dimension,
		})
		collection := cfg.Library.Collection
		if collection == "" {
			collection = library.DefaultCollection
		}
		l, lErr := library.New(context.Background(), embedder, library.VectorConfig{
			Host: cfg.Database.Qdrant.Host,
			Port: cfg.Database.Qdrant.Port,
		}, collection, logger)
		if lErr != nil {
			logger.Warn("Qdrant unavailable, running without evidence library", zap.Error(lErr))
		} else {
			lib = l
			defer lib.Close()
		}
	}

	// Initialize chat surfaces
	surfaces := surface.NewManager(logger)

	// Wire dispatcher BEFORE registering adapters (Register captures handler)
	surface.NewDispatcher(gateway, sessions, surfaces, lib, logger)

	restAdapter := surface.NewRESTAdapter(logger)
	surfaces.Register(restAdapter)

	if cfg.Gateway.Slack.Enabled && cfg.Gateway.Slack.BotToken != "" {
		surfaces.Register(surface.NewSlackAdapter(cfg.Gateway.Slack.BotToken, cfg.Gateway.Slack.AppToken, logger))
	}
	if cfg.Gateway.Discord.Enabled && cfg.Gateway.Discord.BotToken != "" {
		surfaces.Register(surface.NewDiscordAdapter(cfg.Gateway.Discord.BotToken, logger))
	}

	if err := surfaces.ConnectAll(context.Background()); err != nil {
		logger.Warn("some surface adapters failed to connect", zap.Error(err))
	}

	// Build HTTP handler
	handler := api.NewHandler(sessions, gateway, allow, store, saver, lib, restAdapter, logger)

	// Start server
	port := fmt.Sprintf("%d", cfg.Server.Port)
	if port == "0" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: handler.Router(),
	}

	go func() {
		logger.Info("SEL Coach listening", zap.String("port", port))
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down SEL Coach...")
	surfaces.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
	if store != nil {
		store.Close()
	}
	logger.Info("Shutdown complete")
}
