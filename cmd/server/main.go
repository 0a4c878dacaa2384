package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"widgetchat-backend/internal/api"
	"widgetchat-backend/internal/cache"
	"widgetchat-backend/internal/config"
	"widgetchat-backend/internal/grounding"
	"widgetchat-backend/internal/handlers"
	"widgetchat-backend/internal/llm"
	"widgetchat-backend/internal/logger"
	"widgetchat-backend/internal/nlu"
	"widgetchat-backend/internal/services"
	"widgetchat-backend/internal/store/postgres"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	zlog, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("FATAL: Failed to build logger: %v", err)
	}
	defer zlog.Sync()
	zap.ReplaceGlobals(zlog)
	zlog.Info("starting widget chat backend")

	// 2. Initialize Database Connection Pool
	dbCtx, dbCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer dbCancel()

	dbpool, err := pgxpool.New(dbCtx, cfg.DatabaseURL)
	if err != nil {
		zlog.Fatal("unable to create database connection pool", zap.Error(err))
	}
	defer dbpool.Close()

	if err := dbpool.Ping(dbCtx); err != nil {
		zlog.Fatal("unable to ping database", zap.Error(err))
	}
	if cfg.AutoMigrate {
		if err := postgres.Migrate(dbCtx, dbpool); err != nil {
			zlog.Fatal("unable to migrate database", zap.Error(err))
		}
		zlog.Info("database schema ensured")
	}

	// 3. Initialize Dependencies (Store, Cache, NLU, Services, Handlers)
	pgStore := postgres.NewPostgresStore(dbpool, zlog)

	var groundingCache cache.Cache
	if cfg.RedisURL != "" {
		client, err := cache.NewRedisClient(dbCtx, cfg.RedisURL)
		if err != nil {
			zlog.Warn("redis unavailable, grounding cache disabled", zap.Error(err))
		} else {
			defer client.Close()
			groundingCache = cache.NewRedisCache(client, "widgetchat:")
			zlog.Info("grounding cache enabled", zap.Duration("ttl", cfg.GroundingCacheTTL))
		}
	}

	rules, err := nlu.LoadRules(cfg.NLURulesPath)
	if err != nil {
		zlog.Fatal("unable to load NLU rules", zap.Error(err))
	}
	rules, err = rules.WithDefaultLanguage(nlu.Language(cfg.DefaultLanguage))
	if err != nil {
		zlog.Fatal("invalid DEFAULT_LANGUAGE", zap.Error(err))
	}

	assembler := grounding.NewAssembler(pgStore, groundingCache, grounding.Config{
		MaxRecords: cfg.GroundingMaxRecords,
		MaxChars:   cfg.GroundingMaxChars,
		CacheTTL:   cfg.GroundingCacheTTL,
	}, zlog)

	backend := llm.NewOpenAIBackend(llm.OpenAIConfig{
		APIKey:       cfg.OpenAIAPIKey,
		BaseURL:      cfg.OpenAIBaseURL,
		DefaultModel: cfg.OpenAIModel,
	}, zlog)

	generator := services.NewResponseGenerator(backend, services.GeneratorConfig{
		Timeout:        cfg.GenerationTimeout,
		MaxTokens:      cfg.GenerationMaxTokens,
		Temperature:    cfg.GenerationTemperature,
		MaxPromptChars: cfg.MaxPromptChars,
		DefaultModel:   cfg.OpenAIModel,
	}, zlog)

	chatService := services.NewChatService(
		pgStore,
		nlu.NewAnalyzer(rules),
		assembler,
		generator,
		services.ChatConfig{MaxMessageChars: cfg.MaxMessageChars},
		zlog,
	)
	chatHandler := handlers.NewChatHandlers(chatService, cfg.ExposeErrorDetails, zlog)

	// 4. Setup Router & Inject Dependencies
	router := api.NewRouter(api.RouterDependencies{
		ChatHandler: chatHandler,
		Config:      cfg,
		Logger:      zlog,
	})

	// 5. Configure and Start HTTP Server
	// WriteTimeout outlasts the router's request timeout.
	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: cfg.RequestTimeout() + 5*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	stopChan := make(chan os.Signal, 1)
	signal.Notify(stopChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		zlog.Info("server listening", zap.String("port", cfg.HTTPPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("could not listen", zap.String("port", cfg.HTTPPort), zap.Error(err))
		}
	}()

	<-stopChan
	zlog.Info("shutdown signal received, initiating graceful shutdown")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Error("server graceful shutdown failed", zap.Error(err))
		return
	}
	zlog.Info("server shutdown complete")
}
