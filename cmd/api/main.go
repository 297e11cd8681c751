package main

import (
	"context"
	"log"

	"jyotish-chat/config"
	"jyotish-chat/internal/ai"
	"jyotish-chat/internal/handler"
	"jyotish-chat/internal/presence"
	"jyotish-chat/internal/proxy"
	"jyotish-chat/internal/redis"
	"jyotish-chat/internal/repository"
	"jyotish-chat/internal/server"
	"jyotish-chat/internal/services"
	"jyotish-chat/internal/websocket"
	"jyotish-chat/pkg/logger"

	goredis "github.com/redis/go-redis/v9"
)

func main() {
	cfg := config.LoadConfig()

	appLogger := logger.New(cfg.LogMode)
	logger.SetGlobalLogger(appLogger)

	ctx := context.Background()

	store, err := repository.OpenStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open %s store: %v", cfg.StoreDriver, err)
	}
	if err := store.Migrate(ctx); err != nil {
		log.Fatalf("Failed to migrate %s store: %v", cfg.StoreDriver, err)
	}

	var redisClient *goredis.Client
	var limiter *redis.RateLimiter
	redisCfg := redis.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
	if cfg.RateLimitEnabled && redisCfg.Enabled() {
		redisClient, err = redis.Connect(ctx, redisCfg)
		if err != nil {
			// limits are advisory; run without them rather than refuse to start
			appLogger.Warnf("Rate limiting disabled: %v", err)
		} else {
			limits := redis.DefaultRateLimitConfig()
			limits.MessageLimit = cfg.MessageRateLimit
			limits.CallLimit = cfg.CallRateLimit
			limits.ConnectLimit = cfg.ConnectRateLimit
			limiter = redis.NewRateLimiter(redisClient, limits)
		}
	}

	var generator services.Generator
	if cfg.AIAPIKey != "" {
		gemini, err := ai.NewGeminiGenerator(ctx, cfg.AIAPIKey, cfg.AIModel)
		if err != nil {
			appLogger.Warnf("Summaries will use the fallback text: %v", err)
		} else {
			generator = gemini
		}
	}

	authService := services.NewAuthService(cfg)
	conversationService := services.NewConversationService(store.Conversations, store.Profiles, proxy.NewAccessControl())
	summaryService := services.NewSummaryService(conversationService, generator, cfg.AITimeout, appLogger)

	wsLogger := websocket.NewWebSocketLogger(appLogger.Logger)
	registry := presence.NewRegistry()
	hub := websocket.NewHub()
	router := websocket.NewRouter(hub, wsLogger)
	websocket.NewChatHandler(hub, conversationService, summaryService, limiter, wsLogger).RegisterRoutes(router)
	websocket.NewCallRelay(hub, registry, limiter, wsLogger).RegisterRoutes(router)

	srv := server.New(cfg, appLogger)
	srv.SetupRoutes(&server.Handlers{
		Chat:      handler.NewChatHandler(conversationService),
		Health:    handler.NewHealthHandler(conversationService),
		WebSocket: websocket.NewHandler(authService, hub, registry, router, cfg.AllowedOrigins, wsLogger),
	}, authService, limiter)

	srv.OnShutdown(store.Close)
	if redisClient != nil {
		srv.OnShutdown(func(context.Context) error { return redisClient.Close() })
	}
	srv.OnShutdown(func(context.Context) error {
		appLogger.Sync()
		return nil
	})

	if err := srv.Start(); err != nil {
		log.Fatalf("Server stopped with error: %v", err)
	}
}
