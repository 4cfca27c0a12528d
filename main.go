package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"teachbot/internal/api"
	"teachbot/internal/auth"
	"teachbot/internal/config"
	"teachbot/internal/gateway"
	"teachbot/internal/llm"
	"teachbot/internal/redis"
	"teachbot/internal/session"
	"teachbot/internal/storage"

	"github.com/gin-gonic/gin"
)

func main() {
	cfgPath := os.Getenv("TEACHBOT_CONFIG")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	botToken := os.Getenv("TEACHBOT_TELEGRAM_TOKEN")
	if botToken == "" {
		log.Fatalf("TEACHBOT_TELEGRAM_TOKEN must be set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	llmClient, err := llm.NewClient(ctx, cfg)
	if err != nil {
		log.Fatalf("init completion client: %v", err)
	}

	idleTTL := time.Duration(cfg.BasicConfig.SessionIdleMinutes) * time.Minute
	registry := session.NewRegistry(llmClient, idleTTL)
	registry.StartSweeper(ctx, time.Duration(cfg.BasicConfig.SweepIntervalMinutes)*time.Minute)

	var policy auth.Policy = auth.OpenPolicy{}
	var store *auth.Store
	if cfg.BasicConfig.TokenFile != "" {
		dbType := os.Getenv("TEACHBOT_DB")
		if dbType == "" {
			dbType = "sqlite3"
		}
		db, err := storage.Open(dbType, cfg)
		if err != nil {
			log.Fatalf("open database: %v", err)
		}
		defer db.Close()
		if err := storage.Migrate(db, dbType); err != nil {
			log.Fatalf("migrate database: %v", err)
		}

		tokens, err := auth.ReadTokenFile(cfg.BasicConfig.TokenFile)
		if err != nil {
			log.Fatalf("load token file: %v", err)
		}
		store = auth.NewStore(db, dbType)
		if err := store.EnsureTokens(ctx, tokens); err != nil {
			log.Fatalf("seed tokens: %v", err)
		}
		log.Printf("token gate enabled with %d token(s)", len(tokens))

		var cache *redis.Client
		if cfg.Redis.Host != "" {
			cache, err = redis.NewRedisClient(cfg)
			if err != nil {
				log.Fatalf("create redis client: %v", err)
			}
			defer cache.Close()
		}
		authCacheTTL := time.Duration(cfg.BasicConfig.AuthCacheMinutes) * time.Minute
		policy = auth.NewTokenPolicy(store, cache, authCacheTTL)
	} else {
		log.Printf("no token file configured, running with open access")
	}

	if addr := cfg.BasicConfig.ServerAddress; addr != "" {
		router := gin.Default()
		api.NewHandler(registry, store).RegisterRoutes(router)
		go func() {
			if err := router.Run(addr); err != nil {
				log.Fatalf("status server stopped: %v", err)
			}
		}()
	}

	timeout := time.Duration(cfg.BasicConfig.HandleTimeoutSeconds) * time.Second
	gw, err := gateway.New(botToken, policy, registry, timeout)
	if err != nil {
		log.Fatalf("init telegram gateway: %v", err)
	}
	gw.Run(ctx)
}
