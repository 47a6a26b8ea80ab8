// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"chattrain/internal/config"
	"chattrain/internal/content"
	"chattrain/internal/domain/ports/adapter"
	aiAdapters "chattrain/internal/infra/adapters/ai"
	pg "chattrain/internal/infra/db/postgres"
	"chattrain/internal/infra/logging"
	"chattrain/internal/infra/metrics"
	red "chattrain/internal/infra/redis"
	"chattrain/internal/infra/sched"
	"chattrain/internal/infra/web"
	"chattrain/internal/infra/ws"
	"chattrain/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, mock AI fallback)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("[DEV MODE] Enabled")
	}
	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 10)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()
	if err := pg.EnsureSchema(ctx, pool); err != nil {
		log.Fatalf("schema: %v", err)
	}

	// ---- Redis (optional) ----
	var limiter usecase.CallLimiter
	var sessionCache usecase.SessionSnapshotCache
	if cfg.Redis.URL != "" {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			log.Fatalf("redis: %v", err)
		}
		limiter = red.NewRateLimiter(redisClient)
		sessionCache = red.NewSessionCache(redisClient, cfg.Redis.TTL)
	} else {
		logger.Warn().Msg("redis.url not set; completion rate limiting and session caching disabled")
	}

	// ---- Repositories ----
	sessionRepo := pg.NewSessionRepo(pool)
	scenarioRepo := pg.NewScenarioRepo(pool)

	// ---- Content ----
	loader := content.NewLoader(cfg.Content.Dir, cfg.Content.CacheTTL, scenarioRepo, logger)
	files := content.NewFileServer(cfg.Content.Dir, cfg.Content.MaxFileSize, logger)

	// ---- AI Adapter (mock -> OpenAI -> Gemini) ----
	var ai adapter.CompletionAdapter
	switch {
	case cfg.AI.Mock || (cfg.AI.OpenAIKey == "" && cfg.AI.GeminiKey == ""):
		ai = aiAdapters.NewMockAdapter()
		logger.Info().Msg("AI adapter: mock (scripted replies)")
	case cfg.AI.OpenAIKey != "":
		ai, err = aiAdapters.NewOpenAIAdapter(cfg.AI.OpenAIKey, cfg.AI.DefaultModel)
		if err != nil {
			log.Fatalf("openai adapter: %v", err)
		}
		logger.Info().Str("model", cfg.AI.DefaultModel).Msg("AI adapter: OpenAI")
	default:
		ai, err = aiAdapters.NewGeminiAdapter(ctx, cfg.AI.GeminiKey, cfg.AI.GeminiURL, cfg.AI.DefaultModel)
		if err != nil {
			log.Fatalf("gemini adapter: %v", err)
		}
		logger.Info().Str("model", cfg.AI.DefaultModel).Msg("AI adapter: Gemini")
	}
	ai = aiAdapters.NewRetryingAI(ai, cfg.AI.MaxRetries, cfg.AI.MinCallInterval)
	ai = aiAdapters.NewLimitedAI(ai, cfg.AI.ConcurrentLimit)

	// ---- Use cases ----
	trainingUC := usecase.NewTrainingUseCase(
		sessionRepo, loader, ai, limiter, sessionCache,
		cfg.AI.MinCallInterval, cfg.AI.DefaultModel, logger,
	)

	// ---- HTTP + WebSocket server ----
	chat := ws.NewHandler(trainingUC, logger)
	auth := web.NewAuthManager(cfg.Admin.JWTSecret, !cfg.Runtime.Dev, cfg.Admin.TokenTTL)
	server := web.NewServer(trainingUC, loader, files, scenarioRepo, chat, auth, cfg.Admin.APIKey, logger)

	// ---- Hot-reload worker ----
	if cfg.Content.ReloadInterval > 0 {
		worker := sched.NewReloadWorker(cfg.Content.ReloadInterval, loader, logger)
		go func() { _ = worker.Run(ctx) }()
	}

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigc
		logger.Info().Msg("shutdown requested")
		cancel()
	}()

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	if err := server.Run(ctx, addr); err != nil {
		log.Fatalf("http server: %v", err)
	}
}
