// File: cmd/app/main.go
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

	"github.com/rs/zerolog"

	"github.com/ping-media/ai-career-counselor-api/internal/config"
	"github.com/ping-media/ai-career-counselor-api/internal/domain/catalog"
	"github.com/ping-media/ai-career-counselor-api/internal/domain/ports/adapter"
	"github.com/ping-media/ai-career-counselor-api/internal/domain/ports/repository"
	aiAdapters "github.com/ping-media/ai-career-counselor-api/internal/infra/adapters/ai"
	tele "github.com/ping-media/ai-career-counselor-api/internal/infra/adapters/telegram"
	"github.com/ping-media/ai-career-counselor-api/internal/infra/api"
	"github.com/ping-media/ai-career-counselor-api/internal/infra/db/memory"
	pg "github.com/ping-media/ai-career-counselor-api/internal/infra/db/postgres"
	"github.com/ping-media/ai-career-counselor-api/internal/infra/db/sqlite"
	"github.com/ping-media/ai-career-counselor-api/internal/infra/i18n"
	"github.com/ping-media/ai-career-counselor-api/internal/infra/lock"
	"github.com/ping-media/ai-career-counselor-api/internal/infra/logging"
	"github.com/ping-media/ai-career-counselor-api/internal/infra/metrics"
	red "github.com/ping-media/ai-career-counselor-api/internal/infra/redis"
	"github.com/ping-media/ai-career-counselor-api/internal/infra/sched"
	"github.com/ping-media/ai-career-counselor-api/internal/infra/security"
	"github.com/ping-media/ai-career-counselor-api/internal/usecase"
)

// set by -ldflags at build time
var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("[DEV MODE] Enabled")
	}

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	// ---- Catalog ----
	var cat *catalog.Catalog
	if cfg.Catalog.Path != "" {
		cat, err = catalog.Load(cfg.Catalog.Path)
	} else {
		cat, err = catalog.Default()
	}
	if err != nil {
		logger.Fatal().Err(err).Msg("catalog")
	}

	// ---- Encryption ----
	sealer, err := security.NewSealer(cfg.Security.EncryptionKey)
	if err != nil {
		logger.Fatal().Err(err).Msg("encryption")
	}
	if !sealer.Enabled() && cfg.Database.Driver != "memory" {
		logger.Warn().Msg("security.encryption_key not set; message content is stored in plain text")
	}

	// ---- Session store ----
	store, closeStore, err := openStore(ctx, cfg, sealer, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.Database.Driver).Msg("session store")
	}
	defer closeStore()

	// ---- Redis ----
	var (
		sessions repository.CareerSessionRepository = store
		sweeper  sched.IdleSweeper                  = store
		locker   repository.SessionLocker           = lock.NewKeyedMutex()
		bindings repository.ChatBindingRepository   = memory.NewBindingRepo()
		limiter  api.Limiter
	)
	if cfg.Redis.URL != "" {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis")
		}
		defer redisClient.Close()

		cached := red.NewCachedSessionRepo(store, redisClient, sealer, cfg.Session.CacheTTL, logger)
		sessions, sweeper = cached, cached
		bindings = red.NewChatBindingRepo(redisClient, cfg.Redis.TTL)
		limiter = red.NewRateLimiter(redisClient)
		if cfg.Session.Lock == "redis" {
			locker = red.NewLocker(redisClient, cfg.Session.LockTTL, logger)
		}
	}
	logger.Info().
		Str("driver", cfg.Database.Driver).
		Str("lock", cfg.Session.Lock).
		Bool("cache", cfg.Redis.URL != "").
		Msg("session storage ready")

	// ---- AI ----
	ai, err := buildAI(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("ai adapter")
	}

	// ---- Tokens ----
	tokens := aiAdapters.NewTokenCounter()
	if !tokens.Warm(cfg.AI.DefaultModel) {
		logger.Warn().Str("model", cfg.AI.DefaultModel).Msg("no tiktoken encoding available; estimating token counts")
	}

	// ---- Use case ----
	careerUC := usecase.NewCareerUseCase(sessions, locker, ai, cat, usecase.CareerOptions{
		Model:            cfg.AI.DefaultModel,
		Sampling:         usecase.Sampling{Temperature: *cfg.AI.Temperature, MaxTokens: cfg.AI.MaxTokens},
		Stateless:        usecase.Sampling{Temperature: *cfg.AI.Stateless.Temperature, MaxTokens: cfg.AI.Stateless.MaxTokens},
		Timeout:          cfg.AI.Timeout,
		MaxMessageLength: cfg.Session.MaxMessageLength,
		DeleteSuperseded: cfg.Session.DeleteSuperseded,
		Dev:              cfg.Runtime.Dev,
		Tokens:           tokens,
	}, logger)

	// ---- Telegram ----
	if cfg.Bot.Enabled {
		tr, err := i18n.NewTranslator(i18n.LocalesFS, cfg.Bot.Language)
		if err != nil {
			logger.Fatal().Err(err).Msg("bot locale")
		}
		botAdapter, err := tele.NewRealTelegramBotAdapter(cfg.Bot.Token, careerUC, bindings, tele.Options{
			Workers:          cfg.Bot.Workers,
			MaxMessageLength: cfg.Session.MaxMessageLength,
			Translator:       tr,
			Dev:              cfg.Runtime.Dev,
		}, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("telegram")
		}
		go func() {
			if err := botAdapter.StartPolling(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error().Err(err).Msg("telegram polling stopped")
			}
		}()
	}

	// ---- Session janitor ----
	if cfg.Session.IdleTTL > 0 {
		janitor := sched.NewSessionJanitor(cfg.Session.JanitorInterval, cfg.Session.IdleTTL, sweeper, logger)
		go func() { _ = janitor.Run(ctx) }()
	}

	// ---- HTTP ----
	srv := api.NewServer(careerUC, api.NewAuthManager(cfg.Admin.JWTSecret, cfg.Admin.TokenTTL), logger, cfg.Runtime.Dev)
	router := api.NewRouter(srv, api.RouterOptions{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RequestTimeout: cfg.Server.RequestTimeout,
		Limiter:        limiter,
		RatePerMinute:  cfg.RateLimit.PerMinute,
		RateKey:        red.ClientKey,
	})
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Str("version", version).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server error")
			cancel()
		}
	}()

	// ---- Graceful shutdown ----
	<-ctx.Done()
	logger.Info().Msg("shutdown requested")
	shutdownCtx, done := context.WithTimeout(context.Background(), 15*time.Second)
	defer done()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
}

type sweepingStore interface {
	repository.CareerSessionRepository
	sched.IdleSweeper
}

// openStore returns the configured session store and a func releasing it.
func openStore(ctx context.Context, cfg *config.Config, sealer security.Sealer, logger *zerolog.Logger) (sweepingStore, func(), error) {
	switch cfg.Database.Driver {
	case "postgres":
		pool, err := pg.Connect(ctx, cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		if err := pg.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
		go pg.ReportPoolStats(ctx, pool, 15*time.Second)
		repo := pg.NewCareerSessionRepo(pool, pg.NewTxManager(pool), sealer)
		return repo, pool.Close, nil

	case "sqlite":
		repo, err := sqlite.Open(ctx, cfg.Database.URL, sealer)
		if err != nil {
			return nil, nil, err
		}
		return repo, func() {
			if err := repo.Close(); err != nil {
				logger.Warn().Err(err).Msg("sqlite close")
			}
		}, nil

	default:
		repo := memory.NewSessionRepo()
		return repo, func() {}, nil
	}
}

func buildAI(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (adapter.AIServiceAdapter, error) {
	byProvider := map[string]adapter.AIServiceAdapter{}
	if cfg.AI.OpenAIKey != "" {
		a, err := aiAdapters.NewOpenAIAdapter(cfg.AI.OpenAIKey, cfg.AI.OpenAIBaseURL, cfg.AI.DefaultModel)
		if err != nil {
			return nil, fmt.Errorf("openai adapter: %w", err)
		}
		byProvider["openai"] = a
	}
	if cfg.AI.GeminiKey != "" {
		a, err := aiAdapters.NewGeminiAdapter(ctx, cfg.AI.GeminiKey, cfg.AI.GeminiBaseURL, cfg.AI.DefaultModel)
		if err != nil {
			return nil, fmt.Errorf("gemini adapter: %w", err)
		}
		byProvider["gemini"] = a
	}
	if cfg.AI.Provider == "noop" {
		byProvider["noop"] = aiAdapters.NewNoopAIAdapter(logger)
	}

	multi := aiAdapters.NewMultiAIAdapter(cfg.AI.Provider, byProvider, nil)
	logger.Info().
		Str("provider", cfg.AI.Provider).
		Str("model", cfg.AI.DefaultModel).
		Int("concurrent_limit", cfg.AI.ConcurrentLimit).
		Msg("AI adapter ready")
	limited := aiAdapters.NewLimitedAI(multi, cfg.AI.ConcurrentLimit)
	return aiAdapters.NewMeteredAI(limited, cfg.AI.Provider, cfg.AI.DefaultModel), nil
}
