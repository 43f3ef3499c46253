package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/seu-repo/alexa-skills/internal/adapter/ai/gemini"
	"github.com/seu-repo/alexa-skills/internal/adapter/cache"
	"github.com/seu-repo/alexa-skills/internal/adapter/http/fiber/handlers"
	"github.com/seu-repo/alexa-skills/internal/adapter/http/fiber/middleware"
	"github.com/seu-repo/alexa-skills/internal/adapter/vault"
	"github.com/seu-repo/alexa-skills/internal/infrastructure/circuitbreaker"
	"github.com/seu-repo/alexa-skills/internal/observability/telemetry"
	"github.com/seu-repo/alexa-skills/internal/ports"
	geminiskill "github.com/seu-repo/alexa-skills/internal/service/gemini"
	"github.com/seu-repo/alexa-skills/internal/service/health"
	"github.com/seu-repo/alexa-skills/pkg/config"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	// 2. Initialize Logger
	logger, err := newLogger(cfg.Logging)
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer logger.Sync()

	logger.Info("Starting Alexa skill server",
		zap.String("service", cfg.App.Name),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	ctx := context.Background()

	// 3. Resolve the Gemini API key from Vault when configured
	if cfg.Vault.Enabled {
		sm, err := vault.NewSecretManager(cfg.Vault.Address, cfg.Vault.Token)
		if err != nil {
			logger.Fatal("Failed to create Vault client", zap.Error(err))
		}
		key, err := sm.GeminiAPIKey(cfg.Vault.SecretPath, cfg.Vault.SecretKey)
		if err != nil {
			logger.Fatal("Failed to read Gemini API key from Vault", zap.Error(err))
		}
		cfg.Gemini.APIKey = key
		logger.Info("Gemini API key loaded from Vault", zap.String("path", cfg.Vault.SecretPath))
	}

	if err := cfg.Validate(); err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}

	// 4. Initialize OpenTelemetry (Distributed Tracing)
	if cfg.OpenTelemetry.Enabled {
		tracerProvider, err := telemetry.InitTracer(cfg.OpenTelemetry.ServiceName, cfg.App.Version, cfg.OpenTelemetry.Jaeger.Endpoint)
		if err != nil {
			logger.Fatal("Failed to initialize tracer", zap.Error(err))
		}
		defer func() {
			if err := tracerProvider.Shutdown(context.Background()); err != nil {
				logger.Error("Error shutting down tracer provider", zap.Error(err))
			}
		}()
	}

	healthService := health.NewService(&health.Config{
		Version: cfg.App.Version,
		Skills:  []string{geminiskill.SkillName},
	}, logger)

	// 5. Initialize Gemini client, guarded by a circuit breaker
	geminiClient, err := gemini.NewClient(ctx, cfg.Gemini.APIKey, gemini.Options{
		Model:           cfg.Gemini.Model,
		Temperature:     cfg.Gemini.Temperature,
		MaxOutputTokens: cfg.Gemini.MaxOutputTokens,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to create Gemini client", zap.Error(err))
	}
	defer geminiClient.Close()

	var generator ports.TextGenerator = geminiClient
	if cfg.CircuitBreaker.Enabled {
		breaker := circuitbreaker.NewGenerator(geminiClient, circuitbreaker.Settings{
			Name:         "gemini",
			MaxRequests:  cfg.CircuitBreaker.MaxRequests,
			Interval:     cfg.CircuitBreaker.Interval,
			Timeout:      cfg.CircuitBreaker.Timeout,
			MinRequests:  cfg.CircuitBreaker.MinRequests,
			FailureRatio: cfg.CircuitBreaker.FailureThreshold,
		}, logger)
		healthService.RegisterChecker("gemini_breaker", health.BreakerChecker(breaker.State))
		generator = breaker
	}

	// 6. Initialize answer cache
	var answerCache ports.Cache
	if cfg.Cache.Enabled {
		answerCache = newCache(cfg.Cache, logger)
		defer answerCache.Close()
		healthService.RegisterChecker("cache", health.PingChecker(answerCache.Ping, health.StatusDegraded, logger))
	}

	// 7. Build skills
	geminiSkill, err := geminiskill.NewService(generator, answerCache, geminiskill.Config{
		SkillID:           cfg.Skills.Gemini.SkillID,
		SystemInstruction: cfg.Gemini.SystemInstruction,
		Timeout:           cfg.Gemini.Timeout,
		MaxSpeechLength:   cfg.Skills.Gemini.MaxSpeechLength,
		AnswerTTL:         cfg.Cache.AnswerTTL,
	}, logger.With(zap.String("skill", geminiskill.SkillName))).Build()
	if err != nil {
		logger.Fatal("Failed to build Gemini skill", zap.Error(err))
	}

	// 8. Initialize Fiber HTTP Server
	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		ServerHeader:          cfg.App.Name,
		DisableStartupMessage: true,
		ReadTimeout:           cfg.HTTP.ReadTimeout,
		WriteTimeout:          cfg.HTTP.WriteTimeout,
		IdleTimeout:           cfg.HTTP.IdleTimeout,
		BodyLimit:             cfg.HTTP.BodyLimit,
		ErrorHandler:          middleware.ErrorHandler(logger),
	})

	// RequestLogger must stay outside recover to see panicking requests.
	app.Use(middleware.RequestLogger(logger))
	app.Use(recover.New())

	health.NewFiberHandler(healthService).RegisterRoutes(app)

	if cfg.Prometheus.Enabled {
		metrics := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
		app.Get(cfg.Prometheus.Path, func(c *fiber.Ctx) error {
			metrics(c.Context())
			return nil
		})
	}

	handlers.NewSkillHandler(logger, geminiSkill).RegisterRoutes(app)

	// 9. Start HTTP Server
	go func() {
		logger.Info("Starting HTTP Server", zap.Int("port", cfg.HTTP.Port))
		if err := app.Listen(fmt.Sprintf(":%d", cfg.HTTP.Port)); err != nil {
			logger.Fatal("HTTP Server failed", zap.Error(err))
		}
	}()

	// 10. Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited gracefully")
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	zcfg := zap.NewProductionConfig()
	if cfg.Format == "console" {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	return zcfg.Build()
}

// newCache prefers Redis and falls back to process memory when no URL is
// set or Redis is unreachable at startup.
func newCache(cfg config.CacheConfig, logger *zap.Logger) ports.Cache {
	if cfg.RedisURL != "" {
		redisCache, err := cache.NewRedisCache(cfg.RedisURL, logger)
		if err == nil {
			return redisCache
		}
		logger.Warn("Redis unavailable, using in-memory answer cache", zap.Error(err))
	}
	return cache.NewLocalCache(cfg.CleanupInterval, logger)
}
