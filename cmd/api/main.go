// Package main is the entrypoint for the guard journal service: the
// Telegram webhook and the read-only dashboard API.
package main

import (
	"context"
	"io"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"regexp"
	"strings"
	"syscall"
	_ "time/tzdata"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/guardlog/guardlog/internal/bot"
	"github.com/guardlog/guardlog/internal/cache"
	"github.com/guardlog/guardlog/internal/config"
	"github.com/guardlog/guardlog/internal/extraction"
	"github.com/guardlog/guardlog/internal/handler"
	"github.com/guardlog/guardlog/internal/metrics"
	"github.com/guardlog/guardlog/internal/middleware"
	"github.com/guardlog/guardlog/internal/repository"
	"github.com/guardlog/guardlog/internal/server"
	"github.com/guardlog/guardlog/internal/service"
	"github.com/guardlog/guardlog/internal/telegram"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger, closeLog := initLogger(cfg)

	loc, err := cfg.Location()
	if err != nil {
		logger.Error("invalid timezone", "error", err)
		os.Exit(1)
	}

	// Initialize database
	repo, err := repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		os.Exit(1)
	}
	if err := repo.ApplyMigrations(ctx); err != nil {
		logger.Error("failed to apply migrations", slog.String("error", sanitizeError(err, cfg.DatabaseURL)))
		os.Exit(1)
	}
	logger.Info("connected to database")

	// Initialize cache
	cacheClient, err := cache.New(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error(
			"failed to connect to Redis",
			slog.String("error", sanitizeError(err, cfg.RedisURL)),
			slog.String("redis_url", redactURL(cfg.RedisURL)),
		)
		os.Exit(1)
	}
	logger.Info("connected to Redis")

	// Telegram transport
	tg, err := telegram.New(cfg.TelegramBotToken, cfg.MaxVoiceBytes)
	if err != nil {
		logger.Error("failed to initialize Telegram client",
			slog.String("error", sanitizeError(err, cfg.TelegramBotToken)))
		os.Exit(1)
	}
	if webhookURL := cfg.WebhookURL(); webhookURL != "" {
		if err := tg.RegisterWebhook(ctx, webhookURL); err != nil {
			logger.Error("failed to register webhook",
				slog.String("error", sanitizeError(err, cfg.TelegramBotToken, cfg.WebhookSecret)))
			os.Exit(1)
		}
		logger.Info("webhook registered", slog.String("url", redactSecrets(webhookURL, cfg.WebhookSecret)))
	}

	// Extraction model
	generator, err := extraction.NewGeminiGenerator(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiTimeout)
	if err != nil {
		logger.Error("failed to initialize extraction model",
			slog.String("error", sanitizeError(err, cfg.GeminiAPIKey)))
		os.Exit(1)
	}

	// Initialize services
	recorder := metrics.NewInMemory()
	extractor := extraction.NewClient(generator, recorder)
	users := service.NewUserService(repo, cfg.MaxUsers)
	journal := service.NewJournalService(repo, extractor, cacheClient, recorder, service.JournalConfig{
		ListLimit: cfg.ListLimit,
		CacheTTL:  cfg.DashboardCacheTTL,
	})

	dispatcher := bot.New(bot.Deps{
		Messenger:   tg,
		RateLimiter: cacheClient,
		Users:       users,
		Journal:     journal,
		Extractor:   extractor,
		Interpreter: service.NewInterpreter(extractor),
	}, bot.Config{
		AllowedUserIDs: cfg.AllowedUserIDs,
		RateWindow:     cfg.RateLimitWindow,
		RateLimit:      cfg.RateLimitMaxRequests,
		Location:       loc,
		MaxVoiceBytes:  cfg.MaxVoiceBytes,
	}, logger.With("component", "bot"), recorder)

	// Initialize handlers
	r := setupRouter(routes{
		root:    handler.New(version),
		health:  handler.NewHealthHandler(repo, cacheClient),
		metrics: handler.NewMetricsHandler(recorder),
		webhook: handler.NewWebhookHandler(dispatcher, cfg.WebhookSecret, cfg.MaxRequestBodySize, logger),
		journal: handler.NewJournalHandler(journal, logger, cfg.DashboardLimit, cfg.DashboardMaxLimit),
	}, cacheClient, cfg, logger)

	srv := server.New(r, server.Options{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)

	// Shutdown runs in reverse: Redis, then Postgres, then the log file.
	srv.OnShutdown("log", func(context.Context) error { return closeLog() })
	srv.OnShutdown("postgres", func(context.Context) error {
		repo.Close()
		return nil
	})
	srv.OnShutdown("redis", func(context.Context) error { return cacheClient.Close() })

	logger.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
		"version", version,
		"timezone", loc.String(),
		"allow_list_size", len(cfg.AllowedUserIDs),
	)

	if err := srv.Run(ctx); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// initLogger initializes the slog logger based on configuration. The
// returned func closes the rotating log file, if any.
func initLogger(cfg *config.Config) (*slog.Logger, func() error) {
	var out io.Writer = os.Stdout
	closeFn := func() error { return nil }

	if cfg.LogFile != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    cfg.LogMaxSizeMB,
			MaxBackups: cfg.LogMaxBackups,
			MaxAge:     cfg.LogMaxAgeDays,
			Compress:   true,
		}
		out = io.MultiWriter(os.Stdout, rotator)
		closeFn = rotator.Close
	}

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}

	var h slog.Handler
	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(out, opts)
	} else {
		h = slog.NewTextHandler(out, opts)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)

	return logger, closeFn
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type routes struct {
	root    *handler.Handler
	health  *handler.HealthHandler
	metrics *handler.MetricsHandler
	webhook *handler.WebhookHandler
	journal *handler.JournalHandler
}

// setupRouter configures the chi router with all routes and middleware.
func setupRouter(h routes, limiter middleware.IPLimiter, cfg *config.Config, logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.Security(middleware.SecurityConfig{IsDevelopment: cfg.IsDevelopment()}))
	r.Use(middleware.MaxBodySize(cfg.MaxRequestBodySize))

	r.Get("/", h.root.Index)
	r.Get("/healthz", h.health.Healthz)
	r.Get("/readyz", h.health.Readyz)
	r.Get("/metrics", h.metrics.Metrics)

	// Telegram delivers here; the secret is the last path segment.
	r.Post("/webhook", h.webhook.Receive)
	r.Post("/webhook/{secret}", h.webhook.Receive)

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.GetCORSAllowedOrigins()

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.CORS(corsCfg))
		r.Use(middleware.RateLimitIP(middleware.RateLimitConfig{
			Logger:  logger,
			Limiter: limiter,
			Enabled: cfg.RateLimitDashboardEnabled,
			RPS:     cfg.RateLimitDashboardRPS,
			Burst:   cfg.RateLimitDashboardBurst,
		}))

		r.Get("/journal", h.journal.List)
	})

	// 404 and 405 handlers
	r.NotFound(h.root.NotFound)
	r.MethodNotAllowed(h.root.MethodNotAllowed)

	return r
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

// botTokenPattern matches Telegram bot tokens, which appear in API URLs.
var botTokenPattern = regexp.MustCompile(`\d{5,}:[A-Za-z0-9_-]{20,}`)

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}
	return redactSecrets(err.Error(), secrets...)
}

func redactSecrets(msg string, secrets ...string) string {
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" || redacted == secret {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	msg = botTokenPattern.ReplaceAllString(msg, "[redacted]")
	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
