package main

import (
	"context"
	"crypto/tls"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/citycare/clinic-assistant/cmd/mainconfig"
	"github.com/citycare/clinic-assistant/internal/api/router"
	"github.com/citycare/clinic-assistant/internal/appointments"
	appconfig "github.com/citycare/clinic-assistant/internal/config"
	"github.com/citycare/clinic-assistant/internal/dialogue"
	"github.com/citycare/clinic-assistant/internal/extraction"
	"github.com/citycare/clinic-assistant/internal/notify"
	"github.com/citycare/clinic-assistant/internal/observability/metrics"
	"github.com/citycare/clinic-assistant/internal/session"
	"github.com/citycare/clinic-assistant/internal/webhooks"
	"github.com/citycare/clinic-assistant/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting clinic-assistant API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Session store: Redis when configured, in-memory otherwise.
	var store session.Store
	if cfg.RedisAddr != "" {
		opts := &redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		}
		if cfg.RedisTLS {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		rdb := redis.NewClient(opts)
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Error("redis unreachable", "addr", cfg.RedisAddr, "error", err)
			os.Exit(1)
		}
		store = session.NewRedisStore(rdb, cfg.SessionTTL)
		logger.Info("session store: redis", "addr", cfg.RedisAddr)
	} else {
		store = session.NewMemoryStore()
		logger.Info("session store: memory")
	}
	manager := session.NewManager(store)

	// Appointment persistence: Postgres when configured.
	var repo appointments.Repository
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("postgres connect failed", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		repo = appointments.NewPostgresRepository(pool)
		logger.Info("appointment store: postgres")
	} else {
		repo = appointments.NewMemoryRepository(appointments.DefaultRoster())
		logger.Info("appointment store: memory", "doctors", len(appointments.DefaultRoster()))
	}

	directory, err := appointments.NewDirectory(repo)
	if err != nil {
		logger.Error("doctor directory init failed", "error", err)
		os.Exit(1)
	}
	validator := appointments.NewValidator(directory, repo, nil)

	llm, closeLLM, err := buildLLM(ctx, cfg, logger)
	if err != nil {
		logger.Error("llm init failed", "error", err)
		os.Exit(1)
	}
	defer closeLLM()

	convMetrics := metrics.NewConversationMetrics(nil)

	roster, err := repo.ListDoctors(ctx)
	if err != nil || len(roster) == 0 {
		logger.Warn("roster load failed, using defaults", "error", err)
		roster = appointments.DefaultRoster()
	}

	adapter := extraction.NewAdapter(llm, extraction.AdapterConfig{
		Clinic: extraction.Clinic{
			Name:  cfg.ClinicName,
			Hours: extraction.DefaultClinic().Hours,
		},
		Roster:  roster,
		Model:   cfg.BedrockModelID,
		Timeout: cfg.ExtractionTimeout,
		Policy:  extraction.RetryPolicy{MaxAttempts: 2, BaseDelay: cfg.ExtractionBaseDelay},
		Logger:  logger,
		Metrics: convMetrics,
	})

	engine := dialogue.NewEngine(adapter, validator, repo, dialogue.EngineConfig{
		Phrases:       dialogue.NewPhrases(time.Now().UnixNano()),
		OperatorPhone: cfg.OperatorPhone,
		MaxRetries:    cfg.MaxRetries,
		Logger:        logger,
		Metrics:       convMetrics,
	})

	var messenger notify.Messenger = notify.NoopMessenger{}
	if cfg.TwilioAccountSID != "" && cfg.TwilioAuthToken != "" && cfg.TwilioFromNumber != "" {
		messenger = notify.NewTwilioMessenger(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber, logger)
		logger.Info("sms messenger: twilio", "from", cfg.TwilioFromNumber)
	} else {
		logger.Warn("sms messenger: noop, twilio not configured")
	}

	webhookHandler := webhooks.NewHandler(manager, engine, messenger, logger)

	r := router.New(&router.Config{
		Logger:           logger,
		Webhooks:         webhookHandler,
		TwilioAuthToken:  cfg.TwilioWebhookSecret,
		MetricsHandler:   promhttp.Handler(),
		WebhookRateLimit: 10,
		WebhookBurst:     20,
	})

	sweeper := session.NewSweeper(store, cfg.SessionTTL, cfg.SweepInterval, logger)
	go sweeper.Run(ctx)
	defer sweeper.Stop()

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

// buildLLM wires the extraction model: Bedrock primary, Gemini fallback,
// either alone when only one is configured.
func buildLLM(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (extraction.LLMClient, func(), error) {
	noop := func() {}

	var bedrock extraction.LLMClient
	if cfg.BedrockModelID != "" {
		awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			return nil, noop, err
		}
		bedrock = extraction.NewBedrockLLMClient(bedrockruntime.NewFromConfig(awsCfg))
		logger.Info("llm: bedrock", "model", cfg.BedrockModelID)
	}

	var gemini *extraction.GeminiLLMClient
	if cfg.GeminiAPIKey != "" {
		g, err := extraction.NewGeminiLLMClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
		if err != nil {
			return nil, noop, err
		}
		gemini = g
		logger.Info("llm: gemini", "model", cfg.GeminiModelID)
	}

	switch {
	case bedrock != nil && gemini != nil:
		return extraction.NewFallbackLLMClient(bedrock, gemini, logger), func() { _ = gemini.Close() }, nil
	case bedrock != nil:
		return bedrock, noop, nil
	case gemini != nil:
		return gemini, func() { _ = gemini.Close() }, nil
	default:
		return nil, noop, errors.New("no llm configured: set BEDROCK_MODEL_ID or GEMINI_API_KEY")
	}
}
