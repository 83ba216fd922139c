package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/nudge-engine/cmd/mainconfig"
	"github.com/wolfman30/nudge-engine/internal/api/router"
	appconfig "github.com/wolfman30/nudge-engine/internal/config"
	"github.com/wolfman30/nudge-engine/internal/engine"
	"github.com/wolfman30/nudge-engine/internal/features"
	"github.com/wolfman30/nudge-engine/internal/http/handlers"
	"github.com/wolfman30/nudge-engine/internal/message"
	"github.com/wolfman30/nudge-engine/internal/notify"
	"github.com/wolfman30/nudge-engine/internal/nudge"
	"github.com/wolfman30/nudge-engine/internal/observability/metrics"
	"github.com/wolfman30/nudge-engine/internal/outcome"
	"github.com/wolfman30/nudge-engine/internal/risk"
	"github.com/wolfman30/nudge-engine/internal/scoring"
	"github.com/wolfman30/nudge-engine/internal/worker"
	"github.com/wolfman30/nudge-engine/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	// Load configuration
	cfg := appconfig.Load()

	// Initialize logger
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting nudge-engine API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"nudges_enabled", cfg.NudgesEnabled,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to create pgx pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	// Scoring chain: remote service, trained artifact, heuristic floor.
	var chain []scoring.Strategy
	if cfg.RemoteScorerURL != "" {
		remote, err := scoring.NewRemoteStrategy(scoring.RemoteConfig{
			BaseURL: cfg.RemoteScorerURL,
			APIKey:  cfg.RemoteScorerAPIKey,
			Timeout: cfg.RemoteScorerTimeout,
		})
		if err != nil {
			logger.Error("failed to configure remote scorer", "error", err)
			os.Exit(1)
		}
		chain = append(chain, remote)
	}
	if trained := scoring.LoadTrainedStrategy(ctx, cfg.ModelArtifactURI, s3.NewFromConfig(awsCfg), logger); trained != nil {
		chain = append(chain, trained)
	}
	chain = append(chain, scoring.NewHeuristicStrategy())
	selector := scoring.NewSelector(chain, cfg.ExplorationRate, logger)

	generator := buildGenerator(ctx, cfg, awsCfg, logger)

	var lock *engine.PatientLock
	if cfg.RedisAddr != "" {
		opts := &redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
		if cfg.RedisTLS {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		lock = engine.NewPatientLock(redis.NewClient(opts), cfg.PatientLockTTL, logger)
	}

	alerts := buildAlerts(awsCfg, cfg, logger)
	engineMetrics := metrics.NewEngineMetrics(nil)

	tracker := outcome.NewTracker(outcome.NewPostgresStore(pool), logger)

	// Outcome signals go through SQS when configured. Without a queue URL
	// (local development) an in-memory queue plus an in-process worker keeps
	// the signal path complete.
	var publisher *outcome.Publisher
	var inprocWorker *worker.OutcomeWorker
	if cfg.OutcomeQueueURL != "" {
		publisher = outcome.NewPublisher(outcome.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.OutcomeQueueURL))
	} else {
		logger.Warn("no outcome queue configured, applying signals in-process")
		memQueue := outcome.NewMemoryQueue(256)
		publisher = outcome.NewPublisher(memQueue)
		inprocWorker = worker.NewOutcomeWorker(outcome.NewConsumer(memQueue, tracker, logger), logger)
		inprocWorker.Start(ctx)
	}

	engineCfg := engine.Config{
		Enabled:               cfg.NudgesEnabled,
		MinHoursBetweenNudges: cfg.MinHoursBetweenNudges,
		MaxNudgesPerDay:       cfg.MaxNudgesPerDay,
		NudgeTTL:              cfg.NudgeTTL,
	}
	orchestrator := engine.New(engineCfg, engine.Deps{
		Features:  features.NewPostgresSource(pool, logger),
		Assessor:  risk.NewAssessor(risk.DefaultThresholds()),
		Selector:  selector,
		Generator: generator,
		Reader:    nudge.NewStore(pool),
		Writer:    engine.NewTxSentWriter(pool, logger),
		Lock:      lock,
		Alerts:    alerts,
		Metrics:   engineMetrics,
		Logger:    logger,
	})

	// Setup router
	routerCfg := &router.Config{
		Logger:             logger,
		NudgeRuns:          handlers.NewNudgeRunHandler(orchestrator, logger),
		OutcomeSignals:     handlers.NewOutcomeSignalHandler(publisher, logger),
		System:             handlers.NewSystemHandler(engineCfg, cfg.ExplorationRate, tracker, logger),
		AdminAuthSecret:    cfg.AdminJWTSecret,
		MetricsHandler:     promhttp.Handler(),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		PublicRateLimit:    cfg.PublicRateLimit,
		PublicRateBurst:    cfg.PublicRateBurst,
	}
	r := router.New(routerCfg)

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	cancel()
	if inprocWorker != nil {
		inprocWorker.Wait()
	}

	logger.Info("server stopped")
}

// buildGenerator wires the LLM chain: Bedrock primary, Gemini fallback,
// static templates when neither is configured.
func buildGenerator(ctx context.Context, cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) message.Generator {
	var primary, fallback message.LLMClient
	if cfg.BedrockModelID != "" {
		primary = message.NewBedrockLLMClient(bedrockruntime.NewFromConfig(awsCfg))
	}
	if cfg.GeminiAPIKey != "" {
		gemini, err := message.NewGeminiLLMClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
		if err != nil {
			logger.Error("failed to init gemini client", "error", err)
		} else {
			fallback = gemini
		}
	}

	var client message.LLMClient
	switch {
	case primary != nil && fallback != nil:
		client = message.NewFallbackLLMClient(primary, fallback, logger)
	case primary != nil:
		client = primary
	case fallback != nil:
		client = fallback
	default:
		logger.Info("no LLM configured, using static nudge templates")
		return message.TemplateGenerator{}
	}

	modelID := cfg.BedrockModelID
	if modelID == "" {
		modelID = cfg.GeminiModelID
	}
	return message.NewLLMGenerator(client, modelID, logger)
}

// buildAlerts picks the email provider for operator alerts: SendGrid when an
// API key is present, SES when a from-address is, a logging stub otherwise.
func buildAlerts(awsCfg aws.Config, cfg *appconfig.Config, logger *logging.Logger) *notify.AlertService {
	var sender notify.EmailSender
	switch {
	case cfg.SendGridAPIKey != "":
		sender = notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger)
	case cfg.SESFromEmail != "":
		sender = notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{FromEmail: cfg.SESFromEmail}, logger)
	default:
		sender = notify.NewStubEmailSender(logger)
	}
	return notify.NewAlertService(sender, cfg.AlertEmail, 0, logger)
}
