package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/wolfman30/nudge-engine/cmd/mainconfig"
	appconfig "github.com/wolfman30/nudge-engine/internal/config"
	"github.com/wolfman30/nudge-engine/internal/nudge"
	"github.com/wolfman30/nudge-engine/internal/observability/metrics"
	"github.com/wolfman30/nudge-engine/internal/outcome"
	"github.com/wolfman30/nudge-engine/internal/worker"
	"github.com/wolfman30/nudge-engine/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

	if cfg.OutcomeQueueURL == "" {
		logger.Error("OUTCOME_QUEUE_URL is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to create pgx pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	awsConfig, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	queue := outcome.NewSQSQueue(sqs.NewFromConfig(awsConfig), cfg.OutcomeQueueURL)
	tracker := outcome.NewTracker(outcome.NewPostgresStore(pool), logger)
	consumer := outcome.NewConsumer(queue, tracker, logger)

	engineMetrics := metrics.NewEngineMetrics(nil)
	outcomeWorker := worker.NewOutcomeWorker(consumer, logger)
	sweeper := worker.NewExpirySweeper(tracker, nudge.NewStore(pool), cfg.SweepInterval, engineMetrics, logger)

	outcomeWorker.Start(ctx)
	sweeper.Start(ctx)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down outcome worker...")
	cancel()

	doneCtx, doneCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer doneCancel()

	waitCh := make(chan struct{})
	go func() {
		outcomeWorker.Wait()
		sweeper.Wait()
		close(waitCh)
	}()

	select {
	case <-waitCh:
		logger.Info("outcome worker stopped")
	case <-doneCtx.Done():
		logger.Error("outcome worker shutdown timed out", "error", doneCtx.Err())
	}
}
