package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/relaystack/ingest/internal/analytics"
	"github.com/relaystack/ingest/internal/config"
	"github.com/relaystack/ingest/internal/consumer"
	"github.com/relaystack/ingest/internal/core/ports"
	"github.com/relaystack/ingest/internal/objectstore"
	"github.com/relaystack/ingest/internal/pipeline"
	"github.com/relaystack/ingest/internal/pipeline/stages"
	"github.com/relaystack/ingest/internal/report"
	"github.com/relaystack/ingest/internal/server"
	"github.com/relaystack/ingest/internal/storage/clickhouse"
	"github.com/relaystack/ingest/internal/storage/deadletter"
	"github.com/relaystack/ingest/internal/storage/postgres"
	"github.com/relaystack/ingest/internal/telemetry"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	shutdownTracer, err := telemetry.InitTracer("ingest-worker", logger)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Error("tracer shutdown failed", slog.Any("error", err))
		}
	}()
	telemetry.RegisterMetrics()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Collaborators are constructed once and shared by every event
	// goroutine; all are safe for concurrent use.
	chConn, err := clickhouse.Connect(ctx, clickhouse.Options{
		Addr:     cfg.ClickHouse.Addr,
		Database: cfg.ClickHouse.Database,
		Username: cfg.ClickHouse.User,
		Password: cfg.ClickHouse.Password,
	})
	if err != nil {
		log.Fatalf("Failed to connect to ClickHouse: %v", err)
	}
	if err := clickhouse.EnsureSchema(ctx, chConn); err != nil {
		log.Fatalf("Failed to ensure ClickHouse schema: %v", err)
	}

	authStore, err := postgres.Open(cfg.Postgres.DSN)
	if err != nil {
		log.Fatalf("Failed to connect to Postgres: %v", err)
	}
	defer authStore.Close()

	fetcher, err := objectstore.New(objectstore.Options{
		Endpoint:  cfg.S3.Endpoint,
		AccessKey: cfg.S3.AccessKey,
		SecretKey: cfg.S3.SecretKey,
		Bucket:    cfg.S3.Bucket,
		UseSSL:    cfg.S3.UseSSL,
	})
	if err != nil {
		log.Fatalf("Failed to create object-store client: %v", err)
	}

	deadLetters, err := deadletter.New(cfg.DeadLetter.Path)
	if err != nil {
		log.Fatalf("Failed to open dead-letter store: %v", err)
	}
	defer deadLetters.Close()

	var sink ports.ErrorSink
	if cfg.Sentry.DSN != "" {
		sentrySink, flush, err := report.InitSentry(cfg.Sentry.DSN, cfg.Sentry.Environment)
		if err != nil {
			log.Fatalf("Failed to initialize Sentry: %v", err)
		}
		defer flush()
		sink = sentrySink
	}
	reporter := report.New(sink, logger)

	logStore := clickhouse.NewLogStore(chConn)
	quotaStore := clickhouse.NewQuotaStore(chConn)

	logStage := stages.NewLogRecord(logStore, logger)
	quotaStage := stages.NewRateLimit(quotaStore, logger)

	chainStages := []ports.Stage{
		stages.NewAuth(authStore),
		stages.NewObjectFetch(fetcher),
		stages.NewRequestBody(),
		stages.NewResponseBody(),
		stages.NewPrompt(),
	}
	if cfg.Analytics.Enabled {
		timeout, err := time.ParseDuration(cfg.Analytics.Timeout)
		if err != nil {
			log.Fatalf("Invalid analytics timeout %q: %v", cfg.Analytics.Timeout, err)
		}
		forwarder := analytics.NewWebhook(analytics.WebhookConfig{
			URL:     cfg.Analytics.URL,
			Timeout: timeout,
			Retries: cfg.Analytics.Retries,
			Headers: cfg.Analytics.Headers,
		})
		chainStages = append(chainStages, stages.NewAnalytics(forwarder, logger))
	}
	chainStages = append(chainStages, quotaStage, logStage)

	runner := pipeline.NewRunner(pipeline.RunnerConfig{
		Chain: pipeline.NewChain(chainStages...),
		// Log rows commit before quota rows: quota state must never
		// reference an event absent from the log.
		Flushers:    []ports.AccumulatingStage{logStage, quotaStage},
		Reporter:    reporter,
		DeadLetter:  deadLetters,
		Logger:      logger,
		MaxInFlight: cfg.Worker.MaxInFlight,
	})

	maxWait, err := time.ParseDuration(cfg.Worker.MaxWait)
	if err != nil {
		log.Fatalf("Invalid worker max_wait %q: %v", cfg.Worker.MaxWait, err)
	}
	reader := consumer.NewKafkaReader(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.GroupID)
	defer reader.Close()

	cons := consumer.New(consumer.Config{
		Reader:    reader,
		Processor: runner,
		Reporter:  reporter,
		Logger:    logger,
		BatchSize: cfg.Worker.BatchSize,
		MaxWait:   maxWait,
	})

	admin := server.New(cfg.Admin.Port, logger)
	go func() {
		if err := admin.Start(); err != nil {
			logger.Error("admin server stopped", slog.Any("error", err))
		}
	}()

	go func() {
		if err := cons.Run(ctx); err != nil {
			logger.Error("consumer stopped", slog.Any("error", err))
			cancel()
		}
	}()

	logger.Info("ingest worker started",
		slog.String("topic", cfg.Kafka.Topic),
		slog.String("group", cfg.Kafka.GroupID),
		slog.Int("batch_size", cfg.Worker.BatchSize),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sigChan:
		logger.Info("shutdown signal received")
	case <-ctx.Done():
	}
	cancel()
}
