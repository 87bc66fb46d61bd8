package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/attaboy/sportsbet/internal/guard"
	"github.com/attaboy/sportsbet/internal/infra"
	"github.com/attaboy/sportsbet/internal/outbox"
	"github.com/attaboy/sportsbet/internal/repository"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("outbox relay failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := infra.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	pool, err := infra.NewPostgresPool(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()
	logger.Info("outbox-relay connected to postgres")

	producer := infra.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaEnabled, logger)
	defer producer.Close()
	if !producer.Enabled() {
		logger.Warn("kafka disabled, outbox events will be marked published without delivery")
	}

	reg := prometheus.NewRegistry()
	metrics := infra.NewMetrics(reg)
	metricsSrv := infra.StartMetricsServer(cfg.MetricsPort, reg, func(ctx context.Context) error {
		return infra.HealthCheck(ctx, pool)
	})
	defer metricsSrv.Close()

	relay := outbox.NewRelay(
		pool,
		repository.NewOutboxRepository(),
		producer,
		guard.NewCircuitBreaker(5, 30*time.Second, nil),
		metrics,
		logger,
		outbox.Config{Interval: cfg.OutboxPollInterval, BatchSize: cfg.OutboxBatchSize},
	)
	return relay.Run(ctx)
}
