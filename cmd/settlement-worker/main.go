package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/attaboy/sportsbet/internal/app"
	"github.com/attaboy/sportsbet/internal/infra"
	"github.com/attaboy/sportsbet/internal/repository"
	"github.com/attaboy/sportsbet/internal/settlement"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/segmentio/kafka-go"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("settlement worker failed", "error", err)
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
	logger.Info("settlement-worker connected to postgres")

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	metrics := infra.NewMetrics(reg)
	worker := app.NewSettlementWorker(pool, repository.NewPostgresSet(), cfg, metrics, logger)

	if cfg.SettlementRunOnce {
		return runOnce(ctx, worker, cfg, logger)
	}

	metricsSrv := infra.StartMetricsServer(cfg.MetricsPort, reg, func(ctx context.Context) error {
		return infra.HealthCheck(ctx, pool)
	})
	defer metricsSrv.Close()

	consumer := infra.NewKafkaConsumer(cfg.KafkaBrokers, cfg.MatchEventsTopic, cfg.KafkaGroupID, cfg.KafkaEnabled, logger)
	defer consumer.Close()
	if consumer.Enabled() {
		go func() {
			err := consumer.Consume(ctx, func(ctx context.Context, msg kafka.Message) error {
				return worker.HandleMatchFinished(ctx, msg.Value)
			})
			if err != nil {
				logger.Error("match events consumer stopped", "error", err)
			}
		}()
	} else {
		logger.Info("match events consumer disabled; settling on the ticker only")
	}

	logger.Info("settlement-worker starting", "interval", cfg.SettlementInterval, "batch_size", cfg.SettlementBatchSize)

	ticker := time.NewTicker(cfg.SettlementInterval)
	defer ticker.Stop()

	for {
		// First run fires immediately.
		if err := runOnce(ctx, worker, cfg, logger); err != nil {
			logger.Error("settlement run failed", "error", err)
		}

		select {
		case <-ctx.Done():
			logger.Info("settlement-worker shutting down")
			return nil
		case <-ticker.C:
		}
	}
}

func runOnce(ctx context.Context, worker *settlement.Worker, cfg *infra.Config, logger *slog.Logger) error {
	runCtx, cancel := context.WithTimeout(ctx, cfg.SettlementInterval)
	defer cancel()

	report, err := worker.Run(runCtx)
	if report != nil {
		// A timed-out run still returns what it settled before the deadline.
		logger.Info("settlement run complete", "summary", report.Summary(), "report", report, "interrupted", err != nil)
	}
	if err != nil {
		return err
	}

	if !cfg.SettlementReconcile {
		return nil
	}
	rec, err := worker.Reconcile(runCtx)
	if err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}
	if len(rec.Items) > 0 {
		logger.Warn("reconcile complete", "repaired", rec.Repaired, "failed", rec.Failed, "total_repaired", rec.TotalRepaired.String())
	}
	return nil
}
