// Package outbox relays event_outbox rows to Kafka.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/attaboy/sportsbet/internal/domain"
	"github.com/attaboy/sportsbet/internal/guard"
	"github.com/attaboy/sportsbet/internal/infra"
	"github.com/attaboy/sportsbet/internal/repository"
	"github.com/google/uuid"
)

// Publisher sends one message. Satisfied by *infra.KafkaProducer.
type Publisher interface {
	Publish(ctx context.Context, topic string, key, value []byte, headers map[string]string) error
}

// Relay polls the outbox and publishes unpublished events, topic = event type.
// Delivery is at-least-once: a crash between publish and commit republishes.
type Relay struct {
	db        repository.TxBeginner
	repo      repository.OutboxRepository
	publisher Publisher
	breaker   *guard.CircuitBreaker
	metrics   *infra.Metrics
	logger    *slog.Logger
	interval  time.Duration
	batchSize int
}

// Config tunes a Relay.
type Config struct {
	Interval  time.Duration
	BatchSize int
}

// NewRelay creates an outbox relay.
func NewRelay(db repository.TxBeginner, repo repository.OutboxRepository, publisher Publisher, breaker *guard.CircuitBreaker, metrics *infra.Metrics, logger *slog.Logger, cfg Config) *Relay {
	if cfg.Interval <= 0 {
		cfg.Interval = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	return &Relay{
		db:        db,
		repo:      repo,
		publisher: publisher,
		breaker:   breaker,
		metrics:   metrics,
		logger:    logger,
		interval:  cfg.Interval,
		batchSize: cfg.BatchSize,
	}
}

// Run polls until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	r.logger.Info("outbox relay started", "interval", r.interval, "batch_size", r.batchSize)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("outbox relay stopped")
			return nil
		case <-ticker.C:
			if _, err := r.PollOnce(ctx); err != nil {
				r.logger.Error("outbox poll error", "error", err)
			}
		}
	}
}

// envelope is the Kafka message value.
type envelope struct {
	EventID       uuid.UUID       `json:"event_id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

// PollOnce publishes one batch and returns how many events were marked
// published. Once an event of a partition key fails, later events with the
// same key wait for the next poll so per-key order is kept.
func (r *Relay) PollOnce(ctx context.Context) (int, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	events, err := r.repo.FetchUnpublished(ctx, tx, r.batchSize)
	if err != nil {
		return 0, fmt.Errorf("fetch: %w", err)
	}
	if len(events) == 0 {
		return 0, nil
	}

	blocked := make(map[string]bool)
	ids := make([]int64, 0, len(events))
	for _, e := range events {
		topic := string(e.EventType)
		if blocked[e.PartitionKey] {
			continue
		}
		if res := r.breaker.Check(ctx, topic); !res.Allowed {
			blocked[e.PartitionKey] = true
			continue
		}

		if err := r.publish(ctx, e); err != nil {
			r.breaker.RecordFailure(topic)
			blocked[e.PartitionKey] = true
			if r.metrics != nil {
				r.metrics.OutboxPublishErrors.Inc()
			}
			r.logger.Error("kafka publish failed", "seq_id", e.SeqID, "event_id", e.EventID, "topic", topic, "error", err)
			continue
		}
		r.breaker.RecordSuccess(topic)
		ids = append(ids, e.SeqID)
	}

	if len(ids) == 0 {
		return 0, nil
	}
	if err := r.repo.MarkPublished(ctx, tx, ids); err != nil {
		return 0, fmt.Errorf("mark published: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}

	if r.metrics != nil {
		r.metrics.OutboxPublished.Add(float64(len(ids)))
	}
	r.logger.Debug("outbox batch published", "count", len(ids), "fetched", len(events))
	return len(ids), nil
}

func (r *Relay) publish(ctx context.Context, e domain.OutboxRecord) error {
	value, err := json.Marshal(envelope{
		EventID:       e.EventID,
		AggregateType: string(e.AggregateType),
		AggregateID:   e.AggregateID,
		EventType:     string(e.EventType),
		Payload:       e.Payload,
		OccurredAt:    e.OccurredAt,
	})
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	headers := map[string]string{}
	if len(e.Headers) > 0 {
		// Non-string header values are dropped.
		var raw map[string]interface{}
		if err := json.Unmarshal(e.Headers, &raw); err == nil {
			for k, v := range raw {
				if s, ok := v.(string); ok {
					headers[k] = s
				}
			}
		}
	}
	headers["event_id"] = e.EventID.String()
	headers["event_type"] = string(e.EventType)

	return r.publisher.Publish(ctx, string(e.EventType), []byte(e.PartitionKey), value, headers)
}
