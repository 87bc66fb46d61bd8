package infra

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all application configuration parsed from environment variables.
type Config struct {
	// Database
	DatabaseURL    string `env:"DATABASE_URL"`
	PGHost         string `env:"PGHOST" envDefault:"localhost"`
	PGPort         int    `env:"PGPORT" envDefault:"5432"`
	PGUser         string `env:"PGUSER" envDefault:"sportsbet"`
	PGPassword     string `env:"PGPASSWORD" envDefault:"sportsbet"`
	PGDatabase     string `env:"PGDATABASE" envDefault:"sportsbet"`
	PGMaxConns     int32  `env:"PG_MAX_CONNS" envDefault:"20"`
	MigrateOnStart bool   `env:"MIGRATE_ON_START" envDefault:"false"`

	// Redis
	RedisURL     string `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	RedisEnabled bool   `env:"REDIS_ENABLED" envDefault:"false"`

	// Server ports
	APIPort     int `env:"API_PORT" envDefault:"3000"`
	MetricsPort int `env:"METRICS_PORT" envDefault:"9102"`

	// Kafka
	KafkaBrokers     string `env:"KAFKA_BROKERS" envDefault:"localhost:9092"`
	KafkaEnabled     bool   `env:"KAFKA_ENABLED" envDefault:"false"`
	KafkaGroupID     string `env:"KAFKA_GROUP_ID" envDefault:"sportsbet-settlement"`
	MatchEventsTopic string `env:"MATCH_EVENTS_TOPIC" envDefault:"sportsbet.match.finished"`

	// CORS
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*"`

	// Placement guards
	PlacementRateLimit  int           `env:"PLACEMENT_RATE_LIMIT" envDefault:"30"`
	PlacementRateWindow time.Duration `env:"PLACEMENT_RATE_WINDOW" envDefault:"1m"`
	IdempotencyTTL      time.Duration `env:"IDEMPOTENCY_TTL" envDefault:"30s"`

	// Settlement
	SettlementInterval  time.Duration `env:"SETTLEMENT_INTERVAL" envDefault:"1m"`
	SettlementBatchSize int           `env:"SETTLEMENT_BATCH_SIZE" envDefault:"100"`
	SettlementRunOnce   bool          `env:"SETTLEMENT_RUN_ONCE" envDefault:"false"`
	SettlementReconcile bool          `env:"SETTLEMENT_RECONCILE" envDefault:"true"`

	// Outbox relay
	OutboxPollInterval time.Duration `env:"OUTBOX_POLL_INTERVAL" envDefault:"2s"`
	OutboxBatchSize    int           `env:"OUTBOX_BATCH_SIZE" envDefault:"100"`
}

// LoadConfig parses environment variables into a Config struct.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Validate rejects limits and intervals the processes cannot run with.
func (c *Config) Validate() error {
	if c.PlacementRateLimit <= 0 {
		return fmt.Errorf("PLACEMENT_RATE_LIMIT must be positive, got %d", c.PlacementRateLimit)
	}
	if c.PlacementRateWindow <= 0 {
		return fmt.Errorf("PLACEMENT_RATE_WINDOW must be positive, got %s", c.PlacementRateWindow)
	}
	if c.IdempotencyTTL <= 0 {
		return fmt.Errorf("IDEMPOTENCY_TTL must be positive, got %s", c.IdempotencyTTL)
	}
	if c.SettlementInterval <= 0 {
		return fmt.Errorf("SETTLEMENT_INTERVAL must be positive, got %s", c.SettlementInterval)
	}
	if c.SettlementBatchSize <= 0 {
		return fmt.Errorf("SETTLEMENT_BATCH_SIZE must be positive, got %d", c.SettlementBatchSize)
	}
	if c.OutboxPollInterval <= 0 {
		return fmt.Errorf("OUTBOX_POLL_INTERVAL must be positive, got %s", c.OutboxPollInterval)
	}
	if c.OutboxBatchSize <= 0 {
		return fmt.Errorf("OUTBOX_BATCH_SIZE must be positive, got %d", c.OutboxBatchSize)
	}
	if c.PGMaxConns <= 0 {
		return fmt.Errorf("PG_MAX_CONNS must be positive, got %d", c.PGMaxConns)
	}
	return nil
}

// DSN returns the PostgreSQL connection string, preferring DATABASE_URL if set.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.PGUser, c.PGPassword, c.PGHost, c.PGPort, c.PGDatabase)
}
