package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType enumerates all domain event types. The outbox relay uses the
// event type as the Kafka topic.
type EventType string

const (
	EventBetPlaced          EventType = "sportsbet.bet.placed"
	EventBetSettled         EventType = "sportsbet.bet.settled"
	EventSettlementRepaired EventType = "sportsbet.settlement.repaired"
)

// AggregateType enumerates the aggregate root types for outbox events.
type AggregateType string

const (
	AggregateBet     AggregateType = "bet"
	AggregateProfile AggregateType = "profile"
)

// OutboxDraft is the payload written to the event_outbox table.
type OutboxDraft struct {
	EventID       uuid.UUID       `json:"eventId"`
	AggregateType AggregateType   `json:"aggregateType"`
	AggregateID   string          `json:"aggregateId"`
	EventType     EventType       `json:"eventType"`
	PartitionKey  string          `json:"partitionKey"`
	Headers       json.RawMessage `json:"headers"`
	Payload       json.RawMessage `json:"payload"`
	OccurredAt    time.Time       `json:"occurredAt"`
}

// OutboxRecord is a stored outbox row awaiting publication.
type OutboxRecord struct {
	SeqID int64
	OutboxDraft
}

// MatchFinishedMessage is the inbound notification from the match outcome
// feed. It only identifies the match; the matches table stays authoritative.
type MatchFinishedMessage struct {
	MatchID uuid.UUID `json:"match_id"`
}
