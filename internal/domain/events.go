package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// NewBetPlacedEvent creates the event emitted with every accepted bet.
func NewBetPlacedEvent(bet *Bet, balanceAfter decimal.Decimal) OutboxDraft {
	payload, _ := json.Marshal(map[string]interface{}{
		"bet":           bet,
		"balance_after": balanceAfter,
	})
	return newBetEvent(bet, EventBetPlaced, payload)
}

// NewBetSettledEvent creates the event emitted when a bet reaches won or lost.
func NewBetSettledEvent(bet *Bet, s Settlement) OutboxDraft {
	payload, _ := json.Marshal(map[string]interface{}{
		"bet_id":   bet.ID.String(),
		"user_id":  bet.UserID.String(),
		"match_id": bet.MatchID.String(),
		"status":   s.Status,
		"result":   s.Result,
		"winnings": s.Winnings,
	})
	return newBetEvent(bet, EventBetSettled, payload)
}

// NewSettlementRepairedEvent records a win credit applied by reconciliation.
func NewSettlementRepairedEvent(bet *Bet, entry *LedgerEntry) OutboxDraft {
	payload, _ := json.Marshal(map[string]interface{}{
		"bet_id":          bet.ID.String(),
		"user_id":         bet.UserID.String(),
		"winnings":        bet.Winnings,
		"ledger_entry_id": entry.ID.String(),
	})
	return newBetEvent(bet, EventSettlementRepaired, payload)
}

func newBetEvent(bet *Bet, eventType EventType, payload json.RawMessage) OutboxDraft {
	return OutboxDraft{
		EventID:       uuid.New(),
		AggregateType: AggregateBet,
		AggregateID:   bet.ID.String(),
		EventType:     eventType,
		PartitionKey:  bet.UserID.String(),
		Headers:       json.RawMessage(`{}`),
		Payload:       payload,
		OccurredAt:    time.Now().UTC(),
	}
}
