package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EntryKind classifies a balance movement.
type EntryKind string

const (
	EntryStakeDebit EntryKind = "stake_debit"
	EntryWinCredit  EntryKind = "win_credit"
	EntryAdjustment EntryKind = "adjustment"
)

// LedgerEntry represents a ledger_entries row. Append-only.
type LedgerEntry struct {
	ID           uuid.UUID       `json:"id"`
	ProfileID    uuid.UUID       `json:"profile_id"`
	BetID        *uuid.UUID      `json:"bet_id,omitempty"`
	Kind         EntryKind       `json:"kind"`
	Amount       decimal.Decimal `json:"amount"`
	BalanceAfter decimal.Decimal `json:"balance_after"`
	CreatedAt    time.Time       `json:"created_at"`
}

// AdjustParams describes one call to the balance adjustment primitive.
// Delta is signed: positive credits, negative debits.
type AdjustParams struct {
	ProfileID uuid.UUID
	Delta     decimal.Decimal
	Kind      EntryKind
	BetID     *uuid.UUID
}

// GuardResult is the outcome of a guard evaluation.
type GuardResult struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
	Guard   string `json:"guard,omitempty"` // which guard blocked
}
