package repository

import (
	"context"

	"github.com/attaboy/sportsbet/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// DBTX abstracts pgx.Tx and pgxpool.Pool so repositories work with both.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// TxBeginner starts transactions. Satisfied by *pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// ProfileRepository provides access to profiles. Balance writes are single
// server-side statements; callers never read-modify-write a balance.
type ProfileRepository interface {
	// FindByID returns a profile by ID, or nil if it does not exist.
	FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Profile, error)

	// Create inserts a new profile.
	Create(ctx context.Context, db DBTX, profile *domain.Profile) error

	// DebitIfSufficient subtracts amount only when balance >= amount.
	// ok is false when no row matched (missing profile or insufficient balance).
	DebitIfSufficient(ctx context.Context, db DBTX, id uuid.UUID, amount decimal.Decimal) (balance decimal.Decimal, ok bool, err error)

	// Credit adds amount unconditionally. ok is false when the profile does not exist.
	Credit(ctx context.Context, db DBTX, id uuid.UUID, amount decimal.Decimal) (balance decimal.Decimal, ok bool, err error)
}

// MatchRepository provides read access to matches.
type MatchRepository interface {
	// FindByID returns a match by ID, or nil if it does not exist.
	FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Match, error)

	// ListFinishedWithOpenBets returns finished matches that still have open
	// bets, oldest first, at most limit rows.
	ListFinishedWithOpenBets(ctx context.Context, db DBTX, limit int) ([]domain.Match, error)
}

// BetRepository provides access to bets.
type BetRepository interface {
	// Insert creates a new open bet.
	Insert(ctx context.Context, db DBTX, bet *domain.Bet) error

	// FindByID returns a bet by ID, or nil if it does not exist.
	FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Bet, error)

	// FindByIdempotencyKey returns the user's bet placed with key, or nil.
	FindByIdempotencyKey(ctx context.Context, db DBTX, userID uuid.UUID, key string) (*domain.Bet, error)

	// ListOpenByMatch returns the open bets on a match.
	ListOpenByMatch(ctx context.Context, db DBTX, matchID uuid.UUID) ([]domain.Bet, error)

	// SettleIfOpen moves an open bet to its terminal state. ok is false when
	// the bet was no longer open, i.e. another run already settled it.
	SettleIfOpen(ctx context.Context, db DBTX, id uuid.UUID, s domain.Settlement) (bet *domain.Bet, ok bool, err error)

	// ListWonWithoutCredit returns won bets with positive winnings that have
	// no win_credit ledger entry, at most limit rows.
	ListWonWithoutCredit(ctx context.Context, db DBTX, limit int) ([]domain.Bet, error)
}

// LedgerEntryRepository provides access to the append-only ledger_entries table.
type LedgerEntryRepository interface {
	// Insert appends a ledger entry. A second entry of the same kind for the
	// same bet violates uq_ledger_entries_bet_kind.
	Insert(ctx context.Context, db DBTX, entry *domain.LedgerEntry) error

	// ListByProfile returns a profile's entries in insertion order.
	ListByProfile(ctx context.Context, db DBTX, profileID uuid.UUID) ([]domain.LedgerEntry, error)
}

// OutboxRepository provides access to the event_outbox table.
type OutboxRepository interface {
	// Insert writes an outbox event (within the same transaction as the state change).
	Insert(ctx context.Context, db DBTX, draft domain.OutboxDraft) error

	// FetchUnpublished returns unpublished events in insertion order.
	FetchUnpublished(ctx context.Context, db DBTX, limit int) ([]domain.OutboxRecord, error)

	// MarkPublished stamps publishedAt on the given rows.
	MarkPublished(ctx context.Context, db DBTX, ids []int64) error
}
