package ledger

import (
	"context"

	"github.com/attaboy/sportsbet/internal/domain"
	"github.com/attaboy/sportsbet/internal/infra"
	"github.com/attaboy/sportsbet/internal/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Engine is the balance adjustment primitive. Every balance movement goes
// through AdjustBalance:
//  1. one server-side UPDATE on the profile row (conditional for debits)
//  2. an append-only ledger entry with the post-update balance
//
// Both steps run within the caller's transaction.
type Engine struct {
	profiles repository.ProfileRepository
	entries  repository.LedgerEntryRepository
}

// NewEngine creates a ledger engine with the given repositories.
func NewEngine(profiles repository.ProfileRepository, entries repository.LedgerEntryRepository) *Engine {
	return &Engine{profiles: profiles, entries: entries}
}

// AdjustBalance applies a signed delta to a profile balance. Credits are
// unconditional; debits only apply when the balance covers them. At most one
// entry of each kind may reference the same bet.
func (e *Engine) AdjustBalance(ctx context.Context, tx repository.DBTX, params domain.AdjustParams) (*domain.LedgerEntry, error) {
	if params.Delta.IsZero() {
		return nil, domain.ErrInvalidArgument("balance adjustment must be non-zero")
	}

	var (
		balance decimal.Decimal
		ok      bool
		err     error
	)
	if params.Delta.IsPositive() {
		balance, ok, err = e.profiles.Credit(ctx, tx, params.ProfileID, params.Delta)
	} else {
		balance, ok, err = e.profiles.DebitIfSufficient(ctx, tx, params.ProfileID, params.Delta.Neg())
	}
	if err != nil {
		return nil, domain.ErrStoreUnavailable("adjust balance", err)
	}
	if !ok {
		return nil, e.rejection(ctx, tx, params.ProfileID)
	}

	entry := &domain.LedgerEntry{
		ID:           uuid.New(),
		ProfileID:    params.ProfileID,
		BetID:        params.BetID,
		Kind:         params.Kind,
		Amount:       params.Delta,
		BalanceAfter: balance,
	}
	if err := e.entries.Insert(ctx, tx, entry); err != nil {
		if infra.IsUniqueViolation(err, repository.LedgerBetKindIndex) {
			return nil, domain.ErrConflict("balance already adjusted for this bet")
		}
		return nil, domain.ErrStoreUnavailable("insert ledger entry", err)
	}

	return entry, nil
}

// rejection explains why a balance statement matched no row.
func (e *Engine) rejection(ctx context.Context, tx repository.DBTX, profileID uuid.UUID) error {
	profile, err := e.profiles.FindByID(ctx, tx, profileID)
	if err != nil {
		return domain.ErrStoreUnavailable("find profile", err)
	}
	if profile == nil {
		return domain.ErrProfileNotFound()
	}
	return domain.ErrInsufficientFunds()
}
