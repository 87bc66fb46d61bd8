package ledger

import (
	"context"

	"github.com/attaboy/sportsbet/internal/domain"
	"github.com/attaboy/sportsbet/internal/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DebitStake takes a bet's stake from the bettor. The balance check and the
// debit are a single conditional statement, so two concurrent placements can
// never both pass the check against the same funds.
func (e *Engine) DebitStake(ctx context.Context, tx repository.DBTX, profileID, betID uuid.UUID, stake decimal.Decimal) (*domain.LedgerEntry, error) {
	if !stake.IsPositive() {
		return nil, domain.ErrInvalidArgument("Invalid stake")
	}
	return e.AdjustBalance(ctx, tx, domain.AdjustParams{
		ProfileID: profileID,
		Delta:     stake.Neg(),
		Kind:      domain.EntryStakeDebit,
		BetID:     &betID,
	})
}
