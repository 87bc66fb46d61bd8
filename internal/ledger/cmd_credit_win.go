package ledger

import (
	"context"

	"github.com/attaboy/sportsbet/internal/domain"
	"github.com/attaboy/sportsbet/internal/repository"
)

// CreditWin pays a won bet's winnings to its owner.
func (e *Engine) CreditWin(ctx context.Context, tx repository.DBTX, bet *domain.Bet) (*domain.LedgerEntry, error) {
	if bet.Status != domain.BetWon || !bet.Winnings.IsPositive() {
		return nil, domain.ErrInvalidArgument("only won bets with positive winnings are credited")
	}
	betID := bet.ID
	return e.AdjustBalance(ctx, tx, domain.AdjustParams{
		ProfileID: bet.UserID,
		Delta:     bet.Winnings,
		Kind:      domain.EntryWinCredit,
		BetID:     &betID,
	})
}
