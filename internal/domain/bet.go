package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BetStatus is a bet's position in the open -> won|lost state machine.
type BetStatus string

const (
	BetOpen BetStatus = "open"
	BetWon  BetStatus = "won"
	BetLost BetStatus = "lost"
)

// Terminal reports whether no further transition is allowed.
func (s BetStatus) Terminal() bool {
	return s == BetWon || s == BetLost
}

// Selection is the side of a match a bettor backs.
type Selection string

const (
	SelectionHome Selection = "home_team"
	SelectionAway Selection = "away_team"
	SelectionDraw Selection = "draw"
)

// Wins reports whether the selection is the winning side for result r.
func (s Selection) Wins(r MatchResult) bool {
	switch s {
	case SelectionHome:
		return r == ResultHomeWin
	case SelectionAway:
		return r == ResultAwayWin
	case SelectionDraw:
		return r == ResultDraw
	}
	return false
}

// Bet represents a bets row.
type Bet struct {
	ID             uuid.UUID       `json:"id"`
	UserID         uuid.UUID       `json:"user_id"`
	MatchID        uuid.UUID       `json:"match_id"`
	Stake          decimal.Decimal `json:"stake"`
	Odds           decimal.Decimal `json:"odds"`
	Selection      Selection       `json:"selection"`
	Status         BetStatus       `json:"status"`
	Result         *MatchResult    `json:"result"`
	Winnings       decimal.Decimal `json:"winnings"`
	IdempotencyKey *string         `json:"idempotency_key,omitempty"`
	PlacedAt       time.Time       `json:"placed_at"`
	SettledAt      *time.Time      `json:"settled_at,omitempty"`
}

// Settlement is the resolved outcome of an open bet against a finished match.
type Settlement struct {
	Status   BetStatus
	Result   MatchResult
	Winnings decimal.Decimal
}

// Settle computes the deterministic outcome of bet against match.
// Winnings are stake * odds on a win and zero otherwise.
func Settle(bet *Bet, match *Match) (Settlement, error) {
	result, err := match.FinalResult()
	if err != nil {
		return Settlement{}, err
	}
	if bet.Selection.Wins(result) {
		return Settlement{Status: BetWon, Result: result, Winnings: Payout(bet.Stake, bet.Odds)}, nil
	}
	return Settlement{Status: BetLost, Result: result, Winnings: decimal.Zero}, nil
}

// Payout returns stake * odds rounded to cents.
func Payout(stake, odds decimal.Decimal) decimal.Decimal {
	return stake.Mul(odds).Round(2)
}
