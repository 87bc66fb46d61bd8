package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/attaboy/sportsbet/internal/domain"
	"github.com/attaboy/sportsbet/internal/infra"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// BetIdempotencyIndex is the unique index guarding (user_id, idempotency_key).
const BetIdempotencyIndex = "uq_bets_user_idempotency_key"

type betRepo struct{}

// NewBetRepository returns a pgx-backed BetRepository.
func NewBetRepository() BetRepository {
	return &betRepo{}
}

const betColumns = `id, user_id, match_id, stake, odds, selection, status, result,
	winnings, idempotency_key, placed_at, settled_at`

func (r *betRepo) Insert(ctx context.Context, db DBTX, bet *domain.Bet) error {
	err := db.QueryRow(ctx, `
		INSERT INTO bets (id, user_id, match_id, stake, odds, selection, status, winnings, idempotency_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING placed_at`,
		bet.ID,
		bet.UserID,
		bet.MatchID,
		infra.DecimalToNumeric(bet.Stake),
		infra.DecimalToNumeric(bet.Odds),
		string(bet.Selection),
		string(bet.Status),
		infra.DecimalToNumeric(bet.Winnings),
		bet.IdempotencyKey,
	).Scan(&bet.PlacedAt)
	if err != nil {
		return fmt.Errorf("insert bet: %w", err)
	}
	return nil
}

func (r *betRepo) FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Bet, error) {
	row := db.QueryRow(ctx, `SELECT `+betColumns+` FROM bets WHERE id = $1`, id)
	return findOne(row)
}

func (r *betRepo) FindByIdempotencyKey(ctx context.Context, db DBTX, userID uuid.UUID, key string) (*domain.Bet, error) {
	row := db.QueryRow(ctx, `
		SELECT `+betColumns+` FROM bets
		WHERE user_id = $1 AND idempotency_key = $2`, userID, key)
	return findOne(row)
}

func (r *betRepo) ListOpenByMatch(ctx context.Context, db DBTX, matchID uuid.UUID) ([]domain.Bet, error) {
	rows, err := db.Query(ctx, `
		SELECT `+betColumns+` FROM bets
		WHERE match_id = $1 AND status = 'open'
		ORDER BY placed_at ASC, id ASC`, matchID)
	if err != nil {
		return nil, fmt.Errorf("list open bets: %w", err)
	}
	return collectBets(rows)
}

// SettleIfOpen is the settlement gate: only the run whose UPDATE matches the
// open row may credit winnings.
func (r *betRepo) SettleIfOpen(ctx context.Context, db DBTX, id uuid.UUID, s domain.Settlement) (*domain.Bet, bool, error) {
	row := db.QueryRow(ctx, `
		UPDATE bets
		SET status = $2, result = $3, winnings = $4, settled_at = now()
		WHERE id = $1 AND status = 'open'
		RETURNING `+betColumns,
		id, string(s.Status), string(s.Result), infra.DecimalToNumeric(s.Winnings))
	bet, err := findOne(row)
	if err != nil {
		return nil, false, fmt.Errorf("settle bet: %w", err)
	}
	return bet, bet != nil, nil
}

func (r *betRepo) ListWonWithoutCredit(ctx context.Context, db DBTX, limit int) ([]domain.Bet, error) {
	rows, err := db.Query(ctx, `
		SELECT `+betColumns+` FROM bets b
		WHERE b.status = 'won' AND b.winnings > 0
		  AND NOT EXISTS (
		    SELECT 1 FROM ledger_entries le
		    WHERE le.bet_id = b.id AND le.kind = 'win_credit')
		ORDER BY b.settled_at ASC NULLS FIRST, b.id ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list uncredited wins: %w", err)
	}
	return collectBets(rows)
}

func findOne(row pgx.Row) (*domain.Bet, error) {
	bet, err := scanBet(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return bet, nil
}

func collectBets(rows pgx.Rows) ([]domain.Bet, error) {
	defer rows.Close()

	var bets []domain.Bet
	for rows.Next() {
		bet, err := scanBet(rows)
		if err != nil {
			return nil, err
		}
		bets = append(bets, *bet)
	}
	return bets, rows.Err()
}

func scanBet(row pgx.Row) (*domain.Bet, error) {
	var b domain.Bet
	var stake, odds, winnings pgtype.Numeric
	var selection, status string
	var result *string

	err := row.Scan(&b.ID, &b.UserID, &b.MatchID, &stake, &odds, &selection, &status,
		&result, &winnings, &b.IdempotencyKey, &b.PlacedAt, &b.SettledAt)
	if err != nil {
		return nil, fmt.Errorf("scan bet: %w", err)
	}

	b.Selection = domain.Selection(selection)
	b.Status = domain.BetStatus(status)
	if result != nil {
		res := domain.MatchResult(*result)
		b.Result = &res
	}
	if b.Stake, err = infra.NumericToDecimal(stake); err != nil {
		return nil, fmt.Errorf("convert stake: %w", err)
	}
	if b.Odds, err = infra.NumericToDecimal(odds); err != nil {
		return nil, fmt.Errorf("convert odds: %w", err)
	}
	if b.Winnings, err = infra.NumericToDecimal(winnings); err != nil {
		return nil, fmt.Errorf("convert winnings: %w", err)
	}
	return &b, nil
}
