package repository

import (
	"context"
	"fmt"

	"github.com/attaboy/sportsbet/internal/domain"
	"github.com/attaboy/sportsbet/internal/infra"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// LedgerBetKindIndex is the unique index allowing one entry per (bet, kind).
const LedgerBetKindIndex = "uq_ledger_entries_bet_kind"

type ledgerEntryRepo struct{}

// NewLedgerEntryRepository returns a pgx-backed LedgerEntryRepository.
func NewLedgerEntryRepository() LedgerEntryRepository {
	return &ledgerEntryRepo{}
}

func (r *ledgerEntryRepo) Insert(ctx context.Context, db DBTX, entry *domain.LedgerEntry) error {
	err := db.QueryRow(ctx, `
		INSERT INTO ledger_entries (id, profile_id, bet_id, kind, amount, balance_after)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`,
		entry.ID,
		entry.ProfileID,
		entry.BetID,
		string(entry.Kind),
		infra.DecimalToNumeric(entry.Amount),
		infra.DecimalToNumeric(entry.BalanceAfter),
	).Scan(&entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	return nil
}

func (r *ledgerEntryRepo) ListByProfile(ctx context.Context, db DBTX, profileID uuid.UUID) ([]domain.LedgerEntry, error) {
	rows, err := db.Query(ctx, `
		SELECT id, profile_id, bet_id, kind, amount, balance_after, created_at
		FROM ledger_entries
		WHERE profile_id = $1
		ORDER BY created_at ASC, id ASC`, profileID)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		var e domain.LedgerEntry
		var kind string
		var amount, balanceAfter pgtype.Numeric
		if err := rows.Scan(&e.ID, &e.ProfileID, &e.BetID, &kind, &amount, &balanceAfter, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		e.Kind = domain.EntryKind(kind)
		if e.Amount, err = infra.NumericToDecimal(amount); err != nil {
			return nil, fmt.Errorf("convert amount: %w", err)
		}
		if e.BalanceAfter, err = infra.NumericToDecimal(balanceAfter); err != nil {
			return nil, fmt.Errorf("convert balance_after: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
