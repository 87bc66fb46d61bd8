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
	"github.com/shopspring/decimal"
)

type profileRepo struct{}

// NewProfileRepository returns a pgx-backed ProfileRepository.
func NewProfileRepository() ProfileRepository {
	return &profileRepo{}
}

func (r *profileRepo) FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Profile, error) {
	row := db.QueryRow(ctx, `
		SELECT id, balance, created_at, updated_at
		FROM profiles WHERE id = $1`, id)
	return scanProfile(row)
}

func (r *profileRepo) Create(ctx context.Context, db DBTX, profile *domain.Profile) error {
	err := db.QueryRow(ctx, `
		INSERT INTO profiles (id, balance)
		VALUES ($1, $2)
		RETURNING created_at, updated_at`,
		profile.ID,
		infra.DecimalToNumeric(profile.Balance),
	).Scan(&profile.CreatedAt, &profile.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert profile: %w", err)
	}
	return nil
}

// DebitIfSufficient is the compare-and-swap debit: the balance check and the
// subtraction are one statement, so concurrent debits serialize on the row.
func (r *profileRepo) DebitIfSufficient(ctx context.Context, db DBTX, id uuid.UUID, amount decimal.Decimal) (decimal.Decimal, bool, error) {
	row := db.QueryRow(ctx, `
		UPDATE profiles
		SET balance = balance - $2, updated_at = now()
		WHERE id = $1 AND balance >= $2
		RETURNING balance`,
		id, infra.DecimalToNumeric(amount))
	bal, ok, err := scanBalance(row)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("debit profile: %w", err)
	}
	return bal, ok, nil
}

func (r *profileRepo) Credit(ctx context.Context, db DBTX, id uuid.UUID, amount decimal.Decimal) (decimal.Decimal, bool, error) {
	row := db.QueryRow(ctx, `
		UPDATE profiles
		SET balance = balance + $2, updated_at = now()
		WHERE id = $1
		RETURNING balance`,
		id, infra.DecimalToNumeric(amount))
	bal, ok, err := scanBalance(row)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("credit profile: %w", err)
	}
	return bal, ok, nil
}

func scanBalance(row pgx.Row) (decimal.Decimal, bool, error) {
	var n pgtype.Numeric
	if err := row.Scan(&n); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, false, nil
		}
		return decimal.Zero, false, err
	}
	bal, err := infra.NumericToDecimal(n)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("convert balance: %w", err)
	}
	return bal, true, nil
}

func scanProfile(row pgx.Row) (*domain.Profile, error) {
	var p domain.Profile
	var bal pgtype.Numeric
	err := row.Scan(&p.ID, &bal, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan profile: %w", err)
	}
	if p.Balance, err = infra.NumericToDecimal(bal); err != nil {
		return nil, fmt.Errorf("convert balance: %w", err)
	}
	return &p, nil
}
