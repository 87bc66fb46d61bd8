package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// MaxIdempotencyKeyLen bounds caller-supplied idempotency keys.
const MaxIdempotencyKeyLen = 128

// Scale and size limits checked before any decimal arithmetic on client
// input. Rounding or comparing a decimal costs 10^|exponent|.
const (
	maxExponent        = 18
	maxCoefficientBits = 128
)

var (
	// MaxMoney is the largest value of a NUMERIC(14,2) stake or winnings column.
	MaxMoney = decimal.RequireFromString("999999999999.99")
	// MaxOdds is the largest value of the NUMERIC(10,4) odds column.
	MaxOdds = decimal.RequireFromString("999999.9999")
)

// ErrOutOfRange reports a number whose scale or size is too large to handle.
var ErrOutOfRange = errors.New("number out of range")

// CheckBounds rejects decimals with an extreme exponent or coefficient.
func CheckBounds(d decimal.Decimal) error {
	if e := d.Exponent(); e < -maxExponent || e > maxExponent {
		return ErrOutOfRange
	}
	if d.Coefficient().BitLen() > maxCoefficientBits {
		return ErrOutOfRange
	}
	return nil
}

// ValidateStake checks that a stake is positive with at most cent precision
// and fits the stake column.
func ValidateStake(stake decimal.Decimal) error {
	if err := CheckBounds(stake); err != nil {
		return fmt.Errorf("stake: %w", err)
	}
	if !stake.IsPositive() {
		return fmt.Errorf("stake must be positive, got %s", stake)
	}
	if stake.GreaterThan(MaxMoney) {
		return fmt.Errorf("stake above %s", MaxMoney)
	}
	if !stake.Equal(stake.Round(2)) {
		return fmt.Errorf("stake has more than 2 decimal places: %s", stake)
	}
	return nil
}

// ValidateOdds checks that odds are a decimal multiplier above 1 that fits
// the odds column.
func ValidateOdds(odds decimal.Decimal) error {
	if err := CheckBounds(odds); err != nil {
		return fmt.Errorf("odds: %w", err)
	}
	if !odds.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("odds must be greater than 1, got %s", odds)
	}
	if odds.GreaterThan(MaxOdds) {
		return fmt.Errorf("odds above %s", MaxOdds)
	}
	if !odds.Equal(odds.Round(4)) {
		return fmt.Errorf("odds have more than 4 decimal places: %s", odds)
	}
	return nil
}

// ValidatePayout checks that the winnings of a validated stake and odds fit
// the winnings column, so a winning bet can always be settled.
func ValidatePayout(stake, odds decimal.Decimal) error {
	if p := Payout(stake, odds); p.GreaterThan(MaxMoney) {
		return fmt.Errorf("payout %s above %s", p, MaxMoney)
	}
	return nil
}

// ParseSelection converts a wire value into a Selection.
func ParseSelection(s string) (Selection, error) {
	switch sel := Selection(strings.TrimSpace(s)); sel {
	case SelectionHome, SelectionAway, SelectionDraw:
		return sel, nil
	default:
		return "", fmt.Errorf("invalid selection %q", s)
	}
}

// ValidateIdempotencyKey checks an optional idempotency key.
func ValidateIdempotencyKey(key string) error {
	if len(key) > MaxIdempotencyKeyLen {
		return fmt.Errorf("idempotency key longer than %d characters", MaxIdempotencyKeyLen)
	}
	return nil
}
