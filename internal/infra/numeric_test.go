package infra

import (
	"math/big"
	"testing"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNumericToDecimal_Zero(t *testing.T) {
	v, err := NumericToDecimal(DecimalToNumeric(decimal.Zero))
	require.NoError(t, err)
	assert.True(t, v.IsZero())
}

func TestNumericToDecimal_RoundTripsMoney(t *testing.T) {
	for _, s := range []string{"100", "50.25", "0.01", "-12.50", "999999999999.99", "2.0000"} {
		t.Run(s, func(t *testing.T) {
			d := decimal.RequireFromString(s)
			v, err := NumericToDecimal(DecimalToNumeric(d))
			require.NoError(t, err)
			assert.True(t, d.Equal(v), "want %s got %s", d, v)
		})
	}
}

func TestNumericToDecimal_NegativeExponent(t *testing.T) {
	// 12345 * 10^-2 = 123.45
	n := pgtype.Numeric{Int: big.NewInt(12345), Exp: -2, Valid: true}
	v, err := NumericToDecimal(n)
	require.NoError(t, err)
	assert.Equal(t, "123.45", v.String())
}

func TestNumericToDecimal_PositiveExponent(t *testing.T) {
	// 5 * 10^3 = 5000
	n := pgtype.Numeric{Int: big.NewInt(5), Exp: 3, Valid: true}
	v, err := NumericToDecimal(n)
	require.NoError(t, err)
	assert.Equal(t, "5000", v.String())
}

func TestNumericToDecimal_NullReturnsError(t *testing.T) {
	_, err := NumericToDecimal(pgtype.Numeric{Valid: false})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "NULL")
}

func TestNumericToDecimal_NaNReturnsError(t *testing.T) {
	_, err := NumericToDecimal(pgtype.Numeric{NaN: true, Valid: true})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "NaN")
}

func TestNumericToDecimal_InfinityReturnsError(t *testing.T) {
	_, err := NumericToDecimal(pgtype.Numeric{InfinityModifier: pgtype.Infinity, Valid: true})
	assert.Error(t, err)
}

func TestDecimalToNumeric_Fields(t *testing.T) {
	n := DecimalToNumeric(decimal.RequireFromString("42.50"))
	assert.True(t, n.Valid)
	assert.False(t, n.NaN)
	assert.Equal(t, pgtype.Finite, n.InfinityModifier)
	assert.Equal(t, int32(-2), n.Exp)
	assert.Equal(t, int64(4250), n.Int.Int64())
}
