package engine

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

const tokenDecimals = 6

var maxUint64 = decimal.NewFromBigInt(new(big.Int).SetUint64(^uint64(0)), 0)

// ParseTokenAmount converts a token amount such as "12.5" into base units.
func ParseTokenAmount(s string) (uint64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse token amount %q: %w", s, err)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("token amount %q cannot be negative", s)
	}

	units := d.Shift(tokenDecimals)
	if !units.Equal(units.Truncate(0)) {
		return 0, fmt.Errorf("token amount %q has more than %d decimals", s, tokenDecimals)
	}
	if units.GreaterThan(maxUint64) {
		return 0, fmt.Errorf("token amount %q: %w", s, ErrArithmeticOverflow)
	}
	return units.BigInt().Uint64(), nil
}

// FormatTokenAmount renders base units as a fixed 6-decimal token amount.
func FormatTokenAmount(units uint64) string {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(units), -tokenDecimals).StringFixed(tokenDecimals)
}
