package engine

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common/math"
)

var (
	// ErrInsufficientStake is returned when an unstake exceeds the staked balance.
	ErrInsufficientStake = errors.New("insufficient stake to complete the operation")
	// ErrArithmeticOverflow is returned when a checked add/sub/mul leaves the uint64 range.
	ErrArithmeticOverflow = errors.New("arithmetic overflow")
	// ErrDivisionByZero is returned when rewards are distributed against zero activity.
	ErrDivisionByZero = errors.New("division by zero")
	// ErrZeroAmount is returned for flash loans and burns of nothing.
	ErrZeroAmount = errors.New("amount must be greater than zero")
)

func checkedAdd(a, b uint64, what string) (uint64, error) {
	sum, overflow := math.SafeAdd(a, b)
	if overflow {
		return 0, fmt.Errorf("%s: %d + %d: %w", what, a, b, ErrArithmeticOverflow)
	}
	return sum, nil
}

func checkedSub(a, b uint64, what string) (uint64, error) {
	diff, underflow := math.SafeSub(a, b)
	if underflow {
		return 0, fmt.Errorf("%s: %d - %d: %w", what, a, b, ErrArithmeticOverflow)
	}
	return diff, nil
}

// elapsed returns now-since, reporting signed overflow instead of wrapping.
func elapsed(now, since int64) (int64, error) {
	d := now - since
	if (now >= 0) != (since >= 0) && (d >= 0) != (now >= 0) {
		return 0, fmt.Errorf("elapsed time %d - %d: %w", now, since, ErrArithmeticOverflow)
	}
	return d, nil
}
