package domain

import (
	"errors"
	"math"

	"github.com/shopspring/decimal"
)

// MinorUnitExponent is the number of decimal places a currency amount may carry.
const MinorUnitExponent = 2

var (
	ErrNonPositiveAmount = errors.New("amount must be positive")
	ErrAmountPrecision   = errors.New("amount has more than 2 decimal places")
	ErrAmountOverflow    = errors.New("amount out of range")
)

var maxMinor = decimal.NewFromInt(math.MaxInt64)

// ToMinorUnits converts a major-unit amount (e.g. 12.50) into minor units (1250).
func ToMinorUnits(amount decimal.Decimal) (int64, error) {
	if !amount.IsPositive() {
		return 0, ErrNonPositiveAmount
	}
	minor := amount.Shift(MinorUnitExponent)
	if !minor.Equal(minor.Truncate(0)) {
		return 0, ErrAmountPrecision
	}
	if minor.GreaterThan(maxMinor) {
		return 0, ErrAmountOverflow
	}
	return minor.IntPart(), nil
}

// FromMinorUnits renders minor units as a fixed two-decimal string.
func FromMinorUnits(minor int64) string {
	return decimal.New(minor, -MinorUnitExponent).StringFixed(MinorUnitExponent)
}
