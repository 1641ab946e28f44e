// Package units converts between human decimal token amounts and integer
// minor units without floating-point arithmetic.
package units

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount     = errors.New("units: invalid amount")
	ErrNonPositiveAmount = errors.New("units: amount must be positive")
	ErrExcessPrecision   = errors.New("units: amount exceeds token precision")
)

// GweiDecimals is the exponent between wei and gwei.
const GweiDecimals = 9

// Bounds on accepted amounts, checked before any rescale.
const (
	MaxAmountLength  = 64
	MaxIntegerDigits = 30
	MaxFractionScale = 36
)

// ParseAmount parses a decimal string such as "0.25". Exponent notation and
// surrounding whitespace are accepted within the bounds above; anything else
// is rejected.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}
	if len(s) > MaxAmountLength {
		return decimal.Zero, fmt.Errorf("%w: longer than %d characters", ErrInvalidAmount, MaxAmountLength)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if d.Exponent() < -MaxFractionScale {
		return decimal.Zero, fmt.Errorf("%w: more than %d decimal places", ErrInvalidAmount, MaxFractionScale)
	}
	if int64(d.NumDigits())+int64(d.Exponent()) > MaxIntegerDigits {
		return decimal.Zero, fmt.Errorf("%w: more than %d integer digits", ErrInvalidAmount, MaxIntegerDigits)
	}
	return d, nil
}

// CheckPrecision verifies amount is positive and representable with the
// given number of decimals.
func CheckPrecision(amount decimal.Decimal, decimals int32) error {
	if amount.Sign() <= 0 {
		return ErrNonPositiveAmount
	}
	scaled := amount.Shift(decimals)
	if !scaled.Equal(scaled.Truncate(0)) {
		return fmt.Errorf("%w: %s has more than %d decimals", ErrExcessPrecision, amount.String(), decimals)
	}
	return nil
}

// ToMinorUnits returns amount * 10^decimals as an exact integer.
func ToMinorUnits(amount decimal.Decimal, decimals int32) (*big.Int, error) {
	if err := CheckPrecision(amount, decimals); err != nil {
		return nil, err
	}
	return amount.Shift(decimals).BigInt(), nil
}

// FromMinorUnits is the inverse of ToMinorUnits.
func FromMinorUnits(v *big.Int, decimals int32) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(v, -decimals)
}

// GweiToWei converts a gwei fee rate to wei, truncating sub-wei fractions.
func GweiToWei(gwei decimal.Decimal) *big.Int {
	return gwei.Shift(GweiDecimals).Truncate(0).BigInt()
}

// WeiToGwei converts a wei fee rate to gwei.
func WeiToGwei(wei *big.Int) decimal.Decimal {
	return FromMinorUnits(wei, GweiDecimals)
}
