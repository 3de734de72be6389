// Package units converts between on-chain integers and display values.
package units

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"

	"voting-token-client/internal/domain"
)

// Decimals is the fixed-point precision of every token amount.
const Decimals = 18

// FormatUnits renders a base-unit amount as a decimal string with at least
// one fractional digit ("1.0", "0.25").
func FormatUnits(v *big.Int) string {
	if v == nil {
		return domain.ZeroAmount
	}
	s := decimal.NewFromBigInt(v, -Decimals).String()
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// ParseUnits converts a decimal string into base units. Negative values and
// values with more than 18 fractional digits are rejected.
func ParseUnits(s string) (*big.Int, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("%w: amount %q: %v", domain.ErrInvalidInput, s, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("%w: amount %q is negative", domain.ErrInvalidInput, s)
	}
	scaled := d.Shift(Decimals)
	if !scaled.IsInteger() {
		return nil, fmt.Errorf("%w: amount %q has more than %d decimals", domain.ErrInvalidInput, s, Decimals)
	}
	return scaled.BigInt(), nil
}

// ParsePositiveUnits is ParseUnits that also rejects zero.
func ParsePositiveUnits(s string) (*big.Int, error) {
	v, err := ParseUnits(s)
	if err != nil {
		return nil, err
	}
	if v.Sign() == 0 {
		return nil, fmt.Errorf("%w: amount must be positive", domain.ErrInvalidInput)
	}
	return v, nil
}

// Int64 narrows v, failing with *domain.OverflowError instead of truncating.
func Int64(field string, v *big.Int) (int64, error) {
	if v == nil {
		return 0, nil
	}
	if !v.IsInt64() {
		return 0, &domain.OverflowError{Field: field, Value: v.String()}
	}
	return v.Int64(), nil
}
