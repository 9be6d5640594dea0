package oracle

import (
	"errors"

	"github.com/holiman/uint256"
)

var (
	// ErrArithmeticOverflow indicates a fixed-point multiplication wrapped.
	// Overflow always fails the whole operation; values never saturate.
	ErrArithmeticOverflow = errors.New("oracle: arithmetic overflow")
	// ErrDivisionByZero indicates a zero divisor reached the fixed-point
	// helpers. Prior price validation makes this unreachable in practice.
	ErrDivisionByZero = errors.New("oracle: division by zero")
	// ErrInvalidAmount indicates a nil amount was supplied to a conversion.
	ErrInvalidAmount = errors.New("oracle: amount must not be nil")
)

// Canonical fixed-point scale: every USD value and collateral amount in the
// engine carries 18 fractional decimal digits. USD feeds report 8 decimals,
// so prices are aligned with an extra 1e10 multiplier.
var (
	precision               = uint256.NewInt(1_000_000_000_000_000_000)
	additionalFeedPrecision = uint256.NewInt(10_000_000_000)
)

// Precision returns the canonical 18-decimal fixed-point scale.
func Precision() *uint256.Int {
	return new(uint256.Int).Set(precision)
}

// mulDiv computes a*b/den with the multiplication checked for overflow and
// the divisor checked for zero.
func mulDiv(a, b, den *uint256.Int) (*uint256.Int, error) {
	if den == nil || den.IsZero() {
		return nil, ErrDivisionByZero
	}
	product, overflow := new(uint256.Int).MulOverflow(a, b)
	if overflow {
		return nil, ErrArithmeticOverflow
	}
	return product.Div(product, den), nil
}
