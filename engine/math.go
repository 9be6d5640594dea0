package engine

import (
	"github.com/holiman/uint256"

	"stablemint/oracle"
)

// maxHealthFactor is the saturation sentinel reported for positions with
// positive collateral and zero debt.
var maxHealthFactor = new(uint256.Int).SetAllOne()

// MaxHealthFactor returns the zero-debt saturation sentinel.
func MaxHealthFactor() *uint256.Int {
	return new(uint256.Int).Set(maxHealthFactor)
}

// healthFactorFrom computes the 18-decimal health factor for the given debt
// and canonical USD collateral value.
//
// The zero-collateral branch is checked first: an account with no collateral
// reads as the minimum sentinel even when its debt is also zero, so a
// non-existent account can never appear infinitely healthy.
func healthFactorFrom(debt, collateralValueUSD *uint256.Int, params Params) (*uint256.Int, error) {
	if collateralValueUSD == nil || collateralValueUSD.IsZero() {
		return uint256.NewInt(0), nil
	}
	if debt == nil || debt.IsZero() {
		return MaxHealthFactor(), nil
	}
	adjusted, overflow := new(uint256.Int).MulOverflow(collateralValueUSD, uint256.NewInt(params.LiquidationThreshold))
	if overflow {
		return nil, oracle.ErrArithmeticOverflow
	}
	adjusted.Div(adjusted, uint256.NewInt(params.LiquidationPrecision))
	scaled, overflow := new(uint256.Int).MulOverflow(adjusted, oracle.Precision())
	if overflow {
		return nil, oracle.ErrArithmeticOverflow
	}
	return scaled.Div(scaled, debt), nil
}

// checkedAdd and checkedSub enforce the no-wrap arithmetic contract on
// ledger balances.
func checkedAdd(a, b *uint256.Int) (*uint256.Int, error) {
	sum, overflow := new(uint256.Int).AddOverflow(a, b)
	if overflow {
		return nil, oracle.ErrArithmeticOverflow
	}
	return sum, nil
}

func checkedSub(a, b *uint256.Int, underflowErr error) (*uint256.Int, error) {
	if a.Lt(b) {
		return nil, underflowErr
	}
	return new(uint256.Int).Sub(a, b), nil
}

// bonusShare computes amount * LiquidationBonus / LiquidationPrecision.
func bonusShare(amount *uint256.Int, params Params) (*uint256.Int, error) {
	product, overflow := new(uint256.Int).MulOverflow(amount, uint256.NewInt(params.LiquidationBonus))
	if overflow {
		return nil, oracle.ErrArithmeticOverflow
	}
	return product.Div(product, uint256.NewInt(params.LiquidationPrecision)), nil
}
