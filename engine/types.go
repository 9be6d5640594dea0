package engine

import (
	"github.com/holiman/uint256"

	"stablemint/crypto"
	"stablemint/token"
)

// Position is the per-account ledger entry: one collateral balance per
// approved asset plus the stable-asset debt the account has caused to be
// minted. Entries come into existence on first deposit and are never
// explicitly destroyed.
type Position struct {
	Address    crypto.Address
	Collateral map[string]*uint256.Int
	Debt       *uint256.Int
}

// Clone returns a deep copy. Operations mutate a clone and persist it only
// once every check has passed, which is what makes failures all-or-nothing.
func (p *Position) Clone() *Position {
	if p == nil {
		return nil
	}
	clone := &Position{
		Address:    p.Address,
		Collateral: make(map[string]*uint256.Int, len(p.Collateral)),
		Debt:       uint256.NewInt(0),
	}
	if p.Debt != nil {
		clone.Debt = new(uint256.Int).Set(p.Debt)
	}
	for asset, amount := range p.Collateral {
		if amount == nil {
			clone.Collateral[asset] = uint256.NewInt(0)
			continue
		}
		clone.Collateral[asset] = new(uint256.Int).Set(amount)
	}
	return clone
}

// CollateralOf returns the balance for the asset, defaulting to zero.
func (p *Position) CollateralOf(asset string) *uint256.Int {
	if p == nil {
		return uint256.NewInt(0)
	}
	amount, ok := p.Collateral[asset]
	if !ok || amount == nil {
		return uint256.NewInt(0)
	}
	return new(uint256.Int).Set(amount)
}

// PositionState is the persistence contract the engine is written against.
type PositionState interface {
	// GetPosition returns the stored position or (nil, nil) when none exists.
	GetPosition(addr crypto.Address) (*Position, error)
	PutPosition(position *Position) error
	ListPositions() ([]*Position, error)
}

// StableAsset is the capability surface of the synthetic stable token. The
// engine is the sole holder of the mint/burn capability; every other
// component sees only token.FungibleAsset.
type StableAsset interface {
	token.FungibleAsset
	Mint(to crypto.Address, amount *uint256.Int) error
	Burn(from crypto.Address, amount *uint256.Int) error
}

// Params groups the protocol constants gating solvency.
type Params struct {
	// LiquidationThreshold is the fraction of nominal collateral value
	// counted toward solvency, out of LiquidationPrecision.
	LiquidationThreshold uint64
	// LiquidationBonus is the extra collateral share awarded to a
	// liquidator, out of LiquidationPrecision.
	LiquidationBonus uint64
	// LiquidationPrecision is the denominator for the two ratios above.
	LiquidationPrecision uint64
	// MinHealthFactor is the 18-decimal fixed-point solvency floor.
	MinHealthFactor *uint256.Int
}

// DefaultParams returns the protocol defaults: 50% threshold (200%
// overcollateralization), 10% liquidation bonus, health floor of 1.0.
func DefaultParams() Params {
	return Params{
		LiquidationThreshold: 50,
		LiquidationBonus:     10,
		LiquidationPrecision: 100,
		MinHealthFactor:      uint256.NewInt(1_000_000_000_000_000_000),
	}
}
