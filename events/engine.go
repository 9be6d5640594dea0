package events

import (
	"github.com/holiman/uint256"

	"stablemint/crypto"
)

const (
	// TypeCollateralDeposited is emitted when collateral enters custody.
	TypeCollateralDeposited = "engine.collateral.deposited"
	// TypeCollateralRedeemed is emitted when collateral leaves custody,
	// either back to its owner or to a liquidator.
	TypeCollateralRedeemed = "engine.collateral.redeemed"
	// TypeStableMinted is emitted when new stable units are issued.
	TypeStableMinted = "engine.stable.minted"
	// TypeStableBurned is emitted when stable units are destroyed.
	TypeStableBurned = "engine.stable.burned"
	// TypeLiquidated is emitted after a completed liquidation.
	TypeLiquidated = "engine.liquidated"
)

type CollateralDeposited struct {
	Account crypto.Address
	Asset   string
	Amount  *uint256.Int
}

func (CollateralDeposited) EventType() string { return TypeCollateralDeposited }

func (e CollateralDeposited) Record() *Record {
	return newRecord(TypeCollateralDeposited, map[string]string{
		"account": e.Account.String(),
		"asset":   e.Asset,
		"amount":  formatAmount(e.Amount),
	})
}

type CollateralRedeemed struct {
	From   crypto.Address
	To     crypto.Address
	Asset  string
	Amount *uint256.Int
}

func (CollateralRedeemed) EventType() string { return TypeCollateralRedeemed }

func (e CollateralRedeemed) Record() *Record {
	return newRecord(TypeCollateralRedeemed, map[string]string{
		"from":   e.From.String(),
		"to":     e.To.String(),
		"asset":  e.Asset,
		"amount": formatAmount(e.Amount),
	})
}

type StableMinted struct {
	Account crypto.Address
	Amount  *uint256.Int
}

func (StableMinted) EventType() string { return TypeStableMinted }

func (e StableMinted) Record() *Record {
	return newRecord(TypeStableMinted, map[string]string{
		"account": e.Account.String(),
		"amount":  formatAmount(e.Amount),
	})
}

type StableBurned struct {
	Account crypto.Address
	Payer   crypto.Address
	Amount  *uint256.Int
}

func (StableBurned) EventType() string { return TypeStableBurned }

func (e StableBurned) Record() *Record {
	return newRecord(TypeStableBurned, map[string]string{
		"account": e.Account.String(),
		"payer":   e.Payer.String(),
		"amount":  formatAmount(e.Amount),
	})
}

type Liquidated struct {
	Liquidator        crypto.Address
	Debtor            crypto.Address
	Asset             string
	DebtCovered       *uint256.Int
	CollateralSeized  *uint256.Int
	HealthFactorAfter *uint256.Int
}

func (Liquidated) EventType() string { return TypeLiquidated }

func (e Liquidated) Record() *Record {
	return newRecord(TypeLiquidated, map[string]string{
		"liquidator":        e.Liquidator.String(),
		"debtor":            e.Debtor.String(),
		"asset":             e.Asset,
		"debtCovered":       formatAmount(e.DebtCovered),
		"collateralSeized":  formatAmount(e.CollateralSeized),
		"healthFactorAfter": formatAmount(e.HealthFactorAfter),
	})
}

func formatAmount(amount *uint256.Int) string {
	if amount == nil {
		return "0"
	}
	return amount.Dec()
}
