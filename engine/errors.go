package engine

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
)

var (
	errNilState = errors.New("solvency engine: state not configured")

	// ErrInvalidAmount rejects zero or nil amounts. Callers may retry with
	// valid input.
	ErrInvalidAmount = errors.New("solvency engine: amount must be positive")
	// ErrAssetNotApproved rejects collateral symbols outside the registry.
	ErrAssetNotApproved = errors.New("solvency engine: collateral asset not approved")
	// ErrAssetNotWired indicates an approved asset has no ledger registered
	// with the engine. This is a deployment fault, not user error.
	ErrAssetNotWired = errors.New("solvency engine: collateral asset ledger not registered")
	// ErrInsufficientCollateral indicates a redemption or seizure would
	// underflow the account's collateral ledger. The decrement fails rather
	// than wrapping; during liquidation this is the protocol's known
	// undercollateralization edge case.
	ErrInsufficientCollateral = errors.New("solvency engine: insufficient collateral balance")
	// ErrInsufficientDebt indicates a burn exceeds the account's minted debt.
	ErrInsufficientDebt = errors.New("solvency engine: burn exceeds outstanding debt")
	// ErrTransferFailed wraps a failure reported by an external asset ledger.
	// All ledger mutation from the same operation is rolled back.
	ErrTransferFailed = errors.New("solvency engine: asset transfer failed")
	// ErrMintFailed wraps a failure reported by the stable-asset ledger's
	// mint call. The debt increment is rolled back.
	ErrMintFailed = errors.New("solvency engine: stable asset mint failed")
	// ErrBurnFailed wraps a failure reported by the stable-asset ledger's
	// burn call.
	ErrBurnFailed = errors.New("solvency engine: stable asset burn failed")
	// ErrHealthFactorBroken is the sentinel matched by errors.Is for the
	// typed HealthFactorError postcondition failure.
	ErrHealthFactorBroken = errors.New("solvency engine: health factor below minimum")
	// ErrHealthFactorOk rejects liquidation of a solvent account.
	ErrHealthFactorOk = errors.New("solvency engine: health factor not below minimum")
	// ErrHealthFactorNotImproved fails a liquidation whose net effect did
	// not strictly raise the debtor's health factor.
	ErrHealthFactorNotImproved = errors.New("solvency engine: health factor not improved")
	// ErrReentrantCall rejects a mutating operation entered while another is
	// still in flight.
	ErrReentrantCall = errors.New("solvency engine: reentrant call")
)

// HealthFactorError reports a broken health-factor postcondition together
// with the offending value so callers can react programmatically.
type HealthFactorError struct {
	Value *uint256.Int
}

func (e *HealthFactorError) Error() string {
	value := "0"
	if e.Value != nil {
		value = e.Value.Dec()
	}
	return fmt.Sprintf("solvency engine: health factor %s below minimum", value)
}

// Is lets errors.Is match against the ErrHealthFactorBroken sentinel.
func (e *HealthFactorError) Is(target error) bool {
	return target == ErrHealthFactorBroken
}
