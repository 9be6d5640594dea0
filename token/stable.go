package token

import (
	"github.com/holiman/uint256"

	"stablemint/crypto"
)

// Stable is the mintable/burnable stable-asset ledger. Mint authority is
// capability-based: only the holder of the concrete *Stable can mint or
// burn, and the engine is handed that pointer at deployment while every
// other component sees the FungibleAsset interface.
type Stable struct {
	Ledger
}

// NewStable constructs an empty stable-asset ledger.
func NewStable(symbol string) *Stable {
	return &Stable{Ledger: Ledger{
		symbol:   symbol,
		balances: make(map[string]*uint256.Int),
		supply:   uint256.NewInt(0),
	}}
}

// Mint credits freshly issued units to the recipient and grows the total
// supply by the same amount.
func (s *Stable) Mint(to crypto.Address, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return ErrInvalidAmount
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.credit(to, amount)
	s.supply = new(uint256.Int).Add(s.supply, amount)
	return nil
}

// Burn destroys units held by from and shrinks the total supply. The holder
// balance is checked first so a failed burn leaves the ledger unchanged.
func (s *Stable) Burn(from crypto.Address, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return ErrInvalidAmount
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	fromKey := string(from.Bytes())
	balance, ok := s.balances[fromKey]
	if !ok || balance.Lt(amount) {
		return ErrInsufficientBalance
	}
	if s.supply.Lt(amount) {
		return ErrInsufficientSupply
	}
	s.balances[fromKey] = new(uint256.Int).Sub(balance, amount)
	s.supply = new(uint256.Int).Sub(s.supply, amount)
	return nil
}
