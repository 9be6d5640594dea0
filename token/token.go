package token

import (
	"errors"
	"sync"

	"github.com/holiman/uint256"

	"stablemint/crypto"
)

var (
	ErrInvalidAmount       = errors.New("token: amount must be positive")
	ErrInsufficientBalance = errors.New("token: insufficient balance")
	ErrInsufficientSupply  = errors.New("token: burn exceeds total supply")
)

// FungibleAsset is the capability surface the solvency engine requires from
// every collateral asset. Implementations move balances between explicit
// holder addresses; there is no implicit caller.
type FungibleAsset interface {
	Symbol() string
	BalanceOf(addr crypto.Address) *uint256.Int
	Transfer(from, to crypto.Address, amount *uint256.Int) error
}

// Ledger is an in-process fungible-token ledger. It satisfies FungibleAsset
// and is safe for concurrent reads and writes.
type Ledger struct {
	mu       sync.RWMutex
	symbol   string
	balances map[string]*uint256.Int
	supply   *uint256.Int
}

// NewLedger constructs an empty ledger for the given token symbol.
func NewLedger(symbol string) *Ledger {
	return &Ledger{
		symbol:   symbol,
		balances: make(map[string]*uint256.Int),
		supply:   uint256.NewInt(0),
	}
}

func (l *Ledger) Symbol() string { return l.symbol }

func (l *Ledger) BalanceOf(addr crypto.Address) *uint256.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	balance, ok := l.balances[string(addr.Bytes())]
	if !ok {
		return uint256.NewInt(0)
	}
	return new(uint256.Int).Set(balance)
}

// TotalSupply reports the sum of all balances.
func (l *Ledger) TotalSupply() *uint256.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return new(uint256.Int).Set(l.supply)
}

// Transfer moves amount from one holder to another. The debit is checked
// before any balance is touched so a failed transfer leaves the ledger
// unchanged.
func (l *Ledger) Transfer(from, to crypto.Address, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	fromKey := string(from.Bytes())
	balance, ok := l.balances[fromKey]
	if !ok || balance.Lt(amount) {
		return ErrInsufficientBalance
	}
	l.balances[fromKey] = new(uint256.Int).Sub(balance, amount)
	l.credit(to, amount)
	return nil
}

// Credit adds externally backed units to a holder balance and grows the
// supply to match. This is the on-ramp for collateral ledgers, which mirror
// assets custodied outside the process.
func (l *Ledger) Credit(to crypto.Address, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.credit(to, amount)
	l.supply = new(uint256.Int).Add(l.supply, amount)
	return nil
}

// credit adds to a holder balance. Callers hold the write lock.
func (l *Ledger) credit(to crypto.Address, amount *uint256.Int) {
	toKey := string(to.Bytes())
	current, ok := l.balances[toKey]
	if !ok {
		current = uint256.NewInt(0)
	}
	l.balances[toKey] = new(uint256.Int).Add(current, amount)
}
