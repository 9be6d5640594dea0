package state

import (
	"encoding/hex"
	"errors"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"

	"stablemint/crypto"
	"stablemint/engine"
	"stablemint/storage"
)

var positionPrefix = []byte("engine/position/")

// storedCollateral is the RLP wire form of one collateral entry. Maps do not
// round-trip through RLP, so entries are flattened into a sorted list.
type storedCollateral struct {
	Asset  string
	Amount *uint256.Int
}

type storedPosition struct {
	Collateral []storedCollateral
	Debt       *uint256.Int
}

// Manager persists engine positions as RLP records in the key-value store.
// It satisfies engine.PositionState.
type Manager struct {
	db storage.Database
}

// NewManager wraps the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

func positionKey(addr crypto.Address) []byte {
	return append(append([]byte(nil), positionPrefix...), []byte(hex.EncodeToString(addr.Bytes()))...)
}

// GetPosition loads the stored position for the address. A missing record
// returns (nil, nil); the engine materialises zero-value positions lazily.
func (m *Manager) GetPosition(addr crypto.Address) (*engine.Position, error) {
	raw, err := m.db.Get(positionKey(addr))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var stored storedPosition
	if err := rlp.DecodeBytes(raw, &stored); err != nil {
		return nil, fmt.Errorf("state: decode position: %w", err)
	}
	return decodePosition(addr, &stored), nil
}

// PutPosition writes the position back to the store. Collateral entries are
// sorted by asset so records are byte-stable across writes.
func (m *Manager) PutPosition(position *engine.Position) error {
	if position == nil {
		return fmt.Errorf("state: nil position")
	}
	stored := encodePosition(position)
	raw, err := rlp.EncodeToBytes(stored)
	if err != nil {
		return fmt.Errorf("state: encode position: %w", err)
	}
	return m.db.Put(positionKey(position.Address), raw)
}

// ListPositions returns every stored position. Used by the read-only query
// surface and invariant sweeps.
func (m *Manager) ListPositions() ([]*engine.Position, error) {
	var (
		positions []*engine.Position
		iterErr   error
	)
	err := m.db.Iterate(positionPrefix, func(key, value []byte) bool {
		addrHex := string(key[len(positionPrefix):])
		addrBytes, err := hex.DecodeString(addrHex)
		if err != nil {
			iterErr = fmt.Errorf("state: malformed position key %q: %w", key, err)
			return false
		}
		addr, err := crypto.NewAddress(addrBytes)
		if err != nil {
			iterErr = fmt.Errorf("state: malformed position key %q: %w", key, err)
			return false
		}
		var stored storedPosition
		if err := rlp.DecodeBytes(value, &stored); err != nil {
			iterErr = fmt.Errorf("state: decode position %s: %w", addr, err)
			return false
		}
		positions = append(positions, decodePosition(addr, &stored))
		return true
	})
	if err != nil {
		return nil, err
	}
	if iterErr != nil {
		return nil, iterErr
	}
	return positions, nil
}

func encodePosition(position *engine.Position) *storedPosition {
	stored := &storedPosition{Debt: position.Debt}
	if stored.Debt == nil {
		stored.Debt = uint256.NewInt(0)
	}
	assets := make([]string, 0, len(position.Collateral))
	for asset := range position.Collateral {
		assets = append(assets, asset)
	}
	sort.Strings(assets)
	for _, asset := range assets {
		amount := position.Collateral[asset]
		if amount == nil || amount.IsZero() {
			continue
		}
		stored.Collateral = append(stored.Collateral, storedCollateral{Asset: asset, Amount: amount})
	}
	return stored
}

func decodePosition(addr crypto.Address, stored *storedPosition) *engine.Position {
	position := &engine.Position{
		Address:    addr,
		Collateral: make(map[string]*uint256.Int, len(stored.Collateral)),
		Debt:       stored.Debt,
	}
	if position.Debt == nil {
		position.Debt = uint256.NewInt(0)
	}
	for _, entry := range stored.Collateral {
		amount := entry.Amount
		if amount == nil {
			amount = uint256.NewInt(0)
		}
		position.Collateral[entry.Asset] = amount
	}
	return position
}
