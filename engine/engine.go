package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/holiman/uint256"

	"stablemint/crypto"
	"stablemint/events"
	"stablemint/oracle"
	"stablemint/registry"
	"stablemint/token"
)

// Engine owns the collateral and debt ledgers and every state transition
// against them. Each mutating operation validates its preconditions,
// mutates a cloned position, emits audit events, performs the external
// asset interaction, and persists the clone only after the resulting health
// factor has been confirmed — a failure anywhere leaves the stored ledger
// untouched.
type Engine struct {
	state      PositionState
	registry   *registry.Registry
	prices     *oracle.Adapter
	stable     StableAsset
	collateral map[string]token.FungibleAsset
	custody    crypto.Address
	params     Params
	emitter    events.Emitter
	guard      opGuard
}

// NewEngine constructs an engine over the approved-collateral registry and
// validated price adapter. The custody address holds pulled collateral and
// in-flight stable balances.
func NewEngine(reg *registry.Registry, prices *oracle.Adapter, stable StableAsset, custody crypto.Address, params Params) (*Engine, error) {
	if reg == nil || prices == nil || stable == nil {
		return nil, fmt.Errorf("%w: missing registry, price adapter or stable asset", registry.ErrConfiguration)
	}
	if params.LiquidationPrecision == 0 || params.LiquidationThreshold == 0 || params.LiquidationThreshold > params.LiquidationPrecision {
		return nil, fmt.Errorf("%w: liquidation threshold %d out of range", registry.ErrConfiguration, params.LiquidationThreshold)
	}
	if params.LiquidationBonus >= params.LiquidationPrecision {
		return nil, fmt.Errorf("%w: liquidation bonus %d out of range", registry.ErrConfiguration, params.LiquidationBonus)
	}
	if params.MinHealthFactor == nil || params.MinHealthFactor.IsZero() {
		return nil, fmt.Errorf("%w: minimum health factor not set", registry.ErrConfiguration)
	}
	return &Engine{
		registry:   reg,
		prices:     prices,
		stable:     stable,
		collateral: make(map[string]token.FungibleAsset),
		custody:    custody,
		params:     params,
		emitter:    events.NoopEmitter{},
	}, nil
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state PositionState) { e.state = state }

// SetEmitter wires the audit event sink.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if e == nil || emitter == nil {
		return
	}
	e.emitter = emitter
}

// RegisterCollateralAsset attaches the transfer ledger for an approved
// collateral symbol. Deposits against symbols without a registered ledger
// fail with ErrAssetNotWired.
func (e *Engine) RegisterCollateralAsset(asset token.FungibleAsset) error {
	if asset == nil {
		return ErrAssetNotWired
	}
	symbol := strings.ToUpper(strings.TrimSpace(asset.Symbol()))
	if !e.registry.IsApproved(symbol) {
		return fmt.Errorf("%w: %s", ErrAssetNotApproved, symbol)
	}
	e.collateral[symbol] = asset
	return nil
}

// Params returns the protocol constants.
func (e *Engine) Params() Params {
	params := e.params
	params.MinHealthFactor = new(uint256.Int).Set(e.params.MinHealthFactor)
	return params
}

// CollateralAssets lists the approved collateral symbols in registry order.
func (e *Engine) CollateralAssets() []string {
	return e.registry.Assets()
}

// Custody returns the address holding pulled collateral.
func (e *Engine) Custody() crypto.Address { return e.custody }

// --- Mutating operations ---

// DepositCollateral pulls amount of the approved asset from the account
// into protocol custody and credits the account's collateral ledger.
// Depositing can only raise the health factor, so no post-check is run.
func (e *Engine) DepositCollateral(account crypto.Address, asset string, amount *uint256.Int) error {
	if err := e.guard.enter(); err != nil {
		return err
	}
	defer e.guard.exit()
	return e.depositCollateral(account, asset, amount)
}

func (e *Engine) depositCollateral(account crypto.Address, asset string, amount *uint256.Int) error {
	if e.state == nil {
		return errNilState
	}
	if amount == nil || amount.IsZero() {
		return ErrInvalidAmount
	}
	symbol := strings.ToUpper(strings.TrimSpace(asset))
	ledger, err := e.collateralLedger(symbol)
	if err != nil {
		return err
	}
	position, err := e.loadPosition(account)
	if err != nil {
		return err
	}
	balance, err := checkedAdd(position.CollateralOf(symbol), amount)
	if err != nil {
		return err
	}
	position.Collateral[symbol] = balance

	if err := ledger.Transfer(account, e.custody, amount); err != nil {
		return fmt.Errorf("%w: deposit %s: %v", ErrTransferFailed, symbol, err)
	}
	if err := e.state.PutPosition(position); err != nil {
		// Unwind the pull so custody never holds unaccounted collateral.
		_ = ledger.Transfer(e.custody, account, amount)
		return err
	}
	e.emitter.Emit(events.CollateralDeposited{Account: account, Asset: symbol, Amount: new(uint256.Int).Set(amount)})
	return nil
}

// Mint issues amount of the stable asset against the account's collateral.
// The debt increment is rejected before any minting happens when it would
// push the health factor below the minimum.
func (e *Engine) Mint(account crypto.Address, amount *uint256.Int) error {
	if err := e.guard.enter(); err != nil {
		return err
	}
	defer e.guard.exit()
	return e.mint(account, amount)
}

func (e *Engine) mint(account crypto.Address, amount *uint256.Int) error {
	if e.state == nil {
		return errNilState
	}
	if amount == nil || amount.IsZero() {
		return ErrInvalidAmount
	}
	position, err := e.loadPosition(account)
	if err != nil {
		return err
	}
	debt, err := checkedAdd(position.Debt, amount)
	if err != nil {
		return err
	}
	position.Debt = debt

	factor, err := e.positionHealthFactor(position)
	if err != nil {
		return err
	}
	if factor.Lt(e.params.MinHealthFactor) {
		return &HealthFactorError{Value: factor}
	}

	if err := e.stable.Mint(account, amount); err != nil {
		return fmt.Errorf("%w: %v", ErrMintFailed, err)
	}
	if err := e.state.PutPosition(position); err != nil {
		// Keep the debt ledger and external supply consistent: destroy what
		// was just issued before surfacing the failure.
		_ = e.stable.Burn(account, amount)
		return err
	}
	e.emitter.Emit(events.StableMinted{Account: account, Amount: new(uint256.Int).Set(amount)})
	return nil
}

// RedeemCollateral pushes amount of the asset from custody back to the
// account and re-checks the account's health factor. The post-check runs
// after the external transfer; a failed check unwinds the push before the
// position is ever persisted.
func (e *Engine) RedeemCollateral(account crypto.Address, asset string, amount *uint256.Int) error {
	if err := e.guard.enter(); err != nil {
		return err
	}
	defer e.guard.exit()
	return e.redeemCollateral(account, asset, amount)
}

func (e *Engine) redeemCollateral(account crypto.Address, asset string, amount *uint256.Int) error {
	if e.state == nil {
		return errNilState
	}
	position, err := e.loadPosition(account)
	if err != nil {
		return err
	}
	ledger, symbol, err := e.redeemFromPosition(position, asset, amount, account)
	if err != nil {
		return err
	}
	// A debt-free account may always withdraw, including down to empty.
	factor, err := e.positionHealthFactor(position)
	if err == nil && factor.Lt(e.params.MinHealthFactor) && !position.Debt.IsZero() {
		err = &HealthFactorError{Value: factor}
	}
	if err != nil {
		unwindErr := ledger.Transfer(account, e.custody, amount)
		if unwindErr != nil {
			return errors.Join(err, fmt.Errorf("%w: unwinding redeem of %s: %v", ErrTransferFailed, symbol, unwindErr))
		}
		return err
	}
	if err := e.state.PutPosition(position); err != nil {
		_ = ledger.Transfer(account, e.custody, amount)
		return err
	}
	e.emitter.Emit(events.CollateralRedeemed{From: account, To: account, Asset: symbol, Amount: new(uint256.Int).Set(amount)})
	return nil
}

// redeemFromPosition decrements the position's collateral and pushes the
// amount from custody to the recipient. The caller is responsible for
// persisting the position, unwinding the push on later failures and emitting
// the audit record once its operation has committed.
func (e *Engine) redeemFromPosition(position *Position, asset string, amount *uint256.Int, to crypto.Address) (token.FungibleAsset, string, error) {
	if amount == nil || amount.IsZero() {
		return nil, "", ErrInvalidAmount
	}
	symbol := strings.ToUpper(strings.TrimSpace(asset))
	ledger, err := e.collateralLedger(symbol)
	if err != nil {
		return nil, "", err
	}
	balance, err := checkedSub(position.CollateralOf(symbol), amount, ErrInsufficientCollateral)
	if err != nil {
		return nil, "", err
	}
	position.Collateral[symbol] = balance

	if err := ledger.Transfer(e.custody, to, amount); err != nil {
		return nil, "", fmt.Errorf("%w: redeem %s: %v", ErrTransferFailed, symbol, err)
	}
	return ledger, symbol, nil
}

// Burn destroys amount of the account's minted debt, paid from the
// account's own stable balance.
func (e *Engine) Burn(account crypto.Address, amount *uint256.Int) error {
	if err := e.guard.enter(); err != nil {
		return err
	}
	defer e.guard.exit()
	position, err := e.loadPosition(account)
	if err != nil {
		return err
	}
	if err := e.burnFromPosition(position, amount, account); err != nil {
		return err
	}
	// Burning cannot worsen the health factor; the check is defensive. Any
	// failure past this point re-issues the destroyed units so the payer is
	// left whole.
	factor, err := e.positionHealthFactor(position)
	if err == nil && factor.Lt(e.params.MinHealthFactor) && !position.Debt.IsZero() {
		err = &HealthFactorError{Value: factor}
	}
	if err == nil {
		err = e.state.PutPosition(position)
	}
	if err != nil {
		_ = e.stable.Mint(account, amount)
		return err
	}
	e.emitter.Emit(events.StableBurned{Account: account, Payer: account, Amount: new(uint256.Int).Set(amount)})
	return nil
}

// burnFromPosition decrements the position's debt, pulls the stable amount
// from the payer into custody and destroys it. On failure the position
// clone is abandoned and any partial external effect unwound.
func (e *Engine) burnFromPosition(position *Position, amount *uint256.Int, payer crypto.Address) error {
	if e.state == nil {
		return errNilState
	}
	if amount == nil || amount.IsZero() {
		return ErrInvalidAmount
	}
	debt, err := checkedSub(position.Debt, amount, ErrInsufficientDebt)
	if err != nil {
		return err
	}
	position.Debt = debt

	if err := e.stable.Transfer(payer, e.custody, amount); err != nil {
		return fmt.Errorf("%w: pulling stable from payer: %v", ErrTransferFailed, err)
	}
	if err := e.stable.Burn(e.custody, amount); err != nil {
		_ = e.stable.Transfer(e.custody, payer, amount)
		return fmt.Errorf("%w: %v", ErrBurnFailed, err)
	}
	return nil
}

// Liquidate lets a third party cover part of an unhealthy debtor's debt in
// exchange for the equivalent collateral plus the liquidation bonus. The
// debtor's health factor must strictly improve or the whole operation is
// rolled back.
func (e *Engine) Liquidate(liquidator crypto.Address, collateralAsset string, debtor crypto.Address, debtToCover *uint256.Int) error {
	if err := e.guard.enter(); err != nil {
		return err
	}
	defer e.guard.exit()
	return e.liquidate(liquidator, collateralAsset, debtor, debtToCover)
}

func (e *Engine) liquidate(liquidator crypto.Address, collateralAsset string, debtor crypto.Address, debtToCover *uint256.Int) error {
	if e.state == nil {
		return errNilState
	}
	if debtToCover == nil || debtToCover.IsZero() {
		return ErrInvalidAmount
	}
	symbol := strings.ToUpper(strings.TrimSpace(collateralAsset))
	feed, err := e.registry.FeedFor(symbol)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrAssetNotApproved, symbol)
	}
	position, err := e.loadPosition(debtor)
	if err != nil {
		return err
	}
	startingFactor, err := e.positionHealthFactor(position)
	if err != nil {
		return err
	}
	if !startingFactor.Lt(e.params.MinHealthFactor) {
		return ErrHealthFactorOk
	}

	seized, err := e.prices.TokenAmountFromUSDValue(feed, debtToCover)
	if err != nil {
		return err
	}
	bonus, err := bonusShare(seized, e.params)
	if err != nil {
		return err
	}
	totalSeizure, err := checkedAdd(seized, bonus)
	if err != nil {
		return err
	}

	ledger, _, err := e.redeemFromPosition(position, symbol, totalSeizure, liquidator)
	if err != nil {
		return err
	}
	unwindSeizure := func() {
		_ = ledger.Transfer(liquidator, e.custody, totalSeizure)
	}

	if err := e.burnFromPosition(position, debtToCover, liquidator); err != nil {
		unwindSeizure()
		return err
	}
	unwindBurn := func() {
		_ = e.stable.Mint(liquidator, debtToCover)
	}

	endingFactor, err := e.positionHealthFactor(position)
	if err == nil && !startingFactor.Lt(endingFactor) {
		err = fmt.Errorf("%w: %s -> %s", ErrHealthFactorNotImproved, startingFactor.Dec(), endingFactor.Dec())
	}
	if err != nil {
		unwindBurn()
		unwindSeizure()
		return err
	}
	if err := e.state.PutPosition(position); err != nil {
		unwindBurn()
		unwindSeizure()
		return err
	}

	e.emitter.Emit(events.Liquidated{
		Liquidator:        liquidator,
		Debtor:            debtor,
		Asset:             symbol,
		DebtCovered:       new(uint256.Int).Set(debtToCover),
		CollateralSeized:  totalSeizure,
		HealthFactorAfter: endingFactor,
	})
	return nil
}

// DepositAndMint deposits collateral and mints stable units as one
// serialized operation.
func (e *Engine) DepositAndMint(account crypto.Address, asset string, depositAmount, mintAmount *uint256.Int) error {
	if err := e.guard.enter(); err != nil {
		return err
	}
	defer e.guard.exit()
	if err := e.depositCollateral(account, asset, depositAmount); err != nil {
		return err
	}
	return e.mint(account, mintAmount)
}

// RedeemForStable burns debt and redeems collateral as one serialized
// operation, letting an account exit without tripping the interim health
// check a redeem-then-burn ordering would hit.
func (e *Engine) RedeemForStable(account crypto.Address, asset string, redeemAmount, burnAmount *uint256.Int) error {
	if err := e.guard.enter(); err != nil {
		return err
	}
	defer e.guard.exit()
	position, err := e.loadPosition(account)
	if err != nil {
		return err
	}
	if err := e.burnFromPosition(position, burnAmount, account); err != nil {
		return err
	}
	unwindBurn := func() {
		_ = e.stable.Mint(account, burnAmount)
	}
	ledger, symbol, err := e.redeemFromPosition(position, asset, redeemAmount, account)
	if err != nil {
		unwindBurn()
		return err
	}
	factor, err := e.positionHealthFactor(position)
	if err == nil && factor.Lt(e.params.MinHealthFactor) && !position.Debt.IsZero() {
		err = &HealthFactorError{Value: factor}
	}
	if err == nil {
		err = e.state.PutPosition(position)
	}
	if err != nil {
		_ = ledger.Transfer(account, e.custody, redeemAmount)
		unwindBurn()
		return err
	}
	e.emitter.Emit(events.StableBurned{Account: account, Payer: account, Amount: new(uint256.Int).Set(burnAmount)})
	e.emitter.Emit(events.CollateralRedeemed{From: account, To: account, Asset: symbol, Amount: new(uint256.Int).Set(redeemAmount)})
	return nil
}

// --- Read-only query surface ---

// HealthFactor reports the account's current health factor.
func (e *Engine) HealthFactor(account crypto.Address) (*uint256.Int, error) {
	position, err := e.loadPosition(account)
	if err != nil {
		return nil, err
	}
	return e.positionHealthFactor(position)
}

// AccountInformation reports the account's minted debt and total collateral
// value in canonical USD fixed point.
func (e *Engine) AccountInformation(account crypto.Address) (debt, collateralValueUSD *uint256.Int, err error) {
	position, err := e.loadPosition(account)
	if err != nil {
		return nil, nil, err
	}
	value, err := e.collateralValueUSD(position)
	if err != nil {
		return nil, nil, err
	}
	return new(uint256.Int).Set(position.Debt), value, nil
}

// CollateralBalance reports the account's ledger balance for one asset.
func (e *Engine) CollateralBalance(account crypto.Address, asset string) (*uint256.Int, error) {
	symbol := strings.ToUpper(strings.TrimSpace(asset))
	if !e.registry.IsApproved(symbol) {
		return nil, fmt.Errorf("%w: %s", ErrAssetNotApproved, symbol)
	}
	position, err := e.loadPosition(account)
	if err != nil {
		return nil, err
	}
	return position.CollateralOf(symbol), nil
}

// USDValue converts a collateral amount into canonical USD fixed point.
func (e *Engine) USDValue(asset string, amount *uint256.Int) (*uint256.Int, error) {
	feed, err := e.registry.FeedFor(asset)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrAssetNotApproved, asset)
	}
	return e.prices.USDValue(feed, amount)
}

// TokenAmountFromUSDValue converts a canonical USD value into a collateral
// amount at the current validated price.
func (e *Engine) TokenAmountFromUSDValue(asset string, usdValue *uint256.Int) (*uint256.Int, error) {
	feed, err := e.registry.FeedFor(asset)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrAssetNotApproved, asset)
	}
	return e.prices.TokenAmountFromUSDValue(feed, usdValue)
}

// --- Internals ---

func (e *Engine) collateralLedger(symbol string) (token.FungibleAsset, error) {
	if !e.registry.IsApproved(symbol) {
		return nil, fmt.Errorf("%w: %s", ErrAssetNotApproved, symbol)
	}
	ledger, ok := e.collateral[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAssetNotWired, symbol)
	}
	return ledger, nil
}

// loadPosition returns a mutable clone of the stored position, or a fresh
// zero-value position when the account has never deposited.
func (e *Engine) loadPosition(account crypto.Address) (*Position, error) {
	if e.state == nil {
		return nil, errNilState
	}
	stored, err := e.state.GetPosition(account)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return &Position{
			Address:    account,
			Collateral: make(map[string]*uint256.Int),
			Debt:       uint256.NewInt(0),
		}, nil
	}
	clone := stored.Clone()
	if clone.Collateral == nil {
		clone.Collateral = make(map[string]*uint256.Int)
	}
	if clone.Debt == nil {
		clone.Debt = uint256.NewInt(0)
	}
	return clone, nil
}

// collateralValueUSD sums the USD value of every collateral balance, taking
// fresh validated prices for each asset in registry order.
func (e *Engine) collateralValueUSD(position *Position) (*uint256.Int, error) {
	total := uint256.NewInt(0)
	for _, symbol := range e.registry.Assets() {
		amount, ok := position.Collateral[symbol]
		if !ok || amount == nil || amount.IsZero() {
			continue
		}
		feed, err := e.registry.FeedFor(symbol)
		if err != nil {
			return nil, err
		}
		value, err := e.prices.USDValue(feed, amount)
		if err != nil {
			return nil, err
		}
		total, err = checkedAdd(total, value)
		if err != nil {
			return nil, err
		}
	}
	return total, nil
}

func (e *Engine) positionHealthFactor(position *Position) (*uint256.Int, error) {
	collateralValue, err := e.collateralValueUSD(position)
	if err != nil {
		return nil, err
	}
	return healthFactorFrom(position.Debt, collateralValue, e.params)
}
