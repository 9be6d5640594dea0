package rpc

import (
	"encoding/json"
	"fmt"

	"github.com/holiman/uint256"

	"stablemint/crypto"
)

type handlerFunc func(req *RPCRequest) (interface{}, error)

var mutatingMethods = map[string]bool{
	"engine_depositCollateral": true,
	"engine_mintStable":        true,
	"engine_redeemCollateral":  true,
	"engine_burnStable":        true,
	"engine_liquidate":         true,
	"engine_depositAndMint":    true,
	"engine_redeemForStable":   true,
}

func (s *Server) methods() map[string]handlerFunc {
	return map[string]handlerFunc{
		"engine_depositCollateral": s.handleDepositCollateral,
		"engine_mintStable":        s.handleMintStable,
		"engine_redeemCollateral":  s.handleRedeemCollateral,
		"engine_burnStable":        s.handleBurnStable,
		"engine_liquidate":         s.handleLiquidate,
		"engine_depositAndMint":    s.handleDepositAndMint,
		"engine_redeemForStable":   s.handleRedeemForStable,

		"engine_getHealthFactor":       s.handleGetHealthFactor,
		"engine_getAccountInformation": s.handleGetAccountInformation,
		"engine_getCollateralBalance":  s.handleGetCollateralBalance,
		"engine_getUsdValue":           s.handleGetUsdValue,
		"engine_getTokenAmountFromUsd": s.handleGetTokenAmountFromUsd,
		"engine_listCollateralAssets":  s.handleListCollateralAssets,
		"engine_getProtocolParameters": s.handleGetProtocolParameters,
	}
}

type collateralActionParams struct {
	Account string `json:"account"`
	Asset   string `json:"asset"`
	Amount  string `json:"amount"`
}

type amountParams struct {
	Account string `json:"account"`
	Amount  string `json:"amount"`
}

type liquidateParams struct {
	Liquidator  string `json:"liquidator"`
	Asset       string `json:"asset"`
	Debtor      string `json:"debtor"`
	DebtToCover string `json:"debtToCover"`
}

type depositAndMintParams struct {
	Account       string `json:"account"`
	Asset         string `json:"asset"`
	DepositAmount string `json:"depositAmount"`
	MintAmount    string `json:"mintAmount"`
}

type redeemForStableParams struct {
	Account      string `json:"account"`
	Asset        string `json:"asset"`
	RedeemAmount string `json:"redeemAmount"`
	BurnAmount   string `json:"burnAmount"`
}

type accountParams struct {
	Account string `json:"account"`
}

type conversionParams struct {
	Asset  string `json:"asset"`
	Amount string `json:"amount"`
}

type accountInfoResult struct {
	Debt               string `json:"debt"`
	CollateralValueUsd string `json:"collateralValueUsd"`
}

type protocolParametersResult struct {
	LiquidationThreshold uint64 `json:"liquidationThreshold"`
	LiquidationBonus     uint64 `json:"liquidationBonus"`
	LiquidationPrecision uint64 `json:"liquidationPrecision"`
	MinHealthFactor      string `json:"minHealthFactor"`
}

func decodeParams(req *RPCRequest, out interface{}) error {
	if len(req.Params) != 1 {
		return fmt.Errorf("expected exactly one parameter object, got %d", len(req.Params))
	}
	return json.Unmarshal(req.Params[0], out)
}

func parseAddress(value string) (crypto.Address, error) {
	addr, err := crypto.DecodeAddress(value)
	if err != nil {
		return crypto.Address{}, fmt.Errorf("invalid account address: %w", err)
	}
	return addr, nil
}

func parseAmount(value string) (*uint256.Int, error) {
	amount, err := uint256.FromDecimal(value)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", value, err)
	}
	return amount, nil
}

func (s *Server) handleDepositCollateral(req *RPCRequest) (interface{}, error) {
	var params collateralActionParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	account, err := parseAddress(params.Account)
	if err != nil {
		return nil, err
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		return nil, err
	}
	if err := s.engine.DepositCollateral(account, params.Asset, amount); err != nil {
		return nil, err
	}
	return map[string]bool{"ok": true}, nil
}

func (s *Server) handleMintStable(req *RPCRequest) (interface{}, error) {
	var params amountParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	account, err := parseAddress(params.Account)
	if err != nil {
		return nil, err
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		return nil, err
	}
	if err := s.engine.Mint(account, amount); err != nil {
		return nil, err
	}
	return map[string]bool{"ok": true}, nil
}

func (s *Server) handleRedeemCollateral(req *RPCRequest) (interface{}, error) {
	var params collateralActionParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	account, err := parseAddress(params.Account)
	if err != nil {
		return nil, err
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		return nil, err
	}
	if err := s.engine.RedeemCollateral(account, params.Asset, amount); err != nil {
		return nil, err
	}
	return map[string]bool{"ok": true}, nil
}

func (s *Server) handleBurnStable(req *RPCRequest) (interface{}, error) {
	var params amountParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	account, err := parseAddress(params.Account)
	if err != nil {
		return nil, err
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		return nil, err
	}
	if err := s.engine.Burn(account, amount); err != nil {
		return nil, err
	}
	return map[string]bool{"ok": true}, nil
}

func (s *Server) handleLiquidate(req *RPCRequest) (interface{}, error) {
	var params liquidateParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	liquidator, err := parseAddress(params.Liquidator)
	if err != nil {
		return nil, err
	}
	debtor, err := parseAddress(params.Debtor)
	if err != nil {
		return nil, err
	}
	debtToCover, err := parseAmount(params.DebtToCover)
	if err != nil {
		return nil, err
	}
	if err := s.engine.Liquidate(liquidator, params.Asset, debtor, debtToCover); err != nil {
		return nil, err
	}
	return map[string]bool{"ok": true}, nil
}

func (s *Server) handleDepositAndMint(req *RPCRequest) (interface{}, error) {
	var params depositAndMintParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	account, err := parseAddress(params.Account)
	if err != nil {
		return nil, err
	}
	depositAmount, err := parseAmount(params.DepositAmount)
	if err != nil {
		return nil, err
	}
	mintAmount, err := parseAmount(params.MintAmount)
	if err != nil {
		return nil, err
	}
	if err := s.engine.DepositAndMint(account, params.Asset, depositAmount, mintAmount); err != nil {
		return nil, err
	}
	return map[string]bool{"ok": true}, nil
}

func (s *Server) handleRedeemForStable(req *RPCRequest) (interface{}, error) {
	var params redeemForStableParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	account, err := parseAddress(params.Account)
	if err != nil {
		return nil, err
	}
	redeemAmount, err := parseAmount(params.RedeemAmount)
	if err != nil {
		return nil, err
	}
	burnAmount, err := parseAmount(params.BurnAmount)
	if err != nil {
		return nil, err
	}
	if err := s.engine.RedeemForStable(account, params.Asset, redeemAmount, burnAmount); err != nil {
		return nil, err
	}
	return map[string]bool{"ok": true}, nil
}

func (s *Server) handleGetHealthFactor(req *RPCRequest) (interface{}, error) {
	var params accountParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	account, err := parseAddress(params.Account)
	if err != nil {
		return nil, err
	}
	factor, err := s.engine.HealthFactor(account)
	if err != nil {
		return nil, err
	}
	return map[string]string{"healthFactor": factor.Dec()}, nil
}

func (s *Server) handleGetAccountInformation(req *RPCRequest) (interface{}, error) {
	var params accountParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	account, err := parseAddress(params.Account)
	if err != nil {
		return nil, err
	}
	debt, collateralValue, err := s.engine.AccountInformation(account)
	if err != nil {
		return nil, err
	}
	return accountInfoResult{Debt: debt.Dec(), CollateralValueUsd: collateralValue.Dec()}, nil
}

func (s *Server) handleGetCollateralBalance(req *RPCRequest) (interface{}, error) {
	var params struct {
		Account string `json:"account"`
		Asset   string `json:"asset"`
	}
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	account, err := parseAddress(params.Account)
	if err != nil {
		return nil, err
	}
	balance, err := s.engine.CollateralBalance(account, params.Asset)
	if err != nil {
		return nil, err
	}
	return map[string]string{"balance": balance.Dec()}, nil
}

func (s *Server) handleGetUsdValue(req *RPCRequest) (interface{}, error) {
	var params conversionParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		return nil, err
	}
	value, err := s.engine.USDValue(params.Asset, amount)
	if err != nil {
		return nil, err
	}
	return map[string]string{"usdValue": value.Dec()}, nil
}

func (s *Server) handleGetTokenAmountFromUsd(req *RPCRequest) (interface{}, error) {
	var params conversionParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	usdValue, err := parseAmount(params.Amount)
	if err != nil {
		return nil, err
	}
	amount, err := s.engine.TokenAmountFromUSDValue(params.Asset, usdValue)
	if err != nil {
		return nil, err
	}
	return map[string]string{"tokenAmount": amount.Dec()}, nil
}

func (s *Server) handleListCollateralAssets(_ *RPCRequest) (interface{}, error) {
	return map[string][]string{"assets": s.engine.CollateralAssets()}, nil
}

func (s *Server) handleGetProtocolParameters(_ *RPCRequest) (interface{}, error) {
	params := s.engine.Params()
	return protocolParametersResult{
		LiquidationThreshold: params.LiquidationThreshold,
		LiquidationBonus:     params.LiquidationBonus,
		LiquidationPrecision: params.LiquidationPrecision,
		MinHealthFactor:      params.MinHealthFactor.Dec(),
	}, nil
}
