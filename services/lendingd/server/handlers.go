package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/holiman/uint256"

	"lendcore/custody"
	"lendcore/lending"
	"lendcore/observability"
)

type amountRequest struct {
	Asset   string `json:"asset"`
	Account string `json:"account"`
	Amount  string `json:"amount"`
	// Collateral opts the asset in (supply) or out (withdraw) alongside the
	// balance change.
	Collateral bool `json:"collateral,omitempty"`
}

type collateralRequest struct {
	Asset   string `json:"asset"`
	Account string `json:"account"`
}

type liquidateRequest struct {
	BorrowedAsset   string `json:"borrowedAsset"`
	CollateralAsset string `json:"collateralAsset"`
	Liquidator      string `json:"liquidator"`
	Borrower        string `json:"borrower"`
	RepayAmount     string `json:"repayAmount"`
}

type configRequest struct {
	Caller       string `json:"caller"`
	Asset        string `json:"asset"`
	LendFactor   string `json:"lendFactor"`
	BorrowFactor string `json:"borrowFactor"`
}

type rateModelRequest struct {
	Caller       string `json:"caller"`
	Asset        string `json:"asset"`
	BaseRate     string `json:"baseRate"`
	Slope1       string `json:"slope1"`
	Slope2       string `json:"slope2"`
	Kink         string `json:"kink"`
	UnitsPerYear uint64 `json:"unitsPerYear"`
}

type priceRequest struct {
	Asset string `json:"asset"`
	Price string `json:"price"`
}

type sharesResponse struct {
	Shares *uint256.Int `json:"shares"`
}

type seizedResponse struct {
	Seized *uint256.Int `json:"seized"`
}

type healthResponse struct {
	HealthFactor  *uint256.Int     `json:"healthFactor"`
	MaxBorrowable *uint256.Int     `json:"maxBorrowable"`
	Liquidatable  bool             `json:"liquidatable"`
	Collateral    []common.Address `json:"collateral"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleSupply(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	asset, account, amount, ok := s.decodeAmountRequest(w, r, &req)
	if !ok {
		return
	}
	shares, err := s.ledger.Deposit(asset, account, amount, req.Collateral)
	if err != nil {
		s.writeLedgerError(w, r, "supply", err)
		return
	}
	s.logger.Info("supply", "asset", asset.Hex(), "account", account.Hex(), "amount", amount.Dec())
	writeJSON(w, http.StatusOK, sharesResponse{Shares: shares})
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	asset, account, amount, ok := s.decodeAmountRequest(w, r, &req)
	if !ok {
		return
	}
	shares, err := s.ledger.Withdraw(asset, account, amount, req.Collateral)
	if err != nil {
		s.writeLedgerError(w, r, "withdraw", err)
		return
	}
	s.logger.Info("withdraw", "asset", asset.Hex(), "account", account.Hex(), "amount", amount.Dec())
	writeJSON(w, http.StatusOK, sharesResponse{Shares: shares})
}

func (s *Server) handleBorrow(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	asset, account, amount, ok := s.decodeAmountRequest(w, r, &req)
	if !ok {
		return
	}
	shares, err := s.ledger.Borrow(asset, account, amount)
	if err != nil {
		s.writeLedgerError(w, r, "borrow", err)
		return
	}
	s.logger.Info("borrow", "asset", asset.Hex(), "account", account.Hex(), "amount", amount.Dec())
	writeJSON(w, http.StatusOK, sharesResponse{Shares: shares})
}

func (s *Server) handleRepay(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	asset, account, amount, ok := s.decodeAmountRequest(w, r, &req)
	if !ok {
		return
	}
	shares, err := s.ledger.Repay(asset, account, amount)
	if err != nil {
		s.writeLedgerError(w, r, "repay", err)
		return
	}
	s.logger.Info("repay", "asset", asset.Hex(), "account", account.Hex(), "amount", amount.Dec())
	writeJSON(w, http.StatusOK, sharesResponse{Shares: shares})
}

func (s *Server) handleEnableCollateral(w http.ResponseWriter, r *http.Request) {
	s.handleCollateral(w, r, s.ledger.EnableCollateral)
}

func (s *Server) handleDisableCollateral(w http.ResponseWriter, r *http.Request) {
	s.handleCollateral(w, r, s.ledger.DisableCollateral)
}

func (s *Server) handleCollateral(w http.ResponseWriter, r *http.Request, op func(user, asset common.Address) error) {
	var req collateralRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	asset, ok := parseAddress(w, "asset", req.Asset)
	if !ok {
		return
	}
	account, ok := parseAddress(w, "account", req.Account)
	if !ok {
		return
	}
	if err := op(account, asset); err != nil {
		s.writeLedgerError(w, r, "collateral", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]common.Address{"collateral": s.ledger.CollateralOf(account)})
}

func (s *Server) handleLiquidate(w http.ResponseWriter, r *http.Request) {
	var req liquidateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	borrowed, ok := parseAddress(w, "borrowedAsset", req.BorrowedAsset)
	if !ok {
		return
	}
	collateral, ok := parseAddress(w, "collateralAsset", req.CollateralAsset)
	if !ok {
		return
	}
	liquidator, ok := parseAddress(w, "liquidator", req.Liquidator)
	if !ok {
		return
	}
	borrower, ok := parseAddress(w, "borrower", req.Borrower)
	if !ok {
		return
	}
	amount, ok := parseAmountField(w, "repayAmount", req.RepayAmount)
	if !ok {
		return
	}
	seized, err := s.ledger.LiquidateUser(borrowed, collateral, liquidator, borrower, amount)
	if err != nil {
		s.writeLedgerError(w, r, "liquidate", err)
		return
	}
	observability.Events().RecordLiquidation(borrowed.Hex(), collateral.Hex())
	s.logger.Info("liquidate",
		"borrowed", borrowed.Hex(),
		"collateral", collateral.Hex(),
		"borrower", borrower.Hex(),
		"repaid", amount.Dec(),
		"seized", seized.Dec(),
	)
	writeJSON(w, http.StatusOK, seizedResponse{Seized: seized})
}

func (s *Server) handleMarkets(w http.ResponseWriter, _ *http.Request) {
	assets := s.ledger.Assets()
	snapshots := make([]lending.MarketSnapshot, 0, len(assets))
	for _, asset := range assets {
		snapshot, err := s.ledger.Snapshot(asset)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		snapshots = append(snapshots, snapshot)
	}
	writeJSON(w, http.StatusOK, snapshots)
}

func (s *Server) handleMarket(w http.ResponseWriter, r *http.Request) {
	asset, ok := parseAddress(w, "asset", chi.URLParam(r, "asset"))
	if !ok {
		return
	}
	snapshot, err := s.ledger.Snapshot(asset)
	if err != nil {
		s.writeLedgerError(w, r, "market", err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	account, ok := parseAddress(w, "user", chi.URLParam(r, "user"))
	if !ok {
		return
	}
	positions := make(map[string]lending.Position)
	for _, asset := range s.ledger.Assets() {
		position, err := s.ledger.PositionOf(asset, account)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		positions[asset.Hex()] = position
	}
	writeJSON(w, http.StatusOK, positions)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	account, ok := parseAddress(w, "user", chi.URLParam(r, "user"))
	if !ok {
		return
	}
	health, err := s.ledger.HealthFactor(account)
	if err != nil {
		s.writeLedgerError(w, r, "health", err)
		return
	}
	capacity, err := s.ledger.MaxBorrowable(account)
	if err != nil {
		s.writeLedgerError(w, r, "health", err)
		return
	}
	liquidatable, err := s.ledger.UserLiquidatable(account)
	if err != nil {
		s.writeLedgerError(w, r, "health", err)
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{
		HealthFactor:  health,
		MaxBorrowable: capacity,
		Liquidatable:  liquidatable,
		Collateral:    s.ledger.CollateralOf(account),
	})
}

func (s *Server) handleUpdateConfiguration(w http.ResponseWriter, r *http.Request) {
	var req configRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	caller, ok := parseAddress(w, "caller", req.Caller)
	if !ok {
		return
	}
	asset, ok := parseAddress(w, "asset", req.Asset)
	if !ok {
		return
	}
	lendFactor, ok := parseAmountField(w, "lendFactor", req.LendFactor)
	if !ok {
		return
	}
	borrowFactor, ok := parseAmountField(w, "borrowFactor", req.BorrowFactor)
	if !ok {
		return
	}
	cfg := lending.Configuration{LendFactor: lendFactor, BorrowFactor: borrowFactor}
	if err := s.ledger.UpdateConfiguration(caller, asset, cfg); err != nil {
		s.writeLedgerError(w, r, "admin_config", err)
		return
	}
	s.logger.Info("configuration updated", "asset", asset.Hex(), "caller", caller.Hex())
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (s *Server) handleSetRateModel(w http.ResponseWriter, r *http.Request) {
	var req rateModelRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	caller, ok := parseAddress(w, "caller", req.Caller)
	if !ok {
		return
	}
	asset, ok := parseAddress(w, "asset", req.Asset)
	if !ok {
		return
	}
	baseRate, ok := parseAmountField(w, "baseRate", req.BaseRate)
	if !ok {
		return
	}
	slope1, ok := parseAmountField(w, "slope1", req.Slope1)
	if !ok {
		return
	}
	slope2, ok := parseAmountField(w, "slope2", req.Slope2)
	if !ok {
		return
	}
	kink, ok := parseAmountField(w, "kink", req.Kink)
	if !ok {
		return
	}
	unitsPerYear := req.UnitsPerYear
	if unitsPerYear == 0 {
		unitsPerYear = 31_536_000
	}
	model := lending.NewKinkedRateModel(baseRate, slope1, slope2, kink, unitsPerYear)
	if err := s.ledger.SetInterestRateModel(caller, asset, model); err != nil {
		s.writeLedgerError(w, r, "admin_model", err)
		return
	}
	s.logger.Info("rate model updated", "asset", asset.Hex(), "caller", caller.Hex())
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (s *Server) handleSetPrice(w http.ResponseWriter, r *http.Request) {
	var req priceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	asset, ok := parseAddress(w, "asset", req.Asset)
	if !ok {
		return
	}
	price, ok := parseAmountField(w, "price", req.Price)
	if !ok {
		return
	}
	s.feed.SetUnderlyingPrice(asset, price)
	s.logger.Info("price updated", "asset", asset.Hex(), "price", price.Dec())
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (s *Server) decodeAmountRequest(w http.ResponseWriter, r *http.Request, req *amountRequest) (common.Address, common.Address, *uint256.Int, bool) {
	if !decodeJSON(w, r, req) {
		return common.Address{}, common.Address{}, nil, false
	}
	asset, ok := parseAddress(w, "asset", req.Asset)
	if !ok {
		return common.Address{}, common.Address{}, nil, false
	}
	account, ok := parseAddress(w, "account", req.Account)
	if !ok {
		return common.Address{}, common.Address{}, nil, false
	}
	amount, ok := parseAmountField(w, "amount", req.Amount)
	if !ok {
		return common.Address{}, common.Address{}, nil, false
	}
	return asset, account, amount, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, into any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(into); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

func parseAddress(w http.ResponseWriter, field, raw string) (common.Address, bool) {
	if !common.IsHexAddress(raw) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("%s is not a hex address", field))
		return common.Address{}, false
	}
	return common.HexToAddress(raw), true
}

func parseAmountField(w http.ResponseWriter, field, raw string) (*uint256.Int, bool) {
	amount, err := uint256.FromDecimal(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("%s is not an unsigned decimal", field))
		return nil, false
	}
	return amount, true
}

func (s *Server) writeLedgerError(w http.ResponseWriter, r *http.Request, operation string, err error) {
	status := statusForError(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("operation failed", "operation", operation, "path", r.URL.Path, "error", err)
	} else {
		s.logger.Info("operation rejected", "operation", operation, "path", r.URL.Path, "error", err)
	}
	writeError(w, status, err.Error())
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, lending.ErrAssetNotConfigured):
		return http.StatusNotFound
	case errors.Is(err, lending.ErrInvalidAmount), errors.Is(err, custody.ErrInvalidAmount):
		return http.StatusBadRequest
	case errors.Is(err, lending.ErrNotAuthorized):
		return http.StatusForbidden
	case errors.Is(err, lending.ErrInsufficientBalance),
		errors.Is(err, lending.ErrInsufficientDebt),
		errors.Is(err, lending.ErrHealthFactorTooLow),
		errors.Is(err, lending.ErrNotLiquidatable),
		errors.Is(err, lending.ErrLiquidationTooLarge),
		errors.Is(err, lending.ErrFlashBorrowInProgress),
		errors.Is(err, lending.ErrAlreadyConfigured),
		errors.Is(err, lending.ErrRateModelNotSet),
		errors.Is(err, custody.ErrInsufficientFunds):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
