package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/polyprop/internal/domain"
	"github.com/alanyoungcy/polyprop/internal/service"
)

// AccountService defines the methods that the account handler requires.
type AccountService interface {
	Open(ctx context.Context, req service.OpenRequest) (domain.Account, error)
	Summary(ctx context.Context, id string) (service.AccountSummary, error)
	Consistency(ctx context.Context, id string) (domain.ConsistencyResult, error)
	Settle(ctx context.Context, req service.SettleRequest) (service.SettleResult, error)
	Trades(ctx context.Context, id string, opts domain.ListOpts) ([]domain.Trade, error)
	Snapshots(ctx context.Context, id string, opts domain.ListOpts) ([]domain.EquitySnapshot, error)
	Violations(ctx context.Context, id string) ([]domain.RuleViolation, error)
	BeginStage2(ctx context.Context, id string) (domain.Account, error)
	PromotePartner(ctx context.Context, id string, kycVerified bool) (domain.Account, error)
}

// AccountHandler serves the evaluation account endpoints.
type AccountHandler struct {
	accounts AccountService
	logger   *slog.Logger
}

// NewAccountHandler creates an AccountHandler.
func NewAccountHandler(accounts AccountService, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{accounts: accounts, logger: logHandler(logger, "account")}
}

// Open creates an evaluation account.
// POST /api/accounts
func (h *AccountHandler) Open(w http.ResponseWriter, r *http.Request) {
	var req service.OpenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	acct, err := h.accounts.Open(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, h.logger, "open account", err)
		return
	}
	writeJSON(w, http.StatusCreated, acct)
}

// Get returns the dashboard summary of an account.
// GET /api/accounts/{id}
func (h *AccountHandler) Get(w http.ResponseWriter, r *http.Request) {
	sum, err := h.accounts.Summary(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, h.logger, "get account", err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// Consistency reports profit concentration across events.
// GET /api/accounts/{id}/consistency
func (h *AccountHandler) Consistency(w http.ResponseWriter, r *http.Request) {
	res, err := h.accounts.Consistency(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, h.logger, "consistency", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Settle applies a settled trade to the account.
// POST /api/accounts/{id}/trades
func (h *AccountHandler) Settle(w http.ResponseWriter, r *http.Request) {
	var req service.SettleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.AccountID = r.PathValue("id")

	res, err := h.accounts.Settle(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, h.logger, "settle trade", err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

type listTradesResponse struct {
	Trades []domain.Trade `json:"trades"`
}

// Trades lists the trade ledger.
// GET /api/accounts/{id}/trades?limit=50&offset=0&since=...&until=...
func (h *AccountHandler) Trades(w http.ResponseWriter, r *http.Request) {
	opts, err := parseListOpts(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	trades, err := h.accounts.Trades(r.Context(), r.PathValue("id"), opts)
	if err != nil {
		writeServiceError(w, r, h.logger, "list trades", err)
		return
	}
	if trades == nil {
		trades = []domain.Trade{}
	}
	writeJSON(w, http.StatusOK, listTradesResponse{Trades: trades})
}

type listSnapshotsResponse struct {
	Snapshots []domain.EquitySnapshot `json:"snapshots"`
}

// Snapshots lists equity history.
// GET /api/accounts/{id}/snapshots
func (h *AccountHandler) Snapshots(w http.ResponseWriter, r *http.Request) {
	opts, err := parseListOpts(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	snaps, err := h.accounts.Snapshots(r.Context(), r.PathValue("id"), opts)
	if err != nil {
		writeServiceError(w, r, h.logger, "list snapshots", err)
		return
	}
	if snaps == nil {
		snaps = []domain.EquitySnapshot{}
	}
	writeJSON(w, http.StatusOK, listSnapshotsResponse{Snapshots: snaps})
}

type listViolationsResponse struct {
	Violations []domain.RuleViolation `json:"violations"`
}

// Violations lists recorded rule violations.
// GET /api/accounts/{id}/violations
func (h *AccountHandler) Violations(w http.ResponseWriter, r *http.Request) {
	v, err := h.accounts.Violations(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, h.logger, "list violations", err)
		return
	}
	if v == nil {
		v = []domain.RuleViolation{}
	}
	writeJSON(w, http.StatusOK, listViolationsResponse{Violations: v})
}

// BeginStage2 starts Stage 2.
// POST /api/accounts/{id}/stage2
func (h *AccountHandler) BeginStage2(w http.ResponseWriter, r *http.Request) {
	acct, err := h.accounts.BeginStage2(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, h.logger, "begin stage 2", err)
		return
	}
	writeJSON(w, http.StatusOK, acct)
}

type promoteRequest struct {
	KYCVerified bool `json:"kyc_verified"`
}

// PromotePartner funds an account that passed Stage 2.
// POST /api/accounts/{id}/partner
func (h *AccountHandler) PromotePartner(w http.ResponseWriter, r *http.Request) {
	var req promoteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	acct, err := h.accounts.PromotePartner(r.Context(), r.PathValue("id"), req.KYCVerified)
	if err != nil {
		writeServiceError(w, r, h.logger, "promote partner", err)
		return
	}
	writeJSON(w, http.StatusOK, acct)
}
