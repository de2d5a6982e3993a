package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/polyprop/internal/domain"
	"github.com/alanyoungcy/polyprop/internal/service"
)

// PayoutService defines the methods that the payout handler requires.
type PayoutService interface {
	Preview(ctx context.Context, accountID string) (domain.PayoutCalculation, error)
	Request(ctx context.Context, in service.PayoutRequestInput) (domain.PayoutRequest, error)
	List(ctx context.Context, accountID string) ([]domain.PayoutRequest, error)
}

// PayoutHandler serves payout endpoints.
type PayoutHandler struct {
	payouts PayoutService
	logger  *slog.Logger
}

// NewPayoutHandler creates a PayoutHandler.
func NewPayoutHandler(payouts PayoutService, logger *slog.Logger) *PayoutHandler {
	return &PayoutHandler{payouts: payouts, logger: logHandler(logger, "payout")}
}

// Preview returns the payout the account would receive now.
// GET /api/accounts/{id}/payouts/preview
func (h *PayoutHandler) Preview(w http.ResponseWriter, r *http.Request) {
	calc, err := h.payouts.Preview(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, h.logger, "payout preview", err)
		return
	}
	writeJSON(w, http.StatusOK, calc)
}

// Request records a payout request.
// POST /api/accounts/{id}/payouts
func (h *PayoutHandler) Request(w http.ResponseWriter, r *http.Request) {
	var in service.PayoutRequestInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	in.AccountID = r.PathValue("id")

	req, err := h.payouts.Request(r.Context(), in)
	if err != nil {
		writeServiceError(w, r, h.logger, "payout request", err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

type listPayoutsResponse struct {
	Payouts []domain.PayoutRequest `json:"payouts"`
}

// List returns payout history.
// GET /api/accounts/{id}/payouts
func (h *PayoutHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.payouts.List(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, h.logger, "list payouts", err)
		return
	}
	if list == nil {
		list = []domain.PayoutRequest{}
	}
	writeJSON(w, http.StatusOK, listPayoutsResponse{Payouts: list})
}
