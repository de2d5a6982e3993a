package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/alanyoungcy/polyprop/internal/domain"
	"github.com/alanyoungcy/polyprop/internal/risk"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// writeJSON marshals v as JSON and writes it to the response with the given
// HTTP status code. If marshaling fails, it falls back to a plain-text 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error  string `json:"error"`
	Code   string `json:"code,omitempty"`
	Detail string `json:"detail,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// errorStatuses maps sentinel errors to a status and a stable code. Order
// matters: the first match wins.
var errorStatuses = []struct {
	err    error
	status int
	code   string
}{
	{domain.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
	{domain.ErrAlreadyExists, http.StatusConflict, "ALREADY_EXISTS"},
	{domain.ErrInvalidQuote, http.StatusBadRequest, "INVALID_QUOTE"},
	{domain.ErrInvalidTrade, http.StatusBadRequest, "INVALID_TRADE"},
	{domain.ErrInvalidAccount, http.StatusBadRequest, "INVALID_ACCOUNT"},
	{domain.ErrInvalidWallet, http.StatusBadRequest, "INVALID_WALLET"},
	{domain.ErrInvalidDepth, http.StatusBadGateway, "INVALID_DEPTH"},
	{domain.ErrAccountBreached, http.StatusConflict, "ACCOUNT_BREACHED"},
	{domain.ErrAccountFrozen, http.StatusConflict, "ACCOUNT_FROZEN"},
	{domain.ErrInvalidTransition, http.StatusConflict, "INVALID_TRANSITION"},
	{domain.ErrStaleAccount, http.StatusConflict, "STALE_ACCOUNT"},
	{domain.ErrLockHeld, http.StatusConflict, "ACCOUNT_BUSY"},
	{domain.ErrPayoutIneligible, http.StatusUnprocessableEntity, "PAYOUT_INELIGIBLE"},
	{domain.ErrMarketNotQualified, http.StatusUnprocessableEntity, "MARKET_NOT_QUALIFIED"},
	{domain.ErrIndeterminateConsistency, http.StatusUnprocessableEntity, "CONSISTENCY_INDETERMINATE"},
	{domain.ErrRateLimited, http.StatusTooManyRequests, "RATE_LIMITED"},
}

// writeServiceError maps a service error to a response. Unknown errors are
// logged and reported as a generic 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, op string, err error) {
	for _, m := range errorStatuses {
		if !errors.Is(err, m.err) {
			continue
		}
		body := errorBody{Error: m.err.Error(), Code: m.code}
		var pe *risk.PayoutIneligibleError
		var be *risk.BreachedAccountError
		switch {
		case errors.As(err, &pe):
			body.Code = string(pe.Reason)
			body.Detail = pe.Detail
		case errors.As(err, &be):
			body.Detail = be.Error()
		}
		writeJSON(w, m.status, body)
		return
	}

	logger.ErrorContext(r.Context(), "handler: "+op+" failed", slog.String("error", err.Error()))
	writeError(w, http.StatusInternalServerError, op+" failed")
}

// decodeJSON reads a bounded JSON body into v, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// parseListOpts extracts pagination and time-range parameters from the
// query string. Defaults: limit=50 (max 500), offset=0.
func parseListOpts(r *http.Request) (domain.ListOpts, error) {
	q := r.URL.Query()

	limit := 50
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > 500 {
		limit = 500
	}

	offset := 0
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	opts := domain.ListOpts{Limit: limit, Offset: offset}
	for name, dst := range map[string]**time.Time{"since": &opts.Since, "until": &opts.Until} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return domain.ListOpts{}, fmt.Errorf("%s must be RFC3339", name)
		}
		*dst = &t
	}
	return opts, nil
}

func logHandler(logger *slog.Logger, handler string) *slog.Logger {
	return logger.With(slog.String("handler", handler))
}
