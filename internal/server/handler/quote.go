package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/polyprop/internal/domain"
	"github.com/alanyoungcy/polyprop/internal/service"
)

// QuoteService defines the methods that the quote handler requires.
type QuoteService interface {
	Quote(ctx context.Context, req service.QuoteRequest) (service.Quote, error)
	Depth(ctx context.Context, instrumentID string) (domain.DepthSnapshot, string, error)
}

// QuoteHandler serves the Liquidity Guard endpoints.
type QuoteHandler struct {
	quotes QuoteService
	logger *slog.Logger
}

// NewQuoteHandler creates a QuoteHandler.
func NewQuoteHandler(quotes QuoteService, logger *slog.Logger) *QuoteHandler {
	return &QuoteHandler{quotes: quotes, logger: logHandler(logger, "quote")}
}

// Quote estimates a fill against current depth.
// POST /api/quotes
func (h *QuoteHandler) Quote(w http.ResponseWriter, r *http.Request) {
	var req service.QuoteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	q, err := h.quotes.Quote(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, h.logger, "quote", err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

type depthResponse struct {
	Snapshot domain.DepthSnapshot `json:"snapshot"`
	Source   string               `json:"source"`
	AgeMS    int64                `json:"age_ms"`
}

// Depth returns the normalised book for an instrument.
// GET /api/depth/{instrument}
func (h *QuoteHandler) Depth(w http.ResponseWriter, r *http.Request) {
	snap, from, err := h.quotes.Depth(r.Context(), r.PathValue("instrument"))
	if err != nil {
		writeServiceError(w, r, h.logger, "depth", err)
		return
	}
	writeJSON(w, http.StatusOK, depthResponse{
		Snapshot: snap,
		Source:   from,
		AgeMS:    snap.Age(time.Now()).Milliseconds(),
	})
}
