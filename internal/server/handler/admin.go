package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strconv"

	"github.com/alanyoungcy/polyprop/internal/domain"
)

// AuditService defines the ledger reads behind the admin endpoints.
type AuditService interface {
	Audit(ctx context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error)
	RecentSettlements(ctx context.Context, lastID string, count int) ([]domain.StreamMessage, error)
}

// ArchiveService defines the archive reads behind the admin endpoints.
type ArchiveService interface {
	List(ctx context.Context, kind string) ([]domain.BlobInfo, error)
	Open(ctx context.Context, path string) (io.ReadCloser, error)
}

// AdminHandler serves the audit log, the settlement stream and the
// archive browser. archives may be nil when object storage is disabled.
type AdminHandler struct {
	audit    AuditService
	archives ArchiveService
	logger   *slog.Logger
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(audit AuditService, archives ArchiveService, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{audit: audit, archives: archives, logger: logHandler(logger, "admin")}
}

type listAuditResponse struct {
	Entries []domain.AuditEntry `json:"entries"`
}

// Audit lists audit log entries.
// GET /api/audit?limit=50&offset=0&since=...&until=...
func (h *AdminHandler) Audit(w http.ResponseWriter, r *http.Request) {
	opts, err := parseListOpts(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	entries, err := h.audit.Audit(r.Context(), opts)
	if err != nil {
		writeServiceError(w, r, h.logger, "list audit", err)
		return
	}
	if entries == nil {
		entries = []domain.AuditEntry{}
	}
	writeJSON(w, http.StatusOK, listAuditResponse{Entries: entries})
}

type settlementEntry struct {
	ID    string          `json:"id"`
	Event json.RawMessage `json:"event"`
}

type listSettlementsResponse struct {
	Settlements []settlementEntry `json:"settlements"`
	LastID      string            `json:"last_id"`
}

// Settlements pages through the settlement stream.
// GET /api/settlements?after=<stream id>&count=100
func (h *AdminHandler) Settlements(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	count := 100
	if v := q.Get("count"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
			count = n
		}
	}
	after := q.Get("after")

	msgs, err := h.audit.RecentSettlements(r.Context(), after, count)
	if err != nil {
		writeServiceError(w, r, h.logger, "list settlements", err)
		return
	}

	resp := listSettlementsResponse{Settlements: make([]settlementEntry, 0, len(msgs)), LastID: after}
	for _, m := range msgs {
		if !json.Valid(m.Payload) {
			continue
		}
		resp.Settlements = append(resp.Settlements, settlementEntry{ID: m.ID, Event: m.Payload})
		resp.LastID = m.ID
	}
	writeJSON(w, http.StatusOK, resp)
}

type listArchivesResponse struct {
	Objects []domain.BlobInfo `json:"objects"`
}

// Archives lists archive objects of one kind.
// GET /api/archives?kind=trades
func (h *AdminHandler) Archives(w http.ResponseWriter, r *http.Request) {
	if h.archives == nil {
		writeError(w, http.StatusNotFound, "archive storage disabled")
		return
	}
	infos, err := h.archives.List(r.Context(), r.URL.Query().Get("kind"))
	if err != nil {
		writeServiceError(w, r, h.logger, "list archives", err)
		return
	}
	if infos == nil {
		infos = []domain.BlobInfo{}
	}
	writeJSON(w, http.StatusOK, listArchivesResponse{Objects: infos})
}

// ArchiveObject streams one JSONL archive object.
// GET /api/archives/object?path=archive/trades/2026-03.jsonl
func (h *AdminHandler) ArchiveObject(w http.ResponseWriter, r *http.Request) {
	if h.archives == nil {
		writeError(w, http.StatusNotFound, "archive storage disabled")
		return
	}
	p := r.URL.Query().Get("path")
	rc, err := h.archives.Open(r.Context(), p)
	if err != nil {
		writeServiceError(w, r, h.logger, "open archive", err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Content-Disposition", `attachment; filename="`+path.Base(p)+`"`)
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.WarnContext(r.Context(), "archive stream interrupted",
			slog.String("path", p),
			slog.String("error", err.Error()),
		)
	}
}
