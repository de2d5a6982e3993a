package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/alanyoungcy/polyprop/internal/domain"
)

// Narrow read-side views of the ledger stores. The Postgres stores satisfy
// them through their ListRange methods.

// TradeArchiveStore lists ledger trades in a time range.
type TradeArchiveStore interface {
	ListRange(ctx context.Context, since, before time.Time) ([]domain.Trade, error)
}

// SnapshotArchiveStore lists equity snapshots in a time range.
type SnapshotArchiveStore interface {
	ListRange(ctx context.Context, since, before time.Time) ([]domain.EquitySnapshot, error)
}

// multipartThreshold is the payload size above which uploads go through the
// multipart manager.
const multipartThreshold = 64 * 1024 * 1024

// maxPathAttempts bounds how often an upload moves to the next free path
// after losing a race for one.
const maxPathAttempts = 3

// ArchiveImpl implements domain.Archiver by copying ledger rows in
// [since, before) to JSONL objects. Rows are never removed from Postgres.
type ArchiveImpl struct {
	writer    domain.BlobWriter
	reader    domain.BlobReader
	trades    TradeArchiveStore
	snapshots SnapshotArchiveStore
	audit     domain.AuditStore
}

// NewArchiver creates a new ArchiveImpl.
func NewArchiver(
	writer domain.BlobWriter,
	reader domain.BlobReader,
	trades TradeArchiveStore,
	snapshots SnapshotArchiveStore,
	audit domain.AuditStore,
) *ArchiveImpl {
	return &ArchiveImpl{
		writer:    writer,
		reader:    reader,
		trades:    trades,
		snapshots: snapshots,
		audit:     audit,
	}
}

// ArchiveTrades exports settled trades to archive/trades/YYYY-MM.jsonl.
func (a *ArchiveImpl) ArchiveTrades(ctx context.Context, since, before time.Time) (int64, error) {
	trades, err := a.trades.ListRange(ctx, since, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive trades query: %w", err)
	}
	return archive(ctx, a, "trades", trades, since, before)
}

// ArchiveSnapshots exports equity snapshots to
// archive/equity_snapshots/YYYY-MM.jsonl.
func (a *ArchiveImpl) ArchiveSnapshots(ctx context.Context, since, before time.Time) (int64, error) {
	snaps, err := a.snapshots.ListRange(ctx, since, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive snapshots query: %w", err)
	}
	return archive(ctx, a, "equity_snapshots", snaps, since, before)
}

// ArchiveAudit exports audit log entries to archive/audit/YYYY-MM.jsonl.
func (a *ArchiveImpl) ArchiveAudit(ctx context.Context, since, before time.Time) (int64, error) {
	entries, err := a.audit.ListRange(ctx, since, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive audit query: %w", err)
	}
	return archive(ctx, a, "audit", entries, since, before)
}

func archive[T any](ctx context.Context, a *ArchiveImpl, kind string, records []T, since, before time.Time) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(records)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive %s marshal: %w", kind, err)
	}

	var path string
	for attempt := 1; ; attempt++ {
		path, err = a.freePath(ctx, kind, before)
		if err != nil {
			return 0, err
		}
		if len(buf) > multipartThreshold {
			err = a.writer.PutMultipart(ctx, path, bytes.NewReader(buf), 0)
		} else {
			err = a.writer.Put(ctx, path, bytes.NewReader(buf), jsonlContentType)
		}
		// Another run can claim the path between Exists and Put.
		if errors.Is(err, domain.ErrAlreadyExists) && attempt < maxPathAttempts {
			continue
		}
		break
	}
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive %s upload: %w", kind, err)
	}

	count := int64(len(records))
	if err := a.audit.Log(ctx, "archive."+kind, map[string]any{
		"path":   path,
		"count":  count,
		"since":  since.UTC().Format(time.RFC3339),
		"before": before.UTC().Format(time.RFC3339),
	}); err != nil {
		return count, fmt.Errorf("s3blob: archive %s audit log: %w", kind, err)
	}
	return count, nil
}

// freePath returns the first archive key for kind and month that does not
// exist yet, so a later run never overwrites an earlier export.
func (a *ArchiveImpl) freePath(ctx context.Context, kind string, before time.Time) (string, error) {
	for n := 0; ; n++ {
		path := archivePath(kind, before, n)
		exists, err := a.reader.Exists(ctx, path)
		if err != nil {
			return "", fmt.Errorf("s3blob: archive %s: %w", kind, err)
		}
		if !exists {
			return path, nil
		}
	}
}

// archivePath builds the S3 key for an archive file, partitioned by the
// year-month of the cutoff time. n > 0 adds a numeric suffix.
//
//	archive/trades/2026-01.jsonl
//	archive/trades/2026-01.1.jsonl
func archivePath(kind string, before time.Time, n int) string {
	month := before.UTC().Format("2006-01")
	if n == 0 {
		return fmt.Sprintf("archive/%s/%s.jsonl", kind, month)
	}
	return fmt.Sprintf("archive/%s/%s.%d.jsonl", kind, month, n)
}

// marshalJSONL serialises a slice of values as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

// Compile-time interface check.
var _ domain.Archiver = (*ArchiveImpl)(nil)
