package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/alanyoungcy/polyprop/internal/domain"
	"github.com/alanyoungcy/polyprop/internal/metrics"
)

// Archive kinds, also used as the cursor keys and object prefixes.
const (
	ArchiveTrades    = "trades"
	ArchiveSnapshots = "equity_snapshots"
	ArchiveAudit     = "audit"
)

// ArchiveKinds lists every exported record kind.
var ArchiveKinds = []string{ArchiveTrades, ArchiveSnapshots, ArchiveAudit}

// ArchiveService periodically copies ledger history older than the
// retention window to object storage. Each kind resumes from its cursor, so
// rows are exported once.
type ArchiveService struct {
	archiver  domain.Archiver
	cursors   domain.ArchiveCursorStore
	reader    domain.BlobReader
	retention time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

// NewArchiveService creates an ArchiveService.
func NewArchiveService(
	archiver domain.Archiver,
	cursors domain.ArchiveCursorStore,
	reader domain.BlobReader,
	retention time.Duration,
	logger *slog.Logger,
) *ArchiveService {
	return &ArchiveService{
		archiver:  archiver,
		cursors:   cursors,
		reader:    reader,
		retention: retention,
		now:       time.Now,
		logger:    logger.With(slog.String("component", "archive_service")),
	}
}

func (s *ArchiveService) export(kind string) func(context.Context, time.Time, time.Time) (int64, error) {
	switch kind {
	case ArchiveTrades:
		return s.archiver.ArchiveTrades
	case ArchiveSnapshots:
		return s.archiver.ArchiveSnapshots
	case ArchiveAudit:
		return s.archiver.ArchiveAudit
	}
	return nil
}

// RunOnce exports every kind up to now minus retention and returns the
// number of records written per kind. A failing kind does not stop the
// others.
func (s *ArchiveService) RunOnce(ctx context.Context) (map[string]int64, error) {
	before := s.now().UTC().Add(-s.retention)
	counts := make(map[string]int64, len(ArchiveKinds))
	var errs []error

	for _, kind := range ArchiveKinds {
		since, err := s.cursors.Cursor(ctx, kind)
		if err != nil {
			errs = append(errs, fmt.Errorf("cursor %s: %w", kind, err))
			continue
		}
		if !since.Before(before) {
			continue
		}

		n, err := s.export(kind)(ctx, since, before)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := s.cursors.SetCursor(ctx, kind, before); err != nil {
			errs = append(errs, fmt.Errorf("set cursor %s: %w", kind, err))
			continue
		}
		counts[kind] = n
		metrics.ArchivedRecords.WithLabelValues(kind).Add(float64(n))
		if n > 0 {
			s.logger.InfoContext(ctx, "archived",
				slog.String("kind", kind),
				slog.Int64("count", n),
				slog.Time("before", before),
			)
		}
	}

	if len(errs) > 0 {
		return counts, fmt.Errorf("archive_service: %w", errors.Join(errs...))
	}
	return counts, nil
}

// Run calls RunOnce every interval until ctx is cancelled.
func (s *ArchiveService) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := s.RunOnce(ctx); err != nil {
			s.logger.ErrorContext(ctx, "archive run failed", slog.String("error", err.Error()))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// List returns the archive objects of one kind.
func (s *ArchiveService) List(ctx context.Context, kind string) ([]domain.BlobInfo, error) {
	if s.export(kind) == nil {
		return nil, fmt.Errorf("archive_service: kind %q: %w", kind, domain.ErrNotFound)
	}
	infos, err := s.reader.List(ctx, "archive/"+kind+"/")
	if err != nil {
		return nil, fmt.Errorf("archive_service: list %s: %w", kind, err)
	}
	return infos, nil
}

// Open streams one archive object. Only keys under archive/ are served.
func (s *ArchiveService) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	if !strings.HasPrefix(path, "archive/") || strings.Contains(path, "..") {
		return nil, fmt.Errorf("archive_service: open %q: %w", path, domain.ErrNotFound)
	}
	rc, err := s.reader.Get(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("archive_service: open %s: %w", path, err)
	}
	return rc, nil
}
