package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polyprop/internal/domain"
)

type archiveCall struct {
	kind          string
	since, before time.Time
}

type stubArchiver struct {
	mu      sync.Mutex
	calls   []archiveCall
	counts  map[string]int64
	failing string
}

func (a *stubArchiver) record(kind string, since, before time.Time) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, archiveCall{kind: kind, since: since, before: before})
	if kind == a.failing {
		return 0, errors.New("upload failed")
	}
	return a.counts[kind], nil
}

func (a *stubArchiver) ArchiveTrades(_ context.Context, since, before time.Time) (int64, error) {
	return a.record(ArchiveTrades, since, before)
}

func (a *stubArchiver) ArchiveSnapshots(_ context.Context, since, before time.Time) (int64, error) {
	return a.record(ArchiveSnapshots, since, before)
}

func (a *stubArchiver) ArchiveAudit(_ context.Context, since, before time.Time) (int64, error) {
	return a.record(ArchiveAudit, since, before)
}

type memCursors struct {
	mu      sync.Mutex
	cursors map[string]time.Time
}

func (c *memCursors) Cursor(_ context.Context, kind string) (time.Time, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cursors[kind], nil
}

func (c *memCursors) SetCursor(_ context.Context, kind string, until time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cursors == nil {
		c.cursors = map[string]time.Time{}
	}
	c.cursors[kind] = until
	return nil
}

type stubBlobs map[string]string

func (b stubBlobs) Get(_ context.Context, path string) (io.ReadCloser, error) {
	data, ok := b[path]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return io.NopCloser(strings.NewReader(data)), nil
}

func (b stubBlobs) List(_ context.Context, prefix string) ([]domain.BlobInfo, error) {
	var out []domain.BlobInfo
	for p, data := range b {
		if strings.HasPrefix(p, prefix) {
			out = append(out, domain.BlobInfo{Path: p, Size: int64(len(data))})
		}
	}
	return out, nil
}

func (b stubBlobs) Exists(_ context.Context, path string) (bool, error) {
	_, ok := b[path]
	return ok, nil
}

func newArchiveFixture(archiver *stubArchiver, cursors *memCursors, blobs stubBlobs) *ArchiveService {
	svc := NewArchiveService(archiver, cursors, blobs, 30*24*time.Hour, discardLogger())
	svc.now = func() time.Time { return testNow }
	return svc
}

func TestArchiveRunOnceAdvancesCursors(t *testing.T) {
	t.Parallel()

	archiver := &stubArchiver{counts: map[string]int64{ArchiveTrades: 12, ArchiveSnapshots: 40}}
	cursors := &memCursors{}
	svc := newArchiveFixture(archiver, cursors, stubBlobs{})

	counts, err := svc.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{ArchiveTrades: 12, ArchiveSnapshots: 40, ArchiveAudit: 0}, counts)

	cutoff := testNow.Add(-30 * 24 * time.Hour)
	require.Len(t, archiver.calls, 3)
	for _, c := range archiver.calls {
		assert.True(t, c.since.IsZero(), c.kind)
		assert.Equal(t, cutoff, c.before, c.kind)
	}
	for _, kind := range ArchiveKinds {
		got, _ := cursors.Cursor(context.Background(), kind)
		assert.Equal(t, cutoff, got, kind)
	}

	// Same cutoff again: nothing new to export.
	_, err = svc.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Len(t, archiver.calls, 3)

	svc.now = func() time.Time { return testNow.Add(24 * time.Hour) }
	_, err = svc.RunOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, archiver.calls, 6)
	assert.Equal(t, cutoff, archiver.calls[3].since)
	assert.Equal(t, cutoff.Add(24*time.Hour), archiver.calls[3].before)
}

func TestArchiveRunOnceKeepsFailedCursor(t *testing.T) {
	t.Parallel()

	archiver := &stubArchiver{failing: ArchiveSnapshots}
	cursors := &memCursors{}
	svc := newArchiveFixture(archiver, cursors, stubBlobs{})

	counts, err := svc.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upload failed")
	assert.Equal(t, []string{ArchiveAudit, ArchiveTrades}, sortedKeys(counts))

	got, _ := cursors.Cursor(context.Background(), ArchiveSnapshots)
	assert.True(t, got.IsZero())
}

func TestArchiveListAndOpen(t *testing.T) {
	t.Parallel()

	blobs := stubBlobs{
		"archive/trades/2026-02.jsonl": "{\"id\":\"t1\"}\n",
		"archive/audit/2026-02.jsonl":  "{}\n",
		"private/config.toml":          "secret",
	}
	svc := newArchiveFixture(&stubArchiver{}, &memCursors{}, blobs)
	ctx := context.Background()

	infos, err := svc.List(ctx, ArchiveTrades)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "archive/trades/2026-02.jsonl", infos[0].Path)

	_, err = svc.List(ctx, "orders")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	rc, err := svc.Open(ctx, "archive/trades/2026-02.jsonl")
	require.NoError(t, err)
	var buf bytes.Buffer
	_, err = io.Copy(&buf, rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "{\"id\":\"t1\"}\n", buf.String())

	for _, p := range []string{"private/config.toml", "archive/../private/config.toml", "archive/trades/missing.jsonl"} {
		_, err := svc.Open(ctx, p)
		assert.ErrorIs(t, err, domain.ErrNotFound, p)
	}
}
