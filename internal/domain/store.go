package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// AccountStore persists account state. Writes that change equity go through
// CommitSettlement so the account row, ledger entry, snapshot and violation
// land in one transaction.
type AccountStore interface {
	Create(ctx context.Context, acct Account) error
	Get(ctx context.Context, id string) (Account, error)
	// Update writes acct if the stored version equals expectedVersion and
	// returns ErrStaleAccount otherwise.
	Update(ctx context.Context, acct Account, expectedVersion int64) error
	CommitSettlement(ctx context.Context, s Settlement) error
	CommitPayout(ctx context.Context, acct Account, expectedVersion int64, req PayoutRequest) error
	ListByStatus(ctx context.Context, status AccountStatus, opts ListOpts) ([]Account, error)
}

// TradeStore reads the append-only trade ledger.
type TradeStore interface {
	ListByAccount(ctx context.Context, accountID string, opts ListOpts) ([]Trade, error)
	ListRange(ctx context.Context, since, before time.Time) ([]Trade, error)
}

// SnapshotStore reads equity snapshots.
type SnapshotStore interface {
	ListByAccount(ctx context.Context, accountID string, opts ListOpts) ([]EquitySnapshot, error)
	ListRange(ctx context.Context, since, before time.Time) ([]EquitySnapshot, error)
}

// ViolationStore reads rule violations.
type ViolationStore interface {
	ListByAccount(ctx context.Context, accountID string) ([]RuleViolation, error)
}

// PayoutStore reads payout requests.
type PayoutStore interface {
	ListByAccount(ctx context.Context, accountID string) ([]PayoutRequest, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64          `json:"id"`
	Event     string         `json:"event"`
	Detail    map[string]any `json:"detail"`
	CreatedAt time.Time      `json:"created_at"`
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
	ListRange(ctx context.Context, since, before time.Time) ([]AuditEntry, error)
}

// ArchiveCursorStore remembers how far each record kind has been exported.
// A zero time means nothing has been archived yet.
type ArchiveCursorStore interface {
	Cursor(ctx context.Context, kind string) (time.Time, error)
	SetCursor(ctx context.Context, kind string, until time.Time) error
}
