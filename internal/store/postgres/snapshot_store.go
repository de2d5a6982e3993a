package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/polyprop/internal/domain"
)

// SnapshotStore implements domain.SnapshotStore using PostgreSQL.
type SnapshotStore struct {
	pool *pgxpool.Pool
}

var _ domain.SnapshotStore = (*SnapshotStore)(nil)

// NewSnapshotStore creates a new SnapshotStore backed by the given connection pool.
func NewSnapshotStore(pool *pgxpool.Pool) *SnapshotStore {
	return &SnapshotStore{pool: pool}
}

const snapshotSelectCols = `id, account_id, COALESCE(trade_id, ''), status, equity,
	high_water_mark, floor, used_fraction, taken_at`

func scanSnapshotRows(rows pgx.Rows) ([]domain.EquitySnapshot, error) {
	var out []domain.EquitySnapshot
	for rows.Next() {
		var sn domain.EquitySnapshot
		if err := rows.Scan(
			&sn.ID, &sn.AccountID, &sn.TradeID, &sn.Status, &sn.Equity,
			&sn.HighWaterMark, &sn.Floor, &sn.UsedFraction, &sn.TakenAt,
		); err != nil {
			return nil, err
		}
		out = append(out, sn)
	}
	return out, rows.Err()
}

func insertSnapshot(ctx context.Context, db querier, sn domain.EquitySnapshot) error {
	const query = `
		INSERT INTO equity_snapshots (
			account_id, trade_id, status, equity, high_water_mark, floor,
			used_fraction, taken_at
		) VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7, $8)`

	_, err := db.Exec(ctx, query,
		sn.AccountID, sn.TradeID, sn.Status, sn.Equity, sn.HighWaterMark, sn.Floor,
		sn.UsedFraction, sn.TakenAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert snapshot for %s: %w", sn.AccountID, err)
	}
	return nil
}

// ListByAccount returns an account's equity history, newest first.
func (s *SnapshotStore) ListByAccount(ctx context.Context, accountID string, opts domain.ListOpts) ([]domain.EquitySnapshot, error) {
	query := `SELECT ` + snapshotSelectCols + ` FROM equity_snapshots WHERE account_id = $1`
	args := []any{accountID}

	if opts.Since != nil {
		args = append(args, *opts.Since)
		query += fmt.Sprintf(" AND taken_at >= $%d", len(args))
	}
	if opts.Until != nil {
		args = append(args, *opts.Until)
		query += fmt.Sprintf(" AND taken_at <= $%d", len(args))
	}
	query += " ORDER BY taken_at DESC, id DESC"
	query, args = appendPaging(query, args, opts)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list snapshots for %s: %w", accountID, err)
	}
	defer rows.Close()

	out, err := scanSnapshotRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan snapshots: %w", err)
	}
	return out, nil
}

// ListRange returns every snapshot with since <= taken_at < before, oldest first.
func (s *SnapshotStore) ListRange(ctx context.Context, since, before time.Time) ([]domain.EquitySnapshot, error) {
	query := `SELECT ` + snapshotSelectCols + ` FROM equity_snapshots WHERE taken_at >= $1 AND taken_at < $2 ORDER BY taken_at, id`

	rows, err := s.pool.Query(ctx, query, since, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list snapshots range: %w", err)
	}
	defer rows.Close()

	out, err := scanSnapshotRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan snapshots: %w", err)
	}
	return out, nil
}
