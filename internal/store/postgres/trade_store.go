package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/polyprop/internal/domain"
)

// TradeStore implements domain.TradeStore using PostgreSQL. Trades are only
// ever inserted, through AccountStore.CommitSettlement.
type TradeStore struct {
	pool *pgxpool.Pool
}

var _ domain.TradeStore = (*TradeStore)(nil)

// NewTradeStore creates a new TradeStore backed by the given connection pool.
func NewTradeStore(pool *pgxpool.Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

const tradeSelectCols = `id, account_id, sequence, instrument_id, event_id, side,
	quantity, requested_price, estimated_fill_price, realized_pnl, fee,
	equity_after, ts`

func scanTradeRows(rows pgx.Rows) ([]domain.Trade, error) {
	var trades []domain.Trade
	for rows.Next() {
		var t domain.Trade
		if err := rows.Scan(
			&t.ID, &t.AccountID, &t.Sequence, &t.InstrumentID, &t.EventID, &t.Side,
			&t.Quantity, &t.RequestedPrice, &t.EstimatedFillPrice, &t.RealizedPnL, &t.Fee,
			&t.EquityAfter, &t.Timestamp,
		); err != nil {
			return nil, err
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

func insertTrade(ctx context.Context, db querier, t domain.Trade) error {
	const query = `
		INSERT INTO trades (
			id, account_id, sequence, instrument_id, event_id, side,
			quantity, requested_price, estimated_fill_price, realized_pnl, fee,
			equity_after, ts
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11,
			$12, $13
		)`

	_, err := db.Exec(ctx, query,
		t.ID, t.AccountID, t.Sequence, t.InstrumentID, t.EventID, t.Side,
		t.Quantity, t.RequestedPrice, t.EstimatedFillPrice, t.RealizedPnL, t.Fee,
		t.EquityAfter, t.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert trade %s: %w", t.ID, mapErr(err))
	}
	return nil
}

// ListByAccount returns an account's trades, newest first, with optional
// time filtering and pagination.
func (s *TradeStore) ListByAccount(ctx context.Context, accountID string, opts domain.ListOpts) ([]domain.Trade, error) {
	query := `SELECT ` + tradeSelectCols + ` FROM trades WHERE account_id = $1`
	args := []any{accountID}

	if opts.Since != nil {
		args = append(args, *opts.Since)
		query += fmt.Sprintf(" AND ts >= $%d", len(args))
	}
	if opts.Until != nil {
		args = append(args, *opts.Until)
		query += fmt.Sprintf(" AND ts <= $%d", len(args))
	}
	query += " ORDER BY sequence DESC"
	query, args = appendPaging(query, args, opts)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades for %s: %w", accountID, err)
	}
	defer rows.Close()

	trades, err := scanTradeRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan trades: %w", err)
	}
	return trades, nil
}

// ListRange returns every trade with since <= ts < before, oldest first.
func (s *TradeStore) ListRange(ctx context.Context, since, before time.Time) ([]domain.Trade, error) {
	query := `SELECT ` + tradeSelectCols + ` FROM trades WHERE ts >= $1 AND ts < $2 ORDER BY ts, account_id, sequence`

	rows, err := s.pool.Query(ctx, query, since, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades range: %w", err)
	}
	defer rows.Close()

	trades, err := scanTradeRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan trades: %w", err)
	}
	return trades, nil
}
