package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/polyprop/internal/domain"
)

// PayoutStore implements domain.PayoutStore using PostgreSQL.
type PayoutStore struct {
	pool *pgxpool.Pool
}

var _ domain.PayoutStore = (*PayoutStore)(nil)

// NewPayoutStore creates a new PayoutStore backed by the given connection pool.
func NewPayoutStore(pool *pgxpool.Pool) *PayoutStore {
	return &PayoutStore{pool: pool}
}

func insertPayout(ctx context.Context, db querier, p domain.PayoutRequest) error {
	const query = `
		INSERT INTO payout_requests (
			id, account_id, gross_profit, trader_split, platform_fee, net_payout,
			wallet, status, requested_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := db.Exec(ctx, query,
		p.ID, p.AccountID, p.GrossProfit, p.TraderSplit, p.PlatformFee, p.NetPayout,
		p.Wallet, p.Status, p.RequestedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert payout %s: %w", p.ID, mapErr(err))
	}
	return nil
}

// ListByAccount returns an account's payout requests, newest first.
func (s *PayoutStore) ListByAccount(ctx context.Context, accountID string) ([]domain.PayoutRequest, error) {
	const query = `
		SELECT id, account_id, gross_profit, trader_split, platform_fee, net_payout,
		       wallet, status, requested_at
		FROM payout_requests
		WHERE account_id = $1
		ORDER BY requested_at DESC`

	rows, err := s.pool.Query(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list payouts for %s: %w", accountID, err)
	}
	defer rows.Close()

	var out []domain.PayoutRequest
	for rows.Next() {
		var p domain.PayoutRequest
		if err := rows.Scan(
			&p.ID, &p.AccountID, &p.GrossProfit, &p.TraderSplit, &p.PlatformFee, &p.NetPayout,
			&p.Wallet, &p.Status, &p.RequestedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan payout: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list payouts rows: %w", err)
	}
	return out, nil
}
