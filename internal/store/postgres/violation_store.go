package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/polyprop/internal/domain"
)

// ViolationStore implements domain.ViolationStore using PostgreSQL.
type ViolationStore struct {
	pool *pgxpool.Pool
}

var _ domain.ViolationStore = (*ViolationStore)(nil)

// NewViolationStore creates a new ViolationStore backed by the given connection pool.
func NewViolationStore(pool *pgxpool.Pool) *ViolationStore {
	return &ViolationStore{pool: pool}
}

func insertViolation(ctx context.Context, db querier, v domain.RuleViolation) error {
	const query = `
		INSERT INTO rule_violations (
			id, account_id, trade_id, type, equity, threshold, detail, occurred_at
		) VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8)`

	_, err := db.Exec(ctx, query,
		v.ID, v.AccountID, v.TradeID, v.Type, v.Equity, v.Threshold, v.Detail, v.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert violation for %s: %w", v.AccountID, mapErr(err))
	}
	return nil
}

// ListByAccount returns every violation recorded for an account, newest first.
func (s *ViolationStore) ListByAccount(ctx context.Context, accountID string) ([]domain.RuleViolation, error) {
	const query = `
		SELECT id, account_id, COALESCE(trade_id, ''), type, equity, threshold, detail, occurred_at
		FROM rule_violations
		WHERE account_id = $1
		ORDER BY occurred_at DESC`

	rows, err := s.pool.Query(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list violations for %s: %w", accountID, err)
	}
	defer rows.Close()

	var out []domain.RuleViolation
	for rows.Next() {
		var v domain.RuleViolation
		if err := rows.Scan(&v.ID, &v.AccountID, &v.TradeID, &v.Type, &v.Equity, &v.Threshold, &v.Detail, &v.OccurredAt); err != nil {
			return nil, fmt.Errorf("postgres: scan violation: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list violations rows: %w", err)
	}
	return out, nil
}
