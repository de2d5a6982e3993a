package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/polyprop/internal/domain"
)

// AccountStore implements domain.AccountStore using PostgreSQL.
type AccountStore struct {
	pool *pgxpool.Pool
}

var _ domain.AccountStore = (*AccountStore)(nil)

// NewAccountStore creates a new AccountStore backed by the given connection pool.
func NewAccountStore(pool *pgxpool.Pool) *AccountStore {
	return &AccountStore{pool: pool}
}

const accountSelectCols = `id, trader_id, tier, drawdown_shield, express_pass, status,
	starting_balance, stage_start_balance, current_equity, high_water_mark,
	drawdown_limit, event_profits, instruments, total_trades, winning_trades,
	paid_out, last_payout_at, stage1_passed_at, stage2_passed_at, breached_at,
	version, created_at, updated_at`

func scanAccount(row pgx.Row) (domain.Account, error) {
	var a domain.Account
	var profitsJSON []byte
	err := row.Scan(
		&a.ID, &a.TraderID, &a.Tier, &a.Addons.DrawdownShield, &a.Addons.ExpressPass, &a.Status,
		&a.StartingBalance, &a.StageStartBalance, &a.CurrentEquity, &a.HighWaterMark,
		&a.DrawdownLimit, &profitsJSON, &a.Instruments, &a.TotalTrades, &a.WinningTrades,
		&a.PaidOut, &a.LastPayoutAt, &a.Stage1PassedAt, &a.Stage2PassedAt, &a.BreachedAt,
		&a.Version, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return domain.Account{}, err
	}
	a.EventProfits = map[string]decimal.Decimal{}
	if len(profitsJSON) > 0 {
		if err := json.Unmarshal(profitsJSON, &a.EventProfits); err != nil {
			return domain.Account{}, fmt.Errorf("unmarshal event_profits: %w", err)
		}
	}
	if a.Instruments == nil {
		a.Instruments = []string{}
	}
	return a, nil
}

// Create inserts a new account. An existing id yields domain.ErrAlreadyExists.
func (s *AccountStore) Create(ctx context.Context, a domain.Account) error {
	profits, err := marshalProfits(a.EventProfits)
	if err != nil {
		return err
	}

	const query = `
		INSERT INTO accounts (
			id, trader_id, tier, drawdown_shield, express_pass, status,
			starting_balance, stage_start_balance, current_equity, high_water_mark,
			drawdown_limit, event_profits, instruments, total_trades, winning_trades,
			paid_out, version, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10,
			$11, $12, $13, $14, $15,
			$16, $17, $18, $19
		)`

	_, err = s.pool.Exec(ctx, query,
		a.ID, a.TraderID, a.Tier, a.Addons.DrawdownShield, a.Addons.ExpressPass, a.Status,
		a.StartingBalance, a.StageStartBalance, a.CurrentEquity, a.HighWaterMark,
		a.DrawdownLimit, profits, instruments(a), a.TotalTrades, a.WinningTrades,
		a.PaidOut, a.Version, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create account %s: %w", a.ID, mapErr(err))
	}
	return nil
}

// Get returns the account with the given id.
func (s *AccountStore) Get(ctx context.Context, id string) (domain.Account, error) {
	query := `SELECT ` + accountSelectCols + ` FROM accounts WHERE id = $1`
	a, err := scanAccount(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		return domain.Account{}, fmt.Errorf("postgres: get account %s: %w", id, mapErr(err))
	}
	return a, nil
}

// Update overwrites the mutable account columns when the stored version
// matches expectedVersion. The new row carries a.Version.
func (s *AccountStore) Update(ctx context.Context, a domain.Account, expectedVersion int64) error {
	return updateAccount(ctx, s.pool, a, expectedVersion)
}

// CommitSettlement writes the account, trade, snapshot and optional
// violation in one transaction.
func (s *AccountStore) CommitSettlement(ctx context.Context, st domain.Settlement) error {
	return withTx(ctx, s.pool, func(tx pgx.Tx) error {
		if err := updateAccount(ctx, tx, st.Account, st.ExpectedVersion); err != nil {
			return err
		}
		if err := insertTrade(ctx, tx, st.Trade); err != nil {
			return err
		}
		if err := insertSnapshot(ctx, tx, st.Snapshot); err != nil {
			return err
		}
		if st.Violation != nil {
			if err := insertViolation(ctx, tx, *st.Violation); err != nil {
				return err
			}
		}
		return nil
	})
}

// CommitPayout records a payout request together with the account's
// updated payout bookkeeping.
func (s *AccountStore) CommitPayout(ctx context.Context, a domain.Account, expectedVersion int64, req domain.PayoutRequest) error {
	return withTx(ctx, s.pool, func(tx pgx.Tx) error {
		if err := updateAccount(ctx, tx, a, expectedVersion); err != nil {
			return err
		}
		return insertPayout(ctx, tx, req)
	})
}

// ListByStatus returns accounts in the given status, newest first.
func (s *AccountStore) ListByStatus(ctx context.Context, status domain.AccountStatus, opts domain.ListOpts) ([]domain.Account, error) {
	query := `SELECT ` + accountSelectCols + ` FROM accounts WHERE status = $1 ORDER BY created_at DESC`
	args := []any{status}
	query, args = appendPaging(query, args, opts)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list accounts: %w", err)
	}
	defer rows.Close()

	var out []domain.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan account: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list accounts rows: %w", err)
	}
	return out, nil
}

func updateAccount(ctx context.Context, db querier, a domain.Account, expectedVersion int64) error {
	profits, err := marshalProfits(a.EventProfits)
	if err != nil {
		return err
	}

	const query = `
		UPDATE accounts SET
			status = $3,
			stage_start_balance = $4,
			current_equity = $5,
			high_water_mark = $6,
			drawdown_limit = $7,
			event_profits = $8,
			instruments = $9,
			total_trades = $10,
			winning_trades = $11,
			paid_out = $12,
			last_payout_at = $13,
			stage1_passed_at = $14,
			stage2_passed_at = $15,
			breached_at = $16,
			version = $17,
			updated_at = $18
		WHERE id = $1 AND version = $2`

	tag, err := db.Exec(ctx, query,
		a.ID, expectedVersion,
		a.Status, a.StageStartBalance, a.CurrentEquity, a.HighWaterMark,
		a.DrawdownLimit, profits, instruments(a), a.TotalTrades, a.WinningTrades,
		a.PaidOut, a.LastPayoutAt, a.Stage1PassedAt, a.Stage2PassedAt, a.BreachedAt,
		a.Version, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: update account %s: %w", a.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: update account %s at version %d: %w", a.ID, expectedVersion, domain.ErrStaleAccount)
	}
	return nil
}

func marshalProfits(p map[string]decimal.Decimal) ([]byte, error) {
	if p == nil {
		p = map[string]decimal.Decimal{}
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("postgres: marshal event_profits: %w", err)
	}
	return b, nil
}

func instruments(a domain.Account) []string {
	if a.Instruments == nil {
		return []string{}
	}
	return a.Instruments
}

func appendPaging(query string, args []any, opts domain.ListOpts) (string, []any) {
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}
	return query, args
}
