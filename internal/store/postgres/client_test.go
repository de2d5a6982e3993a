package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polyprop/internal/domain"
)

func TestDSN(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "postgres://u:p@db:5432/prop?sslmode=disable",
		DSN(ClientConfig{User: "u", Password: "p", Host: "db", Database: "prop"}))
	assert.Equal(t, "postgres://x", DSN(ClientConfig{DSN: "postgres://x", Host: "ignored"}))
	assert.Equal(t, "postgres://u:p@db:6543/prop?sslmode=require",
		DSN(ClientConfig{User: "u", Password: "p", Host: "db", Port: 6543, Database: "prop", SSLMode: "require"}))
}

func TestMigrationNamesOrdered(t *testing.T) {
	t.Parallel()

	names, err := MigrationNames()
	require.NoError(t, err)
	require.NotEmpty(t, names)
	assert.IsIncreasing(t, names)
	assert.Contains(t, names, "001_accounts.sql")
}

func TestAppendPaging(t *testing.T) {
	t.Parallel()

	q, args := appendPaging("SELECT 1 WHERE a = $1", []any{"x"}, domain.ListOpts{Limit: 10, Offset: 20})
	assert.Equal(t, "SELECT 1 WHERE a = $1 LIMIT $2 OFFSET $3", q)
	assert.Equal(t, []any{"x", 10, 20}, args)

	q, args = appendPaging("SELECT 1", nil, domain.ListOpts{})
	assert.Equal(t, "SELECT 1", q)
	assert.Empty(t, args)
}

func TestMapErr(t *testing.T) {
	t.Parallel()

	assert.ErrorIs(t, mapErr(fmt.Errorf("wrap: %w", pgx.ErrNoRows)), domain.ErrNotFound)
	assert.ErrorIs(t, mapErr(&pgconn.PgError{Code: uniqueViolation}), domain.ErrAlreadyExists)

	other := errors.New("boom")
	assert.Equal(t, other, mapErr(other))
}

func TestMarshalProfits(t *testing.T) {
	t.Parallel()

	b, err := marshalProfits(nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(b))

	b, err = marshalProfits(map[string]decimal.Decimal{"ev": decimal.RequireFromString("12.50")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"ev":"12.5"}`, string(b))
}
