package store

import (
	"context"
	"database/sql"
)

// DBTX is the query surface the Postgres stores run on. Both *sql.DB and
// *sql.Tx satisfy it, which is how WithTx rebinds a store to a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

var (
	_ DBTX = (*sql.DB)(nil)
	_ DBTX = (*sql.Tx)(nil)
)
