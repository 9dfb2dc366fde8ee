package repository

import (
	"context"
	"database/sql"
)

// dbtx is satisfied by both *sql.DB and *sql.Tx so repository methods can
// run inside or outside a transaction.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func executor(db *sql.DB, tx *sql.Tx) dbtx {
	if tx != nil {
		return tx
	}
	return db
}
