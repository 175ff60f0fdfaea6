package db

import (
	"context"
	"database/sql"
	"fmt"
)

// DBTX is what the stores need from a connection. *sql.DB and *sql.Tx both
// satisfy it, so a store method can run inside or outside a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// WithTx is WithTxOptions with the driver's default isolation.
func WithTx(ctx context.Context, conn *sql.DB, fn func(ctx context.Context, tx DBTX) error) error {
	return WithTxOptions(ctx, conn, nil, fn)
}

// WithTxOptions begins a transaction with opts and hands it to fn. The
// transaction is committed only if fn returns nil. Any other exit, a panic
// included, rolls it back; fn's error is returned unchanged.
func WithTxOptions(ctx context.Context, conn *sql.DB, opts *sql.TxOptions, fn func(ctx context.Context, tx DBTX) error) error {
	tx, err := conn.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	committed = true
	return nil
}
