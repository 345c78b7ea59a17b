package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// withTx runs fn inside a transaction. The transaction commits when fn returns
// nil and rolls back on error or panic.
func (r *URLRepository) withTx(ctx context.Context, fn func(pgx.Tx) error) (err error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			r.rollback(tx)
			panic(p)
		}
		if err != nil {
			r.rollback(tx)
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (r *URLRepository) rollback(tx pgx.Tx) {
	// The caller's context may already be canceled; rollback must still reach the server.
	if err := tx.Rollback(context.Background()); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		r.logger.Warn("rollback failed", zap.Error(err))
	}
}
