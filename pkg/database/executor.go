package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"clubhub/internal/common"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

const rollbackTimeout = 5 * time.Second

// TxBeginner is satisfied by *pgxpool.Pool and by pgxmock pools. Each Begin
// holds one pooled connection until the transaction ends.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// TxFunc runs caller statements inside an executor transaction.
type TxFunc func(ctx context.Context, tx pgx.Tx) error

// TenantExecutor runs statements on behalf of an authenticated caller. Every
// call binds the caller identity to the transaction so the row level
// security policies see it, and resets whatever is absent.
type TenantExecutor struct {
	db      TxBeginner
	timeout time.Duration
}

func NewTenantExecutor(db TxBeginner, timeout time.Duration) *TenantExecutor {
	return &TenantExecutor{db: db, timeout: timeout}
}

// InTx runs fn in a transaction scoped to tc. A nil tc is allowed and binds
// empty settings, which the policies treat as "no rows".
func (e *TenantExecutor) InTx(ctx context.Context, tc *common.TenantContext, fn TxFunc) error {
	values := SessionValuesFor(tc)
	bind := func(ctx context.Context, tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, setSessionSQL, values.Args()...); err != nil {
			return fmt.Errorf("failed to bind session settings: %w", err)
		}
		return nil
	}
	return runInTx(ctx, e.db, e.timeout, bind, fn)
}

// SystemExecutor runs statements that have no caller identity yet (login,
// token consumption) or that are platform wide. It is backed by a pool whose
// role is not subject to row level security, and it is a separate type so a
// service can only reach it when explicitly handed one.
type SystemExecutor struct {
	db      TxBeginner
	timeout time.Duration
}

func NewSystemExecutor(db TxBeginner, timeout time.Duration) *SystemExecutor {
	return &SystemExecutor{db: db, timeout: timeout}
}

func (e *SystemExecutor) InTx(ctx context.Context, fn TxFunc) error {
	return runInTx(ctx, e.db, e.timeout, nil, fn)
}

// TenantQuery runs fn through e and returns its result.
func TenantQuery[T any](ctx context.Context, e *TenantExecutor, tc *common.TenantContext, fn func(ctx context.Context, tx pgx.Tx) (T, error)) (T, error) {
	var out T
	err := e.InTx(ctx, tc, func(ctx context.Context, tx pgx.Tx) error {
		v, err := fn(ctx, tx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

// SystemQuery runs fn through e and returns its result.
func SystemQuery[T any](ctx context.Context, e *SystemExecutor, fn func(ctx context.Context, tx pgx.Tx) (T, error)) (T, error) {
	var out T
	err := e.InTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		v, err := fn(ctx, tx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

func runInTx(ctx context.Context, db TxBeginner, timeout time.Duration, prepare, fn TxFunc) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	tx, err := db.Begin(ctx)
	if err != nil {
		return TranslateError(fmt.Errorf("failed to begin transaction: %w", err))
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		// The request context may already be done; rollback must still run.
		rbCtx, cancel := context.WithTimeout(context.Background(), rollbackTimeout)
		defer cancel()
		if rbErr := tx.Rollback(rbCtx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			zap.L().Warn("transaction rollback failed", zap.Error(rbErr))
		}
	}()

	if prepare != nil {
		if err := prepare(ctx, tx); err != nil {
			return TranslateError(err)
		}
	}

	if err := fn(ctx, tx); err != nil {
		return TranslateError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return TranslateError(fmt.Errorf("failed to commit transaction: %w", err))
	}
	committed = true
	return nil
}
