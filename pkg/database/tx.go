package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// TxRunner opens units of work. Satisfied by *DB; tests substitute a runner
// that skips the real transaction.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// RunInTx executes fn inside a single transaction. The context passed to fn
// carries a TxScope so that repositories write through the transaction and
// audit records share its transaction id. On error the transaction is rolled
// back and the error returned unchanged.
//
// Nested calls reuse the already-open scope rather than opening a second
// transaction.
func (db *DB) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := GetTxScope(ctx); ok {
		return fn(ctx)
	}

	tx, err := db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	scope := &TxScope{Tx: tx, TxID: uuid.New()}
	txCtx := SetTxScope(ctx, scope)

	if err := fn(txCtx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// StmtError wraps a database error together with the statement and parameters
// that produced it, so the failure can be captured in an ERROR audit record
// after the business transaction rolls back.
type StmtError struct {
	Stmt string
	Args []any
	Err  error
}

func (e *StmtError) Error() string {
	return fmt.Sprintf("statement failed: %v", e.Err)
}

func (e *StmtError) Unwrap() error {
	return e.Err
}

// DriverMessage returns the Postgres-level error text when available, else
// the wrapped error text.
func (e *StmtError) DriverMessage() string {
	var pgErr *pgconn.PgError
	if errors.As(e.Err, &pgErr) {
		return pgErr.Message
	}
	return e.Err.Error()
}

// WrapStmtErr annotates a mutation error with its statement and arguments.
// Returns nil when err is nil.
func WrapStmtErr(err error, stmt string, args ...any) error {
	if err == nil {
		return nil
	}
	return &StmtError{Stmt: stmt, Args: args, Err: err}
}

// AsStmtError unwraps err into a *StmtError if possible.
func AsStmtError(err error) (*StmtError, bool) {
	var se *StmtError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// IsPersistenceError reports whether err originated in the database layer.
func IsPersistenceError(err error) bool {
	if _, ok := AsStmtError(err); ok {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr)
}
