package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type contextKey string

const (
	// TxScopeKey is the context key for storing the open unit of work.
	TxScopeKey contextKey = "txScope"
)

// TxScope is one business unit of work: a database transaction plus the
// transaction id stamped onto every audit record written during it. The
// shared id is what lets the history reconstructor group records from one
// commit into a single timeline entry.
type TxScope struct {
	Tx   pgx.Tx
	TxID uuid.UUID
}

// GetTxScope retrieves the open unit of work from context.
// Returns nil and false if not present.
func GetTxScope(ctx context.Context) (*TxScope, bool) {
	scope, ok := ctx.Value(TxScopeKey).(*TxScope)
	return scope, ok
}

// SetTxScope stores the unit of work in context.
func SetTxScope(ctx context.Context, scope *TxScope) context.Context {
	return context.WithValue(ctx, TxScopeKey, scope)
}

// TxID returns the transaction id of the open unit of work, or a fresh id
// when no unit of work is open (e.g. a standalone write).
func TxID(ctx context.Context) uuid.UUID {
	if scope, ok := GetTxScope(ctx); ok {
		return scope.TxID
	}
	return uuid.New()
}
