// Package auth resolves the acting user from bearer tokens and exposes
// context helpers for the rest of the engine. Every core operation that needs
// "who is acting" reads it through ActorID, which may legitimately report no
// actor (background jobs, system maintenance) - callers must tolerate that.
package auth

import (
	"context"
)

type contextKey string

const (
	claimsKey contextKey = "claims"
	actorKey  contextKey = "actor"
)

// SetClaims stores validated token claims in the context.
func SetClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// GetClaims retrieves token claims from the context.
func GetClaims(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(*Claims)
	return claims, ok
}

// SetActor stores the acting user's id in the context.
func SetActor(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, actorKey, userID)
}

// ActorID returns the acting user's id, or nil when no authenticated actor is
// present. Audit records written without an actor carry created_by = NULL.
func ActorID(ctx context.Context) *int64 {
	if id, ok := ctx.Value(actorKey).(int64); ok {
		return &id
	}
	if claims, ok := GetClaims(ctx); ok {
		if id, ok := claims.UserID(); ok {
			return &id
		}
	}
	return nil
}
