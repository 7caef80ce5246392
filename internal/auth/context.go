package auth

import (
	"context"
)

// ContextKey is a type-safe key for context values
type ContextKey string

const (
	// IdentityContextKey is the key used to store the identity in the context
	IdentityContextKey ContextKey = "auth:identity"

	// OutcomeContextKey is the key used to store the final outcome
	OutcomeContextKey ContextKey = "auth:outcome"
)

// IdentityFromContext extracts the identity from the request context
func IdentityFromContext(ctx context.Context) *Identity {
	if identity, ok := ctx.Value(IdentityContextKey).(*Identity); ok {
		return identity
	}
	return nil
}

// ContextWithIdentity adds an identity to a context
func ContextWithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, IdentityContextKey, identity)
}

// OutcomeFromContext returns the outcome recorded for the request. The
// second value is false when authentication never ran.
func OutcomeFromContext(ctx context.Context) (Outcome, bool) {
	outcome, ok := ctx.Value(OutcomeContextKey).(Outcome)
	return outcome, ok
}

// ContextWithOutcome records the final outcome, and the identity when there
// is one.
func ContextWithOutcome(ctx context.Context, outcome Outcome) context.Context {
	ctx = context.WithValue(ctx, OutcomeContextKey, outcome)
	if outcome.Succeeded() {
		ctx = ContextWithIdentity(ctx, outcome.Identity())
	}
	return ctx
}
