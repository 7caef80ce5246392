package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutcomeVariants(t *testing.T) {
	identity := &Identity{Subject: "TestUser"}

	tests := []struct {
		name      string
		outcome   Outcome
		kind      Kind
		succeeded bool
		failed    bool
		none      bool
		text      string
	}{
		{"zero value", Outcome{}, NoResultKind, false, false, true, "no_result"},
		{"no result", NoResult(), NoResultKind, false, false, true, "no_result"},
		{"authenticated", Authenticated(identity, "ApiKeyToken"), AuthenticatedKind, true, false, false, "authenticated(TestUser, ApiKeyToken)"},
		{"failed", FailedMessage("No credentials"), FailedKind, false, true, false, "failed(No credentials)"},
		{"failed nil error", Failed(nil), FailedKind, false, true, false, "failed(authentication failed)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, tt.outcome.Kind())
			assert.Equal(t, tt.succeeded, tt.outcome.Succeeded())
			assert.Equal(t, tt.failed, tt.outcome.IsFailed())
			assert.Equal(t, tt.none, tt.outcome.None())
			assert.Equal(t, tt.text, tt.outcome.String())
		})
	}
}

func TestIdentityHasClaim(t *testing.T) {
	identity := &Identity{
		Subject: "TestUser",
		Claims:  map[string][]string{"TestClaim": {"Test"}, "role": {"reader", "writer"}},
	}

	assert.True(t, identity.HasClaim("TestClaim"))
	assert.True(t, identity.HasClaim("role", "admin", "writer"))
	assert.False(t, identity.HasClaim("role", "admin"))
	assert.False(t, identity.HasClaim("missing"))

	var nilIdentity *Identity
	assert.False(t, nilIdentity.HasClaim("TestClaim"))
}

func TestIdentityClone(t *testing.T) {
	original := &Identity{
		Subject:    "TestUser",
		Claims:     map[string][]string{"TestClaim": {"Test"}},
		Attributes: map[string]interface{}{"issuer": "keys.yaml"},
	}

	clone := original.Clone()
	require.NotSame(t, original, clone)
	assert.Equal(t, original, clone)

	clone.Claims["TestClaim"][0] = "changed"
	clone.Claims["Other"] = nil
	clone.Attributes["issuer"] = "changed"

	assert.Equal(t, []string{"Test"}, original.Claims["TestClaim"])
	assert.NotContains(t, original.Claims, "Other")
	assert.Equal(t, "keys.yaml", original.Attributes["issuer"])

	var none *Identity
	assert.Nil(t, none.Clone())
}

func TestContextWithOutcome(t *testing.T) {
	_, ok := OutcomeFromContext(context.Background())
	assert.False(t, ok)

	identity := &Identity{Subject: "TestUser"}
	ctx := ContextWithOutcome(context.Background(), Authenticated(identity, "ApiKeyToken"))

	outcome, ok := OutcomeFromContext(ctx)
	require.True(t, ok)
	assert.True(t, outcome.Succeeded())
	assert.Same(t, identity, IdentityFromContext(ctx))

	ctx = ContextWithOutcome(context.Background(), FailedMessage("invalid api key"))
	assert.Nil(t, IdentityFromContext(ctx))
}
