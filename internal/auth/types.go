package auth

import (
	"maps"
	"net/http"
	"slices"

	"github.com/samber/lo"
)

// Identity represents an authenticated identity
type Identity struct {
	// Subject is the principal name of this identity
	Subject string

	// Provider is the name of the scheme that authenticated it
	Provider string

	// Claims are the typed attributes authorization policies match on.
	// A claim type may carry several values.
	Claims map[string][]string

	// Attributes contains additional scheme specific information
	Attributes map[string]interface{}
}

// Clone returns a copy of i that shares no claim slices or maps with it.
// Attribute values themselves are not copied.
func (i *Identity) Clone() *Identity {
	if i == nil {
		return nil
	}
	c := *i
	if i.Claims != nil {
		c.Claims = lo.MapValues(i.Claims, func(values []string, _ string) []string {
			return slices.Clone(values)
		})
	}
	c.Attributes = maps.Clone(i.Attributes)
	return &c
}

// HasClaim reports whether the identity carries claimType. With no values
// any value matches; otherwise at least one of values must be present.
func (i *Identity) HasClaim(claimType string, values ...string) bool {
	if i == nil {
		return false
	}
	have, ok := i.Claims[claimType]
	if !ok {
		return false
	}
	if len(values) == 0 {
		return true
	}
	for _, want := range values {
		for _, got := range have {
			if got == want {
				return true
			}
		}
	}
	return false
}

// Authenticator inspects a request and classifies it as authenticated, not
// attempted or failed. A non-nil error means the scheme itself broke and the
// request must not be answered as a plain authentication failure.
type Authenticator interface {
	// Name returns the scheme name of this authenticator
	Name() string

	// Authenticate runs the scheme against the request
	Authenticate(r *http.Request) (Outcome, error)
}

// Challenger is implemented by schemes that know how to ask a client for
// credentials.
type Challenger interface {
	// Challenge writes the rejection response for r
	Challenge(w http.ResponseWriter, r *http.Request)
}
