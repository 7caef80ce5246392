package auth

import (
	"errors"
)

// Kind tags an Outcome.
type Kind int

const (
	// NoResultKind means the scheme did not attempt authentication; other
	// schemes may still try.
	NoResultKind Kind = iota
	// AuthenticatedKind means the scheme produced an identity.
	AuthenticatedKind
	// FailedKind means the scheme tried and rejected the request.
	FailedKind
)

func (k Kind) String() string {
	switch k {
	case AuthenticatedKind:
		return "authenticated"
	case FailedKind:
		return "failed"
	default:
		return "no_result"
	}
}

// Outcome is the result of one authentication attempt. The zero value is
// NoResult.
type Outcome struct {
	kind     Kind
	identity *Identity
	scheme   string
	failure  error
}

// Authenticated builds a successful outcome for identity under scheme.
func Authenticated(identity *Identity, scheme string) Outcome {
	return Outcome{kind: AuthenticatedKind, identity: identity, scheme: scheme}
}

// NoResult builds an outcome meaning "not attempted".
func NoResult() Outcome {
	return Outcome{kind: NoResultKind}
}

// Failed builds a failed outcome carrying err.
func Failed(err error) Outcome {
	if err == nil {
		err = errors.New("authentication failed")
	}
	return Outcome{kind: FailedKind, failure: err}
}

// FailedMessage builds a failed outcome from a textual reason.
func FailedMessage(reason string) Outcome {
	return Failed(errors.New(reason))
}

// Kind reports which variant this outcome is.
func (o Outcome) Kind() Kind { return o.kind }

// Succeeded reports whether the outcome carries an identity.
func (o Outcome) Succeeded() bool { return o.kind == AuthenticatedKind }

// None reports whether the outcome is NoResult.
func (o Outcome) None() bool { return o.kind == NoResultKind }

// IsFailed reports whether the outcome is Failed.
func (o Outcome) IsFailed() bool { return o.kind == FailedKind }

// Identity returns the authenticated identity, nil unless Succeeded.
func (o Outcome) Identity() *Identity { return o.identity }

// Scheme returns the name of the scheme that authenticated the request.
func (o Outcome) Scheme() string { return o.scheme }

// Failure returns the failure reason, nil unless IsFailed.
func (o Outcome) Failure() error { return o.failure }

func (o Outcome) String() string {
	switch o.kind {
	case AuthenticatedKind:
		name := ""
		if o.identity != nil {
			name = o.identity.Subject
		}
		return "authenticated(" + name + ", " + o.scheme + ")"
	case FailedKind:
		return "failed(" + o.failure.Error() + ")"
	default:
		return "no_result"
	}
}
