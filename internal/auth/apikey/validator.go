package apikey

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"apikeyauth/internal/auth"
)

// ErrValidatorPanic wraps a panic recovered from a Validator.
var ErrValidatorPanic = errors.New("credential validator panicked")

// ValidationRequest carries one extracted credential to a Validator.
type ValidationRequest struct {
	// Credential is the header value with the scheme prefix removed and
	// surrounding whitespace trimmed. Never empty.
	Credential string

	// Request is the request being authenticated
	Request *http.Request

	// Scheme is the name of the calling authenticator
	Scheme string
}

// Verdict is a Validator's answer: success with an identity, failure with a
// reason, or no opinion. The zero value is no opinion.
type Verdict struct {
	identity *auth.Identity
	failure  error
}

// Success accepts the credential as identity.
func Success(identity *auth.Identity) Verdict {
	return Verdict{identity: identity}
}

// Fail rejects the credential.
func Fail(reason error) Verdict {
	if reason == nil {
		reason = errors.New("credential rejected")
	}
	return Verdict{failure: reason}
}

// FailMessage rejects the credential with a textual reason.
func FailMessage(reason string) Verdict {
	return Fail(errors.New(reason))
}

// Defer expresses no opinion on the credential.
func Defer() Verdict {
	return Verdict{}
}

// Succeeded reports whether the verdict accepts the credential.
func (v Verdict) Succeeded() bool { return v.identity != nil }

// Failed reports whether the verdict rejects the credential.
func (v Verdict) Failed() bool { return v.identity == nil && v.failure != nil }

// Deferred reports whether the validator left the decision open.
func (v Verdict) Deferred() bool { return v.identity == nil && v.failure == nil }

// Identity returns the accepted identity, or nil.
func (v Verdict) Identity() *auth.Identity { return v.identity }

// Failure returns the rejection reason, or nil.
func (v Verdict) Failure() error { return v.failure }

// Validator checks an extracted credential. An error is not a rejection: it
// means the check itself could not be performed.
type Validator interface {
	Validate(ctx context.Context, req *ValidationRequest) (Verdict, error)
}

// ValidatorFunc adapts a function to the Validator interface.
type ValidatorFunc func(ctx context.Context, req *ValidationRequest) (Verdict, error)

// Validate calls f.
func (f ValidatorFunc) Validate(ctx context.Context, req *ValidationRequest) (Verdict, error) {
	return f(ctx, req)
}

// invoke runs v and turns a panic into an error.
func invoke(ctx context.Context, v Validator, req *ValidationRequest) (verdict Verdict, err error) {
	defer func() {
		if p := recover(); p != nil {
			verdict = Verdict{}
			err = fmt.Errorf("%w: %v", ErrValidatorPanic, p)
		}
	}()
	return v.Validate(ctx, req)
}

// WithTimeout bounds each call to v. When the deadline passes first the call
// returns an error wrapping context.DeadlineExceeded and the late verdict is
// dropped. The call to v keeps running in its goroutine until v returns, so a
// validator that ignores ctx can accumulate goroutines while its backend is
// slow. A non-positive timeout returns v unchanged.
func WithTimeout(v Validator, timeout time.Duration) Validator {
	if timeout <= 0 {
		return v
	}

	type result struct {
		verdict Verdict
		err     error
	}

	return ValidatorFunc(func(ctx context.Context, req *ValidationRequest) (Verdict, error) {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		done := make(chan result, 1)
		go func() {
			verdict, err := invoke(ctx, v, req)
			done <- result{verdict: verdict, err: err}
		}()

		select {
		case res := <-done:
			return res.verdict, res.err
		case <-ctx.Done():
			return Verdict{}, fmt.Errorf("credential validation did not finish within %s: %w", timeout, ctx.Err())
		}
	})
}
