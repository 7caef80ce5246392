package apikey

import (
	"context"
	"net/http"

	"apikeyauth/internal/auth"

	"github.com/samber/mo"
)

const (
	// DefaultName is the scheme name reported on authenticated outcomes
	DefaultName = "ApiKeyToken"

	// DefaultHeader is the request header the key is read from
	DefaultHeader = "X-API-KEY"
)

// FailureHandler is invoked when the Validator returns an error or panics.
// Returning Some replaces the error with that outcome; None lets the error
// propagate to the caller.
type FailureHandler func(ctx context.Context, event *FailureEvent) mo.Option[auth.Outcome]

// Options configures an Authenticator. The struct is copied by New, so later
// changes to the caller's value have no effect.
type Options struct {
	// Name is the scheme name carried by authenticated outcomes
	Name string

	// Header is the request header holding the credential
	Header string

	// Scheme is an optional prefix expected in front of the credential,
	// as in "<Header>: <Scheme> <credential>". Matched case-insensitively.
	Scheme string

	// EnableLogging turns on the authenticator's own log records
	EnableLogging bool

	// Validator turns a raw credential into a verdict. Required.
	Validator Validator

	// OnFailure optionally recovers from Validator errors
	OnFailure FailureHandler
}

func (o Options) withDefaults() Options {
	if o.Name == "" {
		o.Name = DefaultName
	}
	if o.Header == "" {
		o.Header = DefaultHeader
	}
	return o
}

// FailureEvent describes a Validator error handed to the FailureHandler.
type FailureEvent struct {
	// Err is the error returned (or the panic raised) by the Validator
	Err error

	// Request is the request being authenticated
	Request *http.Request

	// Scheme is the name of the authenticator that raised the event
	Scheme string
}
