// Package apikey authenticates requests by an API key carried in a
// configurable header, optionally behind a scheme prefix.
//
// The authenticator only extracts the key and classifies the result. Whether
// a key is valid is decided by the Validator supplied in Options.
package apikey

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"apikeyauth/internal/auth"
	"apikeyauth/internal/observability/logging"
	"apikeyauth/internal/observability/metrics"
)

// ErrNoCredentials is the failure reason when the scheme prefix is present
// but nothing follows it.
var ErrNoCredentials = errors.New("no credentials")

const (
	msgFailed    = "Authentication failed"
	msgSucceeded = "Authentication succeeded"

	reasonNoHeader      = "No Http Header Sent"
	reasonSchemeMissing = "Security Scheme not presented"
	reasonNoKey         = "No Api Key present"
	reasonRejected      = "Validate Credentials returned failure"
	reasonNoResult      = "Authentication hit final no results. Something may be wrong with the authentication setup"
	reasonUnknown       = "Authentication failed for an unknown reason"
)

// Authenticator implements API key authentication. It holds no per-request
// state and is safe for concurrent use.
type Authenticator struct {
	options   Options
	challenge string
	logger    *logging.Logger
	metrics   *metrics.Collector
}

// New creates an API key authenticator. The Validator is required.
func New(options Options, logger *logging.Logger, metrics *metrics.Collector) (*Authenticator, error) {
	if options.Validator == nil {
		return nil, fmt.Errorf("API key authentication requires a credential validator")
	}
	options = options.withDefaults()

	return &Authenticator{
		options:   options,
		challenge: strings.TrimSpace(options.Header + " " + options.Scheme),
		logger:    logger.WithModule("auth.apikey"),
		metrics:   metrics,
	}, nil
}

// Name returns the scheme name of this authenticator
func (a *Authenticator) Name() string {
	return a.options.Name
}

// Options returns a copy of the effective configuration.
func (a *Authenticator) Options() Options {
	return a.options
}

// Authenticate extracts the API key from r and asks the Validator about it.
//
// A missing header or a missing scheme prefix yields NoResult so that other
// schemes can still run. A prefix with nothing after it yields Failed. A
// Validator error is passed to OnFailure; if that does not supply an outcome
// the error is returned. Repeated header values are joined with commas, so
// a second key is never silently ignored.
func (a *Authenticator) Authenticate(r *http.Request) (auth.Outcome, error) {
	header := strings.Join(r.Header.Values(a.options.Header), ",")
	if strings.TrimSpace(header) == "" {
		a.logFailure(r, reasonNoHeader)
		return auth.NoResult(), nil
	}

	if a.options.Scheme != "" && !hasSchemePrefix(header, a.options.Scheme) {
		a.logFailure(r, reasonSchemeMissing)
		return auth.NoResult(), nil
	}

	credential := strings.TrimSpace(header[len(a.options.Scheme):])
	if credential == "" {
		a.logFailure(r, reasonNoKey)
		return auth.Failed(ErrNoCredentials), nil
	}

	verdict, err := invoke(r.Context(), a.options.Validator, &ValidationRequest{
		Credential: credential,
		Request:    r,
		Scheme:     a.options.Name,
	})
	if err != nil {
		return a.handleValidatorError(r, err)
	}

	switch {
	case verdict.Succeeded():
		identity := verdict.Identity()
		a.log(r, slog.LevelInfo, msgSucceeded, "name", identity.Subject)
		return auth.Authenticated(identity, a.options.Name), nil
	case verdict.Failed():
		a.logFailure(r, reasonRejected)
		return auth.Failed(verdict.Failure()), nil
	default:
		a.logFailure(r, reasonNoResult)
		return auth.NoResult(), nil
	}
}

// Challenge answers 401 and names the expected header and scheme in
// WWW-Authenticate. No body is written.
func (a *Authenticator) Challenge(w http.ResponseWriter, r *http.Request) {
	w.Header().Add("WWW-Authenticate", a.challenge)
	w.WriteHeader(http.StatusUnauthorized)
}

func (a *Authenticator) handleValidatorError(r *http.Request, err error) (auth.Outcome, error) {
	if a.options.OnFailure != nil {
		event := &FailureEvent{Err: err, Request: r, Scheme: a.options.Name}
		if outcome, ok := a.options.OnFailure(r.Context(), event).Get(); ok {
			a.metrics.RecordValidatorError(a.options.Name, true)
			return outcome, nil
		}
	}

	a.metrics.RecordValidatorError(a.options.Name, false)
	a.log(r, slog.LevelWarn, msgFailed, "reason", reasonUnknown, logging.Err(err))
	return auth.Outcome{}, fmt.Errorf("%s: validating credentials: %w", a.options.Name, err)
}

func (a *Authenticator) logFailure(r *http.Request, reason string) {
	a.log(r, slog.LevelInfo, msgFailed, "reason", reason)
}

// log is the only place the authenticator writes log records. Nothing is
// formatted when logging is disabled.
func (a *Authenticator) log(r *http.Request, level slog.Level, msg string, args ...any) {
	if !a.options.EnableLogging {
		return
	}

	ctx := r.Context()
	logger := logging.LoggerOrDefault(ctx, a.logger)
	attrs := make([]any, 0, 6+len(args))
	attrs = append(attrs,
		"method", r.Method,
		"url", logging.RequestURL(r),
		"remote_addr", r.RemoteAddr,
	)
	attrs = append(attrs, args...)
	logger.Log(ctx, level, msg, attrs...)
}

// hasSchemePrefix reports whether header starts with scheme followed by a
// space, ignoring case.
func hasSchemePrefix(header, scheme string) bool {
	prefixLen := len(scheme) + 1
	if len(header) < prefixLen {
		return false
	}
	return strings.EqualFold(header[:prefixLen], scheme+" ")
}
