// internal/auth/manager/manager.go
package manager

import (
	"fmt"
	"net/http"

	"apikeyauth/internal/auth"
	"apikeyauth/internal/observability/logging"
	"apikeyauth/internal/observability/metrics"

	"github.com/samber/lo"
)

// outcomeError labels authentication attempts aborted by a scheme error
const outcomeError = "error"

// Manager coordinates multiple authentication methods
type Manager struct {
	logger         *logging.Logger
	metrics        *metrics.Collector
	authenticators []auth.Authenticator
	challenger     auth.Challenger
	closers        []func()
}

// NewManager creates a new authentication manager. Authenticators run in
// the given order. challengeScheme names the scheme answering requests that
// need credentials; empty picks the first authenticator able to challenge.
func NewManager(authenticators []auth.Authenticator, challengeScheme string, logger *logging.Logger, metrics *metrics.Collector) (*Manager, error) {
	if dup := lo.FindDuplicatesBy(authenticators, auth.Authenticator.Name); len(dup) > 0 {
		return nil, fmt.Errorf("authentication scheme %q registered twice", dup[0].Name())
	}

	challengers := lo.FilterMap(authenticators, func(a auth.Authenticator, _ int) (auth.Authenticator, bool) {
		_, ok := a.(auth.Challenger)
		return a, ok
	})

	var challenger auth.Challenger
	if challengeScheme != "" {
		a, ok := lo.Find(challengers, func(a auth.Authenticator) bool { return a.Name() == challengeScheme })
		if !ok {
			return nil, fmt.Errorf("challenge scheme %q is not an enabled scheme that can challenge", challengeScheme)
		}
		challenger = a.(auth.Challenger)
	} else if len(challengers) > 0 {
		challenger = challengers[0].(auth.Challenger)
	}

	return &Manager{
		logger:         logger.WithModule("auth.manager"),
		metrics:        metrics,
		authenticators: authenticators,
		challenger:     challenger,
	}, nil
}

// GetAuthenticators returns the list of enabled authenticators
func (m *Manager) GetAuthenticators() []auth.Authenticator {
	return m.authenticators
}

// Authenticate runs the authenticators in order. The first outcome other
// than NoResult is final. An error from any scheme aborts the chain.
func (m *Manager) Authenticate(r *http.Request) (auth.Outcome, error) {
	for _, a := range m.authenticators {
		outcome, err := a.Authenticate(r)
		if err != nil {
			m.metrics.RecordAuthentication(a.Name(), outcomeError)
			return auth.Outcome{}, err
		}

		m.metrics.RecordAuthentication(a.Name(), outcome.Kind().String())
		if !outcome.None() {
			return outcome, nil
		}
	}

	return auth.NoResult(), nil
}

// Middleware authenticates every request and records the outcome in the
// request context. It never rejects a request for lacking credentials;
// that is decided per route. A scheme error is answered with 500.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		logger := logging.LoggerOrDefault(ctx, m.logger)

		outcome, err := m.Authenticate(r)
		if err != nil {
			logger.Error("Authentication could not complete", logging.Err(err), "path", r.URL.Path)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		logger.Debug("Authentication finished", "outcome", outcome.String())
		next.ServeHTTP(w, r.WithContext(auth.ContextWithOutcome(ctx, outcome)))
	})
}

// Challenge asks the client for credentials using the challenge scheme,
// or answers a bare 401 when no scheme can challenge.
func (m *Manager) Challenge(w http.ResponseWriter, r *http.Request) {
	if m.challenger == nil {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	m.challenger.Challenge(w, r)
}

// Close releases resources held by the authenticators
func (m *Manager) Close() {
	for _, closeFn := range m.closers {
		closeFn()
	}
	m.closers = nil
}
