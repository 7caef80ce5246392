// internal/auth/bearer/authenticator.go
package bearer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"apikeyauth/internal/auth"
	"apikeyauth/internal/observability/logging"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/exp/slices"
)

// Name is the scheme name reported for token authenticated identities
const Name = "bearer"

var (
	// ErrEmptyToken is the failure reason for "Bearer" with nothing after it
	ErrEmptyToken = errors.New("empty bearer token")

	// ErrAudienceMismatch is the failure reason for a token issued to another client
	ErrAudienceMismatch = errors.New("bearer token audience mismatch")
)

const prefix = "bearer "

// Authenticator implements Bearer token authentication
type Authenticator struct {
	logger   *logging.Logger
	verifier *oidc.IDTokenVerifier
	clientID string
}

// Config holds Bearer authenticator configuration
type Config struct {
	// Issuer is the token issuer URL
	Issuer string

	// ClientID is the client ID for token validation
	ClientID string
}

// audiences helps unmarshall the audience claim which can be either a string or an array
type audiences []string

func (a *audiences) UnmarshalJSON(data []byte) error {
	// Try as a single string
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*a = []string{single}
		return nil
	}

	// Try as an array of strings
	var multiple []string
	if err := json.Unmarshal(data, &multiple); err == nil {
		*a = multiple
		return nil
	}

	return fmt.Errorf("invalid audience claim format")
}

// New creates a Bearer authenticator, discovering the issuer's keys
func New(ctx context.Context, config Config, logger *logging.Logger) (*Authenticator, error) {
	if config.Issuer == "" {
		return nil, fmt.Errorf("Bearer authentication enabled but no issuer provided")
	}

	if config.ClientID == "" {
		return nil, fmt.Errorf("Bearer authentication enabled but no client ID provided")
	}

	logger.Debug("Initializing OIDC provider for Bearer authentication", "issuer", config.Issuer)
	provider, err := oidc.NewProvider(ctx, config.Issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OIDC provider for Bearer: %w", err)
	}

	verifier := provider.Verifier(&oidc.Config{
		ClientID:          config.ClientID,
		SkipClientIDCheck: true, // audience and azp are checked together below
	})

	return NewWithVerifier(verifier, config.ClientID, logger), nil
}

// NewWithVerifier creates a Bearer authenticator around an existing verifier
func NewWithVerifier(verifier *oidc.IDTokenVerifier, clientID string, logger *logging.Logger) *Authenticator {
	return &Authenticator{
		logger:   logger.WithModule("auth.bearer"),
		verifier: verifier,
		clientID: clientID,
	}
}

// Name returns the name of this authenticator
func (a *Authenticator) Name() string {
	return Name
}

// Authenticate verifies an Authorization: Bearer token. Requests without one
// are not attempted; a token that was presented but does not verify fails.
func (a *Authenticator) Authenticate(r *http.Request) (auth.Outcome, error) {
	ctx := r.Context()
	logger := logging.LoggerOrDefault(ctx, a.logger)

	header := r.Header.Get("Authorization")
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		logger.Debug("No Bearer token found")
		return auth.NoResult(), nil
	}

	tokenStr := strings.TrimSpace(header[len(prefix):])
	if tokenStr == "" {
		return auth.Failed(ErrEmptyToken), nil
	}

	idToken, err := a.verifier.Verify(ctx, tokenStr)
	if err != nil {
		logger.Info("Bearer token verification failed", logging.Err(err))
		return auth.Failed(fmt.Errorf("verifying bearer token: %w", err)), nil
	}

	var claims struct {
		Subject string    `json:"sub"`
		Azp     string    `json:"azp,omitempty"`
		Aud     audiences `json:"aud,omitempty"`
		Scope   string    `json:"scope,omitempty"`
	}
	if err := idToken.Claims(&claims); err != nil {
		logger.Info("Failed to parse claims from Bearer token", logging.Err(err))
		return auth.Failed(fmt.Errorf("parsing bearer token claims: %w", err)), nil
	}

	if claims.Azp != a.clientID && !slices.Contains(claims.Aud, a.clientID) {
		logger.Info("Bearer token audience mismatch",
			"expectedClientID", a.clientID,
			"aud", claims.Aud,
			"azp", claims.Azp,
		)
		return auth.Failed(ErrAudienceMismatch), nil
	}

	identity := &auth.Identity{
		Subject:  claims.Subject,
		Provider: Name,
		Claims:   map[string][]string{},
		Attributes: map[string]interface{}{
			"issuer": idToken.Issuer,
			"expiry": idToken.Expiry,
		},
	}
	if scopes := strings.Fields(claims.Scope); len(scopes) > 0 {
		identity.Claims["scope"] = scopes
	}

	logger.Debug("Bearer token valid", "subject", claims.Subject, "path", r.URL.Path)
	return auth.Authenticated(identity, Name), nil
}

// Challenge asks the client for a bearer token
func (a *Authenticator) Challenge(w http.ResponseWriter, r *http.Request) {
	w.Header().Add("WWW-Authenticate", "Bearer")
	w.WriteHeader(http.StatusUnauthorized)
}
