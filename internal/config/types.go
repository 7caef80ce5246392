// internal/config/types.go
package config

import (
	"net/url"
	"time"

	"apikeyauth/internal/authz/policy"
)

// Config represents the complete application configuration
type Config struct {
	// Server holds HTTP server configuration
	Server struct {
		// Address is the address to listen on
		Address string
		// ShutdownTimeout is the maximum time to wait for a graceful shutdown
		ShutdownTimeout time.Duration
	}

	// Metrics holds metrics server configuration
	Metrics struct {
		// Address is the address to listen on for the metrics server
		Address string
	}

	// TLS holds TLS configuration
	TLS struct {
		// Enabled indicates whether TLS is enabled
		Enabled bool
		// CertPath is the path to the TLS certificate
		CertPath string
		// KeyPath is the path to the TLS key
		KeyPath string
		// CAPath is the path to the CA certificate for client verification
		CAPath string
	}

	// Upstream holds configuration for the upstream service
	Upstream struct {
		// URL is the URL of the upstream service
		URL *url.URL
		// Timeout is the maximum time to wait for upstream responses
		Timeout time.Duration
	}

	// Auth holds authentication configuration
	Auth struct {
		// ChallengeScheme names the scheme that answers unauthenticated
		// requests. Empty picks the first scheme able to challenge.
		ChallengeScheme string

		// APIKey holds API key authentication configuration
		APIKey struct {
			// Enabled indicates whether API key authentication is enabled
			Enabled bool
			// Name is the scheme name reported for authenticated requests
			Name string
			// Header is the request header carrying the key
			Header string
			// Scheme is the optional prefix expected before the key
			Scheme string
			// Logging enables per-request authentication logging
			Logging bool
			// KeysFile is the YAML file holding the accepted keys
			KeysFile string
			// ValidateTimeout bounds one key validation, zero disables it
			ValidateTimeout time.Duration
			// CacheSize is the number of cached verdicts, zero disables caching
			CacheSize int64
			// CacheTTL is how long a cached verdict is kept
			CacheTTL time.Duration
			// RejectOnError answers validator errors with 401 instead of 500
			RejectOnError bool
		}

		// MTLS holds mTLS authentication configuration
		MTLS struct {
			// Enabled indicates whether mTLS authentication is enabled
			Enabled bool
			// CAPaths is a list of paths to CA certificates for client verification
			CAPaths []string
			// AllowDNSSubject uses the first DNS name when a certificate has no CN
			AllowDNSSubject bool
		}

		// Bearer holds Bearer token authentication configuration
		Bearer struct {
			// Enabled indicates whether Bearer token authentication is enabled
			Enabled bool
			// Issuer is the JWT issuer URL
			Issuer string
			// ClientID is the client ID for token validation
			ClientID string
		}
	}

	// Observability holds observability configuration
	Observability struct {
		// LogLevel is the minimum log level to emit
		LogLevel string
		// LogFormat is the log format (json, text, console)
		LogFormat string
	}

	// Policies holds the named authorization policies
	Policies []policy.Policy

	// Rules holds route rules configuration
	Rules []Rule
}

// Rule defines a routing rule for the proxy
type Rule struct {
	// Name is a unique identifier for the rule
	Name string `mapstructure:"name"`

	// Action determines what action to take for matched requests
	// Can be "allow", "deny", or "authenticate"
	Action string `mapstructure:"action"`

	// Paths is a list of URL paths this rule applies to
	Paths []string `mapstructure:"paths"`

	// MatchPrefix indicates whether to match the path prefix instead of exact match
	MatchPrefix bool `mapstructure:"match_prefix"`

	// Methods is a list of HTTP methods this rule applies to (empty = all methods)
	Methods []string `mapstructure:"methods"`

	// Policy is the authorization policy for the "authenticate" action.
	// Empty admits any authenticated identity.
	Policy string `mapstructure:"policy"`
}

// DefaultRules returns the rules used when none are configured: every path
// requires an authenticated identity.
func DefaultRules() []Rule {
	return []Rule{{
		Name:        "default",
		Action:      "authenticate",
		Paths:       []string{"/"},
		MatchPrefix: true,
	}}
}
