// internal/auth/manager/factory.go
package manager

import (
	"context"
	"crypto/x509"
	"fmt"

	"apikeyauth/internal/auth"
	"apikeyauth/internal/auth/apikey"
	"apikeyauth/internal/auth/bearer"
	"apikeyauth/internal/auth/mtls"
	"apikeyauth/internal/config"
	"apikeyauth/internal/keystore"
	"apikeyauth/internal/observability/logging"
	"apikeyauth/internal/observability/metrics"

	"github.com/samber/mo"
)

// NewManagerFromConfig creates a Manager with authenticators configured from
// application config. authCAs is the client CA pool of the TLS listener, if any.
func NewManagerFromConfig(ctx context.Context, cfg *config.Config, authCAs *x509.CertPool, logger *logging.Logger, metrics *metrics.Collector) (*Manager, error) {
	factoryLogger := logger.WithModule("auth.factory")
	var authenticators []auth.Authenticator
	var closers []func()

	// Order matters: mTLS, then API key, then Bearer

	if cfg.Auth.MTLS.Enabled {
		mtlsAuth, err := mtls.New(mtls.Config{
			CAPaths:         cfg.Auth.MTLS.CAPaths,
			AuthCAs:         authCAs,
			AllowDNSSubject: cfg.Auth.MTLS.AllowDNSSubject,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize mTLS authenticator: %w", err)
		}
		authenticators = append(authenticators, mtlsAuth)
		factoryLogger.Info("mTLS authentication enabled")
	}

	if cfg.Auth.APIKey.Enabled {
		apiKeyAuth, closeFn, err := newAPIKeyAuthenticator(cfg, logger, metrics)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize API key authenticator: %w", err)
		}
		if closeFn != nil {
			closers = append(closers, closeFn)
		}
		authenticators = append(authenticators, apiKeyAuth)
		factoryLogger.Info("API key authentication enabled",
			"scheme", apiKeyAuth.Name(),
			"header", cfg.Auth.APIKey.Header,
		)
	}

	if cfg.Auth.Bearer.Enabled {
		bearerAuth, err := bearer.New(ctx, bearer.Config{
			Issuer:   cfg.Auth.Bearer.Issuer,
			ClientID: cfg.Auth.Bearer.ClientID,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Bearer authenticator: %w", err)
		}
		authenticators = append(authenticators, bearerAuth)
		factoryLogger.Info("Bearer authentication enabled")
	}

	if len(authenticators) == 0 {
		factoryLogger.Warn("No authentication methods enabled")
	}

	m, err := NewManager(authenticators, cfg.Auth.ChallengeScheme, logger, metrics)
	if err != nil {
		for _, closeFn := range closers {
			closeFn()
		}
		return nil, err
	}
	m.closers = closers
	return m, nil
}

func newAPIKeyAuthenticator(cfg *config.Config, logger *logging.Logger, metrics *metrics.Collector) (*apikey.Authenticator, func(), error) {
	settings := cfg.Auth.APIKey

	store, err := keystore.Load(settings.KeysFile)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("API keys loaded", "count", store.Len())

	validator := apikey.WithTimeout(store, settings.ValidateTimeout)

	var closeFn func()
	if settings.CacheSize > 0 {
		cache, err := apikey.NewVerdictCache(settings.CacheSize, settings.CacheTTL)
		if err != nil {
			return nil, nil, err
		}
		validator = apikey.WithCache(validator, cache)
		closeFn = cache.Close
	}

	options := apikey.Options{
		Name:          settings.Name,
		Header:        settings.Header,
		Scheme:        settings.Scheme,
		EnableLogging: settings.Logging,
		Validator:     validator,
	}
	if settings.RejectOnError {
		options.OnFailure = RejectOnError
	}

	a, err := apikey.New(options, logger, metrics)
	if err != nil {
		if closeFn != nil {
			closeFn()
		}
		return nil, nil, err
	}
	return a, closeFn, nil
}

// RejectOnError is a failure hook that answers validator errors as failed
// authentication instead of a server error.
func RejectOnError(_ context.Context, event *apikey.FailureEvent) mo.Option[auth.Outcome] {
	return mo.Some(auth.Failed(event.Err))
}
