// internal/server/factory.go
package server

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"

	"apikeyauth/internal/auth/manager"
	"apikeyauth/internal/authz/policy"
	"apikeyauth/internal/config"
	"apikeyauth/internal/observability"
	"apikeyauth/internal/proxy/router"
	tlsconfig "apikeyauth/internal/tls"
)

// NewFromConfig creates a new server from configuration
func NewFromConfig(ctx context.Context, cfg *config.Config) (*Server, error) {
	obs, err := observability.NewProvider(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize observability: %w", err)
	}
	logger := obs.Logger

	var tlsCfg *tls.Config
	var authCAs *x509.CertPool
	if cfg.TLS.Enabled {
		tlsSetup := &tlsconfig.Config{
			Logger:      logger.WithModule("tls"),
			RootCAPath:  cfg.TLS.CAPath,
			AuthCAFiles: cfg.Auth.MTLS.CAPaths,
			CertPath:    cfg.TLS.CertPath,
			KeyPath:     cfg.TLS.KeyPath,
		}

		tlsCfg, err = tlsSetup.GetTLSConfig()
		if err != nil {
			return nil, fmt.Errorf("failed to create TLS configuration: %w", err)
		}
		authCAs = tlsSetup.AuthCAs
	}

	authManager, err := manager.NewManagerFromConfig(ctx, cfg, authCAs, logger, obs.Metrics)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize authentication manager: %w", err)
	}

	authorizer, err := policy.New(cfg.Policies, logger, obs.Metrics)
	if err != nil {
		authManager.Close()
		return nil, fmt.Errorf("failed to initialize authorizer: %w", err)
	}

	proxyRouter := router.New(router.Config{
		UpstreamURL:     cfg.Upstream.URL,
		UpstreamTimeout: cfg.Upstream.Timeout,
		Rules:           convertRules(cfg.Rules),
	}, authManager, authorizer, logger, obs.Metrics)

	serverConfig := Config{
		Address:         cfg.Server.Address,
		MetricsAddress:  cfg.Metrics.Address,
		TLSConfig:       tlsCfg,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}

	// observability -> authentication -> router
	handler := obs.Middleware(authManager.Middleware(proxyRouter))

	srv := New(serverConfig, handler, obs.MetricsHandler(), logger)
	srv.onStop = append(srv.onStop, authManager.Close)
	return srv, nil
}

// convertRules converts config.Rule to router.Rule
func convertRules(configRules []config.Rule) []router.Rule {
	routerRules := make([]router.Rule, len(configRules))
	for i, rule := range configRules {
		routerRules[i] = router.Rule{
			Name:        rule.Name,
			Action:      rule.Action,
			Paths:       rule.Paths,
			MatchPrefix: rule.MatchPrefix,
			Methods:     rule.Methods,
			Policy:      rule.Policy,
		}
	}
	return routerRules
}
