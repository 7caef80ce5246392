// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"apikeyauth/internal/authz/policy"

	"github.com/spf13/viper"
)

// Load loads the configuration from all sources and returns the merged result
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set default values
	Settings.PopulateViperDefaults(v)

	// Set up environment variable handling
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	// Load from config file if specified
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			// It's okay if the config file doesn't exist, but other errors should be reported
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	if err := Settings.CheckRequired(v); err != nil {
		return nil, err
	}

	config := &Config{}
	var err error

	// Populate server configuration
	config.Server.Address = v.GetString("SERVER_ADDR")
	if config.Server.ShutdownTimeout, err = duration(v, "SHUTDOWN_TIMEOUT"); err != nil {
		return nil, err
	}

	// Populate metrics configuration
	config.Metrics.Address = v.GetString("METRICS_ADDR")

	// Populate TLS configuration
	config.TLS.Enabled = v.GetBool("TLS_ENABLED")
	config.TLS.CertPath = v.GetString("TLS_CERT_PATH")
	config.TLS.KeyPath = v.GetString("TLS_KEY_PATH")
	config.TLS.CAPath = v.GetString("TLS_CA_PATH")

	// Populate upstream configuration
	upstreamURL, err := url.Parse(v.GetString("UPSTREAM_URL"))
	if err != nil {
		return nil, fmt.Errorf("invalid upstream URL: %w", err)
	}
	config.Upstream.URL = upstreamURL
	if config.Upstream.Timeout, err = duration(v, "UPSTREAM_TIMEOUT"); err != nil {
		return nil, err
	}

	// Populate authentication configuration
	config.Auth.ChallengeScheme = v.GetString("AUTH_CHALLENGE_SCHEME")

	// API key
	apiKey := &config.Auth.APIKey
	apiKey.Enabled = v.GetBool("AUTH_APIKEY_ENABLED")
	apiKey.Name = v.GetString("AUTH_APIKEY_NAME")
	apiKey.Header = v.GetString("AUTH_APIKEY_HEADER")
	apiKey.Scheme = v.GetString("AUTH_APIKEY_SCHEME")
	apiKey.Logging = v.GetBool("AUTH_APIKEY_LOGGING")
	apiKey.KeysFile = v.GetString("AUTH_APIKEY_KEYS_FILE")
	apiKey.CacheSize = v.GetInt64("AUTH_APIKEY_CACHE_SIZE")
	apiKey.RejectOnError = v.GetBool("AUTH_APIKEY_REJECT_ON_ERROR")
	if apiKey.ValidateTimeout, err = duration(v, "AUTH_APIKEY_VALIDATE_TIMEOUT"); err != nil {
		return nil, err
	}
	if apiKey.CacheTTL, err = duration(v, "AUTH_APIKEY_CACHE_TTL"); err != nil {
		return nil, err
	}

	// mTLS
	config.Auth.MTLS.Enabled = v.GetBool("AUTH_MTLS_ENABLED")
	config.Auth.MTLS.CAPaths = v.GetStringSlice("AUTH_MTLS_CA_PATHS")
	config.Auth.MTLS.AllowDNSSubject = v.GetBool("AUTH_MTLS_ALLOW_DNS_SUBJECT")

	// Bearer
	config.Auth.Bearer.Enabled = v.GetBool("AUTH_BEARER_ENABLED")
	config.Auth.Bearer.Issuer = v.GetString("AUTH_BEARER_ISSUER")
	config.Auth.Bearer.ClientID = v.GetString("AUTH_BEARER_CLIENT_ID")

	// Populate observability configuration
	config.Observability.LogLevel = v.GetString("LOG_LEVEL")
	config.Observability.LogFormat = v.GetString("LOG_FORMAT")

	// Policies and rules only come from the config file
	config.Policies = policy.DefaultPolicies()
	if v.IsSet("policies") {
		config.Policies = nil
		if err := v.UnmarshalKey("policies", &config.Policies); err != nil {
			return nil, fmt.Errorf("invalid policies: %w", err)
		}
	}

	config.Rules = DefaultRules()
	if v.IsSet("rules") {
		config.Rules = nil
		if err := v.UnmarshalKey("rules", &config.Rules); err != nil {
			return nil, fmt.Errorf("invalid rules: %w", err)
		}
	}

	// Validate the configuration
	if err := validateConfig(config); err != nil {
		return nil, err
	}

	return config, nil
}

func duration(v *viper.Viper, name string) (time.Duration, error) {
	d, err := time.ParseDuration(v.GetString(name))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", strings.ToLower(name), err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s: must not be negative", strings.ToLower(name))
	}
	return d, nil
}

// validateConfig performs validation on the loaded configuration
func validateConfig(cfg *Config) error {
	// Validate required fields
	if cfg.Upstream.URL == nil || cfg.Upstream.URL.Scheme == "" || cfg.Upstream.URL.Host == "" {
		return fmt.Errorf("upstream URL must be absolute")
	}

	// Validate TLS configuration
	if cfg.TLS.Enabled {
		if cfg.TLS.CertPath == "" {
			return fmt.Errorf("TLS certificate path is required when TLS is enabled")
		}
		if cfg.TLS.KeyPath == "" {
			return fmt.Errorf("TLS key path is required when TLS is enabled")
		}

		// Check if certificate and key files exist
		if _, err := os.Stat(cfg.TLS.CertPath); os.IsNotExist(err) {
			return fmt.Errorf("TLS certificate file not found: %s", cfg.TLS.CertPath)
		}
		if _, err := os.Stat(cfg.TLS.KeyPath); os.IsNotExist(err) {
			return fmt.Errorf("TLS key file not found: %s", cfg.TLS.KeyPath)
		}
	}

	// Validate authentication configurations
	if err := validateAuthConfig(cfg); err != nil {
		return err
	}

	return validateRules(cfg.Rules)
}

// validateAuthConfig validates authentication configuration
func validateAuthConfig(cfg *Config) error {
	// Validate API key configuration
	if apiKey := cfg.Auth.APIKey; apiKey.Enabled {
		if apiKey.Name == "" {
			return fmt.Errorf("API key scheme name must not be empty")
		}
		if apiKey.Header == "" {
			return fmt.Errorf("API key header must not be empty")
		}
		if apiKey.KeysFile == "" {
			return fmt.Errorf("API key file is required when API key authentication is enabled")
		}
		if _, err := os.Stat(apiKey.KeysFile); os.IsNotExist(err) {
			return fmt.Errorf("API key file not found: %s", apiKey.KeysFile)
		}
		if apiKey.CacheSize < 0 {
			return fmt.Errorf("API key cache size must not be negative")
		}
	}

	// Validate mTLS configuration
	if cfg.Auth.MTLS.Enabled {
		if !cfg.TLS.Enabled {
			return fmt.Errorf("mTLS authentication requires TLS to be enabled")
		}
		if len(cfg.Auth.MTLS.CAPaths) == 0 && cfg.TLS.CAPath == "" {
			return fmt.Errorf("at least one CA path is required when mTLS is enabled")
		}

		// Check if CA files exist
		for _, caPath := range cfg.Auth.MTLS.CAPaths {
			if _, err := os.Stat(caPath); os.IsNotExist(err) {
				return fmt.Errorf("mTLS CA file not found: %s", caPath)
			}
		}
	}

	// Validate Bearer configuration
	if cfg.Auth.Bearer.Enabled {
		if cfg.Auth.Bearer.Issuer == "" {
			return fmt.Errorf("Bearer issuer is required when Bearer is enabled")
		}
		if cfg.Auth.Bearer.ClientID == "" {
			return fmt.Errorf("Bearer client ID is required when Bearer is enabled")
		}
	}

	return nil
}

// validateRules checks that every rule can be matched
func validateRules(rules []Rule) error {
	seen := make(map[string]bool, len(rules))
	for i, rule := range rules {
		if rule.Name == "" {
			return fmt.Errorf("rule %d: name is required", i)
		}
		if seen[rule.Name] {
			return fmt.Errorf("rule %q: duplicate name", rule.Name)
		}
		seen[rule.Name] = true

		if len(rule.Paths) == 0 {
			return fmt.Errorf("rule %q: at least one path is required", rule.Name)
		}
	}
	return nil
}
