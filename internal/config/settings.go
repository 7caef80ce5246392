// internal/config/settings.go
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// SettingType represents the type of a setting
type SettingType string

const (
	// String type for string settings
	String SettingType = "string"
	// Bool type for boolean settings
	Bool SettingType = "bool"
	// Int type for integer settings
	Int SettingType = "int"
	// Duration type for settings parsed with time.ParseDuration
	Duration SettingType = "duration"
	// StringSlice type for string slice settings
	StringSlice SettingType = "stringSlice"
)

// EnvPrefix is prepended to every setting's environment variable
const EnvPrefix = "APIKEYAUTH"

// Setting defines a configuration setting
type Setting struct {
	// Name is the name of the setting
	Name string
	// Short is a short description of the setting
	Short string
	// Type is the type of the setting
	Type SettingType
	// Default is the default value of the setting
	Default interface{}
	// Env is the environment variable name for the setting, without EnvPrefix
	Env string
	// Required indicates whether the setting is required
	Required bool
}

// SettingList is a list of settings
type SettingList []Setting

// PopulateViperDefaults sets default values for all settings in Viper
func (sl SettingList) PopulateViperDefaults(v *viper.Viper) {
	for _, s := range sl {
		v.SetDefault(s.Name, s.Default)
	}
}

// CheckRequired returns an error naming the first required setting that is unset
func (sl SettingList) CheckRequired(v *viper.Viper) error {
	for _, s := range sl {
		if s.Required && strings.TrimSpace(v.GetString(s.Name)) == "" {
			return fmt.Errorf("%s_%s is required: %s", EnvPrefix, s.Env, s.Short)
		}
	}
	return nil
}

// Settings defines all application settings
var Settings = SettingList{
	// Server settings
	{
		Name:    "SERVER_ADDR",
		Short:   "Address on which the server listens",
		Type:    String,
		Default: ":8000",
		Env:     "SERVER_ADDR",
	},
	{
		Name:    "METRICS_ADDR",
		Short:   "Address on which the metrics server listens",
		Type:    String,
		Default: ":9090",
		Env:     "METRICS_ADDR",
	},
	{
		Name:    "SHUTDOWN_TIMEOUT",
		Short:   "Maximum time to wait for graceful shutdown",
		Type:    Duration,
		Default: "30s",
		Env:     "SHUTDOWN_TIMEOUT",
	},

	// TLS settings
	{
		Name:    "TLS_ENABLED",
		Short:   "Enable TLS for the server",
		Type:    Bool,
		Default: false,
		Env:     "TLS_ENABLED",
	},
	{
		Name:    "TLS_CERT_PATH",
		Short:   "Path to TLS certificate file",
		Type:    String,
		Default: "",
		Env:     "TLS_CERT_PATH",
	},
	{
		Name:    "TLS_KEY_PATH",
		Short:   "Path to TLS key file",
		Type:    String,
		Default: "",
		Env:     "TLS_KEY_PATH",
	},
	{
		Name:    "TLS_CA_PATH",
		Short:   "Path to TLS CA certificate file",
		Type:    String,
		Default: "",
		Env:     "TLS_CA_PATH",
	},

	// Upstream settings
	{
		Name:     "UPSTREAM_URL",
		Short:    "URL of the upstream service",
		Type:     String,
		Default:  "",
		Env:      "UPSTREAM_URL",
		Required: true,
	},
	{
		Name:    "UPSTREAM_TIMEOUT",
		Short:   "Timeout for upstream requests",
		Type:    Duration,
		Default: "30s",
		Env:     "UPSTREAM_TIMEOUT",
	},

	// Authentication
	{
		Name:    "AUTH_CHALLENGE_SCHEME",
		Short:   "Scheme that challenges unauthenticated requests (empty = first able to)",
		Type:    String,
		Default: "",
		Env:     "AUTH_CHALLENGE_SCHEME",
	},

	// Authentication: API key
	{
		Name:    "AUTH_APIKEY_ENABLED",
		Short:   "Enable API key authentication",
		Type:    Bool,
		Default: true,
		Env:     "AUTH_APIKEY_ENABLED",
	},
	{
		Name:    "AUTH_APIKEY_NAME",
		Short:   "Scheme name reported for API key identities",
		Type:    String,
		Default: "ApiKeyToken",
		Env:     "AUTH_APIKEY_NAME",
	},
	{
		Name:    "AUTH_APIKEY_HEADER",
		Short:   "Header carrying the API key",
		Type:    String,
		Default: "X-API-KEY",
		Env:     "AUTH_APIKEY_HEADER",
	},
	{
		Name:    "AUTH_APIKEY_SCHEME",
		Short:   "Prefix expected before the key in the header (empty = none)",
		Type:    String,
		Default: "",
		Env:     "AUTH_APIKEY_SCHEME",
	},
	{
		Name:    "AUTH_APIKEY_LOGGING",
		Short:   "Log every API key authentication attempt",
		Type:    Bool,
		Default: false,
		Env:     "AUTH_APIKEY_LOGGING",
	},
	{
		Name:    "AUTH_APIKEY_KEYS_FILE",
		Short:   "YAML file listing accepted API keys",
		Type:    String,
		Default: "",
		Env:     "AUTH_APIKEY_KEYS_FILE",
	},
	{
		Name:    "AUTH_APIKEY_VALIDATE_TIMEOUT",
		Short:   "Upper bound on one key validation (0 = none)",
		Type:    Duration,
		Default: "0s",
		Env:     "AUTH_APIKEY_VALIDATE_TIMEOUT",
	},
	{
		Name:    "AUTH_APIKEY_CACHE_SIZE",
		Short:   "Number of cached validation verdicts (0 = no cache)",
		Type:    Int,
		Default: 0,
		Env:     "AUTH_APIKEY_CACHE_SIZE",
	},
	{
		Name:    "AUTH_APIKEY_CACHE_TTL",
		Short:   "Lifetime of a cached validation verdict",
		Type:    Duration,
		Default: "5m",
		Env:     "AUTH_APIKEY_CACHE_TTL",
	},
	{
		Name:    "AUTH_APIKEY_REJECT_ON_ERROR",
		Short:   "Answer validator errors with 401 instead of 500",
		Type:    Bool,
		Default: false,
		Env:     "AUTH_APIKEY_REJECT_ON_ERROR",
	},

	// Authentication: mTLS
	{
		Name:    "AUTH_MTLS_ENABLED",
		Short:   "Enable mTLS authentication",
		Type:    Bool,
		Default: false,
		Env:     "AUTH_MTLS_ENABLED",
	},
	{
		Name:    "AUTH_MTLS_CA_PATHS",
		Short:   "Paths to CA certificates for client verification",
		Type:    StringSlice,
		Default: []string{},
		Env:     "AUTH_MTLS_CA_PATHS",
	},
	{
		Name:    "AUTH_MTLS_ALLOW_DNS_SUBJECT",
		Short:   "Use the first DNS name as subject when a certificate has no CN",
		Type:    Bool,
		Default: false,
		Env:     "AUTH_MTLS_ALLOW_DNS_SUBJECT",
	},

	// Authentication: Bearer
	{
		Name:    "AUTH_BEARER_ENABLED",
		Short:   "Enable Bearer token authentication",
		Type:    Bool,
		Default: false,
		Env:     "AUTH_BEARER_ENABLED",
	},
	{
		Name:    "AUTH_BEARER_ISSUER",
		Short:   "Bearer token issuer",
		Type:    String,
		Default: "",
		Env:     "AUTH_BEARER_ISSUER",
	},
	{
		Name:    "AUTH_BEARER_CLIENT_ID",
		Short:   "Bearer token client ID",
		Type:    String,
		Default: "",
		Env:     "AUTH_BEARER_CLIENT_ID",
	},

	// Observability
	{
		Name:    "LOG_LEVEL",
		Short:   "Logging level",
		Type:    String,
		Default: "info",
		Env:     "LOG_LEVEL",
	},
	{
		Name:    "LOG_FORMAT",
		Short:   "Logging format (json, text, console)",
		Type:    String,
		Default: "json",
		Env:     "LOG_FORMAT",
	},
}
