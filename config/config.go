package config

import (
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/hashicorp/go-secure-stdlib/parseutil"
	"github.com/hashicorp/go-secure-stdlib/strutil"
	"github.com/hashicorp/hcl/v2/hclsimple"
)

// Environment variables recognized by regbridge. Values from an HCL config
// file take precedence over the environment.
const (
	EnvListenAddress             = "REGBRIDGE_LISTEN_ADDR"
	EnvLogLevel                  = "REGBRIDGE_LOG_LEVEL"
	EnvLogFormat                 = "REGBRIDGE_LOG_FORMAT"
	EnvLogFile                   = "REGBRIDGE_LOG_FILE"
	EnvIssuerPath                = "REGBRIDGE_ISSUER_PATH"
	EnvProfileID                 = "REGBRIDGE_OAUTH_PROFILE_ID"
	EnvAdminAPIBaseURL           = "REGBRIDGE_ADMIN_API_BASE_URL"
	EnvAdminAPIUsername          = "REGBRIDGE_ADMIN_API_USERNAME"
	EnvAdminAPIPassword          = "REGBRIDGE_ADMIN_API_PASSWORD"
	EnvAdminMaxRetries           = "REGBRIDGE_ADMIN_MAX_RETRIES"
	EnvAdminRateLimit            = "REGBRIDGE_ADMIN_RATE_LIMIT"
	EnvDefaultScopes             = "REGBRIDGE_SCOPES"
	EnvAllowedAuthenticators     = "REGBRIDGE_ALLOWED_AUTHENTICATORS"
	EnvIntrospectionBaseURL      = "REGBRIDGE_INTROSPECTION_BASE_URL"
	EnvIntrospectionPath         = "REGBRIDGE_INTROSPECTION_PATH"
	EnvIntrospectionClientID     = "REGBRIDGE_INTROSPECTION_CLIENT_ID"
	EnvIntrospectionClientSecret = "REGBRIDGE_INTROSPECTION_CLIENT_SECRET"
	EnvVerifyTLS                 = "REGBRIDGE_VERIFY_TLS"
	EnvDebug                     = "REGBRIDGE_DEBUG"
	EnvCacheBackend              = "REGBRIDGE_CACHE_BACKEND"
	EnvCacheTTL                  = "REGBRIDGE_CACHE_TTL"
	EnvCacheMaxEntries           = "REGBRIDGE_CACHE_MAX_ENTRIES"
	EnvClientTimeout             = "REGBRIDGE_CLIENT_TIMEOUT"
)

// Defaults applied when neither the config file nor the environment provides
// a value.
const (
	DefaultListenAddress     = "0.0.0.0:5555"
	DefaultIssuerPath        = "/~"
	DefaultProfileID         = "token-service"
	DefaultAdminAPIBaseURL   = "https://localhost:6749"
	DefaultAdminAPIUsername  = "admin"
	DefaultIntrospectionURL  = "http://localhost:8444"
	DefaultIntrospectionPath = "/oauth/v2/oauth-introspect"
	DefaultCacheBackend      = "ristretto"
	DefaultCacheTTL          = 60 * time.Second
	DefaultCacheMaxEntries   = 10_000
	DefaultClientTimeout     = 10 * time.Second
)

// Config is the process-wide configuration for the regbridge server.
// It is constructed once at startup and handed to each component's
// constructor; request-handling code never reads the environment.
type Config struct {
	ListenAddress string
	TLSCertFile   string
	TLSKeyFile    string

	LogLevel  string
	LogFormat string
	LogFile   string

	// IssuerPath is the base path the registration routes are mounted under.
	IssuerPath string

	// ProfileID is the OAuth profile the upstream clients are written into.
	ProfileID string

	AdminAPIBaseURL  string
	AdminAPIUsername string
	AdminAPIPassword string

	// AdminMaxRetries controls retrying of admin API calls on 5xx. Zero
	// means registration writes fail fast rather than retry silently.
	AdminMaxRetries int

	// AdminRateLimit caps outbound admin API calls per second. Zero means
	// unlimited.
	AdminRateLimit int

	// DefaultScopes seeds the scope list of every registered client.
	DefaultScopes []string

	// AllowedAuthenticators restricts interactive clients to the listed
	// authenticators. Empty means no restriction is written upstream.
	AllowedAuthenticators []string

	IntrospectionBaseURL      string
	IntrospectionPath         string
	IntrospectionClientID     string
	IntrospectionClientSecret string

	// VerifyTLS controls certificate verification for both outbound
	// surfaces (introspection and admin API). Default true.
	VerifyTLS bool

	// Debug enables debug-level logging regardless of LogLevel.
	Debug bool

	CacheBackend    string
	CacheTTL        time.Duration
	CacheMaxEntries int

	// ClientTimeout bounds every outbound call.
	ClientTimeout time.Duration
}

// fileConfig is the HCL representation of the config file.
type fileConfig struct {
	ListenAddress string `hcl:"listen_address,optional"`
	TLSCertFile   string `hcl:"tls_cert_file,optional"`
	TLSKeyFile    string `hcl:"tls_key_file,optional"`

	LogLevel  string `hcl:"log_level,optional"`
	LogFormat string `hcl:"log_format,optional"`
	LogFile   string `hcl:"log_file,optional"`

	IssuerPath string `hcl:"issuer_path,optional"`
	ProfileID  string `hcl:"oauth_profile_id,optional"`

	AdminAPIBaseURL  string `hcl:"admin_api_base_url,optional"`
	AdminAPIUsername string `hcl:"admin_api_username,optional"`
	AdminAPIPassword string `hcl:"admin_api_password,optional"`
	AdminMaxRetries  int    `hcl:"admin_max_retries,optional"`
	AdminRateLimit   int    `hcl:"admin_rate_limit,optional"`

	DefaultScopes         string `hcl:"scopes,optional"`
	AllowedAuthenticators string `hcl:"allowed_authenticators,optional"`

	IntrospectionBaseURL      string `hcl:"introspection_base_url,optional"`
	IntrospectionPath         string `hcl:"introspection_path,optional"`
	IntrospectionClientID     string `hcl:"introspection_client_id,optional"`
	IntrospectionClientSecret string `hcl:"introspection_client_secret,optional"`

	VerifyTLS string `hcl:"verify_tls,optional"`
	Debug     string `hcl:"debug,optional"`

	CacheBackend    string `hcl:"cache_backend,optional"`
	CacheTTL        string `hcl:"cache_ttl,optional"`
	CacheMaxEntries int    `hcl:"cache_max_entries,optional"`

	ClientTimeout string `hcl:"client_timeout,optional"`
}

// Load builds the configuration from the environment, overlaid with the
// optional HCL config file at configPath (empty means environment only).
func Load(configPath string) (*Config, error) {
	var fc fileConfig
	if configPath != "" {
		if err := hclsimple.DecodeFile(configPath, nil, &fc); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	cfg := &Config{
		ListenAddress:             firstNonEmpty(fc.ListenAddress, os.Getenv(EnvListenAddress), DefaultListenAddress),
		TLSCertFile:               fc.TLSCertFile,
		TLSKeyFile:                fc.TLSKeyFile,
		LogLevel:                  firstNonEmpty(fc.LogLevel, os.Getenv(EnvLogLevel), "info"),
		LogFormat:                 firstNonEmpty(fc.LogFormat, os.Getenv(EnvLogFormat), "default"),
		LogFile:                   firstNonEmpty(fc.LogFile, os.Getenv(EnvLogFile)),
		IssuerPath:                firstNonEmpty(fc.IssuerPath, os.Getenv(EnvIssuerPath), DefaultIssuerPath),
		ProfileID:                 firstNonEmpty(fc.ProfileID, os.Getenv(EnvProfileID), DefaultProfileID),
		AdminAPIBaseURL:           firstNonEmpty(fc.AdminAPIBaseURL, os.Getenv(EnvAdminAPIBaseURL), DefaultAdminAPIBaseURL),
		AdminAPIUsername:          firstNonEmpty(fc.AdminAPIUsername, os.Getenv(EnvAdminAPIUsername), DefaultAdminAPIUsername),
		AdminAPIPassword:          firstNonEmpty(fc.AdminAPIPassword, os.Getenv(EnvAdminAPIPassword)),
		IntrospectionBaseURL:      firstNonEmpty(fc.IntrospectionBaseURL, os.Getenv(EnvIntrospectionBaseURL), DefaultIntrospectionURL),
		IntrospectionPath:         firstNonEmpty(fc.IntrospectionPath, os.Getenv(EnvIntrospectionPath), DefaultIntrospectionPath),
		IntrospectionClientID:     firstNonEmpty(fc.IntrospectionClientID, os.Getenv(EnvIntrospectionClientID)),
		IntrospectionClientSecret: firstNonEmpty(fc.IntrospectionClientSecret, os.Getenv(EnvIntrospectionClientSecret)),
		CacheBackend:              firstNonEmpty(fc.CacheBackend, os.Getenv(EnvCacheBackend), DefaultCacheBackend),
	}

	cfg.DefaultScopes = parseWordList(firstNonEmpty(fc.DefaultScopes, os.Getenv(EnvDefaultScopes)))
	cfg.AllowedAuthenticators = parseWordList(firstNonEmpty(fc.AllowedAuthenticators, os.Getenv(EnvAllowedAuthenticators)))

	cfg.VerifyTLS = parseBoolOrDefault(firstNonEmpty(fc.VerifyTLS, os.Getenv(EnvVerifyTLS)), true)
	cfg.Debug = parseBoolOrDefault(firstNonEmpty(fc.Debug, os.Getenv(EnvDebug)), false)

	cfg.CacheTTL = parseDurationOrDefault(firstNonEmpty(fc.CacheTTL, os.Getenv(EnvCacheTTL)), DefaultCacheTTL)
	cfg.ClientTimeout = parseDurationOrDefault(firstNonEmpty(fc.ClientTimeout, os.Getenv(EnvClientTimeout)), DefaultClientTimeout)

	cfg.CacheMaxEntries = firstPositiveInt(fc.CacheMaxEntries, intFromEnv(EnvCacheMaxEntries), DefaultCacheMaxEntries)
	cfg.AdminMaxRetries = firstPositiveInt(fc.AdminMaxRetries, intFromEnv(EnvAdminMaxRetries))
	cfg.AdminRateLimit = firstPositiveInt(fc.AdminRateLimit, intFromEnv(EnvAdminRateLimit))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration for invariants the server cannot start
// without. All violations are reported at once.
func (c *Config) Validate() error {
	var result *multierror.Error

	if c.ListenAddress == "" {
		result = multierror.Append(result, fmt.Errorf("listen address must not be empty"))
	}
	if c.AdminAPIBaseURL == "" {
		result = multierror.Append(result, fmt.Errorf("admin API base URL must not be empty"))
	}
	if c.IntrospectionBaseURL == "" {
		result = multierror.Append(result, fmt.Errorf("introspection base URL must not be empty"))
	}
	if c.IntrospectionClientID == "" {
		result = multierror.Append(result, fmt.Errorf("introspection client id must not be empty"))
	}
	if c.IntrospectionClientSecret == "" {
		result = multierror.Append(result, fmt.Errorf("introspection client secret must not be empty"))
	}
	if c.CacheBackend != "ristretto" && c.CacheBackend != "lru" {
		result = multierror.Append(result, fmt.Errorf("unknown cache backend %q", c.CacheBackend))
	}
	if (c.TLSCertFile == "") != (c.TLSKeyFile == "") {
		result = multierror.Append(result, fmt.Errorf("tls_cert_file and tls_key_file must be provided together"))
	}

	return result.ErrorOrNil()
}

// IntrospectionEndpoint returns the full introspection URL.
func (c *Config) IntrospectionEndpoint() string {
	return c.IntrospectionBaseURL + c.IntrospectionPath
}

// parseBoolOrDefault parses raw as a boolean using the tolerant parser
// (accepts true/false, 1/0, yes/no, on/off in any case). Empty or
// unrecognized input yields def; it never fails.
func parseBoolOrDefault(raw string, def bool) bool {
	if raw == "" {
		return def
	}
	b, err := parseutil.ParseBool(raw)
	if err != nil {
		return def
	}
	return b
}

// parseDurationOrDefault parses raw as a duration ("60s", "1m", or bare
// seconds). Empty or unrecognized input yields def.
func parseDurationOrDefault(raw string, def time.Duration) time.Duration {
	if raw == "" {
		return def
	}
	d, err := parseutil.ParseDurationSecond(raw)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// parseWordList splits a space-delimited list, trimming and dropping empty
// entries. Order is preserved: scope lists are submitted upstream in the
// order they were configured.
func parseWordList(raw string) []string {
	out := []string{}
	for _, w := range strutil.ParseStringSlice(raw, " ") {
		if w != "" {
			out = append(out, w)
		}
	}
	return out
}

// intFromEnv reads the named variable as a non-negative integer; missing
// or unparsable values read as zero.
func intFromEnv(key string) int {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	n, err := parseutil.SafeParseInt(v)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func firstPositiveInt(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
