package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setRequiredEnv sets the credentials without which Load refuses to start.
func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv(EnvIntrospectionClientID, "bridge-client")
	t.Setenv(EnvIntrospectionClientSecret, "bridge-secret")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DefaultListenAddress, cfg.ListenAddress)
	assert.Equal(t, DefaultIssuerPath, cfg.IssuerPath)
	assert.Equal(t, DefaultProfileID, cfg.ProfileID)
	assert.Equal(t, DefaultAdminAPIBaseURL, cfg.AdminAPIBaseURL)
	assert.Equal(t, DefaultCacheBackend, cfg.CacheBackend)
	assert.Equal(t, DefaultCacheTTL, cfg.CacheTTL)
	assert.Equal(t, DefaultCacheMaxEntries, cfg.CacheMaxEntries)
	assert.Equal(t, DefaultClientTimeout, cfg.ClientTimeout)
	assert.True(t, cfg.VerifyTLS)
	assert.False(t, cfg.Debug)
	assert.Zero(t, cfg.AdminMaxRetries)
	assert.Zero(t, cfg.AdminRateLimit)
	assert.Equal(t, DefaultIntrospectionURL+DefaultIntrospectionPath, cfg.IntrospectionEndpoint())
}

func TestLoad_Environment(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv(EnvListenAddress, "127.0.0.1:9999")
	t.Setenv(EnvProfileID, "my-profile")
	t.Setenv(EnvDefaultScopes, "read write admin")
	t.Setenv(EnvVerifyTLS, "false")
	t.Setenv(EnvCacheTTL, "120s")
	t.Setenv(EnvCacheBackend, "lru")
	t.Setenv(EnvCacheMaxEntries, "500")
	t.Setenv(EnvAdminMaxRetries, "2")
	t.Setenv(EnvAdminRateLimit, "50")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9999", cfg.ListenAddress)
	assert.Equal(t, "my-profile", cfg.ProfileID)
	// Scope order is preserved
	assert.Equal(t, []string{"read", "write", "admin"}, cfg.DefaultScopes)
	assert.False(t, cfg.VerifyTLS)
	assert.Equal(t, 2*time.Minute, cfg.CacheTTL)
	assert.Equal(t, "lru", cfg.CacheBackend)
	assert.Equal(t, 500, cfg.CacheMaxEntries)
	assert.Equal(t, 2, cfg.AdminMaxRetries)
	assert.Equal(t, 50, cfg.AdminRateLimit)
}

func TestLoad_FileOverridesEnvironment(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv(EnvListenAddress, "127.0.0.1:1111")

	configFile := filepath.Join(t.TempDir(), "regbridge.hcl")
	content := `
listen_address = "127.0.0.1:2222"
oauth_profile_id = "file-profile"
scopes = "from file"
`
	require.NoError(t, os.WriteFile(configFile, []byte(content), 0o600))

	cfg, err := Load(configFile)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:2222", cfg.ListenAddress)
	assert.Equal(t, "file-profile", cfg.ProfileID)
	assert.Equal(t, []string{"from", "file"}, cfg.DefaultScopes)
}

func TestLoad_MissingFile(t *testing.T) {
	setRequiredEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.hcl"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			ListenAddress:             "0.0.0.0:5555",
			AdminAPIBaseURL:           "https://localhost:6749",
			IntrospectionBaseURL:      "http://localhost:8444",
			IntrospectionClientID:     "id",
			IntrospectionClientSecret: "secret",
			CacheBackend:              "ristretto",
		}
	}

	tests := []struct {
		name        string
		mutate      func(*Config)
		expectError bool
	}{
		{
			name:   "valid config",
			mutate: func(c *Config) {},
		},
		{
			name:        "missing introspection client id",
			mutate:      func(c *Config) { c.IntrospectionClientID = "" },
			expectError: true,
		},
		{
			name:        "missing introspection client secret",
			mutate:      func(c *Config) { c.IntrospectionClientSecret = "" },
			expectError: true,
		},
		{
			name:        "missing admin api url",
			mutate:      func(c *Config) { c.AdminAPIBaseURL = "" },
			expectError: true,
		},
		{
			name:        "unknown cache backend",
			mutate:      func(c *Config) { c.CacheBackend = "memcached" },
			expectError: true,
		},
		{
			name:        "tls cert without key",
			mutate:      func(c *Config) { c.TLSCertFile = "/tmp/cert.pem" },
			expectError: true,
		},
		{
			name: "tls cert with key",
			mutate: func(c *Config) {
				c.TLSCertFile = "/tmp/cert.pem"
				c.TLSKeyFile = "/tmp/key.pem"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParseHelpers(t *testing.T) {
	assert.True(t, parseBoolOrDefault("yes", false))
	assert.False(t, parseBoolOrDefault("0", true))
	assert.True(t, parseBoolOrDefault("", true))
	assert.True(t, parseBoolOrDefault("garbage", true))

	assert.Equal(t, 90*time.Second, parseDurationOrDefault("90", time.Second))
	assert.Equal(t, time.Minute, parseDurationOrDefault("1m", time.Second))
	assert.Equal(t, time.Second, parseDurationOrDefault("", time.Second))
	assert.Equal(t, time.Second, parseDurationOrDefault("-5s", time.Second))

	assert.Equal(t, []string{"a", "b"}, parseWordList(" a  b "))
	assert.Empty(t, parseWordList(""))
}
