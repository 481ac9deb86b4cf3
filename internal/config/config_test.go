package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEnv(overrides map[string]string) func(string) string {
	env := map[string]string{
		EnvIssuer:       "https://idp.example.com/realms/test",
		EnvClientID:     "oidc-info",
		EnvClientSecret: "secret",
	}
	for k, v := range overrides {
		env[k] = v
	}
	return func(k string) string { return env[k] }
}

func TestFromEnv(t *testing.T) {
	t.Parallel()
	t.Run("defaults", func(t *testing.T) {
		t.Parallel()
		assert, require := assert.New(t), require.New(t)
		c, err := FromEnv(testEnv(nil))
		require.NoError(err)
		assert.Equal("https://idp.example.com/realms/test", c.Issuer)
		assert.Equal("oidc-info", c.ClientID)
		assert.Equal("secret", c.ClientSecret)
		assert.Equal(8080, c.Port)
		assert.Equal(":8080", c.Addr())
		assert.Equal("http://localhost:8080/callback", c.RedirectURL)
		assert.Empty(c.Scopes)
		assert.Equal(8*time.Hour, c.CorrelationTTL)
		assert.Equal(30*time.Minute, c.IdleTimeout)
		assert.Equal(time.Minute, c.CleanupInterval)
		assert.Equal(2*time.Minute, c.LoginAttemptTimeout)
		assert.True(c.BackchannelVerify)
		assert.Equal(hclog.Info, c.LogLevel)
		assert.False(c.CookieSecure)
		assert.Empty(c.BackchannelJWKSURL)
		assert.False(c.NormalizeAudiences)
	})
	t.Run("overrides", func(t *testing.T) {
		t.Parallel()
		assert, require := assert.New(t), require.New(t)
		c, err := FromEnv(testEnv(map[string]string{
			EnvPort:               "9090",
			EnvScopes:             "email, profile",
			EnvCorrelationTTL:     "12h",
			EnvIdleTimeout:        "1h",
			EnvBackchannelVerify:  "false",
			EnvLogLevel:           "debug",
			EnvCookieSecure:       "true",
			EnvRedirectURL:        "https://rp.example.com/callback",
			EnvBackchannelJWKSURL: "https://idp.example.com/jwks",
			EnvNormalizeAudiences: "true",
		}))
		require.NoError(err)
		assert.Equal(9090, c.Port)
		assert.Equal([]string{"email", "profile"}, c.Scopes)
		assert.Equal(12*time.Hour, c.CorrelationTTL)
		assert.Equal(time.Hour, c.IdleTimeout)
		assert.False(c.BackchannelVerify)
		assert.Equal(hclog.Debug, c.LogLevel)
		assert.True(c.CookieSecure)
		assert.Equal("https://rp.example.com/callback", c.RedirectURL)
		assert.Equal("https://idp.example.com/jwks", c.BackchannelJWKSURL)
		assert.True(c.NormalizeAudiences)
	})
	t.Run("every-problem-reported", func(t *testing.T) {
		t.Parallel()
		assert, require := assert.New(t), require.New(t)
		_, err := FromEnv(func(k string) string {
			return map[string]string{
				EnvPort:              "http",
				EnvIdleTimeout:       "-1m",
				EnvBackchannelVerify: "maybe",
				EnvLogLevel:          "loud",
			}[k]
		})
		require.Error(err)
		assert.Truef(errors.Is(err, ErrInvalidConfig), "wanted \"%s\" but got \"%s\"", ErrInvalidConfig, err)
		var merr *multierror.Error
		require.True(errors.As(err, &merr))
		// issuer, client id, client secret, port, idle timeout, verify, log level
		assert.Len(merr.Errors, 7)
	})
	t.Run("ttl-not-above-idle-timeout", func(t *testing.T) {
		t.Parallel()
		_, err := FromEnv(testEnv(map[string]string{
			EnvCorrelationTTL: "30m",
		}))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})
	t.Run("relative-jwks-url", func(t *testing.T) {
		t.Parallel()
		_, err := FromEnv(testEnv(map[string]string{
			EnvBackchannelJWKSURL: "/jwks",
		}))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})
	t.Run("relative-issuer", func(t *testing.T) {
		t.Parallel()
		_, err := FromEnv(testEnv(map[string]string{
			EnvIssuer: "idp.example.com",
		}))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})
}

func TestLoad(t *testing.T) {
	assert, require := assert.New(t), require.New(t)
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(os.WriteFile(envFile, []byte(
		"OIDC_ISSUER=https://idp.example.com\nOIDC_CLIENT_ID=from-file\nOIDC_CLIENT_SECRET=s3cr3t\n",
	), 0o600))
	t.Setenv(EnvClientID, "from-env")
	t.Setenv(EnvIssuer, "")
	t.Setenv(EnvClientSecret, "")
	require.NoError(os.Unsetenv(EnvIssuer))
	require.NoError(os.Unsetenv(EnvClientSecret))

	c, err := Load(filepath.Join(dir, "missing.env"), envFile)
	require.NoError(err)
	assert.Equal("https://idp.example.com", c.Issuer)
	assert.Equal("from-env", c.ClientID)
	assert.Equal("s3cr3t", c.ClientSecret)
}
