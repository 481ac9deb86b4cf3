// Package config reads the oidc-info configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
)

// Environment variables read by FromEnv.
const (
	EnvIssuer              = "OIDC_ISSUER"
	EnvClientID            = "OIDC_CLIENT_ID"
	EnvClientSecret        = "OIDC_CLIENT_SECRET"
	EnvRedirectURL         = "OIDC_REDIRECT_URL"
	EnvPort                = "OIDC_PORT"
	EnvScopes              = "OIDC_SCOPES"
	EnvCACert              = "OIDC_CA_CERT"
	EnvCorrelationTTL      = "SESSION_CORRELATION_TTL"
	EnvIdleTimeout         = "SESSION_IDLE_TIMEOUT"
	EnvCleanupInterval     = "SESSION_CLEANUP_INTERVAL"
	EnvLoginAttemptTimeout = "LOGIN_ATTEMPT_TIMEOUT"
	EnvBackchannelVerify   = "BACKCHANNEL_VERIFY"
	EnvBackchannelJWKSURL  = "BACKCHANNEL_JWKS_URL"
	EnvNormalizeAudiences  = "BACKCHANNEL_NORMALIZE_AUDIENCES"
	EnvLogLevel            = "LOG_LEVEL"
	EnvCookieSecure        = "COOKIE_SECURE"
)

const (
	defaultPort                = 8080
	defaultCorrelationTTL      = 8 * time.Hour
	defaultIdleTimeout         = 30 * time.Minute
	defaultCleanupInterval     = time.Minute
	defaultLoginAttemptTimeout = 2 * time.Minute
)

// ErrInvalidConfig is wrapped by every configuration problem.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the oidc-info configuration.
type Config struct {
	Issuer       string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Port         int
	Scopes       []string
	// CACert is a PEM bundle trusted for provider connections. Empty means
	// the system roots.
	CACert string

	CorrelationTTL      time.Duration
	IdleTimeout         time.Duration
	CleanupInterval     time.Duration
	LoginAttemptTimeout time.Duration

	// BackchannelVerify turns on signature, issuer and audience checks of
	// logout tokens.
	BackchannelVerify bool
	// BackchannelJWKSURL, when set, is where logout token keys are fetched
	// from instead of the issuer's discovery document.
	BackchannelJWKSURL string
	// NormalizeAudiences ignores a trailing slash when matching the aud
	// claim of logout tokens against the client id.
	NormalizeAudiences bool
	LogLevel           hclog.Level
	CookieSecure       bool
}

// Load reads the given .env files, if they exist, into the process
// environment and then reads the configuration from it. Variables already
// set in the environment win over the files.
func Load(files ...string) (*Config, error) {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return nil, fmt.Errorf("config.Load: %s: %w", f, err)
		}
	}
	return FromEnv(os.Getenv)
}

// FromEnv reads the configuration using getenv. Every problem found is
// reported, not just the first.
func FromEnv(getenv func(string) string) (*Config, error) {
	const op = "config.FromEnv"
	var errs *multierror.Error
	r := reader{getenv: getenv, errs: &errs}

	c := &Config{
		Issuer:              r.required(EnvIssuer),
		ClientID:            r.required(EnvClientID),
		ClientSecret:        r.required(EnvClientSecret),
		Port:                r.int(EnvPort, defaultPort),
		Scopes:              r.list(EnvScopes),
		CACert:              getenv(EnvCACert),
		CorrelationTTL:      r.duration(EnvCorrelationTTL, defaultCorrelationTTL),
		IdleTimeout:         r.duration(EnvIdleTimeout, defaultIdleTimeout),
		CleanupInterval:     r.duration(EnvCleanupInterval, defaultCleanupInterval),
		LoginAttemptTimeout: r.duration(EnvLoginAttemptTimeout, defaultLoginAttemptTimeout),
		BackchannelVerify:   r.bool(EnvBackchannelVerify, true),
		BackchannelJWKSURL:  getenv(EnvBackchannelJWKSURL),
		NormalizeAudiences:  r.bool(EnvNormalizeAudiences, false),
		LogLevel:            r.logLevel(EnvLogLevel, hclog.Info),
		CookieSecure:        r.bool(EnvCookieSecure, false),
	}
	c.RedirectURL = getenv(EnvRedirectURL)
	if c.RedirectURL == "" {
		c.RedirectURL = fmt.Sprintf("http://localhost:%d/callback", c.Port)
	}
	r.url(EnvIssuer, c.Issuer)
	r.url(EnvRedirectURL, c.RedirectURL)
	r.url(EnvBackchannelJWKSURL, c.BackchannelJWKSURL)
	if c.CorrelationTTL <= c.IdleTimeout {
		errs = multierror.Append(errs, fmt.Errorf("%s (%s) must be greater than %s (%s): %w",
			EnvCorrelationTTL, c.CorrelationTTL, EnvIdleTimeout, c.IdleTimeout, ErrInvalidConfig))
	}

	if err := errs.ErrorOrNil(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return c, nil
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

type reader struct {
	getenv func(string) string
	errs   **multierror.Error
}

func (r reader) fail(key, format string, args ...interface{}) {
	*r.errs = multierror.Append(*r.errs, fmt.Errorf("%s: %s: %w", key, fmt.Sprintf(format, args...), ErrInvalidConfig))
}

func (r reader) required(key string) string {
	v := strings.TrimSpace(r.getenv(key))
	if v == "" {
		r.fail(key, "is empty")
	}
	return v
}

func (r reader) int(key string, def int) int {
	v := r.getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil || i <= 0 || i > 65535 {
		r.fail(key, "%q is not a valid port", v)
		return def
	}
	return i
}

func (r reader) duration(key string, def time.Duration) time.Duration {
	v := r.getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		r.fail(key, "%q is not a positive duration", v)
		return def
	}
	return d
}

func (r reader) bool(key string, def bool) bool {
	v := r.getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.fail(key, "%q is not a boolean", v)
		return def
	}
	return b
}

func (r reader) list(key string) []string {
	return strings.FieldsFunc(r.getenv(key), func(c rune) bool { return c == ',' || c == ' ' })
}

func (r reader) logLevel(key string, def hclog.Level) hclog.Level {
	v := r.getenv(key)
	if v == "" {
		return def
	}
	l := hclog.LevelFromString(v)
	if l == hclog.NoLevel {
		r.fail(key, "%q is not a log level", v)
		return def
	}
	return l
}

func (r reader) url(key, v string) {
	if v == "" {
		return
	}
	u, err := url.Parse(v)
	if err != nil || u.Scheme == "" || u.Host == "" {
		r.fail(key, "%q is not an absolute url", v)
	}
}
