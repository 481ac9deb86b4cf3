package app

import (
	"time"

	"github.com/hashicorp/cap/oidc"
	"github.com/hashicorp/go-hclog"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/l9g/oidc-info/jwt"
)

// DefaultLoginAttemptTimeout bounds how long a started login may take.
const DefaultLoginAttemptTimeout = 2 * time.Minute

// Option defines a common functional options type which can be used in a
// variadic parameter pattern.
type Option func(interface{})

// ApplyOpts takes a pointer to the options struct as a set of default options
// and applies the slice of opts as overrides.
func ApplyOpts(opts interface{}, opt ...Option) {
	for _, o := range opt {
		if o == nil { // ignore any nil Options
			continue
		}
		o(opts)
	}
}

// BuildInfo is shown on the info page.
type BuildInfo map[string]string

type options struct {
	withLogger              hclog.Logger
	withClock               clockwork.Clock
	withProvider            *oidc.Provider
	withClientID            string
	withRedirectURL         string
	withLoginAttemptTimeout time.Duration
	withEndSessionEndpoint  string
	withLogoutTokenDecoder  jwt.ClaimsDecoder
	withStrictLogoutTokens  bool
	withRegisterer          prometheus.Registerer
	withGatherer            prometheus.Gatherer
	withBuildInfo           BuildInfo
}

func getDefaults() options {
	return options{
		withLogger:              hclog.NewNullLogger(),
		withClock:               clockwork.NewRealClock(),
		withLoginAttemptTimeout: DefaultLoginAttemptTimeout,
		withLogoutTokenDecoder:  jwt.PayloadDecoder{},
	}
}

func getOpts(opt ...Option) options {
	opts := getDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithLogger provides an optional logger.
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok {
			o.withLogger = l
		}
	}
}

// WithClock sets the clock used to expire login attempts.
func WithClock(c clockwork.Clock) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok {
			o.withClock = c
		}
	}
}

// WithProvider sets the OIDC provider used for logins. Without one the login
// and callback routes answer 503.
func WithProvider(p *oidc.Provider) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok {
			o.withProvider = p
		}
	}
}

// WithClientID sets the client id shown on the info page.
func WithClientID(id string) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok {
			o.withClientID = id
		}
	}
}

// WithRedirectURL sets the redirect URL used for logins.
func WithRedirectURL(u string) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok {
			o.withRedirectURL = u
		}
	}
}

// WithLoginAttemptTimeout sets how long a login attempt stays valid.
func WithLoginAttemptTimeout(d time.Duration) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok {
			o.withLoginAttemptTimeout = d
		}
	}
}

// WithEndSessionEndpoint sets the provider's end_session_endpoint.
func WithEndSessionEndpoint(u string) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok {
			o.withEndSessionEndpoint = u
		}
	}
}

// WithLogoutTokenDecoder sets the decoder for back-channel logout tokens. The
// default decodes without verifying.
func WithLogoutTokenDecoder(d jwt.ClaimsDecoder) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok {
			o.withLogoutTokenDecoder = d
		}
	}
}

// WithStrictLogoutTokens requires logout tokens to carry the back-channel
// logout event and no nonce.
func WithStrictLogoutTokens() Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok {
			o.withStrictLogoutTokens = true
		}
	}
}

// WithRegistry registers the metrics with reg and serves them from g.
func WithRegistry(reg prometheus.Registerer, g prometheus.Gatherer) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok {
			o.withRegisterer = reg
			o.withGatherer = g
		}
	}
}

// WithBuildInfo sets the build properties shown on the info page.
func WithBuildInfo(b BuildInfo) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok {
			o.withBuildInfo = b
		}
	}
}
