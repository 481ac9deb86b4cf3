package websession

import (
	"net/http"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/jonboulle/clockwork"
)

const (
	// DefaultIdleTimeout ends a session that has not been used for this long.
	DefaultIdleTimeout = 30 * time.Minute

	// DefaultCleanupInterval is how often idle sessions are ended.
	DefaultCleanupInterval = time.Minute
)

// EndFunc is called once for every session which ends, whatever the reason.
// It is never called with a manager lock held.
type EndFunc func(localID string, reason EndReason)

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

type options struct {
	withIdleTimeout     time.Duration
	withCleanupInterval time.Duration
	withClock           clockwork.Clock
	withLogger          hclog.Logger
	withEndFunc         EndFunc
	withCookieOptions   CookieOptions
}

func getDefaults() options {
	return options{
		withIdleTimeout:     DefaultIdleTimeout,
		withCleanupInterval: DefaultCleanupInterval,
		withClock:           clockwork.NewRealClock(),
		withLogger:          hclog.NewNullLogger(),
		withCookieOptions: CookieOptions{
			Path:     "/",
			SameSite: http.SameSiteLaxMode,
		},
	}
}

func getOpts(opt ...Option) options {
	opts := getDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithIdleTimeout sets how long a session may go unused before it ends.
func WithIdleTimeout(d time.Duration) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok {
			o.withIdleTimeout = d
		}
	}
}

// WithCleanupInterval sets how often idle sessions are looked for.
func WithCleanupInterval(d time.Duration) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok {
			o.withCleanupInterval = d
		}
	}
}

// WithClock sets the clock used for idle tracking, which is useful in tests.
func WithClock(c clockwork.Clock) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok {
			o.withClock = c
		}
	}
}

// WithLogger provides an optional logger.
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok {
			o.withLogger = l
		}
	}
}

// WithEndFunc sets the hook called when a session ends.
func WithEndFunc(fn EndFunc) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok {
			o.withEndFunc = fn
		}
	}
}

// WithCookieOptions sets how the session cookie is issued.
func WithCookieOptions(c CookieOptions) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok {
			o.withCookieOptions = c
		}
	}
}
