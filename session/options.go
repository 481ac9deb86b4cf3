package session

import (
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/jonboulle/clockwork"
)

const (
	// DefaultTTL is how long a correlation entry lives without a refreshing
	// Put. It must exceed the longest expected local session lifetime so a
	// logout arriving late in a session still finds its entry.
	DefaultTTL = 8 * time.Hour

	// DefaultCleanupInterval is how often expired entries are reclaimed.
	DefaultCleanupInterval = time.Minute

	// DefaultShards is the number of lock stripes per index.
	DefaultShards = 64
)

// EvictionFunc is called after a correlation entry has been reclaimed because
// its TTL elapsed. It is never called with a store lock held.
type EvictionFunc func(sid, localID string)

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

type storeOptions struct {
	withTTL             time.Duration
	withCleanupInterval time.Duration
	withClock           clockwork.Clock
	withLogger          hclog.Logger
	withEvictionFunc    EvictionFunc
	withShards          int
}

func storeDefaults() storeOptions {
	return storeOptions{
		withTTL:             DefaultTTL,
		withCleanupInterval: DefaultCleanupInterval,
		withClock:           clockwork.NewRealClock(),
		withLogger:          hclog.NewNullLogger(),
		withShards:          DefaultShards,
	}
}

func getStoreOpts(opt ...Option) storeOptions {
	opts := storeDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

type subjectIndexOptions struct {
	withShards int
}

func subjectIndexDefaults() subjectIndexOptions {
	return subjectIndexOptions{
		withShards: DefaultShards,
	}
}

func getSubjectIndexOpts(opt ...Option) subjectIndexOptions {
	opts := subjectIndexDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

type registryOptions struct {
	withLogger hclog.Logger
}

func registryDefaults() registryOptions {
	return registryOptions{
		withLogger: hclog.NewNullLogger(),
	}
}

func getRegistryOpts(opt ...Option) registryOptions {
	opts := registryDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithTTL provides an optional time-to-live for correlation entries.
// Supported by: NewStore
func WithTTL(d time.Duration) Option {
	return func(o interface{}) {
		if v, ok := o.(*storeOptions); ok {
			v.withTTL = d
		}
	}
}

// WithCleanupInterval provides an optional interval for reclaiming expired
// entries.
// Supported by: NewStore
func WithCleanupInterval(d time.Duration) Option {
	return func(o interface{}) {
		if v, ok := o.(*storeOptions); ok {
			v.withCleanupInterval = d
		}
	}
}

// WithClock provides an optional clock, mostly useful for tests.
// Supported by: NewStore
func WithClock(c clockwork.Clock) Option {
	return func(o interface{}) {
		if v, ok := o.(*storeOptions); ok {
			v.withClock = c
		}
	}
}

// WithLogger provides an optional logger.
// Supported by: NewStore, NewRegistry
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		switch v := o.(type) {
		case *storeOptions:
			v.withLogger = l
		case *registryOptions:
			v.withLogger = l
		}
	}
}

// WithEvictionFunc provides an optional callback invoked for every entry
// reclaimed after its TTL elapsed.
// Supported by: NewStore
func WithEvictionFunc(fn EvictionFunc) Option {
	return func(o interface{}) {
		if v, ok := o.(*storeOptions); ok {
			v.withEvictionFunc = fn
		}
	}
}

// WithShards provides an optional number of lock stripes per index.
// Supported by: NewStore, NewSubjectIndex
func WithShards(n int) Option {
	return func(o interface{}) {
		switch v := o.(type) {
		case *storeOptions:
			v.withShards = n
		case *subjectIndexOptions:
			v.withShards = n
		}
	}
}
