package jwt

// Option defines a common functional options type which can be used in a
// variadic parameter pattern.
type Option func(interface{})

type decoderOptions struct {
	withIssuer              string
	withAudiences           []string
	withNormalizedAudiences bool
}

func decoderDefaults() decoderOptions {
	return decoderOptions{}
}

// getDecoderOpts gets the defaults and applies the opt overrides passed
// in.
func getDecoderOpts(opt ...Option) decoderOptions {
	opts := decoderDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

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

// WithIssuer requires the iss claim to equal iss.
func WithIssuer(iss string) Option {
	return func(o interface{}) {
		switch v := o.(type) {
		case *decoderOptions:
			v.withIssuer = iss
		}
	}
}

// WithAudiences requires the aud claim to contain at least one of auds.
func WithAudiences(auds ...string) Option {
	return func(o interface{}) {
		switch v := o.(type) {
		case *decoderOptions:
			v.withAudiences = auds
		}
	}
}

// WithNormalizedAudiences enables removing the trailing slash (if it exists) from all bound audiences
// before comparing against the aud claims.
func WithNormalizedAudiences() Option {
	return func(o interface{}) {
		switch v := o.(type) {
		case *decoderOptions:
			v.withNormalizedAudiences = true
		}
	}
}
