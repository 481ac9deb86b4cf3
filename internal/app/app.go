// Package app serves the oidc-info web application: the login flow, the
// token info page, local logout and the OIDC back-channel logout endpoint.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hashicorp/cap/oidc"
	"github.com/hashicorp/cap/oidc/callback"
	"github.com/hashicorp/go-hclog"
	"github.com/jonboulle/clockwork"
	"golang.org/x/text/language"

	"github.com/l9g/oidc-info/internal/websession"
	"github.com/l9g/oidc-info/jwt"
	"github.com/l9g/oidc-info/session"
)

type authURLProvider interface {
	AuthURL(ctx context.Context, oidcRequest oidc.Request) (string, error)
}

// App holds the route handlers and what they share.
type App struct {
	logger   hclog.Logger
	clock    clockwork.Clock
	registry *session.Registry
	sessions *websession.Manager
	requests *requestCache
	metrics  *metrics

	provider       authURLProvider
	callback       http.HandlerFunc
	clientID       string
	redirectURL    string
	attemptTimeout time.Duration
	endSession     string

	tokens             jwt.PayloadDecoder
	logoutDecoder      jwt.ClaimsDecoder
	strictLogoutTokens bool

	build   BuildInfo
	locales language.Matcher
}

var supportedLocales = []language.Tag{language.English, language.German}

// New creates an App. The ctx is used for the provider's token exchanges.
//
// Supports the options: WithLogger, WithClock, WithProvider, WithClientID,
// WithRedirectURL, WithLoginAttemptTimeout, WithEndSessionEndpoint,
// WithLogoutTokenDecoder, WithStrictLogoutTokens, WithRegistry and
// WithBuildInfo.
func New(ctx context.Context, registry *session.Registry, sessions *websession.Manager, opt ...Option) (*App, error) {
	const op = "app.New"
	switch {
	case registry == nil:
		return nil, fmt.Errorf("%s: registry is nil: %w", op, ErrNilParameter)
	case sessions == nil:
		return nil, fmt.Errorf("%s: session manager is nil: %w", op, ErrNilParameter)
	}
	opts := getOpts(opt...)
	switch {
	case opts.withLoginAttemptTimeout <= 0:
		return nil, fmt.Errorf("%s: login attempt timeout must be greater than zero: %w", op, ErrInvalidParameter)
	case opts.withLogoutTokenDecoder == nil:
		return nil, fmt.Errorf("%s: logout token decoder is nil: %w", op, ErrNilParameter)
	case opts.withClock == nil:
		return nil, fmt.Errorf("%s: clock is nil: %w", op, ErrNilParameter)
	}
	if opts.withLogger == nil {
		opts.withLogger = hclog.NewNullLogger()
	}

	m, err := newMetrics(opts.withRegisterer, opts.withGatherer, registry.Store(), sessions)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	a := &App{
		logger:             opts.withLogger,
		clock:              opts.withClock,
		registry:           registry,
		sessions:           sessions,
		requests:           newRequestCache(),
		metrics:            m,
		clientID:           opts.withClientID,
		redirectURL:        opts.withRedirectURL,
		attemptTimeout:     opts.withLoginAttemptTimeout,
		endSession:         opts.withEndSessionEndpoint,
		logoutDecoder:      opts.withLogoutTokenDecoder,
		strictLogoutTokens: opts.withStrictLogoutTokens,
		build:              opts.withBuildInfo,
		locales:            language.NewMatcher(supportedLocales),
	}
	if opts.withProvider != nil {
		if a.redirectURL == "" {
			return nil, fmt.Errorf("%s: missing redirect url: %w", op, ErrInvalidParameter)
		}
		cb, err := callback.AuthCode(ctx, opts.withProvider, a.requests, a.loginSucceeded, a.loginFailed)
		if err != nil {
			return nil, fmt.Errorf("%s: unable to create callback handler: %w", op, err)
		}
		a.provider = opts.withProvider
		a.callback = cb
	}
	return a, nil
}

// Router returns the application's routes.
func (a *App) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(a.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/", a.index)
	r.Get("/login", a.login)
	r.Get("/callback", a.handleCallback)
	r.Get("/app", a.info)
	r.Post("/logout", a.logout)
	r.Post("/oidc-backchannel-logout", a.backchannelLogout)
	r.Method(http.MethodGet, "/metrics", a.metrics.handler)
	return r
}

func (a *App) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := a.clock.Now()
		next.ServeHTTP(ww, r)
		a.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", a.clock.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

type errorResponse struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

func (a *App) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	if err := enc.Encode(v); err != nil {
		a.logger.Error("unable to write response", "error", err)
	}
}

func (a *App) writeError(w http.ResponseWriter, status int, code, description string) {
	a.writeJSON(w, status, errorResponse{Error: code, Description: description})
}
