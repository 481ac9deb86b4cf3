// Command oidc-info is an OpenID Connect relying party which shows the tokens
// of the signed in user and honors OIDC back-channel logout.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"github.com/hashicorp/cap/oidc"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/l9g/oidc-info/internal/app"
	"github.com/l9g/oidc-info/internal/config"
	"github.com/l9g/oidc-info/internal/websession"
	"github.com/l9g/oidc-info/jwt"
	caphttp "github.com/l9g/oidc-info/sdk/http"
	"github.com/l9g/oidc-info/session"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(".env")
	if err != nil {
		return err
	}
	logger := hclog.New(&hclog.LoggerOptions{
		Name:  "oidc-info",
		Level: cfg.LogLevel,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	subjects := session.NewSubjectIndex()
	store, err := session.NewStore(
		session.WithTTL(cfg.CorrelationTTL),
		session.WithCleanupInterval(cfg.CleanupInterval),
		session.WithLogger(logger.Named("store")),
		session.WithEvictionFunc(func(_, localID string) {
			subjects.UnbindBySessionID(localID)
		}),
	)
	if err != nil {
		return err
	}
	registry, err := session.NewRegistry(store, subjects, session.WithLogger(logger.Named("registry")))
	if err != nil {
		return err
	}
	sessions, err := websession.NewManager(
		websession.WithIdleTimeout(cfg.IdleTimeout),
		websession.WithCleanupInterval(cfg.CleanupInterval),
		websession.WithLogger(logger.Named("websession")),
		websession.WithCookieOptions(websession.CookieOptions{
			Secure: cfg.CookieSecure,
		}),
		websession.WithEndFunc(func(localID string, _ websession.EndReason) {
			registry.OnLocalSessionEnded(localID)
		}),
	)
	if err != nil {
		return err
	}

	pcOpts := []oidc.Option{}
	if cfg.CACert != "" {
		pcOpts = append(pcOpts, oidc.WithProviderCA(cfg.CACert))
	}
	if len(cfg.Scopes) > 0 {
		pcOpts = append(pcOpts, oidc.WithScopes(cfg.Scopes...))
	}
	pc, err := oidc.NewConfig(
		cfg.Issuer,
		cfg.ClientID,
		oidc.ClientSecret(cfg.ClientSecret),
		[]oidc.Alg{oidc.RS256, oidc.ES256},
		[]string{cfg.RedirectURL},
		pcOpts...,
	)
	if err != nil {
		return err
	}
	p, err := oidc.NewProvider(pc)
	if err != nil {
		return err
	}
	defer p.Done()

	appOpts := []app.Option{
		app.WithLogger(logger.Named("app")),
		app.WithProvider(p),
		app.WithClientID(cfg.ClientID),
		app.WithRedirectURL(cfg.RedirectURL),
		app.WithLoginAttemptTimeout(cfg.LoginAttemptTimeout),
		app.WithRegistry(prometheus.DefaultRegisterer, prometheus.DefaultGatherer),
		app.WithBuildInfo(buildInfo()),
	}
	endSession, err := discoverEndSessionEndpoint(ctx, cfg.Issuer, cfg.CACert)
	if err != nil {
		logger.Warn("unable to discover end session endpoint", "error", err)
	}
	if endSession != "" {
		appOpts = append(appOpts, app.WithEndSessionEndpoint(endSession))
	}
	if cfg.BackchannelVerify {
		dec, err := logoutTokenDecoder(ctx, cfg)
		if err != nil {
			return err
		}
		appOpts = append(appOpts, app.WithLogoutTokenDecoder(dec), app.WithStrictLogoutTokens())
	} else {
		logger.Warn("back-channel logout tokens are not verified")
	}

	a, err := app.New(ctx, registry, sessions, appOpts...)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           a.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	srvCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", srv.Addr, "issuer", cfg.Issuer, "redirect_url", cfg.RedirectURL)
		srvCh <- srv.ListenAndServe()
	}()

	var retErr *multierror.Error
	select {
	case err := <-srvCh:
		if !errors.Is(err, http.ErrServerClosed) {
			retErr = multierror.Append(retErr, fmt.Errorf("server closed with error: %w", err))
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		retErr = multierror.Append(retErr, err)
	}
	if err := sessions.Close(); err != nil {
		retErr = multierror.Append(retErr, err)
	}
	if err := registry.Close(); err != nil {
		retErr = multierror.Append(retErr, err)
	}
	return retErr.ErrorOrNil()
}

// discoverEndSessionEndpoint reads end_session_endpoint from the issuer's
// discovery document. It is empty when the provider does not publish one.
func discoverEndSessionEndpoint(ctx context.Context, issuer, caPEM string) (string, error) {
	const op = "discoverEndSessionEndpoint"
	client, err := caphttp.NewClient(caPEM)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	gp, err := gooidc.NewProvider(caphttp.OidcClientContext(ctx, client), issuer)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	var meta struct {
		EndSessionEndpoint string `json:"end_session_endpoint"`
	}
	if err := gp.Claims(&meta); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return meta.EndSessionEndpoint, nil
}

// logoutTokenDecoder verifies logout tokens against the keys at
// cfg.BackchannelJWKSURL or, when unset, the keys the issuer publishes through
// discovery.
func logoutTokenDecoder(ctx context.Context, cfg *config.Config) (*jwt.VerifyingDecoder, error) {
	const op = "logoutTokenDecoder"
	var (
		ks  jwt.KeySet
		err error
	)
	switch cfg.BackchannelJWKSURL {
	case "":
		ks, err = jwt.NewOIDCDiscoveryKeySet(ctx, cfg.Issuer, cfg.CACert)
	default:
		ks, err = jwt.NewJSONWebKeySet(ctx, cfg.BackchannelJWKSURL, cfg.CACert)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	opts := []jwt.Option{jwt.WithIssuer(cfg.Issuer), jwt.WithAudiences(cfg.ClientID)}
	if cfg.NormalizeAudiences {
		opts = append(opts, jwt.WithNormalizedAudiences())
	}
	dec, err := jwt.NewVerifyingDecoder(ks, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return dec, nil
}

func buildInfo() app.BuildInfo {
	b := app.BuildInfo{}
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return b
	}
	b["go"] = bi.GoVersion
	b["path"] = bi.Path
	b["version"] = bi.Main.Version
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision", "vcs.time", "vcs.modified":
			b[s.Key] = s.Value
		}
	}
	return b
}
