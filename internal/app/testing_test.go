package app

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"gopkg.in/square/go-jose.v2"
	josejwt "gopkg.in/square/go-jose.v2/jwt"

	"github.com/l9g/oidc-info/internal/websession"
	"github.com/l9g/oidc-info/session"
)

type testEnv struct {
	app      *App
	handler  http.Handler
	registry *session.Registry
	store    *session.Store
	sessions *websession.Manager
	clock    clockwork.FakeClock
	key      *ecdsa.PrivateKey
}

// testApp wires an App the way the oidc-info binary does, on a fake clock and
// without a provider.
func testApp(t *testing.T, opt ...Option) *testEnv {
	t.Helper()
	require := require.New(t)
	fc := clockwork.NewFakeClock()

	store, err := session.NewStore(
		session.WithClock(fc),
		session.WithTTL(8*time.Hour),
		session.WithCleanupInterval(24*time.Hour),
	)
	require.NoError(err)
	registry, err := session.NewRegistry(store, session.NewSubjectIndex())
	require.NoError(err)
	sessions, err := websession.NewManager(
		websession.WithClock(fc),
		websession.WithIdleTimeout(30*time.Minute),
		websession.WithCleanupInterval(24*time.Hour),
		websession.WithEndFunc(func(localID string, _ websession.EndReason) {
			registry.OnLocalSessionEnded(localID)
		}),
	)
	require.NoError(err)
	t.Cleanup(func() {
		_ = sessions.Close()
		_ = registry.Close()
	})

	opts := append([]Option{WithClock(fc), WithClientID("oidc-info")}, opt...)
	a, err := New(context.Background(), registry, sessions, opts...)
	require.NoError(err)

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(err)
	return &testEnv{
		app:      a,
		handler:  a.Router(),
		registry: registry,
		store:    store,
		sessions: sessions,
		clock:    fc,
		key:      key,
	}
}

func (e *testEnv) token(t *testing.T, claims map[string]interface{}) string {
	t.Helper()
	return testSignJWT(t, e.key, claims)
}

func testPublicKeyPEM(t *testing.T, key *ecdsa.PrivateKey) string {
	t.Helper()
	b, err := x509.MarshalPKIXPublicKey(key.Public())
	require.NoError(t, err)
	return string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: b}))
}

// login completes a login for sid and sub and returns the session cookie.
func (e *testEnv) login(t *testing.T, sid, sub string) *http.Cookie {
	t.Helper()
	claims := map[string]interface{}{"iss": "https://idp.example.com", "aud": "oidc-info"}
	if sid != "" {
		claims["sid"] = sid
	}
	if sub != "" {
		claims["sub"] = sub
	}
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/callback", nil)
	e.app.completeLogin(w, r, websession.Tokens{
		IDToken:     e.token(t, claims),
		AccessToken: e.token(t, map[string]interface{}{"scope": "openid email", "sub": sub}),
	})
	require.Equal(t, http.StatusSeeOther, w.Code)
	require.Equal(t, "/app", w.Header().Get("Location"))
	for _, c := range w.Result().Cookies() {
		if c.Name == websession.CookieName {
			return c
		}
	}
	require.FailNow(t, "no session cookie issued")
	return nil
}

func (e *testEnv) do(r *http.Request, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	for _, c := range cookies {
		r.AddCookie(c)
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, r)
	return w
}

func (e *testEnv) postLogoutToken(token string) *httptest.ResponseRecorder {
	form := url.Values{"logout_token": {token}}
	r := httptest.NewRequest(http.MethodPost, "/oidc-backchannel-logout", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return e.do(r)
}

func testSignJWT(t *testing.T, key *ecdsa.PrivateKey, claims interface{}) string {
	t.Helper()
	sig, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.ES256, Key: key},
		(&jose.SignerOptions{}).WithType("JWT"),
	)
	require.NoError(t, err)
	raw, err := josejwt.Signed(sig).Claims(claims).CompactSerialize()
	require.NoError(t, err)
	return raw
}

func logoutClaims(sid, sub string) map[string]interface{} {
	c := map[string]interface{}{
		"iss":    "https://idp.example.com",
		"aud":    "oidc-info",
		"iat":    1611699344,
		"jti":    "bcl-1",
		"events": map[string]interface{}{backchannelLogoutEvent: map[string]interface{}{}},
	}
	if sid != "" {
		c["sid"] = sid
	}
	if sub != "" {
		c["sub"] = sub
	}
	return c
}
