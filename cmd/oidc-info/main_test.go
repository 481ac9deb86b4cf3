package main

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/square/go-jose.v2"
	josejwt "gopkg.in/square/go-jose.v2/jwt"

	"github.com/l9g/oidc-info/internal/config"
	"github.com/l9g/oidc-info/jwt"
)

func Test_logoutTokenDecoder(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	body, err := json.Marshal(jose.JSONWebKeySet{Keys: []jose.JSONWebKey{{
		Key:       priv.Public(),
		KeyID:     "bcl",
		Algorithm: string(jose.ES256),
		Use:       "sig",
	}}})
	require.NoError(t, err)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)

	sig, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.ES256, Key: priv},
		(&jose.SignerOptions{}).WithType("JWT").WithHeader("kid", "bcl"),
	)
	require.NoError(t, err)
	token, err := josejwt.Signed(sig).Claims(map[string]interface{}{
		"iss": "https://idp.example.com",
		"aud": "https://rp.example.com",
		"sid": "sid-A",
	}).CompactSerialize()
	require.NoError(t, err)

	tests := []struct {
		name      string
		normalize bool
		wantIsErr error
	}{
		{name: "normalized", normalize: true},
		{name: "exact", wantIsErr: jwt.ErrInvalidAudience},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert, require := assert.New(t), require.New(t)
			dec, err := logoutTokenDecoder(ctx, &config.Config{
				Issuer:             "https://idp.example.com",
				ClientID:           "https://rp.example.com/",
				BackchannelJWKSURL: srv.URL + "/jwks",
				NormalizeAudiences: tt.normalize,
			})
			require.NoError(err)
			claims, err := dec.DecodeClaims(ctx, token)
			if tt.wantIsErr != nil {
				require.Error(err)
				assert.ErrorIs(err, tt.wantIsErr)
				return
			}
			require.NoError(err)
			assert.Equal("sid-A", claims["sid"])
		})
	}
}
