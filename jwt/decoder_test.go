package jwt

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/square/go-jose.v2"
)

func TestPayloadDecoder_Decode(t *testing.T) {
	t.Parallel()
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		want  map[string]string
	}{
		{
			name:  "valid",
			token: testSignJWT(t, priv, jose.ES256, testJWTClaims(t), nil),
			want: map[string]string{
				"iss": "https://example.com/",
				"sub": "alice@example.com",
				"aud": `["www.example.com"]`,
				"exp": "1611699944",
				"iat": "1611699344",
				"sid": "08a5019c-17e1-4977-8f42-65a12843ea02",
				"jti": "abc123",
			},
		},
		{
			name:  "empty",
			token: "",
			want:  map[string]string{},
		},
		{
			name:  "garbage",
			token: "eyJhbGciOi.not-base64!.sig",
			want:  map[string]string{},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := PayloadDecoder{}.Decode(tt.token)
			assert.NotNil(t, got)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPayloadDecoder_DecodeClaims(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(err)
	ctx := context.Background()

	got, err := PayloadDecoder{}.DecodeClaims(ctx, testSignJWT(t, priv, jose.ES256, map[string]interface{}{"sid": "sid-A"}, nil))
	require.NoError(err)
	assert.Equal(map[string]string{"sid": "sid-A"}, got)

	_, err = PayloadDecoder{}.DecodeClaims(ctx, "")
	require.Error(err)
	assert.ErrorIs(err, ErrInvalidParameter)

	_, err = PayloadDecoder{}.DecodeClaims(ctx, "a.b")
	require.Error(err)
}

func TestStringClaims(t *testing.T) {
	t.Parallel()
	got := StringClaims(map[string]interface{}{
		"str":    "value",
		"int":    float64(42),
		"float":  1.5,
		"big":    float64(1611699944),
		"bool":   true,
		"null":   nil,
		"list":   []interface{}{"a", "b"},
		"object": map[string]interface{}{"k": "v"},
	})
	assert.Equal(t, map[string]string{
		"str":    "value",
		"int":    "42",
		"float":  "1.5",
		"big":    "1611699944",
		"bool":   "true",
		"null":   "",
		"list":   `["a","b"]`,
		"object": `{"k":"v"}`,
	}, got)
}

func TestNewVerifyingDecoder(t *testing.T) {
	t.Parallel()
	_, err := NewVerifyingDecoder(nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidParameter)
}

func TestVerifyingDecoder_DecodeClaims(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	otherPriv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	ks, err := NewStaticKeySet([]string{testPublicKeyPEM(t, priv.Public())})
	require.NoError(t, err)

	claimsWith := func(k string, v interface{}) map[string]interface{} {
		c := testJWTClaims(t)
		c[k] = v
		return c
	}

	tests := []struct {
		name      string
		opts      []Option
		token     string
		wantSid   string
		wantErr   bool
		wantIsErr error
	}{
		{
			name:    "no-checks",
			token:   testSignJWT(t, priv, jose.ES256, testJWTClaims(t), nil),
			wantSid: "08a5019c-17e1-4977-8f42-65a12843ea02",
		},
		{
			name:    "issuer-and-audience",
			opts:    []Option{WithIssuer("https://example.com/"), WithAudiences("other", "www.example.com")},
			token:   testSignJWT(t, priv, jose.ES256, testJWTClaims(t), nil),
			wantSid: "08a5019c-17e1-4977-8f42-65a12843ea02",
		},
		{
			name:    "string-audience",
			opts:    []Option{WithAudiences("client-id")},
			token:   testSignJWT(t, priv, jose.ES256, claimsWith("aud", "client-id"), nil),
			wantSid: "08a5019c-17e1-4977-8f42-65a12843ea02",
		},
		{
			name:    "normalized-audience",
			opts:    []Option{WithAudiences("https://rp.example.com/"), WithNormalizedAudiences()},
			token:   testSignJWT(t, priv, jose.ES256, claimsWith("aud", "https://rp.example.com"), nil),
			wantSid: "08a5019c-17e1-4977-8f42-65a12843ea02",
		},
		{
			name:      "trailing-slash-without-normalizing",
			opts:      []Option{WithAudiences("https://rp.example.com/")},
			token:     testSignJWT(t, priv, jose.ES256, claimsWith("aud", "https://rp.example.com"), nil),
			wantErr:   true,
			wantIsErr: ErrInvalidAudience,
		},
		{
			name:      "wrong-issuer",
			opts:      []Option{WithIssuer("https://other.example.com/")},
			token:     testSignJWT(t, priv, jose.ES256, testJWTClaims(t), nil),
			wantErr:   true,
			wantIsErr: ErrInvalidIssuer,
		},
		{
			name:      "wrong-audience",
			opts:      []Option{WithAudiences("nope")},
			token:     testSignJWT(t, priv, jose.ES256, testJWTClaims(t), nil),
			wantErr:   true,
			wantIsErr: ErrInvalidAudience,
		},
		{
			name:      "bad-signature",
			token:     testSignJWT(t, otherPriv, jose.ES256, testJWTClaims(t), nil),
			wantErr:   true,
			wantIsErr: ErrInvalidSignature,
		},
		{
			name:      "empty-token",
			wantErr:   true,
			wantIsErr: ErrInvalidParameter,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert, require := assert.New(t), require.New(t)
			d, err := NewVerifyingDecoder(ks, tt.opts...)
			require.NoError(err)
			got, err := d.DecodeClaims(ctx, tt.token)
			if tt.wantErr {
				require.Error(err)
				if tt.wantIsErr != nil {
					assert.Truef(errors.Is(err, tt.wantIsErr), "wanted \"%s\" but got \"%s\"", tt.wantIsErr, err)
				}
				return
			}
			require.NoError(err)
			assert.Equal(tt.wantSid, got["sid"])
			assert.Equal("alice@example.com", got["sub"])
		})
	}
}
