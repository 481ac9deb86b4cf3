package jwt

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/square/go-jose.v2/jwt"
)

// ClaimsDecoder turns a compact serialized JWT into a flat claim map with
// string values.
type ClaimsDecoder interface {
	DecodeClaims(ctx context.Context, token string) (map[string]string, error)
}

// PayloadDecoder decodes the payload of a JWT without verifying its
// signature. It must only be used for tokens received directly from a trusted
// token endpoint.
type PayloadDecoder struct{}

// Decode returns the claims of token as strings. A token which cannot be
// parsed decodes to an empty, non-nil map.
func (PayloadDecoder) Decode(token string) map[string]string {
	claims, err := decodePayload(token)
	if err != nil {
		return map[string]string{}
	}
	return claims
}

// DecodeClaims is like Decode but reports parse failures.
func (PayloadDecoder) DecodeClaims(_ context.Context, token string) (map[string]string, error) {
	const op = "jwt.(PayloadDecoder).DecodeClaims"
	claims, err := decodePayload(token)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return claims, nil
}

func decodePayload(token string) (map[string]string, error) {
	if token == "" {
		return nil, fmt.Errorf("token is empty: %w", ErrInvalidParameter)
	}
	parsed, err := jwt.ParseSigned(token)
	if err != nil {
		return nil, fmt.Errorf("unable to parse token: %w", err)
	}
	raw := map[string]interface{}{}
	if err := parsed.UnsafeClaimsWithoutVerification(&raw); err != nil {
		return nil, fmt.Errorf("unable to decode claims: %w", err)
	}
	return StringClaims(raw), nil
}

// StringClaims flattens raw JSON claims to strings. Strings are kept as is,
// numbers are printed without exponent, booleans as true/false and null as the
// empty string. Objects and arrays are kept as their JSON encoding.
func StringClaims(raw map[string]interface{}) map[string]string {
	claims := make(map[string]string, len(raw))
	for k, v := range raw {
		switch tv := v.(type) {
		case nil:
			claims[k] = ""
		case string:
			claims[k] = tv
		case float64:
			claims[k] = strconv.FormatFloat(tv, 'f', -1, 64)
		case json.Number:
			claims[k] = tv.String()
		case bool:
			claims[k] = strconv.FormatBool(tv)
		default:
			b, err := json.Marshal(tv)
			if err != nil {
				continue
			}
			claims[k] = string(b)
		}
	}
	return claims
}

// VerifyingDecoder verifies the signature of a JWT using a KeySet before
// decoding its claims. It optionally checks the iss and aud claims.
type VerifyingDecoder struct {
	keySet              KeySet
	issuer              string
	audiences           []string
	normalizedAudiences bool
}

// NewVerifyingDecoder returns a VerifyingDecoder backed by ks.
//
// Supports the options: WithIssuer, WithAudiences and WithNormalizedAudiences.
func NewVerifyingDecoder(ks KeySet, opt ...Option) (*VerifyingDecoder, error) {
	const op = "jwt.NewVerifyingDecoder"
	if ks == nil {
		return nil, fmt.Errorf("%s: keyset is nil: %w", op, ErrInvalidParameter)
	}
	opts := getDecoderOpts(opt...)
	return &VerifyingDecoder{
		keySet:              ks,
		issuer:              opts.withIssuer,
		audiences:           opts.withAudiences,
		normalizedAudiences: opts.withNormalizedAudiences,
	}, nil
}

// DecodeClaims verifies token and returns its claims as strings.
func (d *VerifyingDecoder) DecodeClaims(ctx context.Context, token string) (map[string]string, error) {
	const op = "jwt.(VerifyingDecoder).DecodeClaims"
	if token == "" {
		return nil, fmt.Errorf("%s: token is empty: %w", op, ErrInvalidParameter)
	}
	raw, err := d.keySet.VerifySignature(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if d.issuer != "" {
		if iss, _ := raw["iss"].(string); iss != d.issuer {
			return nil, fmt.Errorf("%s: %q: %w", op, iss, ErrInvalidIssuer)
		}
	}
	if len(d.audiences) > 0 {
		if err := d.validateAudience(raw["aud"]); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}
	return StringClaims(raw), nil
}

func (d *VerifyingDecoder) validateAudience(aud interface{}) error {
	var tokenAuds []string
	switch v := aud.(type) {
	case string:
		tokenAuds = []string{v}
	case []interface{}:
		for _, a := range v {
			if s, ok := a.(string); ok {
				tokenAuds = append(tokenAuds, s)
			}
		}
	}
	for _, want := range d.audiences {
		if d.normalizedAudiences {
			want = strings.TrimSuffix(want, "/")
		}
		for _, got := range tokenAuds {
			if d.normalizedAudiences {
				got = strings.TrimSuffix(got, "/")
			}
			if got == want {
				return nil
			}
		}
	}
	return fmt.Errorf("%v: %w", tokenAuds, ErrInvalidAudience)
}
