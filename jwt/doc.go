/*
Package jwt turns the tokens an OIDC provider issues into claim maps.

PayloadDecoder decodes a compact JWT payload without any verification; it is
used to display claims and never fails (a malformed or opaque token simply
has no claims). VerifyingDecoder first checks the token's signature against a
KeySet and, optionally, its issuer and audience.

Three KeySet implementations are provided:

* NewOIDCDiscoveryKeySet: keys from the JWKS advertised by an issuer's
discovery document.

* NewJSONWebKeySet: keys from a JWKS URL.

* NewStaticKeySet: PEM-encoded public keys.
*/
package jwt
