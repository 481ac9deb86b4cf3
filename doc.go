// oidc-info is an OpenID Connect relying party which shows the claims of the
// signed in user's tokens and ends local sessions when the provider sends a
// back-channel logout.
//
// The session package holds the provider session correlation store, the jwt
// package decodes and verifies tokens, and cmd/oidc-info wires both into a
// web application.
package oidcinfo
