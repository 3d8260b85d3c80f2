// Package auth implements stateless authentication for the forum backend:
// an HMAC-signed token codec, password hashing, principal resolution, and
// an optional token deny-list.
//
// Tokens are self-contained: verification is a pure function of the token
// bytes and the shared signing key, and never consults member state. A
// token that verifies may still belong to a member who has since been
// deactivated or banned, which is why the Resolver re-checks live member
// state on every request.
package auth
