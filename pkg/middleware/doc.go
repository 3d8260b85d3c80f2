// Package middleware provides the HTTP request pipeline: the
// authentication gateway that turns bearer tokens into request
// principals, the authorization enforcer backed by the policy table,
// and the login throttle.
//
// The gateway never rejects a request itself. Every authentication
// failure (missing, malformed, tampered, expired, or revoked token, or
// a subject that no longer resolves) downgrades the request to
// anonymous and lets the policy layer decide. Rejection is the policy
// enforcer's job.
package middleware
