// Package audit records security-relevant events (logins, token
// revocations, warnings, bans) to an append-only trail. Recording is
// best-effort: a failed write is logged by the caller, never propagated
// to the request path.
package audit
