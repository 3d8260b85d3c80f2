// Package policy implements the authorization rule table: an ordered list
// of method + path-pattern rules mapping requests to an access requirement
// (public, authenticated, or a named capability).
//
// Evaluation is a pure function of (method, path, principal): no clock, no
// database. Precedence is fixed — explicit public rules, then capability
// rules, then authenticated rules, then the authenticated-required
// fallback, then deny.
package policy
