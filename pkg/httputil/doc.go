// Package httputil provides HTTP handler utilities for consistent error
// handling, JSON encoding/decoding, request parsing, and the generic
// middleware (request ID, logging, recovery) shared by all routes.
package httputil
