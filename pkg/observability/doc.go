// Package observability provides structured logging, Prometheus metrics,
// health checks, and OpenTelemetry setup for the parley service.
//
// The Logger is a thin wrapper over log/slog with a JSON handler so that
// every component logs the same shape. Metrics cover the authentication
// pipeline (token verification outcomes, policy decisions) and the
// moderation engine (warnings issued, bans applied).
package observability
