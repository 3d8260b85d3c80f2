// Package config loads application configuration from PARLEY_*
// environment variables with sensible defaults, and validates it before
// the server starts.
package config
