// Package constants defines timeout values used throughout the application.
package constants

import "time"

const (
	// Upper bound for one background refill, both catalogs included.
	DefaultFetchTimeout = 15 * time.Second

	// Timeout for a single outbound HTTP request.
	HTTPTimeout = 10 * time.Second

	// Sessions untouched for this long are closed by the janitor.
	DefaultSessionIdleTTL = 30 * time.Minute

	// How often the janitor sweeps idle sessions.
	DefaultJanitorInterval = 5 * time.Minute

	// Per-client rate limit buckets idle for this long are evicted.
	ClientIdleTTL = 10 * time.Minute

	// How often idle client buckets are swept.
	ClientSweepInterval = time.Minute

	// Graceful shutdown budget for the HTTP server.
	ShutdownTimeout = 10 * time.Second
)
