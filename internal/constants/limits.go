// Package constants defines numerical limits used by the stream engine.
package constants

const (
	// Catalog pages are 1..MaxCatalogPage (about 500 titles per catalog).
	MaxCatalogPage = 25

	// Highest page the TMDB discover endpoint will serve.
	TMDBMaxPage = 500

	// A refill starts once fewer than this many unseen items remain.
	DefaultRefillThreshold = 10

	// Number of upcoming images warmed on every cursor advance.
	DefaultPreloadCount = 5

	// Concurrent image downloads per preload request.
	PreloadWorkers = 3

	// Largest image body accepted by the image cache.
	MaxImageBytes = 5 * 1024 * 1024

	// Outbound retries on 429 / 5xx.
	DefaultMaxRetries = 2
)
