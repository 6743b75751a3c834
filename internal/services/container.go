// Package services provides the catalog sources, session store and
// background workers behind the HTTP API.
package services

import (
	"github.com/amaumene/moviematch/internal/cache"
	"github.com/amaumene/moviematch/internal/database"
	"github.com/amaumene/moviematch/internal/stream"
	"github.com/amaumene/moviematch/pkg/logger"
)

// Container holds all application services for dependency injection.
type Container struct {
	TMDB     *TMDB
	Source   stream.Source
	Sessions *SessionStore
	Images   *ImagePreloader
	Janitor  *SessionJanitor
	Cache    *cache.LRUCache
	DB       database.Database
	Logger   logger.Logger
}
