package main

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/amaumene/moviematch/internal/cache"
	"github.com/amaumene/moviematch/internal/config"
	"github.com/amaumene/moviematch/internal/constants"
	"github.com/amaumene/moviematch/internal/database"
	"github.com/amaumene/moviematch/internal/handlers"
	"github.com/amaumene/moviematch/internal/middleware"
	"github.com/amaumene/moviematch/internal/services"
	"github.com/amaumene/moviematch/internal/stream"
	"github.com/amaumene/moviematch/pkg/logger"
)

// App wires configuration, storage and services together.
type App struct {
	config     *config.Config
	logger     logger.Logger
	services   *services.Container
	limiter    *middleware.ClientLimiter
	imageCache *cache.LRUCache
}

func NewApp(cfg *config.Config, log logger.Logger) (*App, error) {
	db, err := database.NewBolt(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	log.Infof("[App] page store opened at %s", cfg.DatabasePath)

	pageCache := cache.New(cfg.CacheSize, cfg.CacheTTL)

	tmdb := services.NewTMDB(cfg.TMDBAPIKey, pageCache,
		services.WithLanguage(cfg.Language),
		services.WithPageStore(db, cfg.PageCacheTTL),
		services.WithMaxRetries(cfg.MaxRetries),
		services.WithTMDBLogger(log),
	)

	var source stream.Source = tmdb
	if cfg.SourceMode == constants.SourceModeProxy {
		source = services.NewProxySource(cfg.ProxyURL, nil, cfg.MaxRetries, log)
		log.Infof("[App] reading catalogs through proxy %s", cfg.ProxyURL)
	} else if !tmdb.HasAPIKey() {
		log.Warnf("[App] TMDB_API_KEY is not set; sessions will fail to load")
	}

	imageCache := cache.New(cfg.ImageCacheSize, cfg.CacheTTL)
	images := services.NewImagePreloader(imageCache, nil, constants.ImageHost, log)

	fetcher := stream.NewFetcher(source, stream.WithLogger(log))
	store := services.NewSessionStore(fetcher, stream.Options{
		Threshold:    cfg.RefillThreshold,
		PreloadCount: cfg.PreloadCount,
		FetchTimeout: cfg.FetchTimeout,
		Preloader:    images,
		Recorder:     services.NewLogRecorder(log),
		Logger:       log,
	}, log)

	janitor := services.NewSessionJanitor(store, db, pageCache, log)
	janitor.SetIdleTTL(cfg.SessionIdleTTL)
	janitor.SetInterval(cfg.JanitorInterval)
	janitor.SetRetentionPeriod(cfg.PageCacheTTL)

	return &App{
		config:     cfg,
		logger:     log,
		limiter:    middleware.NewClientLimiter(constants.ClientRateLimit, constants.ClientRateBurst, constants.ClientIdleTTL),
		imageCache: imageCache,
		services: &services.Container{
			TMDB:     tmdb,
			Source:   source,
			Sessions: store,
			Images:   images,
			Janitor:  janitor,
			Cache:    pageCache,
			DB:       db,
			Logger:   log,
		},
	}, nil
}

// Router builds the gin engine with the full middleware stack.
func (a *App) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logger(a.logger))
	r.Use(middleware.CORS(a.config.AllowedOrigins, a.logger))
	r.Use(a.limiter.Handler())
	r.Use(middleware.Gzip(a.logger, "/api/images"))

	handlers.New(a.services, a.config).RegisterRoutes(r)
	return r
}

// StartBackground starts the janitor and the cache sweeps until ctx is done.
func (a *App) StartBackground(ctx context.Context) error {
	a.limiter.StartCleanup(ctx, constants.ClientSweepInterval)
	a.imageCache.StartCleanup(ctx, a.config.JanitorInterval)
	return a.services.Janitor.Start(ctx)
}

// Close stops background work and releases storage.
func (a *App) Close() {
	a.services.Janitor.Stop()
	a.services.Sessions.CloseAll()
	a.services.Images.Close()
	if err := a.services.DB.Close(); err != nil {
		a.logger.Errorf("[App] failed to close database: %v", err)
	}
}
