package services

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/amaumene/moviematch/internal/cache"
	"github.com/amaumene/moviematch/internal/constants"
	"github.com/amaumene/moviematch/internal/database"
	apperrors "github.com/amaumene/moviematch/internal/errors"
	"github.com/amaumene/moviematch/internal/models"
	"github.com/amaumene/moviematch/pkg/httputil"
	"github.com/amaumene/moviematch/pkg/logger"
	"github.com/amaumene/moviematch/pkg/ratelimiter"
	"github.com/amaumene/moviematch/pkg/security"
)

// TMDB reads discover pages straight from the TMDB API. Pages are looked up
// in memory, then in the page store, then over the network.
type TMDB struct {
	apiKey      string
	baseURL     string
	language    string
	cache       *cache.LRUCache
	db          database.Database
	pageTTL     time.Duration
	rateLimiter ratelimiter.RateLimiter
	httpClient  *http.Client
	maxRetries  int
	logger      logger.Logger
	validator   *security.APIKeyValidator
}

type TMDBOption func(*TMDB)

func WithBaseURL(baseURL string) TMDBOption {
	return func(t *TMDB) { t.baseURL = baseURL }
}

func WithLanguage(language string) TMDBOption {
	return func(t *TMDB) { t.language = language }
}

func WithHTTPClient(client *http.Client) TMDBOption {
	return func(t *TMDB) { t.httpClient = client }
}

// WithPageStore persists fetched pages and serves them while younger than ttl.
func WithPageStore(db database.Database, ttl time.Duration) TMDBOption {
	return func(t *TMDB) {
		t.db = db
		t.pageTTL = ttl
	}
}

func WithRateLimiter(rl ratelimiter.RateLimiter) TMDBOption {
	return func(t *TMDB) { t.rateLimiter = rl }
}

func WithMaxRetries(n int) TMDBOption {
	return func(t *TMDB) { t.maxRetries = n }
}

func WithTMDBLogger(log logger.Logger) TMDBOption {
	return func(t *TMDB) { t.logger = log }
}

func NewTMDB(apiKey string, c *cache.LRUCache, opts ...TMDBOption) *TMDB {
	validator := security.NewAPIKeyValidator()

	sanitizedKey := ""
	if apiKey != "" {
		sanitizedKey = validator.SanitizeAPIKey(apiKey)
	}

	t := &TMDB{
		apiKey:      sanitizedKey,
		baseURL:     constants.TMDBBaseURL,
		language:    constants.DefaultLanguage,
		cache:       c,
		pageTTL:     constants.DefaultPageCacheTTL * time.Hour,
		rateLimiter: ratelimiter.NewTokenBucket(constants.TMDBRateBurst, constants.TMDBRateLimit),
		httpClient:  httputil.NewHTTPClient(constants.HTTPTimeout),
		maxRetries:  constants.DefaultMaxRetries,
		logger:      logger.New(),
		validator:   validator,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// HasAPIKey reports whether a usable key is configured.
func (t *TMDB) HasAPIKey() bool {
	return t.apiKey != ""
}

// FetchPage returns one discover page of catalog.
func (t *TMDB) FetchPage(ctx context.Context, catalog models.Catalog, page int) (*models.TMDBMovieResponse, error) {
	if !catalog.Valid() {
		return nil, apperrors.NewConfigurationError(fmt.Sprintf("unknown catalog %q", catalog), nil)
	}
	if page < 1 || page > constants.TMDBMaxPage {
		return nil, apperrors.NewInvalidPageError(page)
	}

	cacheKey := fmt.Sprintf("tmdb:%s:%d", t.pageScope(catalog), page)

	if resp := t.checkMemoryCache(cacheKey); resp != nil {
		t.logger.Debugf("[TMDB] memory cache hit for %s", cacheKey)
		return resp, nil
	}

	if resp := t.checkDatabaseCache(catalog, page, cacheKey); resp != nil {
		t.logger.Debugf("[TMDB] page store hit for %s", cacheKey)
		return resp, nil
	}

	if err := t.validateAPIKey(); err != nil {
		return nil, err
	}

	resp, err := t.fetchDiscover(ctx, catalog, page)
	if err != nil {
		return nil, err
	}

	t.cache.Set(cacheKey, resp)
	t.storePage(catalog, page, resp)
	return resp, nil
}
