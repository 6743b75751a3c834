package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/amaumene/moviematch/internal/constants"
	apperrors "github.com/amaumene/moviematch/internal/errors"
	"github.com/amaumene/moviematch/internal/models"
	"github.com/amaumene/moviematch/pkg/httputil"
)

func (t *TMDB) validateAPIKey() error {
	if t.apiKey == "" {
		return apperrors.NewAPIKeyMissingError("TMDB")
	}
	if !t.validator.IsValidTMDBKey(t.apiKey) {
		t.logger.Errorf("[TMDB] failed to make API request: invalid API key format (key: %s)", t.validator.MaskAPIKey(t.apiKey))
		return apperrors.NewConfigurationError("invalid TMDB API key format", nil)
	}
	return nil
}

// pageScope namespaces cached pages by language, since titles and overviews
// are localized.
func (t *TMDB) pageScope(catalog models.Catalog) string {
	return t.language + ":" + string(catalog)
}

func (t *TMDB) checkMemoryCache(cacheKey string) *models.TMDBMovieResponse {
	if data, found := t.cache.Get(cacheKey); found {
		return data.(*models.TMDBMovieResponse)
	}
	return nil
}

func (t *TMDB) checkDatabaseCache(catalog models.Catalog, page int, cacheKey string) *models.TMDBMovieResponse {
	if t.db == nil {
		return nil
	}

	resp, err := t.db.GetPage(t.pageScope(catalog), page, t.pageTTL)
	if err != nil {
		t.logger.Warnf("[TMDB] failed to read page store for %s: %v", cacheKey, err)
		return nil
	}
	if resp == nil {
		return nil
	}

	t.cache.Set(cacheKey, resp)
	return resp
}

func (t *TMDB) storePage(catalog models.Catalog, page int, resp *models.TMDBMovieResponse) {
	if t.db == nil {
		return
	}
	if err := t.db.StorePage(t.pageScope(catalog), page, resp); err != nil {
		t.logger.Errorf("[TMDB] failed to store %s page %d: %v", catalog, page, err)
	}
}

// buildDiscoverURL renders the discover query of a catalog. The anime
// catalog is the general query restricted to the animation genre.
func (t *TMDB) buildDiscoverURL(catalog models.Catalog, page int) string {
	q := url.Values{}
	q.Set("api_key", t.apiKey)
	q.Set("language", t.language)
	q.Set("sort_by", constants.DiscoverSortBy)
	q.Set("include_adult", "false")
	q.Set("vote_count.gte", strconv.Itoa(constants.DiscoverMinVoteCount))
	q.Set("page", strconv.Itoa(page))
	if catalog == models.CatalogAnime {
		q.Set("with_genres", constants.AnimeGenreID)
	}
	return t.baseURL + "/discover/movie?" + q.Encode()
}

func (t *TMDB) fetchDiscover(ctx context.Context, catalog models.Catalog, page int) (*models.TMDBMovieResponse, error) {
	if err := t.rateLimiter.Wait(ctx); err != nil {
		return nil, apperrors.NewFetchError(string(catalog), page, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.buildDiscoverURL(catalog, page), nil)
	if err != nil {
		return nil, apperrors.NewFetchError(string(catalog), page, err)
	}
	req.Header.Set("Accept", "application/json")

	t.logger.Debugf("[TMDB] fetching %s page %d", catalog, page)

	resp, err := httputil.DoWithRetry(ctx, t.httpClient, req, t.maxRetries)
	if err != nil {
		var statusErr *httputil.StatusError
		if errors.As(err, &statusErr) && statusErr.Code == http.StatusTooManyRequests {
			return nil, apperrors.NewRateLimitError(string(catalog), page)
		}
		return nil, apperrors.NewFetchError(string(catalog), page, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.NewFetchError(string(catalog), page, t.decodeAPIError(resp))
	}

	var body models.TMDBMovieResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, apperrors.NewDecodeError(string(catalog), page, err)
	}

	t.logger.Debugf("[TMDB] %s page %d returned %d results", catalog, page, len(body.Results))
	return &body, nil
}

func (t *TMDB) decodeAPIError(resp *http.Response) error {
	var apiErr models.TMDBErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.StatusMessage != "" {
		return fmt.Errorf("TMDB API error: status %d: %s", resp.StatusCode, apiErr.StatusMessage)
	}
	return fmt.Errorf("TMDB API error: status %d", resp.StatusCode)
}
