package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/amaumene/moviematch/internal/constants"
	apperrors "github.com/amaumene/moviematch/internal/errors"
	"github.com/amaumene/moviematch/internal/models"
	"github.com/amaumene/moviematch/pkg/httputil"
	"github.com/amaumene/moviematch/pkg/logger"
)

var proxyPaths = map[models.Catalog]string{
	models.CatalogGeneral: "/api/discover/top-rated",
	models.CatalogAnime:   "/api/discover/anime",
}

// ProxySource reads discover pages from another moviematch server, so that
// clients never hold a TMDB key themselves.
type ProxySource struct {
	baseURL    string
	httpClient *http.Client
	maxRetries int
	logger     logger.Logger
}

func NewProxySource(baseURL string, client *http.Client, maxRetries int, log logger.Logger) *ProxySource {
	if client == nil {
		client = httputil.NewHTTPClient(constants.HTTPTimeout)
	}
	if log == nil {
		log = logger.New()
	}
	return &ProxySource{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: client,
		maxRetries: maxRetries,
		logger:     log,
	}
}

func (p *ProxySource) FetchPage(ctx context.Context, catalog models.Catalog, page int) (*models.TMDBMovieResponse, error) {
	path, ok := proxyPaths[catalog]
	if !ok {
		return nil, apperrors.NewConfigurationError(fmt.Sprintf("unknown catalog %q", catalog), nil)
	}

	endpoint := p.baseURL + path + "?" + url.Values{"page": {strconv.Itoa(page)}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, apperrors.NewFetchError(string(catalog), page, err)
	}

	p.logger.Debugf("[Proxy] fetching %s page %d", catalog, page)

	resp, err := httputil.DoWithRetry(ctx, p.httpClient, req, p.maxRetries)
	if err != nil {
		var statusErr *httputil.StatusError
		if errors.As(err, &statusErr) && statusErr.Code == http.StatusTooManyRequests {
			return nil, apperrors.NewRateLimitError(string(catalog), page)
		}
		return nil, apperrors.NewFetchError(string(catalog), page, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var body struct {
			Error string `json:"error"`
		}
		json.NewDecoder(resp.Body).Decode(&body)
		return nil, apperrors.NewFetchError(string(catalog), page, fmt.Errorf("proxy status %d: %s", resp.StatusCode, body.Error))
	}

	var out models.TMDBMovieResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, apperrors.NewDecodeError(string(catalog), page, err)
	}
	return &out, nil
}
