package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amaumene/moviematch/internal/cache"
	"github.com/amaumene/moviematch/internal/models"
	"github.com/amaumene/moviematch/internal/services"
	"github.com/amaumene/moviematch/internal/stream"
	"github.com/amaumene/moviematch/pkg/logger"
	"github.com/amaumene/moviematch/pkg/ratelimiter"
)

const testAPIKey = "0123456789abcdef0123456789abcdef"

func init() {
	gin.SetMode(gin.TestMode)
}

type stubSource struct {
	n   int
	err error
}

func (s stubSource) FetchPage(_ context.Context, catalog models.Catalog, page int) (*models.TMDBMovieResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	base := 0
	if catalog == models.CatalogAnime {
		base = 100000
	}
	results := make([]models.TMDBMovie, 0, s.n)
	for i := 0; i < s.n; i++ {
		id := base + page*1000 + i
		results = append(results, models.TMDBMovie{ID: id, Title: fmt.Sprintf("Movie %d", id), Overview: "overview", VoteAverage: 6.4})
	}
	return &models.TMDBMovieResponse{Page: page, Results: results}, nil
}

type testEnv struct {
	router *gin.Engine
	tmdb   *httptest.Server
	images *httptest.Server
}

func newTestEnv(t *testing.T, src stream.Source, apiKey string, tmdbHandler http.HandlerFunc) *testEnv {
	t.Helper()

	if tmdbHandler == nil {
		tmdbHandler = func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(models.TMDBMovieResponse{
				Page:    1,
				Results: []models.TMDBMovie{{ID: 1, Title: "もののけ姫", Overview: "forest", PosterPath: "/m.jpg", VoteAverage: 8.3}},
			})
		}
	}
	tmdbSrv := httptest.NewServer(tmdbHandler)
	t.Cleanup(tmdbSrv.Close)

	imgSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte("poster"))
	}))
	t.Cleanup(imgSrv.Close)
	imgURL, err := url.Parse(imgSrv.URL)
	require.NoError(t, err)

	log := logger.Discard()
	tmdb := services.NewTMDB(apiKey, cache.New(10, time.Hour),
		services.WithBaseURL(tmdbSrv.URL),
		services.WithRateLimiter(ratelimiter.NewTokenBucket(100, 100)),
		services.WithMaxRetries(0),
		services.WithTMDBLogger(log),
	)
	fetcher := stream.NewFetcher(src, stream.WithRand(stream.NewRand(1, 2)), stream.WithLogger(log))
	images := services.NewImagePreloader(cache.New(10, time.Hour), imgSrv.Client(), imgURL.Host, log)
	t.Cleanup(images.Close)

	container := &services.Container{
		TMDB:     tmdb,
		Source:   src,
		Sessions: services.NewSessionStore(fetcher, stream.Options{FetchTimeout: time.Second, Logger: log}, log),
		Images:   images,
		Logger:   log,
	}
	t.Cleanup(container.Sessions.CloseAll)

	r := gin.New()
	New(container, nil).RegisterRoutes(r)
	return &testEnv{router: r, tmdb: tmdbSrv, images: imgSrv}
}

func (e *testEnv) do(method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, stubSource{n: 20}, testAPIKey, nil)

	w := env.do(http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","sessions":0}`, w.Body.String())
}

func TestDiscover_RelaysTMDBPage(t *testing.T) {
	env := newTestEnv(t, stubSource{n: 20}, testAPIKey, nil)

	w := env.do(http.MethodGet, "/api/discover/anime?page=2", "")

	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[models.TMDBMovieResponse](t, w)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "もののけ姫", resp.Results[0].Title)
}

func TestDiscover_MissingAPIKey(t *testing.T) {
	env := newTestEnv(t, stubSource{n: 20}, "", nil)

	w := env.do(http.MethodGet, "/api/discover/top-rated", "")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Server configuration error: API Key missing"}`, w.Body.String())
}

func TestDiscover_UpstreamFailure(t *testing.T) {
	env := newTestEnv(t, stubSource{n: 20}, testAPIKey, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	w := env.do(http.MethodGet, "/api/discover/top-rated?page=1", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Failed to fetch movies"}`, w.Body.String())

	w = env.do(http.MethodGet, "/api/discover/anime?page=1", "")
	assert.JSONEq(t, `{"error":"Failed to fetch anime"}`, w.Body.String())
}

func TestDiscover_BadPage(t *testing.T) {
	env := newTestEnv(t, stubSource{n: 20}, testAPIKey, nil)

	w := env.do(http.MethodGet, "/api/discover/top-rated?page=abc", "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSessions_Flow(t *testing.T) {
	env := newTestEnv(t, stubSource{n: 20}, testAPIKey, nil)

	w := env.do(http.MethodPost, "/api/sessions", "")
	require.Equal(t, http.StatusCreated, w.Code)
	created := decode[sessionResponse](t, w)
	require.NotNil(t, created.Current)
	assert.Equal(t, "ready", created.Session.State)
	assert.Equal(t, 40, created.Session.Length)
	id := created.Session.ID

	w = env.do(http.MethodPost, "/api/sessions/"+id+"/advance", "")
	require.Equal(t, http.StatusOK, w.Code)
	advanced := decode[sessionResponse](t, w)
	assert.Equal(t, 1, advanced.Session.Cursor)

	w = env.do(http.MethodPost, "/api/sessions/"+id+"/swipe", `{"action":"like"}`)
	require.Equal(t, http.StatusOK, w.Code)
	swiped := decode[stream.SwipeResult](t, w)
	assert.True(t, swiped.Match)
	assert.Equal(t, advanced.Current.TMDBID, swiped.Item.TMDBID)

	w = env.do(http.MethodPost, "/api/sessions/"+id+"/swipe", `{"action":"meh"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodPost, "/api/sessions/"+id+"/reset", "")
	require.Equal(t, http.StatusOK, w.Code)
	reset := decode[sessionResponse](t, w)
	assert.Equal(t, 0, reset.Session.Cursor)
	assert.Len(t, reset.Session.GeneralPages, 1)

	w = env.do(http.MethodGet, "/api/sessions/"+id, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(http.MethodDelete, "/api/sessions/"+id, "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = env.do(http.MethodGet, "/api/sessions/"+id, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSessions_EmptyFirstBatch(t *testing.T) {
	env := newTestEnv(t, stubSource{err: errors.New("down")}, testAPIKey, nil)

	w := env.do(http.MethodPost, "/api/sessions", "")

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestImages(t *testing.T) {
	env := newTestEnv(t, stubSource{n: 20}, testAPIKey, nil)

	w := env.do(http.MethodGet, "/api/images?url="+url.QueryEscape(env.images.URL+"/p.jpg"), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "poster", w.Body.String())
	assert.Equal(t, "image/jpeg", w.Header().Get("Content-Type"))

	w = env.do(http.MethodGet, "/api/images?url="+url.QueryEscape("https://evil.example/p.jpg"), "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
