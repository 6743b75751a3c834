package services

import (
	"context"
	"fmt"
	"time"

	"github.com/amaumene/moviematch/internal/models"
	"github.com/amaumene/moviematch/internal/stream"
	"github.com/amaumene/moviematch/pkg/httputil"
	"github.com/amaumene/moviematch/pkg/logger"
)

const testAPIKey = "0123456789abcdef0123456789abcdef"

func init() {
	httputil.RetryBaseDelay = time.Millisecond
}

// stubSource returns n synthetic records per page, or err when set.
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
		results = append(results, models.TMDBMovie{
			ID:          id,
			Title:       fmt.Sprintf("Movie %d", id),
			Overview:    "overview",
			PosterPath:  fmt.Sprintf("/%d.jpg", id),
			VoteAverage: 7,
		})
	}
	return &models.TMDBMovieResponse{Page: page, Results: results}, nil
}

func newTestStore(src stream.Source) *SessionStore {
	fetcher := stream.NewFetcher(src, stream.WithRand(stream.NewRand(1, 2)), stream.WithLogger(logger.Discard()))
	return NewSessionStore(fetcher, stream.Options{FetchTimeout: time.Second}, logger.Discard())
}
