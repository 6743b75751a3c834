// Package stream turns two paginated catalogs into one endless, deduplicated
// swipe queue.
package stream

import (
	"context"
	"math"
	"strings"

	"github.com/sourcegraph/conc/pool"

	"github.com/amaumene/moviematch/internal/constants"
	"github.com/amaumene/moviematch/internal/models"
	"github.com/amaumene/moviematch/pkg/logger"
)

// Source fetches one page of one catalog.
type Source interface {
	FetchPage(ctx context.Context, catalog models.Catalog, page int) (*models.TMDBMovieResponse, error)
}

// Fetcher builds shuffled batches from one page of each catalog.
type Fetcher struct {
	source    Source
	rng       Rand
	imageBase string
	logger    logger.Logger
}

type FetcherOption func(*Fetcher)

func WithRand(rng Rand) FetcherOption {
	return func(f *Fetcher) { f.rng = rng }
}

func WithImageBase(base string) FetcherOption {
	return func(f *Fetcher) { f.imageBase = base }
}

func WithLogger(log logger.Logger) FetcherOption {
	return func(f *Fetcher) { f.logger = log }
}

func NewFetcher(source Source, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		source:    source,
		rng:       DefaultRand(),
		imageBase: constants.ImageBaseURL,
		logger:    logger.New(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FetchBatch reserves one page per catalog in pages and returns the combined
// batch. Pages are marked before any request is sent.
func (f *Fetcher) FetchBatch(ctx context.Context, pages *PageSets) []models.ResultItem {
	genPage := pages.Reserve(models.CatalogGeneral, f.rng)
	aniPage := pages.Reserve(models.CatalogAnime, f.rng)

	f.logger.Infof("[Fetcher] hybrid fetch - general page: %d, anime page: %d", genPage, aniPage)
	return f.FetchPages(ctx, genPage, aniPage)
}

// FetchPages fetches both catalogs concurrently. A failing catalog
// contributes nothing; the result is never an error.
func (f *Fetcher) FetchPages(ctx context.Context, genPage, aniPage int) []models.ResultItem {
	var general, anime []models.TMDBMovie

	p := pool.New()
	p.Go(func() {
		general = f.fetchCatalog(ctx, models.CatalogGeneral, genPage)
	})
	p.Go(func() {
		anime = f.fetchCatalog(ctx, models.CatalogAnime, aniPage)
	})
	p.Wait()

	items := make([]models.ResultItem, 0, len(general)+len(anime))
	seen := make(map[int]struct{}, len(general)+len(anime))
	items = f.appendUsable(items, seen, general, models.CatalogGeneral)
	items = f.appendUsable(items, seen, anime, models.CatalogAnime)

	Shuffle(items, f.rng)

	f.logger.Debugf("[Fetcher] batch ready: %d items (general raw %d, anime raw %d)", len(items), len(general), len(anime))
	return items
}

func (f *Fetcher) fetchCatalog(ctx context.Context, catalog models.Catalog, page int) []models.TMDBMovie {
	resp, err := f.source.FetchPage(ctx, catalog, page)
	if err != nil {
		f.logger.Errorf("[Fetcher] %s page %d fetch error: %v", catalog, page, err)
		return nil
	}
	if resp == nil {
		return nil
	}
	return resp.Results
}

func (f *Fetcher) appendUsable(items []models.ResultItem, seen map[int]struct{}, records []models.TMDBMovie, catalog models.Catalog) []models.ResultItem {
	for _, m := range records {
		if !Usable(m) {
			continue
		}
		if _, dup := seen[m.ID]; dup {
			continue
		}
		seen[m.ID] = struct{}{}
		items = append(items, Normalize(m, catalog, f.imageBase))
	}
	return items
}

// Usable reports whether a record has a synopsis worth showing.
func Usable(m models.TMDBMovie) bool {
	return strings.TrimSpace(m.Overview) != ""
}

// Normalize maps a raw record to the queue's item shape.
func Normalize(m models.TMDBMovie, catalog models.Catalog, imageBase string) models.ResultItem {
	return models.ResultItem{
		Title:     m.Title,
		Desc:      m.Overview,
		Image:     ImageURL(imageBase, m.PosterPath),
		MatchRate: MatchRate(m.VoteAverage),
		TMDBID:    m.ID,
		Catalog:   catalog,
	}
}

// MatchRate converts a 0-10 score to a whole percentage.
func MatchRate(score float64) int {
	return int(math.Floor(score * 10))
}

// ImageURL resolves a poster path, or returns "" when there is none.
func ImageURL(base, path string) string {
	if path == "" {
		return ""
	}
	return base + path
}
