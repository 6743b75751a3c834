package stream

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/amaumene/moviematch/internal/models"
)

// fakeSource serves canned pages and counts calls per catalog.
type fakeSource struct {
	mu    sync.Mutex
	pages map[models.Catalog]func(page int) (*models.TMDBMovieResponse, error)
	calls map[models.Catalog][]int
	block chan struct{}
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		pages: make(map[models.Catalog]func(int) (*models.TMDBMovieResponse, error)),
		calls: make(map[models.Catalog][]int),
	}
}

func (f *fakeSource) FetchPage(ctx context.Context, catalog models.Catalog, page int) (*models.TMDBMovieResponse, error) {
	f.mu.Lock()
	f.calls[catalog] = append(f.calls[catalog], page)
	handler := f.pages[catalog]
	block := f.block
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if handler == nil {
		return nil, errors.New("no handler")
	}
	return handler(page)
}

func (f *fakeSource) callCount(catalog models.Catalog) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls[catalog])
}

// pageOf returns a handler that yields n records per page with ids unique to
// catalog and page.
func pageOf(base, n int) func(int) (*models.TMDBMovieResponse, error) {
	return func(page int) (*models.TMDBMovieResponse, error) {
		results := make([]models.TMDBMovie, 0, n)
		for i := 0; i < n; i++ {
			id := base + page*100 + i
			results = append(results, models.TMDBMovie{
				ID:          id,
				Title:       fmt.Sprintf("Title %d", id),
				Overview:    "A synopsis.",
				PosterPath:  fmt.Sprintf("/p%d.jpg", id),
				VoteAverage: 7.5,
			})
		}
		return &models.TMDBMovieResponse{Page: page, Results: results, TotalPages: 500}, nil
	}
}

func failing(err error) func(int) (*models.TMDBMovieResponse, error) {
	return func(int) (*models.TMDBMovieResponse, error) { return nil, err }
}

func items(ids ...int) []models.ResultItem {
	out := make([]models.ResultItem, 0, len(ids))
	for _, id := range ids {
		out = append(out, models.ResultItem{
			Title:  fmt.Sprintf("Title %d", id),
			Image:  fmt.Sprintf("https://img/%d.jpg", id),
			TMDBID: id,
		})
	}
	return out
}

// recordingPreloader captures every preload request.
type recordingPreloader struct {
	mu    sync.Mutex
	calls [][]string
}

func (r *recordingPreloader) Preload(urls []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, append([]string(nil), urls...))
}

func (r *recordingPreloader) last() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.calls) == 0 {
		return nil
	}
	return r.calls[len(r.calls)-1]
}

type recordedSwipe struct {
	item   models.ResultItem
	action models.Interaction
}

type recordingRecorder struct {
	mu     sync.Mutex
	swipes []recordedSwipe
}

func (r *recordingRecorder) Record(_ string, item models.ResultItem, action models.Interaction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.swipes = append(r.swipes, recordedSwipe{item: item, action: action})
}
