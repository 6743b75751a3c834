package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"

	"github.com/sourcegraph/conc/pool"

	"github.com/amaumene/moviematch/internal/cache"
	"github.com/amaumene/moviematch/internal/constants"
	"github.com/amaumene/moviematch/pkg/httputil"
	"github.com/amaumene/moviematch/pkg/logger"
)

// Image is a fetched poster.
type Image struct {
	ContentType string
	Data        []byte
}

// ImagePreloader warms poster images ahead of the cursor. Failures are only
// logged; a cold image is fetched again on demand by Get.
type ImagePreloader struct {
	cache       *cache.LRUCache
	httpClient  *http.Client
	allowedHost string
	workers     int
	logger      logger.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	pending map[string]struct{}
	wg      sync.WaitGroup
}

func NewImagePreloader(c *cache.LRUCache, client *http.Client, allowedHost string, log logger.Logger) *ImagePreloader {
	if client == nil {
		client = httputil.NewHTTPClient(constants.HTTPTimeout)
	}
	if log == nil {
		log = logger.New()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &ImagePreloader{
		cache:       c,
		httpClient:  client,
		allowedHost: allowedHost,
		workers:     constants.PreloadWorkers,
		logger:      log,
		ctx:         ctx,
		cancel:      cancel,
		pending:     make(map[string]struct{}),
	}
}

// Preload schedules the download of every url not yet cached or in flight
// and returns immediately.
func (p *ImagePreloader) Preload(urls []string) {
	todo := p.claim(urls)
	if len(todo) == 0 {
		return
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		workers := pool.New().WithMaxGoroutines(p.workers)
		for _, u := range todo {
			workers.Go(func() {
				defer p.release(u)
				if _, err := p.fetch(p.ctx, u); err != nil {
					p.logger.Debugf("[Preloader] failed to warm %s: %v", u, err)
				}
			})
		}
		workers.Wait()
	}()
}

// Get returns the image at rawURL from the cache, fetching it on a miss.
func (p *ImagePreloader) Get(ctx context.Context, rawURL string) (*Image, error) {
	if !p.Allowed(rawURL) {
		return nil, fmt.Errorf("image host not allowed: %s", rawURL)
	}
	if img, ok := p.cached(rawURL); ok {
		return img, nil
	}
	return p.fetch(ctx, rawURL)
}

// Allowed reports whether rawURL points at the poster host.
func (p *ImagePreloader) Allowed(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return false
	}
	return u.Host == p.allowedHost
}

// Wait blocks until every scheduled preload has finished.
func (p *ImagePreloader) Wait() {
	p.wg.Wait()
}

// Close aborts outstanding downloads and drops the cached images.
func (p *ImagePreloader) Close() {
	p.cancel()
	p.wg.Wait()
	p.cache.Clear()
}

func (p *ImagePreloader) claim(urls []string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	var todo []string
	for _, u := range urls {
		if u == "" || !p.Allowed(u) {
			continue
		}
		if _, busy := p.pending[u]; busy {
			continue
		}
		if _, ok := p.cache.Get(u); ok {
			continue
		}
		p.pending[u] = struct{}{}
		todo = append(todo, u)
	}
	return todo
}

func (p *ImagePreloader) release(u string) {
	p.mu.Lock()
	delete(p.pending, u)
	p.mu.Unlock()
}

func (p *ImagePreloader) cached(u string) (*Image, bool) {
	if v, ok := p.cache.Get(u); ok {
		return v.(*Image), true
	}
	return nil, false
}

func (p *ImagePreloader) fetch(ctx context.Context, u string) (*Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &httputil.StatusError{Code: resp.StatusCode}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, constants.MaxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if len(data) > constants.MaxImageBytes {
		return nil, fmt.Errorf("image larger than %d bytes", constants.MaxImageBytes)
	}

	img := &Image{ContentType: resp.Header.Get("Content-Type"), Data: data}
	p.cache.Set(u, img)
	p.logger.Debugf("[Preloader] cached %s (%d bytes)", u, len(data))
	return img, nil
}
