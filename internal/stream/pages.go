package stream

import (
	"sort"
	"sync"

	"github.com/amaumene/moviematch/internal/constants"
	"github.com/amaumene/moviematch/internal/models"
)

// PageSet holds the page numbers already requested for one catalog.
type PageSet map[int]struct{}

func NewPageSet(pages ...int) PageSet {
	s := make(PageSet, len(pages))
	for _, p := range pages {
		s.Add(p)
	}
	return s
}

func (s PageSet) Has(page int) bool {
	_, ok := s[page]
	return ok
}

func (s PageSet) Add(page int) {
	s[page] = struct{}{}
}

func (s PageSet) Len() int {
	return len(s)
}

// Sorted returns the pages in ascending order.
func (s PageSet) Sorted() []int {
	pages := make([]int, 0, len(s))
	for p := range s {
		pages = append(pages, p)
	}
	sort.Ints(pages)
	return pages
}

// SelectPage picks the next page to request for a catalog. Pages not yet in
// fetched are chosen uniformly; once all of 1..MaxCatalogPage have been
// requested any page may be chosen again.
func SelectPage(fetched PageSet, rng Rand) int {
	available := make([]int, 0, constants.MaxCatalogPage)
	for p := 1; p <= constants.MaxCatalogPage; p++ {
		if !fetched.Has(p) {
			available = append(available, p)
		}
	}

	if len(available) == 0 {
		// TODO: exhausted catalogs recycle pages at random; revisit once
		// product decides whether total_pages from the response should bound this.
		return rng.IntN(constants.MaxCatalogPage) + 1
	}
	return available[rng.IntN(len(available))]
}

// PageSets tracks requested pages for every catalog of a session.
type PageSets struct {
	mu   sync.Mutex
	sets map[models.Catalog]PageSet
}

func NewPageSets() *PageSets {
	sets := make(map[models.Catalog]PageSet, len(models.Catalogs))
	for _, c := range models.Catalogs {
		sets[c] = NewPageSet()
	}
	return &PageSets{sets: sets}
}

// Reserve selects a page for catalog and marks it requested in one step, so
// a concurrent planner can never pick the same unfetched page.
func (p *PageSets) Reserve(catalog models.Catalog, rng Rand) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	set, ok := p.sets[catalog]
	if !ok {
		set = NewPageSet()
		p.sets[catalog] = set
	}
	page := SelectPage(set, rng)
	set.Add(page)
	return page
}

// Fetched returns the requested pages of a catalog in ascending order.
func (p *PageSets) Fetched(catalog models.Catalog) []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sets[catalog].Sorted()
}

func (p *PageSets) Count(catalog models.Catalog) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sets[catalog].Len()
}
