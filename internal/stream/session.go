package stream

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/amaumene/moviematch/internal/constants"
	apperrors "github.com/amaumene/moviematch/internal/errors"
	"github.com/amaumene/moviematch/internal/models"
	"github.com/amaumene/moviematch/pkg/logger"
)

var (
	ErrSessionBusy   = errors.New("session is loading")
	ErrSessionClosed = errors.New("session is closed")
	ErrSessionReset  = errors.New("session was reset while loading")
	ErrNotReady      = errors.New("session has no items yet")
	ErrInvalidAction = errors.New("invalid swipe action")
)

// State is the lifecycle position of a session.
type State int

const (
	StateEmpty State = iota
	StateLoading
	StateReady
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Preloader warms image URLs in the background. Preload must not block.
type Preloader interface {
	Preload(urls []string)
}

// Recorder receives every swipe for downstream history keeping.
type Recorder interface {
	Record(sessionID string, item models.ResultItem, action models.Interaction)
}

type noopPreloader struct{}

func (noopPreloader) Preload([]string) {}

type noopRecorder struct{}

func (noopRecorder) Record(string, models.ResultItem, models.Interaction) {}

// Options tunes a session. Zero values fall back to the package defaults,
// except PreloadCount where 0 disables warming.
type Options struct {
	Threshold    int
	PreloadCount int
	FetchTimeout time.Duration
	Preloader    Preloader
	Recorder     Recorder
	Logger       logger.Logger
}

func (o Options) withDefaults() Options {
	if o.Threshold <= 0 {
		o.Threshold = constants.DefaultRefillThreshold
	}
	if o.PreloadCount < 0 {
		o.PreloadCount = constants.DefaultPreloadCount
	}
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = constants.DefaultFetchTimeout
	}
	if o.Preloader == nil {
		o.Preloader = noopPreloader{}
	}
	if o.Recorder == nil {
		o.Recorder = noopRecorder{}
	}
	if o.Logger == nil {
		o.Logger = logger.New()
	}
	return o
}

// Status is a point-in-time view of a session.
type Status struct {
	ID           string    `json:"id"`
	State        string    `json:"state"`
	Length       int       `json:"length"`
	Cursor       int       `json:"cursor"`
	Remaining    int       `json:"remaining"`
	InFlight     bool      `json:"inFlight"`
	GeneralPages []int     `json:"generalPages"`
	AnimePages   []int     `json:"animePages"`
	LastActive   time.Time `json:"lastActive"`
}

// SwipeResult describes the outcome of one swipe.
type SwipeResult struct {
	Action models.Interaction `json:"action"`
	Item   models.ResultItem  `json:"item"`
	Match  bool               `json:"match"`
	Next   *models.ResultItem `json:"next,omitempty"`
}

// Session owns the buffer, the requested pages and the in-flight flag of
// one random-mode run. At most one batch fetch is in flight at any time, so
// batches land in the buffer in the order they were requested.
type Session struct {
	id      string
	fetcher *Fetcher
	opts    Options
	logger  logger.Logger
	now     func() time.Time

	mu          sync.Mutex
	state       State
	buffer      *Buffer
	pages       *PageSets
	inFlight    bool
	generation  uint64
	cancelFetch context.CancelFunc
	lastActive  time.Time

	refills sync.WaitGroup
}

func NewSession(id string, fetcher *Fetcher, opts Options) *Session {
	opts = opts.withDefaults()
	return &Session{
		id:         id,
		fetcher:    fetcher,
		opts:       opts,
		logger:     opts.Logger,
		now:        time.Now,
		state:      StateEmpty,
		buffer:     NewBuffer(),
		pages:      NewPageSets(),
		lastActive: time.Now(),
	}
}

func (s *Session) ID() string {
	return s.id
}

// Start performs the blocking first fetch with empty page sets. On an empty
// batch the session falls back to empty and Start may be called again.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case StateReady:
		s.mu.Unlock()
		return nil
	case StateLoading:
		s.mu.Unlock()
		return ErrSessionBusy
	case StateClosed:
		s.mu.Unlock()
		return ErrSessionClosed
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.opts.FetchTimeout)
	defer cancel()

	s.state = StateLoading
	s.inFlight = true
	s.pages = NewPageSets()
	s.cancelFetch = cancel
	gen := s.generation
	pages := s.pages
	s.mu.Unlock()

	s.logger.Infof("[Session %s] loading first batch", s.id)
	batch := s.fetcher.FetchBatch(fetchCtx, pages)

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return ErrSessionReset
	}
	s.inFlight = false
	s.cancelFetch = nil
	s.touchLocked()

	if len(batch) == 0 {
		s.state = StateEmpty
		s.mu.Unlock()
		if err := fetchCtx.Err(); errors.Is(err, context.DeadlineExceeded) {
			return apperrors.NewTimeoutError("first batch")
		}
		return apperrors.NewEmptyBatchError()
	}

	added := s.buffer.Append(batch)
	s.state = StateReady
	urls := imageURLs(s.buffer.FromCursor(s.opts.PreloadCount))
	s.maybeRefillLocked()
	s.mu.Unlock()

	s.logger.Infof("[Session %s] ready with %d items", s.id, added)
	s.preload(urls)
	return nil
}

// Current returns the item under the cursor. Reading counts as activity.
func (s *Session) Current() (models.ResultItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked()
	return s.buffer.Current()
}

// Advance moves to the next item, warms the following images and starts a
// background refill when the unseen tail is short.
func (s *Session) Advance() (models.ResultItem, bool) {
	s.mu.Lock()
	item, urls, ok := s.advanceLocked()
	s.mu.Unlock()

	s.preload(urls)
	return item, ok
}

func (s *Session) advanceLocked() (models.ResultItem, []string, bool) {
	if s.state != StateReady {
		return models.ResultItem{}, nil, false
	}

	s.buffer.Advance()
	s.touchLocked()
	urls := imageURLs(s.buffer.Upcoming(s.opts.PreloadCount))
	s.maybeRefillLocked()
	item, ok := s.buffer.Current()
	return item, urls, ok
}

// Swipe records an action on the current item. A like ends the round with
// that item as the match; dislike and skip move on to the next item. The
// item read and the cursor move happen under one lock, so concurrent swipes
// each consume a distinct item.
func (s *Session) Swipe(action models.Interaction) (SwipeResult, error) {
	if !action.Valid() {
		return SwipeResult{}, ErrInvalidAction
	}

	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return SwipeResult{}, ErrSessionClosed
	}
	item, ok := s.buffer.Current()
	if s.state != StateReady || !ok {
		s.mu.Unlock()
		return SwipeResult{}, ErrNotReady
	}

	result := SwipeResult{Action: action, Item: item}
	var urls []string
	if action == models.InteractionLike {
		result.Match = true
		s.touchLocked()
	} else {
		next, nextURLs, hasNext := s.advanceLocked()
		if hasNext {
			result.Next = &next
		}
		urls = nextURLs
	}
	s.mu.Unlock()

	s.opts.Recorder.Record(s.id, item, action)
	s.preload(urls)
	return result, nil
}

// Reset discards the buffer and page sets. A refill still in flight is
// cancelled and its result ignored.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
	if s.state != StateClosed {
		s.state = StateEmpty
	}
	s.logger.Infof("[Session %s] reset", s.id)
}

// Close resets the session for good.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
	s.state = StateClosed
}

// Wait blocks until no background refill is running.
func (s *Session) Wait() {
	s.refills.Wait()
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// Status reports the session and, like Current, counts as activity.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked()
	return Status{
		ID:           s.id,
		State:        s.state.String(),
		Length:       s.buffer.Len(),
		Cursor:       s.buffer.Cursor(),
		Remaining:    s.buffer.Remaining(),
		InFlight:     s.inFlight,
		GeneralPages: s.pages.Fetched(models.CatalogGeneral),
		AnimePages:   s.pages.Fetched(models.CatalogAnime),
		LastActive:   s.lastActive,
	}
}

func (s *Session) resetLocked() {
	if s.cancelFetch != nil {
		s.cancelFetch()
		s.cancelFetch = nil
	}
	s.generation++
	s.inFlight = false
	s.buffer = NewBuffer()
	s.pages = NewPageSets()
}

func (s *Session) touchLocked() {
	s.lastActive = s.now()
}

// maybeRefillLocked starts a background batch when the session is ready,
// fewer than Threshold items are unseen and nothing is in flight.
func (s *Session) maybeRefillLocked() bool {
	if s.state != StateReady || s.inFlight || s.buffer.Remaining() >= s.opts.Threshold {
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.opts.FetchTimeout)
	s.inFlight = true
	s.cancelFetch = cancel
	gen := s.generation
	pages := s.pages

	s.logger.Debugf("[Session %s] refill triggered with %d unseen", s.id, s.buffer.Remaining())

	s.refills.Add(1)
	go s.refill(ctx, cancel, gen, pages)
	return true
}

func (s *Session) refill(ctx context.Context, cancel context.CancelFunc, gen uint64, pages *PageSets) {
	defer s.refills.Done()
	defer cancel()

	started := s.now()
	batch := s.fetcher.FetchBatch(ctx, pages)
	timedOut := errors.Is(ctx.Err(), context.DeadlineExceeded)

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		s.logger.Debugf("[Session %s] dropping refill from before reset", s.id)
		return
	}
	s.inFlight = false
	s.cancelFetch = nil

	if timedOut {
		s.logger.Warnf("[Session %s] refill timed out after %v", s.id, s.now().Sub(started))
	}

	added := s.buffer.Append(batch)
	s.logger.Infof("[Session %s] refill appended %d of %d items (buffer %d)", s.id, added, len(batch), s.buffer.Len())

	// An empty or fully duplicate batch waits for the next advance instead of
	// retrying immediately.
	if added > 0 {
		s.maybeRefillLocked()
	}
}

func (s *Session) preload(urls []string) {
	if len(urls) > 0 {
		s.opts.Preloader.Preload(urls)
	}
}

func imageURLs(items []models.ResultItem) []string {
	urls := make([]string, 0, len(items))
	for _, item := range items {
		if item.Image != "" {
			urls = append(urls, item.Image)
		}
	}
	return urls
}
