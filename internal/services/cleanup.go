package services

import (
	"context"
	"sync"
	"time"

	"github.com/amaumene/moviematch/internal/cache"
	"github.com/amaumene/moviematch/internal/constants"
	"github.com/amaumene/moviematch/internal/database"
	"github.com/amaumene/moviematch/pkg/logger"
)

// SessionJanitor periodically closes idle sessions and drops stale cached
// catalog pages.
type SessionJanitor struct {
	store           *SessionStore
	db              database.Database
	cache           *cache.LRUCache
	logger          logger.Logger
	interval        time.Duration
	idleTTL         time.Duration
	retentionPeriod time.Duration
	now             func() time.Time
	mu              sync.Mutex
	running         bool
	stopChan        chan struct{}
	done            chan struct{}
}

// NewSessionJanitor creates a janitor. db and c may be nil.
func NewSessionJanitor(store *SessionStore, db database.Database, c *cache.LRUCache, log logger.Logger) *SessionJanitor {
	if log == nil {
		log = logger.New()
	}
	return &SessionJanitor{
		store:           store,
		db:              db,
		cache:           c,
		logger:          log,
		interval:        constants.DefaultJanitorInterval,
		idleTTL:         constants.DefaultSessionIdleTTL,
		retentionPeriod: constants.DefaultPageCacheTTL * time.Hour,
		now:             time.Now,
		stopChan:        make(chan struct{}),
		done:            make(chan struct{}),
	}
}

// SetIdleTTL sets how long a session may stay untouched
func (j *SessionJanitor) SetIdleTTL(d time.Duration) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.idleTTL = d
}

// SetRetentionPeriod sets how long stored pages are kept
func (j *SessionJanitor) SetRetentionPeriod(d time.Duration) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.retentionPeriod = d
}

// SetInterval sets how often the janitor runs
func (j *SessionJanitor) SetInterval(d time.Duration) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.interval = d
}

// Start runs one sweep and then sweeps every interval until ctx is done or
// Stop is called.
func (j *SessionJanitor) Start(ctx context.Context) error {
	j.mu.Lock()
	if j.running {
		j.mu.Unlock()
		return nil
	}
	j.running = true
	interval := j.interval
	j.mu.Unlock()

	j.logger.Infof("[Janitor] starting with interval: %v, idle ttl: %v", interval, j.idleTTL)

	j.performCleanup()

	go j.cleanupLoop(ctx, interval)
	return nil
}

// Stop ends the loop and waits for it to exit.
func (j *SessionJanitor) Stop() {
	j.mu.Lock()
	if !j.running {
		j.mu.Unlock()
		return
	}
	j.running = false
	close(j.stopChan)
	j.mu.Unlock()

	<-j.done
	j.logger.Infof("[Janitor] stopped")
}

func (j *SessionJanitor) cleanupLoop(ctx context.Context, interval time.Duration) {
	defer close(j.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-j.stopChan:
			return
		case <-ticker.C:
			j.performCleanup()
		}
	}
}

// CleanupNow performs an immediate sweep.
func (j *SessionJanitor) CleanupNow() {
	j.performCleanup()
}
