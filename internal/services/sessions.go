package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/amaumene/moviematch/internal/errors"
	"github.com/amaumene/moviematch/internal/stream"
	"github.com/amaumene/moviematch/pkg/logger"
)

// SessionStore keeps the live swipe sessions by id.
type SessionStore struct {
	fetcher *stream.Fetcher
	opts    stream.Options
	logger  logger.Logger

	mu       sync.RWMutex
	sessions map[string]*stream.Session
}

func NewSessionStore(fetcher *stream.Fetcher, opts stream.Options, log logger.Logger) *SessionStore {
	if log == nil {
		log = logger.New()
	}
	if opts.Logger == nil {
		opts.Logger = log
	}
	return &SessionStore{
		fetcher:  fetcher,
		opts:     opts,
		logger:   log,
		sessions: make(map[string]*stream.Session),
	}
}

// Create opens a session and blocks until its first batch is loaded. A
// session whose first batch failed is discarded.
func (s *SessionStore) Create(ctx context.Context) (*stream.Session, error) {
	id := uuid.NewString()
	sess := stream.NewSession(id, s.fetcher, s.opts)

	if err := sess.Start(ctx); err != nil {
		sess.Close()
		return nil, err
	}

	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()

	s.logger.Infof("[Sessions] created %s", id)
	return sess, nil
}

func (s *SessionStore) Get(id string) (*stream.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, apperrors.NewSessionNotFoundError(id)
	}
	return sess, nil
}

// Delete closes and forgets a session.
func (s *SessionStore) Delete(id string) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if !ok {
		return apperrors.NewSessionNotFoundError(id)
	}
	sess.Close()
	s.logger.Infof("[Sessions] deleted %s", id)
	return nil
}

func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// CloseIdle closes every session last touched before now-maxIdle.
func (s *SessionStore) CloseIdle(maxIdle time.Duration, now time.Time) int {
	cutoff := now.Add(-maxIdle)

	s.mu.Lock()
	var idle []*stream.Session
	for id, sess := range s.sessions {
		if sess.LastActive().Before(cutoff) {
			idle = append(idle, sess)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, sess := range idle {
		sess.Close()
	}
	return len(idle)
}

// CloseAll closes every session, waiting for background refills to stop.
func (s *SessionStore) CloseAll() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*stream.Session)
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.Close()
		sess.Wait()
	}
}
