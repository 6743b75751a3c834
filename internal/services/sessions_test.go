package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/amaumene/moviematch/internal/errors"
	"github.com/amaumene/moviematch/internal/stream"
)

func TestSessionStore_Lifecycle(t *testing.T) {
	store := newTestStore(stubSource{n: 20})

	sess, err := store.Create(context.Background())
	require.NoError(t, err)
	assert.Equal(t, stream.StateReady, sess.State())
	assert.Len(t, sess.ID(), 36)

	got, err := store.Get(sess.ID())
	require.NoError(t, err)
	assert.Same(t, sess, got)

	require.NoError(t, store.Delete(sess.ID()))
	assert.Equal(t, stream.StateClosed, sess.State())

	_, err = store.Get(sess.ID())
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeSessionNotFound))
	assert.True(t, apperrors.IsType(store.Delete(sess.ID()), apperrors.ErrorTypeSessionNotFound))
}

func TestSessionStore_EmptyFirstBatchIsNotKept(t *testing.T) {
	store := newTestStore(stubSource{err: errors.New("upstream down")})

	_, err := store.Create(context.Background())

	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeEmptyBatch))
	assert.Equal(t, 0, store.Len())
}

func TestSessionStore_CloseIdle(t *testing.T) {
	store := newTestStore(stubSource{n: 20})
	sess, err := store.Create(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, store.CloseIdle(time.Hour, time.Now()))
	assert.Equal(t, 1, store.CloseIdle(time.Minute, time.Now().Add(2*time.Minute)))
	assert.Equal(t, 0, store.Len())
	assert.Equal(t, stream.StateClosed, sess.State())
}

func TestSessionJanitor_CleanupNow(t *testing.T) {
	store := newTestStore(stubSource{n: 20})
	_, err := store.Create(context.Background())
	require.NoError(t, err)

	j := NewSessionJanitor(store, nil, nil, nil)
	j.SetIdleTTL(time.Minute)
	j.now = func() time.Time { return time.Now().Add(time.Hour) }

	j.CleanupNow()

	assert.Equal(t, 0, store.Len())
}

func TestSessionJanitor_StartStop(t *testing.T) {
	j := NewSessionJanitor(newTestStore(stubSource{n: 1}), nil, nil, nil)
	j.SetInterval(10 * time.Millisecond)

	require.NoError(t, j.Start(context.Background()))
	require.NoError(t, j.Start(context.Background()))
	time.Sleep(30 * time.Millisecond)
	j.Stop()
	j.Stop()
}
