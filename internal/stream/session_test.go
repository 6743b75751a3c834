package stream

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/amaumene/moviematch/internal/errors"
	"github.com/amaumene/moviematch/internal/models"
	"github.com/amaumene/moviematch/pkg/logger"
)

func testOptions() Options {
	return Options{
		Threshold:    10,
		PreloadCount: 5,
		FetchTimeout: time.Second,
		Logger:       logger.Discard(),
	}
}

// readySession builds a ready session holding ids 1..n with the cursor at
// cursor, without going through Start.
func readySession(src Source, n, cursor int, opts Options) *Session {
	s := NewSession("test", newTestFetcher(src, 9), opts)
	ids := make([]int, n)
	for i := range ids {
		ids[i] = i + 1
	}
	s.buffer.Append(items(ids...))
	for i := 0; i < cursor; i++ {
		s.buffer.Advance()
	}
	s.state = StateReady
	return s
}

func TestSession_AdvanceBelowThresholdRefillsOnce(t *testing.T) {
	src := newFakeSource()
	src.pages[models.CatalogGeneral] = pageOf(0, 20)
	src.pages[models.CatalogAnime] = pageOf(10000, 20)
	src.block = make(chan struct{})

	s := readySession(src, 12, 3, testOptions())
	require.Equal(t, 9, s.Status().Remaining)

	s.Advance()
	assert.Eventually(t, func() bool {
		return src.callCount(models.CatalogGeneral) == 1 && src.callCount(models.CatalogAnime) == 1
	}, time.Second, 5*time.Millisecond)
	assert.True(t, s.Status().InFlight)

	for i := 0; i < 5; i++ {
		s.Advance()
	}
	assert.Equal(t, 1, src.callCount(models.CatalogGeneral))
	assert.Equal(t, 1, src.callCount(models.CatalogAnime))

	close(src.block)
	s.Wait()

	status := s.Status()
	assert.False(t, status.InFlight)
	assert.Equal(t, 52, status.Length)
	assert.Equal(t, 1, src.callCount(models.CatalogGeneral))
	assert.Len(t, status.GeneralPages, 1)
	assert.Len(t, status.AnimePages, 1)
}

func TestSession_NoRefillAboveThreshold(t *testing.T) {
	src := newFakeSource()
	s := readySession(src, 30, 0, testOptions())

	s.Advance()
	s.Wait()

	assert.Equal(t, 0, src.callCount(models.CatalogGeneral))
	assert.False(t, s.Status().InFlight)
}

func TestSession_RefillTimeoutClearsInFlight(t *testing.T) {
	src := newFakeSource()
	src.pages[models.CatalogGeneral] = pageOf(0, 20)
	src.pages[models.CatalogAnime] = pageOf(10000, 20)
	src.block = make(chan struct{})

	opts := testOptions()
	opts.FetchTimeout = 20 * time.Millisecond
	s := readySession(src, 12, 3, opts)
	t.Cleanup(func() {
		s.Close()
		s.Wait()
	})

	s.Advance()
	s.Wait()

	status := s.Status()
	assert.False(t, status.InFlight)
	assert.Equal(t, 12, status.Length)

	s.Advance()
	assert.Eventually(t, func() bool {
		return src.callCount(models.CatalogGeneral) == 2
	}, time.Second, 5*time.Millisecond)
}

func TestSession_EmptyRefillWaitsForNextAdvance(t *testing.T) {
	src := newFakeSource()
	src.pages[models.CatalogGeneral] = failing(errors.New("down"))
	src.pages[models.CatalogAnime] = failing(errors.New("down"))

	s := readySession(src, 12, 3, testOptions())

	s.Advance()
	s.Wait()
	assert.Equal(t, 1, src.callCount(models.CatalogGeneral))

	s.Advance()
	s.Wait()
	assert.Equal(t, 2, src.callCount(models.CatalogGeneral))
	assert.Len(t, s.Status().GeneralPages, 2)
}

func TestSession_ResetDiscardsLateRefill(t *testing.T) {
	src := newFakeSource()
	src.pages[models.CatalogGeneral] = pageOf(0, 20)
	src.pages[models.CatalogAnime] = pageOf(10000, 20)
	src.block = make(chan struct{})

	s := readySession(src, 12, 3, testOptions())

	s.Advance()
	assert.Eventually(t, func() bool {
		return src.callCount(models.CatalogGeneral) == 1
	}, time.Second, 5*time.Millisecond)

	s.Reset()
	close(src.block)
	s.Wait()

	status := s.Status()
	assert.Equal(t, StateEmpty.String(), status.State)
	assert.Equal(t, 0, status.Length)
	assert.False(t, status.InFlight)
	assert.Empty(t, status.GeneralPages)
	assert.Empty(t, status.AnimePages)

	_, ok := s.Current()
	assert.False(t, ok)
}

func TestSession_StartLoadsFirstBatch(t *testing.T) {
	src := newFakeSource()
	src.pages[models.CatalogGeneral] = pageOf(0, 20)
	src.pages[models.CatalogAnime] = pageOf(10000, 20)
	preloader := &recordingPreloader{}

	opts := testOptions()
	opts.Preloader = preloader
	s := NewSession("start", newTestFetcher(src, 11), opts)

	require.NoError(t, s.Start(context.Background()))
	s.Wait()

	assert.Equal(t, StateReady, s.State())
	assert.Equal(t, 40, s.Status().Length)

	current, ok := s.Current()
	require.True(t, ok)
	urls := preloader.last()
	require.Len(t, urls, 5)
	assert.Equal(t, current.Image, urls[0])

	// Starting a ready session is a no-op.
	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, 1, src.callCount(models.CatalogGeneral))
}

func TestSession_StartEmptyBatch(t *testing.T) {
	src := newFakeSource()
	src.pages[models.CatalogGeneral] = failing(errors.New("down"))
	src.pages[models.CatalogAnime] = failing(errors.New("down"))

	s := NewSession("empty", newTestFetcher(src, 12), testOptions())

	err := s.Start(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeEmptyBatch))
	assert.Equal(t, StateEmpty, s.State())

	src.mu.Lock()
	src.pages[models.CatalogGeneral] = pageOf(0, 20)
	src.pages[models.CatalogAnime] = pageOf(10000, 20)
	src.mu.Unlock()

	require.NoError(t, s.Start(context.Background()))
	s.Wait()
	assert.Equal(t, StateReady, s.State())
	assert.Len(t, s.Status().GeneralPages, 1, "start uses fresh page sets")
}

func TestSession_StartAfterClose(t *testing.T) {
	s := NewSession("closed", newTestFetcher(newFakeSource(), 13), testOptions())
	s.Close()

	assert.ErrorIs(t, s.Start(context.Background()), ErrSessionClosed)
}

func TestSession_AdvancePreloadsUpcoming(t *testing.T) {
	preloader := &recordingPreloader{}
	opts := testOptions()
	opts.Preloader = preloader
	s := readySession(newFakeSource(), 40, 3, opts)

	s.Advance()

	assert.Equal(t, []string{
		"https://img/6.jpg",
		"https://img/7.jpg",
		"https://img/8.jpg",
		"https://img/9.jpg",
		"https://img/10.jpg",
	}, preloader.last())
}

func TestSession_Swipe(t *testing.T) {
	recorder := &recordingRecorder{}
	opts := testOptions()
	opts.Recorder = recorder
	s := readySession(newFakeSource(), 30, 0, opts)

	res, err := s.Swipe(models.InteractionDislike)
	require.NoError(t, err)
	assert.False(t, res.Match)
	assert.Equal(t, 1, res.Item.TMDBID)
	require.NotNil(t, res.Next)
	assert.Equal(t, 2, res.Next.TMDBID)

	res, err = s.Swipe(models.InteractionLike)
	require.NoError(t, err)
	assert.True(t, res.Match)
	assert.Equal(t, 2, res.Item.TMDBID)
	assert.Nil(t, res.Next)
	assert.Equal(t, 1, s.Status().Cursor)

	_, err = s.Swipe(models.Interaction("superlike"))
	assert.ErrorIs(t, err, ErrInvalidAction)

	require.Len(t, recorder.swipes, 2)
	assert.Equal(t, models.InteractionDislike, recorder.swipes[0].action)
	assert.Equal(t, 2, recorder.swipes[1].item.TMDBID)
}

// reentrantRecorder swipes again from inside Record, the way a second
// request on the same session lands while the first is still recording.
type reentrantRecorder struct {
	recordingRecorder
	session *Session
	fired   bool
}

func (r *reentrantRecorder) Record(id string, item models.ResultItem, action models.Interaction) {
	if !r.fired {
		r.fired = true
		_, _ = r.session.Swipe(models.InteractionDislike)
	}
	r.recordingRecorder.Record(id, item, action)
}

func TestSession_SwipeDuringRecordTakesNextItem(t *testing.T) {
	recorder := &reentrantRecorder{}
	opts := testOptions()
	opts.Recorder = recorder
	s := readySession(newFakeSource(), 30, 0, opts)
	recorder.session = s

	res, err := s.Swipe(models.InteractionDislike)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Item.TMDBID)

	var ids []int
	for _, sw := range recorder.swipes {
		ids = append(ids, sw.item.TMDBID)
	}
	assert.ElementsMatch(t, []int{1, 2}, ids)
	assert.Equal(t, 2, s.Status().Cursor)
}

func TestSession_ConcurrentSwipesConsumeDistinctItems(t *testing.T) {
	recorder := &recordingRecorder{}
	opts := testOptions()
	opts.Recorder = recorder
	s := readySession(newFakeSource(), 40, 0, opts)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Swipe(models.InteractionSkip)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	s.Wait()

	seen := map[int]bool{}
	for _, sw := range recorder.swipes {
		assert.False(t, seen[sw.item.TMDBID], "item %d recorded twice", sw.item.TMDBID)
		seen[sw.item.TMDBID] = true
	}
	assert.Len(t, seen, 20)
	assert.Equal(t, 20, s.Status().Cursor)
}

func TestSession_ReadsCountAsActivity(t *testing.T) {
	s := readySession(newFakeSource(), 30, 0, testOptions())
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	s.Status()
	assert.Equal(t, now, s.LastActive())

	now = now.Add(time.Hour)
	_, ok := s.Current()
	require.True(t, ok)
	assert.Equal(t, now, s.LastActive())
}

func TestSession_SwipeBeforeStart(t *testing.T) {
	s := NewSession("idle", newTestFetcher(newFakeSource(), 14), testOptions())

	_, err := s.Swipe(models.InteractionSkip)
	assert.ErrorIs(t, err, ErrNotReady)
}
