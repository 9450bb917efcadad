package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	errs "igcrawler/pkg/errors"
	"igcrawler/pkg/logger"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

// sleeper advances the fake clock instead of blocking and records each wait
type sleeper struct {
	clock *fakeClock
	waits []time.Duration
}

func (s *sleeper) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.waits = append(s.waits, d)
	s.clock.Advance(d)
	return nil
}

func newTestController(quota int, unthrottled ...string) (*Controller, *fakeClock, *sleeper) {
	clock := newFakeClock()
	sl := &sleeper{clock: clock}
	c := NewController(Options{
		Window:           660 * time.Second,
		Margin:           6 * time.Second,
		QueriesPerWindow: quota,
		Unthrottled:      unthrottled,
		Now:              clock.Now,
		Sleep:            sl.Sleep,
		Logger:           logger.NewTestLogger(),
	})
	return c, clock, sl
}

func TestBelowQuotaNoWait(t *testing.T) {
	c, clock, sl := newTestController(3)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		require.NoError(t, c.WaitBeforeQuery(ctx, "hash1"))
		clock.Advance(time.Second)
	}

	assert.Equal(t, time.Duration(0), c.QueryWaitTime("hash1"))
	assert.Empty(t, sl.waits)
	assert.Equal(t, 2, c.Count("hash1"))
}

func TestQuotaReachedComputesWait(t *testing.T) {
	c, clock, sl := newTestController(3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, c.WaitBeforeQuery(ctx, "hash1"))
		clock.Advance(10 * time.Second)
	}

	// oldest entry was 30s ago: 660 - 30 + 6
	assert.Equal(t, 636*time.Second, c.QueryWaitTime("hash1"))

	require.NoError(t, c.WaitBeforeQuery(ctx, "hash1"))
	require.Len(t, sl.waits, 1)
	assert.Equal(t, 636*time.Second, sl.waits[0])
	// the oldest entry left the window while waiting
	assert.Equal(t, 3, c.Count("hash1"))
}

func TestWindowsArePerQueryType(t *testing.T) {
	c, _, _ := newTestController(2)
	ctx := context.Background()

	require.NoError(t, c.WaitBeforeQuery(ctx, "hash1"))
	require.NoError(t, c.WaitBeforeQuery(ctx, "hash1"))

	assert.Greater(t, c.QueryWaitTime("hash1"), time.Duration(0))
	assert.Equal(t, time.Duration(0), c.QueryWaitTime(QueryTypeOther))
	assert.Equal(t, time.Duration(0), c.QueryWaitTime(QueryTypeIPhone))
}

func TestEntriesOutsideWindowArePruned(t *testing.T) {
	c, clock, _ := newTestController(2)
	ctx := context.Background()

	require.NoError(t, c.WaitBeforeQuery(ctx, "hash1"))
	require.NoError(t, c.WaitBeforeQuery(ctx, "hash1"))
	clock.Advance(661 * time.Second)

	assert.Equal(t, 0, c.Count("hash1"))
	assert.Equal(t, time.Duration(0), c.QueryWaitTime("hash1"))
}

func TestEntryExactlyWindowOldIsPruned(t *testing.T) {
	c, clock, sl := newTestController(2)
	ctx := context.Background()

	require.NoError(t, c.WaitBeforeQuery(ctx, "hash1"))
	require.NoError(t, c.WaitBeforeQuery(ctx, "hash1"))
	clock.Advance(659 * time.Second)
	assert.Equal(t, 2, c.Count("hash1"))

	clock.Advance(time.Second)
	assert.Equal(t, 0, c.Count("hash1"))
	assert.Equal(t, time.Duration(0), c.QueryWaitTime("hash1"))
	require.NoError(t, c.WaitBeforeQuery(ctx, "hash1"))
	assert.Empty(t, sl.waits)
}

func TestUnthrottledQueriesAreNotRecorded(t *testing.T) {
	c, _, sl := newTestController(1, QueryTypeIPhone)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, c.WaitBeforeQuery(ctx, QueryTypeIPhone))
	}
	assert.Empty(t, sl.waits)
	assert.Equal(t, 0, c.Count(QueryTypeIPhone))
	assert.True(t, c.IsUnthrottled(QueryTypeIPhone))
}

func TestHandleTooManyRequestsSetsEarliestNext(t *testing.T) {
	c, clock, sl := newTestController(20)
	ctx := context.Background()

	require.NoError(t, c.WaitBeforeQuery(ctx, "hash1"))
	clock.Advance(60 * time.Second)

	wait := c.HandleTooManyRequests("hash1")
	assert.Equal(t, 606*time.Second, wait)

	// every query type now honours the earliest next request instant
	assert.Equal(t, 606*time.Second, c.QueryWaitTime(QueryTypeOther))

	clock.Advance(wait)
	assert.Equal(t, time.Duration(0), c.QueryWaitTime(QueryTypeOther))
	assert.Empty(t, sl.waits)
}

func TestHandleTooManyRequestsWithEmptyWindow(t *testing.T) {
	c, _, _ := newTestController(20)
	assert.Equal(t, 6*time.Second, c.HandleTooManyRequests(QueryTypeOther))
}

func TestWaitBeforeQueryCancelled(t *testing.T) {
	c, _, _ := newTestController(1)
	require.NoError(t, c.WaitBeforeQuery(context.Background(), "hash1"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := c.WaitBeforeQuery(ctx, "hash1")

	require.Error(t, err)
	assert.True(t, errs.IsCancellation(err))
	assert.True(t, errs.IsType(err, errs.ErrorTypeCancelled))
	// a cancelled wait records nothing
	assert.Equal(t, 1, c.Count("hash1"))
}

func TestLongWaitIsLogged(t *testing.T) {
	clock := newFakeClock()
	sl := &sleeper{clock: clock}
	tl := logger.NewTestLogger()
	c := NewController(Options{QueriesPerWindow: 1, Now: clock.Now, Sleep: sl.Sleep, Logger: tl})

	require.NoError(t, c.WaitBeforeQuery(context.Background(), "hash1"))
	require.NoError(t, c.WaitBeforeQuery(context.Background(), "hash1"))

	assert.True(t, tl.HasMessageContaining("Too many queries"))
}

func TestOnLongWait(t *testing.T) {
	c, _, sl := newTestController(1)
	ctx := context.Background()

	var got []time.Duration
	remove := c.OnLongWait(func(queryType string, wait time.Duration) {
		assert.Equal(t, "hash1", queryType)
		got = append(got, wait)
	})

	require.NoError(t, c.WaitBeforeQuery(ctx, "hash1"))
	assert.Empty(t, got)
	require.NoError(t, c.WaitBeforeQuery(ctx, "hash1"))
	require.Len(t, got, 1)
	assert.Equal(t, sl.waits[0], got[0])

	wait := c.HandleTooManyRequests("hash1")
	require.Len(t, got, 2)
	assert.Equal(t, wait, got[1])

	remove()
	c.HandleTooManyRequests("hash1")
	assert.Len(t, got, 2)
}

func TestReset(t *testing.T) {
	c, _, _ := newTestController(1)
	require.NoError(t, c.WaitBeforeQuery(context.Background(), "hash1"))
	c.HandleTooManyRequests("hash1")

	c.Reset()
	assert.Equal(t, 0, c.Count("hash1"))
	assert.Equal(t, time.Duration(0), c.QueryWaitTime("hash1"))
}

func TestDefaults(t *testing.T) {
	c := NewController(Options{})
	assert.Equal(t, DefaultWindow, c.window)
	assert.Equal(t, DefaultQueriesPerWindow, c.quota)
}
