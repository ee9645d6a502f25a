package fetch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"strava-power/internal/scheduler"
	"strava-power/internal/strava"
)

type fakeUpstream struct {
	mu          sync.Mutex
	sessions    []strava.Activity
	pagesServed []int
	streamCalls map[int64]int
	failStreams map[int64]error
	listErr     error
}

func (u *fakeUpstream) ListSessions(ctx context.Context, after time.Time, perPage, page int) ([]strava.Activity, strava.Quota, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.pagesServed = append(u.pagesServed, page)
	if u.listErr != nil {
		return nil, strava.Quota{}, u.listErr
	}
	start := (page - 1) * perPage
	if start >= len(u.sessions) {
		return nil, strava.Quota{}, nil
	}
	end := min(start+perPage, len(u.sessions))
	return u.sessions[start:end], strava.Quota{ShortUsed: page, ShortLimit: 100, DailyUsed: page, DailyLimit: 1000}, nil
}

func (u *fakeUpstream) GetSessionStreams(ctx context.Context, id int64, keys []string) (strava.Streams, strava.Quota, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.streamCalls == nil {
		u.streamCalls = map[int64]int{}
	}
	u.streamCalls[id]++
	if err := u.failStreams[id]; err != nil {
		return nil, strava.Quota{}, err
	}
	return strava.Streams{
		strava.StreamWatts: {float64(id), float64(id)},
		strava.StreamTime:  {0, 1},
	}, strava.Quota{}, nil
}

var base = time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

func ride(id int64, daysAgo int, power bool) strava.Activity {
	a := strava.Activity{
		ID:        id,
		Type:      "Ride",
		StartDate: base.AddDate(0, 0, -daysAgo),
	}
	if power {
		a.DeviceWatts = true
		a.AverageWatts = 200
	}
	return a
}

func newFetcher(t *testing.T, up Upstream, cfg Config) *Fetcher {
	t.Helper()
	scfg := scheduler.DefaultConfig()
	scfg.MinInterval = 0
	scfg.BackoffCap = time.Millisecond
	s := scheduler.New(scfg, zerolog.Nop(), nil)
	t.Cleanup(s.Close)
	return New(up, s, cfg, zerolog.Nop())
}

func TestListPowerSessionsPaging(t *testing.T) {
	up := &fakeUpstream{}
	for i := int64(1); i <= 5; i++ {
		up.sessions = append(up.sessions, ride(i, int(i), i != 3))
	}

	f := newFetcher(t, up, Config{PageSize: 2, MaxPages: 10})
	sessions, err := f.ListPowerSessions(context.Background(), time.Time{}, 0)
	require.NoError(t, err)

	// Pages 1 and 2 are full, page 3 is short and ends paging
	assert.Equal(t, []int{1, 2, 3}, up.pagesServed)

	var ids []int64
	for _, s := range sessions {
		ids = append(ids, s.ID)
	}
	assert.Equal(t, []int64{1, 2, 4, 5}, ids, "power sessions only, newest first")
}

func TestListPowerSessionsPageCeiling(t *testing.T) {
	up := &fakeUpstream{}
	for i := int64(1); i <= 20; i++ {
		up.sessions = append(up.sessions, ride(i, int(i), true))
	}

	f := newFetcher(t, up, Config{PageSize: 2, MaxPages: 3})
	sessions, err := f.ListPowerSessions(context.Background(), time.Time{}, 0)
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2, 3}, up.pagesServed)
	assert.Len(t, sessions, 6)
}

func TestListPowerSessionsLimitKeepsNewest(t *testing.T) {
	up := &fakeUpstream{sessions: []strava.Activity{
		ride(1, 10, true),
		ride(2, 1, true),
		ride(3, 5, true),
	}}

	f := newFetcher(t, up, Config{})
	sessions, err := f.ListPowerSessions(context.Background(), time.Time{}, 2)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, int64(2), sessions[0].ID)
	assert.Equal(t, int64(3), sessions[1].ID)
}

func TestFetchDropsFailedSessions(t *testing.T) {
	up := &fakeUpstream{failStreams: map[int64]error{3: errors.New("404 not found")}}
	for i := int64(1); i <= 6; i++ {
		up.sessions = append(up.sessions, ride(i, int(i), true))
	}

	f := newFetcher(t, up, Config{Concurrency: 2, BatchDelay: time.Millisecond})
	res, err := f.Fetch(context.Background(), 42, 10, time.Time{})
	require.NoError(t, err)

	assert.Len(t, res.Sessions, 6)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Streams, 5)

	var ids []int64
	for _, s := range res.Streams {
		ids = append(ids, s.SessionID)
		assert.Equal(t, []float64{0, 1}, s.Time)
	}
	assert.Equal(t, []int64{1, 2, 4, 5, 6}, ids)
	for i := int64(1); i <= 6; i++ {
		assert.Equal(t, 1, up.streamCalls[i], "session %d", i)
	}
}

func TestFetchRetriesThrottledStreams(t *testing.T) {
	up := &throttlingUpstream{fakeUpstream: fakeUpstream{sessions: []strava.Activity{ride(1, 1, true)}}}

	f := newFetcher(t, up, Config{})
	res, err := f.Fetch(context.Background(), 42, 10, time.Time{})
	require.NoError(t, err)

	require.Len(t, res.Streams, 1)
	assert.Equal(t, 0, res.Failed)
	assert.Equal(t, 2, up.streamCalls[1])
}

func TestFetchListingFailure(t *testing.T) {
	up := &fakeUpstream{listErr: errors.New("connection refused")}

	f := newFetcher(t, up, Config{})
	_, err := f.Fetch(context.Background(), 42, 10, time.Time{})
	assert.ErrorContains(t, err, "listing sessions page 1")
}

func TestFetchCanceled(t *testing.T) {
	up := &fakeUpstream{sessions: []strava.Activity{ride(1, 1, true)}}
	f := newFetcher(t, up, Config{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.Fetch(ctx, 42, 10, time.Time{})
	assert.ErrorIs(t, err, context.Canceled)
}

// throttlingUpstream rejects the first stream request for each session
type throttlingUpstream struct {
	fakeUpstream
	rejected map[int64]bool
}

func (u *throttlingUpstream) GetSessionStreams(ctx context.Context, id int64, keys []string) (strava.Streams, strava.Quota, error) {
	u.mu.Lock()
	if u.rejected == nil {
		u.rejected = map[int64]bool{}
	}
	if !u.rejected[id] {
		u.rejected[id] = true
		if u.streamCalls == nil {
			u.streamCalls = map[int64]int{}
		}
		u.streamCalls[id]++
		u.mu.Unlock()
		return nil, strava.Quota{}, &strava.RateLimitError{Wait: time.Millisecond, Message: "rate limit exceeded"}
	}
	u.mu.Unlock()
	return u.fakeUpstream.GetSessionStreams(ctx, id, keys)
}
