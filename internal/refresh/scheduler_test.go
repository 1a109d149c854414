package refresh

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/sire-dashboard/internal/domain"
	"github.com/couchcryptid/sire-dashboard/internal/observability"
)

type fakeStore struct {
	mu      sync.Mutex
	calls   int
	results []storeResult // consumed in order; the last one repeats
}

type storeResult struct {
	changed bool
	err     error
}

func (s *fakeStore) Refresh(context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	if i >= len(s.results) {
		i = len(s.results) - 1
	}
	s.calls++
	return s.results[i].changed, s.results[i].err
}

func (s *fakeStore) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type countingInvalidator struct{ n int }

func (c *countingInvalidator) Invalidate() { c.n++ }

type staticSnapshotter struct {
	records []domain.AggregatedRecord
	err     error
}

func (s staticSnapshotter) RegionSnapshot(context.Context) ([]domain.AggregatedRecord, uint64, error) {
	return s.records, 4, s.err
}

type recordingPublisher struct {
	got []domain.RegionSnapshot
	err error
}

func (p *recordingPublisher) Publish(_ context.Context, s domain.RegionSnapshot) error {
	if p.err != nil {
		return p.err
	}
	p.got = append(p.got, s)
	return nil
}

func testOptions(store Refresher) Options {
	return Options{
		Store:   store,
		Clock:   clockwork.NewFakeClockAt(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)),
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		Metrics: observability.NewMetricsForTesting(),
	}
}

func TestRunOnce_ChangedInvalidatesAndPublishes(t *testing.T) {
	inv := &countingInvalidator{}
	pub := &recordingPublisher{}
	opts := testOptions(&fakeStore{results: []storeResult{{changed: true}}})
	opts.Invalidate = []Invalidator{inv}
	opts.Snapshotter = staticSnapshotter{records: []domain.AggregatedRecord{
		{MicroRegion: "ESPINHARAS", IndicatorCode: "IN200", Year: "2023", Month: "Janeiro", Value: 96.3},
		{MicroRegion: "BORBOREMA", IndicatorCode: "IN200", Year: "2023", Month: "Janeiro", Value: 90},
	}}
	opts.Publisher = pub

	s, err := New(opts)
	require.NoError(t, err)
	require.NoError(t, s.RunOnce(context.Background()))

	assert.Equal(t, 1, inv.n)
	require.Len(t, pub.got, 1)
	assert.Equal(t, uint64(4), pub.got[0].Generation)
	assert.Equal(t, time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC), pub.got[0].PublishedAt)
	assert.Len(t, pub.got[0].Records, 2)
	assert.InDelta(t, 2.0, testutil.ToFloat64(opts.Metrics.SnapshotsPublished), 0)
}

func TestRunOnce_UnchangedDoesNothing(t *testing.T) {
	inv := &countingInvalidator{}
	pub := &recordingPublisher{}
	opts := testOptions(&fakeStore{results: []storeResult{{changed: false}}})
	opts.Invalidate = []Invalidator{inv}
	opts.Snapshotter = staticSnapshotter{}
	opts.Publisher = pub

	s, err := New(opts)
	require.NoError(t, err)
	require.NoError(t, s.RunOnce(context.Background()))

	assert.Zero(t, inv.n)
	assert.Empty(t, pub.got)
}

func TestRunOnce_RefreshError(t *testing.T) {
	inv := &countingInvalidator{}
	opts := testOptions(&fakeStore{results: []storeResult{{err: errors.New("disk gone")}}})
	opts.Invalidate = []Invalidator{inv}

	s, err := New(opts)
	require.NoError(t, err)
	require.EqualError(t, s.RunOnce(context.Background()), "disk gone")
	assert.Zero(t, inv.n)
}

func TestRunOnce_PublishFailureKeepsSnapshot(t *testing.T) {
	opts := testOptions(&fakeStore{results: []storeResult{{changed: true}}})
	opts.Snapshotter = staticSnapshotter{records: []domain.AggregatedRecord{{MicroRegion: "X"}}}
	opts.Publisher = &recordingPublisher{err: errors.New("broker down")}

	s, err := New(opts)
	require.NoError(t, err)
	require.NoError(t, s.RunOnce(context.Background()))
	assert.InDelta(t, 0.0, testutil.ToFloat64(opts.Metrics.SnapshotsPublished), 0)
}

func TestRunOnce_WithoutPublisher(t *testing.T) {
	opts := testOptions(&fakeStore{results: []storeResult{{changed: true}}})
	opts.Snapshotter = staticSnapshotter{err: errors.New("must not be called")}

	s, err := New(opts)
	require.NoError(t, err)
	require.NoError(t, s.RunOnce(context.Background()))
}

func TestNew_InvalidSchedule(t *testing.T) {
	opts := testOptions(&fakeStore{results: []storeResult{{}}})
	opts.Schedule = "every now and then"
	_, err := New(opts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse refresh schedule")
}

func TestRun_InitialLoadRetriesWithBackoff(t *testing.T) {
	store := &fakeStore{results: []storeResult{
		{err: errors.New("not yet")},
		{err: errors.New("still not")},
		{changed: true},
	}}
	opts := testOptions(store)
	clock := opts.Clock.(*clockwork.FakeClock)

	s, err := New(opts)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(200 * time.Millisecond)
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(400 * time.Millisecond)

	require.Eventually(t, func() bool { return store.Calls() == 3 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}

func TestRun_StopsOnCancelDuringBackoff(t *testing.T) {
	store := &fakeStore{results: []storeResult{{err: errors.New("down")}}}
	s, err := New(testOptions(store))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return store.Calls() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, 1, store.Calls())
}

func TestRun_ScheduledStopsOnCancel(t *testing.T) {
	store := &fakeStore{results: []storeResult{{changed: true}, {changed: false}}}
	opts := testOptions(store)
	opts.Schedule = "@every 1h"
	s, err := New(opts)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return store.Calls() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}

func TestNextBackoff(t *testing.T) {
	tests := []struct {
		current, max, want time.Duration
	}{
		{200 * time.Millisecond, 30 * time.Second, 400 * time.Millisecond},
		{20 * time.Second, 30 * time.Second, 30 * time.Second},
		{30 * time.Second, 30 * time.Second, 30 * time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, nextBackoff(tt.current, tt.max))
	}
}
