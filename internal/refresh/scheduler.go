// Package refresh reloads the dataset on a cron schedule.
package refresh

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/robfig/cron/v3"

	"github.com/couchcryptid/sire-dashboard/internal/domain"
	"github.com/couchcryptid/sire-dashboard/internal/observability"
)

// Refresher reloads the dataset and reports whether the snapshot changed.
type Refresher interface {
	Refresh(ctx context.Context) (bool, error)
}

// Invalidator drops derived state built from an older snapshot.
type Invalidator interface {
	Invalidate()
}

// RegionSnapshotter aggregates the current snapshot for publishing.
type RegionSnapshotter interface {
	RegionSnapshot(ctx context.Context) ([]domain.AggregatedRecord, uint64, error)
}

// Publisher ships a region snapshot downstream.
type Publisher interface {
	Publish(ctx context.Context, s domain.RegionSnapshot) error
}

// Options configures a Scheduler. Publisher and Snapshotter are optional;
// both must be set for snapshots to be published. An empty Schedule performs
// only the initial load.
type Options struct {
	Schedule    string
	Store       Refresher
	Invalidate  []Invalidator
	Snapshotter RegionSnapshotter
	Publisher   Publisher
	Clock       clockwork.Clock
	Logger      *slog.Logger
	Metrics     *observability.Metrics
}

// Scheduler performs the initial dataset load and the periodic reloads.
type Scheduler struct {
	opts     Options
	schedule cron.Schedule

	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// New validates the cron expression and returns a Scheduler.
func New(opts Options) (*Scheduler, error) {
	s := &Scheduler{
		opts:           opts,
		initialBackoff: 200 * time.Millisecond,
		maxBackoff:     30 * time.Second,
	}
	if s.opts.Clock == nil {
		s.opts.Clock = clockwork.NewRealClock()
	}
	if opts.Schedule != "" {
		sched, err := cron.ParseStandard(opts.Schedule)
		if err != nil {
			return nil, fmt.Errorf("parse refresh schedule %q: %w", opts.Schedule, err)
		}
		s.schedule = sched
	}
	return s, nil
}

// Run loads the dataset, retrying with exponential backoff until the first
// load succeeds, then reloads on the schedule until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	logger := s.opts.Logger
	if !s.initialLoad(ctx) {
		logger.Info("refresh stopping before initial load", "reason", ctx.Err())
		return nil
	}

	if s.schedule == nil {
		logger.Info("periodic refresh disabled")
		<-ctx.Done()
		return nil
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	c.Schedule(s.schedule, cron.FuncJob(func() {
		if err := s.RunOnce(ctx); err != nil {
			logger.Error("scheduled refresh failed", "error", err)
		}
	}))
	c.Start()
	logger.Info("periodic refresh started", "schedule", s.opts.Schedule)

	<-ctx.Done()
	logger.Info("refresh stopping", "reason", ctx.Err())
	<-c.Stop().Done()
	return nil
}

// RunOnce reloads the dataset. A changed snapshot invalidates derived caches
// and is published when a publisher is configured. Publishing failures are
// logged; the new snapshot stays in place.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	changed, err := s.opts.Store.Refresh(ctx)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	for _, inv := range s.opts.Invalidate {
		inv.Invalidate()
	}
	s.publish(ctx)
	return nil
}

func (s *Scheduler) publish(ctx context.Context) {
	if s.opts.Publisher == nil || s.opts.Snapshotter == nil {
		return
	}
	records, generation, err := s.opts.Snapshotter.RegionSnapshot(ctx)
	if err != nil {
		s.opts.Logger.Error("build region snapshot failed", "error", err)
		return
	}
	snap := domain.RegionSnapshot{
		Generation:  generation,
		PublishedAt: s.opts.Clock.Now().UTC(),
		Records:     records,
	}
	if err := s.opts.Publisher.Publish(ctx, snap); err != nil {
		s.opts.Logger.Error("publish region snapshot failed", "error", err, "generation", generation)
		return
	}
	s.opts.Metrics.SnapshotsPublished.Add(float64(len(records)))
}

// initialLoad retries RunOnce until it succeeds. Returns false if ctx ends
// first.
func (s *Scheduler) initialLoad(ctx context.Context) bool {
	backoff := s.initialBackoff
	for {
		err := s.RunOnce(ctx)
		if err == nil {
			return true
		}
		if ctx.Err() != nil {
			return false
		}
		s.opts.Logger.Error("initial dataset load failed", "error", err, "retry_in", backoff)
		if !s.sleep(ctx, backoff) {
			return false
		}
		backoff = nextBackoff(backoff, s.maxBackoff)
	}
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func (s *Scheduler) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := s.opts.Clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}
