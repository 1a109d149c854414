// Package dataset owns the in-memory snapshot every render reads from.
//
// A Store loads the indicator CSV, the glossary CSV and the boundary GeoJSON
// through read-through cache.Sources, normalizes and scopes the indicator rows,
// annotates them with glossary titles and publishes the result as an immutable
// Snapshot. Renders hold a *Snapshot for their whole cycle; a refresh swaps in
// a new one without touching the old.
package dataset

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/sire-dashboard/internal/adapter/csvsource"
	"github.com/couchcryptid/sire-dashboard/internal/adapter/geo"
	"github.com/couchcryptid/sire-dashboard/internal/cache"
	"github.com/couchcryptid/sire-dashboard/internal/config"
	"github.com/couchcryptid/sire-dashboard/internal/domain"
	"github.com/couchcryptid/sire-dashboard/internal/observability"
)

// ErrNotLoaded is returned before the first successful load.
var ErrNotLoaded = errors.New("dataset snapshot not loaded yet")

// Snapshot is one immutable load of all sources. Callers must not modify
// the slices it holds.
type Snapshot struct {
	Records    []domain.IndicatorRecord
	Glossary   domain.Glossary
	Boundaries geo.Boundaries
	Report     domain.NormalizeReport
	LoadedAt   time.Time
	// Generation increases by one on every swap.
	Generation uint64
}

// Sources are the cached inputs of a Store.
type Sources struct {
	Indicators *cache.Source[[]domain.RawRow]
	Glossary   *cache.Source[[]domain.GlossaryEntry]
	Boundaries *cache.Source[geo.Boundaries]
}

// NewSources wires the three configured paths to backend and registers each
// source with reg.
func NewSources(backend cache.Backend, cfg *config.Config, reg *cache.Registry) Sources {
	s := Sources{
		Indicators: cache.NewSource("indicators", cfg.IndicatorsPath, backend, csvsource.ParseIndicators),
		Glossary:   cache.NewSource("glossary", cfg.GlossaryPath, backend, csvsource.ParseGlossary),
		Boundaries: cache.NewSource("boundaries", cfg.BoundariesPath, backend, geo.Parse),
	}
	reg.Register(s.Indicators)
	reg.Register(s.Glossary)
	reg.Register(s.Boundaries)
	return s
}

// Store holds the current snapshot.
type Store struct {
	sources Sources
	scope   domain.Scope
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics

	refreshMu  sync.Mutex
	current    atomic.Pointer[Snapshot]
	generation uint64
	// applied holds the source checksums the current snapshot was built from.
	applied sourceSums
}

type sourceSums struct {
	indicators, glossary, boundaries uint64
}

// NewStore creates an empty store. Call Refresh to load the first snapshot.
func NewStore(sources Sources, scope domain.Scope, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Store {
	return &Store{
		sources: sources,
		scope:   scope,
		clock:   clock,
		logger:  logger,
		metrics: metrics,
	}
}

// Current returns the active snapshot or ErrNotLoaded.
func (s *Store) Current() (*Snapshot, error) {
	snap := s.current.Load()
	if snap == nil {
		return nil, ErrNotLoaded
	}
	return snap, nil
}

// CheckReadiness reports ready once a snapshot is loaded.
func (s *Store) CheckReadiness(_ context.Context) error {
	_, err := s.Current()
	return err
}

// Refresh loads all sources concurrently and swaps in a new snapshot when any
// of them differs from what the current snapshot was built from. It reports
// whether a swap happened. On error the previous snapshot stays active, and a
// source that changed during the failed attempt is still applied by the next
// successful one.
func (s *Store) Refresh(ctx context.Context) (bool, error) {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	start := s.clock.Now()

	var (
		indicators cache.Result[[]domain.RawRow]
		glossary   cache.Result[[]domain.GlossaryEntry]
		boundaries cache.Result[geo.Boundaries]
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		indicators, err = s.sources.Indicators.Get(gctx)
		s.observeSource(s.sources.Indicators.Name(), indicators.Hit, err)
		return err
	})
	g.Go(func() error {
		var err error
		glossary, err = s.sources.Glossary.Get(gctx)
		s.observeSource(s.sources.Glossary.Name(), glossary.Hit, err)
		return err
	})
	g.Go(func() error {
		var err error
		boundaries, err = s.sources.Boundaries.Get(gctx)
		s.observeSource(s.sources.Boundaries.Name(), boundaries.Hit, err)
		return err
	})
	if err := g.Wait(); err != nil {
		s.metrics.SnapshotLoads.WithLabelValues("error").Inc()
		return false, fmt.Errorf("load dataset: %w", err)
	}

	sums := sourceSums{indicators: indicators.Sum, glossary: glossary.Sum, boundaries: boundaries.Sum}
	if s.current.Load() != nil && sums == s.applied {
		s.metrics.SnapshotLoads.WithLabelValues("unchanged").Inc()
		s.logger.Debug("dataset unchanged")
		return false, nil
	}

	snap := s.build(indicators.Value, glossary.Value, boundaries.Value)
	s.current.Store(snap)
	s.applied = sums

	elapsed := s.clock.Since(start)
	s.metrics.SnapshotLoads.WithLabelValues("success").Inc()
	s.metrics.SnapshotLoadDuration.Observe(elapsed.Seconds())
	s.metrics.SnapshotRecords.WithLabelValues("indicators").Set(float64(len(snap.Records)))
	s.metrics.SnapshotRecords.WithLabelValues("glossary").Set(float64(snap.Glossary.Len()))
	s.metrics.SnapshotRecords.WithLabelValues("boundaries").Set(float64(len(snap.Boundaries)))
	s.metrics.DatasetReady.Set(1)

	s.logger.Info("dataset loaded",
		"generation", snap.Generation,
		"input_rows", snap.Report.Input,
		"records", len(snap.Records),
		"dropped_rows", snap.Report.Dropped(),
		"duplicates", snap.Report.Duplicates,
		"incomplete", snap.Report.Incomplete,
		"non_numeric", snap.Report.NonNumeric,
		"glossary_entries", snap.Glossary.Len(),
		"boundaries", len(snap.Boundaries),
		"duration", elapsed,
	)
	return true, nil
}

func (s *Store) build(rows []domain.RawRow, entries []domain.GlossaryEntry, boundaries geo.Boundaries) *Snapshot {
	records, report := domain.Normalize(rows)
	glossary := domain.NewGlossary(entries)
	scoped := s.scope.Apply(records)

	s.metrics.RowsLoaded.Add(float64(len(scoped)))
	s.metrics.RowsDropped.WithLabelValues("duplicate").Add(float64(report.Duplicates))
	s.metrics.RowsDropped.WithLabelValues("incomplete").Add(float64(report.Incomplete))
	s.metrics.RowsDropped.WithLabelValues("non_numeric").Add(float64(report.NonNumeric))

	s.generation++
	return &Snapshot{
		Records:    domain.AnnotateIndicators(scoped, glossary),
		Glossary:   glossary,
		Boundaries: boundaries,
		Report:     report,
		LoadedAt:   s.clock.Now(),
		Generation: s.generation,
	}
}

func (s *Store) observeSource(name string, hit bool, err error) {
	if err != nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	s.metrics.SourceCache.WithLabelValues(name, result).Inc()
}
