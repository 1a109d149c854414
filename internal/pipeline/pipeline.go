package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/couchcryptid/sire-dashboard/internal/config"
	"github.com/couchcryptid/sire-dashboard/internal/dataset"
	"github.com/couchcryptid/sire-dashboard/internal/domain"
	"github.com/couchcryptid/sire-dashboard/internal/observability"
)

// SnapshotSource provides the dataset snapshot a render cycle reads.
type SnapshotSource interface {
	Current() (*dataset.Snapshot, error)
}

// View selects the municipality or micro-region dashboard.
type View string

const (
	ViewMunicipalities View = "municipalities"
	ViewRegions        View = "regions"
)

// ErrUnknownView is returned for a view other than the two dashboards.
var ErrUnknownView = errors.New("unknown view")

// ParseView validates a view name.
func ParseView(s string) (View, error) {
	switch View(s) {
	case ViewMunicipalities, ViewRegions:
		return View(s), nil
	default:
		return "", fmt.Errorf("%w %q", ErrUnknownView, s)
	}
}

// Request is one user selection. Entities holds IBGE codes in the
// municipality view and region names in the region view; an empty list or
// the "all" token selects everything, and the same goes for Indicators.
type Request struct {
	Entities   []string
	Indicators []string
	Years      domain.YearRange
	Months     domain.MonthRange
	Annual     bool
}

// Mode maps the annual flag onto an aggregation mode.
func (r Request) Mode() domain.Mode {
	if r.Annual {
		return domain.ModeAnnual
	}
	return domain.ModeMonthly
}

// Result is everything one render cycle produces. All slices are fresh copies
// owned by the caller.
type Result struct {
	RenderID   string                   `json:"render_id"`
	View       View                     `json:"view"`
	Mode       string                   `json:"mode"`
	Generation uint64                   `json:"generation"`
	Entities   []string                 `json:"entities"`
	Indicators []string                 `json:"indicators"`
	Table      []domain.DisplayRecord   `json:"table"`
	Series     []domain.IndicatorSeries `json:"series"`
	NoData     bool                     `json:"no_data"`

	// Filtered holds the municipality records behind the view, Aggregated the
	// region records. Only one is set, depending on View.
	Filtered   []domain.IndicatorRecord  `json:"-"`
	Aggregated []domain.AggregatedRecord `json:"-"`
}

// Pipeline runs the filter, aggregate and display stages for one request
// against the current snapshot.
type Pipeline struct {
	source   SnapshotSource
	regions  []domain.MicroRegion
	ops      domain.Operations
	scope    domain.Scope
	valueCap float64
	logger   *slog.Logger
	metrics  *observability.Metrics
	newID    func() string
}

// New creates a Pipeline over source using the static domain configuration.
// valueCap limits aggregated region values; zero disables the cap.
func New(source SnapshotSource, dom *config.Domain, valueCap float64, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		source:   source,
		regions:  dom.Regions,
		ops:      dom.Operations,
		scope:    dom.Scope,
		valueCap: valueCap,
		logger:   logger,
		metrics:  metrics,
		newID:    uuid.NewString,
	}
}

// MicroRegions returns the configured micro-regions.
func (p *Pipeline) MicroRegions() []domain.MicroRegion { return p.regions }

// Options lists what a user can pick from in the current snapshot.
type Options struct {
	Municipalities []domain.Municipality  `json:"municipalities"`
	Indicators     []domain.GlossaryEntry `json:"indicators"`
	Regions        []string               `json:"regions"`
	Years          []string               `json:"years"`
	Months         []string               `json:"months"`
}

// Options returns the selector contents for the current snapshot. Indicators
// without a glossary entry are listed by code alone.
func (p *Pipeline) Options(_ context.Context) (*Options, error) {
	snap, err := p.source.Current()
	if err != nil {
		return nil, err
	}
	codes := p.indicatorUniverse(snap)
	indicators := make([]domain.GlossaryEntry, 0, len(codes))
	for _, code := range codes {
		e, ok := snap.Glossary.Lookup(code)
		if !ok {
			e = domain.GlossaryEntry{Code: code}
		}
		indicators = append(indicators, e)
	}
	return &Options{
		Municipalities: domain.Municipalities(snap.Records),
		Indicators:     indicators,
		Regions:        domain.RegionNames(p.regions),
		Years:          p.availableYears(snap),
		Months:         domain.AvailableMonths(snap.Records),
	}, nil
}

// Render dispatches to the view's render cycle.
func (p *Pipeline) Render(ctx context.Context, view View, req Request) (*Result, error) {
	switch view {
	case ViewMunicipalities:
		return p.Municipalities(ctx, req)
	case ViewRegions:
		return p.Regions(ctx, req)
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownView, view)
	}
}

// Municipalities filters municipality records and derives their table and
// chart rows.
func (p *Pipeline) Municipalities(ctx context.Context, req Request) (*Result, error) {
	return p.run(ctx, ViewMunicipalities, req, p.renderMunicipalities)
}

// Regions filters every municipality, aggregates into micro-regions, caps the
// values and keeps the selected regions.
func (p *Pipeline) Regions(ctx context.Context, req Request) (*Result, error) {
	return p.run(ctx, ViewRegions, req, p.renderRegions)
}

type renderFunc func(snap *dataset.Snapshot, req Request, res *Result) error

func (p *Pipeline) run(_ context.Context, view View, req Request, render renderFunc) (*Result, error) {
	start := time.Now()
	res := &Result{RenderID: p.newID(), View: view, Mode: req.Mode().String()}
	logger := p.logger.With("render_id", res.RenderID, "view", string(view))

	snap, err := p.source.Current()
	if err != nil {
		p.metrics.RenderRequests.WithLabelValues(string(view), "error").Inc()
		return nil, err
	}
	res.Generation = snap.Generation

	if err := render(snap, req, res); err != nil {
		p.metrics.RenderRequests.WithLabelValues(string(view), "error").Inc()
		logger.Error("render failed", "error", err)
		return nil, err
	}

	res.NoData = len(res.Table) == 0 && allNoData(res.Series)
	outcome := "success"
	if res.NoData {
		outcome = "no_data"
	}
	p.metrics.RenderRequests.WithLabelValues(string(view), outcome).Inc()
	p.metrics.RenderDuration.WithLabelValues(string(view)).Observe(time.Since(start).Seconds())

	logger.Debug("render complete",
		"mode", res.Mode,
		"entities", len(res.Entities),
		"indicators", len(res.Indicators),
		"table_rows", len(res.Table),
		"no_data", res.NoData,
	)
	return res, nil
}

func (p *Pipeline) renderMunicipalities(snap *dataset.Snapshot, req Request, res *Result) error {
	universe := domain.MunicipalityCodes(domain.Municipalities(snap.Records))
	res.Entities = domain.ExpandAll(req.Entities, universe, domain.AllMunicipalities)
	res.Indicators = domain.ExpandAll(req.Indicators, p.indicatorUniverse(snap), domain.AllIndicators)

	filtered, err := domain.Filter(snap.Records, domain.Criteria{
		Indicators: res.Indicators,
		Years:      req.Years,
		Months:     req.Months,
		Entities:   res.Entities,
	})
	if err != nil {
		return err
	}
	res.Filtered = filtered

	rows := domain.DisplayFromIndicators(filtered)
	res.Table = domain.TableRows(rows, req.Mode())
	res.Series = domain.SeriesByIndicator(domain.ChartRows(rows, req.Mode()), res.Indicators)
	return nil
}

func (p *Pipeline) renderRegions(snap *dataset.Snapshot, req Request, res *Result) error {
	res.Entities = domain.ExpandAll(req.Entities, domain.RegionNames(p.regions), domain.AllRegions)
	res.Indicators = domain.ExpandAll(req.Indicators, p.indicatorUniverse(snap), domain.AllIndicators)

	filtered, err := domain.Filter(snap.Records, domain.Criteria{
		Indicators:  res.Indicators,
		Years:       req.Years,
		Months:      req.Months,
		AllEntities: true,
	})
	if err != nil {
		return err
	}

	aggregated, err := p.aggregate(filtered, snap.Glossary, domain.AggregateOptions{
		Mode:       req.Mode(),
		Indicators: res.Indicators,
	})
	if err != nil {
		return err
	}
	res.Aggregated = domain.FilterRegions(aggregated, res.Entities)

	rows := domain.DisplayFromAggregates(res.Aggregated)
	res.Table = domain.TableRows(rows, req.Mode())
	res.Series = domain.SeriesByIndicator(domain.ChartRows(rows, req.Mode()), res.Indicators)
	return nil
}

// RegionSnapshot aggregates the whole current snapshot by month for every
// configured indicator, the record set published after each refresh.
func (p *Pipeline) RegionSnapshot(_ context.Context) ([]domain.AggregatedRecord, uint64, error) {
	snap, err := p.source.Current()
	if err != nil {
		return nil, 0, err
	}
	out, err := p.aggregate(snap.Records, snap.Glossary, domain.AggregateOptions{Mode: domain.ModeMonthly})
	if err != nil {
		return nil, 0, err
	}
	return out, snap.Generation, nil
}

func (p *Pipeline) aggregate(records []domain.IndicatorRecord, g domain.Glossary, opts domain.AggregateOptions) ([]domain.AggregatedRecord, error) {
	out, err := domain.Aggregate(records, p.regions, p.ops, opts)
	if err != nil {
		var cfgErr *domain.ConfigError
		if errors.As(err, &cfgErr) {
			p.metrics.AggregationErrors.Inc()
		}
		return nil, fmt.Errorf("aggregate regions: %w", err)
	}
	if p.valueCap > 0 {
		out = domain.ClampMax(out, p.valueCap)
	}
	return domain.AnnotateAggregates(out, g), nil
}

// indicatorUniverse is the scope's indicator list when configured, otherwise
// every code present in the snapshot.
func (p *Pipeline) indicatorUniverse(snap *dataset.Snapshot) []string {
	if len(p.scope.Indicators) > 0 {
		return p.scope.Indicators
	}
	return domain.IndicatorCodes(snap.Records)
}

func (p *Pipeline) availableYears(snap *dataset.Snapshot) []string {
	if len(p.scope.Years) > 0 {
		return append([]string(nil), p.scope.Years...)
	}
	seen := make(map[string]struct{})
	var years []string
	for _, r := range snap.Records {
		if _, ok := seen[r.Year]; ok {
			continue
		}
		seen[r.Year] = struct{}{}
		years = append(years, r.Year)
	}
	sort.Slice(years, func(i, j int) bool {
		a, aok := domain.YearNumber(years[i])
		b, bok := domain.YearNumber(years[j])
		if aok && bok {
			return a < b
		}
		if aok != bok {
			return aok
		}
		return years[i] < years[j]
	})
	return years
}

func allNoData(series []domain.IndicatorSeries) bool {
	for _, s := range series {
		if !s.NoData {
			return false
		}
	}
	return true
}
