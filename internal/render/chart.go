// Package render turns pipeline results into charts, spreadsheets and map
// layers.
package render

import (
	"bytes"
	"fmt"
	"image/color"
	"math"
	"sort"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/couchcryptid/sire-dashboard/internal/cache"
	"github.com/couchcryptid/sire-dashboard/internal/domain"
	"github.com/couchcryptid/sire-dashboard/internal/observability"
)

// Y-axis ceilings for percent-bounded indicators. Line charts leave headroom
// for the value labels and the jitter offsets.
const (
	LineAxisMax = 110
	BarAxisMax  = 100
)

// NoDataMessage is drawn on a chart whose indicator has no rows.
const NoDataMessage = "Nenhum dado disponível para este indicador."

var seriesColors = []color.RGBA{
	{R: 31, G: 119, B: 180, A: 255},
	{R: 255, G: 127, B: 14, A: 255},
	{R: 44, G: 160, B: 44, A: 255},
	{R: 214, G: 39, B: 40, A: 255},
	{R: 148, G: 103, B: 189, A: 255},
	{R: 140, G: 86, B: 75, A: 255},
	{R: 227, G: 119, B: 194, A: 255},
	{R: 127, G: 127, B: 127, A: 255},
	{R: 188, G: 189, B: 34, A: 255},
	{R: 23, G: 190, B: 207, A: 255},
}

// ChartRenderer draws one PNG per indicator series and keeps recently drawn
// images in an LRU keyed by a hash of the series content.
type ChartRenderer struct {
	width, height vg.Length
	cache         *cache.LRU[uint64, []byte]
	metrics       *observability.Metrics
}

// NewChartRenderer creates a renderer caching up to cacheSize images.
func NewChartRenderer(cacheSize int, metrics *observability.Metrics) *ChartRenderer {
	return &ChartRenderer{
		width:   10 * vg.Inch,
		height:  5 * vg.Inch,
		cache:   cache.NewLRU[uint64, []byte](cacheSize),
		metrics: metrics,
	}
}

// Invalidate drops every cached image. Called when the dataset changes.
func (r *ChartRenderer) Invalidate() { r.cache.Purge() }

// Render returns the PNG for s: a line-with-markers chart over period labels
// in monthly mode, a grouped bar chart over years in annual mode.
func (r *ChartRenderer) Render(s domain.IndicatorSeries, mode domain.Mode) ([]byte, error) {
	key := seriesKey(s, mode)
	if img, ok := r.cache.Get(key); ok {
		r.metrics.ChartCache.WithLabelValues("hit").Inc()
		return img, nil
	}
	r.metrics.ChartCache.WithLabelValues("miss").Inc()

	p := plot.New()
	p.Title.TextStyle.Font.Size = vg.Points(14)
	p.Legend.Top = true

	var err error
	switch {
	case s.NoData || len(s.Rows) == 0:
		drawNoData(p)
	case mode == domain.ModeAnnual:
		p.Title.Text = s.Heading()
		err = drawBars(p, s.Rows)
	default:
		p.Title.Text = s.Heading()
		err = drawLines(p, s.Rows)
	}
	if err != nil {
		return nil, fmt.Errorf("chart %s: %w", s.Indicator, err)
	}

	wt, err := p.WriterTo(r.width, r.height, "png")
	if err != nil {
		return nil, fmt.Errorf("chart %s: %w", s.Indicator, err)
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("chart %s: encode png: %w", s.Indicator, err)
	}

	img := buf.Bytes()
	r.cache.Put(key, img)
	return img, nil
}

func drawNoData(p *plot.Plot) {
	p.Title.Text = domain.NoDataTitle
	p.X.Label.Text = NoDataMessage
	p.HideAxes()
}

// drawLines plots one line per entity. Points sit at value+jitter; labels
// show the true value.
func drawLines(p *plot.Plot, rows []domain.DisplayRecord) error {
	categories := domain.PeriodCategories(rows)
	index := make(map[string]int, len(categories))
	for i, c := range categories {
		index[c] = i
	}

	groups := groupByEntity(rows)
	for i, g := range groups {
		sort.SliceStable(g.rows, func(a, b int) bool {
			return index[g.rows[a].PeriodLabel] < index[g.rows[b].PeriodLabel]
		})
		xys := make(plotter.XYs, len(g.rows))
		labels := make([]string, len(g.rows))
		for j, row := range g.rows {
			xys[j] = plotter.XY{X: float64(index[row.PeriodLabel]), Y: row.PlotValue()}
			labels[j] = formatValue(row.Value)
		}

		line, points, err := plotter.NewLinePoints(xys)
		if err != nil {
			return err
		}
		c := seriesColors[i%len(seriesColors)]
		line.Color = c
		line.Width = vg.Points(2)
		points.Color = c
		points.Shape = draw.CircleGlyph{}
		points.Radius = vg.Points(3)

		lbl, err := plotter.NewLabels(plotter.XYLabels{XYs: xys, Labels: labels})
		if err != nil {
			return err
		}
		for k := range lbl.TextStyle {
			lbl.TextStyle[k].YAlign = draw.YBottom
			lbl.TextStyle[k].XAlign = draw.XCenter
		}

		p.Add(line, points, lbl)
		p.Legend.Add(g.name, line, points)
	}

	p.Add(plotter.NewGrid())
	p.NominalX(categories...)
	p.X.Tick.Label.Rotation = math.Pi / 6
	p.X.Tick.Label.XAlign = draw.XRight
	p.Y.Min, p.Y.Max = 0, LineAxisMax
	return nil
}

// drawBars plots one bar group per year with one bar per entity.
func drawBars(p *plot.Plot, rows []domain.DisplayRecord) error {
	years := distinctYears(rows)
	index := make(map[string]int, len(years))
	for i, y := range years {
		index[y] = i
	}

	groups := groupByEntity(rows)
	width := vg.Points(float64(60) / float64(max(len(groups), 1)))
	for i, g := range groups {
		values := make(plotter.Values, len(years))
		for _, row := range g.rows {
			values[index[row.Year]] = row.Value
		}
		bars, err := plotter.NewBarChart(values, width)
		if err != nil {
			return err
		}
		bars.Color = seriesColors[i%len(seriesColors)]
		bars.LineStyle.Width = vg.Length(0)
		bars.Offset = vg.Length(float64(i)-float64(len(groups)-1)/2) * width
		p.Add(bars)
		p.Legend.Add(g.name, bars)
	}

	p.NominalX(years...)
	p.Y.Min, p.Y.Max = 0, BarAxisMax
	return nil
}

type entityRows struct {
	name string
	rows []domain.DisplayRecord
}

// groupByEntity splits rows per entity in first-appearance order.
func groupByEntity(rows []domain.DisplayRecord) []*entityRows {
	byEntity := make(map[string]*entityRows)
	var out []*entityRows
	for _, row := range rows {
		g, ok := byEntity[row.Entity]
		if !ok {
			g = &entityRows{name: row.EntityName}
			byEntity[row.Entity] = g
			out = append(out, g)
		}
		g.rows = append(g.rows, row)
	}
	return out
}

func distinctYears(rows []domain.DisplayRecord) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, r := range rows {
		if _, ok := seen[r.Year]; ok {
			continue
		}
		seen[r.Year] = struct{}{}
		out = append(out, r.Year)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, aok := domain.YearNumber(out[i])
		b, bok := domain.YearNumber(out[j])
		if aok && bok {
			return a < b
		}
		return out[i] < out[j]
	})
	return out
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func seriesKey(s domain.IndicatorSeries, mode domain.Mode) uint64 {
	d := xxhash.New()
	_, _ = d.WriteString(mode.String())
	_, _ = d.WriteString("\x00" + s.Heading())
	for _, r := range s.Rows {
		_, _ = d.WriteString("\x00" + r.Entity + "\x1f" + r.EntityName + "\x1f" + r.PeriodLabel + "\x1f" +
			formatValue(r.Value) + "\x1f" + formatValue(r.JitterOffset))
	}
	return d.Sum64()
}
