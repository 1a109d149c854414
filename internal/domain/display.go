package domain

import (
	"sort"
	"strings"
)

// JitterStep separates coincident line points of different entities. The
// n-th entity of a chart (in row order) is drawn n*JitterStep above its value.
const JitterStep = 0.2

// DisplayFromIndicators derives display rows for municipality records.
func DisplayFromIndicators(records []IndicatorRecord) []DisplayRecord {
	out := make([]DisplayRecord, len(records))
	for i, r := range records {
		out[i] = derive(DisplayRecord{
			Entity:        r.IBGECode,
			EntityName:    r.CityName,
			IndicatorCode: r.IndicatorCode,
			Year:          r.Year,
			Month:         r.Month,
			Value:         r.Value,
			Title:         r.Title,
			Unit:          r.Unit,
		})
	}
	return out
}

// DisplayFromAggregates derives display rows for region records.
func DisplayFromAggregates(records []AggregatedRecord) []DisplayRecord {
	out := make([]DisplayRecord, len(records))
	for i, r := range records {
		out[i] = derive(DisplayRecord{
			Entity:        r.MicroRegion,
			EntityName:    r.MicroRegion,
			IndicatorCode: r.IndicatorCode,
			Year:          r.Year,
			Month:         r.Month,
			Value:         r.Value,
			Title:         r.Title,
			Unit:          r.Unit,
		})
	}
	return out
}

func derive(d DisplayRecord) DisplayRecord {
	if strings.TrimSpace(d.Month) == "" {
		d.Month = MonthUndefined
	}
	if strings.TrimSpace(d.Year) == "" {
		d.Year = MonthUndefined
	}
	d.PeriodLabel = PeriodLabel(d.Month, d.Year)
	d.MonthOrder = MonthOrdinal(d.Month)
	return d
}

// PeriodLabel renders "month/year", e.g. "Janeiro/2023".
func PeriodLabel(month, year string) string {
	return month + "/" + year
}

// ChartRows prepares rows for a time axis. Monthly charts drop rows whose
// month or year is undefined; annual charts keep only the annual
// (undefined-month) rows that have a year, one bar per entity and year. Rows are
// sorted by (indicator, month order, year, entity) and each indicator's
// entities get increasing jitter offsets in first-appearance order.
func ChartRows(rows []DisplayRecord, mode Mode) []DisplayRecord {
	out := make([]DisplayRecord, 0, len(rows))
	for _, r := range rows {
		if r.Year == MonthUndefined {
			continue
		}
		if mode == ModeMonthly && (r.Month == MonthUndefined || strings.Contains(r.PeriodLabel, MonthUndefined)) {
			continue
		}
		if mode == ModeAnnual && r.Month != MonthUndefined {
			continue
		}
		out = append(out, r)
	}
	sortDisplay(out)
	applyJitter(out)
	return out
}

// TableRows prepares rows for the detailed table. Annual tables keep only the
// undefined-month (annual) rows; monthly tables drop them. Jitter is never
// set on table rows.
func TableRows(rows []DisplayRecord, mode Mode) []DisplayRecord {
	out := make([]DisplayRecord, 0, len(rows))
	for _, r := range rows {
		annual := r.Month == MonthUndefined
		if mode == ModeAnnual && !annual {
			continue
		}
		if mode == ModeMonthly && (annual || strings.Contains(r.PeriodLabel, MonthUndefined)) {
			continue
		}
		r.JitterOffset = 0
		out = append(out, r)
	}
	if mode == ModeMonthly {
		sortDisplay(out)
	}
	return out
}

func sortDisplay(rows []DisplayRecord) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.IndicatorCode != b.IndicatorCode {
			return a.IndicatorCode < b.IndicatorCode
		}
		if a.MonthOrder != b.MonthOrder {
			return a.MonthOrder < b.MonthOrder
		}
		if c := compareYears(a.Year, b.Year); c != 0 {
			return c < 0
		}
		return a.Entity < b.Entity
	})
}

func applyJitter(rows []DisplayRecord) {
	offsets := make(map[[2]string]float64)
	next := make(map[string]int)
	for i := range rows {
		key := [2]string{rows[i].IndicatorCode, rows[i].Entity}
		off, ok := offsets[key]
		if !ok {
			off = float64(next[rows[i].IndicatorCode]) * JitterStep
			next[rows[i].IndicatorCode]++
			offsets[key] = off
		}
		rows[i].JitterOffset = off
	}
}

// PeriodCategories lists the distinct period labels of rows ordered by
// (year, month ordinal), the x-axis order of a monthly chart.
func PeriodCategories(rows []DisplayRecord) []string {
	type period struct{ month, year string }
	seen := make(map[string]struct{})
	var periods []period
	for _, r := range rows {
		if _, ok := seen[r.PeriodLabel]; ok {
			continue
		}
		seen[r.PeriodLabel] = struct{}{}
		periods = append(periods, period{month: r.Month, year: r.Year})
	}
	sort.SliceStable(periods, func(i, j int) bool {
		return periodLess(periods[i].year, periods[i].month, periods[j].year, periods[j].month)
	})
	out := make([]string, len(periods))
	for i, p := range periods {
		out[i] = PeriodLabel(p.month, p.year)
	}
	return out
}

// NoDataTitle is the chart title used when an indicator has no rows.
const NoDataTitle = "Dados não disponíveis"

// IndicatorSeries is one chart's worth of rows.
type IndicatorSeries struct {
	Indicator string          `json:"sigla"`
	Title     string          `json:"titulo"`
	Unit      string          `json:"unidade"`
	Rows      []DisplayRecord `json:"rows"`
	NoData    bool            `json:"no_data"`
}

// Heading renders "IN200: title (unit)".
func (s IndicatorSeries) Heading() string {
	return s.Indicator + ": " + s.Title + " (" + s.Unit + ")"
}

// SeriesByIndicator splits chart rows into one series per requested
// indicator, in the requested order. Indicators without rows yield an empty
// series flagged NoData.
func SeriesByIndicator(rows []DisplayRecord, indicators []string) []IndicatorSeries {
	byCode := make(map[string][]DisplayRecord)
	for _, r := range rows {
		byCode[r.IndicatorCode] = append(byCode[r.IndicatorCode], r)
	}
	out := make([]IndicatorSeries, 0, len(indicators))
	for _, code := range indicators {
		s := IndicatorSeries{Indicator: code, Rows: byCode[code]}
		if len(s.Rows) == 0 {
			s.Title = NoDataTitle
			s.NoData = true
			s.Rows = []DisplayRecord{}
		} else {
			s.Title = s.Rows[0].Title
			s.Unit = s.Rows[0].Unit
		}
		out = append(out, s)
	}
	return out
}
