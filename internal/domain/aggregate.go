package domain

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Operation reduces a group of municipality values to one region value.
type Operation int

const (
	OperationMean Operation = iota + 1
	OperationSum
)

func (o Operation) String() string {
	switch o {
	case OperationMean:
		return "mean"
	case OperationSum:
		return "sum"
	default:
		return fmt.Sprintf("operation(%d)", int(o))
	}
}

// ConfigError reports an indicator configured with an unsupported
// aggregation operation.
type ConfigError struct {
	Indicator string
	Operation string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("unsupported aggregation operation %q for indicator %q", e.Operation, e.Indicator)
}

// ParseOperation converts a configured operation name. Anything but "mean" or
// "sum" is a *ConfigError naming the indicator.
func ParseOperation(indicator, name string) (Operation, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "mean":
		return OperationMean, nil
	case "sum":
		return OperationSum, nil
	default:
		return 0, &ConfigError{Indicator: indicator, Operation: name}
	}
}

// IndicatorOperation binds an indicator code to its operation.
type IndicatorOperation struct {
	Indicator string
	Operation Operation
}

// Operations is the per-indicator operation table, iterated in order.
type Operations []IndicatorOperation

// ParseOperations converts a code -> operation name mapping, sorted by code.
func ParseOperations(table map[string]string) (Operations, error) {
	codes := make([]string, 0, len(table))
	for code := range table {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	ops := make(Operations, 0, len(codes))
	for _, code := range codes {
		op, err := ParseOperation(code, table[code])
		if err != nil {
			return nil, err
		}
		ops = append(ops, IndicatorOperation{Indicator: code, Operation: op})
	}
	return ops, nil
}

// Indicators lists the configured codes in table order.
func (ops Operations) Indicators() []string {
	out := make([]string, len(ops))
	for i, op := range ops {
		out[i] = op.Indicator
	}
	return out
}

// Validate returns a *ConfigError for the first entry holding a value outside
// the enumeration.
func (ops Operations) Validate() error {
	for _, op := range ops {
		switch op.Operation {
		case OperationMean, OperationSum:
		default:
			return &ConfigError{Indicator: op.Indicator, Operation: op.Operation.String()}
		}
	}
	return nil
}

// Mode selects the aggregation grouping.
type Mode int

const (
	// ModeMonthly groups by (year, month).
	ModeMonthly Mode = iota
	// ModeAnnual groups by year only; results carry MonthUndefined.
	ModeAnnual
)

func (m Mode) String() string {
	if m == ModeAnnual {
		return "annual"
	}
	return "monthly"
}

// AggregateOptions tunes [Aggregate].
type AggregateOptions struct {
	Mode Mode
	// Indicators limits the computation to these codes. Nil computes every
	// configured indicator.
	Indicators []string
}

// Aggregate rolls municipality records up into micro-region records.
//
// For every region and every configured indicator (restricted to
// opts.Indicators when set) it selects the member records of that indicator,
// groups them by year (annual) or year and month (monthly), reduces each group
// with the indicator's operation and rounds the result up with [CeilTenth].
// Groups without source rows produce nothing. Output is ordered by region,
// indicator, year, then month ordinal.
//
// An invalid operation anywhere in ops fails the whole call with a
// *ConfigError and no output.
func Aggregate(records []IndicatorRecord, regions []MicroRegion, ops Operations, opts AggregateOptions) ([]AggregatedRecord, error) {
	if err := ops.Validate(); err != nil {
		return nil, err
	}

	var scope map[string]struct{}
	if opts.Indicators != nil {
		scope = toSet(opts.Indicators)
	}

	out := make([]AggregatedRecord, 0)
	for _, region := range regions {
		for _, op := range ops {
			if scope != nil {
				if _, ok := scope[op.Indicator]; !ok {
					continue
				}
			}
			for _, g := range groupRegion(records, region, op.Indicator, opts.Mode) {
				out = append(out, AggregatedRecord{
					MicroRegion:   region.Name,
					IndicatorCode: op.Indicator,
					Year:          g.year,
					Month:         g.month,
					Value:         CeilTenth(reduce(op.Operation, g.values)),
				})
			}
		}
	}
	return out, nil
}

type periodGroup struct {
	year   string
	month  string
	values []float64
}

func groupRegion(records []IndicatorRecord, region MicroRegion, indicator string, mode Mode) []*periodGroup {
	index := make(map[[2]string]*periodGroup)
	var groups []*periodGroup

	for _, r := range records {
		if r.IndicatorCode != indicator || !region.Contains(r.IBGECode) {
			continue
		}
		month := r.Month
		if mode == ModeAnnual {
			month = MonthUndefined
		}
		key := [2]string{r.Year, month}
		g, ok := index[key]
		if !ok {
			g = &periodGroup{year: r.Year, month: month}
			index[key] = g
			groups = append(groups, g)
		}
		g.values = append(g.values, r.Value)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return periodLess(groups[i].year, groups[i].month, groups[j].year, groups[j].month)
	})
	return groups
}

func reduce(op Operation, values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	if op == OperationMean {
		return sum / float64(len(values))
	}
	return sum
}

// ceilTolerance is the relative distance to a tenth below which v*10 counts
// as landing on it. It absorbs the binary error of sums and means (0.1+0.2,
// 96.3) and is far below the precision of the source values.
const ceilTolerance = 1e-12

// CeilTenth rounds v up to one decimal place: ceil(v*10)/10, except that a
// value within ceilTolerance (relative) of a tenth is taken as that tenth.
// Anything further above a tenth, however small, moves to the next one.
func CeilTenth(v float64) float64 {
	x := v * 10
	if r := math.Round(x); math.Abs(x-r) <= ceilTolerance*math.Max(1, math.Abs(x)) {
		return r / 10
	}
	return math.Ceil(x) / 10
}

// ClampMax caps aggregated values at limit. A non-positive limit disables it.
func ClampMax(records []AggregatedRecord, limit float64) []AggregatedRecord {
	out := make([]AggregatedRecord, len(records))
	copy(out, records)
	if limit <= 0 {
		return out
	}
	for i := range out {
		if out[i].Value > limit {
			out[i].Value = limit
		}
	}
	return out
}

// periodLess orders by numeric year (non-numeric years last, then lexically)
// and then month ordinal.
func periodLess(yearA, monthA, yearB, monthB string) bool {
	if c := compareYears(yearA, yearB); c != 0 {
		return c < 0
	}
	return MonthOrdinal(monthA) < MonthOrdinal(monthB)
}

func compareYears(a, b string) int {
	na, okA := YearNumber(a)
	nb, okB := YearNumber(b)
	switch {
	case okA && okB:
		return na - nb
	case okA:
		return -1
	case okB:
		return 1
	default:
		return strings.Compare(a, b)
	}
}
