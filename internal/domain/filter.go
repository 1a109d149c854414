package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidYear is returned when a year bound is not a number.
var ErrInvalidYear = errors.New("invalid year")

// YearRange is an inclusive year interval. An empty bound is open.
type YearRange struct {
	From string
	To   string
}

// MonthRange is an inclusive month interval given by month names. An empty
// bound is open, but any non-empty bound excludes [MonthUndefined] rows.
type MonthRange struct {
	From string
	To   string
}

// IsZero reports whether the range places no constraint.
func (m MonthRange) IsZero() bool {
	return strings.TrimSpace(m.From) == "" && strings.TrimSpace(m.To) == ""
}

// Criteria selects records. An empty Indicators or Entities list matches
// nothing; callers expand "all" first (see [ExpandAll]). AllEntities skips
// entity filtering, as the region view does before aggregation.
type Criteria struct {
	Indicators  []string
	Years       YearRange
	Months      MonthRange
	Entities    []string
	AllEntities bool
}

// Filter returns the records matching every predicate in c, in input order.
//
// Years compare numerically; rows whose year is not a number never match a
// bounded range. Months compare by ordinal after resolving both the row and
// the bounds through [MonthOrdinal].
func Filter(records []IndicatorRecord, c Criteria) ([]IndicatorRecord, error) {
	yearFrom, yearTo, err := resolveYears(c.Years)
	if err != nil {
		return nil, err
	}
	monthFrom, monthTo, err := resolveMonths(c.Months)
	if err != nil {
		return nil, err
	}

	indicators := toSet(c.Indicators)
	entities := toSet(c.Entities)
	out := make([]IndicatorRecord, 0)

	for _, r := range records {
		if _, ok := indicators[r.IndicatorCode]; !ok {
			continue
		}
		if !c.AllEntities {
			if _, ok := entities[r.IBGECode]; !ok {
				continue
			}
		}
		if !yearInRange(r.Year, yearFrom, yearTo) {
			continue
		}
		if !c.Months.IsZero() {
			n := MonthOrdinal(r.Month)
			if n == 0 || n < monthFrom || n > monthTo {
				continue
			}
		}
		out = append(out, r)
	}
	return out, nil
}

// FilterRegions keeps aggregated records of the named regions.
func FilterRegions(records []AggregatedRecord, regions []string) []AggregatedRecord {
	keep := toSet(regions)
	out := make([]AggregatedRecord, 0)
	for _, r := range records {
		if _, ok := keep[r.MicroRegion]; ok {
			out = append(out, r)
		}
	}
	return out
}

type yearBound struct {
	set bool
	n   int
}

func resolveYears(r YearRange) (yearBound, yearBound, error) {
	from, err := parseYearBound(r.From)
	if err != nil {
		return yearBound{}, yearBound{}, err
	}
	to, err := parseYearBound(r.To)
	if err != nil {
		return yearBound{}, yearBound{}, err
	}
	return from, to, nil
}

func parseYearBound(s string) (yearBound, error) {
	s = normalizeYear(s)
	if s == "" {
		return yearBound{}, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return yearBound{}, fmt.Errorf("%w: %q", ErrInvalidYear, s)
	}
	return yearBound{set: true, n: n}, nil
}

func yearInRange(year string, from, to yearBound) bool {
	if !from.set && !to.set {
		return true
	}
	n, ok := YearNumber(year)
	if !ok {
		return false
	}
	if from.set && n < from.n {
		return false
	}
	if to.set && n > to.n {
		return false
	}
	return true
}

// YearNumber parses a normalized year.
func YearNumber(year string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(year))
	if err != nil {
		return 0, false
	}
	return n, true
}

func resolveMonths(m MonthRange) (int, int, error) {
	from, err := resolveMonthBound(m.From, 1)
	if err != nil {
		return 0, 0, err
	}
	to, err := resolveMonthBound(m.To, 12)
	if err != nil {
		return 0, 0, err
	}
	return from, to, nil
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
