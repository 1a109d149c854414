package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// MonthUndefined marks annual rows and unknown months.
const MonthUndefined = "Indefinido"

// ErrUnknownMonth is returned when a month bound does not name a month.
var ErrUnknownMonth = errors.New("unknown month name")

var monthNames = [12]string{
	"Janeiro", "Fevereiro", "Março", "Abril", "Maio", "Junho",
	"Julho", "Agosto", "Setembro", "Outubro", "Novembro", "Dezembro",
}

var monthOrdinals = func() map[string]int {
	m := make(map[string]int, len(monthNames))
	for i, name := range monthNames {
		m[name] = i + 1
	}
	return m
}()

// MonthNames returns the twelve month names in calendar order.
func MonthNames() []string {
	out := make([]string, len(monthNames))
	copy(out, monthNames[:])
	return out
}

// MonthName maps 1-12 to the Portuguese month name.
func MonthName(n int) (string, bool) {
	if n < 1 || n > 12 {
		return "", false
	}
	return monthNames[n-1], true
}

// MonthOrdinal maps a month name to 1-12. Anything else, including
// [MonthUndefined], maps to 0.
func MonthOrdinal(name string) int {
	return monthOrdinals[canonicalMonth(name)]
}

// canonicalMonth trims and NFC-normalizes so a decomposed "Março" still
// matches the table.
func canonicalMonth(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}

// normalizeMonth converts a raw month cell to a month name or the sentinel.
// Accepts "3", "3.0" (float-rendered exports) and names that are already
// normalized.
func normalizeMonth(raw string) string {
	raw = canonicalMonth(raw)
	if raw == "" {
		return MonthUndefined
	}
	if _, ok := monthOrdinals[raw]; ok {
		return raw
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil && f == float64(int(f)) {
		if name, ok := MonthName(int(f)); ok {
			return name
		}
	}
	return MonthUndefined
}

// resolveMonthBound converts a range bound to its ordinal. An empty bound
// resolves to def.
func resolveMonthBound(name string, def int) (int, error) {
	if strings.TrimSpace(name) == "" {
		return def, nil
	}
	n := MonthOrdinal(name)
	if n == 0 {
		return 0, fmt.Errorf("%w: %q", ErrUnknownMonth, name)
	}
	return n, nil
}
