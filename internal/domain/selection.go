package domain

import (
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Tokens that stand for "every option" in a selection.
const (
	AllMunicipalities = "Todos"
	AllIndicators     = "Todos"
	AllRegions        = "Todas"
)

// ExpandAll returns universe when selected is empty or contains token, and
// selected otherwise.
func ExpandAll(selected, universe []string, token string) []string {
	if len(selected) == 0 {
		return cloneStrings(universe)
	}
	for _, s := range selected {
		if s == token {
			return cloneStrings(universe)
		}
	}
	return cloneStrings(selected)
}

// SortPortuguese sorts a copy of values with Brazilian Portuguese collation,
// so "Água Branca" sorts with the A's.
func SortPortuguese(values []string) []string {
	out := cloneStrings(values)
	collate.New(language.BrazilianPortuguese, collate.IgnoreCase).SortStrings(out)
	return out
}

// Municipality is a code/name pair present in the data.
type Municipality struct {
	Code string `json:"ibge"`
	Name string `json:"cidade"`
}

// Municipalities lists the distinct municipalities of records ordered by name
// with Portuguese collation.
func Municipalities(records []IndicatorRecord) []Municipality {
	byName := make(map[string]Municipality)
	seen := make(map[string]struct{})
	var names []string
	for _, r := range records {
		if _, ok := seen[r.IBGECode]; ok {
			continue
		}
		seen[r.IBGECode] = struct{}{}
		key := r.CityName + "\x00" + r.IBGECode
		byName[key] = Municipality{Code: r.IBGECode, Name: r.CityName}
		names = append(names, key)
	}
	names = SortPortuguese(names)
	out := make([]Municipality, len(names))
	for i, n := range names {
		out[i] = byName[n]
	}
	return out
}

// MunicipalityCodes extracts the codes of ms.
func MunicipalityCodes(ms []Municipality) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.Code
	}
	return out
}

// IndicatorCodes lists the distinct indicator codes of records, sorted.
func IndicatorCodes(records []IndicatorRecord) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, r := range records {
		if _, ok := seen[r.IndicatorCode]; ok {
			continue
		}
		seen[r.IndicatorCode] = struct{}{}
		out = append(out, r.IndicatorCode)
	}
	return SortPortuguese(out)
}

// AvailableMonths lists the month names present in records in calendar
// order, excluding the sentinel.
func AvailableMonths(records []IndicatorRecord) []string {
	var present [13]bool
	for _, r := range records {
		present[MonthOrdinal(r.Month)] = true
	}
	var out []string
	for i := 1; i <= 12; i++ {
		if present[i] {
			out = append(out, monthNames[i-1])
		}
	}
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
