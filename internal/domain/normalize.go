package domain

import (
	"math"
	"strconv"
	"strings"
)

// NormalizeReport counts the rows each cleaning step discarded.
type NormalizeReport struct {
	Input      int
	Duplicates int
	Incomplete int
	NonNumeric int
	Output     int
}

// Dropped is the total number of discarded rows.
func (r NormalizeReport) Dropped() int {
	return r.Duplicates + r.Incomplete + r.NonNumeric
}

// Normalize cleans raw indicator rows. Rows missing a critical column (IBGE,
// Cidade, Sigla, Ano, Valor) are dropped, the year loses its thousands
// separators, Valor is parsed (rows that do not parse to a finite number are
// dropped), the month is mapped to its name or [MonthUndefined], and IBGE/Ano
// are rendered as plain digit strings. Duplicates are then dropped by
// comparing the cleaned records, so "95.5" and "95.50" or months "1" and
// "1.0" are the same row. Running Normalize on its own output changes nothing.
//
// Malformed rows are excluded silently; the report only counts them.
func Normalize(rows []RawRow) ([]IndicatorRecord, NormalizeReport) {
	report := NormalizeReport{Input: len(rows)}
	out := make([]IndicatorRecord, 0, len(rows))
	seen := make(map[IndicatorRecord]struct{}, len(rows))

	for _, row := range rows {
		if !hasCriticalFields(row) {
			report.Incomplete++
			continue
		}

		value, ok := parseValue(row.Valor)
		if !ok {
			report.NonNumeric++
			continue
		}

		rec := IndicatorRecord{
			IBGECode:      normalizeCode(row.IBGE),
			CityName:      strings.TrimSpace(row.Cidade),
			IndicatorCode: strings.TrimSpace(row.Sigla),
			Year:          normalizeYear(row.Ano),
			Month:         normalizeMonth(row.Mes),
			Value:         value,
		}
		if _, dup := seen[rec]; dup {
			report.Duplicates++
			continue
		}
		seen[rec] = struct{}{}
		out = append(out, rec)
	}

	report.Output = len(out)
	return out, report
}

func hasCriticalFields(row RawRow) bool {
	for _, v := range [...]string{row.IBGE, row.Cidade, row.Sigla, row.Ano, row.Valor} {
		if isBlank(v) {
			return false
		}
	}
	return true
}

// isBlank treats empty cells and the textual NA markers left by spreadsheet
// exports as missing.
func isBlank(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "nan", "na", "n/a", "null", "none":
		return true
	default:
		return false
	}
}

// parseValue returns false for anything that is not a finite decimal.
func parseValue(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// normalizeYear strips thousands separators: "2.023" -> "2023". Purely
// textual, the year is never parsed here.
func normalizeYear(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), ".", "")
}

// normalizeCode renders an IBGE code as digits, undoing a float rendering
// such as "2501153.0".
func normalizeCode(s string) string {
	s = strings.TrimSpace(s)
	if whole, frac, ok := strings.Cut(s, "."); ok && strings.Trim(frac, "0") == "" {
		return whole
	}
	return s
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
