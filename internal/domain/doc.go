// Package domain models SIRE public-service indicators (water and sanitation
// service metrics) for the municipalities of Paraíba and their micro-region
// rollups.
//
// # Data Source
//
// Indicator values come from a static CSV export ("sire_indicador_valor_grid")
// refreshed out-of-band, one row per municipality, indicator, year and
// (optionally) month. A second CSV ("sire_indicador_grid") is the glossary of
// indicator titles and units. Neither file is written by this service.
//
// # Column Conventions
//
//	IBGE    7-digit municipality code, e.g. "2501153". Join key to the
//	        boundary GeoJSON feature "id".
//	Cidade  municipality name.
//	Sigla   indicator code, e.g. "IN200".
//	Ano     year. Spreadsheet exports sometimes render it with a thousands
//	        separator ("2.023"); the dot is stripped textually.
//	Mês     month number 1-12, or blank for annual figures.
//	Valor   decimal value with "." as the decimal separator.
//
// # Sentinels
//
// A blank month becomes "Indefinido" ([MonthUndefined]). Such rows are annual
// figures: they appear in annual tables but never on a monthly time axis.
// Month names are the long Portuguese names ("Janeiro" ... "Dezembro") and
// order through [MonthOrdinal], never lexically.
//
// # Pipeline
//
//	raw rows -> [Normalize] -> [Scope.Apply] -> [Filter]
//	         -> [Aggregate] (region view only) -> [DisplayFromIndicators] /
//	            [DisplayFromAggregates] -> [ChartRows] / [TableRows]
//
// Every stage returns a new slice; input slices are never modified, so a
// loaded snapshot can be shared across concurrent renders without locking.
//
// # Aggregation
//
// Region values are the mean or sum (per indicator, see [Operation]) of the
// member municipalities' values, rounded up to one decimal place with
// [CeilTenth]. Rounding up is policy: regional figures are never reported
// more favorably than the raw figures allow.
package domain
