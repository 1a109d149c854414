package domain

import "time"

// RawRow is one indicator CSV row before cleaning. All fields are kept as the
// text found in the file.
type RawRow struct {
	IBGE   string `json:"IBGE"`
	Cidade string `json:"Cidade"`
	Sigla  string `json:"Sigla"`
	Ano    string `json:"Ano"`
	Mes    string `json:"Mês"`
	Valor  string `json:"Valor"`
}

// IndicatorRecord is one cleaned municipality observation.
type IndicatorRecord struct {
	IBGECode      string  `json:"ibge"`
	CityName      string  `json:"cidade"`
	IndicatorCode string  `json:"sigla"`
	Year          string  `json:"ano"`
	Month         string  `json:"mes"`
	Value         float64 `json:"valor"`

	// Glossary annotations, empty when the code has no glossary entry.
	Title string `json:"titulo,omitempty"`
	Unit  string `json:"unidade,omitempty"`
}

// Raw renders the record back into its CSV row form.
func (r IndicatorRecord) Raw() RawRow {
	return RawRow{
		IBGE:   r.IBGECode,
		Cidade: r.CityName,
		Sigla:  r.IndicatorCode,
		Ano:    r.Year,
		Mes:    r.Month,
		Valor:  formatValue(r.Value),
	}
}

// AggregatedRecord is one micro-region observation produced by [Aggregate].
type AggregatedRecord struct {
	MicroRegion   string  `json:"microrregiao"`
	IndicatorCode string  `json:"sigla"`
	Year          string  `json:"ano"`
	Month         string  `json:"mes"`
	Value         float64 `json:"valor"`
	Title         string  `json:"titulo,omitempty"`
	Unit          string  `json:"unidade,omitempty"`
}

// MicroRegion is a named, fixed set of municipality codes.
type MicroRegion struct {
	Name  string
	codes map[string]struct{}
	order []string
}

// NewMicroRegion builds a region from its member codes. Repeated codes are
// kept once.
func NewMicroRegion(name string, codes []string) MicroRegion {
	r := MicroRegion{Name: name, codes: make(map[string]struct{}, len(codes))}
	for _, c := range codes {
		if _, ok := r.codes[c]; ok {
			continue
		}
		r.codes[c] = struct{}{}
		r.order = append(r.order, c)
	}
	return r
}

// Contains reports whether the municipality code belongs to the region.
func (r MicroRegion) Contains(code string) bool {
	_, ok := r.codes[code]
	return ok
}

// Codes returns the member codes in configuration order.
func (r MicroRegion) Codes() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// RegionOf returns the first region containing code.
func RegionOf(regions []MicroRegion, code string) (MicroRegion, bool) {
	for _, r := range regions {
		if r.Contains(code) {
			return r, true
		}
	}
	return MicroRegion{}, false
}

// RegionNames lists region names in configuration order.
func RegionNames(regions []MicroRegion) []string {
	names := make([]string, len(regions))
	for i, r := range regions {
		names[i] = r.Name
	}
	return names
}

// DisplayRecord is a municipality or region observation with the derived
// presentation fields. Entity is the IBGE code or the region name.
type DisplayRecord struct {
	Entity        string  `json:"entity"`
	EntityName    string  `json:"entity_name"`
	IndicatorCode string  `json:"sigla"`
	Year          string  `json:"ano"`
	Month         string  `json:"mes"`
	Value         float64 `json:"valor"`
	Title         string  `json:"titulo,omitempty"`
	Unit          string  `json:"unidade,omitempty"`

	PeriodLabel  string  `json:"periodo"`
	MonthOrder   int     `json:"mes_num"`
	JitterOffset float64 `json:"jitter,omitempty"`
}

// PlotValue is the y coordinate used when drawing the point. Value stays the
// number shown in tables and labels.
func (d DisplayRecord) PlotValue() float64 {
	return d.Value + d.JitterOffset
}

// RegionSnapshot is the full set of monthly region records derived from one
// dataset generation, as published after a refresh.
type RegionSnapshot struct {
	Generation  uint64
	PublishedAt time.Time
	Records     []AggregatedRecord
}
