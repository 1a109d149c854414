package domain

import "strings"

// GlossaryEntry describes one indicator code.
type GlossaryEntry struct {
	Code  string `json:"sigla"`
	Title string `json:"titulo"`
	Unit  string `json:"unidade"`
}

// Glossary indexes entries by indicator code.
type Glossary struct {
	entries map[string]GlossaryEntry
	order   []string
}

// NewGlossary indexes entries; the first entry of a repeated code wins.
func NewGlossary(entries []GlossaryEntry) Glossary {
	g := Glossary{entries: make(map[string]GlossaryEntry, len(entries))}
	for _, e := range entries {
		e.Code = strings.TrimSpace(e.Code)
		if e.Code == "" {
			continue
		}
		if _, ok := g.entries[e.Code]; ok {
			continue
		}
		g.entries[e.Code] = e
		g.order = append(g.order, e.Code)
	}
	return g
}

// Lookup returns the entry for code.
func (g Glossary) Lookup(code string) (GlossaryEntry, bool) {
	e, ok := g.entries[code]
	return e, ok
}

// Entries returns entries for the given codes, skipping unknown ones. Nil
// codes returns every entry in load order.
func (g Glossary) Entries(codes []string) []GlossaryEntry {
	if codes == nil {
		codes = g.order
	}
	out := make([]GlossaryEntry, 0, len(codes))
	for _, c := range codes {
		if e, ok := g.entries[c]; ok {
			out = append(out, e)
		}
	}
	return out
}

// Len is the number of distinct codes.
func (g Glossary) Len() int { return len(g.entries) }

// AnnotateIndicators left-joins title and unit onto records.
func AnnotateIndicators(records []IndicatorRecord, g Glossary) []IndicatorRecord {
	out := make([]IndicatorRecord, len(records))
	for i, r := range records {
		e := g.entries[r.IndicatorCode]
		r.Title, r.Unit = e.Title, e.Unit
		out[i] = r
	}
	return out
}

// AnnotateAggregates left-joins title and unit onto region records.
func AnnotateAggregates(records []AggregatedRecord, g Glossary) []AggregatedRecord {
	out := make([]AggregatedRecord, len(records))
	for i, r := range records {
		e := g.entries[r.IndicatorCode]
		r.Title, r.Unit = e.Title, e.Unit
		out[i] = r
	}
	return out
}
