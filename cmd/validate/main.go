// Command validate checks the dashboard's input files against the domain
// configuration before they are deployed: the indicator CSV column contract
// and cleaning losses, coverage of the deployment scope, glossary entries for
// every indicator, and municipality boundaries for every region member.
//
// Paths default to the service configuration (environment or .env), so the
// command checks exactly what the dashboard would load.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -indicators data/mock/sire_indicador_valor_grid.csv \
//	  -glossary data/mock/sire_indicador_grid.csv \
//	  -boundaries data/geojs-25-mun.json
package main

import (
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/couchcryptid/sire-dashboard/internal/adapter/csvsource"
	"github.com/couchcryptid/sire-dashboard/internal/adapter/geo"
	"github.com/couchcryptid/sire-dashboard/internal/config"
	"github.com/couchcryptid/sire-dashboard/internal/domain"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

type inputs struct {
	dom        *config.Domain
	records    []domain.IndicatorRecord
	report     domain.NormalizeReport
	glossary   []domain.GlossaryEntry
	boundaries geo.Boundaries
}

func main() {
	indicators := flag.String("indicators", "", "indicator CSV (defaults to INDICATORS_PATH)")
	glossary := flag.String("glossary", "", "glossary CSV (defaults to GLOSSARY_PATH)")
	boundaries := flag.String("boundaries", "", "municipality GeoJSON (defaults to BOUNDARIES_PATH)")
	regions := flag.String("regions", "", "regions YAML (defaults to REGIONS_PATH or the embedded one)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load config: %v\n", err)
		os.Exit(1)
	}
	override(&cfg.IndicatorsPath, *indicators)
	override(&cfg.GlossaryPath, *glossary)
	override(&cfg.BoundariesPath, *boundaries)
	override(&cfg.RegionsPath, *regions)

	if code := run(cfg); code != 0 {
		os.Exit(code)
	}
}

func override(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func run(cfg *config.Config) int {
	fmt.Println("=== SIRE Dashboard Input Validation ===")
	fmt.Println()

	in, err := load(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateDomain(in.dom),
		validateIndicatorContract(in),
		validateScopeCoverage(in),
		validateGlossaryCoverage(in),
		validateBoundaryCoverage(in),
	}

	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Rows: %d read, %d kept (duplicates=%d incomplete=%d non-numeric=%d)\n",
		in.report.Input, in.report.Output, in.report.Duplicates, in.report.Incomplete, in.report.NonNumeric)
	fmt.Printf("Glossary: %d entries; Boundaries: %d municipalities; Regions: %d\n",
		len(in.glossary), len(in.boundaries), len(in.dom.Regions))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Data loading ──

func load(cfg *config.Config) (*inputs, error) {
	dom, err := config.LoadDomain(cfg.RegionsPath)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(cfg.IndicatorsPath)
	if err != nil {
		return nil, fmt.Errorf("read indicators: %w", err)
	}
	raw, err := csvsource.ParseIndicators(data)
	if err != nil {
		return nil, err
	}
	records, report := domain.Normalize(raw)

	data, err = os.ReadFile(cfg.GlossaryPath)
	if err != nil {
		return nil, fmt.Errorf("read glossary: %w", err)
	}
	entries, err := csvsource.ParseGlossary(data)
	if err != nil {
		return nil, err
	}

	data, err = os.ReadFile(cfg.BoundariesPath)
	if err != nil {
		return nil, fmt.Errorf("read boundaries: %w", err)
	}
	bs, err := geo.Parse(data)
	if err != nil {
		return nil, err
	}

	return &inputs{
		dom:        dom,
		records:    records,
		report:     report,
		glossary:   entries,
		boundaries: bs,
	}, nil
}

// ── Phase 1: Domain configuration ──

func validateDomain(dom *config.Domain) *phase {
	p := &phase{name: "Domain configuration"}

	if err := dom.Operations.Validate(); err != nil {
		p.errorf("%v", err)
	}

	configured := make(map[string]struct{}, len(dom.Operations))
	for _, code := range dom.Operations.Indicators() {
		configured[code] = struct{}{}
	}
	for _, code := range dom.Scope.Indicators {
		if _, ok := configured[code]; !ok {
			p.errorf("scope indicator %s has no aggregation operation", code)
		}
	}

	owner := make(map[string]string)
	for _, r := range dom.Regions {
		for _, code := range r.Codes() {
			if prev, ok := owner[code]; ok {
				p.errorf("municipality %s belongs to both %s and %s", code, prev, r.Name)
				continue
			}
			owner[code] = r.Name
		}
	}
	for _, code := range dom.Scope.Municipalities {
		if _, ok := owner[code]; !ok {
			p.errorf("scope municipality %s is not in any micro-region", code)
		}
	}
	return p
}

// ── Phase 2: Indicator file contract ──

func validateIndicatorContract(in *inputs) *phase {
	p := &phase{name: "Indicator file contract"}

	if in.report.Output == 0 {
		p.errorf("no usable rows after cleaning (%d read)", in.report.Input)
	}
	for i, r := range in.records {
		if _, ok := domain.YearNumber(r.Year); !ok {
			p.errorf("record %d (%s %s): year %q is not numeric", i, r.IBGECode, r.IndicatorCode, r.Year)
		}
	}

	names := make(map[string]string)
	for _, r := range in.records {
		if prev, ok := names[r.IBGECode]; ok && prev != r.CityName {
			p.errorf("municipality %s has two names: %q and %q", r.IBGECode, prev, r.CityName)
			continue
		}
		names[r.IBGECode] = r.CityName
	}
	return p
}

// ── Phase 3: Scope coverage ──

func validateScopeCoverage(in *inputs) *phase {
	p := &phase{name: "Scope coverage"}
	scoped := in.dom.Scope.Apply(in.records)
	if len(scoped) == 0 {
		p.errorf("no records inside the deployment scope")
		return p
	}

	byIndicator := map[string]int{}
	byMunicipality := map[string]int{}
	byYear := map[string]int{}
	for _, r := range scoped {
		byIndicator[r.IndicatorCode]++
		byMunicipality[r.IBGECode]++
		byYear[r.Year]++
	}
	for _, code := range in.dom.Scope.Indicators {
		if byIndicator[code] == 0 {
			p.errorf("scope indicator %s has no records", code)
		}
	}
	for _, code := range in.dom.Scope.Municipalities {
		if byMunicipality[code] == 0 {
			p.errorf("scope municipality %s has no records", code)
		}
	}
	for _, y := range in.dom.Scope.Years {
		if byYear[y] == 0 {
			p.errorf("scope year %s has no records", y)
		}
	}
	return p
}

// ── Phase 4: Glossary coverage ──

func validateGlossaryCoverage(in *inputs) *phase {
	p := &phase{name: "Glossary coverage"}

	seen := make(map[string]struct{}, len(in.glossary))
	for _, e := range in.glossary {
		if _, dup := seen[e.Code]; dup {
			p.errorf("glossary lists %s more than once", e.Code)
		}
		seen[e.Code] = struct{}{}
		if e.Title == "" {
			p.errorf("glossary entry %s has no title", e.Code)
		}
	}

	g := domain.NewGlossary(in.glossary)
	var missing []string
	for code := range distinct(in.dom.Scope.Apply(in.records), func(r domain.IndicatorRecord) string { return r.IndicatorCode }) {
		if _, ok := g.Lookup(code); !ok {
			missing = append(missing, code)
		}
	}
	sort.Strings(missing)
	for _, code := range missing {
		p.errorf("indicator %s has records but no glossary entry", code)
	}
	return p
}

// ── Phase 5: Boundary coverage ──

func validateBoundaryCoverage(in *inputs) *phase {
	p := &phase{name: "Boundary coverage"}

	have := make(map[string]struct{}, len(in.boundaries))
	for _, b := range in.boundaries {
		have[b.Code] = struct{}{}
	}
	for _, r := range in.dom.Regions {
		for _, code := range r.Codes() {
			if _, ok := have[code]; !ok {
				p.errorf("%s member %s has no boundary", r.Name, code)
			}
		}
	}
	for _, b := range in.boundaries {
		if _, ok := domain.RegionOf(in.dom.Regions, b.Code); !ok {
			p.errorf("boundary %s (%s) is not in any micro-region", b.Code, b.Name)
		}
	}
	return p
}

func distinct[T any](items []T, key func(T) string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, it := range items {
		out[key(it)] = struct{}{}
	}
	return out
}
