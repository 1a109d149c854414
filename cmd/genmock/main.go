// Command genmock writes deterministic indicator and glossary CSV fixtures in
// the layout the dashboard reads. Values are drawn from a seeded generator,
// so the same flags always produce the same files. The generated indicator
// file is re-read through the real cleaning code and its stats are printed
// for updating test assertions.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -out-dir data/mock \
//	  -boundaries data/geojs-25-mun.json \
//	  -dirty
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/couchcryptid/sire-dashboard/internal/adapter/csvsource"
	"github.com/couchcryptid/sire-dashboard/internal/adapter/geo"
	"github.com/couchcryptid/sire-dashboard/internal/config"
	"github.com/couchcryptid/sire-dashboard/internal/domain"
)

const (
	indicatorsFile = "sire_indicador_valor_grid.csv"
	glossaryFile   = "sire_indicador_grid.csv"
)

type options struct {
	outDir        string
	regionsPath   string
	boundaries    string
	years         []string
	seed          uint64
	regionMembers int
	dirty         bool
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	outDir := flag.String("out-dir", "", "directory the CSV fixtures are written to")
	regionsPath := flag.String("regions", "", "regions YAML (defaults to the embedded one)")
	boundaries := flag.String("boundaries", "", "optional GeoJSON used for municipality names")
	years := flag.String("years", "2023,2024", "comma-separated years to generate")
	seed := flag.Uint64("seed", 42, "random seed")
	regionMembers := flag.Int("region-members", 3, "extra municipalities generated per micro-region")
	dirty := flag.Bool("dirty", false, "append malformed rows the cleaning step must drop")
	flag.Parse()

	if *outDir == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out-dir")
	}

	opts := options{
		outDir:        *outDir,
		regionsPath:   *regionsPath,
		boundaries:    *boundaries,
		years:         splitList(*years),
		seed:          *seed,
		regionMembers: *regionMembers,
		dirty:         *dirty,
	}

	dom, err := config.LoadDomain(opts.regionsPath)
	if err != nil {
		return err
	}
	names, err := loadNames(opts.boundaries)
	if err != nil {
		return fmt.Errorf("loading boundaries: %w", err)
	}

	indicators := dom.Operations.Indicators()
	municipalities := pickMunicipalities(dom, opts.regionMembers)
	rows := generateRows(municipalities, indicators, opts.years, names, rand.New(rand.NewPCG(opts.seed, opts.seed^0x5eed)))
	if opts.dirty {
		rows = append(rows, dirtyRows(rows)...)
	}
	log.Printf("%d municipalities, %d indicators, %d years: %d rows",
		len(municipalities), len(indicators), len(opts.years), len(rows))

	indicatorsPath := filepath.Join(opts.outDir, indicatorsFile)
	if err := writeCSV(indicatorsPath, indicatorHeader(), rowsToRecords(rows)); err != nil {
		return fmt.Errorf("writing indicators: %w", err)
	}
	log.Printf("wrote indicators: %s", indicatorsPath)

	glossaryPath := filepath.Join(opts.outDir, glossaryFile)
	if err := writeCSV(glossaryPath, []string{csvsource.ColSigla, csvsource.ColTitulo, csvsource.ColUnidade}, glossaryRecords(indicators)); err != nil {
		return fmt.Errorf("writing glossary: %w", err)
	}
	log.Printf("wrote glossary: %s", glossaryPath)

	return printStats(indicatorsPath)
}

// pickMunicipalities returns the scope municipalities followed by the first
// n members of every region not already included, so every region has data
// to aggregate.
func pickMunicipalities(dom *config.Domain, n int) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(code string) {
		if _, ok := seen[code]; ok {
			return
		}
		seen[code] = struct{}{}
		out = append(out, code)
	}
	for _, code := range dom.Scope.Municipalities {
		add(code)
	}
	for _, r := range dom.Regions {
		codes := r.Codes()
		for _, code := range codes[:min(max(n, 0), len(codes))] {
			add(code)
		}
	}
	return out
}

func loadNames(path string) (map[string]string, error) {
	names := map[string]string{}
	if path == "" {
		return names, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	bs, err := geo.Parse(data)
	if err != nil {
		return nil, err
	}
	for _, b := range bs {
		names[b.Code] = b.Name
	}
	return names, nil
}

// generateRows draws one value per municipality, indicator, year and month.
// Each series starts between 60 and 95 and drifts by at most two points a
// month, staying within [0, 100].
func generateRows(municipalities, indicators, years []string, names map[string]string, rng *rand.Rand) []domain.RawRow {
	months := domain.MonthNames()
	rows := make([]domain.RawRow, 0, len(municipalities)*len(indicators)*len(years)*len(months))
	for _, code := range municipalities {
		name := names[code]
		if name == "" {
			name = "Município " + code
		}
		for _, ind := range indicators {
			v := 60 + rng.Float64()*35
			for _, y := range years {
				for _, m := range months {
					v = min(100, max(0, v+(rng.Float64()*4-2)))
					rows = append(rows, domain.RawRow{
						IBGE:   code,
						Cidade: name,
						Sigla:  ind,
						Ano:    y,
						Mes:    m,
						Valor:  strconv.FormatFloat(v, 'f', 1, 64),
					})
				}
			}
		}
	}
	return rows
}

// dirtyRows derives malformed copies of the first row: an exact duplicate, a
// blank value, a non-numeric value, a missing city, and a year and code
// rendered the way spreadsheet exports do.
func dirtyRows(rows []domain.RawRow) []domain.RawRow {
	if len(rows) == 0 {
		return nil
	}
	base := rows[0]
	blank, text, noCity, formatted := base, base, base, base
	blank.Valor = ""
	blank.Mes = domain.MonthUndefined
	text.Valor = "n/a"
	text.Mes = domain.MonthUndefined
	noCity.Cidade = ""
	noCity.Mes = domain.MonthUndefined
	formatted.IBGE += ".0"
	formatted.Ano = base.Ano[:1] + "." + base.Ano[1:]
	formatted.Mes = domain.MonthUndefined
	return []domain.RawRow{base, blank, text, noCity, formatted}
}

func indicatorHeader() []string {
	return []string{csvsource.ColIBGE, csvsource.ColCidade, csvsource.ColSigla, csvsource.ColAno, csvsource.ColMes, csvsource.ColValor}
}

func rowsToRecords(rows []domain.RawRow) [][]string {
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = []string{r.IBGE, r.Cidade, r.Sigla, r.Ano, r.Mes, r.Valor}
	}
	return out
}

func glossaryRecords(indicators []string) [][]string {
	out := make([][]string, len(indicators))
	for i, code := range indicators {
		out[i] = []string{code, "Indicador " + code + " (dados simulados)", "%"}
	}
	return out
}

func writeCSV(path string, header []string, records [][]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return err
	}
	if err := w.WriteAll(records); err != nil {
		return err
	}
	return f.Close()
}

func printStats(indicatorsPath string) error {
	data, err := os.ReadFile(indicatorsPath)
	if err != nil {
		return err
	}
	raw, err := csvsource.ParseIndicators(data)
	if err != nil {
		return fmt.Errorf("re-reading indicators: %w", err)
	}
	records, report := domain.Normalize(raw)

	fmt.Println("\n=== Stats for updating test assertions ===")
	fmt.Printf("Rows: input=%d output=%d\n", report.Input, report.Output)
	fmt.Printf("Dropped: duplicates=%d incomplete=%d non-numeric=%d\n",
		report.Duplicates, report.Incomplete, report.NonNumeric)

	perIndicator := map[string]int{}
	var undefined int
	for _, r := range records {
		perIndicator[r.IndicatorCode]++
		if r.Month == domain.MonthUndefined {
			undefined++
		}
	}
	codes := make([]string, 0, len(perIndicator))
	for c := range perIndicator {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	fmt.Printf("By indicator:")
	for _, c := range codes {
		fmt.Printf(" %s=%d", c, perIndicator[c])
	}
	fmt.Println()
	fmt.Printf("Annual (%s) rows: %d\n", domain.MonthUndefined, undefined)
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
