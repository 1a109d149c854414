// Package csvsource decodes the indicator and glossary CSV exports.
package csvsource

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/couchcryptid/sire-dashboard/internal/domain"
	"golang.org/x/text/unicode/norm"
)

// Indicator and glossary column headers.
const (
	ColIBGE    = "IBGE"
	ColCidade  = "Cidade"
	ColSigla   = "Sigla"
	ColAno     = "Ano"
	ColMes     = "Mês"
	ColValor   = "Valor"
	ColTitulo  = "Título"
	ColUnidade = "Unidade"
)

var (
	indicatorColumns = []string{ColIBGE, ColCidade, ColSigla, ColAno, ColValor}
	glossaryColumns  = []string{ColSigla, ColTitulo}
)

// ErrMissingColumn reports a header without a required column.
var ErrMissingColumn = errors.New("missing required column")

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ParseIndicators reads indicator rows. The month column is optional; every
// other indicator column is required. Cell text is passed through untouched so
// the domain normalizer sees exactly what the file holds.
func ParseIndicators(data []byte) ([]domain.RawRow, error) {
	header, rows, err := readAll(data)
	if err != nil {
		return nil, fmt.Errorf("indicators: %w", err)
	}
	idx, err := columnIndex(header, indicatorColumns)
	if err != nil {
		return nil, fmt.Errorf("indicators: %w", err)
	}
	mes, hasMes := lookup(header, ColMes)

	out := make([]domain.RawRow, 0, len(rows))
	for _, rec := range rows {
		row := domain.RawRow{
			IBGE:   cell(rec, idx[ColIBGE]),
			Cidade: cell(rec, idx[ColCidade]),
			Sigla:  cell(rec, idx[ColSigla]),
			Ano:    cell(rec, idx[ColAno]),
			Valor:  cell(rec, idx[ColValor]),
		}
		if hasMes {
			row.Mes = cell(rec, mes)
		}
		out = append(out, row)
	}
	return out, nil
}

// ParseGlossary reads glossary entries. Unidade is optional and rows without a
// code are skipped.
func ParseGlossary(data []byte) ([]domain.GlossaryEntry, error) {
	header, rows, err := readAll(data)
	if err != nil {
		return nil, fmt.Errorf("glossary: %w", err)
	}
	idx, err := columnIndex(header, glossaryColumns)
	if err != nil {
		return nil, fmt.Errorf("glossary: %w", err)
	}
	unit, hasUnit := lookup(header, ColUnidade)

	out := make([]domain.GlossaryEntry, 0, len(rows))
	for _, rec := range rows {
		code := strings.TrimSpace(cell(rec, idx[ColSigla]))
		if code == "" {
			continue
		}
		e := domain.GlossaryEntry{
			Code:  code,
			Title: strings.TrimSpace(cell(rec, idx[ColTitulo])),
		}
		if hasUnit {
			e.Unit = strings.TrimSpace(cell(rec, unit))
		}
		out = append(out, e)
	}
	return out, nil
}

func readAll(data []byte) ([]string, [][]string, error) {
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, utf8BOM)))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, errors.New("empty file")
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read header: %w", err)
	}
	for i, h := range header {
		header[i] = canonicalHeader(h)
	}

	rows, err := r.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("read rows: %w", err)
	}
	return header, rows, nil
}

func canonicalHeader(h string) string {
	return norm.NFC.String(strings.TrimSpace(h))
}

func columnIndex(header, required []string) (map[string]int, error) {
	idx := make(map[string]int, len(required))
	for _, col := range required {
		i, ok := lookup(header, col)
		if !ok {
			return nil, fmt.Errorf("%w %q", ErrMissingColumn, col)
		}
		idx[col] = i
	}
	return idx, nil
}

func lookup(header []string, col string) (int, bool) {
	for i, h := range header {
		if h == col {
			return i, true
		}
	}
	return -1, false
}

// cell tolerates short rows; a missing trailing cell reads as blank.
func cell(rec []string, i int) string {
	if i < 0 || i >= len(rec) {
		return ""
	}
	return rec[i]
}
