package render

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/couchcryptid/sire-dashboard/internal/domain"
)

// Column is one spreadsheet column of the detailed table.
type Column struct {
	Header string
	Width  float64
	Value  func(domain.DisplayRecord) any
}

// MunicipalityColumns is the detailed table layout for the municipality view.
var MunicipalityColumns = []Column{
	{Header: "Sigla", Width: 10, Value: func(r domain.DisplayRecord) any { return r.IndicatorCode }},
	{Header: "Mês", Width: 12, Value: func(r domain.DisplayRecord) any { return r.Month }},
	{Header: "Ano", Width: 8, Value: func(r domain.DisplayRecord) any { return r.Year }},
	{Header: "IBGE", Width: 10, Value: func(r domain.DisplayRecord) any { return r.Entity }},
	{Header: "Cidade", Width: 28, Value: func(r domain.DisplayRecord) any { return r.EntityName }},
	{Header: "Valor", Width: 10, Value: func(r domain.DisplayRecord) any { return r.Value }},
}

// RegionColumns is the detailed table layout for the region view.
var RegionColumns = []Column{
	{Header: "Microrregião", Width: 24, Value: func(r domain.DisplayRecord) any { return r.Entity }},
	{Header: "Sigla", Width: 10, Value: func(r domain.DisplayRecord) any { return r.IndicatorCode }},
	{Header: "Período", Width: 18, Value: func(r domain.DisplayRecord) any { return r.PeriodLabel }},
	{Header: "Valor", Width: 10, Value: func(r domain.DisplayRecord) any { return r.Value }},
}

// Sheet names of an exported workbook.
const (
	DataSheet     = "Dados"
	GlossarySheet = "Glossário"
)

// Workbook is the content of one XLSX export.
type Workbook struct {
	Columns  []Column
	Rows     []domain.DisplayRecord
	Glossary []domain.GlossaryEntry
}

// WriteXLSX writes wb as a spreadsheet with the detailed table on the first
// sheet and, when present, the indicator glossary on a second one.
func WriteXLSX(w io.Writer, wb Workbook) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", DataSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := writeSheet(f, DataSheet, wb.Columns, len(wb.Rows), func(row, col int) any {
		return wb.Columns[col].Value(wb.Rows[row])
	}); err != nil {
		return err
	}

	if len(wb.Glossary) > 0 {
		if _, err := f.NewSheet(GlossarySheet); err != nil {
			return fmt.Errorf("add sheet %s: %w", GlossarySheet, err)
		}
		cols := []Column{{Header: "Sigla", Width: 10}, {Header: "Título", Width: 60}, {Header: "Unidade", Width: 14}}
		if err := writeSheet(f, GlossarySheet, cols, len(wb.Glossary), func(row, col int) any {
			e := wb.Glossary[row]
			return [...]string{e.Code, e.Title, e.Unit}[col]
		}); err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, cols []Column, n int, cell func(row, col int) any) error {
	for c, col := range cols {
		name, err := excelize.CoordinatesToCellName(c+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, name, col.Header); err != nil {
			return fmt.Errorf("%s header: %w", sheet, err)
		}
		letter, err := excelize.ColumnNumberToName(c + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(sheet, letter, letter, col.Width); err != nil {
			return fmt.Errorf("%s width: %w", sheet, err)
		}
	}
	for r := 0; r < n; r++ {
		for c := range cols {
			name, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, name, cell(r, c)); err != nil {
				return fmt.Errorf("%s row %d: %w", sheet, r+1, err)
			}
		}
	}
	return nil
}
