package http

import (
	"io"

	"github.com/couchcryptid/sire-dashboard/internal/render"
)

// SetWorkbookWriter swaps the export writer and returns a func restoring it.
func SetWorkbookWriter(fn func(io.Writer, render.Workbook) error) func() {
	prev := writeWorkbook
	writeWorkbook = fn
	return func() { writeWorkbook = prev }
}
