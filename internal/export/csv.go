// Package export serializes report tables to CSV.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// Table is anything the dashboard can download: a header row plus data rows.
type Table interface {
	Header() []string
	Cells() [][]string
}

// WriteCSV writes t as UTF-8 CSV with a header row.
func WriteCSV(w io.Writer, t Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Header()); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := cw.WriteAll(t.Cells()); err != nil {
		return fmt.Errorf("write rows: %w", err)
	}
	return nil
}

// Filename returns the download name for a report, e.g. "dinamizadores.csv".
func Filename(report string) string {
	if name, ok := filenames[report]; ok {
		return name
	}
	return strings.ToLower(report) + ".csv"
}

var filenames = map[string]string{
	"roster":        "dinamizadores.csv",
	"top":           "top_dinamizadores.csv",
	"participation": "resumen_participacion_infoplazas.csv",
	"summary":       "indicadores.csv",
}
