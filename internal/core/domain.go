package core

import (
	"errors"
	"strings"
	"time"
)

// Sheet headers as written by the attendance form.
const (
	ColID          = "Cédula"
	ColName        = "Nombre y apellido"
	ColSession     = "CountSesión"
	ColTopic       = "Tema"
	ColTimestamp   = "Marca temporal"
	ColYear        = "Año"
	ColMonth       = "Mes"
	ColRegion      = "Regional"
	ColProvince    = "Provincia"
	ColFacilitator = "Facilitador"
	ColLocCode     = "#"
	ColLocName     = "INFOPLAZAS"
)

type (
	// Table is the raw two-dimensional string grid handed over by a source.
	Table struct {
		Header []string
		Rows   [][]string
	}

	Location struct {
		Code string
		Name string
	}

	Record struct {
		Row         int // position in the source, 0-based, header excluded
		RawID       string
		Name        string
		Session     string
		Topic       string
		Timestamp   string
		Year        string
		Month       string
		Region      string
		Province    string
		Facilitator string
		Location    Location

		// Derived on load.
		Key           string // normalized identifier, empty when unmatched
		CanonicalName string
		At            time.Time // zero when Timestamp does not parse
	}
)

var (
	ErrNoSource   = errors.New("no data source configured")
	ErrEmptyTable = errors.New("table has no header row")
)

// Label renders the location the way the dashboard shows it: "<code> - <name>".
func (l Location) Label() string {
	return l.Code + " - " + l.Name
}

// IsBlank reports whether neither code nor name is set.
func (l Location) IsBlank() bool {
	return strings.TrimSpace(l.Code) == "" && strings.TrimSpace(l.Name) == ""
}

// HasKey reports whether the record matched an identity.
func (r Record) HasKey() bool {
	return r.Key != ""
}

// Width returns the number of columns, taking the widest row into account.
func (t Table) Width() int {
	w := len(t.Header)
	for _, row := range t.Rows {
		if len(row) > w {
			w = len(row)
		}
	}
	return w
}
