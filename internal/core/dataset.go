package core

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Dataset is one loaded snapshot of the attendance sheet. It is built once
// and treated as read-only afterwards.
type Dataset struct {
	Records  []Record
	Names    map[string]string // normalized key -> canonical display name
	Catalog  []Location        // distinct locations of the unfiltered sheet, first-seen order
	Source   string
	LoadedAt time.Time
	// Notice is set when the source could not be read and the dataset is
	// an empty stand-in.
	Notice string

	columns map[string]bool
}

// NewDataset converts a raw table into records, resolving identities and
// the location catalog. Columns that are absent leave the matching record
// fields blank.
func NewDataset(t Table, source string, loadedAt time.Time) Dataset {
	ds := Dataset{
		Names:    map[string]string{},
		Source:   source,
		LoadedAt: loadedAt,
		columns:  map[string]bool{},
	}
	idx := map[string]int{}
	for i, h := range t.Header {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		if _, dup := idx[h]; dup {
			continue
		}
		idx[h] = i
		ds.columns[h] = true
	}
	get := func(row []string, col string) string {
		i, ok := idx[col]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	ds.Records = make([]Record, 0, len(t.Rows))
	for _, row := range t.Rows {
		if isBlankRow(row) {
			continue
		}
		ts := get(row, ColTimestamp)
		at, _ := ParseTimestamp(ts)
		ds.Records = append(ds.Records, Record{
			Row:         len(ds.Records),
			RawID:       get(row, ColID),
			Name:        get(row, ColName),
			Session:     get(row, ColSession),
			Topic:       get(row, ColTopic),
			Timestamp:   ts,
			Year:        coerceYear(get(row, ColYear)),
			Month:       get(row, ColMonth),
			Region:      get(row, ColRegion),
			Province:    get(row, ColProvince),
			Facilitator: get(row, ColFacilitator),
			Location:    Location{Code: get(row, ColLocCode), Name: get(row, ColLocName)},
			At:          at,
		})
	}
	ds.Names = ResolveNames(ds.Records)
	if ds.Has(ColLocCode) && ds.Has(ColLocName) {
		ds.Catalog = BuildCatalog(ds.Records)
	}
	return ds
}

// EmptyDataset is the degraded stand-in used when a source fails.
func EmptyDataset(source, notice string, at time.Time) Dataset {
	return Dataset{
		Names:    map[string]string{},
		Source:   source,
		LoadedAt: at,
		Notice:   notice,
		columns:  map[string]bool{},
	}
}

// Has reports whether the sheet carried the given column.
func (d Dataset) Has(col string) bool {
	return d.columns[col]
}

// Missing returns the subset of cols absent from the sheet, in argument order.
func (d Dataset) Missing(cols ...string) []string {
	var out []string
	for _, c := range cols {
		if !d.columns[c] {
			out = append(out, c)
		}
	}
	return out
}

// Columns lists the present columns.
func (d Dataset) Columns() []string {
	out := make([]string, 0, len(d.columns))
	for c := range d.columns {
		out = append(out, c)
	}
	return out
}

// Degraded reports whether the dataset stands in for a failed load.
func (d Dataset) Degraded() bool {
	return d.Notice != ""
}

// BuildCatalog returns the distinct non-blank locations in first-seen order.
func BuildCatalog(records []Record) []Location {
	seen := map[Location]struct{}{}
	var out []Location
	for _, r := range records {
		if r.Location.IsBlank() {
			continue
		}
		if _, ok := seen[r.Location]; ok {
			continue
		}
		seen[r.Location] = struct{}{}
		out = append(out, r.Location)
	}
	return out
}

// coerceYear keeps numeric years in integer form and blanks anything else.
func coerceYear(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return ""
	}
	if f == math.Trunc(f) {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
