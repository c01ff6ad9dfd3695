// Package report holds the filter engine and the aggregations behind every
// dashboard view. Everything here is a pure function of the records it is
// given; nothing mutates a loaded dataset.
package report

import (
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"asistencia/internal/core"
)

// Dimension is one of the categorical columns the dashboard filters on.
type Dimension int

const (
	DimYear Dimension = iota
	DimMonth
	DimRegion
	DimProvince
	DimFacilitator
)

// Dimensions lists every filter dimension in sidebar order.
var Dimensions = []Dimension{DimYear, DimMonth, DimRegion, DimProvince, DimFacilitator}

// placeholderOption is the form's "add new value" entry, never a real value.
const placeholderOption = "Agregar al listado"

var dimensionMeta = map[Dimension]struct {
	column, param string
}{
	DimYear:        {core.ColYear, "year"},
	DimMonth:       {core.ColMonth, "month"},
	DimRegion:      {core.ColRegion, "region"},
	DimProvince:    {core.ColProvince, "province"},
	DimFacilitator: {core.ColFacilitator, "facilitator"},
}

// Column returns the sheet header backing the dimension.
func (d Dimension) Column() string { return dimensionMeta[d].column }

// Param returns the query parameter name used by the HTTP layer and the CLI.
func (d Dimension) Param() string { return dimensionMeta[d].param }

func (d Dimension) String() string { return d.Param() }

// Value extracts the dimension value from a record.
func (d Dimension) Value(r core.Record) string {
	switch d {
	case DimYear:
		return r.Year
	case DimMonth:
		return r.Month
	case DimRegion:
		return r.Region
	case DimProvince:
		return r.Province
	case DimFacilitator:
		return r.Facilitator
	}
	return ""
}

// ParseDimension maps a query parameter name back to its dimension.
func ParseDimension(param string) (Dimension, bool) {
	for _, d := range Dimensions {
		if d.Param() == param {
			return d, true
		}
	}
	return 0, false
}

// Filter holds one selection set per dimension. A dimension without
// selected values does not constrain anything.
type Filter struct {
	sel map[Dimension]map[string]struct{}
}

// NewFilter returns a filter with no active dimension.
func NewFilter() Filter {
	return Filter{sel: map[Dimension]map[string]struct{}{}}
}

// Select adds values to the dimension's selection set. Blank values are ignored.
func (f *Filter) Select(d Dimension, values ...string) {
	if f.sel == nil {
		f.sel = map[Dimension]map[string]struct{}{}
	}
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		set, ok := f.sel[d]
		if !ok {
			set = map[string]struct{}{}
			f.sel[d] = set
		}
		set[v] = struct{}{}
	}
}

// Active reports whether the dimension constrains the records.
func (f Filter) Active(d Dimension) bool {
	return len(f.sel[d]) > 0
}

// Selected returns the selected values of a dimension, sorted.
func (f Filter) Selected(d Dimension) []string {
	out := make([]string, 0, len(f.sel[d]))
	for v := range f.sel[d] {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// IsSelected reports whether v is in the dimension's selection set.
func (f Filter) IsSelected(d Dimension, v string) bool {
	_, ok := f.sel[d][v]
	return ok
}

// Match reports whether the record passes every active dimension.
func (f Filter) Match(r core.Record) bool {
	for d, set := range f.sel {
		if len(set) == 0 {
			continue
		}
		if _, ok := set[d.Value(r)]; !ok {
			return false
		}
	}
	return true
}

// For drops selections on dimensions whose column the dataset lacks, so a
// stale query parameter cannot empty the view.
func (f Filter) For(ds core.Dataset) Filter {
	out := NewFilter()
	for d, set := range f.sel {
		if !ds.Has(d.Column()) {
			continue
		}
		for v := range set {
			out.Select(d, v)
		}
	}
	return out
}

// Apply returns the records matching the filter, in their original order.
// The input slice is left untouched.
func Apply(records []core.Record, f Filter) []core.Record {
	out := make([]core.Record, 0, len(records))
	for _, r := range records {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	return out
}

// ApplyDataset filters the dataset records after dropping selections on
// absent columns.
func ApplyDataset(ds core.Dataset, f Filter) []core.Record {
	return Apply(ds.Records, f.For(ds))
}

// Options lists the values offered for a dimension: distinct, non-blank,
// without the form placeholder, sorted for display.
func Options(ds core.Dataset, d Dimension) []string {
	if !ds.Has(d.Column()) {
		return nil
	}
	seen := map[string]struct{}{}
	var out []string
	for _, r := range ds.Records {
		v := strings.TrimSpace(d.Value(r))
		if v == "" || v == placeholderOption {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sortFor(d, out)
	return out
}

// SortText sorts display strings with Spanish collation.
func SortText(values []string) {
	collate.New(language.Spanish).SortStrings(values)
}

func sortNumeric(values []string) {
	sort.SliceStable(values, func(i, j int) bool {
		a, errA := strconv.ParseFloat(values[i], 64)
		b, errB := strconv.ParseFloat(values[j], 64)
		switch {
		case errA == nil && errB == nil:
			return a < b
		case errA == nil:
			return true
		case errB == nil:
			return false
		}
		return values[i] < values[j]
	})
}
