package report

import (
	"asistencia/internal/core"
)

// Series is one named run of values aligned with GroupedSeries.Categories.
type Series struct {
	Name   string
	Values []float64
}

// GroupedSeries feeds a grouped bar chart: one group per category, one bar
// per series.
type GroupedSeries struct {
	Categories []string
	Series     []Series
}

// Empty reports whether there is nothing to plot.
func (g GroupedSeries) Empty() bool {
	return len(g.Categories) == 0 || len(g.Series) == 0
}

// Bars feeds a simple bar chart.
type Bars struct {
	Labels []string
	Values []float64
}

// Empty reports whether there is nothing to plot.
func (b Bars) Empty() bool {
	return len(b.Labels) == 0
}

// SessionsByMonth counts distinct session markers per month, one series per
// year. Months follow calendar order, years ascend.
func SessionsByMonth(records []core.Record) GroupedSeries {
	return byMonthAndYear(records, func(r core.Record) string { return r.Session })
}

// IdentitiesByMonth counts distinct identities per month, one series per year.
func IdentitiesByMonth(records []core.Record) GroupedSeries {
	return byMonthAndYear(records, func(r core.Record) string { return r.Key })
}

// IdentitiesBy counts distinct identities per dimension value, in the same
// order as the filter options.
func IdentitiesBy(records []core.Record, d Dimension) Bars {
	sets := map[string]map[string]struct{}{}
	var labels []string
	for _, r := range records {
		v := d.Value(r)
		if v == "" || v == placeholderOption || !r.HasKey() {
			continue
		}
		set, ok := sets[v]
		if !ok {
			set = map[string]struct{}{}
			sets[v] = set
			labels = append(labels, v)
		}
		set[r.Key] = struct{}{}
	}
	sortFor(d, labels)
	b := Bars{Labels: labels, Values: make([]float64, len(labels))}
	for i, l := range labels {
		b.Values[i] = float64(len(sets[l]))
	}
	return b
}

// RankingBars turns a top-N table into chart input, largest first.
func RankingBars(r Ranking) Bars {
	b := Bars{Labels: make([]string, len(r)), Values: make([]float64, len(r))}
	for i, row := range r {
		b.Labels[i] = row.Name
		if b.Labels[i] == "" {
			b.Labels[i] = row.Key
		}
		b.Values[i] = float64(row.Count)
	}
	return b
}

func byMonthAndYear(records []core.Record, value func(core.Record) string) GroupedSeries {
	type cell struct{ month, year string }
	sets := map[cell]map[string]struct{}{}
	seenMonth := map[string]struct{}{}
	seenYear := map[string]struct{}{}
	var months, years []string
	for _, r := range records {
		v := value(r)
		if v == "" || r.Month == "" || r.Year == "" {
			continue
		}
		if _, ok := seenMonth[r.Month]; !ok {
			seenMonth[r.Month] = struct{}{}
			months = append(months, r.Month)
		}
		if _, ok := seenYear[r.Year]; !ok {
			seenYear[r.Year] = struct{}{}
			years = append(years, r.Year)
		}
		c := cell{r.Month, r.Year}
		set, ok := sets[c]
		if !ok {
			set = map[string]struct{}{}
			sets[c] = set
		}
		set[v] = struct{}{}
	}
	SortMonths(months)
	sortNumeric(years)

	g := GroupedSeries{Categories: months}
	for _, y := range years {
		s := Series{Name: y, Values: make([]float64, len(months))}
		for i, m := range months {
			s.Values[i] = float64(len(sets[cell{m, y}]))
		}
		g.Series = append(g.Series, s)
	}
	return g
}

func sortFor(d Dimension, values []string) {
	switch d {
	case DimYear:
		sortNumeric(values)
	case DimMonth:
		SortMonths(values)
	default:
		SortText(values)
	}
}
