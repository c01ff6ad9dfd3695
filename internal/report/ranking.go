package report

import (
	"sort"
	"strconv"

	"asistencia/internal/core"
)

const (
	DefaultTopN = 5
	MaxTopN     = 20
)

// RankRow counts the records of one identity at one location.
type RankRow struct {
	Key      string
	Name     string
	Location string
	Count    int
}

// Ranking is the top-N table.
type Ranking []RankRow

// ClampTopN bounds n to [1, MaxTopN]; non-positive values fall back to
// DefaultTopN.
func ClampTopN(n int) int {
	switch {
	case n <= 0:
		return DefaultTopN
	case n > MaxTopN:
		return MaxTopN
	}
	return n
}

// TopN groups records by (identity, location), counts them and keeps the n
// largest groups. Ties keep the order in which groups first appear.
func TopN(records []core.Record, n int) Ranking {
	type groupKey struct {
		key      string
		location string
	}
	idx := map[groupKey]int{}
	var rows Ranking
	for _, r := range records {
		if !r.HasKey() {
			continue
		}
		gk := groupKey{key: r.Key, location: locationLabel(r.Location)}
		i, ok := idx[gk]
		if !ok {
			i = len(rows)
			idx[gk] = i
			rows = append(rows, RankRow{Key: r.Key, Name: r.CanonicalName, Location: gk.location})
		}
		rows[i].Count++
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Count > rows[j].Count })
	if n < 0 {
		n = 0
	}
	if len(rows) > n {
		rows = rows[:n]
	}
	return rows
}

// Header implements export.Table.
func (r Ranking) Header() []string {
	return []string{"Cédula", "Nombre", "Infoplaza", "Participaciones"}
}

// Cells implements export.Table.
func (r Ranking) Cells() [][]string {
	out := make([][]string, len(r))
	for i, row := range r {
		out[i] = []string{row.Key, row.Name, row.Location, strconv.Itoa(row.Count)}
	}
	return out
}
