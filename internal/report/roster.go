package report

import (
	"sort"
	"strconv"
	"strings"

	"asistencia/internal/core"
)

// RosterRow is one identity in the per-person listing.
type RosterRow struct {
	Key      string
	Name     string
	Location string // label of the chronologically first location
	Records  int
	Topics   int
}

// Roster is the per-person listing, ordered by identity key.
type Roster []RosterRow

// BuildRoster groups the filtered records by identity. Records without a
// key are left out.
func BuildRoster(records []core.Record) Roster {
	ordered := chronological(records)

	type acc struct {
		row    RosterRow
		topics map[string]struct{}
	}
	byKey := map[string]*acc{}
	for _, r := range ordered {
		if !r.HasKey() {
			continue
		}
		a, ok := byKey[r.Key]
		if !ok {
			a = &acc{
				row:    RosterRow{Key: r.Key, Name: r.CanonicalName},
				topics: map[string]struct{}{},
			}
			byKey[r.Key] = a
		}
		if a.row.Location == "" {
			a.row.Location = locationLabel(r.Location)
		}
		a.row.Records++
		addNonBlank(a.topics, r.Topic)
	}

	out := make(Roster, 0, len(byKey))
	for _, a := range byKey {
		a.row.Topics = len(a.topics)
		out = append(out, a.row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// FilterLocation keeps the rows whose location label contains sub. An
// empty sub keeps everything.
func (r Roster) FilterLocation(sub string) Roster {
	if sub == "" {
		return r
	}
	out := make(Roster, 0, len(r))
	for _, row := range r {
		if strings.Contains(row.Location, sub) {
			out = append(out, row)
		}
	}
	return out
}

// Locations lists the distinct location labels of the roster for the
// location selector.
func (r Roster) Locations() []string {
	seen := map[string]struct{}{}
	var out []string
	for _, row := range r {
		if row.Location == "" {
			continue
		}
		if _, ok := seen[row.Location]; ok {
			continue
		}
		seen[row.Location] = struct{}{}
		out = append(out, row.Location)
	}
	SortText(out)
	return out
}

// Header implements export.Table.
func (r Roster) Header() []string {
	return []string{"Cédula", "Nombre", "Infoplaza", "Participaciones", "TemasUnicos"}
}

// Cells implements export.Table.
func (r Roster) Cells() [][]string {
	out := make([][]string, len(r))
	for i, row := range r {
		out[i] = []string{row.Key, row.Name, row.Location, strconv.Itoa(row.Records), strconv.Itoa(row.Topics)}
	}
	return out
}

// locationLabel is the display label, or "" for a record without location.
func locationLabel(l core.Location) string {
	if l.IsBlank() {
		return ""
	}
	return l.Label()
}

// chronological returns a copy of records sorted by parsed timestamp.
// Records without a usable timestamp go last; ties keep source order.
func chronological(records []core.Record) []core.Record {
	out := append([]core.Record(nil), records...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].At, out[j].At
		switch {
		case a.IsZero() && b.IsZero():
			return false
		case a.IsZero():
			return false
		case b.IsZero():
			return true
		}
		return a.Before(b)
	})
	return out
}
