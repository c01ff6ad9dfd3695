package report

import (
	"sort"
	"strconv"

	"asistencia/internal/core"
)

// LocationRow is the participation of one catalog location.
type LocationRow struct {
	Location   core.Location
	Label      string
	Records    int
	Sessions   int
	Identities int
}

// LocationRows is an exportable view of the participation table.
type LocationRows []LocationRow

// Contributor is one identity's share of a location's activity.
type Contributor struct {
	Key      string
	Name     string
	Records  int
	Sessions int
}

// DrillStatus tells what a drill-down found.
type DrillStatus int

const (
	// DrillOK means contributors are listed.
	DrillOK DrillStatus = iota
	// DrillNoActivity means the location has no filtered records.
	DrillNoActivity
	// DrillNoDetail means activity was counted but no identity could be
	// attributed to it.
	DrillNoDetail
)

// DrillDown is the per-location detail view.
type DrillDown struct {
	Row          LocationRow
	Known        bool // false when the label is not in the catalog
	Status       DrillStatus
	Contributors []Contributor
}

// Participation joins the full location catalog with the filtered
// activity. Every catalog location has exactly one row.
type Participation struct {
	rows   []LocationRow
	index  map[string]int
	detail map[string][]Contributor
}

// BuildParticipation aggregates the filtered records per location and
// zero-fills catalog locations the records never mention. Records at
// locations outside the catalog are ignored.
func BuildParticipation(catalog []core.Location, records []core.Record) Participation {
	p := Participation{
		index:  map[string]int{},
		detail: map[string][]Contributor{},
	}
	for _, loc := range catalog {
		label := loc.Label()
		if _, dup := p.index[label]; dup {
			continue
		}
		p.index[label] = len(p.rows)
		p.rows = append(p.rows, LocationRow{Location: loc, Label: label})
	}

	type contribAcc struct {
		c        Contributor
		sessions map[string]struct{}
	}
	sessions := make([]map[string]struct{}, len(p.rows))
	identities := make([]map[string]struct{}, len(p.rows))
	contribs := map[string]map[string]*contribAcc{}
	var contribOrder = map[string][]string{}

	for _, r := range records {
		if r.Location.IsBlank() {
			continue
		}
		label := r.Location.Label()
		i, ok := p.index[label]
		if !ok {
			continue
		}
		if sessions[i] == nil {
			sessions[i] = map[string]struct{}{}
			identities[i] = map[string]struct{}{}
		}
		p.rows[i].Records++
		addNonBlank(sessions[i], r.Session)
		if !r.HasKey() {
			continue
		}
		identities[i][r.Key] = struct{}{}

		byKey, ok := contribs[label]
		if !ok {
			byKey = map[string]*contribAcc{}
			contribs[label] = byKey
		}
		a, ok := byKey[r.Key]
		if !ok {
			a = &contribAcc{
				c:        Contributor{Key: r.Key, Name: r.CanonicalName},
				sessions: map[string]struct{}{},
			}
			byKey[r.Key] = a
			contribOrder[label] = append(contribOrder[label], r.Key)
		}
		a.c.Records++
		addNonBlank(a.sessions, r.Session)
	}

	for i := range p.rows {
		p.rows[i].Sessions = len(sessions[i])
		p.rows[i].Identities = len(identities[i])
	}
	for label, keys := range contribOrder {
		list := make([]Contributor, 0, len(keys))
		for _, k := range keys {
			a := contribs[label][k]
			a.c.Sessions = len(a.sessions)
			list = append(list, a.c)
		}
		sort.SliceStable(list, func(i, j int) bool {
			if list[i].Records != list[j].Records {
				return list[i].Records > list[j].Records
			}
			return list[i].Key < list[j].Key
		})
		p.detail[label] = list
	}
	return p
}

// Rows returns one row per catalog location, in catalog order.
func (p Participation) Rows() LocationRows {
	return append(LocationRows(nil), p.rows...)
}

// All returns every location sorted by record count, largest first; ties
// keep catalog order.
func (p Participation) All() LocationRows {
	out := p.Rows()
	sort.SliceStable(out, func(i, j int) bool { return out[i].Records > out[j].Records })
	return out
}

// ZeroOnly returns the locations without filtered activity, in catalog order.
func (p Participation) ZeroOnly() LocationRows {
	var out LocationRows
	for _, r := range p.rows {
		if r.Records == 0 {
			out = append(out, r)
		}
	}
	return out
}

// View returns ZeroOnly when zero is set, All otherwise.
func (p Participation) View(zero bool) LocationRows {
	if zero {
		return p.ZeroOnly()
	}
	return p.All()
}

// Drill returns the contributors of a location. It never fails: unknown
// or inactive locations come back with an explicit status.
func (p Participation) Drill(label string) DrillDown {
	i, ok := p.index[label]
	if !ok {
		return DrillDown{Row: LocationRow{Label: label}, Status: DrillNoActivity}
	}
	d := DrillDown{Row: p.rows[i], Known: true}
	if d.Row.Records == 0 || d.Row.Identities == 0 {
		if d.Row.Records == 0 {
			d.Status = DrillNoActivity
		} else {
			d.Status = DrillNoDetail
		}
		return d
	}
	list, ok := p.detail[label]
	if !ok || len(list) == 0 {
		d.Status = DrillNoDetail
		return d
	}
	d.Status = DrillOK
	d.Contributors = append([]Contributor(nil), list...)
	return d
}

// Header implements export.Table.
func (r LocationRows) Header() []string {
	return []string{"Infoplaza", "TotalSesiones", "SesionesUnicas", "DinamizadoresUnicos"}
}

// Cells implements export.Table.
func (r LocationRows) Cells() [][]string {
	out := make([][]string, len(r))
	for i, row := range r {
		out[i] = []string{row.Label, strconv.Itoa(row.Records), strconv.Itoa(row.Sessions), strconv.Itoa(row.Identities)}
	}
	return out
}

// Contributors is an exportable drill-down listing.
type Contributors []Contributor

// Header implements export.Table.
func (c Contributors) Header() []string {
	return []string{"Cédula", "Nombre del Dinamizador", "TotalParticipacion", "ParticipacionUnica"}
}

// Cells implements export.Table.
func (c Contributors) Cells() [][]string {
	out := make([][]string, len(c))
	for i, row := range c {
		out[i] = []string{row.Key, row.Name, strconv.Itoa(row.Records), strconv.Itoa(row.Sessions)}
	}
	return out
}
