package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"asistencia/internal/charts"
	"asistencia/internal/core"
	"asistencia/internal/report"
)

// requestView is the filtered state every handler starts from.
type requestView struct {
	ds      core.Dataset
	filter  report.Filter
	records []core.Record
}

func (s *Server) view(r *http.Request) requestView {
	ds := s.snap.Get(r.Context())
	f := ParseFilter(r.URL.Query()).For(ds)
	return requestView{ds: ds, filter: f, records: report.Apply(ds.Records, f)}
}

type option struct {
	Value    string
	Selected bool
}

type filterGroup struct {
	Param   string
	Label   string
	Options []option
}

type chartLink struct {
	Title string
	URL   string
}

type dashboardPage struct {
	Notice   string
	Source   string
	LoadedAt string
	Records  int
	Total    int
	Filters  []filterGroup
	Active   bool
	TopN     int

	KPIURL           string
	RosterURL        string
	TopURL           string
	ParticipationURL string
}

type kpiPartial struct {
	Summary   report.Summary
	Charts    []chartLink
	ExportURL string
}

type sectionError struct {
	Message string
}

type rosterPartial struct {
	Err       *sectionError
	Rows      report.Roster
	Locations []option
	Location  string
	Action    string
	Filter    []hiddenParam
	ExportURL string
}

type hiddenParam struct {
	Name, Value string
}

type topPartial struct {
	Err       *sectionError
	N         int
	Max       int
	Rows      report.Ranking
	ChartURL  string
	ExportURL string
	Filter    []hiddenParam
}

type participationRow struct {
	report.LocationRow
	DetailURL string
}

type participationPartial struct {
	Err       *sectionError
	Zero      bool
	Rows      []participationRow
	Total     int
	ToggleURL string
	ExportURL string
}

type detailPartial struct {
	Label        string
	Known        bool
	Status       string
	Row          report.LocationRow
	Contributors report.Contributors
}

var chartTitles = map[charts.Name]string{
	charts.SessionsByMonth:      "Sesiones por mes",
	charts.IdentitiesByMonth:    "Dinamizadores por mes",
	charts.IdentitiesByRegion:   "Dinamizadores por regional",
	charts.IdentitiesByProvince: "Dinamizadores por provincia",
}

func filterGroups(ds core.Dataset, f report.Filter) []filterGroup {
	var out []filterGroup
	for _, d := range report.Dimensions {
		values := report.Options(ds, d)
		if len(values) == 0 {
			continue
		}
		g := filterGroup{Param: d.Param(), Label: d.Column()}
		for _, v := range values {
			g.Options = append(g.Options, option{Value: v, Selected: f.IsSelected(d, v)})
		}
		out = append(out, g)
	}
	return out
}

func hiddenFilter(f report.Filter) []hiddenParam {
	var out []hiddenParam
	for _, d := range report.Dimensions {
		for _, v := range f.Selected(d) {
			out = append(out, hiddenParam{Name: d.Param(), Value: v})
		}
	}
	return out
}

func anyActive(f report.Filter) bool {
	for _, d := range report.Dimensions {
		if f.Active(d) {
			return true
		}
	}
	return false
}

// missing converts a missing-column error into the section warning.
func missing(err error) *sectionError {
	if err == nil {
		return nil
	}
	var mc *report.MissingColumnsError
	if errors.As(err, &mc) {
		return &sectionError{Message: "Faltan columnas en la hoja: " + strings.Join(mc.Columns, ", ")}
	}
	return &sectionError{Message: err.Error()}
}

var drillMessages = map[report.DrillStatus]string{
	report.DrillNoActivity: "Sin participación registrada con los filtros actuales.",
	report.DrillNoDetail:   "Hay participación registrada pero sin cédulas identificables.",
}

func formatLoadedAt(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("02/01/2006 15:04")
}
