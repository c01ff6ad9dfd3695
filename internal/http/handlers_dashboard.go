package http

import (
	"net/http"
	"strings"

	"asistencia/internal/charts"
	"asistencia/internal/report"
)

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	v := s.view(r)
	topN := ParseTopN(r.URL.Query())

	data := dashboardPage{
		Notice:   v.ds.Notice,
		Source:   v.ds.Source,
		LoadedAt: formatLoadedAt(v.ds.LoadedAt),
		Records:  len(v.records),
		Total:    len(v.ds.Records),
		Filters:  filterGroups(v.ds, v.filter),
		Active:   anyActive(v.filter),
		TopN:     topN,

		KPIURL:           withQuery("/ui/kpi", v.filter),
		RosterURL:        withQuery("/ui/roster", v.filter),
		TopURL:           withQuery("/ui/top", v.filter, paramTop, itoa(topN)),
		ParticipationURL: withQuery("/ui/participation", v.filter),
	}
	s.render(w, r, "dashboard.html", data)
}

func (s *Server) handleKPI(w http.ResponseWriter, r *http.Request) {
	v := s.view(r)
	data := kpiPartial{
		Summary:   report.Summarize(v.records),
		ExportURL: withQuery("/export/summary.csv", v.filter),
	}
	for _, name := range charts.Names {
		title, ok := chartTitles[name]
		if !ok {
			continue
		}
		data.Charts = append(data.Charts, chartLink{
			Title: title,
			URL:   withQuery("/charts/"+string(name)+".svg", v.filter),
		})
	}
	s.render(w, r, "kpi.html", data)
}

func (s *Server) handleRoster(w http.ResponseWriter, r *http.Request) {
	v := s.view(r)
	location := ParseLocation(r.URL.Query())
	data := rosterPartial{
		Location:  location,
		Action:    "/ui/roster",
		Filter:    hiddenFilter(v.filter),
		ExportURL: withQuery("/export/roster.csv", v.filter, paramLocation, location),
	}
	if err := report.Check(v.ds, report.SectionRoster); err != nil {
		data.Err = missing(err)
		s.render(w, r, "roster.html", data)
		return
	}

	roster := report.BuildRoster(v.records)
	for _, l := range roster.Locations() {
		data.Locations = append(data.Locations, option{Value: l, Selected: l == location})
	}
	data.Rows = roster.FilterLocation(location)
	s.render(w, r, "roster.html", data)
}

func (s *Server) handleTop(w http.ResponseWriter, r *http.Request) {
	v := s.view(r)
	n := ParseTopN(r.URL.Query())
	data := topPartial{
		N:         n,
		Max:       report.MaxTopN,
		Filter:    hiddenFilter(v.filter),
		ChartURL:  withQuery("/charts/"+string(charts.Top)+".svg", v.filter, paramTop, itoa(n)),
		ExportURL: withQuery("/export/top.csv", v.filter, paramTop, itoa(n)),
	}
	if err := report.Check(v.ds, report.SectionTop); err != nil {
		data.Err = missing(err)
	} else {
		data.Rows = report.TopN(v.records, n)
	}
	s.render(w, r, "top.html", data)
}

func (s *Server) handleParticipation(w http.ResponseWriter, r *http.Request) {
	v := s.view(r)
	zero := ParseBool(r.URL.Query(), paramZero)
	current, toggle := "", "1"
	if zero {
		current, toggle = "1", ""
	}
	data := participationPartial{
		Zero:      zero,
		Total:     len(v.ds.Catalog),
		ToggleURL: withQuery("/ui/participation", v.filter, paramZero, toggle),
		ExportURL: withQuery("/export/participation.csv", v.filter, paramZero, current),
	}
	if err := report.Check(v.ds, report.SectionParticipation); err != nil {
		data.Err = missing(err)
		s.render(w, r, "participation.html", data)
		return
	}

	p := report.BuildParticipation(v.ds.Catalog, v.records)
	for _, row := range p.View(zero) {
		data.Rows = append(data.Rows, participationRow{
			LocationRow: row,
			DetailURL:   withQuery("/ui/participation/detail", v.filter, paramLocation, row.Label),
		})
	}
	s.render(w, r, "participation.html", data)
}

func (s *Server) handleParticipationDetail(w http.ResponseWriter, r *http.Request) {
	label := ParseLocation(r.URL.Query())
	if strings.TrimSpace(label) == "" {
		BadRequestError("Seleccione una infoplaza").Write(w)
		return
	}
	v := s.view(r)
	d := report.BuildParticipation(v.ds.Catalog, v.records).Drill(label)

	data := detailPartial{
		Label:        label,
		Known:        d.Known,
		Row:          d.Row,
		Status:       drillMessages[d.Status],
		Contributors: report.Contributors(d.Contributors),
	}
	s.render(w, r, "detail.html", data)
}
