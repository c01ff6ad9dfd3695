// Package charts renders the dashboard bar charts as SVG with gonum/plot.
package charts

import (
	"errors"
	"fmt"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgsvg"

	"asistencia/internal/core"
	"asistencia/internal/report"
)

// Name identifies a chart served at /charts/{name}.svg.
type Name string

const (
	SessionsByMonth      Name = "sessions-by-month"
	IdentitiesByMonth    Name = "identities-by-month"
	IdentitiesByRegion   Name = "identities-by-region"
	IdentitiesByProvince Name = "identities-by-province"
	Top                  Name = "top"
)

// Names lists every chart in dashboard order.
var Names = []Name{SessionsByMonth, IdentitiesByMonth, IdentitiesByRegion, IdentitiesByProvince, Top}

var ErrUnknownChart = errors.New("unknown chart")

const (
	width  = 16 * vg.Centimeter
	height = 9 * vg.Centimeter
)

// ParseName validates a chart name from a URL.
func ParseName(s string) (Name, error) {
	for _, n := range Names {
		if string(n) == s {
			return n, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownChart, s)
}

// Render draws the named chart over the filtered records. topN only
// matters for the Top chart.
func Render(w io.Writer, name Name, records []core.Record, topN int) error {
	var (
		p   *plot.Plot
		err error
	)
	switch name {
	case SessionsByMonth:
		p, err = grouped("Sesiones por mes", "Sesiones", report.SessionsByMonth(records))
	case IdentitiesByMonth:
		p, err = grouped("Dinamizadores por mes", "Dinamizadores", report.IdentitiesByMonth(records))
	case IdentitiesByRegion:
		p, err = bars("Dinamizadores por regional", report.IdentitiesBy(records, report.DimRegion), false)
	case IdentitiesByProvince:
		p, err = bars("Dinamizadores por provincia", report.IdentitiesBy(records, report.DimProvince), false)
	case Top:
		n := report.ClampTopN(topN)
		p, err = bars(fmt.Sprintf("Top %d dinamizadores", n), report.RankingBars(report.TopN(records, n)), true)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownChart, name)
	}
	if err != nil {
		return fmt.Errorf("build %s chart: %w", name, err)
	}
	return writeSVG(w, p)
}

func grouped(title, ylabel string, g report.GroupedSeries) (*plot.Plot, error) {
	p := newPlot(title)
	p.Y.Label.Text = ylabel
	if g.Empty() {
		return p, nil
	}

	barWidth := vg.Points(40 / float64(len(g.Series)))
	for i, s := range g.Series {
		bc, err := plotter.NewBarChart(plotter.Values(s.Values), barWidth)
		if err != nil {
			return nil, err
		}
		bc.LineStyle.Width = vg.Length(0)
		bc.Color = plotutil.Color(i)
		bc.Offset = barWidth * vg.Length(float64(i)-float64(len(g.Series)-1)/2)
		p.Add(bc)
		p.Legend.Add(s.Name, bc)
	}
	p.Legend.Top = true
	p.NominalX(g.Categories...)
	return p, nil
}

func bars(title string, b report.Bars, horizontal bool) (*plot.Plot, error) {
	p := newPlot(title)
	if b.Empty() {
		return p, nil
	}

	values := plotter.Values(b.Values)
	labels := b.Labels
	if horizontal {
		// Largest bar on top.
		values = reversed(b.Values)
		labels = reversedStrings(b.Labels)
	}
	bc, err := plotter.NewBarChart(values, vg.Points(18))
	if err != nil {
		return nil, err
	}
	bc.LineStyle.Width = vg.Length(0)
	bc.Color = plotutil.Color(0)
	bc.Horizontal = horizontal
	p.Add(bc)
	if horizontal {
		p.NominalY(labels...)
	} else {
		p.NominalX(labels...)
	}
	return p, nil
}

func newPlot(title string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.Title.TextStyle.Font.Size = vg.Points(12)
	p.Add(plotter.NewGrid())
	return p
}

func writeSVG(w io.Writer, p *plot.Plot) error {
	c := vgsvg.New(width, height)
	p.Draw(draw.New(c))
	if _, err := c.WriteTo(w); err != nil {
		return fmt.Errorf("write svg: %w", err)
	}
	return nil
}

func reversed(vs []float64) plotter.Values {
	out := make(plotter.Values, len(vs))
	for i, v := range vs {
		out[len(vs)-1-i] = v
	}
	return out
}

func reversedStrings(vs []string) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[len(vs)-1-i] = v
	}
	return out
}
