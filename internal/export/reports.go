package export

import (
	"errors"
	"fmt"

	"asistencia/internal/core"
	"asistencia/internal/report"
)

// Report names accepted by Build, in menu order.
const (
	Roster        = "roster"
	Top           = "top"
	Participation = "participation"
	Summary       = "summary"
)

var Reports = []string{Roster, Top, Participation, Summary}

var ErrUnknownReport = errors.New("unknown report")

// Params are the per-report options layered on top of the filter.
type Params struct {
	TopN     int
	Zero     bool
	Location string
}

// Build computes the named report over records, the filtered view of ds.
// It returns a *report.MissingColumnsError when the sheet lacks a column
// the report needs.
func Build(name string, ds core.Dataset, records []core.Record, p Params) (Table, error) {
	switch name {
	case Summary:
		return report.Summarize(records), nil
	case Roster:
		if err := report.Check(ds, report.SectionRoster); err != nil {
			return nil, err
		}
		return report.BuildRoster(records).FilterLocation(p.Location), nil
	case Top:
		if err := report.Check(ds, report.SectionTop); err != nil {
			return nil, err
		}
		return report.TopN(records, report.ClampTopN(p.TopN)), nil
	case Participation:
		if err := report.Check(ds, report.SectionParticipation); err != nil {
			return nil, err
		}
		return report.BuildParticipation(ds.Catalog, records).View(p.Zero), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownReport, name)
}
