package report

import (
	"fmt"
	"strings"

	"asistencia/internal/core"
)

// Section names a dashboard view that checks its own columns.
type Section string

const (
	SectionSummary       Section = "summary"
	SectionRoster        Section = "roster"
	SectionTop           Section = "top"
	SectionParticipation Section = "participation"
)

// Columns each section needs. Summary degrades to zero counts instead.
var sectionColumns = map[Section][]string{
	SectionSummary:       nil,
	SectionRoster:        {core.ColID, core.ColName},
	SectionTop:           {core.ColID, core.ColName, core.ColLocCode, core.ColLocName},
	SectionParticipation: {core.ColLocCode, core.ColLocName, core.ColSession, core.ColID, core.ColName},
}

// MissingColumnsError is returned when a section cannot be computed from
// the loaded sheet.
type MissingColumnsError struct {
	Section string
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("%s: missing columns %s", e.Section, strings.Join(e.Columns, ", "))
}

// Require returns a *MissingColumnsError when the dataset lacks any of cols.
func Require(ds core.Dataset, section string, cols ...string) error {
	if missing := ds.Missing(cols...); len(missing) > 0 {
		return &MissingColumnsError{Section: section, Columns: missing}
	}
	return nil
}

// Check verifies the columns of a known section.
func Check(ds core.Dataset, s Section) error {
	return Require(ds, string(s), sectionColumns[s]...)
}
