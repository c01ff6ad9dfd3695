package export

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"asistencia/internal/core"
	"asistencia/internal/report"
)

func dataset(header []string, rows ...[]string) core.Dataset {
	return core.NewDataset(core.Table{Header: header, Rows: rows}, "test", time.Time{})
}

func TestBuild(t *testing.T) {
	ds := dataset(
		[]string{core.ColID, core.ColName, core.ColSession, core.ColLocCode, core.ColLocName},
		[]string{"8-1-1", "Ana", "S1", "10", "Centro A"},
		[]string{"8-1-1", "Ana", "S2", "10", "Centro A"},
		[]string{"4-2-2", "Beto", "S3", "20", "Centro B"},
	)

	tests := []struct {
		name   string
		report string
		params Params
		want   [][]string
	}{
		{
			name:   "top one",
			report: Top,
			params: Params{TopN: 1},
			want:   [][]string{{"8-1-1", "Ana", "10 - Centro A", "2"}},
		},
		{
			name:   "roster by location",
			report: Roster,
			params: Params{Location: "Centro B"},
			want:   [][]string{{"4-2-2", "Beto", "20 - Centro B", "1", "0"}},
		},
		{
			name:   "participation",
			report: Participation,
			want: [][]string{
				{"10 - Centro A", "2", "2", "1"},
				{"20 - Centro B", "1", "1", "1"},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Build(tt.report, ds, ds.Records, tt.params)
			if err != nil {
				t.Fatalf("Build: %v", err)
			}
			if diff := cmp.Diff(tt.want, got.Cells()); diff != "" {
				t.Errorf("cells mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestBuildErrors(t *testing.T) {
	ds := dataset([]string{core.ColID}, []string{"8-1-1"})

	if _, err := Build("pie", ds, ds.Records, Params{}); !errors.Is(err, ErrUnknownReport) {
		t.Errorf("unknown report: err = %v", err)
	}

	for _, name := range []string{Roster, Top, Participation} {
		_, err := Build(name, ds, ds.Records, Params{})
		var mc *report.MissingColumnsError
		if !errors.As(err, &mc) {
			t.Errorf("%s: err = %v, want MissingColumnsError", name, err)
		}
	}

	if _, err := Build(Summary, ds, ds.Records, Params{}); err != nil {
		t.Errorf("summary: %v", err)
	}
}
