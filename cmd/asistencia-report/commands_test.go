package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"asistencia/internal/core"
)

var fixture = core.Table{
	Header: []string{
		core.ColID, core.ColName, core.ColSession, core.ColTopic,
		core.ColYear, core.ColMonth, core.ColRegion, core.ColLocCode, core.ColLocName,
	},
	Rows: [][]string{
		{"8-123-456", "Ana Gómez", "S1", "Excel", "2024", "Enero", "Metro", "10", "Centro A"},
		{"8 123 456", "Ana G.", "S2", "Word", "2024", "Febrero", "Metro", "10", "Centro A"},
		{"4-55-66", "Beto Ruiz", "S3", "Excel", "2025", "Enero", "Oeste", "20", "Centro B"},
	},
}

func fixtureLoader(_ context.Context, _ *options) (core.Dataset, error) {
	return core.NewDataset(fixture, "memory:test", time.Time{}), nil
}

func run(t *testing.T, load loader, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd(load)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestKPI(t *testing.T) {
	out, err := run(t, fixtureLoader, "kpi", "--year", "2024")
	if err != nil {
		t.Fatalf("kpi: %v", err)
	}
	for _, want := range []string{"memory:test", "2 de 3", "Sesiones", "Dinamizadores"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestExportStdout(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want []string
	}{
		{
			name: "top one",
			args: []string{"export", "top", "--n", "1"},
			want: []string{"Cédula,Nombre,Infoplaza,Participaciones", "8-123-456,Ana Gómez,10 - Centro A,2"},
		},
		{
			name: "participation zero with filter",
			args: []string{"export", "participation", "--zero", "--year", "2025"},
			want: []string{"Infoplaza,TotalSesiones,SesionesUnicas,DinamizadoresUnicos", "10 - Centro A,0,0,0"},
		},
		{
			name: "roster by location",
			args: []string{"export", "roster", "--location", "Centro B"},
			want: []string{"Cédula,Nombre,Infoplaza,Participaciones,TemasUnicos", "4-55-66,Beto Ruiz,20 - Centro B,1,1"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := run(t, fixtureLoader, tt.args...)
			if err != nil {
				t.Fatalf("export: %v", err)
			}
			got := strings.Split(strings.TrimSpace(out), "\n")
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("output mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestExportToDirectory(t *testing.T) {
	dir := t.TempDir()
	out, err := run(t, fixtureLoader, "export", "participation", "--out", dir)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	path := filepath.Join(dir, "resumen_participacion_infoplazas.csv")
	if strings.TrimSpace(out) != path {
		t.Errorf("printed %q, want %q", out, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if !strings.Contains(string(data), "20 - Centro B") {
		t.Errorf("file content:\n%s", data)
	}
}

func TestExportErrors(t *testing.T) {
	if _, err := run(t, fixtureLoader, "export", "pie"); err == nil {
		t.Error("unknown report accepted")
	}
	if _, err := run(t, fixtureLoader, "export"); err == nil {
		t.Error("missing report accepted")
	}

	boom := errors.New("sheet unavailable")
	failing := func(context.Context, *options) (core.Dataset, error) { return core.Dataset{}, boom }
	if _, err := run(t, failing, "export", "roster"); !errors.Is(err, boom) {
		t.Errorf("err = %v, want %v", err, boom)
	}
}

func TestOptions(t *testing.T) {
	out, err := run(t, fixtureLoader, "options", "month")
	if err != nil {
		t.Fatalf("options: %v", err)
	}
	if diff := cmp.Diff([]string{"Enero", "Febrero"}, strings.Split(strings.TrimSpace(out), "\n")); diff != "" {
		t.Errorf("months mismatch (-want +got):\n%s", diff)
	}

	if _, err := run(t, fixtureLoader, "options", "colour"); err == nil {
		t.Error("unknown dimension accepted")
	}
}

func TestLoaderSeesFlags(t *testing.T) {
	var got options
	spy := func(_ context.Context, o *options) (core.Dataset, error) {
		got = *o
		return core.NewDataset(fixture, "spy", time.Time{}), nil
	}
	if _, err := run(t, spy, "kpi", "--backend", "sqlite", "--data-dir", "/tmp/x"); err != nil {
		t.Fatalf("kpi: %v", err)
	}
	if got.backend != "sqlite" || got.dataDir != "/tmp/x" {
		t.Errorf("loader options = %+v", got)
	}
}
