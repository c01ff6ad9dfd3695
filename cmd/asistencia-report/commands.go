package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"asistencia/internal/core"
	"asistencia/internal/export"
	"asistencia/internal/report"
)

type loader func(ctx context.Context, o *options) (core.Dataset, error)

type options struct {
	backend string
	dataDir string
	timeout time.Duration

	filters  map[report.Dimension]*[]string
	topN     int
	zero     bool
	location string
	out      string
}

func (o *options) filter() report.Filter {
	f := report.NewFilter()
	for d, values := range o.filters {
		f.Select(d, *values...)
	}
	return f
}

func newRootCmd(load loader) *cobra.Command {
	o := &options{filters: map[report.Dimension]*[]string{}}

	root := &cobra.Command{
		Use:           "asistencia-report",
		Short:         "Attendance KPIs and CSV reports from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&o.backend, "backend", "", "Data backend: memory, sheets or sqlite (default: DATA_BACKEND)")
	root.PersistentFlags().StringVar(&o.dataDir, "data-dir", "", "Seed directory for the memory backend (default: DATA_DIR)")
	root.PersistentFlags().DurationVar(&o.timeout, "timeout", 30*time.Second, "Time limit for reading the source")
	for _, d := range report.Dimensions {
		values := []string{}
		o.filters[d] = &values
		root.PersistentFlags().StringSliceVar(o.filters[d], d.Param(), nil, "Filter by "+d.Column()+" (repeatable)")
	}

	root.AddCommand(newKPICmd(o, load), newExportCmd(o, load), newOptionsCmd(o, load))
	return root
}

// view loads the dataset and applies the filter flags.
func view(cmd *cobra.Command, o *options, load loader) (core.Dataset, []core.Record, error) {
	ctx, cancel := context.WithTimeout(cmd.Context(), o.timeout)
	defer cancel()
	ds, err := load(ctx, o)
	if err != nil {
		return core.Dataset{}, nil, err
	}
	return ds, report.Apply(ds.Records, o.filter().For(ds)), nil
}

func newKPICmd(o *options, load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "kpi",
		Short: "Print the KPI block for the filtered records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ds, records, err := view(cmd, o, load)
			if err != nil {
				return err
			}
			s := report.Summarize(records)
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(tw, "Fuente\t%s\n", ds.Source)
			fmt.Fprintf(tw, "Registros\t%d de %d\n", s.Records, len(ds.Records))
			fmt.Fprintf(tw, "Sesiones\t%d\n", s.Sessions)
			fmt.Fprintf(tw, "Asistentes por sesión\t%.2f\n", s.AvgPerSession)
			fmt.Fprintf(tw, "Dinamizadores\t%d\n", s.Identities)
			fmt.Fprintf(tw, "Infoplazas\t%d\n", s.Locations)
			fmt.Fprintf(tw, "Temas\t%d\n", s.Topics)
			return tw.Flush()
		},
	}
}

func newExportCmd(o *options, load loader) *cobra.Command {
	cmd := &cobra.Command{
		Use:       "export <" + strings.Join(export.Reports, "|") + ">",
		Short:     "Write a report as CSV",
		Long:      "Write a report as CSV to stdout, to --out, or into --out/<default name> when --out is a directory.",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: export.Reports,
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, records, err := view(cmd, o, load)
			if err != nil {
				return err
			}
			t, err := export.Build(args[0], ds, records, export.Params{
				TopN:     o.topN,
				Zero:     o.zero,
				Location: o.location,
			})
			if err != nil {
				return err
			}
			return writeReport(cmd.OutOrStdout(), o.out, args[0], t)
		},
	}
	cmd.Flags().IntVar(&o.topN, "n", report.DefaultTopN, fmt.Sprintf("Rows in the top report (1-%d)", report.MaxTopN))
	cmd.Flags().BoolVar(&o.zero, "zero", false, "Participation: only locations without activity")
	cmd.Flags().StringVar(&o.location, "location", "", "Roster: keep rows whose location contains this text")
	cmd.Flags().StringVarP(&o.out, "out", "o", "", "Output file or directory (default: stdout)")
	return cmd
}

func writeReport(stdout io.Writer, out, name string, t export.Table) error {
	if out == "" || out == "-" {
		return export.WriteCSV(stdout, t)
	}
	if info, err := os.Stat(out); err == nil && info.IsDir() {
		out = filepath.Join(out, export.Filename(name))
	}
	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if err := export.WriteCSV(f, t); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}
	fmt.Fprintln(stdout, out)
	return nil
}

func newOptionsCmd(o *options, load loader) *cobra.Command {
	params := make([]string, 0, len(report.Dimensions))
	for _, d := range report.Dimensions {
		params = append(params, d.Param())
	}
	return &cobra.Command{
		Use:       "options <" + strings.Join(params, "|") + ">",
		Short:     "List the filter values available for a dimension",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: params,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, ok := report.ParseDimension(args[0])
			if !ok {
				return fmt.Errorf("unknown dimension %q", args[0])
			}
			ds, _, err := view(cmd, o, load)
			if err != nil {
				return err
			}
			for _, v := range report.Options(ds, d) {
				fmt.Fprintln(cmd.OutOrStdout(), v)
			}
			return nil
		},
	}
}
