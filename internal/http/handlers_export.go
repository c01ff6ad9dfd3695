package http

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"asistencia/internal/charts"
	"asistencia/internal/export"
	applog "asistencia/internal/log"
)

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	name, ok := strings.CutSuffix(r.PathValue("file"), ".csv")
	if !ok {
		NotFoundError("Reporte desconocido").Write(w)
		return
	}
	v := s.view(r)
	q := r.URL.Query()
	t, err := export.Build(name, v.ds, v.records, export.Params{
		TopN:     ParseTopN(q),
		Zero:     ParseBool(q, paramZero),
		Location: ParseLocation(q),
	})
	switch {
	case errors.Is(err, export.ErrUnknownReport):
		NotFoundError("Reporte desconocido").Write(w)
		return
	case err != nil:
		UnprocessableEntityError(missing(err).Message).Write(w)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, t); err != nil {
		requestLog(r).LogError(r.Context(), "CSV export failed", err, applog.ComponentExport, applog.OpExport, applog.NewFields())
		InternalServerError("Error al generar el CSV").Write(w)
		return
	}

	s.exports.Add(1)
	requestLog(r).LogExport(r.Context(), name, len(t.Cells()))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename(name)))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	raw, ok := strings.CutSuffix(r.PathValue("file"), ".svg")
	if !ok {
		NotFoundError("Gráfico desconocido").Write(w)
		return
	}
	name, err := charts.ParseName(raw)
	if err != nil {
		NotFoundError("Gráfico desconocido").Write(w)
		return
	}

	v := s.view(r)
	var buf bytes.Buffer
	if err := charts.Render(&buf, name, v.records, ParseTopN(r.URL.Query())); err != nil {
		requestLog(r).LogError(r.Context(), "Chart rendering failed", err, applog.ComponentChart, applog.OpRender,
			applog.LogFields{applog.FieldChart: string(name)})
		InternalServerError("Error al generar el gráfico").Write(w)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(buf.Bytes())
}

func itoa(n int) string { return strconv.Itoa(n) }
