package report

import (
	"fmt"
	"strconv"

	"asistencia/internal/core"
)

// Summary is the KPI block of the dashboard.
type Summary struct {
	Records       int
	Sessions      int
	AvgPerSession float64
	Identities    int
	Locations     int
	Topics        int
}

// Summarize computes the KPIs over the filtered records. Blank session
// markers, topics and location codes are not counted as distinct values;
// unmatched identities are not counted as identities.
func Summarize(records []core.Record) Summary {
	sessions := map[string]struct{}{}
	identities := map[string]struct{}{}
	locations := map[string]struct{}{}
	topics := map[string]struct{}{}
	for _, r := range records {
		addNonBlank(sessions, r.Session)
		addNonBlank(identities, r.Key)
		addNonBlank(locations, r.Location.Code)
		addNonBlank(topics, r.Topic)
	}
	s := Summary{
		Records:    len(records),
		Sessions:   len(sessions),
		Identities: len(identities),
		Locations:  len(locations),
		Topics:     len(topics),
	}
	if s.Sessions > 0 {
		s.AvgPerSession = float64(s.Records) / float64(s.Sessions)
	}
	return s
}

// Header implements export.Table.
func (s Summary) Header() []string {
	return []string{"Indicador", "Valor"}
}

// Cells implements export.Table.
func (s Summary) Cells() [][]string {
	return [][]string{
		{"Total registros", strconv.Itoa(s.Records)},
		{"Sesiones únicas", strconv.Itoa(s.Sessions)},
		{"Promedio participación/sesión", fmt.Sprintf("%.2f", s.AvgPerSession)},
		{"Dinamizadores únicos", strconv.Itoa(s.Identities)},
		{"Infoplazas únicas", strconv.Itoa(s.Locations)},
		{"Temas únicos", strconv.Itoa(s.Topics)},
	}
}

func addNonBlank(set map[string]struct{}, v string) {
	if v != "" {
		set[v] = struct{}{}
	}
}
